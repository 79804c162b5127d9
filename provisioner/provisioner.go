// Package provisioner implements the domain/DNS saga: binding an FQDN to
// a stack's upstream container through a DNS record (optional) and a
// proxy route, with explicit compensation on partial failure.
package provisioner

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/google/uuid"

	"github.com/sasta-kro/labuh-go/dns"
	"github.com/sasta-kro/labuh-go/errs"
	"github.com/sasta-kro/labuh-go/models"
	"github.com/sasta-kro/labuh-go/proxy"
)

// Store is the persistence surface the provisioner needs.
type Store interface {
	CreateDomain(d *models.Domain) error
	GetDomain(domain string) (*models.Domain, error)
	DeleteDomain(domain string) error
	ListDomainsByStack(stackID string) ([]*models.Domain, error)
	ListDomainsByType(domainType models.DomainType) ([]*models.Domain, error)
	SetDomainVerified(domain string, verified bool) error
	SetDomainDNSRecordID(domain, recordID string) error
	GetStack(id string) (*models.Stack, error)
}

// ProviderResolver returns the dns.Provider for a team's configured
// backend, or nil for DomainProvider "Custom" (which skips the DNS step
// entirely) and an error for any provider without stored configuration.
type ProviderResolver func(teamID string, provider models.DomainProvider) (dns.Provider, error)

// Provisioner runs the add/remove/verify/sync saga.
type Provisioner struct {
	store      Store
	proxy      *proxy.Client
	resolve    ProviderResolver
	publicIP   string
	logger     *slog.Logger
}

// NewProvisioner builds a domain provisioner.
func NewProvisioner(store Store, proxyClient *proxy.Client, resolve ProviderResolver, publicIP string, logger *slog.Logger) *Provisioner {
	return &Provisioner{store: store, proxy: proxyClient, resolve: resolve, publicIP: publicIP, logger: logger}
}

// AddDomainRequest describes a domain to provision.
type AddDomainRequest struct {
	StackID       string
	ContainerName string
	ContainerPort int
	Domain        string
	Provider      models.DomainProvider
	Type          models.DomainType
	TunnelID      string
	ShowBranding  bool
}

// AddDomain runs the three-step saga: optional DNS record creation,
// domain row persistence, and (for Caddy-type domains) proxy route
// installation — compensating in reverse on any later-step failure.
func (p *Provisioner) AddDomain(ctx context.Context, teamID string, req AddDomainRequest) (*models.Domain, error) {
	target := p.targetFor(req)

	var dnsRecordID string
	var provider dns.Provider
	if req.Provider != models.ProviderCustom {
		var err error
		provider, err = p.resolve(teamID, req.Provider)
		if err != nil {
			return nil, err
		}
		dnsRecordID, err = provider.CreateRecord(ctx, dns.CreateRecordRequest{
			Domain: req.Domain,
			Target: target,
			Type:   dns.RecordTypeFor(target),
		})
		if err != nil {
			return nil, errs.Wrap(errs.ProviderErrorKind, "create dns record", err)
		}
	}

	domainRow := &models.Domain{
		ID:            uuid.NewString(),
		StackID:       req.StackID,
		ContainerName: req.ContainerName,
		ContainerPort: req.ContainerPort,
		Domain:        req.Domain,
		SSLEnabled:    true,
		Provider:      req.Provider,
		Type:          req.Type,
		ShowBranding:  req.ShowBranding,
	}
	if req.Type == models.DomainTunnel {
		domainRow.TunnelID = &req.TunnelID
	}
	if dnsRecordID != "" {
		domainRow.DNSRecordID = &dnsRecordID
	}

	if err := p.store.CreateDomain(domainRow); err != nil {
		p.rollbackDNS(ctx, provider, dnsRecordID)
		return nil, err
	}

	if req.Type == models.DomainCaddy {
		err := p.proxy.AddRoute(ctx, proxy.AddRouteRequest{
			Domain:       req.Domain,
			UpstreamHost: req.ContainerName,
			UpstreamPort: req.ContainerPort,
			ShowBranding: req.ShowBranding,
		})
		if err != nil {
			p.store.DeleteDomain(req.Domain)
			p.rollbackDNS(ctx, provider, dnsRecordID)
			return nil, err
		}
	}

	return domainRow, nil
}

func (p *Provisioner) rollbackDNS(ctx context.Context, provider dns.Provider, recordID string) {
	if provider == nil || recordID == "" {
		return
	}
	if err := provider.DeleteRecord(ctx, recordID); err != nil {
		p.logger.Error("rollback: failed to delete dns record", "record_id", recordID, "error", err)
	}
}

// targetFor computes the DNS target: the public IP for Caddy-routed
// domains, or the Cloudflare tunnel hostname for tunneled ones.
func (p *Provisioner) targetFor(req AddDomainRequest) string {
	if req.Type == models.DomainTunnel {
		return fmt.Sprintf("%s.cfargotunnel.com", req.TunnelID)
	}
	return p.publicIP
}

// RemoveDomain undoes a domain in reverse order: DNS record (errors
// logged, not fatal), proxy route (errors logged, not fatal), then the row.
func (p *Provisioner) RemoveDomain(ctx context.Context, teamID, domain string) error {
	d, err := p.store.GetDomain(domain)
	if err != nil {
		return err
	}

	if d.DNSRecordID != nil && d.Provider != models.ProviderCustom {
		provider, err := p.resolve(teamID, d.Provider)
		if err != nil {
			p.logger.Error("resolve dns provider during remove failed, continuing", "domain", domain, "error", err)
		} else if err := provider.DeleteRecord(ctx, *d.DNSRecordID); err != nil {
			p.logger.Error("delete dns record during remove failed, continuing", "domain", domain, "error", err)
		}
	}

	if d.Type == models.DomainCaddy {
		if err := p.proxy.RemoveRoute(ctx, domain); err != nil {
			p.logger.Error("remove proxy route during remove failed, continuing", "domain", domain, "error", err)
		}
	}

	return p.store.DeleteDomain(domain)
}

// VerifyDomain resolves the domain's A/CNAME records and writes the
// verified flag back to the row.
func (p *Provisioner) VerifyDomain(ctx context.Context, domain string) (dns.VerificationResult, error) {
	expectedIP := p.publicIP
	if net.ParseIP(expectedIP) == nil {
		expectedIP = ""
	}

	result, err := dns.Verify(ctx, domain, expectedIP)
	if err != nil {
		return result, err
	}
	if err := p.store.SetDomainVerified(domain, result.Verified); err != nil {
		return result, fmt.Errorf("persist verification result for %q: %w", domain, err)
	}
	return result, nil
}

// SyncAllRoutes reinstalls the proxy route for every Caddy-type domain,
// called once after the proxy bootstrap completes at controller start.
// AddRoute is itself idempotent (it removes before inserting), so this is
// safe to run repeatedly; per-domain errors are logged and swallowed.
func (p *Provisioner) SyncAllRoutes(ctx context.Context) error {
	domains, err := p.store.ListDomainsByType(models.DomainCaddy)
	if err != nil {
		return fmt.Errorf("list caddy domains: %w", err)
	}

	for _, d := range domains {
		err := p.proxy.AddRoute(ctx, proxy.AddRouteRequest{
			Domain:       d.Domain,
			UpstreamHost: d.ContainerName,
			UpstreamPort: d.ContainerPort,
			ShowBranding: d.ShowBranding,
		})
		if err != nil {
			p.logger.Error("sync route failed, continuing", "domain", d.Domain, "error", err)
		}
	}
	return nil
}

// ListDomainsByStack returns every domain bound to a stack.
func (p *Provisioner) ListDomainsByStack(stackID string) ([]*models.Domain, error) {
	return p.store.ListDomainsByStack(stackID)
}
