package provisioner

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/sasta-kro/labuh-go/dns"
	"github.com/sasta-kro/labuh-go/errs"
	"github.com/sasta-kro/labuh-go/models"
)

type fakeDomainStore struct {
	domains         map[string]*models.Domain
	failCreateOnce  bool
	createCallCount int
}

func newFakeDomainStore() *fakeDomainStore {
	return &fakeDomainStore{domains: make(map[string]*models.Domain)}
}

func (f *fakeDomainStore) CreateDomain(d *models.Domain) error {
	f.createCallCount++
	if f.failCreateOnce {
		return errs.New(errs.Internal, "insert failed")
	}
	f.domains[d.Domain] = d
	return nil
}

func (f *fakeDomainStore) GetDomain(domain string) (*models.Domain, error) {
	d, ok := f.domains[domain]
	if !ok {
		return nil, errs.New(errs.NotFound, "domain not found")
	}
	return d, nil
}

func (f *fakeDomainStore) DeleteDomain(domain string) error {
	delete(f.domains, domain)
	return nil
}

func (f *fakeDomainStore) ListDomainsByStack(stackID string) ([]*models.Domain, error) {
	var out []*models.Domain
	for _, d := range f.domains {
		if d.StackID == stackID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDomainStore) ListDomainsByType(domainType models.DomainType) ([]*models.Domain, error) {
	var out []*models.Domain
	for _, d := range f.domains {
		if d.Type == domainType {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDomainStore) SetDomainVerified(domain string, verified bool) error {
	if d, ok := f.domains[domain]; ok {
		d.Verified = verified
	}
	return nil
}

func (f *fakeDomainStore) SetDomainDNSRecordID(domain, recordID string) error {
	if d, ok := f.domains[domain]; ok {
		d.DNSRecordID = &recordID
	}
	return nil
}

func (f *fakeDomainStore) GetStack(id string) (*models.Stack, error) {
	return &models.Stack{ID: id}, nil
}

type fakeDNSProvider struct {
	createdRecordID string
	deletedRecordID string
	failCreate      bool
}

func (f *fakeDNSProvider) CreateRecord(ctx context.Context, req dns.CreateRecordRequest) (string, error) {
	if f.failCreate {
		return "", errs.New(errs.ProviderErrorKind, "create record failed")
	}
	f.createdRecordID = "record-1"
	return f.createdRecordID, nil
}

func (f *fakeDNSProvider) DeleteRecord(ctx context.Context, recordID string) error {
	f.deletedRecordID = recordID
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAddDomainTunnelSkipsDNSForCustomProvider(t *testing.T) {
	store := newFakeDomainStore()
	p := NewProvisioner(store, nil, nil, "203.0.113.5", testLogger())

	req := AddDomainRequest{
		StackID:       "stack-1",
		ContainerName: "web",
		ContainerPort: 8080,
		Domain:        "example.com",
		Provider:      models.ProviderCustom,
		Type:          models.DomainTunnel,
		TunnelID:      "tunnel-xyz",
	}

	d, err := p.AddDomain(context.Background(), "team-1", req)
	if err != nil {
		t.Fatalf("AddDomain() error = %v", err)
	}
	if d.DNSRecordID != nil {
		t.Errorf("expected no DNS record id for custom provider, got %v", *d.DNSRecordID)
	}
	if store.createCallCount != 1 {
		t.Errorf("CreateDomain call count = %d, want 1", store.createCallCount)
	}
}

func TestAddDomainCompensatesDNSRecordOnStoreFailure(t *testing.T) {
	store := newFakeDomainStore()
	store.failCreateOnce = true
	provider := &fakeDNSProvider{}

	p := NewProvisioner(store, nil, func(teamID string, dp models.DomainProvider) (dns.Provider, error) {
		return provider, nil
	}, "203.0.113.5", testLogger())

	req := AddDomainRequest{
		StackID:       "stack-1",
		ContainerName: "web",
		ContainerPort: 8080,
		Domain:        "example.com",
		Provider:      models.ProviderCloudflare,
		Type:          models.DomainTunnel,
		TunnelID:      "tunnel-xyz",
	}

	_, err := p.AddDomain(context.Background(), "team-1", req)
	if err == nil {
		t.Fatal("expected store failure to propagate")
	}
	if provider.createdRecordID == "" {
		t.Fatal("expected DNS record to have been created before store failure")
	}
	if provider.deletedRecordID != provider.createdRecordID {
		t.Errorf("expected compensation to delete record %q, deleted %q", provider.createdRecordID, provider.deletedRecordID)
	}
}

func TestAddDomainPropagatesDNSCreateFailureWithoutTouchingStore(t *testing.T) {
	store := newFakeDomainStore()
	provider := &fakeDNSProvider{failCreate: true}

	p := NewProvisioner(store, nil, func(teamID string, dp models.DomainProvider) (dns.Provider, error) {
		return provider, nil
	}, "203.0.113.5", testLogger())

	req := AddDomainRequest{
		Domain:   "example.com",
		Provider: models.ProviderCloudflare,
		Type:     models.DomainTunnel,
		TunnelID: "tunnel-xyz",
	}

	_, err := p.AddDomain(context.Background(), "team-1", req)
	if err == nil {
		t.Fatal("expected dns create failure to propagate")
	}
	if store.createCallCount != 0 {
		t.Errorf("expected CreateDomain never called, got %d calls", store.createCallCount)
	}
}

func TestRemoveDomainDeletesRowEvenWhenDNSDeleteFails(t *testing.T) {
	store := newFakeDomainStore()
	recordID := "record-1"
	store.domains["example.com"] = &models.Domain{
		Domain:      "example.com",
		Type:        models.DomainTunnel,
		Provider:    models.ProviderCloudflare,
		DNSRecordID: &recordID,
	}

	p := NewProvisioner(store, nil, func(teamID string, dp models.DomainProvider) (dns.Provider, error) {
		return nil, errs.New(errs.ProviderErrorKind, "provider unavailable")
	}, "203.0.113.5", testLogger())

	if err := p.RemoveDomain(context.Background(), "team-1", "example.com"); err != nil {
		t.Fatalf("RemoveDomain() error = %v, want nil (DNS failure should not block row deletion)", err)
	}
	if _, ok := store.domains["example.com"]; ok {
		t.Error("expected domain row to be deleted despite DNS provider resolution failure")
	}
}

func TestListDomainsByStackFiltersToStack(t *testing.T) {
	store := newFakeDomainStore()
	store.domains["a.example.com"] = &models.Domain{Domain: "a.example.com", StackID: "stack-1"}
	store.domains["b.example.com"] = &models.Domain{Domain: "b.example.com", StackID: "stack-2"}

	p := NewProvisioner(store, nil, nil, "203.0.113.5", testLogger())

	got, err := p.ListDomainsByStack("stack-1")
	if err != nil {
		t.Fatalf("ListDomainsByStack() error = %v", err)
	}
	if len(got) != 1 || got[0].Domain != "a.example.com" {
		t.Errorf("ListDomainsByStack(stack-1) = %v, want exactly [a.example.com]", got)
	}
}
