package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sasta-kro/labuh-go/errs"
	"github.com/sasta-kro/labuh-go/models"
)

const domainSelect = `
	SELECT
		id, stack_id, container_name, container_port, domain, ssl_enabled,
		verified, provider, type, tunnel_id, dns_record_id, proxied,
		show_branding, created_at
	FROM domains
`

// CreateDomain inserts a new domain row. Domain is globally unique;
// callers should expect a Conflict error if it collides.
func (s *Store) CreateDomain(d *models.Domain) error {
	_, err := s.conn.Exec(`
		INSERT INTO domains (
			id, stack_id, container_name, container_port, domain, ssl_enabled,
			verified, provider, type, tunnel_id, dns_record_id, proxied,
			show_branding, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.StackID, d.ContainerName, d.ContainerPort, d.Domain, d.SSLEnabled,
		d.Verified, d.Provider, d.Type, d.TunnelID, d.DNSRecordID, d.Proxied,
		d.ShowBranding, d.CreatedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errs.New(errs.Conflict, fmt.Sprintf("domain %q is already in use", d.Domain))
		}
		return fmt.Errorf("insert domain %q: %w", d.Domain, err)
	}
	return nil
}

// GetDomain fetches a domain by its FQDN.
func (s *Store) GetDomain(domain string) (*models.Domain, error) {
	row := s.conn.QueryRow(domainSelect+" WHERE domain = ?", domain)
	d, err := scanDomain(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.NotFound, fmt.Sprintf("domain %q not found", domain))
	}
	if err != nil {
		return nil, fmt.Errorf("get domain %q: %w", domain, err)
	}
	return d, nil
}

// ListDomainsByStack returns every domain bound to a stack.
func (s *Store) ListDomainsByStack(stackID string) ([]*models.Domain, error) {
	rows, err := s.conn.Query(domainSelect+" WHERE stack_id = ?", stackID)
	if err != nil {
		return nil, fmt.Errorf("list domains for stack %q: %w", stackID, err)
	}
	defer rows.Close()
	return scanDomainRows(rows)
}

// ListDomainsByType returns every domain of a given type (Caddy or
// Tunnel) across all stacks, used by the proxy route-sync reconciler.
func (s *Store) ListDomainsByType(domainType models.DomainType) ([]*models.Domain, error) {
	rows, err := s.conn.Query(domainSelect+" WHERE type = ?", domainType)
	if err != nil {
		return nil, fmt.Errorf("list domains of type %q: %w", domainType, err)
	}
	defer rows.Close()
	return scanDomainRows(rows)
}

func scanDomainRows(rows *sql.Rows) ([]*models.Domain, error) {
	var domains []*models.Domain
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("scan domain row: %w", err)
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// SetDomainVerified marks a domain verified after a successful DNS lookup.
func (s *Store) SetDomainVerified(domain string, verified bool) error {
	_, err := s.conn.Exec(`UPDATE domains SET verified = ? WHERE domain = ?`, verified, domain)
	if err != nil {
		return fmt.Errorf("set verified for domain %q: %w", domain, err)
	}
	return nil
}

// SetDomainDNSRecordID records the provider-assigned DNS record ID, used
// later by the removal saga step.
func (s *Store) SetDomainDNSRecordID(domain, recordID string) error {
	_, err := s.conn.Exec(`UPDATE domains SET dns_record_id = ? WHERE domain = ?`, recordID, domain)
	if err != nil {
		return fmt.Errorf("set dns record id for domain %q: %w", domain, err)
	}
	return nil
}

// DeleteDomain removes a domain row by its FQDN.
func (s *Store) DeleteDomain(domain string) error {
	result, err := s.conn.Exec(`DELETE FROM domains WHERE domain = ?`, domain)
	if err != nil {
		return fmt.Errorf("delete domain %q: %w", domain, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected for domain %q: %w", domain, err)
	}
	if rowsAffected == 0 {
		return errs.New(errs.NotFound, fmt.Sprintf("domain %q not found", domain))
	}
	return nil
}

func scanDomain(row scanner) (*models.Domain, error) {
	var d models.Domain
	err := row.Scan(
		&d.ID, &d.StackID, &d.ContainerName, &d.ContainerPort, &d.Domain, &d.SSLEnabled,
		&d.Verified, &d.Provider, &d.Type, &d.TunnelID, &d.DNSRecordID, &d.Proxied,
		&d.ShowBranding, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// isUniqueConstraintError reports whether err is a SQLite UNIQUE
// constraint violation. The sqlite3 driver does not expose a typed
// error for this, only a message substring.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
