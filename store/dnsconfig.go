package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/sasta-kro/labuh-go/errs"
	"github.com/sasta-kro/labuh-go/models"
)

// GetDnsConfig fetches a team's provider configuration blob.
func (s *Store) GetDnsConfig(teamID string, provider models.DomainProvider) (*models.DnsConfig, error) {
	row := s.conn.QueryRow(`
		SELECT id, team_id, provider, config
		FROM dns_configs WHERE team_id = ? AND provider = ?
	`, teamID, provider)

	var c models.DnsConfig
	err := row.Scan(&c.ID, &c.TeamID, &c.Provider, &c.Config)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.NotFound,
			fmt.Sprintf("no %s dns config for team %q", provider, teamID))
	}
	if err != nil {
		return nil, fmt.Errorf("get dns config for team %q: %w", teamID, err)
	}
	return &c, nil
}

// UpsertDnsConfig stores or replaces a team's provider configuration.
func (s *Store) UpsertDnsConfig(c *models.DnsConfig) error {
	_, err := s.conn.Exec(`
		INSERT INTO dns_configs (id, team_id, provider, config)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(team_id, provider) DO UPDATE SET config = excluded.config
	`, c.ID, c.TeamID, c.Provider, c.Config)
	if err != nil {
		return fmt.Errorf("upsert dns config for team %q: %w", c.TeamID, err)
	}
	return nil
}
