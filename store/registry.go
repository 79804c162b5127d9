package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/sasta-kro/labuh-go/errs"
	"github.com/sasta-kro/labuh-go/models"
)

// GetRegistryCredential looks up the stored credential for a (team,
// registry host) pair, used when pulling an image from a private registry.
func (s *Store) GetRegistryCredential(teamID, registryHost string) (*models.RegistryCredential, error) {
	row := s.conn.QueryRow(`
		SELECT id, team_id, registry, username, password
		FROM registry_credentials WHERE team_id = ? AND registry = ?
	`, teamID, registryHost)

	var c models.RegistryCredential
	err := row.Scan(&c.ID, &c.TeamID, &c.Registry, &c.Username, &c.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.NotFound,
			fmt.Sprintf("no registry credential for %q in team %q", registryHost, teamID))
	}
	if err != nil {
		return nil, fmt.Errorf("get registry credential for %q: %w", registryHost, err)
	}
	return &c, nil
}

// CreateRegistryCredential stores a new team-scoped pull credential. The
// password is expected to already be base64-encoded by the caller.
func (s *Store) CreateRegistryCredential(c *models.RegistryCredential) error {
	_, err := s.conn.Exec(`
		INSERT INTO registry_credentials (id, team_id, registry, username, password)
		VALUES (?, ?, ?, ?, ?)
	`, c.ID, c.TeamID, c.Registry, c.Username, c.Password)
	if err != nil {
		return fmt.Errorf("insert registry credential %q: %w", c.Registry, err)
	}
	return nil
}

// DeleteRegistryCredential removes a credential by ID.
func (s *Store) DeleteRegistryCredential(id string) error {
	_, err := s.conn.Exec(`DELETE FROM registry_credentials WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete registry credential %q: %w", id, err)
	}
	return nil
}

// ListRegistryCredentialsByTeam returns every stored credential for a team.
func (s *Store) ListRegistryCredentialsByTeam(teamID string) ([]*models.RegistryCredential, error) {
	rows, err := s.conn.Query(`
		SELECT id, team_id, registry, username, password
		FROM registry_credentials WHERE team_id = ?
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list registry credentials for team %q: %w", teamID, err)
	}
	defer rows.Close()

	var creds []*models.RegistryCredential
	for rows.Next() {
		var c models.RegistryCredential
		if err := rows.Scan(&c.ID, &c.TeamID, &c.Registry, &c.Username, &c.Password); err != nil {
			return nil, fmt.Errorf("scan registry credential row: %w", err)
		}
		creds = append(creds, &c)
	}
	return creds, rows.Err()
}
