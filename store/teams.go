package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sasta-kro/labuh-go/errs"
	"github.com/sasta-kro/labuh-go/models"
)

// CreateTeam inserts a new team row.
func (s *Store) CreateTeam(team *models.Team) error {
	team.CreatedAt = time.Now().UTC()
	_, err := s.conn.Exec(`
		INSERT INTO teams (id, name, created_at) VALUES (?, ?, ?)
	`, team.ID, team.Name, team.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert team %q: %w", team.ID, err)
	}
	return nil
}

// GetTeamMember looks up a (team, user)'s role, the sole query the core
// makes against the RBAC collaborator.
func (s *Store) GetTeamMember(teamID, userID string) (*models.TeamMember, error) {
	row := s.conn.QueryRow(`
		SELECT team_id, user_id, role FROM team_members WHERE team_id = ? AND user_id = ?
	`, teamID, userID)

	var m models.TeamMember
	err := row.Scan(&m.TeamID, &m.UserID, &m.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.Forbidden, "user is not a member of this team")
	}
	if err != nil {
		return nil, fmt.Errorf("get team member (%q, %q): %w", teamID, userID, err)
	}
	return &m, nil
}

// GetUserRole satisfies handlers.RBAC: the core's sole external RBAC
// query, returning the caller's role on a team so priority comparisons
// (Owner(4) > Admin(3) > Developer(2) > Viewer(1)) can gate team-scoped
// operations like registry credentials and DNS provider config.
func (s *Store) GetUserRole(teamID, userID string) (models.TeamRole, error) {
	m, err := s.GetTeamMember(teamID, userID)
	if err != nil {
		return "", err
	}
	return m.Role, nil
}

// SetTeamMemberRole upserts a (team, user) -> role tuple.
func (s *Store) SetTeamMemberRole(m *models.TeamMember) error {
	_, err := s.conn.Exec(`
		INSERT INTO team_members (team_id, user_id, role) VALUES (?, ?, ?)
		ON CONFLICT(team_id, user_id) DO UPDATE SET role = excluded.role
	`, m.TeamID, m.UserID, m.Role)
	if err != nil {
		return fmt.Errorf("set team member role (%q, %q): %w", m.TeamID, m.UserID, err)
	}
	return nil
}

// ListTeamMembers returns every member of a team.
func (s *Store) ListTeamMembers(teamID string) ([]*models.TeamMember, error) {
	rows, err := s.conn.Query(`
		SELECT team_id, user_id, role FROM team_members WHERE team_id = ?
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list team members for %q: %w", teamID, err)
	}
	defer rows.Close()

	var members []*models.TeamMember
	for rows.Next() {
		var m models.TeamMember
		if err := rows.Scan(&m.TeamID, &m.UserID, &m.Role); err != nil {
			return nil, fmt.Errorf("scan team member row: %w", err)
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}
