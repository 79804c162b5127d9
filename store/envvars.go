package store

import (
	"fmt"

	"github.com/sasta-kro/labuh-go/models"
)

// ListEnvVarsByStack returns every env var override for a stack, both
// global (ContainerName == "") and container-specific.
func (s *Store) ListEnvVarsByStack(stackID string) ([]*models.StackEnvVar, error) {
	rows, err := s.conn.Query(`
		SELECT id, stack_id, container_name, key, value, is_secret
		FROM stack_env_vars WHERE stack_id = ?
	`, stackID)
	if err != nil {
		return nil, fmt.Errorf("list env vars for stack %q: %w", stackID, err)
	}
	defer rows.Close()

	var vars []*models.StackEnvVar
	for rows.Next() {
		var v models.StackEnvVar
		if err := rows.Scan(&v.ID, &v.StackID, &v.ContainerName, &v.Key, &v.Value, &v.IsSecret); err != nil {
			return nil, fmt.Errorf("scan env var row: %w", err)
		}
		vars = append(vars, &v)
	}
	return vars, rows.Err()
}

// SetEnvVar upserts a (stack, container, key) env var.
func (s *Store) SetEnvVar(v *models.StackEnvVar) error {
	_, err := s.conn.Exec(`
		INSERT INTO stack_env_vars (id, stack_id, container_name, key, value, is_secret)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET value = excluded.value, is_secret = excluded.is_secret
	`, v.ID, v.StackID, v.ContainerName, v.Key, v.Value, v.IsSecret)
	if err != nil {
		return fmt.Errorf("set env var %q for stack %q: %w", v.Key, v.StackID, err)
	}
	return nil
}

// DeleteEnvVar removes a single env var override by ID.
func (s *Store) DeleteEnvVar(id string) error {
	_, err := s.conn.Exec(`DELETE FROM stack_env_vars WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete env var %q: %w", id, err)
	}
	return nil
}

// DeleteEnvVarsByStack removes every override for a stack, used when a
// stack is torn down.
func (s *Store) DeleteEnvVarsByStack(stackID string) error {
	_, err := s.conn.Exec(`DELETE FROM stack_env_vars WHERE stack_id = ?`, stackID)
	if err != nil {
		return fmt.Errorf("delete env vars for stack %q: %w", stackID, err)
	}
	return nil
}
