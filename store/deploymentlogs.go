package store

import (
	"fmt"
	"time"

	"github.com/sasta-kro/labuh-go/models"
)

// CreateDeploymentLog inserts a new pending deployment log row, stamping
// StartedAt. Callers finish the row later via FinishDeploymentLog.
func (s *Store) CreateDeploymentLog(log *models.DeploymentLog) error {
	log.StartedAt = time.Now().UTC()
	_, err := s.conn.Exec(`
		INSERT INTO deployment_logs (id, stack_id, trigger_type, status, logs, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, log.ID, log.StackID, log.TriggerType, log.Status, log.Logs, log.StartedAt, log.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert deployment log %q: %w", log.ID, err)
	}
	return nil
}

// FinishDeploymentLog sets the terminal status, full log text, and
// finished_at timestamp for a previously created deployment log row.
func (s *Store) FinishDeploymentLog(id string, status models.DeploymentStatus, logs string) error {
	now := time.Now().UTC()
	_, err := s.conn.Exec(`
		UPDATE deployment_logs SET status = ?, logs = ?, finished_at = ? WHERE id = ?
	`, status, logs, now, id)
	if err != nil {
		return fmt.Errorf("finish deployment log %q: %w", id, err)
	}
	return nil
}

// ListDeploymentLogsByStack returns a stack's redeploy history, newest first.
func (s *Store) ListDeploymentLogsByStack(stackID string, limit int) ([]*models.DeploymentLog, error) {
	rows, err := s.conn.Query(`
		SELECT id, stack_id, trigger_type, status, logs, started_at, finished_at
		FROM deployment_logs WHERE stack_id = ? ORDER BY started_at DESC LIMIT ?
	`, stackID, limit)
	if err != nil {
		return nil, fmt.Errorf("list deployment logs for stack %q: %w", stackID, err)
	}
	defer rows.Close()

	var logs []*models.DeploymentLog
	for rows.Next() {
		var l models.DeploymentLog
		if err := rows.Scan(&l.ID, &l.StackID, &l.TriggerType, &l.Status, &l.Logs, &l.StartedAt, &l.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan deployment log row: %w", err)
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}
