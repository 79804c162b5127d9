package store

import (
	"fmt"
	"time"

	"github.com/sasta-kro/labuh-go/models"
)

// InsertResourceMetric stores one per-container resource sample.
func (s *Store) InsertResourceMetric(m *models.ResourceMetric) error {
	_, err := s.conn.Exec(`
		INSERT INTO resource_metrics (id, container_id, stack_id, cpu_percent, memory_bytes, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.ID, m.ContainerID, m.StackID, m.CPUPercent, m.MemoryBytes, m.Timestamp)
	if err != nil {
		return fmt.Errorf("insert resource metric for container %q: %w", m.ContainerID, err)
	}
	return nil
}

// ListResourceMetricsByStack returns a stack's metric samples within the
// given lookback window, oldest first, suitable for charting.
func (s *Store) ListResourceMetricsByStack(stackID string, since time.Time) ([]*models.ResourceMetric, error) {
	rows, err := s.conn.Query(`
		SELECT id, container_id, stack_id, cpu_percent, memory_bytes, timestamp
		FROM resource_metrics WHERE stack_id = ? AND timestamp >= ? ORDER BY timestamp ASC
	`, stackID, since)
	if err != nil {
		return nil, fmt.Errorf("list resource metrics for stack %q: %w", stackID, err)
	}
	defer rows.Close()

	var metrics []*models.ResourceMetric
	for rows.Next() {
		var m models.ResourceMetric
		if err := rows.Scan(&m.ID, &m.ContainerID, &m.StackID, &m.CPUPercent, &m.MemoryBytes, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan resource metric row: %w", err)
		}
		metrics = append(metrics, &m)
	}
	return metrics, rows.Err()
}

// PruneMetricsOlderThan deletes every resource metric sample older than
// the cutoff, called once per metrics collection tick to enforce the
// 30-day retention window.
func (s *Store) PruneMetricsOlderThan(cutoff time.Time) (int64, error) {
	result, err := s.conn.Exec(`DELETE FROM resource_metrics WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune resource metrics older than %s: %w", cutoff, err)
	}
	return result.RowsAffected()
}
