package automation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sasta-kro/labuh-go/models"
	"github.com/sasta-kro/labuh-go/runtime"
)

// statsConcurrency bounds how many GetStats calls to the Docker daemon run
// at once per tick, so a stack with many containers doesn't serialize a
// minute's worth of individually slow daemon round trips.
const statsConcurrency = 8

// MetricsStore is the persistence surface the metrics collector needs.
type MetricsStore interface {
	StackLister
	InsertResourceMetric(m *models.ResourceMetric) error
	PruneMetricsOlderThan(cutoff time.Time) (int64, error)
}

const metricsRetention = 30 * 24 * time.Hour

// MetricsCollector samples per-container CPU/memory stats once a minute
// and prunes samples older than the retention window.
type MetricsCollector struct {
	stacks  MetricsStore
	runtime runtime.Port
	logger  *slog.Logger
}

// NewMetricsCollector builds the metrics collector.
func NewMetricsCollector(stacks MetricsStore, rt runtime.Port, logger *slog.Logger) *MetricsCollector {
	return &MetricsCollector{stacks: stacks, runtime: rt, logger: logger}
}

// Run blocks, ticking every minute until ctx is cancelled.
func (m *MetricsCollector) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *MetricsCollector) tick(ctx context.Context) {
	stacks, err := m.stacks.ListAllStacks()
	if err != nil {
		m.logger.Error("metrics: list stacks failed", "error", err)
		return
	}

	containers, err := m.runtime.ListContainers(ctx, false)
	if err != nil {
		m.logger.Error("metrics: list containers failed", "error", err)
		return
	}

	byStackID := make(map[string]string, len(stacks))
	for _, s := range stacks {
		byStackID[s.ID] = s.ID
	}

	now := time.Now().UTC()

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(statsConcurrency)
	var insertMu sync.Mutex

	for _, c := range containers {
		stackID, ok := byStackID[c.Labels["labuh.stack.id"]]
		if !ok {
			continue
		}
		c := c
		stackID := stackID

		group.Go(func() error {
			stats, err := m.runtime.GetStats(groupCtx, c.ID)
			if err != nil {
				m.logger.Warn("metrics: get stats failed, continuing", "container_id", c.ID, "error", err)
				return nil
			}

			sample := &models.ResourceMetric{
				ID:          uuid.NewString(),
				ContainerID: c.ID,
				StackID:     stackID,
				CPUPercent:  stats.CPUPercent,
				MemoryBytes: stats.MemoryUsage,
				Timestamp:   now,
			}

			insertMu.Lock()
			defer insertMu.Unlock()
			if err := m.stacks.InsertResourceMetric(sample); err != nil {
				m.logger.Warn("metrics: insert sample failed, continuing", "container_id", c.ID, "error", err)
			}
			return nil
		})
	}
	_ = group.Wait()

	cutoff := now.Add(-metricsRetention)
	if pruned, err := m.stacks.PruneMetricsOlderThan(cutoff); err != nil {
		m.logger.Error("metrics: prune failed", "error", err)
	} else if pruned > 0 {
		m.logger.Info("metrics: pruned old samples", "count", pruned, "cutoff", cutoff)
	}
}
