// Package automation runs the two background loops that make the
// control plane self-driving: the cron scheduler and the metrics
// collector, each ticking once a minute for the lifetime of the process.
package automation

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sasta-kro/labuh-go/models"
)

// StackRedeployer is the subset of stack.Engine the scheduler drives.
type StackRedeployer interface {
	RedeployStack(ctx context.Context, stackID, userID string, trigger models.DeploymentTrigger) error
}

// StackLister is the subset of store.Store the scheduler and metrics
// collector both read from.
type StackLister interface {
	ListAllStacks() ([]*models.Stack, error)
}

// tickInterval is how often both loops wake up.
const tickInterval = 60 * time.Second

// Scheduler parses each stack's cron_schedule every tick and fires a
// detached redeploy for any stack whose schedule next occurs in the
// window just closed.
type Scheduler struct {
	stacks  StackLister
	deploy  StackRedeployer
	parser  cron.Parser
	logger  *slog.Logger
}

// NewScheduler builds the cron scheduler, using the standard 5-field
// cron expression format.
func NewScheduler(stacks StackLister, deploy StackRedeployer, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		stacks: stacks,
		deploy: deploy,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger: logger,
	}
}

// Run blocks, ticking every minute until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	stacks, err := s.stacks.ListAllStacks()
	if err != nil {
		s.logger.Error("scheduler: list stacks failed", "error", err)
		return
	}

	now := time.Now()
	for _, st := range stacks {
		if st.CronSchedule == nil || *st.CronSchedule == "" {
			continue
		}
		s.checkAndFire(ctx, st, now)
	}
}

// checkAndFire computes the schedule's next occurrence strictly after
// (now - 61s); if that occurrence has already passed (<=now), exactly one
// tick has elapsed since it should have fired, so a redeploy is spawned.
func (s *Scheduler) checkAndFire(ctx context.Context, st *models.Stack, now time.Time) {
	schedule, err := s.parser.Parse(*st.CronSchedule)
	if err != nil {
		s.logger.Warn("scheduler: invalid cron expression, skipping", "stack_id", st.ID, "error", err)
		return
	}

	next := schedule.Next(now.Add(-61 * time.Second))
	if next.After(now) {
		return
	}

	go func() {
		if err := s.deploy.RedeployStack(context.Background(), st.ID, st.UserID, models.TriggerScheduled); err != nil {
			s.logger.Error("scheduler: redeploy failed", "stack_id", st.ID, "error", err)
		}
	}()
}
