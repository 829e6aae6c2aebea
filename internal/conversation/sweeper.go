// ABOUTME: Cron-scheduled sweep that completes conversations gone quiet
// ABOUTME: Runs the service's inactivity pass on a configurable schedule

package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Sweeper runs SweepInactive on a cron schedule.
type Sweeper struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewSweeper schedules the inactivity sweep. The schedule uses standard
// five-field cron syntax.
func NewSweeper(schedule string, svc *Service, logger *slog.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		svc.SweepInactive(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return &Sweeper{cron: c, logger: logger.With("component", "sweeper")}, nil
}

// Start begins running the schedule in its own goroutine.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("inactivity sweeper started")
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("inactivity sweeper stopped")
}
