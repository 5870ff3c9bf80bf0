package ingest

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler runs a periodic reindex job on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger
}

// NewScheduler creates a scheduler running job at the given five-field cron
// expression.
func NewScheduler(expr string, job func(), logger zerolog.Logger) (*Scheduler, error) {
	c := cron.New()
	if _, err := c.AddFunc(expr, job); err != nil {
		return nil, fmt.Errorf("invalid reindex schedule %q: %w", expr, err)
	}
	return &Scheduler{cron: c, logger: logger}, nil
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Msg("Reindex scheduler started")
}

// Stop stops the schedule and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Reindex scheduler stopped")
}
