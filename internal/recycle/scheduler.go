package recycle

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/gopost/internal/logger"
)

// Scheduler runs the sweeper on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	sweeper *Sweeper
	logger  logger.Logger
}

// NewScheduler creates a scheduler that runs the sweeper per the given cron
// expression (standard 5-field format).
func NewScheduler(schedule string, sweeper *Sweeper, log logger.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		sweeper: sweeper,
		logger:  log,
	}

	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("parse recycling schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	s.logger.Info("Recycling sweep triggered")
	if _, err := s.sweeper.RunOnce(context.Background()); err != nil {
		s.logger.Error("Recycling sweep failed", logger.Error(err))
	}
}

// Start begins running the schedule in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
