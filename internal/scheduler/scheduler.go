// Package scheduler triggers the daily ingestion run at a fixed UTC time.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/couchcryptid/weather-history-etl/internal/pipeline"
)

// DailyRunner runs one daily ingestion.
type DailyRunner interface {
	RunDaily(ctx context.Context) pipeline.DailyResult
}

// Scheduler fires RunDaily once a day.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    DailyRunner
	at        string
	logger    *slog.Logger
	job       *gocron.Job
}

// New creates a Scheduler that runs at the HH:MM (UTC) given in at.
func New(runner DailyRunner, at string, logger *slog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	// A run still in progress is never overlapped by the next one.
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		at:        at,
		logger:    logger,
	}
}

// Start schedules the daily job and starts the scheduler. Runs use ctx, so
// cancelling it stops a run between units.
func (s *Scheduler) Start(ctx context.Context) error {
	job, err := s.scheduler.Every(1).Day().At(s.at).Do(s.run, ctx)
	if err != nil {
		return fmt.Errorf("schedule daily ingestion at %s: %w", s.at, err)
	}
	s.job = job
	s.scheduler.StartAsync()
	s.logger.Info("daily ingestion scheduled", "at", s.at, "next_run", job.NextRun())
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.logger.Info("scheduled daily ingestion starting")
	res := s.runner.RunDaily(ctx)
	s.logger.Info("scheduled daily ingestion finished", "date", res.Date,
		"succeeded", len(res.Succeeded), "failed", len(res.Failed))
}

// NextRun reports when the daily job fires next.
func (s *Scheduler) NextRun() time.Time {
	if s.job == nil {
		return time.Time{}
	}
	return s.job.NextRun()
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
