package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

const defaultInterval = time.Hour

// Runner is one pass of periodic work.
type Runner interface {
	Run(ctx context.Context) Result
}

// Scheduler invokes a Runner on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	interval  time.Duration
	log       *slog.Logger
}

// NewScheduler creates a Scheduler. A non-positive interval selects one hour.
func NewScheduler(runner Runner, interval time.Duration, log *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	if log == nil {
		log = slog.Default()
	}
	s := gocron.NewScheduler(time.UTC)
	// A slow run delays the next tick instead of overlapping it.
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		interval:  interval,
		log:       log,
	}
}

// Start schedules the job and starts the underlying scheduler. The first run
// happens immediately. ctx is handed to every run, so cancelling it stops a
// run in progress between cities.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.scheduler.Every(s.interval).Do(func() {
		s.runner.Run(ctx)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.log.Info("refresh scheduler started", "interval", s.interval.String())
	return nil
}

// Stop stops the scheduler; no further runs are started.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
		s.log.Info("refresh scheduler stopped")
	}
}
