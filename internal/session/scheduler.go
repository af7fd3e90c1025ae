package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Default cron specs for the periodic jobs.
const (
	DefaultRefreshSpec = "@every 60s"
	DefaultSweepSpec   = "@every 5m"
)

// Scheduler runs the periodic timestamp refresh and idle sweep.
type Scheduler struct {
	Cron     *cron.Cron
	Registry *Registry
	now      func() time.Time
}

// NewScheduler registers both jobs on a new cron instance.
func NewScheduler(reg *Registry, refreshSpec, sweepSpec string) (*Scheduler, error) {
	s := &Scheduler{Cron: cron.New(), Registry: reg, now: time.Now}
	if refreshSpec == "" {
		refreshSpec = DefaultRefreshSpec
	}
	if sweepSpec == "" {
		sweepSpec = DefaultSweepSpec
	}
	if _, err := s.Cron.AddFunc(refreshSpec, s.refresh); err != nil {
		return nil, fmt.Errorf("register timestamp refresh: %w", err)
	}
	if _, err := s.Cron.AddFunc(sweepSpec, s.sweep); err != nil {
		return nil, fmt.Errorf("register session sweep: %w", err)
	}
	return s, nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	slog.Info("scheduler started", "jobs", len(s.Cron.Entries()))
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	slog.Info("scheduler stopped")
}

func (s *Scheduler) refresh() {
	if n := s.Registry.RefreshTimestamps(s.now()); n > 0 {
		slog.Debug("timestamps refreshed", "sessions", n)
	}
}

func (s *Scheduler) sweep() {
	s.Registry.Sweep(s.now())
}
