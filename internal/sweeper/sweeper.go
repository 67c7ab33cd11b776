// Package sweeper evicts idle dialogue sessions on a cron schedule.
package sweeper

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Target is anything with sessions that can be swept.
type Target interface {
	Sweep(ttl time.Duration) int
}

// Sweeper runs Target.Sweep on a schedule.
type Sweeper struct {
	cron   *cron.Cron
	target Target
	ttl    time.Duration
	logger *slog.Logger
}

// New creates a sweeper for schedule, a standard cron spec or a descriptor
// such as "@every 5m". It does not start until Start is called.
func New(target Target, schedule string, ttl time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sweeper{
		cron:   cron.New(),
		target: target,
		ttl:    ttl,
		logger: logger,
	}
	if _, err := s.cron.AddFunc(schedule, s.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start starts the scheduler.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("Session sweeper started", "idle_ttl", s.ttl)
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RunOnce sweeps immediately.
func (s *Sweeper) RunOnce() {
	if n := s.target.Sweep(s.ttl); n > 0 {
		s.logger.Info("Evicted idle sessions", "count", n, "idle_ttl", s.ttl)
	}
}
