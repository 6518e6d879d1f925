// Package schedule runs the periodic refresh of memoized calendars.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "tzcal/internal/log"
)

// Invalidator drops memoized state.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Scheduler wraps a cron runner with a single refresh job.
type Scheduler struct {
	cron *cron.Cron
	spec string
	id   cron.EntryID
}

// New registers the refresh job for spec (standard 5-field cron or a
// descriptor such as "@daily").
func New(spec string, target Invalidator) (*Scheduler, error) {
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	s := &Scheduler{cron: c, spec: spec}

	id, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.refresh(ctx, target)
	})
	if err != nil {
		return nil, fmt.Errorf("schedule: %q: %w", spec, err)
	}
	s.id = id
	return s, nil
}

func (s *Scheduler) refresh(ctx context.Context, target Invalidator) {
	if err := target.Invalidate(ctx); err != nil {
		appLog.Error("calendar refresh failed", err, "schedule", s.spec)
		return
	}
	appLog.Info("calendar cache refreshed", "schedule", s.spec, "next", s.Next())
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	appLog.Info("scheduler started", "schedule", s.spec, "next", s.Next())
}

// Stop halts the scheduler and waits for a running job to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Next returns the next time the refresh job fires; zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.id).Next
}
