package dispatch

import (
	"context"
	"sync"
)

// Scheduler decides when a routine paused at a checkpoint may continue.
// Schedule is called once per checkpoint with a function that releases the
// routine; it may call it at once or later, from any goroutine. A routine
// cancelled before its resume function runs is torn down instead.
type Scheduler interface {
	Schedule(resume func())
}

// ImmediateScheduler resumes routines as soon as they pause.
type ImmediateScheduler struct{}

// Schedule implements Scheduler.
func (ImmediateScheduler) Schedule(resume func()) { resume() }

// ManualScheduler queues resume functions until RunPending is called. It makes
// checkpoint interleaving explicit for embedders that drive their own loop.
type ManualScheduler struct {
	mu      sync.Mutex
	pending []func()
	changed chan struct{}
}

// NewManualScheduler returns an empty manual scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{changed: make(chan struct{})}
}

// Schedule implements Scheduler.
func (s *ManualScheduler) Schedule(resume func()) {
	s.mu.Lock()
	s.pending = append(s.pending, resume)
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
}

// Pending returns the number of queued resumes.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// RunPending runs every queued resume and returns how many ran. Resumes queued
// while it runs wait for the next call.
func (s *ManualScheduler) RunPending() int {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, resume := range batch {
		resume()
	}
	return len(batch)
}

// WaitPending blocks until at least n resumes are queued or ctx is done.
func (s *ManualScheduler) WaitPending(ctx context.Context, n int) error {
	for {
		s.mu.Lock()
		if len(s.pending) >= n {
			s.mu.Unlock()
			return nil
		}
		changed := s.changed
		s.mu.Unlock()
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
