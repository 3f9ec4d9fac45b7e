// Package launch spreads capture process launches over time.
//
// Scheduler draws the per-launch jitter; Gate optionally caps the global
// spawn rate shared by every supervisor.
package launch

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// Default jitter window.
const (
	DefaultMinDelay = 500 * time.Millisecond
	DefaultMaxDelay = 30 * time.Second
)

// Scheduler returns launch delays drawn uniformly from [min, max).
// It is safe for concurrent use.
type Scheduler struct {
	min time.Duration
	max time.Duration

	mu  sync.Mutex
	rng *rand.Rand // nil = runtime source
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSource makes the scheduler draw from src instead of the runtime's
// per-goroutine generator. Access to src is serialized.
func WithSource(src rand.Source) SchedulerOption {
	return func(s *Scheduler) {
		s.rng = rand.New(src)
	}
}

// NewScheduler creates a scheduler for the [min, max) window.
func NewScheduler(minDelay, maxDelay time.Duration, opts ...SchedulerOption) (*Scheduler, error) {
	if minDelay < 0 || maxDelay < 0 {
		return nil, fmt.Errorf("launch delay must not be negative: min=%v max=%v", minDelay, maxDelay)
	}
	if maxDelay < minDelay {
		return nil, fmt.Errorf("launch max delay %v is below min delay %v", maxDelay, minDelay)
	}

	s := &Scheduler{min: minDelay, max: maxDelay}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DefaultScheduler returns a scheduler over the default 500ms..30s window.
func DefaultScheduler() *Scheduler {
	return &Scheduler{min: DefaultMinDelay, max: DefaultMaxDelay}
}

// Bounds returns the configured window.
func (s *Scheduler) Bounds() (minDelay, maxDelay time.Duration) {
	return s.min, s.max
}

// NextDelay returns the wait before the next launch.
func (s *Scheduler) NextDelay() time.Duration {
	span := int64(s.max - s.min)
	if span <= 0 {
		return s.min
	}

	if s.rng == nil {
		return s.min + time.Duration(rand.Int64N(span))
	}

	s.mu.Lock()
	n := s.rng.Int64N(span)
	s.mu.Unlock()
	return s.min + time.Duration(n)
}
