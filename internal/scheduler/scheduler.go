package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"multiStratBot/internal/ports"
)

const defaultFailureCooldown = 10 * time.Second

// State describes what the scheduler is currently doing.
type State int

const (
	Idle State = iota
	Waiting
	Executing
	Cancelled
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Waiting:
		return "waiting"
	case Executing:
		return "executing"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// CycleFunc is one trading cycle. The scheduler treats a returned error as a
// failed cycle and backs off before rescheduling.
type CycleFunc func(ctx context.Context) error

// Scheduler fires trading cycles shortly after each bar boundary. Boundaries
// are multiples of the bar duration counted from the Unix epoch in UTC, so
// every instance on every host wakes at the same wall-clock instants. The
// post-close delay gives the broker time to finalize the just-closed bar
// before data is fetched.
type Scheduler struct {
	barMinutes      int
	postCloseDelay  time.Duration
	failureCooldown time.Duration
	logger          ports.Logger
	now             func() time.Time

	mu    sync.Mutex
	state State
}

// Config holds configuration for the cycle scheduler.
type Config struct {
	BarMinutes            int
	PostCloseDelaySeconds int
	Logger                ports.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// New creates a cycle scheduler. The post-close delay must be at least one
// second and strictly inside the bar, otherwise the wake instant would land
// in the next bar and every cycle would read one bar late.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for scheduler: %w", ports.ErrConfigurationError)
	}
	if cfg.BarMinutes < 1 {
		return nil, fmt.Errorf("bar size must be at least 1 minute, got %d: %w", cfg.BarMinutes, ports.ErrConfigurationError)
	}
	if cfg.PostCloseDelaySeconds < 1 || cfg.PostCloseDelaySeconds >= cfg.BarMinutes*60 {
		return nil, fmt.Errorf("post-close delay %ds must be in [1, %d): %w",
			cfg.PostCloseDelaySeconds, cfg.BarMinutes*60, ports.ErrConfigurationError)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		barMinutes:      cfg.BarMinutes,
		postCloseDelay:  time.Duration(cfg.PostCloseDelaySeconds) * time.Second,
		failureCooldown: defaultFailureCooldown,
		logger:          cfg.Logger,
		now:             now,
		state:           Idle,
	}, nil
}

// State returns the scheduler's current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// nextWake returns the first bar boundary plus delay strictly after now.
// The boundary at-or-before now is used when its wake instant is still ahead:
// a scheduler started inside the post-close delay window fires for the bar
// that just closed instead of silently skipping it. Rescheduling always
// starts from the current time, so a cycle that overran its bar skips the
// missed boundary instead of firing a burst of catch-ups.
func (s *Scheduler) nextWake(now time.Time) time.Time {
	barSec := int64(s.barMinutes) * 60
	boundary := now.Unix() - now.Unix()%barSec
	wake := time.Unix(boundary, 0).UTC().Add(s.postCloseDelay)
	if !wake.After(now) {
		wake = wake.Add(time.Duration(barSec) * time.Second)
	}
	return wake
}

// RunSynchronized fires the cycle after every bar close until the context is
// cancelled. A failing cycle is logged and retried at the next boundary after
// a cooldown; it never stops the loop.
func (s *Scheduler) RunSynchronized(ctx context.Context, fn CycleFunc) error {
	for {
		wake := s.nextWake(s.now())
		s.logger.Debug(ctx, "sleeping until next bar boundary", map[string]interface{}{
			"wake":       wake,
			"barMinutes": s.barMinutes,
		})
		s.setState(Waiting)
		if err := s.sleepUntil(ctx, wake); err != nil {
			s.setState(Cancelled)
			return err
		}

		s.setState(Executing)
		if err := fn(ctx); err != nil {
			s.logger.Error(ctx, err, "trading cycle failed, cooling down", map[string]interface{}{
				"cooldown": s.failureCooldown.String(),
			})
			if err := s.sleep(ctx, s.failureCooldown); err != nil {
				s.setState(Cancelled)
				return err
			}
		}
	}
}

// RunOnce executes a single cycle immediately, outside bar synchronization.
func (s *Scheduler) RunOnce(ctx context.Context, fn CycleFunc) error {
	s.setState(Executing)
	defer s.setState(Idle)
	return fn(ctx)
}

func (s *Scheduler) sleepUntil(ctx context.Context, wake time.Time) error {
	return s.sleep(ctx, wake.Sub(s.now()))
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("scheduler interrupted: %w", ports.ErrContextCanceled)
		default:
			return nil
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("scheduler interrupted: %w", ports.ErrContextCanceled)
	case <-timer.C:
		return nil
	}
}
