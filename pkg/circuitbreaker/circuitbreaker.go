// Package circuitbreaker stops calling an optional backend (the snapshot cache,
// the Redis event fan-out) after repeated failures, and probes it again after
// a cool-down. Callers treat ErrOpen as "skip this backend for now".
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/careermentor/mentor-hub/pkg/timeutil"
)

// State is the breaker state.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects calls until the cool-down elapses.
	StateOpen
	// StateHalfOpen lets a limited number of probe calls through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned instead of calling the backend.
var ErrOpen = errors.New("circuit breaker is open")

// Config holds breaker settings.
type Config struct {
	Name string

	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int

	// SuccessThreshold consecutive probe successes close it again.
	SuccessThreshold int

	// CoolDown is how long the circuit stays open before probing.
	CoolDown time.Duration

	// MaxProbes bounds concurrent calls while half-open.
	MaxProbes int

	// OnStateChange is called with the lock held; keep it short.
	OnStateChange func(name string, from, to State)

	// IsFailure decides which errors count. Nil counts every error
	// except context cancellation.
	IsFailure func(error) bool

	Clock timeutil.Clock
}

// DefaultConfig returns defaults for a named breaker.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		CoolDown:         30 * time.Second,
		MaxProbes:        1,
		Clock:            timeutil.SystemClock,
	}
}

// Option configures a breaker.
type Option func(*Config)

func WithFailureThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.FailureThreshold = n
		}
	}
}

func WithSuccessThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.SuccessThreshold = n
		}
	}
}

func WithCoolDown(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.CoolDown = d
		}
	}
}

func WithMaxProbes(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxProbes = n
		}
	}
}

func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(c *Config) { c.OnStateChange = fn }
}

func WithIsFailure(fn func(error) bool) Option {
	return func(c *Config) { c.IsFailure = fn }
}

// WithClock is used by tests to drive the cool-down.
func WithClock(clock timeutil.Clock) Option {
	return func(c *Config) {
		if clock != nil {
			c.Clock = clock
		}
	}
}

// Counts are cumulative call statistics.
type Counts struct {
	Requests             int
	Rejected             int
	TotalFailures        int
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
}

// Breaker guards calls to one backend.
type Breaker struct {
	cfg Config

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
	probes   int
}

// New creates a closed breaker.
func New(name string, opts ...Option) *Breaker {
	cfg := DefaultConfig(name)
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Breaker{cfg: cfg}
}

// ForCache returns a breaker for the snapshot cache: it trips fast and
// recovers fast because a cache miss only costs a store read.
func ForCache(onStateChange func(name string, from, to State)) *Breaker {
	return New("profile-cache",
		WithFailureThreshold(3),
		WithSuccessThreshold(1),
		WithCoolDown(15*time.Second),
		WithOnStateChange(onStateChange),
	)
}

// ForPublisher returns a breaker for external event fan-out.
func ForPublisher(onStateChange func(name string, from, to State)) *Breaker {
	return New("event-fanout",
		WithFailureThreshold(5),
		WithSuccessThreshold(2),
		WithCoolDown(30*time.Second),
		WithMaxProbes(2),
		WithOnStateChange(onStateChange),
	)
}

// Execute calls fn unless the circuit is open.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(err)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.cfg.Clock().Sub(b.openedAt) < b.cfg.CoolDown {
			b.counts.Rejected++
			return ErrOpen
		}
		b.transition(StateHalfOpen)
		b.probes = 1
	case StateHalfOpen:
		if b.probes >= b.cfg.MaxProbes {
			b.counts.Rejected++
			return ErrOpen
		}
		b.probes++
	}
	b.counts.Requests++
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen && b.probes > 0 {
		b.probes--
	}

	if !b.isFailure(err) {
		b.counts.ConsecutiveFailures = 0
		b.counts.ConsecutiveSuccesses++
		if b.state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.cfg.SuccessThreshold {
			b.transition(StateClosed)
		}
		return
	}

	b.counts.TotalFailures++
	b.counts.ConsecutiveFailures++
	b.counts.ConsecutiveSuccesses = 0
	if b.state == StateHalfOpen || b.counts.ConsecutiveFailures >= b.cfg.FailureThreshold {
		b.openedAt = b.cfg.Clock()
		b.transition(StateOpen)
	}
}

func (b *Breaker) isFailure(err error) bool {
	if err == nil {
		return false
	}
	if b.cfg.IsFailure != nil {
		return b.cfg.IsFailure(err)
	}
	return !errors.Is(err, context.Canceled)
}

// transition must be called with mu held.
func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.counts.ConsecutiveFailures = 0
	b.counts.ConsecutiveSuccesses = 0
	if to != StateHalfOpen {
		b.probes = 0
	}
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.cfg.Name, from, to)
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Counts returns a copy of the statistics.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

func (b *Breaker) Name() string { return b.cfg.Name }
