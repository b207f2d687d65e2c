// Package retry runs an operation again after failures it is told to retry,
// waiting with capped exponential backoff and jitter between attempts.
// The command pipeline uses it to reload and recompute after losing a
// compare-and-swap race on a profile snapshot.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MARKERS
// ══════════════════════════════════════════════════════════════════════════════

type retryableError struct{ err error }

func (e retryableError) Error() string { return e.err.Error() }
func (e retryableError) Unwrap() error { return e.err }

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Retryable marks err for retry when no RetryIf predicate is configured.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return retryableError{err}
}

// Permanent stops retrying regardless of the predicate.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err}
}

// IsRetryable reports whether err carries the Retryable marker.
func IsRetryable(err error) bool {
	var r retryableError
	return errors.As(err, &r)
}

// IsPermanent reports whether err carries the Permanent marker.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// unmark strips the outermost marker so callers see their own error.
func unmark(err error) error {
	switch e := err.(type) {
	case retryableError:
		return e.err
	case permanentError:
		return e.err
	}
	return err
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config controls attempts and backoff.
type Config struct {
	// MaxAttempts counts the first call. Default 3.
	MaxAttempts int

	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// Jitter spreads each delay by ±Jitter of itself (0..1).
	Jitter float64

	// RetryIf decides which errors are retried. Nil retries only Retryable errors.
	RetryIf func(error) bool

	// OnRetry is called before each wait with the attempt that just failed.
	OnRetry func(attempt int, err error, delay time.Duration)

	// Sleep waits between attempts and returns early on cancellation.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultConfig returns 3 attempts starting at 100ms, doubling up to 30s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
		Jitter:       0.1,
		Sleep:        sleepContext,
	}
}

// Option adjusts a Config.
type Option func(*Config)

func WithMaxAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxAttempts = n
		}
	}
}

func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.InitialDelay = d
		}
	}
}

func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.MaxDelay = d
		}
	}
}

func WithMultiplier(m float64) Option {
	return func(c *Config) {
		if m >= 1 {
			c.Multiplier = m
		}
	}
}

func WithJitter(j float64) Option {
	return func(c *Config) {
		if j >= 0 && j <= 1 {
			c.Jitter = j
		}
	}
}

func WithRetryIf(fn func(error) bool) Option {
	return func(c *Config) { c.RetryIf = fn }
}

func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(c *Config) { c.OnRetry = fn }
}

// WithSleep replaces the wait between attempts. Tests pass a no-op.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Config) {
		if fn != nil {
			c.Sleep = fn
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RETRIER
// ══════════════════════════════════════════════════════════════════════════════

// Retrier is safe for concurrent use; it holds configuration only.
type Retrier struct {
	cfg Config
}

// New creates a Retrier from DefaultConfig and opts.
func New(opts ...Option) *Retrier {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Retrier{cfg: cfg}
}

// ConflictRetrier is tuned for optimistic-concurrency loops: the next attempt
// reloads fresh state, so waits are short and heavily jittered to break ties.
func ConflictRetrier(maxAttempts int, retryIf func(error) bool, opts ...Option) *Retrier {
	base := []Option{
		WithMaxAttempts(maxAttempts),
		WithInitialDelay(10 * time.Millisecond),
		WithMaxDelay(200 * time.Millisecond),
		WithMultiplier(2),
		WithJitter(0.5),
		WithRetryIf(retryIf),
	}
	return New(append(base, opts...)...)
}

// Attempts returns the attempt limit.
func (r *Retrier) Attempts() int { return r.cfg.MaxAttempts }

// Do calls op until it succeeds, returns a non-retryable error, or runs out
// of attempts. The returned error never carries a retry marker. When the
// context ends between attempts the last operation error wins over ctx.Err.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var last error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return unmark(last)
			}
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		last = err

		if IsPermanent(err) || !r.shouldRetry(err) || attempt == r.cfg.MaxAttempts {
			return unmark(err)
		}

		delay := r.delay(attempt)
		if r.cfg.OnRetry != nil {
			r.cfg.OnRetry(attempt, err, delay)
		}
		if r.cfg.Sleep(ctx, delay) != nil {
			return unmark(err)
		}
	}
	return unmark(last)
}

func (r *Retrier) shouldRetry(err error) bool {
	if r.cfg.RetryIf != nil {
		return r.cfg.RetryIf(err)
	}
	return IsRetryable(err)
}

// delay returns InitialDelay*Multiplier^(attempt-1), capped and jittered.
func (r *Retrier) delay(attempt int) time.Duration {
	d := float64(r.cfg.InitialDelay) * math.Pow(r.cfg.Multiplier, float64(attempt-1))
	d = math.Min(d, float64(r.cfg.MaxDelay))
	if r.cfg.Jitter > 0 {
		d += d * r.cfg.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(math.Max(d, 0))
}

// Do runs op with a one-off Retrier.
func Do(ctx context.Context, op func(ctx context.Context) error, opts ...Option) error {
	return New(opts...).Do(ctx, op)
}

// DoWithData is Do for operations that produce a value.
func DoWithData[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	var out T
	err := New(opts...).Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err == nil {
			out = v
		}
		return err
	})
	return out, err
}
