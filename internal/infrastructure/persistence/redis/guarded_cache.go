package redis

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/careermentor/mentor-hub/internal/domain/progress"
	"github.com/careermentor/mentor-hub/pkg/circuitbreaker"
)

// GuardedProfileCache puts a circuit breaker in front of a ProfileCache.
// While the circuit is open reads are misses and writes are skipped, so a
// Redis outage degrades to store reads instead of failing commands.
type GuardedProfileCache struct {
	inner   progress.ProfileCache
	breaker *circuitbreaker.Breaker
	logger  *zap.Logger
}

var _ progress.ProfileCache = (*GuardedProfileCache)(nil)

// NewGuardedProfileCache wraps inner. A nil breaker uses circuitbreaker.ForCache.
func NewGuardedProfileCache(inner progress.ProfileCache, breaker *circuitbreaker.Breaker, logger *zap.Logger) *GuardedProfileCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "profile_cache"))
	if breaker == nil {
		breaker = circuitbreaker.ForCache(func(name string, from, to circuitbreaker.State) {
			logger.Warn("cache circuit state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		})
	}
	return &GuardedProfileCache{inner: inner, breaker: breaker, logger: logger}
}

// Get returns a miss while the circuit is open.
func (g *GuardedProfileCache) Get(ctx context.Context, userID string) (*progress.ProfileSnapshot, bool, error) {
	var (
		snap *progress.ProfileSnapshot
		ok   bool
	)
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		snap, ok, err = g.inner.Get(ctx, userID)
		return err
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return nil, false, nil
	}
	return snap, ok, err
}

// Set is skipped while the circuit is open.
func (g *GuardedProfileCache) Set(ctx context.Context, snap *progress.ProfileSnapshot) error {
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.inner.Set(ctx, snap)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return nil
	}
	return err
}

// Invalidate reports ErrOpen so the caller logs the possibly stale entry.
func (g *GuardedProfileCache) Invalidate(ctx context.Context, userID string) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.inner.Invalidate(ctx, userID)
	})
}

// Breaker exposes the breaker for health reporting.
func (g *GuardedProfileCache) Breaker() *circuitbreaker.Breaker {
	return g.breaker
}
