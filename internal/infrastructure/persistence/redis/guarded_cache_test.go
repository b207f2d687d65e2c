package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careermentor/mentor-hub/internal/domain/progress"
	"github.com/careermentor/mentor-hub/internal/infrastructure/persistence/memory"
	"github.com/careermentor/mentor-hub/pkg/circuitbreaker"
	"github.com/careermentor/mentor-hub/pkg/timeutil"
)

var errDown = errors.New("connection refused")

// flakyCache fails every call while down is set.
type flakyCache struct {
	progress.ProfileCache
	down  bool
	calls int
}

func (f *flakyCache) Get(ctx context.Context, userID string) (*progress.ProfileSnapshot, bool, error) {
	f.calls++
	if f.down {
		return nil, false, errDown
	}
	return f.ProfileCache.Get(ctx, userID)
}

func (f *flakyCache) Set(ctx context.Context, snap *progress.ProfileSnapshot) error {
	f.calls++
	if f.down {
		return errDown
	}
	return f.ProfileCache.Set(ctx, snap)
}

func TestGuardedProfileCache_PassesThrough(t *testing.T) {
	ctx := context.Background()
	g := NewGuardedProfileCache(memory.NewCache(), nil, nil)

	snap := progress.NewProfileSnapshot("u1", timeutil.Date(2025, 1, 1))
	require.NoError(t, g.Set(ctx, snap))

	got, ok, err := g.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "u1", got.UserID)

	require.NoError(t, g.Invalidate(ctx, "u1"))
	_, ok, err = g.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGuardedProfileCache_DegradesWhenOpen(t *testing.T) {
	ctx := context.Background()
	inner := &flakyCache{ProfileCache: memory.NewCache(), down: true}
	breaker := circuitbreaker.New("test", circuitbreaker.WithFailureThreshold(2))
	g := NewGuardedProfileCache(inner, breaker, nil)

	_, _, err := g.Get(ctx, "u1")
	assert.ErrorIs(t, err, errDown)
	_, _, err = g.Get(ctx, "u1")
	assert.ErrorIs(t, err, errDown)
	require.Equal(t, circuitbreaker.StateOpen, breaker.State())

	_, ok, err := g.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, g.Set(ctx, progress.NewProfileSnapshot("u1", timeutil.Date(2025, 1, 1))))
	assert.ErrorIs(t, g.Invalidate(ctx, "u1"), circuitbreaker.ErrOpen)

	assert.Equal(t, 2, inner.calls, "open circuit must not reach the backend")
}
