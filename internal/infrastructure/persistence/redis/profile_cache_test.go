package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careermentor/mentor-hub/internal/domain/progress"
	"github.com/careermentor/mentor-hub/pkg/timeutil"
)

func TestProfileKey(t *testing.T) {
	assert.Equal(t, "profile:u1", ProfileKey("u1"))
}

func TestNewCache_ConnectionRefused(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 1
	cfg.MaxRetries = 0
	cfg.DialTimeout = 200 * time.Millisecond

	_, err := NewCache(cfg)
	assert.True(t, errors.Is(err, ErrCacheConnection))
}

func TestCache_RejectsBadInput(t *testing.T) {
	c := NewCacheFromClient(goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"}))
	defer c.Close()
	ctx := context.Background()

	assert.ErrorIs(t, c.Set(ctx, "", 1, time.Minute), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.Set(ctx, "k", nil, time.Minute), ErrCacheNilValue)
	assert.ErrorIs(t, c.Set(ctx, "k", 1, -time.Second), ErrCacheInvalidTTL)
	assert.ErrorIs(t, c.Get(ctx, "", new(int)), ErrCacheKeyEmpty)
}

// Runs against a live server only when REDIS_TEST_ADDR is set.
func TestProfileCache_Live(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	ctx := context.Background()
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	require.NoError(t, client.Ping(ctx).Err())
	pc := NewProfileCache(NewCacheFromClient(client), time.Minute)
	t.Cleanup(func() { _ = client.Close() })

	snap := progress.NewProfileSnapshot("cache-test-user", timeutil.Date(2025, 1, 1))
	snap.Version = 3
	require.NoError(t, pc.Set(ctx, snap))

	got, ok, err := pc.Get(ctx, snap.UserID)
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff(snap, got); diff != "" {
		t.Errorf("cached snapshot mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, pc.Invalidate(ctx, snap.UserID))
	_, ok, err = pc.Get(ctx, snap.UserID)
	require.NoError(t, err)
	assert.False(t, ok)
}
