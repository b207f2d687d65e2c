package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careermentor/mentor-hub/internal/domain/progress"
	"github.com/careermentor/mentor-hub/internal/domain/shared"
	"github.com/careermentor/mentor-hub/pkg/timeutil"
)

func TestGetMigrations_Ordered(t *testing.T) {
	migs := GetMigrations()
	require.NotEmpty(t, migs)
	for i, m := range migs {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpSQL, m.Name)
		assert.NotEmpty(t, m.DownSQL, m.Name)
	}
}

// Runs against a live database only when DATABASE_TEST_URL is set.
func TestProfileRepository_Live(t *testing.T) {
	url := os.Getenv("DATABASE_TEST_URL")
	if url == "" {
		t.Skip("DATABASE_TEST_URL not set")
	}

	ctx := context.Background()
	conn, err := NewConnectionFromURL(ctx, url, PoolSettings{MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	require.NoError(t, NewMigrator(conn).Migrate(ctx))

	repo := NewProfileRepository(conn)
	now := timeutil.DateTime(2025, 1, 1, 9, 0, 0)
	userID := "pg-test-user"
	_ = repo.Delete(ctx, userID)

	require.NoError(t, repo.Create(ctx, progress.NewProfileSnapshot(userID, now)))
	assert.True(t, errors.Is(repo.Create(ctx, progress.NewProfileSnapshot(userID, now)), shared.ErrProfileAlreadyExists))

	a, err := repo.Get(ctx, userID)
	require.NoError(t, err)
	stale, err := repo.Get(ctx, userID)
	require.NoError(t, err)

	out, err := progress.NewOrchestrator(nil, progress.WithClock(timeutil.FixedClock(now))).
		ProcessActivity(a, progress.ActivityEvent{ID: "act-1", Kind: progress.ActivityCourse, CompletedAt: now})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, out.Snapshot))
	assert.Equal(t, int64(2), out.Snapshot.Version)

	assert.True(t, errors.Is(repo.Save(ctx, stale), shared.ErrProfileVersionStale))

	history, err := repo.ListProcessed(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "act-1", history[0].ActivityID)

	require.NoError(t, repo.Delete(ctx, userID))
	_, err = repo.Get(ctx, userID)
	assert.True(t, shared.IsNotFound(err))
}

func TestTail(t *testing.T) {
	entries := []progress.EarnedAchievement{{ID: "a"}, {ID: "b"}}
	assert.Equal(t, entries, tail(entries, 0))
	assert.Equal(t, entries[1:], tail(entries, 1))
	assert.Nil(t, tail(entries, 2))
	assert.Nil(t, tail(entries, 7))
}
