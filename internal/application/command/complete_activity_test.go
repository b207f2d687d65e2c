package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careermentor/mentor-hub/config"
	"github.com/careermentor/mentor-hub/internal/domain/notification"
	"github.com/careermentor/mentor-hub/internal/domain/progress"
	"github.com/careermentor/mentor-hub/internal/domain/shared"
	"github.com/careermentor/mentor-hub/internal/infrastructure/persistence/memory"
)

func TestCompleteActivity_FreshProfileFirstCourse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.initProfile(t, "user-1")

	res, err := NewCompleteActivityHandler(f.deps).Handle(ctx, CompleteActivityCommand{
		UserID:        "user-1",
		Activity:      course("act-1", day1),
		CorrelationID: "corr-1",
	})
	require.NoError(t, err)

	assert.False(t, res.Duplicate)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, int64(2), res.Version)
	assert.Equal(t, progress.XP(50), res.Outcome.XPAwarded)
	assert.False(t, res.Outcome.LeveledUp)
	require.Len(t, res.Outcome.NewAchievements, 1)
	assert.Equal(t, progress.AchievementFirstCourse, res.Outcome.NewAchievements[0].ID)

	stored, err := f.store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, progress.XP(100), stored.ExperiencePoints)
	assert.Equal(t, 2, stored.Level)
	assert.Equal(t, int64(2), stored.Version)

	require.Len(t, res.Notifications, 2)
	assert.Equal(t, notification.TypeAchievement, res.Notifications[0].Type)
	assert.Equal(t, notification.TypeLevelUp, res.Notifications[1].Type)

	assert.Equal(t, []shared.EventType{
		shared.EventActivityCompleted,
		shared.EventXPGained,
		shared.EventAchievementUnlocked,
		shared.EventLevelUp,
		shared.EventStreakUpdated,
		shared.EventNotificationRaised,
		shared.EventNotificationRaised,
	}, f.pub.types())
	assert.Equal(t, len(f.pub.events), res.EventsPublished)

	for _, e := range f.pub.events {
		c, ok := e.(interface{ Correlation() string })
		require.True(t, ok, "%T", e)
		assert.Equal(t, "corr-1", c.Correlation(), "%T", e)
	}

	xp := f.pub.events[1].(shared.XPGainedEvent)
	assert.Equal(t, int64(100), xp.Amount)
	assert.Equal(t, int64(100), xp.NewTotal)

	lvl := f.pub.events[3].(shared.LevelUpEvent)
	assert.Equal(t, 1, lvl.OldLevel)
	assert.Equal(t, 2, lvl.NewLevel)
}

func TestCompleteActivity_DuplicateIsNotCommitted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.initProfile(t, "user-1")
	h := NewCompleteActivityHandler(f.deps)

	_, err := h.Handle(ctx, CompleteActivityCommand{UserID: "user-1", Activity: course("act-1", day1)})
	require.NoError(t, err)
	f.pub.reset()

	res, err := h.Handle(ctx, CompleteActivityCommand{UserID: "user-1", Activity: course("act-1", day1)})
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Nil(t, res.Outcome)
	assert.Empty(t, f.pub.events)

	stored, err := f.store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
	assert.Equal(t, progress.XP(100), stored.ExperiencePoints)
}

func TestCompleteActivity_RetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	racing := &racingStore{Store: f.store, races: 2}
	f.deps.Store = racing
	f.initProfile(t, "user-1")

	res, err := NewCompleteActivityHandler(f.deps).Handle(ctx, CompleteActivityCommand{UserID: "user-1", Activity: course("act-1", day1)})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)

	stored, err := f.store.Get(ctx, "user-1")
	require.NoError(t, err)
	// Both competing writes survive because every retry reloads.
	assert.Equal(t, 2, stored.ChatMessageCount)
	assert.Equal(t, progress.XP(100), stored.ExperiencePoints)
	assert.Equal(t, int64(4), stored.Version)
}

func TestCompleteActivity_GivesUpAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	f.deps.Store = &racingStore{Store: f.store, races: 100}
	f.deps.MaxAttempts = 3
	f.initProfile(t, "user-1")

	_, err := NewCompleteActivityHandler(f.deps).Handle(context.Background(), CompleteActivityCommand{UserID: "user-1", Activity: course("act-1", day1)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrConcurrentModification))
	assert.True(t, shared.IsRetryable(err))
	assert.Empty(t, f.pub.events)
}

func TestCompleteActivity_StaleCacheIsRetriedFromStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cache := memory.NewCache()
	f.deps.Cache = cache
	f.initProfile(t, "user-1")

	h := NewCompleteActivityHandler(f.deps)
	stale, err := f.store.Get(ctx, "user-1")
	require.NoError(t, err)

	_, err = h.Handle(ctx, CompleteActivityCommand{UserID: "user-1", Activity: course("act-1", day1)})
	require.NoError(t, err)
	assert.Zero(t, cache.Len(), "commit invalidates the cache")

	require.NoError(t, cache.Set(ctx, stale))
	res, err := h.Handle(ctx, CompleteActivityCommand{UserID: "user-1", Activity: course("act-2", day1)})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, int64(3), res.Version)
	assert.True(t, res.Outcome.Snapshot.HasProcessedActivity("act-1"))
}

func TestCompleteActivity_FeatureFlags(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.initProfile(t, "user-1")
	require.NoError(t, f.flags.DisableFeature(config.FeatureNotifyLevelUp))
	f.flags.SetUserOverride("user-1", config.FeatureEventsPublish, false)

	res, err := NewCompleteActivityHandler(f.deps).Handle(ctx, CompleteActivityCommand{UserID: "user-1", Activity: course("act-1", day1)})
	require.NoError(t, err)

	require.Len(t, res.Notifications, 1)
	assert.Equal(t, notification.TypeAchievement, res.Notifications[0].Type)
	assert.Len(t, res.Outcome.Notifications, 2, "engine output is not filtered")
	assert.Zero(t, res.EventsPublished)
	assert.Empty(t, f.pub.events)
}

func TestCompleteActivity_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.initProfile(t, "user-1")
	h := NewCompleteActivityHandler(f.deps)

	_, err := h.Handle(ctx, CompleteActivityCommand{UserID: "  ", Activity: course("a", day1)})
	assert.True(t, shared.IsValidation(err), "%v", err)

	_, err = h.Handle(ctx, CompleteActivityCommand{UserID: "user-1", Activity: progress.ActivityEvent{Kind: progress.ActivityCourse, CompletedAt: day1}})
	assert.True(t, errors.Is(err, shared.ErrInvalidActivity), "%v", err)

	_, err = h.Handle(ctx, CompleteActivityCommand{UserID: "ghost", Activity: course("a", day1)})
	assert.True(t, errors.Is(err, shared.ErrProfileNotFound), "%v", err)

	assert.Error(t, CompleteActivityCommand{UserID: "user-1"}.Validate())
	assert.NoError(t, CompleteActivityCommand{UserID: "user-1", Activity: course("a", day1)}.Validate())
}

func TestCompleteActivities_Batch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	users := []string{"ann", "bob", "cyd"}
	for _, u := range users {
		f.initProfile(t, u)
	}

	var items []CompleteActivityCommand
	for i := 0; i < 4; i++ {
		for _, u := range users {
			items = append(items, CompleteActivityCommand{UserID: u, Activity: course(u+"-"+string(rune('a'+i)), day1)})
		}
	}
	items = append(items,
		CompleteActivityCommand{UserID: "ann", Activity: course("ann-a", day1)},
		CompleteActivityCommand{UserID: " ", Activity: course("x", day1)},
	)

	batch := NewCompleteActivitiesHandler(NewCompleteActivityHandler(f.deps), 2)
	res, err := batch.Handle(ctx, CompleteActivitiesCommand{Items: items})
	require.NoError(t, err)

	assert.Equal(t, 12, res.Succeeded)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Items, len(items))
	for i, item := range res.Items {
		assert.Equal(t, i, item.Index)
	}
	assert.True(t, res.Items[12].Result.Duplicate)
	assert.Error(t, res.Items[13].Err)

	for _, u := range users {
		snap, err := f.store.Get(ctx, u)
		require.NoError(t, err)
		// 4 courses at 50 XP plus first_course (+50).
		assert.Equal(t, progress.XP(250), snap.ExperiencePoints, u)
		assert.Equal(t, 4, snap.LearningActivitiesCount, u)
		assert.Equal(t, int64(5), snap.Version, u)
	}
}

func TestCompleteActivities_Cancelled(t *testing.T) {
	f := newFixture(t)
	f.initProfile(t, "ann")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := NewCompleteActivitiesHandler(NewCompleteActivityHandler(f.deps), 0)
	_, err := batch.Handle(ctx, CompleteActivitiesCommand{Items: []CompleteActivityCommand{
		{UserID: "ann", Activity: course("a", day1)},
	}})
	assert.ErrorIs(t, err, context.Canceled)
}
