package progress

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careermentor/mentor-hub/internal/domain/notification"
	"github.com/careermentor/mentor-hub/internal/domain/shared"
	"github.com/careermentor/mentor-hub/pkg/timeutil"
)

func newTestOrchestrator(now time.Time) *Orchestrator {
	return NewOrchestrator(DefaultRegistry(), WithClock(timeutil.FixedClock(now)))
}

func course(id string, at time.Time) ActivityEvent {
	return ActivityEvent{
		ID:          id,
		ResourceID:  "res-" + id,
		Title:       "Intro to Go",
		Kind:        ActivityCourse,
		CompletedAt: at,
	}
}

func TestProcessActivity_FreshProfileFirstCourse(t *testing.T) {
	day1 := timeutil.DateTime(2025, 1, 1, 10, 0, 0)
	orch := newTestOrchestrator(day1)
	snap := NewProfileSnapshot("user-1", day1)

	out, err := orch.ProcessActivity(snap, course("act-1", day1))
	require.NoError(t, err)

	assert.Equal(t, XP(50), out.XPAwarded)
	require.Len(t, out.NewAchievements, 1)
	assert.Equal(t, AchievementFirstCourse, out.NewAchievements[0].ID)
	assert.Equal(t, XP(50), out.AchievementXP)
	assert.Empty(t, out.NewlyCompletedMilestones)
	assert.False(t, out.LeveledUp)
	assert.Zero(t, out.NewLevel)
	assert.Equal(t, 1, out.UpdatedStreak.CurrentStreak)

	committed := out.Snapshot
	assert.Equal(t, XP(100), committed.ExperiencePoints)
	assert.Equal(t, 2, LevelOf(committed.ExperiencePoints).CurrentLevel)
	assert.Equal(t, 2, committed.Level)
	assert.Equal(t, 1, committed.LearningActivitiesCount)
	assert.True(t, committed.HasProcessedActivity("act-1"))
	assert.Equal(t, snap.Version, committed.Version)

	// Input snapshot is untouched.
	assert.Equal(t, XP(0), snap.ExperiencePoints)
	assert.Empty(t, snap.EarnedAchievements)
	assert.Empty(t, snap.ActivityLog)

	types := make([]notification.NotificationType, 0, len(out.Notifications))
	for _, n := range out.Notifications {
		require.NoError(t, n.Validate())
		types = append(types, n.Type)
	}
	assert.Equal(t, []notification.NotificationType{notification.TypeAchievement, notification.TypeLevelUp}, types)
}

func TestProcessActivity_RewardsCrossingLevelSettleInSameStep(t *testing.T) {
	day1 := timeutil.DateTime(2025, 1, 1, 10, 0, 0)
	orch := newTestOrchestrator(day1)
	snap := NewProfileSnapshot("user-1", day1)
	snap.ExperiencePoints = 900

	out, err := orch.ProcessActivity(snap, course("act-1", day1))
	require.NoError(t, err)

	// 900 + 50 (course) + 50 (first_course) reaches level 5, which unlocks level_5 (+100).
	ids := make([]AchievementID, 0, len(out.NewAchievements))
	for _, ea := range out.NewAchievements {
		ids = append(ids, ea.ID)
	}
	assert.Equal(t, []AchievementID{AchievementFirstCourse, AchievementLevel5}, ids)
	assert.Equal(t, XP(150), out.AchievementXP)

	committed := out.Snapshot
	assert.Equal(t, XP(1100), committed.ExperiencePoints)
	assert.Equal(t, 5, committed.Level)
	assert.True(t, committed.HasAchievement(AchievementLevel5))

	// Ledger channel excludes achievement rewards: 950 XP is still level 4.
	assert.False(t, out.LeveledUp)

	// Nothing is left to unlock on the committed snapshot.
	assert.Empty(t, orch.achievements.Evaluate(committed, ActivityCompleted(course("act-1", day1))))
	assert.Empty(t, orch.milestones.Evaluate(committed))
}

func TestProcessActivity_SnapshotDiff(t *testing.T) {
	day1 := timeutil.DateTime(2025, 1, 1, 10, 0, 0)
	orch := newTestOrchestrator(day1)
	snap := NewProfileSnapshot("user-1", day1)

	act := course("act-1", day1)
	act.SkillsGained = []string{"go"}
	out, err := orch.ProcessActivity(snap, act)
	require.NoError(t, err)

	want := snap.Clone()
	want.ExperiencePoints = 100
	want.Level = 2
	want.Streak = StreakRecord{CurrentStreak: 1, LongestStreak: 1, LastActivityDate: day1, StreakType: StreakDaily, StreakGoal: 7}
	want.EarnedAchievements = []EarnedAchievement{{ID: AchievementFirstCourse, EarnedAt: day1}}
	want.SkillProgress = map[string]SkillLevel{"go": SkillBeginner}
	want.LearningActivitiesCount = 1
	want.ActivityLog = []ActivityLogEntry{{ID: "act-1", ResourceID: "res-act-1", Kind: ActivityCourse, CompletedAt: day1, XPAwarded: 50}}

	if diff := cmp.Diff(want, out.Snapshot); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessActivity_XPByKind(t *testing.T) {
	now := timeutil.Date(2025, 1, 1)
	tests := []struct {
		kind ActivityKind
		want XP
	}{
		{ActivityCourse, 50},
		{ActivityCertification, 150},
		{ActivityProject, 100},
		{ActivityBook, 50},
		{ActivityKind("podcast"), 50},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			orch := newTestOrchestrator(now)
			out, err := orch.ProcessActivity(NewProfileSnapshot("u", now), ActivityEvent{ID: "x", Kind: tt.kind, CompletedAt: now})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.XPAwarded)
		})
	}
}

func TestProcessActivity_Rejections(t *testing.T) {
	now := timeutil.Date(2025, 1, 1)
	orch := newTestOrchestrator(now)
	snap := NewProfileSnapshot("u", now)

	t.Run("invalid activity", func(t *testing.T) {
		_, err := orch.ProcessActivity(snap, ActivityEvent{ID: "", Kind: ActivityCourse, CompletedAt: now})
		assert.True(t, errors.Is(err, shared.ErrInvalidActivity))
		assert.True(t, shared.IsValidation(err))

		bad := 7
		_, err = orch.ProcessActivity(snap, ActivityEvent{ID: "r", Kind: ActivityCourse, CompletedAt: now, Rating: &bad})
		assert.True(t, errors.Is(err, shared.ErrInvalidActivity))

		_, err = orch.ProcessActivity(snap, ActivityEvent{ID: "k", CompletedAt: now})
		assert.True(t, errors.Is(err, shared.ErrInvalidActivity))
	})

	t.Run("duplicate activity", func(t *testing.T) {
		out, err := orch.ProcessActivity(snap, course("dup", now))
		require.NoError(t, err)

		_, err = orch.ProcessActivity(out.Snapshot, course("dup", now))
		assert.True(t, errors.Is(err, shared.ErrActivityAlreadyProcessed))
		assert.True(t, errors.Is(err, shared.ErrAlreadyProcessed))
	})

	t.Run("nil snapshot", func(t *testing.T) {
		_, err := orch.ProcessActivity(nil, course("n", now))
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})
}

func TestProcessActivity_AchievementsNeverRepeat(t *testing.T) {
	start := timeutil.Date(2025, 1, 1)
	orch := newTestOrchestrator(start)
	snap := NewProfileSnapshot("u", start)

	for i := 0; i < 5; i++ {
		out, err := orch.ProcessActivity(snap, course(fmt.Sprintf("c-%d", i), start.AddDate(0, 0, i)))
		require.NoError(t, err)
		if i > 0 {
			for _, ea := range out.NewAchievements {
				assert.NotEqual(t, AchievementFirstCourse, ea.ID)
			}
		}
		snap = out.Snapshot
	}

	count := 0
	for _, ea := range snap.EarnedAchievements {
		if ea.ID == AchievementFirstCourse {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestProcessActivity_WeekStreakNotification(t *testing.T) {
	start := timeutil.Date(2025, 1, 1)
	orch := newTestOrchestrator(start)
	snap := NewProfileSnapshot("u", start)

	var last *ActivityOutcome
	for i := 0; i < 7; i++ {
		out, err := orch.ProcessActivity(snap, ActivityEvent{
			ID: fmt.Sprintf("p-%d", i), Kind: ActivityPractice, CompletedAt: start.AddDate(0, 0, i),
		})
		require.NoError(t, err)
		snap = out.Snapshot
		last = out
	}

	assert.Equal(t, 7, last.UpdatedStreak.CurrentStreak)

	var streakNote *notification.Notification
	for i := range last.Notifications {
		if last.Notifications[i].Type == notification.TypeStreak {
			streakNote = &last.Notifications[i]
		}
	}
	require.NotNil(t, streakNote)
	assert.Equal(t, 7, *streakNote.Streak)
	assert.True(t, snap.HasAchievement(AchievementStreak7))

	// Same day again: streak unchanged, no second streak notification.
	out, err := orch.ProcessActivity(snap, ActivityEvent{ID: "again", Kind: ActivityPractice, CompletedAt: start.AddDate(0, 0, 6)})
	require.NoError(t, err)
	for _, n := range out.Notifications {
		assert.NotEqual(t, notification.TypeStreak, n.Type)
	}
}

func TestProcessActivity_MilestoneCompletion(t *testing.T) {
	start := timeutil.Date(2025, 1, 1)
	orch := newTestOrchestrator(start)
	snap := NewProfileSnapshot("u", start)

	// Five activities on three consecutive days complete "learning_momentum".
	days := []int{0, 0, 1, 2, 2}
	var completed []CompletedMilestone
	for i, d := range days {
		out, err := orch.ProcessActivity(snap, ActivityEvent{
			ID: fmt.Sprintf("v-%d", i), Kind: ActivityVideo, CompletedAt: start.AddDate(0, 0, d),
		})
		require.NoError(t, err)
		completed = append(completed, out.NewlyCompletedMilestones...)
		snap = out.Snapshot

		if i == len(days)-1 {
			require.Len(t, out.NewlyCompletedMilestones, 1)
			assert.Equal(t, XP(200), out.MilestoneXP)
			assert.Equal(t, XP(50+200), out.TotalXPGained()-out.AchievementXP)
		}
	}

	require.Len(t, completed, 1)
	assert.Equal(t, "learning_momentum", completed[0].MilestoneID)

	m, ok := snap.MilestoneByID("learning_momentum")
	require.True(t, ok)
	assert.True(t, m.IsCompleted)
	require.NotNil(t, m.CompletedAt)
	assert.True(t, snap.HasAchievement("milestone_learning_momentum"))

	// Monotonic: never re-completed.
	out, err := orch.ProcessActivity(snap, ActivityEvent{ID: "v-extra", Kind: ActivityVideo, CompletedAt: start.AddDate(0, 0, 3)})
	require.NoError(t, err)
	assert.Empty(t, out.NewlyCompletedMilestones)

	next, ok := NextMilestone(out.Snapshot)
	require.True(t, ok)
	assert.Equal(t, "launch", next.ID)
}

func TestProcessTrigger(t *testing.T) {
	now := timeutil.Date(2025, 2, 1)
	orch := newTestOrchestrator(now)
	snap := NewProfileSnapshot("u", now)

	t.Run("career selected then resume attached completes launch", func(t *testing.T) {
		out, err := orch.ProcessTrigger(snap, CareerPathSelected("backend"))
		require.NoError(t, err)
		require.Len(t, out.NewAchievements, 1)
		assert.Equal(t, AchievementCareerSelected, out.NewAchievements[0].ID)
		assert.Equal(t, "backend", out.Snapshot.SelectedCareerPath)
		assert.Empty(t, out.NewlyCompletedMilestones)

		attached := true
		out, err = orch.ProcessTrigger(out.Snapshot, ProfileUpdated(ProfileUpdate{ResumeAttached: &attached}))
		require.NoError(t, err)
		require.Len(t, out.NewlyCompletedMilestones, 1)
		assert.Equal(t, "launch", out.NewlyCompletedMilestones[0].MilestoneID)
		assert.Equal(t, XP(100), out.MilestoneXP)
		assert.True(t, out.LeveledUp)
		assert.Equal(t, 2, out.NewLevel)
		assert.Equal(t, XP(50+100), out.Snapshot.ExperiencePoints)
	})

	t.Run("chat milestone", func(t *testing.T) {
		out, err := orch.ProcessTrigger(snap, ChatMilestoneReached(10))
		require.NoError(t, err)
		require.Len(t, out.NewAchievements, 1)
		assert.Equal(t, AchievementChatStarter, out.NewAchievements[0].ID)
		assert.Equal(t, 10, out.Snapshot.ChatMessageCount)
	})

	t.Run("xp awarded", func(t *testing.T) {
		out, err := orch.ProcessTrigger(snap, XPAwarded(300, "mentor bonus"))
		require.NoError(t, err)
		assert.Equal(t, XP(300), out.XPAwarded)
		assert.True(t, out.LeveledUp)
		assert.Equal(t, 3, out.NewLevel)
		assert.Equal(t, XP(300), out.Snapshot.ExperiencePoints)
	})

	t.Run("invalid trigger", func(t *testing.T) {
		_, err := orch.ProcessTrigger(snap, XPAwarded(-1, "oops"))
		assert.True(t, errors.Is(err, shared.ErrInvalidTrigger))

		_, err = orch.ProcessTrigger(snap, Trigger{Kind: "teleport"})
		assert.True(t, errors.Is(err, shared.ErrInvalidTrigger))

		bad := 120
		_, err = orch.ProcessTrigger(snap, ProfileUpdated(ProfileUpdate{RoadmapProgress: &bad}))
		assert.True(t, errors.Is(err, shared.ErrInvalidTrigger))
	})

	t.Run("activity trigger delegates", func(t *testing.T) {
		out, err := orch.ProcessTrigger(snap, ActivityCompleted(course("t-1", now)))
		require.NoError(t, err)
		assert.Equal(t, XP(50), out.XPAwarded)
		assert.True(t, out.Snapshot.HasProcessedActivity("t-1"))
	})
}

func TestOrchestrator_CustomIDs(t *testing.T) {
	now := timeutil.Date(2025, 1, 1)
	n := 0
	orch := NewOrchestrator(DefaultRegistry(),
		WithClock(timeutil.FixedClock(now)),
		WithIDGenerator(func() notification.NotificationID {
			n++
			return notification.NotificationID(fmt.Sprintf("id-%d", n))
		}),
	)

	out, err := orch.ProcessActivity(NewProfileSnapshot("u", now), course("a", now))
	require.NoError(t, err)
	require.Len(t, out.Notifications, 2)
	assert.Equal(t, notification.NotificationID("id-1"), out.Notifications[0].ID)
	assert.Equal(t, notification.NotificationID("id-2"), out.Notifications[1].ID)
}
