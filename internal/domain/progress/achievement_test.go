package progress

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careermentor/mentor-hub/internal/domain/shared"
	"github.com/careermentor/mentor-hub/pkg/timeutil"
)

func TestDefaultRegistry_IsValid(t *testing.T) {
	reg := DefaultRegistry()
	assert.Equal(t, len(DefaultAchievements()), reg.Len())

	def, ok := reg.Get(AchievementFirstCourse)
	require.True(t, ok)
	assert.Equal(t, XP(50), def.XPReward)
	assert.Equal(t, CategoryLearning, def.Category)

	require.NoError(t, ValidateMilestones(DefaultMilestones(), reg))
}

func TestNewRegistry_Validation(t *testing.T) {
	valid := AchievementDefinition{
		ID: "a", Title: "A", Category: CategoryLearning, Rarity: RarityCommon,
		Requirements: Reqs("skill_expert"),
	}

	t.Run("duplicate id", func(t *testing.T) {
		_, err := NewRegistry([]AchievementDefinition{valid, valid})
		assert.True(t, errors.Is(err, shared.ErrDuplicateAchievementID))
	})

	t.Run("bad category", func(t *testing.T) {
		bad := valid
		bad.Category = "fame"
		_, err := NewRegistry([]AchievementDefinition{bad})
		assert.True(t, errors.Is(err, shared.ErrInvalidDefinition))
	})

	t.Run("bad rarity", func(t *testing.T) {
		bad := valid
		bad.Rarity = "mythic"
		_, err := NewRegistry([]AchievementDefinition{bad})
		assert.True(t, errors.Is(err, shared.ErrInvalidDefinition))
	})

	t.Run("negative reward", func(t *testing.T) {
		bad := valid
		bad.XPReward = -5
		_, err := NewRegistry([]AchievementDefinition{bad})
		assert.True(t, errors.Is(err, shared.ErrInvalidDefinition))
	})

	t.Run("no requirements", func(t *testing.T) {
		bad := valid
		bad.Requirements = nil
		_, err := NewRegistry([]AchievementDefinition{bad})
		assert.True(t, errors.Is(err, shared.ErrInvalidDefinition))
	})
}

func TestAchievementEngine_Evaluate(t *testing.T) {
	now := timeutil.DateTime(2025, 1, 1, 12, 0, 0)
	engine := NewAchievementEngine(DefaultRegistry(), timeutil.FixedClock(now))
	snap := NewProfileSnapshot("u1", now)

	course := ActivityEvent{ID: "a1", Kind: ActivityCourse, CompletedAt: now}
	earned := engine.Evaluate(snap, ActivityCompleted(course))

	require.Len(t, earned, 1)
	assert.Equal(t, AchievementFirstCourse, earned[0].ID)
	assert.Equal(t, now, earned[0].EarnedAt)

	t.Run("idempotent once earned", func(t *testing.T) {
		after := snap.Clone()
		after.EarnedAchievements = append(after.EarnedAchievements, earned...)
		assert.Empty(t, engine.Evaluate(after, ActivityCompleted(course)))
	})

	t.Run("declaration order", func(t *testing.T) {
		s := snap.Clone()
		s.SelectedCareerPath = "backend"
		s.RoadmapGenerated = true
		s.SkillGapAnalysisDone = true

		got := engine.Evaluate(s, ProfileUpdated(ProfileUpdate{}))
		ids := make([]AchievementID, 0, len(got))
		for _, ea := range got {
			ids = append(ids, ea.ID)
		}
		assert.Equal(t, []AchievementID{
			AchievementCareerSelected,
			AchievementRoadmapGenerated,
			AchievementSkillGapAnalysis,
		}, ids)
	})
}

func TestValidateMilestones(t *testing.T) {
	reg := DefaultRegistry()
	base := DefaultMilestones()

	t.Run("reward collides with registry", func(t *testing.T) {
		ms := append([]Milestone{}, base...)
		ms[0].Reward.ID = AchievementFirstCourse
		err := ValidateMilestones(ms, reg)
		assert.True(t, errors.Is(err, shared.ErrDuplicateAchievementID))
	})

	t.Run("duplicate milestone id", func(t *testing.T) {
		ms := append([]Milestone{}, base...)
		ms[1].ID = ms[0].ID
		err := ValidateMilestones(ms, reg)
		assert.True(t, errors.Is(err, shared.ErrDuplicateAchievementID))
	})

	t.Run("trigger-only requirement", func(t *testing.T) {
		ms := append([]Milestone{}, base...)
		ms[0].Requirements = Reqs("activity_type:course")
		err := ValidateMilestones(ms, reg)
		assert.True(t, errors.Is(err, shared.ErrInvalidDefinition))
	})
}
