package progress

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careermentor/mentor-hub/internal/domain/shared"
)

func TestLevelOf(t *testing.T) {
	tests := []struct {
		xp        XP
		level     int
		toNext    XP
		required  XP
		title     string
		progressP int
	}{
		{0, 1, 100, 100, "Career Novice", 0},
		{50, 1, 50, 100, "Career Novice", 50},
		{99, 1, 1, 100, "Career Novice", 99},
		{100, 2, 150, 250, "Career Novice", 0},
		{250, 3, 250, 500, "Career Explorer", 0},
		{999, 4, 1, 1000, "Career Explorer", 99},
		{1000, 5, 750, 1750, "Career Builder", 0},
		{4000, 8, 1500, 5500, "Career Strategist", 0},
		{7499, 9, 1, 7500, "Career Master", 99},
		{7500, 10, 0, 7500, "Career Master", 100},
		{1_000_000, 10, 0, 7500, "Career Master", 100},
	}

	for _, tt := range tests {
		info := LevelOf(tt.xp)
		assert.Equal(t, tt.level, info.CurrentLevel, "level for %d", tt.xp)
		assert.Equal(t, tt.toNext, info.XPToNextLevel, "to next for %d", tt.xp)
		assert.Equal(t, tt.required, info.TotalXPRequired, "required for %d", tt.xp)
		assert.Equal(t, tt.title, info.LevelTitle, "title for %d", tt.xp)
		assert.Equal(t, tt.progressP, info.ProgressPercent, "progress for %d", tt.xp)
		assert.Equal(t, tt.xp, info.CurrentXP)
	}
}

func TestLevelOf_Monotone(t *testing.T) {
	prev := LevelOf(0).CurrentLevel
	for xp := XP(1); xp <= 8000; xp++ {
		cur := LevelOf(xp).CurrentLevel
		require.GreaterOrEqual(t, cur, prev, "level decreased at %d", xp)
		prev = cur
	}
}

func TestLevelOf_NegativeTreatedAsZero(t *testing.T) {
	assert.Equal(t, LevelOf(0), LevelOf(-10))
}

func TestLevelTitle_Pairs(t *testing.T) {
	assert.Equal(t, "Career Novice", LevelTitle(2))
	assert.Equal(t, "Career Explorer", LevelTitle(3))
	assert.Equal(t, "Career Builder", LevelTitle(6))
	assert.Equal(t, "Career Strategist", LevelTitle(7))
	assert.Equal(t, "Career Master", LevelTitle(11))
	assert.Equal(t, "Career Novice", LevelTitle(0))
}

func TestAward(t *testing.T) {
	t.Run("within level", func(t *testing.T) {
		res, err := Award(0, 50)
		require.NoError(t, err)
		assert.Equal(t, XP(50), res.NewXP)
		assert.False(t, res.LeveledUp)
		assert.Zero(t, res.NewLevel)
	})

	t.Run("crosses threshold", func(t *testing.T) {
		res, err := Award(0, 150)
		require.NoError(t, err)
		assert.Equal(t, XP(150), res.NewXP)
		assert.True(t, res.LeveledUp)
		assert.Equal(t, 2, res.NewLevel)
	})

	t.Run("skips levels", func(t *testing.T) {
		res, err := Award(90, 1000)
		require.NoError(t, err)
		assert.True(t, res.LeveledUp)
		assert.Equal(t, 5, res.NewLevel)
	})

	t.Run("zero amount", func(t *testing.T) {
		res, err := Award(100, 0)
		require.NoError(t, err)
		assert.Equal(t, XP(100), res.NewXP)
		assert.False(t, res.LeveledUp)
	})

	t.Run("negative amount", func(t *testing.T) {
		_, err := Award(100, -1)
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrInvalidAward))
		assert.True(t, errors.Is(err, shared.ErrNegativeValue))

		var de *shared.DomainError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, "progress", de.Domain)
	})

	t.Run("overflow", func(t *testing.T) {
		_, err := Award(100, XP(math.MaxInt64))
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrInvalidAward))

		res, err := Award(0, XP(math.MaxInt64))
		require.NoError(t, err)
		assert.Equal(t, XP(math.MaxInt64), res.NewXP)
	})
}
