package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/careermentor/mentor-hub/pkg/timeutil"
)

func TestUpdateStreak_FirstActivity(t *testing.T) {
	rec := UpdateStreak(NewStreakRecord(), timeutil.DateTime(2025, 1, 1, 10, 0, 0))

	assert.Equal(t, 1, rec.CurrentStreak)
	assert.Equal(t, 1, rec.LongestStreak)
	assert.Equal(t, StreakDaily, rec.StreakType)
	assert.Equal(t, DefaultStreakGoal, rec.StreakGoal)
}

func TestUpdateStreak_DayArithmetic(t *testing.T) {
	jan1 := timeutil.DateTime(2025, 1, 1, 9, 0, 0)
	rec := UpdateStreak(NewStreakRecord(), jan1)

	t.Run("next day increments", func(t *testing.T) {
		next := UpdateStreak(rec, timeutil.DateTime(2025, 1, 2, 23, 0, 0))
		assert.Equal(t, 2, next.CurrentStreak)
		assert.Equal(t, 2, next.LongestStreak)
	})

	t.Run("same day unchanged", func(t *testing.T) {
		same := UpdateStreak(rec, timeutil.DateTime(2025, 1, 1, 23, 59, 0))
		assert.Equal(t, rec, same)
	})

	t.Run("gap resets to one", func(t *testing.T) {
		jan2 := UpdateStreak(rec, timeutil.Date(2025, 1, 2))
		jan5 := UpdateStreak(jan2, timeutil.Date(2025, 1, 5))
		assert.Equal(t, 1, jan5.CurrentStreak)
		assert.Equal(t, 2, jan5.LongestStreak)
		assert.Equal(t, timeutil.Date(2025, 1, 5), jan5.LastActivityDate)
	})

	t.Run("out of order resets to one", func(t *testing.T) {
		jan3 := UpdateStreak(UpdateStreak(rec, timeutil.Date(2025, 1, 2)), timeutil.Date(2025, 1, 3))
		back := UpdateStreak(jan3, timeutil.Date(2024, 12, 30))
		assert.Equal(t, 1, back.CurrentStreak)
		assert.Equal(t, 3, back.LongestStreak)
	})

	t.Run("input not mutated", func(t *testing.T) {
		before := rec
		_ = UpdateStreak(rec, timeutil.Date(2025, 1, 2))
		assert.Equal(t, before, rec)
	})
}

func TestUpdateStreak_UTCBoundary(t *testing.T) {
	plus5 := time.FixedZone("UTC+5", 5*60*60)
	// Both moments are on 2025-01-02 local time but on different UTC days.
	first := time.Date(2025, 1, 2, 3, 0, 0, 0, plus5)  // 2025-01-01 22:00 UTC
	second := time.Date(2025, 1, 2, 6, 0, 0, 0, plus5) // 2025-01-02 01:00 UTC

	rec := UpdateStreak(UpdateStreak(NewStreakRecord(), first), second)
	assert.Equal(t, 2, rec.CurrentStreak)
}

func TestUpdateStreak_LongestNeverBelowCurrent(t *testing.T) {
	rec := NewStreakRecord()
	day := timeutil.Date(2025, 3, 1)
	for i := 0; i < 40; i++ {
		// skip every 9th day
		if i%9 == 8 {
			day = day.AddDate(0, 0, 2)
		} else {
			day = day.AddDate(0, 0, 1)
		}
		rec = UpdateStreak(rec, day)
		assert.GreaterOrEqual(t, rec.LongestStreak, rec.CurrentStreak)
	}
}

func TestUpdateStreak_Weekly(t *testing.T) {
	rec := NewWeeklyStreakRecord(4)

	rec = UpdateStreak(rec, timeutil.Date(2025, 1, 6))  // Monday, week 2
	rec = UpdateStreak(rec, timeutil.Date(2025, 1, 12)) // Sunday, same week
	assert.Equal(t, 1, rec.CurrentStreak)

	rec = UpdateStreak(rec, timeutil.Date(2025, 1, 13)) // next week
	assert.Equal(t, 2, rec.CurrentStreak)

	rec = UpdateStreak(rec, timeutil.Date(2025, 1, 30)) // skipped a week
	assert.Equal(t, 1, rec.CurrentStreak)
	assert.Equal(t, 2, rec.LongestStreak)
}

func TestStreakStatus(t *testing.T) {
	rec := UpdateStreak(NewStreakRecord(), timeutil.Date(2025, 1, 1))

	today := rec.Status(timeutil.DateTime(2025, 1, 1, 20, 0, 0))
	assert.True(t, today.Active)
	assert.Equal(t, 2, today.UnitsUntilBreak)

	tomorrow := rec.Status(timeutil.Date(2025, 1, 2))
	assert.True(t, tomorrow.Active)
	assert.Equal(t, 1, tomorrow.UnitsUntilBreak)

	later := rec.Status(timeutil.Date(2025, 1, 4))
	assert.False(t, later.Active)
	assert.Zero(t, later.EffectiveStreak)

	assert.Equal(t, StreakStatus{}, NewStreakRecord().Status(timeutil.Date(2025, 1, 1)))
}

func TestStreakRecord_IsMilestone(t *testing.T) {
	assert.False(t, StreakRecord{CurrentStreak: 0}.IsMilestone())
	assert.False(t, StreakRecord{CurrentStreak: 6}.IsMilestone())
	assert.True(t, StreakRecord{CurrentStreak: 7}.IsMilestone())
	assert.True(t, StreakRecord{CurrentStreak: 14}.IsMilestone())
}
