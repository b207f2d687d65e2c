package progress

import (
	"time"

	"github.com/careermentor/mentor-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK (Серия активных дней)
// ══════════════════════════════════════════════════════════════════════════════

// StreakType - единица серии.
type StreakType string

const (
	// StreakDaily - серия по календарным дням (UTC).
	StreakDaily StreakType = "daily"
	// StreakWeekly - серия по ISO-неделям (понедельник, UTC).
	StreakWeekly StreakType = "weekly"
)

// DefaultStreakGoal - цель серии по умолчанию.
const DefaultStreakGoal = 7

// StreakRecord представляет серию активности.
// Инвариант: LongestStreak >= CurrentStreak.
type StreakRecord struct {
	// CurrentStreak - текущая серия.
	CurrentStreak int `json:"current_streak"`

	// LongestStreak - лучшая серия.
	LongestStreak int `json:"longest_streak"`

	// LastActivityDate - время последней учтённой активности (нулевое, если не было).
	LastActivityDate time.Time `json:"last_activity_date"`

	// StreakType - дневная или недельная серия.
	StreakType StreakType `json:"streak_type"`

	// StreakGoal - цель серии (> 0).
	StreakGoal int `json:"streak_goal"`
}

// NewStreakRecord создаёт пустую дневную серию с целью по умолчанию.
func NewStreakRecord() StreakRecord {
	return StreakRecord{
		StreakType: StreakDaily,
		StreakGoal: DefaultStreakGoal,
	}
}

// NewWeeklyStreakRecord создаёт пустую недельную серию.
func NewWeeklyStreakRecord(goal int) StreakRecord {
	if goal <= 0 {
		goal = DefaultStreakGoal
	}
	return StreakRecord{
		StreakType: StreakWeekly,
		StreakGoal: goal,
	}
}

// delta возвращает разницу в единицах серии между двумя моментами.
func (r StreakRecord) delta(from, to time.Time) int {
	if r.StreakType == StreakWeekly {
		return timeutil.WeekDelta(from, to)
	}
	return timeutil.DayDelta(from, to)
}

// UpdateStreak учитывает активность в момент at и возвращает новую запись.
// Исходная запись не изменяется.
func UpdateStreak(rec StreakRecord, at time.Time) StreakRecord {
	next := rec
	if next.StreakGoal <= 0 {
		next.StreakGoal = DefaultStreakGoal
	}
	if next.StreakType == "" {
		next.StreakType = StreakDaily
	}

	// Первая активность
	if rec.LastActivityDate.IsZero() {
		next.CurrentStreak = 1
		next.LastActivityDate = at.UTC()
		if next.LongestStreak < 1 {
			next.LongestStreak = 1
		}
		return next
	}

	switch next.delta(rec.LastActivityDate, at) {
	case 0:
		// Тот же день - ничего не меняем
		return next
	case 1:
		// Следующий день - продолжаем серию
		next.CurrentStreak++
	default:
		// Пропуск или активность "в прошлом" - серия начинается заново
		next.CurrentStreak = 1
	}

	next.LastActivityDate = at.UTC()
	if next.CurrentStreak > next.LongestStreak {
		next.LongestStreak = next.CurrentStreak
	}
	return next
}

// GoalReached возвращает true, если текущая серия достигла цели.
func (r StreakRecord) GoalReached() bool {
	return r.StreakGoal > 0 && r.CurrentStreak >= r.StreakGoal
}

// IsMilestone возвращает true, если серия - положительное кратное 7.
func (r StreakRecord) IsMilestone() bool {
	return r.CurrentStreak > 0 && r.CurrentStreak%7 == 0
}

// StreakStatus - состояние серии на момент now (для дашборда).
type StreakStatus struct {
	// Active - серия ещё не прервана.
	Active bool `json:"active"`

	// EffectiveStreak - текущая серия с учётом пропусков (0, если прервана).
	EffectiveStreak int `json:"effective_streak"`

	// UnitsUntilBreak - сколько дней (недель) осталось до сброса серии.
	// 2 - активность уже была сегодня, 1 - нужно быть активным сегодня, 0 - серия сброшена.
	UnitsUntilBreak int `json:"units_until_break"`

	// GoalReached - цель серии достигнута.
	GoalReached bool `json:"goal_reached"`
}

// Status вычисляет состояние серии на момент now.
func (r StreakRecord) Status(now time.Time) StreakStatus {
	if r.LastActivityDate.IsZero() || r.CurrentStreak == 0 {
		return StreakStatus{}
	}

	status := StreakStatus{GoalReached: r.GoalReached()}

	switch r.delta(r.LastActivityDate, now) {
	case 0:
		status.Active = true
		status.EffectiveStreak = r.CurrentStreak
		status.UnitsUntilBreak = 2
	case 1:
		status.Active = true
		status.EffectiveStreak = r.CurrentStreak
		status.UnitsUntilBreak = 1
	default:
		status.GoalReached = false
	}

	return status
}
