package progress

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/careermentor/mentor-hub/internal/domain/notification"
	"github.com/careermentor/mentor-hub/internal/domain/shared"
	"github.com/careermentor/mentor-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ORCHESTRATOR
// Составляет один шаг прогресса: XP -> серия -> достижения -> вехи.
// ══════════════════════════════════════════════════════════════════════════════

// ActivityOutcome - результат обработки активности или триггера.
type ActivityOutcome struct {
	// XPAwarded - XP за саму активность (или прямое начисление xp_awarded).
	XPAwarded XP `json:"xp_awarded"`

	// NewAchievements - новые достижения реестра (без наград за вехи).
	NewAchievements []EarnedAchievement `json:"new_achievements"`

	// AchievementXP - суммарная награда за новые достижения.
	AchievementXP XP `json:"achievement_xp"`

	// NewlyCompletedMilestones - вехи, завершённые в этом шаге.
	NewlyCompletedMilestones []CompletedMilestone `json:"newly_completed_milestones"`

	// MilestoneXP - суммарная награда за вехи.
	MilestoneXP XP `json:"milestone_xp"`

	// LeveledUp - уровень вырос по каналу начислений (активность + вехи).
	// Награды за достижения в этот канал не входят, поэтому LeveledUp может
	// быть false, когда зафиксированный уровень вырос. Уведомление levelup
	// и событие LevelUp следуют за зафиксированным уровнем, а не за этим флагом.
	LeveledUp bool `json:"leveled_up"`

	// NewLevel - новый уровень, только при LeveledUp.
	NewLevel int `json:"new_level,omitempty"`

	// UpdatedStreak - серия после шага.
	UpdatedStreak StreakRecord `json:"updated_streak"`

	// Snapshot - новый снимок (Version не изменена).
	Snapshot *ProfileSnapshot `json:"snapshot"`

	// Notifications - уведомления для пользователя.
	Notifications []notification.Notification `json:"notifications"`
}

// TotalXPGained возвращает весь XP, зачисленный в снимок за шаг.
func (o *ActivityOutcome) TotalXPGained() XP {
	return o.XPAwarded + o.AchievementXP + o.MilestoneXP
}

// Option настраивает Orchestrator.
type Option func(*Orchestrator)

// WithClock задаёт источник времени.
func WithClock(clock timeutil.Clock) Option {
	return func(o *Orchestrator) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithIDGenerator задаёт генератор ID уведомлений.
func WithIDGenerator(gen notification.IDGenerator) Option {
	return func(o *Orchestrator) {
		if gen != nil {
			o.newID = gen
		}
	}
}

// Orchestrator - чистый и синхронный движок прогресса одного профиля.
type Orchestrator struct {
	registry     *Registry
	achievements *AchievementEngine
	milestones   *MilestoneEngine
	clock        timeutil.Clock
	newID        notification.IDGenerator
}

// NewOrchestrator создаёт оркестратор над реестром достижений.
func NewOrchestrator(registry *Registry, opts ...Option) *Orchestrator {
	if registry == nil {
		registry = DefaultRegistry()
	}

	o := &Orchestrator{
		registry: registry,
		clock:    timeutil.SystemClock,
		newID:    sequentialIDs("ntf"),
	}
	for _, opt := range opts {
		opt(o)
	}

	o.achievements = NewAchievementEngine(registry, o.clock)
	o.milestones = NewMilestoneEngine(o.clock)
	return o
}

// Registry возвращает реестр достижений.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// ProcessActivity обрабатывает завершение активности:
//  1. XP по типу активности
//  2. Award
//  3. UpdateStreak
//  4. достижения по профилю после 1-3
//  5. вехи по профилю после 1-4
//
// LeveledUp считается по каналу начислений (активность + вехи);
// награды за достижения зачисляются в снимок при фиксации. Достижения и вехи
// проверяются повторно, пока награды открывают новые.
func (o *Orchestrator) ProcessActivity(snap *ProfileSnapshot, activity ActivityEvent) (*ActivityOutcome, error) {
	if snap == nil {
		return nil, shared.NewDomainError("progress", "ProcessActivity", shared.ErrInvalidInput, "snapshot is nil")
	}
	if err := activity.Validate(); err != nil {
		return nil, err
	}
	if snap.HasProcessedActivity(activity.ID) {
		return nil, shared.WrapError("progress", "ProcessActivity", shared.ErrActivityAlreadyProcessed,
			fmt.Sprintf("activity %q already applied to profile %q", activity.ID, snap.UserID), nil)
	}

	next := snap.Clone()

	// 1-2. XP за активность
	xpAwarded := XPForKind(activity.Kind)
	award, err := Award(next.ExperiencePoints, xpAwarded)
	if err != nil {
		return nil, err
	}
	next.ExperiencePoints = award.NewXP

	// 3. Серия
	next.Streak = UpdateStreak(next.Streak, activity.CompletedAt)

	// Побочные эффекты активности
	next.LearningActivitiesCount++
	for _, skill := range activity.SkillsGained {
		next.mergeSkill(skill, SkillBeginner)
	}
	next.ActivityLog = append(next.ActivityLog, ActivityLogEntry{
		ID:          activity.ID,
		ResourceID:  activity.ResourceID,
		Kind:        activity.Kind,
		CompletedAt: activity.CompletedAt.UTC(),
		XPAwarded:   xpAwarded,
	})

	return o.settle(snap, next, ActivityCompleted(activity), xpAwarded)
}

// ProcessTrigger обрабатывает событие, не являющееся активностью: переносит факты
// триггера в снимок, начисляет XP для xp_awarded и проверяет достижения и вехи.
// Триггер activity_completed делегируется в ProcessActivity.
func (o *Orchestrator) ProcessTrigger(snap *ProfileSnapshot, t Trigger) (*ActivityOutcome, error) {
	if snap == nil {
		return nil, shared.NewDomainError("progress", "ProcessTrigger", shared.ErrInvalidInput, "snapshot is nil")
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.Kind == TriggerActivityCompleted {
		return o.ProcessActivity(snap, *t.Activity)
	}

	next := snap.Clone()
	t.apply(next)

	var direct XP
	if t.Kind == TriggerXPAwarded {
		direct = XP(t.Amount)
		award, err := Award(next.ExperiencePoints, direct)
		if err != nil {
			return nil, err
		}
		next.ExperiencePoints = award.NewXP
	}

	return o.settle(snap, next, t, direct)
}

// settle выполняет общую часть шага: достижения, вехи, фиксацию XP и уведомления.
// prev - исходный снимок, next - копия после применения события.
func (o *Orchestrator) settle(prev, next *ProfileSnapshot, t Trigger, baseXP XP) (*ActivityOutcome, error) {
	now := o.clock().UTC()

	// 4-5. Достижения и вехи. Награды могут поднять уровень и открыть
	// условия level:N, поэтому повторяем, пока раунд не пуст. Каждый раунд
	// добавляет хотя бы одно достижение или веху, так что цикл конечен.
	var (
		newAchievements []EarnedAchievement
		completed       []CompletedMilestone
		achievementXP   XP
		milestoneXP     XP
	)
	for {
		roundAchievements := o.achievements.Evaluate(next, t)
		var roundXP XP
		for _, ea := range roundAchievements {
			def, _ := o.registry.Get(ea.ID)
			achievementXP += def.XPReward
			roundXP += def.XPReward
		}
		next.EarnedAchievements = append(next.EarnedAchievements, roundAchievements...)

		roundMilestones := o.milestones.Evaluate(next)
		for _, c := range roundMilestones {
			milestoneXP += c.RewardDef.XPReward
			roundXP += c.RewardDef.XPReward
		}
		applyMilestones(next, roundMilestones)

		if len(roundAchievements) == 0 && len(roundMilestones) == 0 {
			break
		}
		newAchievements = append(newAchievements, roundAchievements...)
		completed = append(completed, roundMilestones...)

		credited, err := Award(next.ExperiencePoints, roundXP)
		if err != nil {
			return nil, err
		}
		next.ExperiencePoints = credited.NewXP
	}

	// Канал начислений: активность + вехи
	ledger, err := Award(prev.ExperiencePoints, baseXP+milestoneXP)
	if err != nil {
		return nil, err
	}

	next.Level = LevelOf(next.ExperiencePoints).CurrentLevel
	next.UpdatedAt = now

	outcome := &ActivityOutcome{
		XPAwarded:                baseXP,
		NewAchievements:          newAchievements,
		AchievementXP:            achievementXP,
		NewlyCompletedMilestones: completed,
		MilestoneXP:              milestoneXP,
		LeveledUp:                ledger.LeveledUp,
		NewLevel:                 ledger.NewLevel,
		UpdatedStreak:            next.Streak,
		Snapshot:                 next,
	}
	if outcome.NewAchievements == nil {
		outcome.NewAchievements = []EarnedAchievement{}
	}
	if outcome.NewlyCompletedMilestones == nil {
		outcome.NewlyCompletedMilestones = []CompletedMilestone{}
	}

	outcome.Notifications = o.notifications(prev, next, outcome, now)
	return outcome, nil
}

// notifications строит уведомления: по одному на каждое новое достижение
// (включая награды за вехи), одно при росте зафиксированного уровня и одно,
// когда серия изменилась и стала положительным кратным 7.
func (o *Orchestrator) notifications(prev, next *ProfileSnapshot, out *ActivityOutcome, now time.Time) []notification.Notification {
	list := []notification.Notification{}

	for _, ea := range out.NewAchievements {
		def, _ := o.registry.Get(ea.ID)
		list = append(list, notification.NewAchievement(o.newID(), next.UserID,
			def.Title, def.Description, int64(def.XPReward), ea.EarnedAt))
	}
	for _, c := range out.NewlyCompletedMilestones {
		list = append(list, notification.NewAchievement(o.newID(), next.UserID,
			c.RewardDef.Title, c.RewardDef.Description, int64(c.RewardDef.XPReward), c.Reward.EarnedAt))
	}

	before := LevelOf(prev.ExperiencePoints)
	after := LevelOf(next.ExperiencePoints)
	if after.CurrentLevel > before.CurrentLevel {
		list = append(list, notification.NewLevelUp(o.newID(), next.UserID,
			after.CurrentLevel, after.LevelTitle, now))
	}

	if next.Streak.CurrentStreak != prev.Streak.CurrentStreak && next.Streak.IsMilestone() {
		unit := "day"
		if next.Streak.StreakType == StreakWeekly {
			unit = "week"
		}
		list = append(list, notification.NewStreak(o.newID(), next.UserID,
			next.Streak.CurrentStreak, unit, now))
	}

	return list
}

// sequentialIDs - детерминированный генератор ID по умолчанию.
// В продакшене подставляется uuid через WithIDGenerator.
func sequentialIDs(prefix string) notification.IDGenerator {
	var n atomic.Int64
	return func() notification.NotificationID {
		return notification.NotificationID(prefix + "-" + strconv.FormatInt(n.Add(1), 10))
	}
}
