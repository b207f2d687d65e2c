// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/careermentor/mentor-hub/config"
	"github.com/careermentor/mentor-hub/internal/domain/progress"
	"github.com/careermentor/mentor-hub/internal/domain/shared"
	"github.com/careermentor/mentor-hub/pkg/logger"
	"github.com/careermentor/mentor-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// Собирает дашборд прогресса пользователя: уровень, серия, достижения,
// следующая веха и последние активности. Только чтение.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery содержит параметры запроса прогресса.
type GetProgressQuery struct {
	// UserID - идентификатор пользователя.
	UserID string

	// RecentLimit - сколько последних активностей вернуть (по умолчанию 10).
	RecentLimit int
}

// Validate проверяет корректность параметров запроса.
func (q *GetProgressQuery) Validate() error {
	id, err := shared.NewUserID(q.UserID)
	if err != nil {
		return err
	}
	q.UserID = id.String()

	if q.RecentLimit < 0 {
		return errors.New("recent_limit cannot be negative")
	}
	if q.RecentLimit == 0 {
		q.RecentLimit = 10
	}
	if q.RecentLimit > 100 {
		q.RecentLimit = 100
	}
	return nil
}

// AchievementDTO - полученное достижение вместе с определением.
type AchievementDTO struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Rarity      string    `json:"rarity"`
	XPReward    int64     `json:"xp_reward"`
	EarnedAt    time.Time `json:"earned_at"`

	// MilestoneID - веха, наградой за которую является достижение (если есть).
	MilestoneID string `json:"milestone_id,omitempty"`
}

// MilestoneDTO - краткая информация о вехе.
type MilestoneDTO struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Category     string   `json:"category"`
	Order        int      `json:"order"`
	Requirements []string `json:"requirements"`
	RewardTitle  string   `json:"reward_title"`
	RewardXP     int64    `json:"reward_xp"`
}

// ProgressDTO - дашборд прогресса.
type ProgressDTO struct {
	// ─────────────────────────────────────────────────────────────────────────
	// Идентификация
	// ─────────────────────────────────────────────────────────────────────────

	UserID  string `json:"user_id"`
	Version int64  `json:"version"`

	// ─────────────────────────────────────────────────────────────────────────
	// XP и уровень
	// ─────────────────────────────────────────────────────────────────────────

	Level progress.LevelInfo `json:"level"`

	// ─────────────────────────────────────────────────────────────────────────
	// Серия
	// ─────────────────────────────────────────────────────────────────────────

	Streak       progress.StreakRecord `json:"streak"`
	StreakStatus progress.StreakStatus `json:"streak_status"`

	// ─────────────────────────────────────────────────────────────────────────
	// Достижения и вехи
	// ─────────────────────────────────────────────────────────────────────────

	Achievements        []AchievementDTO `json:"achievements"`
	CompletedMilestones int              `json:"completed_milestones"`
	TotalMilestones     int              `json:"total_milestones"`

	// NextMilestone - первая незавершённая веха; nil, если все завершены.
	NextMilestone *MilestoneDTO `json:"next_milestone,omitempty"`

	// ─────────────────────────────────────────────────────────────────────────
	// Активность
	// ─────────────────────────────────────────────────────────────────────────

	LearningActivities int                          `json:"learning_activities"`
	RecentActivities   []progress.ProcessedActivity `json:"recent_activities"`

	UpdatedAt   time.Time `json:"updated_at"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressHandler обрабатывает запрос прогресса.
type GetProgressHandler struct {
	store    progress.ProfileStore
	cache    progress.ProfileCache
	history  progress.ActivityHistory
	registry *progress.Registry
	flags    *config.FeatureFlags
	clock    timeutil.Clock
	logger   *zap.Logger
}

// GetProgressDeps - зависимости обработчика. Cache и History опциональны.
type GetProgressDeps struct {
	Store    progress.ProfileStore
	Cache    progress.ProfileCache
	History  progress.ActivityHistory
	Registry *progress.Registry
	Flags    *config.FeatureFlags
	Clock    timeutil.Clock
	Logger   *zap.Logger
}

// NewGetProgressHandler создаёт новый обработчик.
func NewGetProgressHandler(deps GetProgressDeps) *GetProgressHandler {
	if deps.Registry == nil {
		deps.Registry = progress.DefaultRegistry()
	}
	if deps.Clock == nil {
		deps.Clock = timeutil.SystemClock
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &GetProgressHandler{
		store:    deps.Store,
		cache:    deps.Cache,
		history:  deps.History,
		registry: deps.Registry,
		flags:    deps.Flags,
		clock:    deps.Clock,
		logger:   deps.Logger.With(logger.Component("get_progress")),
	}
}

// Handle выполняет запрос.
func (h *GetProgressHandler) Handle(ctx context.Context, q GetProgressQuery) (*ProgressDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_progress: %w", err)
	}

	snap, err := h.load(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_progress: %w", err)
	}

	now := h.clock().UTC()
	dto := &ProgressDTO{
		UserID:              snap.UserID,
		Version:             snap.Version,
		Level:               snap.LevelInfo(),
		Streak:              snap.Streak,
		StreakStatus:        snap.Streak.Status(now),
		Achievements:        h.achievements(snap),
		CompletedMilestones: snap.CompletedMilestoneCount(),
		TotalMilestones:     len(snap.Milestones),
		LearningActivities:  snap.LearningActivitiesCount,
		UpdatedAt:           snap.UpdatedAt,
		GeneratedAt:         now,
	}

	if next, ok := progress.NextMilestone(snap); ok {
		dto.NextMilestone = milestoneDTO(next)
	}

	dto.RecentActivities = h.recent(ctx, snap, q.RecentLimit)
	return dto, nil
}

// load читает снимок: сначала кэш (если разрешено), затем хранилище.
func (h *GetProgressHandler) load(ctx context.Context, userID string) (*progress.ProfileSnapshot, error) {
	if h.cache != nil && h.flags.IsEnabled(config.FeatureCacheReads, userID) {
		snap, ok, err := h.cache.Get(ctx, userID)
		if err == nil && ok {
			return snap, nil
		}
		if err != nil {
			h.logger.Warn("cache read failed", logger.UserID(userID), zap.Error(err))
		}
	}

	snap, err := h.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, snap); err != nil {
			h.logger.Warn("cache fill failed", logger.UserID(userID), zap.Error(err))
		}
	}
	return snap, nil
}

// achievements сопоставляет полученные достижения с определениями реестра
// и наградами вех. Порядок - порядок получения.
func (h *GetProgressHandler) achievements(snap *progress.ProfileSnapshot) []AchievementDTO {
	rewards := make(map[progress.AchievementID]progress.Milestone, len(snap.Milestones))
	for _, m := range snap.Milestones {
		rewards[m.Reward.ID] = m
	}

	out := make([]AchievementDTO, 0, len(snap.EarnedAchievements))
	for _, ea := range snap.EarnedAchievements {
		dto := AchievementDTO{ID: string(ea.ID), Title: string(ea.ID), EarnedAt: ea.EarnedAt}

		var def progress.AchievementDefinition
		if d, ok := h.registry.Get(ea.ID); ok {
			def = d
		} else if m, ok := rewards[ea.ID]; ok {
			def = m.Reward
			dto.MilestoneID = m.ID
		} else {
			// Определение удалено из правил после получения.
			out = append(out, dto)
			continue
		}

		dto.Title = def.Title
		dto.Description = def.Description
		dto.Category = string(def.Category)
		dto.Rarity = string(def.Rarity)
		dto.XPReward = int64(def.XPReward)
		out = append(out, dto)
	}
	return out
}

// recent возвращает последние активности из истории хранилища,
// а при её отсутствии или ошибке - из журнала снимка.
func (h *GetProgressHandler) recent(ctx context.Context, snap *progress.ProfileSnapshot, limit int) []progress.ProcessedActivity {
	if h.history != nil {
		list, err := h.history.ListProcessed(ctx, snap.UserID, limit)
		if err == nil {
			return list
		}
		h.logger.Warn("activity history unavailable", logger.UserID(snap.UserID), zap.Error(err))
	}

	list := progress.ProcessedActivities(snap, limit)
	if list == nil {
		list = []progress.ProcessedActivity{}
	}
	return list
}

func milestoneDTO(m progress.Milestone) *MilestoneDTO {
	reqs := make([]string, 0, len(m.Requirements))
	for _, r := range m.Requirements {
		reqs = append(reqs, r.String())
	}
	return &MilestoneDTO{
		ID:           m.ID,
		Title:        m.Title,
		Category:     string(m.Category),
		Order:        m.Order,
		Requirements: reqs,
		RewardTitle:  m.Reward.Title,
		RewardXP:     int64(m.Reward.XPReward),
	}
}
