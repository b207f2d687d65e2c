package progress

import (
	"fmt"
	"sort"
	"time"

	"github.com/careermentor/mentor-hub/internal/domain/shared"
	"github.com/careermentor/mentor-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MILESTONES (Вехи)
// ══════════════════════════════════════════════════════════════════════════════

// MilestoneCategory - этап карьерного пути, к которому относится веха.
type MilestoneCategory string

const (
	MilestoneOnboarding MilestoneCategory = "onboarding"
	MilestoneLearning   MilestoneCategory = "learning"
	MilestoneCareer     MilestoneCategory = "career"
)

// Milestone - веха с наградой. IsCompleted только растёт: false -> true.
type Milestone struct {
	ID           string                `json:"id"`
	Title        string                `json:"title"`
	Category     MilestoneCategory     `json:"category"`
	Requirements RequirementSet        `json:"requirements"`
	Reward       AchievementDefinition `json:"reward"`
	Order        int                   `json:"order"`
	IsCompleted  bool                  `json:"is_completed"`
	CompletedAt  *time.Time            `json:"completed_at,omitempty"`
}

// CompletedMilestone - результат проверки: завершённая веха и выданная награда.
type CompletedMilestone struct {
	MilestoneID string                `json:"milestone_id"`
	Title       string                `json:"title"`
	Reward      EarnedAchievement     `json:"reward"`
	RewardDef   AchievementDefinition `json:"reward_definition"`
}

// ValidateMilestones проверяет набор вех относительно реестра достижений:
// уникальные ID вех и наград, награды не пересекаются с реестром,
// условия не зависят только от триггера.
func ValidateMilestones(milestones []Milestone, registry *Registry) error {
	invalid := func(kind *shared.DomainError, msg string) error {
		return shared.WrapError("rules", "ValidateMilestones", kind, msg, nil)
	}

	ids := make(map[string]struct{}, len(milestones))
	rewards := make(map[AchievementID]struct{}, len(milestones))

	for _, m := range milestones {
		if m.ID == "" || m.Title == "" {
			return invalid(shared.ErrInvalidDefinition, "milestone needs an id and a title")
		}
		if _, dup := ids[m.ID]; dup {
			return invalid(shared.ErrDuplicateAchievementID, fmt.Sprintf("milestone %q declared twice", m.ID))
		}
		ids[m.ID] = struct{}{}

		if len(m.Requirements) == 0 {
			return invalid(shared.ErrInvalidDefinition, fmt.Sprintf("milestone %q has no requirements", m.ID))
		}
		for _, r := range m.Requirements {
			if TriggerOnly(r) {
				return invalid(shared.ErrInvalidDefinition,
					fmt.Sprintf("milestone %q uses trigger-only requirement %q", m.ID, r))
			}
		}

		if err := m.Reward.Validate(); err != nil {
			return err
		}
		if _, dup := rewards[m.Reward.ID]; dup {
			return invalid(shared.ErrDuplicateAchievementID, fmt.Sprintf("milestone reward %q declared twice", m.Reward.ID))
		}
		if registry != nil {
			if _, clash := registry.Get(m.Reward.ID); clash {
				return invalid(shared.ErrDuplicateAchievementID,
					fmt.Sprintf("milestone reward %q collides with a registry achievement", m.Reward.ID))
			}
		}
		rewards[m.Reward.ID] = struct{}{}
	}

	return nil
}

// sortedByOrder возвращает вехи, отсортированные по Order (стабильно).
func sortedByOrder(milestones []Milestone) []Milestone {
	out := append([]Milestone{}, milestones...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order < out[j].Order
	})
	return out
}

// MilestoneEngine проверяет вехи.
type MilestoneEngine struct {
	clock timeutil.Clock
}

// NewMilestoneEngine создаёт движок вех.
func NewMilestoneEngine(clock timeutil.Clock) *MilestoneEngine {
	if clock == nil {
		clock = timeutil.SystemClock
	}
	return &MilestoneEngine{clock: clock}
}

// Evaluate проверяет все незавершённые вехи по возрастанию Order.
// Снимок не изменяется; награды - отдельный канал, не сверяются с реестром.
func (e *MilestoneEngine) Evaluate(s *ProfileSnapshot) []CompletedMilestone {
	now := e.clock().UTC()

	var completed []CompletedMilestone
	for _, m := range sortedByOrder(s.Milestones) {
		if m.IsCompleted {
			continue
		}
		if m.Requirements.AllSatisfied(s, Trigger{}) {
			completed = append(completed, CompletedMilestone{
				MilestoneID: m.ID,
				Title:       m.Title,
				Reward:      EarnedAchievement{ID: m.Reward.ID, EarnedAt: now},
				RewardDef:   m.Reward,
			})
		}
	}
	return completed
}

// NextMilestone возвращает первую незавершённую веху по Order.
func NextMilestone(s *ProfileSnapshot) (Milestone, bool) {
	for _, m := range sortedByOrder(s.Milestones) {
		if !m.IsCompleted {
			return m, true
		}
	}
	return Milestone{}, false
}

// applyMilestones отмечает вехи завершёнными и добавляет награды (на копии).
func applyMilestones(s *ProfileSnapshot, completed []CompletedMilestone) {
	for _, c := range completed {
		for i := range s.Milestones {
			if s.Milestones[i].ID != c.MilestoneID || s.Milestones[i].IsCompleted {
				continue
			}
			at := c.Reward.EarnedAt
			s.Milestones[i].IsCompleted = true
			s.Milestones[i].CompletedAt = &at
		}
		if !s.HasAchievement(c.Reward.ID) {
			s.EarnedAchievements = append(s.EarnedAchievements, c.Reward)
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// BUILT-IN MILESTONES
// ══════════════════════════════════════════════════════════════════════════════

// DefaultMilestones возвращает встроенный набор вех.
func DefaultMilestones() []Milestone {
	reward := func(id, title, desc string, xp XP, rarity Rarity) AchievementDefinition {
		return AchievementDefinition{
			ID:          AchievementID(id),
			Title:       title,
			Description: desc,
			Category:    CategoryMilestone,
			XPReward:    xp,
			Rarity:      rarity,
		}
	}

	return []Milestone{
		{
			ID:           "launch",
			Title:        "Launch Your Journey",
			Category:     MilestoneOnboarding,
			Requirements: Reqs("career_selected", "resume_attached"),
			Reward:       reward("milestone_launch", "Liftoff", "Pick a career path and attach your resume", 100, RarityCommon),
			Order:        1,
		},
		{
			ID:           "roadmap_ready",
			Title:        "Plan of Attack",
			Category:     MilestoneOnboarding,
			Requirements: Reqs("roadmap_generated", "skill_gap_analysis"),
			Reward:       reward("milestone_roadmap_ready", "Strategist", "Generate a roadmap and analyse your skill gaps", 150, RarityUncommon),
			Order:        2,
		},
		{
			ID:           "learning_momentum",
			Title:        "Learning Momentum",
			Category:     MilestoneLearning,
			Requirements: Reqs("learning_activities:5", "daily_streak:3"),
			Reward:       reward("milestone_learning_momentum", "Momentum", "Complete 5 activities with a 3-day streak", 200, RarityUncommon),
			Order:        3,
		},
		{
			ID:           "halfway",
			Title:        "Halfway Point",
			Category:     MilestoneLearning,
			Requirements: Reqs("roadmap_progress:50"),
			Reward:       reward("milestone_halfway", "Half the Mountain", "Reach half of your roadmap", 250, RarityRare),
			Order:        4,
		},
		{
			ID:           "career_ready",
			Title:        "Career Ready",
			Category:     MilestoneCareer,
			Requirements: Reqs("roadmap_progress:100", "profile_completeness:100", "ats_improvement:20"),
			Reward:       reward("milestone_career_ready", "Career Ready", "Finish the roadmap with a polished profile and resume", 500, RarityLegendary),
			Order:        5,
		},
	}
}
