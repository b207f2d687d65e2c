package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/careermentor/mentor-hub/internal/domain/shared"
	"github.com/careermentor/mentor-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS (Достижения)
// ══════════════════════════════════════════════════════════════════════════════

// AchievementID - идентификатор достижения.
type AchievementID string

// Встроенные достижения.
const (
	AchievementFirstCourse        AchievementID = "first_course"
	AchievementFirstCertification AchievementID = "first_certification"
	AchievementFirstProject       AchievementID = "first_project"
	AchievementDedicatedLearner   AchievementID = "dedicated_learner"
	AchievementStreak7            AchievementID = "streak_7"
	AchievementStreak30           AchievementID = "streak_30"
	AchievementSkillExpert        AchievementID = "skill_expert"
	AchievementRoadmapHalfway     AchievementID = "roadmap_halfway"
	AchievementRoadmapComplete    AchievementID = "roadmap_complete"
	AchievementCareerExplorer     AchievementID = "career_explorer"
	AchievementChatStarter        AchievementID = "chat_10"
	AchievementChatRegular        AchievementID = "chat_50"
	AchievementAtsImprover        AchievementID = "ats_improver"
	AchievementProfileComplete    AchievementID = "profile_complete"
	AchievementCareerSelected     AchievementID = "career_selected"
	AchievementRoadmapGenerated   AchievementID = "roadmap_generated"
	AchievementSkillGapAnalysis   AchievementID = "skill_gap_analysis"
	AchievementLevel5             AchievementID = "level_5"
)

// Category - категория достижения.
type Category string

const (
	CategoryLearning    Category = "learning"
	CategoryProgress    Category = "progress"
	CategoryConsistency Category = "consistency"
	CategoryMilestone   Category = "milestone"
	CategorySocial      Category = "social"
)

// Rarity - редкость достижения.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// AchievementDefinition описывает достижение. Неизменяемо после загрузки.
type AchievementDefinition struct {
	ID           AchievementID  `json:"id" validate:"required"`
	Title        string         `json:"title" validate:"required"`
	Description  string         `json:"description"`
	Category     Category       `json:"category" validate:"required,oneof=learning progress consistency milestone social"`
	XPReward     XP             `json:"xp_reward" validate:"gte=0"`
	Rarity       Rarity         `json:"rarity" validate:"required,oneof=common uncommon rare epic legendary"`
	Requirements RequirementSet `json:"requirements,omitempty"`
}

// EarnedAchievement - полученное достижение.
type EarnedAchievement struct {
	ID       AchievementID `json:"id"`
	EarnedAt time.Time     `json:"earned_at"`
}

var definitionValidator = validator.New()

// Validate проверяет структуру определения.
func (d AchievementDefinition) Validate() error {
	if err := definitionValidator.Struct(d); err != nil {
		msg := fmt.Sprintf("achievement %q is invalid", d.ID)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			msg = fmt.Sprintf("achievement %q: field %s failed %q", d.ID, verrs[0].Field(), verrs[0].Tag())
		}
		return shared.WrapError("rules", "ValidateAchievement", shared.ErrInvalidDefinition, msg, err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTRY
// ══════════════════════════════════════════════════════════════════════════════

// Registry - упорядоченный реестр достижений. Порядок объявления задаёт
// порядок проверки и порядок выдачи в одном вызове Evaluate.
type Registry struct {
	defs  []AchievementDefinition
	index map[AchievementID]int
}

// NewRegistry создаёт реестр и проверяет его целостность.
func NewRegistry(defs []AchievementDefinition) (*Registry, error) {
	r := &Registry{
		defs:  make([]AchievementDefinition, 0, len(defs)),
		index: make(map[AchievementID]int, len(defs)),
	}

	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if len(d.Requirements) == 0 {
			return nil, shared.WrapError("rules", "NewRegistry", shared.ErrInvalidDefinition,
				fmt.Sprintf("achievement %q has no requirements", d.ID), nil)
		}
		if _, dup := r.index[d.ID]; dup {
			return nil, shared.WrapError("rules", "NewRegistry", shared.ErrDuplicateAchievementID,
				fmt.Sprintf("achievement %q declared twice", d.ID), nil)
		}
		r.index[d.ID] = len(r.defs)
		r.defs = append(r.defs, d)
	}

	return r, nil
}

// Definitions возвращает копию определений в порядке объявления.
func (r *Registry) Definitions() []AchievementDefinition {
	return append([]AchievementDefinition{}, r.defs...)
}

// Get возвращает определение по ID.
func (r *Registry) Get(id AchievementID) (AchievementDefinition, bool) {
	i, ok := r.index[id]
	if !ok {
		return AchievementDefinition{}, false
	}
	return r.defs[i], true
}

// Len возвращает количество определений.
func (r *Registry) Len() int {
	return len(r.defs)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// AchievementEngine проверяет правила достижений.
type AchievementEngine struct {
	registry *Registry
	clock    timeutil.Clock
}

// NewAchievementEngine создаёт движок достижений.
func NewAchievementEngine(registry *Registry, clock timeutil.Clock) *AchievementEngine {
	if clock == nil {
		clock = timeutil.SystemClock
	}
	return &AchievementEngine{registry: registry, clock: clock}
}

// Evaluate возвращает только новые достижения: уже полученные пропускаются,
// остальные выдаются, если выполнены все условия. Порядок - порядок реестра.
func (e *AchievementEngine) Evaluate(s *ProfileSnapshot, t Trigger) []EarnedAchievement {
	now := e.clock().UTC()

	var earned []EarnedAchievement
	for _, def := range e.registry.defs {
		if s.HasAchievement(def.ID) {
			continue
		}
		if def.Requirements.AllSatisfied(s, t) {
			earned = append(earned, EarnedAchievement{ID: def.ID, EarnedAt: now})
		}
	}
	return earned
}

// ══════════════════════════════════════════════════════════════════════════════
// BUILT-IN REGISTRY
// ══════════════════════════════════════════════════════════════════════════════

// DefaultAchievements возвращает встроенные определения достижений.
func DefaultAchievements() []AchievementDefinition {
	return []AchievementDefinition{
		{AchievementFirstCourse, "First Steps", "Complete your first course", CategoryLearning, 50, RarityCommon, Reqs("activity_type:course")},
		{AchievementFirstCertification, "Certified", "Earn your first certification", CategoryLearning, 100, RarityUncommon, Reqs("activity_type:certification")},
		{AchievementFirstProject, "Builder", "Ship your first project", CategoryLearning, 75, RarityUncommon, Reqs("activity_type:project")},
		{AchievementDedicatedLearner, "Dedicated Learner", "Complete 10 learning activities", CategoryLearning, 150, RarityRare, Reqs("learning_activities:10")},
		{AchievementStreak7, "Week on Fire", "Learn 7 days in a row", CategoryConsistency, 100, RarityUncommon, Reqs("daily_streak:7")},
		{AchievementStreak30, "Iron Will", "Learn 30 days in a row", CategoryConsistency, 500, RarityEpic, Reqs("daily_streak:30")},
		{AchievementSkillExpert, "Subject Expert", "Reach expert level in a skill", CategoryLearning, 200, RarityRare, Reqs("skill_expert")},
		{AchievementRoadmapHalfway, "Halfway There", "Reach 50% of your roadmap", CategoryProgress, 100, RarityUncommon, Reqs("roadmap_progress:50")},
		{AchievementRoadmapComplete, "Roadmap Conqueror", "Finish your roadmap", CategoryProgress, 300, RarityEpic, Reqs("roadmap_progress:100")},
		{AchievementCareerExplorer, "Career Explorer", "Explore 3 career paths", CategoryProgress, 50, RarityCommon, Reqs("careers_explored:3")},
		{AchievementChatStarter, "Conversation Starter", "Send 10 messages to your mentor", CategorySocial, 25, RarityCommon, Reqs("chat_messages:10")},
		{AchievementChatRegular, "Mentor's Regular", "Send 50 messages to your mentor", CategorySocial, 100, RarityUncommon, Reqs("chat_messages:50")},
		{AchievementAtsImprover, "Resume Polisher", "Improve your ATS score by 20 points", CategoryProgress, 100, RarityRare, Reqs("ats_improvement:20")},
		{AchievementProfileComplete, "All Set", "Complete your profile", CategoryMilestone, 75, RarityUncommon, Reqs("profile_completeness:100")},
		{AchievementCareerSelected, "Path Chosen", "Select a career path", CategoryMilestone, 50, RarityCommon, Reqs("career_selected")},
		{AchievementRoadmapGenerated, "Map Maker", "Generate your learning roadmap", CategoryMilestone, 50, RarityCommon, Reqs("roadmap_generated")},
		{AchievementSkillGapAnalysis, "Know Thyself", "Run a skill gap analysis", CategoryLearning, 50, RarityCommon, Reqs("skill_gap_analysis")},
		{AchievementLevel5, "Rising Star", "Reach level 5", CategoryProgress, 100, RarityRare, Reqs("level:5")},
	}
}

// DefaultRegistry возвращает реестр встроенных достижений.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultAchievements())
	if err != nil {
		panic(fmt.Sprintf("progress: built-in achievement registry is invalid: %v", err))
	}
	return r
}
