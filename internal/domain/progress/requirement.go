package progress

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/careermentor/mentor-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUIREMENT (Условие достижения или вехи)
// Одна модель условий для обоих движков. Строковый формат: "kind[:value]".
// ══════════════════════════════════════════════════════════════════════════════

// RequirementKind - тип условия.
type RequirementKind string

const (
	ReqActivityType        RequirementKind = "activity_type"
	ReqDailyStreak         RequirementKind = "daily_streak"
	ReqSkillExpert         RequirementKind = "skill_expert"
	ReqRoadmapProgress     RequirementKind = "roadmap_progress"
	ReqCareersExplored     RequirementKind = "careers_explored"
	ReqChatMessages        RequirementKind = "chat_messages"
	ReqAtsImprovement      RequirementKind = "ats_improvement"
	ReqProfileCompleteness RequirementKind = "profile_completeness"
	ReqCareerSelected      RequirementKind = "career_selected"
	ReqRoadmapGenerated    RequirementKind = "roadmap_generated"
	ReqSkillGapAnalysis    RequirementKind = "skill_gap_analysis"
	ReqLearningActivities  RequirementKind = "learning_activities"
	ReqLevel               RequirementKind = "level"
	ReqResumeAttached      RequirementKind = "resume_attached"
)

// Requirement - условие над парой (снимок, триггер). Закрытый интерфейс:
// варианты определены только в этом пакете.
type Requirement interface {
	// Kind возвращает тип условия.
	Kind() RequirementKind

	// Satisfied проверяет условие. Чистая функция.
	Satisfied(s *ProfileSnapshot, t Trigger) bool

	// String возвращает условие в формате "kind[:value]".
	String() string

	isRequirement()
}

// TriggerOnly возвращает true для условий, которые зависят только от триггера
// и поэтому никогда не выполняются при проверке вех.
func TriggerOnly(r Requirement) bool {
	return r.Kind() == ReqActivityType
}

// ActivityTypeIs - триггер является завершением активности данного типа.
type ActivityTypeIs struct{ Activity ActivityKind }

func (ActivityTypeIs) Kind() RequirementKind { return ReqActivityType }
func (r ActivityTypeIs) String() string     { return fmt.Sprintf("%s:%s", ReqActivityType, r.Activity) }
func (ActivityTypeIs) isRequirement()       {}

func (r ActivityTypeIs) Satisfied(_ *ProfileSnapshot, t Trigger) bool {
	return t.Kind == TriggerActivityCompleted && t.Activity != nil && t.Activity.Kind == r.Activity
}

// DailyStreakAtLeast - текущая дневная серия не меньше Days.
// Недельная серия считается в неделях и это условие не выполняет.
type DailyStreakAtLeast struct{ Days int }

func (DailyStreakAtLeast) Kind() RequirementKind { return ReqDailyStreak }
func (r DailyStreakAtLeast) String() string     { return fmt.Sprintf("%s:%d", ReqDailyStreak, r.Days) }
func (DailyStreakAtLeast) isRequirement()       {}

func (r DailyStreakAtLeast) Satisfied(s *ProfileSnapshot, _ Trigger) bool {
	return s.Streak.StreakType != StreakWeekly && s.Streak.CurrentStreak >= r.Days
}

// SkillAtExpertLevel - хотя бы один навык на уровне expert.
type SkillAtExpertLevel struct{}

func (SkillAtExpertLevel) Kind() RequirementKind { return ReqSkillExpert }
func (SkillAtExpertLevel) String() string        { return string(ReqSkillExpert) }
func (SkillAtExpertLevel) isRequirement()        {}

func (SkillAtExpertLevel) Satisfied(s *ProfileSnapshot, _ Trigger) bool {
	return s.HasExpertSkill()
}

// RoadmapProgressAtLeast - прогресс дорожной карты не меньше Percent.
type RoadmapProgressAtLeast struct{ Percent int }

func (RoadmapProgressAtLeast) Kind() RequirementKind { return ReqRoadmapProgress }
func (r RoadmapProgressAtLeast) String() string {
	return fmt.Sprintf("%s:%d", ReqRoadmapProgress, r.Percent)
}
func (RoadmapProgressAtLeast) isRequirement() {}

func (r RoadmapProgressAtLeast) Satisfied(s *ProfileSnapshot, _ Trigger) bool {
	return s.RoadmapProgress >= r.Percent
}

// CareersExploredAtLeast - изучено не меньше Count карьерных путей.
type CareersExploredAtLeast struct{ Count int }

func (CareersExploredAtLeast) Kind() RequirementKind { return ReqCareersExplored }
func (r CareersExploredAtLeast) String() string {
	return fmt.Sprintf("%s:%d", ReqCareersExplored, r.Count)
}
func (CareersExploredAtLeast) isRequirement() {}

func (r CareersExploredAtLeast) Satisfied(s *ProfileSnapshot, _ Trigger) bool {
	return len(s.CareerRecommendations) >= r.Count
}

// ChatMilestone - сообщений в чате не меньше Messages.
// Счётчик берётся из триггера chat_milestone, если он больше сохранённого.
type ChatMilestone struct{ Messages int }

func (ChatMilestone) Kind() RequirementKind { return ReqChatMessages }
func (r ChatMilestone) String() string     { return fmt.Sprintf("%s:%d", ReqChatMessages, r.Messages) }
func (ChatMilestone) isRequirement()       {}

func (r ChatMilestone) Satisfied(s *ProfileSnapshot, t Trigger) bool {
	count := s.ChatMessageCount
	if t.Kind == TriggerChatMilestone && t.Count > count {
		count = t.Count
	}
	return count >= r.Messages
}

// AtsImprovementAtLeast - улучшение ATS-оценки не меньше Points.
type AtsImprovementAtLeast struct{ Points int }

func (AtsImprovementAtLeast) Kind() RequirementKind { return ReqAtsImprovement }
func (r AtsImprovementAtLeast) String() string {
	return fmt.Sprintf("%s:%d", ReqAtsImprovement, r.Points)
}
func (AtsImprovementAtLeast) isRequirement() {}

func (r AtsImprovementAtLeast) Satisfied(s *ProfileSnapshot, t Trigger) bool {
	best := int64(s.BestAtsImprovement)
	if t.Kind == TriggerAtsImprovement && t.Amount > best {
		best = t.Amount
	}
	return best >= int64(r.Points)
}

// ProfileCompletenessAtLeast - заполненность профиля не меньше Percent.
type ProfileCompletenessAtLeast struct{ Percent int }

func (ProfileCompletenessAtLeast) Kind() RequirementKind { return ReqProfileCompleteness }
func (r ProfileCompletenessAtLeast) String() string {
	return fmt.Sprintf("%s:%d", ReqProfileCompleteness, r.Percent)
}
func (ProfileCompletenessAtLeast) isRequirement() {}

func (r ProfileCompletenessAtLeast) Satisfied(s *ProfileSnapshot, _ Trigger) bool {
	return s.ProfileCompleteness >= r.Percent
}

// CareerSelected - карьерный путь выбран.
type CareerSelected struct{}

func (CareerSelected) Kind() RequirementKind { return ReqCareerSelected }
func (CareerSelected) String() string        { return string(ReqCareerSelected) }
func (CareerSelected) isRequirement()        {}

func (CareerSelected) Satisfied(s *ProfileSnapshot, t Trigger) bool {
	return s.SelectedCareerPath != "" || t.Kind == TriggerCareerSelected
}

// RoadmapGenerated - дорожная карта построена.
type RoadmapGenerated struct{}

func (RoadmapGenerated) Kind() RequirementKind { return ReqRoadmapGenerated }
func (RoadmapGenerated) String() string        { return string(ReqRoadmapGenerated) }
func (RoadmapGenerated) isRequirement()        {}

func (RoadmapGenerated) Satisfied(s *ProfileSnapshot, t Trigger) bool {
	return s.RoadmapGenerated || t.Kind == TriggerRoadmapGenerated
}

// SkillGapAnalysisDone - анализ пробелов выполнен.
type SkillGapAnalysisDone struct{}

func (SkillGapAnalysisDone) Kind() RequirementKind { return ReqSkillGapAnalysis }
func (SkillGapAnalysisDone) String() string        { return string(ReqSkillGapAnalysis) }
func (SkillGapAnalysisDone) isRequirement()        {}

func (SkillGapAnalysisDone) Satisfied(s *ProfileSnapshot, t Trigger) bool {
	return s.SkillGapAnalysisDone || t.Kind == TriggerSkillGapAnalysis
}

// LearningActivitiesAtLeast - завершено не меньше Count учебных активностей.
type LearningActivitiesAtLeast struct{ Count int }

func (LearningActivitiesAtLeast) Kind() RequirementKind { return ReqLearningActivities }
func (r LearningActivitiesAtLeast) String() string {
	return fmt.Sprintf("%s:%d", ReqLearningActivities, r.Count)
}
func (LearningActivitiesAtLeast) isRequirement() {}

func (r LearningActivitiesAtLeast) Satisfied(s *ProfileSnapshot, _ Trigger) bool {
	return s.LearningActivitiesCount >= r.Count
}

// LevelAtLeast - уровень не ниже Level.
type LevelAtLeast struct{ Level int }

func (LevelAtLeast) Kind() RequirementKind { return ReqLevel }
func (r LevelAtLeast) String() string     { return fmt.Sprintf("%s:%d", ReqLevel, r.Level) }
func (LevelAtLeast) isRequirement()       {}

func (r LevelAtLeast) Satisfied(s *ProfileSnapshot, _ Trigger) bool {
	return LevelOf(s.ExperiencePoints).CurrentLevel >= r.Level
}

// ResumeAttached - резюме загружено.
type ResumeAttached struct{}

func (ResumeAttached) Kind() RequirementKind { return ReqResumeAttached }
func (ResumeAttached) String() string        { return string(ReqResumeAttached) }
func (ResumeAttached) isRequirement()        {}

func (ResumeAttached) Satisfied(s *ProfileSnapshot, _ Trigger) bool {
	return s.ResumeAttached
}

// ══════════════════════════════════════════════════════════════════════════════
// CODEC
// ══════════════════════════════════════════════════════════════════════════════

type valueSpec int

const (
	noValue valueSpec = iota
	countValue
	percentValue
	levelValue
	kindValue
)

var requirementValues = map[RequirementKind]valueSpec{
	ReqActivityType:        kindValue,
	ReqDailyStreak:         countValue,
	ReqSkillExpert:         noValue,
	ReqRoadmapProgress:     percentValue,
	ReqCareersExplored:     countValue,
	ReqChatMessages:        countValue,
	ReqAtsImprovement:      countValue,
	ReqProfileCompleteness: percentValue,
	ReqCareerSelected:      noValue,
	ReqRoadmapGenerated:    noValue,
	ReqSkillGapAnalysis:    noValue,
	ReqLearningActivities:  countValue,
	ReqLevel:               levelValue,
	ReqResumeAttached:      noValue,
}

// ParseRequirement разбирает условие из строки "kind[:value]".
// Неизвестный kind - ErrUnknownRequirement, некорректное значение - ErrMalformedRequirement.
func ParseRequirement(raw string) (Requirement, error) {
	text := strings.TrimSpace(raw)
	name, value, hasValue := strings.Cut(text, ":")
	kind := RequirementKind(strings.TrimSpace(name))
	value = strings.TrimSpace(value)

	spec, ok := requirementValues[kind]
	if !ok {
		return nil, shared.WrapError("rules", "ParseRequirement", shared.ErrUnknownRequirement,
			fmt.Sprintf("unknown requirement kind %q in %q", kind, raw), nil)
	}

	malformed := func(reason string) error {
		return shared.WrapError("rules", "ParseRequirement", shared.ErrMalformedRequirement,
			fmt.Sprintf("%q: %s", raw, reason), nil)
	}

	if spec == noValue {
		if hasValue {
			return nil, malformed("requirement takes no value")
		}
		switch kind {
		case ReqSkillExpert:
			return SkillAtExpertLevel{}, nil
		case ReqCareerSelected:
			return CareerSelected{}, nil
		case ReqRoadmapGenerated:
			return RoadmapGenerated{}, nil
		case ReqSkillGapAnalysis:
			return SkillGapAnalysisDone{}, nil
		default:
			return ResumeAttached{}, nil
		}
	}

	if !hasValue || value == "" {
		return nil, malformed("requirement needs a value")
	}

	if spec == kindValue {
		// Опечатка в типе дала бы правило, которое никогда не срабатывает.
		if kind := ActivityKind(value); kind.IsKnown() {
			return ActivityTypeIs{Activity: kind}, nil
		}
		return nil, malformed(fmt.Sprintf("unknown activity kind %q", value))
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return nil, malformed("value is not an integer")
	}
	switch {
	case n < 0:
		return nil, malformed("value cannot be negative")
	case spec == percentValue && n > 100:
		return nil, malformed("percentage must be within 0..100")
	case spec == levelValue && (n < 1 || n > MaxLevel):
		return nil, malformed(fmt.Sprintf("level must be within 1..%d", MaxLevel))
	}

	switch kind {
	case ReqDailyStreak:
		return DailyStreakAtLeast{Days: n}, nil
	case ReqRoadmapProgress:
		return RoadmapProgressAtLeast{Percent: n}, nil
	case ReqCareersExplored:
		return CareersExploredAtLeast{Count: n}, nil
	case ReqChatMessages:
		return ChatMilestone{Messages: n}, nil
	case ReqAtsImprovement:
		return AtsImprovementAtLeast{Points: n}, nil
	case ReqProfileCompleteness:
		return ProfileCompletenessAtLeast{Percent: n}, nil
	case ReqLearningActivities:
		return LearningActivitiesAtLeast{Count: n}, nil
	default:
		return LevelAtLeast{Level: n}, nil
	}
}

// MustParseRequirement разбирает условие и паникует при ошибке.
// Только для встроенных определений.
func MustParseRequirement(raw string) Requirement {
	r, err := ParseRequirement(raw)
	if err != nil {
		panic(err)
	}
	return r
}

// RequirementSet - набор условий, выполненных одновременно (AND).
type RequirementSet []Requirement

// ParseRequirements разбирает список строк.
func ParseRequirements(raw []string) (RequirementSet, error) {
	set := make(RequirementSet, 0, len(raw))
	for _, r := range raw {
		req, err := ParseRequirement(r)
		if err != nil {
			return nil, err
		}
		set = append(set, req)
	}
	return set, nil
}

// Reqs собирает набор из строк; паникует при ошибке.
func Reqs(raw ...string) RequirementSet {
	set := make(RequirementSet, 0, len(raw))
	for _, r := range raw {
		set = append(set, MustParseRequirement(r))
	}
	return set
}

// AllSatisfied проверяет, что все условия выполнены. Пустой набор не выполняется.
func (rs RequirementSet) AllSatisfied(s *ProfileSnapshot, t Trigger) bool {
	if len(rs) == 0 {
		return false
	}
	for _, r := range rs {
		if !r.Satisfied(s, t) {
			return false
		}
	}
	return true
}

// Strings возвращает набор в строковом формате.
func (rs RequirementSet) Strings() []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.String()
	}
	return out
}

// MarshalJSON кодирует набор как массив строк.
func (rs RequirementSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(rs.Strings())
}

// UnmarshalJSON декодирует набор из массива строк.
func (rs *RequirementSet) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	set, err := ParseRequirements(raw)
	if err != nil {
		return err
	}
	*rs = set
	return nil
}
