package progress

import (
	"fmt"

	"github.com/careermentor/mentor-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRIGGER (Событие, запускающее проверку достижений)
// ══════════════════════════════════════════════════════════════════════════════

// TriggerKind - тип события-триггера.
type TriggerKind string

const (
	TriggerActivityCompleted   TriggerKind = "activity_completed"
	TriggerAssessmentCompleted TriggerKind = "assessment_completed"
	TriggerAtsImprovement      TriggerKind = "ats_improvement"
	TriggerChatMilestone       TriggerKind = "chat_milestone"
	TriggerCareerSelected      TriggerKind = "career_selected"
	TriggerRoadmapGenerated    TriggerKind = "roadmap_generated"
	TriggerSkillGapAnalysis    TriggerKind = "skill_gap_analysis"
	TriggerXPAwarded           TriggerKind = "xp_awarded"
	TriggerProfileUpdated      TriggerKind = "profile_updated"
)

// triggerKinds - все известные типы в порядке объявления.
var triggerKinds = []TriggerKind{
	TriggerActivityCompleted,
	TriggerAssessmentCompleted,
	TriggerAtsImprovement,
	TriggerChatMilestone,
	TriggerCareerSelected,
	TriggerRoadmapGenerated,
	TriggerSkillGapAnalysis,
	TriggerXPAwarded,
	TriggerProfileUpdated,
}

// IsValid проверяет, что тип известен.
func (k TriggerKind) IsValid() bool {
	for _, known := range triggerKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseTriggerKind разбирает тип триггера из строки.
func ParseTriggerKind(s string) (TriggerKind, error) {
	k := TriggerKind(s)
	if !k.IsValid() {
		return "", shared.WrapError("progress", "ParseTriggerKind", shared.ErrInvalidTrigger,
			fmt.Sprintf("unknown trigger kind %q", s), nil)
	}
	return k, nil
}

// ProfileUpdate - изменения фактов профиля, которые приходят из других сервисов.
// Nil-поле означает "без изменений".
type ProfileUpdate struct {
	ResumeAttached      *bool                 `json:"resume_attached,omitempty"`
	RoadmapProgress     *int                  `json:"roadmap_progress,omitempty"`
	ProfileCompleteness *int                  `json:"profile_completeness,omitempty"`
	CareersExplored     []string              `json:"careers_explored,omitempty"`
	Skills              map[string]SkillLevel `json:"skills,omitempty"`
}

// Trigger - событие, для которого проверяются правила достижений.
type Trigger struct {
	// Kind - тип события.
	Kind TriggerKind `json:"kind"`

	// Activity - завершённая активность (для activity_completed).
	Activity *ActivityEvent `json:"activity,omitempty"`

	// Amount - улучшение ATS (ats_improvement) или XP (xp_awarded).
	Amount int64 `json:"amount,omitempty"`

	// Count - число сообщений (chat_milestone).
	Count int `json:"count,omitempty"`

	// Reason - причина начисления (xp_awarded).
	Reason string `json:"reason,omitempty"`

	// CareerPath - выбранный путь (career_selected).
	CareerPath string `json:"career_path,omitempty"`

	// Profile - изменения профиля (profile_updated).
	Profile *ProfileUpdate `json:"profile,omitempty"`
}

// ActivityCompleted создаёт триггер завершения активности.
func ActivityCompleted(a ActivityEvent) Trigger {
	return Trigger{Kind: TriggerActivityCompleted, Activity: &a}
}

// AssessmentCompleted создаёт триггер завершения оценки навыков.
func AssessmentCompleted() Trigger {
	return Trigger{Kind: TriggerAssessmentCompleted}
}

// AtsImproved создаёт триггер улучшения ATS-оценки резюме.
func AtsImproved(amount int64) Trigger {
	return Trigger{Kind: TriggerAtsImprovement, Amount: amount}
}

// ChatMilestoneReached создаёт триггер достижения числа сообщений в чате.
func ChatMilestoneReached(count int) Trigger {
	return Trigger{Kind: TriggerChatMilestone, Count: count}
}

// CareerPathSelected создаёт триггер выбора карьерного пути.
func CareerPathSelected(path string) Trigger {
	return Trigger{Kind: TriggerCareerSelected, CareerPath: path}
}

// RoadmapCreated создаёт триггер построения дорожной карты.
func RoadmapCreated() Trigger {
	return Trigger{Kind: TriggerRoadmapGenerated}
}

// SkillGapAnalyzed создаёт триггер анализа пробелов в навыках.
func SkillGapAnalyzed() Trigger {
	return Trigger{Kind: TriggerSkillGapAnalysis}
}

// XPAwarded создаёт триггер прямого начисления XP.
func XPAwarded(amount int64, reason string) Trigger {
	return Trigger{Kind: TriggerXPAwarded, Amount: amount, Reason: reason}
}

// ProfileUpdated создаёт триггер обновления профиля.
func ProfileUpdated(update ProfileUpdate) Trigger {
	return Trigger{Kind: TriggerProfileUpdated, Profile: &update}
}

// Validate проверяет согласованность триггера.
func (t Trigger) Validate() error {
	invalid := func(msg string) error {
		return shared.WrapError("progress", "ValidateTrigger", shared.ErrInvalidTrigger, msg, nil)
	}

	if !t.Kind.IsValid() {
		return invalid(fmt.Sprintf("unknown trigger kind %q", t.Kind))
	}

	switch t.Kind {
	case TriggerActivityCompleted:
		if t.Activity == nil {
			return invalid("activity_completed trigger requires an activity")
		}
		return t.Activity.Validate()
	case TriggerAtsImprovement, TriggerXPAwarded:
		if t.Amount < 0 {
			return invalid(fmt.Sprintf("%s amount cannot be negative", t.Kind))
		}
	case TriggerChatMilestone:
		if t.Count < 0 {
			return invalid("chat message count cannot be negative")
		}
	case TriggerCareerSelected:
		if t.CareerPath == "" {
			return invalid("career_selected trigger requires a career path")
		}
	case TriggerProfileUpdated:
		if t.Profile == nil {
			return invalid("profile_updated trigger requires a profile update")
		}
		return t.Profile.validate()
	}

	return nil
}

func (u ProfileUpdate) validate() error {
	percent := func(name string, v *int) error {
		if v != nil && (*v < 0 || *v > 100) {
			return shared.WrapError("progress", "ValidateTrigger", shared.ErrInvalidTrigger,
				fmt.Sprintf("%s must be within 0..100, got %d", name, *v), nil)
		}
		return nil
	}

	if err := percent("roadmap_progress", u.RoadmapProgress); err != nil {
		return err
	}
	if err := percent("profile_completeness", u.ProfileCompleteness); err != nil {
		return err
	}
	for skill, lvl := range u.Skills {
		if skill == "" || !lvl.IsValid() {
			return shared.WrapError("progress", "ValidateTrigger", shared.ErrInvalidTrigger,
				fmt.Sprintf("invalid skill entry %q=%q", skill, lvl), nil)
		}
	}
	return nil
}

// apply переносит факты триггера в снимок (вызывается на копии).
func (t Trigger) apply(s *ProfileSnapshot) {
	switch t.Kind {
	case TriggerCareerSelected:
		s.SelectedCareerPath = t.CareerPath
		s.addCareer(t.CareerPath)
	case TriggerRoadmapGenerated:
		s.RoadmapGenerated = true
	case TriggerSkillGapAnalysis:
		s.SkillGapAnalysisDone = true
	case TriggerChatMilestone:
		if t.Count > s.ChatMessageCount {
			s.ChatMessageCount = t.Count
		}
	case TriggerAtsImprovement:
		if int(t.Amount) > s.BestAtsImprovement {
			s.BestAtsImprovement = int(t.Amount)
		}
	case TriggerProfileUpdated:
		u := t.Profile
		if u.ResumeAttached != nil {
			s.ResumeAttached = *u.ResumeAttached
		}
		if u.RoadmapProgress != nil {
			s.RoadmapProgress = *u.RoadmapProgress
		}
		if u.ProfileCompleteness != nil {
			s.ProfileCompleteness = *u.ProfileCompleteness
		}
		for _, c := range u.CareersExplored {
			s.addCareer(c)
		}
		for skill, lvl := range u.Skills {
			s.mergeSkill(skill, lvl)
		}
	}
}
