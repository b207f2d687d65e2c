package progress

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/careermentor/mentor-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY (Учебная активность)
// ══════════════════════════════════════════════════════════════════════════════

// ActivityKind - тип учебной активности.
type ActivityKind string

const (
	ActivityCourse        ActivityKind = "course"
	ActivityCertification ActivityKind = "certification"
	ActivityProject       ActivityKind = "project"
	ActivityBook          ActivityKind = "book"
	ActivityVideo         ActivityKind = "video"
	ActivityPractice      ActivityKind = "practice"
)

// IsKnown возвращает true для перечисленных типов. Неизвестный тип не ошибка:
// за него начисляется базовый XP.
func (k ActivityKind) IsKnown() bool {
	switch k {
	case ActivityCourse, ActivityCertification, ActivityProject,
		ActivityBook, ActivityVideo, ActivityPractice:
		return true
	}
	return false
}

// XP за завершение активности.
const (
	XPCourse        XP = 50
	XPCertification XP = 150
	XPProject       XP = 100
	XPDefault       XP = 50
)

// XPForKind возвращает XP за завершение активности данного типа.
func XPForKind(kind ActivityKind) XP {
	switch kind {
	case ActivityCourse:
		return XPCourse
	case ActivityCertification:
		return XPCertification
	case ActivityProject:
		return XPProject
	default:
		return XPDefault
	}
}

// ActivityEvent - событие завершения учебной активности.
type ActivityEvent struct {
	// ID - уникальный идентификатор события (ключ идемпотентности).
	ID string `json:"id" yaml:"id" validate:"required"`

	// ResourceID - ресурс дорожной карты, к которому относится активность.
	ResourceID string `json:"resource_id,omitempty" yaml:"resource_id"`

	// Title - название активности.
	Title string `json:"title" yaml:"title"`

	// Kind - тип активности.
	Kind ActivityKind `json:"kind" yaml:"kind" validate:"required"`

	// CompletedAt - время завершения.
	CompletedAt time.Time `json:"completed_at" yaml:"completed_at" validate:"required"`

	// TimeSpentMinutes - затраченное время в минутах.
	TimeSpentMinutes int `json:"time_spent_minutes" yaml:"time_spent_minutes" validate:"gte=0"`

	// SkillsGained - приобретённые навыки.
	SkillsGained []string `json:"skills_gained,omitempty" yaml:"skills_gained" validate:"dive,required"`

	// Rating - оценка 1..5 (опционально).
	Rating *int `json:"rating,omitempty" yaml:"rating" validate:"omitempty,min=1,max=5"`
}

var activityValidator = validator.New()

// Validate проверяет событие активности.
func (a ActivityEvent) Validate() error {
	if err := activityValidator.Struct(a); err != nil {
		return shared.WrapError("progress", "ValidateActivity", shared.ErrInvalidActivity,
			describeValidation(err), err)
	}
	return nil
}

// describeValidation превращает ошибки validator в короткое сообщение.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid activity event"
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// ActivityLogEntry - запись журнала обработанных активностей.
type ActivityLogEntry struct {
	ID          string       `json:"id"`
	ResourceID  string       `json:"resource_id,omitempty"`
	Kind        ActivityKind `json:"kind"`
	CompletedAt time.Time    `json:"completed_at"`
	XPAwarded   XP           `json:"xp_awarded"`
}
