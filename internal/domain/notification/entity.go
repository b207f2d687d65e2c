// Package notification содержит доменную модель уведомлений Mentor Hub.
// Уведомления сообщают пользователю о новых достижениях, повышении уровня
// и круглых сериях активности. Доставка (UI, шина событий) - вне пакета.
package notification

import (
	"errors"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// NotificationID представляет уникальный идентификатор уведомления.
type NotificationID string

// IsValid проверяет, что ID не пустой.
func (id NotificationID) IsValid() bool {
	return len(id) > 0
}

// String возвращает строковое представление ID.
func (id NotificationID) String() string {
	return string(id)
}

// IDGenerator выдаёт идентификаторы уведомлений.
type IDGenerator func() NotificationID

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION TYPE
// ══════════════════════════════════════════════════════════════════════════════

// NotificationType определяет тип уведомления.
type NotificationType string

const (
	// TypeAchievement - получено достижение (включая награду за веху).
	// "🏅 Achievement Unlocked! First Steps"
	TypeAchievement NotificationType = "achievement"

	// TypeLevelUp - повышение уровня.
	// "⬆️ Level Up! You reached level 2"
	TypeLevelUp NotificationType = "levelup"

	// TypeStreak - серия достигла кратного 7 значения.
	// "🔥 7-Day Streak!"
	TypeStreak NotificationType = "streak"
)

// IsValid проверяет, что тип уведомления известен.
func (t NotificationType) IsValid() bool {
	switch t {
	case TypeAchievement, TypeLevelUp, TypeStreak:
		return true
	}
	return false
}

// Emoji возвращает эмодзи для данного типа уведомления.
func (t NotificationType) Emoji() string {
	switch t {
	case TypeAchievement:
		return "🏅"
	case TypeLevelUp:
		return "⬆️"
	case TypeStreak:
		return "🔥"
	default:
		return "📬"
	}
}

// String возвращает строковое представление типа.
func (t NotificationType) String() string {
	return string(t)
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Notification представляет уведомление для дашборда пользователя.
type Notification struct {
	// ID - уникальный идентификатор уведомления.
	ID NotificationID `json:"id"`

	// UserID - получатель.
	UserID string `json:"user_id"`

	// Type - тип уведомления.
	Type NotificationType `json:"type"`

	// Title - заголовок.
	Title string `json:"title"`

	// Message - текст уведомления.
	Message string `json:"message"`

	// Timestamp - время события.
	Timestamp time.Time `json:"timestamp"`

	// XP - награда в XP (для достижений).
	XP *int64 `json:"xp,omitempty"`

	// Level - новый уровень (для levelup).
	Level *int `json:"level,omitempty"`

	// Streak - длина серии (для streak).
	Streak *int `json:"streak,omitempty"`
}

// Validate проверяет обязательные поля уведомления.
func (n Notification) Validate() error {
	if !n.ID.IsValid() {
		return ErrInvalidNotificationID
	}
	if !n.Type.IsValid() {
		return ErrInvalidNotificationType
	}
	if n.Message == "" {
		return ErrEmptyMessage
	}
	return nil
}

// String возвращает строковое представление уведомления.
func (n Notification) String() string {
	return fmt.Sprintf("%s %s: %s", n.Type.Emoji(), n.Title, n.Message)
}

// ══════════════════════════════════════════════════════════════════════════════
// FACTORIES
// ══════════════════════════════════════════════════════════════════════════════

// NewAchievement создаёт уведомление о полученном достижении.
func NewAchievement(id NotificationID, userID, title, description string, xp int64, at time.Time) Notification {
	message := title
	if description != "" {
		message = fmt.Sprintf("%s - %s", title, description)
	}
	if xp > 0 {
		message = fmt.Sprintf("%s (+%d XP)", message, xp)
	}

	return Notification{
		ID:        id,
		UserID:    userID,
		Type:      TypeAchievement,
		Title:     "Achievement Unlocked!",
		Message:   message,
		Timestamp: at,
		XP:        &xp,
	}
}

// NewLevelUp создаёт уведомление о повышении уровня.
func NewLevelUp(id NotificationID, userID string, level int, levelTitle string, at time.Time) Notification {
	return Notification{
		ID:        id,
		UserID:    userID,
		Type:      TypeLevelUp,
		Title:     "Level Up!",
		Message:   fmt.Sprintf("You reached level %d: %s", level, levelTitle),
		Timestamp: at,
		Level:     &level,
	}
}

// NewStreak создаёт уведомление о серии. unit - "day" или "week".
func NewStreak(id NotificationID, userID string, streak int, unit string, at time.Time) Notification {
	if unit == "" {
		unit = "day"
	}

	titleUnit := "Day"
	if unit == "week" {
		titleUnit = "Week"
	}

	return Notification{
		ID:        id,
		UserID:    userID,
		Type:      TypeStreak,
		Title:     fmt.Sprintf("%d-%s Streak!", streak, titleUnit),
		Message:   fmt.Sprintf("You have been learning %d %ss in a row. Keep it up!", streak, unit),
		Timestamp: at,
		Streak:    &streak,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidNotificationID - пустой ID уведомления.
	ErrInvalidNotificationID = errors.New("invalid notification id: cannot be empty")

	// ErrInvalidNotificationType - неизвестный тип уведомления.
	ErrInvalidNotificationType = errors.New("invalid notification type")

	// ErrEmptyMessage - пустой текст уведомления.
	ErrEmptyMessage = errors.New("notification message cannot be empty")
)
