package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Handlers subscribe to these on the event bus.
const (
	// Profile events
	EventProfileCreated EventType = "profile.created"

	// Progress events
	EventActivityCompleted   EventType = "progress.activity_completed"
	EventXPGained            EventType = "progress.xp_gained"
	EventLevelUp             EventType = "progress.level_up"
	EventAchievementUnlocked EventType = "progress.achievement_unlocked"
	EventMilestoneCompleted  EventType = "progress.milestone_completed"
	EventStreakUpdated       EventType = "progress.streak_updated"

	// Notification events (UI-facing payloads)
	EventNotificationRaised EventType = "notification.raised"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event stamped with the given time.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// Correlation returns the correlation ID, if any.
func (e BaseEvent) Correlation() string {
	return e.CorrelationID
}

// ═══════════════════════════════════════════════════════════════════════════
// Profile Events
// ═══════════════════════════════════════════════════════════════════════════

// ProfileCreatedEvent is emitted when a new progress profile is initialised.
type ProfileCreatedEvent struct {
	BaseEvent
	UserID         string `json:"user_id"`
	MilestoneCount int    `json:"milestone_count"`
}

// Payload implements Event interface.
func (e ProfileCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         e.UserID,
		"milestone_count": e.MilestoneCount,
	}
}

// NewProfileCreatedEvent creates a new ProfileCreatedEvent.
func NewProfileCreatedEvent(userID string, milestoneCount int, at time.Time) ProfileCreatedEvent {
	return ProfileCreatedEvent{
		BaseEvent:      NewBaseEvent(EventProfileCreated, userID, at),
		UserID:         userID,
		MilestoneCount: milestoneCount,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// ActivityCompletedEvent is emitted after an activity completion was committed.
type ActivityCompletedEvent struct {
	BaseEvent
	UserID          string `json:"user_id"`
	ActivityID      string `json:"activity_id"`
	Kind            string `json:"kind"`
	XPAwarded       int64  `json:"xp_awarded"`
	TotalXP         int64  `json:"total_xp"`
	NewAchievements int    `json:"new_achievements"`
	NewMilestones   int    `json:"new_milestones"`
}

// Payload implements Event interface.
func (e ActivityCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":          e.UserID,
		"activity_id":      e.ActivityID,
		"kind":             e.Kind,
		"xp_awarded":       e.XPAwarded,
		"total_xp":         e.TotalXP,
		"new_achievements": e.NewAchievements,
		"new_milestones":   e.NewMilestones,
	}
}

// NewActivityCompletedEvent creates a new ActivityCompletedEvent.
func NewActivityCompletedEvent(userID, activityID, kind string, xpAwarded, totalXP int64, achievements, milestones int, at time.Time) ActivityCompletedEvent {
	return ActivityCompletedEvent{
		BaseEvent:       NewBaseEvent(EventActivityCompleted, userID, at),
		UserID:          userID,
		ActivityID:      activityID,
		Kind:            kind,
		XPAwarded:       xpAwarded,
		TotalXP:         totalXP,
		NewAchievements: achievements,
		NewMilestones:   milestones,
	}
}

// XPGainedEvent is emitted when a profile gains XP.
type XPGainedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	Amount   int64  `json:"amount"`
	NewTotal int64  `json:"new_total"`
	Source   string `json:"source"` // e.g., "activity", "achievement", "milestone"
}

// Payload implements Event interface.
func (e XPGainedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"amount":    e.Amount,
		"new_total": e.NewTotal,
		"source":    e.Source,
	}
}

// NewXPGainedEvent creates a new XPGainedEvent.
func NewXPGainedEvent(userID string, amount, newTotal int64, source string, at time.Time) XPGainedEvent {
	return XPGainedEvent{
		BaseEvent: NewBaseEvent(EventXPGained, userID, at),
		UserID:    userID,
		Amount:    amount,
		NewTotal:  newTotal,
		Source:    source,
	}
}

// LevelUpEvent is emitted when the committed level of a profile rises.
type LevelUpEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
	Title    string `json:"title"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
		"title":     e.Title,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel int, title string, at time.Time) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID, at),
		UserID:    userID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		Title:     title,
	}
}

// AchievementUnlockedEvent is emitted once per newly earned achievement.
type AchievementUnlockedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	AchievementID string `json:"achievement_id"`
	XPReward      int64  `json:"xp_reward"`
	MilestoneID   string `json:"milestone_id,omitempty"` // set for milestone rewards
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	p := map[string]interface{}{
		"user_id":        e.UserID,
		"achievement_id": e.AchievementID,
		"xp_reward":      e.XPReward,
	}
	if e.MilestoneID != "" {
		p["milestone_id"] = e.MilestoneID
	}
	return p
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(userID, achievementID string, xpReward int64, milestoneID string, at time.Time) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:     NewBaseEvent(EventAchievementUnlocked, userID, at),
		UserID:        userID,
		AchievementID: achievementID,
		XPReward:      xpReward,
		MilestoneID:   milestoneID,
	}
}

// MilestoneCompletedEvent is emitted when a milestone flips to completed.
type MilestoneCompletedEvent struct {
	BaseEvent
	UserID      string `json:"user_id"`
	MilestoneID string `json:"milestone_id"`
	Title       string `json:"title"`
}

// Payload implements Event interface.
func (e MilestoneCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"milestone_id": e.MilestoneID,
		"title":        e.Title,
	}
}

// NewMilestoneCompletedEvent creates a new MilestoneCompletedEvent.
func NewMilestoneCompletedEvent(userID, milestoneID, title string, at time.Time) MilestoneCompletedEvent {
	return MilestoneCompletedEvent{
		BaseEvent:   NewBaseEvent(EventMilestoneCompleted, userID, at),
		UserID:      userID,
		MilestoneID: milestoneID,
		Title:       title,
	}
}

// StreakUpdatedEvent is emitted when the current streak changes.
type StreakUpdatedEvent struct {
	BaseEvent
	UserID  string `json:"user_id"`
	Current int    `json:"current"`
	Longest int    `json:"longest"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"current": e.Current,
		"longest": e.Longest,
	}
}

// NewStreakUpdatedEvent creates a new StreakUpdatedEvent.
func NewStreakUpdatedEvent(userID string, current, longest int, at time.Time) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent: NewBaseEvent(EventStreakUpdated, userID, at),
		UserID:    userID,
		Current:   current,
		Longest:   longest,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Notification Events
// ═══════════════════════════════════════════════════════════════════════════

// NotificationRaisedEvent carries one UI-facing notification to the delivery channel.
type NotificationRaisedEvent struct {
	BaseEvent
	UserID         string `json:"user_id"`
	NotificationID string `json:"notification_id"`
	Kind           string `json:"kind"` // achievement, levelup, streak
	Title          string `json:"title"`
	Message        string `json:"message"`
	XP             *int64 `json:"xp,omitempty"`
	Level          *int   `json:"level,omitempty"`
	Streak         *int   `json:"streak,omitempty"`
}

// Payload implements Event interface.
func (e NotificationRaisedEvent) Payload() map[string]interface{} {
	p := map[string]interface{}{
		"user_id":         e.UserID,
		"notification_id": e.NotificationID,
		"kind":            e.Kind,
		"title":           e.Title,
		"message":         e.Message,
	}
	if e.XP != nil {
		p["xp"] = *e.XP
	}
	if e.Level != nil {
		p["level"] = *e.Level
	}
	if e.Streak != nil {
		p["streak"] = *e.Streak
	}
	return p
}

// NewNotificationRaisedEvent creates a new NotificationRaisedEvent.
func NewNotificationRaisedEvent(userID, notificationID, kind, title, message string, at time.Time) NotificationRaisedEvent {
	return NotificationRaisedEvent{
		BaseEvent:      NewBaseEvent(EventNotificationRaised, userID, at),
		UserID:         userID,
		NotificationID: notificationID,
		Kind:           kind,
		Title:          title,
		Message:        message,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEventEnvelope wraps e with its JSON-encoded payload.
func NewEventEnvelope(id string, e Event) (EventEnvelope, error) {
	payload, err := json.Marshal(e.Payload())
	if err != nil {
		return EventEnvelope{}, err
	}

	env := EventEnvelope{
		ID:          id,
		Type:        e.EventType(),
		AggregateID: e.AggregateID(),
		Timestamp:   e.OccurredAt(),
		Version:     1,
		Payload:     payload,
	}
	if b, ok := e.(interface{ Correlation() string }); ok {
		env.CorrelationID = b.Correlation()
	}
	return env, nil
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
