package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/careermentor/mentor-hub/internal/domain/notification"
	"github.com/careermentor/mentor-hub/internal/domain/progress"
	"github.com/careermentor/mentor-hub/internal/domain/shared"
	"github.com/careermentor/mentor-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD TRIGGER COMMAND
// Non-activity events from other services (career selected, chat milestone,
// ATS improvement, direct XP award, profile update) run through the same
// commit pipeline as activities.
// ══════════════════════════════════════════════════════════════════════════════

// RecordTriggerCommand contains a trigger for one user.
type RecordTriggerCommand struct {
	UserID        string
	Trigger       progress.Trigger
	CorrelationID string
}

// RecordTriggerResult contains the committed outcome.
type RecordTriggerResult struct {
	UserID          string
	Kind            progress.TriggerKind
	Duplicate       bool
	Outcome         *progress.ActivityOutcome
	Notifications   []notification.Notification
	Version         int64
	Attempts        int
	EventsPublished int
	CorrelationID   string
}

// RecordTriggerHandler handles the RecordTriggerCommand.
type RecordTriggerHandler struct {
	pipeline *pipeline
}

// NewRecordTriggerHandler creates a new RecordTriggerHandler.
func NewRecordTriggerHandler(deps Deps) *RecordTriggerHandler {
	return &RecordTriggerHandler{pipeline: newPipeline(deps, "record_trigger")}
}

// Handle executes the record trigger command.
func (h *RecordTriggerHandler) Handle(ctx context.Context, cmd RecordTriggerCommand) (*RecordTriggerResult, error) {
	start := time.Now()
	p := h.pipeline

	userID, err := validateUser("record_trigger", cmd.UserID)
	if err != nil {
		return nil, err
	}
	if err := cmd.Trigger.Validate(); err != nil {
		return nil, fmt.Errorf("record_trigger: %w", err)
	}

	result := &RecordTriggerResult{
		UserID:        userID,
		Kind:          cmd.Trigger.Kind,
		CorrelationID: p.correlationID(cmd.CorrelationID),
	}
	log := p.logger.With(logger.UserID(userID), logger.TriggerKind(string(cmd.Trigger.Kind)))

	c, err := p.commit(ctx, userID, func(snap *progress.ProfileSnapshot) (*progress.ActivityOutcome, error) {
		return p.deps.Orchestrator.ProcessTrigger(snap, cmd.Trigger)
	})
	if err != nil {
		if errors.Is(err, shared.ErrActivityAlreadyProcessed) {
			log.Info("duplicate trigger ignored")
			result.Duplicate = true
			return result, nil
		}
		log.Error("record trigger failed", zap.Error(err), elapsed(start))
		return nil, fmt.Errorf("record_trigger: %w", err)
	}

	result.Outcome = c.outcome
	result.Attempts = c.attempts
	result.Version = c.outcome.Snapshot.Version
	result.Notifications = p.deliverable(userID, c.outcome.Notifications)

	var events []shared.Event
	source := string(cmd.Trigger.Kind)
	if a := cmd.Trigger.Activity; a != nil && cmd.Trigger.Kind == progress.TriggerActivityCompleted {
		source = string(a.Kind)
		events = withCorrelation([]shared.Event{shared.NewActivityCompletedEvent(
			userID, a.ID, string(a.Kind),
			int64(c.outcome.XPAwarded), int64(c.outcome.Snapshot.ExperiencePoints),
			len(c.outcome.NewAchievements), len(c.outcome.NewlyCompletedMilestones),
			a.CompletedAt,
		)}, result.CorrelationID)
	} else if cmd.Trigger.Reason != "" {
		source = cmd.Trigger.Reason
	}
	events = append(events, p.outcomeEvents(c, source, result.Notifications, result.CorrelationID)...)
	result.EventsPublished = p.publish(userID, events)

	log.Info("trigger recorded",
		logger.XPAmount(int64(c.outcome.TotalXPGained())),
		logger.Level(c.outcome.Snapshot.Level),
		logger.Version(result.Version),
		logger.Attempt(c.attempts),
		elapsed(start),
	)

	return result, nil
}
