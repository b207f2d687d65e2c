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
// COMPLETE ACTIVITY COMMAND
// Applies one finished learning activity to a user's progress: XP, streak,
// achievements and milestones, committed atomically per profile.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteActivityCommand contains the data to complete an activity.
type CompleteActivityCommand struct {
	// UserID is the profile owner.
	UserID string

	// Activity is the finished activity. Activity.ID is the idempotency key.
	Activity progress.ActivityEvent

	// CorrelationID for tracing. Generated when empty.
	CorrelationID string
}

// Validate validates the command.
func (c CompleteActivityCommand) Validate() error {
	if _, err := validateUser("complete_activity", c.UserID); err != nil {
		return err
	}
	return c.Activity.Validate()
}

// CompleteActivityResult contains the result of completing an activity.
type CompleteActivityResult struct {
	// UserID is the profile owner.
	UserID string

	// ActivityID echoes the processed activity.
	ActivityID string

	// Duplicate is true when the activity had already been applied.
	// Nothing was committed and Outcome is nil.
	Duplicate bool

	// Outcome is the engine result for the committed step.
	Outcome *progress.ActivityOutcome

	// Notifications are the outcome notifications that passed the feature flags.
	Notifications []notification.Notification

	// Version is the snapshot version after commit.
	Version int64

	// Attempts is how many load-step-save rounds the commit took.
	Attempts int

	// EventsPublished counts events accepted by the publisher.
	EventsPublished int

	// CorrelationID used for the emitted events.
	CorrelationID string
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CompleteActivityHandler handles the CompleteActivityCommand.
type CompleteActivityHandler struct {
	pipeline *pipeline
}

// NewCompleteActivityHandler creates a new CompleteActivityHandler.
func NewCompleteActivityHandler(deps Deps) *CompleteActivityHandler {
	return &CompleteActivityHandler{pipeline: newPipeline(deps, "complete_activity")}
}

// Handle executes the complete activity command.
func (h *CompleteActivityHandler) Handle(ctx context.Context, cmd CompleteActivityCommand) (*CompleteActivityResult, error) {
	start := time.Now()
	p := h.pipeline

	userID, err := validateUser("complete_activity", cmd.UserID)
	if err != nil {
		return nil, err
	}
	if err := cmd.Activity.Validate(); err != nil {
		return nil, fmt.Errorf("complete_activity: %w", err)
	}

	result := &CompleteActivityResult{
		UserID:        userID,
		ActivityID:    cmd.Activity.ID,
		CorrelationID: p.correlationID(cmd.CorrelationID),
	}
	log := p.logger.With(
		logger.UserID(userID),
		logger.ActivityID(cmd.Activity.ID),
		logger.ActivityKind(string(cmd.Activity.Kind)),
	)

	c, err := p.commit(ctx, userID, func(snap *progress.ProfileSnapshot) (*progress.ActivityOutcome, error) {
		return p.deps.Orchestrator.ProcessActivity(snap, cmd.Activity)
	})
	if err != nil {
		if errors.Is(err, shared.ErrActivityAlreadyProcessed) {
			log.Info("duplicate activity ignored")
			result.Duplicate = true
			return result, nil
		}
		log.Error("complete activity failed", zap.Error(err), elapsed(start))
		return nil, fmt.Errorf("complete_activity: %w", err)
	}

	result.Outcome = c.outcome
	result.Attempts = c.attempts
	result.Version = c.outcome.Snapshot.Version
	result.Notifications = p.deliverable(userID, c.outcome.Notifications)

	events := make([]shared.Event, 0, 1)
	events = append(events, shared.NewActivityCompletedEvent(
		userID,
		cmd.Activity.ID,
		string(cmd.Activity.Kind),
		int64(c.outcome.XPAwarded),
		int64(c.outcome.Snapshot.ExperiencePoints),
		len(c.outcome.NewAchievements),
		len(c.outcome.NewlyCompletedMilestones),
		cmd.Activity.CompletedAt,
	))
	events = withCorrelation(events, result.CorrelationID)
	events = append(events, p.outcomeEvents(c, string(cmd.Activity.Kind), result.Notifications, result.CorrelationID)...)
	result.EventsPublished = p.publish(userID, events)

	log.Info("activity completed",
		logger.XPAmount(int64(c.outcome.TotalXPGained())),
		logger.Level(c.outcome.Snapshot.Level),
		logger.Version(result.Version),
		logger.Attempt(c.attempts),
		zap.Int("achievements", len(c.outcome.NewAchievements)),
		zap.Int("milestones", len(c.outcome.NewlyCompletedMilestones)),
		elapsed(start),
	)

	return result, nil
}
