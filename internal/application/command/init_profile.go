package command

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/careermentor/mentor-hub/internal/domain/progress"
	"github.com/careermentor/mentor-hub/internal/domain/shared"
	"github.com/careermentor/mentor-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// INIT PROFILE COMMAND
// Creates an empty progress profile seeded with the active milestone set.
// ══════════════════════════════════════════════════════════════════════════════

// InitProfileCommand contains the data to create a profile.
type InitProfileCommand struct {
	UserID string

	// IfNotExists returns the stored profile instead of failing when it exists.
	IfNotExists bool

	CorrelationID string
}

// InitProfileResult contains the created (or existing) profile.
type InitProfileResult struct {
	Snapshot *progress.ProfileSnapshot
	Created  bool
}

// InitProfileHandler handles the InitProfileCommand.
type InitProfileHandler struct {
	pipeline   *pipeline
	milestones []progress.Milestone
}

// NewInitProfileHandler creates a handler that seeds profiles with milestones.
// A nil milestone set means the built-in defaults.
func NewInitProfileHandler(deps Deps, milestones []progress.Milestone) *InitProfileHandler {
	if milestones == nil {
		milestones = progress.DefaultMilestones()
	}
	return &InitProfileHandler{
		pipeline:   newPipeline(deps, "init_profile"),
		milestones: milestones,
	}
}

// Handle executes the init profile command.
func (h *InitProfileHandler) Handle(ctx context.Context, cmd InitProfileCommand) (*InitProfileResult, error) {
	p := h.pipeline

	userID, err := validateUser("init_profile", cmd.UserID)
	if err != nil {
		return nil, err
	}

	snap := progress.NewProfileSnapshotWithMilestones(userID, p.deps.Clock(), h.milestones)
	if err := p.deps.Store.Create(ctx, snap); err != nil {
		if cmd.IfNotExists && errors.Is(err, shared.ErrAlreadyExists) {
			existing, getErr := p.deps.Store.Get(ctx, userID)
			if getErr != nil {
				return nil, fmt.Errorf("init_profile: %w", getErr)
			}
			return &InitProfileResult{Snapshot: existing}, nil
		}
		return nil, fmt.Errorf("init_profile: %w", err)
	}

	event := shared.NewProfileCreatedEvent(userID, len(snap.Milestones), snap.CreatedAt)
	p.publish(userID, withCorrelation([]shared.Event{event}, p.correlationID(cmd.CorrelationID)))

	p.logger.Info("profile created",
		logger.UserID(userID),
		logger.Version(snap.Version),
		zap.Int("milestones", len(snap.Milestones)),
	)

	return &InitProfileResult{Snapshot: snap, Created: true}, nil
}
