// Package command contains write operations (CQRS - Commands).
//
// Every command follows the same commit pipeline: load the profile snapshot,
// run one pure engine step, save with compare-and-swap, and on a version
// conflict reload and try again. Side effects (cache invalidation, events,
// notifications) happen only after a successful commit.
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/careermentor/mentor-hub/config"
	"github.com/careermentor/mentor-hub/internal/domain/notification"
	"github.com/careermentor/mentor-hub/internal/domain/progress"
	"github.com/careermentor/mentor-hub/internal/domain/shared"
	"github.com/careermentor/mentor-hub/pkg/logger"
	"github.com/careermentor/mentor-hub/pkg/retry"
	"github.com/careermentor/mentor-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Deps holds the collaborators shared by all command handlers.
type Deps struct {
	// Store is the source of truth for snapshots.
	Store progress.ProfileStore

	// Cache is optional; nil disables read-through and invalidation.
	Cache progress.ProfileCache

	// Orchestrator runs the engine step.
	Orchestrator *progress.Orchestrator

	// Publisher receives domain events after commit. Optional.
	Publisher shared.EventPublisher

	// Flags gates notifications, publishing and cache reads. Nil enables everything.
	Flags *config.FeatureFlags

	// Logger for structured logging.
	Logger *zap.Logger

	// Clock is used for event timestamps.
	Clock timeutil.Clock

	// NewID generates correlation IDs when a command carries none.
	NewID func() string

	// MaxAttempts bounds the reload-and-retry loop on version conflicts.
	MaxAttempts int

	// RetryOptions are appended to the conflict retrier (tests pass WithSleep).
	RetryOptions []retry.Option
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = timeutil.SystemClock
	}
	if d.NewID == nil {
		d.NewID = func() string { return "" }
	}
	if d.MaxAttempts <= 0 {
		d.MaxAttempts = 5
	}
	if d.Orchestrator == nil {
		d.Orchestrator = progress.NewOrchestrator(nil, progress.WithClock(d.Clock))
	}
	return d
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMIT PIPELINE
// ══════════════════════════════════════════════════════════════════════════════

// stepFunc applies one engine step to a loaded snapshot.
type stepFunc func(snap *progress.ProfileSnapshot) (*progress.ActivityOutcome, error)

// committed is the result of a successful commit.
type committed struct {
	previous *progress.ProfileSnapshot
	outcome  *progress.ActivityOutcome
	attempts int
}

// pipeline runs stepFunc under optimistic concurrency.
type pipeline struct {
	deps    Deps
	retrier *retry.Retrier
	logger  *zap.Logger
}

func newPipeline(deps Deps, component string) *pipeline {
	deps = deps.withDefaults()
	return &pipeline{
		deps:    deps,
		retrier: retry.ConflictRetrier(deps.MaxAttempts, isConflict, deps.RetryOptions...),
		logger:  deps.Logger.With(logger.Component(component)),
	}
}

// isConflict reports whether the commit lost a version race.
func isConflict(err error) bool {
	return errors.Is(err, shared.ErrConcurrentModification)
}

// commit loads, steps and saves userID's snapshot, retrying on conflict.
// The first attempt may read from the cache; retries always read the store.
func (p *pipeline) commit(ctx context.Context, userID string, step stepFunc) (*committed, error) {
	result := &committed{}

	err := p.retrier.Do(ctx, func(ctx context.Context) error {
		result.attempts++

		snap, err := p.load(ctx, userID, result.attempts == 1)
		if err != nil {
			return err
		}

		outcome, err := step(snap)
		if err != nil {
			return err
		}

		if err := p.deps.Store.Save(ctx, outcome.Snapshot); err != nil {
			if isConflict(err) {
				p.logger.Debug("version conflict, reloading",
					logger.UserID(userID),
					logger.Version(snap.Version),
					logger.Attempt(result.attempts),
				)
				p.invalidate(ctx, userID)
			}
			return err
		}

		result.previous = snap
		result.outcome = outcome
		return nil
	})
	if err != nil {
		if isConflict(err) {
			p.logger.Warn("commit gave up after conflicts",
				logger.UserID(userID),
				logger.Attempt(result.attempts),
			)
		}
		return nil, err
	}

	p.invalidate(ctx, userID)
	return result, nil
}

// load reads the snapshot, from the cache when allowed.
func (p *pipeline) load(ctx context.Context, userID string, allowCache bool) (*progress.ProfileSnapshot, error) {
	if allowCache && p.deps.Cache != nil && p.deps.Flags.IsEnabled(config.FeatureCacheReads, userID) {
		snap, ok, err := p.deps.Cache.Get(ctx, userID)
		if err != nil {
			p.logger.Warn("cache read failed", logger.UserID(userID), zap.Error(err))
		} else if ok {
			return snap, nil
		}
	}

	snap, err := p.deps.Store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if p.deps.Cache != nil {
		if err := p.deps.Cache.Set(ctx, snap); err != nil {
			p.logger.Warn("cache fill failed", logger.UserID(userID), zap.Error(err))
		}
	}
	return snap, nil
}

func (p *pipeline) invalidate(ctx context.Context, userID string) {
	if p.deps.Cache == nil {
		return
	}
	if err := p.deps.Cache.Invalidate(ctx, userID); err != nil {
		p.logger.Warn("cache invalidation failed", logger.UserID(userID), zap.Error(err))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SIDE EFFECTS
// ══════════════════════════════════════════════════════════════════════════════

// deliverable filters notifications through the per-user feature flags.
func (p *pipeline) deliverable(userID string, list []notification.Notification) []notification.Notification {
	out := make([]notification.Notification, 0, len(list))
	for _, n := range list {
		var flag string
		switch n.Type {
		case notification.TypeAchievement:
			flag = config.FeatureNotifyAchievement
		case notification.TypeLevelUp:
			flag = config.FeatureNotifyLevelUp
		case notification.TypeStreak:
			flag = config.FeatureNotifyStreak
		}
		if flag == "" || p.deps.Flags.IsEnabled(flag, userID) {
			out = append(out, n)
		}
	}
	return out
}

// outcomeEvents builds the domain events for a committed step.
func (p *pipeline) outcomeEvents(c *committed, source string, delivered []notification.Notification, correlationID string) []shared.Event {
	prev, out := c.previous, c.outcome
	next := out.Snapshot
	userID := next.UserID
	now := p.deps.Clock().UTC()
	registry := p.deps.Orchestrator.Registry()

	events := make([]shared.Event, 0, 4+len(out.NewAchievements)+2*len(out.NewlyCompletedMilestones)+len(delivered))

	if gained := out.TotalXPGained(); gained > 0 {
		events = append(events, shared.NewXPGainedEvent(userID, int64(gained), int64(next.ExperiencePoints), source, now))
	}

	for _, ea := range out.NewAchievements {
		def, _ := registry.Get(ea.ID)
		events = append(events, shared.NewAchievementUnlockedEvent(userID, string(ea.ID), int64(def.XPReward), "", ea.EarnedAt))
	}
	for _, m := range out.NewlyCompletedMilestones {
		events = append(events,
			shared.NewMilestoneCompletedEvent(userID, m.MilestoneID, m.Title, m.Reward.EarnedAt),
			shared.NewAchievementUnlockedEvent(userID, string(m.Reward.ID), int64(m.RewardDef.XPReward), m.MilestoneID, m.Reward.EarnedAt),
		)
	}

	before := progress.LevelOf(prev.ExperiencePoints)
	after := progress.LevelOf(next.ExperiencePoints)
	if after.CurrentLevel > before.CurrentLevel {
		events = append(events, shared.NewLevelUpEvent(userID, before.CurrentLevel, after.CurrentLevel, after.LevelTitle, now))
	}

	if next.Streak.CurrentStreak != prev.Streak.CurrentStreak {
		events = append(events, shared.NewStreakUpdatedEvent(userID, next.Streak.CurrentStreak, next.Streak.LongestStreak, now))
	}

	for _, n := range delivered {
		events = append(events, notificationEvent(n))
	}

	return withCorrelation(events, correlationID)
}

// publish sends events when publishing is enabled for the user.
// Publish failures are logged; the commit already happened.
func (p *pipeline) publish(userID string, events []shared.Event) int {
	if p.deps.Publisher == nil || !p.deps.Flags.IsEnabled(config.FeatureEventsPublish, userID) {
		return 0
	}

	sent := 0
	for _, e := range events {
		if err := p.deps.Publisher.Publish(e); err != nil {
			p.logger.Warn("event publish failed",
				logger.UserID(userID),
				zap.String("event_type", string(e.EventType())),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent
}

func (p *pipeline) correlationID(given string) string {
	if given != "" {
		return given
	}
	return p.deps.NewID()
}

func notificationEvent(n notification.Notification) shared.NotificationRaisedEvent {
	e := shared.NewNotificationRaisedEvent(n.UserID, string(n.ID), string(n.Type), n.Title, n.Message, n.Timestamp)
	e.XP = n.XP
	e.Level = n.Level
	e.Streak = n.Streak
	return e
}

// withCorrelation stamps correlationID on every event that supports it.
func withCorrelation(events []shared.Event, correlationID string) []shared.Event {
	if correlationID == "" {
		return events
	}
	for i, e := range events {
		switch ev := e.(type) {
		case shared.ProfileCreatedEvent:
			ev.BaseEvent = ev.BaseEvent.WithCorrelationID(correlationID)
			events[i] = ev
		case shared.ActivityCompletedEvent:
			ev.BaseEvent = ev.BaseEvent.WithCorrelationID(correlationID)
			events[i] = ev
		case shared.XPGainedEvent:
			ev.BaseEvent = ev.BaseEvent.WithCorrelationID(correlationID)
			events[i] = ev
		case shared.LevelUpEvent:
			ev.BaseEvent = ev.BaseEvent.WithCorrelationID(correlationID)
			events[i] = ev
		case shared.AchievementUnlockedEvent:
			ev.BaseEvent = ev.BaseEvent.WithCorrelationID(correlationID)
			events[i] = ev
		case shared.MilestoneCompletedEvent:
			ev.BaseEvent = ev.BaseEvent.WithCorrelationID(correlationID)
			events[i] = ev
		case shared.StreakUpdatedEvent:
			ev.BaseEvent = ev.BaseEvent.WithCorrelationID(correlationID)
			events[i] = ev
		case shared.NotificationRaisedEvent:
			ev.BaseEvent = ev.BaseEvent.WithCorrelationID(correlationID)
			events[i] = ev
		}
	}
	return events
}

// validateUser normalises and validates a user id.
func validateUser(op, raw string) (string, error) {
	id, err := shared.NewUserID(raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id.String(), nil
}

// elapsed is a small helper for latency fields.
func elapsed(start time.Time) zap.Field {
	return logger.Latency(time.Since(start))
}
