package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/careermentor/mentor-hub/config"
	"github.com/careermentor/mentor-hub/internal/domain/progress"
	"github.com/careermentor/mentor-hub/internal/domain/shared"
	"github.com/careermentor/mentor-hub/internal/infrastructure/persistence/memory"
	"github.com/careermentor/mentor-hub/pkg/retry"
	"github.com/careermentor/mentor-hub/pkg/timeutil"
)

var day1 = timeutil.DateTime(2025, 1, 1, 10, 0, 0)

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []shared.Event
}

func (r *recorder) Publish(e shared.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []shared.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shared.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType())
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// racingStore lets a competing writer commit right before each of the next
// `races` saves, so those saves lose the version race.
type racingStore struct {
	*memory.Store
	mu    sync.Mutex
	races int
}

func (s *racingStore) Save(ctx context.Context, snap *progress.ProfileSnapshot) error {
	s.mu.Lock()
	race := s.races > 0
	if race {
		s.races--
	}
	s.mu.Unlock()

	if race {
		competitor, err := s.Store.Get(ctx, snap.UserID)
		if err != nil {
			return err
		}
		competitor.ChatMessageCount++
		if err := s.Store.Save(ctx, competitor); err != nil {
			return err
		}
	}
	return s.Store.Save(ctx, snap)
}

type fixture struct {
	store *memory.Store
	pub   *recorder
	flags *config.FeatureFlags
	deps  Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := timeutil.FixedClock(day1)
	f := &fixture{
		store: memory.NewStore(),
		pub:   &recorder{},
		flags: config.NewFeatureFlags(),
	}
	f.deps = Deps{
		Store:        f.store,
		Orchestrator: progress.NewOrchestrator(progress.DefaultRegistry(), progress.WithClock(clock)),
		Publisher:    f.pub,
		Flags:        f.flags,
		Clock:        clock,
		NewID:        func() string { return "generated" },
		MaxAttempts:  5,
		RetryOptions: []retry.Option{retry.WithSleep(func(context.Context, time.Duration) error { return nil })},
	}
	return f
}

func (f *fixture) initProfile(t *testing.T, userID string) {
	t.Helper()
	_, err := NewInitProfileHandler(f.deps, nil).Handle(context.Background(), InitProfileCommand{UserID: userID})
	require.NoError(t, err)
	f.pub.reset()
}

func course(id string, at time.Time) progress.ActivityEvent {
	return progress.ActivityEvent{ID: id, Kind: progress.ActivityCourse, Title: "Go basics", CompletedAt: at}
}
