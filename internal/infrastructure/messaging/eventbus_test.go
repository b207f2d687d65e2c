package messaging

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/careermentor/mentor-hub/internal/domain/shared"
)

var testTime = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func xpEvent(user string) shared.Event {
	return shared.NewXPGainedEvent(user, 50, 150, "course", testTime)
}

func TestInMemoryEventBus_Sync(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{EnableMetrics: true, DeadLetterSize: 10})
	defer bus.Close()

	var typed, all []string
	require.NoError(t, bus.Subscribe(shared.EventXPGained, func(e shared.Event) error {
		typed = append(typed, e.AggregateID())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		all = append(all, string(e.EventType()))
		return nil
	}))

	require.NoError(t, bus.Publish(xpEvent("u1")))
	require.NoError(t, bus.Publish(shared.NewStreakUpdatedEvent("u1", 2, 2, testTime)))

	assert.Equal(t, []string{"u1"}, typed)
	assert.Equal(t, []string{string(shared.EventXPGained), string(shared.EventStreakUpdated)}, all)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalPublished)
	assert.Equal(t, int64(3), snap.TotalHandlerExecs)
	assert.Equal(t, 1.0, snap.HandlerSuccessRate)
}

func TestInMemoryEventBus_Errors(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})

	assert.ErrorIs(t, bus.Subscribe(shared.EventXPGained, nil), ErrNilHandler)
	assert.ErrorIs(t, bus.SubscribeAll(nil), ErrNilHandler)
	assert.ErrorIs(t, bus.Publish(nil), ErrNilEvent)

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(xpEvent("u1")), ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll(func(shared.Event) error { return nil }), ErrEventBusClosed)
}

func TestInMemoryEventBus_FailuresGoToDeadLetters(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{Logger: zap.New(core), DeadLetterSize: 10})
	defer bus.Close()

	boom := errors.New("boom")
	require.NoError(t, bus.Subscribe(shared.EventXPGained, func(shared.Event) error { return boom }))
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(shared.Event) error { panic("kaput") }))

	require.NoError(t, bus.Publish(xpEvent("u1")))
	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("u1", 1, 2, "Career Novice", testTime)))

	dlq := bus.DeadLetters()
	require.Equal(t, 2, dlq.Size())

	first, ok := dlq.Pop()
	require.True(t, ok)
	assert.ErrorIs(t, first.Error, boom)

	second, ok := dlq.Pop()
	require.True(t, ok)
	assert.ErrorIs(t, second.Error, ErrHandlerPanic)
	assert.Equal(t, shared.EventLevelUp, second.Event.EventType())

	_, ok = dlq.Pop()
	assert.False(t, ok)

	assert.Equal(t, 1, logs.FilterMessage("handler panic recovered").Len())
}

func TestInMemoryEventBus_AsyncCloseWaits(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2})

	var handled atomic.Int64
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		time.Sleep(time.Millisecond)
		handled.Add(1)
		return nil
	}))

	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(xpEvent("u1")))
	}
	bus.Drain()
	assert.Equal(t, int64(20), handled.Load())

	require.NoError(t, bus.Close())
}

func TestMiddlewareOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	mark := func(name string) Middleware {
		return func(next shared.EventHandler) shared.EventHandler {
			return func(e shared.Event) error {
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
				return next(e)
			}
		}
	}

	bus := NewInMemoryEventBus(InMemoryEventBusConfig{
		Middlewares: []Middleware{mark("outer"), mark("inner"), LoggingMiddleware(zap.NewNop())},
	})
	defer bus.Close()

	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		order = append(order, "handler")
		return nil
	}))
	require.NoError(t, bus.Publish(xpEvent("u1")))

	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestDeadLetterQueue_Bounded(t *testing.T) {
	q := NewDeadLetterQueue(2)
	for _, id := range []string{"a", "b", "c"} {
		q.Add(DeadLetterEntry{Event: xpEvent(id)})
	}

	entries := q.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Event.AggregateID())
	assert.Equal(t, "c", entries[1].Event.AggregateID())
}

func TestDeadLetterQueue_Redeliver(t *testing.T) {
	q := NewDeadLetterQueue(4)
	q.Add(DeadLetterEntry{Event: xpEvent("ok"), Attempts: 1})
	q.Add(DeadLetterEntry{Event: xpEvent("bad"), Attempts: 1})

	still := errors.New("still failing")
	delivered, err := q.Redeliver(func(e shared.Event) error {
		if e.AggregateID() == "bad" {
			return still
		}
		return nil
	})

	assert.Equal(t, 1, delivered)
	assert.ErrorIs(t, err, still)
	entries := q.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "bad", entries[0].Event.AggregateID())
	assert.Equal(t, 2, entries[0].Attempts)
}
