// Package messaging delivers committed progress events. The in-memory bus
// runs local handlers (notification delivery); the Redis publisher forwards
// the same events to other services.
package messaging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/careermentor/mentor-hub/internal/domain/shared"
)

var (
	ErrEventBusClosed = errors.New("event bus is closed")
	ErrHandlerPanic   = errors.New("handler panicked")
	ErrNilHandler     = errors.New("handler cannot be nil")
	ErrNilEvent       = errors.New("event cannot be nil")
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBusConfig configures NewInMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode runs handlers on a bounded pool instead of inside Publish.
	AsyncMode      bool
	WorkerPoolSize int

	Logger        *zap.Logger
	EnableMetrics bool

	// DeadLetterSize bounds the failed-delivery queue; 0 disables it.
	DeadLetterSize int

	// Middlewares wrap every handler, outermost first. Panic recovery is
	// always installed outside them.
	Middlewares []Middleware
}

// InMemoryEventBus fans events out to handlers in this process. Handler
// errors never reach the publisher: they are logged and dead-lettered.
type InMemoryEventBus struct {
	mu       sync.RWMutex
	byType   map[shared.EventType][]shared.EventHandler
	wildcard []shared.EventHandler
	closed   bool

	middlewares []Middleware
	logger      *zap.Logger
	metrics     *EventBusMetrics
	deadLetters *DeadLetterQueue

	async    bool
	workers  *semaphore.Weighted
	inflight sync.WaitGroup
	stop     context.Context
	cancel   context.CancelFunc
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)

func NewInMemoryEventBus(cfg InMemoryEventBusConfig) *InMemoryEventBus {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 10
	}
	logger := cfg.Logger.With(zap.String("component", "eventbus"))
	stop, cancel := context.WithCancel(context.Background())

	b := &InMemoryEventBus{
		byType:      make(map[shared.EventType][]shared.EventHandler),
		middlewares: append([]Middleware{RecoveryMiddleware(logger)}, cfg.Middlewares...),
		logger:      logger,
		async:       cfg.AsyncMode,
		workers:     semaphore.NewWeighted(int64(cfg.WorkerPoolSize)),
		stop:        stop,
		cancel:      cancel,
	}
	if cfg.EnableMetrics {
		b.metrics = &EventBusMetrics{}
	}
	if cfg.DeadLetterSize > 0 {
		b.deadLetters = NewDeadLetterQueue(cfg.DeadLetterSize)
	}
	return b
}

// Subscribe registers handler for one event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.subscribe(handler, func(h shared.EventHandler) {
		b.byType[eventType] = append(b.byType[eventType], h)
	})
}

// SubscribeAll registers handler for every event type.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.subscribe(handler, func(h shared.EventHandler) {
		b.wildcard = append(b.wildcard, h)
	})
}

func (b *InMemoryEventBus) subscribe(handler shared.EventHandler, add func(shared.EventHandler)) error {
	if handler == nil {
		return ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}
	add(chain(handler, b.middlewares))
	return nil
}

// Publish delivers event to its type's handlers, then to wildcard handlers.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	typed := b.byType[event.EventType()]
	handlers := make([]shared.EventHandler, 0, len(typed)+len(b.wildcard))
	handlers = append(append(handlers, typed...), b.wildcard...)
	// Counted under the lock so Close cannot miss them.
	if b.async {
		b.inflight.Add(len(handlers))
	}
	b.mu.RUnlock()

	b.metrics.published()

	for _, h := range handlers {
		if b.async {
			go b.runPooled(event, h)
			continue
		}
		_ = b.run(event, h)
	}
	return nil
}

// runPooled waits for a worker slot. Work still queued when Close is
// called is dropped.
func (b *InMemoryEventBus) runPooled(event shared.Event, h shared.EventHandler) {
	defer b.inflight.Done()

	if err := b.workers.Acquire(b.stop, 1); err != nil {
		return
	}
	defer b.workers.Release(1)
	_ = b.run(event, h)
}

func (b *InMemoryEventBus) run(event shared.Event, h shared.EventHandler) error {
	start := time.Now()
	err := h(event)
	b.metrics.handled(time.Since(start), err)

	if err == nil {
		return nil
	}
	b.logger.Error("handler error", append(eventFields(event), zap.Error(err))...)
	if b.deadLetters != nil {
		b.deadLetters.Add(DeadLetterEntry{Event: event, Error: err, Attempts: 1, FailedAt: time.Now().UTC()})
		b.logger.Warn("event dead-lettered", append(eventFields(event), zap.Int("queued", b.deadLetters.Size()))...)
	}
	return err
}

// Drain waits for every async handler accepted so far.
func (b *InMemoryEventBus) Drain() { b.inflight.Wait() }

// Close rejects further publishes and waits for running handlers.
// Calling it twice is safe.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.cancel()
	b.mu.Unlock()

	b.inflight.Wait()

	fields := []zap.Field{}
	if b.metrics != nil {
		s := b.metrics.Snapshot()
		fields = append(fields,
			zap.Int64("published", s.TotalPublished),
			zap.Int64("handler_failures", s.HandlerFailures),
		)
	}
	if b.deadLetters != nil {
		fields = append(fields, zap.Int("dead_letters", b.deadLetters.Size()))
	}
	b.logger.Debug("event bus closed", fields...)
	return nil
}

// Metrics is nil unless EnableMetrics was set.
func (b *InMemoryEventBus) Metrics() *EventBusMetrics { return b.metrics }

// DeadLetters is nil unless DeadLetterSize was positive.
func (b *InMemoryEventBus) DeadLetters() *DeadLetterQueue { return b.deadLetters }

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// EventBusMetrics counts publishes and handler runs. Methods on a nil
// receiver are no-ops.
type EventBusMetrics struct {
	publishedTotal atomic.Int64
	executions     atomic.Int64
	failures       atomic.Int64
	busyNanos      atomic.Int64
}

func (m *EventBusMetrics) published() {
	if m != nil {
		m.publishedTotal.Add(1)
	}
}

func (m *EventBusMetrics) handled(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.executions.Add(1)
	m.busyNanos.Add(int64(d))
	if err != nil {
		m.failures.Add(1)
	}
}

// EventBusMetricsSnapshot is a point-in-time copy.
type EventBusMetricsSnapshot struct {
	TotalPublished         int64
	TotalHandlerExecs      int64
	HandlerFailures        int64
	HandlerSuccessRate     float64
	AverageHandlerDuration time.Duration
}

func (m *EventBusMetrics) Snapshot() EventBusMetricsSnapshot {
	s := EventBusMetricsSnapshot{
		TotalPublished:     m.publishedTotal.Load(),
		TotalHandlerExecs:  m.executions.Load(),
		HandlerFailures:    m.failures.Load(),
		HandlerSuccessRate: 1,
	}
	if s.TotalHandlerExecs > 0 {
		s.HandlerSuccessRate = float64(s.TotalHandlerExecs-s.HandlerFailures) / float64(s.TotalHandlerExecs)
		s.AverageHandlerDuration = time.Duration(m.busyNanos.Load() / s.TotalHandlerExecs)
	}
	return s
}
