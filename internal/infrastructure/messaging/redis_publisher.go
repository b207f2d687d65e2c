package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/careermentor/mentor-hub/internal/domain/shared"
	"github.com/careermentor/mentor-hub/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// REDIS PUBLISHER
// ══════════════════════════════════════════════════════════════════════════════

// ChannelPrefix prefixes every Redis Pub/Sub channel.
const ChannelPrefix = "events:"

// RedisPubSub is the subset of redis.UniversalClient the publisher needs.
type RedisPubSub interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisPublisher forwards events to Redis Pub/Sub as JSON envelopes.
// Publishing is fire-and-forget: there is no delivery guarantee.
type RedisPublisher struct {
	client  RedisPubSub
	logger  *zap.Logger
	timeout time.Duration
	newID   func() string
}

var _ shared.EventPublisher = (*RedisPublisher)(nil)

// NewRedisPublisher creates a publisher over client.
func NewRedisPublisher(client RedisPubSub, logger *zap.Logger) *RedisPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{
		client:  client,
		logger:  logger.With(zap.String("component", "redis_publisher")),
		timeout: 2 * time.Second,
		newID:   uuid.NewString,
	}
}

// ChannelFor returns the channel an event type is published on.
func ChannelFor(eventType shared.EventType) string {
	return ChannelPrefix + string(eventType)
}

// Publish implements shared.EventPublisher.
func (p *RedisPublisher) Publish(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.PublishContext(ctx, event)
}

// PublishContext publishes event and returns the number of receivers.
func (p *RedisPublisher) PublishContext(ctx context.Context, event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}

	env, err := shared.NewEventEnvelope(p.newID(), event)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	channel := ChannelFor(event.EventType())
	receivers, err := p.client.Publish(ctx, channel, data).Result()
	if err != nil {
		p.logger.Warn("publish failed", zap.String("channel", channel), zap.Error(err))
		return fmt.Errorf("publish %s: %w", channel, err)
	}

	p.logger.Debug("event published",
		zap.String("channel", channel),
		zap.String("event_id", env.ID),
		zap.Int64("receivers", receivers),
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TEE PUBLISHER
// ══════════════════════════════════════════════════════════════════════════════

// TeePublisher publishes every event to each of its targets in order.
// All targets are attempted; errors are joined.
type TeePublisher []shared.EventPublisher

// Publish implements shared.EventPublisher.
func (t TeePublisher) Publish(event shared.Event) error {
	var errs []error
	for _, p := range t {
		if p == nil {
			continue
		}
		if err := p.Publish(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements shared.EventPublisher.
func (NopPublisher) Publish(shared.Event) error { return nil }

// ══════════════════════════════════════════════════════════════════════════════
// GUARDED PUBLISHER
// ══════════════════════════════════════════════════════════════════════════════

// GuardedPublisher drops events for an external target while its circuit is
// open. Fan-out is best effort, so a dropped event is counted, not reported.
type GuardedPublisher struct {
	inner   shared.EventPublisher
	breaker *circuitbreaker.Breaker
	dropped atomic.Int64
}

// NewGuardedPublisher wraps inner. A nil breaker uses circuitbreaker.ForPublisher.
func NewGuardedPublisher(inner shared.EventPublisher, breaker *circuitbreaker.Breaker, logger *zap.Logger) *GuardedPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if breaker == nil {
		breaker = circuitbreaker.ForPublisher(func(name string, from, to circuitbreaker.State) {
			logger.Warn("publisher circuit state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		})
	}
	return &GuardedPublisher{inner: inner, breaker: breaker}
}

// Publish implements shared.EventPublisher.
func (g *GuardedPublisher) Publish(event shared.Event) error {
	err := g.breaker.Execute(context.Background(), func(context.Context) error {
		return g.inner.Publish(event)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		g.dropped.Add(1)
		return nil
	}
	return err
}

// Dropped returns how many events were skipped by the open circuit.
func (g *GuardedPublisher) Dropped() int64 {
	return g.dropped.Load()
}
