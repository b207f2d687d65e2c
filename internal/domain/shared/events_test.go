package shared

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventEnvelope(t *testing.T) {
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	ev := NewXPGainedEvent("u1", 50, 100, "activity", at)
	ev.BaseEvent = ev.BaseEvent.WithCorrelationID("req-1")

	env, err := NewEventEnvelope("evt-1", ev)
	require.NoError(t, err)

	assert.Equal(t, EventXPGained, env.Type)
	assert.Equal(t, "u1", env.AggregateID)
	assert.Equal(t, at, env.Timestamp)
	assert.Equal(t, "req-1", env.CorrelationID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, float64(50), payload["amount"])
	assert.Equal(t, "activity", payload["source"])
}

func TestNotificationRaisedEvent_OptionalPayload(t *testing.T) {
	ev := NewNotificationRaisedEvent("u1", "n1", "levelup", "Level Up!", "You reached level 2", time.Time{})
	assert.NotContains(t, ev.Payload(), "level")

	lvl := 2
	ev.Level = &lvl
	assert.Equal(t, 2, ev.Payload()["level"])
}

func TestDomainError_Is(t *testing.T) {
	wrapped := WrapError("profile", "Save", ErrConcurrentModification, "conflict", errors.New("cas"))

	assert.True(t, errors.Is(wrapped, ErrConcurrentModification))
	assert.True(t, IsRetryable(wrapped))
	assert.False(t, IsNotFound(wrapped))

	assert.True(t, errors.Is(ErrProfileVersionStale, ErrConcurrentModification))
	assert.True(t, IsNotFound(ErrProfileNotFound))
	assert.True(t, IsConfiguration(ErrUnknownRequirement))
	assert.True(t, IsValidation(ErrInvalidActivity))
}
