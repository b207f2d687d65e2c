package eventhandler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careermentor/mentor-hub/internal/domain/notification"
	"github.com/careermentor/mentor-hub/internal/domain/shared"
	"github.com/careermentor/mentor-hub/internal/infrastructure/messaging"
)

var at = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func raised(id string) shared.NotificationRaisedEvent {
	n := notification.NewLevelUp(notification.NotificationID(id), "u1", 2, "Career Novice", at)
	e := shared.NewNotificationRaisedEvent(n.UserID, string(n.ID), string(n.Type), n.Title, n.Message, n.Timestamp)
	e.Level = n.Level
	return e
}

func TestOnNotificationRaised_DeliversOnce(t *testing.T) {
	inbox := NewInbox()
	h := NewOnNotificationRaisedHandler(inbox, nil, NotificationRaisedConfig{})

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{})
	defer bus.Close()
	require.NoError(t, bus.Subscribe(shared.EventNotificationRaised, h.Handle))

	require.NoError(t, bus.Publish(raised("n1")))
	require.NoError(t, bus.Publish(raised("n1")))
	require.NoError(t, bus.Publish(raised("n2")))

	got := inbox.For("u1")
	require.Len(t, got, 2)
	assert.Equal(t, notification.TypeLevelUp, got[0].Type)
	require.NotNil(t, got[0].Level)
	assert.Equal(t, 2, *got[0].Level)
	assert.Equal(t, at, got[0].Timestamp)
	assert.Empty(t, inbox.For("someone-else"))
}

func TestOnNotificationRaised_IgnoresOtherEvents(t *testing.T) {
	inbox := NewInbox()
	h := NewOnNotificationRaisedHandler(inbox, nil, DefaultNotificationRaisedConfig())

	require.NoError(t, h.Handle(shared.NewStreakUpdatedEvent("u1", 3, 3, at)))
	assert.Empty(t, inbox.For("u1"))
}

func TestOnNotificationRaised_FailedSendCanRetry(t *testing.T) {
	fail := true
	inbox := NewInbox()
	sender := notification.SenderFunc(func(ctx context.Context, n notification.Notification) error {
		if fail {
			return errors.New("push gateway down")
		}
		return inbox.Send(ctx, n)
	})
	h := NewOnNotificationRaisedHandler(sender, nil, NotificationRaisedConfig{})

	require.Error(t, h.Handle(raised("n1")))
	fail = false
	require.NoError(t, h.Handle(raised("n1")))
	assert.Len(t, inbox.For("u1"), 1)
}

func TestOnNotificationRaised_RejectsInvalid(t *testing.T) {
	h := NewOnNotificationRaisedHandler(NewInbox(), nil, NotificationRaisedConfig{})
	bad := shared.NewNotificationRaisedEvent("u1", "", "levelup", "t", "m", at)
	assert.ErrorIs(t, h.Handle(bad), notification.ErrInvalidNotificationID)
}

func TestOnNotificationRaised_DedupWindow(t *testing.T) {
	inbox := NewInbox()
	h := NewOnNotificationRaisedHandler(inbox, nil, NotificationRaisedConfig{DedupWindow: 1})

	require.NoError(t, h.Handle(raised("n1")))
	require.NoError(t, h.Handle(raised("n2")))
	require.NoError(t, h.Handle(raised("n1")))
	assert.Len(t, inbox.For("u1"), 3)
}
