// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/careermentor/mentor-hub/internal/domain/notification"
	"github.com/careermentor/mentor-hub/internal/domain/shared"
	"github.com/careermentor/mentor-hub/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON NOTIFICATION RAISED HANDLER
// Доставляет уведомления, созданные при фиксации прогресса.
//
// 1. Восстанавливает уведомление из события и проверяет его
// 2. Отбрасывает повторную доставку того же ID
// 3. Передаёт уведомление в Sender с таймаутом
// ═══════════════════════════════════════════════════════════════════════════

// OnNotificationRaisedHandler обрабатывает событие NotificationRaised.
type OnNotificationRaisedHandler struct {
	sender notification.Sender
	logger *zap.Logger
	config NotificationRaisedConfig

	mu        sync.Mutex
	delivered map[string]struct{}
	order     []string
}

// NotificationRaisedConfig содержит конфигурацию обработчика.
type NotificationRaisedConfig struct {
	// SendTimeout - таймаут одной доставки.
	SendTimeout time.Duration

	// DedupWindow - сколько последних ID помнить для защиты от повторов.
	DedupWindow int
}

// DefaultNotificationRaisedConfig возвращает конфигурацию по умолчанию.
func DefaultNotificationRaisedConfig() NotificationRaisedConfig {
	return NotificationRaisedConfig{
		SendTimeout: 5 * time.Second,
		DedupWindow: 10000,
	}
}

// NewOnNotificationRaisedHandler создаёт новый обработчик.
func NewOnNotificationRaisedHandler(
	sender notification.Sender,
	log *zap.Logger,
	config NotificationRaisedConfig,
) *OnNotificationRaisedHandler {
	if log == nil {
		log = zap.NewNop()
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = DefaultNotificationRaisedConfig().SendTimeout
	}
	if config.DedupWindow <= 0 {
		config.DedupWindow = DefaultNotificationRaisedConfig().DedupWindow
	}

	return &OnNotificationRaisedHandler{
		sender:    sender,
		logger:    log.With(zap.String("handler", "on_notification_raised")),
		config:    config,
		delivered: make(map[string]struct{}),
	}
}

// Handle обрабатывает событие.
// Реализует интерфейс shared.EventHandler.
func (h *OnNotificationRaisedHandler) Handle(event shared.Event) error {
	raised, ok := event.(shared.NotificationRaisedEvent)
	if !ok {
		h.logger.Warn("received non-NotificationRaisedEvent",
			zap.String("event_type", string(event.EventType())),
		)
		return nil
	}

	n := FromEvent(raised)
	if err := n.Validate(); err != nil {
		return fmt.Errorf("on_notification_raised: %w", err)
	}

	if !h.markDelivered(string(n.ID)) {
		h.logger.Debug("notification already delivered", zap.String("notification_id", string(n.ID)))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.SendTimeout)
	defer cancel()

	if err := h.sender.Send(ctx, n); err != nil {
		h.forget(string(n.ID))
		return fmt.Errorf("on_notification_raised: send %s: %w", n.ID, err)
	}

	h.logger.Debug("notification delivered",
		logger.UserID(n.UserID),
		zap.String("notification_id", string(n.ID)),
		zap.String("type", string(n.Type)),
	)
	return nil
}

// FromEvent восстанавливает уведомление из события.
func FromEvent(e shared.NotificationRaisedEvent) notification.Notification {
	return notification.Notification{
		ID:        notification.NotificationID(e.NotificationID),
		UserID:    e.UserID,
		Type:      notification.NotificationType(e.Kind),
		Title:     e.Title,
		Message:   e.Message,
		Timestamp: e.OccurredAt(),
		XP:        e.XP,
		Level:     e.Level,
		Streak:    e.Streak,
	}
}

// markDelivered запоминает ID; false, если ID уже был.
func (h *OnNotificationRaisedHandler) markDelivered(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, seen := h.delivered[id]; seen {
		return false
	}
	h.delivered[id] = struct{}{}
	h.order = append(h.order, id)

	if len(h.order) > h.config.DedupWindow {
		oldest := h.order[0]
		h.order = h.order[1:]
		delete(h.delivered, oldest)
	}
	return true
}

func (h *OnNotificationRaisedHandler) forget(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.delivered, id)
}

// ═══════════════════════════════════════════════════════════════════════════
// SENDERS
// ═══════════════════════════════════════════════════════════════════════════

// Inbox - отправитель, хранящий уведомления в памяти по пользователям.
// Используется CLI и тестами.
type Inbox struct {
	mu    sync.RWMutex
	items map[string][]notification.Notification
}

// NewInbox создаёт пустой ящик.
func NewInbox() *Inbox {
	return &Inbox{items: make(map[string][]notification.Notification)}
}

// Send реализует notification.Sender.
func (b *Inbox) Send(_ context.Context, n notification.Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[n.UserID] = append(b.items[n.UserID], n)
	return nil
}

// For возвращает копию уведомлений пользователя в порядке доставки.
func (b *Inbox) For(userID string) []notification.Notification {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]notification.Notification, len(b.items[userID]))
	copy(out, b.items[userID])
	return out
}

// LogSender пишет уведомления в лог.
func LogSender(log *zap.Logger) notification.Sender {
	return notification.SenderFunc(func(_ context.Context, n notification.Notification) error {
		log.Info("notification",
			logger.UserID(n.UserID),
			zap.String("type", string(n.Type)),
			zap.String("title", n.Title),
			zap.String("message", n.Message),
		)
		return nil
	})
}
