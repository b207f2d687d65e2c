package notification

import "context"

// Sender доставляет уведомление пользователю (дашборд, push, лог).
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// SenderFunc адаптирует функцию к интерфейсу Sender.
type SenderFunc func(ctx context.Context, n Notification) error

// Send реализует Sender.
func (f SenderFunc) Send(ctx context.Context, n Notification) error {
	return f(ctx, n)
}
