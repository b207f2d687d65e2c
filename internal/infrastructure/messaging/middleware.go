package messaging

import (
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/careermentor/mentor-hub/internal/domain/shared"
)

// Middleware decorates a handler. The bus applies them outermost first.
type Middleware func(shared.EventHandler) shared.EventHandler

// chain wraps h so that mws[0] runs first.
func chain(h shared.EventHandler, mws []Middleware) shared.EventHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func eventFields(event shared.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_type", string(event.EventType())),
		zap.String("user_id", event.AggregateID()),
	}
}

// RecoveryMiddleware converts a handler panic into ErrHandlerPanic so one
// broken subscriber cannot take down the command that published the event.
func RecoveryMiddleware(logger *zap.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				logger.Error("handler panic recovered",
					append(eventFields(event), zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))...)
				err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
			}()
			return next(event)
		}
	}
}

// LoggingMiddleware logs failures at error level and successes at debug.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) error {
			start := time.Now()
			err := next(event)
			fields := append(eventFields(event), zap.Duration("duration", time.Since(start)))
			if err != nil {
				logger.Error("handler failed", append(fields, zap.Error(err))...)
				return err
			}
			logger.Debug("handler completed", fields...)
			return nil
		}
	}
}
