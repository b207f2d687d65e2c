// Package logger builds the process-wide zap logger for Mentor Hub.
// It owns level parsing, output encoding and the domain field vocabulary
// so call sites never construct zap configs themselves.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format selects the output encoding.
type Format string

const (
	// FormatJSON emits one JSON object per line.
	FormatJSON Format = "json"
	// FormatConsole emits human-friendly colored lines.
	FormatConsole Format = "console"
)

// ParseLevel parses a string into a zap level. Unknown input yields info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseFormat parses a string into a Format. Unknown input yields JSON.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), string(FormatConsole)) {
		return FormatConsole
	}
	return FormatJSON
}

// Options configures the logger.
type Options struct {
	Output    io.Writer
	Level     zapcore.Level
	Format    Format
	AddCaller bool
	// Service is attached to every entry when set.
	Service string
}

// DefaultOptions returns sensible defaults for the logger.
func DefaultOptions() Options {
	return Options{
		Output:    os.Stderr,
		Level:     zapcore.InfoLevel,
		Format:    FormatJSON,
		AddCaller: true,
	}
}

// New creates a zap logger with the given options.
func New(opts Options) *zap.Logger {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if opts.Format == FormatConsole {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(opts.Output), zap.NewAtomicLevelAt(opts.Level))

	zopts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if opts.AddCaller {
		zopts = append(zopts, zap.AddCaller())
	}

	l := zap.New(core, zopts...)
	if opts.Service != "" {
		l = l.With(zap.String("service", opts.Service))
	}
	return l
}

// Default creates a logger with default options.
func Default() *zap.Logger {
	return New(DefaultOptions())
}

// Nop returns a logger that discards everything. Useful in tests.
func Nop() *zap.Logger {
	return zap.NewNop()
}

// Context key for logger.
type ctxKey struct{}

// WithContext returns a new context with the logger attached.
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the logger from context, or returns a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.NewNop()
}

// RequestIDKey is a common field key for request tracing.
const RequestIDKey = "request_id"

// Domain-specific field constructors.
func UserID(id string) zap.Field         { return zap.String("user_id", id) }
func ActivityID(id string) zap.Field     { return zap.String("activity_id", id) }
func ActivityKind(kind string) zap.Field { return zap.String("activity_kind", kind) }
func TriggerKind(kind string) zap.Field  { return zap.String("trigger_kind", kind) }
func AchievementID(id string) zap.Field  { return zap.String("achievement_id", id) }
func MilestoneID(id string) zap.Field    { return zap.String("milestone_id", id) }
func XPAmount(xp int64) zap.Field        { return zap.Int64("xp_amount", xp) }
func Level(level int) zap.Field          { return zap.Int("level", level) }
func Version(v int64) zap.Field          { return zap.Int64("version", v) }
func Component(name string) zap.Field    { return zap.String("component", name) }
func Operation(name string) zap.Field    { return zap.String("operation", name) }
func RequestID(id string) zap.Field      { return zap.String(RequestIDKey, id) }
func Latency(d time.Duration) zap.Field  { return zap.Duration("latency", d) }
func Attempt(n int) zap.Field            { return zap.Int("attempt", n) }
