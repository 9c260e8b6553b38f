package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var Log zerolog.Logger = zerolog.Nop()

type ctxKey struct{}

func Init(serviceName string) {
	InitWithLevel(serviceName, "info")
}

// InitWithLevel configures the global logger. Unknown levels fall back to info.
func InitWithLevel(serviceName, level string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	Log = zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

func WithContext(ctx context.Context, log zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

func FromContext(ctx context.Context) zerolog.Logger {
	if log, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return log
	}
	return Log
}

// ForJob returns a logger scoped to a packaging job and stores it in ctx.
func ForJob(ctx context.Context, jobID string) (context.Context, zerolog.Logger) {
	l := FromContext(ctx).With().Str("id", jobID).Logger()
	return WithContext(ctx, l), l
}
