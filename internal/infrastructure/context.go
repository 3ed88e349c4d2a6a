package infrastructure

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// GenerateTraceID creates a new unique trace ID using UUID v4
func GenerateTraceID() string {
	return uuid.New().String()
}

// EnsureTraceID ensures the context has a trace ID, generating one if needed
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) == "" {
		return WithTraceID(ctx, GenerateTraceID())
	}
	return ctx
}

// WithComponent tags a logger with the component that owns it, falling
// back to the global logger when l is nil.
func WithComponent(l *slog.Logger, component string) *slog.Logger {
	if l == nil {
		l = GetLogger()
	}
	return l.With(slog.String("component", component))
}
