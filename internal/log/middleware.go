package log

import (
	"context"
	"log/slog"
	"net/http"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	// Return default logger if not found
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// ComponentMiddleware creates middleware that adds component context to the logger
func ComponentMiddleware(component string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Get logger from context and add component
			logger := FromContext(r.Context()).WithComponent(component)

			// Update context with component logger
			ctx := context.WithValue(r.Context(), LoggerContextKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StructuredLogger provides structured logging methods with context awareness
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogSourceLoaded logs a successfully read year source
func (sl *StructuredLogger) LogSourceLoaded(ctx context.Context, year, source string, rows int) {
	fields := NewFields().
		WithSource(year, source).
		WithRows(rows).
		WithOperation(OpLoad).
		WithComponent(ComponentLoader)

	sl.logger.InfoContext(ctx, "Source loaded", fields.ToSlice()...)
}

// LogSourceFailed logs a year source that could not be read
func (sl *StructuredLogger) LogSourceFailed(ctx context.Context, year, source string, err error) {
	fields := NewFields().
		WithSource(year, source).
		WithError(err).
		WithOperation(OpLoad).
		WithComponent(ComponentLoader)
	fields["error_type"] = ErrorTypeSource

	sl.logger.WarnContext(ctx, "Source load failed", fields.ToSlice()...)
}
