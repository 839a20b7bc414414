package audit

import (
	"context"
	"errors"
)

// ErrBackpressure is returned when the audit queue is saturated and a record
// could not be accepted within the wait budget. Callers treat the request as
// unauditable and deny it.
var ErrBackpressure = errors.New("audit queue saturated")

// Logger is the interface for audit sinks.
type Logger interface {
	// Log persists one audit record. A nil error means the record is
	// durably accepted; any error means the caller must not treat the
	// audited action as performed.
	Log(ctx context.Context, event *Event) error

	// Close flushes buffered records and releases resources.
	Close() error
}

// contextKey is the type for context keys
type contextKey string

// AuditLoggerKey is the context key for the audit logger
const AuditLoggerKey contextKey = "audit_logger"

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, AuditLoggerKey, logger)
}

// FromContext retrieves the audit logger from context
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(AuditLoggerKey).(Logger); ok {
		return logger
	}
	// Return a no-op logger if none is set
	return &noOpLogger{}
}

// noOpLogger is a logger that does nothing (used when no logger is configured)
type noOpLogger struct{}

func (l *noOpLogger) Log(ctx context.Context, event *Event) error { return nil }

func (l *noOpLogger) Close() error { return nil }

// NopLogger returns a sink that accepts and discards every record. Test use
// only; production paths always configure a real sink.
func NopLogger() Logger {
	return &noOpLogger{}
}
