package audit

import (
	"context"
	"fmt"
)

// MultiLogger fans one record out to several sinks. Logging is synchronous:
// the caller needs to know the record landed before acting on the decision,
// and asynchrony is the BufferedLogger's job.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a multi-logger that writes to multiple destinations
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log writes the record to every sink. Every sink is attempted even after a
// failure so a broken database does not stop the file trail; the first error
// is returned so the caller still sees the record as not fully persisted.
func (m *MultiLogger) Log(ctx context.Context, event *Event) error {
	var firstErr error
	for _, logger := range m.loggers {
		if err := logger.Log(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes all loggers
func (m *MultiLogger) Close() error {
	var firstErr error
	for _, logger := range m.loggers {
		if err := logger.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close audit sink: %w", err)
		}
	}
	return firstErr
}
