package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"
)

// SafeGo executes a function in a goroutine with:
// - Context cancellation support
// - Panic recovery
// - Timeout enforcement
// - Error logging
//
// Use this instead of bare `go func()` to prevent goroutine leaks and crashes.
//
// Example:
//
//	SafeGo(ctx, 5*time.Second, "drift report", logger, func(ctx context.Context) error {
//	    return reporter.ReportVersion(ctx, replicaID, version)
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, logger *logrus.Logger, fn func(context.Context) error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(logrus.Fields{
					"task":  taskName,
					"panic": r,
					"stack": string(debug.Stack()),
				}).Error("panic in background task")
			}
		}()

		if err := fn(ctx); err != nil {
			// Log and carry on; the caller decides whether the task is
			// critical enough to retry.
			logger.WithField("task", taskName).WithError(err).Warn("background task failed")
		}
	}()
}

// SafeGoNoError is like SafeGo but for functions that don't return errors.
// Still provides panic recovery and context support.
//
// Example:
//
//	SafeGoNoError(ctx, 5*time.Second, "cache purge", logger, func(ctx context.Context) {
//	    cache.Purge()
//	})
func SafeGoNoError(parentCtx context.Context, timeout time.Duration, taskName string, logger *logrus.Logger, fn func(context.Context)) {
	SafeGo(parentCtx, timeout, taskName, logger, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}
