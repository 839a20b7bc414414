package observability

import (
	"runtime/debug"
)

// RecoverPanic is deferred around background goroutines (bundle sync, registry
// watcher) so a panic there is logged with its stack instead of taking down
// the decision point. The panic is swallowed; the goroutine exits normally.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}
