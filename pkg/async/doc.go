// Package async provides safe concurrent execution primitives for background tasks.
//
// # Overview
//
// This package handles goroutine lifecycle management with panic recovery, timeout
// enforcement, and context cancellation.
//
// # Key Functions
//
// SafeGo: Execute function in goroutine with safety features
//
//	async.SafeGo(ctx, 30*time.Second, "drift report", logger, func(ctx context.Context) error {
//		// Task code with automatic panic recovery and timeout
//		return reporter.ReportVersion(ctx, replicaID, version)
//	})
//
// # Features
//
// Panic Recovery: Captures panics with stack traces
// Timeout Enforcement: Per-task timeouts
// Context Cancellation: Respects context cancellation
//
// # Use Cases
//
// Bundle drift reporting, audit retention sweeps, cache purges on bundle swap
//
// # Related Packages
//
//   - pkg/bundle: Background sync and drift reporting
//   - pkg/audit: Asynchronous audit writes
package async
