// Package audit provides the write-once decision audit trail.
//
// # Overview
//
// This package records every authorization decision with the exact subject
// and resource attributes the engine evaluated, plus attribute enrichments,
// validation rejections, and bundle lifecycle transitions.
//
// # Guarantees
//
// Records are never edited after construction and never silently dropped.
// When the buffered writer saturates, Log returns ErrBackpressure and the
// enforcement point denies the request rather than proceed unaudited. When a
// sink fails persistently the record is emitted to the process log so the
// trail survives in some form.
//
// # Sinks
//
// FileLogger: newline-delimited JSON with size-based rotation
// DBLogger: PostgreSQL or SQLite, backs search, stats, export, retention
// MultiLogger: fan-out to several sinks
// BufferedLogger: bounded queue decoupling the request path from sink latency
//
// # Usage Example
//
// Record a decision:
//
//	event := audit.NewDecisionEvent(subject, resource, decision, requestID, time.Since(start))
//	if err := logger.Log(ctx, event); err != nil {
//		// deny the request; it must not proceed unaudited
//	}
//
// Search the trail:
//
//	results, err := store.Search(ctx, audit.SearchFilter{
//		StartTime: &since,
//		UniqueID:  "jdoe@army.mil",
//		Types:     []audit.EventType{audit.EventTypeDecision},
//	})
//
// # Retention Policy
//
// Default: 365 days active retention
// Archiving: NDJSON export to the archive path before deletion
// Export: JSON, CSV, NDJSON formats for external analysis
package audit
