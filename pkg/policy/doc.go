// Package policy implements the decision engine.
//
// # Evaluation model
//
// Evaluation is a pure function of three inputs: a validated subject, a
// resource attribute set, and the active rule bundle. Every check runs on
// every request and its outcome is recorded, so two replicas holding the same
// bundle version produce the same decision for the same inputs, and the audit
// trail shows exactly which checks a denied request failed.
//
// # Bundle snapshots
//
// The active bundle lives behind an atomic pointer. The syncer swaps in a new
// bundle without locking; in-flight evaluations keep the snapshot they started
// with. Until a first bundle is activated the engine denies everything.
package policy
