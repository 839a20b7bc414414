// Package bundle packages, signs, distributes, and verifies versioned policy
// bundles for the hub-and-spoke decision-point fleet.
//
// # Overview
//
// A Bundle is a versioned, digest-and-signature-protected snapshot of the rule
// set. The hub's bundler builds and publishes bundles to a store (filesystem or
// S3); each spoke runs a Syncer that pulls new versions, verifies the ed25519
// signature over the sha256 digest of the canonical rule encoding, and hands
// the verified bundle to its activator for an atomic swap. A bundle that fails
// verification never becomes active: the replica keeps serving its last-known-
// good version and raises an alert metric.
//
// # Distribution
//
//	hub:    Builder -> Store.Put -> Reporter.Publish (Redis)
//	spoke:  Syncer poll / Redis notification -> Source.Fetch -> Verifier.Verify
//	        -> Activator.Activate -> version report (Redis hash)
//
// Distribution is pull-based and eventually consistent. Every replica reports
// its active version so hub/spoke drift is a first-class observable, never a
// silent failure.
//
// # Pinning and Rollback
//
// Activation history is append-only. An operator can pin a replica to a
// version (new versions are ignored until unpinned) or roll back to any
// previously verified version; the denial-rate guard does the same
// automatically when a swap is followed by a denial-rate spike.
package bundle
