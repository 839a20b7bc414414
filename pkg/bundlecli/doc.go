// Package bundlecli implements the pdp-bundler command set.
//
// # Overview
//
// The bundler is the release side of bundle distribution: it generates
// signing keys, builds and signs versioned rule sets, and drives the
// lifecycle endpoints of a running decision point.
//
// # Typical Release Flow
//
//	pdp-bundler keygen -private bundle.key -public bundle.pub
//	pdp-bundler build -key bundle.key -rules rules.json -version 2026.08.1
//	pdp-bundler publish -server https://pdp.example.mil -bundle 2026.08.1.bundle.json
//	pdp-bundler activate -server https://pdp.example.mil -version 2026.08.1
//
// Incident response:
//
//	pdp-bundler rollback -server https://pdp.example.mil
//	pdp-bundler pin -server https://pdp.example.mil -version 2026.07.3
//
// The private key never leaves the release environment; decision points hold
// only the public verification key.
package bundlecli
