// Package api exposes the decision point over HTTP.
//
// # Overview
//
// The server mounts three route groups on a single gorilla/mux router:
//
//   - POST /v1/authorize: the decision endpoint, running the full
//     enrich -> normalize -> evaluate pipeline per request
//   - /v1/bundle/*: bundle distribution and lifecycle operations
//   - /audit/*: audit trail search, export, and statistics
//
// # Decision Endpoint
//
// Every authorize request is audited before the response is released. If the
// audit trail cannot accept the record the request fails closed with 503
// rather than returning an unaudited decision.
//
//	POST /v1/authorize
//	{
//	  "subject":  { "uniqueID": "jdoe@army.mil", "clearance": "SECRET", ... },
//	  "resource": { "resourceId": "doc-123", "classification": "SECRET", ... }
//	}
//
// Denials are 200 responses with allow=false; only transport-level problems
// (malformed request, failed enrichment, audit saturation) use error codes.
//
// # Bundle Endpoints
//
// Replicas sync from GET /v1/bundle/latest and /v1/bundle/versions/{version}.
// Operators drive the lifecycle through POST /v1/bundle/{activate,pin,unpin,
// rollback} and observe fleet state via GET /v1/bundle/status.
//
// # Authentication
//
// When an Authenticator is configured, mutating and decision routes require a
// bearer token verified against the configured OIDC issuer. Read-only health
// and metrics surfaces live on a separate listener (see pkg/observability).
//
// # Related Packages
//
//   - pkg/policy: the evaluation engine behind /v1/authorize
//   - pkg/bundle: storage and sync behind /v1/bundle/*
//   - pkg/audit: the trail behind /audit/*
package api
