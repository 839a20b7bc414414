// Package attributes defines the identity and resource attribute model shared by
// the enrichment, normalization, and policy evaluation layers.
//
// # Overview
//
// Federated identity brokers hand the decision point a bag of claims whose shape
// and vocabulary vary by partner. This package models that hand-off as two
// distinct types:
//
//	RawClaims - claims exactly as asserted by a broker; fields may be missing
//	Subject   - a fully validated subject; only pkg/normalize constructs one
//
// Nothing downstream of the normalizer accepts RawClaims. The split makes the
// unvalidated-to-validated transition explicit in the type system rather than a
// convention.
//
// # Clearance Ordering
//
// Clearance is a total order:
//
//	UNCLASSIFIED < CONFIDENTIAL < SECRET < TOP_SECRET
//
//	subject.Clearance.Covers(resource.Classification)
//
// # Decisions
//
// Decision is the immutable result of one policy evaluation. Reasons are ordered:
// the first entry is the primary denial reason, the remainder are the outcomes of
// the other checks recorded for audit detail.
//
// # Related Packages
//
//   - pkg/enrichment: fills missing RawClaims fields
//   - pkg/normalize: RawClaims -> Subject transition
//   - pkg/policy: evaluates Subject against Resource
package attributes
