// Package enrichment fills gaps in partially-populated federated identities
// before they reach validation and policy evaluation.
//
// # Overview
//
// Partner brokers frequently assert incomplete claim sets. Enrichment applies
// confidence-tagged defaults:
//
//	clearance missing  -> UNCLASSIFIED (high confidence)
//	acpCOI missing     -> empty set (high confidence)
//	country missing    -> inferred from the uniqueID email domain via the
//	                      registry table (high confidence); unknown domain
//	                      falls back to the configured default country (low
//	                      confidence, logged as a warning)
//
// A uniqueID with no domain-shaped structure and no asserted country fails
// closed with ErrEnrichmentFailure: there is no basis to infer affiliation and
// no default is permitted.
//
// Present, non-nil claims are never altered (the non-override invariant);
// validating their values is the normalizer's job.
//
// Every enrichment produces exactly one Record for the audit trail. Records
// carry the uniqueID and the inferred domain only, never the full email or
// name.
package enrichment
