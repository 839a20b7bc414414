package policy

import (
	"time"

	"github.com/google/uuid"

	"github.com/dive-federation/pdp/pkg/attributes"
	"github.com/dive-federation/pdp/pkg/bundle"
	"github.com/dive-federation/pdp/pkg/registry"
)

// Check names as they appear in decisions and audit records.
const (
	CheckBundle         = "bundle"
	CheckAuthenticated  = "authenticated"
	CheckClearanceValid = "clearance-valid"
	CheckCountryValid   = "country-valid"
	CheckClearanceLevel = "clearance-level"
	CheckReleasability  = "releasability"
	CheckCOI            = "coi"
	CheckEmbargo        = "embargo"
	CheckIssuerTrust    = "issuer-trust"
	CheckFederation     = "federation-matrix"
)

// Primary denial reasons, one per check.
const (
	ReasonNoBundle              = "no active policy bundle"
	ReasonNotAuthenticated      = "not authenticated"
	ReasonInvalidClearance      = "invalid clearance"
	ReasonInvalidCountry        = "invalid country code"
	ReasonInsufficientClearance = "insufficient clearance"
	ReasonNotReleasable         = "country not in releasabilityTo"
	ReasonNoCOIIntersection     = "no COI intersection"
	ReasonEmbargoed             = "resource under embargo"
	ReasonUntrustedIssuer       = "issuer not trusted"
	ReasonFederationDenied      = "country not permitted for issuer"
)

// Engine evaluates access requests against the active bundle. Evaluation
// never blocks and never errors: a missing bundle or failed check is a deny,
// not a fault.
type Engine struct {
	bundles  *SnapshotStore
	registry *registry.Store
}

// NewEngine creates an engine reading bundles and reference data from the
// given stores.
func NewEngine(bundles *SnapshotStore, reg *registry.Store) *Engine {
	return &Engine{bundles: bundles, registry: reg}
}

// Evaluate decides whether subject may access resource at instant now,
// against whatever bundle is active when the call starts.
func (e *Engine) Evaluate(subject attributes.Subject, resource attributes.Resource, now time.Time) attributes.Decision {
	return e.EvaluateBundle(e.bundles.Active(), subject, resource, now)
}

// EvaluateBundle decides against a pinned bundle snapshot, so a caller that
// also keys a cache on the bundle version can use one snapshot for both.
// Every check runs and is recorded; access is allowed only when all pass. The
// same inputs against the same bundle version always yield the same outcome.
func (e *Engine) EvaluateBundle(b *bundle.Bundle, subject attributes.Subject, resource attributes.Resource, now time.Time) attributes.Decision {
	if b == nil {
		return attributes.Decision{
			DecisionID:  uuid.NewString(),
			Allow:       false,
			Reasons:     []string{ReasonNoBundle},
			Checks:      []attributes.CheckResult{{Check: CheckBundle, Passed: false, Reason: ReasonNoBundle}},
			EvaluatedAt: now.UTC(),
		}
	}

	checks := make([]attributes.CheckResult, 0, 9)
	record := func(name string, passed bool, reason string) {
		c := attributes.CheckResult{Check: name, Passed: passed}
		if !passed {
			c.Reason = reason
		}
		checks = append(checks, c)
	}

	record(CheckAuthenticated, subject.Authenticated, ReasonNotAuthenticated)
	record(CheckClearanceValid, subject.Clearance.Valid(), ReasonInvalidClearance)
	record(CheckCountryValid, e.registry.Snapshot().ValidCountry(subject.CountryOfAffiliation), ReasonInvalidCountry)
	record(CheckClearanceLevel, subject.Clearance.Covers(resource.Classification), ReasonInsufficientClearance)
	record(CheckReleasability, resource.ReleasableTo(subject.CountryOfAffiliation), ReasonNotReleasable)
	record(CheckCOI, coiSatisfied(subject, resource), ReasonNoCOIIntersection)
	record(CheckEmbargo, embargoLifted(resource, now), ReasonEmbargoed)
	record(CheckIssuerTrust, b.Rules.IssuerTrusted(subject.SourceIdP), ReasonUntrustedIssuer)
	record(CheckFederation, b.Rules.CountryPermittedForIssuer(subject.SourceIdP, subject.CountryOfAffiliation), ReasonFederationDenied)

	allow := true
	var reasons []string
	for _, c := range checks {
		if !c.Passed {
			allow = false
			reasons = append(reasons, c.Reason)
		}
	}

	d := attributes.Decision{
		DecisionID:    uuid.NewString(),
		Allow:         allow,
		Reasons:       reasons,
		Checks:        checks,
		BundleVersion: b.Version,
		EvaluatedAt:   now.UTC(),
	}
	if allow {
		d.Obligations = b.Rules.ObligationsFor(resource.Classification)
	}
	return d
}

// coiSatisfied reports whether the subject holds at least one of the
// resource's required community tags. No requirement means satisfied.
func coiSatisfied(subject attributes.Subject, resource attributes.Resource) bool {
	if len(resource.RequiredCOI) == 0 {
		return true
	}
	for _, tag := range resource.RequiredCOI {
		if subject.HasCOI(tag) {
			return true
		}
	}
	return false
}

// embargoLifted reports whether the resource is past its embargo instant.
// Access opens exactly at the embargo date.
func embargoLifted(resource attributes.Resource, now time.Time) bool {
	if resource.EmbargoDate == nil {
		return true
	}
	return !now.Before(*resource.EmbargoDate)
}
