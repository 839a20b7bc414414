package attributes

import (
	"time"
)

// RawClaims is a subject claim set exactly as asserted by a federation broker.
// Pointer and nil-slice fields distinguish "missing" from "present but empty";
// the enrichment layer fills gaps and the normalizer validates what remains.
type RawClaims struct {
	// UniqueID is the stable federated identifier, email-shaped in practice.
	UniqueID string `json:"uniqueID"`

	// Clearance is the partner's clearance string, unmapped. Nil when the
	// broker asserted no clearance at all.
	Clearance *string `json:"clearance"`

	// CountryOfAffiliation is the asserted country code. Nil when missing.
	CountryOfAffiliation *string `json:"countryOfAffiliation"`

	// ACPCOI is the asserted community-of-interest tag set. Nil when the
	// claim was absent; an empty non-nil slice means "asserted empty".
	ACPCOI []string `json:"acpCOI"`

	// Authenticated reports whether the broker completed authentication.
	Authenticated bool `json:"authenticated"`

	// SourceIdP is the alias of the issuing broker (e.g. "fra", "industry").
	// Selects the clearance equivalency table during normalization.
	SourceIdP string `json:"sourceIdP"`
}

// Clone returns a deep copy of the claims. Enrichment mutates the copy, never
// the broker-asserted original.
func (c RawClaims) Clone() RawClaims {
	out := c
	if c.Clearance != nil {
		v := *c.Clearance
		out.Clearance = &v
	}
	if c.CountryOfAffiliation != nil {
		v := *c.CountryOfAffiliation
		out.CountryOfAffiliation = &v
	}
	if c.ACPCOI != nil {
		out.ACPCOI = append([]string(nil), c.ACPCOI...)
	}
	return out
}

// Subject is a fully validated subject attribute set. Only the normalizer
// constructs one; everything downstream treats it as immutable.
type Subject struct {
	UniqueID             string    `json:"uniqueID"`
	Clearance            Clearance `json:"clearance"`
	CountryOfAffiliation string    `json:"countryOfAffiliation"`
	ACPCOI               []string  `json:"acpCOI"`
	Authenticated        bool      `json:"authenticated"`
	SourceIdP            string    `json:"sourceIdP"`
}

// HasCOI reports whether the subject carries the given community tag.
func (s Subject) HasCOI(tag string) bool {
	for _, t := range s.ACPCOI {
		if t == tag {
			return true
		}
	}
	return false
}

// Resource is the attribute set of the object being accessed, supplied by the
// external resource-management subsystem. The decision core consumes it and
// never mutates it.
type Resource struct {
	ResourceID     string    `json:"resourceId"`
	Classification Clearance `json:"classification"`

	// ReleasabilityTo lists the countries the resource may be disclosed to.
	// Nil or empty means releasable to no one, never "releasable to all".
	ReleasabilityTo []string `json:"releasabilityTo"`

	// RequiredCOI lists community tags of which the subject must hold at
	// least one. Empty means no COI constraint.
	RequiredCOI []string `json:"requiredCOI"`

	// EmbargoDate blocks access until the given instant. Nil means no embargo.
	EmbargoDate *time.Time `json:"embargoDate,omitempty"`

	// AttributeVersion increments whenever the resource metadata changes,
	// so cached decisions keyed on stale attributes miss cleanly.
	AttributeVersion int64 `json:"attributeVersion,omitempty"`
}

// ReleasableTo reports whether country appears in the releasability set.
func (r Resource) ReleasableTo(country string) bool {
	for _, c := range r.ReleasabilityTo {
		if c == country {
			return true
		}
	}
	return false
}

// Obligation is an enforcement-point duty attached to an ALLOW decision.
type Obligation string

const (
	ObligationAuditLog  Obligation = "audit-log"
	ObligationWatermark Obligation = "watermark"
)

// CheckResult records the outcome of a single policy check, kept for audit
// detail even when an earlier check already decided the request.
type CheckResult struct {
	Check  string `json:"check"`
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
}

// Decision is the immutable outcome of one policy evaluation.
type Decision struct {
	DecisionID string `json:"decisionId"`
	Allow      bool   `json:"allow"`

	// Reasons is ordered: on deny, the first entry is the primary reason
	// (the first failing check); the rest record the remaining checks.
	Reasons []string `json:"reasons"`

	Obligations []Obligation `json:"obligations,omitempty"`

	// Checks is the full per-check detail retained for the audit trail.
	Checks []CheckResult `json:"checks,omitempty"`

	BundleVersion string    `json:"bundleVersion,omitempty"`
	EvaluatedAt   time.Time `json:"evaluatedAt"`
	CacheHit      bool      `json:"cacheHit"`
}
