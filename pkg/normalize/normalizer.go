package normalize

import (
	"fmt"

	"github.com/dive-federation/pdp/pkg/attributes"
	"github.com/dive-federation/pdp/pkg/registry"
)

// Reason strings surfaced in deny decisions and audit records.
const (
	ReasonInvalidClearance = "invalid clearance"
	ReasonInvalidCountry   = "invalid country code"
	ReasonInvalidCOI       = "invalid COI tag"
	ReasonMissingAttribute = "missing required attribute"
)

// ValidationError reports a claim that failed vocabulary validation. The
// Reason is stable text used directly as the deny reason; Field and Value
// carry diagnostic detail for the audit trail only.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s=%q", e.Reason, e.Field, e.Value)
}

// Normalizer performs the RawClaims -> Subject transition against the active
// vocabulary snapshot.
type Normalizer struct {
	registry *registry.Store
}

// NewNormalizer creates a normalizer backed by the given vocabulary store.
func NewNormalizer(reg *registry.Store) *Normalizer {
	return &Normalizer{registry: reg}
}

// Normalize validates and maps a complete claim set. Claims are expected to
// have passed enrichment first; a still-missing field is rejected rather than
// defaulted, since defaulting is enrichment's job.
func (n *Normalizer) Normalize(claims attributes.RawClaims) (attributes.Subject, error) {
	snap := n.registry.Snapshot()

	if claims.UniqueID == "" {
		return attributes.Subject{}, &ValidationError{Field: "uniqueID", Reason: ReasonMissingAttribute}
	}
	if claims.Clearance == nil {
		return attributes.Subject{}, &ValidationError{Field: "clearance", Reason: ReasonMissingAttribute}
	}
	if claims.CountryOfAffiliation == nil {
		return attributes.Subject{}, &ValidationError{Field: "countryOfAffiliation", Reason: ReasonMissingAttribute}
	}

	clearance, ok := snap.MapClearance(claims.SourceIdP, *claims.Clearance)
	if !ok {
		return attributes.Subject{}, &ValidationError{
			Field:  "clearance",
			Value:  *claims.Clearance,
			Reason: ReasonInvalidClearance,
		}
	}

	country := *claims.CountryOfAffiliation
	if !snap.ValidCountry(country) {
		return attributes.Subject{}, &ValidationError{
			Field:  "countryOfAffiliation",
			Value:  country,
			Reason: ReasonInvalidCountry,
		}
	}

	// Unknown tags are rejected, not silently dropped: a malformed claim must
	// not widen (or quietly narrow) coalition scope.
	coi := make([]string, 0, len(claims.ACPCOI))
	for _, tag := range claims.ACPCOI {
		if !snap.ValidCOI(tag) {
			return attributes.Subject{}, &ValidationError{
				Field:  "acpCOI",
				Value:  tag,
				Reason: ReasonInvalidCOI,
			}
		}
		coi = append(coi, tag)
	}

	return attributes.Subject{
		UniqueID:             claims.UniqueID,
		Clearance:            clearance,
		CountryOfAffiliation: country,
		ACPCOI:               coi,
		Authenticated:        claims.Authenticated,
		SourceIdP:            claims.SourceIdP,
	}, nil
}
