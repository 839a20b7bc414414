package enrichment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dive-federation/pdp/pkg/attributes"
	"github.com/dive-federation/pdp/pkg/observability"
	"github.com/dive-federation/pdp/pkg/registry"
)

// ErrEnrichmentFailure terminates a request before policy evaluation: a
// required attribute is missing and there is no safe basis to infer it. The
// caller must surface only a generic "insufficient identity information"
// response; detail stays in the audit trail.
var ErrEnrichmentFailure = errors.New("enrichment failure: insufficient identity information")

// Method identifies how a missing attribute value was inferred.
type Method string

const (
	MethodEmailDomain Method = "email-domain"
	MethodDefault     Method = "default"
)

// Confidence tags how reliable an inference is.
type Confidence string

const (
	ConfidenceHigh Confidence = "high"
	ConfidenceLow  Confidence = "low"
)

// FieldEnrichment records one filled attribute.
type FieldEnrichment struct {
	Field      string     `json:"field"`
	Value      string     `json:"value"`
	Method     Method     `json:"method"`
	Confidence Confidence `json:"confidence"`
}

// Record is the immutable audit record of one enrichment pass. It carries only
// the uniqueID and the inferred domain, never the full email or name.
type Record struct {
	UniqueID    string            `json:"uniqueID"`
	Domain      string            `json:"domain,omitempty"`
	Enrichments []FieldEnrichment `json:"enrichments"`

	// Confidence is the lowest per-field confidence in the record.
	Confidence Confidence `json:"confidence"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Enricher fills missing subject attributes from the registry's inference
// tables. It never mutates its input.
type Enricher struct {
	registry *registry.Store
	logger   *observability.Logger
}

// NewEnricher creates an enricher backed by the given vocabulary store.
func NewEnricher(reg *registry.Store, logger *observability.Logger) *Enricher {
	return &Enricher{registry: reg, logger: logger}
}

// Enrich returns a completed copy of claims plus the audit record of what was
// filled. The record is nil when all fields were already present (enrichment
// is a no-op on complete claims). Returns ErrEnrichmentFailure when the
// country is missing and neither the domain table nor a configured default can
// supply one.
func (e *Enricher) Enrich(claims attributes.RawClaims) (attributes.RawClaims, *Record, error) {
	snap := e.registry.Snapshot()
	out := claims.Clone()
	record := &Record{
		UniqueID:   claims.UniqueID,
		Confidence: ConfidenceHigh,
		Timestamp:  time.Now().UTC(),
	}

	if out.Clearance == nil {
		v := string(attributes.ClearanceUnclassified)
		out.Clearance = &v
		record.Enrichments = append(record.Enrichments, FieldEnrichment{
			Field:      "clearance",
			Value:      v,
			Method:     MethodDefault,
			Confidence: ConfidenceHigh,
		})
	}

	if out.CountryOfAffiliation == nil {
		domain, ok := emailDomain(claims.UniqueID)
		if !ok {
			return attributes.RawClaims{}, nil, fmt.Errorf("no domain-shaped uniqueID to infer country from: %w", ErrEnrichmentFailure)
		}
		record.Domain = domain

		if country, found := snap.CountryForDomain(domain); found {
			out.CountryOfAffiliation = &country
			record.Enrichments = append(record.Enrichments, FieldEnrichment{
				Field:      "countryOfAffiliation",
				Value:      country,
				Method:     MethodEmailDomain,
				Confidence: ConfidenceHigh,
			})
		} else {
			fallback := snap.DefaultCountry()
			if fallback == "" {
				return attributes.RawClaims{}, nil, fmt.Errorf("domain %s unknown and no default country configured: %w", domain, ErrEnrichmentFailure)
			}
			out.CountryOfAffiliation = &fallback
			record.Enrichments = append(record.Enrichments, FieldEnrichment{
				Field:      "countryOfAffiliation",
				Value:      fallback,
				Method:     MethodDefault,
				Confidence: ConfidenceLow,
			})
			record.Confidence = ConfidenceLow
			e.logger.WithFields(map[string]interface{}{
				"domain":  domain,
				"country": fallback,
			}).Warn("unknown email domain, using default country affiliation")
		}
	}

	if out.ACPCOI == nil {
		out.ACPCOI = []string{}
		record.Enrichments = append(record.Enrichments, FieldEnrichment{
			Field:      "acpCOI",
			Value:      "[]",
			Method:     MethodDefault,
			Confidence: ConfidenceHigh,
		})
	}

	if len(record.Enrichments) == 0 {
		return out, nil, nil
	}
	return out, record, nil
}

// emailDomain extracts the domain portion of an email-shaped identifier.
// Opaque handles without an @-separated domain report ok=false.
func emailDomain(uniqueID string) (string, bool) {
	at := strings.LastIndex(uniqueID, "@")
	if at <= 0 || at == len(uniqueID)-1 {
		return "", false
	}
	domain := uniqueID[at+1:]
	if !strings.Contains(domain, ".") {
		return "", false
	}
	return domain, true
}
