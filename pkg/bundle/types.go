package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dive-federation/pdp/pkg/attributes"
)

// ObligationRule attaches enforcement-point duties to allowed access at or
// above a classification level.
type ObligationRule struct {
	// MinClassification is the lowest resource classification the rule
	// applies to.
	MinClassification attributes.Clearance `json:"minClassification"`

	Obligations []attributes.Obligation `json:"obligations"`
}

// Rules is the distributable rule set evaluated by the policy engine on top of
// the fixed attribute checks.
type Rules struct {
	// TrustedIssuers restricts which broker aliases may assert subjects.
	// Empty means all federated issuers are accepted.
	TrustedIssuers []string `json:"trustedIssuers,omitempty"`

	// FederationMatrix optionally restricts which countries of affiliation
	// each issuer may assert, keyed by IdP alias. An issuer absent from the
	// matrix is unconstrained.
	FederationMatrix map[string][]string `json:"federationMatrix,omitempty"`

	// Obligations configures duties attached to ALLOW decisions.
	Obligations []ObligationRule `json:"obligations,omitempty"`
}

// IssuerTrusted reports whether the broker alias may assert subjects.
func (r Rules) IssuerTrusted(alias string) bool {
	if len(r.TrustedIssuers) == 0 {
		return true
	}
	for _, t := range r.TrustedIssuers {
		if t == alias {
			return true
		}
	}
	return false
}

// CountryPermittedForIssuer reports whether the issuer may assert the given
// country of affiliation.
func (r Rules) CountryPermittedForIssuer(alias, country string) bool {
	allowed, ok := r.FederationMatrix[alias]
	if !ok {
		return true
	}
	for _, c := range allowed {
		if c == country {
			return true
		}
	}
	return false
}

// ObligationsFor returns the duties owed for an allowed access at the given
// classification.
func (r Rules) ObligationsFor(classification attributes.Clearance) []attributes.Obligation {
	var out []attributes.Obligation
	seen := make(map[attributes.Obligation]struct{})
	for _, rule := range r.Obligations {
		if !classification.Covers(rule.MinClassification) {
			continue
		}
		for _, o := range rule.Obligations {
			if _, dup := seen[o]; dup {
				continue
			}
			seen[o] = struct{}{}
			out = append(out, o)
		}
	}
	return out
}

// DefaultRules returns the baseline rule set: audit-log every allowed access,
// watermark CONFIDENTIAL and above.
func DefaultRules() Rules {
	return Rules{
		Obligations: []ObligationRule{
			{
				MinClassification: attributes.ClearanceUnclassified,
				Obligations:       []attributes.Obligation{attributes.ObligationAuditLog},
			},
			{
				MinClassification: attributes.ClearanceConfidential,
				Obligations:       []attributes.Obligation{attributes.ObligationWatermark},
			},
		},
	}
}

// Bundle is a versioned, signed rule-set package. Bundles are append-only:
// rollback re-activates an earlier version, never edits one in place.
type Bundle struct {
	Version   string    `json:"version"`
	Digest    string    `json:"digest"`
	Signature string    `json:"signature"`
	CreatedAt time.Time `json:"createdAt"`
	Rules     Rules     `json:"rules"`
}

// canonicalRules returns the byte encoding the digest and signature cover.
// encoding/json marshals struct fields in declaration order and map keys
// sorted, so the encoding is stable across replicas.
func canonicalRules(r Rules) ([]byte, error) {
	return json.Marshal(r)
}

// ComputeDigest returns the hex sha256 digest of the canonical rule encoding.
func ComputeDigest(r Rules) (string, error) {
	raw, err := canonicalRules(r)
	if err != nil {
		return "", fmt.Errorf("failed to encode rules: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
