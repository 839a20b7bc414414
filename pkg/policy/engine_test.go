package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dive-federation/pdp/pkg/attributes"
	"github.com/dive-federation/pdp/pkg/bundle"
	"github.com/dive-federation/pdp/pkg/registry"
)

var testNow = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, rules bundle.Rules) (*Engine, *SnapshotStore) {
	t.Helper()
	reg, err := registry.NewStore(registry.StoreConfig{})
	require.NoError(t, err)

	store := NewSnapshotStore()
	store.Activate(&bundle.Bundle{Version: "2026.08.1", Rules: rules})
	return NewEngine(store, reg), store
}

func validSubject() attributes.Subject {
	return attributes.Subject{
		UniqueID:             "jdoe@army.mil",
		Clearance:            attributes.ClearanceSecret,
		CountryOfAffiliation: "USA",
		ACPCOI:               []string{"NATO", "FVEY"},
		Authenticated:        true,
		SourceIdP:            "usa",
	}
}

func secretResource() attributes.Resource {
	return attributes.Resource{
		ResourceID:      "doc-123",
		Classification:  attributes.ClearanceSecret,
		ReleasabilityTo: []string{"USA", "GBR"},
	}
}

func primaryReason(d attributes.Decision) string {
	if len(d.Reasons) == 0 {
		return ""
	}
	return d.Reasons[0]
}

func TestEvaluateAllow(t *testing.T) {
	engine, _ := newTestEngine(t, bundle.DefaultRules())

	d := engine.Evaluate(validSubject(), secretResource(), testNow)

	assert.True(t, d.Allow)
	assert.Empty(t, d.Reasons)
	assert.Equal(t, "2026.08.1", d.BundleVersion)
	assert.NotEmpty(t, d.DecisionID)
	assert.Equal(t, []attributes.Obligation{attributes.ObligationAuditLog, attributes.ObligationWatermark}, d.Obligations)

	for _, c := range d.Checks {
		assert.True(t, c.Passed, "check %s", c.Check)
	}
}

func TestEvaluateDenials(t *testing.T) {
	tests := []struct {
		name     string
		subject  func() attributes.Subject
		resource func() attributes.Resource
		reason   string
	}{
		{
			name: "unauthenticated subject",
			subject: func() attributes.Subject {
				s := validSubject()
				s.Authenticated = false
				return s
			},
			resource: secretResource,
			reason:   ReasonNotAuthenticated,
		},
		{
			name: "invalid clearance",
			subject: func() attributes.Subject {
				s := validSubject()
				s.Clearance = "COSMIC_ULTRA"
				return s
			},
			resource: secretResource,
			reason:   ReasonInvalidClearance,
		},
		{
			name: "unknown country",
			subject: func() attributes.Subject {
				s := validSubject()
				s.CountryOfAffiliation = "ZZZ"
				return s
			},
			resource: secretResource,
			reason:   ReasonInvalidCountry,
		},
		{
			name: "insufficient clearance",
			subject: func() attributes.Subject {
				s := validSubject()
				s.Clearance = attributes.ClearanceConfidential
				return s
			},
			resource: secretResource,
			reason:   ReasonInsufficientClearance,
		},
		{
			name:    "country not releasable",
			subject: validSubject,
			resource: func() attributes.Resource {
				r := secretResource()
				r.ReleasabilityTo = []string{"FRA", "DEU"}
				return r
			},
			reason: ReasonNotReleasable,
		},
		{
			name:    "missing required COI",
			subject: validSubject,
			resource: func() attributes.Resource {
				r := secretResource()
				r.RequiredCOI = []string{"AUKUS"}
				return r
			},
			reason: ReasonNoCOIIntersection,
		},
		{
			name:    "embargoed resource",
			subject: validSubject,
			resource: func() attributes.Resource {
				r := secretResource()
				embargo := testNow.Add(24 * time.Hour)
				r.EmbargoDate = &embargo
				return r
			},
			reason: ReasonEmbargoed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _ := newTestEngine(t, bundle.DefaultRules())

			d := engine.Evaluate(tt.subject(), tt.resource(), testNow)

			assert.False(t, d.Allow)
			assert.Equal(t, tt.reason, primaryReason(d))
			assert.Empty(t, d.Obligations)
		})
	}
}

func TestEvaluateNilReleasabilityDeniesEveryone(t *testing.T) {
	engine, _ := newTestEngine(t, bundle.DefaultRules())

	r := secretResource()
	r.ReleasabilityTo = nil

	d := engine.Evaluate(validSubject(), r, testNow)
	assert.False(t, d.Allow)
	assert.Equal(t, ReasonNotReleasable, primaryReason(d))
}

func TestEvaluateEmbargoOpensAtInstant(t *testing.T) {
	engine, _ := newTestEngine(t, bundle.DefaultRules())

	r := secretResource()
	embargo := testNow
	r.EmbargoDate = &embargo

	d := engine.Evaluate(validSubject(), r, testNow)
	assert.True(t, d.Allow)
}

func TestEvaluateRecordsAllChecksOnDeny(t *testing.T) {
	engine, _ := newTestEngine(t, bundle.DefaultRules())

	s := validSubject()
	s.Authenticated = false
	s.Clearance = attributes.ClearanceUnclassified

	d := engine.Evaluate(s, secretResource(), testNow)

	require.False(t, d.Allow)
	assert.Len(t, d.Checks, 9)
	assert.Equal(t, []string{ReasonNotAuthenticated, ReasonInsufficientClearance}, d.Reasons)
}

func TestEvaluateNoActiveBundle(t *testing.T) {
	reg, err := registry.NewStore(registry.StoreConfig{})
	require.NoError(t, err)
	engine := NewEngine(NewSnapshotStore(), reg)

	d := engine.Evaluate(validSubject(), secretResource(), testNow)

	assert.False(t, d.Allow)
	assert.Equal(t, ReasonNoBundle, primaryReason(d))
	assert.Empty(t, d.BundleVersion)
}

func TestEvaluateIssuerTrust(t *testing.T) {
	rules := bundle.DefaultRules()
	rules.TrustedIssuers = []string{"usa", "gbr"}

	engine, _ := newTestEngine(t, rules)

	s := validSubject()
	s.SourceIdP = "rogue"

	d := engine.Evaluate(s, secretResource(), testNow)
	assert.False(t, d.Allow)
	assert.Equal(t, ReasonUntrustedIssuer, primaryReason(d))
}

func TestEvaluateFederationMatrix(t *testing.T) {
	rules := bundle.DefaultRules()
	rules.FederationMatrix = map[string][]string{"usa": {"USA"}}

	engine, _ := newTestEngine(t, rules)

	s := validSubject()
	s.CountryOfAffiliation = "GBR"

	r := secretResource()
	d := engine.Evaluate(s, r, testNow)
	assert.False(t, d.Allow)
	assert.Equal(t, ReasonFederationDenied, primaryReason(d))
}

func TestEvaluateDeterministic(t *testing.T) {
	engine, _ := newTestEngine(t, bundle.DefaultRules())

	d1 := engine.Evaluate(validSubject(), secretResource(), testNow)
	d2 := engine.Evaluate(validSubject(), secretResource(), testNow)

	assert.Equal(t, d1.Allow, d2.Allow)
	assert.Equal(t, d1.Reasons, d2.Reasons)
	assert.Equal(t, d1.Checks, d2.Checks)
	assert.Equal(t, d1.Obligations, d2.Obligations)
	assert.NotEqual(t, d1.DecisionID, d2.DecisionID)
}

func TestEvaluateObligationsScaleWithClassification(t *testing.T) {
	engine, _ := newTestEngine(t, bundle.DefaultRules())

	r := secretResource()
	r.Classification = attributes.ClearanceUnclassified
	r.ReleasabilityTo = []string{"USA"}

	d := engine.Evaluate(validSubject(), r, testNow)
	require.True(t, d.Allow)
	assert.Equal(t, []attributes.Obligation{attributes.ObligationAuditLog}, d.Obligations)
}

func TestEvaluateBundlePinnedAcrossSwap(t *testing.T) {
	engine, store := newTestEngine(t, bundle.DefaultRules())

	held := store.Active()
	store.Activate(&bundle.Bundle{Version: "2026.08.2", Rules: bundle.DefaultRules()})

	// A caller that pinned the earlier snapshot gets a decision stamped with
	// that snapshot's version, regardless of the swap.
	d := engine.EvaluateBundle(held, validSubject(), secretResource(), testNow)
	assert.True(t, d.Allow)
	assert.Equal(t, "2026.08.1", d.BundleVersion)

	assert.Equal(t, "2026.08.2", engine.Evaluate(validSubject(), secretResource(), testNow).BundleVersion)
}

func TestEvaluateBundleNil(t *testing.T) {
	engine, _ := newTestEngine(t, bundle.DefaultRules())

	d := engine.EvaluateBundle(nil, validSubject(), secretResource(), testNow)
	assert.False(t, d.Allow)
	assert.Equal(t, ReasonNoBundle, primaryReason(d))
}

func TestSnapshotStoreNotifiesListeners(t *testing.T) {
	store := NewSnapshotStore()

	var seen []string
	store.OnActivate(func(b *bundle.Bundle) { seen = append(seen, b.Version) })

	store.Activate(&bundle.Bundle{Version: "2026.08.1"})
	store.Activate(&bundle.Bundle{Version: "2026.08.2"})

	assert.Equal(t, []string{"2026.08.1", "2026.08.2"}, seen)
	assert.Equal(t, "2026.08.2", store.ActiveVersion())
}

func TestSnapshotStoreStableDuringEvaluation(t *testing.T) {
	store := NewSnapshotStore()
	store.Activate(&bundle.Bundle{Version: "2026.08.1"})

	held := store.Active()
	store.Activate(&bundle.Bundle{Version: "2026.08.2"})

	// The snapshot taken before the swap is unchanged.
	assert.Equal(t, "2026.08.1", held.Version)
	assert.Equal(t, "2026.08.2", store.Active().Version)
}
