package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dive-federation/pdp/pkg/attributes"
	"github.com/dive-federation/pdp/pkg/audit"
)

func strptr(s string) *string { return &s }

// allowedRequest is a complete claim set that passes every check against the
// default registry and rule set.
func allowedRequest() AuthorizeRequest {
	return AuthorizeRequest{
		Subject: attributes.RawClaims{
			UniqueID:             "jdoe@army.mil",
			Clearance:            strptr("SECRET"),
			CountryOfAffiliation: strptr("USA"),
			Authenticated:        true,
			SourceIdP:            "usa",
		},
		Resource: attributes.Resource{
			ResourceID:      "doc-123",
			Classification:  attributes.ClearanceSecret,
			ReleasabilityTo: []string{"USA", "GBR"},
		},
	}
}

func TestAuthorizeAllow(t *testing.T) {
	env := newTestEnv(t)

	var resp AuthorizeResponse
	w := env.postJSON(t, "/v1/authorize", allowedRequest(), &resp)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Allow)
	assert.Empty(t, resp.Reasons)
	assert.Equal(t, testBundleVersion, resp.BundleVersion)
	assert.NotEmpty(t, resp.DecisionID)
	assert.Contains(t, resp.Obligations, attributes.ObligationAuditLog)
	assert.Contains(t, resp.Obligations, attributes.ObligationWatermark)

	decisions := env.auditor.byType(audit.EventTypeDecision)
	require.Len(t, decisions, 1)
	assert.Equal(t, audit.EventStatusAllow, decisions[0].Status)
	assert.Equal(t, "jdoe@army.mil", decisions[0].UniqueID)
	assert.Equal(t, "doc-123", decisions[0].ResourceID)
}

func TestAuthorizeDenyInsufficientClearance(t *testing.T) {
	env := newTestEnv(t)

	req := allowedRequest()
	req.Subject.Clearance = strptr("CONFIDENTIAL")

	var resp AuthorizeResponse
	w := env.postJSON(t, "/v1/authorize", req, &resp)

	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, resp.Allow)
	require.NotEmpty(t, resp.Reasons)
	assert.Equal(t, "insufficient clearance", resp.Reasons[0])

	decisions := env.auditor.byType(audit.EventTypeDecision)
	require.Len(t, decisions, 1)
	assert.Equal(t, audit.EventStatusDeny, decisions[0].Status)
}

func TestAuthorizeDenyNotReleasable(t *testing.T) {
	env := newTestEnv(t)

	req := allowedRequest()
	req.Resource.ReleasabilityTo = []string{"GBR"}

	var resp AuthorizeResponse
	w := env.postJSON(t, "/v1/authorize", req, &resp)

	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, resp.Allow)
	assert.Equal(t, "country not in releasabilityTo", resp.Reasons[0])
}

func TestAuthorizeDenyEmbargoed(t *testing.T) {
	env := newTestEnv(t)

	req := allowedRequest()
	future := time.Now().Add(24 * time.Hour)
	req.Resource.EmbargoDate = &future

	var resp AuthorizeResponse
	w := env.postJSON(t, "/v1/authorize", req, &resp)

	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, resp.Allow)
	assert.Equal(t, "resource under embargo", resp.Reasons[0])
}

func TestAuthorizeEnrichesMissingCountry(t *testing.T) {
	env := newTestEnv(t)

	req := allowedRequest()
	req.Subject.CountryOfAffiliation = nil

	var resp AuthorizeResponse
	w := env.postJSON(t, "/v1/authorize", req, &resp)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Allow, "country inferred from army.mil should evaluate as USA")

	enrichments := env.auditor.byType(audit.EventTypeEnrichment)
	require.Len(t, enrichments, 1)
	assert.Equal(t, "jdoe@army.mil", enrichments[0].UniqueID)
	assert.Equal(t, "army.mil", enrichments[0].Detail["domain"])
}

func TestAuthorizeEnrichmentFailureIsGeneric403(t *testing.T) {
	env := newTestEnv(t)

	req := allowedRequest()
	req.Subject.UniqueID = "opaque-token-no-domain"
	req.Subject.CountryOfAffiliation = nil

	w := env.postJSON(t, "/v1/authorize", req, nil)

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "insufficient identity information")
	// The specific cause stays out of the response body.
	assert.NotContains(t, w.Body.String(), "domain")

	failures := env.auditor.byType(audit.EventTypeEnrichmentFailure)
	require.Len(t, failures, 1)
	assert.Equal(t, audit.EventStatusError, failures[0].Status)
	assert.Contains(t, failures[0].Message, "domain")
}

func TestAuthorizeValidationFailureIsAuditedDeny(t *testing.T) {
	env := newTestEnv(t)

	req := allowedRequest()
	req.Subject.SourceIdP = "industry"
	req.Subject.Clearance = strptr("COSMIC-ULTRA")

	var resp AuthorizeResponse
	w := env.postJSON(t, "/v1/authorize", req, &resp)

	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, resp.Allow)
	require.NotEmpty(t, resp.Reasons)
	assert.Equal(t, "invalid clearance", resp.Reasons[0])

	failures := env.auditor.byType(audit.EventTypeValidationFailure)
	require.Len(t, failures, 1)
	assert.Equal(t, "clearance", failures[0].Detail["field"])
	assert.Equal(t, "COSMIC-ULTRA", failures[0].Detail["value"])
	// The raw engine never saw this request.
	assert.Empty(t, env.auditor.byType(audit.EventTypeDecision))
}

func TestAuthorizeSecondIdenticalRequestIsCacheHit(t *testing.T) {
	env := newTestEnv(t)

	var first, second AuthorizeResponse
	env.postJSON(t, "/v1/authorize", allowedRequest(), &first)
	env.postJSON(t, "/v1/authorize", allowedRequest(), &second)

	assert.False(t, first.CacheHit)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.DecisionID, second.DecisionID)

	// Both decisions are audited even though only one was evaluated.
	assert.Len(t, env.auditor.byType(audit.EventTypeDecision), 2)
}

func TestAuthorizeMissingResourceID(t *testing.T) {
	env := newTestEnv(t)

	req := allowedRequest()
	req.Resource.ResourceID = ""

	w := env.postJSON(t, "/v1/authorize", req, nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "resource.resourceId")
}

func TestAuthorizeMalformedBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptestRequest("POST", "/v1/authorize", "{not json")
	w := serveRaw(env, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthorizeAuditBackpressureFailsClosed(t *testing.T) {
	env := newTestEnv(t)
	env.auditor.setError(audit.ErrBackpressure)

	w := env.postJSON(t, "/v1/authorize", allowedRequest(), nil)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "audit queue saturated")
}
