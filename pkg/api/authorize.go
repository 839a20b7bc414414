package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dive-federation/pdp/pkg/attributes"
	"github.com/dive-federation/pdp/pkg/audit"
	"github.com/dive-federation/pdp/pkg/enrichment"
	"github.com/dive-federation/pdp/pkg/httputil"
	"github.com/dive-federation/pdp/pkg/normalize"
	"github.com/dive-federation/pdp/pkg/observability"
)

// AuthorizeRequest is the decision request body. Subject carries the broker's
// claims as asserted; Resource carries the attributes of the object requested.
type AuthorizeRequest struct {
	Subject  attributes.RawClaims `json:"subject"`
	Resource attributes.Resource  `json:"resource"`
}

// AuthorizeResponse is the decision returned to the enforcement point. The
// per-check detail stays in the audit trail; callers get the outcome, the
// ordered reasons, and any obligations to enforce.
type AuthorizeResponse struct {
	DecisionID    string                  `json:"decisionId"`
	Allow         bool                    `json:"allow"`
	Reasons       []string                `json:"reasons"`
	Obligations   []attributes.Obligation `json:"obligations,omitempty"`
	BundleVersion string                  `json:"bundleVersion,omitempty"`
	EvaluatedAt   time.Time               `json:"evaluatedAt"`
	CacheHit      bool                    `json:"cacheHit"`
}

func toResponse(d attributes.Decision) AuthorizeResponse {
	return AuthorizeResponse{
		DecisionID:    d.DecisionID,
		Allow:         d.Allow,
		Reasons:       d.Reasons,
		Obligations:   d.Obligations,
		BundleVersion: d.BundleVersion,
		EvaluatedAt:   d.EvaluatedAt,
		CacheHit:      d.CacheHit,
	}
}

// handleAuthorize runs the full decision pipeline. The ordering is fixed:
// enrich, audit the enrichment, normalize, evaluate, audit the decision, and
// only then release the response. An audit failure at any point fails the
// request closed.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := observability.GetRequestID(ctx)
	start := time.Now()

	var req AuthorizeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Subject.UniqueID, "subject.uniqueID") {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Resource.ResourceID, "resource.resourceId") {
		return
	}

	claims, record, err := s.deps.Enricher.Enrich(req.Subject)
	if err != nil {
		if errors.Is(err, enrichment.ErrEnrichmentFailure) {
			// Specific cause goes to the trail; the caller sees only the
			// generic message.
			ev := audit.NewEnrichmentFailureEvent(req.Subject.UniqueID, req.Subject.SourceIdP, err.Error(), requestID)
			if aerr := s.deps.Audit.Log(ctx, ev); aerr != nil {
				s.auditUnavailable(w, aerr)
				return
			}
			httputil.WriteForbidden(w, "insufficient identity information")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	if record != nil {
		fields := map[string]interface{}{
			"domain":      record.Domain,
			"confidence":  record.Confidence,
			"enrichments": record.Enrichments,
		}
		if err := s.deps.Audit.Log(ctx, audit.NewEnrichmentEvent(claims.UniqueID, requestID, fields)); err != nil {
			s.auditUnavailable(w, err)
			return
		}
		if s.deps.Metrics != nil {
			for _, fe := range record.Enrichments {
				s.deps.Metrics.EnrichmentsTotal.WithLabelValues(string(fe.Method), string(fe.Confidence)).Inc()
			}
		}
	}

	subject, err := s.deps.Normalizer.Normalize(claims)
	if err != nil {
		var verr *normalize.ValidationError
		if errors.As(err, &verr) {
			s.denyInvalidClaims(w, r, claims, verr, requestID, start)
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	now := time.Now()

	// Pin one bundle snapshot for both the cache key and the evaluation. A
	// swap mid-request must not file a decision under the other version.
	snapshot := s.deps.Snapshots.Active()
	version := ""
	if snapshot != nil {
		version = snapshot.Version
	}

	var decision attributes.Decision
	if s.deps.Cache != nil {
		decision = s.deps.Cache.GetOrEvaluate(subject, req.Resource, version, now, func() attributes.Decision {
			return s.deps.Engine.EvaluateBundle(snapshot, subject, req.Resource, now)
		})
	} else {
		decision = s.deps.Engine.EvaluateBundle(snapshot, subject, req.Resource, now)
	}

	if s.deps.Guard != nil {
		s.deps.Guard.Record(decision.Allow)
	}
	s.recordDecisionMetrics(decision, start)

	if err := s.deps.Audit.Log(ctx, audit.NewDecisionEvent(subject, req.Resource, decision, requestID, time.Since(start))); err != nil {
		s.auditUnavailable(w, err)
		return
	}

	httputil.WriteSuccess(w, toResponse(decision))
}

// denyInvalidClaims turns a vocabulary rejection into an audited deny. The
// claim never reached the engine, so the decision is synthesized here with
// the validation reason as its single failing cause.
func (s *Server) denyInvalidClaims(w http.ResponseWriter, r *http.Request,
	claims attributes.RawClaims, verr *normalize.ValidationError, requestID string, start time.Time) {

	if s.deps.Metrics != nil {
		s.deps.Metrics.ValidationFailures.WithLabelValues(verr.Field).Inc()
	}

	ev := audit.NewValidationFailureEvent(claims.UniqueID, claims.SourceIdP,
		verr.Field, verr.Value, verr.Reason, requestID)
	if err := s.deps.Audit.Log(r.Context(), ev); err != nil {
		s.auditUnavailable(w, err)
		return
	}

	decision := attributes.Decision{
		DecisionID:    uuid.NewString(),
		Allow:         false,
		Reasons:       []string{verr.Reason},
		BundleVersion: s.deps.Snapshots.ActiveVersion(),
		EvaluatedAt:   time.Now().UTC(),
	}
	if s.deps.Guard != nil {
		s.deps.Guard.Record(false)
	}
	s.recordDecisionMetrics(decision, start)

	httputil.WriteSuccess(w, toResponse(decision))
}

func (s *Server) recordDecisionMetrics(d attributes.Decision, start time.Time) {
	if s.deps.Metrics == nil {
		return
	}
	firstReason := ""
	if !d.Allow && len(d.Reasons) > 0 {
		firstReason = d.Reasons[0]
	}
	s.deps.Metrics.RecordDecision(d.Allow, firstReason, d.CacheHit, time.Since(start))
}

// auditUnavailable fails a request closed when the trail cannot accept its
// record. A decision that cannot be audited must not be released.
func (s *Server) auditUnavailable(w http.ResponseWriter, err error) {
	if s.deps.Logger != nil {
		s.deps.Logger.WithError(err).Error("audit write rejected; failing request closed")
	}
	if errors.Is(err, audit.ErrBackpressure) {
		httputil.WriteServiceUnavailable(w, "audit queue saturated")
		return
	}
	httputil.WriteServiceUnavailable(w, "audit trail unavailable")
}
