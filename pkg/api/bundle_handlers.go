package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dive-federation/pdp/pkg/audit"
	"github.com/dive-federation/pdp/pkg/bundle"
	"github.com/dive-federation/pdp/pkg/httputil"
)

// versionRequest is the body of the activate and pin operations.
type versionRequest struct {
	Version string `json:"version"`
}

// BundleStatus is the operator view of distribution state.
type BundleStatus struct {
	ActiveVersion string                  `json:"activeVersion"`
	PinnedVersion string                  `json:"pinnedVersion,omitempty"`
	Replicas      []bundle.ReplicaVersion `json:"replicas,omitempty"`
}

func (s *Server) handleLatestBundle(w http.ResponseWriter, r *http.Request) {
	b, err := s.deps.Store.Latest(r.Context())
	if err != nil {
		if errors.Is(err, bundle.ErrNotFound) {
			httputil.WriteNotFoundError(w, "no bundle published")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, b)
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.deps.Store.Versions(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"versions": versions})
}

func (s *Server) handleGetBundle(w http.ResponseWriter, r *http.Request) {
	version, ok := httputil.ParsePathStringOrError(w, r, "version")
	if !ok {
		return
	}
	b, err := s.deps.Store.Get(r.Context(), version)
	if err != nil {
		if errors.Is(err, bundle.ErrNotFound) {
			httputil.WriteNotFoundError(w, fmt.Sprintf("bundle version %s not found", version))
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, b)
}

func (s *Server) handleBundleStatus(w http.ResponseWriter, r *http.Request) {
	status := BundleStatus{
		ActiveVersion: s.deps.Syncer.ActiveVersion(),
		PinnedVersion: s.deps.Syncer.PinnedVersion(),
	}
	if s.deps.Reporter != nil {
		replicas, err := s.deps.Reporter.Snapshot(r.Context(), status.ActiveVersion)
		if err != nil {
			// Drift state is best effort; the local versions still answer.
			s.deps.Logger.WithError(err).Warn("failed to read replica version reports")
		} else {
			status.Replicas = replicas
		}
	}
	httputil.WriteSuccess(w, status)
}

// handlePublishBundle accepts a signed bundle from the release tooling,
// verifies it, and appends it to the store. The store rejects version reuse,
// so a published version can never be silently replaced.
func (s *Server) handlePublishBundle(w http.ResponseWriter, r *http.Request) {
	var b bundle.Bundle
	if !httputil.ParseJSONOrError(w, r, &b) {
		return
	}
	if !httputil.RequireNonEmpty(w, b.Version, "version") {
		return
	}

	if err := s.deps.Verifier.Verify(&b); err != nil {
		httputil.WriteError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if err := s.deps.Store.Put(r.Context(), &b); err != nil {
		httputil.WriteConflict(w, err.Error())
		return
	}
	if !s.auditBundleOp(w, r, audit.EventTypeBundlePublish, b.Version, "bundle published") {
		return
	}

	if s.deps.Reporter != nil {
		if err := s.deps.Reporter.Publish(r.Context(), b.Version); err != nil {
			s.deps.Logger.WithError(err).Warn("failed to notify replicas of new bundle")
		}
	}
	httputil.WriteCreated(w, map[string]string{"version": b.Version, "digest": b.Digest})
}

func (s *Server) handleActivateBundle(w http.ResponseWriter, r *http.Request) {
	var req versionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Version, "version") {
		return
	}

	if err := s.deps.Syncer.Activate(r.Context(), req.Version); err != nil {
		s.writeBundleOpError(w, err)
		return
	}
	if !s.auditBundleOp(w, r, audit.EventTypeBundleActivate, req.Version, "operator activation") {
		return
	}
	httputil.WriteSuccess(w, map[string]string{"activeVersion": req.Version})
}

func (s *Server) handlePinBundle(w http.ResponseWriter, r *http.Request) {
	var req versionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Version, "version") {
		return
	}

	if err := s.deps.Syncer.Pin(r.Context(), req.Version); err != nil {
		s.writeBundleOpError(w, err)
		return
	}
	if !s.auditBundleOp(w, r, audit.EventTypeBundlePin, req.Version, "operator pin; automatic updates suspended") {
		return
	}
	httputil.WriteSuccess(w, map[string]string{"pinnedVersion": req.Version})
}

func (s *Server) handleUnpinBundle(w http.ResponseWriter, r *http.Request) {
	pinned := s.deps.Syncer.PinnedVersion()
	if pinned == "" {
		httputil.WriteConflict(w, "no bundle is pinned")
		return
	}
	s.deps.Syncer.Unpin()
	if !s.auditBundleOp(w, r, audit.EventTypeBundleUnpin, pinned, "operator unpin; automatic updates resumed") {
		return
	}
	httputil.WriteSuccess(w, map[string]string{"activeVersion": s.deps.Syncer.ActiveVersion()})
}

func (s *Server) handleRollbackBundle(w http.ResponseWriter, r *http.Request) {
	from := s.deps.Syncer.ActiveVersion()
	if err := s.deps.Syncer.Rollback(r.Context()); err != nil {
		s.writeBundleOpError(w, err)
		return
	}
	to := s.deps.Syncer.ActiveVersion()
	if !s.auditBundleOp(w, r, audit.EventTypeBundleRollback, to,
		fmt.Sprintf("operator rollback from %s", from)) {
		return
	}
	httputil.WriteSuccess(w, map[string]string{"activeVersion": to})
}

// auditBundleOp writes the lifecycle record and reports whether the operation
// may proceed. Lifecycle transitions without a trail entry are not allowed to
// succeed silently.
func (s *Server) auditBundleOp(w http.ResponseWriter, r *http.Request, t audit.EventType, version, message string) bool {
	if err := s.deps.Audit.Log(r.Context(), audit.NewBundleEvent(t, version, message)); err != nil {
		s.auditUnavailable(w, err)
		return false
	}
	return true
}

func (s *Server) writeBundleOpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bundle.ErrNotFound):
		httputil.WriteNotFoundError(w, err.Error())
	case errors.Is(err, bundle.ErrBadSignature), errors.Is(err, bundle.ErrDigestMismatch):
		httputil.WriteError(w, http.StatusUnprocessableEntity, err)
	default:
		httputil.WriteInternalError(w, err)
	}
}
