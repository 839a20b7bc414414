package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dive-federation/pdp/pkg/audit"
	"github.com/dive-federation/pdp/pkg/bundle"
	"github.com/dive-federation/pdp/pkg/decisioncache"
	"github.com/dive-federation/pdp/pkg/enrichment"
	"github.com/dive-federation/pdp/pkg/httputil"
	"github.com/dive-federation/pdp/pkg/normalize"
	"github.com/dive-federation/pdp/pkg/observability"
	"github.com/dive-federation/pdp/pkg/policy"
)

// maxRequestBytes bounds authorize and bundle request bodies. Bundles with
// large country tables stay well under this.
const maxRequestBytes = 1 << 20

// Deps carries everything the HTTP surface needs. Cache, Guard, Reporter,
// AuditStore, and Authenticator are optional; nil disables the corresponding
// behavior.
type Deps struct {
	Logger     *observability.Logger
	Metrics    *observability.Metrics
	Enricher   *enrichment.Enricher
	Normalizer *normalize.Normalizer
	Engine     *policy.Engine
	Snapshots  *policy.SnapshotStore
	Cache      *decisioncache.Cache
	Syncer     *bundle.Syncer
	Store      bundle.Store
	Verifier   *bundle.Verifier
	Guard      *bundle.RollbackGuard
	Reporter   *bundle.Reporter
	Audit      audit.Logger
	AuditStore audit.Store
	Auth       *Authenticator
}

// Server is the decision point's HTTP front end.
type Server struct {
	deps   Deps
	router *mux.Router
}

// NewServer creates the server and mounts all routes.
func NewServer(deps Deps) *Server {
	s := &Server{
		deps:   deps,
		router: mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.deps.Logger),
		httputil.RecoveryMiddleware(s.deps.Logger),
	)
	if s.deps.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.deps.Metrics))
	}
	s.router.Use(httputil.MaxBytesMiddleware(maxRequestBytes))

	authed := s.withAuth

	// Decision endpoint
	s.router.Handle("/v1/authorize",
		authed(httputil.ContentTypeMiddleware(http.HandlerFunc(s.handleAuthorize)))).Methods("POST")

	// Bundle distribution (replica pull surface)
	s.router.HandleFunc("/v1/bundle/latest", s.handleLatestBundle).Methods("GET")
	s.router.HandleFunc("/v1/bundle/versions", s.handleListVersions).Methods("GET")
	s.router.HandleFunc("/v1/bundle/versions/{version}", s.handleGetBundle).Methods("GET")
	s.router.HandleFunc("/v1/bundle/status", s.handleBundleStatus).Methods("GET")

	// Bundle lifecycle (operator surface)
	s.router.Handle("/v1/bundle/publish",
		authed(httputil.ContentTypeMiddleware(http.HandlerFunc(s.handlePublishBundle)))).Methods("POST")
	s.router.Handle("/v1/bundle/activate",
		authed(httputil.ContentTypeMiddleware(http.HandlerFunc(s.handleActivateBundle)))).Methods("POST")
	s.router.Handle("/v1/bundle/pin",
		authed(httputil.ContentTypeMiddleware(http.HandlerFunc(s.handlePinBundle)))).Methods("POST")
	s.router.Handle("/v1/bundle/unpin", authed(http.HandlerFunc(s.handleUnpinBundle))).Methods("POST")
	s.router.Handle("/v1/bundle/rollback", authed(http.HandlerFunc(s.handleRollbackBundle))).Methods("POST")

	// Audit trail
	if s.deps.AuditStore != nil {
		audit.NewHandlers(s.deps.AuditStore).RegisterRoutes(s.router)
	}
}

// withAuth wraps a handler with bearer verification when an authenticator is
// configured, and is a no-op otherwise.
func (s *Server) withAuth(next http.Handler) http.Handler {
	if s.deps.Auth == nil {
		return next
	}
	return s.deps.Auth.Middleware(next)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the underlying router for additional route registration.
func (s *Server) Router() *mux.Router {
	return s.router
}
