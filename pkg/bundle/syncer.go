package bundle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/dive-federation/pdp/pkg/observability"
)

// Source fetches candidate bundles for a replica.
type Source interface {
	FetchLatest(ctx context.Context) (*Bundle, error)
	Fetch(ctx context.Context, version string) (*Bundle, error)
}

// StoreSource reads bundles directly from a Store (hub replicas, or spokes
// sharing an object bucket with the hub).
type StoreSource struct {
	Store Store
}

func (s StoreSource) FetchLatest(ctx context.Context) (*Bundle, error) {
	return s.Store.Latest(ctx)
}

func (s StoreSource) Fetch(ctx context.Context, version string) (*Bundle, error) {
	return s.Store.Get(ctx, version)
}

// HTTPSourceConfig configures a spoke's fetch path to the hub.
type HTTPSourceConfig struct {
	BaseURL string

	// OAuth2 client credentials for authenticating to the hub. All empty
	// means unauthenticated fetch (mTLS handled by the transport layer).
	ClientID     string
	ClientSecret string
	TokenURL     string

	Timeout time.Duration
}

// HTTPSource fetches bundles from the hub's HTTP API.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource creates an HTTP bundle source.
func NewHTTPSource(ctx context.Context, cfg HTTPSourceConfig) *HTTPSource {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	if cfg.ClientID != "" && cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		client = cc.Client(ctx)
		client.Timeout = timeout
	}

	return &HTTPSource{baseURL: cfg.BaseURL, client: client}
}

func (s *HTTPSource) fetch(ctx context.Context, path string) (*Bundle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build bundle request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bundle from hub: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hub returned status %d for %s", resp.StatusCode, path)
	}

	var b Bundle
	if err := decodeJSONBody(resp, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *HTTPSource) FetchLatest(ctx context.Context) (*Bundle, error) {
	return s.fetch(ctx, "/v1/bundle/latest")
}

func (s *HTTPSource) Fetch(ctx context.Context, version string) (*Bundle, error) {
	return s.fetch(ctx, "/v1/bundle/versions/"+version)
}

// Activator receives verified bundles. The policy snapshot store implements
// this with an atomic pointer swap.
type Activator interface {
	Activate(b *Bundle)
}

// SyncerConfig configures a replica's bundle synchronization.
type SyncerConfig struct {
	// ReplicaID identifies this decision point in version reports.
	ReplicaID string

	// PollInterval is how often the source is polled. Notifications via
	// Redis wake the syncer early; polling is the safety net.
	PollInterval time.Duration
}

// Syncer keeps one replica's active bundle in step with the distribution
// point. Only verified bundles reach the activator; on any fetch or
// verification failure the replica keeps serving its last-known-good bundle.
type Syncer struct {
	cfg      SyncerConfig
	source   Source
	verifier *Verifier
	activator Activator
	guard    *RollbackGuard
	reporter *Reporter
	logger   *logrus.Logger
	metrics  *observability.Metrics

	mu      sync.Mutex
	active  string
	pinned  string
	history []string
}

// NewSyncer wires a replica's sync loop. guard, reporter, and metrics may be
// nil when the corresponding feature is disabled.
func NewSyncer(cfg SyncerConfig, source Source, verifier *Verifier, activator Activator,
	guard *RollbackGuard, reporter *Reporter, logger *logrus.Logger, metrics *observability.Metrics) *Syncer {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Syncer{
		cfg:       cfg,
		source:    source,
		verifier:  verifier,
		activator: activator,
		guard:     guard,
		reporter:  reporter,
		logger:    logger,
		metrics:   metrics,
	}
}

// ActiveVersion returns the currently active bundle version, empty before the
// first successful sync.
func (s *Syncer) ActiveVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// PinnedVersion returns the pinned version, empty when unpinned.
func (s *Syncer) PinnedVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pinned
}

// SyncOnce fetches the latest bundle and activates it if it is new, verified,
// and the replica is not pinned.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	s.mu.Lock()
	pinned := s.pinned
	current := s.active
	s.mu.Unlock()

	if pinned != "" {
		return nil
	}

	latest, err := s.source.FetchLatest(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Nothing published yet; the engine denies everything until a
			// bundle arrives.
			return nil
		}
		return fmt.Errorf("bundle fetch failed: %w", err)
	}
	if latest.Version == current {
		return nil
	}

	return s.activate(ctx, latest)
}

// Activate verifies and swaps in a specific version (operator command).
func (s *Syncer) Activate(ctx context.Context, version string) error {
	b, err := s.source.Fetch(ctx, version)
	if err != nil {
		return err
	}
	return s.activate(ctx, b)
}

// Pin verifies, activates, and pins the given version. New versions are
// ignored until Unpin.
func (s *Syncer) Pin(ctx context.Context, version string) error {
	if err := s.Activate(ctx, version); err != nil {
		return err
	}
	s.mu.Lock()
	s.pinned = version
	s.mu.Unlock()
	s.logger.WithField("version", version).Warn("bundle pinned; automatic updates suspended")
	return nil
}

// Unpin resumes automatic updates.
func (s *Syncer) Unpin() {
	s.mu.Lock()
	s.pinned = ""
	s.mu.Unlock()
	s.logger.Info("bundle unpinned; automatic updates resumed")
}

// Rollback re-activates the previously active version. Every rollback target
// was verified when first activated, and is verified again on fetch.
func (s *Syncer) Rollback(ctx context.Context) error {
	s.mu.Lock()
	if len(s.history) < 2 {
		s.mu.Unlock()
		return fmt.Errorf("no previous bundle version to roll back to")
	}
	previous := s.history[len(s.history)-2]
	s.mu.Unlock()

	if err := s.Activate(ctx, previous); err != nil {
		return fmt.Errorf("rollback to %s failed: %w", previous, err)
	}

	// Activation appended the restored version again. Drop it and the
	// version rolled away from, so a second rollback steps further back
	// instead of bouncing between the same two versions.
	s.mu.Lock()
	if n := len(s.history); n >= 2 && s.history[n-1] == previous {
		s.history = s.history[:n-2]
	}
	s.mu.Unlock()

	s.logger.WithField("version", previous).Warn("rolled back to previous bundle version")
	return nil
}

func (s *Syncer) activate(ctx context.Context, b *Bundle) error {
	if err := s.verifier.Verify(b); err != nil {
		if s.metrics != nil {
			s.metrics.BundleVerificationFailures.Inc()
		}
		return fmt.Errorf("refusing to activate bundle %s: %w", b.Version, err)
	}

	s.activator.Activate(b)
	if s.guard != nil {
		s.guard.OnSwap()
	}

	s.mu.Lock()
	s.active = b.Version
	if n := len(s.history); n == 0 || s.history[n-1] != b.Version {
		s.history = append(s.history, b.Version)
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.BundleSwapsTotal.Inc()
		s.metrics.SetActiveBundleVersion(b.Version)
	}
	s.logger.WithFields(logrus.Fields{
		"version": b.Version,
		"digest":  b.Digest,
	}).Info("activated policy bundle")

	if s.reporter != nil {
		if err := s.reporter.ReportVersion(ctx, s.cfg.ReplicaID, b.Version); err != nil {
			s.logger.WithError(err).Warn("failed to report active bundle version")
		}
	}
	return nil
}

// Run polls the source until ctx is cancelled. notify, when non-nil, wakes the
// loop early (fed by the Redis subscription in Reporter.Notifications).
func (s *Syncer) Run(ctx context.Context, notify <-chan string) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := s.SyncOnce(ctx); err != nil {
			s.logger.WithError(err).Error("bundle sync failed; keeping last-known-good bundle")
		}
		if s.guard != nil && s.guard.Regressed() {
			s.logger.Warn("denial-rate regression detected after bundle swap")
			if err := s.Rollback(ctx); err != nil {
				s.logger.WithError(err).Error("automatic rollback failed")
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case version, ok := <-notify:
			if !ok {
				notify = nil
				continue
			}
			s.logger.WithField("version", version).Debug("bundle notification received")
		}
	}
}

func decodeJSONBody(resp *http.Response, v interface{}) error {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode bundle response: %w", err)
	}
	return nil
}
