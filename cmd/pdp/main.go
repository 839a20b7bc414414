package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dive-federation/pdp/pkg/api"
	"github.com/dive-federation/pdp/pkg/async"
	"github.com/dive-federation/pdp/pkg/audit"
	"github.com/dive-federation/pdp/pkg/bundle"
	"github.com/dive-federation/pdp/pkg/config"
	"github.com/dive-federation/pdp/pkg/decisioncache"
	"github.com/dive-federation/pdp/pkg/enrichment"
	"github.com/dive-federation/pdp/pkg/normalize"
	"github.com/dive-federation/pdp/pkg/observability"
	"github.com/dive-federation/pdp/pkg/policy"
	"github.com/dive-federation/pdp/pkg/registry"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	// Background components (bundle sync, audit writer) log through logrus.
	bglog := logrus.New()
	bglog.SetFormatter(&logrus.JSONFormatter{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Attribute registry
	reg, err := registry.NewStore(registry.StoreConfig{Path: cfg.Registry.Path})
	if err != nil {
		log.Fatalf("Failed to load attribute registry: %v", err)
	}

	// Metrics
	promRegistry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(promRegistry)
	}

	// OpenTelemetry
	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to initialize OpenTelemetry: %v", err)
	}

	// Redis (drift reporting and bundle notifications)
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("Redis unreachable at startup; drift reporting degraded")
		}
	}

	// Bundle distribution
	store, err := newBundleStore(ctx, cfg.Bundle)
	if err != nil {
		log.Fatalf("Failed to initialize bundle store: %v", err)
	}
	publicKey, err := bundle.LoadPublicKey(cfg.Bundle.PublicKeyPath)
	if err != nil {
		log.Fatalf("Failed to load bundle verification key: %v", err)
	}
	verifier := bundle.NewVerifier(publicKey, bglog)

	var reporter *bundle.Reporter
	if redisClient != nil {
		reporter = bundle.NewReporter(redisClient, bglog, metrics)
	}
	guard := bundle.NewRollbackGuard(bundle.RollbackGuardConfig{
		MinSamples: cfg.Bundle.GuardMinSamples,
		Threshold:  cfg.Bundle.GuardThreshold,
	})

	// Policy evaluation
	snapshots := policy.NewSnapshotStore()
	var cache *decisioncache.Cache
	if cfg.Cache.Enabled {
		cache = decisioncache.New(decisioncache.Config{
			Size: cfg.Cache.Size,
			TTL:  cfg.Cache.TTL,
		}, metrics)
		snapshots.OnActivate(func(*bundle.Bundle) { cache.Purge() })
	}
	engine := policy.NewEngine(snapshots, reg)

	syncer := bundle.NewSyncer(bundle.SyncerConfig{
		ReplicaID:    cfg.Bundle.ReplicaID,
		PollInterval: cfg.Bundle.PollInterval,
	}, newBundleSource(ctx, cfg.Bundle, store), verifier, snapshots, guard, reporter, bglog, metrics)

	var notify <-chan string
	if reporter != nil {
		notify = reporter.Notifications(ctx)
	}
	go func() {
		defer observability.RecoverPanic(logger, "bundle sync loop")
		syncer.Run(ctx, notify)
	}()

	// Audit trail
	var sinks []audit.Logger
	var db *sql.DB
	var dbStore *audit.DBStore
	var auditStore audit.Store

	if cfg.Audit.FilePath != "" {
		fileLogger, err := audit.NewFileLogger(audit.FileLoggerConfig{
			BasePath: cfg.Audit.FilePath,
			Rotate:   cfg.Audit.FileRotate,
			MaxSize:  cfg.Audit.FileMaxSize,
			MaxFiles: cfg.Audit.FileMaxFiles,
		})
		if err != nil {
			log.Fatalf("Failed to open audit file sink: %v", err)
		}
		sinks = append(sinks, fileLogger)
	}
	if cfg.Audit.DatabaseURL != "" {
		db, err = sql.Open(cfg.Audit.Driver, cfg.Audit.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to open audit database: %v", err)
		}
		dbLogger, err := audit.NewDBLogger(db, cfg.Audit.Driver)
		if err != nil {
			log.Fatalf("Failed to initialize audit database sink: %v", err)
		}
		sinks = append(sinks, dbLogger)
		dbStore = audit.NewDBStore(dbLogger)
		auditStore = dbStore
	}

	var sink audit.Logger
	if len(sinks) == 1 {
		sink = sinks[0]
	} else {
		sink = audit.NewMultiLogger(sinks...)
	}
	auditor := audit.NewBufferedLogger(audit.BufferedLoggerConfig{
		QueueSize:    cfg.Audit.QueueSize,
		EnqueueWait:  cfg.Audit.EnqueueWait,
		WriteRetries: cfg.Audit.WriteRetries,
	}, sink, bglog, metrics)

	// Registry reload: watch the override file and audit each swap.
	reg.OnReload(func() {
		ev := audit.NewBundleEvent(audit.EventTypeRegistryReload, "", "attribute registry reloaded")
		if err := auditor.Log(context.Background(), ev); err != nil {
			logger.WithError(err).Error("failed to audit registry reload")
		}
	})
	if cfg.Registry.Watch && cfg.Registry.Path != "" {
		go func() {
			defer observability.RecoverPanic(logger, "registry watcher")
			if err := reg.Watch(ctx, logger); err != nil {
				logger.WithError(err).Error("registry watcher stopped")
			}
		}()
	}

	// Bearer verification
	var authenticator *api.Authenticator
	if cfg.Auth.OIDCEnabled {
		authenticator, err = api.NewAuthenticator(ctx, cfg.Auth.IssuerURL, cfg.Auth.ClientID, logger)
		if err != nil {
			log.Fatalf("Failed to initialize OIDC verification: %v", err)
		}
	}

	server := api.NewServer(api.Deps{
		Logger:     logger,
		Metrics:    metrics,
		Enricher:   enrichment.NewEnricher(reg, logger),
		Normalizer: normalize.NewNormalizer(reg),
		Engine:     engine,
		Snapshots:  snapshots,
		Cache:      cache,
		Syncer:     syncer,
		Store:      store,
		Verifier:   verifier,
		Guard:      guard,
		Reporter:   reporter,
		Audit:      auditor,
		AuditStore: auditStore,
		Auth:       authenticator,
	})

	// Scheduled maintenance
	scheduler := cron.New()
	if dbStore != nil {
		retention := audit.RetentionPolicy{
			RetentionDays:  cfg.Audit.RetentionDays,
			ArchiveEnabled: cfg.Audit.ArchiveDir != "",
			ArchivePath:    cfg.Audit.ArchiveDir,
		}
		if _, err := scheduler.AddFunc(cfg.Audit.CleanupSchedule, func() {
			async.SafeGo(ctx, 10*time.Minute, "audit retention sweep", bglog, func(ctx context.Context) error {
				deleted, err := dbStore.Cleanup(ctx, retention)
				if err != nil {
					return err
				}
				logger.WithField("deleted", deleted).Info("audit retention sweep complete")
				return nil
			})
		}); err != nil {
			log.Fatalf("Invalid audit cleanup schedule: %v", err)
		}
	}
	if reporter != nil {
		if _, err := scheduler.AddFunc("@every 1m", func() {
			async.SafeGo(ctx, 30*time.Second, "drift report", bglog, func(ctx context.Context) error {
				return reporter.ReportDrift(ctx, syncer.ActiveVersion())
			})
		}); err != nil {
			log.Fatalf("Failed to schedule drift reporting: %v", err)
		}
	}
	scheduler.Start()

	// Health and metrics listener
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient, snapshots.ActiveVersion))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, promRegistry)
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}
	go func() {
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server stopped")
		}
	}()

	// Decision listener, traced when OTel is enabled
	var handler http.Handler = server
	if otelProviders != nil {
		handler = otelhttp.NewHandler(server, "pdp")
	}
	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(sctx context.Context) error {
		cancel()
		scheduler.Stop()
		return healthServer.Shutdown(sctx)
	})
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		// Flush queued audit records before the sinks close.
		return auditor.Close()
	})
	if db != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error { return db.Close() })
	}
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error { return redisClient.Close() })
	}
	if otelProviders != nil {
		shutdown.RegisterShutdownFunc(func(sctx context.Context) error {
			return observability.ShutdownOTel(sctx, otelProviders, logger)
		})
	}

	go func() {
		logger.WithFields(map[string]interface{}{
			"addr":        httpServer.Addr,
			"health_addr": healthServer.Addr,
			"replica_id":  cfg.Bundle.ReplicaID,
			"store":       cfg.Bundle.StoreType,
		}).Info("policy decision point listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("shutdown finished with errors")
		os.Exit(1)
	}
}

// newBundleSource picks the syncer's fetch path. Spokes without direct access
// to the distribution point pull over the hub's API instead.
func newBundleSource(ctx context.Context, cfg config.BundleConfig, store bundle.Store) bundle.Source {
	if cfg.Source == "http" {
		return bundle.NewHTTPSource(ctx, bundle.HTTPSourceConfig{
			BaseURL:      cfg.HubURL,
			ClientID:     cfg.HubClientID,
			ClientSecret: cfg.HubClientSecret,
			TokenURL:     cfg.HubTokenURL,
			Timeout:      cfg.FetchTimeout,
		})
	}
	return bundle.StoreSource{Store: store}
}

// newBundleStore builds the configured distribution point backend.
func newBundleStore(ctx context.Context, cfg config.BundleConfig) (bundle.Store, error) {
	switch cfg.StoreType {
	case "s3":
		return bundle.NewS3Store(ctx, bundle.S3Config{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			Prefix:       cfg.S3Prefix,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
		})
	case "filesystem":
		return bundle.NewFilesystemStore(cfg.FilesystemRoot)
	default:
		return nil, fmt.Errorf("unknown bundle store type %q", cfg.StoreType)
	}
}
