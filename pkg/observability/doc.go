// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// # Overview
//
// This package centralizes observability infrastructure including JSON logging, metrics
// collection, health checks, and distributed tracing integration.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.Info("Server started", "port", 8080)
//
// Context-aware logging:
//
//	logger.WithField("request_id", reqID).Error("Request failed", err)
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.DecisionsTotal.WithLabelValues("allow").Inc()
//	metrics.DecisionDuration.WithLabelValues("false").Observe(0.004)
//
// Decision helpers:
//
//	metrics.RecordDecision(decision.Allow, firstReason(decision), decision.CacheHit, elapsed)
//	metrics.SetActiveBundleVersion(bundle.Version)
//
// # Health Checks
//
// Configure health checker:
//
//	checker := observability.NewHealthChecker(db, redisClient, snapshots.ActiveVersion)
//	status := checker.Check(ctx)
//
// Readiness reports degraded until a policy bundle has been activated.
//
// # OpenTelemetry
//
// Initialize tracing:
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:        true,
//		ServiceName:    "pdp",
//		ServiceVersion: "v1.0.0",
//		Endpoint:       "otel-collector:4317",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// Request log lines carry the active trace via WithTraceContext.
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/api: Request logging and metrics middleware
package observability
