// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	PDP_HOST="0.0.0.0"
//	PDP_PORT="8080"
//	PDP_HEALTH_PORT="9090"
//	PDP_READ_TIMEOUT="15s"
//	PDP_WRITE_TIMEOUT="15s"
//
// Bundle distribution settings:
//
//	PDP_BUNDLE_STORE_TYPE="filesystem"  # filesystem, s3
//	PDP_BUNDLE_ROOT="/var/lib/pdp/bundles"
//	PDP_BUNDLE_S3_BUCKET="pdp-bundles"
//	PDP_BUNDLE_PUBLIC_KEY="/etc/pdp/bundle.pub"
//	PDP_BUNDLE_POLL_INTERVAL="30s"
//	PDP_REPLICA_ID="pdp-eu-1"
//
// Decision cache settings:
//
//	PDP_CACHE_ENABLED="true"
//	PDP_CACHE_SIZE="10000"
//	PDP_CACHE_TTL="5m"
//
// Audit settings:
//
//	PDP_AUDIT_PATH="/var/log/pdp/audit"
//	PDP_AUDIT_DATABASE_URL="postgres://localhost/pdp_audit"
//	PDP_AUDIT_DRIVER="postgres"  # postgres, sqlite3
//	PDP_AUDIT_RETENTION_DAYS="365"
//
// Observability settings:
//
//	PDP_LOG_LEVEL="info"  # debug, info, warn, error
//	PDP_METRICS_ENABLED="true"
//	PDP_OTEL_ENABLED="true"
//	PDP_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Bundle store: %s\n", cfg.Bundle.StoreType)
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/bundle: Uses bundle distribution configuration
//   - pkg/audit: Uses audit sink configuration
//   - pkg/observability: Uses observability configuration
package config
