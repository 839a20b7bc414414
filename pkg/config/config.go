package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dive-federation/pdp/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Attribute registry configuration
	Registry RegistryConfig

	// Policy bundle distribution configuration
	Bundle BundleConfig

	// Decision cache configuration
	Cache CacheConfig

	// Audit trail configuration
	Audit AuditConfig

	// Redis configuration (bundle drift reporting and notifications)
	Redis RedisConfig

	// Bearer token verification configuration
	Auth AuthConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// RegistryConfig holds attribute vocabulary settings
type RegistryConfig struct {
	// Path is an optional YAML override for the built-in country, COI,
	// and clearance vocabularies. Empty means defaults only.
	Path string

	// Watch reloads the registry when the override file changes.
	Watch bool
}

// BundleConfig holds policy bundle distribution settings
type BundleConfig struct {
	// StoreType selects the distribution point: "filesystem" or "s3".
	StoreType string

	// Filesystem store
	FilesystemRoot string

	// S3 store
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3Prefix       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool

	// Source selects where the syncer fetches bundles: "store" reads the
	// distribution point directly, "http" pulls from the hub's API.
	Source string

	// Hub fetch path ("http" source). Client credentials are optional;
	// empty means unauthenticated fetch.
	HubURL          string
	HubClientID     string
	HubClientSecret string
	HubTokenURL     string
	FetchTimeout    time.Duration

	// PublicKeyPath is the PEM file used to verify bundle signatures.
	PublicKeyPath string

	// ReplicaID identifies this decision point in drift reports.
	ReplicaID string

	// PollInterval is the sync safety net between Redis notifications.
	PollInterval time.Duration

	// Rollback guard tuning
	GuardMinSamples int
	GuardThreshold  float64
}

// CacheConfig holds decision cache settings
type CacheConfig struct {
	Enabled bool
	Size    int
	TTL     time.Duration
}

// AuditConfig holds audit trail settings
type AuditConfig struct {
	// File sink
	FilePath     string
	FileRotate   bool
	FileMaxSize  int64
	FileMaxFiles int

	// Database sink; empty DatabaseURL disables it
	DatabaseURL string
	Driver      string

	// Write pipeline
	QueueSize    int
	EnqueueWait  time.Duration
	WriteRetries int

	// Retention
	RetentionDays   int
	ArchiveDir      string
	CleanupSchedule string
}

// RedisConfig holds Redis connection settings; empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	OIDCEnabled bool
	IssuerURL   string
	ClientID    string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Registry:      loadRegistryConfig(),
		Bundle:        loadBundleConfig(),
		Cache:         loadCacheConfig(),
		Audit:         loadAuditConfig(),
		Redis:         loadRedisConfig(),
		Auth:          loadAuthConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("PDP_HOST", "0.0.0.0"),
		Port:            getEnv("PDP_PORT", "8080"),
		ReadTimeout:     getEnvDuration("PDP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("PDP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("PDP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("PDP_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("PDP_HEALTH_PORT", "9090"),
	}
}

// loadRegistryConfig loads attribute registry configuration from environment
func loadRegistryConfig() RegistryConfig {
	return RegistryConfig{
		Path:  getEnv("PDP_REGISTRY_PATH", ""),
		Watch: getEnvBool("PDP_REGISTRY_WATCH", true),
	}
}

// loadBundleConfig loads bundle distribution configuration from environment
func loadBundleConfig() BundleConfig {
	replicaID := getEnv("PDP_REPLICA_ID", "")
	if replicaID == "" {
		if hostname, err := os.Hostname(); err == nil {
			replicaID = hostname
		} else {
			replicaID = "pdp"
		}
	}

	return BundleConfig{
		StoreType:       getEnv("PDP_BUNDLE_STORE_TYPE", "filesystem"),
		FilesystemRoot:  getEnv("PDP_BUNDLE_ROOT", "/var/lib/pdp/bundles"),
		S3Endpoint:      getEnv("PDP_BUNDLE_S3_ENDPOINT", ""),
		S3Region:        getEnv("PDP_BUNDLE_S3_REGION", "us-east-1"),
		S3Bucket:        getEnv("PDP_BUNDLE_S3_BUCKET", ""),
		S3Prefix:        getEnv("PDP_BUNDLE_S3_PREFIX", "bundles"),
		S3AccessKey:     getEnv("PDP_BUNDLE_S3_ACCESS_KEY", ""),
		S3SecretKey:     getEnv("PDP_BUNDLE_S3_SECRET_KEY", ""),
		S3UsePathStyle:  getEnvBool("PDP_BUNDLE_S3_USE_PATH_STYLE", false),
		Source:          getEnv("PDP_BUNDLE_SOURCE", "store"),
		HubURL:          getEnv("PDP_BUNDLE_HUB_URL", ""),
		HubClientID:     getEnv("PDP_BUNDLE_HUB_CLIENT_ID", ""),
		HubClientSecret: getEnv("PDP_BUNDLE_HUB_CLIENT_SECRET", ""),
		HubTokenURL:     getEnv("PDP_BUNDLE_HUB_TOKEN_URL", ""),
		FetchTimeout:    getEnvDuration("PDP_BUNDLE_FETCH_TIMEOUT", 30*time.Second),
		PublicKeyPath:   getEnv("PDP_BUNDLE_PUBLIC_KEY", "/etc/pdp/bundle.pub"),
		ReplicaID:       replicaID,
		PollInterval:    getEnvDuration("PDP_BUNDLE_POLL_INTERVAL", 30*time.Second),
		GuardMinSamples: getEnvInt("PDP_BUNDLE_GUARD_MIN_SAMPLES", 100),
		GuardThreshold:  getEnvFloat("PDP_BUNDLE_GUARD_THRESHOLD", 0.2),
	}
}

// loadCacheConfig loads decision cache configuration from environment
func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled: getEnvBool("PDP_CACHE_ENABLED", true),
		Size:    getEnvInt("PDP_CACHE_SIZE", 10000),
		TTL:     getEnvDuration("PDP_CACHE_TTL", 5*time.Minute),
	}
}

// loadAuditConfig loads audit trail configuration from environment
func loadAuditConfig() AuditConfig {
	return AuditConfig{
		FilePath:        getEnv("PDP_AUDIT_PATH", "/var/log/pdp/audit"),
		FileRotate:      getEnvBool("PDP_AUDIT_ROTATE", true),
		FileMaxSize:     getEnvInt64("PDP_AUDIT_MAX_SIZE", 100*1024*1024),
		FileMaxFiles:    getEnvInt("PDP_AUDIT_MAX_FILES", 10),
		DatabaseURL:     getEnv("PDP_AUDIT_DATABASE_URL", ""),
		Driver:          getEnv("PDP_AUDIT_DRIVER", "postgres"),
		QueueSize:       getEnvInt("PDP_AUDIT_QUEUE_SIZE", 4096),
		EnqueueWait:     getEnvDuration("PDP_AUDIT_ENQUEUE_WAIT", 250*time.Millisecond),
		WriteRetries:    getEnvInt("PDP_AUDIT_WRITE_RETRIES", 3),
		RetentionDays:   getEnvInt("PDP_AUDIT_RETENTION_DAYS", 365),
		ArchiveDir:      getEnv("PDP_AUDIT_ARCHIVE_DIR", "/var/lib/pdp/audit-archive"),
		CleanupSchedule: getEnv("PDP_AUDIT_CLEANUP_SCHEDULE", "0 3 * * *"),
	}
}

// loadRedisConfig loads Redis configuration from environment
func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     getEnv("PDP_REDIS_ADDR", ""),
		Password: getEnv("PDP_REDIS_PASSWORD", ""),
		DB:       getEnvInt("PDP_REDIS_DB", 0),
		PoolSize: getEnvInt("PDP_REDIS_POOL_SIZE", 10),
	}
}

// loadAuthConfig loads bearer token verification configuration from environment
func loadAuthConfig() AuthConfig {
	return AuthConfig{
		OIDCEnabled: getEnvBool("PDP_OIDC_ENABLED", false),
		IssuerURL:   getEnv("PDP_OIDC_ISSUER", ""),
		ClientID:    getEnv("PDP_OIDC_CLIENT_ID", ""),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	cfg := ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("PDP_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("PDP_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("PDP_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("PDP_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("PDP_OTEL_SERVICE_NAME", "pdp"),
		OTelServiceVersion: getEnv("PDP_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("PDP_OTEL_INSECURE", true),
	}

	return cfg
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate bundle store config based on type
	switch c.Bundle.StoreType {
	case "filesystem":
		if c.Bundle.FilesystemRoot == "" {
			return fmt.Errorf("bundle root is required for filesystem bundle store")
		}
	case "s3":
		if c.Bundle.S3Bucket == "" {
			return fmt.Errorf("S3 bucket is required for s3 bundle store")
		}
	default:
		return fmt.Errorf("invalid bundle store type: %s (must be filesystem or s3)", c.Bundle.StoreType)
	}
	if c.Bundle.GuardThreshold <= 0 || c.Bundle.GuardThreshold > 1 {
		return fmt.Errorf("bundle guard threshold must be in (0, 1]")
	}

	// Validate bundle source config
	switch c.Bundle.Source {
	case "", "store":
	case "http":
		if c.Bundle.HubURL == "" {
			return fmt.Errorf("hub URL is required for http bundle source")
		}
		if c.Bundle.HubClientID != "" && c.Bundle.HubTokenURL == "" {
			return fmt.Errorf("hub token URL is required when hub client credentials are set")
		}
	default:
		return fmt.Errorf("invalid bundle source: %s (must be store or http)", c.Bundle.Source)
	}

	// Validate audit config
	switch c.Audit.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("invalid audit driver: %s (must be postgres or sqlite3)", c.Audit.Driver)
	}
	if c.Audit.FilePath == "" && c.Audit.DatabaseURL == "" {
		return fmt.Errorf("at least one audit sink is required")
	}
	if c.Audit.RetentionDays <= 0 {
		return fmt.Errorf("audit retention must be positive")
	}

	// Validate bearer token config
	if c.Auth.OIDCEnabled && c.Auth.IssuerURL == "" {
		return fmt.Errorf("OIDC issuer is required when OIDC is enabled")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float64 environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
