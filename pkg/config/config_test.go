package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dive-federation/pdp/pkg/observability"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)

	assert.Equal(t, "filesystem", cfg.Bundle.StoreType)
	assert.Equal(t, "/var/lib/pdp/bundles", cfg.Bundle.FilesystemRoot)
	assert.Equal(t, "store", cfg.Bundle.Source)
	assert.Equal(t, 30*time.Second, cfg.Bundle.FetchTimeout)
	assert.Equal(t, 30*time.Second, cfg.Bundle.PollInterval)
	assert.Equal(t, 100, cfg.Bundle.GuardMinSamples)
	assert.InDelta(t, 0.2, cfg.Bundle.GuardThreshold, 1e-9)
	assert.NotEmpty(t, cfg.Bundle.ReplicaID)

	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 10000, cfg.Cache.Size)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)

	assert.Equal(t, "postgres", cfg.Audit.Driver)
	assert.Equal(t, 365, cfg.Audit.RetentionDays)
	assert.Equal(t, 4096, cfg.Audit.QueueSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Audit.EnqueueWait)

	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.Equal(t, "pdp", cfg.Observability.OTelServiceName)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("PDP_PORT", "8443")
	t.Setenv("PDP_LOG_LEVEL", "debug")
	t.Setenv("PDP_BUNDLE_STORE_TYPE", "s3")
	t.Setenv("PDP_BUNDLE_S3_BUCKET", "pdp-bundles")
	t.Setenv("PDP_BUNDLE_S3_ENDPOINT", "http://minio:9000")
	t.Setenv("PDP_BUNDLE_POLL_INTERVAL", "10s")
	t.Setenv("PDP_REPLICA_ID", "pdp-eu-1")
	t.Setenv("PDP_CACHE_SIZE", "500")
	t.Setenv("PDP_AUDIT_DRIVER", "sqlite3")
	t.Setenv("PDP_AUDIT_RETENTION_DAYS", "30")
	t.Setenv("PDP_BUNDLE_SOURCE", "http")
	t.Setenv("PDP_BUNDLE_HUB_URL", "https://hub.coalition.example")
	t.Setenv("PDP_BUNDLE_HUB_CLIENT_ID", "spoke-eu-1")
	t.Setenv("PDP_BUNDLE_HUB_CLIENT_SECRET", "s3cret")
	t.Setenv("PDP_BUNDLE_HUB_TOKEN_URL", "https://idp.coalition.example/token")
	t.Setenv("PDP_BUNDLE_FETCH_TIMEOUT", "5s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8443", cfg.Server.Port)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.Equal(t, "s3", cfg.Bundle.StoreType)
	assert.Equal(t, "pdp-bundles", cfg.Bundle.S3Bucket)
	assert.Equal(t, 10*time.Second, cfg.Bundle.PollInterval)
	assert.Equal(t, "pdp-eu-1", cfg.Bundle.ReplicaID)
	assert.Equal(t, 500, cfg.Cache.Size)
	assert.Equal(t, "sqlite3", cfg.Audit.Driver)
	assert.Equal(t, 30, cfg.Audit.RetentionDays)
	assert.Equal(t, "http", cfg.Bundle.Source)
	assert.Equal(t, "https://hub.coalition.example", cfg.Bundle.HubURL)
	assert.Equal(t, "spoke-eu-1", cfg.Bundle.HubClientID)
	assert.Equal(t, "https://idp.coalition.example/token", cfg.Bundle.HubTokenURL)
	assert.Equal(t, 5*time.Second, cfg.Bundle.FetchTimeout)
}

func TestLoadConfigInvalidValuesFallBack(t *testing.T) {
	t.Setenv("PDP_CACHE_SIZE", "not-a-number")
	t.Setenv("PDP_READ_TIMEOUT", "soon")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 10000, cfg.Cache.Size)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server: ServerConfig{Port: "8080", HealthPort: "9090"},
			Bundle: BundleConfig{
				StoreType:      "filesystem",
				FilesystemRoot: "/var/lib/pdp/bundles",
				GuardThreshold: 0.2,
			},
			Audit: AuditConfig{
				FilePath:      "/var/log/pdp/audit",
				Driver:        "postgres",
				RetentionDays: 365,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing port",
			mutate:  func(c *Config) { c.Server.Port = "" },
			wantErr: "server port",
		},
		{
			name:    "same ports",
			mutate:  func(c *Config) { c.Server.HealthPort = "8080" },
			wantErr: "must be different",
		},
		{
			name:    "unknown bundle store",
			mutate:  func(c *Config) { c.Bundle.StoreType = "ftp" },
			wantErr: "invalid bundle store type",
		},
		{
			name: "s3 store without bucket",
			mutate: func(c *Config) {
				c.Bundle.StoreType = "s3"
				c.Bundle.S3Bucket = ""
			},
			wantErr: "S3 bucket is required",
		},
		{
			name:    "http source without hub url",
			mutate:  func(c *Config) { c.Bundle.Source = "http" },
			wantErr: "hub URL is required",
		},
		{
			name: "http source with credentials but no token url",
			mutate: func(c *Config) {
				c.Bundle.Source = "http"
				c.Bundle.HubURL = "https://hub.coalition.example"
				c.Bundle.HubClientID = "spoke-eu-1"
			},
			wantErr: "hub token URL",
		},
		{
			name:    "unknown bundle source",
			mutate:  func(c *Config) { c.Bundle.Source = "carrier-pigeon" },
			wantErr: "invalid bundle source",
		},
		{
			name:    "guard threshold out of range",
			mutate:  func(c *Config) { c.Bundle.GuardThreshold = 1.5 },
			wantErr: "guard threshold",
		},
		{
			name:    "unknown audit driver",
			mutate:  func(c *Config) { c.Audit.Driver = "oracle" },
			wantErr: "invalid audit driver",
		},
		{
			name: "no audit sink",
			mutate: func(c *Config) {
				c.Audit.FilePath = ""
				c.Audit.DatabaseURL = ""
			},
			wantErr: "at least one audit sink",
		},
		{
			name:    "oidc without issuer",
			mutate:  func(c *Config) { c.Auth.OIDCEnabled = true },
			wantErr: "OIDC issuer",
		},
		{
			name: "otel without endpoint",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelServiceName = "pdp"
			},
			wantErr: "OpenTelemetry endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want observability.LogLevel
	}{
		{"debug", observability.DebugLevel},
		{"info", observability.InfoLevel},
		{"warn", observability.WarnLevel},
		{"warning", observability.WarnLevel},
		{"ERROR", observability.ErrorLevel},
		{"bogus", observability.InfoLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLogLevel(tt.in), tt.in)
	}
}
