package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/clinicore/clinicore/pkg/identity"
	"github.com/clinicore/clinicore/pkg/observability"
	"github.com/clinicore/clinicore/pkg/storage/postgres"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database postgres.ConnectionConfig

	// OIDC identity provider configuration
	OIDC identity.OIDCConfig

	// Observability configuration
	Observability ObservabilityConfig

	// Membership lifecycle settings
	Membership MembershipConfig

	// Audit trail settings
	Audit AuditConfig
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

// MembershipConfig holds invitation lifecycle settings
type MembershipConfig struct {
	// InvitationTTL is how long an invitation stays open before the
	// cleanup job expires it
	InvitationTTL time.Duration

	// CleanupSchedule is the cron expression for the expiration job
	CleanupSchedule string
}

// AuditConfig holds audit trail settings
type AuditConfig struct {
	// RetainFor is how long audit events are kept before the purge
	// job removes them. Zero disables purging.
	RetainFor time.Duration

	// PurgeSchedule is the cron expression for the purge job
	PurgeSchedule string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		OIDC:          loadOIDCConfig(),
		Observability: loadObservabilityConfig(),
		Membership:    loadMembershipConfig(),
		Audit:         loadAuditConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("CLINICORE_HOST", "0.0.0.0"),
		Port:            getEnv("CLINICORE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("CLINICORE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("CLINICORE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("CLINICORE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("CLINICORE_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("CLINICORE_HEALTH_PORT", "9090"),
	}
}

// loadDatabaseConfig loads PostgreSQL configuration from environment
func loadDatabaseConfig() postgres.ConnectionConfig {
	cfg := postgres.DefaultConnectionConfig()

	if pgURL := getEnv("CLINICORE_POSTGRES_URL", ""); pgURL != "" {
		cfg.PrimaryURL = pgURL
	}
	if replicaURLs := getEnv("CLINICORE_POSTGRES_REPLICA_URLS", ""); replicaURLs != "" {
		cfg.ReplicaURLs = postgres.ParseReplicaURLs(replicaURLs)
	}
	if maxConns := getEnvInt("CLINICORE_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns := getEnvInt("CLINICORE_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.MinConns = minConns
	}
	if timeout := getEnvDuration("CLINICORE_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.Timeout = timeout
	}
	if maxLifetime := getEnvDuration("CLINICORE_POSTGRES_MAX_LIFETIME", 0); maxLifetime > 0 {
		cfg.MaxLifetime = maxLifetime
	}
	if maxIdleTime := getEnvDuration("CLINICORE_POSTGRES_MAX_IDLE_TIME", 0); maxIdleTime > 0 {
		cfg.MaxIdleTime = maxIdleTime
	}

	return cfg
}

// loadOIDCConfig loads identity provider configuration from environment
func loadOIDCConfig() identity.OIDCConfig {
	scopes := []string{"openid", "profile", "email"}
	if raw := getEnv("CLINICORE_OIDC_SCOPES", ""); raw != "" {
		scopes = strings.Split(raw, ",")
		for i := range scopes {
			scopes[i] = strings.TrimSpace(scopes[i])
		}
	}

	return identity.OIDCConfig{
		IssuerURL:    getEnv("CLINICORE_OIDC_ISSUER_URL", ""),
		ClientID:     getEnv("CLINICORE_OIDC_CLIENT_ID", ""),
		ClientSecret: getEnv("CLINICORE_OIDC_CLIENT_SECRET", ""),
		RedirectURL:  getEnv("CLINICORE_OIDC_REDIRECT_URL", ""),
		Scopes:       scopes,
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("CLINICORE_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("CLINICORE_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("CLINICORE_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("CLINICORE_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("CLINICORE_OTEL_SERVICE_NAME", "clinicore-api"),
		OTelServiceVersion: getEnv("CLINICORE_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("CLINICORE_OTEL_INSECURE", true),
	}
}

// loadMembershipConfig loads invitation lifecycle settings from environment
func loadMembershipConfig() MembershipConfig {
	return MembershipConfig{
		InvitationTTL:   getEnvDuration("CLINICORE_INVITATION_TTL", 7*24*time.Hour),
		CleanupSchedule: getEnv("CLINICORE_INVITATION_CLEANUP_SCHEDULE", "@hourly"),
	}
}

// loadAuditConfig loads audit trail settings from environment
func loadAuditConfig() AuditConfig {
	return AuditConfig{
		RetainFor:     getEnvDuration("CLINICORE_AUDIT_RETAIN_FOR", 0),
		PurgeSchedule: getEnv("CLINICORE_AUDIT_PURGE_SCHEDULE", "@daily"),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.PrimaryURL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	// OIDC is optional in development; when configured all parts must
	// be present
	if c.OIDC.IssuerURL != "" {
		if err := c.OIDC.Validate(); err != nil {
			return fmt.Errorf("invalid OIDC configuration: %w", err)
		}
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	if c.Membership.InvitationTTL <= 0 {
		return fmt.Errorf("invitation TTL must be positive")
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

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
