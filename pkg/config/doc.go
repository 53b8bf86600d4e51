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
//	CLINICORE_HOST="0.0.0.0"
//	CLINICORE_PORT="8080"
//	CLINICORE_HEALTH_PORT="9090"
//	CLINICORE_READ_TIMEOUT="15s"
//	CLINICORE_WRITE_TIMEOUT="15s"
//
// Database settings:
//
//	CLINICORE_POSTGRES_URL="postgres://localhost/clinicore"
//	CLINICORE_POSTGRES_REPLICA_URLS="postgres://replica1/clinicore,postgres://replica2/clinicore"
//	CLINICORE_POSTGRES_MAX_CONNS="25"
//	CLINICORE_POSTGRES_MIN_CONNS="5"
//
// Identity settings:
//
//	CLINICORE_OIDC_ISSUER_URL="https://id.example.com"
//	CLINICORE_OIDC_CLIENT_ID="clinicore"
//	CLINICORE_OIDC_CLIENT_SECRET="..."
//	CLINICORE_OIDC_REDIRECT_URL="https://app.example.com/auth/callback"
//
// Membership and audit settings:
//
//	CLINICORE_INVITATION_TTL="168h"
//	CLINICORE_INVITATION_CLEANUP_SCHEDULE="@hourly"
//	CLINICORE_AUDIT_RETAIN_FOR="8760h"
//	CLINICORE_AUDIT_PURGE_SCHEDULE="@daily"
//
// Observability settings:
//
//	CLINICORE_LOG_LEVEL="info"  # debug, info, warn, error
//	CLINICORE_METRICS_ENABLED="true"
//	CLINICORE_OTEL_ENABLED="true"
//	CLINICORE_OTEL_ENDPOINT="otel-collector:4317"
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
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/storage/postgres: Uses database configuration
//   - pkg/identity: Uses OIDC configuration
//   - pkg/observability: Uses observability configuration
package config
