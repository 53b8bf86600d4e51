// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// # Overview
//
// This package centralizes observability infrastructure including JSON logging, metrics
// collection, health checks, and distributed tracing integration. Log entries and
// metrics carry tenant dimensions so access decisions and record operations can be
// traced back to the clinic or workspace that triggered them.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.LevelInfo, os.Stdout)
//	logger.Info("Server started")
//
// Tenant-aware logging:
//
//	logger.WithTenant(tc).Warn("access denied")
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	metrics := observability.InitMetrics()
//	metrics.HTTPRequestsTotal.WithLabelValues("GET", "/records/patients", "200").Inc()
//	metrics.AccessDecisionsTotal.WithLabelValues("view_patients", "allow").Inc()
//
// # Health Checks
//
// Configure health checker:
//
//	checker := observability.NewHealthChecker(db)
//	status := checker.Check(ctx)
//	fmt.Printf("Healthy: %v\n", status.Healthy)
//
// # OpenTelemetry
//
// Initialize tracing:
//
//	provider, err := observability.InitTracing(&observability.OTelConfig{
//		ServiceName:    "clinicore-api",
//		ServiceVersion: "v1.0.0",
//		OTLPEndpoint:   "otel-collector:4317",
//	})
//	defer provider.Shutdown(ctx)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/middleware: Request authentication and rate limiting
package observability
