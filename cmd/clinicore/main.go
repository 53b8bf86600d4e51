package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/clinicore/clinicore/pkg/api"
	"github.com/clinicore/clinicore/pkg/audit"
	"github.com/clinicore/clinicore/pkg/config"
	"github.com/clinicore/clinicore/pkg/httputil"
	"github.com/clinicore/clinicore/pkg/identity"
	"github.com/clinicore/clinicore/pkg/membership"
	"github.com/clinicore/clinicore/pkg/middleware"
	"github.com/clinicore/clinicore/pkg/observability"
	"github.com/clinicore/clinicore/pkg/rbac"
	"github.com/clinicore/clinicore/pkg/records"
	"github.com/clinicore/clinicore/pkg/scope"
	"github.com/clinicore/clinicore/pkg/storage/postgres"
	"github.com/clinicore/clinicore/pkg/tenancy"
	"github.com/clinicore/clinicore/pkg/workspace"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		os.Stderr.WriteString("invalid configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx := context.Background()

	// Database
	cm, err := postgres.NewConnectionManager(cfg.Database)
	if err != nil {
		return err
	}
	defer cm.Close()

	if err := postgres.RunMigrations(ctx, cm.Primary()); err != nil {
		return err
	}
	logger.Info("database migrations applied")

	// Tracing
	tracing, err := observability.InitTracing(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return err
	}

	// Metrics
	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	// Domain services
	members := membership.NewPostgresService(cm.Primary()).
		WithInvitationTTL(cfg.Membership.InvitationTTL)
	workspaces := workspace.NewPostgresService(cm.Primary())
	prefs := tenancy.NewPostgresPreferences(cm.Primary())
	resolver := tenancy.NewResolver(members, workspaces, prefs)

	overrides := rbac.NewStore(cm.Primary())
	evaluator := rbac.NewEvaluator(members, workspaces, overrides)

	registryScope := scope.NewRegistry()
	if err := records.RegisterAll(registryScope); err != nil {
		return err
	}
	scoper := scope.NewScoper(cm.Primary(), registryScope)

	auditLogger, err := audit.NewDBLogger(cm.Primary())
	if err != nil {
		return err
	}

	// Identity
	verifier, err := buildVerifier(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// HTTP API
	core := api.NewCore(resolver, evaluator, auditLogger, metrics, logger)
	router := mux.NewRouter()
	api.NewTenantHandlers(core).RegisterRoutes(router)
	api.NewClinicHandlers(core, members, overrides).RegisterRoutes(router)
	api.NewWorkspaceHandlers(core, workspaces).RegisterRoutes(router)
	api.NewRecordHandlers(core, scoper, registryScope).RegisterRoutes(router)
	api.NewAuditHandlers(core, auditLogger).RegisterRoutes(router)

	auth := middleware.NewAuthentication(verifier, false)
	rateLimit := middleware.NewRateLimit()

	chain := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.RecoveryMiddleware(logger),
	}
	if metrics != nil {
		chain = append(chain, observability.HTTPMetricsMiddleware(metrics))
	}
	chain = append(chain,
		rateLimit.Handler,
		auth.Handler,
		middleware.TenantHint,
	)

	handler := httputil.Chain(chain...)(router)
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "clinicore")
	}

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes and scrapes
	healthMux := http.NewServeMux()
	checker := observability.NewHealthChecker(cm.Primary())
	observability.RegisterHealthRoutes(healthMux, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	// Background jobs
	jobs := cron.New()
	if _, err := jobs.AddFunc(cfg.Membership.CleanupSchedule, func() {
		expired, err := members.CleanupExpiredInvitations(context.Background())
		if err != nil {
			logger.WithError(err).Error("invitation cleanup failed")
			return
		}
		if expired > 0 {
			logger.WithField("expired", expired).Info("expired stale invitations")
			if metrics != nil {
				metrics.ExpiredInvitationsTotal.Add(float64(expired))
			}
		}
	}); err != nil {
		return err
	}
	if cfg.Audit.RetainFor > 0 {
		if _, err := jobs.AddFunc(cfg.Audit.PurgeSchedule, func() {
			purged, err := auditLogger.Purge(context.Background(), cfg.Audit.RetainFor)
			if err != nil {
				logger.WithError(err).Error("audit purge failed")
				return
			}
			if purged > 0 {
				logger.WithField("purged", purged).Info("purged old audit events")
			}
		}); err != nil {
			return err
		}
	}
	if metrics != nil {
		if _, err := jobs.AddFunc("@every 15s", func() {
			metrics.ObserveDBStats(cm.Primary().Stats())
		}); err != nil {
			return err
		}
	}
	jobs.Start()

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		stopCtx := jobs.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
		return nil
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return tracing.Shutdown(ctx)
	})

	var g errgroup.Group
	g.Go(func() error {
		logger.WithField("addr", server.Addr).Info("starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("starting health server")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(shutdown.WaitForShutdown)

	return g.Wait()
}

// buildVerifier wires OIDC when configured and falls back to a static dev
// verifier otherwise. The dev token only exists when CLINICORE_DEV_TOKEN is
// set, so an unconfigured deployment rejects every credential.
func buildVerifier(ctx context.Context, cfg *config.Config, logger *observability.Logger) (identity.Verifier, error) {
	if cfg.OIDC.IssuerURL != "" {
		verifyCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		return identity.NewOIDCVerifier(verifyCtx, cfg.OIDC)
	}

	logger.Warn("OIDC is not configured, using static token verification")
	verifier := identity.NewStaticVerifier(nil)
	if token := os.Getenv("CLINICORE_DEV_TOKEN"); token != "" {
		verifier.Add(token, identity.Principal{ID: "dev", Name: "Development User"})
	}
	return verifier, nil
}
