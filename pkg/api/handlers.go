package api

import (
	"context"
	"net/http"

	"github.com/clinicore/clinicore/pkg/audit"
	"github.com/clinicore/clinicore/pkg/httputil"
	"github.com/clinicore/clinicore/pkg/middleware"
	"github.com/clinicore/clinicore/pkg/observability"
	"github.com/clinicore/clinicore/pkg/rbac"
	"github.com/clinicore/clinicore/pkg/tenancy"
)

// TenantResolver computes the active tenant for a request. Satisfied by
// tenancy.Resolver.
type TenantResolver interface {
	Resolve(ctx context.Context, principalID string, hint *tenancy.TenantRef) (*tenancy.TenantContext, error)
	Candidates(ctx context.Context, principalID string) (tenancy.Candidates, error)
}

// AccessEvaluator decides per-action permissions inside a resolved tenant.
// Satisfied by rbac.Evaluator.
type AccessEvaluator interface {
	Evaluate(ctx context.Context, tctx *tenancy.TenantContext, action rbac.Action) (*rbac.Decision, error)
}

// Core bundles the cross-cutting dependencies every handler group needs:
// tenant resolution, permission evaluation, audit logging, and metrics.
type Core struct {
	resolver  TenantResolver
	evaluator AccessEvaluator
	audit     audit.Logger
	metrics   *observability.Metrics
	logger    *observability.Logger
}

// NewCore creates the shared handler core. metrics may be nil when metrics
// are disabled; audit and logger must not be nil (use audit.NopLogger and a
// default logger instead).
func NewCore(resolver TenantResolver, evaluator AccessEvaluator, auditLogger audit.Logger, metrics *observability.Metrics, logger *observability.Logger) *Core {
	return &Core{
		resolver:  resolver,
		evaluator: evaluator,
		audit:     auditLogger,
		metrics:   metrics,
		logger:    logger,
	}
}

// resolveTenant determines the active tenant for the request from the
// authenticated principal and the optional header hint. On failure it writes
// the error response and returns false.
func (c *Core) resolveTenant(w http.ResponseWriter, r *http.Request) (tenancy.TenantContext, bool) {
	principal := middleware.GetPrincipal(r)
	if principal == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return tenancy.TenantContext{}, false
	}

	hint := middleware.GetTenantHint(r)

	tc, err := c.resolver.Resolve(r.Context(), principal.ID, hint)
	if err != nil {
		c.countResolution(hint, "rejected")
		if hint != nil {
			c.logEvent(r.Context(), audit.TenantSelectionRejected(principal.ID, *hint))
		}
		httputil.WriteDomainError(w, err)
		return tenancy.TenantContext{}, false
	}

	c.countResolution(hint, "success")
	return *tc, true
}

// authorize evaluates action inside tc. Denials are written as 403, audited,
// and counted; evaluation failures are written as domain errors.
func (c *Core) authorize(w http.ResponseWriter, r *http.Request, tc tenancy.TenantContext, action rbac.Action) bool {
	decision, err := c.evaluator.Evaluate(r.Context(), &tc, action)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return false
	}

	effect := "allow"
	if !decision.Allowed {
		effect = "deny"
	}
	if c.metrics != nil {
		c.metrics.AccessDecisionsTotal.WithLabelValues(string(action), effect).Inc()
	}

	if !decision.Allowed {
		c.logEvent(r.Context(), audit.AccessDenied(tc, string(action), decision.Reason))
		httputil.WriteForbidden(w, "access denied")
		return false
	}

	return true
}

// logEvent writes an audit event without failing the request. A broken audit
// sink is logged and the caller proceeds.
func (c *Core) logEvent(ctx context.Context, event *audit.Event) {
	if err := c.audit.Log(ctx, event); err != nil {
		c.logger.WithError(err).WithField("event_type", string(event.EventType)).Error("failed to write audit event")
	}
}

func (c *Core) countResolution(hint *tenancy.TenantRef, outcome string) {
	if c.metrics == nil {
		return
	}
	tenantType := "none"
	if hint != nil {
		tenantType = string(hint.Type)
	}
	c.metrics.TenantResolutionsTotal.WithLabelValues(tenantType, outcome).Inc()
	if outcome == "rejected" && hint != nil {
		c.metrics.TenantSelectionRejected.Inc()
	}
}

// requirePrincipal returns the authenticated principal or writes a 401.
func requirePrincipal(w http.ResponseWriter, r *http.Request) (string, bool) {
	principal := middleware.GetPrincipal(r)
	if principal == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return "", false
	}
	return principal.ID, true
}
