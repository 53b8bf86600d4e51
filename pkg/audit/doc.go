// Package audit records security-relevant events: tenant resolution,
// authorization denials, membership lifecycle transitions, governed record
// writes and database integrity violations.
//
// # Overview
//
// Producers build events with the constructors in this package and hand them
// to a Logger. The DBLogger persists to the audit_events table and supports
// filtered searching; NopLogger discards everything for tests. Integrity
// violation events always carry SeverityAlert, because a tripped ownership
// constraint means a scoping bug got past the application layer.
//
// # Usage Example
//
//	logger, err := audit.NewDBLogger(db)
//	if err != nil {
//		return err
//	}
//
//	if err := logger.Log(ctx, audit.AccessDenied(tenantCtx, "manage_finance", "role member lacks permission")); err != nil {
//		slog.Warn("audit write failed", "error", err)
//	}
package audit
