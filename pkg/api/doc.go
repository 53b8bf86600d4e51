// Package api provides the HTTP layer of the clinicore service.
//
// # Overview
//
// Handlers are grouped by concern, each with its own constructor and a
// RegisterRoutes method that mounts the group on a gorilla/mux router:
//
//   - TenantHandlers: active tenant context and candidate listing
//   - ClinicHandlers: clinic creation, membership lifecycle, overrides
//   - WorkspaceHandlers: personal workspace provisioning
//   - RecordHandlers: tenant-scoped CRUD on governed collections
//   - AuditHandlers: tenant-confined audit trail queries
//
// Every group shares a Core, which resolves the caller's tenant from the
// authenticated principal plus the optional X-Tenant-Type and X-Tenant-ID
// header hint, evaluates permissions, and writes audit events and metrics
// for denials and integrity trips.
//
// # Usage Example
//
//	core := api.NewCore(resolver, evaluator, auditLogger, metrics, logger)
//
//	router := mux.NewRouter()
//	api.NewTenantHandlers(core).RegisterRoutes(router)
//	api.NewClinicHandlers(core, members, overrides).RegisterRoutes(router)
//	api.NewWorkspaceHandlers(core, workspaces).RegisterRoutes(router)
//	api.NewRecordHandlers(core, scoper, registry).RegisterRoutes(router)
//	api.NewAuditHandlers(core, auditLogger).RegisterRoutes(router)
//
// # Related Packages
//
//   - pkg/tenancy: tenant context resolution
//   - pkg/rbac: permission evaluation
//   - pkg/scope: tenant-scoped record access
//   - pkg/httputil: request parsing and response writing
//   - pkg/middleware: authentication and tenant hint extraction
package api
