// Package membership is the directory of clinics and clinic memberships.
//
// # Lifecycle
//
// A membership moves through invited -> active -> deactivated and the last
// transition is terminal. Removal and self-leave both deactivate; expired
// invitations are deactivated by the scheduled cleanup. Rows are never
// physically deleted so the full history of who could act in a clinic is
// retained for audit.
//
// Only active memberships feed the tenant resolver's candidate set, and a
// deactivated membership denies every action in pkg/rbac regardless of the
// role it used to carry.
//
// A clinic always has at least one active owner: deactivating or demoting
// the last one fails with LastOwnerError.
package membership
