// Package authz implements the authorization core: the role/permission
// catalog, the policy engine, and the per-request organization context
// consumed by the permission-gate middleware.
//
// # Roles and permissions
//
// Every organization member holds exactly one of four ranked roles:
//
//	owner > admin > member > viewer
//
// Permissions are resource/action pairs rendered as "resource:action"
// tokens (for example "todos:create" or "org:members:invite"). They are
// never persisted; they are derived on every request from the member's
// role via the static catalog. The catalog is monotonic by rank (each
// higher role is at least as capable as the one below it), but this is a
// documented convention verified per role by tests, not an enforced
// algebraic law.
//
// # Policies
//
// A Policy is a plain function over an OrgContext and an optional
// Resource, returning nil to allow or a structured *Error to deny.
// Policies are pure: they read the context, never mutate it, and never
// perform I/O, which keeps them unit-testable without a server harness.
// Combinators (RequirePermission, RequireAnyPermission,
// RequireAllPermissions, RequireCreatorOrPermission, Custom) compose
// policies as first-class values.
//
// # OrgContext
//
// The membership resolver middleware produces one OrgContext per request
// and attaches it via pkg/contextkeys. It is immutable after
// construction and is the single place permission sets are computed;
// computing them elsewhere risks drift between what a user is shown and
// what they are permitted to do.
package authz
