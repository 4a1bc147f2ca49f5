package authz

// Policy decides whether a request may proceed. A nil return allows; a
// non-nil *Error denies with a structured reason. Policies only read
// their inputs; they never mutate the context or perform I/O.
type Policy func(ctx *OrgContext, res *Resource) *Error

// Evaluate runs the policy, treating a missing OrgContext as an
// authentication failure rather than letting a nil pointer reach the
// policy body.
func Evaluate(p Policy, ctx *OrgContext, res *Resource) *Error {
	if ctx == nil {
		return &Error{Kind: KindMissingAuth, Message: "no organization context"}
	}
	return p(ctx, res)
}

// RequirePermission allows iff the context holds p.
func RequirePermission(p Permission) Policy {
	return func(ctx *OrgContext, _ *Resource) *Error {
		if ctx.Permissions.Has(p) {
			return nil
		}
		return missingPermission(p, ctx.Permissions)
	}
}

// RequireAnyPermission allows iff the context holds at least one of the
// given permissions (OR). On denial the error reports the first
// requested permission.
func RequireAnyPermission(perms ...Permission) Policy {
	return func(ctx *OrgContext, _ *Resource) *Error {
		for _, p := range perms {
			if ctx.Permissions.Has(p) {
				return nil
			}
		}
		if len(perms) == 0 {
			return &Error{Kind: KindForbidden, Message: "no permissions requested"}
		}
		return missingAnyPermission(perms, ctx.Permissions)
	}
}

// RequireAllPermissions allows iff the context holds every given
// permission (AND). Denial reports the first missing permission in input
// order, short-circuiting rather than collecting all misses.
func RequireAllPermissions(perms ...Permission) Policy {
	return func(ctx *OrgContext, _ *Resource) *Error {
		for _, p := range perms {
			if !ctx.Permissions.Has(p) {
				return missingPermission(p, ctx.Permissions)
			}
		}
		return nil
	}
}

// RequireCreatorOrPermission allows when the resource was created by the
// requesting member, and otherwise falls back to RequirePermission(p).
// A nil resource (or an empty CreatedBy) fails the creator check closed:
// absence of resource context is never itself a free pass, the
// permission check still runs.
func RequireCreatorOrPermission(p Permission) Policy {
	fallback := RequirePermission(p)
	return func(ctx *OrgContext, res *Resource) *Error {
		if res != nil && res.CreatedBy != "" && res.CreatedBy == ctx.Member.UserID {
			return nil
		}
		return fallback(ctx, res)
	}
}

// Custom wraps an ad hoc predicate that does not reduce to permission
// checks. The predicate must be pure.
func Custom(predicate func(ctx *OrgContext, res *Resource) bool, message string) Policy {
	return func(ctx *OrgContext, res *Resource) *Error {
		if predicate(ctx, res) {
			return nil
		}
		return &Error{Kind: KindForbidden, Message: message}
	}
}
