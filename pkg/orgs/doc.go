// Package orgs implements the organization lifecycle service: creating
// organizations, managing memberships and invitations, and enforcing the
// organizational invariants the authorization core depends on.
//
// The central correctness property is last-owner protection: an
// organization must retain at least one membership with the owner role
// at all times. The service enforces it at both mutation points that
// could violate it (removing a membership and downgrading a role away
// from owner), and serializes those check-then-act sequences per
// organization so concurrent mutations cannot slip past the owner count.
//
// Slug uniqueness and one-membership-per-(user, org) are checked here
// first for friendly errors, with the stores' unique indexes as the
// data-layer backstop.
//
// Every operation returns a typed *Error carrying a closed ErrorCode so
// callers handle each named failure explicitly; genuinely unexpected
// store faults are wrapped into CodeUnexpected rather than propagated
// raw.
package orgs
