package authz

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind discriminates authorization failures. Every denial carries a
// kind so callers can react without string matching.
type ErrorKind string

const (
	// KindMissingAuth means no authenticated principal was present.
	KindMissingAuth ErrorKind = "MISSING_AUTH"
	// KindInvalidRequest means the request lacked a target organization.
	KindInvalidRequest ErrorKind = "INVALID_REQUEST"
	// KindNotMember means the principal holds no membership in the target
	// organization. The response is identical whether the organization
	// exists or not; non-members must not learn which.
	KindNotMember ErrorKind = "NOT_MEMBER"
	// KindMissingPermission means the membership's role lacks a required
	// permission.
	KindMissingPermission ErrorKind = "MISSING_PERMISSION"
	// KindForbidden means a custom policy denied the request.
	KindForbidden ErrorKind = "FORBIDDEN"
	// KindUnexpected means an infrastructure fault, not a policy decision.
	KindUnexpected ErrorKind = "UNEXPECTED_ERROR"
)

// Error is a structured authorization failure.
type Error struct {
	Kind    ErrorKind `json:"code"`
	Message string    `json:"message"`

	// Required is set for MISSING_PERMISSION denials: the permission the
	// policy asked for (first in input order when several were requested).
	Required string `json:"required,omitempty"`

	// Available is the permission-set snapshot at denial time.
	Available []string `json:"available,omitempty"`
}

func (e *Error) Error() string {
	if e.Required != "" {
		return fmt.Sprintf("%s: %s (required %s)", e.Kind, e.Message, e.Required)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// HTTPStatus maps the error kind to the HTTP boundary contract.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindMissingAuth:
		return http.StatusUnauthorized
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindNotMember, KindMissingPermission, KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func missingPermission(required Permission, available PermissionSet) *Error {
	return &Error{
		Kind:      KindMissingPermission,
		Message:   "missing required permission",
		Required:  required.String(),
		Available: available.Tokens(),
	}
}

func missingAnyPermission(requested []Permission, available PermissionSet) *Error {
	tokens := make([]string, len(requested))
	for i, p := range requested {
		tokens[i] = p.String()
	}
	return &Error{
		Kind: KindMissingPermission,
		// Report the first requested permission for a stable, testable
		// error; input order, not closeness to being satisfied.
		Required:  requested[0].String(),
		Message:   "requires any of: " + strings.Join(tokens, ", "),
		Available: available.Tokens(),
	}
}
