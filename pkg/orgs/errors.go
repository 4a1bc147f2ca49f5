package orgs

import (
	"fmt"
	"net/http"
)

// ErrorCode discriminates lifecycle failures.
type ErrorCode string

const (
	CodeSlugAlreadyExists     ErrorCode = "SLUG_ALREADY_EXISTS"
	CodeOrganizationNotFound  ErrorCode = "ORGANIZATION_NOT_FOUND"
	CodeMembershipNotFound    ErrorCode = "MEMBERSHIP_NOT_FOUND"
	CodeUserAlreadyMember     ErrorCode = "USER_ALREADY_MEMBER"
	CodeCannotRemoveLastOwner ErrorCode = "CANNOT_REMOVE_LAST_OWNER"
	CodeCannotChangeLastOwner ErrorCode = "CANNOT_CHANGE_LAST_OWNER"
	CodeInvalidRole           ErrorCode = "INVALID_ROLE"
	CodeInvalidSlug           ErrorCode = "INVALID_SLUG"
	CodeInvalidName           ErrorCode = "INVALID_NAME"
	CodeInvalidEmail          ErrorCode = "INVALID_EMAIL"
	CodeInvitationNotFound    ErrorCode = "INVITATION_NOT_FOUND"
	CodeInvitationExpired     ErrorCode = "INVITATION_EXPIRED"
	CodeInvitationAccepted    ErrorCode = "INVITATION_ALREADY_ACCEPTED"
	CodeUnexpected            ErrorCode = "UNEXPECTED_ERROR"
)

// Error is a typed lifecycle failure. Value carries the conflicting
// value for conflict codes (the taken slug, the duplicate user).
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Value   string    `json:"value,omitempty"`

	cause error
}

func (e *Error) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped store fault for CodeUnexpected errors.
func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus maps the code to the HTTP boundary contract.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeSlugAlreadyExists, CodeUserAlreadyMember, CodeInvitationAccepted:
		return http.StatusConflict
	case CodeOrganizationNotFound, CodeMembershipNotFound, CodeInvitationNotFound:
		return http.StatusNotFound
	case CodeCannotRemoveLastOwner, CodeCannotChangeLastOwner,
		CodeInvalidRole, CodeInvalidSlug, CodeInvalidName, CodeInvalidEmail, CodeInvitationExpired:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func newError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func conflictError(code ErrorCode, message, value string) *Error {
	return &Error{Code: code, Message: message, Value: value}
}

// unexpected wraps an infrastructure fault. These are logged at a higher
// severity than routine denials and never conflated with not-found.
func unexpected(op string, err error) *Error {
	return &Error{
		Code:    CodeUnexpected,
		Message: op + " failed",
		cause:   err,
	}
}

// AsError returns err as *Error when it is one, else nil.
func AsError(err error) *Error {
	if e, ok := err.(*Error); ok {
		return e
	}
	return nil
}
