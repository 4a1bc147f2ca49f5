// Package auth handles user identity: account registration, password
// verification, and the issuing and revocation of access tokens. It
// knows nothing about organizations or permissions; those belong to the
// authorization layer.
package auth

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// User is an account. PasswordHash is a bcrypt digest and never leaves
// the package.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Principal is the authenticated caller attached to a request context
// by the authentication middleware.
type Principal struct {
	UserID  string
	Email   string
	TokenID string
}

// Store-level sentinels.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

// UserStore persists accounts. Implementations enforce email uniqueness
// and report violations as ErrEmailTaken.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Save(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
}

// ErrorCode discriminates authentication failures.
type ErrorCode string

const (
	CodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	CodeEmailTaken         ErrorCode = "EMAIL_ALREADY_REGISTERED"
	CodeWeakPassword       ErrorCode = "WEAK_PASSWORD"
	CodeInvalidEmail       ErrorCode = "INVALID_EMAIL"
	CodeTokenInvalid       ErrorCode = "TOKEN_INVALID"
	CodeTokenRevoked       ErrorCode = "TOKEN_REVOKED"
	CodeUnexpected         ErrorCode = "UNEXPECTED_ERROR"
)

// Error is a typed authentication failure.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`

	cause error
}

func (e *Error) Error() string { return string(e.Code) + ": " + e.Message }

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus maps the code to the HTTP boundary contract. Credential
// and token failures are always 401 so the response does not reveal
// whether the account exists.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeInvalidCredentials, CodeTokenInvalid, CodeTokenRevoked:
		return http.StatusUnauthorized
	case CodeEmailTaken:
		return http.StatusConflict
	case CodeWeakPassword, CodeInvalidEmail:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func newError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func unexpected(op string, err error) *Error {
	return &Error{Code: CodeUnexpected, Message: op + " failed", cause: err}
}

// AsError returns err as *Error when it is one, else nil.
func AsError(err error) *Error {
	if e, ok := err.(*Error); ok {
		return e
	}
	return nil
}
