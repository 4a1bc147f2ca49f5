// Package todos is the workload behind the authorization layer: todo
// items scoped to an organization. Every operation takes the
// organization id explicitly; a todo is never reachable through another
// organization.
package todos

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Todo is a single item. CreatedBy feeds creator-based authorization:
// members may mutate their own todos regardless of wider permissions.
type Todo struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	CreatedBy      string     `json:"created_by"`
	AssigneeID     string     `json:"assignee_id,omitempty"`
	DueAt          *time.Time `json:"due_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Completed reports whether the todo is done.
func (t *Todo) Completed() bool { return t.CompletedAt != nil }

// ErrNotFound is the store-level missing-row sentinel.
var ErrNotFound = errors.New("todo not found")

// ListFilter narrows List results. Nil Completed means both states.
type ListFilter struct {
	Completed  *bool
	AssigneeID string
	CreatedBy  string
}

// Store persists todos.
type Store interface {
	FindByID(ctx context.Context, organizationID, id string) (*Todo, error)
	FindByOrganizationID(ctx context.Context, organizationID string, filter ListFilter) ([]*Todo, error)
	Save(ctx context.Context, todo *Todo) error
	Update(ctx context.Context, todo *Todo) error
	Delete(ctx context.Context, organizationID, id string) error
}

// ErrorCode discriminates todo failures.
type ErrorCode string

const (
	CodeTodoNotFound ErrorCode = "TODO_NOT_FOUND"
	CodeInvalidTitle ErrorCode = "INVALID_TITLE"
	CodeUnexpected   ErrorCode = "UNEXPECTED_ERROR"
)

// Error is a typed todo failure.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`

	cause error
}

func (e *Error) Error() string { return string(e.Code) + ": " + e.Message }

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus maps the code to the HTTP boundary contract.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeTodoNotFound:
		return http.StatusNotFound
	case CodeInvalidTitle:
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
