package todos

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jmhill/demo-todo-sub000/pkg/audit"
)

const maxTitleLength = 500

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Service implements todo CRUD within one organization at a time.
// Authorization happens before the service is reached; the service only
// enforces organization scoping and field validation.
type Service struct {
	store Store
	clock Clock
	ids   func() string
}

func NewService(store Store, clock Clock, idgen func() string) *Service {
	if clock == nil {
		clock = systemClock{}
	}
	if idgen == nil {
		idgen = uuid.NewString
	}
	return &Service{store: store, clock: clock, ids: idgen}
}

// CreateInput carries the caller-settable fields of a new todo.
type CreateInput struct {
	Title       string
	Description string
	AssigneeID  string
	DueAt       *time.Time
}

// Create adds a todo owned by creatorUserID.
func (s *Service) Create(ctx context.Context, organizationID, creatorUserID string, in CreateInput) (*Todo, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || len(title) > maxTitleLength {
		return nil, newError(CodeInvalidTitle, "title must be between 1 and 500 characters")
	}

	now := s.clock.Now()
	todo := &Todo{
		ID:             s.ids(),
		OrganizationID: organizationID,
		Title:          title,
		Description:    in.Description,
		CreatedBy:      creatorUserID,
		AssigneeID:     in.AssigneeID,
		DueAt:          in.DueAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Save(ctx, todo); err != nil {
		return nil, unexpected("create todo", err)
	}

	s.auditMutation(ctx, audit.EventTodoCreate, todo)
	return todo, nil
}

// Get loads a todo within the organization.
func (s *Service) Get(ctx context.Context, organizationID, id string) (*Todo, error) {
	todo, err := s.store.FindByID(ctx, organizationID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError(CodeTodoNotFound, "todo does not exist")
		}
		return nil, unexpected("load todo", err)
	}
	return todo, nil
}

// List returns the organization's todos matching the filter.
func (s *Service) List(ctx context.Context, organizationID string, filter ListFilter) ([]*Todo, error) {
	out, err := s.store.FindByOrganizationID(ctx, organizationID, filter)
	if err != nil {
		return nil, unexpected("list todos", err)
	}
	return out, nil
}

// UpdateInput carries the mutable fields. Nil pointers leave the field
// unchanged.
type UpdateInput struct {
	Title       *string
	Description *string
	AssigneeID  *string
	DueAt       *time.Time
	ClearDueAt  bool
}

// Update edits a todo's fields.
func (s *Service) Update(ctx context.Context, organizationID, id string, in UpdateInput) (*Todo, error) {
	todo, err := s.Get(ctx, organizationID, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" || len(title) > maxTitleLength {
			return nil, newError(CodeInvalidTitle, "title must be between 1 and 500 characters")
		}
		todo.Title = title
	}
	if in.Description != nil {
		todo.Description = *in.Description
	}
	if in.AssigneeID != nil {
		todo.AssigneeID = *in.AssigneeID
	}
	if in.ClearDueAt {
		todo.DueAt = nil
	} else if in.DueAt != nil {
		todo.DueAt = in.DueAt
	}
	todo.UpdatedAt = s.clock.Now()

	if err := s.store.Update(ctx, todo); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError(CodeTodoNotFound, "todo does not exist")
		}
		return nil, unexpected("update todo", err)
	}

	s.auditMutation(ctx, audit.EventTodoUpdate, todo)
	return todo, nil
}

// Complete marks a todo done. Completing a completed todo is a no-op.
func (s *Service) Complete(ctx context.Context, organizationID, id string) (*Todo, error) {
	return s.setCompleted(ctx, organizationID, id, true)
}

// Reopen clears the completion mark.
func (s *Service) Reopen(ctx context.Context, organizationID, id string) (*Todo, error) {
	return s.setCompleted(ctx, organizationID, id, false)
}

func (s *Service) setCompleted(ctx context.Context, organizationID, id string, done bool) (*Todo, error) {
	todo, err := s.Get(ctx, organizationID, id)
	if err != nil {
		return nil, err
	}

	if todo.Completed() == done {
		return todo, nil
	}

	now := s.clock.Now()
	if done {
		todo.CompletedAt = &now
	} else {
		todo.CompletedAt = nil
	}
	todo.UpdatedAt = now

	if err := s.store.Update(ctx, todo); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError(CodeTodoNotFound, "todo does not exist")
		}
		return nil, unexpected("update todo", err)
	}

	if done {
		s.auditMutation(ctx, audit.EventTodoComplete, todo)
	} else {
		s.auditMutation(ctx, audit.EventTodoUpdate, todo)
	}
	return todo, nil
}

// Delete removes a todo.
func (s *Service) Delete(ctx context.Context, organizationID, id string) error {
	todo, err := s.Get(ctx, organizationID, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, organizationID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return newError(CodeTodoNotFound, "todo does not exist")
		}
		return unexpected("delete todo", err)
	}

	s.auditMutation(ctx, audit.EventTodoDelete, todo)
	return nil
}

func (s *Service) auditMutation(ctx context.Context, eventType audit.EventType, todo *Todo) {
	audit.FromContext(ctx).Log(ctx, &audit.Event{
		EventType:      eventType,
		Status:         audit.StatusSuccess,
		OrganizationID: todo.OrganizationID,
		ResourceType:   audit.ResourceTodo,
		ResourceID:     todo.ID,
	})
}
