package api

import (
	"net/http"
	"time"

	"github.com/jmhill/demo-todo-sub000/pkg/authz"
	"github.com/jmhill/demo-todo-sub000/pkg/httputil"
	"github.com/jmhill/demo-todo-sub000/pkg/middleware"
	"github.com/jmhill/demo-todo-sub000/pkg/todos"
)

type createTodoRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	AssigneeID  string     `json:"assignee_id,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
}

func (s *Server) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	orgCtx := middleware.OrgContextFromContext(r.Context())

	var req createTodoRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	todo, err := s.opts.TodoService.Create(r.Context(), orgCtx.OrganizationID, orgCtx.Member.UserID, todos.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
		DueAt:       req.DueAt,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.TodosCreated.Inc()
	}
	_ = httputil.WriteCreated(w, todo)
}

func (s *Server) handleListTodos(w http.ResponseWriter, r *http.Request) {
	orgCtx := middleware.OrgContextFromContext(r.Context())

	completed, err := httputil.QueryBool(r, "completed")
	if err != nil {
		httputil.WriteBadRequest(w, "INVALID_REQUEST", err.Error())
		return
	}
	filter := todos.ListFilter{
		Completed:  completed,
		AssigneeID: httputil.QueryString(r, "assignee"),
		CreatedBy:  httputil.QueryString(r, "created_by"),
	}

	list, err := s.opts.TodoService.List(r.Context(), orgCtx.OrganizationID, filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, list)
}

func (s *Server) handleGetTodo(w http.ResponseWriter, r *http.Request) {
	orgCtx := middleware.OrgContextFromContext(r.Context())
	todoID, ok := httputil.PathVarOrError(w, r, "todo")
	if !ok {
		return
	}

	todo, err := s.opts.TodoService.Get(r.Context(), orgCtx.OrganizationID, todoID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, todo)
}

// loadTodoAuthorized loads the todo and evaluates a creator-or-permission
// policy against it: the creator may always act on their own todo, anyone
// else needs the given permission. Returns nil after writing the response
// when the request may not proceed.
func (s *Server) loadTodoAuthorized(w http.ResponseWriter, r *http.Request, perm authz.Permission) *todos.Todo {
	orgCtx := middleware.OrgContextFromContext(r.Context())
	todoID, ok := httputil.PathVarOrError(w, r, "todo")
	if !ok {
		return nil
	}

	todo, err := s.opts.TodoService.Get(r.Context(), orgCtx.OrganizationID, todoID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return nil
	}

	policy := authz.RequireCreatorOrPermission(perm)
	if denial := authz.Evaluate(policy, orgCtx, &authz.Resource{CreatedBy: todo.CreatedBy}); denial != nil {
		middleware.WriteAuthzError(w, r, denial)
		return nil
	}
	return todo
}

type updateTodoRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	AssigneeID  *string    `json:"assignee_id,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	ClearDueAt  bool       `json:"clear_due_at,omitempty"`
}

func (s *Server) handleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	todo := s.loadTodoAuthorized(w, r, authz.PermTodoUpdate)
	if todo == nil {
		return
	}

	var req updateTodoRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	orgCtx := middleware.OrgContextFromContext(r.Context())
	updated, err := s.opts.TodoService.Update(r.Context(), orgCtx.OrganizationID, todo.ID, todos.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
		DueAt:       req.DueAt,
		ClearDueAt:  req.ClearDueAt,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, updated)
}

func (s *Server) handleCompleteTodo(w http.ResponseWriter, r *http.Request) {
	todo := s.loadTodoAuthorized(w, r, authz.PermTodoComplete)
	if todo == nil {
		return
	}

	orgCtx := middleware.OrgContextFromContext(r.Context())
	updated, err := s.opts.TodoService.Complete(r.Context(), orgCtx.OrganizationID, todo.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, updated)
}

func (s *Server) handleReopenTodo(w http.ResponseWriter, r *http.Request) {
	todo := s.loadTodoAuthorized(w, r, authz.PermTodoComplete)
	if todo == nil {
		return
	}

	orgCtx := middleware.OrgContextFromContext(r.Context())
	updated, err := s.opts.TodoService.Reopen(r.Context(), orgCtx.OrganizationID, todo.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, updated)
}

func (s *Server) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	orgCtx := middleware.OrgContextFromContext(r.Context())
	todoID, ok := httputil.PathVarOrError(w, r, "todo")
	if !ok {
		return
	}

	if err := s.opts.TodoService.Delete(r.Context(), orgCtx.OrganizationID, todoID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
