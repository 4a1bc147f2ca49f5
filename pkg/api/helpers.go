package api

import (
	"log/slog"
	"net/http"

	"github.com/jmhill/demo-todo-sub000/pkg/auth"
	"github.com/jmhill/demo-todo-sub000/pkg/httputil"
	"github.com/jmhill/demo-todo-sub000/pkg/orgs"
	"github.com/jmhill/demo-todo-sub000/pkg/todos"
)

// writeServiceError translates a typed domain error into the response
// envelope. Untyped errors are infrastructure faults: they are logged
// with their cause and rendered as an opaque 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var code, message string
	var status int
	var details map[string]interface{}

	switch {
	case orgs.AsError(err) != nil:
		typed := orgs.AsError(err)
		code, message, status = string(typed.Code), typed.Message, typed.HTTPStatus()
		// Conflicts carry the conflicting value (the taken slug, the
		// duplicate user) so the caller can react to it.
		if typed.Value != "" {
			details = map[string]interface{}{"value": typed.Value}
		}
	case auth.AsError(err) != nil:
		typed := auth.AsError(err)
		code, message, status = string(typed.Code), typed.Message, typed.HTTPStatus()
	case todos.AsError(err) != nil:
		typed := todos.AsError(err)
		code, message, status = string(typed.Code), typed.Message, typed.HTTPStatus()
	default:
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		s.logger.LogAttrs(r.Context(), slog.LevelError, "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteErrorDetails(w, status, code, message, details)
}
