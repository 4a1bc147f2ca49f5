// Package api exposes the HTTP surface: authentication, organization
// lifecycle, membership management, invitations, and todos, all under
// /api/v1.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jmhill/demo-todo-sub000/pkg/audit"
	"github.com/jmhill/demo-todo-sub000/pkg/auth"
	"github.com/jmhill/demo-todo-sub000/pkg/authz"
	"github.com/jmhill/demo-todo-sub000/pkg/httputil"
	"github.com/jmhill/demo-todo-sub000/pkg/middleware"
	"github.com/jmhill/demo-todo-sub000/pkg/observability"
	"github.com/jmhill/demo-todo-sub000/pkg/orgs"
	"github.com/jmhill/demo-todo-sub000/pkg/todos"
)

// Options carries the server's dependencies. Logger, AuditLogger, and
// Metrics may be nil; RateLimiter nil disables rate limiting.
type Options struct {
	Logger         *slog.Logger
	AuditLogger    audit.Logger
	Metrics        *observability.Metrics
	AuthService    *auth.Service
	Tokens         *auth.TokenManager
	OrgService     *orgs.Service
	InviteService  *orgs.InvitationService
	TodoService    *todos.Service
	RateLimiter    middleware.RateLimiter
	AllowedOrigins []string
}

// Server is the API server.
type Server struct {
	router *mux.Router
	logger *slog.Logger
	opts   Options
}

// NewServer wires all routes and middleware.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.AuditLogger == nil {
		opts.AuditLogger = audit.NopLogger{}
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		router: mux.NewRouter(),
		logger: opts.Logger,
		opts:   opts,
	}
	s.setupRoutes()
	return s
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	chain := httputil.Chain(
		httputil.RequestIDMiddleware,
		audit.Middleware(s.opts.AuditLogger),
		httputil.LoggingMiddleware(s.logger),
		httputil.RecoveryMiddleware(s.logger),
		httputil.SecurityHeadersMiddleware,
		httputil.CORSMiddleware(s.opts.AllowedOrigins),
	)
	return chain(s.router)
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusNotFound, "NOT_FOUND", "no such endpoint")
	})

	// Unauthenticated surface.
	api.HandleFunc("/auth/signup", s.handleSignup).Methods("POST")
	api.HandleFunc("/auth/login", s.handleLogin).Methods("POST")

	// Everything else requires a valid token.
	authed := api.NewRoute().Subrouter()
	authed.Use(mux.MiddlewareFunc(middleware.Authenticate(s.opts.Tokens)))
	if s.opts.RateLimiter != nil {
		authed.Use(mux.MiddlewareFunc(middleware.RateLimit(s.opts.RateLimiter, s.logger)))
	}

	authed.HandleFunc("/auth/logout", s.handleLogout).Methods("POST")
	authed.HandleFunc("/me", s.handleMe).Methods("GET")

	authed.HandleFunc("/orgs", s.handleCreateOrg).Methods("POST")
	authed.HandleFunc("/orgs", s.handleListUserOrgs).Methods("GET")
	authed.HandleFunc("/invitations/accept", s.handleAcceptInvitation).Methods("POST")

	// Organization-scoped surface: membership is resolved once, then
	// each route declares the permissions that open it.
	org := authed.PathPrefix("/orgs/{org}").Subrouter()
	org.Use(mux.MiddlewareFunc(middleware.ResolveMembership(s.opts.OrgService)))

	s.handle(org, "", "GET", s.handleGetOrg, authz.PermOrgRead)
	s.handle(org, "", "PATCH", s.handleRenameOrg, authz.PermOrgUpdate)

	s.handle(org, "/members", "GET", s.handleListMembers, authz.PermMembersRead)
	s.handle(org, "/members", "POST", s.handleAddMember, authz.PermMembersInvite)
	s.handle(org, "/members/{membership}", "DELETE", s.handleRemoveMember, authz.PermMembersRemove)
	s.handle(org, "/members/{membership}/role", "PUT", s.handleUpdateMemberRole, authz.PermMembersUpdateRole)

	s.handle(org, "/invitations", "GET", s.handleListInvitations, authz.PermMembersRead)
	s.handle(org, "/invitations", "POST", s.handleCreateInvitation, authz.PermMembersInvite)
	s.handle(org, "/invitations/{invitation}", "DELETE", s.handleRevokeInvitation, authz.PermMembersInvite)

	s.handle(org, "/todos", "POST", s.handleCreateTodo, authz.PermTodoCreate)
	s.handle(org, "/todos", "GET", s.handleListTodos, authz.PermTodoRead)
	s.handle(org, "/todos/{todo}", "GET", s.handleGetTodo, authz.PermTodoRead)

	// Updating and completing a single todo are creator-or-permission
	// decisions; the handler evaluates the policy against the loaded
	// todo. Deletion has no creator override and is gated on the
	// permission alone.
	org.Handle("/todos/{todo}", http.HandlerFunc(s.handleUpdateTodo)).Methods("PATCH")
	org.Handle("/todos/{todo}/complete", http.HandlerFunc(s.handleCompleteTodo)).Methods("POST")
	org.Handle("/todos/{todo}/reopen", http.HandlerFunc(s.handleReopenTodo)).Methods("POST")
	s.handle(org, "/todos/{todo}", "DELETE", s.handleDeleteTodo, authz.PermTodoDelete)
}

// handle registers a route gated on any of the listed permissions.
func (s *Server) handle(r *mux.Router, path, method string, h http.HandlerFunc, perms ...authz.Permission) {
	var handler http.Handler = h
	if len(perms) > 0 {
		handler = middleware.RequireOrgPermission(perms...)(handler)
	}
	if s.opts.Metrics != nil {
		route := "/api/v1/orgs/{org}" + path
		handler = s.opts.Metrics.Middleware(route)(handler)
	}
	r.Handle(path, handler).Methods(method)
}
