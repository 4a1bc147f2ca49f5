package api

import (
	"net/http"
	"time"

	"github.com/jmhill/demo-todo-sub000/pkg/auth"
	"github.com/jmhill/demo-todo-sub000/pkg/httputil"
	"github.com/jmhill/demo-todo-sub000/pkg/middleware"
)

type signupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := s.opts.AuthService.Signup(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	_ = httputil.WriteCreated(w, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      *auth.User `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := s.opts.AuthService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, loginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      result.User,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())

	// The token's own expiry bounds how long the revocation must be
	// remembered; without a parsed expiry fall back to the maximum TTL.
	if err := s.opts.AuthService.Logout(r.Context(), principal, time.Now().Add(auth.DefaultTokenTTL)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())

	user, err := s.opts.AuthService.GetUser(r.Context(), principal.UserID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, user)
}
