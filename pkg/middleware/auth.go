// Package middleware carries the request-path authorization chain:
// token authentication, organization membership resolution, permission
// gating, and rate limiting.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/jmhill/demo-todo-sub000/pkg/auth"
	"github.com/jmhill/demo-todo-sub000/pkg/contextkeys"
	"github.com/jmhill/demo-todo-sub000/pkg/httputil"
)

// TokenVerifier authenticates a bearer token string.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Principal, error)
}

// Authenticate validates the Authorization header and attaches the
// principal to the request context. Requests without a valid token are
// rejected with 401 before any handler runs.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				httputil.WriteUnauthorized(w, "MISSING_AUTH", "authentication required")
				return
			}

			principal, err := verifier.Verify(r.Context(), token)
			if err != nil {
				if typed := auth.AsError(err); typed != nil && typed.HTTPStatus() == http.StatusUnauthorized {
					httputil.WriteUnauthorized(w, string(typed.Code), typed.Message)
					return
				}
				httputil.WriteInternalError(w)
				return
			}

			ctx := contextkeys.WithPrincipal(r.Context(), principal)
			ctx = contextkeys.WithUserID(ctx, principal.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext returns the authenticated principal, or nil.
func PrincipalFromContext(ctx context.Context) *auth.Principal {
	p, _ := ctx.Value(contextkeys.PrincipalKey).(*auth.Principal)
	return p
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
