package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmhill/demo-todo-sub000/pkg/auth"
	"github.com/jmhill/demo-todo-sub000/pkg/httputil"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTokenManager(t *testing.T) *auth.TokenManager {
	t.Helper()
	m, err := auth.NewTokenManager(testSecret, "todod-test", time.Hour, auth.NewMemoryRevocationStore())
	require.NoError(t, err)
	return m
}

func issueToken(t *testing.T, m *auth.TokenManager, userID string) string {
	t.Helper()
	token, _, _, err := m.Issue(&auth.User{ID: userID, Email: userID + "@example.com"})
	require.NoError(t, err)
	return token
}

func decodeError(t *testing.T, body []byte) httputil.ErrorBody {
	t.Helper()
	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp.Error
}

func TestAuthenticatePassesValidToken(t *testing.T) {
	m := newTokenManager(t)

	var seen *auth.Principal
	handler := Authenticate(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+issueToken(t, m, "user-1"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "user-1", seen.UserID)
}

func TestAuthenticateRejectsMissingHeader(t *testing.T) {
	m := newTokenManager(t)
	handler := Authenticate(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	for _, header := range []string{"", "Basic dXNlcg==", "Bearer ", "Bearer"} {
		r := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
		assert.Equal(t, "MISSING_AUTH", decodeError(t, w.Body.Bytes()).Code)
	}
}

func TestAuthenticateRejectsBadToken(t *testing.T) {
	m := newTokenManager(t)
	handler := Authenticate(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer not.a.token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "TOKEN_INVALID", decodeError(t, w.Body.Bytes()).Code)
}

func TestAuthenticateRejectsRevokedToken(t *testing.T) {
	m := newTokenManager(t)
	token, tokenID, expiresAt, err := m.Issue(&auth.User{ID: "user-1"})
	require.NoError(t, err)
	require.NoError(t, m.Revoke(context.Background(), tokenID, expiresAt))

	handler := Authenticate(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "TOKEN_REVOKED", decodeError(t, w.Body.Bytes()).Code)
}
