package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestManager(t *testing.T, revocation RevocationStore) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(testSecret, "todod-test", time.Hour, revocation)
	require.NoError(t, err)
	return m
}

func TestNewTokenManagerRejectsShortSecret(t *testing.T) {
	_, err := NewTokenManager([]byte("short"), "todod", time.Hour, nil)
	assert.Error(t, err)
}

func TestIssueAndVerify(t *testing.T) {
	m := newTestManager(t, nil)
	user := &User{ID: "user-1", Email: "alice@example.com"}

	token, tokenID, expiresAt, err := m.Issue(user)
	require.NoError(t, err)
	assert.NotEmpty(t, tokenID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	principal, err := m.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", principal.UserID)
	assert.Equal(t, "alice@example.com", principal.Email)
	assert.Equal(t, tokenID, principal.TokenID)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	m := newTestManager(t, nil)

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := m.Verify(context.Background(), token)
		require.NotNil(t, AsError(err), "token %q", token)
		assert.Equal(t, CodeTokenInvalid, AsError(err).Code)
		assert.Equal(t, 401, AsError(err).HTTPStatus())
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	m := newTestManager(t, nil)
	other, err := NewTokenManager([]byte("ffffffffffffffffffffffffffffffff"), "todod-test", time.Hour, nil)
	require.NoError(t, err)

	token, _, _, err := other.Issue(&User{ID: "user-1"})
	require.NoError(t, err)

	_, err = m.Verify(context.Background(), token)
	require.NotNil(t, AsError(err))
	assert.Equal(t, CodeTokenInvalid, AsError(err).Code)
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := newTestManager(t, nil)
	token, _, _, err := m.Issue(&User{ID: "user-1"})
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }

	_, err = m.Verify(context.Background(), token)
	require.NotNil(t, AsError(err))
	assert.Equal(t, CodeTokenInvalid, AsError(err).Code)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	m := newTestManager(t, nil)
	other, err := NewTokenManager(testSecret, "someone-else", time.Hour, nil)
	require.NoError(t, err)

	token, _, _, err := other.Issue(&User{ID: "user-1"})
	require.NoError(t, err)

	_, err = m.Verify(context.Background(), token)
	require.NotNil(t, AsError(err))
	assert.Equal(t, CodeTokenInvalid, AsError(err).Code)
}

func TestRevokedTokenFailsVerification(t *testing.T) {
	m := newTestManager(t, NewMemoryRevocationStore())
	ctx := context.Background()

	token, tokenID, expiresAt, err := m.Issue(&User{ID: "user-1"})
	require.NoError(t, err)

	_, err = m.Verify(ctx, token)
	require.NoError(t, err)

	require.NoError(t, m.Revoke(ctx, tokenID, expiresAt))

	_, err = m.Verify(ctx, token)
	require.NotNil(t, AsError(err))
	assert.Equal(t, CodeTokenRevoked, AsError(err).Code)
	assert.Equal(t, 401, AsError(err).HTTPStatus())
}
