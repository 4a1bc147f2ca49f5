package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is the access token lifetime when none is configured.
const DefaultTokenTTL = 24 * time.Hour

// Claims are the JWT claims carried by an access token. The registered
// ID claim (jti) keys revocation.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies signed access tokens. Verification
// consults the revocation store so logout takes effect before expiry.
type TokenManager struct {
	secret     []byte
	issuer     string
	ttl        time.Duration
	revocation RevocationStore
	now        func() time.Time
}

// NewTokenManager creates a token manager. A zero ttl means
// DefaultTokenTTL; a nil revocation store disables revocation checks.
func NewTokenManager(secret []byte, issuer string, ttl time.Duration, revocation RevocationStore) (*TokenManager, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("token secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenManager{
		secret:     secret,
		issuer:     issuer,
		ttl:        ttl,
		revocation: revocation,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Issue signs a new access token for the user and returns the token
// string together with its id and expiry.
func (m *TokenManager) Issue(user *User) (token string, tokenID string, expiresAt time.Time, err error) {
	now := m.now()
	tokenID = uuid.NewString()
	expiresAt = now.Add(m.ttl)

	claims := Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   user.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, tokenID, expiresAt, nil
}

// Verify parses and validates a token string and returns the principal
// it authenticates. Revoked, expired, malformed, or foreign-issuer
// tokens all fail with CodeTokenInvalid or CodeTokenRevoked.
func (m *TokenManager) Verify(ctx context.Context, tokenString string) (*Principal, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, newError(CodeTokenInvalid, "token has expired")
		}
		return nil, newError(CodeTokenInvalid, "token is not valid")
	}

	if m.revocation != nil {
		revoked, err := m.revocation.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, unexpected("check token revocation", err)
		}
		if revoked {
			return nil, newError(CodeTokenRevoked, "token has been revoked")
		}
	}

	return &Principal{
		UserID:  claims.Subject,
		Email:   claims.Email,
		TokenID: claims.ID,
	}, nil
}

// Revoke invalidates a token id until its natural expiry.
func (m *TokenManager) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if m.revocation == nil {
		return nil
	}
	ttl := expiresAt.Sub(m.now())
	if ttl <= 0 {
		return nil
	}
	if err := m.revocation.Revoke(ctx, tokenID, ttl); err != nil {
		return unexpected("revoke token", err)
	}
	return nil
}
