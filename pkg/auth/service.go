package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/jmhill/demo-todo-sub000/pkg/audit"
)

const minPasswordLength = 10

// Service implements signup, login, and logout.
type Service struct {
	users  UserStore
	tokens *TokenManager
	logger *slog.Logger
	clock  func() time.Time
	ids    func() string
	cost   int
}

// NewService creates the authentication service. idgen may be nil to
// use random UUIDs.
func NewService(users UserStore, tokens *TokenManager, logger *slog.Logger, idgen func() string) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if idgen == nil {
		idgen = newUUID
	}
	return &Service{
		users:  users,
		tokens: tokens,
		logger: logger,
		clock:  func() time.Time { return time.Now().UTC() },
		ids:    idgen,
		cost:   bcrypt.DefaultCost,
	}
}

// Signup registers a new account.
func (s *Service) Signup(ctx context.Context, email, password, displayName string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, newError(CodeInvalidEmail, "a valid email address is required")
	}
	if len(password) < minPasswordLength {
		return nil, newError(CodeWeakPassword, "password must be at least 10 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, unexpected("hash password", err)
	}

	now := s.clock()
	user := &User{
		ID:           s.ids(),
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Save(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, newError(CodeEmailTaken, "an account with this email already exists")
		}
		return nil, unexpected("create user", err)
	}

	audit.FromContext(ctx).Log(ctx, &audit.Event{
		EventType:    audit.EventAuthSignup,
		Status:       audit.StatusSuccess,
		UserID:       user.ID,
		ResourceType: audit.ResourceUser,
		ResourceID:   user.ID,
	})

	return user, nil
}

// LoginResult is what a successful login returns.
type LoginResult struct {
	User      *User
	Token     string
	ExpiresAt time.Time
}

// Login verifies credentials and issues an access token. Unknown email
// and wrong password produce identical errors.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Burn comparable time so the response does not reveal
			// whether the account exists.
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			s.auditLoginFailure(ctx, "")
			return nil, newError(CodeInvalidCredentials, "invalid email or password")
		}
		return nil, unexpected("load user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.auditLoginFailure(ctx, user.ID)
		return nil, newError(CodeInvalidCredentials, "invalid email or password")
	}

	token, tokenID, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, unexpected("issue token", err)
	}

	audit.FromContext(ctx).Log(ctx, &audit.Event{
		EventType:    audit.EventAuthLogin,
		Status:       audit.StatusSuccess,
		UserID:       user.ID,
		ResourceType: audit.ResourceUser,
		ResourceID:   user.ID,
		Metadata:     map[string]interface{}{"token_id": tokenID},
	})

	return &LoginResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// Logout revokes the principal's current token.
func (s *Service) Logout(ctx context.Context, principal *Principal, expiresAt time.Time) error {
	if principal == nil || principal.TokenID == "" {
		return nil
	}
	if err := s.tokens.Revoke(ctx, principal.TokenID, expiresAt); err != nil {
		return err
	}

	audit.FromContext(ctx).Log(ctx, &audit.Event{
		EventType:    audit.EventAuthLogout,
		Status:       audit.StatusSuccess,
		UserID:       principal.UserID,
		ResourceType: audit.ResourceUser,
		ResourceID:   principal.UserID,
	})
	return nil
}

// GetUser loads an account by id.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, newError(CodeInvalidCredentials, "unknown user")
		}
		return nil, unexpected("load user", err)
	}
	return user, nil
}

func (s *Service) auditLoginFailure(ctx context.Context, userID string) {
	audit.FromContext(ctx).Log(ctx, &audit.Event{
		EventType:    audit.EventAuthLoginFailed,
		Status:       audit.StatusFailure,
		UserID:       userID,
		ResourceType: audit.ResourceUser,
	})
}

// dummyHash is a bcrypt digest of a throwaway value, compared against
// when the account does not exist.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("timing-equalizer"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}()
