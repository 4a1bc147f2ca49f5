package orgs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jmhill/demo-todo-sub000/pkg/authz"
)

// Organization is a tenant. The slug is the URL-safe, globally unique
// lookup key; it changes only through RenameOrganization.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Membership ties a user to an organization with exactly one role.
// There is exactly one membership per (user, organization) pair.
type Membership struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	OrganizationID string     `json:"organization_id"`
	Role           authz.Role `json:"role"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Invitation invites an email address into an organization with a role.
type Invitation struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Email          string     `json:"email"`
	Role           authz.Role `json:"role"`
	Token          string     `json:"token,omitempty"`
	InvitedBy      string     `json:"invited_by"`
	InvitedAt      time.Time  `json:"invited_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	AcceptedAt     *time.Time `json:"accepted_at,omitempty"`
	AcceptedBy     string     `json:"accepted_by,omitempty"`
}

// Accepted reports whether the invitation has already been redeemed.
func (i *Invitation) Accepted() bool {
	return i.AcceptedAt != nil
}

// Expired reports whether the invitation has passed its expiry.
func (i *Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// Store-level sentinels. Stores signal these; the service translates
// them into typed *Error values for callers.
var (
	ErrNotFound        = errors.New("not found")
	ErrSlugTaken       = errors.New("slug already taken")
	ErrDuplicateMember = errors.New("membership already exists")
)

// OrganizationStore persists organizations. Implementations must enforce
// slug uniqueness at the data layer and report violations as ErrSlugTaken.
type OrganizationStore interface {
	FindByID(ctx context.Context, id string) (*Organization, error)
	FindBySlug(ctx context.Context, slug string) (*Organization, error)
	Save(ctx context.Context, org *Organization) error
	Update(ctx context.Context, org *Organization) error
	Delete(ctx context.Context, id string) error
}

// MembershipStore persists memberships. Implementations must enforce
// uniqueness of (userID, organizationID) at the data layer and report
// violations as ErrDuplicateMember.
type MembershipStore interface {
	FindByID(ctx context.Context, id string) (*Membership, error)
	FindByUserAndOrg(ctx context.Context, userID, organizationID string) (*Membership, error)
	FindByOrganizationID(ctx context.Context, organizationID string) ([]*Membership, error)
	FindByUserID(ctx context.Context, userID string) ([]*Membership, error)
	Save(ctx context.Context, m *Membership) error
	Update(ctx context.Context, m *Membership) error
	Delete(ctx context.Context, id string) error
}

// InvitationStore persists invitations.
type InvitationStore interface {
	FindByToken(ctx context.Context, token string) (*Invitation, error)
	FindByOrganizationID(ctx context.Context, organizationID string) ([]*Invitation, error)
	Save(ctx context.Context, inv *Invitation) error
	Update(ctx context.Context, inv *Invitation) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, cutoff time.Time) (int, error)
}

// Clock abstracts time so the service is deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator produces opaque unique identifiers.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator is the production IDGenerator.
type UUIDGenerator struct{}

// NewID returns a random UUID string.
func (UUIDGenerator) NewID() string { return uuid.NewString() }

// MemberDetails is the read projection returned by ListMembers.
type MemberDetails struct {
	Membership
	Organization *Organization `json:"organization,omitempty"`
}
