package orgs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmhill/demo-todo-sub000/pkg/authz"
)

type inviteFixture struct {
	*fixture
	invites *InvitationService
	store   *MemoryInvitationStore
}

func newInviteFixture(t *testing.T) *inviteFixture {
	t.Helper()
	f := newFixture(t)
	store := NewMemoryInvitationStore()
	return &inviteFixture{
		fixture: f,
		invites: NewInvitationService(store, f.service, f.clock, &seqIDs{}, 0),
		store:   store,
	}
}

func TestInvitationLifecycle(t *testing.T) {
	f := newInviteFixture(t)
	ctx := context.Background()

	org, err := f.service.CreateOrganization(ctx, "Acme", "", "user-alice")
	require.NoError(t, err)

	inv, err := f.invites.CreateInvitation(ctx, org.ID, "Bob@Example.COM", authz.RoleMember, "user-alice")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", inv.Email)
	assert.NotEmpty(t, inv.Token)
	assert.Equal(t, f.clock.Now().Add(DefaultInvitationTTL), inv.ExpiresAt)

	// Listings never expose tokens.
	listed, err := f.invites.ListInvitations(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Empty(t, listed[0].Token)

	membership, err := f.invites.AcceptInvitation(ctx, inv.Token, "user-bob")
	require.NoError(t, err)
	assert.Equal(t, authz.RoleMember, membership.Role)
	assert.Equal(t, org.ID, membership.OrganizationID)

	// A token cannot be redeemed twice.
	_, err = f.invites.AcceptInvitation(ctx, inv.Token, "user-carol")
	require.NotNil(t, AsError(err))
	assert.Equal(t, CodeInvitationAccepted, AsError(err).Code)
	assert.Equal(t, 409, AsError(err).HTTPStatus())
}

func TestAcceptInvitationExpired(t *testing.T) {
	f := newInviteFixture(t)
	ctx := context.Background()

	org, err := f.service.CreateOrganization(ctx, "Acme", "", "user-alice")
	require.NoError(t, err)
	inv, err := f.invites.CreateInvitation(ctx, org.ID, "bob@example.com", authz.RoleViewer, "user-alice")
	require.NoError(t, err)

	f.clock.Advance(DefaultInvitationTTL + time.Minute)

	_, err = f.invites.AcceptInvitation(ctx, inv.Token, "user-bob")
	require.NotNil(t, AsError(err))
	assert.Equal(t, CodeInvitationExpired, AsError(err).Code)
	assert.Equal(t, 400, AsError(err).HTTPStatus())
}

func TestAcceptInvitationUnknownToken(t *testing.T) {
	f := newInviteFixture(t)

	_, err := f.invites.AcceptInvitation(context.Background(), "bogus", "user-bob")
	require.NotNil(t, AsError(err))
	assert.Equal(t, CodeInvitationNotFound, AsError(err).Code)
	assert.Equal(t, 404, AsError(err).HTTPStatus())
}

func TestAcceptInvitationExistingMember(t *testing.T) {
	f := newInviteFixture(t)
	ctx := context.Background()

	org, err := f.service.CreateOrganization(ctx, "Acme", "", "user-alice")
	require.NoError(t, err)
	inv, err := f.invites.CreateInvitation(ctx, org.ID, "alice@example.com", authz.RoleMember, "user-alice")
	require.NoError(t, err)

	_, err = f.invites.AcceptInvitation(ctx, inv.Token, "user-alice")
	require.NotNil(t, AsError(err))
	assert.Equal(t, CodeUserAlreadyMember, AsError(err).Code)
}

func TestCreateInvitationValidation(t *testing.T) {
	f := newInviteFixture(t)
	ctx := context.Background()

	org, err := f.service.CreateOrganization(ctx, "Acme", "", "user-alice")
	require.NoError(t, err)

	_, err = f.invites.CreateInvitation(ctx, org.ID, "not-an-email", authz.RoleMember, "user-alice")
	require.NotNil(t, AsError(err))
	assert.Equal(t, CodeInvalidEmail, AsError(err).Code)

	_, err = f.invites.CreateInvitation(ctx, org.ID, "bob@example.com", authz.Role("root"), "user-alice")
	require.NotNil(t, AsError(err))
	assert.Equal(t, CodeInvalidRole, AsError(err).Code)

	_, err = f.invites.CreateInvitation(ctx, "no-such-org", "bob@example.com", authz.RoleMember, "user-alice")
	require.NotNil(t, AsError(err))
	assert.Equal(t, CodeOrganizationNotFound, AsError(err).Code)
}

func TestRevokeInvitation(t *testing.T) {
	f := newInviteFixture(t)
	ctx := context.Background()

	org, err := f.service.CreateOrganization(ctx, "Acme", "", "user-alice")
	require.NoError(t, err)
	inv, err := f.invites.CreateInvitation(ctx, org.ID, "bob@example.com", authz.RoleMember, "user-alice")
	require.NoError(t, err)

	require.NoError(t, f.invites.RevokeInvitation(ctx, org.ID, inv.ID))

	_, err = f.invites.AcceptInvitation(ctx, inv.Token, "user-bob")
	require.NotNil(t, AsError(err))
	assert.Equal(t, CodeInvitationNotFound, AsError(err).Code)

	err = f.invites.RevokeInvitation(ctx, org.ID, inv.ID)
	require.NotNil(t, AsError(err))
	assert.Equal(t, CodeInvitationNotFound, AsError(err).Code)
}

func TestPurgeExpiredInvitations(t *testing.T) {
	f := newInviteFixture(t)
	ctx := context.Background()

	org, err := f.service.CreateOrganization(ctx, "Acme", "", "user-alice")
	require.NoError(t, err)

	stale, err := f.invites.CreateInvitation(ctx, org.ID, "old@example.com", authz.RoleMember, "user-alice")
	require.NoError(t, err)
	accepted, err := f.invites.CreateInvitation(ctx, org.ID, "kept@example.com", authz.RoleMember, "user-alice")
	require.NoError(t, err)
	_, err = f.invites.AcceptInvitation(ctx, accepted.Token, "user-kept")
	require.NoError(t, err)

	f.clock.Advance(DefaultInvitationTTL + time.Hour)
	fresh, err := f.invites.CreateInvitation(ctx, org.ID, "new@example.com", authz.RoleMember, "user-alice")
	require.NoError(t, err)

	n, err := f.invites.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The stale token is gone, the fresh one still works, and accepted
	// invitations are retained for the record.
	_, err = f.invites.AcceptInvitation(ctx, stale.Token, "user-old")
	require.NotNil(t, AsError(err))
	assert.Equal(t, CodeInvitationNotFound, AsError(err).Code)

	_, err = f.invites.AcceptInvitation(ctx, fresh.Token, "user-new")
	require.NoError(t, err)
}
