package orgs

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmhill/demo-todo-sub000/pkg/audit"
	"github.com/jmhill/demo-todo-sub000/pkg/authz"
)

// DefaultInvitationTTL is how long an invitation stays redeemable.
const DefaultInvitationTTL = 7 * 24 * time.Hour

// InvitationService manages email invitations into organizations.
// Accepting an invitation enrolls the accepting user through the
// lifecycle service so membership invariants hold.
type InvitationService struct {
	store     InvitationStore
	lifecycle *Service
	clock     Clock
	ids       IDGenerator
	ttl       time.Duration
}

// NewInvitationService creates the invitation service. A zero ttl means
// DefaultInvitationTTL.
func NewInvitationService(store InvitationStore, lifecycle *Service, clock Clock, ids IDGenerator, ttl time.Duration) *InvitationService {
	if clock == nil {
		clock = SystemClock{}
	}
	if ids == nil {
		ids = UUIDGenerator{}
	}
	if ttl <= 0 {
		ttl = DefaultInvitationTTL
	}
	return &InvitationService{
		store:     store,
		lifecycle: lifecycle,
		clock:     clock,
		ids:       ids,
		ttl:       ttl,
	}
}

// CreateInvitation invites an email address into an organization. The
// returned invitation carries the redemption token; listings do not.
func (s *InvitationService) CreateInvitation(ctx context.Context, orgID, email string, role authz.Role, invitedBy string) (*Invitation, error) {
	if !role.Valid() {
		return nil, conflictError(CodeInvalidRole, "unknown role", string(role))
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, newError(CodeInvalidEmail, "a valid email address is required")
	}

	if _, err := s.lifecycle.GetOrganization(ctx, orgID); err != nil {
		return nil, err
	}

	token, err := newInviteToken()
	if err != nil {
		return nil, unexpected("generate invitation token", err)
	}

	now := s.clock.Now()
	inv := &Invitation{
		ID:             s.ids.NewID(),
		OrganizationID: orgID,
		Email:          email,
		Role:           role,
		Token:          token,
		InvitedBy:      invitedBy,
		InvitedAt:      now,
		ExpiresAt:      now.Add(s.ttl),
	}
	if err := s.store.Save(ctx, inv); err != nil {
		return nil, unexpected("save invitation", err)
	}

	audit.FromContext(ctx).Log(ctx, &audit.Event{
		EventType:      audit.EventInviteCreate,
		Status:         audit.StatusSuccess,
		UserID:         invitedBy,
		OrganizationID: orgID,
		ResourceType:   audit.ResourceInvitation,
		ResourceID:     inv.ID,
		Metadata:       map[string]interface{}{"email": email, "role": string(role)},
	})

	return inv, nil
}

// ListInvitations returns an organization's invitations with redemption
// tokens redacted.
func (s *InvitationService) ListInvitations(ctx context.Context, orgID string) ([]*Invitation, error) {
	if _, err := s.lifecycle.GetOrganization(ctx, orgID); err != nil {
		return nil, err
	}

	invs, err := s.store.FindByOrganizationID(ctx, orgID)
	if err != nil {
		return nil, unexpected("list invitations", err)
	}
	for _, inv := range invs {
		inv.Token = ""
	}
	return invs, nil
}

// RevokeInvitation deletes a pending invitation.
func (s *InvitationService) RevokeInvitation(ctx context.Context, orgID, invitationID string) error {
	invs, err := s.store.FindByOrganizationID(ctx, orgID)
	if err != nil {
		return unexpected("list invitations", err)
	}

	for _, inv := range invs {
		if inv.ID != invitationID {
			continue
		}
		if inv.Accepted() {
			return newError(CodeInvitationAccepted, "invitation has already been accepted")
		}
		if err := s.store.Delete(ctx, inv.ID); err != nil {
			return unexpected("delete invitation", err)
		}
		audit.FromContext(ctx).Log(ctx, &audit.Event{
			EventType:      audit.EventInviteRevoke,
			Status:         audit.StatusSuccess,
			OrganizationID: orgID,
			ResourceType:   audit.ResourceInvitation,
			ResourceID:     inv.ID,
		})
		return nil
	}
	return newError(CodeInvitationNotFound, "invitation does not exist")
}

// AcceptInvitation redeems a token on behalf of userID, enrolling them
// with the invited role.
func (s *InvitationService) AcceptInvitation(ctx context.Context, token, userID string) (*Membership, error) {
	inv, err := s.store.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError(CodeInvitationNotFound, "invitation does not exist")
		}
		return nil, unexpected("load invitation", err)
	}

	now := s.clock.Now()
	if inv.Accepted() {
		return nil, newError(CodeInvitationAccepted, "invitation has already been accepted")
	}
	if inv.Expired(now) {
		return nil, newError(CodeInvitationExpired, "invitation has expired")
	}

	membership, err := s.lifecycle.AddMember(ctx, inv.OrganizationID, userID, inv.Role)
	if err != nil {
		return nil, err
	}

	inv.AcceptedAt = &now
	inv.AcceptedBy = userID
	if err := s.store.Update(ctx, inv); err != nil {
		return nil, unexpected("mark invitation accepted", err)
	}

	audit.FromContext(ctx).Log(ctx, &audit.Event{
		EventType:      audit.EventInviteAccept,
		Status:         audit.StatusSuccess,
		UserID:         userID,
		OrganizationID: inv.OrganizationID,
		ResourceType:   audit.ResourceInvitation,
		ResourceID:     inv.ID,
	})

	return membership, nil
}

// PurgeExpired deletes unaccepted invitations past their expiry. The
// janitor calls this on a schedule.
func (s *InvitationService) PurgeExpired(ctx context.Context) (int, error) {
	n, err := s.store.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("purge expired invitations: %w", err)
	}
	return n, nil
}

func newInviteToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
