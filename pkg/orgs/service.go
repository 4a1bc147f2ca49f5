package orgs

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/jmhill/demo-todo-sub000/pkg/audit"
	"github.com/jmhill/demo-todo-sub000/pkg/authz"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

const maxSlugLength = 63

// Service implements the organization lifecycle. Mutations on a single
// organization are serialized through a per-organization lock so the
// last-owner checks cannot interleave; the stores' unique indexes remain
// the backstop for slug and membership duplication across processes.
type Service struct {
	orgStore        OrganizationStore
	membershipStore MembershipStore
	clock           Clock
	ids             IDGenerator
	logger          *slog.Logger

	mu       sync.Mutex
	orgLocks map[string]*sync.Mutex
}

// NewService creates the lifecycle service. Clock and IDGenerator
// default to the system implementations when nil.
func NewService(orgStore OrganizationStore, membershipStore MembershipStore, clock Clock, ids IDGenerator, logger *slog.Logger) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	if ids == nil {
		ids = UUIDGenerator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		orgStore:        orgStore,
		membershipStore: membershipStore,
		clock:           clock,
		ids:             ids,
		logger:          logger,
		orgLocks:        make(map[string]*sync.Mutex),
	}
}

// lockOrg returns the mutex serializing mutations for one organization.
// Locks are never evicted; the map grows with the number of distinct
// organizations mutated by this process, which is bounded in practice.
func (s *Service) lockOrg(orgID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.orgLocks[orgID]
	if !ok {
		l = &sync.Mutex{}
		s.orgLocks[orgID] = l
	}
	return l
}

// CreateOrganization creates an organization and enrolls the creator as
// its owner. When slug is empty one is derived from the name.
func (s *Service) CreateOrganization(ctx context.Context, name, slug, creatorUserID string) (*Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newError(CodeInvalidName, "organization name must not be empty")
	}

	if slug == "" {
		slug = Slugify(name)
	}
	if !ValidSlug(slug) {
		return nil, conflictError(CodeInvalidSlug, "slug must be lowercase letters, digits and hyphens", slug)
	}

	now := s.clock.Now()
	org := &Organization{
		ID:        s.ids.NewID(),
		Name:      name,
		Slug:      slug,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.orgStore.Save(ctx, org); err != nil {
		if errors.Is(err, ErrSlugTaken) {
			return nil, conflictError(CodeSlugAlreadyExists, "an organization with this slug already exists", slug)
		}
		return nil, unexpected("create organization", err)
	}

	membership := &Membership{
		ID:             s.ids.NewID(),
		UserID:         creatorUserID,
		OrganizationID: org.ID,
		Role:           authz.RoleOwner,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.membershipStore.Save(ctx, membership); err != nil {
		// An organization must never be observable without an owner.
		// Roll back the org row; if even that fails, log loudly so the
		// orphan can be repaired by hand.
		if delErr := s.orgStore.Delete(ctx, org.ID); delErr != nil {
			s.logger.ErrorContext(ctx, "orphaned organization left behind",
				slog.String("organization_id", org.ID),
				slog.String("slug", org.Slug),
				slog.String("error", delErr.Error()))
		}
		return nil, unexpected("enroll creator", err)
	}

	audit.FromContext(ctx).Log(ctx, &audit.Event{
		EventType:      audit.EventOrgCreate,
		Status:         audit.StatusSuccess,
		UserID:         creatorUserID,
		OrganizationID: org.ID,
		ResourceType:   audit.ResourceOrganization,
		ResourceID:     org.ID,
		Metadata:       map[string]interface{}{"slug": org.Slug},
	})
	s.logger.InfoContext(ctx, "organization created",
		slog.String("organization_id", org.ID),
		slog.String("slug", org.Slug))

	return org, nil
}

// RenameOrganization changes the display name and, when newSlug is
// non-empty, the slug.
func (s *Service) RenameOrganization(ctx context.Context, orgID, newName, newSlug string) (*Organization, error) {
	lock := s.lockOrg(orgID)
	lock.Lock()
	defer lock.Unlock()

	org, err := s.orgStore.FindByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError(CodeOrganizationNotFound, "organization does not exist")
		}
		return nil, unexpected("load organization", err)
	}

	newName = strings.TrimSpace(newName)
	if newName != "" {
		org.Name = newName
	}
	if newSlug != "" && newSlug != org.Slug {
		if !ValidSlug(newSlug) {
			return nil, conflictError(CodeInvalidSlug, "slug must be lowercase letters, digits and hyphens", newSlug)
		}
		org.Slug = newSlug
	}
	org.UpdatedAt = s.clock.Now()

	if err := s.orgStore.Update(ctx, org); err != nil {
		if errors.Is(err, ErrSlugTaken) {
			return nil, conflictError(CodeSlugAlreadyExists, "an organization with this slug already exists", newSlug)
		}
		return nil, unexpected("rename organization", err)
	}

	audit.FromContext(ctx).Log(ctx, &audit.Event{
		EventType:      audit.EventOrgRename,
		Status:         audit.StatusSuccess,
		OrganizationID: org.ID,
		ResourceType:   audit.ResourceOrganization,
		ResourceID:     org.ID,
		Metadata:       map[string]interface{}{"name": org.Name, "slug": org.Slug},
	})

	return org, nil
}

// GetOrganization loads an organization by id.
func (s *Service) GetOrganization(ctx context.Context, orgID string) (*Organization, error) {
	org, err := s.orgStore.FindByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError(CodeOrganizationNotFound, "organization does not exist")
		}
		return nil, unexpected("load organization", err)
	}
	return org, nil
}

// GetOrganizationBySlug loads an organization by slug.
func (s *Service) GetOrganizationBySlug(ctx context.Context, slug string) (*Organization, error) {
	org, err := s.orgStore.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError(CodeOrganizationNotFound, "organization does not exist")
		}
		return nil, unexpected("load organization", err)
	}
	return org, nil
}

// AddMember enrolls a user into an organization with the given role.
func (s *Service) AddMember(ctx context.Context, orgID, userID string, role authz.Role) (*Membership, error) {
	if !role.Valid() {
		return nil, conflictError(CodeInvalidRole, "unknown role", string(role))
	}

	lock := s.lockOrg(orgID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.orgStore.FindByID(ctx, orgID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError(CodeOrganizationNotFound, "organization does not exist")
		}
		return nil, unexpected("load organization", err)
	}

	now := s.clock.Now()
	membership := &Membership{
		ID:             s.ids.NewID(),
		UserID:         userID,
		OrganizationID: orgID,
		Role:           role,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.membershipStore.Save(ctx, membership); err != nil {
		if errors.Is(err, ErrDuplicateMember) {
			return nil, conflictError(CodeUserAlreadyMember, "user is already a member of this organization", userID)
		}
		return nil, unexpected("add member", err)
	}

	audit.FromContext(ctx).Log(ctx, &audit.Event{
		EventType:      audit.EventOrgMemberAdd,
		Status:         audit.StatusSuccess,
		OrganizationID: orgID,
		ResourceType:   audit.ResourceMembership,
		ResourceID:     membership.ID,
		Metadata:       map[string]interface{}{"member_user_id": userID, "role": string(role)},
	})

	return membership, nil
}

// RemoveMember deletes a membership. Removing the organization's only
// owner is refused so every organization keeps at least one owner.
func (s *Service) RemoveMember(ctx context.Context, orgID, membershipID string) error {
	lock := s.lockOrg(orgID)
	lock.Lock()
	defer lock.Unlock()

	membership, err := s.findMembershipInOrg(ctx, orgID, membershipID)
	if err != nil {
		return err
	}

	if membership.Role == authz.RoleOwner {
		owners, err := s.countOwners(ctx, orgID)
		if err != nil {
			return unexpected("count owners", err)
		}
		if owners <= 1 {
			return newError(CodeCannotRemoveLastOwner, "cannot remove the only owner of an organization")
		}
	}

	if err := s.membershipStore.Delete(ctx, membership.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return newError(CodeMembershipNotFound, "membership does not exist")
		}
		return unexpected("remove member", err)
	}

	audit.FromContext(ctx).Log(ctx, &audit.Event{
		EventType:      audit.EventOrgMemberRemove,
		Status:         audit.StatusSuccess,
		OrganizationID: orgID,
		ResourceType:   audit.ResourceMembership,
		ResourceID:     membership.ID,
		Metadata:       map[string]interface{}{"member_user_id": membership.UserID},
	})

	return nil
}

// UpdateMemberRole changes a membership's role. Demoting the only owner
// is refused.
func (s *Service) UpdateMemberRole(ctx context.Context, orgID, membershipID string, newRole authz.Role) (*Membership, error) {
	if !newRole.Valid() {
		return nil, conflictError(CodeInvalidRole, "unknown role", string(newRole))
	}

	lock := s.lockOrg(orgID)
	lock.Lock()
	defer lock.Unlock()

	membership, err := s.findMembershipInOrg(ctx, orgID, membershipID)
	if err != nil {
		return nil, err
	}

	if membership.Role == newRole {
		return membership, nil
	}

	if membership.Role == authz.RoleOwner && newRole != authz.RoleOwner {
		owners, err := s.countOwners(ctx, orgID)
		if err != nil {
			return nil, unexpected("count owners", err)
		}
		if owners <= 1 {
			return nil, newError(CodeCannotChangeLastOwner, "cannot demote the only owner of an organization")
		}
	}

	previous := membership.Role
	membership.Role = newRole
	membership.UpdatedAt = s.clock.Now()

	if err := s.membershipStore.Update(ctx, membership); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError(CodeMembershipNotFound, "membership does not exist")
		}
		return nil, unexpected("update member role", err)
	}

	audit.FromContext(ctx).Log(ctx, &audit.Event{
		EventType:      audit.EventOrgMemberRoleChange,
		Status:         audit.StatusSuccess,
		OrganizationID: orgID,
		ResourceType:   audit.ResourceMembership,
		ResourceID:     membership.ID,
		Metadata: map[string]interface{}{
			"member_user_id": membership.UserID,
			"previous_role":  string(previous),
			"new_role":       string(newRole),
		},
	})

	return membership, nil
}

// ListMembers returns every membership of an organization.
func (s *Service) ListMembers(ctx context.Context, orgID string) ([]*Membership, error) {
	if _, err := s.orgStore.FindByID(ctx, orgID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError(CodeOrganizationNotFound, "organization does not exist")
		}
		return nil, unexpected("load organization", err)
	}

	members, err := s.membershipStore.FindByOrganizationID(ctx, orgID)
	if err != nil {
		return nil, unexpected("list members", err)
	}
	return members, nil
}

// ListUserOrganizations returns the organizations a user belongs to,
// paired with the user's membership in each. Memberships whose
// organization no longer resolves are dropped from the result rather
// than failing the whole listing.
func (s *Service) ListUserOrganizations(ctx context.Context, userID string) ([]*MemberDetails, error) {
	memberships, err := s.membershipStore.FindByUserID(ctx, userID)
	if err != nil {
		return nil, unexpected("list user memberships", err)
	}

	details := make([]*MemberDetails, 0, len(memberships))
	for _, m := range memberships {
		org, err := s.orgStore.FindByID(ctx, m.OrganizationID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				s.logger.WarnContext(ctx, "dropping orphaned membership",
					slog.String("membership_id", m.ID),
					slog.String("organization_id", m.OrganizationID))
				continue
			}
			return nil, unexpected("load organization", err)
		}
		details = append(details, &MemberDetails{Membership: *m, Organization: org})
	}
	return details, nil
}

// ResolveMembership finds a user's membership in an organization, for
// the request middleware. Both the membership and its role catalog
// expansion come back as an authorization context.
func (s *Service) ResolveMembership(ctx context.Context, userID, orgID string) (*Membership, error) {
	m, err := s.membershipStore.FindByUserAndOrg(ctx, userID, orgID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError(CodeMembershipNotFound, "membership does not exist")
		}
		return nil, unexpected("resolve membership", err)
	}
	return m, nil
}

func (s *Service) findMembershipInOrg(ctx context.Context, orgID, membershipID string) (*Membership, error) {
	membership, err := s.membershipStore.FindByID(ctx, membershipID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError(CodeMembershipNotFound, "membership does not exist")
		}
		return nil, unexpected("load membership", err)
	}
	if membership.OrganizationID != orgID {
		return nil, newError(CodeMembershipNotFound, "membership does not exist")
	}
	return membership, nil
}

func (s *Service) countOwners(ctx context.Context, orgID string) (int, error) {
	members, err := s.membershipStore.FindByOrganizationID(ctx, orgID)
	if err != nil {
		return 0, err
	}
	owners := 0
	for _, m := range members {
		if m.Role == authz.RoleOwner {
			owners++
		}
	}
	return owners, nil
}

// ValidSlug reports whether s is a well-formed organization slug.
func ValidSlug(s string) bool {
	return len(s) <= maxSlugLength && slugPattern.MatchString(s)
}

// Slugify derives a slug from a display name: lowercase, runs of
// non-alphanumerics collapsed to single hyphens, trimmed to length.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.Trim(slug[:maxSlugLength], "-")
	}
	return slug
}
