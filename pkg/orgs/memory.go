package orgs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryOrganizationStore is a mutex-guarded in-memory OrganizationStore
// for tests and single-node development.
type MemoryOrganizationStore struct {
	mu     sync.RWMutex
	byID   map[string]*Organization
	bySlug map[string]string
}

func NewMemoryOrganizationStore() *MemoryOrganizationStore {
	return &MemoryOrganizationStore{
		byID:   make(map[string]*Organization),
		bySlug: make(map[string]string),
	}
}

func (s *MemoryOrganizationStore) FindByID(ctx context.Context, id string) (*Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *org
	return &cp, nil
}

func (s *MemoryOrganizationStore) FindBySlug(ctx context.Context, slug string) (*Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bySlug[slug]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *MemoryOrganizationStore) Save(ctx context.Context, org *Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.bySlug[org.Slug]; taken {
		return ErrSlugTaken
	}
	cp := *org
	s.byID[org.ID] = &cp
	s.bySlug[org.Slug] = org.ID
	return nil
}

func (s *MemoryOrganizationStore) Update(ctx context.Context, org *Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byID[org.ID]
	if !ok {
		return ErrNotFound
	}
	if id, taken := s.bySlug[org.Slug]; taken && id != org.ID {
		return ErrSlugTaken
	}
	delete(s.bySlug, existing.Slug)
	cp := *org
	s.byID[org.ID] = &cp
	s.bySlug[org.Slug] = org.ID
	return nil
}

// Delete removes an organization. Memberships are not cascaded; the
// caller decides what happens to them.
func (s *MemoryOrganizationStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.bySlug, org.Slug)
	delete(s.byID, id)
	return nil
}

// MemoryMembershipStore is a mutex-guarded in-memory MembershipStore.
type MemoryMembershipStore struct {
	mu   sync.RWMutex
	byID map[string]*Membership
}

func NewMemoryMembershipStore() *MemoryMembershipStore {
	return &MemoryMembershipStore{byID: make(map[string]*Membership)}
}

func (s *MemoryMembershipStore) FindByID(ctx context.Context, id string) (*Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryMembershipStore) FindByUserAndOrg(ctx context.Context, userID, organizationID string) (*Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.byID {
		if m.UserID == userID && m.OrganizationID == organizationID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryMembershipStore) FindByOrganizationID(ctx context.Context, organizationID string) ([]*Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Membership
	for _, m := range s.byID {
		if m.OrganizationID == organizationID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sortMemberships(out)
	return out, nil
}

func (s *MemoryMembershipStore) FindByUserID(ctx context.Context, userID string) ([]*Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Membership
	for _, m := range s.byID {
		if m.UserID == userID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sortMemberships(out)
	return out, nil
}

func (s *MemoryMembershipStore) Save(ctx context.Context, m *Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.UserID == m.UserID && existing.OrganizationID == m.OrganizationID {
			return ErrDuplicateMember
		}
	}
	cp := *m
	s.byID[m.ID] = &cp
	return nil
}

func (s *MemoryMembershipStore) Update(ctx context.Context, m *Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[m.ID]; !ok {
		return ErrNotFound
	}
	cp := *m
	s.byID[m.ID] = &cp
	return nil
}

func (s *MemoryMembershipStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

// MemoryInvitationStore is a mutex-guarded in-memory InvitationStore.
type MemoryInvitationStore struct {
	mu   sync.RWMutex
	byID map[string]*Invitation
}

func NewMemoryInvitationStore() *MemoryInvitationStore {
	return &MemoryInvitationStore{byID: make(map[string]*Invitation)}
}

func (s *MemoryInvitationStore) FindByToken(ctx context.Context, token string) (*Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.byID {
		if inv.Token == token {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryInvitationStore) FindByOrganizationID(ctx context.Context, organizationID string) ([]*Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Invitation
	for _, inv := range s.byID {
		if inv.OrganizationID == organizationID {
			cp := *inv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvitedAt.Before(out[j].InvitedAt) })
	return out, nil
}

func (s *MemoryInvitationStore) Save(ctx context.Context, inv *Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *inv
	s.byID[inv.ID] = &cp
	return nil
}

func (s *MemoryInvitationStore) Update(ctx context.Context, inv *Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[inv.ID]; !ok {
		return ErrNotFound
	}
	cp := *inv
	s.byID[inv.ID] = &cp
	return nil
}

func (s *MemoryInvitationStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *MemoryInvitationStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, inv := range s.byID {
		if !inv.Accepted() && inv.ExpiresAt.Before(cutoff) {
			delete(s.byID, id)
			n++
		}
	}
	return n, nil
}

func sortMemberships(ms []*Membership) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].ID < ms[j].ID
		}
		return ms[i].CreatedAt.Before(ms[j].CreatedAt)
	})
}
