package orgs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// EnsureSchema creates the organization tables. The unique indexes are
// the cross-process backstop for slug and membership uniqueness; the
// service's per-organization locks only serialize within one process.
func EnsureSchema(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS organizations (
		id UUID PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		slug VARCHAR(63) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_organizations_slug ON organizations(slug);

	CREATE TABLE IF NOT EXISTS memberships (
		id UUID PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		organization_id UUID NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		role VARCHAR(20) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_memberships_user_org ON memberships(user_id, organization_id);
	CREATE INDEX IF NOT EXISTS idx_memberships_organization_id ON memberships(organization_id);
	CREATE INDEX IF NOT EXISTS idx_memberships_user_id ON memberships(user_id);

	CREATE TABLE IF NOT EXISTS invitations (
		id UUID PRIMARY KEY,
		organization_id UUID NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		email VARCHAR(255) NOT NULL,
		role VARCHAR(20) NOT NULL,
		token VARCHAR(128) NOT NULL UNIQUE,
		invited_by VARCHAR(64) NOT NULL,
		invited_at TIMESTAMP WITH TIME ZONE NOT NULL,
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
		accepted_at TIMESTAMP WITH TIME ZONE,
		accepted_by VARCHAR(64)
	);
	CREATE INDEX IF NOT EXISTS idx_invitations_organization_id ON invitations(organization_id);
	CREATE INDEX IF NOT EXISTS idx_invitations_expires_at ON invitations(expires_at);
	`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("ensure organization schema: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation
}

// PostgresOrganizationStore implements OrganizationStore on PostgreSQL.
type PostgresOrganizationStore struct {
	db *sql.DB
}

func NewPostgresOrganizationStore(db *sql.DB) *PostgresOrganizationStore {
	return &PostgresOrganizationStore{db: db}
}

const orgColumns = "id, name, slug, created_at, updated_at"

func scanOrganization(row *sql.Row) (*Organization, error) {
	var org Organization
	err := row.Scan(&org.ID, &org.Name, &org.Slug, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan organization: %w", err)
	}
	return &org, nil
}

func (s *PostgresOrganizationStore) FindByID(ctx context.Context, id string) (*Organization, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+orgColumns+" FROM organizations WHERE id = $1", id)
	return scanOrganization(row)
}

func (s *PostgresOrganizationStore) FindBySlug(ctx context.Context, slug string) (*Organization, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+orgColumns+" FROM organizations WHERE slug = $1", slug)
	return scanOrganization(row)
}

func (s *PostgresOrganizationStore) Save(ctx context.Context, org *Organization) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO organizations (id, name, slug, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		org.ID, org.Name, org.Slug, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlugTaken
		}
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

func (s *PostgresOrganizationStore) Update(ctx context.Context, org *Organization) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE organizations SET name = $2, slug = $3, updated_at = $4 WHERE id = $1`,
		org.ID, org.Name, org.Slug, org.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlugTaken
		}
		return fmt.Errorf("update organization: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresOrganizationStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete organization: %w", err)
	}
	return requireRow(res)
}

// PostgresMembershipStore implements MembershipStore on PostgreSQL.
type PostgresMembershipStore struct {
	db *sql.DB
}

func NewPostgresMembershipStore(db *sql.DB) *PostgresMembershipStore {
	return &PostgresMembershipStore{db: db}
}

const membershipColumns = "id, user_id, organization_id, role, created_at, updated_at"

func scanMembership(row *sql.Row) (*Membership, error) {
	var m Membership
	err := row.Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.Role, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan membership: %w", err)
	}
	return &m, nil
}

func (s *PostgresMembershipStore) FindByID(ctx context.Context, id string) (*Membership, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+membershipColumns+" FROM memberships WHERE id = $1", id)
	return scanMembership(row)
}

func (s *PostgresMembershipStore) FindByUserAndOrg(ctx context.Context, userID, organizationID string) (*Membership, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+membershipColumns+" FROM memberships WHERE user_id = $1 AND organization_id = $2",
		userID, organizationID)
	return scanMembership(row)
}

func (s *PostgresMembershipStore) queryMemberships(ctx context.Context, query string, args ...interface{}) ([]*Membership, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query memberships: %w", err)
	}
	defer rows.Close()

	var out []*Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.Role, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *PostgresMembershipStore) FindByOrganizationID(ctx context.Context, organizationID string) ([]*Membership, error) {
	return s.queryMemberships(ctx,
		"SELECT "+membershipColumns+" FROM memberships WHERE organization_id = $1 ORDER BY created_at, id",
		organizationID)
}

func (s *PostgresMembershipStore) FindByUserID(ctx context.Context, userID string) ([]*Membership, error) {
	return s.queryMemberships(ctx,
		"SELECT "+membershipColumns+" FROM memberships WHERE user_id = $1 ORDER BY created_at, id",
		userID)
}

func (s *PostgresMembershipStore) Save(ctx context.Context, m *Membership) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memberships (id, user_id, organization_id, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.UserID, m.OrganizationID, m.Role, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateMember
		}
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

func (s *PostgresMembershipStore) Update(ctx context.Context, m *Membership) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memberships SET role = $2, updated_at = $3 WHERE id = $1`,
		m.ID, m.Role, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update membership: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresMembershipStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memberships WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	return requireRow(res)
}

// PostgresInvitationStore implements InvitationStore on PostgreSQL.
type PostgresInvitationStore struct {
	db *sql.DB
}

func NewPostgresInvitationStore(db *sql.DB) *PostgresInvitationStore {
	return &PostgresInvitationStore{db: db}
}

const invitationColumns = "id, organization_id, email, role, token, invited_by, invited_at, expires_at, accepted_at, accepted_by"

func scanInvitationFields(scan func(dest ...interface{}) error) (*Invitation, error) {
	var inv Invitation
	var acceptedAt sql.NullTime
	var acceptedBy sql.NullString
	err := scan(&inv.ID, &inv.OrganizationID, &inv.Email, &inv.Role, &inv.Token,
		&inv.InvitedBy, &inv.InvitedAt, &inv.ExpiresAt, &acceptedAt, &acceptedBy)
	if err != nil {
		return nil, err
	}
	if acceptedAt.Valid {
		t := acceptedAt.Time
		inv.AcceptedAt = &t
	}
	inv.AcceptedBy = acceptedBy.String
	return &inv, nil
}

func (s *PostgresInvitationStore) FindByToken(ctx context.Context, token string) (*Invitation, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+invitationColumns+" FROM invitations WHERE token = $1", token)
	inv, err := scanInvitationFields(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan invitation: %w", err)
	}
	return inv, nil
}

func (s *PostgresInvitationStore) FindByOrganizationID(ctx context.Context, organizationID string) ([]*Invitation, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+invitationColumns+" FROM invitations WHERE organization_id = $1 ORDER BY invited_at, id",
		organizationID)
	if err != nil {
		return nil, fmt.Errorf("query invitations: %w", err)
	}
	defer rows.Close()

	var out []*Invitation
	for rows.Next() {
		inv, err := scanInvitationFields(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *PostgresInvitationStore) Save(ctx context.Context, inv *Invitation) error {
	var acceptedAt interface{}
	if inv.AcceptedAt != nil {
		acceptedAt = *inv.AcceptedAt
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invitations (id, organization_id, email, role, token, invited_by, invited_at, expires_at, accepted_at, accepted_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		inv.ID, inv.OrganizationID, inv.Email, inv.Role, inv.Token,
		inv.InvitedBy, inv.InvitedAt, inv.ExpiresAt, acceptedAt, nullable(inv.AcceptedBy))
	if err != nil {
		return fmt.Errorf("insert invitation: %w", err)
	}
	return nil
}

func (s *PostgresInvitationStore) Update(ctx context.Context, inv *Invitation) error {
	var acceptedAt interface{}
	if inv.AcceptedAt != nil {
		acceptedAt = *inv.AcceptedAt
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE invitations SET expires_at = $2, accepted_at = $3, accepted_by = $4 WHERE id = $1`,
		inv.ID, inv.ExpiresAt, acceptedAt, nullable(inv.AcceptedBy))
	if err != nil {
		return fmt.Errorf("update invitation: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresInvitationStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM invitations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete invitation: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresInvitationStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM invitations WHERE accepted_at IS NULL AND expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired invitations: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
