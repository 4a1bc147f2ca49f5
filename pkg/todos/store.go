package todos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded in-memory Store.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]*Todo
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Todo)}
}

func (s *MemoryStore) FindByID(ctx context.Context, organizationID, id string) (*Todo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	todo, ok := s.byID[id]
	if !ok || todo.OrganizationID != organizationID {
		return nil, ErrNotFound
	}
	cp := *todo
	return &cp, nil
}

func (s *MemoryStore) FindByOrganizationID(ctx context.Context, organizationID string, filter ListFilter) ([]*Todo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Todo
	for _, todo := range s.byID {
		if todo.OrganizationID != organizationID {
			continue
		}
		if filter.Completed != nil && todo.Completed() != *filter.Completed {
			continue
		}
		if filter.AssigneeID != "" && todo.AssigneeID != filter.AssigneeID {
			continue
		}
		if filter.CreatedBy != "" && todo.CreatedBy != filter.CreatedBy {
			continue
		}
		cp := *todo
		out = append(out, &cp)
	}
	// Newest first, with the id as a deterministic tie-break.
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Save(ctx context.Context, todo *Todo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *todo
	s.byID[todo.ID] = &cp
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, todo *Todo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byID[todo.ID]
	if !ok || existing.OrganizationID != todo.OrganizationID {
		return ErrNotFound
	}
	cp := *todo
	s.byID[todo.ID] = &cp
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, organizationID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byID[id]
	if !ok || existing.OrganizationID != organizationID {
		return ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

// EnsureSchema creates the todos table.
func EnsureSchema(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS todos (
		id UUID PRIMARY KEY,
		organization_id UUID NOT NULL,
		title VARCHAR(500) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_by VARCHAR(64) NOT NULL,
		assignee_id VARCHAR(64),
		due_at TIMESTAMP WITH TIME ZONE,
		completed_at TIMESTAMP WITH TIME ZONE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_todos_organization_id ON todos(organization_id);
	CREATE INDEX IF NOT EXISTS idx_todos_org_completed ON todos(organization_id, completed_at);
	CREATE INDEX IF NOT EXISTS idx_todos_assignee ON todos(assignee_id);
	`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("ensure todo schema: %w", err)
	}
	return nil
}

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const todoColumns = "id, organization_id, title, description, created_by, assignee_id, due_at, completed_at, created_at, updated_at"

func scanTodo(scan func(dest ...interface{}) error) (*Todo, error) {
	var t Todo
	var assignee sql.NullString
	var dueAt, completedAt sql.NullTime
	err := scan(&t.ID, &t.OrganizationID, &t.Title, &t.Description, &t.CreatedBy,
		&assignee, &dueAt, &completedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.AssigneeID = assignee.String
	if dueAt.Valid {
		v := dueAt.Time
		t.DueAt = &v
	}
	if completedAt.Valid {
		v := completedAt.Time
		t.CompletedAt = &v
	}
	return &t, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, organizationID, id string) (*Todo, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+todoColumns+" FROM todos WHERE organization_id = $1 AND id = $2",
		organizationID, id)
	todo, err := scanTodo(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan todo: %w", err)
	}
	return todo, nil
}

func (s *PostgresStore) FindByOrganizationID(ctx context.Context, organizationID string, filter ListFilter) ([]*Todo, error) {
	query := "SELECT " + todoColumns + " FROM todos WHERE organization_id = $1"
	args := []interface{}{organizationID}

	if filter.Completed != nil {
		if *filter.Completed {
			query += " AND completed_at IS NOT NULL"
		} else {
			query += " AND completed_at IS NULL"
		}
	}
	if filter.AssigneeID != "" {
		args = append(args, filter.AssigneeID)
		query += fmt.Sprintf(" AND assignee_id = $%d", len(args))
	}
	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		query += fmt.Sprintf(" AND created_by = $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query todos: %w", err)
	}
	defer rows.Close()

	var out []*Todo
	for rows.Next() {
		todo, err := scanTodo(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		out = append(out, todo)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Save(ctx context.Context, todo *Todo) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO todos (id, organization_id, title, description, created_by, assignee_id, due_at, completed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		todo.ID, todo.OrganizationID, todo.Title, todo.Description, todo.CreatedBy,
		nullString(todo.AssigneeID), nullTime(todo.DueAt), nullTime(todo.CompletedAt),
		todo.CreatedAt, todo.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert todo: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, todo *Todo) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE todos SET title = $3, description = $4, assignee_id = $5, due_at = $6, completed_at = $7, updated_at = $8
		 WHERE organization_id = $1 AND id = $2`,
		todo.OrganizationID, todo.ID, todo.Title, todo.Description,
		nullString(todo.AssigneeID), nullTime(todo.DueAt), nullTime(todo.CompletedAt), todo.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update todo: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) Delete(ctx context.Context, organizationID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM todos WHERE organization_id = $1 AND id = $2`, organizationID, id)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	return requireRow(res)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
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
