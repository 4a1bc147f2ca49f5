package todos

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService() (*Service, *fakeClock) {
	clock := newFakeClock()
	n := 0
	idgen := func() string {
		n++
		return fmt.Sprintf("todo-%04d", n)
	}
	return NewService(NewMemoryStore(), clock, idgen), clock
}

func TestCreateAndGet(t *testing.T) {
	s, clock := newTestService()
	ctx := context.Background()

	todo, err := s.Create(ctx, "org-1", "user-alice", CreateInput{
		Title:       "  Write the report  ",
		Description: "quarterly numbers",
	})
	require.NoError(t, err)
	assert.Equal(t, "Write the report", todo.Title)
	assert.Equal(t, "user-alice", todo.CreatedBy)
	assert.Equal(t, clock.Now(), todo.CreatedAt)
	assert.False(t, todo.Completed())

	got, err := s.Get(ctx, "org-1", todo.ID)
	require.NoError(t, err)
	assert.Equal(t, todo.ID, got.ID)
}

func TestCreateValidatesTitle(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()

	_, err := s.Create(ctx, "org-1", "user-alice", CreateInput{Title: "   "})
	require.NotNil(t, AsError(err))
	assert.Equal(t, CodeInvalidTitle, AsError(err).Code)
	assert.Equal(t, 400, AsError(err).HTTPStatus())

	_, err = s.Create(ctx, "org-1", "user-alice", CreateInput{Title: strings.Repeat("x", 501)})
	require.NotNil(t, AsError(err))
	assert.Equal(t, CodeInvalidTitle, AsError(err).Code)
}

func TestGetEnforcesOrganizationScope(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()

	todo, err := s.Create(ctx, "org-1", "user-alice", CreateInput{Title: "Private"})
	require.NoError(t, err)

	// The same id through another organization is simply not found.
	_, err = s.Get(ctx, "org-2", todo.ID)
	require.NotNil(t, AsError(err))
	assert.Equal(t, CodeTodoNotFound, AsError(err).Code)
	assert.Equal(t, 404, AsError(err).HTTPStatus())
}

func TestUpdateFields(t *testing.T) {
	s, clock := newTestService()
	ctx := context.Background()

	todo, err := s.Create(ctx, "org-1", "user-alice", CreateInput{Title: "Draft"})
	require.NoError(t, err)

	clock.Advance(time.Minute)
	due := clock.Now().Add(48 * time.Hour)
	title := "Final"
	assignee := "user-bob"
	updated, err := s.Update(ctx, "org-1", todo.ID, UpdateInput{
		Title:      &title,
		AssigneeID: &assignee,
		DueAt:      &due,
	})
	require.NoError(t, err)
	assert.Equal(t, "Final", updated.Title)
	assert.Equal(t, "user-bob", updated.AssigneeID)
	require.NotNil(t, updated.DueAt)
	assert.Equal(t, due, *updated.DueAt)
	assert.True(t, updated.UpdatedAt.After(todo.UpdatedAt))

	cleared, err := s.Update(ctx, "org-1", todo.ID, UpdateInput{ClearDueAt: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.DueAt)
}

func TestCompleteAndReopen(t *testing.T) {
	s, clock := newTestService()
	ctx := context.Background()

	todo, err := s.Create(ctx, "org-1", "user-alice", CreateInput{Title: "Ship it"})
	require.NoError(t, err)

	clock.Advance(time.Hour)
	done, err := s.Complete(ctx, "org-1", todo.ID)
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, clock.Now(), *done.CompletedAt)

	// Completing again is a no-op and keeps the original timestamp.
	clock.Advance(time.Hour)
	again, err := s.Complete(ctx, "org-1", todo.ID)
	require.NoError(t, err)
	assert.Equal(t, *done.CompletedAt, *again.CompletedAt)

	reopened, err := s.Reopen(ctx, "org-1", todo.ID)
	require.NoError(t, err)
	assert.Nil(t, reopened.CompletedAt)
}

func TestDelete(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()

	todo, err := s.Create(ctx, "org-1", "user-alice", CreateInput{Title: "Temp"})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "org-1", todo.ID))

	err = s.Delete(ctx, "org-1", todo.ID)
	require.NotNil(t, AsError(err))
	assert.Equal(t, CodeTodoNotFound, AsError(err).Code)
}

func TestListReturnsNewestFirst(t *testing.T) {
	s, clock := newTestService()
	ctx := context.Background()

	oldest, err := s.Create(ctx, "org-1", "user-alice", CreateInput{Title: "First"})
	require.NoError(t, err)
	clock.Advance(time.Minute)
	middle, err := s.Create(ctx, "org-1", "user-alice", CreateInput{Title: "Second"})
	require.NoError(t, err)
	clock.Advance(time.Minute)
	newest, err := s.Create(ctx, "org-1", "user-alice", CreateInput{Title: "Third"})
	require.NoError(t, err)

	list, err := s.List(ctx, "org-1", ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, newest.ID, list[0].ID)
	assert.Equal(t, middle.ID, list[1].ID)
	assert.Equal(t, oldest.ID, list[2].ID)
}

func TestListFilters(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()

	a, err := s.Create(ctx, "org-1", "user-alice", CreateInput{Title: "Open one"})
	require.NoError(t, err)
	b, err := s.Create(ctx, "org-1", "user-bob", CreateInput{Title: "Done one", AssigneeID: "user-carol"})
	require.NoError(t, err)
	_, err = s.Create(ctx, "org-2", "user-alice", CreateInput{Title: "Other org"})
	require.NoError(t, err)
	_, err = s.Complete(ctx, "org-1", b.ID)
	require.NoError(t, err)

	all, err := s.List(ctx, "org-1", ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	open := false
	pending, err := s.List(ctx, "org-1", ListFilter{Completed: &open})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, a.ID, pending[0].ID)

	mine, err := s.List(ctx, "org-1", ListFilter{CreatedBy: "user-bob"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, b.ID, mine[0].ID)

	assigned, err := s.List(ctx, "org-1", ListFilter{AssigneeID: "user-carol"})
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, b.ID, assigned[0].ID)
}
