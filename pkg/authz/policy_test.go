package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(role Role, perms ...Permission) *OrgContext {
	return &OrgContext{
		OrganizationID: "org-1",
		Member: Member{
			MembershipID: "mem-1",
			UserID:       "user-1",
			Role:         role,
		},
		Permissions: NewPermissionSet(perms...),
	}
}

func TestRequirePermission(t *testing.T) {
	ctx := testContext(RoleMember, PermTodoCreate, PermTodoRead)

	assert.Nil(t, RequirePermission(PermTodoCreate)(ctx, nil))
	assert.Nil(t, RequirePermission(PermTodoRead)(ctx, nil))

	err := RequirePermission(PermTodoDelete)(ctx, nil)
	require.NotNil(t, err)
	assert.Equal(t, KindMissingPermission, err.Kind)
	assert.Equal(t, "todos:delete", err.Required)
	assert.ElementsMatch(t, []string{"todos:create", "todos:read"}, err.Available)
}

func TestRequireAnyPermission(t *testing.T) {
	ctx := testContext(RoleMember, PermTodoRead)

	// Allowed when any of the requested permissions is held
	assert.Nil(t, RequireAnyPermission(PermTodoDelete, PermTodoRead)(ctx, nil))
	assert.Nil(t, RequireAnyPermission(PermTodoRead, PermTodoDelete)(ctx, nil))

	// Denied: the error reports the FIRST requested permission, in input
	// order, regardless of which one was closer to being satisfied
	err := RequireAnyPermission(PermTodoDelete, PermTodoUpdate)(ctx, nil)
	require.NotNil(t, err)
	assert.Equal(t, KindMissingPermission, err.Kind)
	assert.Equal(t, "todos:delete", err.Required)

	err = RequireAnyPermission(PermTodoUpdate, PermTodoDelete)(ctx, nil)
	require.NotNil(t, err)
	assert.Equal(t, "todos:update", err.Required)
}

func TestRequireAllPermissions(t *testing.T) {
	ctx := testContext(RoleMember, PermTodoRead, PermTodoCreate)

	assert.Nil(t, RequireAllPermissions(PermTodoRead, PermTodoCreate)(ctx, nil))

	// Short-circuits on the first missing permission in input order, even
	// when later permissions are also missing
	err := RequireAllPermissions(PermTodoDelete, PermTodoUpdate)(ctx, nil)
	require.NotNil(t, err)
	assert.Equal(t, "todos:delete", err.Required)

	err = RequireAllPermissions(PermTodoRead, PermTodoUpdate, PermTodoDelete)(ctx, nil)
	require.NotNil(t, err)
	assert.Equal(t, "todos:update", err.Required)
}

func TestRequireCreatorOrPermission_CreatorAlwaysAllowed(t *testing.T) {
	// The context deliberately lacks todos:complete
	ctx := testContext(RoleViewer, PermTodoRead)

	res := &Resource{CreatedBy: ctx.Member.UserID}
	assert.Nil(t, RequireCreatorOrPermission(PermTodoComplete)(ctx, res))
}

func TestRequireCreatorOrPermission_FallbackToPermission(t *testing.T) {
	ctx := testContext(RoleAdmin, PermTodoComplete)

	// Not the creator, but holds the permission
	res := &Resource{CreatedBy: "someone-else"}
	assert.Nil(t, RequireCreatorOrPermission(PermTodoComplete)(ctx, res))

	// Neither creator nor permitted
	bare := testContext(RoleViewer, PermTodoRead)
	err := RequireCreatorOrPermission(PermTodoComplete)(bare, res)
	require.NotNil(t, err)
	assert.Equal(t, KindMissingPermission, err.Kind)
	assert.Equal(t, "todos:complete", err.Required)
}

func TestRequireCreatorOrPermission_NilResourceFailsClosed(t *testing.T) {
	// No resource context: the creator check is treated as "not creator"
	// and the permission fallback still runs
	withPerm := testContext(RoleAdmin, PermTodoComplete)
	assert.Nil(t, RequireCreatorOrPermission(PermTodoComplete)(withPerm, nil))

	withoutPerm := testContext(RoleViewer, PermTodoRead)
	err := RequireCreatorOrPermission(PermTodoComplete)(withoutPerm, nil)
	require.NotNil(t, err)
	assert.Equal(t, KindMissingPermission, err.Kind)
}

func TestRequireCreatorOrPermission_EmptyCreatedByFailsClosed(t *testing.T) {
	ctx := testContext(RoleViewer, PermTodoRead)
	err := RequireCreatorOrPermission(PermTodoComplete)(ctx, &Resource{})
	require.NotNil(t, err)
	assert.Equal(t, KindMissingPermission, err.Kind)
}

func TestCustom(t *testing.T) {
	ctx := testContext(RoleMember, PermTodoRead)

	allow := Custom(func(*OrgContext, *Resource) bool { return true }, "never")
	assert.Nil(t, allow(ctx, nil))

	deny := Custom(func(c *OrgContext, _ *Resource) bool {
		return c.Member.Role == RoleOwner
	}, "owners only")
	err := deny(ctx, nil)
	require.NotNil(t, err)
	assert.Equal(t, KindForbidden, err.Kind)
	assert.Equal(t, "owners only", err.Message)
}

func TestEvaluate_NilContext(t *testing.T) {
	err := Evaluate(RequirePermission(PermTodoRead), nil, nil)
	require.NotNil(t, err)
	assert.Equal(t, KindMissingAuth, err.Kind)
}

func TestErrorHTTPStatus(t *testing.T) {
	tests := []struct {
		kind     ErrorKind
		expected int
	}{
		{KindMissingAuth, 401},
		{KindInvalidRequest, 400},
		{KindNotMember, 403},
		{KindMissingPermission, 403},
		{KindForbidden, 403},
		{KindUnexpected, 500},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := &Error{Kind: tt.kind, Message: "x"}
			assert.Equal(t, tt.expected, err.HTTPStatus())
		})
	}
}
