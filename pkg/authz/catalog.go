package authz

// rolePermissions is the static role/permission catalog. It is built once
// at package init and never mutated afterwards; PermissionsForRole hands
// out defensive copies so callers cannot poison the table.
//
// Each role extends the one below it. That monotonicity is a design
// convention rather than a derived property: real catalogs sometimes want
// least-privilege exceptions, so each role's set is spelled out in full
// and pinned by tests per role.
var rolePermissions = map[Role]PermissionSet{
	RoleViewer: NewPermissionSet(
		PermTodoRead,
		PermOrgRead,
		PermMembersRead,
	),
	RoleMember: NewPermissionSet(
		PermTodoRead,
		PermOrgRead,
		PermMembersRead,
		PermTodoCreate,
		PermTodoUpdate,
		PermTodoComplete,
	),
	RoleAdmin: NewPermissionSet(
		PermTodoRead,
		PermOrgRead,
		PermMembersRead,
		PermTodoCreate,
		PermTodoUpdate,
		PermTodoComplete,
		PermTodoDelete,
		PermOrgUpdate,
		PermMembersInvite,
		PermMembersRemove,
		PermMembersUpdateRole,
	),
	RoleOwner: NewPermissionSet(
		PermTodoRead,
		PermOrgRead,
		PermMembersRead,
		PermTodoCreate,
		PermTodoUpdate,
		PermTodoComplete,
		PermTodoDelete,
		PermOrgUpdate,
		PermMembersInvite,
		PermMembersRemove,
		PermMembersUpdateRole,
		PermOrgDelete,
	),
}

// PermissionsForRole returns the permission set for a role. The role type
// is closed, so an unrecognized role is a programming error upstream; the
// function stays total and returns an empty set rather than branching on
// it. The returned set is a copy and safe to hold.
func PermissionsForRole(role Role) PermissionSet {
	set, ok := rolePermissions[role]
	if !ok {
		return PermissionSet{}
	}
	return set.Clone()
}
