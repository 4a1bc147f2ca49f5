package authz

import (
	"sort"
)

// Role represents an organization-level role
type Role string

const (
	RoleOwner  Role = "owner"  // Full control, including org deletion
	RoleAdmin  Role = "admin"  // Manage members, settings, all todos
	RoleMember Role = "member" // Create and work on todos
	RoleViewer Role = "viewer" // Read-only access
)

// Roles lists all valid roles in descending rank order.
func Roles() []Role {
	return []Role{RoleOwner, RoleAdmin, RoleMember, RoleViewer}
}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// ResourceType represents a resource type in the system
type ResourceType string

const (
	ResourceTodos      ResourceType = "todos"
	ResourceOrg        ResourceType = "org"
	ResourceOrgMembers ResourceType = "org:members"
)

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionCreate     Action = "create"
	ActionRead       Action = "read"
	ActionUpdate     Action = "update"
	ActionComplete   Action = "complete"
	ActionDelete     Action = "delete"
	ActionInvite     Action = "invite"
	ActionRemove     Action = "remove"
	ActionUpdateRole Action = "update_role"
)

// Permission represents a specific permission (resource + action)
type Permission struct {
	Resource ResourceType `json:"resource"`
	Action   Action       `json:"action"`
}

// String returns the permission token, e.g. "todos:create".
func (p Permission) String() string {
	return string(p.Resource) + ":" + string(p.Action)
}

// The closed permission vocabulary.
var (
	PermTodoCreate   = Permission{ResourceTodos, ActionCreate}
	PermTodoRead     = Permission{ResourceTodos, ActionRead}
	PermTodoUpdate   = Permission{ResourceTodos, ActionUpdate}
	PermTodoComplete = Permission{ResourceTodos, ActionComplete}
	PermTodoDelete   = Permission{ResourceTodos, ActionDelete}

	PermOrgRead   = Permission{ResourceOrg, ActionRead}
	PermOrgUpdate = Permission{ResourceOrg, ActionUpdate}
	PermOrgDelete = Permission{ResourceOrg, ActionDelete}

	PermMembersRead       = Permission{ResourceOrgMembers, ActionRead}
	PermMembersInvite     = Permission{ResourceOrgMembers, ActionInvite}
	PermMembersRemove     = Permission{ResourceOrgMembers, ActionRemove}
	PermMembersUpdateRole = Permission{ResourceOrgMembers, ActionUpdateRole}
)

// PermissionSet is a set of permissions. Sets handed out by the catalog
// or carried by an OrgContext must be treated as immutable by callers.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from the given permissions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Has reports whether p is in the set.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Clone returns an independent copy of the set.
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

// List returns the permissions sorted by token for stable output.
func (s PermissionSet) List() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Tokens returns the sorted string tokens of the set.
func (s PermissionSet) Tokens() []string {
	perms := s.List()
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = p.String()
	}
	return out
}

// Member is the membership view the policy engine needs: who the member
// is and which role they hold in the organization being accessed.
type Member struct {
	MembershipID string `json:"membership_id"`
	UserID       string `json:"user_id"`
	Role         Role   `json:"role"`
}

// OrgContext is the per-request authorization context produced by the
// membership resolver. It is immutable after construction and never
// shared across requests.
type OrgContext struct {
	OrganizationID string
	Member         Member
	Permissions    PermissionSet
}

// Can reports whether the context carries the given permission.
func (c *OrgContext) Can(p Permission) bool {
	return c != nil && c.Permissions.Has(p)
}

// Resource is the optional resource context supplied by handlers to
// creator-aware policies.
type Resource struct {
	// CreatedBy is the user ID that created the resource. Empty means
	// unknown, which fails the creator check closed.
	CreatedBy string

	// Attributes carries arbitrary fields for Custom policies.
	Attributes map[string]interface{}
}
