// Package audit records security-relevant events: authentication
// outcomes, authorization denials, and mutations to organizations,
// memberships, and todos. Authorization denials are routine security
// events logged at normal severity; infrastructure faults are not audit
// events and belong to the error log.
package audit

import "time"

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventAuthSignup      EventType = "auth.signup"
	EventAuthLogin       EventType = "auth.login"
	EventAuthLoginFailed EventType = "auth.login_failed"
	EventAuthLogout      EventType = "auth.logout"

	// Authorization events
	EventAccessDenied EventType = "authz.access_denied"

	// Organization lifecycle events
	EventOrgCreate           EventType = "org.create"
	EventOrgRename           EventType = "org.rename"
	EventOrgMemberAdd        EventType = "org.member_add"
	EventOrgMemberRemove     EventType = "org.member_remove"
	EventOrgMemberRoleChange EventType = "org.member_role_change"

	// Invitation events
	EventInviteCreate EventType = "org.invite_create"
	EventInviteAccept EventType = "org.invite_accept"
	EventInviteRevoke EventType = "org.invite_revoke"

	// Todo mutation events
	EventTodoCreate   EventType = "todo.create"
	EventTodoUpdate   EventType = "todo.update"
	EventTodoComplete EventType = "todo.complete"
	EventTodoDelete   EventType = "todo.delete"
)

// Status represents the outcome of an event
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusDenied  Status = "denied"
)

// ResourceType represents the type of resource an event touches
type ResourceType string

const (
	ResourceUser         ResourceType = "user"
	ResourceOrganization ResourceType = "organization"
	ResourceMembership   ResourceType = "membership"
	ResourceInvitation   ResourceType = "invitation"
	ResourceTodo         ResourceType = "todo"
)

// Event is a single audit log entry.
type Event struct {
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	EventType EventType `json:"event_type"`
	Status    Status    `json:"status"`

	// Actor
	UserID         string `json:"user_id,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`

	// Resource
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	// Request context
	RequestID string `json:"request_id,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`

	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
