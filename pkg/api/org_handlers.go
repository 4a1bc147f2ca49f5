package api

import (
	"net/http"

	"github.com/jmhill/demo-todo-sub000/pkg/authz"
	"github.com/jmhill/demo-todo-sub000/pkg/httputil"
	"github.com/jmhill/demo-todo-sub000/pkg/middleware"
)

type createOrgRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

func (s *Server) handleCreateOrg(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())

	var req createOrgRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	org, err := s.opts.OrgService.CreateOrganization(r.Context(), req.Name, req.Slug, principal.UserID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.OrgsCreated.Inc()
	}
	_ = httputil.WriteCreated(w, org)
}

func (s *Server) handleListUserOrgs(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())

	details, err := s.opts.OrgService.ListUserOrganizations(r.Context(), principal.UserID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, details)
}

func (s *Server) handleGetOrg(w http.ResponseWriter, r *http.Request) {
	orgCtx := middleware.OrgContextFromContext(r.Context())

	org, err := s.opts.OrgService.GetOrganization(r.Context(), orgCtx.OrganizationID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, map[string]interface{}{
		"organization": org,
		"role":         orgCtx.Member.Role,
		"permissions":  orgCtx.Permissions.Tokens(),
	})
}

type renameOrgRequest struct {
	Name string `json:"name,omitempty"`
	Slug string `json:"slug,omitempty"`
}

func (s *Server) handleRenameOrg(w http.ResponseWriter, r *http.Request) {
	orgCtx := middleware.OrgContextFromContext(r.Context())

	var req renameOrgRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	org, err := s.opts.OrgService.RenameOrganization(r.Context(), orgCtx.OrganizationID, req.Name, req.Slug)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, org)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	orgCtx := middleware.OrgContextFromContext(r.Context())

	members, err := s.opts.OrgService.ListMembers(r.Context(), orgCtx.OrganizationID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, members)
}

type addMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	orgCtx := middleware.OrgContextFromContext(r.Context())

	var req addMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	membership, err := s.opts.OrgService.AddMember(r.Context(), orgCtx.OrganizationID, req.UserID, authz.Role(req.Role))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	_ = httputil.WriteCreated(w, membership)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	orgCtx := middleware.OrgContextFromContext(r.Context())
	membershipID, ok := httputil.PathVarOrError(w, r, "membership")
	if !ok {
		return
	}

	if err := s.opts.OrgService.RemoveMember(r.Context(), orgCtx.OrganizationID, membershipID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

func (s *Server) handleUpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	orgCtx := middleware.OrgContextFromContext(r.Context())
	membershipID, ok := httputil.PathVarOrError(w, r, "membership")
	if !ok {
		return
	}

	var req updateRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	membership, err := s.opts.OrgService.UpdateMemberRole(r.Context(), orgCtx.OrganizationID, membershipID, authz.Role(req.Role))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, membership)
}

func (s *Server) handleListInvitations(w http.ResponseWriter, r *http.Request) {
	orgCtx := middleware.OrgContextFromContext(r.Context())

	invs, err := s.opts.InviteService.ListInvitations(r.Context(), orgCtx.OrganizationID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, invs)
}

type createInvitationRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (s *Server) handleCreateInvitation(w http.ResponseWriter, r *http.Request) {
	orgCtx := middleware.OrgContextFromContext(r.Context())

	var req createInvitationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	inv, err := s.opts.InviteService.CreateInvitation(r.Context(), orgCtx.OrganizationID, req.Email, authz.Role(req.Role), orgCtx.Member.UserID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.InvitationsSent.Inc()
	}
	_ = httputil.WriteCreated(w, inv)
}

func (s *Server) handleRevokeInvitation(w http.ResponseWriter, r *http.Request) {
	orgCtx := middleware.OrgContextFromContext(r.Context())
	invitationID, ok := httputil.PathVarOrError(w, r, "invitation")
	if !ok {
		return
	}

	if err := s.opts.InviteService.RevokeInvitation(r.Context(), orgCtx.OrganizationID, invitationID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

type acceptInvitationRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())

	var req acceptInvitationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Token == "" {
		httputil.WriteBadRequest(w, "INVALID_REQUEST", "invitation token is required")
		return
	}

	membership, err := s.opts.InviteService.AcceptInvitation(r.Context(), req.Token, principal.UserID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, membership)
}
