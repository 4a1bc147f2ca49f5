package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/jmhill/demo-todo-sub000/pkg/audit"
	"github.com/jmhill/demo-todo-sub000/pkg/authz"
	"github.com/jmhill/demo-todo-sub000/pkg/contextkeys"
	"github.com/jmhill/demo-todo-sub000/pkg/httputil"
	"github.com/jmhill/demo-todo-sub000/pkg/orgs"
)

// OrgPathVar is the route variable carrying the organization reference.
// It accepts either a slug or an organization id.
const OrgPathVar = "org"

// notMember is the single denial written whether the organization does
// not exist or the caller is simply not a member of it. The two cases
// must be byte-identical so outsiders cannot probe which slugs exist.
func notMember(w http.ResponseWriter) {
	httputil.WriteForbidden(w, string(authz.KindNotMember), "you are not a member of this organization")
}

// ResolveMembership resolves the {org} path variable to the caller's
// membership and attaches an authorization context for downstream
// gates and handlers.
func ResolveMembership(service *orgs.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			if principal == nil {
				httputil.WriteUnauthorized(w, "MISSING_AUTH", "authentication required")
				return
			}

			ref := mux.Vars(r)[OrgPathVar]
			if ref == "" {
				httputil.WriteBadRequest(w, "INVALID_REQUEST", "missing organization reference")
				return
			}

			org, err := lookupOrg(r.Context(), service, ref)
			if err != nil {
				if typed := orgs.AsError(err); typed != nil && typed.Code == orgs.CodeOrganizationNotFound {
					auditDenied(r, principal.UserID, "", "organization membership")
					notMember(w)
					return
				}
				httputil.WriteInternalError(w)
				return
			}

			membership, err := service.ResolveMembership(r.Context(), principal.UserID, org.ID)
			if err != nil {
				if typed := orgs.AsError(err); typed != nil && typed.Code == orgs.CodeMembershipNotFound {
					auditDenied(r, principal.UserID, org.ID, "organization membership")
					notMember(w)
					return
				}
				httputil.WriteInternalError(w)
				return
			}

			orgCtx := &authz.OrgContext{
				OrganizationID: org.ID,
				Member: authz.Member{
					MembershipID: membership.ID,
					UserID:       membership.UserID,
					Role:         membership.Role,
				},
				Permissions: authz.PermissionsForRole(membership.Role),
			}

			ctx := contextkeys.WithOrgContext(r.Context(), orgCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func lookupOrg(ctx context.Context, service *orgs.Service, ref string) (*orgs.Organization, error) {
	if _, err := uuid.Parse(ref); err == nil {
		return service.GetOrganization(ctx, ref)
	}
	return service.GetOrganizationBySlug(ctx, ref)
}

// OrgContextFromContext returns the resolved authorization context, or
// nil when membership resolution has not run.
func OrgContextFromContext(ctx context.Context) *authz.OrgContext {
	oc, _ := ctx.Value(contextkeys.OrgContextKey).(*authz.OrgContext)
	return oc
}

// RequireOrgPermission gates a route on the caller holding at least one
// of the listed permissions. Must run after ResolveMembership.
func RequireOrgPermission(perms ...authz.Permission) func(http.Handler) http.Handler {
	policy := authz.RequireAnyPermission(perms...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			orgCtx := OrgContextFromContext(r.Context())
			if denial := authz.Evaluate(policy, orgCtx, nil); denial != nil {
				WriteAuthzError(w, r, denial)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteAuthzError renders a policy denial as the standard envelope and
// records the denial in the audit log.
func WriteAuthzError(w http.ResponseWriter, r *http.Request, denial *authz.Error) {
	var details map[string]interface{}
	if denial.Kind == authz.KindMissingPermission {
		details = map[string]interface{}{
			"required":  denial.Required,
			"available": denial.Available,
		}
	}

	orgID := ""
	userID := contextkeys.GetUserID(r.Context())
	if oc := OrgContextFromContext(r.Context()); oc != nil {
		orgID = oc.OrganizationID
	}
	if denial.Kind == authz.KindMissingPermission || denial.Kind == authz.KindForbidden {
		auditDenied(r, userID, orgID, denial.Required)
	}

	httputil.WriteErrorDetails(w, denial.HTTPStatus(), string(denial.Kind), denial.Message, details)
}

func auditDenied(r *http.Request, userID, orgID, required string) {
	event := &audit.Event{
		EventType:      audit.EventAccessDenied,
		Status:         audit.StatusDenied,
		UserID:         userID,
		OrganizationID: orgID,
		IPAddress:      audit.ClientIP(r),
		Message:        "access denied",
	}
	if required != "" {
		event.Metadata = map[string]interface{}{"required": required}
	}
	audit.FromContext(r.Context()).Log(r.Context(), event)
}
