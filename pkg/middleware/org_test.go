package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmhill/demo-todo-sub000/pkg/auth"
	"github.com/jmhill/demo-todo-sub000/pkg/authz"
	"github.com/jmhill/demo-todo-sub000/pkg/contextkeys"
	"github.com/jmhill/demo-todo-sub000/pkg/orgs"
)

type orgFixture struct {
	service *orgs.Service
	org     *orgs.Organization
	router  *mux.Router
	seen    *authz.OrgContext
}

// newOrgFixture builds a service with one organization owned by
// user-owner plus user-member as a plain member, and a router that
// resolves membership before a recording handler.
func newOrgFixture(t *testing.T, gates ...func(http.Handler) http.Handler) *orgFixture {
	t.Helper()
	f := &orgFixture{
		service: orgs.NewService(orgs.NewMemoryOrganizationStore(), orgs.NewMemoryMembershipStore(), nil, nil, nil),
	}

	org, err := f.service.CreateOrganization(context.Background(), "Acme", "acme", "user-owner")
	require.NoError(t, err)
	f.org = org
	_, err = f.service.AddMember(context.Background(), org.ID, "user-member", authz.RoleMember)
	require.NoError(t, err)

	record := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.seen = OrgContextFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	var handler http.Handler = record
	for i := len(gates) - 1; i >= 0; i-- {
		handler = gates[i](handler)
	}

	f.router = mux.NewRouter()
	f.router.Handle("/orgs/{org}", ResolveMembership(f.service)(handler))
	return f
}

func (f *orgFixture) request(t *testing.T, userID, orgRef string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest("GET", "/orgs/"+orgRef, nil)
	if userID != "" {
		ctx := contextkeys.WithPrincipal(r.Context(), &auth.Principal{UserID: userID})
		ctx = contextkeys.WithUserID(ctx, userID)
		r = r.WithContext(ctx)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

func TestResolveMembershipBySlugAndID(t *testing.T) {
	f := newOrgFixture(t)

	w := f.request(t, "user-owner", "acme")
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, f.seen)
	assert.Equal(t, f.org.ID, f.seen.OrganizationID)
	assert.Equal(t, authz.RoleOwner, f.seen.Member.Role)
	assert.True(t, f.seen.Can(authz.PermOrgDelete))

	f.seen = nil
	w = f.request(t, "user-member", f.org.ID)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, f.seen)
	assert.Equal(t, authz.RoleMember, f.seen.Member.Role)
	assert.False(t, f.seen.Can(authz.PermOrgDelete))
}

func TestResolveMembershipRequiresPrincipal(t *testing.T) {
	f := newOrgFixture(t)

	w := f.request(t, "", "acme")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "MISSING_AUTH", decodeError(t, w.Body.Bytes()).Code)
}

func TestNonMemberAndMissingOrgAreIndistinguishable(t *testing.T) {
	f := newOrgFixture(t)

	stranger := f.request(t, "user-stranger", "acme")
	noSuchOrg := f.request(t, "user-stranger", "no-such-org")

	assert.Equal(t, http.StatusForbidden, stranger.Code)
	assert.Equal(t, http.StatusForbidden, noSuchOrg.Code)
	assert.Equal(t, stranger.Body.String(), noSuchOrg.Body.String(),
		"denials must not reveal whether the organization exists")
}

func TestRequireOrgPermissionAllows(t *testing.T) {
	f := newOrgFixture(t, RequireOrgPermission(authz.PermTodoCreate))

	w := f.request(t, "user-member", "acme")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireOrgPermissionDenies(t *testing.T) {
	f := newOrgFixture(t, RequireOrgPermission(authz.PermMembersInvite))

	w := f.request(t, "user-member", "acme")
	assert.Equal(t, http.StatusForbidden, w.Code)
	body := decodeError(t, w.Body.Bytes())
	assert.Equal(t, "MISSING_PERMISSION", body.Code)
	assert.Equal(t, "org:members:invite", body.Details["required"])
	assert.NotEmpty(t, body.Details["available"])
}

func TestRequireOrgPermissionAnySemantics(t *testing.T) {
	// A member holds todos:update but not org:members:invite; either
	// suffices.
	f := newOrgFixture(t, RequireOrgPermission(authz.PermMembersInvite, authz.PermTodoUpdate))

	w := f.request(t, "user-member", "acme")
	assert.Equal(t, http.StatusOK, w.Code)
}
