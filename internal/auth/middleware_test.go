package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/b2b-storefront/internal/common"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Config{Secret: "test-secret", Issuer: "storefront", Audience: "storefront-web"})
	require.NoError(t, err)
	return svc
}

func TestIssueAndParseRoundTripsRoles(t *testing.T) {
	svc := newTestService(t)
	token, exp, err := svc.Issue("user-1", RoleAdmin)
	require.NoError(t, err)
	require.True(t, exp.After(time.Now()))

	claims, err := svc.ParseAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, []string{RoleAdmin}, claims.Roles)
}

func TestParseRejectsForeignSecret(t *testing.T) {
	other, err := NewService(Config{Secret: "other", Issuer: "storefront", Audience: "storefront-web"})
	require.NoError(t, err)
	token, _, err := other.Issue("user-1")
	require.NoError(t, err)

	_, err = newTestService(t).ParseAccessToken(token)
	require.Error(t, err)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	svc := newTestService(t)
	svc.WithNow(func() time.Time { return time.Now().Add(-time.Hour) })
	token, _, err := svc.Issue("user-1")
	require.NoError(t, err)

	svc.WithNow(time.Now)
	_, err = svc.ParseAccessToken(token)
	require.Error(t, err)
}

func TestRequireAuthAndRole(t *testing.T) {
	svc := newTestService(t)
	mw := Middleware{Service: svc}
	var seenUser string
	protected := mw.RequireAuth(RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser, _ = common.UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	do := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/admin/settings/combo", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusUnauthorized, do(""))

	buyer, _, err := svc.Issue("buyer-1", "buyer")
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, do(buyer))

	admin, _, err := svc.Issue("admin-1", RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, do(admin))
	require.Equal(t, "admin-1", seenUser)
}
