package obs_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/b2b-storefront/internal/common"
	"github.com/noah-isme/b2b-storefront/internal/obs"
)

func withUser(id string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(common.WithUserID(r.Context(), id)))
		})
	}
}

func serveLogged(t *testing.T, method, target string, status int) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(obs.RequestLogger{Logger: zerolog.New(&buf)}.Middleware)
	r.Route("/api/v1", func(v chi.Router) {
		v.Use(withUser("user-42"))
		v.Get("/cart", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(status) })
		v.Patch("/admin/orders/{id}/status", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(status) })
	})
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(status) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, target, nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	return line
}

func TestRequestLoggerCarriesUserFromSubrouter(t *testing.T) {
	line := serveLogged(t, http.MethodGet, "/api/v1/cart", http.StatusOK)
	require.Equal(t, "user-42", line["user_id"])
	require.Equal(t, "/api/v1/cart", line["route"])
	require.Equal(t, "info", line["level"])
	require.EqualValues(t, 200, line["status"])
}

func TestRequestLoggerUsesMatchedPatternAndLevel(t *testing.T) {
	line := serveLogged(t, http.MethodPatch, "/api/v1/admin/orders/o-9/status", http.StatusConflict)
	require.Equal(t, "/api/v1/admin/orders/{id}/status", line["route"])
	require.Equal(t, "/api/v1/admin/orders/o-9/status", line["path"])
	require.Equal(t, "warn", line["level"])
}

func TestRequestLoggerAnonymousRequest(t *testing.T) {
	line := serveLogged(t, http.MethodGet, "/health/live", http.StatusServiceUnavailable)
	_, ok := line["user_id"]
	require.False(t, ok)
	require.Equal(t, "error", line["level"])
}
