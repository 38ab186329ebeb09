package common

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteErrorKeepsAppErrorShape(t *testing.T) {
	rec := httptest.NewRecorder()
	err := fmt.Errorf("checkout: %w", NewAppError("COUPON_EXHAUSTED", "coupon usage limit reached", http.StatusConflict, nil))
	WriteError(rec, err)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.JSONEq(t, `{"error":{"code":"COUPON_EXHAUSTED","message":"coupon usage limit reached"}}`, rec.Body.String())
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("pq: relation orders does not exist"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "relation")

	rec = httptest.NewRecorder()
	WriteError(rec, &AppError{Message: "bad quantity"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"code":"BAD_REQUEST"`)
}

func TestDigestSeparatesParts(t *testing.T) {
	require.Len(t, Digest("POST", "/api/v1/checkout"), 64)
	require.Equal(t, Digest("a", "b"), Digest("a", "b"))
	require.NotEqual(t, Digest("ab", "c"), Digest("a", "bc"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quote", nil)
	req.RemoteAddr = "10.0.0.7:41000"
	require.Equal(t, "10.0.0.7", ClientIP(req))

	req.Header.Set("X-Real-IP", "203.0.113.9")
	require.Equal(t, "203.0.113.9", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "garbage, 198.51.100.4, 10.0.0.1")
	require.Equal(t, "198.51.100.4", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "::ffff:192.0.2.1")
	require.Equal(t, "192.0.2.1", ClientIP(req))
}
