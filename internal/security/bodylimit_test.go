package security

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const quotePayload = `{"lines":[{"productId":"6f1c2f9e-0d7a-4c1e-9f3a-2b8d5e7c4a10","quantity":12}]}`

func echoBody(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		_, _ = w.Write(data)
	})
}

func TestBodyLimitPassesQuotePayload(t *testing.T) {
	handler := BodyLimit{Max: int64(len(quotePayload))}.Middleware(echoBody(t))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quote", strings.NewReader(quotePayload))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, quotePayload, rr.Body.String())
}

func TestBodyLimitRejectsOversizedCheckout(t *testing.T) {
	handler := BodyLimit{Max: 64}.Middleware(echoBody(t))
	payload := `{"shippingAddress":"` + strings.Repeat("x", 128) + `"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(payload))
	req.ContentLength = -1
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	var body struct {
		Error struct {
			Code    string           `json:"code"`
			Details map[string]int64 `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "PAYLOAD_TOO_LARGE", body.Error.Code)
	require.EqualValues(t, 64, body.Error.Details["max_bytes"])
}

func TestBodyLimitTrustsDeclaredLength(t *testing.T) {
	handler := BodyLimit{Max: 16}.Middleware(echoBody(t))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quote", strings.NewReader(`{"lines":[]}`))
	req.ContentLength = 1 << 20
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

type brokenBody struct{}

func (brokenBody) Read([]byte) (int, error) { return 0, errors.New("connection reset") }
func (brokenBody) Close() error             { return nil }

func TestBodyLimitReportsUnreadableBody(t *testing.T) {
	handler := BodyLimit{Max: 1024}.Middleware(echoBody(t))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/lines", nil)
	req.Body = brokenBody{}
	req.ContentLength = -1
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBodyLimitIgnoresCatalogReads(t *testing.T) {
	handler := BodyLimit{Max: 1}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
}
