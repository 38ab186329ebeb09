package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/b2b-storefront/internal/health"
)

type fakeDeps struct{ redisErr error }

func (fakeDeps) PingDB(context.Context, time.Duration) error      { return nil }
func (f fakeDeps) PingRedis(context.Context, time.Duration) error { return f.redisErr }

func readyStatus(t *testing.T, h health.Handler) (int, map[string]string) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return rr.Code, body
}

func TestReadyReportsDrainingDuringShutdown(t *testing.T) {
	t.Cleanup(func() { health.SetReady(true) })
	handler := health.Handler{Checker: fakeDeps{}}

	health.SetReady(true)
	code, body := readyStatus(t, handler)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body["db"])

	health.SetReady(false)
	code, body = readyStatus(t, handler)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "draining", body["status"])
}

func TestReadyNamesFailingDependency(t *testing.T) {
	health.SetReady(true)
	handler := health.Handler{Checker: fakeDeps{redisErr: errors.New("dial tcp: connection refused")}}

	code, body := readyStatus(t, handler)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "ok", body["db"])
	require.Equal(t, "dial tcp: connection refused", body["redis"])
}
