package rates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/b2b-storefront/internal/resilience"
)

type memStore struct {
	rows []Rate
	err  error
}

func (m *memStore) Latest(_ context.Context, base, quote string) (Rate, error) {
	if m.err != nil {
		return Rate{}, m.err
	}
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].Base == base && m.rows[i].Quote == quote {
			return m.rows[i], nil
		}
	}
	return Rate{}, ErrNotFound
}

func (m *memStore) Insert(_ context.Context, r Rate) error {
	m.rows = append(m.rows, r)
	return nil
}

func newCache(t *testing.T) (Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return Cache{Client: client, TTL: time.Hour}, mr
}

func TestCurrentFallsBackToDefault(t *testing.T) {
	cache, _ := newCache(t)
	svc := &Service{Store: &memStore{}, Cache: cache, Base: "USD", Quote: "MXN", Default: decimal.RequireFromString("17"), Logger: zerolog.Nop()}
	r := svc.Current(context.Background())
	require.Equal(t, SourceDefault, r.Source)
	require.True(t, r.Value.Equal(decimal.RequireFromString("17")))
}

func TestCurrentPrefersDatabaseThenCache(t *testing.T) {
	cache, mr := newCache(t)
	store := &memStore{rows: []Rate{{Base: "USD", Quote: "MXN", Value: decimal.RequireFromString("18.5"), FetchedAt: time.Now()}}}
	svc := &Service{Store: store, Cache: cache, Base: "USD", Quote: "MXN", Default: decimal.NewFromInt(1), Logger: zerolog.Nop()}

	r := svc.Current(context.Background())
	require.Equal(t, SourceDatabase, r.Source)
	require.True(t, mr.Exists("rates:USD:MXN"))

	store.err = errors.New("db down")
	r = svc.Current(context.Background())
	require.Equal(t, SourceCache, r.Source)
	require.True(t, r.Value.Equal(decimal.RequireFromString("18.5")))
}

func TestCurrentIgnoresStoreErrors(t *testing.T) {
	svc := &Service{Store: &memStore{err: errors.New("db down")}, Base: "USD", Quote: "MXN", Default: decimal.NewFromInt(20), Logger: zerolog.Nop()}
	r := svc.Current(context.Background())
	require.Equal(t, SourceDefault, r.Source)
	require.True(t, r.Value.Equal(decimal.NewFromInt(20)))
}

func TestRefreshStoresAndCaches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "USD", r.URL.Query().Get("base"))
		require.Equal(t, "MXN", r.URL.Query().Get("symbols"))
		_, _ = w.Write([]byte(`{"base":"USD","rates":{"MXN":17.2345}}`))
	}))
	defer srv.Close()

	cache, mr := newCache(t)
	store := &memStore{}
	fixed := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	ref := &Refresher{
		HTTP:      resilience.HTTPClient{Client: srv.Client(), MaxAttempts: 1},
		SourceURL: srv.URL + "/latest",
		Store:     store,
		Cache:     cache,
		Base:      "USD",
		Quote:     "MXN",
		Logger:    zerolog.Nop(),
		Now:       func() time.Time { return fixed },
	}
	rate, err := ref.Refresh(context.Background())
	require.NoError(t, err)
	require.True(t, rate.Value.Equal(decimal.RequireFromString("17.2345")))
	require.Equal(t, fixed, rate.FetchedAt)
	require.Len(t, store.rows, 1)
	require.True(t, mr.Exists("rates:USD:MXN"))
}

func TestRefreshRejectsNonPositiveRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"rate":"0"}`))
	}))
	defer srv.Close()

	store := &memStore{}
	ref := &Refresher{HTTP: resilience.HTTPClient{Client: srv.Client()}, SourceURL: srv.URL, Store: store, Base: "USD", Quote: "MXN", Logger: zerolog.Nop()}
	_, err := ref.Refresh(context.Background())
	require.Error(t, err)
	require.Empty(t, store.rows)
}

func TestProcessTaskSkipsRetryWithoutSource(t *testing.T) {
	ref := &Refresher{Store: &memStore{}, Base: "USD", Quote: "MXN", Logger: zerolog.Nop()}
	err := ref.ProcessTask(context.Background(), NewRefreshTask())
	require.ErrorIs(t, err, ErrNoSource)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type stubQueue struct{ tasks []string }

func (q *stubQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.tasks = append(q.tasks, task.Type())
	return &asynq.TaskInfo{ID: "task-1", Queue: "default"}, nil
}

func TestRefreshHandlerEnqueues(t *testing.T) {
	q := &stubQueue{}
	h := &Handler{Queue: q}
	rec := httptest.NewRecorder()
	h.Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/rates/refresh", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, []string{TaskRefresh}, q.tasks)
}
