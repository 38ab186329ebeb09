package order

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/b2b-storefront/internal/common"
	"github.com/noah-isme/b2b-storefront/internal/events"
	"github.com/noah-isme/b2b-storefront/internal/pricing"
	"github.com/noah-isme/b2b-storefront/internal/repo"
)

type memStore struct {
	orders     map[string]Order
	reportFrom time.Time
	reportTo   time.Time
}

func (m *memStore) Insert(_ context.Context, _ repo.DBTX, o Order) (Order, error) {
	m.orders[o.ID] = o
	return o, nil
}

func (m *memStore) Get(_ context.Context, id, userID string) (Order, error) {
	o, ok := m.orders[id]
	if !ok || (userID != "" && o.UserID != userID) {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (m *memStore) List(_ context.Context, p ListParams) ([]Order, int64, error) {
	out := []Order{}
	for _, o := range m.orders {
		if p.UserID == "" || o.UserID == p.UserID {
			out = append(out, o)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memStore) UpdateStatus(_ context.Context, id string, from, to Status) (Order, error) {
	o := m.orders[id]
	if o.Status != from {
		return Order{}, ErrInvalidTransition
	}
	o.Status = to
	m.orders[id] = o
	return o, nil
}

func (m *memStore) ComboReport(_ context.Context, from, to time.Time) ([]ComboReportRow, error) {
	m.reportFrom, m.reportTo = from, to
	return []ComboReportRow{{GroupKey: "28mm", Orders: 2, Matches: 2, MatchedQuantity: 6, Discount: decimal.NewFromInt(60)}}, nil
}

type captureEmitter struct{ topics []string }

func (c *captureEmitter) Emit(_ context.Context, topic, aggregateID string, _ any) (events.Event, error) {
	c.topics = append(c.topics, topic)
	return events.Event{ID: "e", Topic: topic, AggregateID: aggregateID}, nil
}

func newService() (*Service, *memStore, *captureEmitter) {
	store := &memStore{orders: map[string]Order{
		"o1": {ID: "o1", Number: "01J", UserID: "u1", Status: StatusPending, Totals: pricing.Totals{GrandTotal: decimal.NewFromInt(348)}},
	}}
	em := &captureEmitter{}
	now := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	return &Service{Store: store, Events: em, Now: func() time.Time { return now }, Logger: zerolog.Nop()}, store, em
}

func TestCanTransition(t *testing.T) {
	require.True(t, CanTransition(StatusPending, StatusConfirmed))
	require.True(t, CanTransition(StatusPending, StatusShipped))
	require.True(t, CanTransition(StatusProcessing, StatusCancelled))
	require.False(t, CanTransition(StatusShipped, StatusCancelled))
	require.False(t, CanTransition(StatusConfirmed, StatusPending))
	require.False(t, CanTransition(StatusCancelled, StatusConfirmed))
	require.False(t, CanTransition(StatusPending, Status("lost")))
}

func TestSummarizeMapsPositions(t *testing.T) {
	key := "28mm"
	res := pricing.ComboResult{Matches: []pricing.ComboMatch{{
		GroupKey:        &key,
		MatchedQuantity: 2,
		Discount:        decimal.RequireFromString("30.004"),
		Allocations: []pricing.Allocation{
			{LineID: "a", Side: pricing.SidePrimary, Units: 2, Discount: decimal.NewFromInt(20)},
			{LineID: "b", Side: pricing.SideSecondary, Units: 2, Discount: decimal.RequireFromString("10.004")},
		},
	}}}
	out := Summarize(res, map[string]int{"a": 0, "b": 1}, 2)
	require.Len(t, out, 1)
	require.Equal(t, "30", out[0].Discount.String())
	require.Equal(t, 1, out[0].Lines[1].Position)
	require.Equal(t, pricing.SideSecondary, out[0].Lines[1].Side)
}

func TestChangeStatusKeepsTotalsAndEmits(t *testing.T) {
	svc, store, em := newService()
	o, err := svc.ChangeStatus(context.Background(), "o1", StatusConfirmed, "admin-1")
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, o.Status)
	require.True(t, store.orders["o1"].Totals.GrandTotal.Equal(decimal.NewFromInt(348)))
	require.Equal(t, []string{events.TopicOrderStatusChanged}, em.topics)

	_, err = svc.ChangeStatus(context.Background(), "o1", StatusPending, "admin-1")
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.ChangeStatus(context.Background(), "o1", Status("bogus"), "admin-1")
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestComboReportDefaultsToLast30Days(t *testing.T) {
	svc, store, _ := newService()
	rows, err := svc.ComboReport(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 30*24*time.Hour, store.reportTo.Sub(store.reportFrom))

	_, err = svc.ComboReport(context.Background(), store.reportTo, store.reportFrom)
	require.True(t, common.IsAppError(err))
}

func withOrderID(r *http.Request, key, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestUserCannotReadOtherUsersOrder(t *testing.T) {
	svc, _, _ := newService()
	h := &Handler{Svc: svc}

	req := withOrderID(httptest.NewRequest(http.MethodGet, "/api/v1/orders/o1", nil), "orderId", "o1")
	req = req.WithContext(common.WithUserID(req.Context(), "u2"))
	rec := httptest.NewRecorder()
	h.Get(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)

	req = withOrderID(httptest.NewRequest(http.MethodGet, "/api/v1/orders/o1", nil), "orderId", "o1")
	req = req.WithContext(common.WithUserID(req.Context(), "u1"))
	rec = httptest.NewRecorder()
	h.Get(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"grandTotal":"348"`)
}

func TestAdminHandlers(t *testing.T) {
	svc, _, _ := newService()
	h := &AdminHandler{Svc: svc}

	req := withOrderID(httptest.NewRequest(http.MethodPatch, "/api/v1/admin/orders/o1/status", strings.NewReader(`{"status":"shipped"}`)), "id", "o1")
	rec := httptest.NewRecorder()
	h.PatchStatus(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = withOrderID(httptest.NewRequest(http.MethodPatch, "/api/v1/admin/orders/o1/status", strings.NewReader(`{"status":"cancelled"}`)), "id", "o1")
	rec = httptest.NewRecorder()
	h.PatchStatus(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	h.ComboReport(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/reports/combo?from=2026-06-01&to=2026-07-01", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"groupKey":"28mm"`)

	rec = httptest.NewRecorder()
	h.ComboReport(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/reports/combo?from=yesterday", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil))
	require.Equal(t, "1", rec.Header().Get("X-Total-Count"))
}
