package settings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/b2b-storefront/internal/common"
	"github.com/noah-isme/b2b-storefront/internal/events"
	"github.com/noah-isme/b2b-storefront/internal/pricing"
)

type memStore struct {
	combos []ComboRevision
	values map[string]string
	reads  int
}

func newMemStore() *memStore { return &memStore{values: map[string]string{}} }

func (m *memStore) LatestCombo(context.Context) (ComboRevision, error) {
	m.reads++
	if len(m.combos) == 0 {
		return ComboRevision{}, ErrNotFound
	}
	return m.combos[len(m.combos)-1], nil
}

func (m *memStore) InsertCombo(_ context.Context, cfg pricing.ComboConfig, actor string) (ComboRevision, error) {
	cfg.Version = len(m.combos) + 1
	rev := ComboRevision{ComboConfig: cfg, CreatedBy: actor, CreatedAt: time.Now()}
	m.combos = append(m.combos, rev)
	return rev, nil
}

func (m *memStore) ComboHistory(_ context.Context, limit int) ([]ComboRevision, error) {
	out := []ComboRevision{}
	for i := len(m.combos) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.combos[i])
	}
	return out, nil
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *memStore) Put(_ context.Context, key, value, _ string) error {
	m.values[key] = value
	return nil
}

func newService(store Store) *Service {
	return &Service{Store: store, DefaultTaxRate: decimal.NewFromInt(16), Logger: zerolog.Nop()}
}

func activeConfig() pricing.ComboConfig {
	return pricing.ComboConfig{
		Active:                 true,
		DiscountType:           pricing.DiscountPercentage,
		DiscountValue:          decimal.NewFromInt(5),
		PrimaryCategory:        "bottle",
		SecondaryCategory:      "cap",
		RequireSameGroupKey:    true,
		MinimumMatchedQuantity: 50,
	}
}

func TestComboDefaultsWhenNothingStored(t *testing.T) {
	svc := newService(newMemStore())
	cfg, err := svc.Combo(context.Background())
	require.NoError(t, err)
	require.Equal(t, pricing.DefaultComboConfig(), cfg)
}

func TestComboReadsLatestVersionEveryCall(t *testing.T) {
	store := newMemStore()
	svc := newService(store)
	ctx := context.Background()

	_, err := svc.SaveCombo(ctx, activeConfig(), "admin-1")
	require.NoError(t, err)
	first, err := svc.Combo(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, first.Version)

	next := activeConfig()
	next.DiscountValue = decimal.NewFromInt(7)
	_, err = svc.SaveCombo(ctx, next, "admin-1")
	require.NoError(t, err)

	second, err := svc.Combo(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, second.Version)
	require.True(t, second.DiscountValue.Equal(decimal.NewFromInt(7)))
	require.Equal(t, 2, store.reads)

	history, err := svc.ComboHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, 2, history[0].Version)
}

type recordingEmitter struct {
	topics []string
	ids    []string
}

func (e *recordingEmitter) Emit(_ context.Context, topic, aggregateID string, _ any) (events.Event, error) {
	e.topics = append(e.topics, topic)
	e.ids = append(e.ids, aggregateID)
	return events.Event{Topic: topic, AggregateID: aggregateID}, nil
}

func TestSaveComboEmitsChange(t *testing.T) {
	em := &recordingEmitter{}
	svc := newService(newMemStore())
	svc.Events = em

	_, err := svc.SaveCombo(context.Background(), activeConfig(), "admin-1")
	require.NoError(t, err)
	require.Equal(t, []string{events.TopicComboConfigChanged}, em.topics)
	require.Equal(t, []string{"1"}, em.ids)

	bad := activeConfig()
	bad.SecondaryCategory = bad.PrimaryCategory
	_, err = svc.SaveCombo(context.Background(), bad, "admin-1")
	require.Error(t, err)
	require.Len(t, em.topics, 1)
}

func TestSaveComboRejectsInvalid(t *testing.T) {
	svc := newService(newMemStore())
	cfg := activeConfig()
	cfg.SecondaryCategory = " bottle "
	_, err := svc.SaveCombo(context.Background(), cfg, "admin-1")
	require.ErrorIs(t, err, pricing.ErrInvalidComboConfig)
}

func TestTaxRateFallbackAndOverride(t *testing.T) {
	svc := newService(newMemStore())
	ctx := context.Background()

	rate, err := svc.TaxRate(ctx)
	require.NoError(t, err)
	require.True(t, rate.Equal(decimal.NewFromInt(16)))

	require.NoError(t, svc.SetTaxRate(ctx, decimal.RequireFromString("8.5"), "admin-1"))
	rate, err = svc.TaxRate(ctx)
	require.NoError(t, err)
	require.True(t, rate.Equal(decimal.RequireFromString("8.5")))

	require.ErrorIs(t, svc.SetTaxRate(ctx, decimal.NewFromInt(-1), "admin-1"), ErrInvalidTaxRate)
}

func TestPutComboHandler(t *testing.T) {
	h := &Handler{Service: newService(newMemStore())}
	body := `{"active":true,"discountType":"fixed","discountValue":"0.02","primaryCategory":"bottle","secondaryCategory":"cap","requireSameGroupKey":false,"minimumMatchedQuantity":0}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/settings/combo", strings.NewReader(body))
	req = req.WithContext(common.WithUserID(req.Context(), "admin-1"))
	rec := httptest.NewRecorder()
	h.PutCombo(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data ComboRevision `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Data.Version)
	require.Equal(t, "admin-1", resp.Data.CreatedBy)
	require.Equal(t, pricing.DiscountFixed, resp.Data.DiscountType)

	bad := httptest.NewRequest(http.MethodPut, "/api/v1/admin/settings/combo", strings.NewReader(`{"active":true,"discountType":"bogus"}`))
	rec = httptest.NewRecorder()
	h.PutCombo(rec, bad)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
