package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	products map[string]Product
	getCalls int
	upserts  []Product
}

func (s *stubStore) List(_ context.Context, params ListParams) ([]Product, int64, error) {
	out := []Product{}
	for _, p := range s.products {
		if params.Category == "" || p.Category == params.Category {
			out = append(out, p)
		}
	}
	return out, int64(len(out)), nil
}

func (s *stubStore) GetMany(_ context.Context, ids []string) ([]Product, error) {
	s.getCalls++
	out := []Product{}
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubStore) Upsert(_ context.Context, p Product) (Product, error) {
	if p.ID == "" {
		p.ID = "22222222-2222-2222-2222-222222222222"
	}
	s.upserts = append(s.upserts, p)
	s.products[p.ID] = p
	return p, nil
}

func newTestService(t *testing.T, products ...Product) (*Service, *stubStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := &stubStore{products: map[string]Product{}}
	for _, p := range products {
		store.products[p.ID] = p
	}
	return &Service{Store: store, Cache: NewCache(client, time.Minute), Logger: zerolog.Nop()}, store, mr
}

func TestProductsCachesStoreReads(t *testing.T) {
	p := sampleProduct()
	svc, store, mr := newTestService(t, p)

	found, err := svc.Products(context.Background(), []string{p.ID, p.ID})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, 1, store.getCalls)
	require.True(t, mr.Exists(productKey(p.ID)))

	found, err = svc.Products(context.Background(), []string{p.ID})
	require.NoError(t, err)
	require.Equal(t, 1, store.getCalls)
	require.True(t, found[p.ID].BasePrice.Equal(dec("1.25")))
	require.Len(t, found[p.ID].Options, 2)
}

func TestProductsSkipsInactive(t *testing.T) {
	p := sampleProduct()
	p.Active = false
	svc, _, _ := newTestService(t, p)

	found, err := svc.Products(context.Background(), []string{p.ID})
	require.NoError(t, err)
	require.Empty(t, found)

	_, err = svc.Get(context.Background(), p.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertInvalidatesCache(t *testing.T) {
	p := sampleProduct()
	svc, store, mr := newTestService(t, p)
	_, err := svc.Products(context.Background(), []string{p.ID})
	require.NoError(t, err)
	require.True(t, mr.Exists(productKey(p.ID)))

	p.BasePrice = dec("1.40")
	saved, err := svc.Upsert(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, p.ID, saved.ID)
	require.False(t, mr.Exists(productKey(p.ID)))
	require.Len(t, store.upserts, 1)
}

func TestUpsertValidatesPayload(t *testing.T) {
	svc, store, _ := newTestService(t)
	_, err := svc.Upsert(context.Background(), Product{Name: "missing sku"})
	require.Error(t, err)
	require.Empty(t, store.upserts)
}

func TestProductHandlerNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := &Handler{Service: svc}
	r := chi.NewRouter()
	r.Get("/products/{id}", h.Product)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/33333333-3333-3333-3333-333333333333", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
