package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/b2b-storefront/internal/common"
)

// Service exposes catalog reads with a Redis cache in front of the store.
type Service struct {
	Store  Store
	Cache  *Cache
	Logger zerolog.Logger
}

// ListResult is a page of products.
type ListResult struct {
	Items []Product
	Total int64
}

// List returns a page of products.
func (s *Service) List(ctx context.Context, params ListParams) (ListResult, error) {
	if params.Limit <= 0 {
		params.Limit = 20
	}
	items, total, err := s.Store.List(ctx, params)
	if err != nil {
		return ListResult{}, err
	}
	if items == nil {
		items = []Product{}
	}
	return ListResult{Items: items, Total: total}, nil
}

// Get returns an active product.
func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	found, err := s.Products(ctx, []string{id})
	if err != nil {
		return Product{}, err
	}
	p, ok := found[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

// Products loads active products by id. Unknown or inactive ids are absent from the result.
func (s *Service) Products(ctx context.Context, ids []string) (map[string]Product, error) {
	ids = uniqueIDs(ids)
	found, err := s.Cache.GetMany(ctx, ids)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("catalog cache read failed")
		found = map[string]Product{}
	}
	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		loaded, err := s.Store.GetMany(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("load products: %w", err)
		}
		for _, p := range loaded {
			found[p.ID] = p
		}
		if err := s.Cache.SetMany(ctx, loaded); err != nil {
			s.Logger.Warn().Err(err).Msg("catalog cache write failed")
		}
	}
	for id, p := range found {
		if !p.Active {
			delete(found, id)
		}
	}
	return found, nil
}

// Upsert validates and saves a product, then drops its cache entry.
func (s *Service) Upsert(ctx context.Context, p Product) (Product, error) {
	p.SKU = strings.TrimSpace(p.SKU)
	p.Category = strings.TrimSpace(p.Category)
	p.GroupKey = strings.TrimSpace(p.GroupKey)
	if err := common.ValidateStruct(p); err != nil {
		return Product{}, err
	}
	if err := p.Validate(); err != nil {
		return Product{}, err
	}
	saved, err := s.Store.Upsert(ctx, p)
	if err != nil {
		return Product{}, err
	}
	if err := s.Cache.Invalidate(ctx, saved.ID); err != nil {
		s.Logger.Warn().Err(err).Str("product_id", saved.ID).Msg("catalog cache invalidate failed")
	}
	return saved, nil
}

// IsClientError reports whether err stems from caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnknownOption) || errors.Is(err, ErrInvalidProduct)
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
