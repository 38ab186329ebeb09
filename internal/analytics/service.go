// Package analytics serves cached sales figures broken down by pricing stage.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// DailySales is one day of non-cancelled orders with the discount breakdown.
type DailySales struct {
	Day            time.Time       `json:"day"`
	Orders         int64           `json:"orders"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	ComboDiscount  decimal.Decimal `json:"comboDiscount"`
	CouponDiscount decimal.Decimal `json:"couponDiscount"`
	Tax            decimal.Decimal `json:"tax"`
	GrandTotal     decimal.Decimal `json:"grandTotal"`
}

// TopProduct ranks a product by units sold.
type TopProduct struct {
	ProductID     string          `json:"productId"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Units         int64           `json:"units"`
	Revenue       decimal.Decimal `json:"revenue"`
	ComboUnits    int64           `json:"comboUnits"`
	ComboDiscount decimal.Decimal `json:"comboDiscount"`
}

// Querier defines the database access required for analytics operations.
type Querier interface {
	SalesDaily(ctx context.Context, from, to time.Time) ([]DailySales, error)
	TopProducts(ctx context.Context, from, to time.Time, limit, offset int) ([]TopProduct, error)
}

// Service provides cached access to order aggregates.
type Service struct {
	Q            Querier
	R            *redis.Client
	TTL          time.Duration
	DefaultRange int
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts))
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

// SalesRange returns daily sales between from (inclusive) and to (exclusive).
func (s *Service) SalesRange(ctx context.Context, from, to time.Time) ([]DailySales, error) {
	if s == nil || s.Q == nil {
		return nil, fmt.Errorf("analytics service not configured")
	}
	key := cacheKey("an", "sales", from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	var rows []DailySales
	if s.load(ctx, key, &rows) {
		return rows, nil
	}
	rows, err := s.Q.SalesDaily(ctx, from, to)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, rows)
	return rows, nil
}

// TopProducts returns products ordered by units sold in the range.
func (s *Service) TopProducts(ctx context.Context, from, to time.Time, limit, offset int) ([]TopProduct, error) {
	if s == nil || s.Q == nil {
		return nil, fmt.Errorf("analytics service not configured")
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	key := cacheKey("an", "top", from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339), limit, offset)
	var rows []TopProduct
	if s.load(ctx, key, &rows) {
		return rows, nil
	}
	rows, err := s.Q.TopProducts(ctx, from, to, limit, offset)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, rows)
	return rows, nil
}

func (s *Service) load(ctx context.Context, key string, dst any) bool {
	if s.R == nil || s.TTL <= 0 {
		return false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, data, s.TTL).Err()
}
