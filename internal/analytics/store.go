package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/b2b-storefront/internal/repo"
)

// PGStore implements Querier over the orders tables.
type PGStore struct {
	Pool *pgxpool.Pool
}

// SalesDaily implements Querier.
func (s PGStore) SalesDaily(ctx context.Context, from, to time.Time) ([]DailySales, error) {
	const sql = `
SELECT date_trunc('day', created_at) AS day,
	count(*),
	sum(subtotal)::text, sum(combo_discount)::text, sum(coupon_discount)::text,
	sum(tax_amount)::text, sum(grand_total)::text
FROM orders
WHERE created_at >= $1 AND created_at < $2 AND status <> 'cancelled'
GROUP BY 1
ORDER BY 1`
	rows, err := s.Pool.Query(ctx, sql, from, to)
	if err != nil {
		return nil, fmt.Errorf("sales daily: %w", err)
	}
	defer rows.Close()

	out := []DailySales{}
	for rows.Next() {
		var (
			d                                        DailySales
			subtotal, combo, coupon, tax, grandTotal pgtype.Text
		)
		if err := rows.Scan(&d.Day, &d.Orders, &subtotal, &combo, &coupon, &tax, &grandTotal); err != nil {
			return nil, fmt.Errorf("scan sales daily: %w", err)
		}
		d.Subtotal = repo.Decimal(subtotal)
		d.ComboDiscount = repo.Decimal(combo)
		d.CouponDiscount = repo.Decimal(coupon)
		d.Tax = repo.Decimal(tax)
		d.GrandTotal = repo.Decimal(grandTotal)
		out = append(out, d)
	}
	return out, rows.Err()
}

// TopProducts implements Querier.
func (s PGStore) TopProducts(ctx context.Context, from, to time.Time, limit, offset int) ([]TopProduct, error) {
	const sql = `
SELECT l.product_id::text, max(l.sku), max(l.name),
	sum(l.unit_count), sum(l.extended_total)::text,
	sum(l.combo_units), sum(l.combo_discount)::text
FROM order_lines l
JOIN orders o ON o.id = l.order_id
WHERE o.created_at >= $1 AND o.created_at < $2 AND o.status <> 'cancelled'
GROUP BY l.product_id
ORDER BY sum(l.unit_count) DESC, l.product_id
LIMIT $3 OFFSET $4`
	rows, err := s.Pool.Query(ctx, sql, from, to, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	defer rows.Close()

	out := []TopProduct{}
	for rows.Next() {
		var (
			p              TopProduct
			revenue, combo pgtype.Text
		)
		if err := rows.Scan(&p.ProductID, &p.SKU, &p.Name, &p.Units, &revenue, &p.ComboUnits, &combo); err != nil {
			return nil, fmt.Errorf("scan top products: %w", err)
		}
		p.Revenue = repo.Decimal(revenue)
		p.ComboDiscount = repo.Decimal(combo)
		out = append(out, p)
	}
	return out, rows.Err()
}
