package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/b2b-storefront/internal/repo"
)

// ListParams filters order listings. An empty UserID lists every user's orders.
type ListParams struct {
	UserID string
	Status Status
	Limit  int
	Offset int
}

// Store persists orders.
type Store interface {
	Insert(ctx context.Context, db repo.DBTX, o Order) (Order, error)
	Get(ctx context.Context, id, userID string) (Order, error)
	List(ctx context.Context, params ListParams) ([]Order, int64, error)
	UpdateStatus(ctx context.Context, id string, from, to Status) (Order, error)
	ComboReport(ctx context.Context, from, to time.Time) ([]ComboReportRow, error)
}

// PGStore implements Store on Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
}

const orderColumns = `id, number, user_id, status, currency, subtotal::text, combo_discount::text,
coupon_discount::text, tax_amount::text, grand_total::text, coupon_code, combo_config_version,
reference_rate::text, tax_rate_percent::text, combo_matches, notes, created_at, updated_at`

// Insert writes the order and its lines using db, normally a transaction.
func (s PGStore) Insert(ctx context.Context, db repo.DBTX, o Order) (Order, error) {
	matches, err := json.Marshal(nonNilMatches(o.ComboMatches))
	if err != nil {
		return Order{}, err
	}
	var coupon *string
	if o.CouponCode != "" {
		coupon = &o.CouponCode
	}
	row := db.QueryRow(ctx, `
INSERT INTO orders (number, user_id, status, currency, subtotal, combo_discount, coupon_discount, tax_amount,
    grand_total, coupon_code, combo_config_version, reference_rate, tax_rate_percent, combo_matches, notes)
VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9::numeric, $10, $11,
    $12::numeric, $13::numeric, $14, $15)
RETURNING `+orderColumns,
		o.Number, o.UserID, string(o.Status), o.Currency,
		repo.Numeric(o.Totals.Subtotal), repo.Numeric(o.Totals.ComboDiscount), repo.Numeric(o.Totals.CouponDiscount),
		repo.Numeric(o.Totals.TaxAmount), repo.Numeric(o.Totals.GrandTotal), coupon, o.ComboConfigVersion,
		repo.Numeric(o.ReferenceRate), repo.Numeric(o.TaxRatePercent), matches, o.Notes)
	saved, err := scanOrder(row)
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}
	oid, _ := repo.UUID(saved.ID)
	for _, l := range o.Lines {
		pid, err := repo.UUID(l.ProductID)
		if err != nil {
			return Order{}, err
		}
		if _, err := db.Exec(ctx, `
INSERT INTO order_lines (order_id, position, product_id, option_key, sku, name, quantity, package_size, unit_count,
    unit_price, extended_total, category, group_key, combo_units, combo_discount)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::numeric, $11::numeric, $12, $13, $14, $15::numeric)`,
			oid, l.Position, pid, l.OptionKey, l.SKU, l.Name, l.Quantity, l.PackageSize, l.UnitCount,
			repo.Numeric(l.UnitPrice), repo.Numeric(l.ExtendedTotal), l.Category, l.GroupKey, l.ComboUnits,
			repo.Numeric(l.ComboDiscount)); err != nil {
			return Order{}, fmt.Errorf("insert order line %d: %w", l.Position, err)
		}
	}
	saved.Lines = o.Lines
	return saved, nil
}

// Get loads one order with lines. A non-empty userID restricts it to that owner.
func (s PGStore) Get(ctx context.Context, id, userID string) (Order, error) {
	oid, err := repo.UUID(id)
	if err != nil {
		return Order{}, ErrNotFound
	}
	row := s.Pool.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1 AND ($2 = '' OR user_id = $2)", oid, userID)
	o, err := scanOrder(row)
	if err != nil {
		if repo.IsNoRows(err) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	rows, err := s.Pool.Query(ctx, `
SELECT position, product_id, option_key, sku, name, quantity, package_size, unit_count, unit_price::text,
    extended_total::text, category, group_key, combo_units, combo_discount::text
FROM order_lines WHERE order_id = $1 ORDER BY position`, oid)
	if err != nil {
		return Order{}, fmt.Errorf("get order lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			l                        Line
			pid                      pgtype.UUID
			unit, extended, discount pgtype.Text
		)
		if err := rows.Scan(&l.Position, &pid, &l.OptionKey, &l.SKU, &l.Name, &l.Quantity, &l.PackageSize,
			&l.UnitCount, &unit, &extended, &l.Category, &l.GroupKey, &l.ComboUnits, &discount); err != nil {
			return Order{}, err
		}
		l.ProductID = repo.UUIDString(pid)
		l.UnitPrice = repo.Decimal(unit)
		l.ExtendedTotal = repo.Decimal(extended)
		l.ComboDiscount = repo.Decimal(discount)
		o.Lines = append(o.Lines, l)
	}
	return o, rows.Err()
}

// List returns orders newest first.
func (s PGStore) List(ctx context.Context, params ListParams) ([]Order, int64, error) {
	const cond = `($1 = '' OR user_id = $1) AND ($2 = '' OR status = $2)`
	var total int64
	if err := s.Pool.QueryRow(ctx, "SELECT count(*) FROM orders WHERE "+cond, params.UserID, string(params.Status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	rows, err := s.Pool.Query(ctx, "SELECT "+orderColumns+" FROM orders WHERE "+cond+" ORDER BY created_at DESC LIMIT $3 OFFSET $4",
		params.UserID, string(params.Status), params.Limit, params.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

// UpdateStatus moves an order from one status to another, failing when the
// stored status no longer equals from.
func (s PGStore) UpdateStatus(ctx context.Context, id string, from, to Status) (Order, error) {
	oid, err := repo.UUID(id)
	if err != nil {
		return Order{}, ErrNotFound
	}
	row := s.Pool.QueryRow(ctx, "UPDATE orders SET status = $3, updated_at = now() WHERE id = $1 AND status = $2 RETURNING "+orderColumns,
		oid, string(from), string(to))
	o, err := scanOrder(row)
	if err != nil {
		if repo.IsNoRows(err) {
			return Order{}, ErrInvalidTransition
		}
		return Order{}, fmt.Errorf("update order status: %w", err)
	}
	return o, nil
}

// ComboReport aggregates persisted combo matches per group key for orders
// created in [from, to). Cancelled orders are excluded.
func (s PGStore) ComboReport(ctx context.Context, from, to time.Time) ([]ComboReportRow, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT COALESCE(m->>'groupKey', '') AS group_key,
       count(DISTINCT o.id),
       count(*),
       COALESCE(sum((m->>'matchedQuantity')::int), 0),
       COALESCE(sum((m->>'discount')::numeric), 0)::text
FROM orders o CROSS JOIN LATERAL jsonb_array_elements(o.combo_matches) AS m
WHERE o.created_at >= $1 AND o.created_at < $2 AND o.status <> 'cancelled'
GROUP BY 1
ORDER BY 1`, from, to)
	if err != nil {
		return nil, fmt.Errorf("combo report: %w", err)
	}
	defer rows.Close()
	out := []ComboReportRow{}
	for rows.Next() {
		var (
			r        ComboReportRow
			discount pgtype.Text
		)
		if err := rows.Scan(&r.GroupKey, &r.Orders, &r.Matches, &r.MatchedQuantity, &discount); err != nil {
			return nil, err
		}
		r.Discount = repo.Decimal(discount)
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o                                              Order
		id                                             pgtype.UUID
		status                                         string
		subtotal, combo, coupon, tax, grand, rate, pct pgtype.Text
		couponCode                                     pgtype.Text
		matches                                        []byte
	)
	if err := row.Scan(&id, &o.Number, &o.UserID, &status, &o.Currency, &subtotal, &combo, &coupon, &tax, &grand,
		&couponCode, &o.ComboConfigVersion, &rate, &pct, &matches, &o.Notes, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Order{}, err
	}
	o.ID = repo.UUIDString(id)
	o.Status = Status(status)
	o.Totals.Subtotal = repo.Decimal(subtotal)
	o.Totals.ComboDiscount = repo.Decimal(combo)
	o.Totals.CouponDiscount = repo.Decimal(coupon)
	o.Totals.TaxAmount = repo.Decimal(tax)
	o.Totals.GrandTotal = repo.Decimal(grand)
	o.CouponCode = couponCode.String
	o.ReferenceRate = repo.Decimal(rate)
	o.TaxRatePercent = repo.Decimal(pct)
	if err := json.Unmarshal(matches, &o.ComboMatches); err != nil {
		return Order{}, fmt.Errorf("decode combo matches: %w", err)
	}
	return o, nil
}

func nonNilMatches(m []MatchSummary) []MatchSummary {
	if m == nil {
		return []MatchSummary{}
	}
	return m
}
