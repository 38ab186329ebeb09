package voucher

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/b2b-storefront/internal/repo"
)

// Store persists vouchers.
type Store interface {
	ByCode(ctx context.Context, code string) (Rule, error)
	Create(ctx context.Context, r Rule) (Rule, error)
	List(ctx context.Context, limit, offset int) ([]Rule, error)
	// IncrementUsage consumes one use within db, failing with ErrUsageLimitReached
	// once the quota is spent.
	IncrementUsage(ctx context.Context, db repo.DBTX, code string) error
}

// PGStore implements Store on Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
}

const voucherColumns = `id, code, kind, value::text, max_discount::text, min_spend::text, usage_limit, used_count, valid_from, valid_to, active`

// ByCode returns the voucher for a normalised code.
func (s PGStore) ByCode(ctx context.Context, code string) (Rule, error) {
	row := s.Pool.QueryRow(ctx, "SELECT "+voucherColumns+" FROM vouchers WHERE code = $1", code)
	r, err := scanRule(row)
	if err != nil {
		if repo.IsNoRows(err) {
			return Rule{}, ErrNotFound
		}
		return Rule{}, fmt.Errorf("get voucher: %w", err)
	}
	return r, nil
}

// Create inserts a new voucher.
func (s PGStore) Create(ctx context.Context, r Rule) (Rule, error) {
	validFrom := r.ValidFrom
	if validFrom.IsZero() {
		validFrom = time.Now().UTC()
	}
	row := s.Pool.QueryRow(ctx, `
INSERT INTO vouchers (code, kind, value, max_discount, min_spend, usage_limit, valid_from, valid_to, active)
VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, $7, $8, $9)
RETURNING `+voucherColumns,
		r.Code, string(r.Kind), repo.Numeric(r.Value), repo.NullableNumeric(r.MaxDiscount), repo.Numeric(r.MinSpend),
		r.UsageLimit, validFrom, r.ValidTo, r.Active)
	saved, err := scanRule(row)
	if err != nil {
		return Rule{}, fmt.Errorf("create voucher: %w", err)
	}
	return saved, nil
}

// List returns vouchers newest first.
func (s PGStore) List(ctx context.Context, limit, offset int) ([]Rule, error) {
	rows, err := s.Pool.Query(ctx, "SELECT "+voucherColumns+" FROM vouchers ORDER BY created_at DESC LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list vouchers: %w", err)
	}
	defer rows.Close()
	out := []Rule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// IncrementUsage atomically bumps used_count while the limit allows it.
func (s PGStore) IncrementUsage(ctx context.Context, db repo.DBTX, code string) error {
	tag, err := db.Exec(ctx, `
UPDATE vouchers SET used_count = used_count + 1
WHERE code = $1 AND (usage_limit IS NULL OR used_count < usage_limit)`, code)
	if err != nil {
		return fmt.Errorf("increment voucher usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUsageLimitReached
	}
	return nil
}

func scanRule(row pgx.Row) (Rule, error) {
	var (
		r                        Rule
		id                       pgtype.UUID
		kind                     string
		value, maxDisc, minSpend pgtype.Text
		usageLimit               pgtype.Int4
		validTo                  pgtype.Timestamptz
	)
	if err := row.Scan(&id, &r.Code, &kind, &value, &maxDisc, &minSpend, &usageLimit, &r.UsedCount,
		&r.ValidFrom, &validTo, &r.Active); err != nil {
		return Rule{}, err
	}
	r.ID = repo.UUIDString(id)
	r.Kind = Kind(kind)
	r.Value = repo.Decimal(value)
	r.MaxDiscount = repo.NullableDecimal(maxDisc)
	r.MinSpend = repo.Decimal(minSpend)
	if usageLimit.Valid {
		limit := usageLimit.Int32
		r.UsageLimit = &limit
	}
	if validTo.Valid {
		t := validTo.Time
		r.ValidTo = &t
	}
	return r, nil
}
