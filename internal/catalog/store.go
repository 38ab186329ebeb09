package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/b2b-storefront/internal/pricing"
	"github.com/noah-isme/b2b-storefront/internal/repo"
)

// Store persists products.
type Store interface {
	List(ctx context.Context, params ListParams) ([]Product, int64, error)
	GetMany(ctx context.Context, ids []string) ([]Product, error)
	Upsert(ctx context.Context, p Product) (Product, error)
}

// ListParams filters product listings.
type ListParams struct {
	Category        string
	Query           string
	IncludeInactive bool
	Limit           int
	Offset          int
}

// PGStore implements Store on Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
}

const productColumns = `id, sku, name, base_price::text, package_size, category, group_key, tiers, alt_tiers, options, active, updated_at`

// List returns products ordered by category then name.
func (s PGStore) List(ctx context.Context, params ListParams) ([]Product, int64, error) {
	where := []string{"TRUE"}
	args := []any{}
	if !params.IncludeInactive {
		where = append(where, "active")
	}
	if c := strings.TrimSpace(params.Category); c != "" {
		args = append(args, c)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if q := strings.TrimSpace(params.Query); q != "" {
		args = append(args, "%"+q+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR sku ILIKE $%d)", len(args), len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := s.Pool.QueryRow(ctx, "SELECT count(*) FROM products WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}
	args = append(args, params.Limit, params.Offset)
	sql := fmt.Sprintf("SELECT %s FROM products WHERE %s ORDER BY category, name LIMIT $%d OFFSET $%d",
		productColumns, cond, len(args)-1, len(args))
	rows, err := s.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// GetMany loads products by id regardless of their active flag.
func (s PGStore) GetMany(ctx context.Context, ids []string) ([]Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	uuids := make([]pgtype.UUID, 0, len(ids))
	for _, id := range ids {
		u, err := repo.UUID(id)
		if err != nil {
			continue
		}
		uuids = append(uuids, u)
	}
	if len(uuids) == 0 {
		return nil, nil
	}
	rows, err := s.Pool.Query(ctx, "SELECT "+productColumns+" FROM products WHERE id = ANY($1)", uuids)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	return collectProducts(rows)
}

// Upsert inserts a product or updates the one matching ID (or SKU when ID is empty).
func (s PGStore) Upsert(ctx context.Context, p Product) (Product, error) {
	tiers, err := json.Marshal(nonNilTiers(p.Tiers))
	if err != nil {
		return Product{}, err
	}
	altTiers, err := json.Marshal(nonNilTiers(p.AltTiers))
	if err != nil {
		return Product{}, err
	}
	options := p.Options
	if options == nil {
		options = []Option{}
	}
	opts, err := json.Marshal(options)
	if err != nil {
		return Product{}, err
	}
	var id any
	if p.ID != "" {
		u, err := repo.UUID(p.ID)
		if err != nil {
			return Product{}, fmt.Errorf("%w: %v", ErrInvalidProduct, err)
		}
		id = u
	}
	const sql = `
INSERT INTO products (id, sku, name, base_price, package_size, category, group_key, tiers, alt_tiers, options, active)
VALUES (COALESCE($1::uuid, gen_random_uuid()), $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (sku) DO UPDATE SET
    name = EXCLUDED.name,
    base_price = EXCLUDED.base_price,
    package_size = EXCLUDED.package_size,
    category = EXCLUDED.category,
    group_key = EXCLUDED.group_key,
    tiers = EXCLUDED.tiers,
    alt_tiers = EXCLUDED.alt_tiers,
    options = EXCLUDED.options,
    active = EXCLUDED.active,
    updated_at = now()
RETURNING ` + productColumns
	row := s.Pool.QueryRow(ctx, sql, id, p.SKU, p.Name, repo.Numeric(p.BasePrice), p.PackageSize,
		p.Category, p.GroupKey, tiers, altTiers, opts, p.Active)
	saved, err := scanProduct(row)
	if err != nil {
		if repo.IsUniqueViolation(err) {
			return Product{}, fmt.Errorf("%w: id already used by another sku", ErrInvalidProduct)
		}
		return Product{}, fmt.Errorf("upsert product: %w", err)
	}
	return saved, nil
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p                     Product
		id                    pgtype.UUID
		basePrice             pgtype.Text
		tiers, altTiers, opts []byte
	)
	if err := row.Scan(&id, &p.SKU, &p.Name, &basePrice, &p.PackageSize, &p.Category, &p.GroupKey,
		&tiers, &altTiers, &opts, &p.Active, &p.UpdatedAt); err != nil {
		return Product{}, err
	}
	p.ID = repo.UUIDString(id)
	p.BasePrice = repo.Decimal(basePrice)
	if err := json.Unmarshal(tiers, &p.Tiers); err != nil {
		return Product{}, fmt.Errorf("decode tiers: %w", err)
	}
	if err := json.Unmarshal(altTiers, &p.AltTiers); err != nil {
		return Product{}, fmt.Errorf("decode alt tiers: %w", err)
	}
	if err := json.Unmarshal(opts, &p.Options); err != nil {
		return Product{}, fmt.Errorf("decode options: %w", err)
	}
	return p, nil
}

func nonNilTiers(t []pricing.PriceTier) []pricing.PriceTier {
	if t == nil {
		return []pricing.PriceTier{}
	}
	return t
}
