package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/b2b-storefront/internal/pricing"
	"github.com/noah-isme/b2b-storefront/internal/repo"
)

// ErrNotFound is returned when no row exists for the requested setting.
var ErrNotFound = errors.New("settings: not found")

// ComboRevision is a stored combo configuration with audit metadata.
type ComboRevision struct {
	pricing.ComboConfig
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists versioned combo configurations and key/value settings.
type Store interface {
	LatestCombo(ctx context.Context) (ComboRevision, error)
	InsertCombo(ctx context.Context, cfg pricing.ComboConfig, actor string) (ComboRevision, error)
	ComboHistory(ctx context.Context, limit int) ([]ComboRevision, error)
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value, actor string) error
}

// PGStore implements Store on Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
}

const comboColumns = `version, active, discount_type, discount_value::text, primary_category, secondary_category,
    require_same_group_key, minimum_matched_quantity, created_by, created_at`

// LatestCombo returns the newest combo configuration.
func (s PGStore) LatestCombo(ctx context.Context) (ComboRevision, error) {
	row := s.Pool.QueryRow(ctx, "SELECT "+comboColumns+" FROM combo_configs ORDER BY version DESC LIMIT 1")
	rev, err := scanCombo(row)
	if err != nil {
		if repo.IsNoRows(err) {
			return ComboRevision{}, ErrNotFound
		}
		return ComboRevision{}, fmt.Errorf("latest combo config: %w", err)
	}
	return rev, nil
}

// InsertCombo stores cfg as a new version.
func (s PGStore) InsertCombo(ctx context.Context, cfg pricing.ComboConfig, actor string) (ComboRevision, error) {
	const sql = `
INSERT INTO combo_configs (active, discount_type, discount_value, primary_category, secondary_category,
    require_same_group_key, minimum_matched_quantity, created_by)
VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8)
RETURNING ` + comboColumns
	row := s.Pool.QueryRow(ctx, sql, cfg.Active, string(cfg.DiscountType), repo.Numeric(cfg.DiscountValue),
		cfg.PrimaryCategory, cfg.SecondaryCategory, cfg.RequireSameGroupKey, cfg.MinimumMatchedQuantity, actor)
	rev, err := scanCombo(row)
	if err != nil {
		return ComboRevision{}, fmt.Errorf("insert combo config: %w", err)
	}
	return rev, nil
}

// ComboHistory lists versions newest first.
func (s PGStore) ComboHistory(ctx context.Context, limit int) ([]ComboRevision, error) {
	rows, err := s.Pool.Query(ctx, "SELECT "+comboColumns+" FROM combo_configs ORDER BY version DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("combo history: %w", err)
	}
	defer rows.Close()
	out := []ComboRevision{}
	for rows.Next() {
		rev, err := scanCombo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rev)
	}
	return out, rows.Err()
}

// Get returns a store setting value.
func (s PGStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.Pool.QueryRow(ctx, "SELECT value FROM store_settings WHERE key = $1", key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

// Put upserts a store setting value.
func (s PGStore) Put(ctx context.Context, key, value, actor string) error {
	const sql = `
INSERT INTO store_settings (key, value, updated_by) VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = now()`
	if _, err := s.Pool.Exec(ctx, sql, key, value, actor); err != nil {
		return fmt.Errorf("put setting %s: %w", key, err)
	}
	return nil
}

func scanCombo(row pgx.Row) (ComboRevision, error) {
	var (
		rev   ComboRevision
		dtype string
		value pgtype.Text
	)
	if err := row.Scan(&rev.Version, &rev.Active, &dtype, &value, &rev.PrimaryCategory, &rev.SecondaryCategory,
		&rev.RequireSameGroupKey, &rev.MinimumMatchedQuantity, &rev.CreatedBy, &rev.CreatedAt); err != nil {
		return ComboRevision{}, err
	}
	rev.DiscountType = pricing.DiscountType(dtype)
	rev.DiscountValue = repo.Decimal(value)
	return rev, nil
}
