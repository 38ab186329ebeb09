// Package rates keeps the reference exchange rate used to convert alternate-currency tier prices.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/b2b-storefront/internal/repo"
)

// ErrNotFound is returned when no rate has been stored for a pair.
var ErrNotFound = errors.New("rates: not found")

// Rate is the number of Quote currency units per one Base currency unit.
type Rate struct {
	Base      string          `json:"base"`
	Quote     string          `json:"quote"`
	Value     decimal.Decimal `json:"rate"`
	Source    string          `json:"source"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// Store persists fetched rates.
type Store interface {
	Latest(ctx context.Context, base, quote string) (Rate, error)
	Insert(ctx context.Context, r Rate) error
}

// PGStore implements Store on Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
}

// Latest returns the most recently fetched rate for the pair.
func (s PGStore) Latest(ctx context.Context, base, quote string) (Rate, error) {
	const sql = `
SELECT base_code, quote_code, rate::text, source, fetched_at
FROM exchange_rates WHERE base_code = $1 AND quote_code = $2
ORDER BY fetched_at DESC LIMIT 1`
	var (
		r     Rate
		value pgtype.Text
	)
	err := s.Pool.QueryRow(ctx, sql, base, quote).Scan(&r.Base, &r.Quote, &value, &r.Source, &r.FetchedAt)
	if err != nil {
		if repo.IsNoRows(err) {
			return Rate{}, ErrNotFound
		}
		return Rate{}, fmt.Errorf("latest rate: %w", err)
	}
	r.Value = repo.Decimal(value)
	return r, nil
}

// Insert records a fetched rate.
func (s PGStore) Insert(ctx context.Context, r Rate) error {
	const sql = `INSERT INTO exchange_rates (base_code, quote_code, rate, source, fetched_at) VALUES ($1, $2, $3::numeric, $4, $5)`
	if _, err := s.Pool.Exec(ctx, sql, r.Base, r.Quote, repo.Numeric(r.Value), r.Source, r.FetchedAt); err != nil {
		return fmt.Errorf("insert rate: %w", err)
	}
	return nil
}

// Cache keeps the last known rate in Redis.
type Cache struct {
	Client *redis.Client
	TTL    time.Duration
}

func cacheKey(base, quote string) string { return "rates:" + base + ":" + quote }

// Get returns the cached rate for the pair, reporting whether it was present.
func (c Cache) Get(ctx context.Context, base, quote string) (Rate, bool, error) {
	if c.Client == nil {
		return Rate{}, false, nil
	}
	data, err := c.Client.Get(ctx, cacheKey(base, quote)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Rate{}, false, nil
		}
		return Rate{}, false, err
	}
	var r Rate
	if err := json.Unmarshal(data, &r); err != nil {
		return Rate{}, false, err
	}
	return r, true, nil
}

// Set stores r for its pair.
func (c Cache) Set(ctx context.Context, r Rate) error {
	if c.Client == nil {
		return nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, cacheKey(r.Base, r.Quote), data, c.TTL).Err()
}
