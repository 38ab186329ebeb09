// Package repo holds the small pgx helpers shared by the hand-written stores.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrInvalidID indicates an identifier could not be parsed as a UUID.
var ErrInvalidID = errors.New("invalid id")

// DBTX is satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UUID converts a textual id into a pgtype.UUID.
func UUID(id string) (pgtype.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return pgtype.UUID{}, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}

// UUIDString renders a pgtype.UUID, returning "" when it is NULL.
func UUIDString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}

// Decimal parses a numeric column selected as text. NULL and garbage become zero.
func Decimal(text pgtype.Text) decimal.Decimal {
	if !text.Valid {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(text.String)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// NullableDecimal parses a nullable numeric column selected as text.
func NullableDecimal(text pgtype.Text) *decimal.Decimal {
	if !text.Valid {
		return nil
	}
	d := Decimal(text)
	return &d
}

// Numeric renders a decimal for a numeric parameter.
func Numeric(d decimal.Decimal) string {
	return d.String()
}

// NullableNumeric renders an optional decimal for a numeric parameter.
func NullableNumeric(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

// WithTx runs fn inside a transaction, committing on success and rolling back otherwise.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a Postgres unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsNoRows reports whether err signals an empty single-row result.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// TxFunc runs fn inside a unit of work.
type TxFunc func(ctx context.Context, fn func(db DBTX) error) error

// PoolTx returns a TxFunc backed by pool transactions.
func PoolTx(pool *pgxpool.Pool) TxFunc {
	return func(ctx context.Context, fn func(db DBTX) error) error {
		return WithTx(ctx, pool, func(tx pgx.Tx) error { return fn(tx) })
	}
}
