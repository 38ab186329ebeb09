package cart

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/b2b-storefront/internal/repo"
)

// Store persists carts and their lines.
type Store interface {
	Ensure(ctx context.Context, userID string) (Cart, error)
	Lines(ctx context.Context, cartID string) ([]Line, error)
	AddLine(ctx context.Context, cartID, productID, optionKey string, qty int) (Line, error)
	SetQuantity(ctx context.Context, cartID, lineID string, qty int) error
	RemoveLine(ctx context.Context, cartID, lineID string) error
	SetCoupon(ctx context.Context, cartID, code string) error
	// Clear empties the cart within db so checkout can do it transactionally.
	Clear(ctx context.Context, db repo.DBTX, cartID string) error
}

// PGStore implements Store on Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
}

// Ensure returns the user's cart, creating it on first use.
func (s PGStore) Ensure(ctx context.Context, userID string) (Cart, error) {
	var (
		c  Cart
		id pgtype.UUID
	)
	err := s.Pool.QueryRow(ctx, `
INSERT INTO carts (user_id) VALUES ($1)
ON CONFLICT (user_id) DO UPDATE SET updated_at = carts.updated_at
RETURNING id, user_id, coupon_code, updated_at`, userID).Scan(&id, &c.UserID, &c.CouponCode, &c.UpdatedAt)
	if err != nil {
		return Cart{}, fmt.Errorf("ensure cart: %w", err)
	}
	c.ID = repo.UUIDString(id)
	return c, nil
}

// Lines returns the cart lines in insertion order.
func (s PGStore) Lines(ctx context.Context, cartID string) ([]Line, error) {
	cid, err := repo.UUID(cartID)
	if err != nil {
		return nil, err
	}
	rows, err := s.Pool.Query(ctx, `
SELECT id, product_id, option_key, quantity, position
FROM cart_lines WHERE cart_id = $1 ORDER BY position`, cid)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	defer rows.Close()
	out := []Line{}
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// AddLine inserts a line or merges the quantity into the existing product/option line.
func (s PGStore) AddLine(ctx context.Context, cartID, productID, optionKey string, qty int) (Line, error) {
	cid, err := repo.UUID(cartID)
	if err != nil {
		return Line{}, err
	}
	pid, err := repo.UUID(productID)
	if err != nil {
		return Line{}, err
	}
	row := s.Pool.QueryRow(ctx, `
INSERT INTO cart_lines (cart_id, product_id, option_key, quantity, position)
VALUES ($1, $2, $3, $4, COALESCE((SELECT max(position) + 1 FROM cart_lines WHERE cart_id = $1), 0))
ON CONFLICT (cart_id, product_id, option_key) DO UPDATE
SET quantity = LEAST(cart_lines.quantity + EXCLUDED.quantity, 100000), updated_at = now()
RETURNING id, product_id, option_key, quantity, position`, cid, pid, optionKey, qty)
	l, err := scanLine(row)
	if err != nil {
		return Line{}, fmt.Errorf("add cart line: %w", err)
	}
	s.touch(ctx, cid)
	return l, nil
}

// SetQuantity overwrites a line quantity.
func (s PGStore) SetQuantity(ctx context.Context, cartID, lineID string, qty int) error {
	cid, lid, err := lineKeys(cartID, lineID)
	if err != nil {
		return err
	}
	tag, err := s.Pool.Exec(ctx, `UPDATE cart_lines SET quantity = $3, updated_at = now() WHERE cart_id = $1 AND id = $2`, cid, lid, qty)
	if err != nil {
		return fmt.Errorf("update cart line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	s.touch(ctx, cid)
	return nil
}

// RemoveLine deletes one line.
func (s PGStore) RemoveLine(ctx context.Context, cartID, lineID string) error {
	cid, lid, err := lineKeys(cartID, lineID)
	if err != nil {
		return err
	}
	tag, err := s.Pool.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1 AND id = $2`, cid, lid)
	if err != nil {
		return fmt.Errorf("remove cart line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	s.touch(ctx, cid)
	return nil
}

// SetCoupon stores the code applied to the cart. An empty code removes it.
func (s PGStore) SetCoupon(ctx context.Context, cartID, code string) error {
	cid, err := repo.UUID(cartID)
	if err != nil {
		return err
	}
	if _, err := s.Pool.Exec(ctx, `UPDATE carts SET coupon_code = $2, updated_at = now() WHERE id = $1`, cid, code); err != nil {
		return fmt.Errorf("set cart coupon: %w", err)
	}
	return nil
}

// Clear removes every line and the applied coupon.
func (s PGStore) Clear(ctx context.Context, db repo.DBTX, cartID string) error {
	if db == nil {
		db = s.Pool
	}
	cid, err := repo.UUID(cartID)
	if err != nil {
		return err
	}
	if _, err := db.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, cid); err != nil {
		return fmt.Errorf("clear cart lines: %w", err)
	}
	if _, err := db.Exec(ctx, `UPDATE carts SET coupon_code = '', updated_at = now() WHERE id = $1`, cid); err != nil {
		return fmt.Errorf("reset cart: %w", err)
	}
	return nil
}

func (s PGStore) touch(ctx context.Context, cartID pgtype.UUID) {
	_, _ = s.Pool.Exec(ctx, `UPDATE carts SET updated_at = now() WHERE id = $1`, cartID)
}

func lineKeys(cartID, lineID string) (pgtype.UUID, pgtype.UUID, error) {
	cid, err := repo.UUID(cartID)
	if err != nil {
		return pgtype.UUID{}, pgtype.UUID{}, err
	}
	lid, err := repo.UUID(lineID)
	if err != nil {
		return pgtype.UUID{}, pgtype.UUID{}, ErrLineNotFound
	}
	return cid, lid, nil
}

func scanLine(row pgx.Row) (Line, error) {
	var (
		l       Line
		id, pid pgtype.UUID
	)
	if err := row.Scan(&id, &pid, &l.OptionKey, &l.Quantity, &l.Position); err != nil {
		return Line{}, err
	}
	l.ID = repo.UUIDString(id)
	l.ProductID = repo.UUIDString(pid)
	return l, nil
}
