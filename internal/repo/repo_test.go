package repo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestUUIDRoundTrip(t *testing.T) {
	id, err := UUID("1b4e28ba-2fa1-11d2-883f-0016d3cca427")
	require.NoError(t, err)
	require.True(t, id.Valid)
	require.Equal(t, "1b4e28ba-2fa1-11d2-883f-0016d3cca427", UUIDString(id))

	_, err = UUID("not-a-uuid")
	require.ErrorIs(t, err, ErrInvalidID)
	require.Equal(t, "", UUIDString(pgtype.UUID{}))
}

func TestDecimalParsing(t *testing.T) {
	require.True(t, Decimal(pgtype.Text{String: "12.500000", Valid: true}).Equal(decimal.RequireFromString("12.5")))
	require.True(t, Decimal(pgtype.Text{}).IsZero())
	require.Nil(t, NullableDecimal(pgtype.Text{}))
	require.Nil(t, NullableNumeric(nil))
	d := decimal.RequireFromString("0.25")
	require.Equal(t, "0.25", *NullableNumeric(&d))
}

func TestErrorClassifiers(t *testing.T) {
	require.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	require.False(t, IsUniqueViolation(errors.New("other")))
	require.True(t, IsNoRows(fmt.Errorf("get: %w", pgx.ErrNoRows)))
}
