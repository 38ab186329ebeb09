package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValuateLineUnitsWithoutPackaging(t *testing.T) {
	v := ValuateLine(Line{ID: "a", Quantity: 30, BasePrice: d("0.40")}, d("1"))
	require.Equal(t, 30, v.UnitCount)
	requireDecimal(t, "0.40", v.UnitPrice)
	requireDecimal(t, "12", v.ExtendedTotal)
}

func TestValuateLinePackagedUsesPackageCountForTiers(t *testing.T) {
	line := Line{
		ID:          "caps",
		Quantity:    3,
		PackageSize: 1000,
		BasePrice:   d("0.10"),
		Tiers: []PriceTier{
			{MinQuantity: 3, UnitPrice: d("0.08")},
			{MinQuantity: 1000, UnitPrice: d("0.05")},
		},
	}
	v := ValuateLine(line, d("1"))
	require.Equal(t, 3000, v.UnitCount)
	// 3000 units would hit the 1000 tier; packages (3) only reach the first one.
	requireDecimal(t, "0.08", v.UnitPrice)
	requireDecimal(t, "240", v.ExtendedTotal)
}

func TestValuateLinePrefersAlternateCurrencyTiers(t *testing.T) {
	line := Line{
		ID:        "bottle",
		Quantity:  200,
		BasePrice: d("3.00"),
		Tiers:     []PriceTier{{MinQuantity: 100, UnitPrice: d("2.50")}},
		AltTiers:  []PriceTier{{MinQuantity: 100, UnitPrice: d("0.12")}},
	}
	v := ValuateLine(line, d("18.5"))
	requireDecimal(t, "2.22", v.UnitPrice)
	requireDecimal(t, "444", v.ExtendedTotal)
}

func TestValuateLineAlternateTiersFallBackToBase(t *testing.T) {
	line := Line{
		ID:        "bottle",
		Quantity:  10,
		BasePrice: d("3.00"),
		Tiers:     []PriceTier{{MinQuantity: 5, UnitPrice: d("2.50")}},
		AltTiers:  []PriceTier{{MinQuantity: 100, UnitPrice: d("0.12")}},
	}
	v := ValuateLine(line, d("18.5"))
	requireDecimal(t, "3.00", v.UnitPrice)
}

func TestValuateLineNonPositiveRateUsesPrimaryTiers(t *testing.T) {
	line := Line{
		ID:        "bottle",
		Quantity:  10,
		BasePrice: d("3.00"),
		Tiers:     []PriceTier{{MinQuantity: 5, UnitPrice: d("2.50")}},
		AltTiers:  []PriceTier{{MinQuantity: 1, UnitPrice: d("0.12")}},
	}
	v := ValuateLine(line, d("0"))
	requireDecimal(t, "2.50", v.UnitPrice)
}

func TestValuateLineZeroQuantity(t *testing.T) {
	v := ValuateLine(Line{ID: "z", Quantity: 0, PackageSize: 50, BasePrice: d("9")}, d("1"))
	require.Equal(t, 0, v.UnitCount)
	require.True(t, v.ExtendedTotal.IsZero())

	neg := ValuateLine(Line{ID: "n", Quantity: -4, BasePrice: d("9")}, d("1"))
	require.Equal(t, 0, neg.UnitCount)
	require.True(t, neg.ExtendedTotal.IsZero())
}

func TestValuateLinesPreservesOrder(t *testing.T) {
	lines := []Line{{ID: "1", Quantity: 1, BasePrice: d("1")}, {ID: "2", Quantity: 1, BasePrice: d("1")}, {ID: "3", Quantity: 1, BasePrice: d("1")}}
	valued := ValuateLines(lines, d("1"))
	require.Len(t, valued, 3)
	require.Equal(t, "1", valued[0].ID)
	require.Equal(t, "3", valued[2].ID)
}
