package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveUnitPriceFallsBackToBase(t *testing.T) {
	requireDecimal(t, "1.25", ResolveUnitPrice(nil, 10, d("1.25")))

	tiers := []PriceTier{{MinQuantity: 100, UnitPrice: d("0.90")}}
	requireDecimal(t, "1.25", ResolveUnitPrice(tiers, 99, d("1.25")))
}

func TestResolveUnitPricePicksLargestQualifyingTier(t *testing.T) {
	tiers := []PriceTier{
		{MinQuantity: 0, UnitPrice: d("1.00")},
		{MinQuantity: 100, UnitPrice: d("0.80")},
		{MinQuantity: 500, UnitPrice: d("0.60")},
	}
	requireDecimal(t, "1.00", ResolveUnitPrice(tiers, 99, d("2")))
	requireDecimal(t, "0.80", ResolveUnitPrice(tiers, 100, d("2")))
	requireDecimal(t, "0.60", ResolveUnitPrice(tiers, 10_000, d("2")))
}

func TestResolveUnitPriceDoesNotAssumeMonotonicPrices(t *testing.T) {
	tiers := []PriceTier{
		{MinQuantity: 10, UnitPrice: d("0.50")},
		{MinQuantity: 50, UnitPrice: d("0.75")},
	}
	requireDecimal(t, "0.75", ResolveUnitPrice(tiers, 60, d("1")))
}

func TestResolveUnitPriceIgnoresInputOrder(t *testing.T) {
	sorted := []PriceTier{
		{MinQuantity: 1, UnitPrice: d("3")},
		{MinQuantity: 12, UnitPrice: d("2.5")},
		{MinQuantity: 24, UnitPrice: d("2.1")},
		{MinQuantity: 48, UnitPrice: d("1.9")},
	}
	shuffled := []PriceTier{sorted[2], sorted[0], sorted[3], sorted[1]}
	original := append([]PriceTier(nil), shuffled...)

	for qty := 0; qty <= 60; qty++ {
		want := ResolveUnitPrice(sorted, qty, d("4"))
		got := ResolveUnitPrice(shuffled, qty, d("4"))
		require.Truef(t, want.Equal(got), "qty %d: sorted=%s shuffled=%s", qty, want, got)
	}
	require.Equal(t, original, shuffled, "input must not be reordered")
}

func TestResolveUnitPriceDuplicateThresholdIsDeterministic(t *testing.T) {
	tiers := []PriceTier{
		{MinQuantity: 10, UnitPrice: d("0.70")},
		{MinQuantity: 10, UnitPrice: d("0.65")},
	}
	first := ResolveUnitPrice(tiers, 10, d("1"))
	for i := 0; i < 5; i++ {
		require.True(t, first.Equal(ResolveUnitPrice(tiers, 10, d("1"))))
	}
	requireDecimal(t, "0.65", first)
}
