package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestComputeTotalsBasic(t *testing.T) {
	lines := []ValuedLine{
		valued("A", "container", "", 120, "0.50"),
		valued("B", "closure", "", 100, "0.40"),
		valued("C", "label", "", 10, "1.00"),
	}
	combo := ComputeComboMatches(lines, activeConfig())
	totals := ComputeTotals(lines, combo, d("5"), d("16"))

	requireDecimal(t, "110", totals.Subtotal)
	requireDecimal(t, "9", totals.ComboDiscount)
	requireDecimal(t, "5", totals.CouponDiscount)
	requireDecimal(t, "15.36", totals.TaxAmount)
	requireDecimal(t, "111.36", totals.GrandTotal)
}

func TestComputeTotalsClampsOverDiscount(t *testing.T) {
	lines := []ValuedLine{valued("A", "", "", 10, "1")}
	combo := ComboResult{TotalDiscount: d("4")}
	totals := ComputeTotals(lines, combo, d("50"), d("16"))

	requireDecimal(t, "10", totals.Subtotal)
	requireDecimal(t, "4", totals.ComboDiscount)
	requireDecimal(t, "6", totals.CouponDiscount)
	require.True(t, totals.TaxAmount.IsZero())
	require.True(t, totals.GrandTotal.IsZero())
}

func TestComputeTotalsNegativeInputsAreNeutral(t *testing.T) {
	lines := []ValuedLine{valued("A", "", "", 10, "1")}
	totals := ComputeTotals(lines, ComboResult{TotalDiscount: decimal.Zero}, d("-3"), d("-16"))
	require.True(t, totals.CouponDiscount.IsZero())
	require.True(t, totals.TaxAmount.IsZero())
	requireDecimal(t, "10", totals.GrandTotal)
}

func TestZeroQuantityContributesNothing(t *testing.T) {
	in := Input{
		Lines: []Line{
			{ID: "zero", Quantity: 0, BasePrice: d("5"), Category: "container"},
			{ID: "cap", Quantity: 100, BasePrice: d("0.1"), Category: "closure"},
		},
		Combo:          activeConfig(),
		ReferenceRate:  d("1"),
		TaxRatePercent: d("0"),
	}
	res := Run(in, nil)
	requireDecimal(t, "10", res.Totals.Subtotal)
	require.Empty(t, res.Combo.Matches)
}

func TestRunIsDeterministic(t *testing.T) {
	in := Input{
		Lines: []Line{
			{ID: "A", Quantity: 12, PackageSize: 10, BasePrice: d("0.55"), Category: "container", GroupKey: "28mm",
				Tiers: []PriceTier{{MinQuantity: 10, UnitPrice: d("0.50")}, {MinQuantity: 5, UnitPrice: d("0.52")}}},
			{ID: "B", Quantity: 100, BasePrice: d("0.40"), Category: "closure", GroupKey: "28mm",
				AltTiers: []PriceTier{{MinQuantity: 50, UnitPrice: d("0.021")}}},
			{ID: "C", Quantity: 7, BasePrice: d("3.333"), Category: "label"},
		},
		Combo:          activeConfig(),
		ReferenceRate:  d("18.73"),
		TaxRatePercent: d("16"),
	}
	coupon := func(_ []ValuedLine, base decimal.Decimal) decimal.Decimal {
		return base.Mul(d("0.05"))
	}
	first := Run(in, coupon)
	second := Run(in, coupon)
	require.Equal(t, first, second)
	require.True(t, first.Totals.GrandTotal.Equal(second.Totals.GrandTotal))
}

func TestRunPassesBaseAfterComboToCoupon(t *testing.T) {
	in := Input{
		Lines: []Line{
			{ID: "A", Quantity: 120, BasePrice: d("0.50"), Category: "container"},
			{ID: "B", Quantity: 100, BasePrice: d("0.40"), Category: "closure"},
		},
		Combo:          activeConfig(),
		ReferenceRate:  d("1"),
		TaxRatePercent: d("0"),
	}
	var seen decimal.Decimal
	res := Run(in, func(_ []ValuedLine, base decimal.Decimal) decimal.Decimal {
		seen = base
		return d("1")
	})
	requireDecimal(t, "91", seen)
	requireDecimal(t, "1", res.Totals.CouponDiscount)
	requireDecimal(t, "90", res.Totals.GrandTotal)
}

func TestTotalsRound(t *testing.T) {
	totals := Totals{
		Subtotal:       d("10.005"),
		ComboDiscount:  d("0.004"),
		CouponDiscount: d("0"),
		TaxAmount:      d("1.6008"),
		GrandTotal:     d("11.6018"),
	}.Round(2)
	requireDecimal(t, "10.01", totals.Subtotal)
	requireDecimal(t, "0", totals.ComboDiscount)
	requireDecimal(t, "1.6", totals.TaxAmount)
	requireDecimal(t, "11.6", totals.GrandTotal)
}

func TestRunCapsComboAllocationsAtSubtotal(t *testing.T) {
	cfg := activeConfig()
	cfg.DiscountType = DiscountFixed
	cfg.DiscountValue = d("5")
	cfg.MinimumMatchedQuantity = 0
	in := Input{
		Lines: []Line{
			{ID: "A", Quantity: 120, BasePrice: d("0.50"), Category: "container"},
			{ID: "B", Quantity: 100, BasePrice: d("0.40"), Category: "closure"},
		},
		Combo:          cfg,
		ReferenceRate:  d("1"),
		TaxRatePercent: d("16"),
	}
	res := Run(in, nil)

	requireDecimal(t, "100", res.Totals.Subtotal)
	requireDecimal(t, "100", res.Totals.ComboDiscount)
	requireDecimal(t, "0", res.Totals.GrandTotal)
	require.True(t, res.Combo.Capped)
	requireDecimal(t, "100", res.Combo.TotalDiscount)

	require.Len(t, res.Combo.Matches, 1)
	match := res.Combo.Matches[0]
	requireDecimal(t, "100", match.Discount)
	sum := decimal.Zero
	for _, a := range match.Allocations {
		sum = sum.Add(a.Discount)
	}
	requireDecimal(t, "100", sum)
	_, discA := res.Combo.LineDiscount("A")
	_, discB := res.Combo.LineDiscount("B")
	requireDecimal(t, "50", discA)
	requireDecimal(t, "50", discB)
}

func TestComboCapAtKeepsUncappedResult(t *testing.T) {
	res := ComputeComboMatches([]ValuedLine{
		valued("A", "container", "", 120, "0.50"),
		valued("B", "closure", "", 100, "0.40"),
	}, activeConfig())
	capped := res.CapAt(d("100"))
	require.False(t, capped.Capped)
	require.Equal(t, res, capped)
}

func TestComboCapAtSplitsUnevenRemainder(t *testing.T) {
	res := ComboResult{
		Matches: []ComboMatch{{
			MatchedQuantity: 3,
			Allocations: []Allocation{
				{LineID: "A", Side: SidePrimary, Units: 1, Discount: d("1")},
				{LineID: "B", Side: SidePrimary, Units: 1, Discount: d("1")},
				{LineID: "C", Side: SidePrimary, Units: 1, Discount: d("1")},
			},
			Discount: d("3"),
		}},
		TotalDiscount: d("3"),
	}
	capped := res.CapAt(d("1"))
	sum := decimal.Zero
	for _, a := range capped.Matches[0].Allocations {
		sum = sum.Add(a.Discount)
	}
	requireDecimal(t, "1", sum)
	requireDecimal(t, "1", capped.Matches[0].Discount)
	requireDecimal(t, "3", res.Matches[0].Allocations[0].Discount.Add(res.Matches[0].Allocations[1].Discount).Add(res.Matches[0].Allocations[2].Discount))
}
