package pricing

import "github.com/shopspring/decimal"

// Totals aggregates computed pricing components in the reference currency.
type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	ComboDiscount  decimal.Decimal `json:"comboDiscount"`
	CouponDiscount decimal.Decimal `json:"couponDiscount"`
	TaxAmount      decimal.Decimal `json:"taxAmount"`
	GrandTotal     decimal.Decimal `json:"grandTotal"`
}

// Round normalises every component to the given number of decimal places.
// It is applied when totals are persisted, never while computing them.
func (t Totals) Round(places int32) Totals {
	return Totals{
		Subtotal:       t.Subtotal.Round(places),
		ComboDiscount:  t.ComboDiscount.Round(places),
		CouponDiscount: t.CouponDiscount.Round(places),
		TaxAmount:      t.TaxAmount.Round(places),
		GrandTotal:     t.GrandTotal.Round(places),
	}
}

// Subtotal sums extended totals across all lines.
func Subtotal(valued []ValuedLine) decimal.Decimal {
	subtotal := decimal.Zero
	for _, l := range valued {
		subtotal = subtotal.Add(l.ExtendedTotal)
	}
	return subtotal
}

// ComputeTotals folds line totals, combo discount, coupon discount and tax
// into order totals. Discounts are capped so the taxable base never drops
// below zero; the coupon is taken from what remains after the combo discount.
func ComputeTotals(valued []ValuedLine, combo ComboResult, coupon decimal.Decimal, taxRatePercent decimal.Decimal) Totals {
	subtotal := Subtotal(valued)

	comboDiscount := clamp(combo.TotalDiscount, subtotal)
	afterCombo := subtotal.Sub(comboDiscount)
	couponDiscount := clamp(coupon, afterCombo)
	taxable := afterCombo.Sub(couponDiscount)

	rate := taxRatePercent
	if rate.IsNegative() {
		rate = decimal.Zero
	}
	tax := taxable.Mul(rate).Shift(-2)

	return Totals{
		Subtotal:       subtotal,
		ComboDiscount:  comboDiscount,
		CouponDiscount: couponDiscount,
		TaxAmount:      tax,
		GrandTotal:     taxable.Add(tax),
	}
}

func clamp(v, ceiling decimal.Decimal) decimal.Decimal {
	if v.IsNegative() || ceiling.IsNegative() {
		return decimal.Zero
	}
	if v.GreaterThan(ceiling) {
		return ceiling
	}
	return v
}

// CouponFunc returns the coupon discount for the base left after the combo
// discount. Coupon validation happens before the engine is invoked.
type CouponFunc func(valued []ValuedLine, base decimal.Decimal) decimal.Decimal

// Input is one immutable snapshot for a pricing pass.
type Input struct {
	Lines          []Line
	Combo          ComboConfig
	ReferenceRate  decimal.Decimal
	TaxRatePercent decimal.Decimal
}

// Result holds every intermediate and final value of a pricing pass.
type Result struct {
	Lines  []ValuedLine `json:"lines"`
	Combo  ComboResult  `json:"combo"`
	Totals Totals       `json:"totals"`
}

// Run executes line valuation, combo matching and totals aggregation in that
// order. A nil coupon applies no coupon discount. The combo result is capped
// at the subtotal so its allocations agree with Totals.ComboDiscount.
func Run(in Input, coupon CouponFunc) Result {
	valued := ValuateLines(in.Lines, in.ReferenceRate)
	combo := ComputeComboMatches(valued, in.Combo).CapAt(Subtotal(valued))

	couponAmount := decimal.Zero
	if coupon != nil {
		base := Subtotal(valued).Sub(combo.TotalDiscount)
		if base.IsPositive() {
			couponAmount = coupon(valued, base)
		}
	}

	return Result{
		Lines:  valued,
		Combo:  combo,
		Totals: ComputeTotals(valued, combo, couponAmount, in.TaxRatePercent),
	}
}
