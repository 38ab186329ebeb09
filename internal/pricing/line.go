package pricing

import "github.com/shopspring/decimal"

// Line is a cart or order line as seen by the pricing engine.
type Line struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"productId"`
	OptionKey   string          `json:"optionKey,omitempty"`
	Quantity    int             `json:"quantity"`
	PackageSize int             `json:"packageSize,omitempty"`
	BasePrice   decimal.Decimal `json:"basePrice"`
	Tiers       []PriceTier     `json:"tiers,omitempty"`
	AltTiers    []PriceTier     `json:"altTiers,omitempty"`
	Category    string          `json:"category,omitempty"`
	GroupKey    string          `json:"groupKey,omitempty"`
}

// ValuedLine carries the resolved price of a line.
type ValuedLine struct {
	Line
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	UnitCount     int             `json:"unitCount"`
	ExtendedTotal decimal.Decimal `json:"extendedTotal"`
}

// Packaged reports whether Quantity counts packages rather than units.
func (l Line) Packaged() bool {
	return l.PackageSize > 0
}

// Units returns the number of individual units on the line.
func (l Line) Units() int {
	qty := l.Quantity
	if qty < 0 {
		qty = 0
	}
	if l.Packaged() {
		return qty * l.PackageSize
	}
	return qty
}

// comparisonQuantity is the quantity tiers are authored against: packages
// for packaged lines, units otherwise.
func (l Line) comparisonQuantity() int {
	if l.Quantity < 0 {
		return 0
	}
	return l.Quantity
}

// ValuateLine resolves the effective unit price and extended total for a line.
//
// The alternate-currency tier list wins over the primary list whenever it is
// present. A qualifying alternate tier is converted into the reference
// currency by multiplying with referenceRate. A non-positive rate cannot
// convert anything, so the primary list is used instead.
func ValuateLine(line Line, referenceRate decimal.Decimal) ValuedLine {
	unitCount := line.Units()
	cmp := line.comparisonQuantity()

	var unitPrice decimal.Decimal
	if len(line.AltTiers) > 0 && referenceRate.IsPositive() {
		if tier, ok := applicableTier(line.AltTiers, cmp); ok {
			unitPrice = tier.UnitPrice.Mul(referenceRate)
		} else {
			unitPrice = line.BasePrice
		}
	} else {
		unitPrice = ResolveUnitPrice(line.Tiers, cmp, line.BasePrice)
	}

	return ValuedLine{
		Line:          line,
		UnitPrice:     unitPrice,
		UnitCount:     unitCount,
		ExtendedTotal: unitPrice.Mul(decimal.NewFromInt(int64(unitCount))),
	}
}

// ValuateLines values every line, preserving input order.
func ValuateLines(lines []Line, referenceRate decimal.Decimal) []ValuedLine {
	out := make([]ValuedLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, ValuateLine(l, referenceRate))
	}
	return out
}
