package pricing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PriceTier is a quantity threshold at which UnitPrice applies.
type PriceTier struct {
	MinQuantity int             `json:"minQuantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// ResolveUnitPrice returns the price of the qualifying tier with the largest
// MinQuantity, or base when no tier qualifies. The input slice is not modified
// and is not assumed to be sorted.
func ResolveUnitPrice(tiers []PriceTier, comparisonQty int, base decimal.Decimal) decimal.Decimal {
	tier, ok := applicableTier(tiers, comparisonQty)
	if !ok {
		return base
	}
	return tier.UnitPrice
}

func applicableTier(tiers []PriceTier, comparisonQty int) (PriceTier, bool) {
	qualifying := make([]PriceTier, 0, len(tiers))
	for _, t := range tiers {
		if t.MinQuantity <= comparisonQty {
			qualifying = append(qualifying, t)
		}
	}
	if len(qualifying) == 0 {
		return PriceTier{}, false
	}
	sort.SliceStable(qualifying, func(i, j int) bool {
		return qualifying[i].MinQuantity < qualifying[j].MinQuantity
	})
	return qualifying[len(qualifying)-1], true
}
