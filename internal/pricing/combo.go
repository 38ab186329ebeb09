package pricing

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// DiscountType selects how a combo discount is computed per allocated unit.
type DiscountType string

const (
	// DiscountPercentage takes DiscountValue percent off each allocated unit.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed takes DiscountValue off each allocated unit.
	DiscountFixed DiscountType = "fixed"
)

// Side identifies which eligible category a line counted toward.
type Side string

const (
	SidePrimary   Side = "primary"
	SideSecondary Side = "secondary"
)

// ErrInvalidComboConfig is returned by ComboConfig.Validate.
var ErrInvalidComboConfig = errors.New("invalid combo configuration")

// ComboConfig is the merchant-wide combo promotion rule.
type ComboConfig struct {
	Version                int             `json:"version"`
	Active                 bool            `json:"active"`
	DiscountType           DiscountType    `json:"discountType"`
	DiscountValue          decimal.Decimal `json:"discountValue"`
	PrimaryCategory        string          `json:"primaryCategory"`
	SecondaryCategory      string          `json:"secondaryCategory"`
	RequireSameGroupKey    bool            `json:"requireSameGroupKey"`
	MinimumMatchedQuantity int             `json:"minimumMatchedQuantity"`
}

// DefaultComboConfig is the first-run configuration: inactive and matching nothing.
func DefaultComboConfig() ComboConfig {
	return ComboConfig{
		Active:        false,
		DiscountType:  DiscountPercentage,
		DiscountValue: decimal.Zero,
	}
}

// Validate checks a configuration before it is stored.
func (c ComboConfig) Validate() error {
	switch c.DiscountType {
	case DiscountPercentage, DiscountFixed:
	default:
		return fmt.Errorf("%w: unknown discount type %q", ErrInvalidComboConfig, c.DiscountType)
	}
	if c.DiscountValue.IsNegative() {
		return fmt.Errorf("%w: discount value must not be negative", ErrInvalidComboConfig)
	}
	if c.DiscountType == DiscountPercentage && c.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: percentage above 100", ErrInvalidComboConfig)
	}
	if c.MinimumMatchedQuantity < 0 {
		return fmt.Errorf("%w: minimum matched quantity must not be negative", ErrInvalidComboConfig)
	}
	if c.Active {
		primary := strings.TrimSpace(c.PrimaryCategory)
		secondary := strings.TrimSpace(c.SecondaryCategory)
		if primary == "" || secondary == "" {
			return fmt.Errorf("%w: both categories are required", ErrInvalidComboConfig)
		}
		if primary == secondary {
			return fmt.Errorf("%w: categories must differ", ErrInvalidComboConfig)
		}
	}
	return nil
}

// discountPerUnit returns the discount granted for one allocated unit at unitPrice.
func (c ComboConfig) discountPerUnit(unitPrice decimal.Decimal) decimal.Decimal {
	if c.DiscountType == DiscountFixed {
		return c.DiscountValue
	}
	return unitPrice.Mul(c.DiscountValue).Shift(-2)
}

// Allocation is the share of a match attributed to one line.
type Allocation struct {
	LineID   string          `json:"lineId"`
	Side     Side            `json:"side"`
	Units    int             `json:"units"`
	Discount decimal.Decimal `json:"discount"`
}

// ComboMatch describes one matched group.
type ComboMatch struct {
	GroupKey        *string         `json:"groupKey"`
	MatchedQuantity int             `json:"matchedQuantity"`
	Allocations     []Allocation    `json:"allocations"`
	Discount        decimal.Decimal `json:"discount"`
}

// PerLineAllocation maps line id to allocated units.
func (m ComboMatch) PerLineAllocation() map[string]int {
	out := make(map[string]int, len(m.Allocations))
	for _, a := range m.Allocations {
		out[a.LineID] += a.Units
	}
	return out
}

// ComboResult is the outcome of matching a whole cart.
type ComboResult struct {
	Matches       []ComboMatch    `json:"matches"`
	TotalDiscount decimal.Decimal `json:"totalDiscount"`
	// Capped is set when the discounts were scaled down to fit the subtotal.
	Capped bool `json:"capped,omitempty"`
}

// capPrecision bounds the scale used when shrinking allocations.
const capPrecision = 16

// CapAt scales every match and allocation down proportionally so that the
// granted discount never exceeds ceiling. The last allocation absorbs the
// division remainder, keeping the allocations summing exactly to ceiling.
func (r ComboResult) CapAt(ceiling decimal.Decimal) ComboResult {
	if ceiling.IsNegative() {
		ceiling = decimal.Zero
	}
	if !r.TotalDiscount.GreaterThan(ceiling) {
		return r
	}
	out := ComboResult{Matches: make([]ComboMatch, 0, len(r.Matches)), TotalDiscount: ceiling, Capped: true}
	granted := decimal.Zero
	lastMatch, lastAlloc := -1, -1
	for _, m := range r.Matches {
		scaled := m
		scaled.Discount = decimal.Zero
		scaled.Allocations = make([]Allocation, len(m.Allocations))
		for i, a := range m.Allocations {
			a.Discount = a.Discount.Mul(ceiling).DivRound(r.TotalDiscount, capPrecision)
			scaled.Allocations[i] = a
			scaled.Discount = scaled.Discount.Add(a.Discount)
			granted = granted.Add(a.Discount)
			lastMatch, lastAlloc = len(out.Matches), i
		}
		out.Matches = append(out.Matches, scaled)
	}
	if rest := ceiling.Sub(granted); !rest.IsZero() && lastMatch >= 0 {
		m := &out.Matches[lastMatch]
		m.Allocations[lastAlloc].Discount = m.Allocations[lastAlloc].Discount.Add(rest)
		m.Discount = m.Discount.Add(rest)
	}
	return out
}

// LineDiscount sums the combo discount allocated to a line across all matches.
func (r ComboResult) LineDiscount(lineID string) (units int, discount decimal.Decimal) {
	discount = decimal.Zero
	for _, m := range r.Matches {
		for _, a := range m.Allocations {
			if a.LineID == lineID {
				units += a.Units
				discount = discount.Add(a.Discount)
			}
		}
	}
	return units, discount
}

type comboGroup struct {
	key       *string
	primary   []ValuedLine
	secondary []ValuedLine
}

// ComputeComboMatches finds cross-category matches and allocates the matched
// quantity cheapest-line-first on each side independently.
func ComputeComboMatches(valued []ValuedLine, cfg ComboConfig) ComboResult {
	result := ComboResult{Matches: []ComboMatch{}, TotalDiscount: decimal.Zero}
	if !cfg.Active {
		return result
	}

	for _, g := range groupEligible(valued, cfg) {
		match, ok := matchGroup(g, cfg)
		if !ok {
			continue
		}
		result.Matches = append(result.Matches, match)
		result.TotalDiscount = result.TotalDiscount.Add(match.Discount)
	}
	return result
}

func sideOf(l ValuedLine, cfg ComboConfig) (Side, bool) {
	if cfg.PrimaryCategory != "" && l.Category == cfg.PrimaryCategory {
		return SidePrimary, true
	}
	if cfg.SecondaryCategory != "" && l.Category == cfg.SecondaryCategory {
		return SideSecondary, true
	}
	return "", false
}

func groupEligible(valued []ValuedLine, cfg ComboConfig) []*comboGroup {
	var groups []*comboGroup
	index := map[string]*comboGroup{}
	var single *comboGroup

	for _, l := range valued {
		side, ok := sideOf(l, cfg)
		if !ok {
			continue
		}
		var g *comboGroup
		if cfg.RequireSameGroupKey {
			key := strings.TrimSpace(l.GroupKey)
			if key == "" {
				continue
			}
			g = index[key]
			if g == nil {
				k := key
				g = &comboGroup{key: &k}
				index[key] = g
				groups = append(groups, g)
			}
		} else {
			if single == nil {
				single = &comboGroup{}
				groups = append(groups, single)
			}
			g = single
		}
		if side == SidePrimary {
			g.primary = append(g.primary, l)
		} else {
			g.secondary = append(g.secondary, l)
		}
	}
	return groups
}

func matchGroup(g *comboGroup, cfg ComboConfig) (ComboMatch, bool) {
	matched := min(sumUnits(g.primary), sumUnits(g.secondary))
	if matched <= 0 || matched < cfg.MinimumMatchedQuantity {
		return ComboMatch{}, false
	}
	match := ComboMatch{
		GroupKey:        g.key,
		MatchedQuantity: matched,
		Discount:        decimal.Zero,
	}
	for _, side := range []struct {
		side  Side
		lines []ValuedLine
	}{{SidePrimary, g.primary}, {SideSecondary, g.secondary}} {
		for _, a := range allocate(side.lines, matched, side.side, cfg) {
			match.Allocations = append(match.Allocations, a)
			match.Discount = match.Discount.Add(a.Discount)
		}
	}
	return match, true
}

func sumUnits(lines []ValuedLine) int {
	total := 0
	for _, l := range lines {
		total += l.UnitCount
	}
	return total
}

// allocate walks lines cheapest first assigning units until matched is used up.
// Equal prices keep cart order.
func allocate(lines []ValuedLine, matched int, side Side, cfg ComboConfig) []Allocation {
	sorted := make([]ValuedLine, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].UnitPrice.LessThan(sorted[j].UnitPrice)
	})

	remaining := matched
	var out []Allocation
	for _, l := range sorted {
		if remaining <= 0 {
			break
		}
		units := min(l.UnitCount, remaining)
		if units <= 0 {
			continue
		}
		remaining -= units
		out = append(out, Allocation{
			LineID:   l.ID,
			Side:     side,
			Units:    units,
			Discount: cfg.discountPerUnit(l.UnitPrice).Mul(decimal.NewFromInt(int64(units))),
		})
	}
	return out
}
