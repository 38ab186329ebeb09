package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/b2b-storefront/internal/pricing"
)

var (
	// ErrNotFound is returned when a product does not exist or is inactive.
	ErrNotFound = errors.New("catalog: product not found")
	// ErrUnknownOption is returned when a line references an option the product does not offer.
	ErrUnknownOption = errors.New("catalog: unknown product option")
	// ErrInvalidProduct wraps product validation failures.
	ErrInvalidProduct = errors.New("catalog: invalid product")
)

// Product is a sellable catalog entry with its pricing attributes.
type Product struct {
	ID          string              `json:"id"`
	SKU         string              `json:"sku" validate:"required,max=64"`
	Name        string              `json:"name" validate:"required,max=200"`
	BasePrice   decimal.Decimal     `json:"basePrice"`
	PackageSize int                 `json:"packageSize" validate:"gte=0"`
	Category    string              `json:"category" validate:"max=64"`
	GroupKey    string              `json:"groupKey" validate:"max=64"`
	Tiers       []pricing.PriceTier `json:"tiers"`
	AltTiers    []pricing.PriceTier `json:"altTiers"`
	Options     []Option            `json:"options" validate:"dive"`
	Active      bool                `json:"active"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// Option is a selectable variant of a product, such as a finish or colour.
// BasePrice and GroupKey override the product values when set.
type Option struct {
	Key       string           `json:"key" validate:"required,max=64"`
	Label     string           `json:"label" validate:"max=120"`
	BasePrice *decimal.Decimal `json:"basePrice,omitempty"`
	GroupKey  *string          `json:"groupKey,omitempty"`
}

// Validate checks the invariants the pricing engine relies on.
func (p Product) Validate() error {
	if p.BasePrice.IsNegative() {
		return fmt.Errorf("%w: basePrice must not be negative", ErrInvalidProduct)
	}
	if err := validateTiers("tiers", p.Tiers); err != nil {
		return err
	}
	if err := validateTiers("altTiers", p.AltTiers); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(p.Options))
	for _, opt := range p.Options {
		key := strings.TrimSpace(opt.Key)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate option %q", ErrInvalidProduct, key)
		}
		seen[key] = struct{}{}
		if opt.BasePrice != nil && opt.BasePrice.IsNegative() {
			return fmt.Errorf("%w: option %q basePrice must not be negative", ErrInvalidProduct, key)
		}
	}
	return nil
}

func validateTiers(field string, tiers []pricing.PriceTier) error {
	seen := make(map[int]struct{}, len(tiers))
	for _, t := range tiers {
		if t.MinQuantity < 0 {
			return fmt.Errorf("%w: %s minQuantity must not be negative", ErrInvalidProduct, field)
		}
		if t.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: %s unitPrice must not be negative", ErrInvalidProduct, field)
		}
		if _, dup := seen[t.MinQuantity]; dup {
			return fmt.Errorf("%w: %s has duplicate minQuantity %d", ErrInvalidProduct, field, t.MinQuantity)
		}
		seen[t.MinQuantity] = struct{}{}
	}
	return nil
}

// Option returns the option with key.
func (p Product) Option(key string) (Option, bool) {
	for _, opt := range p.Options {
		if opt.Key == key {
			return opt, true
		}
	}
	return Option{}, false
}

// PricingLine builds the pricing attributes of a line for this product and option.
// The caller fills in ID and Quantity.
func (p Product) PricingLine(optionKey string) (pricing.Line, error) {
	line := pricing.Line{
		ProductID:   p.ID,
		OptionKey:   optionKey,
		PackageSize: p.PackageSize,
		BasePrice:   p.BasePrice,
		Tiers:       p.Tiers,
		AltTiers:    p.AltTiers,
		Category:    p.Category,
		GroupKey:    p.GroupKey,
	}
	if optionKey == "" {
		return line, nil
	}
	opt, ok := p.Option(optionKey)
	if !ok {
		return pricing.Line{}, fmt.Errorf("%w: %s/%s", ErrUnknownOption, p.ID, optionKey)
	}
	if opt.BasePrice != nil {
		line.BasePrice = *opt.BasePrice
	}
	if opt.GroupKey != nil {
		line.GroupKey = *opt.GroupKey
	}
	return line, nil
}
