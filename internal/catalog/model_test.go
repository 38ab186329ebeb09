package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/b2b-storefront/internal/pricing"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func strPtr(s string) *string { return &s }

func sampleProduct() Product {
	override := dec("1.10")
	return Product{
		ID:          "11111111-1111-1111-1111-111111111111",
		SKU:         "BTL-500-28",
		Name:        "PET bottle 500ml",
		BasePrice:   dec("1.25"),
		PackageSize: 0,
		Category:    "bottle",
		GroupKey:    "28mm",
		Tiers:       []pricing.PriceTier{{MinQuantity: 100, UnitPrice: dec("1.00")}},
		Options: []Option{
			{Key: "amber", Label: "Amber", BasePrice: &override},
			{Key: "wide", Label: "Wide neck", GroupKey: strPtr("38mm")},
		},
		Active: true,
	}
}

func TestPricingLineUsesProductDefaults(t *testing.T) {
	line, err := sampleProduct().PricingLine("")
	require.NoError(t, err)
	require.Equal(t, "bottle", line.Category)
	require.Equal(t, "28mm", line.GroupKey)
	require.True(t, line.BasePrice.Equal(dec("1.25")))
	require.Len(t, line.Tiers, 1)
}

func TestPricingLineAppliesOptionOverrides(t *testing.T) {
	p := sampleProduct()

	amber, err := p.PricingLine("amber")
	require.NoError(t, err)
	require.True(t, amber.BasePrice.Equal(dec("1.10")))
	require.Equal(t, "28mm", amber.GroupKey)

	wide, err := p.PricingLine("wide")
	require.NoError(t, err)
	require.Equal(t, "38mm", wide.GroupKey)
	require.True(t, wide.BasePrice.Equal(dec("1.25")))

	_, err = p.PricingLine("purple")
	require.ErrorIs(t, err, ErrUnknownOption)
}

func TestValidateRejectsDuplicateTierThresholds(t *testing.T) {
	p := sampleProduct()
	p.Tiers = append(p.Tiers, pricing.PriceTier{MinQuantity: 100, UnitPrice: dec("0.9")})
	require.ErrorIs(t, p.Validate(), ErrInvalidProduct)
}

func TestValidateRejectsNegativePrices(t *testing.T) {
	p := sampleProduct()
	p.AltTiers = []pricing.PriceTier{{MinQuantity: 1, UnitPrice: dec("-0.01")}}
	require.ErrorIs(t, p.Validate(), ErrInvalidProduct)

	p = sampleProduct()
	p.BasePrice = dec("-1")
	require.ErrorIs(t, p.Validate(), ErrInvalidProduct)
}

func TestValidateRejectsDuplicateOptions(t *testing.T) {
	p := sampleProduct()
	p.Options = append(p.Options, Option{Key: "amber"})
	require.ErrorIs(t, p.Validate(), ErrInvalidProduct)
	require.NoError(t, sampleProduct().Validate())
}
