// Package quote is the single call path that turns line references into a
// priced snapshot. Cart previews, the public quote endpoint and checkout all
// go through Service.Quote.
package quote

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/b2b-storefront/internal/catalog"
	"github.com/noah-isme/b2b-storefront/internal/common"
	"github.com/noah-isme/b2b-storefront/internal/obs"
	"github.com/noah-isme/b2b-storefront/internal/pricing"
	"github.com/noah-isme/b2b-storefront/internal/rates"
	"github.com/noah-isme/b2b-storefront/internal/voucher"
)

// ErrInvalidInput is returned when a line cannot be hydrated from the catalog.
var ErrInvalidInput = errors.New("invalid quote input")

const (
	SourcePreview  = "preview"
	SourceQuote    = "quote"
	SourceCheckout = "checkout"
)

// Catalog resolves product ids to active products.
type Catalog interface {
	Products(ctx context.Context, ids []string) (map[string]catalog.Product, error)
}

// Settings supplies the combo rule and tax rate.
type Settings interface {
	Combo(ctx context.Context) (pricing.ComboConfig, error)
	TaxRate(ctx context.Context) (decimal.Decimal, error)
}

// RateSource supplies the reference exchange rate.
type RateSource interface {
	Current(ctx context.Context) rates.Rate
}

// Vouchers looks up and evaluates coupon codes.
type Vouchers interface {
	Lookup(ctx context.Context, code string) (voucher.Rule, error)
	Evaluate(rule voucher.Rule, base decimal.Decimal) (decimal.Decimal, error)
}

// Quote request bounds. The validate tags on Request and LineRef use the same values.
const (
	MaxLines        = 200
	MaxLineQuantity = 100000
)

// LineRef is a client-supplied line: what to buy, never what it costs.
type LineRef struct {
	ID        string `json:"id,omitempty"`
	ProductID string `json:"productId" validate:"required"`
	OptionKey string `json:"optionKey,omitempty"`
	Quantity  int    `json:"quantity" validate:"gte=1,lte=100000"`
}

// Request asks for a quote.
type Request struct {
	Lines      []LineRef `json:"lines" validate:"required,min=1,max=200,dive"`
	CouponCode string    `json:"couponCode,omitempty" validate:"max=64"`
	Source     string    `json:"-"`
}

// Coupon reports how a submitted coupon code was handled.
type Coupon struct {
	Code     string          `json:"code"`
	Applied  bool            `json:"applied"`
	Discount decimal.Decimal `json:"discount"`
	Reason   string          `json:"reason,omitempty"`
}

// Quote is a complete priced snapshot.
type Quote struct {
	Lines              []pricing.ValuedLine `json:"lines"`
	Combo              pricing.ComboResult  `json:"combo"`
	Totals             pricing.Totals       `json:"totals"`
	ComboConfigVersion int                  `json:"comboConfigVersion"`
	ReferenceRate      decimal.Decimal      `json:"referenceRate"`
	RateSource         string               `json:"rateSource"`
	TaxRatePercent     decimal.Decimal      `json:"taxRatePercent"`
	Coupon             *Coupon              `json:"coupon,omitempty"`
}

// Service prices line snapshots.
type Service struct {
	Catalog  Catalog
	Settings Settings
	Rates    RateSource
	Vouchers Vouchers
	// DefaultTaxRate prices a quote when the stored tax rate cannot be read.
	DefaultTaxRate decimal.Decimal
	Logger         zerolog.Logger
}

// Quote hydrates req from the catalog and runs the pricing pipeline once.
// Combo config, reference rate and tax rate are each read exactly once so a
// single quote never mixes two configurations.
func (s *Service) Quote(ctx context.Context, req Request) (Quote, error) {
	ctx, span := otel.Tracer("storefront/quote").Start(ctx, "quote.Quote")
	defer span.End()
	started := time.Now()
	source := req.Source
	if source == "" {
		source = SourceQuote
	}
	span.SetAttributes(attribute.String("quote.source", source), attribute.Int("quote.lines", len(req.Lines)))

	if err := common.ValidateStruct(req); err != nil {
		return Quote{}, err
	}
	lines, err := s.hydrate(ctx, req.Lines)
	if err != nil {
		return Quote{}, err
	}

	combo, err := s.Settings.Combo(ctx)
	if err != nil {
		s.Logger.Warn().Err(err).Str("source", source).Msg("combo config unavailable, pricing without combo")
		combo = pricing.DefaultComboConfig()
	}
	tax, err := s.Settings.TaxRate(ctx)
	if err != nil {
		s.Logger.Warn().Err(err).Str("source", source).Msg("tax rate unavailable, using default")
		tax = s.DefaultTaxRate
	}
	rate := s.Rates.Current(ctx)

	coupon, couponFn := s.prepareCoupon(ctx, req.CouponCode)

	result := pricing.Run(pricing.Input{
		Lines:          lines,
		Combo:          combo,
		ReferenceRate:  rate.Value,
		TaxRatePercent: tax,
	}, couponFn)

	if coupon != nil {
		coupon.Discount = result.Totals.CouponDiscount
		coupon.Applied = coupon.Reason == "" && coupon.Discount.IsPositive()
	}

	obs.ObservePricing(source, float64(time.Since(started).Microseconds())/1000, len(result.Combo.Matches))
	s.Logger.Debug().
		Str("source", source).
		Int("lines", len(lines)).
		Int("combo_matches", len(result.Combo.Matches)).
		Str("grand_total", result.Totals.GrandTotal.String()).
		Msg("quote computed")

	return Quote{
		Lines:              result.Lines,
		Combo:              result.Combo,
		Totals:             result.Totals,
		ComboConfigVersion: combo.Version,
		ReferenceRate:      rate.Value,
		RateSource:         rate.Source,
		TaxRatePercent:     tax,
		Coupon:             coupon,
	}, nil
}

func (s *Service) hydrate(ctx context.Context, refs []LineRef) ([]pricing.Line, error) {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, strings.TrimSpace(ref.ProductID))
	}
	products, err := s.Catalog.Products(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	seen := make(map[string]struct{}, len(refs))
	lines := make([]pricing.Line, 0, len(refs))
	for i, ref := range refs {
		id := strings.TrimSpace(ref.ID)
		if id == "" {
			id = "line-" + strconv.Itoa(i+1)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate line id %q", ErrInvalidInput, id)
		}
		seen[id] = struct{}{}

		product, ok := products[strings.TrimSpace(ref.ProductID)]
		if !ok {
			return nil, fmt.Errorf("%w: unknown product %q", ErrInvalidInput, ref.ProductID)
		}
		line, err := product.PricingLine(strings.TrimSpace(ref.OptionKey))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		line.ID = id
		line.Quantity = ref.Quantity
		lines = append(lines, line)
	}
	return lines, nil
}

// prepareCoupon looks the code up before pricing so the engine callback is
// pure. Any coupon failure yields a zero discount with a reason.
func (s *Service) prepareCoupon(ctx context.Context, code string) (*Coupon, pricing.CouponFunc) {
	code = voucher.NormalizeCode(code)
	if code == "" || s.Vouchers == nil {
		return nil, nil
	}
	coupon := &Coupon{Code: code, Discount: decimal.Zero}
	rule, err := s.Vouchers.Lookup(ctx, code)
	if err != nil {
		coupon.Reason = couponReason(err)
		if !voucher.IsRejection(err) {
			s.Logger.Warn().Err(err).Str("code", code).Msg("coupon lookup failed")
		}
		return coupon, nil
	}
	return coupon, func(_ []pricing.ValuedLine, base decimal.Decimal) decimal.Decimal {
		discount, err := s.Vouchers.Evaluate(rule, base)
		if err != nil {
			coupon.Reason = couponReason(err)
			return decimal.Zero
		}
		return discount
	}
}

func couponReason(err error) string {
	switch {
	case errors.Is(err, voucher.ErrNotFound):
		return "not_found"
	case errors.Is(err, voucher.ErrVoucherExpired):
		return "expired"
	case errors.Is(err, voucher.ErrVoucherInactive):
		return "inactive"
	case errors.Is(err, voucher.ErrUsageLimitReached):
		return "usage_limit_reached"
	case errors.Is(err, voucher.ErrMinimumSpendUnmet):
		return "minimum_spend_unmet"
	case errors.Is(err, voucher.ErrNotEligible):
		return "not_eligible"
	default:
		return "unavailable"
	}
}
