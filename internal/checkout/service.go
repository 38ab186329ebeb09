package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/b2b-storefront/internal/cart"
	"github.com/noah-isme/b2b-storefront/internal/catalog"
	"github.com/noah-isme/b2b-storefront/internal/common"
	"github.com/noah-isme/b2b-storefront/internal/events"
	"github.com/noah-isme/b2b-storefront/internal/lock"
	"github.com/noah-isme/b2b-storefront/internal/obs"
	"github.com/noah-isme/b2b-storefront/internal/order"
	"github.com/noah-isme/b2b-storefront/internal/quote"
	"github.com/noah-isme/b2b-storefront/internal/repo"
)

// ErrEmptyCart is returned when there is nothing to check out.
var ErrEmptyCart = errors.New("nothing to check out")

// Input is the checkout request. Lines, when present, replace the stored cart
// as the snapshot; CouponCode, when present, replaces the cart's coupon.
type Input struct {
	Lines      []quote.LineRef `json:"lines" validate:"omitempty,max=200,dive"`
	CouponCode *string         `json:"couponCode" validate:"omitempty,max=64"`
	Notes      string          `json:"notes" validate:"max=1000"`
	Email      string          `json:"email" validate:"omitempty,email"`
}

// Output is the created order plus how the coupon was handled.
type Output struct {
	Order  order.Order   `json:"order"`
	Coupon *quote.Coupon `json:"coupon,omitempty"`
}

// Locker serialises checkouts per key.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Carts reads and clears the stored cart.
type Carts interface {
	Get(ctx context.Context, userID string) (cart.Cart, error)
	Clear(ctx context.Context, db repo.DBTX, userID string) error
}

// Catalog supplies the descriptive product fields copied onto order lines.
type Catalog interface {
	Products(ctx context.Context, ids []string) (map[string]catalog.Product, error)
}

// Redeemer consumes coupon usage inside the order transaction.
type Redeemer interface {
	Redeem(ctx context.Context, db repo.DBTX, code string) error
}

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// Service turns a cart or line snapshot into a persisted order.
type Service struct {
	Tx              repo.TxFunc
	Locker          Locker
	LockTTL         time.Duration
	Carts           Carts
	Catalog         Catalog
	Quoter          cart.Quoter
	Orders          order.Store
	Vouchers        Redeemer
	Events          Emitter
	Currency        string
	PersistDecimals int32
	Now             func() time.Time
	Logger          zerolog.Logger
}

// Create prices the snapshot exactly once and persists the order, its lines,
// the voucher usage and the cart reset in a single transaction.
func (s *Service) Create(ctx context.Context, userID string, in Input) (Output, error) {
	if s == nil || s.Tx == nil || s.Orders == nil {
		return Output{}, errors.New("checkout service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return Output{}, common.NewAppError("UNAUTHORIZED", "authentication required", http.StatusUnauthorized, nil)
	}
	if err := common.ValidateStruct(in); err != nil {
		return Output{}, err
	}
	var out Output
	err := s.Locker.WithLock(ctx, lock.CartKey(userID), s.LockTTL, func(ctx context.Context) error {
		var err error
		out, err = s.create(ctx, userID, in)
		return err
	})
	if err != nil {
		return Output{}, err
	}

	obs.IncOrdersCreated()
	s.Logger.Info().
		Str("order_number", out.Order.Number).
		Str("user_id", userID).
		Str("grand_total", out.Order.Totals.GrandTotal.String()).
		Int("combo_matches", len(out.Order.ComboMatches)).
		Msg("order created")
	if s.Events != nil {
		payload := events.OrderCreatedPayload{
			OrderID:    out.Order.ID,
			Number:     out.Order.Number,
			UserID:     userID,
			Email:      strings.TrimSpace(in.Email),
			GrandTotal: out.Order.Totals.GrandTotal.String(),
			Currency:   out.Order.Currency,
		}
		if _, err := s.Events.Emit(ctx, events.TopicOrderCreated, out.Order.ID, payload); err != nil {
			s.Logger.Warn().Err(err).Str("order_id", out.Order.ID).Msg("emit order event failed")
		}
	}
	return out, nil
}

func (s *Service) create(ctx context.Context, userID string, in Input) (Output, error) {
	c, err := s.Carts.Get(ctx, userID)
	if err != nil {
		return Output{}, fmt.Errorf("load cart: %w", err)
	}
	refs := in.Lines
	fromCart := len(refs) == 0
	if fromCart {
		refs = c.Refs()
	}
	if len(refs) == 0 {
		return Output{}, ErrEmptyCart
	}
	coupon := c.CouponCode
	if in.CouponCode != nil {
		coupon = *in.CouponCode
	}

	q, err := s.Quoter.Quote(ctx, quote.Request{Lines: refs, CouponCode: coupon, Source: quote.SourceCheckout})
	if err != nil {
		return Output{}, err
	}
	o, err := s.buildOrder(ctx, userID, in.Notes, q)
	if err != nil {
		return Output{}, err
	}

	var saved order.Order
	err = s.Tx(ctx, func(db repo.DBTX) error {
		var err error
		if saved, err = s.Orders.Insert(ctx, db, o); err != nil {
			return err
		}
		if o.CouponCode != "" && s.Vouchers != nil {
			if err := s.Vouchers.Redeem(ctx, db, o.CouponCode); err != nil {
				return fmt.Errorf("redeem coupon: %w", err)
			}
		}
		if fromCart {
			if err := s.Carts.Clear(ctx, db, userID); err != nil {
				return fmt.Errorf("clear cart: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Output{}, err
	}
	return Output{Order: saved, Coupon: q.Coupon}, nil
}

func (s *Service) buildOrder(ctx context.Context, userID, notes string, q quote.Quote) (order.Order, error) {
	ids := make([]string, 0, len(q.Lines))
	for _, l := range q.Lines {
		ids = append(ids, l.ProductID)
	}
	products, err := s.Catalog.Products(ctx, ids)
	if err != nil {
		return order.Order{}, fmt.Errorf("load products: %w", err)
	}

	places := s.PersistDecimals
	positions := make(map[string]int, len(q.Lines))
	lines := make([]order.Line, 0, len(q.Lines))
	for i, l := range q.Lines {
		positions[l.ID] = i
		units, discount := q.Combo.LineDiscount(l.ID)
		p := products[l.ProductID]
		lines = append(lines, order.Line{
			Position:      i,
			ProductID:     l.ProductID,
			OptionKey:     l.OptionKey,
			SKU:           p.SKU,
			Name:          p.Name,
			Quantity:      l.Quantity,
			PackageSize:   l.PackageSize,
			UnitCount:     l.UnitCount,
			UnitPrice:     l.UnitPrice.Round(places),
			ExtendedTotal: l.ExtendedTotal.Round(places),
			Category:      l.Category,
			GroupKey:      l.GroupKey,
			ComboUnits:    units,
			ComboDiscount: discount.Round(places),
		})
	}

	o := order.Order{
		Number:             newOrderNumber(s.now()),
		UserID:             userID,
		Status:             order.StatusPending,
		Currency:           s.Currency,
		Totals:             q.Totals.Round(places),
		ComboConfigVersion: q.ComboConfigVersion,
		ReferenceRate:      q.ReferenceRate,
		TaxRatePercent:     q.TaxRatePercent,
		ComboMatches:       order.Summarize(q.Combo, positions, places),
		Notes:              strings.TrimSpace(notes),
		Lines:              lines,
	}
	if q.Coupon != nil && q.Coupon.Applied {
		o.CouponCode = q.Coupon.Code
	}
	return o, nil
}

// newOrderNumber returns a lexicographically sortable order number.
func newOrderNumber(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
