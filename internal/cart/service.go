package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/b2b-storefront/internal/catalog"
	"github.com/noah-isme/b2b-storefront/internal/quote"
	"github.com/noah-isme/b2b-storefront/internal/repo"
	"github.com/noah-isme/b2b-storefront/internal/voucher"
)

var (
	// ErrLineNotFound indicates the requested cart line does not exist in the caller's cart.
	ErrLineNotFound = errors.New("cart line not found")
	// ErrInvalidInput is returned when the provided payload is invalid.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmpty is returned when an operation needs at least one line.
	ErrEmpty = errors.New("cart is empty")
)

// Cart is a user's pending selection.
type Cart struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	CouponCode string    `json:"couponCode,omitempty"`
	Lines      []Line    `json:"lines"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Line is one product/option entry of a cart.
type Line struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	OptionKey string `json:"optionKey,omitempty"`
	Quantity  int    `json:"quantity"`
	Position  int    `json:"position"`
}

// Refs converts the cart into quote line references keyed by cart line id.
func (c Cart) Refs() []quote.LineRef {
	refs := make([]quote.LineRef, 0, len(c.Lines))
	for _, l := range c.Lines {
		refs = append(refs, quote.LineRef{ID: l.ID, ProductID: l.ProductID, OptionKey: l.OptionKey, Quantity: l.Quantity})
	}
	return refs
}

// Catalog resolves products so lines are only added for sellable items.
type Catalog interface {
	Products(ctx context.Context, ids []string) (map[string]catalog.Product, error)
}

// Quoter prices a set of line references.
type Quoter interface {
	Quote(ctx context.Context, req quote.Request) (quote.Quote, error)
}

// Service encapsulates cart domain operations.
type Service struct {
	Store   Store
	Catalog Catalog
	Quoter  Quoter
	Logger  zerolog.Logger
}

// View is a cart plus its priced preview.
type View struct {
	Cart
	Quote *quote.Quote `json:"quote,omitempty"`
	// QuoteError is set when the cart holds lines that can no longer be priced.
	QuoteError string `json:"quoteError,omitempty"`
}

// Get loads the user's cart with its lines.
func (s *Service) Get(ctx context.Context, userID string) (Cart, error) {
	if strings.TrimSpace(userID) == "" {
		return Cart{}, fmt.Errorf("user is required: %w", ErrInvalidInput)
	}
	c, err := s.Store.Ensure(ctx, userID)
	if err != nil {
		return Cart{}, err
	}
	lines, err := s.Store.Lines(ctx, c.ID)
	if err != nil {
		return Cart{}, err
	}
	c.Lines = lines
	return c, nil
}

// Preview returns the cart priced through the shared quote path.
func (s *Service) Preview(ctx context.Context, userID string) (View, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return View{}, err
	}
	view := View{Cart: c}
	if len(c.Lines) == 0 || s.Quoter == nil {
		return view, nil
	}
	q, err := s.Quoter.Quote(ctx, quote.Request{Lines: c.Refs(), CouponCode: c.CouponCode, Source: quote.SourcePreview})
	if err != nil {
		if !errors.Is(err, quote.ErrInvalidInput) {
			return View{}, err
		}
		view.QuoteError = err.Error()
		return view, nil
	}
	view.Quote = &q
	return view, nil
}

// AddLine adds qty of a product option, merging with an existing line.
func (s *Service) AddLine(ctx context.Context, userID, productID, optionKey string, qty int) (Cart, error) {
	if qty <= 0 {
		return Cart{}, fmt.Errorf("quantity must be positive: %w", ErrInvalidInput)
	}
	productID = strings.TrimSpace(productID)
	optionKey = strings.TrimSpace(optionKey)
	found, err := s.Catalog.Products(ctx, []string{productID})
	if err != nil {
		return Cart{}, err
	}
	product, ok := found[productID]
	if !ok {
		return Cart{}, fmt.Errorf("unknown product: %w", ErrInvalidInput)
	}
	if optionKey != "" {
		if _, ok := product.Option(optionKey); !ok {
			return Cart{}, fmt.Errorf("unknown option: %w", ErrInvalidInput)
		}
	}
	c, err := s.Get(ctx, userID)
	if err != nil {
		return Cart{}, err
	}
	if err := checkMerge(c, productID, optionKey, qty); err != nil {
		return Cart{}, err
	}
	if _, err := s.Store.AddLine(ctx, c.ID, productID, optionKey, qty); err != nil {
		return Cart{}, err
	}
	s.Logger.Debug().Str("user_id", userID).Str("product_id", productID).Int("qty", qty).Msg("cart line added")
	return s.Get(ctx, userID)
}

// UpdateQuantity sets a line quantity. Zero removes the line.
func (s *Service) UpdateQuantity(ctx context.Context, userID, lineID string, qty int) (Cart, error) {
	if qty < 0 {
		return Cart{}, fmt.Errorf("quantity must not be negative: %w", ErrInvalidInput)
	}
	if qty == 0 {
		return s.RemoveLine(ctx, userID, lineID)
	}
	if qty > quote.MaxLineQuantity {
		return Cart{}, fmt.Errorf("quantity above %d: %w", quote.MaxLineQuantity, ErrInvalidInput)
	}
	c, err := s.Store.Ensure(ctx, userID)
	if err != nil {
		return Cart{}, err
	}
	if err := s.Store.SetQuantity(ctx, c.ID, lineID, qty); err != nil {
		return Cart{}, err
	}
	return s.Get(ctx, userID)
}

// checkMerge keeps the cart within what a quote accepts, so a stored cart can
// always be previewed and checked out.
func checkMerge(c Cart, productID, optionKey string, qty int) error {
	for _, l := range c.Lines {
		if l.ProductID == productID && l.OptionKey == optionKey {
			if l.Quantity+qty > quote.MaxLineQuantity {
				return fmt.Errorf("line quantity would exceed %d: %w", quote.MaxLineQuantity, ErrInvalidInput)
			}
			return nil
		}
	}
	if qty > quote.MaxLineQuantity {
		return fmt.Errorf("quantity above %d: %w", quote.MaxLineQuantity, ErrInvalidInput)
	}
	if len(c.Lines) >= quote.MaxLines {
		return fmt.Errorf("cart holds the maximum of %d lines: %w", quote.MaxLines, ErrInvalidInput)
	}
	return nil
}

// RemoveLine deletes a line from the user's cart.
func (s *Service) RemoveLine(ctx context.Context, userID, lineID string) (Cart, error) {
	c, err := s.Store.Ensure(ctx, userID)
	if err != nil {
		return Cart{}, err
	}
	if err := s.Store.RemoveLine(ctx, c.ID, lineID); err != nil {
		return Cart{}, err
	}
	return s.Get(ctx, userID)
}

// SetCoupon records the coupon code used for previews and checkout.
func (s *Service) SetCoupon(ctx context.Context, userID, code string) (Cart, error) {
	c, err := s.Store.Ensure(ctx, userID)
	if err != nil {
		return Cart{}, err
	}
	if err := s.Store.SetCoupon(ctx, c.ID, voucher.NormalizeCode(code)); err != nil {
		return Cart{}, err
	}
	return s.Get(ctx, userID)
}

// Clear empties the user's cart. A non-nil db runs it inside that transaction.
func (s *Service) Clear(ctx context.Context, db repo.DBTX, userID string) error {
	c, err := s.Store.Ensure(ctx, userID)
	if err != nil {
		return err
	}
	return s.Store.Clear(ctx, db, c.ID)
}
