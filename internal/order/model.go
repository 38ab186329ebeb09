package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/b2b-storefront/internal/pricing"
)

var (
	// ErrNotFound indicates the order does not exist or belongs to another user.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidStatus is returned for unknown status values.
	ErrInvalidStatus = errors.New("unsupported order status")
	// ErrInvalidTransition is returned when a status change would move backwards.
	ErrInvalidTransition = errors.New("order status transition not allowed")
)

// Status is the fulfilment state of an order. It never affects totals.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func statusRank(s Status) int {
	switch s {
	case StatusPending:
		return 0
	case StatusConfirmed:
		return 1
	case StatusProcessing:
		return 2
	case StatusShipped:
		return 3
	case StatusCompleted:
		return 4
	case StatusCancelled:
		return -1
	default:
		return -2
	}
}

// CanTransition reports whether an order may move from current to target.
// Progress only moves forward; cancellation is possible until shipment.
func CanTransition(current, target Status) bool {
	from, to := statusRank(current), statusRank(target)
	if from < 0 || to == -2 {
		return false
	}
	if target == StatusCancelled {
		return from < statusRank(StatusShipped)
	}
	return to > from
}

// Order is a persisted, immutable pricing snapshot plus fulfilment metadata.
type Order struct {
	ID                 string          `json:"id"`
	Number             string          `json:"number"`
	UserID             string          `json:"userId"`
	Status             Status          `json:"status"`
	Currency           string          `json:"currency"`
	Totals             pricing.Totals  `json:"totals"`
	CouponCode         string          `json:"couponCode,omitempty"`
	ComboConfigVersion int             `json:"comboConfigVersion"`
	ReferenceRate      decimal.Decimal `json:"referenceRate"`
	TaxRatePercent     decimal.Decimal `json:"taxRatePercent"`
	ComboMatches       []MatchSummary  `json:"comboMatches"`
	Notes              string          `json:"notes,omitempty"`
	Lines              []Line          `json:"lines,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// Line is a priced order line.
type Line struct {
	Position      int             `json:"position"`
	ProductID     string          `json:"productId"`
	OptionKey     string          `json:"optionKey,omitempty"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Quantity      int             `json:"quantity"`
	PackageSize   int             `json:"packageSize"`
	UnitCount     int             `json:"unitCount"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	ExtendedTotal decimal.Decimal `json:"extendedTotal"`
	Category      string          `json:"category,omitempty"`
	GroupKey      string          `json:"groupKey,omitempty"`
	ComboUnits    int             `json:"comboUnits"`
	ComboDiscount decimal.Decimal `json:"comboDiscount"`
}

// MatchSummary is the persisted form of one combo match.
type MatchSummary struct {
	GroupKey        *string         `json:"groupKey"`
	MatchedQuantity int             `json:"matchedQuantity"`
	Discount        decimal.Decimal `json:"discount"`
	Lines           []MatchLine     `json:"lines"`
}

// MatchLine records the units a line contributed to a match.
type MatchLine struct {
	Position int             `json:"position"`
	Side     pricing.Side    `json:"side"`
	Units    int             `json:"units"`
	Discount decimal.Decimal `json:"discount"`
}

// Summarize converts engine matches into their persisted form. positions maps
// engine line ids to order line positions.
func Summarize(result pricing.ComboResult, positions map[string]int, places int32) []MatchSummary {
	out := make([]MatchSummary, 0, len(result.Matches))
	for _, m := range result.Matches {
		s := MatchSummary{
			GroupKey:        m.GroupKey,
			MatchedQuantity: m.MatchedQuantity,
			Discount:        m.Discount.Round(places),
		}
		for _, a := range m.Allocations {
			s.Lines = append(s.Lines, MatchLine{
				Position: positions[a.LineID],
				Side:     a.Side,
				Units:    a.Units,
				Discount: a.Discount.Round(places),
			})
		}
		out = append(out, s)
	}
	return out
}

// ComboReportRow aggregates persisted matches for one group key.
type ComboReportRow struct {
	GroupKey        string          `json:"groupKey"`
	Orders          int64           `json:"orders"`
	Matches         int64           `json:"matches"`
	MatchedQuantity int64           `json:"matchedQuantity"`
	Discount        decimal.Decimal `json:"discount"`
}
