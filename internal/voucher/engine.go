package voucher

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when no voucher carries the requested code.
	ErrNotFound = errors.New("voucher not found")
	// ErrNotEligible is returned when the voucher cannot be applied to the provided context.
	ErrNotEligible = errors.New("voucher not eligible")
	// ErrUsageLimitReached indicates the voucher has exhausted the global usage quota.
	ErrUsageLimitReached = errors.New("voucher usage limit reached")
	// ErrVoucherInactive is returned when attempting to use a voucher outside of its active window.
	ErrVoucherInactive = errors.New("voucher not active")
	// ErrVoucherExpired is returned when the voucher has already expired.
	ErrVoucherExpired = errors.New("voucher expired")
	// ErrMinimumSpendUnmet indicates the order total did not meet the voucher requirement.
	ErrMinimumSpendUnmet = errors.New("voucher minimum spend not met")
	// ErrInvalidRule is returned when an admin submits an inconsistent voucher.
	ErrInvalidRule = errors.New("invalid voucher")
)

// Kind selects how Value is interpreted.
type Kind string

const (
	KindPercent Kind = "percent"
	KindFixed   Kind = "fixed"
)

// Rule captures the runtime constraints of a voucher.
type Rule struct {
	ID          string           `json:"id"`
	Code        string           `json:"code" validate:"required,max=64"`
	Kind        Kind             `json:"kind" validate:"required,oneof=percent fixed"`
	Value       decimal.Decimal  `json:"value"`
	MaxDiscount *decimal.Decimal `json:"maxDiscount,omitempty"`
	MinSpend    decimal.Decimal  `json:"minSpend"`
	UsageLimit  *int32           `json:"usageLimit,omitempty" validate:"omitempty,gte=0"`
	UsedCount   int32            `json:"usedCount"`
	ValidFrom   time.Time        `json:"validFrom"`
	ValidTo     *time.Time       `json:"validTo,omitempty"`
	Active      bool             `json:"active"`
}

// NormalizeCode canonicalises the code. Codes are matched case-insensitively.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Check verifies rule consistency before it is stored.
func (r Rule) Check() error {
	if r.Value.IsNegative() {
		return errors.Join(ErrInvalidRule, errors.New("value must not be negative"))
	}
	if r.Kind == KindPercent && r.Value.GreaterThan(decimal.NewFromInt(100)) {
		return errors.Join(ErrInvalidRule, errors.New("percentage above 100"))
	}
	if r.MinSpend.IsNegative() {
		return errors.Join(ErrInvalidRule, errors.New("minimum spend must not be negative"))
	}
	if r.MaxDiscount != nil && r.MaxDiscount.IsNegative() {
		return errors.Join(ErrInvalidRule, errors.New("max discount must not be negative"))
	}
	if r.ValidTo != nil && !r.ValidFrom.IsZero() && r.ValidTo.Before(r.ValidFrom) {
		return errors.Join(ErrInvalidRule, errors.New("validTo precedes validFrom"))
	}
	return nil
}

// Validate ensures the rule can be applied at the provided instant against base.
func (r Rule) Validate(now time.Time, base decimal.Decimal) error {
	if !r.Active {
		return ErrVoucherInactive
	}
	if base.LessThan(r.MinSpend) {
		return ErrMinimumSpendUnmet
	}
	if !r.ValidFrom.IsZero() && now.Before(r.ValidFrom) {
		return ErrVoucherInactive
	}
	if r.ValidTo != nil && now.After(*r.ValidTo) {
		return ErrVoucherExpired
	}
	if r.UsageLimit != nil && *r.UsageLimit >= 0 && r.UsedCount >= *r.UsageLimit {
		return ErrUsageLimitReached
	}
	return nil
}

// Compute determines the discount for base. The result never exceeds base or MaxDiscount.
func (r Rule) Compute(base decimal.Decimal) decimal.Decimal {
	if !base.IsPositive() {
		return decimal.Zero
	}
	discount := r.Value
	if r.Kind == KindPercent {
		discount = base.Mul(r.Value).Shift(-2)
	}
	if r.MaxDiscount != nil && discount.GreaterThan(*r.MaxDiscount) {
		discount = *r.MaxDiscount
	}
	if discount.GreaterThan(base) {
		discount = base
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount
}
