package voucher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/b2b-storefront/internal/common"
	"github.com/noah-isme/b2b-storefront/internal/repo"
)

// ErrDuplicateCode is returned when a voucher code is already taken.
var ErrDuplicateCode = errors.New("voucher code already exists")

// PreviewResult describes the outcome of evaluating a voucher without mutating state.
type PreviewResult struct {
	Code     string          `json:"code"`
	Base     decimal.Decimal `json:"base"`
	Discount decimal.Decimal `json:"discount"`
}

// Service encapsulates voucher rules evaluation and settlement behaviour.
type Service struct {
	Store  Store
	Now    func() time.Time
	Logger zerolog.Logger
}

// Lookup fetches the rule for code without validating it.
func (s *Service) Lookup(ctx context.Context, code string) (Rule, error) {
	if s == nil || s.Store == nil {
		return Rule{}, errors.New("voucher service not configured")
	}
	normalized := NormalizeCode(code)
	if normalized == "" {
		return Rule{}, fmt.Errorf("code is required: %w", ErrNotEligible)
	}
	return s.Store.ByCode(ctx, normalized)
}

// Evaluate validates rule at the current instant and returns the discount for base.
func (s *Service) Evaluate(rule Rule, base decimal.Decimal) (decimal.Decimal, error) {
	if err := rule.Validate(s.now(), base); err != nil {
		return decimal.Zero, err
	}
	discount := rule.Compute(base)
	if !discount.IsPositive() {
		return decimal.Zero, ErrNotEligible
	}
	return discount, nil
}

// Preview performs a dry-run evaluation against a known base amount.
func (s *Service) Preview(ctx context.Context, code string, base decimal.Decimal) (PreviewResult, error) {
	rule, err := s.Lookup(ctx, code)
	if err != nil {
		return PreviewResult{}, err
	}
	discount, err := s.Evaluate(rule, base)
	if err != nil {
		return PreviewResult{}, err
	}
	return PreviewResult{Code: rule.Code, Base: base, Discount: discount}, nil
}

// Create validates and stores a new voucher.
func (s *Service) Create(ctx context.Context, r Rule) (Rule, error) {
	r.Code = NormalizeCode(r.Code)
	if r.Kind == "" {
		r.Kind = KindFixed
	}
	if err := common.ValidateStruct(r); err != nil {
		return Rule{}, err
	}
	if err := r.Check(); err != nil {
		return Rule{}, err
	}
	saved, err := s.Store.Create(ctx, r)
	if err != nil {
		if repo.IsUniqueViolation(err) {
			return Rule{}, ErrDuplicateCode
		}
		return Rule{}, err
	}
	s.Logger.Info().Str("code", saved.Code).Str("kind", string(saved.Kind)).Msg("voucher created")
	return saved, nil
}

// List returns a page of vouchers.
func (s *Service) List(ctx context.Context, p common.Pagination) ([]Rule, error) {
	return s.Store.List(ctx, p.PerPage, p.Offset())
}

// Redeem consumes one use of code inside the caller's transaction.
func (s *Service) Redeem(ctx context.Context, db repo.DBTX, code string) error {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil
	}
	return s.Store.IncrementUsage(ctx, db, normalized)
}

// IsRejection reports whether err is a business reason for refusing a voucher
// rather than an infrastructure failure.
func IsRejection(err error) bool {
	for _, target := range []error{ErrNotFound, ErrNotEligible, ErrUsageLimitReached, ErrVoucherInactive, ErrVoucherExpired, ErrMinimumSpendUnmet} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
