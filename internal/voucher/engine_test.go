package voucher

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputePercent(t *testing.T) {
	rule := Rule{Kind: KindPercent, Value: d("20")}
	if got := rule.Compute(d("1000")); !got.Equal(d("200")) {
		t.Fatalf("expected 200 discount, got %s", got)
	}
}

func TestComputeCapsAtMaxDiscountAndBase(t *testing.T) {
	maxDiscount := d("50")
	rule := Rule{Kind: KindPercent, Value: d("20"), MaxDiscount: &maxDiscount}
	if got := rule.Compute(d("1000")); !got.Equal(d("50")) {
		t.Fatalf("expected max discount 50, got %s", got)
	}
	fixed := Rule{Kind: KindFixed, Value: d("300")}
	if got := fixed.Compute(d("120.5")); !got.Equal(d("120.5")) {
		t.Fatalf("expected discount capped at base, got %s", got)
	}
	if got := fixed.Compute(decimal.Zero); !got.IsZero() {
		t.Fatalf("expected zero discount for empty base, got %s", got)
	}
}

func TestValidate(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	limit := int32(2)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name string
		rule Rule
		base decimal.Decimal
		want error
	}{
		{"ok", Rule{Active: true, ValidFrom: past}, d("10"), nil},
		{"inactive flag", Rule{Active: false}, d("10"), ErrVoucherInactive},
		{"not started", Rule{Active: true, ValidFrom: future}, d("10"), ErrVoucherInactive},
		{"expired", Rule{Active: true, ValidTo: &past}, d("10"), ErrVoucherExpired},
		{"min spend", Rule{Active: true, MinSpend: d("100")}, d("99.99"), ErrMinimumSpendUnmet},
		{"usage", Rule{Active: true, UsageLimit: &limit, UsedCount: 2}, d("10"), ErrUsageLimitReached},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rule.Validate(now, tc.base)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCheckRejectsInconsistentRules(t *testing.T) {
	if err := (Rule{Kind: KindPercent, Value: d("101")}).Check(); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected invalid rule, got %v", err)
	}
	from := time.Now()
	to := from.Add(-time.Minute)
	if err := (Rule{Kind: KindFixed, ValidFrom: from, ValidTo: &to}).Check(); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected invalid window, got %v", err)
	}
}
