// Package settings owns merchant-editable pricing settings: the versioned combo rule and the tax rate.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/b2b-storefront/internal/events"
	"github.com/noah-isme/b2b-storefront/internal/pricing"
)

const taxRateKey = "tax_rate_percent"

// ErrInvalidTaxRate is returned for negative or unparsable tax rates.
var ErrInvalidTaxRate = errors.New("settings: invalid tax rate")

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// Service reads and writes settings. Reads always hit the store so edits apply to the next pricing run.
type Service struct {
	Store          Store
	DefaultTaxRate decimal.Decimal
	Events         Emitter
	Logger         zerolog.Logger
}

// Combo returns the current combo configuration, or the inactive default when none was ever saved.
func (s *Service) Combo(ctx context.Context) (pricing.ComboConfig, error) {
	rev, err := s.Store.LatestCombo(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return pricing.DefaultComboConfig(), nil
		}
		return pricing.ComboConfig{}, err
	}
	return rev.ComboConfig, nil
}

// SaveCombo validates cfg and stores it as a new version.
func (s *Service) SaveCombo(ctx context.Context, cfg pricing.ComboConfig, actor string) (ComboRevision, error) {
	cfg.PrimaryCategory = strings.TrimSpace(cfg.PrimaryCategory)
	cfg.SecondaryCategory = strings.TrimSpace(cfg.SecondaryCategory)
	if cfg.DiscountType == "" {
		cfg.DiscountType = pricing.DiscountPercentage
	}
	if err := cfg.Validate(); err != nil {
		return ComboRevision{}, err
	}
	rev, err := s.Store.InsertCombo(ctx, cfg, actor)
	if err != nil {
		return ComboRevision{}, err
	}
	s.Logger.Info().Int("version", rev.Version).Bool("active", rev.Active).Str("actor", actor).Msg("combo config saved")
	if s.Events != nil {
		if _, err := s.Events.Emit(ctx, events.TopicComboConfigChanged, strconv.Itoa(rev.Version), rev); err != nil {
			s.Logger.Error().Err(err).Int("version", rev.Version).Msg("emit combo change")
		}
	}
	return rev, nil
}

// ComboHistory lists stored versions newest first.
func (s *Service) ComboHistory(ctx context.Context, limit int) ([]ComboRevision, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.Store.ComboHistory(ctx, limit)
}

// TaxRate returns the stored tax rate percent, falling back to the configured default.
func (s *Service) TaxRate(ctx context.Context) (decimal.Decimal, error) {
	raw, err := s.Store.Get(ctx, taxRateKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return s.DefaultTaxRate, nil
		}
		return decimal.Zero, err
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		s.Logger.Warn().Str("value", raw).Msg("stored tax rate unparsable, using default")
		return s.DefaultTaxRate, nil
	}
	return rate, nil
}

// SetTaxRate stores a new tax rate percent.
func (s *Service) SetTaxRate(ctx context.Context, rate decimal.Decimal, actor string) error {
	if rate.IsNegative() {
		return fmt.Errorf("%w: must not be negative", ErrInvalidTaxRate)
	}
	return s.Store.Put(ctx, taxRateKey, rate.String(), actor)
}
