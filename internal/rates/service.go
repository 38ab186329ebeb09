package rates

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Source labels where Current found its rate.
const (
	SourceCache    = "cache"
	SourceDatabase = "database"
	SourceDefault  = "default"
)

// Service resolves the reference rate: Redis, then Postgres, then the configured default.
type Service struct {
	Store   Store
	Cache   Cache
	Base    string
	Quote   string
	Default decimal.Decimal
	Logger  zerolog.Logger
}

// Current returns the reference rate. It never fails; lookup errors degrade to the next source.
func (s *Service) Current(ctx context.Context) Rate {
	if r, ok, err := s.Cache.Get(ctx, s.Base, s.Quote); err != nil {
		s.Logger.Warn().Err(err).Msg("rate cache read failed")
	} else if ok && r.Value.IsPositive() {
		r.Source = SourceCache
		return r
	}
	if s.Store != nil {
		r, err := s.Store.Latest(ctx, s.Base, s.Quote)
		if err == nil && r.Value.IsPositive() {
			if err := s.Cache.Set(ctx, r); err != nil {
				s.Logger.Warn().Err(err).Msg("rate cache write failed")
			}
			r.Source = SourceDatabase
			return r
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			s.Logger.Warn().Err(err).Msg("rate store read failed")
		}
	}
	return Rate{Base: s.Base, Quote: s.Quote, Value: s.Default, Source: SourceDefault, FetchedAt: time.Time{}}
}
