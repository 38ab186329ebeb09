package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/b2b-storefront/internal/obs"
	"github.com/noah-isme/b2b-storefront/internal/resilience"
)

// TaskRefresh is the asynq task type that refreshes the reference rate.
const TaskRefresh = "rates:refresh"

// ErrNoSource is returned when no rate source URL is configured.
var ErrNoSource = errors.New("rates: source not configured")

// Refresher pulls the rate from an HTTP JSON source, stores it and warms the cache.
type Refresher struct {
	HTTP      resilience.HTTPClient
	SourceURL string
	Store     Store
	Cache     Cache
	Base      string
	Quote     string
	Logger    zerolog.Logger
	Now       func() time.Time
}

// sourcePayload accepts both {"rate": x} and {"rates": {"MXN": x}} shapes.
type sourcePayload struct {
	Rate  *decimal.Decimal           `json:"rate"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// Refresh fetches, persists and caches the current rate.
func (r *Refresher) Refresh(ctx context.Context) (Rate, error) {
	rate, err := r.fetch(ctx)
	if err != nil {
		obs.IncRateRefresh("error")
		return Rate{}, err
	}
	if err := r.Store.Insert(ctx, rate); err != nil {
		obs.IncRateRefresh("error")
		return Rate{}, err
	}
	if err := r.Cache.Set(ctx, rate); err != nil {
		r.Logger.Warn().Err(err).Msg("rate cache write failed")
	}
	obs.IncRateRefresh("ok")
	r.Logger.Info().Str("pair", rate.Base+"/"+rate.Quote).Str("rate", rate.Value.String()).Msg("exchange rate refreshed")
	return rate, nil
}

// ProcessTask implements asynq.Handler.
func (r *Refresher) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	_, err := r.Refresh(ctx)
	if errors.Is(err, ErrNoSource) {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}

// NewRefreshTask builds the task enqueued by the scheduler and the admin endpoint.
func NewRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskRefresh, nil, asynq.MaxRetry(3), asynq.Timeout(time.Minute))
}

func (r *Refresher) fetch(ctx context.Context) (Rate, error) {
	if strings.TrimSpace(r.SourceURL) == "" {
		return Rate{}, ErrNoSource
	}
	u, err := url.Parse(r.SourceURL)
	if err != nil {
		return Rate{}, fmt.Errorf("parse rate source: %w", err)
	}
	q := u.Query()
	q.Set("base", r.Base)
	q.Set("symbols", r.Quote)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Rate{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := r.HTTP.Do(ctx, req)
	if err != nil {
		return Rate{}, fmt.Errorf("fetch rate: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Rate{}, fmt.Errorf("fetch rate: unexpected status %d", resp.StatusCode)
	}
	var payload sourcePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Rate{}, fmt.Errorf("decode rate: %w", err)
	}
	var value decimal.Decimal
	switch {
	case payload.Rate != nil:
		value = *payload.Rate
	case payload.Rates != nil:
		v, ok := payload.Rates[r.Quote]
		if !ok {
			return Rate{}, fmt.Errorf("decode rate: %s missing from response", r.Quote)
		}
		value = v
	}
	if !value.IsPositive() {
		return Rate{}, fmt.Errorf("decode rate: non-positive rate %s", value)
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	return Rate{Base: r.Base, Quote: r.Quote, Value: value, Source: u.Host, FetchedAt: now().UTC()}, nil
}
