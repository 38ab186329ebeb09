package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PricingQuotesTotal counts pricing engine runs by source (quote, cart, checkout).
	PricingQuotesTotal *prometheus.CounterVec
	// PricingQuoteDuration records pricing run latency in milliseconds.
	PricingQuoteDuration *prometheus.HistogramVec
	// ComboMatchesTotal counts combo groups that produced a discount.
	ComboMatchesTotal prometheus.Counter
	// OrdersCreatedTotal counts persisted orders.
	OrdersCreatedTotal prometheus.Counter
	// ExchangeRateRefreshTotal tracks reference rate refresh outcomes.
	ExchangeRateRefreshTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PricingQuotesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_quotes_total",
			Help:      "Count of pricing engine runs by source.",
		}, []string{"source"})
		PricingQuoteDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pricing_quote_duration_ms",
			Help:      "Latency of pricing runs in milliseconds, including hydration.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"source"})
		ComboMatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "combo_matches_total",
			Help:      "Number of combo groups that matched during pricing runs.",
		})
		OrdersCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Number of orders persisted by checkout.",
		})
		ExchangeRateRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchange_rate_refresh_total",
			Help:      "Reference exchange rate refresh outcomes.",
		}, []string{"result"})

		mustRegisterCollector(reg, PricingQuotesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PricingQuotesTotal = v
			}
		})
		mustRegisterCollector(reg, PricingQuoteDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				PricingQuoteDuration = v
			}
		})
		mustRegisterCollector(reg, ComboMatchesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				ComboMatchesTotal = v
			}
		})
		mustRegisterCollector(reg, OrdersCreatedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				OrdersCreatedTotal = v
			}
		})
		mustRegisterCollector(reg, ExchangeRateRefreshTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ExchangeRateRefreshTotal = v
			}
		})
	})
}

// ObservePricing records a pricing run. Safe to call before registration.
func ObservePricing(source string, millis float64, matches int) {
	if PricingQuotesTotal != nil {
		PricingQuotesTotal.WithLabelValues(source).Inc()
	}
	if PricingQuoteDuration != nil {
		PricingQuoteDuration.WithLabelValues(source).Observe(millis)
	}
	if ComboMatchesTotal != nil && matches > 0 {
		ComboMatchesTotal.Add(float64(matches))
	}
}

// IncOrdersCreated bumps the orders counter when registered.
func IncOrdersCreated() {
	if OrdersCreatedTotal != nil {
		OrdersCreatedTotal.Inc()
	}
}

// IncRateRefresh records a rate refresh outcome when registered.
func IncRateRefresh(result string) {
	if ExchangeRateRefreshTotal != nil {
		ExchangeRateRefreshTotal.WithLabelValues(result).Inc()
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
