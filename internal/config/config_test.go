package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL":             "postgres://localhost/b2b",
		"REDIS_URL":                "redis://localhost:6379/0",
		"JWT_SECRET":               "secret",
		"TAX_RATE_PERCENT":         "",
		"DEFAULT_EXCHANGE_RATE":    "",
		"PRICING_PERSIST_DECIMALS": "",
		"CHECKOUT_LOCK_TTL":        "",
		"CURRENCY_CODE":            "",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	require.NoError(t, err)
	require.Equal(t, "MXN", cfg.CurrencyCode)
	require.Equal(t, "16", cfg.TaxRatePercent.String())
	require.Equal(t, "1", cfg.DefaultExchangeRate.String())
	require.Equal(t, int32(2), cfg.PricingPersistDecimals)
	require.Equal(t, 30*time.Second, cfg.CheckoutLockTTL)
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["TAX_RATE_PERCENT"] = "8.25"
	env["DEFAULT_EXCHANGE_RATE"] = "-3"
	env["PRICING_PERSIST_DECIMALS"] = "4"
	env["CURRENCY_CODE"] = "usd"
	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, "8.25", cfg.TaxRatePercent.String())
	require.Equal(t, "1", cfg.DefaultExchangeRate.String(), "non-positive rate falls back to 1")
	require.Equal(t, int32(4), cfg.PricingPersistDecimals)
	require.Equal(t, "USD", cfg.CurrencyCode)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	env := baseEnv()
	env["DATABASE_URL"] = ""
	_, err := LoadForTests(env)
	require.Error(t, err)
}

func TestHTTPAddr(t *testing.T) {
	require.Equal(t, ":9000", (&Config{Port: "9000"}).HTTPAddr())
	require.Equal(t, ":9000", (&Config{Port: ":9000"}).HTTPAddr())
	require.Equal(t, ":8080", (&Config{}).HTTPAddr())
}
