package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/noah-isme/b2b-storefront/internal/common"
)

func TestFixedWindowRejectsOverLimit(t *testing.T) {
	fw := FixedWindow{Store: memory.NewStore()}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _, _, err := fw.Allow(ctx, "quote:ip:1.2.3.4", time.Minute, 3)
		require.NoError(t, err)
		require.True(t, allowed)
	}
	allowed, remaining, reset, err := fw.Allow(ctx, "quote:ip:1.2.3.4", time.Minute, 3)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)
	require.True(t, reset.After(time.Now()))

	allowed, _, _, err = fw.Allow(ctx, "quote:ip:5.6.7.8", time.Minute, 3)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestNewSelectsStrategy(t *testing.T) {
	l, err := New("sliding", nil, "rl:")
	require.NoError(t, err)
	require.IsType(t, SlidingWindow{}, l)
}

func TestKeyByUserOrIP(t *testing.T) {
	key := KeyByUserOrIP("checkout")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	require.Equal(t, "checkout:ip:10.0.0.1", key(req))

	req = req.WithContext(common.WithUserID(req.Context(), "u-1"))
	require.Equal(t, "checkout:user:u-1", key(req))
}
