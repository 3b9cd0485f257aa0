package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/stretchr/testify/require"
)

func TestLocalLimiter_PerMinute(t *testing.T) {
	l, err := NewLocalLimiter(16)
	require.NoError(t, err)

	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()
	limit := redis_rate.PerMinute(3)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Allow(ctx, "admin:1.2.3.4", limit))
	}
	require.ErrorIs(t, l.Allow(ctx, "admin:1.2.3.4", limit), ErrRateLimited)
	require.NoError(t, l.Allow(ctx, "admin:5.6.7.8", limit))

	now = now.Add(time.Minute)
	require.NoError(t, l.Allow(ctx, "admin:1.2.3.4", limit))
}

func TestLocalLimiter_ZeroLimitAllowsEverything(t *testing.T) {
	l, err := NewLocalLimiter(4)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Allow(context.Background(), "k", redis_rate.Limit{}))
	}
}
