package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "", NormalizeKey("   "))
	assert.Equal(t, "req-1", NormalizeKey("  req-1 "))
	assert.Equal(t, "a:b.c_d", NormalizeKey("a:b.c_d"))

	hashed := NormalizeKey("has spaces inside")
	assert.True(t, strings.HasPrefix(hashed, "sha256:"))
	assert.Len(t, hashed, len("sha256:")+64)
	assert.Equal(t, hashed, NormalizeKey("has spaces inside"))

	long := NormalizeKey(strings.Repeat("k", 129))
	assert.True(t, strings.HasPrefix(long, "sha256:"))
}

func TestReplay_PurgeExpired(t *testing.T) {
	env := newTestEnv(t, nil)
	service := invoke[*ServiceReplay](t, env)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := service.Remember(ctx, fmt.Sprintf("old-%d", i), "purge-replay", "", 200, []byte(`{}`), 5*time.Second)
		require.NoError(t, err)
	}
	env.clock.Advance(10 * time.Second)
	for i := 0; i < 4; i++ {
		_, err := service.Remember(ctx, fmt.Sprintf("new-%d", i), "purge-replay", "", 200, []byte(`{}`), 0)
		require.NoError(t, err)
	}

	stats, err := service.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, 6, stats.Expired)
	assert.Equal(t, 4, stats.Live)
	assert.InDelta(t, 0.6, stats.ExpiredRatio, 1e-9)
	require.NotNil(t, stats.OldestExpiredAt)
	assert.True(t, stats.OldestExpiredAt.Equal(testNow.Add(5*time.Second)))

	// expired entries read as absent even before the purge
	hit, err := service.Lookup(ctx, "old-0")
	require.NoError(t, err)
	assert.Nil(t, hit)

	result, err := service.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, result.DeletedCount)
	assert.Equal(t, "memory", result.Mode)

	for i := 0; i < 6; i++ {
		hit, err := service.Lookup(ctx, fmt.Sprintf("old-%d", i))
		require.NoError(t, err)
		assert.Nil(t, hit)
	}
	hit, err = service.Lookup(ctx, "new-3")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, `{}`, hit.ResponseBody)

	stats, err = service.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Zero(t, stats.Expired)

	result, err = service.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.DeletedCount)
}

func TestReplay_RememberClampsTTL(t *testing.T) {
	env := newTestEnv(t, nil)
	service := invoke[*ServiceReplay](t, env)
	ctx := context.Background()

	long, err := service.Remember(ctx, "long", "reset-quest", "user_1", 200, nil, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, long.ExpiresAt.Sub(long.CreatedAt))

	short, err := service.Remember(ctx, "short", "reset-quest", "user_1", 200, nil, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, short.ExpiresAt.Sub(short.CreatedAt))

	def, err := service.Remember(ctx, "default", "reset-quest", "user_1", 200, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, def.ExpiresAt.Sub(def.CreatedAt))
}

func TestReplay_RememberReplacesEntry(t *testing.T) {
	env := newTestEnv(t, nil)
	service := invoke[*ServiceReplay](t, env)
	ctx := context.Background()

	_, err := service.Remember(ctx, "k", "reset-quest", "user_1", 200, []byte(`{"a":1}`), 0)
	require.NoError(t, err)
	_, err = service.Remember(ctx, "k", "reset-quest", "user_1", 400, []byte(`{"a":2}`), 0)
	require.NoError(t, err)

	hit, err := service.Lookup(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, 400, hit.Status)
	assert.Equal(t, `{"a":2}`, hit.ResponseBody)
}
