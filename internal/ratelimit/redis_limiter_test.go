package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/ruz-auth/pkg/config"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRedisLimiter_BlocksWhenExceeded(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewRedisLimiter(client, testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.Check(ctx, PhoneKey("+421900123456"), 2, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i < 2, result.Allowed, "attempt %d", i)
	}
}

func TestRedisLimiter_KeysAreIndependent(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewRedisLimiter(client, testLogger())
	ctx := context.Background()

	_, err := limiter.Check(ctx, IPKey("10.0.0.1"), 1, time.Minute)
	require.NoError(t, err)

	result, err := limiter.Check(ctx, IPKey("10.0.0.2"), 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRedisLimiter_SlidingWindow(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewRedisLimiter(client, testLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := limiter.Check(ctx, "test:window", 2, time.Second)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	time.Sleep(1100 * time.Millisecond)

	result, err := limiter.Check(ctx, "test:window", 2, time.Second)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestMemoryLimiter(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.Check(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	result, err := limiter.Check(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 60, result.RetryAfter(now))

	now = now.Add(61 * time.Second)
	result, err = limiter.Check(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	now = now.Add(time.Hour)
	assert.Equal(t, 1, limiter.Cleanup(10*time.Minute))
}

type brokenLimiter struct{}

func (brokenLimiter) Check(context.Context, string, int, time.Duration) (*Result, error) {
	return nil, errors.New("redis down")
}

func TestAdaptiveLimiterFallsBackWithHalfBudget(t *testing.T) {
	limiter := NewAdaptiveLimiter(brokenLimiter{}, NewMemoryLimiter(), testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.Check(ctx, "k", 4, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i < 2, result.Allowed, "attempt %d", i)
	}
}

func TestCleanerDropsIdleBuckets(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	_, err := mr.ZAdd(redisKeyPrefix+"live", 1, "a")
	require.NoError(t, err)

	memory := NewMemoryLimiter()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	memory.now = func() time.Time { return now }
	_, err = memory.Check(ctx, "idle", 1, time.Minute)
	require.NoError(t, err)

	now = now.Add(time.Hour)
	cleaner := NewCleaner(client, memory, testLogger(), time.Minute, 10*time.Minute)

	assert.Equal(t, 1, cleaner.Cleanup(ctx))
	assert.True(t, mr.Exists(redisKeyPrefix+"live"))
}

func TestRules(t *testing.T) {
	rules := NewRules(config.RateLimitConfig{
		Enabled:   true,
		Global:    config.RateLimitRule{Limit: 30, Window: "1m"},
		OTP:       config.RateLimitRule{Limit: 3, Window: "10m"},
		Whitelist: []string{"127.0.0.1"},
	})

	assert.True(t, rules.Enabled())
	assert.True(t, rules.IsWhitelisted("127.0.0.1"))
	assert.False(t, rules.IsWhitelisted("10.0.0.1"))

	limit, window, err := rules.OTPLimit()
	require.NoError(t, err)
	assert.Equal(t, 3, limit)
	assert.Equal(t, 10*time.Minute, window)

	_, _, err = NewRules(config.RateLimitConfig{}).GlobalLimit()
	assert.Error(t, err)
}
