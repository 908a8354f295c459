package idempotency

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
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client, testLogger()), mr, client
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExecuteReplaysStoredResponse(t *testing.T) {
	store, _, _ := newTestStore(t)
	m := NewManager(store, testLogger())
	ctx := context.Background()

	calls := 0
	op := func(context.Context) (*Response, error) {
		calls++
		return &Response{StatusCode: 201, ContentType: "application/json", Body: []byte(`{"status":201}`)}, nil
	}

	first, err := m.Execute(ctx, "k1", time.Hour, op)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := m.Execute(ctx, "k1", time.Hour, op)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Response, second.Response)
	assert.Equal(t, 1, calls)
}

func TestExecuteDoesNotStoreServerErrors(t *testing.T) {
	store, _, _ := newTestStore(t)
	m := NewManager(store, testLogger())
	ctx := context.Background()

	calls := 0
	op := func(context.Context) (*Response, error) {
		calls++
		return &Response{StatusCode: 503}, nil
	}

	for i := 0; i < 2; i++ {
		res, err := m.Execute(ctx, "k2", time.Hour, op)
		require.NoError(t, err)
		assert.False(t, res.FromCache)
	}
	assert.Equal(t, 2, calls)
}

func TestExecuteRejectsConcurrentDuplicate(t *testing.T) {
	store, _, _ := newTestStore(t)
	m := NewManager(store, testLogger())
	ctx := context.Background()

	locked, err := store.Lock(ctx, "k3", time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	_, err = m.Execute(ctx, "k3", time.Hour, func(context.Context) (*Response, error) {
		t.Fatal("operation must not run while the key is locked")
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrRequestInProgress)
}

func TestExecuteReleasesLockOnError(t *testing.T) {
	store, mr, _ := newTestStore(t)
	m := NewManager(store, testLogger())

	boom := errors.New("boom")
	_, err := m.Execute(context.Background(), "k4", time.Hour, func(context.Context) (*Response, error) {
		return nil, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(lockKey("k4")))
}

func TestCleanerRemovesKeysWithoutExpiry(t *testing.T) {
	_, mr, client := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set(keyPrefix+"orphan", "x"))
	require.NoError(t, mr.Set(keyPrefix+"fresh", "x"))
	mr.SetTTL(keyPrefix+"fresh", time.Hour)

	cleaner := NewCleaner(client, testLogger(), time.Minute, 25*time.Hour)
	assert.Equal(t, 1, cleaner.Cleanup(ctx))
	assert.False(t, mr.Exists(keyPrefix+"orphan"))
	assert.True(t, mr.Exists(keyPrefix+"fresh"))
}

func TestGenerateKeyIsDeterministic(t *testing.T) {
	assert.Equal(t, GenerateKey("POST", "/auth/register", "abc"), GenerateKey("POST", "/auth/register", "abc"))
	assert.NotEqual(t, GenerateKey("POST", "/auth/register", "abc"), GenerateKey("POST", "/auth/register", "abd"))
	assert.NotEqual(t, GenerateKey("POST", "/auth/register", "abc"), GenerateKey("POST", "/auth/verify-otp", "abc"))
}
