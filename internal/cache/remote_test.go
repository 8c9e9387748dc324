package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiercache/internal/circuitbreaker"
	"tiercache/internal/common/logging"
	"tiercache/internal/redis"
	"tiercache/internal/testutil"
)

func setupRemoteTier(t *testing.T, instance string) (*RemoteTier, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	tier, err := NewRemoteTier(client, instance, time.Second, logging.NewDefaultLogger())
	require.NoError(t, err)

	return tier, mr
}

func TestRemoteTier_SetGet(t *testing.T) {
	tier, _ := setupRemoteTier(t, "test")
	ctx := context.Background()

	require.NoError(t, tier.Set(ctx, "key1", []byte("value1"), time.Minute))

	value, err := tier.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, []byte("value1"), value)
}

func TestRemoteTier_GetMiss(t *testing.T) {
	tier, _ := setupRemoteTier(t, "test")

	_, err := tier.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRemoteTier_KeyPrefixing(t *testing.T) {
	tier, mr := setupRemoteTier(t, "search-results")
	ctx := context.Background()

	require.NoError(t, tier.Set(ctx, "query", []byte("result"), time.Minute))

	// The backing key carries the instance namespace.
	assert.True(t, mr.Exists("cache:search-results:query"))
}

func TestRemoteTier_InstanceIsolation(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	logger := logging.NewDefaultLogger()
	first, err := NewRemoteTier(client, "first", time.Second, logger)
	require.NoError(t, err)
	second, err := NewRemoteTier(client, "second", time.Second, logger)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, first.Set(ctx, "shared-key", []byte("one"), time.Minute))
	require.NoError(t, second.Set(ctx, "shared-key", []byte("two"), time.Minute))

	value, err := first.Get(ctx, "shared-key")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), value)

	removed, err := first.DeleteByPattern(ctx, "*")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = second.Get(ctx, "shared-key")
	assert.NoError(t, err, "clearing one instance must not touch another")
}

func TestRemoteTier_TTLExpiry(t *testing.T) {
	tier, mr := setupRemoteTier(t, "test")
	ctx := context.Background()

	require.NoError(t, tier.Set(ctx, "key1", []byte("value1"), time.Minute))

	mr.FastForward(2 * time.Minute)

	_, err := tier.Get(ctx, "key1")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRemoteTier_MGetMSet(t *testing.T) {
	tier, _ := setupRemoteTier(t, "test")
	ctx := context.Background()

	entries := map[string][]byte{
		"k1": []byte("v1"),
		"k2": []byte("v2"),
	}
	require.NoError(t, tier.MSet(ctx, entries, time.Minute))

	result, err := tier.MGet(ctx, []string{"k1", "k2", "absent"})
	require.NoError(t, err)
	assert.Equal(t, entries, result)
}

func TestRemoteTier_DeleteByPattern(t *testing.T) {
	tier, _ := setupRemoteTier(t, "test")
	ctx := context.Background()

	require.NoError(t, tier.Set(ctx, "user:1", []byte("a"), time.Minute))
	require.NoError(t, tier.Set(ctx, "user:2", []byte("b"), time.Minute))
	require.NoError(t, tier.Set(ctx, "other:1", []byte("c"), time.Minute))

	removed, err := tier.DeleteByPattern(ctx, "user:*")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = tier.Get(ctx, "user:1")
	assert.ErrorIs(t, err, ErrMiss)

	value, err := tier.Get(ctx, "other:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), value)
}

func TestRemoteTier_Healthy(t *testing.T) {
	tier, mr := setupRemoteTier(t, "test")
	ctx := context.Background()

	assert.True(t, tier.Healthy(ctx))

	mr.Close()
	assert.False(t, tier.Healthy(ctx))
}

func TestRemoteTier_FailuresSurfaceAsErrors(t *testing.T) {
	store := &testutil.FailingRemoteStore{Err: errors.New("connection refused")}
	tier, err := NewRemoteTier(store, "test", time.Second, logging.NewDefaultLogger())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = tier.Get(ctx, "key1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)

	assert.Error(t, tier.Set(ctx, "key1", []byte("v"), time.Minute))
	assert.False(t, tier.Healthy(ctx))
}

func TestRemoteTier_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	store := &testutil.FailingRemoteStore{Err: errors.New("connection refused")}
	tier, err := NewRemoteTier(store, "test", time.Second, logging.NewDefaultLogger())
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, _ = tier.Get(ctx, "key1")
	}

	assert.Equal(t, "open", tier.BreakerState())

	// Once open, calls are rejected without reaching the backend.
	attempted := store.Calls
	_, err = tier.Get(ctx, "key1")
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, attempted, store.Calls)
}
