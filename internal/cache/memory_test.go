package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemory(t *testing.T, maxEntries int, opts ...MemoryOption) *MemoryTier {
	t.Helper()
	m := NewMemoryTier(maxEntries, opts...)
	t.Cleanup(m.Stop)
	return m
}

func TestMemoryTier_GetMiss(t *testing.T) {
	m := newTestMemory(t, 10)

	_, err := m.Get(context.Background(), "never-set")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryTier_SetGet(t *testing.T) {
	m := newTestMemory(t, 10)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "key1", []byte("value1"), time.Minute))

	value, err := m.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, []byte("value1"), value)
}

func TestMemoryTier_Overwrite(t *testing.T) {
	m := newTestMemory(t, 10)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "key1", []byte("old"), time.Minute))
	require.NoError(t, m.Set(ctx, "key1", []byte("new"), time.Minute))

	value, err := m.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), value)
	assert.Equal(t, 1, m.Len())
}

func TestMemoryTier_Expiry(t *testing.T) {
	m := newTestMemory(t, 10)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "key1", []byte("value1"), 20*time.Millisecond))

	value, err := m.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, []byte("value1"), value)

	time.Sleep(30 * time.Millisecond)

	_, err = m.Get(ctx, "key1")
	assert.ErrorIs(t, err, ErrMiss)
	assert.Equal(t, 0, m.Len(), "expired entry should be removed on access")
}

func TestMemoryTier_SweepReclaimsExpired(t *testing.T) {
	m := newTestMemory(t, 10, WithSweepInterval(10*time.Millisecond))
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "key1", []byte("value1"), 5*time.Millisecond))

	assert.Eventually(t, func() bool {
		return m.Len() == 0
	}, time.Second, 5*time.Millisecond, "sweep should reclaim expired entries without access")
}

func TestMemoryTier_LRUEviction(t *testing.T) {
	m := newTestMemory(t, 2)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), time.Minute))

	// Both retrievable; the Get on b makes a the least recently used.
	_, err := m.Get(ctx, "a")
	require.NoError(t, err)
	_, err = m.Get(ctx, "b")
	require.NoError(t, err)

	require.NoError(t, m.Set(ctx, "c", []byte("3"), time.Minute))

	_, err = m.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrMiss, "least recently used entry should be evicted")

	for _, key := range []string{"b", "c"} {
		_, err := m.Get(ctx, key)
		assert.NoError(t, err, "key %q should survive eviction", key)
	}

	assert.Equal(t, int64(1), m.Evictions())
}

func TestMemoryTier_GetRefreshesRecency(t *testing.T) {
	m := newTestMemory(t, 2)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), time.Minute))

	// Touch a so b becomes least recently used.
	_, err := m.Get(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, m.Set(ctx, "c", []byte("3"), time.Minute))

	_, err = m.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = m.Get(ctx, "a")
	assert.NoError(t, err)
}

func TestMemoryTier_CapacityBound(t *testing.T) {
	m := newTestMemory(t, 5)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		require.NoError(t, m.Set(ctx, fmt.Sprintf("key%d", i), []byte("v"), time.Minute))
		assert.LessOrEqual(t, m.Len(), 5)
	}
}

func TestMemoryTier_MGetMSet(t *testing.T) {
	m := newTestMemory(t, 10)
	ctx := context.Background()

	entries := map[string][]byte{
		"k1": []byte("v1"),
		"k2": []byte("v2"),
	}
	require.NoError(t, m.MSet(ctx, entries, time.Minute))

	result, err := m.MGet(ctx, []string{"k1", "k2", "absent"})
	require.NoError(t, err)
	assert.Equal(t, entries, result)
}

func TestMemoryTier_DeleteByPattern(t *testing.T) {
	m := newTestMemory(t, 10)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "user:1", []byte("a"), time.Minute))
	require.NoError(t, m.Set(ctx, "user:2", []byte("b"), time.Minute))
	require.NoError(t, m.Set(ctx, "other:1", []byte("c"), time.Minute))

	removed, err := m.DeleteByPattern(ctx, "user:*")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = m.Get(ctx, "user:1")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = m.Get(ctx, "user:2")
	assert.ErrorIs(t, err, ErrMiss)

	value, err := m.Get(ctx, "other:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), value)
}

func TestMemoryTier_DeleteByPattern_BadPattern(t *testing.T) {
	m := newTestMemory(t, 10)

	_, err := m.DeleteByPattern(context.Background(), "[unclosed")
	assert.Error(t, err)
}

func TestMemoryTier_Clear(t *testing.T) {
	m := newTestMemory(t, 10)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k1", []byte("v1"), time.Minute))
	require.NoError(t, m.Set(ctx, "k2", []byte("v2"), time.Minute))
	require.NoError(t, m.Clear(ctx))

	assert.Equal(t, 0, m.Len())
	assert.Equal(t, int64(0), m.SizeBytes())
}

func TestMemoryTier_MaxValueBytes(t *testing.T) {
	m := newTestMemory(t, 10, WithMaxValueBytes(4))
	ctx := context.Background()

	err := m.Set(ctx, "big", []byte("too large"), time.Minute)
	assert.ErrorIs(t, err, ErrValueTooLarge)

	require.NoError(t, m.Set(ctx, "ok", []byte("tiny"), time.Minute))
}

func TestMemoryTier_SizeAccounting(t *testing.T) {
	m := newTestMemory(t, 10)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k1", []byte("12345"), time.Minute))
	assert.Equal(t, int64(5), m.SizeBytes())

	require.NoError(t, m.Set(ctx, "k1", []byte("123"), time.Minute))
	assert.Equal(t, int64(3), m.SizeBytes())

	require.NoError(t, m.Delete(ctx, "k1"))
	assert.Equal(t, int64(0), m.SizeBytes())
}

func TestMemoryTier_ConcurrentAccess(t *testing.T) {
	m := newTestMemory(t, 100)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key%d", j%20)
				_ = m.Set(ctx, key, []byte("value"), time.Minute)
				_, _ = m.Get(ctx, key)
				if j%10 == 0 {
					_ = m.Delete(ctx, key)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, m.Len(), 100)
}
