package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

func TestMemoryCacheTypedRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	v := 0.25
	require.NoError(t, mc.Set(ctx, "features:returns:1", payload{Date: "2024-03-15", Value: &v}, time.Minute))

	var got payload
	require.NoError(t, mc.Get(ctx, "features:returns:1", &got))
	assert.Equal(t, "2024-03-15", got.Date)
	require.NotNil(t, got.Value)
	assert.Equal(t, 0.25, *got.Value)

	var s string
	require.NoError(t, mc.Set(ctx, "raw", "hello", 0))
	require.NoError(t, mc.Get(ctx, "raw", &s))
	assert.Equal(t, "hello", s)
}

func TestMemoryCacheMissAndExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	var got payload
	assert.ErrorIs(t, mc.Get(ctx, "absent", &got), ErrCacheMiss)

	require.NoError(t, mc.Set(ctx, "short", payload{}, time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	assert.ErrorIs(t, mc.Get(ctx, "short", &got), ErrCacheMiss)
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	for _, k := range []string{"features:a", "features:b", "other:c"} {
		require.NoError(t, mc.Set(ctx, k, 1, time.Minute))
	}
	require.NoError(t, mc.DeleteByPattern(ctx, BuildPattern("features:")))

	ok, err := mc.Exists(ctx, "features:a", "features:b")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, _ = mc.Exists(ctx, "other:c")
	assert.True(t, ok)
}

func TestMemoryCacheLock(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	ok, err := mc.TryLock(ctx, "features:lock:2024-03-15", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = mc.TryLock(ctx, "features:lock:2024-03-15", time.Minute)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "features:lock:2024-03-15"))
	ok, _ = mc.TryLock(ctx, "features:lock:2024-03-15", time.Minute)
	assert.True(t, ok)
}

func TestMemoryCacheEvictsAtCapacity(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", 1, time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "b", 2, time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "c", 3, time.Minute))

	ok, _ := mc.Exists(ctx, "a")
	assert.False(t, ok)
	ok, _ = mc.Exists(ctx, "c")
	assert.True(t, ok)
}

func TestGenerateKeyWithParams(t *testing.T) {
	assert.Equal(t, "features:returns:7:2024-03-15", GenerateKeyWithParams("features:returns", 7, "2024-03-15"))
}

func TestMemoryCacheGetRefreshesRecency(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, mc.Set(ctx, "b", 2, time.Minute))
	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	require.NoError(t, mc.Set(ctx, "c", 3, time.Minute))

	ok, _ := mc.Exists(ctx, "a")
	assert.True(t, ok)
	ok, _ = mc.Exists(ctx, "b")
	assert.False(t, ok)
}

func TestMemoryCacheLocksSurviveEvictionAndPatterns(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(1))
	defer mc.Close()
	ctx := context.Background()

	ok, err := mc.TryLock(ctx, "features:lock:2024-03-15", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, mc.Set(ctx, "features:q:a", 1, time.Minute))
	require.NoError(t, mc.Set(ctx, "features:q:b", 2, time.Minute))
	require.NoError(t, mc.DeleteByPattern(ctx, "features:*"))

	ok, _ = mc.TryLock(ctx, "features:lock:2024-03-15", time.Minute)
	assert.False(t, ok)
}

func TestMemoryCacheExpiredLockIsReacquired(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	ok, _ := mc.TryLock(ctx, "features:lock:x", time.Millisecond)
	require.True(t, ok)
	time.Sleep(5 * time.Millisecond)
	ok, _ = mc.TryLock(ctx, "features:lock:x", time.Minute)
	assert.True(t, ok)
}
