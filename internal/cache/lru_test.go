package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/memvault/internal/cache"
)

func TestSetGetRoundTrip(t *testing.T) {
	c := cache.New(cache.Options{MaxSize: 10, TTL: time.Minute})
	c.Set("a", 1)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestLRUEvictionOrder(t *testing.T) {
	// S8: maxSize=3, insert a,b,c,d without reads -> a absent, b,c,d present.
	c := cache.New(cache.Options{MaxSize: 3, TTL: time.Minute})
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	c.Set("d", 4)

	assert.False(t, c.Has("a"))
	assert.True(t, c.Has("b"))
	assert.True(t, c.Has("c"))
	assert.True(t, c.Has("d"))
	assert.LessOrEqual(t, c.Len(), 3)
}

func TestEvictHookFires(t *testing.T) {
	var evictedKey string
	c := cache.New(cache.Options{MaxSize: 1, TTL: time.Minute, OnEvict: func(key string, _ any) {
		evictedKey = key
	}})
	c.Set("a", 1)
	c.Set("b", 2)
	assert.Equal(t, "a", evictedKey)
}

func TestGetOnRecencyPromotesEntry(t *testing.T) {
	c := cache.New(cache.Options{MaxSize: 2, TTL: time.Minute, UpdateAgeOnGet: true})
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a") // promote a to MRU
	c.Set("c", 3)     // should evict b, not a

	assert.True(t, c.Has("a"))
	assert.False(t, c.Has("b"))
	assert.True(t, c.Has("c"))
}

func TestTTLExpiry(t *testing.T) {
	c := cache.New(cache.Options{MaxSize: 10, TTL: 50 * time.Millisecond})
	c.Set("k", "v")
	time.Sleep(80 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)

	removed := c.Prune()
	assert.GreaterOrEqual(t, removed, 0) // lazily reclaimed by Get above already
}

func TestPruneRemovesExpired(t *testing.T) {
	c := cache.New(cache.Options{MaxSize: 10, TTL: 30 * time.Millisecond})
	c.Set("k1", 1)
	c.Set("k2", 2)
	time.Sleep(60 * time.Millisecond)

	removed := c.Prune()
	assert.GreaterOrEqual(t, removed, 1)
	assert.Equal(t, 0, c.Len())
}

func TestPeekDoesNotAffectRecencyOrStats(t *testing.T) {
	c := cache.New(cache.Options{MaxSize: 2})
	c.Set("a", 1)
	c.Set("b", 2)

	_, ok := c.Peek("a")
	require.True(t, ok)

	c.Set("c", 3) // a should still be LRU victim since Peek didn't promote it

	assert.False(t, c.Has("a"))
}

func TestHasDoesNotProduceHitMissStat(t *testing.T) {
	c := cache.New(cache.Options{MaxSize: 2})
	c.Set("a", 1)
	_ = c.Has("a")
	_ = c.Has("missing")

	stats := c.GetStats()
	assert.Equal(t, int64(0), stats.TotalHits)
	assert.Equal(t, int64(0), stats.TotalMisses)
}

func TestHitAccounting(t *testing.T) {
	c := cache.New(cache.Options{MaxSize: 10})
	c.Set("a", 1)

	_, _ = c.Get("a")
	_, _ = c.Get("a")
	_, _ = c.Get("missing")

	stats := c.GetStats()
	assert.Equal(t, int64(2), stats.TotalHits)
	assert.Equal(t, int64(1), stats.TotalMisses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
}

func TestHitRateZeroWhenNoRequests(t *testing.T) {
	c := cache.New(cache.Options{MaxSize: 10})
	stats := c.GetStats()
	assert.Equal(t, 0.0, stats.HitRate)
}

func TestGetWithMetadata(t *testing.T) {
	c := cache.New(cache.Options{MaxSize: 10})
	c.Set("a", "value")

	_, meta, ok := c.GetWithMetadata("a")
	require.True(t, ok)
	assert.Equal(t, int64(1), meta.HitCount)
	assert.WithinDuration(t, time.Now(), meta.Timestamp, time.Second)
}

func TestGetRemainingTTL(t *testing.T) {
	c := cache.New(cache.Options{MaxSize: 10, TTL: 100 * time.Millisecond})
	c.Set("a", 1)

	remaining := c.GetRemainingTTL("a")
	assert.Greater(t, remaining, time.Duration(0))
	assert.LessOrEqual(t, remaining, 100*time.Millisecond)

	assert.Equal(t, time.Duration(0), c.GetRemainingTTL("missing"))
}

func TestDumpAndLoadPreservesTimestamp(t *testing.T) {
	src := cache.New(cache.Options{MaxSize: 10, TTL: time.Hour})
	src.Set("a", "value")
	dump := src.Dump()
	require.Len(t, dump, 1)

	dst := cache.New(cache.Options{MaxSize: 10, TTL: time.Hour})
	dst.Load(dump)

	v, ok := dst.Get("a")
	require.True(t, ok)
	assert.Equal(t, "value", v)
}

func TestWarmUp(t *testing.T) {
	c := cache.New(cache.Options{MaxSize: 10})
	c.WarmUp([]cache.Entry{{Key: "a", Value: 1}, {Key: "b", Value: 2}})

	assert.True(t, c.Has("a"))
	assert.True(t, c.Has("b"))
}

func TestGetTopHitEntries(t *testing.T) {
	c := cache.New(cache.Options{MaxSize: 10})
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	_, _ = c.Get("b")
	_, _ = c.Get("b")
	_, _ = c.Get("c")

	top := c.GetTopHitEntries(2)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].Key)
	assert.Equal(t, int64(2), top[0].HitCount)
}

func TestClearEmptiesCache(t *testing.T) {
	c := cache.New(cache.Options{MaxSize: 10})
	c.Set("a", 1)
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestKeysValuesEntriesSnapshot(t *testing.T) {
	c := cache.New(cache.Options{MaxSize: 10})
	c.Set("a", 1)
	c.Set("b", 2)

	assert.ElementsMatch(t, []string{"a", "b"}, c.Keys())
	assert.ElementsMatch(t, []any{1, 2}, c.Values())
	assert.Len(t, c.Entries(), 2)
}

func TestDeleteRemovesKey(t *testing.T) {
	c := cache.New(cache.Options{MaxSize: 10})
	c.Set("a", 1)
	c.Delete("a")
	assert.False(t, c.Has("a"))
}

func TestCapacityNeverExceedsMaxSize(t *testing.T) {
	c := cache.New(cache.Options{MaxSize: 5})
	for i := 0; i < 100; i++ {
		c.Set(string(rune('a'+i%26))+string(rune(i)), i)
		assert.LessOrEqual(t, c.Len(), 5)
	}
}
