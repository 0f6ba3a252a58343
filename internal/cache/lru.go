// Package cache implements the write-through LRU+TTL cache that fronts
// identity reads and search results in the memory facade. It is a bounded
// string-keyed map with strict LRU recency ordering, lazy and eager TTL
// expiry, and per-entry hit accounting.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EvictHook is invoked, outside the cache's internal lock, whenever Set
// or Load evicts the least-recently-used entry to make room for a new one.
type EvictHook func(key string, value any)

// Options configures a new Cache.
type Options struct {
	// MaxSize is the maximum number of live entries. Defaults to 1000.
	MaxSize int
	// TTL is how long an entry remains fresh after Set. Defaults to 5m.
	TTL time.Duration
	// UpdateAgeOnGet refreshes recency on Get, not just Set. New applies no
	// default here: the zero value (false) leaves recency untouched on Get.
	UpdateAgeOnGet bool
	// OnEvict is called for every LRU eviction, if non-nil.
	OnEvict EvictHook
	Logger  zerolog.Logger
}

type entry struct {
	elem      *list.Element
	value     any
	key       string
	timestamp time.Time
	hitCount  int64
}

// Cache is a bounded, thread-safe LRU map with TTL expiry.
type Cache struct {
	logger         zerolog.Logger
	items          map[string]*entry
	order          *list.List // front = most recently used
	onEvict        EvictHook
	ttl            time.Duration
	maxSize        int
	updateAgeOnGet bool

	mu sync.Mutex

	totalHits    int64
	totalMisses  int64
	totalSets    int64
	totalDeletes int64
}

// New creates a Cache with the given options, applying spec defaults for
// zero-valued fields.
func New(opts Options) *Cache {
	if opts.MaxSize <= 0 {
		opts.MaxSize = 1000
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	return &Cache{
		items:          make(map[string]*entry, opts.MaxSize),
		order:          list.New(),
		maxSize:        opts.MaxSize,
		ttl:            opts.TTL,
		updateAgeOnGet: opts.UpdateAgeOnGet,
		onEvict:        opts.OnEvict,
		logger:         opts.Logger.With().Str("component", "cache").Logger(),
	}
}

func (c *Cache) expired(e *entry, now time.Time) bool {
	return now.Sub(e.timestamp) > c.ttl
}

// Set inserts or replaces the value for key, resetting its hit count and
// recency. If the cache is at capacity, the least-recently-used entry is
// evicted and OnEvict is notified.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	now := time.Now()

	if e, ok := c.items[key]; ok {
		e.value = value
		e.timestamp = now
		e.hitCount = 0
		c.order.MoveToFront(e.elem)
		c.totalSets++
		c.mu.Unlock()
		return
	}

	e := &entry{key: key, value: value, timestamp: now}
	e.elem = c.order.PushFront(e)
	c.items[key] = e
	c.totalSets++

	var evictedKey string
	var evictedValue any
	evicted := false
	if len(c.items) > c.maxSize {
		tail := c.order.Back()
		if tail != nil {
			victim := tail.Value.(*entry)
			c.order.Remove(tail)
			delete(c.items, victim.key)
			evictedKey, evictedValue, evicted = victim.key, victim.value, true
		}
	}
	c.mu.Unlock()

	if evicted && c.onEvict != nil {
		c.onEvict(evictedKey, evictedValue)
	}
}

// Get returns the value for key and records a hit, or reports a miss if
// the key is absent or expired. Expired entries are reclaimed lazily.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		c.totalMisses++
		return nil, false
	}
	now := time.Now()
	if c.expired(e, now) {
		c.removeLocked(e)
		c.totalMisses++
		return nil, false
	}

	e.hitCount++
	if c.updateAgeOnGet {
		c.order.MoveToFront(e.elem)
	}
	c.totalHits++
	return e.value, true
}

// Peek returns the value for key without affecting recency or hit count.
// It still respects expiry.
func (c *Cache) Peek(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok || c.expired(e, time.Now()) {
		return nil, false
	}
	return e.value, true
}

// Has reports presence without producing a hit/miss statistic.
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return false
	}
	return !c.expired(e, time.Now())
}

// Delete removes key unconditionally. It is not an error to delete an
// absent key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		c.removeLocked(e)
	}
	c.totalDeletes++
}

func (c *Cache) removeLocked(e *entry) {
	c.order.Remove(e.elem)
	delete(c.items, e.key)
}

// Clear empties the cache. Statistics counters are preserved.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*entry, c.maxSize)
	c.order.Init()
}

// Keys returns a snapshot of all live, unexpired keys in MRU-to-LRU order.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	keys := make([]string, 0, len(c.items))
	for el := c.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if !c.expired(e, now) {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// Values returns a snapshot of all live, unexpired values in MRU-to-LRU order.
func (c *Cache) Values() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	vals := make([]any, 0, len(c.items))
	for el := c.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if !c.expired(e, now) {
			vals = append(vals, e.value)
		}
	}
	return vals
}

// Entry is a single key/value pair returned by Entries.
type Entry struct {
	Key   string
	Value any
}

// Entries returns a snapshot of all live, unexpired key/value pairs in
// MRU-to-LRU order.
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	out := make([]Entry, 0, len(c.items))
	for el := c.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if !c.expired(e, now) {
			out = append(out, Entry{Key: e.key, Value: e.value})
		}
	}
	return out
}

// Metadata describes an entry's bookkeeping fields.
type Metadata struct {
	Timestamp time.Time
	HitCount  int64
}

// GetWithMetadata behaves like Get but also returns the entry's timestamp
// and accumulated hit count (post-increment).
func (c *Cache) GetWithMetadata(key string) (any, Metadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok || c.expired(e, time.Now()) {
		if ok {
			c.removeLocked(e)
		}
		c.totalMisses++
		return nil, Metadata{}, false
	}
	e.hitCount++
	if c.updateAgeOnGet {
		c.order.MoveToFront(e.elem)
	}
	c.totalHits++
	return e.value, Metadata{Timestamp: e.timestamp, HitCount: e.hitCount}, true
}

// GetRemainingTTL returns the time until key expires, or 0 if it is
// absent or already expired.
func (c *Cache) GetRemainingTTL(key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return 0
	}
	remaining := c.ttl - time.Since(e.timestamp)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Prune drops every expired entry and returns how many were removed.
func (c *Cache) Prune() int {
	c.mu.Lock()
	now := time.Now()
	var victims []*entry
	for el := c.order.Back(); el != nil; {
		e := el.Value.(*entry)
		prev := el.Prev()
		if c.expired(e, now) {
			victims = append(victims, e)
		}
		el = prev
	}
	for _, e := range victims {
		c.removeLocked(e)
	}
	c.mu.Unlock()
	return len(victims)
}

// WarmUp bulk-seeds the cache via Set, preserving normal eviction behavior.
func (c *Cache) WarmUp(entries []Entry) {
	for _, e := range entries {
		c.Set(e.Key, e.Value)
	}
}

// DumpEntry is a single row produced by Dump, suitable for persistence
// and reload via Load.
type DumpEntry struct {
	Key       string
	Value     any
	Timestamp time.Time
}

// Dump snapshots every live entry including its original timestamp, for
// reload via Load. Expired entries are omitted.
func (c *Cache) Dump() []DumpEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	out := make([]DumpEntry, 0, len(c.items))
	for el := c.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if !c.expired(e, now) {
			out = append(out, DumpEntry{Key: e.key, Value: e.value, Timestamp: e.timestamp})
		}
	}
	return out
}

// Load restores entries produced by Dump, preserving their original
// timestamps (so TTL continues to count from the original Set). If the
// result exceeds MaxSize, least-recently-used entries are evicted and
// OnEvict is notified.
func (c *Cache) Load(dump []DumpEntry) {
	c.mu.Lock()
	for _, d := range dump {
		if e, ok := c.items[d.Key]; ok {
			c.removeLocked(e)
		}
		e := &entry{key: d.Key, value: d.Value, timestamp: d.Timestamp}
		e.elem = c.order.PushFront(e)
		c.items[d.Key] = e
	}
	var evicted []*entry
	for len(c.items) > c.maxSize {
		victim := c.order.Back().Value.(*entry)
		c.removeLocked(victim)
		evicted = append(evicted, victim)
	}
	c.mu.Unlock()

	if c.onEvict != nil {
		for _, e := range evicted {
			c.onEvict(e.key, e.value)
		}
	}
}

// TopHitEntry pairs a key with its current hit count, for GetTopHitEntries.
type TopHitEntry struct {
	Key      string
	Value    any
	HitCount int64
}

// GetTopHitEntries returns up to n live entries ordered by hit count
// descending.
func (c *Cache) GetTopHitEntries(n int) []TopHitEntry {
	c.mu.Lock()
	now := time.Now()
	all := make([]TopHitEntry, 0, len(c.items))
	for el := c.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if !c.expired(e, now) {
			all = append(all, TopHitEntry{Key: e.key, Value: e.value, HitCount: e.hitCount})
		}
	}
	c.mu.Unlock()

	sortTopHitsDesc(all)
	if n >= 0 && n < len(all) {
		all = all[:n]
	}
	return all
}

func sortTopHitsDesc(entries []TopHitEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].HitCount > entries[j-1].HitCount; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

// Stats is a point-in-time snapshot of cache performance counters.
type Stats struct {
	Size         int
	MaxSize      int
	HitRate      float64
	TotalHits    int64
	TotalMisses  int64
	TotalSets    int64
	TotalDeletes int64
}

// GetStats returns the current cache statistics.
func (c *Cache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.totalHits + c.totalMisses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.totalHits) / float64(total)
	}
	return Stats{
		Size:         len(c.items),
		MaxSize:      c.maxSize,
		HitRate:      hitRate,
		TotalHits:    c.totalHits,
		TotalMisses:  c.totalMisses,
		TotalSets:    c.totalSets,
		TotalDeletes: c.totalDeletes,
	}
}

// Len returns the current number of live entries, including expired ones
// not yet reclaimed.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
