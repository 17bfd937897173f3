// Package cache provides the generic TTL+LRU cache used to memoize file
// content, external merge/diff results, and validation results across a sync
// run.
package cache

import (
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/klauern/featsync/internal/events"
	"github.com/klauern/featsync/internal/logging"
)

// Entry holds one cached value with its bookkeeping metadata. Entries are
// owned exclusively by the cache that created them and are destroyed on
// explicit delete, TTL expiry, or LRU eviction.
type Entry[V any] struct {
	Value      V
	CreatedAt  time.Time
	LastAccess time.Time
	TTL        time.Duration

	timer *time.Timer
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Name        string
	Size        int
	Capacity    int
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Expirations uint64
}

// HitRate returns the fraction of lookups served from cache.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Options configures a cache instance.
type Options struct {
	// Name identifies the cache in stats and events.
	Name string
	// Capacity bounds the number of entries. Zero or below means unbounded.
	Capacity int
	// TTL is the default time-to-live applied by Set. A TTL of zero or
	// below means entries never expire by time.
	TTL time.Duration
	// Bus, when non-nil, receives cache.hit and cache.miss events.
	Bus *events.Bus
}

// LookupEvent is the payload for cache hit and miss events.
type LookupEvent struct {
	Cache string
	Key   string
}

// Cache is a string-keyed cache with per-entry TTL expiry and LRU eviction.
// All methods are safe for concurrent use.
type Cache[V any] struct {
	mu      sync.Mutex
	opts    Options
	entries map[string]*Entry[V]

	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64
}

// New creates a cache with the given options.
func New[V any](opts Options) *Cache[V] {
	return &Cache[V]{
		opts:    opts,
		entries: make(map[string]*Entry[V]),
	}
}

// Set stores value under key with the cache's default TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.SetTTL(key, value, c.opts.TTL)
}

// SetTTL stores value under key with an explicit TTL. A ttl of zero or below
// disables time-based expiry for the entry; it can then only be removed by
// explicit delete or LRU eviction. If the cache is at capacity and key is
// new, the entry with the oldest last-access time is evicted first.
func (c *Cache[V]) SetTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.stopTimer(old)
	} else if c.opts.Capacity > 0 && len(c.entries) >= c.opts.Capacity {
		c.evictOldestLocked()
	}

	now := time.Now()
	entry := &Entry[V]{
		Value:      value,
		CreatedAt:  now,
		LastAccess: now,
		TTL:        ttl,
	}
	if ttl > 0 {
		entry.timer = time.AfterFunc(ttl, func() {
			c.expire(key, entry)
		})
	}
	c.entries[key] = entry
}

// Get returns the value for key and whether it was present. An absent or
// already-expired entry is a miss; expiry is checked defensively even if the
// expiry timer has not yet fired. A hit updates the entry's last-access time.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()

	var zero V
	entry, ok := c.entries[key]
	if ok && entry.expired(time.Now()) {
		c.removeLocked(key, entry)
		c.expirations++
		ok = false
	}
	if !ok {
		c.misses++
		c.mu.Unlock()
		c.emit(events.CacheMiss, key)
		return zero, false
	}

	entry.LastAccess = time.Now()
	c.hits++
	value := entry.Value
	c.mu.Unlock()
	c.emit(events.CacheHit, key)
	return value, true
}

// Delete removes the entry for key, canceling any pending expiry timer.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeLocked(key, entry)
	return true
}

// DeleteFunc removes every entry whose key satisfies match and returns the
// number removed.
func (c *Cache[V]) DeleteFunc(match func(key string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, entry := range c.entries {
		if match(key) {
			c.removeLocked(key, entry)
			removed++
		}
	}
	return removed
}

// Clear removes all entries and cancels their expiry timers.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		c.removeLocked(key, entry)
	}
}

// Len returns the number of live entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Name returns the cache's configured name.
func (c *Cache[V]) Name() string { return c.opts.Name }

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Name:        c.opts.Name,
		Size:        len(c.entries),
		Capacity:    c.opts.Capacity,
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
	}
}

// expired reports whether the entry's TTL has elapsed at now.
func (e *Entry[V]) expired(now time.Time) bool {
	return e.TTL > 0 && now.After(e.CreatedAt.Add(e.TTL))
}

// expire is the timer callback. The entry pointer is compared so a timer
// firing after its key was replaced does not remove the newer entry.
func (c *Cache[V]) expire(key string, entry *Entry[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	current, ok := c.entries[key]
	if !ok || current != entry {
		return
	}
	delete(c.entries, key)
	c.expirations++
}

// evictOldestLocked removes the entry with the oldest last-access time.
// Linear scan; cache sizes are bounded in the hundreds.
func (c *Cache[V]) evictOldestLocked() {
	var oldestKey string
	var oldest *Entry[V]
	for key, entry := range c.entries {
		if oldest == nil || entry.LastAccess.Before(oldest.LastAccess) {
			oldestKey = key
			oldest = entry
		}
	}
	if oldest != nil {
		c.removeLocked(oldestKey, oldest)
		c.evictions++
		logging.Debug("cache entry evicted",
			logging.Operation("evict"),
			logging.Path(oldestKey),
		)
	}
}

func (c *Cache[V]) removeLocked(key string, entry *Entry[V]) {
	c.stopTimer(entry)
	delete(c.entries, key)
}

func (c *Cache[V]) stopTimer(entry *Entry[V]) {
	if entry.timer != nil {
		entry.timer.Stop()
		entry.timer = nil
	}
}

func (c *Cache[V]) emit(name, key string) {
	if c.opts.Bus != nil {
		c.opts.Bus.Emit(name, LookupEvent{Cache: c.opts.Name, Key: key})
	}
}

// Hash returns a short non-cryptographic content hash, used to key cached
// results to a specific document revision.
func Hash(content string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(content))
	return fmt.Sprintf("%016x", h.Sum64())
}

// keySep joins key segments. Paths never contain it on the platforms we
// target, so prefix matching on "path|" is unambiguous.
const keySep = "|"

// FileKey builds a file-content cache key.
func FileKey(path string) string { return path }

// ProcessKey builds a merge/diff result cache key from the operand paths and
// the option string that parameterized the invocation.
func ProcessKey(pathA, pathB, options string) string {
	return strings.Join([]string{pathA, pathB, options}, keySep)
}

// ValidationKey builds a validation-result cache key from the source path and
// content hash, so an entry stays valid exactly as long as the document text
// is unchanged.
func ValidationKey(path, contentHash string) string {
	return path + keySep + contentHash
}

// KeyMatchesPath reports whether a cache key refers to the given path under
// any of the key-building conventions above.
func KeyMatchesPath(key, path string) bool {
	return key == path || strings.HasPrefix(key, path+keySep) || strings.Contains(key, keySep+path+keySep)
}
