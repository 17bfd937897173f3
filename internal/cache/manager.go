package cache

import (
	"time"

	"github.com/klauern/featsync/internal/events"
)

// Default capacities and TTLs for the three specialized caches. File and
// process results go stale quickly as the working tree changes; validation
// results are keyed by content hash and can live longer.
const (
	FileCacheCapacity = 256
	FileCacheTTL      = 30 * time.Second

	ProcessCacheCapacity = 512
	ProcessCacheTTL      = time.Minute

	ValidationCacheCapacity = 512
	ValidationCacheTTL      = 10 * time.Minute
)

// NewFileCache creates the file-content cache, keyed by path.
func NewFileCache(bus *events.Bus) *Cache[string] {
	return New[string](Options{
		Name:     "files",
		Capacity: FileCacheCapacity,
		TTL:      FileCacheTTL,
		Bus:      bus,
	})
}

// NewProcessCache creates the external merge/diff result cache, keyed by
// operand paths plus options.
func NewProcessCache[V any](bus *events.Bus) *Cache[V] {
	return New[V](Options{
		Name:     "process",
		Capacity: ProcessCacheCapacity,
		TTL:      ProcessCacheTTL,
		Bus:      bus,
	})
}

// NewValidationCache creates the validation-result cache, keyed by path plus
// content hash.
func NewValidationCache[V any](bus *events.Bus) *Cache[V] {
	return New[V](Options{
		Name:     "validation",
		Capacity: ValidationCacheCapacity,
		TTL:      ValidationCacheTTL,
		Bus:      bus,
	})
}

// Store is the type-erased view of a Cache used by the Manager.
type Store interface {
	Name() string
	Stats() Stats
	Clear()
	DeleteFunc(match func(key string) bool) int
}

// Manager composes the process's cache instances, exposing aggregate
// statistics and global or per-path invalidation.
type Manager struct {
	stores []Store
}

// NewManager creates a manager over the given caches.
func NewManager(stores ...Store) *Manager {
	return &Manager{stores: stores}
}

// Register adds a cache to the manager.
func (m *Manager) Register(s Store) {
	m.stores = append(m.stores, s)
}

// Stats returns per-cache statistics snapshots.
func (m *Manager) Stats() []Stats {
	out := make([]Stats, 0, len(m.stores))
	for _, s := range m.stores {
		out = append(out, s.Stats())
	}
	return out
}

// Clear empties every managed cache.
func (m *Manager) Clear() {
	for _, s := range m.stores {
		s.Clear()
	}
}

// InvalidatePath removes every entry in every managed cache associated with
// the given path and returns the total number removed.
func (m *Manager) InvalidatePath(path string) int {
	removed := 0
	for _, s := range m.stores {
		removed += s.DeleteFunc(func(key string) bool {
			return KeyMatchesPath(key, path)
		})
	}
	return removed
}
