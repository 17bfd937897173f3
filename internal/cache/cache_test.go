package cache

import (
	"testing"
	"time"

	"github.com/klauern/featsync/internal/events"
)

func TestSetAndGet(t *testing.T) {
	c := New[string](Options{Name: "test"})

	c.Set("key", "value")

	got, ok := c.Get("key")
	if !ok {
		t.Fatal("expected hit")
	}
	if got != "value" {
		t.Errorf("Get = %q, want %q", got, "value")
	}
}

func TestGetMiss(t *testing.T) {
	c := New[string](Options{Name: "test"})

	if _, ok := c.Get("absent"); ok {
		t.Error("expected miss for absent key")
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New[string](Options{Name: "test"})

	c.SetTTL("key", "value", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("key"); ok {
		t.Error("expected expired entry to miss")
	}

	stats := c.Stats()
	if stats.Expirations == 0 {
		t.Error("expected at least one expiration recorded")
	}
}

func TestReplaceCancelsOldExpiry(t *testing.T) {
	c := New[string](Options{Name: "test"})

	c.SetTTL("key", "old", 10*time.Millisecond)
	c.SetTTL("key", "new", 0)
	time.Sleep(30 * time.Millisecond)

	got, ok := c.Get("key")
	if !ok {
		t.Fatal("replacement entry should survive the old entry's TTL")
	}
	if got != "new" {
		t.Errorf("Get = %q, want %q", got, "new")
	}
}

func TestLRUEviction(t *testing.T) {
	c := New[int](Options{Name: "test", Capacity: 2})

	c.Set("a", 1)
	time.Sleep(2 * time.Millisecond)
	c.Set("b", 2)
	time.Sleep(2 * time.Millisecond)

	// Touch "a" so "b" becomes the least recently used.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected hit on a")
	}
	time.Sleep(2 * time.Millisecond)

	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c to be present")
	}
	if stats := c.Stats(); stats.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", stats.Evictions)
	}
}

func TestDeleteAndClear(t *testing.T) {
	c := New[int](Options{Name: "test"})

	c.Set("a", 1)
	c.Set("b", 2)

	if !c.Delete("a") {
		t.Error("Delete(a) = false, want true")
	}
	if c.Delete("a") {
		t.Error("second Delete(a) = true, want false")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", c.Len())
	}
}

func TestDeleteFunc(t *testing.T) {
	c := New[int](Options{Name: "test"})

	c.Set("features/a.feature", 1)
	c.Set("features/b.feature", 2)
	c.Set("other", 3)

	removed := c.DeleteFunc(func(key string) bool {
		return KeyMatchesPath(key, "features/a.feature")
	})
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestStatsAndHitRate(t *testing.T) {
	c := New[string](Options{Name: "stats"})

	c.Set("key", "value")
	c.Get("key")
	c.Get("key")
	c.Get("absent")

	stats := c.Stats()
	if stats.Name != "stats" {
		t.Errorf("Name = %q, want %q", stats.Name, "stats")
	}
	if stats.Hits != 2 {
		t.Errorf("Hits = %d, want 2", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
	if rate := stats.HitRate(); rate < 0.66 || rate > 0.67 {
		t.Errorf("HitRate = %f, want ~0.667", rate)
	}

	var empty Stats
	if empty.HitRate() != 0 {
		t.Errorf("zero-lookup HitRate = %f, want 0", empty.HitRate())
	}
}

func TestLookupEventsEmitted(t *testing.T) {
	bus := events.New(0)
	c := New[string](Options{Name: "evt", Bus: bus})

	var hits, misses int
	bus.On(events.CacheHit, func(events.Event) { hits++ })
	bus.On(events.CacheMiss, func(events.Event) { misses++ })

	c.Get("absent")
	c.Set("key", "v")
	c.Get("key")

	if hits != 1 || misses != 1 {
		t.Errorf("hits = %d, misses = %d, want 1, 1", hits, misses)
	}
}

func TestHash(t *testing.T) {
	a := Hash("Feature: login")
	b := Hash("Feature: login")
	c := Hash("Feature: logout")

	if a != b {
		t.Errorf("same content hashed differently: %q vs %q", a, b)
	}
	if a == c {
		t.Error("different content produced the same hash")
	}
	if len(a) != 16 {
		t.Errorf("hash length = %d, want 16", len(a))
	}
}

func TestKeyMatchesPath(t *testing.T) {
	tests := []struct {
		name string
		key  string
		path string
		want bool
	}{
		{"file key exact", FileKey("a/b.feature"), "a/b.feature", true},
		{"validation key prefix", ValidationKey("a/b.feature", "abc123"), "a/b.feature", true},
		{"process key first operand", ProcessKey("a/b.feature", "c.feature", "merge"), "a/b.feature", true},
		{"process key second operand", ProcessKey("c.feature", "a/b.feature", "merge"), "a/b.feature", true},
		{"unrelated key", ValidationKey("other.feature", "abc123"), "a/b.feature", false},
		{"path is substring of another", FileKey("a/b.feature.bak"), "a/b.feature", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KeyMatchesPath(tt.key, tt.path); got != tt.want {
				t.Errorf("KeyMatchesPath(%q, %q) = %v, want %v", tt.key, tt.path, got, tt.want)
			}
		})
	}
}

func TestManagerInvalidatePath(t *testing.T) {
	files := NewFileCache(nil)
	validations := NewValidationCache[int](nil)
	m := NewManager(files, validations)

	files.Set(FileKey("features/login.feature"), "content")
	files.Set(FileKey("features/other.feature"), "content")
	validations.Set(ValidationKey("features/login.feature", "hash"), 1)

	removed := m.InvalidatePath("features/login.feature")
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if _, ok := files.Get(FileKey("features/other.feature")); !ok {
		t.Error("unrelated entry was invalidated")
	}
}

func TestManagerClearAndStats(t *testing.T) {
	files := NewFileCache(nil)
	process := NewProcessCache[string](nil)
	m := NewManager(files)
	m.Register(process)

	files.Set("a", "1")
	process.Set("b", "2")

	stats := m.Stats()
	if len(stats) != 2 {
		t.Fatalf("len(Stats) = %d, want 2", len(stats))
	}
	if stats[0].Name != "files" || stats[1].Name != "process" {
		t.Errorf("stats names = %q, %q, want files, process", stats[0].Name, stats[1].Name)
	}

	m.Clear()
	if files.Len() != 0 || process.Len() != 0 {
		t.Error("expected all managed caches emptied")
	}
}
