package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/quillmark/driftanchor/core/anchor"
	"github.com/quillmark/driftanchor/core/document"
)

// buildFlattened builds a small document tree with one paragraph per
// text and flattens it.
func buildFlattened(texts ...string) *document.Flattened {
	root := document.NewElement("body")
	for _, s := range texts {
		p := document.NewElement("p")
		p.AppendChild(document.NewText(s))
		root.AppendChild(p)
	}
	return document.Flatten(document.NewTree(root))
}

// sampleSelector builds a minimal valid selector for cache tests.
func sampleSelector(id string) *anchor.MultiSelector {
	return &anchor.MultiSelector{
		ID: id,
		Position: &anchor.PositionSelector{
			StartOffset: 4,
			EndOffset:   9,
			Text:        "quick",
			TextBefore:  "The ",
			TextAfter:   " brown fox",
		},
		Fuzzy: &anchor.FuzzySelector{
			Text:       "quick",
			TextBefore: "The ",
			TextAfter:  " brown fox",
			Threshold:  0.5,
		},
		ContentHash: anchor.ContentHash("quick"),
		CreatedAt:   time.Now().UTC(),
	}
}

func TestLRUCache_BasicOperations(t *testing.T) {
	config := Config{
		MaxSize: 3,
		TTL:     0,
	}
	cache := NewLRUCache[string, int](config)

	// Test Put and Get
	cache.Put("a", 1)
	cache.Put("b", 2)
	cache.Put("c", 3)

	if v, ok := cache.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v; want 1, true", v, ok)
	}
	if v, ok := cache.Get("b"); !ok || v != 2 {
		t.Errorf("Get(b) = %d, %v; want 2, true", v, ok)
	}
	if v, ok := cache.Get("c"); !ok || v != 3 {
		t.Errorf("Get(c) = %d, %v; want 3, true", v, ok)
	}

	// Test non-existent key
	if _, ok := cache.Get("d"); ok {
		t.Error("Get(d) should return false")
	}

	// Test Len
	if len := cache.Len(); len != 3 {
		t.Errorf("Len() = %d; want 3", len)
	}
}

func TestLRUCache_Eviction(t *testing.T) {
	config := Config{
		MaxSize: 2,
		TTL:     0,
	}
	cache := NewLRUCache[string, int](config)

	cache.Put("a", 1)
	cache.Put("b", 2)
	cache.Put("c", 3) // Should evict "a" (least recently used)

	// "a" should be evicted
	if _, ok := cache.Get("a"); ok {
		t.Error("Get(a) should return false after eviction")
	}

	// "b" and "c" should still be present
	if v, ok := cache.Get("b"); !ok || v != 2 {
		t.Errorf("Get(b) = %d, %v; want 2, true", v, ok)
	}
	if v, ok := cache.Get("c"); !ok || v != 3 {
		t.Errorf("Get(c) = %d, %v; want 3, true", v, ok)
	}

	// Test that accessing moves to front
	cache.Get("b")    // Move "b" to front
	cache.Put("d", 4) // Should evict "c" (now least recently used)

	if _, ok := cache.Get("c"); ok {
		t.Error("Get(c) should return false after eviction")
	}
	if v, ok := cache.Get("b"); !ok || v != 2 {
		t.Errorf("Get(b) = %d, %v; want 2, true", v, ok)
	}
	if v, ok := cache.Get("d"); !ok || v != 4 {
		t.Errorf("Get(d) = %d, %v; want 4, true", v, ok)
	}
}

func TestLRUCache_Update(t *testing.T) {
	config := Config{
		MaxSize: 2,
		TTL:     0,
	}
	cache := NewLRUCache[string, int](config)

	cache.Put("a", 1)
	cache.Put("a", 2) // Update existing key

	if v, ok := cache.Get("a"); !ok || v != 2 {
		t.Errorf("Get(a) = %d, %v; want 2, true", v, ok)
	}

	// Should still have only 1 entry
	if len := cache.Len(); len != 1 {
		t.Errorf("Len() = %d; want 1", len)
	}
}

func TestLRUCache_Remove(t *testing.T) {
	config := Config{
		MaxSize: 3,
		TTL:     0,
	}
	cache := NewLRUCache[string, int](config)

	cache.Put("a", 1)
	cache.Put("b", 2)
	cache.Put("c", 3)

	cache.Remove("b")

	if _, ok := cache.Get("b"); ok {
		t.Error("Get(b) should return false after Remove")
	}

	if len := cache.Len(); len != 2 {
		t.Errorf("Len() = %d; want 2", len)
	}

	// Other entries should still be present
	if v, ok := cache.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v; want 1, true", v, ok)
	}
	if v, ok := cache.Get("c"); !ok || v != 3 {
		t.Errorf("Get(c) = %d, %v; want 3, true", v, ok)
	}
}

func TestLRUCache_Clear(t *testing.T) {
	config := Config{
		MaxSize: 3,
		TTL:     0,
	}
	cache := NewLRUCache[string, int](config)

	cache.Put("a", 1)
	cache.Put("b", 2)
	cache.Put("c", 3)

	cache.Clear()

	if len := cache.Len(); len != 0 {
		t.Errorf("Len() = %d; want 0", len)
	}

	if _, ok := cache.Get("a"); ok {
		t.Error("Get(a) should return false after Clear")
	}
}

func TestLRUCache_TTL(t *testing.T) {
	config := Config{
		MaxSize: 3,
		TTL:     50 * time.Millisecond,
	}
	cache := NewLRUCache[string, int](config)

	cache.Put("a", 1)

	// Should be present immediately
	if v, ok := cache.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v; want 1, true", v, ok)
	}

	// Wait for expiration
	time.Sleep(100 * time.Millisecond)

	// Should be expired
	if _, ok := cache.Get("a"); ok {
		t.Error("Get(a) should return false after TTL expiration")
	}
}

func TestLRUCache_Stats(t *testing.T) {
	config := Config{
		MaxSize: 2,
		TTL:     0,
	}
	cache := NewLRUCache[string, int](config)

	cache.Put("a", 1)
	cache.Put("b", 2)

	// Test hits
	cache.Get("a")
	cache.Get("b")

	// Test misses
	cache.Get("c")
	cache.Get("d")

	// Test eviction
	cache.Put("c", 3) // Evicts "a"

	stats := cache.Stats()

	if stats.Hits != 2 {
		t.Errorf("Hits = %d; want 2", stats.Hits)
	}
	if stats.Misses != 2 {
		t.Errorf("Misses = %d; want 2", stats.Misses)
	}
	if stats.Evictions != 1 {
		t.Errorf("Evictions = %d; want 1", stats.Evictions)
	}
	if stats.Size != 2 {
		t.Errorf("Size = %d; want 2", stats.Size)
	}
	if stats.MaxSize != 2 {
		t.Errorf("MaxSize = %d; want 2", stats.MaxSize)
	}
}

func TestLRUCache_OnEvict(t *testing.T) {
	var evictedKey string
	var evictedValue int

	config := Config{
		MaxSize: 2,
		TTL:     0,
		OnEvict: func(key, value interface{}) {
			evictedKey = key.(string)
			evictedValue = value.(int)
		},
	}
	cache := NewLRUCache[string, int](config)

	cache.Put("a", 1)
	cache.Put("b", 2)
	cache.Put("c", 3) // Should evict "a"

	if evictedKey != "a" {
		t.Errorf("evictedKey = %s; want a", evictedKey)
	}
	if evictedValue != 1 {
		t.Errorf("evictedValue = %d; want 1", evictedValue)
	}
}

func TestLRUCache_Concurrency(t *testing.T) {
	config := Config{
		MaxSize: 100,
		TTL:     0,
	}
	cache := NewLRUCache[int, int](config)

	var wg sync.WaitGroup
	numGoroutines := 10
	numOperations := 100

	// Concurrent writes
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOperations; j++ {
				key := id*numOperations + j
				cache.Put(key, key)
			}
		}(i)
	}

	// Concurrent reads
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOperations; j++ {
				key := id*numOperations + j
				cache.Get(key)
			}
		}(i)
	}

	wg.Wait()

	// Cache should be in a valid state
	if len := cache.Len(); len > config.MaxSize {
		t.Errorf("Len() = %d; want <= %d", len, config.MaxSize)
	}
}

func TestFlattenCache_BasicOperations(t *testing.T) {
	cache := NewDefaultFlattenCache()

	flat := buildFlattened("The quick brown fox ", "jumps over the lazy dog.")
	fingerprint := "abc123"

	// Test Put and Get
	cache.Put(fingerprint, flat)

	retrieved, ok := cache.Get(fingerprint)
	if !ok {
		t.Fatal("Get should return true for cached document")
	}
	if retrieved.Text() != flat.Text() {
		t.Errorf("Retrieved text = %q; want %q", retrieved.Text(), flat.Text())
	}

	// Test Len
	if len := cache.Len(); len != 1 {
		t.Errorf("Len() = %d; want 1", len)
	}

	// Test Remove
	cache.Remove(fingerprint)
	if _, ok := cache.Get(fingerprint); ok {
		t.Error("Get should return false after Remove")
	}
}

func TestFlattenCache_GetOrCompute(t *testing.T) {
	cache := NewDefaultFlattenCache()

	computed := 0
	build := func() *document.Flattened {
		computed++
		return buildFlattened("some text")
	}

	// First call computes
	flat := cache.GetOrCompute("fp-1", build)
	if flat == nil {
		t.Fatal("GetOrCompute returned nil")
	}
	if computed != 1 {
		t.Errorf("computed = %d; want 1", computed)
	}

	// Second call hits the cache
	again := cache.GetOrCompute("fp-1", build)
	if computed != 1 {
		t.Errorf("computed = %d after second call; want 1", computed)
	}
	if again != flat {
		t.Error("GetOrCompute should return the cached instance")
	}

	// After Remove the value is computed again
	cache.Remove("fp-1")
	cache.GetOrCompute("fp-1", build)
	if computed != 2 {
		t.Errorf("computed = %d after Remove; want 2", computed)
	}
}

func TestFlattenCache_GetOrComputeNil(t *testing.T) {
	cache := NewDefaultFlattenCache()

	flat := cache.GetOrCompute("fp-nil", func() *document.Flattened {
		return nil
	})
	if flat != nil {
		t.Error("GetOrCompute should return nil when build returns nil")
	}

	// nil results are not cached
	if _, ok := cache.Get("fp-nil"); ok {
		t.Error("nil build result should not be cached")
	}
}

func TestFlattenCache_ClearAndStats(t *testing.T) {
	cache := NewDefaultFlattenCache()

	flat := buildFlattened("shared text")

	// Add documents
	cache.Put("hash1", flat)
	cache.Put("hash2", flat)
	cache.Put("hash3", flat)

	// Test Stats
	stats := cache.Stats()
	if stats.Size != 3 {
		t.Errorf("Stats.Size = %d; want 3", stats.Size)
	}
	if stats.MaxSize != 16 {
		t.Errorf("Stats.MaxSize = %d; want 16", stats.MaxSize)
	}

	// Test Clear
	cache.Clear()

	if len := cache.Len(); len != 0 {
		t.Errorf("Len() after Clear = %d; want 0", len)
	}

	// Stats after clear should show 0 size
	stats = cache.Stats()
	if stats.Size != 0 {
		t.Errorf("Stats.Size after Clear = %d; want 0", stats.Size)
	}
}

func TestSelectorCache_BasicOperations(t *testing.T) {
	cache := NewDefaultSelectorCache()

	sel := sampleSelector("anchor-1")
	key := sel.ID

	// Test Put and Get
	cache.Put(key, sel)

	retrieved, ok := cache.Get(key)
	if !ok {
		t.Fatal("Get should return true for cached selector")
	}
	if retrieved.ID != sel.ID {
		t.Errorf("Retrieved selector ID = %s; want %s", retrieved.ID, sel.ID)
	}
	if retrieved.Position.Text != sel.Position.Text {
		t.Errorf("Retrieved selector text = %q; want %q", retrieved.Position.Text, sel.Position.Text)
	}

	// Test Len
	if len := cache.Len(); len != 1 {
		t.Errorf("Len() = %d; want 1", len)
	}

	// Test Remove
	cache.Remove(key)
	if _, ok := cache.Get(key); ok {
		t.Error("Get should return false after Remove")
	}
}

func TestSelectorCache_MultipleSelectors(t *testing.T) {
	cache := NewDefaultSelectorCache()

	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("anchor-%d", i)
		cache.Put(id, sampleSelector(id))
	}

	if len := cache.Len(); len != 20 {
		t.Errorf("Len() = %d; want 20", len)
	}

	// Verify all selectors are retrievable
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("anchor-%d", i)
		sel, ok := cache.Get(id)
		if !ok {
			t.Errorf("Get(%s) should return true", id)
			continue
		}
		if sel.ID != id {
			t.Errorf("Selector ID = %s; want %s", sel.ID, id)
		}
	}
}

func TestSelectorCache_ClearAndStats(t *testing.T) {
	cache := NewDefaultSelectorCache()

	// Add selectors
	cache.Put("key1", sampleSelector("key1"))
	cache.Put("key2", sampleSelector("key2"))
	cache.Put("key3", sampleSelector("key3"))

	// Test Stats
	stats := cache.Stats()
	if stats.Size != 3 {
		t.Errorf("Stats.Size = %d; want 3", stats.Size)
	}
	if stats.MaxSize != 256 {
		t.Errorf("Stats.MaxSize = %d; want 256", stats.MaxSize)
	}

	// Test Clear
	cache.Clear()

	if len := cache.Len(); len != 0 {
		t.Errorf("Len() after Clear = %d; want 0", len)
	}

	// Stats after clear should show 0 size
	stats = cache.Stats()
	if stats.Size != 0 {
		t.Errorf("Stats.Size after Clear = %d; want 0", stats.Size)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.MaxSize != 100 {
		t.Errorf("DefaultConfig.MaxSize = %d; want 100", config.MaxSize)
	}
	if config.TTL != 0 {
		t.Errorf("DefaultConfig.TTL = %v; want 0", config.TTL)
	}
	if config.OnEvict != nil {
		t.Error("DefaultConfig.OnEvict should be nil")
	}
}

func TestLRUCache_UnlimitedSize(t *testing.T) {
	config := Config{
		MaxSize: 0, // Unlimited
		TTL:     0,
	}
	cache := NewLRUCache[string, int](config)

	// Add many entries
	for i := 0; i < 1000; i++ {
		cache.Put(fmt.Sprintf("%c%d", rune('a'+i%26), i), i)
	}

	// All should be present (no eviction)
	if len := cache.Len(); len != 1000 {
		t.Errorf("Len() = %d; want 1000", len)
	}
}

// TestNewLRUCache_NegativeMaxSize tests NewLRUCache with negative MaxSize.
func TestNewLRUCache_NegativeMaxSize(t *testing.T) {
	config := Config{
		MaxSize: -1,
		TTL:     0,
	}
	cache := NewLRUCache[string, int](config)

	// Add many entries - should not evict (MaxSize normalized to 0 = unlimited)
	for i := 0; i < 100; i++ {
		cache.Put(fmt.Sprintf("key%d", i), i)
	}

	if len := cache.Len(); len != 100 {
		t.Errorf("Len() = %d; want 100", len)
	}
}

// TestLRUCache_UpdateWithTTL tests updating an entry with TTL.
func TestLRUCache_UpdateWithTTL(t *testing.T) {
	config := Config{
		MaxSize: 10,
		TTL:     time.Hour, // Long TTL so it won't expire during test
	}
	cache := NewLRUCache[string, int](config)

	// Add entry
	cache.Put("a", 1)

	// Update entry (should refresh expiration time)
	cache.Put("a", 2)

	if v, ok := cache.Get("a"); !ok || v != 2 {
		t.Errorf("Get(a) = %d, %v; want 2, true", v, ok)
	}
}

// TestLRUCache_RemoveNonexistent tests removing a non-existent key.
func TestLRUCache_RemoveNonexistent(t *testing.T) {
	config := Config{
		MaxSize: 10,
		TTL:     0,
	}
	cache := NewLRUCache[string, int](config)

	cache.Put("a", 1)

	// Remove non-existent key - should not panic
	cache.Remove("nonexistent")

	// Original entry should still exist
	if v, ok := cache.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v; want 1, true after removing nonexistent key", v, ok)
	}
}

func BenchmarkLRUCache_Put(b *testing.B) {
	config := Config{
		MaxSize: 100,
		TTL:     0,
	}
	cache := NewLRUCache[int, int](config)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Put(i, i)
	}
}

func BenchmarkLRUCache_Get(b *testing.B) {
	config := Config{
		MaxSize: 100,
		TTL:     0,
	}
	cache := NewLRUCache[int, int](config)

	// Populate cache
	for i := 0; i < 100; i++ {
		cache.Put(i, i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Get(i % 100)
	}
}

func BenchmarkLRUCache_PutGet(b *testing.B) {
	config := Config{
		MaxSize: 100,
		TTL:     0,
	}
	cache := NewLRUCache[int, int](config)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Put(i, i)
		cache.Get(i)
	}
}
