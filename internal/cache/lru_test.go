package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestLRUCacheGetSet(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get() on empty cache should miss")
	}

	c.Set("a", "alpha")
	got, ok := c.Get("a")
	if !ok || got != "alpha" {
		t.Errorf("Get(a) = %q, %v; want alpha, true", got, ok)
	}

	c.Set("a", "beta")
	got, _ = c.Get("a")
	if got != "beta" {
		t.Errorf("Get(a) after overwrite = %q, want beta", got)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[int](3, time.Minute)

	for i := 0; i < 4; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}

	if c.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", c.Size())
	}
	// k0 was the least recently used.
	if _, ok := c.Get("k0"); ok {
		t.Error("k0 should have been evicted")
	}
	if _, ok := c.Get("k3"); !ok {
		t.Error("k3 should still be present")
	}
}

func TestLRUCacheRecentUseSurvivesEviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // refresh a
	c.Set("c", 3)

	if _, ok := c.Get("a"); !ok {
		t.Error("recently used key should survive eviction")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("least recently used key should be evicted")
	}
}

func TestLRUCacheTTL(t *testing.T) {
	c := NewLRUCache[string](10, 10*time.Millisecond)

	c.Set("a", "alpha")
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Error("expired entry should miss")
	}
}

func TestLRUCacheDelete(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)

	c.Set("a", "alpha")
	c.Delete("a")
	c.Delete("a") // idempotent

	if _, ok := c.Get("a"); ok {
		t.Error("deleted entry should miss")
	}
}

func TestLRUCacheCleanExpired(t *testing.T) {
	c := NewLRUCache[string](10, 10*time.Millisecond)

	c.Set("a", "alpha")
	c.Set("b", "beta")
	time.Sleep(20 * time.Millisecond)
	c.Set("c", "gamma")

	removed := c.CleanExpired()
	if removed != 2 {
		t.Errorf("CleanExpired() = %d, want 2", removed)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestFactoryFallsBackToMemory(t *testing.T) {
	c := New[string](BackendRedis, nil, "test:", 10, time.Minute)
	if _, ok := c.(*LRUCache[string]); !ok {
		t.Errorf("New() with nil redis client = %T, want *LRUCache", c)
	}

	c = New[string](BackendMemory, nil, "test:", 10, time.Minute)
	if _, ok := c.(*LRUCache[string]); !ok {
		t.Errorf("New(memory) = %T, want *LRUCache", c)
	}
}
