package cache

import (
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/chbarnhouse/ha-finance-assistant/internal/log"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestLRUCache_TTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](10, time.Minute).WithClock(clock.now)

	c.Set("sensor.a", "1.00")
	if v, ok := c.Get("sensor.a"); !ok || v != "1.00" {
		t.Fatalf("expected hit with 1.00, got %q %v", v, ok)
	}

	clock.advance(59 * time.Second)
	if _, ok := c.Get("sensor.a"); !ok {
		t.Error("entry should still be live before the TTL")
	}

	clock.advance(time.Second)
	if _, ok := c.Get("sensor.a"); ok {
		t.Error("entry should expire at the TTL")
	}
	if c.Size() != 0 {
		t.Errorf("expired entry should be removed on read, size %d", c.Size())
	}
}

func TestLRUCache_SetRestartsTTL(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := NewLRUCache[int](10, time.Minute).WithClock(clock.now)

	c.Set("k", 1)
	clock.advance(50 * time.Second)
	c.Set("k", 2)
	clock.advance(50 * time.Second)

	if v, ok := c.Get("k"); !ok || v != 2 {
		t.Errorf("expected refreshed entry 2, got %d %v", v, ok)
	}
}

func TestLRUCache_Eviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("least recently used entry should be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("recently read entry should survive")
	}
	if c.Size() != 2 {
		t.Errorf("expected size 2, got %d", c.Size())
	}
}

func TestLRUCache_Unbounded(t *testing.T) {
	c := NewLRUCache[int](0, time.Hour)
	for i := 0; i < 100; i++ {
		c.Set(string(rune('a'+i%26))+string(rune('0'+i/26)), i)
	}
	if c.Size() != 100 {
		t.Errorf("expected 100 entries, got %d", c.Size())
	}
}

func TestLRUCache_CleanExpired(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := NewLRUCache[int](10, time.Minute).WithClock(clock.now)
	c.Set("old", 1)
	clock.advance(30 * time.Second)
	c.Set("new", 2)
	clock.advance(40 * time.Second)

	if n := c.CleanExpired(); n != 1 {
		t.Errorf("expected 1 removed, got %d", n)
	}
	if _, ok := c.Get("new"); !ok {
		t.Error("live entry removed")
	}
}

type countingCleaner struct{ calls atomic.Int32 }

func (c *countingCleaner) CleanExpired() int {
	c.calls.Add(1)
	return 1
}

func TestManager_Lifecycle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	m := NewManager(log.Discard())
	cleaner := &countingCleaner{}
	m.Register(cleaner)
	m.StartCleanup(5 * time.Millisecond)
	m.StartCleanup(5 * time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for cleaner.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	m.Stop()
	m.Stop()

	if cleaner.calls.Load() == 0 {
		t.Error("cleanup never ran")
	}
}

func TestManager_CleansRegisteredLRU(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	lru := NewLRUCache[string](10, time.Minute).WithClock(clock.now)
	lru.Set("sensor.a", "1.00")
	lru.Set("sensor.b", "2.00")

	m := NewManager(log.Discard())
	var c Cleaner = lru
	m.Register(c)

	clock.advance(2 * time.Minute)
	if n := m.CleanNow(); n != 2 {
		t.Errorf("expected 2 removed, got %d", n)
	}
	if lru.Size() != 0 {
		t.Errorf("expected empty cache, got %d", lru.Size())
	}
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := NewManager(log.Discard())
	m.Stop()
	if n := m.CleanNow(); n != 0 {
		t.Errorf("expected nothing to clean, got %d", n)
	}
}
