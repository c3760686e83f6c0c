package cache

import (
	"testing"
	"time"

	"cfocopilot/internal/log"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *clock) {
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUEvictsOldest(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("a should be cached")
	}
	c.Set("c", "3") // evicts b, the least recently used
	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("a = %q ok=%v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d", c.Size())
	}
	if ev := c.Stats().Evictions; ev != 1 {
		t.Fatalf("evictions = %d", ev)
	}
}

func TestLRUWithoutTTLNeverExpires(t *testing.T) {
	c, clk := newTestCache(2, 0)
	c.Set("a", "1")
	clk.t = clk.t.Add(24 * 365 * time.Hour)
	if n := c.CleanExpired(); n != 0 {
		t.Fatalf("cleaned %d", n)
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("a should still be cached")
	}
}

func TestLRUExpiry(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	clk.t = clk.t.Add(30 * time.Second)
	c.Set("c", "3")
	clk.t = clk.t.Add(45 * time.Second)

	if _, ok := c.Get("a"); ok {
		t.Fatalf("a should be expired")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("cleaned %d, want 1 (b)", n)
	}
	if v, ok := c.Get("c"); !ok || v != "3" {
		t.Fatalf("c should survive")
	}
}

func TestLRUPurgeAndStats(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("a", "1")
	c.Set("a", "2")
	c.Get("a")
	c.Get("missing")
	st := c.Stats()
	if st.Size != 1 || st.Hits != 1 || st.Misses != 1 {
		t.Fatalf("stats = %+v", st)
	}
	if n := c.Purge(); n != 1 {
		t.Fatalf("purged %d", n)
	}
	if _, ok := c.Get("a"); ok {
		t.Fatalf("purge left entries behind")
	}
	c.Set("b", "1")
	c.Delete("b")
	if c.Size() != 0 {
		t.Fatalf("delete failed")
	}
}

func TestManagerCleanNow(t *testing.T) {
	c, clk := newTestCache(10, time.Second)
	c.Set("a", "1")
	clk.t = clk.t.Add(2 * time.Second)

	m := NewManager(log.Discard())
	m.Stop() // before Start is a no-op
	m.Register("answers", c)
	if n := m.CleanNow(); n != 1 {
		t.Fatalf("cleaned %d", n)
	}
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager(log.Discard())
	m.Start(time.Hour)
	if m.Running() {
		t.Fatalf("started with nothing registered")
	}

	c, _ := newTestCache(1, time.Minute)
	m.Register("answers", c)
	m.Start(0)
	if m.Running() {
		t.Fatalf("started with a zero interval")
	}
	m.Start(time.Hour)
	m.Start(time.Hour)
	if !m.Running() {
		t.Fatalf("janitor not running")
	}
	m.Stop()
	m.Stop()
	if m.Running() {
		t.Fatalf("janitor still running after Stop")
	}
}
