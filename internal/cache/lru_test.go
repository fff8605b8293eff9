package cache

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clock.now
	return c, clock
}

func TestLRUCache_SizeEviction(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	var evicted []string
	c.OnEvict(func(key, _ string) { evicted = append(evicted, key) })

	c.Set("a", "1")
	c.Set("b", "2")
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should be cached")
	}
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted as least recently used")
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Errorf("evicted = %v, want [b]", evicted)
	}
}

func TestLRUCache_TTL(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")

	clock.advance(30 * time.Second)
	c.Set("b", "2b")
	clock.advance(45 * time.Second)

	if _, ok := c.Get("a"); ok {
		t.Error("a should have expired")
	}
	if v, ok := c.Get("b"); !ok || v != "2b" {
		t.Errorf("Get(b) = %q, %v; want 2b, true", v, ok)
	}

	clock.advance(time.Minute)
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
}

func TestLRUCache_GetOrCreate(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)
	calls := 0
	create := func() string { calls++; return "view" }

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v := c.GetOrCreate("owner-1", create); v != "view" {
				t.Errorf("GetOrCreate() = %q", v)
			}
		}()
	}
	wg.Wait()
	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}

	clock.advance(2 * time.Minute)
	c.GetOrCreate("owner-1", create)
	if calls != 2 {
		t.Errorf("create called %d times after expiry, want 2", calls)
	}
}

func TestManager_CleanNow(t *testing.T) {
	c, clock := newTestCache(10, time.Second)
	c.Set("a", "1")
	clock.advance(2 * time.Second)

	m := NewManager()
	m.Register(c)
	if n := m.CleanNow(); n != 1 {
		t.Errorf("CleanNow() = %d, want 1", n)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

func TestManager_StopWithoutStart(t *testing.T) {
	done := make(chan struct{})
	go func() {
		NewManager().Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked without a running cleanup")
	}
}
