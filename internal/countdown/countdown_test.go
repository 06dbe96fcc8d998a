package countdown

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cinehall/seatlink/internal/resume"
)

func newCache(t *testing.T) *resume.Store {
	t.Helper()
	s, err := resume.Open(filepath.Join(t.TempDir(), "resume.json"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	return s
}

func recvTick(t *testing.T, ch <-chan int, within time.Duration) int {
	t.Helper()
	select {
	case n := <-ch:
		return n
	case <-time.After(within):
		t.Fatalf("timed out waiting for tick")
		return 0 // unreachable
	}
}

func TestTick_PersistsAndPublishes(t *testing.T) {
	cache := newCache(t)
	c := New(nil, cache, nil)

	out := make(chan int, 4)
	c.Subscribe("ui", out)

	c.Tick(120)
	if got := recvTick(t, out, 100*time.Millisecond); got != 120 {
		t.Fatalf("want 120, got %d", got)
	}
	if v, _ := cache.Get(resume.KeyCountdown); v != "120" {
		t.Fatalf("countdown not persisted, got %q", v)
	}

	n, running := c.Current()
	if n != 120 || !running {
		t.Fatalf("want running at 120, got %d running=%v", n, running)
	}
}

func TestTick_ExpiryClearsSelectionAndFiresOnce(t *testing.T) {
	cache := newCache(t)
	if err := cache.Set(resume.KeySelection, "101,102"); err != nil {
		t.Fatal(err)
	}

	fired := 0
	c := New(nil, cache, func() { fired++ })

	c.Tick(1)
	c.Tick(0)
	if fired != 1 {
		t.Fatalf("expiry callback: want 1 call, got %d", fired)
	}
	if _, ok := cache.Get(resume.KeySelection); ok {
		t.Fatalf("persisted selection must be cleared on expiry")
	}

	// The stream is stopped: further zeros do nothing until a positive tick.
	c.Tick(0)
	if fired != 1 {
		t.Fatalf("expiry must not refire while stopped, got %d", fired)
	}
	if _, running := c.Current(); running {
		t.Fatalf("countdown must be stopped after expiry")
	}

	c.Tick(60)
	if _, running := c.Current(); !running {
		t.Fatalf("positive tick must restart the stream")
	}
}

func TestResume_RestoresPersistedValue(t *testing.T) {
	cache := newCache(t)
	c := New(nil, cache, nil)
	c.Tick(42)

	again := New(nil, cache, nil)
	n, ok := again.Resume()
	if !ok || n != 42 {
		t.Fatalf("want resumed 42, got %d ok=%v", n, ok)
	}
}

func TestStop_NoExpiryPath(t *testing.T) {
	cache := newCache(t)
	if err := cache.Set(resume.KeySelection, "101"); err != nil {
		t.Fatal(err)
	}
	fired := false
	c := New(nil, cache, func() { fired = true })
	c.Tick(30)
	c.Stop()
	if fired {
		t.Fatalf("stop must not fire the expiry callback")
	}
	if _, ok := cache.Get(resume.KeySelection); !ok {
		t.Fatalf("stop must keep the persisted selection")
	}
}
