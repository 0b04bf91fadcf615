package runner_test

import (
	"sync"
	"testing"
	"time"

	"github.com/torosent/octail/internal/runner"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestBackoffWaitsWithinRandomizedBounds(t *testing.T) {
	bounds := []struct{ lo, hi time.Duration }{
		{250 * time.Millisecond, 750 * time.Millisecond},
		{500 * time.Millisecond, 1500 * time.Millisecond},
		{1000 * time.Millisecond, 3000 * time.Millisecond},
	}

	for trial := 0; trial < 200; trial++ {
		cfg := runner.DefaultBackoffConfig()
		cfg.Clock = newFakeClock()
		b := runner.NewBackoff(cfg)
		for step, want := range bounds {
			wait, ok := b.Next()
			if !ok {
				t.Fatalf("trial %d step %d: Next() exhausted early", trial, step)
			}
			if wait < want.lo || wait > want.hi {
				t.Fatalf("trial %d step %d: wait = %s, want within [%s, %s]", trial, step, wait, want.lo, want.hi)
			}
		}
	}
}

func TestBackoffWithoutJitterDoublesAndCaps(t *testing.T) {
	b := runner.NewBackoff(runner.BackoffConfig{
		InitialInterval:     100 * time.Millisecond,
		Multiplier:          2,
		RandomizationFactor: 0,
		MaxInterval:         300 * time.Millisecond,
		MaxElapsedTime:      -1,
		Clock:               newFakeClock(),
	})

	want := []time.Duration{100, 200, 300, 300}
	for i, w := range want {
		got, ok := b.Next()
		if !ok {
			t.Fatalf("step %d: Next() exhausted with no budget", i)
		}
		if got != w*time.Millisecond {
			t.Errorf("step %d: wait = %s, want %s", i, got, w*time.Millisecond)
		}
	}
}

func TestBackoffExhaustsWhenNextWaitWouldExceedBudget(t *testing.T) {
	clock := newFakeClock()
	b := runner.NewBackoff(runner.BackoffConfig{
		InitialInterval:     500 * time.Millisecond,
		Multiplier:          2,
		RandomizationFactor: 0,
		MaxElapsedTime:      time.Second,
		Clock:               clock,
	})

	wait, ok := b.Next()
	if !ok || wait != 500*time.Millisecond {
		t.Fatalf("first Next() = %s, %v; want 500ms, true", wait, ok)
	}
	clock.Advance(wait)

	if _, ok := b.Next(); ok {
		t.Fatal("second Next() ok = true, want exhausted (500ms elapsed + 1s wait > 1s)")
	}
}

func TestBackoffElapsedNeverDecreases(t *testing.T) {
	clock := newFakeClock()
	cfg := runner.DefaultBackoffConfig()
	cfg.Clock = clock
	b := runner.NewBackoff(cfg)

	prev := b.Elapsed()
	for i := 0; i < 5; i++ {
		wait, ok := b.Next()
		if !ok {
			break
		}
		clock.Advance(wait)
		if got := b.Elapsed(); got < prev {
			t.Fatalf("Elapsed() went from %s to %s", prev, got)
		} else {
			prev = got
		}
	}
	if prev == 0 {
		t.Error("Elapsed() stayed at zero while the clock advanced")
	}
}

func TestNewLimiter(t *testing.T) {
	if runner.NewLimiter(0, 4) != nil {
		t.Error("NewLimiter(0) should disable pacing")
	}
	l := runner.NewLimiter(2.5, 8)
	if l == nil {
		t.Fatal("NewLimiter(2.5) = nil")
	}
	if float64(l.Limit()) != 2.5 {
		t.Errorf("Limit() = %v, want 2.5", l.Limit())
	}
	if l.Burst() != 3 {
		t.Errorf("Burst() = %d, want 3 (capped at ceil(rate))", l.Burst())
	}
	if b := runner.NewLimiter(100, 4).Burst(); b != 4 {
		t.Errorf("Burst() = %d, want one per worker", b)
	}
}
