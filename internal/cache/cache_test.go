package cache

import (
	"sync"
	"testing"
	"time"
)

func TestGetSet(t *testing.T) {
	c := New[string, []string](time.Minute)

	if _, ok := c.Get("courses"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Set("courses", []string{"Matemática I"})
	got, ok := c.Get("courses")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if len(got) != 1 || got[0] != "Matemática I" {
		t.Errorf("unexpected value: %v", got)
	}
}

func TestExpiry(t *testing.T) {
	c := New[string, int](60 * time.Second)

	base := time.Now()
	current := base
	c.SetClock(func() time.Time { return current })

	c.Set("k", 7)

	current = base.Add(59 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Error("entry should still be fresh at 59s")
	}

	current = base.Add(61 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("entry should have expired at 61s")
	}
	if c.Len() != 0 {
		t.Error("expired entry should be removed on read")
	}
}

func TestRefreshResetsExpiry(t *testing.T) {
	c := New[string, int](60 * time.Second)

	base := time.Now()
	current := base
	c.SetClock(func() time.Time { return current })

	c.Set("k", 1)
	current = base.Add(50 * time.Second)
	c.Set("k", 2)

	current = base.Add(100 * time.Second)
	got, ok := c.Get("k")
	if !ok {
		t.Fatal("refreshed entry should still be fresh")
	}
	if got != 2 {
		t.Errorf("expected refreshed value 2, got %d", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int, int](time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			c.Set(n%10, n)
		}(i)
		go func(n int) {
			defer wg.Done()
			c.Get(n % 10)
		}(i)
	}
	wg.Wait()
}
