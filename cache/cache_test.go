package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetSetExpiry(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.Set("k", "v")
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("expected cached value, got %v %v", v, ok)
	}
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestSetWithTTLOverridesDefault(t *testing.T) {
	c := New(time.Hour)
	c.SetWithTTL("k", 1, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected custom TTL entry to expire")
	}
}

func TestGetOrFetchSingleFlight(t *testing.T) {
	c := New(time.Hour)
	var calls atomic.Int64
	release := make(chan struct{})

	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "fetched", nil
	}

	const n = 16
	var wg sync.WaitGroup
	results := make([]any, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrFetch(context.Background(), "k", fetch)
			if err != nil {
				t.Errorf("fetch %d: %v", i, err)
			}
			results[i] = v
		}(i)
	}
	// Let all goroutines queue behind the one in-flight fetch.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("expected exactly 1 upstream fetch, got %d", got)
	}
	for i, v := range results {
		if v != "fetched" {
			t.Errorf("caller %d got %v", i, v)
		}
	}
	if v, ok := c.Get("k"); !ok || v != "fetched" {
		t.Error("expected fetched value to be cached")
	}
}

func TestGetOrFetchErrorNotCached(t *testing.T) {
	c := New(time.Hour)
	var calls atomic.Int64
	boom := errors.New("boom")
	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, boom
	}
	if _, err := c.GetOrFetch(context.Background(), "k", fetch); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	// Error must not be cached; a second call fetches again.
	if _, err := c.GetOrFetch(context.Background(), "k", fetch); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 fetches, got %d", calls.Load())
	}
}

func TestCleanup(t *testing.T) {
	c := New(5 * time.Millisecond)
	c.Set("a", 1)
	c.Set("b", 2)
	time.Sleep(10 * time.Millisecond)
	if c.Size() != 2 {
		t.Fatalf("expected 2 raw entries before sweep, got %d", c.Size())
	}
	c.Cleanup()
	if c.Size() != 0 {
		t.Errorf("expected 0 entries after sweep, got %d", c.Size())
	}
}
