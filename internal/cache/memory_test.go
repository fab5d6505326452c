package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestMemoryStore_TTL(t *testing.T) {
	clock := newFakeClock()
	c := NewMemoryStore(DefaultTTL, clock.Now)

	ctx := context.Background()
	key := "relay:correct:python:3:v2:abc"

	if err := c.Put(ctx, key, "print(1)"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, hit, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !hit {
		t.Fatalf("expected hit immediately after Put")
	}
	if got.Payload != "print(1)" || !got.CreatedAt.Equal(clock.Now()) {
		t.Fatalf("unexpected entry: %#v", got)
	}

	// exactly at the TTL the entry is still valid
	clock.Advance(DefaultTTL)
	if _, hit, _ := c.Get(ctx, key); !hit {
		t.Fatalf("expected hit at createdAt+TTL")
	}

	clock.Advance(time.Millisecond)
	_, hit, err = c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after TTL failed: %v", err)
	}
	if hit {
		t.Fatalf("expected miss at createdAt+TTL+1ms")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry should be evicted on lookup, len=%d", c.Len())
	}

	if err := c.Put(ctx, key, "print(2)"); err != nil {
		t.Fatalf("re-Put failed: %v", err)
	}
	got, hit, _ = c.Get(ctx, key)
	if !hit || got.Payload != "print(2)" {
		t.Fatalf("expected re-put entry, got hit=%v %#v", hit, got)
	}
}

func TestMemoryStore_LastWriteWins(t *testing.T) {
	c := NewMemoryStore(time.Hour, nil)
	ctx := context.Background()

	_ = c.Put(ctx, "k", "first")
	_ = c.Put(ctx, "k", "second")

	got, hit, _ := c.Get(ctx, "k")
	if !hit || got.Payload != "second" {
		t.Fatalf("expected last write to win, got %#v", got)
	}
}

func TestMemoryStore_ConcurrentDistinctKeys(t *testing.T) {
	c := NewMemoryStore(time.Hour, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i)
			if err := c.Put(ctx, key, key+"-payload"); err != nil {
				t.Errorf("Put %s: %v", key, err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("k%d", i)
		got, hit, _ := c.Get(ctx, key)
		if !hit || got.Payload != key+"-payload" {
			t.Fatalf("key %s clobbered: %#v", key, got)
		}
	}
}

func TestMemoryStore_EmptyKey(t *testing.T) {
	c := NewMemoryStore(time.Hour, nil)
	if err := c.Put(context.Background(), "", "x"); err != ErrInvalidKey {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestMemoryStore_ClearAndStats(t *testing.T) {
	clock := newFakeClock()
	c := NewMemoryStore(time.Hour, clock.Now)
	ctx := context.Background()

	_ = c.Put(ctx, "a", "12345")
	clock.Advance(time.Minute)
	_ = c.Put(ctx, "b", "123")

	st, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Entries != 2 || st.TotalBytes != 8 {
		t.Fatalf("unexpected stats: %#v", st)
	}
	if !st.Newest.After(st.Oldest) {
		t.Fatalf("expected newest after oldest: %#v", st)
	}

	n, err := c.Clear(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Clear = %d, %v", n, err)
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after Clear")
	}
}
