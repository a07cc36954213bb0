package pending

import (
	"sync"
	"testing"
	"time"

	"pantry/internal/core"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(size int, ttl time.Duration) (*Store, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := NewStore(size, ttl)
	s.now = clock.Now
	return s, clock
}

func TestStore_PutGetTake(t *testing.T) {
	s, _ := newTestStore(10, time.Minute)
	b := s.Put(Batch{Items: []core.RecognizedItem{{Name: "banana", Amount: "1"}}})
	if b.ID == "" {
		t.Fatal("Put() did not assign an ID")
	}

	got, ok := s.Get(b.ID)
	if !ok || len(got.Items) != 1 {
		t.Fatalf("Get() = %+v, %v", got, ok)
	}

	taken, ok := s.Take(b.ID)
	if !ok || taken.ID != b.ID {
		t.Fatalf("Take() = %+v, %v", taken, ok)
	}
	if _, ok := s.Get(b.ID); ok {
		t.Fatal("Get() found a taken batch")
	}
	if _, ok := s.Take(b.ID); ok {
		t.Fatal("second Take() should miss")
	}
	if s.Size() != 0 {
		t.Fatalf("Size() = %d after take, want 0", s.Size())
	}
}

func TestStore_TakeOnceUnderConcurrency(t *testing.T) {
	s, _ := newTestStore(10, time.Minute)
	b := s.Put(Batch{})

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		hits int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := s.Take(b.ID); ok {
				mu.Lock()
				hits++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if hits != 1 {
		t.Errorf("Take() succeeded %d times, want 1", hits)
	}
}

func TestStore_RestoreAndExpiredTake(t *testing.T) {
	s, clock := newTestStore(10, time.Minute)
	b := s.Put(Batch{Items: []core.RecognizedItem{{Name: "rice"}, {Name: "beans"}}})

	taken, _ := s.Take(b.ID)
	taken.Items = taken.Items[1:]
	s.Restore(taken)

	got, ok := s.Get(b.ID)
	if !ok || len(got.Items) != 1 || got.Items[0].Name != "beans" {
		t.Fatalf("Get() after Restore = %+v, %v", got, ok)
	}

	clock.Advance(2 * time.Minute)
	if _, ok := s.Take(b.ID); ok {
		t.Error("Take() returned an expired batch")
	}
	if s.Size() != 0 {
		t.Errorf("Size() = %d, want expired batch dropped", s.Size())
	}
}

func TestStore_Expiry(t *testing.T) {
	s, clock := newTestStore(10, time.Minute)
	b := s.Put(Batch{})
	s.Put(Batch{})

	clock.Advance(2 * time.Minute)
	if _, ok := s.Get(b.ID); ok {
		t.Fatal("expired batch returned")
	}
	if n := s.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
	if s.Size() != 0 {
		t.Errorf("Size() = %d, want 0", s.Size())
	}
}

func TestStore_EvictsLeastRecentlyUsed(t *testing.T) {
	s, _ := newTestStore(2, time.Hour)
	a := s.Put(Batch{})
	b := s.Put(Batch{})

	// Touch a so b becomes the eviction candidate.
	s.Get(a.ID)
	c := s.Put(Batch{})

	if _, ok := s.Get(b.ID); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := s.Get(a.ID); !ok {
		t.Error("a should survive")
	}
	if _, ok := s.Get(c.ID); !ok {
		t.Error("c should survive")
	}
}
