// Package pending holds recognition batches between preview and confirmation.
//
// Batches live in a size-bounded LRU with a TTL: an unconfirmed preview
// expires instead of accumulating forever.
package pending

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"

	"pantry/internal/core"
)

// Batch is a recognized set of items awaiting confirmation.
type Batch struct {
	ID        string                `json:"id"`
	Items     []core.RecognizedItem `json:"items"`
	Created   []core.Category       `json:"createdCategories"`
	Dropped   int                   `json:"dropped"`
	CreatedAt time.Time             `json:"createdAt"`
}

type entry struct {
	batch     Batch
	expiresAt time.Time
}

// Store is an LRU of batches with TTL expiry. Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	order   *list.List
	now     func() time.Time
}

func NewStore(maxSize int, ttl time.Duration) *Store {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Store{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

// Put stores b under a fresh ID and returns the stored batch.
func (s *Store) Put(b Batch) Batch {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	b.ID = uuid.NewString()
	b.CreatedAt = now

	elem := s.order.PushFront(&entry{batch: b, expiresAt: now.Add(s.ttl)})
	s.items[b.ID] = elem

	for s.order.Len() > s.maxSize {
		s.remove(s.order.Back())
	}
	return b
}

// Get returns the batch if present and not expired.
func (s *Store) Get(id string) (Batch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[id]
	if !ok {
		return Batch{}, false
	}
	e := elem.Value.(*entry)
	if s.now().After(e.expiresAt) {
		s.remove(elem)
		return Batch{}, false
	}
	s.order.MoveToFront(elem)
	return e.batch, true
}

// Take returns the batch and removes it in one step. Of two concurrent
// calls for the same ID only one gets the batch.
func (s *Store) Take(id string) (Batch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[id]
	if !ok {
		return Batch{}, false
	}
	e := elem.Value.(*entry)
	s.remove(elem)
	if s.now().After(e.expiresAt) {
		return Batch{}, false
	}
	return e.batch, true
}

// Restore puts a taken batch back under its own ID with a fresh TTL.
func (s *Store) Restore(b Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[b.ID]; ok {
		s.remove(elem)
	}
	s.items[b.ID] = s.order.PushFront(&entry{batch: b, expiresAt: s.now().Add(s.ttl)})
	for s.order.Len() > s.maxSize {
		s.remove(s.order.Back())
	}
}

func (s *Store) remove(elem *list.Element) {
	e := elem.Value.(*entry)
	delete(s.items, e.batch.ID)
	s.order.Remove(elem)
}

// CleanExpired removes expired batches and returns how many were dropped.
func (s *Store) CleanExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var expired []*list.Element
	for elem := s.order.Front(); elem != nil; elem = elem.Next() {
		if now.After(elem.Value.(*entry).expiresAt) {
			expired = append(expired, elem)
		}
	}
	for _, elem := range expired {
		s.remove(elem)
	}
	return len(expired)
}

func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// StartCleanup runs CleanExpired every interval until stop is closed.
func (s *Store) StartCleanup(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.CleanExpired()
			case <-stop:
				return
			}
		}
	}()
}
