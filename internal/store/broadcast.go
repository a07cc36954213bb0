package store

import (
	"sync"

	"pantry/internal/core"
)

// Broadcaster fans category snapshots out to subscribers.
// Adapters embed it to implement Subscribe.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func([]core.Category)
}

// Add registers fn and returns its unsubscribe function.
func (b *Broadcaster) Add(fn func([]core.Category)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]func([]core.Category))
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish calls every subscriber with its own copy of cats.
// Subscribers run outside the lock and may unsubscribe from inside the callback.
func (b *Broadcaster) Publish(cats []core.Category) {
	b.mu.Lock()
	fns := make([]func([]core.Category), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(append([]core.Category(nil), cats...))
	}
}

// Len returns the number of active subscribers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
