package gps

import (
	"sort"
	"sync"
)

// Broadcaster fans each published update out to every subscriber, in
// subscription order. It is safe for concurrent use.
type Broadcaster struct {
	mu          sync.RWMutex
	nextID      uint64
	subscribers map[uint64]Subscriber
}

// NewBroadcaster creates a broadcaster with no subscribers
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]Subscriber),
	}
}

// Subscribe registers fn. Calling the returned function more than once is
// harmless.
func (b *Broadcaster) Subscribe(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subscribers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subscribers, id)
		})
	}
}

// Publish delivers u to the current subscribers. Subscribers run outside
// the broadcaster's lock, so they may subscribe or unsubscribe.
func (b *Broadcaster) Publish(u Update) {
	for _, fn := range b.snapshot() {
		fn(u)
	}
}

// Subscribers returns the number of subscribers
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *Broadcaster) snapshot() []Subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]uint64, 0, len(b.subscribers))
	for id := range b.subscribers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	subs := make([]Subscriber, len(ids))
	for i, id := range ids {
		subs[i] = b.subscribers[id]
	}
	return subs
}
