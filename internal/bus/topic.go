package bus

import "sync"

// Topic is a typed fan-out channel for a single event type. Publish never
// blocks; a subscriber whose buffer is full misses the value.
type Topic[T any] struct {
	mu     sync.RWMutex
	subs   map[int]chan T
	next   int
	onDrop func(T)
}

// NewTopic creates an empty topic. onDrop may be nil.
func NewTopic[T any](onDrop func(T)) *Topic[T] {
	return &Topic[T]{subs: make(map[int]chan T), onDrop: onDrop}
}

// Publish delivers v to every subscriber.
func (t *Topic[T]) Publish(v T) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, ch := range t.subs {
		select {
		case ch <- v:
		default:
			if t.onDrop != nil {
				t.onDrop(v)
			}
		}
	}
}

// Subscribe registers a buffered receiver. The returned function cancels it.
func (t *Topic[T]) Subscribe(bufSize int) (<-chan T, func()) {
	ch := make(chan T, bufSize)
	t.mu.Lock()
	id := t.next
	t.next++
	t.subs[id] = ch
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, id)
			t.mu.Unlock()
		})
	}
}
