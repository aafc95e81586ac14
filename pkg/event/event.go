// Package event provides a small in-process event dispatcher.
package event

import (
	"sync"
)

// Handler is a function that receives an event payload.
type Handler func(payload any)

type listener struct {
	id uint64
	h  Handler
}

// Bus routes named events to their listeners.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string][]listener
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{handlers: map[string][]listener{}}
}

// Listen registers handler for event and returns a func that removes it.
func (b *Bus) Listen(event string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[event] = append(b.handlers[event], listener{id: id, h: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			ls := b.handlers[event]
			for i, l := range ls {
				if l.id == id {
					b.handlers[event] = append(ls[:i:i], ls[i+1:]...)
					break
				}
			}
		})
	}
}

func (b *Bus) snapshot(event string) []listener {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ls := make([]listener, len(b.handlers[event]))
	copy(ls, b.handlers[event])
	return ls
}

// Fire dispatches an event synchronously to all registered listeners.
func (b *Bus) Fire(event string, payload any) {
	for _, l := range b.snapshot(event) {
		l.h(payload)
	}
}

// FireAsync dispatches the event to all listeners concurrently.
// It returns immediately without waiting for handlers to complete.
func (b *Bus) FireAsync(event string, payload any) {
	for _, l := range b.snapshot(event) {
		go l.h(payload)
	}
}

// Flush removes all listeners (useful in tests).
func (b *Bus) Flush() {
	b.mu.Lock()
	b.handlers = map[string][]listener{}
	b.mu.Unlock()
}

var defaultBus = NewBus()

// Default returns the process-wide Bus.
func Default() *Bus { return defaultBus }
