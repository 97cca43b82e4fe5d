package events

import (
	"context"
	"sync"
)

// MemoryBus is an in-process Publisher/Subscriber used with the memory
// ledger and in tests. Handlers run synchronously on the publishing goroutine.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]func(Event)
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{handlers: make(map[string][]func(Event))}
}

func (b *MemoryBus) Publish(ctx context.Context, stream string, event Event) error {
	b.mu.RLock()
	hs := append([]func(Event){}, b.handlers[stream]...)
	b.mu.RUnlock()
	for _, h := range hs {
		h(event)
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, stream string, handler func(Event)) error {
	b.mu.Lock()
	b.handlers[stream] = append(b.handlers[stream], handler)
	b.mu.Unlock()
	return nil
}
