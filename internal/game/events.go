package game

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ReadyHandler runs once a player's client finished loading.
type ReadyHandler func(ctx context.Context, player *Player)

// DisconnectHandler runs after a player left the world.
type DisconnectHandler func(ctx context.Context, id uuid.UUID, reason string)

// EventBus fans player lifecycle events out to global listeners. Handlers run
// synchronously on the goroutine that raised the event, in registration
// order.
type EventBus struct {
	mu           sync.RWMutex
	next         uint64
	ready        map[uint64]ReadyHandler
	disconnected map[uint64]DisconnectHandler
}

func NewEventBus() *EventBus {
	return &EventBus{
		ready:        make(map[uint64]ReadyHandler),
		disconnected: make(map[uint64]DisconnectHandler),
	}
}

// Subscription removes a handler from the bus.
type Subscription struct {
	once   sync.Once
	cancel func()
}

func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

func (b *EventBus) OnReady(handler ReadyHandler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	id := b.next
	b.ready[id] = handler
	return &Subscription{cancel: func() {
		b.mu.Lock()
		delete(b.ready, id)
		b.mu.Unlock()
	}}
}

func (b *EventBus) OnDisconnect(handler DisconnectHandler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	id := b.next
	b.disconnected[id] = handler
	return &Subscription{cancel: func() {
		b.mu.Lock()
		delete(b.disconnected, id)
		b.mu.Unlock()
	}}
}

func (b *EventBus) emitReady(ctx context.Context, player *Player) {
	b.mu.RLock()
	handlers := make([]ReadyHandler, 0, len(b.ready))
	for _, id := range sortedKeys(b.ready) {
		handlers = append(handlers, b.ready[id])
	}
	b.mu.RUnlock()
	for _, handler := range handlers {
		handler(ctx, player)
	}
}

func (b *EventBus) emitDisconnect(ctx context.Context, id uuid.UUID, reason string) {
	b.mu.RLock()
	handlers := make([]DisconnectHandler, 0, len(b.disconnected))
	for _, key := range sortedKeys(b.disconnected) {
		handlers = append(handlers, b.disconnected[key])
	}
	b.mu.RUnlock()
	for _, handler := range handlers {
		handler(ctx, id, reason)
	}
}

func sortedKeys[V any](m map[uint64]V) []uint64 {
	keys := make([]uint64, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
