package inventory

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrSlotOutOfRange is returned when a slot index is outside a container.
var ErrSlotOutOfRange = errors.New("inventory: slot out of range")

// ItemStack is the content of a single slot. The zero value is an empty slot.
type ItemStack struct {
	ItemID        ItemType `json:"itemId"`
	Quantity      int      `json:"quantity"`
	Durability    float64  `json:"durability,omitempty"`
	MaxDurability float64  `json:"maxDurability,omitempty"`
}

// IsEmpty reports whether the stack holds nothing.
func (s ItemStack) IsEmpty() bool {
	return s.ItemID == "" || s.Quantity <= 0
}

// ChangeEvent describes a single mutation of a container.
type ChangeEvent struct {
	Slot   int
	Before ItemStack
	After  ItemStack
}

// Items is any slot sequence that can be scanned in a stable order.
type Items interface {
	ForEach(fn func(slot int, stack ItemStack))
}

// Container is a fixed capacity list of slots. Reads and writes are safe from
// any goroutine; change listeners run synchronously on the mutating goroutine
// after the lock is released.
type Container struct {
	mu    sync.RWMutex
	slots []ItemStack

	listenersMu  sync.Mutex
	listeners    map[uint64]func(ChangeEvent)
	nextListener uint64
}

func NewContainer(capacity int) *Container {
	if capacity < 0 {
		capacity = 0
	}
	return &Container{
		slots:     make([]ItemStack, capacity),
		listeners: make(map[uint64]func(ChangeEvent)),
	}
}

func (c *Container) Capacity() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.slots)
}

// Slot returns the stack in slot i. ok is false for empty or out of range
// slots.
func (c *Container) Slot(i int) (ItemStack, bool) {
	if c == nil {
		return ItemStack{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i < 0 || i >= len(c.slots) {
		return ItemStack{}, false
	}
	stack := c.slots[i]
	if stack.IsEmpty() {
		return ItemStack{}, false
	}
	return stack, true
}

// ForEach visits every non-empty slot in index order on a copy of the slots.
func (c *Container) ForEach(fn func(slot int, stack ItemStack)) {
	if c == nil || fn == nil {
		return
	}
	c.mu.RLock()
	snapshot := make([]ItemStack, len(c.slots))
	copy(snapshot, c.slots)
	c.mu.RUnlock()
	for i, stack := range snapshot {
		if stack.IsEmpty() {
			continue
		}
		fn(i, stack)
	}
}

// Set replaces the content of slot i.
func (c *Container) Set(i int, stack ItemStack) error {
	return c.Update(i, func(slot *ItemStack) error {
		*slot = stack
		return nil
	})
}

// Clear empties slot i.
func (c *Container) Clear(i int) error {
	return c.Set(i, ItemStack{})
}

// Update applies fn to a copy of slot i. A failing fn leaves the slot
// untouched and listeners are only notified when the slot actually changed.
func (c *Container) Update(i int, fn func(*ItemStack) error) error {
	if c == nil {
		return fmt.Errorf("%w: nil container", ErrSlotOutOfRange)
	}
	c.mu.Lock()
	if i < 0 || i >= len(c.slots) {
		size := len(c.slots)
		c.mu.Unlock()
		return fmt.Errorf("%w: %d (capacity %d)", ErrSlotOutOfRange, i, size)
	}
	before := c.slots[i]
	next := before
	if fn != nil {
		if err := fn(&next); err != nil {
			c.mu.Unlock()
			return err
		}
	}
	if next.Quantity <= 0 {
		next = ItemStack{}
	}
	if next == before {
		c.mu.Unlock()
		return nil
	}
	c.slots[i] = next
	c.mu.Unlock()

	c.notify(ChangeEvent{Slot: i, Before: before, After: next})
	return nil
}

// Touch notifies listeners about slot i without changing it. Selection
// changes on the hotbar use it.
func (c *Container) Touch(i int) {
	stack, _ := c.Slot(i)
	c.notify(ChangeEvent{Slot: i, Before: stack, After: stack})
}

// Registration is a live change subscription. Unregister must be called
// explicitly; it is safe to call more than once.
type Registration struct {
	once       sync.Once
	unregister func()
}

func (r *Registration) Unregister() {
	if r == nil {
		return
	}
	r.once.Do(func() {
		if r.unregister != nil {
			r.unregister()
		}
	})
}

// RegisterChangeEvent subscribes fn to every mutation of the container.
func (c *Container) RegisterChangeEvent(fn func(ChangeEvent)) *Registration {
	if c == nil || fn == nil {
		return nil
	}
	c.listenersMu.Lock()
	c.nextListener++
	id := c.nextListener
	c.listeners[id] = fn
	c.listenersMu.Unlock()
	return &Registration{unregister: func() {
		c.listenersMu.Lock()
		delete(c.listeners, id)
		c.listenersMu.Unlock()
	}}
}

// ListenerCount reports the number of live registrations.
func (c *Container) ListenerCount() int {
	if c == nil {
		return 0
	}
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	return len(c.listeners)
}

func (c *Container) notify(event ChangeEvent) {
	c.listenersMu.Lock()
	if len(c.listeners) == 0 {
		c.listenersMu.Unlock()
		return
	}
	ids := make([]uint64, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	listeners := make([]func(ChangeEvent), 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, c.listeners[id])
	}
	c.listenersMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}
