package hud

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry holds every tracked overlay in exactly one of two collections:
// visible or hidden. A single lock covers both so moves between them are
// atomic to every observer.
type Registry struct {
	mu      sync.RWMutex
	visible map[uuid.UUID]*TrackedOverlay
	hidden  map[uuid.UUID]*TrackedOverlay
}

func NewRegistry() *Registry {
	return &Registry{
		visible: make(map[uuid.UUID]*TrackedOverlay),
		hidden:  make(map[uuid.UUID]*TrackedOverlay),
	}
}

// Upsert stores e under id in the collection matching its visibility and
// returns whatever entry it replaced.
func (r *Registry) Upsert(id uuid.UUID, e *TrackedOverlay) (*TrackedOverlay, bool) {
	if e == nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	previous, existed := r.visible[id]
	if !existed {
		previous, existed = r.hidden[id]
	}
	delete(r.visible, id)
	delete(r.hidden, id)
	if e.Visible() {
		r.visible[id] = e
	} else {
		r.hidden[id] = e
	}
	return previous, existed
}

// Get looks id up in both collections.
func (r *Registry) Get(id uuid.UUID) (*TrackedOverlay, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.visible[id]; ok {
		return e, true
	}
	e, ok := r.hidden[id]
	return e, ok
}

// GetVisible looks id up in the visible collection only.
func (r *Registry) GetVisible(id uuid.UUID) (*TrackedOverlay, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.visible[id]
	return e, ok
}

func (r *Registry) RemoveVisible(id uuid.UUID) (*TrackedOverlay, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.visible[id]
	if ok {
		delete(r.visible, id)
	}
	return e, ok
}

func (r *Registry) RemoveHidden(id uuid.UUID) (*TrackedOverlay, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.hidden[id]
	if ok {
		delete(r.hidden, id)
	}
	return e, ok
}

// RemoveIf deletes id from whichever collection holds it, but only when the
// stored entry is e.
func (r *Registry) RemoveIf(id uuid.UUID, e *TrackedOverlay) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.visible[id]; ok && current == e {
		delete(r.visible, id)
		return true
	}
	if current, ok := r.hidden[id]; ok && current == e {
		delete(r.hidden, id)
		return true
	}
	return false
}

// MoveToHidden moves id from visible to hidden and clears its visibility flag
// inside the same critical section.
func (r *Registry) MoveToHidden(id uuid.UUID) (*TrackedOverlay, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.visible[id]
	if !ok {
		return nil, false
	}
	delete(r.visible, id)
	e.setVisible(false, time.Time{})
	r.hidden[id] = e
	return e, true
}

// MoveToVisible moves id from hidden to visible and sets its visibility flag.
func (r *Registry) MoveToVisible(id uuid.UUID, now time.Time) (*TrackedOverlay, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.hidden[id]
	if !ok {
		return nil, false
	}
	delete(r.hidden, id)
	e.setVisible(true, now)
	r.visible[id] = e
	return e, true
}

// Visible returns a snapshot of the visible collection ordered by id.
func (r *Registry) Visible() []*TrackedOverlay {
	r.mu.RLock()
	out := make([]*TrackedOverlay, 0, len(r.visible))
	for _, e := range r.visible {
		out = append(out, e)
	}
	r.mu.RUnlock()
	sortByID(out)
	return out
}

// All returns a snapshot of both collections ordered by id.
func (r *Registry) All() []*TrackedOverlay {
	r.mu.RLock()
	out := make([]*TrackedOverlay, 0, len(r.visible)+len(r.hidden))
	for _, e := range r.visible {
		out = append(out, e)
	}
	for _, e := range r.hidden {
		out = append(out, e)
	}
	r.mu.RUnlock()
	sortByID(out)
	return out
}

// Counts returns the size of the visible and hidden collections.
func (r *Registry) Counts() (visible, hidden int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.visible), len(r.hidden)
}

// Membership reports which collections hold id. Used to check the
// single-collection invariant.
func (r *Registry) Membership(id uuid.UUID) (inVisible, inHidden bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, inVisible = r.visible[id]
	_, inHidden = r.hidden[id]
	return inVisible, inHidden
}

func sortByID(entries []*TrackedOverlay) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].id.String() < entries[j].id.String()
	})
}
