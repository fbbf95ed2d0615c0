package overlay

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"betterhud/server/internal/ui"
)

// ErrNoViewer is returned when Attach or Detach is called without a viewer.
var ErrNoViewer = errors.New("overlay: no viewer")

// Handle is one overlay that contributes fields to a player's page.
type Handle interface {
	Build(b *ui.Builder)
}

// Viewer is the player an overlay page is rendered for.
type Viewer interface {
	ID() uuid.UUID
	SendUI(update ui.Update) error
}

// departed is implemented by viewers that can report having left.
type departed interface {
	Removed() bool
}

func gone(viewer Viewer) bool {
	d, ok := viewer.(departed)
	return ok && d.Removed()
}

// Registry lets several independent overlays share a single page per player.
// Every player gets one Composite; attaching or detaching a handle re-renders
// that composite as a full update.
type Registry struct {
	document   string
	mu         sync.Mutex
	composites map[uuid.UUID]*Composite
}

// NewRegistry creates a registry whose pages use the given layout document.
func NewRegistry(document string) *Registry {
	return &Registry{
		document:   document,
		composites: make(map[uuid.UUID]*Composite),
	}
}

// Attach adds or replaces the handle stored under key and shows the page.
func (r *Registry) Attach(viewer Viewer, key string, handle Handle) error {
	if viewer == nil {
		return ErrNoViewer
	}
	if handle == nil {
		return fmt.Errorf("overlay: nil handle for key %q", key)
	}
	r.mu.Lock()
	composite, ok := r.composites[viewer.ID()]
	if !ok {
		composite = newComposite(r.document)
		r.composites[viewer.ID()] = composite
	}
	composite.Store().Put(key, handle)
	r.mu.Unlock()
	return composite.Show(viewer)
}

// Detach removes key from the viewer's page and drops the page once it holds
// no handles. Detaching an unknown key is a no-op, and a viewer that already
// left is not re-rendered.
func (r *Registry) Detach(viewer Viewer, key string) error {
	if viewer == nil {
		return ErrNoViewer
	}
	id := viewer.ID()
	r.mu.Lock()
	composite, ok := r.composites[id]
	if !ok || !composite.Store().Delete(key) {
		r.mu.Unlock()
		return nil
	}
	if composite.Store().Len() == 0 {
		delete(r.composites, id)
	}
	r.mu.Unlock()
	if gone(viewer) {
		return nil
	}
	return composite.Show(viewer)
}

// Composite returns the composite page for id.
func (r *Registry) Composite(id uuid.UUID) (*Composite, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	composite, ok := r.composites[id]
	return composite, ok
}

// Forget drops the page of a player that left.
func (r *Registry) Forget(id uuid.UUID) {
	r.mu.Lock()
	delete(r.composites, id)
	r.mu.Unlock()
}

// Composite is the page of a single player. Its Store can be swapped for a
// different implementation while the page is live.
type Composite struct {
	document string
	store    atomic.Pointer[storeBox]
}

type storeBox struct {
	store Store
}

func newComposite(document string) *Composite {
	c := &Composite{document: document}
	c.store.Store(&storeBox{store: NewMapStore()})
	return c
}

// Store returns the current handle store.
func (c *Composite) Store() Store {
	return c.store.Load().store
}

// SwapStore replaces old with next if old is still current.
func (c *Composite) SwapStore(old, next Store) bool {
	current := c.store.Load()
	if current.store != old || next == nil {
		return false
	}
	return c.store.CompareAndSwap(current, &storeBox{store: next})
}

// Render builds every attached handle into one full update.
func (c *Composite) Render() ui.Update {
	b := ui.NewBuilder()
	b.Append(c.document)
	c.Store().Range(func(_ string, handle Handle) bool {
		handle.Build(b)
		return true
	})
	return b.Update(true)
}

// Show sends the rendered page to viewer.
func (c *Composite) Show(viewer Viewer) error {
	if err := viewer.SendUI(c.Render()); err != nil {
		return fmt.Errorf("show overlay page: %w", err)
	}
	return nil
}
