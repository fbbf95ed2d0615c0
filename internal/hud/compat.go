package hud

import (
	"github.com/google/uuid"

	"betterhud/server/internal/overlay"
)

// CompositeLookup finds the shared overlay page of a player.
type CompositeLookup interface {
	Composite(id uuid.UUID) (*overlay.Composite, bool)
}

// EnsureConcurrentStore replaces the plain map store of id's overlay page
// with a mutex guarded copy. Other overlays attach to the same page from
// their own goroutines and the plain store does not tolerate that.
//
// It reports whether a swap happened. Already patched pages, unknown stores,
// missing pages and panics all yield false and leave the page as it was.
func EnsureConcurrentStore(lookup CompositeLookup, id uuid.UUID) (patched bool) {
	defer func() {
		if recover() != nil {
			patched = false
		}
	}()
	if lookup == nil {
		return false
	}
	composite, ok := lookup.Composite(id)
	if !ok || composite == nil {
		return false
	}
	current := composite.Store()
	plain, ok := current.(*overlay.MapStore)
	if !ok {
		return false
	}
	next := overlay.NewSyncStore()
	plain.Range(func(key string, handle overlay.Handle) bool {
		next.Put(key, handle)
		return true
	})
	return composite.SwapStore(current, next)
}
