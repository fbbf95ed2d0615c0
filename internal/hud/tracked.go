package hud

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"betterhud/server/internal/inventory"
)

// TrackedOverlay is the registry record of one player's overlay. Every field
// that changes after construction is atomic so the sweep, change listeners
// and commands can touch it without further locking.
type TrackedOverlay struct {
	id      uuid.UUID
	player  Player
	handle  *Overlay
	armor   *inventory.Container
	created time.Time

	subscriptions []*inventory.Registration
	releaseOnce   sync.Once

	visible     atomic.Bool
	lastRefresh [3]atomic.Int64
	shownAt     atomic.Int64
}

func newTrackedOverlay(player Player, handle *Overlay, armor *inventory.Container, now time.Time) *TrackedOverlay {
	e := &TrackedOverlay{
		id:      player.ID(),
		player:  player,
		handle:  handle,
		armor:   armor,
		created: now,
	}
	e.visible.Store(true)
	e.shownAt.Store(now.UnixMilli())
	for _, section := range Sections {
		e.lastRefresh[section].Store(now.UnixMilli())
	}
	return e
}

func (e *TrackedOverlay) ID() uuid.UUID        { return e.id }
func (e *TrackedOverlay) Player() Player       { return e.player }
func (e *TrackedOverlay) Handle() *Overlay     { return e.handle }
func (e *TrackedOverlay) Visible() bool        { return e.visible.Load() }
func (e *TrackedOverlay) CreatedAt() time.Time { return e.created }

// Subscriptions returns the number of live change registrations.
func (e *TrackedOverlay) Subscriptions() int { return len(e.subscriptions) }

// LastRefresh returns the Unix millisecond timestamp of the last refresh of
// section.
func (e *TrackedOverlay) LastRefresh(section Section) int64 {
	return e.lastRefresh[section].Load()
}

// ShownAt returns when the overlay last became visible.
func (e *TrackedOverlay) ShownAt() time.Time {
	return time.UnixMilli(e.shownAt.Load())
}

func (e *TrackedOverlay) setVisible(visible bool, now time.Time) {
	e.visible.Store(visible)
	if visible {
		e.shownAt.Store(now.UnixMilli())
	}
}

// due reports whether section is older than threshold at nowMs.
func (e *TrackedOverlay) due(section Section, nowMs int64, threshold time.Duration) bool {
	return nowMs-e.lastRefresh[section].Load() >= threshold.Milliseconds()
}

// markRefreshed advances the timestamp of section and never moves it back.
func (e *TrackedOverlay) markRefreshed(section Section, nowMs int64) {
	slot := &e.lastRefresh[section]
	for {
		current := slot.Load()
		if current >= nowMs {
			return
		}
		if slot.CompareAndSwap(current, nowMs) {
			return
		}
	}
}

// resetRefresh makes every section due on the next check.
func (e *TrackedOverlay) resetRefresh() {
	for _, section := range Sections {
		e.lastRefresh[section].Store(0)
	}
}

// release unregisters every change subscription exactly once.
func (e *TrackedOverlay) release() {
	e.releaseOnce.Do(func() {
		for _, sub := range e.subscriptions {
			sub.Unregister()
		}
	})
}
