package game

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"betterhud/server/internal/inventory"
	"betterhud/server/internal/ui"
)

var (
	// ErrUnknownPlayer is returned for ids that never joined or already left.
	ErrUnknownPlayer = errors.New("game: unknown player")
	// ErrNoSession is returned when a player has no client attached.
	ErrNoSession = errors.New("game: no session attached")
)

// Player is the live state of a connected player. It stays valid after the
// player leaves; Removed reports true from then on.
type Player struct {
	id       uuid.UUID
	name     string
	joinedAt time.Time
	inv      *inventory.Inventory

	removed atomic.Bool
	ready   atomic.Bool

	mu      sync.RWMutex
	session ui.Sink
}

func newPlayer(id uuid.UUID, name string, inv *inventory.Inventory, now time.Time) *Player {
	return &Player{id: id, name: name, inv: inv, joinedAt: now}
}

func (p *Player) ID() uuid.UUID                   { return p.id }
func (p *Player) DisplayName() string             { return p.name }
func (p *Player) Inventory() *inventory.Inventory { return p.inv }
func (p *Player) JoinedAt() time.Time             { return p.joinedAt }
func (p *Player) Removed() bool                   { return p.removed.Load() }
func (p *Player) Ready() bool                     { return p.ready.Load() }

// SendUI forwards update to the attached client.
func (p *Player) SendUI(update ui.Update) error {
	p.mu.RLock()
	session := p.session
	p.mu.RUnlock()
	if session == nil {
		return ErrNoSession
	}
	return session.SendUI(update)
}

// Attach binds the client session updates are sent to and returns the
// session it replaced.
func (p *Player) Attach(session ui.Sink) ui.Sink {
	p.mu.Lock()
	defer p.mu.Unlock()
	previous := p.session
	p.session = session
	return previous
}

// Detach unbinds session if it is still the attached one.
func (p *Player) Detach(session ui.Sink) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session != session {
		return false
	}
	p.session = nil
	return true
}

// Session returns the attached client, or nil.
func (p *Player) Session() ui.Sink {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.session
}

// HasSession reports whether a client is attached.
func (p *Player) HasSession() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.session != nil
}
