package hud

import (
	"github.com/google/uuid"

	"betterhud/server/internal/inventory"
	"betterhud/server/internal/overlay"
	"betterhud/server/internal/ui"
)

// Player is the live session the overlay is drawn for. The service never owns
// it; Removed is the liveness check used before every refresh.
type Player interface {
	ID() uuid.UUID
	DisplayName() string
	Removed() bool
	Inventory() *inventory.Inventory
	SendUI(update ui.Update) error
}

// OverlayHost is the shared overlay registry the handle is attached to.
type OverlayHost interface {
	Attach(viewer overlay.Viewer, key string, handle overlay.Handle) error
	Detach(viewer overlay.Viewer, key string) error
}
