package hud

import (
	"errors"
	"fmt"

	"betterhud/server/internal/inventory"
	"betterhud/server/internal/ui"
)

// ErrPlayerRemoved is returned when rendering for a player that already left.
var ErrPlayerRemoved = errors.New("hud: player removed")

// Overlay is the render target of one player. It is attached to the shared
// overlay registry as a handle and pushes partial updates directly to the
// player afterwards.
type Overlay struct {
	player   Player
	armor    *inventory.Container
	renderer *Renderer
}

func NewOverlay(player Player, armor *inventory.Container, renderer *Renderer) *Overlay {
	return &Overlay{player: player, armor: armor, renderer: renderer}
}

// Build writes every section into the page being composed. A removed player
// gets the placeholder page.
func (o *Overlay) Build(b *ui.Builder) {
	if o.player == nil || o.player.Removed() {
		o.renderer.WritePlaceholder(b)
		return
	}
	inv := o.player.Inventory()
	for _, section := range Sections {
		o.renderer.WriteSection(b, section, o.armor, inv)
	}
}

// Refresh renders sections into one partial update and sends it.
func (o *Overlay) Refresh(sections ...Section) error {
	if len(sections) == 0 {
		return nil
	}
	if o.player == nil || o.player.Removed() {
		return ErrPlayerRemoved
	}
	b := ui.NewBuilder()
	b.Append(Document)
	inv := o.player.Inventory()
	for _, section := range sections {
		o.renderer.WriteSection(b, section, o.armor, inv)
	}
	if err := o.player.SendUI(b.Update(false)); err != nil {
		return fmt.Errorf("send %v update: %w", sectionNames(sections), err)
	}
	return nil
}
