package hud

import (
	"context"

	"betterhud/server/internal/inventory"
)

// sourceSections maps each inventory section to the overlay sections a
// change in it invalidates.
var sourceSections = map[inventory.Section][]Section{
	inventory.SectionArmor:    {SectionArmor},
	inventory.SectionHotbar:   {SectionMainHand, SectionAmmo},
	inventory.SectionStorage:  {SectionAmmo},
	inventory.SectionBackpack: {SectionAmmo},
	inventory.SectionUtility:  {SectionAmmo},
	inventory.SectionTools:    {SectionAmmo},
}

// bridgeOrder is the registration order of container subscriptions.
var bridgeOrder = []inventory.Section{
	inventory.SectionArmor,
	inventory.SectionHotbar,
	inventory.SectionStorage,
	inventory.SectionBackpack,
	inventory.SectionUtility,
	inventory.SectionTools,
}

// Bridge turns container change notifications into immediate section
// refreshes. Notifications arrive on whichever goroutine mutated the
// container.
type Bridge struct {
	ctx       context.Context
	refresher *refresher
}

func newBridge(ctx context.Context, r *refresher) *Bridge {
	return &Bridge{ctx: ctx, refresher: r}
}

// Attach subscribes e to every present container of inv and returns the
// registrations in subscription order.
func (b *Bridge) Attach(e *TrackedOverlay, inv *inventory.Inventory) []*inventory.Registration {
	var subscriptions []*inventory.Registration
	for _, source := range bridgeOrder {
		container := inv.Container(source)
		if container == nil {
			continue
		}
		sections := sourceSections[source]
		registration := container.RegisterChangeEvent(func(inventory.ChangeEvent) {
			b.onChange(e, sections)
		})
		if registration != nil {
			subscriptions = append(subscriptions, registration)
		}
	}
	return subscriptions
}

func (b *Bridge) onChange(e *TrackedOverlay, sections []Section) {
	// hidden overlays are caught up by the forced refresh on show
	if !e.Visible() {
		return
	}
	b.refresher.refresh(b.ctx, e, sections)
}
