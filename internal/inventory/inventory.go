package inventory

import (
	"fmt"
	"sync/atomic"
)

// Section names one of the sub-containers that make up a player inventory.
type Section string

const (
	SectionArmor    Section = "armor"
	SectionHotbar   Section = "hotbar"
	SectionStorage  Section = "storage"
	SectionBackpack Section = "backpack"
	SectionUtility  Section = "utility"
	SectionTools    Section = "tools"
)

// Sections lists every section in combined-view scan order.
var Sections = []Section{
	SectionHotbar,
	SectionStorage,
	SectionBackpack,
	SectionUtility,
	SectionTools,
	SectionArmor,
}

// ParseSection validates a section name received from a client.
func ParseSection(raw string) (Section, bool) {
	for _, section := range Sections {
		if string(section) == raw {
			return section, true
		}
	}
	return "", false
}

// Layout holds the capacity of each section. A zero capacity leaves the
// section absent.
type Layout struct {
	Armor    int
	Hotbar   int
	Storage  int
	Backpack int
	Utility  int
	Tools    int
}

// DefaultLayout matches a fresh player without a backpack equipped.
func DefaultLayout() Layout {
	return Layout{
		Armor:   4,
		Hotbar:  9,
		Storage: 36,
		Utility: 4,
		Tools:   4,
	}
}

// Inventory groups the sub-containers of a single player. Containers are
// created once and never replaced, so references handed out stay valid for
// the lifetime of the inventory.
type Inventory struct {
	containers map[Section]*Container
	active     atomic.Int32
}

func New(layout Layout) *Inventory {
	inv := &Inventory{containers: make(map[Section]*Container, len(Sections))}
	capacities := map[Section]int{
		SectionArmor:    layout.Armor,
		SectionHotbar:   layout.Hotbar,
		SectionStorage:  layout.Storage,
		SectionBackpack: layout.Backpack,
		SectionUtility:  layout.Utility,
		SectionTools:    layout.Tools,
	}
	for section, capacity := range capacities {
		if capacity <= 0 {
			continue
		}
		inv.containers[section] = NewContainer(capacity)
	}
	return inv
}

// Container returns the sub-container for section or nil when the section is
// absent.
func (inv *Inventory) Container(section Section) *Container {
	if inv == nil {
		return nil
	}
	return inv.containers[section]
}

func (inv *Inventory) Armor() *Container    { return inv.Container(SectionArmor) }
func (inv *Inventory) Hotbar() *Container   { return inv.Container(SectionHotbar) }
func (inv *Inventory) Storage() *Container  { return inv.Container(SectionStorage) }
func (inv *Inventory) Backpack() *Container { return inv.Container(SectionBackpack) }
func (inv *Inventory) Utility() *Container  { return inv.Container(SectionUtility) }
func (inv *Inventory) Tools() *Container    { return inv.Container(SectionTools) }

// Combined returns a read-only view over every present section in Sections
// order.
func (inv *Inventory) Combined() Items {
	if inv == nil {
		return nil
	}
	view := combinedView{}
	offset := 0
	for _, section := range Sections {
		container := inv.containers[section]
		if container == nil {
			continue
		}
		view.parts = append(view.parts, combinedPart{container: container, offset: offset})
		offset += container.Capacity()
	}
	return view
}

// ActiveHotbarSlot returns the selected hotbar index.
func (inv *Inventory) ActiveHotbarSlot() int {
	if inv == nil {
		return 0
	}
	return int(inv.active.Load())
}

// SelectHotbarSlot changes the held item and notifies hotbar listeners.
func (inv *Inventory) SelectHotbarSlot(slot int) error {
	hotbar := inv.Hotbar()
	if hotbar == nil {
		return fmt.Errorf("%w: no hotbar", ErrSlotOutOfRange)
	}
	if slot < 0 || slot >= hotbar.Capacity() {
		return fmt.Errorf("%w: hotbar slot %d", ErrSlotOutOfRange, slot)
	}
	if int(inv.active.Swap(int32(slot))) == slot {
		return nil
	}
	hotbar.Touch(slot)
	return nil
}

// ItemInHand returns the stack in the active hotbar slot.
func (inv *Inventory) ItemInHand() (ItemStack, bool) {
	if inv == nil {
		return ItemStack{}, false
	}
	return inv.Hotbar().Slot(inv.ActiveHotbarSlot())
}

type combinedPart struct {
	container *Container
	offset    int
}

type combinedView struct {
	parts []combinedPart
}

// ForEach visits each section in order; slot numbers are offset so they are
// unique across the combined view.
func (v combinedView) ForEach(fn func(slot int, stack ItemStack)) {
	if fn == nil {
		return
	}
	for _, part := range v.parts {
		offset := part.offset
		part.container.ForEach(func(slot int, stack ItemStack) {
			fn(offset+slot, stack)
		})
	}
}
