package game

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"betterhud/server/internal/inventory"
)

// ErrUnknownAction is returned for action names Apply does not handle.
var ErrUnknownAction = errors.New("game: unknown action")

const (
	ActionDamage  = "damage"
	ActionSet     = "set"
	ActionClear   = "clear"
	ActionSelect  = "select"
	ActionConsume = "consume"
)

// Action is a debug inventory mutation requested by a client.
type Action struct {
	Name     string             `json:"name"`
	Section  inventory.Section  `json:"section,omitempty"`
	Slot     int                `json:"slot"`
	Item     inventory.ItemType `json:"item,omitempty"`
	Quantity int                `json:"quantity,omitempty"`
	Amount   float64            `json:"amount,omitempty"`
}

// Apply mutates the inventory of player id. Every change goes through the
// containers so change listeners fire exactly as they would in play.
func (w *World) Apply(id uuid.UUID, action Action) error {
	player, ok := w.Player(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, id)
	}
	inv := player.Inventory()

	switch action.Name {
	case ActionDamage, ActionSet, ActionClear, ActionConsume:
	case ActionSelect:
		return inv.SelectHotbarSlot(action.Slot)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action.Name)
	}

	section, ok := inventory.ParseSection(string(action.Section))
	if !ok {
		return fmt.Errorf("%w: section %q", inventory.ErrSlotOutOfRange, action.Section)
	}
	container := inv.Container(section)
	if container == nil {
		return fmt.Errorf("%w: %s is not present", inventory.ErrSlotOutOfRange, section)
	}

	switch action.Name {
	case ActionDamage:
		return container.Update(action.Slot, func(stack *inventory.ItemStack) error {
			if stack.IsEmpty() {
				return fmt.Errorf("%s slot %d is empty", section, action.Slot)
			}
			stack.Durability = math.Max(0, stack.Durability-action.Amount)
			return nil
		})
	case ActionSet:
		stack, err := w.cfg.Catalog.Stack(action.Item, action.Quantity)
		if err != nil {
			return err
		}
		return container.Set(action.Slot, stack)
	case ActionClear:
		return container.Clear(action.Slot)
	case ActionConsume:
		quantity := action.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		return container.Update(action.Slot, func(stack *inventory.ItemStack) error {
			if stack.IsEmpty() {
				return fmt.Errorf("%s slot %d is empty", section, action.Slot)
			}
			stack.Quantity -= quantity
			return nil
		})
	}
	return nil
}
