package inventory

import (
	"errors"
	"testing"
)

func TestContainerSetNotifiesOnlyOnChange(t *testing.T) {
	container := NewContainer(3)
	var events []ChangeEvent
	reg := container.RegisterChangeEvent(func(ev ChangeEvent) {
		events = append(events, ev)
	})
	defer reg.Unregister()

	stack := ItemStack{ItemID: "Weapon_Arrow_Crude", Quantity: 12}
	if err := container.Set(1, stack); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := container.Set(1, stack); err != nil {
		t.Fatalf("second set failed: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("expected exactly one change event, got %d", len(events))
	}
	if events[0].Slot != 1 || events[0].After != stack || !events[0].Before.IsEmpty() {
		t.Fatalf("unexpected change event: %+v", events[0])
	}
}

func TestContainerUpdateRollsBackOnError(t *testing.T) {
	container := NewContainer(1)
	original := ItemStack{ItemID: "Tool_Pickaxe_Iron", Quantity: 1, Durability: 10, MaxDurability: 300}
	if err := container.Set(0, original); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	notified := 0
	container.RegisterChangeEvent(func(ChangeEvent) { notified++ })

	boom := errors.New("boom")
	err := container.Update(0, func(stack *ItemStack) error {
		stack.Durability = 0
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected mutation error, got %v", err)
	}
	if got, _ := container.Slot(0); got != original {
		t.Fatalf("expected slot to be untouched, got %+v", got)
	}
	if notified != 0 {
		t.Fatalf("expected no notifications, got %d", notified)
	}
}

func TestContainerOutOfRange(t *testing.T) {
	container := NewContainer(2)
	if err := container.Set(2, ItemStack{ItemID: "Food_Bread", Quantity: 1}); !errors.Is(err, ErrSlotOutOfRange) {
		t.Fatalf("expected ErrSlotOutOfRange, got %v", err)
	}
	if _, ok := container.Slot(-1); ok {
		t.Fatalf("expected negative slot lookup to miss")
	}
	var missing *Container
	if missing.Capacity() != 0 {
		t.Fatalf("expected nil container to report zero capacity")
	}
	if _, ok := missing.Slot(0); ok {
		t.Fatalf("expected nil container lookup to miss")
	}
}

func TestRegistrationUnregisterIsIdempotent(t *testing.T) {
	container := NewContainer(1)
	calls := 0
	reg := container.RegisterChangeEvent(func(ChangeEvent) { calls++ })
	if container.ListenerCount() != 1 {
		t.Fatalf("expected one listener, got %d", container.ListenerCount())
	}

	reg.Unregister()
	reg.Unregister()
	if container.ListenerCount() != 0 {
		t.Fatalf("expected listeners to be released, got %d", container.ListenerCount())
	}

	if err := container.Set(0, ItemStack{ItemID: "Food_Bread", Quantity: 2}); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected unregistered listener to stay silent, got %d calls", calls)
	}
}

func TestZeroQuantityClearsSlot(t *testing.T) {
	container := NewContainer(1)
	if err := container.Set(0, ItemStack{ItemID: "Weapon_Arrow_Crude", Quantity: 1}); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := container.Update(0, func(stack *ItemStack) error {
		stack.Quantity--
		return nil
	}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if _, ok := container.Slot(0); ok {
		t.Fatalf("expected slot to be empty after consuming the last item")
	}
}
