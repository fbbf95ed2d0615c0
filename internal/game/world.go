package game

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"betterhud/server/internal/inventory"
	"betterhud/server/internal/telemetry"
	"betterhud/server/logging"
)

// Config controls how new players are provisioned.
type Config struct {
	Layout  inventory.Layout
	Catalog *inventory.StaticCatalog
	// StarterKit is placed into every fresh inventory.
	StarterKit []KitItem
	Logger     telemetry.Logger
	Clock      logging.Clock
}

// KitItem places one full durability stack into a section slot.
type KitItem struct {
	Section  inventory.Section
	Slot     int
	Item     inventory.ItemType
	Quantity int
}

// DefaultStarterKit equips full iron armor, a few hotbar tools and arrows
// spread over hotbar and storage.
func DefaultStarterKit() []KitItem {
	return []KitItem{
		{Section: inventory.SectionArmor, Slot: 0, Item: "Armor_Iron_Head", Quantity: 1},
		{Section: inventory.SectionArmor, Slot: 1, Item: "Armor_Iron_Chest", Quantity: 1},
		{Section: inventory.SectionArmor, Slot: 2, Item: "Armor_Iron_Legs", Quantity: 1},
		{Section: inventory.SectionArmor, Slot: 3, Item: "Armor_Iron_Feet", Quantity: 1},
		{Section: inventory.SectionHotbar, Slot: 0, Item: "Weapon_Sword_Iron", Quantity: 1},
		{Section: inventory.SectionHotbar, Slot: 1, Item: "Weapon_Shortbow_Wood", Quantity: 1},
		{Section: inventory.SectionHotbar, Slot: 2, Item: "Tool_Pickaxe_Iron", Quantity: 1},
		{Section: inventory.SectionHotbar, Slot: 8, Item: "Weapon_Arrow_Crude", Quantity: 48},
		{Section: inventory.SectionStorage, Slot: 0, Item: "Weapon_Arrow_Iron", Quantity: 24},
		{Section: inventory.SectionStorage, Slot: 1, Item: "Food_Bread", Quantity: 5},
	}
}

func DefaultConfig() Config {
	return Config{
		Layout:     inventory.DefaultLayout(),
		Catalog:    inventory.DefaultCatalog(),
		StarterKit: DefaultStarterKit(),
	}
}

// World tracks connected players and raises their lifecycle events.
type World struct {
	cfg    Config
	bus    *EventBus
	logger telemetry.Logger
	clock  logging.Clock

	mu      sync.RWMutex
	players map[uuid.UUID]*Player
	joined  uint64
}

func NewWorld(cfg Config) *World {
	if cfg.Catalog == nil {
		cfg.Catalog = inventory.DefaultCatalog()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.Discard()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}
	return &World{
		cfg:     cfg,
		bus:     NewEventBus(),
		logger:  logger,
		clock:   clock,
		players: make(map[uuid.UUID]*Player),
	}
}

func (w *World) Bus() *EventBus                    { return w.bus }
func (w *World) Catalog() *inventory.StaticCatalog { return w.cfg.Catalog }

// Join provisions a new player. An empty name gets a generated one.
func (w *World) Join(name string) (*Player, error) {
	inv := inventory.New(w.cfg.Layout)
	for _, item := range w.cfg.StarterKit {
		if err := w.place(inv, item); err != nil {
			return nil, fmt.Errorf("starter kit: %w", err)
		}
	}

	w.mu.Lock()
	w.joined++
	if name == "" {
		name = fmt.Sprintf("player-%d", w.joined)
	}
	player := newPlayer(uuid.New(), name, inv, w.clock.Now())
	w.players[player.id] = player
	w.mu.Unlock()

	w.logger.Printf("[world] %s joined as %s", player.name, player.id)
	return player, nil
}

func (w *World) place(inv *inventory.Inventory, item KitItem) error {
	container := inv.Container(item.Section)
	if container == nil {
		return nil
	}
	stack, err := w.cfg.Catalog.Stack(item.Item, item.Quantity)
	if err != nil {
		return err
	}
	return container.Set(item.Slot, stack)
}

// Player looks up a connected player.
func (w *World) Player(id uuid.UUID) (*Player, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	player, ok := w.players[id]
	return player, ok
}

// Players returns every connected player ordered by join time.
func (w *World) Players() []*Player {
	w.mu.RLock()
	players := make([]*Player, 0, len(w.players))
	for _, player := range w.players {
		players = append(players, player)
	}
	w.mu.RUnlock()
	sort.Slice(players, func(i, j int) bool {
		if players[i].joinedAt.Equal(players[j].joinedAt) {
			return players[i].name < players[j].name
		}
		return players[i].joinedAt.Before(players[j].joinedAt)
	})
	return players
}

func (w *World) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.players)
}

// Ready marks the player's client as loaded and notifies ready listeners.
// Repeated calls notify again.
func (w *World) Ready(ctx context.Context, id uuid.UUID) error {
	player, ok := w.Player(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, id)
	}
	player.ready.Store(true)
	w.bus.emitReady(ctx, player)
	return nil
}

// Leave removes the player and notifies disconnect listeners. Leaving twice
// is a no-op.
func (w *World) Leave(ctx context.Context, id uuid.UUID, reason string) bool {
	w.mu.Lock()
	player, ok := w.players[id]
	if ok {
		delete(w.players, id)
	}
	w.mu.Unlock()
	if !ok {
		return false
	}
	player.removed.Store(true)
	player.Attach(nil)
	w.logger.Printf("[world] %s left (%s)", player.name, reason)
	w.bus.emitDisconnect(ctx, id, reason)
	return true
}
