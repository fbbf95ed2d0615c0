package inventory

import (
	"fmt"
	"sort"
	"strings"
)

// ItemType is the unique identifier of an item kind, e.g. "Weapon_Sword_Iron".
type ItemType string

// ItemClass enumerates the item categories the overlay cares about.
type ItemClass string

const (
	ItemClassWeapon     ItemClass = "weapon"
	ItemClassTool       ItemClass = "tool"
	ItemClassArmor      ItemClass = "armor"
	ItemClassAmmunition ItemClass = "ammunition"
	ItemClassConsumable ItemClass = "consumable"
	ItemClassMaterial   ItemClass = "material"
)

var validItemClasses = map[ItemClass]struct{}{
	ItemClassWeapon:     {},
	ItemClassTool:       {},
	ItemClassArmor:      {},
	ItemClassAmmunition: {},
	ItemClassConsumable: {},
	ItemClassMaterial:   {},
}

// ItemDefinition describes the static metadata for an item kind.
type ItemDefinition struct {
	ID            ItemType  `json:"id"`
	Class         ItemClass `json:"class"`
	MaxDurability float64   `json:"maxDurability,omitempty"`
	MaxStack      int       `json:"maxStack"`
	Name          string    `json:"name,omitempty"`
}

// IsToolOrWeapon reports whether the definition qualifies for the main-hand
// durability readout.
func (d ItemDefinition) IsToolOrWeapon() bool {
	return d.Class == ItemClassTool || d.Class == ItemClassWeapon
}

// NewItemDefinition validates and normalises a definition.
func NewItemDefinition(def ItemDefinition) (ItemDefinition, error) {
	if def.ID == "" {
		return ItemDefinition{}, fmt.Errorf("item id must be provided")
	}
	if _, ok := validItemClasses[def.Class]; !ok {
		return ItemDefinition{}, fmt.Errorf("invalid item class %q", def.Class)
	}
	if def.MaxDurability < 0 {
		return ItemDefinition{}, fmt.Errorf("item %s has negative max durability", def.ID)
	}
	if def.MaxStack <= 0 {
		def.MaxStack = 1
	}
	return def, nil
}

// Catalog resolves item metadata by id.
type Catalog interface {
	Lookup(id ItemType) (ItemDefinition, bool)
}

// StaticCatalog is an immutable map backed Catalog.
type StaticCatalog struct {
	defs map[ItemType]ItemDefinition
}

// NewCatalog validates every definition and rejects duplicate ids.
func NewCatalog(defs ...ItemDefinition) (*StaticCatalog, error) {
	catalog := &StaticCatalog{defs: make(map[ItemType]ItemDefinition, len(defs))}
	for _, def := range defs {
		normalized, err := NewItemDefinition(def)
		if err != nil {
			return nil, err
		}
		if _, exists := catalog.defs[normalized.ID]; exists {
			return nil, fmt.Errorf("duplicate item id %q", normalized.ID)
		}
		catalog.defs[normalized.ID] = normalized
	}
	return catalog, nil
}

func (c *StaticCatalog) Lookup(id ItemType) (ItemDefinition, bool) {
	if c == nil {
		return ItemDefinition{}, false
	}
	def, ok := c.defs[id]
	return def, ok
}

// IDs returns every registered id in lexical order.
func (c *StaticCatalog) IDs() []ItemType {
	if c == nil {
		return nil
	}
	ids := make([]ItemType, 0, len(c.defs))
	for id := range c.defs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Stack builds a full-durability stack of the given item.
func (c *StaticCatalog) Stack(id ItemType, quantity int) (ItemStack, error) {
	def, ok := c.Lookup(id)
	if !ok {
		return ItemStack{}, fmt.Errorf("unknown item %q", id)
	}
	if quantity <= 0 {
		quantity = 1
	}
	if quantity > def.MaxStack {
		quantity = def.MaxStack
	}
	return ItemStack{
		ItemID:        def.ID,
		Quantity:      quantity,
		Durability:    def.MaxDurability,
		MaxDurability: def.MaxDurability,
	}, nil
}

// DefaultCatalog returns the items seeded into new players.
func DefaultCatalog() *StaticCatalog {
	catalog, err := NewCatalog(
		ItemDefinition{ID: "Armor_Iron_Head", Class: ItemClassArmor, MaxDurability: 200, Name: "Iron Helmet"},
		ItemDefinition{ID: "Armor_Iron_Chest", Class: ItemClassArmor, MaxDurability: 320, Name: "Iron Chestplate"},
		ItemDefinition{ID: "Armor_Iron_Legs", Class: ItemClassArmor, MaxDurability: 280, Name: "Iron Leggings"},
		ItemDefinition{ID: "Armor_Iron_Feet", Class: ItemClassArmor, MaxDurability: 180, Name: "Iron Boots"},
		ItemDefinition{ID: "Weapon_Sword_Iron", Class: ItemClassWeapon, MaxDurability: 250, Name: "Iron Sword"},
		ItemDefinition{ID: "Weapon_Shortbow_Wood", Class: ItemClassWeapon, MaxDurability: 150, Name: "Wooden Shortbow"},
		ItemDefinition{ID: "Weapon_Staff_Crystal", Class: ItemClassWeapon, Name: "Crystal Staff"},
		ItemDefinition{ID: "Weapon_Arrow_Crude", Class: ItemClassAmmunition, MaxStack: 999, Name: "Crude Arrow"},
		ItemDefinition{ID: "Weapon_Arrow_Iron", Class: ItemClassAmmunition, MaxStack: 999, Name: "Iron Arrow"},
		ItemDefinition{ID: "Tool_Pickaxe_Iron", Class: ItemClassTool, MaxDurability: 300, Name: "Iron Pickaxe"},
		ItemDefinition{ID: "Tool_Hatchet_Stone", Class: ItemClassTool, MaxDurability: 90, Name: "Stone Hatchet"},
		ItemDefinition{ID: "Food_Bread", Class: ItemClassConsumable, MaxStack: 64, Name: "Bread"},
		ItemDefinition{ID: "Ingredient_Stick", Class: ItemClassMaterial, MaxStack: 100, Name: "Stick"},
	)
	if err != nil {
		panic(fmt.Sprintf("inventory: invalid default catalog: %v", err))
	}
	return catalog
}

// ContainsToken reports whether the item id contains token, ignoring case.
func ContainsToken(id ItemType, token string) bool {
	if id == "" || token == "" {
		return false
	}
	return strings.Contains(strings.ToLower(string(id)), strings.ToLower(token))
}
