package hud

import (
	"math"
	"strconv"

	"github.com/dustin/go-humanize"

	"betterhud/server/internal/inventory"
	"betterhud/server/internal/ui"
)

const (
	// Document is the layout the overlay fields live in.
	Document = "Pages/GilloDaby_BetterHUD.ui"

	placeholderText = "-"
	infiniteText    = "INF"

	selectorArrowsVisible = "#Arrows.Visible"
	selectorArrowsValue   = "#ArrowsValue.Text"
	selectorArrowsIcon    = "#ArrowsIcon.ItemId"

	selectorMainVisible = "#MainHand.Visible"
	selectorMainValue   = "#MainValue.Text"
	selectorMainIcon    = "#MainIcon.ItemId"
)

// ArmorSlots are the four armor slot names in container order.
var ArmorSlots = [4]string{"Head", "Chest", "Legs", "Feet"}

// ArmorValueSelector returns the text selector of armor slot name.
func ArmorValueSelector(name string) string { return "#" + name + "Value.Text" }

// ArmorIconSelector returns the icon selector of armor slot name.
func ArmorIconSelector(name string) string { return "#" + name + "Icon.ItemId" }

// Renderer maps inventory state onto overlay fields. Every builder is pure
// with respect to its inputs and writes the placeholder state for nil input.
type Renderer struct {
	catalog   inventory.Catalog
	ammoToken string
}

func NewRenderer(catalog inventory.Catalog, ammoToken string) *Renderer {
	if ammoToken == "" {
		ammoToken = DefaultConfig().AmmoToken
	}
	return &Renderer{catalog: catalog, ammoToken: ammoToken}
}

// WritePlaceholder writes the empty state of every section.
func (r *Renderer) WritePlaceholder(b *ui.Builder) {
	r.WriteArmor(b, nil)
	r.WriteAmmo(b, nil)
	r.WriteMainHand(b, nil)
}

// WriteSection dispatches to the builder of section.
func (r *Renderer) WriteSection(b *ui.Builder, section Section, armor *inventory.Container, inv *inventory.Inventory) {
	switch section {
	case SectionArmor:
		r.WriteArmor(b, armor)
	case SectionAmmo:
		if inv == nil {
			r.WriteAmmo(b, nil)
			return
		}
		r.WriteAmmo(b, inv.Combined())
	case SectionMainHand:
		r.WriteMainHand(b, inv)
	}
}

// WriteArmor renders the durability of the four armor slots.
func (r *Renderer) WriteArmor(b *ui.Builder, armor *inventory.Container) {
	capacity := min(armor.Capacity(), len(ArmorSlots))
	for i, name := range ArmorSlots {
		valueSelector := ArmorValueSelector(name)
		iconSelector := ArmorIconSelector(name)

		if i >= capacity {
			b.Set(valueSelector, placeholderText)
			b.SetNull(iconSelector)
			continue
		}
		stack, ok := armor.Slot(i)
		if !ok {
			b.Set(valueSelector, placeholderText)
			b.SetNull(iconSelector)
			continue
		}

		// leading space keeps the value off the slot label
		b.Set(valueSelector, " "+DurabilityText(stack.Durability, stack.MaxDurability))
		b.Set(iconSelector, string(stack.ItemID))
	}
}

// AmmoSummary is the result of scanning an inventory for ammunition.
type AmmoSummary struct {
	Total int
	// Icon is the id of the first matching stack in scan order, not the
	// largest one.
	Icon inventory.ItemType
}

// SummarizeAmmo sums every stack whose id contains token.
func SummarizeAmmo(items inventory.Items, token string) AmmoSummary {
	var summary AmmoSummary
	if items == nil {
		return summary
	}
	items.ForEach(func(_ int, stack inventory.ItemStack) {
		if stack.IsEmpty() || !inventory.ContainsToken(stack.ItemID, token) {
			return
		}
		summary.Total += stack.Quantity
		if summary.Icon == "" {
			summary.Icon = stack.ItemID
		}
	})
	return summary
}

// WriteAmmo renders the ammunition count across items.
func (r *Renderer) WriteAmmo(b *ui.Builder, items inventory.Items) {
	summary := SummarizeAmmo(items, r.ammoToken)
	visible := summary.Total > 0
	b.Set(selectorArrowsVisible, visible)
	if !visible {
		b.Set(selectorArrowsValue, "0")
		b.SetNull(selectorArrowsIcon)
		return
	}
	b.Set(selectorArrowsValue, humanize.Comma(int64(summary.Total)))
	b.Set(selectorArrowsIcon, string(summary.Icon))
}

// WriteMainHand renders the durability of the held item when it is a tool or
// weapon and hides the section otherwise.
func (r *Renderer) WriteMainHand(b *ui.Builder, inv *inventory.Inventory) {
	stack, ok := inv.ItemInHand()
	if !ok || !r.isToolOrWeapon(stack.ItemID) {
		b.Set(selectorMainVisible, false)
		b.Set(selectorMainValue, placeholderText)
		b.SetNull(selectorMainIcon)
		return
	}
	b.Set(selectorMainVisible, true)
	b.Set(selectorMainValue, DurabilityText(stack.Durability, stack.MaxDurability))
	b.Set(selectorMainIcon, string(stack.ItemID))
}

func (r *Renderer) isToolOrWeapon(id inventory.ItemType) bool {
	if r.catalog == nil {
		return false
	}
	def, ok := r.catalog.Lookup(id)
	return ok && def.IsToolOrWeapon()
}

// DurabilityPercent clamps current/max to [0, 100]. ok is false for
// unbreakable items (max <= 0).
func DurabilityPercent(current, max float64) (pct float64, ok bool) {
	if max <= 0 {
		return 100, false
	}
	return math.Max(0, math.Min(100, current/max*100)), true
}

// DurabilityText formats a durability as "57%" or "INF".
func DurabilityText(current, max float64) string {
	pct, ok := DurabilityPercent(current, max)
	if !ok {
		return infiniteText
	}
	return strconv.FormatFloat(math.RoundToEven(pct), 'f', 0, 64) + "%"
}
