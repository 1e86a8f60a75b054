// Package inventory implements stack arithmetic and the equip, unequip and
// use-item rules over a player's inventory.
package inventory

import (
	"errors"

	"idlerealm.ai/internal/sim/catalogs"
	"idlerealm.ai/internal/sim/state"
)

var (
	ErrUnknownItem    = errors.New("unknown item")
	ErrNotInInventory = errors.New("item not in inventory")
	ErrNotEquippable  = errors.New("item cannot be equipped")
	ErrLevelTooLow    = errors.New("level too low for item")
	ErrSlotEmpty      = errors.New("equipment slot is empty")
	ErrInventoryFull  = errors.New("inventory full")
	ErrNotUsable      = errors.New("item cannot be used")
)

// Count returns the total quantity of id across stacks.
func Count(inv []state.ItemStack, id string) int {
	n := 0
	for _, s := range inv {
		if s.ID == id {
			n += s.Quantity
		}
	}
	return n
}

// Add stacks qty of id onto the first matching stack, or appends a new one.
func Add(inv []state.ItemStack, id string, qty int) []state.ItemStack {
	if qty <= 0 {
		return inv
	}
	for i := range inv {
		if inv[i].ID == id {
			inv[i].Quantity += qty
			return inv
		}
	}
	return append(inv, state.ItemStack{ID: id, Quantity: qty})
}

// Remove takes qty of id out of inv, dropping emptied stacks. It reports
// false and leaves inv untouched when there is not enough.
func Remove(inv []state.ItemStack, id string, qty int) ([]state.ItemStack, bool) {
	if qty <= 0 {
		return inv, true
	}
	if Count(inv, id) < qty {
		return inv, false
	}
	out := inv[:0]
	for _, s := range inv {
		if s.ID == id && qty > 0 {
			take := min(s.Quantity, qty)
			s.Quantity -= take
			qty -= take
		}
		if s.Quantity > 0 {
			out = append(out, s)
		}
	}
	return out, true
}

// Equip moves one unit of itemID into its slot. The previous occupant goes
// back to the inventory. Derived stats are the caller's job.
func Equip(p *state.PlayerState, cat *catalogs.Catalogs, itemID string) (state.EquipSlot, error) {
	def, ok := cat.Item(itemID)
	if !ok {
		return "", ErrUnknownItem
	}
	if !def.Equippable() {
		return "", ErrNotEquippable
	}
	if def.LevelReq > p.Level {
		return "", ErrLevelTooLow
	}
	inv, ok := Remove(p.Inventory, itemID, 1)
	if !ok {
		return "", ErrNotInInventory
	}
	slot := state.EquipSlot(def.EquipSlot)
	ref := p.Equipment.Slot(slot)
	if prev := *ref; prev != nil {
		inv = Add(inv, prev.ID, prev.Quantity)
	}
	*ref = &state.ItemStack{ID: itemID, Quantity: 1}
	p.Inventory = inv
	return slot, nil
}

// Unequip returns the item in slot to the inventory. It fails when the item
// would need a new stack and capacity distinct stacks are already held.
func Unequip(p *state.PlayerState, slot state.EquipSlot, capacity int) (string, error) {
	ref := p.Equipment.Slot(slot)
	if ref == nil || *ref == nil {
		return "", ErrSlotEmpty
	}
	item := *ref
	if Count(p.Inventory, item.ID) == 0 && capacity > 0 && len(p.Inventory) >= capacity {
		return "", ErrInventoryFull
	}
	p.Inventory = Add(p.Inventory, item.ID, item.Quantity)
	*ref = nil
	return item.ID, nil
}

// Use consumes one healing item and returns the health restored.
func Use(p *state.PlayerState, cat *catalogs.Catalogs, itemID string) (int, error) {
	def, ok := cat.Item(itemID)
	if !ok {
		return 0, ErrUnknownItem
	}
	if def.HealAmount <= 0 {
		return 0, ErrNotUsable
	}
	inv, ok := Remove(p.Inventory, itemID, 1)
	if !ok {
		return 0, ErrNotInInventory
	}
	p.Inventory = inv
	return Heal(p, def.HealAmount), nil
}

// Heal restores floor(maxHealth*fraction), clamped to maxHealth.
func Heal(p *state.PlayerState, fraction float64) int {
	amount := int(float64(p.MaxHealth) * fraction)
	before := p.Health
	p.Health = min(p.MaxHealth, p.Health+amount)
	return p.Health - before
}
