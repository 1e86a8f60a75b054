// Package progression holds the pure XP and derived-stat math shared by every
// timed activity.
package progression

import (
	"math"
	"time"

	"idlerealm.ai/internal/sim/catalogs"
	"idlerealm.ai/internal/sim/inventory"
	"idlerealm.ai/internal/sim/state"
	"idlerealm.ai/internal/sim/tuning"
)

// Unreachable is the xpToNextLevel of a capped player.
const Unreachable int64 = math.MaxInt64

// GrantSkillXP adds xp to s and applies every level-up it crosses. It returns
// the levels reached, in order.
func GrantSkillXP(s *state.Skill, xp int64, curve float64) []int {
	if s == nil || xp <= 0 {
		return nil
	}
	s.XP += xp
	var ups []int
	for s.XPToNextLevel > 0 && s.XP >= s.XPToNextLevel {
		s.XP -= s.XPToNextLevel
		s.Level++
		s.XPToNextLevel = nextThreshold(s.XPToNextLevel, curve)
		ups = append(ups, s.Level)
	}
	return ups
}

// GrantPlayerXP adds xp to the player and applies level-ups up to the cap.
// Each level grants stat points. A capped player discards all XP.
func GrantPlayerXP(p *state.PlayerState, xp int64, t tuning.Player) []int {
	if p.Level >= t.LevelCap {
		pinCap(p, t)
		return nil
	}
	if xp <= 0 {
		return nil
	}
	p.XP += xp
	var ups []int
	for p.Level < t.LevelCap && p.XPToNextLevel > 0 && p.XP >= p.XPToNextLevel {
		p.XP -= p.XPToNextLevel
		p.Level++
		p.XPToNextLevel = nextThreshold(p.XPToNextLevel, t.XPCurve)
		p.StatPoints += t.StatPointsPerLevel
		ups = append(ups, p.Level)
	}
	if p.Level >= t.LevelCap {
		pinCap(p, t)
	}
	return ups
}

func pinCap(p *state.PlayerState, t tuning.Player) {
	p.Level = t.LevelCap
	p.XP = 0
	p.XPToNextLevel = Unreachable
}

func nextThreshold(cur int64, curve float64) int64 {
	next := math.Floor(float64(cur) * curve)
	if next >= float64(Unreachable) {
		return Unreachable
	}
	// Small thresholds with a mild curve would otherwise stall.
	if int64(next) <= cur {
		return cur + 1
	}
	return int64(next)
}

// ToolTypeFor maps a gathering skill to the tool that speeds it up.
func ToolTypeFor(cat *catalogs.Catalogs, skillID string) string {
	if d, ok := cat.Skill(skillID); ok {
		return d.ToolType
	}
	return ""
}

// BestToolBonus is the highest efficiency bonus among carried or equipped
// tools of toolType.
func BestToolBonus(p *state.PlayerState, cat *catalogs.Catalogs, toolType string) float64 {
	if toolType == "" {
		return 0
	}
	best := 0.0
	consider := func(id string) {
		d, ok := cat.Item(id)
		if ok && d.ToolType == toolType && d.EfficiencyBonus > best {
			best = d.EfficiencyBonus
		}
	}
	for _, s := range p.Inventory {
		consider(s.ID)
	}
	for _, slot := range state.EquipSlots {
		if it := p.Equipment.Get(slot); it != nil {
			consider(it.ID)
		}
	}
	return best
}

// EffectiveGatherDuration applies the gathering-skill reduction and the tool
// bonus to base. The total reduction is capped below 1 so the result stays
// positive.
func EffectiveGatherDuration(base time.Duration, gatheringLevel int, toolBonus float64, g tuning.Gathering) time.Duration {
	reduction := math.Min(float64(gatheringLevel-1)*g.ReductionPerLevel, g.MaxSkillReduction)
	if reduction < 0 {
		reduction = 0
	}
	if toolBonus < 0 {
		toolBonus = 0
	}
	total := math.Min(reduction+toolBonus, g.MaxTotalReduction)
	d := time.Duration(math.Round(float64(base) * (1 - total)))
	if d <= 0 && base > 0 {
		d = 1
	}
	return d
}

// GatherDuration resolves the effective duration of resource for p.
func GatherDuration(p *state.PlayerState, cat *catalogs.Catalogs, g tuning.Gathering, skillID string, r catalogs.ResourceDef) time.Duration {
	base := time.Duration(r.TimeToGatherMs) * time.Millisecond
	bonus := BestToolBonus(p, cat, ToolTypeFor(cat, skillID))
	return EffectiveGatherDuration(base, p.SkillLevel("gathering"), bonus, g)
}

// ProfessionBonuses converts skill levels into attribute points using each
// skill's levels-per-point threshold.
func ProfessionBonuses(p *state.PlayerState, cat *catalogs.Catalogs) state.Stats {
	var out state.Stats
	for _, s := range p.Skills {
		d, ok := cat.Skill(s.ID)
		if !ok || d.BonusStat == "" || d.LevelsPerPoint <= 0 {
			continue
		}
		out = out.With(d.BonusStat, s.Level/d.LevelsPerPoint)
	}
	return out
}

// EquipmentBonuses sums flat stat bonuses of every equipped item.
func EquipmentBonuses(p *state.PlayerState, cat *catalogs.Catalogs) state.Stats {
	var out state.Stats
	for _, slot := range state.EquipSlots {
		it := p.Equipment.Get(slot)
		if it == nil {
			continue
		}
		if d, ok := cat.Item(it.ID); ok {
			out = out.Add(d.Stats)
		}
	}
	return out
}

// SetBonuses grants a set's bonus once enough armor-slot pieces of it are
// worn. Weapon and shield never count; partial sets give nothing.
func SetBonuses(p *state.PlayerState, cat *catalogs.Catalogs) state.Stats {
	counts := map[string]int{}
	for _, slot := range state.ArmorSlots {
		it := p.Equipment.Get(slot)
		if it == nil {
			continue
		}
		if d, ok := cat.Item(it.ID); ok && d.Set != "" {
			counts[d.Set]++
		}
	}
	var out state.Stats
	for name, n := range counts {
		if set, ok := cat.Set(name); ok && n >= set.Pieces {
			out = out.Add(set.Bonus)
		}
	}
	return out
}

// TotalStats is base + profession + equipment + set bonuses.
func TotalStats(p *state.PlayerState, cat *catalogs.Catalogs) state.Stats {
	return p.Stats.
		Add(ProfessionBonuses(p, cat)).
		Add(EquipmentBonuses(p, cat)).
		Add(SetBonuses(p, cat))
}

// RecomputeDerived refreshes maxHealth from total endurance and clamps health
// into [0, maxHealth].
func RecomputeDerived(p *state.PlayerState, cat *catalogs.Catalogs, t tuning.Player) {
	total := TotalStats(p, cat)
	p.MaxHealth = t.BaseMaxHealth + t.HealthPerEndurance*total.Endurance
	p.Health = max(0, min(p.Health, p.MaxHealth))
}

// NewPlayer builds a fresh character from tuning and the skill catalog.
func NewPlayer(cat *catalogs.Catalogs, t tuning.Player) state.PlayerState {
	p := state.PlayerState{
		Level:             1,
		XPToNextLevel:     t.InitialXPToNextLevel,
		Gold:              t.StartingGold,
		CurrentLocationID: t.StartingLocation,
		Stats: state.Stats{
			Strength:  t.BaseStat,
			Agility:   t.BaseStat,
			Tactics:   t.BaseStat,
			Endurance: t.BaseStat,
			Charisma:  t.BaseStat,
			Luck:      t.BaseStat,
		},
		Inventory: []state.ItemStack{},
	}
	for _, d := range cat.Skills.List {
		p.Skills = append(p.Skills, state.Skill{
			ID:            d.ID,
			Name:          d.Name,
			Icon:          d.Icon,
			Level:         1,
			XPToNextLevel: d.XPToNextLevel,
		})
	}
	for _, s := range t.StartingInventory {
		p.Inventory = inventory.Add(p.Inventory, s.ID, s.Quantity)
	}
	for _, slot := range state.EquipSlots {
		if id := t.StartingEquipment[string(slot)]; id != "" {
			*p.Equipment.Slot(slot) = &state.ItemStack{ID: id, Quantity: 1}
		}
	}
	RecomputeDerived(&p, cat, t)
	p.Health = p.MaxHealth
	return p
}
