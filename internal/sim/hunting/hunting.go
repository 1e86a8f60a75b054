// Package hunting runs the autonomous hunting session: start, per-encounter
// resolution, voluntary return, refresh and settlement.
//
// Session lifecycle is active -> returning -> settled (removed). Loot and the
// reserved slot item reach the inventory only at settlement.
package hunting

import (
	"errors"
	"math"
	"sort"
	"time"

	"idlerealm.ai/internal/flavor"
	"idlerealm.ai/internal/sim/catalogs"
	"idlerealm.ai/internal/sim/inventory"
	"idlerealm.ai/internal/sim/progression"
	"idlerealm.ai/internal/sim/rules"
	"idlerealm.ai/internal/sim/state"
)

var (
	ErrAlreadyHunting = errors.New("a hunting session already exists")
	ErrUnknownRegion  = errors.New("unknown region")
	ErrNoCreatures    = errors.New("region has no creatures")
	ErrNoWeapon       = errors.New("no weapon equipped")
	ErrSlotItem       = errors.New("slot item must be a healing item in the inventory")
	ErrNotHunting     = errors.New("no active hunting session")
)

// Outcome tells the scheduler what to arm after an encounter.
type Outcome int

const (
	// OutcomeNone means there was nothing to resolve.
	OutcomeNone Outcome = iota
	// OutcomeContinue means the next encounter should be scheduled.
	OutcomeContinue
	// OutcomeReturning means the session entered the returning state.
	OutcomeReturning
)

// Check reports whether a session could start now without changing g.
func Check(env rules.Env, g *state.GameState, slotItemID string) (catalogs.RegionDef, error) {
	if g.HuntingSession != nil {
		return catalogs.RegionDef{}, ErrAlreadyHunting
	}
	p := &g.Player
	region, ok := env.Catalogs.Region(p.CurrentLocationID)
	if !ok {
		return region, ErrUnknownRegion
	}
	if len(env.Catalogs.CreaturesIn(region.ID)) == 0 {
		return region, ErrNoCreatures
	}
	if p.Equipment.Weapon == nil {
		return region, ErrNoWeapon
	}
	if slotItemID != "" {
		def, ok := env.Catalogs.Item(slotItemID)
		if !ok || def.HealAmount <= 0 || inventory.Count(p.Inventory, slotItemID) < 1 {
			return region, ErrSlotItem
		}
	}
	return region, nil
}

// Start opens a session in the player's current region. slotItemID may be
// empty; otherwise one unit is reserved from the inventory.
func Start(env rules.Env, g *state.GameState, now time.Time, slotItemID string) error {
	region, err := Check(env, g, slotItemID)
	if err != nil {
		return err
	}
	p := &g.Player
	var slot *state.ItemStack
	if slotItemID != "" {
		p.Inventory, _ = inventory.Remove(p.Inventory, slotItemID, 1)
		slot = &state.ItemStack{ID: slotItemID, Quantity: 1}
	}
	h := &state.HuntingSession{
		IsActive:   true,
		StartTime:  now,
		EndTime:    now.Add(env.Tuning.Hunting.MaxDuration()),
		LocationID: region.ID,
		Loot:       map[string]state.ItemStack{},
		HuntSlot:   slot,
	}
	g.HuntingSession = h
	appendLog(env, h, state.HuntLogEntry{At: now, Kind: state.HuntLogEvent, Code: state.HuntCodeStarted, Message: env.Format(flavor.HuntStarted, region.Name)})
	env.ActionLog(g, now, env.Format(flavor.HuntStarted, region.Name))
	return nil
}

// NextDelay draws the wait before the next encounter from the configured
// window. The first encounter uses the same draw.
func NextDelay(env rules.Env) time.Duration {
	return env.Between(env.Tuning.Hunting.EncounterMin(), env.Tuning.Hunting.EncounterMax())
}

// Encounter is the live timer step. A session past its end time turns
// around instead of fighting.
func Encounter(env rules.Env, g *state.GameState, now time.Time) Outcome {
	h := g.HuntingSession
	if h == nil || !h.IsActive || h.IsReturning {
		return OutcomeNone
	}
	if !now.Before(h.EndTime) {
		beginReturn(env, g, now, false, state.HuntCodeTimeout, flavor.HuntTimeout)
		return OutcomeReturning
	}
	if r := Resolve(env, g, now); r.Defeated {
		beginReturn(env, g, now, true, state.HuntCodeReturning, flavor.HuntReturning)
		return OutcomeReturning
	}
	return OutcomeContinue
}

// Result describes one resolved encounter.
type Result struct {
	NoCreatures bool
	CreatureID  string
	Damage      int
	Healed      int
	Defeated    bool
	PlayerXP    int64
	Loot        []string
}

// Resolve fights one creature: pick, damage, optional auto-heal, XP and
// loot. It does not check the session clock and never schedules anything,
// so offline catch-up can call it in a loop.
//
// Incoming damage is reduced by total endurance and loot chances are scaled
// by total luck, where total means base stats plus profession, equipment and
// set bonuses.
func Resolve(env rules.Env, g *state.GameState, now time.Time) Result {
	h := g.HuntingSession
	if h == nil {
		return Result{}
	}
	if h.Loot == nil {
		h.Loot = map[string]state.ItemStack{}
	}
	p := &g.Player
	tu := env.Tuning.Hunting

	var eligible []catalogs.CreatureDef
	lvl := p.SkillLevel(tu.SkillID)
	for _, c := range env.Catalogs.CreaturesIn(h.LocationID) {
		if c.LevelReq <= lvl {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		appendLog(env, h, state.HuntLogEntry{At: now, Kind: state.HuntLogEvent, Code: state.HuntCodeNoCreatures, Message: env.Format(flavor.HuntNoCreatures)})
		return Result{NoCreatures: true}
	}
	c := eligible[env.Rand.IntN(len(eligible))]
	res := Result{CreatureID: c.ID}
	appendLog(env, h, state.HuntLogEntry{At: now, Kind: state.HuntLogEncounter, Code: state.HuntCodeAppeared, CreatureID: c.ID, Icon: c.Icon, Message: env.Format(flavor.HuntAppeared, c.Name)})

	total := progression.TotalStats(p, env.Catalogs)
	res.Damage = max(1, c.LevelReq-total.Endurance/tu.EnduranceDivisor)
	p.Health = max(0, p.Health-res.Damage)
	appendLog(env, h, state.HuntLogEntry{At: now, Kind: state.HuntLogDamage, Code: state.HuntCodeDamage, CreatureID: c.ID, Message: env.Format(flavor.HuntDamage, c.Name, res.Damage)})

	if p.Health <= 0 {
		res.Defeated = true
		h.Defeated = true
		appendLog(env, h, state.HuntLogEntry{At: now, Kind: state.HuntLogError, Code: state.HuntCodeDefeat, CreatureID: c.ID, Message: env.Format(flavor.HuntDefeat, c.Name)})
		return res
	}

	if h.HuntSlot != nil && p.MaxHealth > 0 && float64(p.Health)/float64(p.MaxHealth) <= tu.CriticalHealthRatio {
		frac := tu.DefaultHealFraction
		if def, ok := env.Catalogs.Item(h.HuntSlot.ID); ok && def.HealAmount > 0 {
			frac = def.HealAmount
		}
		res.Healed = inventory.Heal(p, frac)
		appendLog(env, h, state.HuntLogEntry{At: now, Kind: state.HuntLogHealth, Code: state.HuntCodeHeal, Message: env.Format(flavor.HuntHeal, env.Catalogs.ItemName(h.HuntSlot.ID), res.Healed)})
		h.HuntSlot = nil
	}

	res.PlayerXP = int64(math.Ceil(float64(c.XP) * tu.PlayerXPShare))
	env.GrantPlayerXP(g, now, res.PlayerXP)
	appendLog(env, h, state.HuntLogEntry{At: now, Kind: state.HuntLogEvent, CreatureID: c.ID, Message: env.Format(flavor.HuntXP, c.Name, c.XP)})
	for _, w := range tu.SkillWeights {
		sk := p.Skill(w.Skill)
		if sk == nil {
			continue
		}
		share := int64(math.Ceil(float64(c.XP) * w.Weight))
		if progression.GrantSkillXP(sk, share, env.Tuning.Skills.XPCurve) != nil {
			msg := env.Format(flavor.HuntSkillUp, sk.Name, sk.Level)
			appendLog(env, h, state.HuntLogEntry{At: now, Kind: state.HuntLogMilestone, Code: state.HuntCodeSkillUp, Message: msg})
			env.Notify(g, now, msg, sk.Icon, state.NotifyMilestone)
		}
	}
	env.Recompute(g)

	luck := 1 + float64(progression.TotalStats(p, env.Catalogs).Luck)/tu.LuckDivisor
	for _, drop := range c.LootTable {
		if !env.Roll(drop.Chance * luck) {
			continue
		}
		st := h.Loot[drop.ItemID]
		st.ID = drop.ItemID
		st.Quantity++
		h.Loot[drop.ItemID] = st
		res.Loot = append(res.Loot, drop.ItemID)
		appendLog(env, h, state.HuntLogEntry{At: now, Kind: state.HuntLogLoot, Code: state.HuntCodeLoot, Message: env.Format(flavor.HuntLoot, env.Catalogs.ItemName(drop.ItemID))})
	}
	if len(res.Loot) == 0 {
		appendLog(env, h, state.HuntLogEntry{At: now, Kind: state.HuntLogEvent, Code: state.HuntCodeNoLoot, Message: env.Format(flavor.HuntNoLoot)})
	}
	return res
}

// Return sends an active session home without defeat.
func Return(env rules.Env, g *state.GameState, now time.Time) error {
	h := g.HuntingSession
	if h == nil || !h.IsActive || h.IsReturning {
		return ErrNotHunting
	}
	beginReturn(env, g, now, false, state.HuntCodeReturning, flavor.HuntReturning)
	return nil
}

// Refresh restarts the session clock of an active session.
func Refresh(env rules.Env, g *state.GameState, now time.Time) error {
	h := g.HuntingSession
	if h == nil || !h.IsActive || h.IsReturning {
		return ErrNotHunting
	}
	h.StartTime = now
	h.EndTime = now.Add(env.Tuning.Hunting.MaxDuration())
	msg := env.Format(flavor.HuntRefreshed)
	appendLog(env, h, state.HuntLogEntry{At: now, Kind: state.HuntLogEvent, Code: state.HuntCodeRefreshed, Message: msg})
	env.ActionLog(g, now, msg)
	env.Notify(g, now, msg, "", state.NotifyGeneral)
	return nil
}

func beginReturn(env rules.Env, g *state.GameState, now time.Time, defeated bool, code string, key flavor.Key) {
	h := g.HuntingSession
	h.IsActive = false
	h.IsReturning = true
	h.Defeated = h.Defeated || defeated
	h.ReturnEndTime = now.Add(env.Tuning.Hunting.ReturnDuration())
	kind := state.HuntLogEvent
	if defeated {
		kind = state.HuntLogError
	}
	msg := env.Format(key)
	appendLog(env, h, state.HuntLogEntry{At: now, Kind: kind, Code: code, Message: msg})
	env.ActionLog(g, now, msg)
	env.Notify(g, now, msg, "", state.NotifyGeneral)
}

// Settled summarizes a settlement.
type Settled struct {
	Items    int
	Defeated bool
}

// Settle merges loot and the unused slot item into the inventory, fixes
// health and removes the session. A missing session is a no-op, which makes
// settlement safe to re-run on an already settled snapshot.
func Settle(env rules.Env, g *state.GameState, now time.Time) (Settled, bool) {
	h := g.HuntingSession
	if h == nil {
		return Settled{}, false
	}
	p := &g.Player
	out := Settled{Defeated: h.WasDefeated()}
	for _, id := range lootOrder(h.Loot) {
		st := h.Loot[id]
		if st.Quantity <= 0 {
			continue
		}
		p.Inventory = inventory.Add(p.Inventory, id, st.Quantity)
		out.Items += st.Quantity
	}
	if h.HuntSlot != nil {
		p.Inventory = inventory.Add(p.Inventory, h.HuntSlot.ID, h.HuntSlot.Quantity)
	}
	g.HuntingSession = nil
	env.Recompute(g)
	if out.Defeated {
		p.Health = min(1, p.MaxHealth)
		env.ActionLog(g, now, env.Format(flavor.HuntSettledDefeat))
	} else {
		p.Health = p.MaxHealth
		env.ActionLog(g, now, env.Format(flavor.HuntSettled, out.Items))
	}
	return out, true
}

// AddFlavor appends an ambience line while the session is still active.
func AddFlavor(env rules.Env, g *state.GameState, now time.Time) bool {
	h := g.HuntingSession
	if h == nil || !h.IsActive {
		return false
	}
	line := flavor.Source(flavor.English{})
	if env.Text != nil {
		line = env.Text
	}
	appendLog(env, h, state.HuntLogEntry{At: now, Kind: state.HuntLogEvent, Code: state.HuntCodeFlavor, Message: line.Line(env.Rand.IntN)})
	return true
}

func appendLog(env rules.Env, h *state.HuntingSession, e state.HuntLogEntry) {
	h.Log = append(h.Log, e)
	if n := env.Tuning.Limits.HuntLog; n > 0 && len(h.Log) > n {
		h.Log = append([]state.HuntLogEntry(nil), h.Log[len(h.Log)-n:]...)
	}
}

// lootOrder keeps settlement deterministic: map iteration order is random.
func lootOrder(loot map[string]state.ItemStack) []string {
	ids := make([]string, 0, len(loot))
	for id := range loot {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
