// Package actions resolves gathering and crafting: starting, ticking,
// stopping and bulk catch-up of the single current action.
//
// The package only mutates state. Scheduling the next tick is the session's
// job; it reads NextTickTime after every call.
package actions

import (
	"errors"
	"fmt"
	"math"
	"time"

	"idlerealm.ai/internal/flavor"
	"idlerealm.ai/internal/sim/catalogs"
	"idlerealm.ai/internal/sim/inventory"
	"idlerealm.ai/internal/sim/progression"
	"idlerealm.ai/internal/sim/rules"
	"idlerealm.ai/internal/sim/state"
)

var (
	ErrUnknownSkill   = errors.New("unknown skill")
	ErrUnknownTarget  = errors.New("unknown resource or recipe")
	ErrUnknownKind    = errors.New("unknown action kind")
	ErrInvalidTiming  = errors.New("action duration is not positive")
	ErrNoActiveAction = errors.New("no active action")
)

// Duration resolves the tick length of an action for the player as they are
// now. Gathering applies skill and tool reductions; crafting uses the recipe
// time unchanged.
func Duration(env rules.Env, p *state.PlayerState, kind state.ActionKind, skillID, targetID string) (string, time.Duration, error) {
	if _, ok := env.Catalogs.Skill(skillID); !ok {
		return "", 0, fmt.Errorf("%w: %s", ErrUnknownSkill, skillID)
	}
	switch kind {
	case state.ActionGathering:
		r, ok := env.Catalogs.Resource(skillID, targetID)
		if !ok {
			return "", 0, fmt.Errorf("%w: %s/%s", ErrUnknownTarget, skillID, targetID)
		}
		return r.Name, progression.GatherDuration(p, env.Catalogs, env.Tuning.Gathering, skillID, r), nil
	case state.ActionCrafting:
		r, ok := env.Catalogs.Recipe(skillID, targetID)
		if !ok {
			return "", 0, fmt.Errorf("%w: %s/%s", ErrUnknownTarget, skillID, targetID)
		}
		return r.Name, time.Duration(r.TimeToCraftMs) * time.Millisecond, nil
	}
	return "", 0, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// Start replaces any current action with a new one whose first tick is due
// one duration from now. The previous action is finalized with a summary
// line. On error the state is untouched.
func Start(env rules.Env, g *state.GameState, now time.Time, kind state.ActionKind, skillID, targetID string) error {
	name, d, err := Duration(env, &g.Player, kind, skillID, targetID)
	if err != nil {
		return err
	}
	if d <= 0 {
		return ErrInvalidTiming
	}
	if prev := g.CurrentAction; prev != nil {
		env.ActionLog(g, now, env.Format(flavor.ActionSuperseded, prev.Name, prev.SessionGains.Items, prev.SessionGains.XP))
	}
	g.CurrentAction = &state.ActiveAction{
		Name:         name,
		SkillID:      skillID,
		TargetID:     targetID,
		Kind:         kind,
		StartTime:    now,
		NextTickTime: now.Add(d),
		TickDuration: d,
	}
	env.ActionLog(g, now, env.Format(flavor.ActionStarted, name))
	return nil
}

// Stop clears the current action and logs its session gains. It reports
// whether there was anything to stop.
func Stop(env rules.Env, g *state.GameState, now time.Time) bool {
	a := g.CurrentAction
	if a == nil {
		return false
	}
	env.ActionLog(g, now, env.Format(flavor.ActionStopped, a.Name, a.SessionGains.Items, a.SessionGains.XP))
	g.CurrentAction = nil
	return true
}

// Tick resolves one tick scheduled for at and schedules the next one at
// at+duration. It reports whether the action is still running.
func Tick(env rules.Env, g *state.GameState, at time.Time) bool {
	a := g.CurrentAction
	if a == nil {
		return false
	}
	if a.TickDuration <= 0 {
		abandon(env, g, at)
		return false
	}
	var res Result
	switch a.Kind {
	case state.ActionGathering:
		r, ok := env.Catalogs.Resource(a.SkillID, a.TargetID)
		if !ok {
			abandon(env, g, at)
			return false
		}
		res = gather(env, g, at, a, r, 1)
		env.ActionLog(g, at, env.Format(flavor.Gathered, env.Catalogs.ItemName(r.ItemID), r.XP))
	case state.ActionCrafting:
		r, ok := env.Catalogs.Recipe(a.SkillID, a.TargetID)
		if !ok {
			abandon(env, g, at)
			return false
		}
		if CraftableTicks(g.Player.Inventory, r) < 1 {
			RunOut(env, g, at, r.Name)
			return false
		}
		res = craft(env, g, at, a, r, 1)
		env.ActionLog(g, at, env.Format(flavor.Crafted, r.OutputQuantity, env.Catalogs.ItemName(r.OutputID), r.XP))
	default:
		abandon(env, g, at)
		return false
	}
	a.SessionGains.Items += res.Items
	a.SessionGains.XP += res.XP
	a.NextTickTime = at.Add(a.TickDuration)
	return true
}

// RunOut stops a crafting action whose ingredients are gone.
func RunOut(env rules.Env, g *state.GameState, at time.Time, recipeName string) {
	msg := env.Format(flavor.OutOfMaterials, recipeName)
	env.ActionLog(g, at, msg)
	env.Notify(g, at, msg, "", state.NotifyGeneral)
	g.CurrentAction = nil
}

func abandon(env rules.Env, g *state.GameState, at time.Time) {
	a := g.CurrentAction
	env.Logf("action %s/%s (%s) cannot tick, duration=%v; clearing", a.SkillID, a.TargetID, a.Kind, a.TickDuration)
	env.ActionLog(g, at, env.Format(flavor.ActionInvalid, a.Name))
	g.CurrentAction = nil
}

// Result sums what one or more ticks produced.
type Result struct {
	Ticks    int
	Items    int
	XP       int64
	PlayerXP int64
	ItemID   string
	Rare     map[string]int
}

// ApplyTicks resolves n ticks at once. The outcome equals n sequential calls
// to Tick: item and XP totals are multiplied out before the level-up
// rollover, which is order independent, and rare drops are rolled per tick.
// Crafting is limited to the ingredients on hand; Result.Ticks says how many
// ran. NextTickTime and session gains are left to the caller.
func ApplyTicks(env rules.Env, g *state.GameState, now time.Time, n int) (Result, error) {
	a := g.CurrentAction
	if a == nil {
		return Result{}, ErrNoActiveAction
	}
	if n <= 0 {
		return Result{}, nil
	}
	switch a.Kind {
	case state.ActionGathering:
		r, ok := env.Catalogs.Resource(a.SkillID, a.TargetID)
		if !ok {
			return Result{}, ErrUnknownTarget
		}
		return gather(env, g, now, a, r, n), nil
	case state.ActionCrafting:
		r, ok := env.Catalogs.Recipe(a.SkillID, a.TargetID)
		if !ok {
			return Result{}, ErrUnknownTarget
		}
		return craft(env, g, now, a, r, min(n, CraftableTicks(g.Player.Inventory, r))), nil
	}
	return Result{}, ErrUnknownKind
}

// CraftableTicks is how many times recipe can run on inv. A recipe without
// ingredients is never limited.
func CraftableTicks(inv []state.ItemStack, r catalogs.RecipeDef) int {
	n := math.MaxInt
	for _, in := range r.Ingredients {
		n = min(n, inventory.Count(inv, in.ItemID)/in.Quantity)
	}
	return n
}

func gather(env rules.Env, g *state.GameState, now time.Time, a *state.ActiveAction, r catalogs.ResourceDef, n int) Result {
	res := Result{Ticks: n, Items: n, XP: r.XP * int64(n), ItemID: r.ItemID}
	p := &g.Player
	p.Inventory = inventory.Add(p.Inventory, r.ItemID, n)
	for _, drop := range env.Catalogs.RareDropsFor(a.SkillID) {
		for i := 0; i < n; i++ {
			if !env.Roll(drop.Chance) {
				continue
			}
			p.Inventory = inventory.Add(p.Inventory, drop.ItemID, 1)
			if res.Rare == nil {
				res.Rare = map[string]int{}
			}
			res.Rare[drop.ItemID]++
			msg := env.Format(flavor.RareDrop, env.Catalogs.ItemName(drop.ItemID))
			env.ActionLog(g, now, msg)
			env.Notify(g, now, msg, "", state.NotifyGeneral)
		}
	}
	res.PlayerXP = playerShare(env, r.XP) * int64(n)
	grant(env, g, now, a.SkillID, res.XP, res.PlayerXP)
	return res
}

func craft(env rules.Env, g *state.GameState, now time.Time, a *state.ActiveAction, r catalogs.RecipeDef, n int) Result {
	if n <= 0 {
		return Result{}
	}
	p := &g.Player
	for _, in := range r.Ingredients {
		p.Inventory, _ = inventory.Remove(p.Inventory, in.ItemID, in.Quantity*n)
	}
	p.Inventory = inventory.Add(p.Inventory, r.OutputID, r.OutputQuantity*n)
	res := Result{
		Ticks:    n,
		Items:    r.OutputQuantity * n,
		XP:       r.XP * int64(n),
		PlayerXP: playerShare(env, r.XP) * int64(n),
		ItemID:   r.OutputID,
	}
	grant(env, g, now, a.SkillID, res.XP, res.PlayerXP)
	return res
}

func playerShare(env rules.Env, xp int64) int64 {
	return int64(math.Ceil(float64(xp) * env.Tuning.Gathering.PlayerXPShare))
}

// grant applies skill rollover, then player rollover, then recompute.
func grant(env rules.Env, g *state.GameState, now time.Time, skillID string, skillXP, playerXP int64) {
	env.GrantSkillXP(g, now, skillID, skillXP)
	env.GrantPlayerXP(g, now, playerXP)
	env.Recompute(g)
}
