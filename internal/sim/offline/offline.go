// Package offline folds the time a character spent disconnected into its
// state: pending settlement, travel arrival, bulk action ticks or a bulk
// hunt, followed by a single summary notification.
package offline

import (
	"fmt"
	"strings"
	"time"

	"idlerealm.ai/internal/flavor"
	"idlerealm.ai/internal/sim/actions"
	"idlerealm.ai/internal/sim/hunting"
	"idlerealm.ai/internal/sim/rules"
	"idlerealm.ai/internal/sim/state"
	"idlerealm.ai/internal/sim/travel"
)

type Path string

const (
	PathNone    Path = ""
	PathTravel  Path = "travel"
	PathAction  Path = "action"
	PathHunt    Path = "hunt"
	PathSkipped Path = "skipped"
)

// Summary reports what catch-up did.
type Summary struct {
	Elapsed   time.Duration
	Forfeited time.Duration
	Settled   bool
	Path      Path
	Ticks     int
	Items     int
	XP        int64
	Encounter int
	Defeated  bool
	RanOut    bool
	Message   string
}

// Reconcile advances g from lastSaved to now. Gaps shorter than the minimum
// are ignored; gaps longer than the window are truncated. Nothing it does is
// announced except the final summary.
func Reconcile(env rules.Env, g *state.GameState, lastSaved, now time.Time) Summary {
	tu := env.Tuning.Offline
	elapsed := now.Sub(lastSaved)
	if lastSaved.IsZero() || elapsed < tu.MinGap() {
		return Summary{Path: PathSkipped, Elapsed: max(elapsed, 0)}
	}
	sum := Summary{Elapsed: elapsed}
	if elapsed > tu.MaxWindow() {
		sum.Forfeited = elapsed - tu.MaxWindow()
		sum.Elapsed = tu.MaxWindow()
	}
	end := lastSaved.Add(sum.Elapsed)
	quiet := env.Quiet()
	var msgs []string

	if h := g.HuntingSession; h != nil && h.IsReturning && !now.Before(h.ReturnEndTime) {
		s, _ := hunting.Settle(quiet, g, h.ReturnEndTime)
		sum.Settled = true
		sum.Items += s.Items
		msgs = append(msgs, env.Format(flavor.OfflineSettled, s.Items))
	}

	// An arrival covers the whole gap. A trip still under way leaves a
	// running hunt to its own catch-up.
	switch {
	case travel.Due(g, end):
		sum.Path = PathTravel
		name := g.CurrentTravel.DestinationName
		travel.Arrive(quiet, g, g.CurrentTravel.EndTime, g.CurrentTravel.DestinationID)
		msgs = append(msgs, env.Format(flavor.OfflineArrived, name))
	case g.CurrentAction != nil:
		sum.Path = PathAction
		if m := catchUpAction(env, quiet, g, end, now, &sum); m != "" {
			msgs = append(msgs, m)
		}
	case g.HuntingSession != nil && g.HuntingSession.IsActive:
		sum.Path = PathHunt
		msgs = append(msgs, catchUpHunt(env, quiet, g, lastSaved, now, &sum))
	case g.CurrentTravel != nil:
		sum.Path = PathTravel
	}

	if len(msgs) > 0 {
		sum.Message = strings.Join(msgs, " ")
		env.ForceNotify(g, now, sum.Message, "", state.NotifyGeneral)
	}
	return sum
}

func catchUpAction(env, quiet rules.Env, g *state.GameState, end, now time.Time, sum *Summary) string {
	a := g.CurrentAction
	d := a.TickDuration
	if d <= 0 {
		if _, fresh, err := actions.Duration(env, &g.Player, a.Kind, a.SkillID, a.TargetID); err == nil {
			d = fresh
		}
	}
	if d <= 0 {
		env.Logf("offline: action %s/%s has non-positive duration %v; clearing", a.SkillID, a.TargetID, d)
		g.PushActionLog(env.Format(flavor.ActionInvalid, a.Name), env.Tuning.Limits.ActionLog)
		g.CurrentAction = nil
		return ""
	}
	a.TickDuration = d

	next := a.NextTickTime
	if next.IsZero() {
		next = a.StartTime.Add(d)
	}
	due := 0
	if !end.Before(next) {
		due = 1 + int(end.Sub(next)/d)
	}
	res, err := actions.ApplyTicks(quiet, g, end, due)
	if err != nil {
		env.Logf("offline: action %s/%s: %v; clearing", a.SkillID, a.TargetID, err)
		g.CurrentAction = nil
		return ""
	}
	sum.Ticks, sum.Items, sum.XP = res.Ticks, sum.Items+res.Items, res.XP
	a.SessionGains.Items += res.Items
	a.SessionGains.XP += res.XP

	took := humanize(sum.Elapsed)
	name := env.Catalogs.ItemName(res.ItemID)
	if res.Ticks < due {
		sum.RanOut = true
		g.CurrentAction = nil
		return env.Format(flavor.OfflineRanOut, took, res.Items, name, res.XP)
	}
	// Resume where the partial tick left off, shifted by any forfeited time.
	a.NextTickTime = now.Add(next.Add(time.Duration(due) * d).Sub(end))
	if res.Ticks == 0 {
		return ""
	}
	if a.Kind == state.ActionCrafting {
		return env.Format(flavor.OfflineCrafted, took, res.Items, name, res.XP)
	}
	return env.Format(flavor.OfflineGathered, took, res.Items, name, res.XP)
}

func catchUpHunt(env, quiet rules.Env, g *state.GameState, lastSaved, now time.Time, sum *Summary) string {
	tu := env.Tuning.Hunting
	window := min(sum.Elapsed, tu.MaxDuration())
	n := 0
	if avg := tu.AverageEncounterInterval(); avg > 0 {
		n = int(window / avg)
	}
	at := lastSaved
	for i := 0; i < n; i++ {
		at = at.Add(tu.AverageEncounterInterval())
		sum.Encounter++
		if hunting.Resolve(quiet, g, at).Defeated {
			sum.Defeated = true
			break
		}
	}
	s, _ := hunting.Settle(quiet, g, now)
	sum.Items += s.Items
	sum.Defeated = sum.Defeated || s.Defeated
	took := humanize(sum.Elapsed)
	if sum.Defeated {
		return env.Format(flavor.OfflineHuntDefeat, took, sum.Encounter, s.Items)
	}
	return env.Format(flavor.OfflineHunt, took, sum.Encounter, s.Items)
}

func humanize(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dm", m)
}
