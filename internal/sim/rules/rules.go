// Package rules bundles what every simulation step needs: static content,
// tuning, randomness, display text and the notification/log plumbing.
package rules

import (
	"log"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"idlerealm.ai/internal/flavor"
	"idlerealm.ai/internal/sim/catalogs"
	"idlerealm.ai/internal/sim/progression"
	"idlerealm.ai/internal/sim/state"
	"idlerealm.ai/internal/sim/tuning"
)

// Rand is the randomness the engine consumes. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// NewRand returns a PCG-backed source seeded from seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Journal receives every action-log line and notification, in order.
type Journal interface {
	Record(at time.Time, kind, message string)
}

type Env struct {
	Catalogs *catalogs.Catalogs
	Tuning   tuning.Tuning
	Rand     Rand
	Text     flavor.Source
	Journal  Journal
	Log      *log.Logger

	// Silent suppresses notifications and action-log lines. Offline
	// catch-up runs silent and emits one summary of its own.
	Silent bool
}

// Quiet returns a copy of e with Silent set.
func (e Env) Quiet() Env {
	e.Silent = true
	return e
}

func (e Env) Format(key flavor.Key, args ...any) string {
	if e.Text == nil {
		return flavor.English{}.Format(key, args...)
	}
	return e.Text.Format(key, args...)
}

func (e Env) Logf(format string, args ...any) {
	if e.Log != nil {
		e.Log.Printf(format, args...)
	}
}

// Notify appends a notification unless the player's settings mute its
// category.
func (e Env) Notify(g *state.GameState, now time.Time, msg, icon string, cat state.NotificationCategory) {
	if e.Silent {
		return
	}
	e.ForceNotify(g, now, msg, icon, cat)
}

// ForceNotify ignores Silent. Settings still apply.
func (e Env) ForceNotify(g *state.GameState, now time.Time, msg, icon string, cat state.NotificationCategory) {
	if !g.Settings.Allows(cat) {
		return
	}
	g.PushNotification(state.Notification{
		ID:        uuid.NewString(),
		Message:   msg,
		Icon:      icon,
		Timestamp: now,
	}, e.Tuning.Limits.Notifications)
	if e.Journal != nil {
		e.Journal.Record(now, "notification", msg)
	}
}

// ActionLog prepends a line to the bounded action log.
func (e Env) ActionLog(g *state.GameState, now time.Time, msg string) {
	if e.Silent {
		return
	}
	g.PushActionLog(msg, e.Tuning.Limits.ActionLog)
	if e.Journal != nil {
		e.Journal.Record(now, "action", msg)
	}
}

// GrantSkillXP grants xp to skillID and announces each level reached.
// It returns the number of levels gained.
func (e Env) GrantSkillXP(g *state.GameState, now time.Time, skillID string, xp int64) int {
	sk := g.Player.Skill(skillID)
	if sk == nil {
		return 0
	}
	ups := progression.GrantSkillXP(sk, xp, e.Tuning.Skills.XPCurve)
	for _, lvl := range ups {
		e.Notify(g, now, e.Format(flavor.SkillLevelUp, sk.Name, lvl), sk.Icon, state.NotifyMilestone)
	}
	return len(ups)
}

// GrantPlayerXP grants player XP and announces each level reached.
func (e Env) GrantPlayerXP(g *state.GameState, now time.Time, xp int64) int {
	ups := progression.GrantPlayerXP(&g.Player, xp, e.Tuning.Player)
	for _, lvl := range ups {
		e.Notify(g, now, e.Format(flavor.PlayerLevelUp, lvl, e.Tuning.Player.StatPointsPerLevel), "", state.NotifyLevelUp)
	}
	return len(ups)
}

// Recompute refreshes derived stats after any XP or equipment change.
func (e Env) Recompute(g *state.GameState) {
	progression.RecomputeDerived(&g.Player, e.Catalogs, e.Tuning.Player)
}

// Roll reports whether an event with probability p happens.
func (e Env) Roll(p float64) bool {
	return e.Rand.Float64() < p
}

// Between returns a uniform duration in [lo, hi].
func (e Env) Between(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(e.Rand.IntN(int(hi-lo)+1))
}

// NewGame is the canonical default state of a fresh character.
func (e Env) NewGame() state.GameState {
	return state.GameState{
		Player:        progression.NewPlayer(e.Catalogs, e.Tuning.Player),
		ActionLog:     []string{},
		Notifications: []state.Notification{},
	}
}
