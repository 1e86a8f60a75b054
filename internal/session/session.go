// Package session owns the live state of one character. Every mutation,
// whether a caller operation or a timer callback, runs under the session
// lock against the current state; timers carry a generation number so a
// callback armed for a cancelled activity does nothing when it fires.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"idlerealm.ai/internal/clock"
	"idlerealm.ai/internal/flavor"
	"idlerealm.ai/internal/persistence/reconcile"
	"idlerealm.ai/internal/persistence/snapshot"
	"idlerealm.ai/internal/sim/actions"
	"idlerealm.ai/internal/sim/hunting"
	"idlerealm.ai/internal/sim/inventory"
	"idlerealm.ai/internal/sim/rules"
	"idlerealm.ai/internal/sim/state"
	"idlerealm.ai/internal/sim/travel"
)

var (
	ErrTraveling = errors.New("not available while traveling")
	ErrClosed    = errors.New("session closed")
	ErrBadStats  = errors.New("invalid stat allocation")
)

// LocalStore is the synchronous device store.
type LocalStore interface {
	reconcile.Loader
	Save(ctx context.Context, rec snapshot.Record) error
}

// Pusher uploads records in the background and reports the outcome through
// done. *r2s3.Mirror satisfies it.
type Pusher interface {
	Enqueue(rec snapshot.Record, done func(error))
}

type Config struct {
	UserID      string
	CharacterID string

	// Env must not be shared with another session: its Rand is used
	// without further locking.
	Env   rules.Env
	Clock clock.Clock
	Local LocalStore

	// Remote and Push are optional.
	Remote reconcile.Loader
	Push   Pusher

	Log *log.Logger

	// OnChange runs after every mutation that no caller asked for (timer
	// ticks, arrivals, remote save results), outside the session lock.
	OnChange func()
}

type Session struct {
	id  string
	cfg Config
	env rules.Env

	mu        sync.Mutex
	g         state.GameState
	closed    bool
	lastSaved time.Time

	actionTimer   clock.Timer
	huntTimer     clock.Timer
	flavorTimer   clock.Timer
	travelTimer   clock.Timer
	autosaveTimer clock.Timer

	actionGen uint64
	huntGen   uint64
	travelGen uint64
}

// Open loads the character from both stores, reconciles the saves, applies
// offline progress and re-arms every activity that survived. The reconciled
// state is saved locally right away so the same offline time is never
// credited twice.
func Open(ctx context.Context, cfg Config) (*Session, reconcile.Result, error) {
	if cfg.UserID == "" || cfg.CharacterID == "" {
		return nil, reconcile.Result{}, fmt.Errorf("open session: missing user or character id")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Local == nil {
		return nil, reconcile.Result{}, fmt.Errorf("open session: no local store")
	}
	env := cfg.Env
	if env.Log == nil {
		env.Log = cfg.Log
	}
	env.Silent = false

	now := cfg.Clock.Now()
	f := reconcile.Fetch(ctx, cfg.Local, cfg.Remote, cfg.UserID, cfg.CharacterID)
	if f.LocalErr != nil {
		env.Logf("session: local load %s/%s: %v", cfg.UserID, cfg.CharacterID, f.LocalErr)
	}
	if f.RemoteErr != nil {
		env.Logf("session: remote load %s/%s: %v", cfg.UserID, cfg.CharacterID, f.RemoteErr)
	}
	res := reconcile.Resolve(env, f, now)

	s := &Session{
		id:        uuid.NewString(),
		cfg:       cfg,
		env:       env,
		g:         res.State,
		lastSaved: res.LastSaved,
	}
	if f.RemoteErr != nil {
		env.Notify(&s.g, now, env.Format(flavor.RemoteUnavailable), "", state.NotifyGeneral)
	}
	env.Logf("session %s: opened %s/%s from %s, offline path=%q elapsed=%s",
		s.id, cfg.UserID, cfg.CharacterID, res.Winner, res.Offline.Path, res.Offline.Elapsed)

	s.mu.Lock()
	s.resumeLocked(now)
	s.armAutosaveLocked()
	rec, err := s.saveLocalLocked(ctx, now)
	res.State = s.g.Clone()
	s.mu.Unlock()
	if err != nil {
		s.Close()
		return nil, res, err
	}

	if res.Winner == reconcile.SourceLocal {
		s.push(rec, true)
	}
	return s, res, nil
}

func (s *Session) ID() string { return s.id }

// State returns a copy of the live state.
func (s *Session) State() state.GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.g.Clone()
}

// Close cancels every timer and performs a final local save of the latest
// state. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.stopActionLocked()
	s.stopHuntTimersLocked()
	s.stopTimer(&s.travelTimer)
	s.stopTimer(&s.autosaveTimer)
	s.travelGen++

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := s.saveLocalLocked(ctx, s.cfg.Clock.Now())
	s.closed = true
	if err != nil {
		s.env.Logf("session %s: final save: %v", s.id, err)
	}
	return err
}

// do runs op under the lock with the current time. A successful op is
// saved locally and queued for upload. A failed save is logged only: the
// change itself already happened and the next save carries it.
func (s *Session) do(op func(now time.Time) error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	now := s.cfg.Clock.Now()
	if err := op(now); err != nil {
		s.mu.Unlock()
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	rec, err := s.saveLocalLocked(ctx, now)
	cancel()
	s.mu.Unlock()
	if err != nil {
		s.env.Logf("session %s: save after change: %v", s.id, err)
		return nil
	}
	s.push(rec, false)
	return nil
}

// timer runs a callback armed for generation gen of the counter at genp.
// Nothing happens if the session closed or the generation moved on.
func (s *Session) timer(genp *uint64, gen uint64, fn func(now time.Time)) func() {
	return func() {
		s.mu.Lock()
		if s.closed || *genp != gen {
			s.mu.Unlock()
			return
		}
		fn(s.cfg.Clock.Now())
		s.mu.Unlock()
		s.changed()
	}
}

func (s *Session) changed() {
	if s.cfg.OnChange != nil {
		s.cfg.OnChange()
	}
}

func (s *Session) stopTimer(t *clock.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (s *Session) resumeLocked(now time.Time) {
	if s.g.CurrentAction != nil {
		s.armActionLocked(now)
	}
	if h := s.g.HuntingSession; h != nil {
		s.huntGen++
		switch {
		case h.IsReturning:
			s.armReturnLocked(h.ReturnEndTime.Sub(now))
		case h.IsActive:
			s.armEncounterLocked(s.env.Tuning.Hunting.ResumeDelay())
		}
	}
	if tr := s.g.CurrentTravel; tr != nil {
		s.armTravelLocked(now, tr.DestinationID, tr.EndTime)
	}
}

// Profession actions.

// StartAction begins gathering or crafting. A hunt in progress is settled
// first; travel blocks it.
func (s *Session) StartAction(kind state.ActionKind, skillID, targetID string) error {
	return s.do(func(now time.Time) error {
		if s.g.CurrentTravel != nil {
			return ErrTraveling
		}
		if _, _, err := actions.Duration(s.env, &s.g.Player, kind, skillID, targetID); err != nil {
			return err
		}
		if s.g.HuntingSession != nil {
			s.stopHuntTimersLocked()
			s.env.ActionLog(&s.g, now, s.env.Format(flavor.HuntCancelled))
			hunting.Settle(s.env, &s.g, now)
		}
		if err := actions.Start(s.env, &s.g, now, kind, skillID, targetID); err != nil {
			return err
		}
		s.armActionLocked(now)
		return nil
	})
}

// StopAction ends the running action. It reports whether one was running.
func (s *Session) StopAction() (bool, error) {
	var stopped bool
	err := s.do(func(now time.Time) error {
		s.stopActionLocked()
		stopped = actions.Stop(s.env, &s.g, now)
		return nil
	})
	return stopped, err
}

func (s *Session) stopActionLocked() {
	s.actionGen++
	s.stopTimer(&s.actionTimer)
}

func (s *Session) armActionLocked(now time.Time) {
	s.stopActionLocked()
	a := s.g.CurrentAction
	if a == nil {
		return
	}
	gen := s.actionGen
	s.actionTimer = s.cfg.Clock.AfterFunc(a.NextTickTime.Sub(now), s.timer(&s.actionGen, gen, s.onActionTick))
}

func (s *Session) onActionTick(now time.Time) {
	a := s.g.CurrentAction
	if a == nil {
		return
	}
	if actions.Tick(s.env, &s.g, a.NextTickTime) {
		s.armActionLocked(now)
	} else {
		s.stopActionLocked()
	}
}

// Hunting.

// StartHunt opens a hunting session in the current region, stopping any
// profession action. It is rejected while traveling.
func (s *Session) StartHunt(slotItemID string) error {
	return s.do(func(now time.Time) error {
		if s.g.CurrentTravel != nil {
			return ErrTraveling
		}
		if _, err := hunting.Check(s.env, &s.g, slotItemID); err != nil {
			return err
		}
		s.stopActionLocked()
		actions.Stop(s.env, &s.g, now)
		if err := hunting.Start(s.env, &s.g, now, slotItemID); err != nil {
			return err
		}
		s.stopHuntTimersLocked()
		s.armEncounterLocked(hunting.NextDelay(s.env))
		return nil
	})
}

// ReturnHunt sends the active session home.
func (s *Session) ReturnHunt() error {
	return s.do(func(now time.Time) error {
		if err := hunting.Return(s.env, &s.g, now); err != nil {
			return err
		}
		s.stopHuntTimersLocked()
		s.armReturnLocked(s.env.Tuning.Hunting.ReturnDuration())
		return nil
	})
}

// RefreshHunt extends the active session.
func (s *Session) RefreshHunt() error {
	return s.do(func(now time.Time) error {
		return hunting.Refresh(s.env, &s.g, now)
	})
}

func (s *Session) stopHuntTimersLocked() {
	s.huntGen++
	s.stopTimer(&s.huntTimer)
	s.stopTimer(&s.flavorTimer)
}

func (s *Session) armEncounterLocked(d time.Duration) {
	gen := s.huntGen
	s.stopTimer(&s.huntTimer)
	s.huntTimer = s.cfg.Clock.AfterFunc(d, s.timer(&s.huntGen, gen, s.onEncounter))
}

func (s *Session) armReturnLocked(d time.Duration) {
	gen := s.huntGen
	s.stopTimer(&s.huntTimer)
	s.huntTimer = s.cfg.Clock.AfterFunc(d, s.timer(&s.huntGen, gen, s.onReturned))
}

func (s *Session) onEncounter(now time.Time) {
	switch hunting.Encounter(s.env, &s.g, now) {
	case hunting.OutcomeContinue:
		gen := s.huntGen
		s.stopTimer(&s.flavorTimer)
		s.flavorTimer = s.cfg.Clock.AfterFunc(s.env.Tuning.Hunting.FlavorDelay(), s.timer(&s.huntGen, gen, func(now time.Time) {
			hunting.AddFlavor(s.env, &s.g, now)
		}))
		s.armEncounterLocked(hunting.NextDelay(s.env))
	case hunting.OutcomeReturning:
		s.stopHuntTimersLocked()
		s.armReturnLocked(s.env.Tuning.Hunting.ReturnDuration())
	}
}

func (s *Session) onReturned(now time.Time) {
	s.stopHuntTimersLocked()
	hunting.Settle(s.env, &s.g, now)
}

// Travel.

// Travel starts a trip, stopping any profession action once the trip is
// known to be valid. Hunting is left alone.
func (s *Session) Travel(destinationID string) error {
	return s.do(func(now time.Time) error {
		if _, err := travel.Check(s.env, &s.g, destinationID); err == nil {
			s.stopActionLocked()
			actions.Stop(s.env, &s.g, now)
		}
		if err := travel.Start(s.env, &s.g, now, destinationID); err != nil {
			return err
		}
		tr := s.g.CurrentTravel
		s.armTravelLocked(now, tr.DestinationID, tr.EndTime)
		return nil
	})
}

func (s *Session) armTravelLocked(now time.Time, destinationID string, at time.Time) {
	s.travelGen++
	s.stopTimer(&s.travelTimer)
	gen := s.travelGen
	s.travelTimer = s.cfg.Clock.AfterFunc(at.Sub(now), s.timer(&s.travelGen, gen, func(now time.Time) {
		travel.Arrive(s.env, &s.g, now, destinationID)
		s.travelTimer = nil
	}))
}

// Items and player.

func (s *Session) Equip(itemID string) error {
	return s.do(func(now time.Time) error {
		if _, err := inventory.Equip(&s.g.Player, s.env.Catalogs, itemID); err != nil {
			return err
		}
		s.env.Recompute(&s.g)
		s.env.ActionLog(&s.g, now, s.env.Format(flavor.Equipped, s.env.Catalogs.ItemName(itemID)))
		return nil
	})
}

func (s *Session) Unequip(slot state.EquipSlot) error {
	return s.do(func(now time.Time) error {
		id, err := inventory.Unequip(&s.g.Player, slot, s.env.Tuning.Limits.InventorySlots)
		if errors.Is(err, inventory.ErrInventoryFull) {
			s.env.Notify(&s.g, now, s.env.Format(flavor.InventoryFull), "", state.NotifyGeneral)
		}
		if err != nil {
			return err
		}
		s.env.Recompute(&s.g)
		s.env.ActionLog(&s.g, now, s.env.Format(flavor.Unequipped, s.env.Catalogs.ItemName(id)))
		return nil
	})
}

// UseItem consumes one healing item and returns the health restored.
func (s *Session) UseItem(itemID string) (int, error) {
	var healed int
	err := s.do(func(now time.Time) error {
		h, err := inventory.Use(&s.g.Player, s.env.Catalogs, itemID)
		if err != nil {
			return err
		}
		healed = h
		s.env.ActionLog(&s.g, now, s.env.Format(flavor.ItemUsed, s.env.Catalogs.ItemName(itemID), h))
		return nil
	})
	return healed, err
}

// SetStats replaces the attributes and the unallocated pool. Points can be
// moved around but never created; every attribute stays at least 1.
func (s *Session) SetStats(stats state.Stats, remaining int) error {
	return s.do(func(now time.Time) error {
		p := &s.g.Player
		if remaining < 0 || stats.Sum()+remaining != p.Stats.Sum()+p.StatPoints {
			return ErrBadStats
		}
		for _, v := range []int{stats.Strength, stats.Agility, stats.Tactics, stats.Endurance, stats.Charisma, stats.Luck} {
			if v < 1 {
				return ErrBadStats
			}
		}
		p.Stats = stats
		p.StatPoints = remaining
		s.env.Recompute(&s.g)
		s.env.ActionLog(&s.g, now, s.env.Format(flavor.StatsUpdated))
		return nil
	})
}

// SettingsPatch changes only the toggles that are set.
type SettingsPatch struct {
	DisableLevelUpNotifications   *bool `json:"disable_level_up_notifications,omitempty"`
	DisableMilestoneNotifications *bool `json:"disable_milestone_notifications,omitempty"`
	EnableHighContrastMode        *bool `json:"enable_high_contrast_mode,omitempty"`
}

func (s *Session) UpdateSettings(p SettingsPatch) error {
	return s.do(func(time.Time) error {
		st := &s.g.Settings
		if p.DisableLevelUpNotifications != nil {
			st.DisableLevelUpNotifications = *p.DisableLevelUpNotifications
		}
		if p.DisableMilestoneNotifications != nil {
			st.DisableMilestoneNotifications = *p.DisableMilestoneNotifications
		}
		if p.EnableHighContrastMode != nil {
			st.EnableHighContrastMode = *p.EnableHighContrastMode
		}
		return nil
	})
}

func (s *Session) MarkNotificationsRead() error {
	return s.do(func(time.Time) error {
		for i := range s.g.Notifications {
			s.g.Notifications[i].Read = true
		}
		return nil
	})
}

func (s *Session) ClearNotifications() error {
	return s.do(func(time.Time) error {
		s.g.Notifications = []state.Notification{}
		return nil
	})
}
