package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"idlerealm.ai/internal/clock"
	"idlerealm.ai/internal/flavor"
	"idlerealm.ai/internal/persistence/reconcile"
	"idlerealm.ai/internal/persistence/snapshot"
	"idlerealm.ai/internal/sim/catalogs"
	"idlerealm.ai/internal/sim/inventory"
	"idlerealm.ai/internal/sim/rules"
	"idlerealm.ai/internal/sim/state"
	"idlerealm.ai/internal/sim/tuning"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type memStore struct {
	mu    sync.Mutex
	recs  map[string]snapshot.Record
	saves int
	err   error
}

func newMemStore() *memStore { return &memStore{recs: map[string]snapshot.Record{}} }

func (m *memStore) Load(_ context.Context, u, c string) (snapshot.Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return snapshot.Record{}, false, m.err
	}
	r, ok := m.recs[u+"/"+c]
	return r, ok, nil
}

func (m *memStore) Save(_ context.Context, rec snapshot.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.recs[rec.Header.UserID+"/"+rec.Header.CharacterID] = rec
	return nil
}

func (m *memStore) state(t *testing.T) state.GameState {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	g, err := m.recs["u/c"].Decode()
	if err != nil {
		t.Fatalf("decode stored state: %v", err)
	}
	return g
}

// syncPusher reports every upload immediately with err.
type syncPusher struct {
	mu   sync.Mutex
	recs []snapshot.Record
	err  error
}

func (p *syncPusher) Enqueue(rec snapshot.Record, done func(error)) {
	p.mu.Lock()
	p.recs = append(p.recs, rec)
	err := p.err
	p.mu.Unlock()
	if done != nil {
		done(err)
	}
}

func (p *syncPusher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.recs)
}

type fixture struct {
	clk    *clock.Fake
	local  *memStore
	remote *memStore
	push   *syncPusher
	env    rules.Env
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c, err := catalogs.LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	return &fixture{
		clk:   clock.NewFake(t0),
		local: newMemStore(),
		push:  &syncPusher{},
		env: rules.Env{
			Catalogs: c,
			Tuning:   tuning.Defaults(),
			Rand:     &rules.Scripted{Floats: []float64{0}, Ints: []int{0}},
		},
	}
}

// seed stores g as the local save, written at the given time.
func (f *fixture) seed(t *testing.T, g state.GameState, at time.Time) {
	t.Helper()
	rec, err := snapshot.New("u", "c", &g, at)
	if err != nil {
		t.Fatalf("snapshot.New: %v", err)
	}
	f.local.recs["u/c"] = rec
}

func (f *fixture) open(t *testing.T) (*Session, reconcile.Result) {
	t.Helper()
	cfg := Config{UserID: "u", CharacterID: "c", Env: f.env, Clock: f.clk, Local: f.local, Push: f.push}
	if f.remote != nil {
		cfg.Remote = f.remote
	}
	s, res, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, res
}

func hasNotification(g state.GameState, msg string) bool {
	for _, n := range g.Notifications {
		if n.Message == msg {
			return true
		}
	}
	return false
}

func TestTravelPaysUpFrontAndArrivesOnTime(t *testing.T) {
	f := newFixture(t)
	g := f.env.NewGame()
	g.Player.Gold = 100
	f.seed(t, g, t0)
	s, _ := f.open(t)

	if err := s.Travel("sof_kasabasi"); err != nil {
		t.Fatalf("Travel: %v", err)
	}
	got := s.State()
	if got.Player.Gold != 0 || got.CurrentTravel == nil || got.Player.CurrentLocationID != "liman_kenti" {
		t.Fatalf("after start gold=%d travel=%+v loc=%s", got.Player.Gold, got.CurrentTravel, got.Player.CurrentLocationID)
	}

	f.clk.Advance(7999 * time.Millisecond)
	got = s.State()
	if got.CurrentTravel == nil || got.Player.CurrentLocationID != "liman_kenti" {
		t.Fatalf("arrived early: %+v", got.CurrentTravel)
	}

	f.clk.Advance(time.Millisecond)
	got = s.State()
	if got.CurrentTravel != nil || got.Player.CurrentLocationID != "sof_kasabasi" {
		t.Fatalf("not arrived: travel=%+v loc=%s", got.CurrentTravel, got.Player.CurrentLocationID)
	}
}

func TestTravelWithoutGoldIsRejected(t *testing.T) {
	f := newFixture(t)
	s, _ := f.open(t)
	if err := s.StartAction(state.ActionGathering, "mining", "stone"); err != nil {
		t.Fatalf("StartAction: %v", err)
	}
	if err := s.Travel("krallar_sehri"); err == nil {
		t.Fatalf("expected rejection")
	}
	got := s.State()
	if got.CurrentAction == nil || got.CurrentTravel != nil {
		t.Fatalf("rejected travel changed state: action=%+v travel=%+v", got.CurrentAction, got.CurrentTravel)
	}
	if !hasNotification(got, flavor.English{}.Format(flavor.NotEnoughGold)) {
		t.Fatalf("missing notification: %+v", got.Notifications)
	}
}

func TestActionTicksOnTimer(t *testing.T) {
	f := newFixture(t)
	s, _ := f.open(t)
	if err := s.StartAction(state.ActionGathering, "mining", "stone"); err != nil {
		t.Fatalf("StartAction: %v", err)
	}
	f.clk.Advance(18 * time.Second)
	got := s.State()
	if n := inventory.Count(got.Player.Inventory, "stone"); n != 3 {
		t.Fatalf("stone=%d", n)
	}
	if got.CurrentAction.SessionGains.Items != 3 {
		t.Fatalf("gains=%+v", got.CurrentAction.SessionGains)
	}

	if stopped, err := s.StopAction(); err != nil || !stopped {
		t.Fatalf("StopAction stopped=%v err=%v", stopped, err)
	}
	f.clk.Advance(time.Minute)
	if n := inventory.Count(s.State().Player.Inventory, "stone"); n != 3 {
		t.Fatalf("ticked after stop: stone=%d", n)
	}
	if stopped, _ := s.StopAction(); stopped {
		t.Fatalf("second stop reported a running action")
	}
}

func TestUnknownTargetLeavesStateAlone(t *testing.T) {
	f := newFixture(t)
	s, _ := f.open(t)
	before := s.State()
	if err := s.StartAction(state.ActionGathering, "mining", "diamond"); err == nil {
		t.Fatalf("expected error")
	}
	if got := s.State(); got.CurrentAction != nil || len(got.ActionLog) != len(before.ActionLog) {
		t.Fatalf("state changed: %+v", got.CurrentAction)
	}
}

func TestTravelStopsActionAndBlocksOtherActivities(t *testing.T) {
	f := newFixture(t)
	g := f.env.NewGame()
	g.Player.Gold = 500
	f.seed(t, g, t0)
	s, _ := f.open(t)

	if err := s.StartAction(state.ActionGathering, "mining", "stone"); err != nil {
		t.Fatalf("StartAction: %v", err)
	}
	if err := s.Travel("sof_kasabasi"); err != nil {
		t.Fatalf("Travel: %v", err)
	}
	got := s.State()
	if got.CurrentAction != nil || got.CurrentTravel == nil {
		t.Fatalf("action=%+v travel=%+v", got.CurrentAction, got.CurrentTravel)
	}
	f.clk.Advance(6 * time.Second)
	if n := inventory.Count(s.State().Player.Inventory, "stone"); n != 0 {
		t.Fatalf("cancelled action ticked: stone=%d", n)
	}

	f.clk.Advance(time.Second)
	if err := s.StartAction(state.ActionGathering, "mining", "stone"); !errors.Is(err, ErrTraveling) {
		t.Fatalf("StartAction while traveling: %v", err)
	}
	if err := s.StartHunt(""); !errors.Is(err, ErrTraveling) {
		t.Fatalf("StartHunt while traveling: %v", err)
	}
	if s.State().HuntingSession != nil {
		t.Fatalf("hunt created while traveling")
	}
}

func TestHuntStopsActionAndRunsEncounters(t *testing.T) {
	f := newFixture(t)
	s, _ := f.open(t)
	if err := s.StartAction(state.ActionGathering, "mining", "stone"); err != nil {
		t.Fatalf("StartAction: %v", err)
	}
	if err := s.StartHunt(""); err != nil {
		t.Fatalf("StartHunt: %v", err)
	}
	got := s.State()
	if got.CurrentAction != nil || got.HuntingSession == nil || !got.HuntingSession.IsActive {
		t.Fatalf("action=%+v hunt=%+v", got.CurrentAction, got.HuntingSession)
	}

	f.clk.Advance(5 * time.Minute)
	h := s.State().HuntingSession
	if !logHas(h, state.HuntCodeAppeared) || h.Loot["scorpion_stinger"].Quantity != 1 {
		t.Fatalf("no encounter: log=%+v loot=%+v", h.Log, h.Loot)
	}
	if logHas(h, state.HuntCodeFlavor) {
		t.Fatalf("flavor line too early")
	}
	f.clk.Advance(2 * time.Second)
	if !logHas(s.State().HuntingSession, state.HuntCodeFlavor) {
		t.Fatalf("missing flavor line")
	}
	if n := inventory.Count(s.State().Player.Inventory, "stone"); n != 0 {
		t.Fatalf("stopped action ticked: stone=%d", n)
	}

	if err := s.ReturnHunt(); err != nil {
		t.Fatalf("ReturnHunt: %v", err)
	}
	f.clk.Advance(6 * time.Second)
	if h := s.State().HuntingSession; h == nil || !h.IsReturning {
		t.Fatalf("settled early: %+v", h)
	}
	f.clk.Advance(time.Second)
	got = s.State()
	if got.HuntingSession != nil {
		t.Fatalf("not settled: %+v", got.HuntingSession)
	}
	if inventory.Count(got.Player.Inventory, "scorpion_stinger") != 1 || got.Player.Health != got.Player.MaxHealth {
		t.Fatalf("inventory=%+v health=%d/%d", got.Player.Inventory, got.Player.Health, got.Player.MaxHealth)
	}
}

func TestStartingActionSettlesHunt(t *testing.T) {
	f := newFixture(t)
	s, _ := f.open(t)
	if err := s.StartHunt(""); err != nil {
		t.Fatalf("StartHunt: %v", err)
	}
	f.clk.Advance(5 * time.Minute)
	if err := s.StartAction(state.ActionGathering, "mining", "stone"); err != nil {
		t.Fatalf("StartAction: %v", err)
	}
	got := s.State()
	if got.HuntingSession != nil || got.CurrentAction == nil {
		t.Fatalf("hunt=%+v action=%+v", got.HuntingSession, got.CurrentAction)
	}
	if inventory.Count(got.Player.Inventory, "scorpion_stinger") != 1 {
		t.Fatalf("loot not settled: %+v", got.Player.Inventory)
	}
	f.clk.Advance(15 * time.Minute)
	if s.State().HuntingSession != nil {
		t.Fatalf("hunt timer survived")
	}
}

func TestHuntWithoutWeaponIsRejected(t *testing.T) {
	f := newFixture(t)
	g := f.env.NewGame()
	g.Player.Equipment.Weapon = nil
	f.seed(t, g, t0)
	s, _ := f.open(t)
	if err := s.StartAction(state.ActionGathering, "mining", "stone"); err != nil {
		t.Fatalf("StartAction: %v", err)
	}
	if err := s.StartHunt(""); err == nil {
		t.Fatalf("expected rejection")
	}
	if s.State().CurrentAction == nil {
		t.Fatalf("rejected hunt stopped the action")
	}
}

func logHas(h *state.HuntingSession, code string) bool {
	if h == nil {
		return false
	}
	for _, e := range h.Log {
		if e.Code == code {
			return true
		}
	}
	return false
}

func TestResumeArmsSavedActivities(t *testing.T) {
	f := newFixture(t)
	g := f.env.NewGame()
	g.CurrentAction = &state.ActiveAction{
		Name: "Stone", SkillID: "mining", TargetID: "stone", Kind: state.ActionGathering,
		StartTime: t0.Add(-10 * time.Second), NextTickTime: t0.Add(2 * time.Second), TickDuration: 6 * time.Second,
	}
	f.seed(t, g, t0.Add(-10*time.Second))
	s, res := f.open(t)
	if res.Winner != reconcile.SourceLocal {
		t.Fatalf("winner=%s", res.Winner)
	}
	f.clk.Advance(2 * time.Second)
	if n := inventory.Count(s.State().Player.Inventory, "stone"); n != 1 {
		t.Fatalf("stone=%d", n)
	}
}

func TestCloseSavesLatestStateAndStopsTimers(t *testing.T) {
	f := newFixture(t)
	s, _ := f.open(t)
	if err := s.StartAction(state.ActionGathering, "mining", "stone"); err != nil {
		t.Fatalf("StartAction: %v", err)
	}
	f.clk.Advance(12 * time.Second)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if f.clk.Pending() != 0 {
		t.Fatalf("pending timers=%d", f.clk.Pending())
	}
	stored := f.local.state(t)
	if inventory.Count(stored.Player.Inventory, "stone") != 2 || stored.CurrentAction == nil {
		t.Fatalf("stored=%+v", stored.Player.Inventory)
	}
	if err := s.Travel("sof_kasabasi"); !errors.Is(err, ErrClosed) {
		t.Fatalf("after close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestAutosavePushesToRemote(t *testing.T) {
	f := newFixture(t)
	s, _ := f.open(t)
	saves := f.local.saves
	pushed := f.push.count()
	f.clk.Advance(5 * time.Minute)
	if f.local.saves != saves+1 || f.push.count() != pushed+1 {
		t.Fatalf("saves=%d pushed=%d", f.local.saves, f.push.count())
	}
	if !s.LastSaved().Equal(t0.Add(5 * time.Minute)) {
		t.Fatalf("last saved=%v", s.LastSaved())
	}
}

func TestRemoteFailureIsReportedNotFatal(t *testing.T) {
	f := newFixture(t)
	f.push.err = errors.New("503")
	s, _ := f.open(t)
	if err := s.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got := s.State()
	if !hasNotification(got, flavor.English{}.Format(flavor.RemoteSaveFailed)) {
		t.Fatalf("notifications=%+v", got.Notifications)
	}
	if got.IsSaving {
		t.Fatalf("still saving")
	}
}

func TestLocalWinnerIsPushedAndAnnounced(t *testing.T) {
	f := newFixture(t)
	f.remote = newMemStore()
	f.seed(t, f.env.NewGame(), t0.Add(-time.Hour))
	s, res := f.open(t)
	if res.Winner != reconcile.SourceLocal || f.push.count() != 1 {
		t.Fatalf("winner=%s pushed=%d", res.Winner, f.push.count())
	}
	if !hasNotification(s.State(), flavor.English{}.Format(flavor.RemoteSynced)) {
		t.Fatalf("notifications=%+v", s.State().Notifications)
	}
}

func TestRemoteWinnerIsWrittenLocally(t *testing.T) {
	f := newFixture(t)
	f.remote = newMemStore()
	local := f.env.NewGame()
	local.Player.Gold = 5
	f.seed(t, local, t0.Add(-2*time.Hour))
	remote := f.env.NewGame()
	remote.Player.Gold = 77
	rec, _ := snapshot.New("u", "c", &remote, t0.Add(-time.Hour))
	f.remote.recs["u/c"] = rec

	s, res := f.open(t)
	if res.Winner != reconcile.SourceRemote || s.State().Player.Gold != 77 {
		t.Fatalf("winner=%s gold=%d", res.Winner, s.State().Player.Gold)
	}
	if f.local.state(t).Player.Gold != 77 || f.push.count() != 0 {
		t.Fatalf("local gold=%d pushed=%d", f.local.state(t).Player.Gold, f.push.count())
	}
}

func TestUnreachableRemoteFallsBackToLocal(t *testing.T) {
	f := newFixture(t)
	f.remote = newMemStore()
	f.remote.err = errors.New("dial tcp: timeout")
	g := f.env.NewGame()
	g.Player.Gold = 9
	f.seed(t, g, t0)
	s, res := f.open(t)
	if res.Winner != reconcile.SourceLocal || s.State().Player.Gold != 9 {
		t.Fatalf("winner=%s", res.Winner)
	}
	if !hasNotification(s.State(), flavor.English{}.Format(flavor.RemoteUnavailable)) {
		t.Fatalf("notifications=%+v", s.State().Notifications)
	}
}

func TestSetStatsConservesPoints(t *testing.T) {
	f := newFixture(t)
	g := f.env.NewGame()
	g.Player.StatPoints = 3
	f.seed(t, g, t0)
	s, _ := f.open(t)

	base := s.State().Player.Stats
	bad := []struct {
		stats     state.Stats
		remaining int
	}{
		{base.With("strength", 4), 0},
		{base.With("strength", 3), 1},
		{base.With("strength", 4), -1},
		{base.With("luck", -5).With("strength", 8), 0},
	}
	for i, tc := range bad {
		if err := s.SetStats(tc.stats, tc.remaining); !errors.Is(err, ErrBadStats) {
			t.Fatalf("case %d: err=%v", i, err)
		}
	}

	want := base.With("endurance", 2).With("luck", 1)
	if err := s.SetStats(want, 0); err != nil {
		t.Fatalf("SetStats: %v", err)
	}
	got := s.State().Player
	if got.Stats != want || got.StatPoints != 0 {
		t.Fatalf("stats=%+v points=%d", got.Stats, got.StatPoints)
	}
	if got.MaxHealth != 80+2*want.Endurance {
		t.Fatalf("max health=%d", got.MaxHealth)
	}
}

func TestEquipUseAndSettings(t *testing.T) {
	f := newFixture(t)
	g := f.env.NewGame()
	g.Player.Inventory = inventory.Add(g.Player.Inventory, "worn_helmet", 1)
	g.Player.Inventory = inventory.Add(g.Player.Inventory, "basic_health_potion", 2)
	g.Player.Health = 10
	f.seed(t, g, t0)
	s, _ := f.open(t)

	if err := s.Equip("worn_helmet"); err != nil {
		t.Fatalf("Equip: %v", err)
	}
	if got := s.State().Player; got.Equipment.Helmet == nil || inventory.Count(got.Inventory, "worn_helmet") != 0 {
		t.Fatalf("equipment=%+v", got.Equipment)
	}
	if err := s.Unequip(state.SlotHelmet); err != nil {
		t.Fatalf("Unequip: %v", err)
	}
	if err := s.Unequip(state.SlotHelmet); !errors.Is(err, inventory.ErrSlotEmpty) {
		t.Fatalf("second Unequip: %v", err)
	}

	healed, err := s.UseItem("basic_health_potion")
	if err != nil || healed <= 0 {
		t.Fatalf("UseItem healed=%d err=%v", healed, err)
	}
	if got := s.State().Player; inventory.Count(got.Inventory, "basic_health_potion") != 1 || got.Health != 10+healed {
		t.Fatalf("player=%+v", got)
	}

	on := true
	if err := s.UpdateSettings(SettingsPatch{EnableHighContrastMode: &on}); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if st := s.State().Settings; !st.EnableHighContrastMode || st.DisableLevelUpNotifications {
		t.Fatalf("settings=%+v", st)
	}
}

func TestNotificationsReadAndClear(t *testing.T) {
	f := newFixture(t)
	s, _ := f.open(t)
	if err := s.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(s.State().Notifications) == 0 {
		t.Fatalf("no notifications")
	}
	if err := s.MarkNotificationsRead(); err != nil {
		t.Fatalf("MarkNotificationsRead: %v", err)
	}
	for _, n := range s.State().Notifications {
		if !n.Read {
			t.Fatalf("unread: %+v", n)
		}
	}
	if err := s.ClearNotifications(); err != nil {
		t.Fatalf("ClearNotifications: %v", err)
	}
	if n := len(s.State().Notifications); n != 0 {
		t.Fatalf("notifications=%d", n)
	}
}

func TestOnChangeFiresForTimerMutations(t *testing.T) {
	f := newFixture(t)
	var mu sync.Mutex
	changes := 0
	cfg := Config{UserID: "u", CharacterID: "c", Env: f.env, Clock: f.clk, Local: f.local,
		OnChange: func() { mu.Lock(); changes++; mu.Unlock() }}
	s, _, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if err := s.StartAction(state.ActionGathering, "mining", "stone"); err != nil {
		t.Fatalf("StartAction: %v", err)
	}
	f.clk.Advance(12 * time.Second)
	mu.Lock()
	defer mu.Unlock()
	if changes != 2 {
		t.Fatalf("changes=%d", changes)
	}
}

func TestEveryChangeIsSavedRightAway(t *testing.T) {
	f := newFixture(t)
	g := f.env.NewGame()
	g.Player.Gold = 100
	f.seed(t, g, t0)
	s, _ := f.open(t)
	saves, pushed := f.local.saves, f.push.count()

	if err := s.Travel("sof_kasabasi"); err != nil {
		t.Fatalf("Travel: %v", err)
	}
	stored := f.local.state(t)
	if stored.Player.Gold != 0 || stored.CurrentTravel == nil {
		t.Fatalf("stored gold=%d travel=%+v", stored.Player.Gold, stored.CurrentTravel)
	}
	if f.local.saves != saves+1 || f.push.count() != pushed+1 {
		t.Fatalf("saves=%d pushed=%d", f.local.saves, f.push.count())
	}

	// A rejected command writes nothing.
	if err := s.Travel("sof_kasabasi"); err == nil {
		t.Fatalf("second Travel accepted")
	}
	if f.local.saves != saves+1 {
		t.Fatalf("rejected command saved: saves=%d", f.local.saves)
	}

	on := true
	if err := s.UpdateSettings(SettingsPatch{EnableHighContrastMode: &on}); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if !f.local.state(t).Settings.EnableHighContrastMode || f.local.saves != saves+2 {
		t.Fatalf("settings not stored: saves=%d", f.local.saves)
	}
}
