package rules

import (
	"testing"
	"time"

	"idlerealm.ai/internal/sim/catalogs"
	"idlerealm.ai/internal/sim/state"
	"idlerealm.ai/internal/sim/tuning"
)

type memJournal struct{ lines []string }

func (j *memJournal) Record(_ time.Time, kind, msg string) {
	j.lines = append(j.lines, kind+":"+msg)
}

func testEnv(t *testing.T) Env {
	t.Helper()
	c, err := catalogs.LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	return Env{Catalogs: c, Tuning: tuning.Defaults(), Rand: &Scripted{}}
}

func TestNotifyHonoursSettingsAndSilence(t *testing.T) {
	env := testEnv(t)
	j := &memJournal{}
	env.Journal = j
	g := env.NewGame()
	now := time.Unix(1000, 0)

	env.Notify(&g, now, "hello", "", state.NotifyGeneral)
	g.Settings.DisableLevelUpNotifications = true
	env.Notify(&g, now, "level", "", state.NotifyLevelUp)
	env.Quiet().Notify(&g, now, "quiet", "", state.NotifyGeneral)
	env.Quiet().ForceNotify(&g, now, "summary", "", state.NotifyGeneral)

	if len(g.Notifications) != 2 || g.Notifications[0].Message != "summary" || g.Notifications[1].Message != "hello" {
		t.Fatalf("notifications=%+v", g.Notifications)
	}
	if g.Notifications[0].ID == "" || g.Notifications[0].ID == g.Notifications[1].ID {
		t.Fatalf("ids not unique: %+v", g.Notifications)
	}
	if len(j.lines) != 2 {
		t.Fatalf("journal=%v", j.lines)
	}
}

func TestNotificationCap(t *testing.T) {
	env := testEnv(t)
	g := env.NewGame()
	for i := 0; i < env.Tuning.Limits.Notifications+10; i++ {
		env.Notify(&g, time.Unix(int64(i), 0), "n", "", state.NotifyGeneral)
	}
	if len(g.Notifications) != env.Tuning.Limits.Notifications {
		t.Fatalf("len=%d", len(g.Notifications))
	}
	if !g.Notifications[0].Timestamp.Equal(time.Unix(int64(env.Tuning.Limits.Notifications+9), 0)) {
		t.Fatalf("newest not first: %v", g.Notifications[0].Timestamp)
	}
}

func TestGrantXPAnnouncesEachLevel(t *testing.T) {
	env := testEnv(t)
	g := env.NewGame()
	now := time.Unix(0, 0)
	if n := env.GrantSkillXP(&g, now, "mining", 50+57); n != 2 {
		t.Fatalf("levels=%d", n)
	}
	if n := env.GrantPlayerXP(&g, now, 300); n != 1 {
		t.Fatalf("player levels=%d", n)
	}
	if len(g.Notifications) != 3 {
		t.Fatalf("notifications=%+v", g.Notifications)
	}
	if env.GrantSkillXP(&g, now, "no_such_skill", 10) != 0 {
		t.Fatalf("unknown skill leveled")
	}
}

func TestBetween(t *testing.T) {
	env := testEnv(t)
	env.Rand = &Scripted{Ints: []int{0, 1 << 62}}
	lo, hi := 5*time.Minute, 12*time.Minute
	if got := env.Between(lo, hi); got != lo {
		t.Fatalf("min: %v", got)
	}
	if got := env.Between(lo, hi); got != hi {
		t.Fatalf("max: %v", got)
	}
	if got := env.Between(hi, lo); got != hi {
		t.Fatalf("inverted: %v", got)
	}
}

func TestNewRandIsDeterministic(t *testing.T) {
	a, b := NewRand(42), NewRand(42)
	for i := 0; i < 5; i++ {
		if a.Float64() != b.Float64() {
			t.Fatalf("diverged at %d", i)
		}
	}
}
