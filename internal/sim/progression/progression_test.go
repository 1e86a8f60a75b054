package progression

import (
	"testing"
	"time"

	"idlerealm.ai/internal/sim/catalogs"
	"idlerealm.ai/internal/sim/state"
	"idlerealm.ai/internal/sim/tuning"
)

func mustCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	c, err := catalogs.LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	return c
}

func TestGrantSkillXPMultipleLevels(t *testing.T) {
	s := &state.Skill{ID: "mining", Level: 1, XPToNextLevel: 50}
	// 50 + 57 + 65 = 172 crosses three thresholds with 8 left over.
	ups := GrantSkillXP(s, 180, 1.15)
	if len(ups) != 3 || ups[0] != 2 || ups[2] != 4 {
		t.Fatalf("ups=%v", ups)
	}
	if s.Level != 4 || s.XP != 8 || s.XPToNextLevel != 74 {
		t.Fatalf("skill=%+v", s)
	}
}

func TestGrantPlayerXPGrantsStatPoints(t *testing.T) {
	tu := tuning.Defaults().Player
	p := &state.PlayerState{Level: 1, XPToNextLevel: 300}
	ups := GrantPlayerXP(p, 300+360+5, tu)
	if len(ups) != 2 || p.Level != 3 || p.XP != 5 || p.XPToNextLevel != 432 {
		t.Fatalf("ups=%v player=%+v", ups, p)
	}
	if p.StatPoints != 6 {
		t.Fatalf("stat points=%d", p.StatPoints)
	}
}

func TestLevelCapSaturation(t *testing.T) {
	tu := tuning.Defaults().Player
	p := &state.PlayerState{Level: 29, XP: 10, XPToNextLevel: 12}
	ups := GrantPlayerXP(p, 1<<40, tu)
	if len(ups) != 1 || p.Level != 30 || p.XP != 0 || p.XPToNextLevel != Unreachable {
		t.Fatalf("ups=%v player=%+v", ups, p)
	}
	for i := 0; i < 3; i++ {
		if ups := GrantPlayerXP(p, 1000, tu); ups != nil {
			t.Fatalf("capped player leveled: %v", ups)
		}
		if p.XP != 0 || p.Level != 30 {
			t.Fatalf("capped player accumulated: %+v", p)
		}
	}
}

func TestDurationFloor(t *testing.T) {
	g := tuning.Defaults().Gathering
	bases := []time.Duration{time.Millisecond, 6 * time.Second, 30 * time.Second}
	bonuses := []float64{0, 0.05, 0.3, 0.79, 1, 5}
	for _, base := range bases {
		for level := 1; level <= 200; level += 7 {
			for _, bonus := range bonuses {
				d := EffectiveGatherDuration(base, level, bonus, g)
				if d <= 0 || d > base {
					t.Fatalf("base=%v level=%d bonus=%v -> %v", base, level, bonus, d)
				}
			}
		}
	}
}

func TestEffectiveGatherDurationValues(t *testing.T) {
	g := tuning.Defaults().Gathering
	cases := []struct {
		level int
		bonus float64
		want  time.Duration
	}{
		{1, 0, 10 * time.Second},
		{11, 0, 9 * time.Second},
		{11, 0.05, 8500 * time.Millisecond},
		{100, 0, 5 * time.Second},
		{100, 0.5, 2 * time.Second},
	}
	for _, tc := range cases {
		if got := EffectiveGatherDuration(10*time.Second, tc.level, tc.bonus, g); got != tc.want {
			t.Fatalf("level=%d bonus=%v: got %v want %v", tc.level, tc.bonus, got, tc.want)
		}
	}
}

func TestGatherDurationUsesBestTool(t *testing.T) {
	c := mustCatalogs(t)
	g := tuning.Defaults().Gathering
	p := &state.PlayerState{
		Skills:    []state.Skill{{ID: "gathering", Level: 1}},
		Inventory: []state.ItemStack{{ID: "worn_pickaxe", Quantity: 1}, {ID: "copper_pickaxe", Quantity: 1}, {ID: "worn_axe", Quantity: 1}},
	}
	stone, _ := c.Resource("mining", "stone")
	if got := GatherDuration(p, c, g, "mining", stone); got != 5400*time.Millisecond {
		t.Fatalf("mining with copper pickaxe: %v", got)
	}
	oak, _ := c.Resource("woodcutting", "oak_log")
	if got := GatherDuration(p, c, g, "woodcutting", oak); got != 9500*time.Millisecond {
		t.Fatalf("woodcutting with worn axe: %v", got)
	}
	trout, _ := c.Resource("fishing", "trout")
	if got := GatherDuration(p, c, g, "fishing", trout); got != 7*time.Second {
		t.Fatalf("fishing without rod: %v", got)
	}
}

func TestSetBonusNeedsFullArmorSet(t *testing.T) {
	c := mustCatalogs(t)
	p := &state.PlayerState{}
	p.Equipment.Helmet = &state.ItemStack{ID: "worn_helmet", Quantity: 1}
	p.Equipment.Chest = &state.ItemStack{ID: "worn_chest", Quantity: 1}
	p.Equipment.Legs = &state.ItemStack{ID: "worn_legs", Quantity: 1}
	p.Equipment.Boots = &state.ItemStack{ID: "worn_boots", Quantity: 1}
	p.Equipment.Shield = &state.ItemStack{ID: "worn_shield", Quantity: 1}
	if got := SetBonuses(p, c); got != (state.Stats{}) {
		t.Fatalf("shield must not complete the set: %+v", got)
	}
	p.Equipment.Gloves = &state.ItemStack{ID: "worn_gloves", Quantity: 1}
	if got := SetBonuses(p, c); got.Endurance != 2 {
		t.Fatalf("full set: %+v", got)
	}
}

func TestRecomputeDerived(t *testing.T) {
	c := mustCatalogs(t)
	tu := tuning.Defaults().Player
	p := &state.PlayerState{
		Health: 500,
		Stats:  state.Stats{Endurance: 5},
		Skills: []state.Skill{{ID: "mining", Level: 10}, {ID: "gathering", Level: 25}},
	}
	p.Equipment.Chest = &state.ItemStack{ID: "worn_chest", Quantity: 1}
	RecomputeDerived(p, c, tu)
	// 5 base + 2 mining + 2 gathering + 2 chest.
	if p.MaxHealth != 80+2*11 || p.Health != p.MaxHealth {
		t.Fatalf("player=%+v", p)
	}
	p.Health = -4
	RecomputeDerived(p, c, tu)
	if p.Health != 0 {
		t.Fatalf("health not clamped at 0: %d", p.Health)
	}
}

func TestNewPlayer(t *testing.T) {
	c := mustCatalogs(t)
	p := NewPlayer(c, tuning.Defaults().Player)
	if p.MaxHealth != 90 || p.Health != 90 || p.Gold != 50 || p.CurrentLocationID != "liman_kenti" {
		t.Fatalf("player=%+v", p)
	}
	if p.Equipment.Weapon == nil || p.Equipment.Weapon.ID != "starter_sword" {
		t.Fatalf("weapon=%+v", p.Equipment.Weapon)
	}
	if len(p.Skills) != len(c.Skills.List) || p.Skill("mining").XPToNextLevel != 50 {
		t.Fatalf("skills=%+v", p.Skills)
	}
}
