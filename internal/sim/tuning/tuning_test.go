package tuning

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	tu := Defaults()
	if tu.Player.LevelCap != 30 || tu.Player.XPCurve != 1.2 || tu.Skills.XPCurve != 1.15 {
		t.Fatalf("curves: %+v %+v", tu.Player, tu.Skills)
	}
	if got := tu.Hunting.MaxDuration(); got != 2*time.Hour {
		t.Fatalf("max duration: %v", got)
	}
	if got := tu.Hunting.AverageEncounterInterval(); got != 8*time.Minute+30*time.Second {
		t.Fatalf("average interval: %v", got)
	}
	if got := tu.Offline.MaxWindow(); got != 12*time.Hour {
		t.Fatalf("offline window: %v", got)
	}
	if len(tu.Hunting.SkillWeights) != 4 || tu.Hunting.SkillWeights[0].Skill != "hunting" {
		t.Fatalf("weights: %+v", tu.Hunting.SkillWeights)
	}
	if tu.Player.StartingEquipment["weapon"] != "starter_sword" {
		t.Fatalf("starting equipment: %+v", tu.Player.StartingEquipment)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "tuning.yaml")
	raw := []byte(`
player: {level_cap: 10, xp_curve: 1.5, initial_xp_to_next_level: 100}
skills: {xp_curve: 1.1}
gathering: {max_total_reduction: 0.5}
hunting: {max_duration_ms: 1000, encounter_min_ms: 10, encounter_max_ms: 20, endurance_divisor: 5, luck_divisor: 500}
offline: {min_gap_ms: 0, max_window_ms: 1000}
limits: {notifications: 5, action_log: 5, hunt_log: 5, inventory_slots: 5}
`)
	if err := os.WriteFile(p, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.Player.LevelCap != 10 || tu.Hunting.AverageEncounterInterval() != 15*time.Millisecond {
		t.Fatalf("unexpected: %+v", tu)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad yaml":   "player: [",
		"zero cap":   "player: {level_cap: 0}",
		"flat curve": "player: {level_cap: 30, xp_curve: 1, initial_xp_to_next_level: 1}\nskills: {xp_curve: 1.1}",
	}
	for name, raw := range cases {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
