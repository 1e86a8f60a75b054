package merge

import (
	"encoding/json"
	"testing"

	"idlerealm.ai/internal/sim/catalogs"
	"idlerealm.ai/internal/sim/rules"
	"idlerealm.ai/internal/sim/state"
	"idlerealm.ai/internal/sim/tuning"
)

func testEnv(t *testing.T) rules.Env {
	t.Helper()
	c, err := catalogs.LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	return rules.Env{Catalogs: c, Tuning: tuning.Defaults()}
}

func TestValuesKeepsDefaultsAndDropsUnknownKeys(t *testing.T) {
	def := map[string]any{"a": json.Number("1"), "b": "x", "nested": map[string]any{"c": true}}
	loaded := map[string]any{"a": json.Number("7"), "zzz": "drop me", "nested": map[string]any{"d": 1}}
	got := Values(def, loaded).(map[string]any)
	if got["a"] != json.Number("7") || got["b"] != "x" {
		t.Fatalf("got=%v", got)
	}
	if _, ok := got["zzz"]; ok {
		t.Fatalf("unknown key survived: %v", got)
	}
	nested := got["nested"].(map[string]any)
	if nested["c"] != true || len(nested) != 1 {
		t.Fatalf("nested=%v", nested)
	}
}

func TestValuesTypeMismatchKeepsDefault(t *testing.T) {
	def := map[string]any{"gold": json.Number("10"), "name": "a", "list": []any{"x"}}
	loaded := map[string]any{"gold": "lots", "name": json.Number("3"), "list": map[string]any{}}
	got := Values(def, loaded).(map[string]any)
	if got["gold"] != json.Number("10") || got["name"] != "a" || len(got["list"].([]any)) != 1 {
		t.Fatalf("got=%v", got)
	}
}

func TestValuesArraysReplaceAndNullOverrides(t *testing.T) {
	def := map[string]any{"inv": []any{"a", "b"}, "slot": map[string]any{"id": "x"}, "opt": nil}
	loaded := map[string]any{"inv": []any{}, "slot": nil, "opt": map[string]any{"k": "v"}}
	got := Values(def, loaded).(map[string]any)
	if len(got["inv"].([]any)) != 0 {
		t.Fatalf("inv=%v", got["inv"])
	}
	if got["slot"] != nil {
		t.Fatalf("slot=%v", got["slot"])
	}
	if got["opt"].(map[string]any)["k"] != "v" {
		t.Fatalf("opt=%v", got["opt"])
	}
}

func TestStateFillsMissingFieldsFromDefault(t *testing.T) {
	env := testEnv(t)
	def := env.NewGame()
	saved := []byte(`{"player":{"level":4,"gold":250,"legacy_field":1},"future_flag":true}`)
	g, err := State(def, saved, env.Catalogs)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if g.Player.Level != 4 || g.Player.Gold != 250 {
		t.Fatalf("player=%+v", g.Player)
	}
	if g.Player.CurrentLocationID != def.Player.CurrentLocationID || g.Player.MaxHealth != def.Player.MaxHealth {
		t.Fatalf("defaults lost: %+v", g.Player)
	}
	if len(g.Player.Skills) != len(env.Catalogs.Skills.List) {
		t.Fatalf("skills=%d", len(g.Player.Skills))
	}
	if !g.Settings.Allows(state.NotifyLevelUp) {
		t.Fatalf("settings default lost: %+v", g.Settings)
	}
}

func TestStateSkillIdentityComesFromCatalog(t *testing.T) {
	env := testEnv(t)
	saved := []byte(`{"player":{"skills":[
		{"id":"mining","name":"Old Mining","icon":"?","level":9,"xp":12,"xp_to_next_level":300},
		{"id":"basket_weaving","name":"Gone","level":50}
	]}}`)
	g, err := State(env.NewGame(), saved, env.Catalogs)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if g.Player.Skill("basket_weaving") != nil {
		t.Fatalf("retired skill kept")
	}
	m := g.Player.Skill("mining")
	def, _ := env.Catalogs.Skill("mining")
	if m == nil || m.Level != 9 || m.XP != 12 || m.XPToNextLevel != 300 || m.Name != def.Name || m.Icon != def.Icon {
		t.Fatalf("mining=%+v", m)
	}
	w := g.Player.Skill("woodcutting")
	if w == nil || w.Level != 1 || w.XP != 0 {
		t.Fatalf("woodcutting=%+v", w)
	}
	if len(g.Player.Skills) != len(env.Catalogs.Skills.List) {
		t.Fatalf("skills=%d", len(g.Player.Skills))
	}
}

func TestStateRejectsGarbage(t *testing.T) {
	env := testEnv(t)
	if _, err := State(env.NewGame(), []byte(`{not json`), env.Catalogs); err == nil {
		t.Fatalf("expected error")
	}
}

func TestStateFillsHuntCollectionsMissingFromSave(t *testing.T) {
	env := testEnv(t)
	for _, saved := range []string{
		`{"hunting_session":{"is_active":true,"location_id":"liman_kenti"}}`,
		`{"hunting_session":{"is_active":true,"location_id":"liman_kenti","loot":null,"log":null}}`,
	} {
		g, err := State(env.NewGame(), []byte(saved), env.Catalogs)
		if err != nil {
			t.Fatalf("State(%s): %v", saved, err)
		}
		h := g.HuntingSession
		if h == nil || !h.IsActive || h.Loot == nil || h.Log == nil {
			t.Fatalf("State(%s): hunt=%+v", saved, h)
		}
	}
}
