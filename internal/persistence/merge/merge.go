// Package merge reconciles a saved state document against the current
// default state so saves from older or newer builds load without explicit
// migrations.
package merge

import (
	"bytes"
	"encoding/json"
	"fmt"

	"idlerealm.ai/internal/sim/catalogs"
	"idlerealm.ai/internal/sim/state"
)

// Values overlays loaded onto def:
//   - objects recurse key by key, over the default's keys only, so keys the
//     default does not know are dropped and keys the save lacks keep the default;
//   - arrays in the save replace the default array wholesale;
//   - null in the save overrides the default;
//   - where the default is null the save's object is taken as is;
//   - any other value is taken only when its JSON type matches the default's.
func Values(def, loaded any) any {
	if loaded == nil {
		return nil
	}
	switch d := def.(type) {
	case nil:
		if _, ok := loaded.(map[string]any); ok {
			return loaded
		}
		return nil
	case map[string]any:
		l, ok := loaded.(map[string]any)
		if !ok {
			return d
		}
		out := make(map[string]any, len(d))
		for k, dv := range d {
			if lv, ok := l[k]; ok {
				out[k] = Values(dv, lv)
			} else {
				out[k] = dv
			}
		}
		return out
	case []any:
		if l, ok := loaded.([]any); ok {
			return l
		}
		return d
	case json.Number:
		if l, ok := loaded.(json.Number); ok {
			return l
		}
		return d
	case string:
		if l, ok := loaded.(string); ok {
			return l
		}
		return d
	case bool:
		if l, ok := loaded.(bool); ok {
			return l
		}
		return d
	}
	return def
}

// JSON merges two encoded documents with Values.
func JSON(def, loaded []byte) ([]byte, error) {
	dv, err := decode(def)
	if err != nil {
		return nil, fmt.Errorf("default document: %w", err)
	}
	lv, err := decode(loaded)
	if err != nil {
		return nil, fmt.Errorf("saved document: %w", err)
	}
	return json.Marshal(Values(dv, lv))
}

func decode(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// State merges a saved document onto def and decodes the result. Skill
// identity always comes from the catalog; only progress is read from the
// save.
func State(def state.GameState, saved []byte, cat *catalogs.Catalogs) (state.GameState, error) {
	defJSON, err := json.Marshal(&def)
	if err != nil {
		return def, err
	}
	merged, err := JSON(defJSON, saved)
	if err != nil {
		return def, err
	}
	var out state.GameState
	if err := json.Unmarshal(merged, &out); err != nil {
		return def, fmt.Errorf("decode merged state: %w", err)
	}
	out.Player.Skills = CanonicalSkills(cat, out.Player.Skills)
	if out.ActionLog == nil {
		out.ActionLog = []string{}
	}
	if out.Notifications == nil {
		out.Notifications = []state.Notification{}
	}
	// A saved hunt replaces the null default wholesale, so its collections
	// are not filled from any default.
	if h := out.HuntingSession; h != nil {
		if h.Loot == nil {
			h.Loot = map[string]state.ItemStack{}
		}
		if h.Log == nil {
			h.Log = []state.HuntLogEntry{}
		}
	}
	return out, nil
}

// CanonicalSkills returns one record per catalog skill, in catalog order,
// carrying saved progress where the save has it.
func CanonicalSkills(cat *catalogs.Catalogs, saved []state.Skill) []state.Skill {
	byID := make(map[string]state.Skill, len(saved))
	for _, s := range saved {
		byID[s.ID] = s
	}
	out := make([]state.Skill, 0, len(cat.Skills.List))
	for _, d := range cat.Skills.List {
		sk := state.Skill{ID: d.ID, Level: 1, XPToNextLevel: d.XPToNextLevel}
		if s, ok := byID[d.ID]; ok {
			if s.Level >= 1 {
				sk.Level = s.Level
			}
			if s.XP >= 0 {
				sk.XP = s.XP
			}
			if s.XPToNextLevel > 0 {
				sk.XPToNextLevel = s.XPToNextLevel
			}
		}
		sk.Name = d.Name
		sk.Icon = d.Icon
		out = append(out, sk)
	}
	return out
}
