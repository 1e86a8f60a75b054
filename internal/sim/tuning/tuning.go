// Package tuning holds the numeric balance of the engine. Values come from
// tuning.yaml; Defaults mirrors the embedded file so tests and tools can run
// without one.
package tuning

import (
	"fmt"
	"io/fs"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"idlerealm.ai/configs"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	Player      Player      `yaml:"player"`
	Skills      Skills      `yaml:"skills"`
	Gathering   Gathering   `yaml:"gathering"`
	Hunting     Hunting     `yaml:"hunting"`
	Offline     Offline     `yaml:"offline"`
	Limits      Limits      `yaml:"limits"`
	Persistence Persistence `yaml:"persistence"`
}

type StackSpec struct {
	ID       string `yaml:"id"`
	Quantity int    `yaml:"quantity"`
}

type Player struct {
	LevelCap             int               `yaml:"level_cap"`
	XPCurve              float64           `yaml:"xp_curve"`
	InitialXPToNextLevel int64             `yaml:"initial_xp_to_next_level"`
	StatPointsPerLevel   int               `yaml:"stat_points_per_level"`
	BaseMaxHealth        int               `yaml:"base_max_health"`
	HealthPerEndurance   int               `yaml:"health_per_endurance"`
	StartingGold         int64             `yaml:"starting_gold"`
	StartingLocation     string            `yaml:"starting_location"`
	BaseStat             int               `yaml:"base_stat"`
	StartingInventory    []StackSpec       `yaml:"starting_inventory"`
	StartingEquipment    map[string]string `yaml:"starting_equipment"`
}

type Skills struct {
	XPCurve float64 `yaml:"xp_curve"`
}

type Gathering struct {
	ReductionPerLevel float64 `yaml:"reduction_per_level"`
	MaxSkillReduction float64 `yaml:"max_skill_reduction"`
	MaxTotalReduction float64 `yaml:"max_total_reduction"`
	PlayerXPShare     float64 `yaml:"player_xp_share"`
}

type SkillWeight struct {
	Skill  string  `yaml:"skill"`
	Weight float64 `yaml:"weight"`
}

type Hunting struct {
	SkillID             string        `yaml:"skill_id"`
	MaxDurationMs       int64         `yaml:"max_duration_ms"`
	EncounterMinMs      int64         `yaml:"encounter_min_ms"`
	EncounterMaxMs      int64         `yaml:"encounter_max_ms"`
	ReturnDurationMs    int64         `yaml:"return_duration_ms"`
	ResumeDelayMs       int64         `yaml:"resume_delay_ms"`
	FlavorDelayMs       int64         `yaml:"flavor_delay_ms"`
	CriticalHealthRatio float64       `yaml:"critical_health_ratio"`
	DefaultHealFraction float64       `yaml:"default_heal_fraction"`
	PlayerXPShare       float64       `yaml:"player_xp_share"`
	LuckDivisor         float64       `yaml:"luck_divisor"`
	EnduranceDivisor    int           `yaml:"endurance_divisor"`
	SkillWeights        []SkillWeight `yaml:"skill_weights"`
}

func (h Hunting) MaxDuration() time.Duration    { return ms(h.MaxDurationMs) }
func (h Hunting) EncounterMin() time.Duration   { return ms(h.EncounterMinMs) }
func (h Hunting) EncounterMax() time.Duration   { return ms(h.EncounterMaxMs) }
func (h Hunting) ReturnDuration() time.Duration { return ms(h.ReturnDurationMs) }
func (h Hunting) ResumeDelay() time.Duration    { return ms(h.ResumeDelayMs) }
func (h Hunting) FlavorDelay() time.Duration    { return ms(h.FlavorDelayMs) }

// AverageEncounterInterval is the midpoint of the encounter window. Offline
// catch-up divides elapsed time by it instead of replaying random delays.
func (h Hunting) AverageEncounterInterval() time.Duration {
	return ms((h.EncounterMinMs + h.EncounterMaxMs) / 2)
}

type Offline struct {
	MinGapMs    int64 `yaml:"min_gap_ms"`
	MaxWindowMs int64 `yaml:"max_window_ms"`
}

func (o Offline) MinGap() time.Duration    { return ms(o.MinGapMs) }
func (o Offline) MaxWindow() time.Duration { return ms(o.MaxWindowMs) }

type Limits struct {
	Notifications  int `yaml:"notifications"`
	ActionLog      int `yaml:"action_log"`
	HuntLog        int `yaml:"hunt_log"`
	InventorySlots int `yaml:"inventory_slots"`
}

type Persistence struct {
	AutosaveMs int64 `yaml:"autosave_ms"`
}

func (p Persistence) Autosave() time.Duration { return ms(p.AutosaveMs) }

func ms(v int64) time.Duration { return time.Duration(v) * time.Millisecond }

// Defaults returns the tuning embedded in the binary.
func Defaults() Tuning {
	raw, err := fs.ReadFile(configs.FS, "tuning.yaml")
	if err != nil {
		panic(fmt.Sprintf("embedded tuning.yaml: %v", err))
	}
	t, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return t
}

func Load(path string) (Tuning, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, err
	}
	return Parse(raw)
}

// Parse decodes raw over the zero value and validates the result.
func Parse(raw []byte) (Tuning, error) {
	var t Tuning
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.Player.LevelCap < 1:
		return fmt.Errorf("player.level_cap must be >= 1")
	case t.Player.XPCurve <= 1 || t.Skills.XPCurve <= 1:
		return fmt.Errorf("xp curves must be > 1")
	case t.Player.InitialXPToNextLevel <= 0:
		return fmt.Errorf("player.initial_xp_to_next_level must be positive")
	case t.Gathering.MaxTotalReduction < 0 || t.Gathering.MaxTotalReduction >= 1:
		return fmt.Errorf("gathering.max_total_reduction must be in [0,1)")
	case t.Hunting.EncounterMinMs <= 0 || t.Hunting.EncounterMaxMs < t.Hunting.EncounterMinMs:
		return fmt.Errorf("hunting encounter window is invalid")
	case t.Hunting.MaxDurationMs <= 0:
		return fmt.Errorf("hunting.max_duration_ms must be positive")
	case t.Hunting.EnduranceDivisor <= 0 || t.Hunting.LuckDivisor <= 0:
		return fmt.Errorf("hunting divisors must be positive")
	case t.Offline.MinGapMs < 0 || t.Offline.MaxWindowMs <= 0:
		return fmt.Errorf("offline window is invalid")
	case t.Limits.Notifications <= 0 || t.Limits.ActionLog <= 0 || t.Limits.HuntLog <= 0 || t.Limits.InventorySlots <= 0:
		return fmt.Errorf("limits must be positive")
	case math.IsNaN(t.Hunting.CriticalHealthRatio):
		return fmt.Errorf("hunting.critical_health_ratio is NaN")
	}
	return nil
}
