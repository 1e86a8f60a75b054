// Package state defines the persisted shape of a character's game state.
//
// GameState is the aggregate root. It is mutated only by the session
// orchestrator (directly or through the sim packages it calls) and persisted
// as JSON; field names are part of the save format.
package state

import (
	"slices"
	"time"
)

type EquipSlot string

const (
	SlotHelmet EquipSlot = "helmet"
	SlotChest  EquipSlot = "chest"
	SlotLegs   EquipSlot = "legs"
	SlotBoots  EquipSlot = "boots"
	SlotWeapon EquipSlot = "weapon"
	SlotShield EquipSlot = "shield"
	SlotGloves EquipSlot = "gloves"
)

// EquipSlots lists every slot in display order.
var EquipSlots = []EquipSlot{SlotHelmet, SlotChest, SlotLegs, SlotBoots, SlotWeapon, SlotShield, SlotGloves}

// ArmorSlots are the slots counted towards set bonuses.
var ArmorSlots = []EquipSlot{SlotHelmet, SlotChest, SlotLegs, SlotBoots, SlotGloves}

type Stats struct {
	Strength  int `json:"strength"`
	Agility   int `json:"agility"`
	Tactics   int `json:"tactics"`
	Endurance int `json:"endurance"`
	Charisma  int `json:"charisma"`
	Luck      int `json:"luck"`
}

func (s Stats) Add(o Stats) Stats {
	return Stats{
		Strength:  s.Strength + o.Strength,
		Agility:   s.Agility + o.Agility,
		Tactics:   s.Tactics + o.Tactics,
		Endurance: s.Endurance + o.Endurance,
		Charisma:  s.Charisma + o.Charisma,
		Luck:      s.Luck + o.Luck,
	}
}

func (s Stats) Sum() int {
	return s.Strength + s.Agility + s.Tactics + s.Endurance + s.Charisma + s.Luck
}

// Get returns the attribute by its config name ("strength", ...).
func (s Stats) Get(name string) int {
	switch name {
	case "strength":
		return s.Strength
	case "agility":
		return s.Agility
	case "tactics":
		return s.Tactics
	case "endurance":
		return s.Endurance
	case "charisma":
		return s.Charisma
	case "luck":
		return s.Luck
	}
	return 0
}

// With returns a copy with the named attribute increased by v. Unknown names
// are ignored.
func (s Stats) With(name string, v int) Stats {
	switch name {
	case "strength":
		s.Strength += v
	case "agility":
		s.Agility += v
	case "tactics":
		s.Tactics += v
	case "endurance":
		s.Endurance += v
	case "charisma":
		s.Charisma += v
	case "luck":
		s.Luck += v
	}
	return s
}

// ItemStack is one inventory entry. Template metadata (equip slot, bonuses,
// heal fraction) is resolved from the item catalog by ID.
type ItemStack struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

type Skill struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Icon          string `json:"icon,omitempty"`
	Level         int    `json:"level"`
	XP            int64  `json:"xp"`
	XPToNextLevel int64  `json:"xp_to_next_level"`
}

type Equipment struct {
	Helmet *ItemStack `json:"helmet"`
	Chest  *ItemStack `json:"chest"`
	Legs   *ItemStack `json:"legs"`
	Boots  *ItemStack `json:"boots"`
	Weapon *ItemStack `json:"weapon"`
	Shield *ItemStack `json:"shield"`
	Gloves *ItemStack `json:"gloves"`
}

// Slot returns a pointer to the slot field so callers can read or replace it.
func (e *Equipment) Slot(s EquipSlot) **ItemStack {
	switch s {
	case SlotHelmet:
		return &e.Helmet
	case SlotChest:
		return &e.Chest
	case SlotLegs:
		return &e.Legs
	case SlotBoots:
		return &e.Boots
	case SlotWeapon:
		return &e.Weapon
	case SlotShield:
		return &e.Shield
	case SlotGloves:
		return &e.Gloves
	}
	return nil
}

// Get returns the item in slot s, or nil.
func (e Equipment) Get(s EquipSlot) *ItemStack {
	p := (&e).Slot(s)
	if p == nil {
		return nil
	}
	return *p
}

type PlayerState struct {
	Level             int         `json:"level"`
	XP                int64       `json:"xp"`
	XPToNextLevel     int64       `json:"xp_to_next_level"`
	Health            int         `json:"health"`
	MaxHealth         int         `json:"max_health"`
	Gold              int64       `json:"gold"`
	Inventory         []ItemStack `json:"inventory"`
	Skills            []Skill     `json:"skills"`
	Stats             Stats       `json:"stats"`
	StatPoints        int         `json:"stat_points"`
	Equipment         Equipment   `json:"equipment"`
	CurrentLocationID string      `json:"current_location_id"`
}

// Skill returns the progress record for id, or nil.
func (p *PlayerState) Skill(id string) *Skill {
	for i := range p.Skills {
		if p.Skills[i].ID == id {
			return &p.Skills[i]
		}
	}
	return nil
}

// SkillLevel returns the level of skill id, defaulting to 1 when unknown.
func (p *PlayerState) SkillLevel(id string) int {
	if s := p.Skill(id); s != nil {
		return s.Level
	}
	return 1
}

type ActionKind string

const (
	ActionGathering ActionKind = "gathering"
	ActionCrafting  ActionKind = "crafting"
)

type SessionGains struct {
	Items int   `json:"items"`
	XP    int64 `json:"xp"`
}

type ActiveAction struct {
	Name         string        `json:"name"`
	SkillID      string        `json:"skill_id"`
	TargetID     string        `json:"target_id"`
	Kind         ActionKind    `json:"action_type"`
	StartTime    time.Time     `json:"start_time"`
	NextTickTime time.Time     `json:"next_tick_time"`
	TickDuration time.Duration `json:"tick_duration"`
	SessionGains SessionGains  `json:"session_gains"`
}

type TravelState struct {
	DestinationID   string    `json:"destination_id"`
	DestinationName string    `json:"destination_name"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
}

type HuntLogKind string

const (
	HuntLogEvent     HuntLogKind = "event"
	HuntLogLoot      HuntLogKind = "loot"
	HuntLogMilestone HuntLogKind = "milestone"
	HuntLogError     HuntLogKind = "error"
	HuntLogHealth    HuntLogKind = "health"
	HuntLogDamage    HuntLogKind = "damage"
	HuntLogEncounter HuntLogKind = "encounter"
)

// Hunt log codes identify entries independently of their display text.
const (
	HuntCodeStarted     = "started"
	HuntCodeFlavor      = "flavor"
	HuntCodeNoCreatures = "no_creatures"
	HuntCodeAppeared    = "appeared"
	HuntCodeDamage      = "damage"
	HuntCodeDefeat      = "defeat"
	HuntCodeHeal        = "heal"
	HuntCodeSkillUp     = "skill_up"
	HuntCodeLoot        = "loot"
	HuntCodeNoLoot      = "no_loot"
	HuntCodeReturning   = "returning"
	HuntCodeRefreshed   = "refreshed"
	HuntCodeTimeout     = "timeout"
)

type HuntLogEntry struct {
	At         time.Time   `json:"timestamp"`
	Message    string      `json:"message"`
	Kind       HuntLogKind `json:"type"`
	Code       string      `json:"code,omitempty"`
	Icon       string      `json:"icon,omitempty"`
	CreatureID string      `json:"creature_id,omitempty"`
}

type HuntingSession struct {
	IsActive      bool                 `json:"is_active"`
	StartTime     time.Time            `json:"start_time"`
	EndTime       time.Time            `json:"end_time"`
	LocationID    string               `json:"location_id"`
	Log           []HuntLogEntry       `json:"log"`
	Loot          map[string]ItemStack `json:"loot"`
	HuntSlot      *ItemStack           `json:"hunt_slot"`
	IsReturning   bool                 `json:"is_returning"`
	ReturnEndTime time.Time            `json:"return_end_time"`
	Defeated      bool                 `json:"defeated,omitempty"`
}

// WasDefeated reports whether the session ended in defeat. Older saves did not
// store the flag, so the tail of the log is consulted as well.
func (h *HuntingSession) WasDefeated() bool {
	if h.Defeated {
		return true
	}
	for i := len(h.Log) - 1; i >= 0 && i >= len(h.Log)-5; i-- {
		if h.Log[i].Code == HuntCodeDefeat {
			return true
		}
	}
	return false
}

type NotificationCategory string

const (
	NotifyGeneral   NotificationCategory = "general"
	NotifyLevelUp   NotificationCategory = "level-up"
	NotifyMilestone NotificationCategory = "milestone"
)

type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Icon      string    `json:"icon,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

type Settings struct {
	DisableLevelUpNotifications   bool `json:"disable_level_up_notifications"`
	DisableMilestoneNotifications bool `json:"disable_milestone_notifications"`
	EnableHighContrastMode        bool `json:"enable_high_contrast_mode"`
}

// Allows reports whether a notification of category c should be delivered.
func (s Settings) Allows(c NotificationCategory) bool {
	switch c {
	case NotifyLevelUp:
		return !s.DisableLevelUpNotifications
	case NotifyMilestone:
		return !s.DisableMilestoneNotifications
	}
	return true
}

type GameState struct {
	Player         PlayerState     `json:"player"`
	IsSaving       bool            `json:"is_saving"`
	IsLoading      bool            `json:"is_loading"`
	LastSaved      time.Time       `json:"last_saved"`
	CurrentAction  *ActiveAction   `json:"current_action"`
	ActionLog      []string        `json:"action_log"`
	CurrentTravel  *TravelState    `json:"current_travel"`
	HuntingSession *HuntingSession `json:"hunting_session"`
	Notifications  []Notification  `json:"notifications"`
	Settings       Settings        `json:"settings"`
}

// PushActionLog prepends msg to the action log, keeping at most max entries.
func (g *GameState) PushActionLog(msg string, max int) {
	g.ActionLog = pushFront(g.ActionLog, msg, max)
}

// PushNotification prepends n, keeping at most max entries.
func (g *GameState) PushNotification(n Notification, max int) {
	g.Notifications = pushFront(g.Notifications, n, max)
}

func pushFront[T any](list []T, v T, max int) []T {
	out := make([]T, 0, len(list)+1)
	out = append(out, v)
	out = append(out, list...)
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

// Clone returns a deep copy suitable for handing to callers outside the
// owning session.
func (g *GameState) Clone() GameState {
	out := *g
	p := &out.Player
	p.Inventory = slices.Clone(g.Player.Inventory)
	p.Skills = slices.Clone(g.Player.Skills)
	for _, s := range EquipSlots {
		if it := g.Player.Equipment.Get(s); it != nil {
			cp := *it
			*p.Equipment.Slot(s) = &cp
		}
	}
	if g.CurrentAction != nil {
		a := *g.CurrentAction
		out.CurrentAction = &a
	}
	if g.CurrentTravel != nil {
		t := *g.CurrentTravel
		out.CurrentTravel = &t
	}
	if g.HuntingSession != nil {
		h := *g.HuntingSession
		h.Log = slices.Clone(g.HuntingSession.Log)
		h.Loot = make(map[string]ItemStack, len(g.HuntingSession.Loot))
		for k, v := range g.HuntingSession.Loot {
			h.Loot[k] = v
		}
		if g.HuntingSession.HuntSlot != nil {
			slot := *g.HuntingSession.HuntSlot
			h.HuntSlot = &slot
		}
		out.HuntingSession = &h
	}
	out.ActionLog = slices.Clone(g.ActionLog)
	out.Notifications = slices.Clone(g.Notifications)
	return out
}
