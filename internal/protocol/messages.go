package protocol

import (
	"encoding/json"

	"idlerealm.ai/internal/sim/state"
)

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	UserID          string `json:"user_id"`
	CharacterID     string `json:"character_id"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	SessionID       string            `json:"session_id"`
	UserID          string            `json:"user_id"`
	CharacterID     string            `json:"character_id"`
	Catalogs        map[string]string `json:"catalogs"`
	TuningDigest    string            `json:"tuning_digest,omitempty"`
	// RestoredFrom is "local", "remote" or "fresh".
	RestoredFrom string          `json:"restored_from"`
	Offline      *OfflineSummary `json:"offline,omitempty"`
	State        state.GameState `json:"state"`
}

type OfflineSummary struct {
	Path          string `json:"path"`
	ElapsedMs     int64  `json:"elapsed_ms"`
	ForfeitedMs   int64  `json:"forfeited_ms,omitempty"`
	Ticks         int    `json:"ticks,omitempty"`
	Items         int    `json:"items,omitempty"`
	XP            int64  `json:"xp,omitempty"`
	Encounters    int    `json:"encounters,omitempty"`
	Defeated      bool   `json:"defeated,omitempty"`
	RanOut        bool   `json:"ran_out,omitempty"`
	SettledReturn bool   `json:"settled_return,omitempty"`
	Message       string `json:"message,omitempty"`
}

// CMD (client -> server)
type CmdMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version,omitempty"`
	ID              string          `json:"id"`
	Op              string          `json:"op"`
	Args            json.RawMessage `json:"args,omitempty"`
}

// Command ops.
const (
	OpStartGather        = "start_gather"
	OpStartCraft         = "start_craft"
	OpStopAction         = "stop_action"
	OpStartHunt          = "start_hunt"
	OpRefreshHunt        = "refresh_hunt"
	OpReturnHunt         = "return_hunt"
	OpTravel             = "travel"
	OpEquip              = "equip"
	OpUnequip            = "unequip"
	OpUseItem            = "use_item"
	OpSetStats           = "set_stats"
	OpUpdateSettings     = "update_settings"
	OpMarkRead           = "mark_read"
	OpClearNotifications = "clear_notifications"
	OpSave               = "save"
	OpState              = "state"
)

type ActionArgs struct {
	Skill  string `json:"skill"`
	Target string `json:"target"`
}

type HuntArgs struct {
	SlotItem string `json:"slot_item,omitempty"`
}

type TravelArgs struct {
	Destination string `json:"destination"`
}

type ItemArgs struct {
	Item string `json:"item"`
}

type SlotArgs struct {
	Slot string `json:"slot"`
}

type StatsArgs struct {
	Stats     state.Stats `json:"stats"`
	Remaining int         `json:"remaining"`
}

type SettingsArgs struct {
	DisableLevelUpNotifications   *bool `json:"disable_level_up_notifications,omitempty"`
	DisableMilestoneNotifications *bool `json:"disable_milestone_notifications,omitempty"`
	EnableHighContrastMode        *bool `json:"enable_high_contrast_mode,omitempty"`
}

// RESULT (server -> client), one per CMD.
type ResultMsg struct {
	Type            string           `json:"type"`
	ProtocolVersion string           `json:"protocol_version"`
	ID              string           `json:"id"`
	OK              bool             `json:"ok"`
	Code            string           `json:"code,omitempty"`
	Message         string           `json:"message,omitempty"`
	State           *state.GameState `json:"state,omitempty"`
}

// STATE (server -> client), pushed after timer-driven changes.
type StateMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	State           state.GameState `json:"state"`
}
