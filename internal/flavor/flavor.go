// Package flavor supplies the display text for log lines and notifications.
// The engine only picks message keys; wording lives here so it can be swapped
// for another language without touching simulation code.
package flavor

import "fmt"

type Key string

const (
	ActionStarted     Key = "action.started"
	ActionStopped     Key = "action.stopped"
	ActionSuperseded  Key = "action.superseded"
	Gathered          Key = "action.gathered"
	Crafted           Key = "action.crafted"
	RareDrop          Key = "action.rare_drop"
	OutOfMaterials    Key = "action.out_of_materials"
	ActionInvalid     Key = "action.invalid_duration"
	SkillLevelUp      Key = "progress.skill_level_up"
	PlayerLevelUp     Key = "progress.player_level_up"
	TravelStarted     Key = "travel.started"
	TravelArrived     Key = "travel.arrived"
	NotEnoughGold     Key = "travel.not_enough_gold"
	HuntStarted       Key = "hunt.started"
	HuntNoCreatures   Key = "hunt.no_creatures"
	HuntAppeared      Key = "hunt.appeared"
	HuntDamage        Key = "hunt.damage"
	HuntDefeat        Key = "hunt.defeat"
	HuntHeal          Key = "hunt.heal"
	HuntXP            Key = "hunt.xp"
	HuntSkillUp       Key = "hunt.skill_up"
	HuntLoot          Key = "hunt.loot"
	HuntNoLoot        Key = "hunt.no_loot"
	HuntReturning     Key = "hunt.returning"
	HuntRefreshed     Key = "hunt.refreshed"
	HuntTimeout       Key = "hunt.timeout"
	HuntSettled       Key = "hunt.settled"
	HuntSettledDefeat Key = "hunt.settled_defeat"
	OfflineGathered   Key = "offline.gathered"
	OfflineCrafted    Key = "offline.crafted"
	OfflineRanOut     Key = "offline.ran_out"
	OfflineHunt       Key = "offline.hunt"
	OfflineHuntDefeat Key = "offline.hunt_defeat"
	OfflineArrived    Key = "offline.arrived"
	OfflineSettled    Key = "offline.settled"
	Equipped          Key = "item.equipped"
	Unequipped        Key = "item.unequipped"
	InventoryFull     Key = "item.inventory_full"
	ItemUsed          Key = "item.used"
	StatsUpdated      Key = "player.stats_updated"
	RemoteSaveFailed  Key = "save.remote_failed"
	RemoteSynced      Key = "save.remote_synced"
	SaveCompleted     Key = "save.completed"
	RemoteUnavailable Key = "save.remote_unavailable"
	HuntCancelled     Key = "hunt.cancelled"
)

// Source renders a message for key. Line picks one hunt ambience line given
// a function returning a uniform index in [0,n).
type Source interface {
	Format(key Key, args ...any) string
	Line(pick func(n int) int) string
}

var english = map[Key]string{
	ActionStarted:     "Started %s.",
	ActionStopped:     "Stopped %s. Gained %d items and %d XP.",
	ActionSuperseded:  "Finished %s (%d items, %d XP) to start something new.",
	Gathered:          "Gathered 1 %s (+%d XP).",
	Crafted:           "Crafted %d %s (+%d XP).",
	RareDrop:          "Rare find! You got a %s.",
	OutOfMaterials:    "Ran out of materials for %s.",
	ActionInvalid:     "%s could not continue and was stopped.",
	SkillLevelUp:      "%s reached level %d!",
	PlayerLevelUp:     "You reached level %d! +%d stat points.",
	TravelStarted:     "Traveling to %s...",
	TravelArrived:     "Arrived at %s.",
	NotEnoughGold:     "Not enough gold for the journey.",
	HuntStarted:       "The hunt begins in %s.",
	HuntNoCreatures:   "Nothing left to hunt here.",
	HuntAppeared:      "A %s appeared!",
	HuntDamage:        "%s hit you for %d damage.",
	HuntDefeat:        "You were defeated by %s. Dragging yourself back to town...",
	HuntHeal:          "Used %s and restored %d health.",
	HuntXP:            "Defeated %s (+%d XP).",
	HuntSkillUp:       "%s reached level %d!",
	HuntLoot:          "Found %s.",
	HuntNoLoot:        "Nothing found.",
	HuntReturning:     "Heading back to town...",
	HuntRefreshed:     "You press on. The hunt is extended.",
	HuntTimeout:       "Exhausted, you head back to town.",
	HuntSettled:       "Back from the hunt with %d items.",
	HuntSettledDefeat: "Back in town, barely alive.",
	OfflineGathered:   "While you were away (%s) you gathered %d %s and earned %d XP.",
	OfflineCrafted:    "While you were away (%s) you crafted %d %s and earned %d XP.",
	OfflineRanOut:     "While you were away (%s) you crafted %d %s and earned %d XP before running out of materials.",
	OfflineHunt:       "While you were away (%s) you fought %d creatures and brought back %d items.",
	OfflineHuntDefeat: "While you were away (%s) you fought %d creatures before being defeated. You brought back %d items.",
	OfflineArrived:    "While you were away you arrived at %s.",
	OfflineSettled:    "Your hunting party returned with %d items.",
	Equipped:          "Equipped %s.",
	Unequipped:        "Unequipped %s.",
	InventoryFull:     "Inventory full.",
	ItemUsed:          "Used %s and restored %d health.",
	StatsUpdated:      "Stats updated.",
	RemoteSaveFailed:  "Cloud save failed. Progress is kept on this device.",
	RemoteSynced:      "Progress synced to the cloud.",
	SaveCompleted:     "Game saved.",
	RemoteUnavailable: "Could not reach the cloud. Playing from this device's save.",
	HuntCancelled:     "You leave the hunt to take up your trade.",
}

var ambience = []string{
	"You follow fresh tracks through the brush.",
	"A distant howl echoes across the hills.",
	"You sharpen your blade while catching your breath.",
	"The wind shifts. Something is watching.",
	"You check your pack and press on.",
	"Broken branches hint at something large nearby.",
}

type English struct{}

func (English) Format(key Key, args ...any) string {
	f, ok := english[key]
	if !ok {
		return string(key)
	}
	return fmt.Sprintf(f, args...)
}

func (English) Line(pick func(n int) int) string {
	return ambience[pick(len(ambience))]
}
