// Package catalogs is the read-only static content repository: items, skills,
// gatherable resources, recipes, creatures, regions and armor sets.
package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"idlerealm.ai/configs"
	"idlerealm.ai/internal/sim/state"
)

type Catalogs struct {
	Items     ItemCatalog
	Skills    SkillCatalog
	Resources ResourceCatalog
	RareDrops RareDropCatalog
	Recipes   RecipeCatalog
	Creatures CreatureCatalog
	Regions   RegionCatalog
	Sets      SetCatalog
}

type ItemKind string

const (
	ItemPotion    ItemKind = "potion"
	ItemMaterial  ItemKind = "material"
	ItemEquipment ItemKind = "equipment"
	ItemMisc      ItemKind = "misc"
)

// SlotTool marks gathering tools. Tools count while carried or equipped but
// cannot occupy an equipment slot.
const SlotTool = "tool"

type ItemDef struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Icon            string      `json:"icon"`
	Kind            ItemKind    `json:"kind"`
	Rarity          string      `json:"rarity"`
	ToolType        string      `json:"tool_type,omitempty"`
	EfficiencyBonus float64     `json:"efficiency_bonus,omitempty"`
	EquipSlot       string      `json:"equip_slot,omitempty"`
	HealAmount      float64     `json:"heal_amount,omitempty"`
	Stats           state.Stats `json:"stats,omitempty"`
	LevelReq        int         `json:"level_req,omitempty"`
	Set             string      `json:"set,omitempty"`
}

// Equippable reports whether the item can be placed in an equipment slot.
func (d ItemDef) Equippable() bool {
	return d.EquipSlot != "" && d.EquipSlot != SlotTool
}

type ItemCatalog struct {
	ByID   map[string]ItemDef
	Digest string
}

type SkillDef struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Icon           string `json:"icon"`
	Kind           string `json:"kind"`
	XPToNextLevel  int64  `json:"xp_to_next_level"`
	BonusStat      string `json:"bonus_stat,omitempty"`
	LevelsPerPoint int    `json:"levels_per_point,omitempty"`
	ToolType       string `json:"tool_type,omitempty"`
}

type SkillCatalog struct {
	// List keeps file order; it is the canonical skill order of a new character.
	List   []SkillDef
	ByID   map[string]SkillDef
	Digest string
}

type ResourceDef struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	LevelReq       int    `json:"level_req"`
	XP             int64  `json:"xp"`
	Icon           string `json:"icon"`
	ItemID         string `json:"item_id"`
	TimeToGatherMs int64  `json:"time_to_gather_ms"`
}

type ResourceCatalog struct {
	BySkill map[string][]ResourceDef
	Digest  string
}

type Drop struct {
	ItemID string  `json:"item_id"`
	Chance float64 `json:"chance"`
}

type RareDropCatalog struct {
	BySkill map[string][]Drop
	Digest  string
}

type Ingredient struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type RecipeDef struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	OutputID       string       `json:"output_id"`
	OutputQuantity int          `json:"output_quantity"`
	LevelReq       int          `json:"level_req"`
	XP             int64        `json:"xp"`
	TimeToCraftMs  int64        `json:"time_to_craft_ms"`
	Icon           string       `json:"icon"`
	Ingredients    []Ingredient `json:"ingredients"`
}

type RecipeCatalog struct {
	BySkill map[string][]RecipeDef
	Digest  string
}

type CreatureDef struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	LevelReq  int    `json:"level_req"`
	XP        int64  `json:"xp"`
	LootTable []Drop `json:"loot_table"`
}

type CreatureCatalog struct {
	ByRegion map[string][]CreatureDef
	Digest   string
}

type RegionDef struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	LevelReq     int    `json:"level_req"`
	TravelCost   int64  `json:"travel_cost"`
	TravelTimeMs int64  `json:"travel_time_ms"`
	Description  string `json:"description"`
}

type RegionCatalog struct {
	List   []RegionDef
	ByID   map[string]RegionDef
	Digest string
}

type SetDef struct {
	Name   string      `json:"name"`
	Pieces int         `json:"pieces"`
	Bonus  state.Stats `json:"bonus"`
}

type SetCatalog struct {
	ByName map[string]SetDef
	Digest string
}

// Load reads every content table from configDir.
func Load(configDir string) (*Catalogs, error) {
	return LoadFS(os.DirFS(configDir))
}

// LoadDefault loads the content embedded in the binary.
func LoadDefault() (*Catalogs, error) {
	return LoadFS(configs.FS)
}

func LoadFS(fsys fs.FS) (*Catalogs, error) {
	var c Catalogs

	if err := loadItems(fsys, "items.json", &c.Items); err != nil {
		return nil, err
	}
	if err := loadSkills(fsys, "skills.json", &c.Skills); err != nil {
		return nil, err
	}
	if err := loadResources(fsys, "resources.json", &c.Resources); err != nil {
		return nil, err
	}
	if err := loadRareDrops(fsys, "rare_drops.json", &c.RareDrops); err != nil {
		return nil, err
	}
	if err := loadRecipes(fsys, "recipes.json", &c.Recipes); err != nil {
		return nil, err
	}
	if err := loadCreatures(fsys, "creatures.json", &c.Creatures); err != nil {
		return nil, err
	}
	if err := loadRegions(fsys, "regions.json", &c.Regions); err != nil {
		return nil, err
	}
	if err := loadSets(fsys, "sets.json", &c.Sets); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Digests maps each table file to the sha256 of its raw bytes.
func (c *Catalogs) Digests() map[string]string {
	return map[string]string{
		"items":      c.Items.Digest,
		"skills":     c.Skills.Digest,
		"resources":  c.Resources.Digest,
		"rare_drops": c.RareDrops.Digest,
		"recipes":    c.Recipes.Digest,
		"creatures":  c.Creatures.Digest,
		"regions":    c.Regions.Digest,
		"sets":       c.Sets.Digest,
	}
}

func (c *Catalogs) Item(id string) (ItemDef, bool) {
	d, ok := c.Items.ByID[id]
	return d, ok
}

// ItemName falls back to the id for unknown items.
func (c *Catalogs) ItemName(id string) string {
	if d, ok := c.Items.ByID[id]; ok && d.Name != "" {
		return d.Name
	}
	return id
}

func (c *Catalogs) Skill(id string) (SkillDef, bool) {
	d, ok := c.Skills.ByID[id]
	return d, ok
}

func (c *Catalogs) Resource(skillID, id string) (ResourceDef, bool) {
	for _, r := range c.Resources.BySkill[skillID] {
		if r.ID == id {
			return r, true
		}
	}
	return ResourceDef{}, false
}

func (c *Catalogs) Recipe(skillID, id string) (RecipeDef, bool) {
	for _, r := range c.Recipes.BySkill[skillID] {
		if r.ID == id {
			return r, true
		}
	}
	return RecipeDef{}, false
}

func (c *Catalogs) Region(id string) (RegionDef, bool) {
	d, ok := c.Regions.ByID[id]
	return d, ok
}

func (c *Catalogs) CreaturesIn(regionID string) []CreatureDef {
	return c.Creatures.ByRegion[regionID]
}

func (c *Catalogs) RareDropsFor(skillID string) []Drop {
	return c.RareDrops.BySkill[skillID]
}

func (c *Catalogs) Set(name string) (SetDef, bool) {
	d, ok := c.Sets.ByName[name]
	return d, ok
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// readJSON reads name, decodes it into v and returns the raw digest.
func readJSON(fsys fs.FS, name string, v any) (string, error) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return sha256Hex(raw), nil
}

func loadItems(fsys fs.FS, name string, out *ItemCatalog) error {
	var defs []ItemDef
	digest, err := readJSON(fsys, name, &defs)
	if err != nil {
		return err
	}
	out.Digest = digest
	out.ByID = make(map[string]ItemDef, len(defs))
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("%s: empty id", name)
		}
		if _, dup := out.ByID[d.ID]; dup {
			return fmt.Errorf("%s: duplicate id %q", name, d.ID)
		}
		if d.EquipSlot != "" && d.EquipSlot != SlotTool && !validSlot(d.EquipSlot) {
			return fmt.Errorf("%s: %s: unknown equip_slot %q", name, d.ID, d.EquipSlot)
		}
		if d.HealAmount < 0 || d.HealAmount > 1 {
			return fmt.Errorf("%s: %s: heal_amount out of range", name, d.ID)
		}
		out.ByID[d.ID] = d
	}
	return nil
}

func validSlot(s string) bool {
	for _, slot := range state.EquipSlots {
		if string(slot) == s {
			return true
		}
	}
	return false
}

func loadSkills(fsys fs.FS, name string, out *SkillCatalog) error {
	digest, err := readJSON(fsys, name, &out.List)
	if err != nil {
		return err
	}
	out.Digest = digest
	out.ByID = make(map[string]SkillDef, len(out.List))
	for _, d := range out.List {
		if d.ID == "" {
			return fmt.Errorf("%s: empty id", name)
		}
		if d.XPToNextLevel <= 0 {
			return fmt.Errorf("%s: %s: xp_to_next_level must be positive", name, d.ID)
		}
		out.ByID[d.ID] = d
	}
	return nil
}

func loadResources(fsys fs.FS, name string, out *ResourceCatalog) error {
	digest, err := readJSON(fsys, name, &out.BySkill)
	if err != nil {
		return err
	}
	out.Digest = digest
	for skill, list := range out.BySkill {
		for _, r := range list {
			if r.ID == "" || r.ItemID == "" {
				return fmt.Errorf("%s: %s: resource missing id or item_id", name, skill)
			}
			if r.TimeToGatherMs <= 0 {
				return fmt.Errorf("%s: %s/%s: time_to_gather_ms must be positive", name, skill, r.ID)
			}
		}
	}
	return nil
}

func loadRareDrops(fsys fs.FS, name string, out *RareDropCatalog) error {
	digest, err := readJSON(fsys, name, &out.BySkill)
	if err != nil {
		return err
	}
	out.Digest = digest
	return nil
}

func loadRecipes(fsys fs.FS, name string, out *RecipeCatalog) error {
	digest, err := readJSON(fsys, name, &out.BySkill)
	if err != nil {
		return err
	}
	out.Digest = digest
	for skill, list := range out.BySkill {
		for _, r := range list {
			if r.ID == "" || r.OutputID == "" {
				return fmt.Errorf("%s: %s: recipe missing id or output_id", name, skill)
			}
			if r.OutputQuantity <= 0 {
				return fmt.Errorf("%s: %s/%s: output_quantity must be positive", name, skill, r.ID)
			}
			for _, in := range r.Ingredients {
				if in.Quantity <= 0 {
					return fmt.Errorf("%s: %s/%s: ingredient %s quantity must be positive", name, skill, r.ID, in.ItemID)
				}
			}
		}
	}
	return nil
}

func loadCreatures(fsys fs.FS, name string, out *CreatureCatalog) error {
	digest, err := readJSON(fsys, name, &out.ByRegion)
	if err != nil {
		return err
	}
	out.Digest = digest
	return nil
}

func loadRegions(fsys fs.FS, name string, out *RegionCatalog) error {
	digest, err := readJSON(fsys, name, &out.List)
	if err != nil {
		return err
	}
	out.Digest = digest
	out.ByID = make(map[string]RegionDef, len(out.List))
	for _, r := range out.List {
		if r.ID == "" {
			return fmt.Errorf("%s: empty id", name)
		}
		if r.TravelCost < 0 || r.TravelTimeMs < 0 {
			return fmt.Errorf("%s: %s: negative travel cost or time", name, r.ID)
		}
		out.ByID[r.ID] = r
	}
	return nil
}

func loadSets(fsys fs.FS, name string, out *SetCatalog) error {
	var defs []SetDef
	digest, err := readJSON(fsys, name, &defs)
	if err != nil {
		return err
	}
	out.Digest = digest
	out.ByName = make(map[string]SetDef, len(defs))
	for _, s := range defs {
		if s.Name == "" || s.Pieces <= 0 {
			return fmt.Errorf("%s: set needs a name and a positive piece count", name)
		}
		out.ByName[s.Name] = s
	}
	return nil
}

// validate checks cross references between tables.
func (c *Catalogs) validate() error {
	item := func(where, id string) error {
		if _, ok := c.Items.ByID[id]; !ok {
			return fmt.Errorf("%s: unknown item %q", where, id)
		}
		return nil
	}
	for _, skill := range sortedKeys(c.Resources.BySkill) {
		if _, ok := c.Skills.ByID[skill]; !ok {
			return fmt.Errorf("resources.json: unknown skill %q", skill)
		}
		for _, r := range c.Resources.BySkill[skill] {
			if err := item("resources.json: "+skill+"/"+r.ID, r.ItemID); err != nil {
				return err
			}
		}
	}
	for _, skill := range sortedKeys(c.RareDrops.BySkill) {
		for _, d := range c.RareDrops.BySkill[skill] {
			if err := item("rare_drops.json: "+skill, d.ItemID); err != nil {
				return err
			}
		}
	}
	for _, skill := range sortedKeys(c.Recipes.BySkill) {
		if _, ok := c.Skills.ByID[skill]; !ok {
			return fmt.Errorf("recipes.json: unknown skill %q", skill)
		}
		for _, r := range c.Recipes.BySkill[skill] {
			where := "recipes.json: " + skill + "/" + r.ID
			if err := item(where, r.OutputID); err != nil {
				return err
			}
			for _, in := range r.Ingredients {
				if err := item(where, in.ItemID); err != nil {
					return err
				}
			}
		}
	}
	for _, region := range sortedKeys(c.Creatures.ByRegion) {
		if _, ok := c.Regions.ByID[region]; !ok {
			return fmt.Errorf("creatures.json: unknown region %q", region)
		}
		for _, cr := range c.Creatures.ByRegion[region] {
			for _, d := range cr.LootTable {
				if err := item("creatures.json: "+region+"/"+cr.ID, d.ItemID); err != nil {
					return err
				}
			}
		}
	}
	for _, id := range sortedKeys(c.Items.ByID) {
		d := c.Items.ByID[id]
		if d.Set == "" {
			continue
		}
		if _, ok := c.Sets.ByName[d.Set]; !ok {
			return fmt.Errorf("items.json: %s: unknown set %q", id, d.Set)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
