package model

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"strings"
)

// Category identifies a facility resource an activity used. The set is closed:
// adding a member is a schema change.
type Category string

const (
	CategoryVRHeadset           Category = "vr_headset"
	CategoryDrone               Category = "drone"
	Category3DPrinter           Category = "3d_printer"
	CategorySocialRobot         Category = "social_robot"
	CategoryRoboticsKitSpike    Category = "robotics_kit_spike"
	CategoryRoboticsKitMBot     Category = "robotics_kit_mbot"
	CategoryRoboticsKitMicrobit Category = "robotics_kit_microbit"
	CategorySpatialAudio        Category = "spatial_audio"
	CategoryPositionalToy       Category = "positional_toy"
	CategorySandboxGame         Category = "sandbox_game"
	Category3DModeling          Category = "3d_modeling"
	Category3DScanning          Category = "3d_scanning"
	CategoryOther               Category = "other"
)

// CategoryCatalogVersion changes whenever the member list changes.
const CategoryCatalogVersion = 1

// CategoryInfo is the display metadata of a category.
type CategoryInfo struct {
	ID         Category `json:"id"`
	Label      string   `json:"label"`
	ColorClass string   `json:"colorClass"`
}

var categoryCatalog = []CategoryInfo{
	{ID: CategoryVRHeadset, Label: "VR Headset", ColorClass: "bg-purple-100 text-purple-800"},
	{ID: CategoryDrone, Label: "Drone", ColorClass: "bg-sky-100 text-sky-800"},
	{ID: Category3DPrinter, Label: "3D Printer", ColorClass: "bg-orange-100 text-orange-800"},
	{ID: CategorySocialRobot, Label: "Social Robot", ColorClass: "bg-pink-100 text-pink-800"},
	{ID: CategoryRoboticsKitSpike, Label: "Robotics Kit (SPIKE)", ColorClass: "bg-yellow-100 text-yellow-800"},
	{ID: CategoryRoboticsKitMBot, Label: "Robotics Kit (mBot)", ColorClass: "bg-lime-100 text-lime-800"},
	{ID: CategoryRoboticsKitMicrobit, Label: "Robotics Kit (micro:bit)", ColorClass: "bg-green-100 text-green-800"},
	{ID: CategorySpatialAudio, Label: "Spatial Audio", ColorClass: "bg-indigo-100 text-indigo-800"},
	{ID: CategoryPositionalToy, Label: "Positional Toy", ColorClass: "bg-teal-100 text-teal-800"},
	{ID: CategorySandboxGame, Label: "Sandbox Game", ColorClass: "bg-emerald-100 text-emerald-800"},
	{ID: Category3DModeling, Label: "3D Modeling", ColorClass: "bg-amber-100 text-amber-800"},
	{ID: Category3DScanning, Label: "3D Scanning", ColorClass: "bg-rose-100 text-rose-800"},
	{ID: CategoryOther, Label: "Other", ColorClass: "bg-gray-100 text-gray-800"},
}

var categoryIndex = func() map[Category]int {
	m := make(map[Category]int, len(categoryCatalog))
	for i, c := range categoryCatalog {
		m[c.ID] = i
	}
	return m
}()

// Categories returns the catalog in display order. The slice is a copy.
func Categories() []CategoryInfo {
	out := make([]CategoryInfo, len(categoryCatalog))
	copy(out, categoryCatalog)
	return out
}

// ParseCategory validates a raw category identifier.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := categoryIndex[c]; !ok {
		return "", fmt.Errorf("unknown category %q", raw)
	}
	return c, nil
}

// Valid reports whether c belongs to the catalog.
func (c Category) Valid() bool {
	_, ok := categoryIndex[c]
	return ok
}

// Info returns the display metadata of c.
func (c Category) Info() CategoryInfo {
	if i, ok := categoryIndex[c]; ok {
		return categoryCatalog[i]
	}
	return CategoryInfo{ID: c, Label: string(c), ColorClass: "bg-gray-100 text-gray-800"}
}

// Label returns the human-readable label of c.
func (c Category) Label() string { return c.Info().Label }

// Order returns the catalog position of c; unknown values sort last.
func (c Category) Order() int {
	if i, ok := categoryIndex[c]; ok {
		return i
	}
	return len(categoryCatalog)
}

// CategorySet is a deduplicated set of categories kept in catalog order. It is
// stored as a comma-joined text column.
type CategorySet []Category

// NewCategorySet validates raw values and returns them in canonical order.
func NewCategorySet(raw []string) (CategorySet, error) {
	seen := make(map[Category]struct{}, len(raw))
	set := make(CategorySet, 0, len(raw))
	for _, r := range raw {
		c, err := ParseCategory(r)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		set = append(set, c)
	}
	set.sort()
	return set, nil
}

func (s CategorySet) sort() {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Order() < s[j].Order() })
}

// Contains reports whether c is in the set.
func (s CategorySet) Contains(c Category) bool {
	for _, m := range s {
		if m == c {
			return true
		}
	}
	return false
}

// Intersects reports whether any member of other is in the set. An empty
// other matches everything.
func (s CategorySet) Intersects(other CategorySet) bool {
	if len(other) == 0 {
		return true
	}
	for _, c := range other {
		if s.Contains(c) {
			return true
		}
	}
	return false
}

// Labels returns the member labels in catalog order.
func (s CategorySet) Labels() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.Label()
	}
	return out
}

// String joins the identifiers with commas.
func (s CategorySet) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}

// GormDataType stores the set as text.
func (CategorySet) GormDataType() string { return "text" }

// Value implements driver.Valuer.
func (s CategorySet) Value() (driver.Value, error) {
	return s.String(), nil
}

// Scan implements sql.Scanner.
func (s *CategorySet) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*s = CategorySet{}
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into CategorySet", src)
	}
	set := CategorySet{}
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			set = append(set, Category(p))
		}
	}
	*s = set
	return nil
}
