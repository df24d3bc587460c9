// Package gamedata provides the unit and weapon tables consumed by the combat
// engine, loaded from YAML.
package gamedata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/vanguard/internal/game/unit"
)

// TargetType restricts which units a weapon can hit.
type TargetType string

const (
	TargetGround TargetType = "ground"
	TargetAir    TargetType = "air"
	TargetAny    TargetType = "any"
)

// DamageBonus is extra damage dealt to targets carrying Attribute.
type DamageBonus struct {
	Attribute string  `yaml:"attribute"`
	Bonus     float64 `yaml:"bonus"`
}

// Weapon is one attack of a unit type.
type Weapon struct {
	Name    string        `yaml:"name"`
	Type    TargetType    `yaml:"type"`
	Range   float64       `yaml:"range"`
	Damage  float64       `yaml:"damage"`
	Attacks int           `yaml:"attacks"`
	Speed   float64       `yaml:"speed"` // seconds between attacks
	Bonuses []DamageBonus `yaml:"bonuses"`
	// UpgradeBonus is the damage added per attack upgrade level; 0 means 1.
	UpgradeBonus float64 `yaml:"upgrade_bonus"`
}

// CanTarget reports whether the weapon can hit a target with the given flying state.
func (w *Weapon) CanTarget(flying bool) bool {
	switch w.Type {
	case TargetAny:
		return true
	case TargetGround:
		return !flying
	case TargetAir:
		return flying
	default:
		return false
	}
}

// PerLevel returns the damage gained per attack upgrade level.
func (w *Weapon) PerLevel() float64 {
	if w.UpgradeBonus <= 0 {
		return 1
	}
	return w.UpgradeBonus
}

// Validate checks the weapon invariants.
func (w *Weapon) Validate() error {
	var errs []string
	switch w.Type {
	case TargetGround, TargetAir, TargetAny:
	default:
		errs = append(errs, fmt.Sprintf("type must be one of [ground, air, any], got %q", w.Type))
	}
	if w.Range < 0 {
		errs = append(errs, "range must be >= 0")
	}
	if w.Damage < 0 {
		errs = append(errs, "damage must be >= 0")
	}
	if w.Attacks < 1 {
		errs = append(errs, "attacks must be >= 1")
	}
	if w.Speed <= 0 {
		errs = append(errs, "speed must be > 0")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// UnitType holds the static properties of a unit type.
type UnitType struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	Armor      float64  `yaml:"armor"`
	Speed      float64  `yaml:"speed"` // distance per game second
	Radius     float64  `yaml:"radius"`
	Attributes []string `yaml:"attributes"`
	Weapons    []Weapon `yaml:"weapons"`
	Worker     bool     `yaml:"worker"`
	Structure  bool     `yaml:"structure"`
	// Garrison marks defensive structures units can retreat into.
	Garrison bool `yaml:"garrison"`
	Flying   bool `yaml:"flying"`
}

// Validate checks that the unit type satisfies basic invariants.
//
// Postcondition: Returns nil iff ID is non-empty, Speed and Radius are
// non-negative, and every weapon validates.
func (t *UnitType) Validate() error {
	if t.ID == "" {
		return errors.New("unit type: id must not be empty")
	}
	if t.Speed < 0 {
		return fmt.Errorf("unit type %q: speed must be >= 0", t.ID)
	}
	if t.Radius < 0 {
		return fmt.Errorf("unit type %q: radius must be >= 0", t.ID)
	}
	for i := range t.Weapons {
		if err := t.Weapons[i].Validate(); err != nil {
			return fmt.Errorf("unit type %q: weapon %d: %w", t.ID, i, err)
		}
	}
	return nil
}

// HasAttribute reports whether the type carries attribute a.
func (t *UnitType) HasAttribute(a string) bool {
	for _, have := range t.Attributes {
		if have == a {
			return true
		}
	}
	return false
}

// Armed reports whether the type has at least one weapon.
func (t *UnitType) Armed() bool { return len(t.Weapons) > 0 }

// WeaponAgainst returns the first weapon able to hit a target with the given
// flying state, or nil.
func (t *UnitType) WeaponAgainst(flying bool) *Weapon {
	for i := range t.Weapons {
		if t.Weapons[i].CanTarget(flying) {
			return &t.Weapons[i]
		}
	}
	return nil
}

// LongestWeapon returns the longest-range weapon able to hit a target with the
// given flying state, or nil.
func (t *UnitType) LongestWeapon(flying bool) *Weapon {
	var best *Weapon
	for i := range t.Weapons {
		w := &t.Weapons[i]
		if w.CanTarget(flying) && (best == nil || w.Range > best.Range) {
			best = w
		}
	}
	return best
}

// MaxRange returns the longest range over all weapons; 0 when unarmed.
func (t *UnitType) MaxRange() float64 {
	var r float64
	for _, w := range t.Weapons {
		if w.Range > r {
			r = w.Range
		}
	}
	return r
}

// Upgrades holds the researched upgrade levels of one alliance.
type Upgrades struct {
	Attack int `yaml:"attack"`
	Armor  int `yaml:"armor"`
}

// Oracle is the read-only game-data lookup used by the combat engine.
type Oracle interface {
	// UnitType returns the static data for id.
	UnitType(id string) (*UnitType, bool)
	// Upgrades returns the upgrade levels researched by alliance a.
	Upgrades(a unit.Alliance) Upgrades
}

type yamlUnitFile struct {
	UnitTypes []*UnitType `yaml:"unit_types"`
}

// LoadUnitTypesFromBytes parses and validates unit types from raw YAML bytes.
//
// Precondition: data must hold a top-level unit_types list.
// Postcondition: Returns validated unit types, or an error on the first violation.
func LoadUnitTypesFromBytes(data []byte) ([]*UnitType, error) {
	var file yamlUnitFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing unit type YAML: %w", err)
	}
	for _, t := range file.UnitTypes {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	return file.UnitTypes, nil
}

// LoadUnitTypes reads every *.yaml file in dir.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns all unit types or the first read/parse/validate error.
func LoadUnitTypes(dir string) ([]*UnitType, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading unit type dir %q: %w", dir, err)
	}

	var types []*UnitType
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		loaded, err := LoadUnitTypesFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		types = append(types, loaded...)
	}
	return types, nil
}
