// Package testutil provides battlefield fixtures shared by engine tests: a
// small unit roster and snapshot builders.
package testutil

import (
	"github.com/cory-johannsen/vanguard/internal/game/gamedata"
	"github.com/cory-johannsen/vanguard/internal/game/unit"
)

// Unit type IDs of the test roster.
const (
	// Ranger is a ranged ground unit: range 5, 10 DPS, 100 health.
	Ranger = "ranger"
	// Brute is a melee ground unit: 15 DPS, 80 health.
	Brute = "brute"
	// Drone is a worker with a weak melee attack.
	Drone = "drone"
	// Wasp is a flying unit that can only hit air.
	Wasp = "wasp"
	// Bunker is a garrison structure without weapons.
	Bunker = "bunker"
	// Mineral is a resource field.
	Mineral = "mineral"
)

// Roster returns the unit types used by engine tests.
func Roster() []*gamedata.UnitType {
	return []*gamedata.UnitType{
		{
			ID: Ranger, Name: "Ranger", Speed: 3.15, Radius: 0.5,
			Attributes: []string{"light", "biological"},
			Weapons: []gamedata.Weapon{
				{Name: "rifle", Type: gamedata.TargetAny, Range: 5, Damage: 10, Attacks: 1, Speed: 1},
			},
		},
		{
			ID: Brute, Name: "Brute", Speed: 3.15, Radius: 0.5,
			Attributes: []string{"light", "biological"},
			Weapons: []gamedata.Weapon{
				{Name: "blades", Type: gamedata.TargetGround, Range: 0.1, Damage: 15, Attacks: 1, Speed: 1},
			},
		},
		{
			ID: Drone, Name: "Drone", Speed: 3.94, Radius: 0.375, Worker: true,
			Weapons: []gamedata.Weapon{
				{Name: "claws", Type: gamedata.TargetGround, Range: 0.1, Damage: 5, Attacks: 1, Speed: 1.5},
			},
		},
		{
			ID: Wasp, Name: "Wasp", Speed: 3.85, Radius: 0.75, Flying: true,
			Weapons: []gamedata.Weapon{
				{Name: "missiles", Type: gamedata.TargetAir, Range: 6, Damage: 10, Attacks: 1, Speed: 1},
			},
		},
		{ID: Bunker, Name: "Bunker", Armor: 1, Radius: 1.5, Structure: true, Garrison: true},
		{ID: Mineral, Name: "Mineral Field", Radius: 0.5, Structure: true},
	}
}

// Registry returns a registry holding Roster.
func Registry() *gamedata.Registry {
	reg, err := gamedata.NewRegistryFrom(Roster())
	if err != nil {
		panic(err)
	}
	return reg
}

// Snap builds a fully observed snapshot using the roster radius of typ.
func Snap(tag string, a unit.Alliance, typ string, x, y, health float64) *unit.Snapshot {
	radius := 0.5
	for _, t := range Roster() {
		if t.ID == typ {
			radius = t.Radius
		}
	}
	return &unit.Snapshot{
		Tag:            tag,
		Alliance:       a,
		UnitType:       typ,
		Pos:            unit.P(x, y),
		Radius:         unit.F(radius),
		Health:         unit.F(health),
		Shield:         unit.F(0),
		WeaponCooldown: unit.F(0),
		Flying:         typ == Wasp,
	}
}

// RangerAt returns a 100-health Ranger.
func RangerAt(tag string, a unit.Alliance, x, y float64) *unit.Snapshot {
	return Snap(tag, a, Ranger, x, y, 100)
}

// BruteAt returns an 80-health Brute.
func BruteAt(tag string, a unit.Alliance, x, y float64) *unit.Snapshot {
	return Snap(tag, a, Brute, x, y, 80)
}

// DroneAt returns a 40-health Drone with the given current order.
func DroneAt(tag string, a unit.Alliance, x, y float64, order unit.Ability) *unit.Snapshot {
	s := Snap(tag, a, Drone, x, y, 40)
	if order != "" {
		s.Orders = []unit.Order{{Ability: order}}
	}
	return s
}

// MineralAt returns a neutral mineral field.
func MineralAt(tag string, x, y float64) *unit.Snapshot {
	s := Snap(tag, unit.AllianceNeutral, Mineral, x, y, 0)
	s.Health = nil
	s.WeaponCooldown = nil
	return s
}

// WithCooldown sets the remaining weapon cooldown, in loops, and returns s.
func WithCooldown(s *unit.Snapshot, loops float64) *unit.Snapshot {
	s.WeaponCooldown = unit.F(loops)
	return s
}
