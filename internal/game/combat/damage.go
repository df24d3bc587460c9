// Package combat compares opposing forces and holds the per-game combat state
// shared by the decision components.
package combat

import (
	"github.com/cory-johannsen/vanguard/internal/game/gamedata"
	"github.com/cory-johannsen/vanguard/internal/game/geom"
	"github.com/cory-johannsen/vanguard/internal/game/unit"
)

// Calculator derives damage, DPS and reach from the game-data oracle.
type Calculator struct {
	oracle gamedata.Oracle
	tuning Tuning
}

// NewCalculator constructs a Calculator.
//
// Precondition: oracle must not be nil.
func NewCalculator(oracle gamedata.Oracle, tuning Tuning) *Calculator {
	if oracle == nil {
		panic("combat.NewCalculator: oracle must not be nil")
	}
	return &Calculator{oracle: oracle, tuning: tuning}
}

// Tuning returns the tuning values the calculator was built with.
func (c *Calculator) Tuning() Tuning { return c.tuning }

// TypeOf returns the static data of s.
func (c *Calculator) TypeOf(s *unit.Snapshot) (*gamedata.UnitType, bool) {
	if s == nil || s.UnitType == "" {
		return nil, false
	}
	return c.oracle.UnitType(s.UnitType)
}

// Volley returns the damage one use of w deals to target when fired by a unit
// of alliance from, after upgrades, attribute bonuses and armor.
//
// Postcondition: Returns a value >= 0.
func (c *Calculator) Volley(w *gamedata.Weapon, from unit.Alliance, target *unit.Snapshot) float64 {
	dmg := w.Damage + w.PerLevel()*float64(c.oracle.Upgrades(from).Attack)
	if tt, ok := c.TypeOf(target); ok {
		for _, b := range w.Bonuses {
			if tt.HasAttribute(b.Attribute) {
				dmg += b.Bonus
			}
		}
		dmg -= tt.Armor
	}
	dmg -= float64(c.oracle.Upgrades(target.Alliance).Armor)
	if dmg < 0 {
		dmg = 0
	}
	return dmg * float64(w.Attacks)
}

// Weapon returns the weapon of attacker with the highest DPS against target.
func (c *Calculator) Weapon(attacker, target *unit.Snapshot) (*gamedata.Weapon, bool) {
	at, ok := c.TypeOf(attacker)
	if !ok || target == nil {
		return nil, false
	}
	var (
		best    *gamedata.Weapon
		bestDPS = -1.0
	)
	for i := range at.Weapons {
		w := &at.Weapons[i]
		if !w.CanTarget(target.Flying) {
			continue
		}
		if dps := c.Volley(w, attacker.Alliance, target) / w.Speed; dps > bestDPS {
			best, bestDPS = w, dps
		}
	}
	return best, best != nil
}

// Against returns the DPS attacker deals to target; 0 when it cannot hit it.
func (c *Calculator) Against(attacker, target *unit.Snapshot) float64 {
	w, ok := c.Weapon(attacker, target)
	if !ok {
		return 0
	}
	return c.Volley(w, attacker.Alliance, target) / w.Speed
}

// GroupDPS returns the aggregate DPS of attackers against the composition of
// defenders. Each attacker contributes its mean DPS over the defenders, so
// air/ground target classes are weighted by their share of the group.
func (c *Calculator) GroupDPS(attackers, defenders []*unit.Snapshot) float64 {
	if len(defenders) == 0 {
		return 0
	}
	var total float64
	for _, a := range attackers {
		var sum float64
		for _, d := range defenders {
			sum += c.Against(a, d)
		}
		total += sum / float64(len(defenders))
	}
	return total
}

// CanDamage reports whether attacker owns a weapon able to hit target.
func (c *Calculator) CanDamage(attacker, target *unit.Snapshot) bool {
	at, ok := c.TypeOf(attacker)
	return ok && at.WeaponAgainst(target.Flying) != nil
}

// Range returns the longest range attacker can use against target.
func (c *Calculator) Range(attacker, target *unit.Snapshot) (float64, bool) {
	at, ok := c.TypeOf(attacker)
	if !ok || target == nil {
		return 0, false
	}
	w := at.LongestWeapon(target.Flying)
	if w == nil {
		return 0, false
	}
	return w.Range, true
}

// Speed returns the movement speed of s in distance per game second; 0 when unknown.
func (c *Calculator) Speed(s *unit.Snapshot) float64 {
	if t, ok := c.TypeOf(s); ok {
		return t.Speed
	}
	return 0
}

// Reach returns the effective attack range of attacker against target: weapon
// range plus both radii plus the one-step travel allowance of both sides.
//
// Postcondition: ok is false when attacker cannot hit target or geometry is missing.
func (c *Calculator) Reach(attacker, target *unit.Snapshot) (float64, bool) {
	r, ok := c.Range(attacker, target)
	if !ok || attacker.Radius == nil || target.Radius == nil {
		return 0, false
	}
	return r + *attacker.Radius + *target.Radius +
		c.tuning.TravelPerStep(c.Speed(attacker)) + c.tuning.TravelPerStep(c.Speed(target)), true
}

// Threatens reports whether attacker, at its current position, could hit
// target standing at p within one decision step.
func (c *Calculator) Threatens(attacker, target *unit.Snapshot, p geom.Point) bool {
	from, ok := attacker.Position()
	if !ok {
		return false
	}
	reach, ok := c.Reach(attacker, target)
	return ok && from.Dist(p) <= reach
}
