// Package unit defines the per-tick unit snapshots consumed by the combat engine
// and the commands it produces.
package unit

import (
	"github.com/cory-johannsen/vanguard/internal/game/geom"
)

// Alliance identifies which side a unit belongs to.
type Alliance int

const (
	AllianceSelf Alliance = iota + 1
	AllianceAlly
	AllianceNeutral
	AllianceEnemy
)

// String returns a human-readable alliance label.
func (a Alliance) String() string {
	switch a {
	case AllianceSelf:
		return "self"
	case AllianceAlly:
		return "ally"
	case AllianceNeutral:
		return "neutral"
	case AllianceEnemy:
		return "enemy"
	default:
		return "unknown"
	}
}

// ParseAlliance converts a label produced by Alliance.String back into an Alliance.
func ParseAlliance(s string) (Alliance, bool) {
	for _, a := range []Alliance{AllianceSelf, AllianceAlly, AllianceNeutral, AllianceEnemy} {
		if a.String() == s {
			return a, true
		}
	}
	return 0, false
}

// Ability is the ability carried by a unit order.
type Ability string

const (
	AbilityAttack        Ability = "attack"
	AbilityMove          Ability = "move"
	AbilityStop          Ability = "stop"
	AbilityHarvestGather Ability = "harvest_gather"
	AbilityHarvestReturn Ability = "harvest_return"
)

// Order is one entry of a unit's current order queue.
type Order struct {
	Ability   Ability
	TargetPos *geom.Point
	TargetTag string
}

// Snapshot is the immutable view of a unit for a single tick.
//
// Optional attributes are pointers; nil means the attribute was not observed.
// Consumers must validate through Body (or the Complete* helpers) and skip the
// unit when validation fails.
type Snapshot struct {
	Tag            string
	Alliance       Alliance
	UnitType       string
	Pos            *geom.Point
	Radius         *float64
	Health         *float64
	Shield         *float64
	WeaponCooldown *float64
	BuildProgress  *float64
	Flying         bool
	Orders         []Order
}

// Body is the validated geometry of a unit.
type Body struct {
	Tag    string
	Pos    geom.Point
	Radius float64
}

// Body returns the validated geometry of s.
//
// Postcondition: ok is false if s is nil or tag, position or radius is missing.
func (s *Snapshot) Body() (Body, bool) {
	if s == nil || s.Tag == "" || s.Pos == nil || s.Radius == nil {
		return Body{}, false
	}
	return Body{Tag: s.Tag, Pos: *s.Pos, Radius: *s.Radius}, true
}

// Position returns the unit position, if known.
func (s *Snapshot) Position() (geom.Point, bool) {
	if s == nil || s.Pos == nil {
		return geom.Point{}, false
	}
	return *s.Pos, true
}

// Vitality returns health plus shield; missing values count as zero.
func (s *Snapshot) Vitality() float64 {
	if s == nil {
		return 0
	}
	var v float64
	if s.Health != nil {
		v += *s.Health
	}
	if s.Shield != nil {
		v += *s.Shield
	}
	return v
}

// Cooldown returns the remaining weapon cooldown in game loops.
//
// Postcondition: ok is false when the cooldown was not observed.
func (s *Snapshot) Cooldown() (float64, bool) {
	if s == nil || s.WeaponCooldown == nil {
		return 0, false
	}
	return *s.WeaponCooldown, true
}

// Completed reports whether the unit is fully built. Units without an
// observed build progress are considered complete.
func (s *Snapshot) Completed() bool {
	return s.BuildProgress == nil || *s.BuildProgress >= 1
}

// Destination returns the target position of the unit's first positional order.
func (s *Snapshot) Destination() (geom.Point, bool) {
	for _, o := range s.Orders {
		if o.TargetPos != nil {
			return *o.TargetPos, true
		}
	}
	return geom.Point{}, false
}

// IsAttacking reports whether the current order is an attack.
func (s *Snapshot) IsAttacking() bool {
	return len(s.Orders) > 0 && s.Orders[0].Ability == AbilityAttack
}

// IsHarvesting reports whether the current order is a gather or return.
func (s *Snapshot) IsHarvesting() bool {
	if len(s.Orders) == 0 {
		return false
	}
	a := s.Orders[0].Ability
	return a == AbilityHarvestGather || a == AbilityHarvestReturn
}

// WithinRadius returns the units whose position lies strictly within r of p.
// Units without a position are dropped.
func WithinRadius(units []*Snapshot, p geom.Point, r float64) []*Snapshot {
	var out []*Snapshot
	for _, u := range units {
		if pos, ok := u.Position(); ok && pos.Dist(p) < r {
			out = append(out, u)
		}
	}
	return out
}

// Nearest returns the unit in units closest to p, or nil when none has a position.
func Nearest(units []*Snapshot, p geom.Point) *Snapshot {
	var best *Snapshot
	bestD := -1.0
	for _, u := range units {
		pos, ok := u.Position()
		if !ok {
			continue
		}
		if d := pos.Dist2(p); best == nil || d < bestD {
			best, bestD = u, d
		}
	}
	return best
}

// Positions returns the known positions of units, skipping unknown ones.
func Positions(units []*Snapshot) []geom.Point {
	out := make([]geom.Point, 0, len(units))
	for _, u := range units {
		if p, ok := u.Position(); ok {
			out = append(out, p)
		}
	}
	return out
}

// F returns a pointer to v. It keeps snapshot literals short.
func F(v float64) *float64 { return &v }

// P returns a pointer to the point (x, y).
func P(x, y float64) *geom.Point {
	p := geom.Pt(x, y)
	return &p
}
