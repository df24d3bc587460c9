package combat

import (
	"github.com/cory-johannsen/vanguard/internal/game/geom"
	"github.com/cory-johannsen/vanguard/internal/game/unit"
	"github.com/cory-johannsen/vanguard/internal/game/world"
)

// RallyPoint is the game-long combat muster location. It is computed lazily
// on first use and only changes through Set or Reset.
type RallyPoint struct {
	point    geom.Point
	valid    bool
	resolved bool
}

// Get returns the rally point, calling compute on the first call after
// construction or Reset.
func (r *RallyPoint) Get(compute func() (geom.Point, bool)) (geom.Point, bool) {
	if !r.resolved {
		r.resolved = true
		r.point, r.valid = compute()
	}
	return r.point, r.valid
}

// Set overrides the rally point.
func (r *RallyPoint) Set(p geom.Point) {
	r.point, r.valid, r.resolved = p, true, true
}

// Reset forgets the rally point so the next Get recomputes it.
func (r *RallyPoint) Reset() {
	*r = RallyPoint{}
}

// ComputeRally returns the map's explicit rally if present. Otherwise it takes
// the own natural, or the main when no natural is known, and moves it offset
// toward the closest enemy base, snapped to a pathable position.
func ComputeRally(m world.Map, pf world.Pathfinder, offset float64) (geom.Point, bool) {
	if p, ok := m.Rally(); ok {
		return p, true
	}
	own := m.Bases(unit.AllianceSelf)
	if len(own) == 0 {
		return geom.Point{}, false
	}
	anchor := own[0]
	if len(own) > 1 {
		anchor = own[1]
	}
	enemy := m.Bases(unit.AllianceEnemy)
	if i := geom.Closest(anchor, enemy); i >= 0 {
		anchor = anchor.Towards(enemy[i], offset)
	}
	return pf.ClosestPathable(anchor), true
}
