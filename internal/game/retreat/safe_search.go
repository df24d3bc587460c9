// Package retreat picks fallback destinations for units that should not fight.
package retreat

import (
	"math"
	"sort"

	"github.com/cory-johannsen/vanguard/internal/game/combat"
	"github.com/cory-johannsen/vanguard/internal/game/geom"
	"github.com/cory-johannsen/vanguard/internal/game/unit"
	"github.com/cory-johannsen/vanguard/internal/game/world"
)

// SearchOptions bounds a safe-position search.
type SearchOptions struct {
	StartRadius  float64
	MaxRadius    float64
	RadiusStep   float64
	AngleStepDeg float64
}

// SearchOptionsFrom returns the search bounds configured in t.
func SearchOptionsFrom(t combat.Tuning) SearchOptions {
	return SearchOptions{
		StartRadius:  t.SafeStartRadius,
		MaxRadius:    t.SafeMaxRadius,
		RadiusStep:   t.SafeRadiusStep,
		AngleStepDeg: t.SafeAngleStepDeg,
	}
}

func (o SearchOptions) valid() bool {
	return o.StartRadius > 0 && o.RadiusStep > 0 && o.AngleStepDeg > 0 && o.MaxRadius >= o.StartRadius
}

// SafeSearch samples positions out of reach of a set of threats.
type SafeSearch struct {
	calc *combat.Calculator
	m    world.Map
}

// NewSafeSearch constructs a SafeSearch.
//
// Precondition: calc and m must not be nil.
func NewSafeSearch(calc *combat.Calculator, m world.Map) *SafeSearch {
	if calc == nil {
		panic("retreat.NewSafeSearch: calc must not be nil")
	}
	if m == nil {
		panic("retreat.NewSafeSearch: m must not be nil")
	}
	return &SafeSearch{calc: calc, m: m}
}

// Find samples a half circle facing away from primary, ring by ring from
// opts.StartRadius, and returns every point of the first ring that yields any:
// inside the map and pathable for ground units, strictly farther from the
// nearest threat than u is, and not threatened by any threat.
//
// Postcondition: Returns nil when u has no geometry, opts is invalid, or no
// ring up to opts.MaxRadius qualifies. Results are ordered by distance to the
// unit's move destination when it has one, else by distance to the unit.
func (s *SafeSearch) Find(u *unit.Snapshot, primary geom.Point, threats []*unit.Snapshot, opts SearchOptions) []geom.Point {
	body, ok := u.Body()
	if !ok || !opts.valid() {
		return nil
	}
	threatPos := unit.Positions(threats)
	nearest := nearestDist(body.Pos, threatPos)
	away := primary.Bearing(body.Pos)
	if primary == body.Pos {
		away = 0
	}

	rings := int(math.Floor((opts.MaxRadius-opts.StartRadius)/opts.RadiusStep+1e-9)) + 1
	step := opts.AngleStepDeg * math.Pi / 180
	spokes := int(math.Floor(math.Pi/step+1e-9)) + 1

	var found []geom.Point
	for ring := 0; ring < rings && len(found) == 0; ring++ {
		r := opts.StartRadius + float64(ring)*opts.RadiusStep
		for i := 0; i < spokes; i++ {
			p := body.Pos.Polar(r, away-math.Pi/2+float64(i)*step)
			if s.Safe(u, p, threats, nearest) {
				found = append(found, p)
			}
		}
	}

	ref := body.Pos
	if dest, ok := u.Destination(); ok {
		ref = dest
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Dist2(ref) < found[j].Dist2(ref)
	})
	return found
}

// Safe reports whether u could stand at p: inside the map (and pathable when
// u walks), strictly farther than minDist from every threat, and outside the
// reach of each of them.
func (s *SafeSearch) Safe(u *unit.Snapshot, p geom.Point, threats []*unit.Snapshot, minDist float64) bool {
	if !s.m.Bounds().Contains(p) {
		return false
	}
	if !u.Flying && !s.m.IsPathable(p) {
		return false
	}
	if pts := unit.Positions(threats); len(pts) > 0 && nearestDist(p, pts) <= minDist {
		return false
	}
	for _, t := range threats {
		if s.calc.Threatens(t, u, p) {
			return false
		}
	}
	return true
}

// nearestDist returns the distance from p to the closest of pts; +Inf when empty.
func nearestDist(p geom.Point, pts []geom.Point) float64 {
	best := math.Inf(1)
	for _, q := range pts {
		if d := p.Dist(q); d < best {
			best = d
		}
	}
	return best
}
