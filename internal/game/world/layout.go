package world

import (
	"github.com/cory-johannsen/vanguard/internal/game/geom"
	"github.com/cory-johannsen/vanguard/internal/game/unit"
)

// Layout is a static Map backed by a Grid. It also serves as the Pathfinder.
type Layout struct {
	*Grid
	expansions []geom.Point
	defensive  []geom.Point
	rally      *geom.Point
	bases      map[unit.Alliance][]geom.Point
}

// NewLayout assembles a Layout.
//
// Precondition: g must not be nil.
func NewLayout(g *Grid, expansions, defensive []geom.Point, rally *geom.Point, bases map[unit.Alliance][]geom.Point) *Layout {
	if g == nil {
		panic("world.NewLayout: grid must not be nil")
	}
	if bases == nil {
		bases = make(map[unit.Alliance][]geom.Point)
	}
	return &Layout{Grid: g, expansions: expansions, defensive: defensive, rally: rally, bases: bases}
}

// Expansions returns the expansion centroids.
func (l *Layout) Expansions() []geom.Point { return l.expansions }

// DefensivePositions returns the fixed defensive structure positions.
func (l *Layout) DefensivePositions() []geom.Point { return l.defensive }

// Rally returns the explicit rally point, if configured.
func (l *Layout) Rally() (geom.Point, bool) {
	if l.rally == nil {
		return geom.Point{}, false
	}
	return *l.rally, true
}

// Bases returns the base positions of alliance a, main first.
func (l *Layout) Bases(a unit.Alliance) []geom.Point { return l.bases[a] }
