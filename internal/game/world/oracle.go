package world

import (
	"github.com/cory-johannsen/vanguard/internal/game/geom"
	"github.com/cory-johannsen/vanguard/internal/game/unit"
)

// Map is the static map oracle consumed by the combat engine.
type Map interface {
	// Bounds returns the playable area.
	Bounds() geom.Rect
	// IsPathable reports whether ground units can stand at p.
	IsPathable(p geom.Point) bool
	// Expansions returns every expansion centroid on the map.
	Expansions() []geom.Point
	// DefensivePositions returns fixed defensive structure positions known to the map.
	DefensivePositions() []geom.Point
	// Rally returns the map's explicit combat rally point, if any.
	Rally() (geom.Point, bool)
	// Bases returns the base positions of alliance a, main first.
	Bases(a unit.Alliance) []geom.Point
}

// Pathfinder is the path-distance oracle.
type Pathfinder interface {
	// PathDistance returns the ground path length from a to b, or +Inf when
	// no path exists. It never fails.
	PathDistance(a, b geom.Point) float64
	// ClosestPathable returns the pathable point nearest p.
	ClosestPathable(p geom.Point) geom.Point
	// Path returns the waypoints from a to b, or nil when unreachable.
	Path(a, b geom.Point) []geom.Point
}
