// Package geom provides the planar geometry shared by the combat engine.
package geom

import "math"

// Point is a position or vector in map coordinates.
type Point struct {
	X float64
	Y float64
}

// Pt returns the point (x, y).
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Add returns p + q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Scale returns p multiplied by k.
func (p Point) Scale(k float64) Point { return Point{X: p.X * k, Y: p.Y * k} }

// Dot returns the dot product of p and q.
func (p Point) Dot(q Point) float64 { return p.X*q.X + p.Y*q.Y }

// Len returns the length of p as a vector.
func (p Point) Len() float64 { return math.Hypot(p.X, p.Y) }

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }

// Dist2 returns the squared distance between p and q.
func (p Point) Dist2(q Point) float64 {
	dx, dy := p.X-q.X, p.Y-q.Y
	return dx*dx + dy*dy
}

// Norm returns the unit vector in the direction of p.
//
// Postcondition: Returns the zero vector when p has zero length.
func (p Point) Norm() Point {
	l := p.Len()
	if l == 0 {
		return Point{}
	}
	return Point{X: p.X / l, Y: p.Y / l}
}

// Bearing returns the angle in radians of the vector from p to q.
func (p Point) Bearing(q Point) float64 { return math.Atan2(q.Y-p.Y, q.X-p.X) }

// Towards returns the point dist units from p in the direction of q.
// When p == q the result is p.
func (p Point) Towards(q Point, dist float64) Point {
	return p.Add(q.Sub(p).Norm().Scale(dist))
}

// Polar returns the point at radius r and angle theta (radians) around p.
func (p Point) Polar(r, theta float64) Point {
	return Point{X: p.X + r*math.Cos(theta), Y: p.Y + r*math.Sin(theta)}
}

// IsFinite reports whether both coordinates are finite numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Centroid returns the arithmetic mean of pts.
//
// Postcondition: Returns (zero, false) for an empty slice.
func Centroid(pts []Point) (Point, bool) {
	if len(pts) == 0 {
		return Point{}, false
	}
	var sum Point
	for _, p := range pts {
		sum = sum.Add(p)
	}
	return sum.Scale(1 / float64(len(pts))), true
}

// Closest returns the index of the point in pts nearest to p, or -1 when pts is empty.
func Closest(p Point, pts []Point) int {
	best := -1
	bestD := math.Inf(1)
	for i, q := range pts {
		if d := p.Dist2(q); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

// Rect is an axis-aligned bounding box with inclusive Min and exclusive Max.
type Rect struct {
	Min Point
	Max Point
}

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Min.X && p.X < r.Max.X && p.Y >= r.Min.Y && p.Y < r.Max.Y
}

// Clamp returns p moved to the nearest location inside r.
//
// Postcondition: r.Contains(result) for any non-empty r.
func (r Rect) Clamp(p Point) Point {
	const inset = 1e-6
	return Point{
		X: math.Min(math.Max(p.X, r.Min.X), r.Max.X-inset),
		Y: math.Min(math.Max(p.Y, r.Min.Y), r.Max.Y-inset),
	}
}
