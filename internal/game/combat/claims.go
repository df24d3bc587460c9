package combat

import "github.com/cory-johannsen/vanguard/internal/game/geom"

type claim struct {
	tag    string
	point  geom.Point
	radius float64
}

// Claims tracks surround points taken by attacking units during one tick.
type Claims struct {
	loop   int
	claims []claim
}

// Advance moves to loop, dropping claims from any other loop.
func (c *Claims) Advance(loop int) {
	if loop != c.loop {
		c.loop = loop
		c.claims = c.claims[:0]
	}
}

// Claim records that tag, of the given radius, is heading to p during loop.
// A unit holds at most one claim.
func (c *Claims) Claim(loop int, tag string, p geom.Point, radius float64) {
	c.Advance(loop)
	for i := range c.claims {
		if c.claims[i].tag == tag {
			c.claims[i].point, c.claims[i].radius = p, radius
			return
		}
	}
	c.claims = append(c.claims, claim{tag: tag, point: p, radius: radius})
}

// Taken reports whether p lies within the radius of a point claimed by a
// unit other than tag during loop.
func (c *Claims) Taken(loop int, tag string, p geom.Point) bool {
	if loop != c.loop {
		return false
	}
	for _, cl := range c.claims {
		if cl.tag != tag && cl.point.Dist(p) < cl.radius {
			return true
		}
	}
	return false
}

// Reset drops every claim.
func (c *Claims) Reset() {
	c.loop = 0
	c.claims = nil
}
