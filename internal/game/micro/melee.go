package micro

import (
	"math"

	"github.com/cory-johannsen/vanguard/internal/game/geom"
	"github.com/cory-johannsen/vanguard/internal/game/unit"
)

// melee attacks, surrounds, or falls back behind a ranged ally.
func (c *Controller) melee(u, target *unit.Snapshot, frame *unit.Frame) Decision {
	body, _ := u.Body()
	tb, _ := target.Body()
	t := c.calc.Tuning()

	ally := c.rangedAlly(u, frame)
	if ally != nil && !c.meleeEngage(u, target, frame) && c.shouldFallback(u, ally, target) {
		ab, _ := ally.Body()
		away := ab.Pos.Sub(tb.Pos).Norm().Scale(ab.Radius + body.Radius)
		return decide(StateFallback, unit.Move(u.Tag, ab.Pos.Add(away)))
	}

	rng, _ := c.calc.Range(u, target)
	attackRadius := rng + body.Radius + tb.Radius
	cd, known := u.Cooldown()
	if (!known || cd <= t.CooldownThreshold) &&
		body.Pos.Dist(tb.Pos) <= attackRadius+t.TravelPerStep(c.calc.Speed(u)) {
		return decide(StateAttackInRange, unit.Attack(u.Tag, target.Tag))
	}
	center := c.projected(target)
	if body.Pos.Dist(center) <= attackRadius {
		return decide(StateAttackInRange, unit.Attack(u.Tag, target.Tag))
	}
	if p, ok := c.SurroundPoint(u, target, frame); ok {
		c.state.Claims.Claim(c.state.Loop, u.Tag, p, 2*body.Radius)
		return decide(StateSurround, unit.Move(u.Tag, p))
	}
	return decide(StateAdvance, unit.Attack(u.Tag, target.Tag))
}

// rangedAlly returns the own combatant nearest u whose weapon outranges melee.
func (c *Controller) rangedAlly(u *unit.Snapshot, frame *unit.Frame) *unit.Snapshot {
	pos, _ := u.Position()
	r := c.calc.Tuning().NeighborhoodRadius
	var ranged []*unit.Snapshot
	for _, a := range c.eval.Combatants(unit.WithinRadius(frame.Self, pos, r)) {
		if a.Tag == u.Tag {
			continue
		}
		if _, ok := a.Body(); !ok {
			continue
		}
		at, ok := c.calc.TypeOf(a)
		if !ok {
			continue
		}
		for _, w := range at.Weapons {
			if w.Range > c.calc.Tuning().MeleeRange {
				ranged = append(ranged, a)
				break
			}
		}
	}
	return unit.Nearest(ranged, pos)
}

// shouldFallback reports whether ally cannot yet reach target and u is far
// enough from ally that regrouping on it is worth a step.
func (c *Controller) shouldFallback(u, ally, target *unit.Snapshot) bool {
	body, _ := u.Body()
	ab, _ := ally.Body()
	tb, _ := target.Body()
	w, ok := c.calc.Weapon(ally, target)
	if !ok {
		return false
	}
	t := c.calc.Tuning()
	enemyRange := 0.0
	if ew, ok := c.calc.Weapon(target, ally); ok {
		enemyRange = ew.Range
	}
	minGap := math.Max(0, enemyRange+t.TravelPerStep(c.calc.Speed(target))+t.TravelPerStep(c.calc.Speed(u)))
	edge := ab.Pos.Dist(tb.Pos) - ab.Radius - tb.Radius
	return edge > w.Range+t.TravelPerStep(c.calc.Speed(ally)) && body.Pos.Dist(ab.Pos) > minGap
}

// meleeEngage reports whether the melee units around u outmatch the enemies
// around target on their own.
func (c *Controller) meleeEngage(u, target *unit.Snapshot, frame *unit.Frame) bool {
	pos, _ := u.Position()
	tp, _ := target.Position()
	t := c.calc.Tuning()
	var melee []*unit.Snapshot
	for _, a := range unit.WithinRadius(frame.Self, pos, t.NeighborhoodRadius) {
		if rng, ok := c.calc.Range(a, target); ok && rng <= t.MeleeRange {
			melee = append(melee, a)
		}
	}
	if !containsTag(melee, u.Tag) {
		melee = append(melee, u)
	}
	enemies := unit.WithinRadius(frame.Enemies, tp, t.NeighborhoodRadius)
	if !containsTag(enemies, target.Tag) {
		enemies = append(enemies, target)
	}
	return c.eval.ShouldEngage(melee, enemies)
}

// SurroundPoint returns the unclaimed free point on the attack circle around
// the projected target that lies farthest from u, so successive attackers
// wrap around the target instead of stacking.
//
// Postcondition: ok is false when every sampled point is blocked or claimed.
func (c *Controller) SurroundPoint(u, target *unit.Snapshot, frame *unit.Frame) (geom.Point, bool) {
	body, ok := u.Body()
	if !ok {
		return geom.Point{}, false
	}
	tb, ok := target.Body()
	if !ok {
		return geom.Point{}, false
	}
	rng, ok := c.calc.Range(u, target)
	if !ok {
		return geom.Point{}, false
	}
	radius := rng + body.Radius + tb.Radius
	center := c.projected(target)
	n := c.calc.Tuning().MaxSurroundPoints
	if n < 1 {
		n = 1
	}

	var (
		best  geom.Point
		bestD = -1.0
	)
	for i := 0; i < n; i++ {
		p := center.Polar(radius, 2*math.Pi*float64(i)/float64(n))
		if !c.standable(u, p) || blocked(u, target, p, frame) {
			continue
		}
		if c.state.Claims.Taken(c.state.Loop, u.Tag, p) {
			continue
		}
		if d := p.Dist(body.Pos); d > bestD {
			best, bestD = p, d
		}
	}
	return best, bestD >= 0
}

// blocked reports whether a unit other than u and target stands so close to
// p that u would overlap it there.
func blocked(u, target *unit.Snapshot, p geom.Point, frame *unit.Frame) bool {
	ur := 0.0
	if u.Radius != nil {
		ur = *u.Radius
	}
	for _, o := range frame.All() {
		if o.Tag == u.Tag || o.Tag == target.Tag {
			continue
		}
		b, ok := o.Body()
		if ok && b.Pos.Dist(p) < b.Radius+ur {
			return true
		}
	}
	return false
}

func containsTag(units []*unit.Snapshot, tag string) bool {
	for _, s := range units {
		if s.Tag == tag {
			return true
		}
	}
	return false
}
