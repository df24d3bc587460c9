package micro

import (
	"math"

	"github.com/cory-johannsen/vanguard/internal/game/geom"
	"github.com/cory-johannsen/vanguard/internal/game/unit"
)

// ShouldMicro reports whether u should reposition rather than attack: its
// weapon cooldown exceeds the threshold and the projected target position is
// within its weapon range.
func (c *Controller) ShouldMicro(u, target *unit.Snapshot) bool {
	body, ok := u.Body()
	if !ok {
		return false
	}
	tb, ok := target.Body()
	if !ok {
		return false
	}
	cd, ok := u.Cooldown()
	if !ok || cd <= c.calc.Tuning().CooldownThreshold {
		return false
	}
	rng, ok := c.calc.Range(u, target)
	if !ok {
		return false
	}
	return body.Pos.Dist(c.projected(target)) < rng+body.Radius+tb.Radius
}

func (c *Controller) ranged(u, target *unit.Snapshot, frame *unit.Frame) Decision {
	if c.ShouldMicro(u, target) {
		if p, ok := c.KitePosition(u, target, frame); ok {
			return decide(StateKite, unit.Move(u.Tag, p))
		}
		return c.retreat(u, frame)
	}
	return c.attack(u, target, frame)
}

// nearbyThreats returns target plus the enemy combatants within the
// neighborhood radius of it.
func (c *Controller) nearbyThreats(target *unit.Snapshot, frame *unit.Frame) []*unit.Snapshot {
	out := []*unit.Snapshot{target}
	tp, _ := target.Position()
	r := c.calc.Tuning().NeighborhoodRadius
	for _, e := range frame.Enemies {
		if e.Tag == target.Tag || !c.eval.IsCombatant(e) {
			continue
		}
		if p, ok := e.Position(); ok && p.Dist(tp) <= r {
			out = append(out, e)
		}
	}
	return out
}

// KitePosition returns the free position closest to u that keeps the optimal
// attack distance (own range plus both radii) from every nearby threat.
//
// Postcondition: ok is false when no sampled position qualifies.
func (c *Controller) KitePosition(u, target *unit.Snapshot, frame *unit.Frame) (geom.Point, bool) {
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
	optimal := rng + body.Radius + tb.Radius
	threats := c.nearbyThreats(target, frame)
	everyone := frame.All()

	n := int(math.Floor(2 * math.Pi * optimal / (2 * math.Max(body.Radius, 0.1))))
	if limit := c.calc.Tuning().MaxKitePointsPerThreat; n > limit {
		n = limit
	}
	if n < 1 {
		n = 1
	}

	var (
		best  geom.Point
		bestD = math.Inf(1)
	)
	for _, th := range threats {
		center := c.projected(th)
		for i := 0; i < n; i++ {
			p := center.Polar(optimal, 2*math.Pi*float64(i)/float64(n))
			if !c.standable(u, p) || occupied(u, p, everyone) || !clearOf(p, threats, optimal) {
				continue
			}
			if d := p.Dist(body.Pos); d < bestD {
				best, bestD = p, d
			}
		}
	}
	return best, !math.IsInf(bestD, 1)
}

// clearOf reports whether p is at least dist from every located unit.
func clearOf(p geom.Point, units []*unit.Snapshot, dist float64) bool {
	for _, s := range units {
		if pos, ok := s.Position(); ok && pos.Dist(p) < dist-1e-9 {
			return false
		}
	}
	return true
}

// attack picks a target for a ranged unit that is free to fire: an enemy
// already attacking u first, then the optimal target, then the nearest
// enemy in range.
func (c *Controller) attack(u, target *unit.Snapshot, frame *unit.Frame) Decision {
	targetable := c.targetable(u, frame.Enemies)

	if th := c.immediateThreat(u, targetable); th != nil {
		c.reserve(u, th)
		return decide(StateAttackInRange, unit.Attack(u.Tag, th.Tag))
	}
	if best := c.OptimalTarget(u, targetable); best != nil {
		c.reserve(u, best)
		if c.inRange(u, best) {
			return decide(StateAttackInRange, unit.Attack(u.Tag, best.Tag))
		}
		return decide(StateAdvance, unit.Attack(u.Tag, best.Tag))
	}
	pos, _ := u.Position()
	var inRange []*unit.Snapshot
	for _, e := range targetable {
		if c.inRange(u, e) {
			inRange = append(inRange, e)
		}
	}
	if e := unit.Nearest(inRange, pos); e != nil {
		return decide(StateAttackInRange, unit.Attack(u.Tag, e.Tag))
	}
	tp, _ := target.Position()
	return decide(StateAdvance, unit.AttackMove(u.Tag, tp))
}

// targetable returns the located enemies u has a weapon against.
func (c *Controller) targetable(u *unit.Snapshot, enemies []*unit.Snapshot) []*unit.Snapshot {
	var out []*unit.Snapshot
	for _, e := range enemies {
		if _, ok := e.Body(); ok && c.calc.CanDamage(u, e) {
			out = append(out, e)
		}
	}
	return out
}

// inRange reports whether e is within the weapon range of u, radii included.
func (c *Controller) inRange(u, e *unit.Snapshot) bool {
	ub, ok := u.Body()
	if !ok {
		return false
	}
	eb, ok := e.Body()
	if !ok {
		return false
	}
	rng, ok := c.calc.Range(u, e)
	return ok && ub.Pos.Dist(eb.Pos) <= rng+ub.Radius+eb.Radius
}

// ActivelyAttacking reports whether enemy appears to be attacking u: it can
// hit u and u lies within its range plus its anticipated movement.
func (c *Controller) ActivelyAttacking(enemy, u *unit.Snapshot) bool {
	ub, ok := u.Body()
	if !ok {
		return false
	}
	eb, ok := enemy.Body()
	if !ok {
		return false
	}
	rng, ok := c.calc.Range(enemy, u)
	if !ok {
		return false
	}
	moving := eb.Pos.Dist(c.projected(enemy))
	return eb.Pos.Dist(ub.Pos) <= rng+ub.Radius+eb.Radius+moving
}

// immediateThreat returns the enemy already attacking u and inside u's own
// range with the lowest remaining vitality after reserved damage. Enemies
// whose reserved damage already covers their vitality are skipped.
func (c *Controller) immediateThreat(u *unit.Snapshot, enemies []*unit.Snapshot) *unit.Snapshot {
	var (
		best   *unit.Snapshot
		lowest = math.Inf(1)
	)
	for _, e := range enemies {
		if !c.ActivelyAttacking(e, u) || !c.inRange(u, e) {
			continue
		}
		if left := e.Vitality() - c.state.Ledger.Reserved(c.state.Loop, e.Tag); left > 0 && left < lowest {
			best, lowest = e, left
		}
	}
	return best
}

// OptimalTarget returns the enemy within the neighborhood radius that u
// should focus: killing blows first, then the lowest remaining vitality after
// u's volley and damage already reserved this tick, then the shortest
// time to kill including travel.
//
// Postcondition: Returns nil when u cannot damage any candidate.
func (c *Controller) OptimalTarget(u *unit.Snapshot, enemies []*unit.Snapshot) *unit.Snapshot {
	pos, ok := u.Position()
	if !ok {
		return nil
	}
	type scored struct {
		e    *unit.Snapshot
		kill bool
		left float64
		ttk  float64
	}
	var best *scored
	better := func(a, b *scored) bool {
		if a.kill != b.kill {
			return a.kill
		}
		if a.left != b.left {
			if a.kill {
				// Least overkill.
				return a.left > b.left
			}
			return a.left < b.left
		}
		return a.ttk < b.ttk
	}
	maxDist := c.calc.Tuning().NeighborhoodRadius
	for _, e := range enemies {
		ep, ok := e.Position()
		if !ok || e.Tag == "" || ep.Dist(pos) > maxDist {
			continue
		}
		w, ok := c.calc.Weapon(u, e)
		if !ok {
			continue
		}
		hit := c.calc.Volley(w, u.Alliance, e)
		if hit <= 0 {
			continue
		}
		reserved := c.state.Ledger.Reserved(c.state.Loop, e.Tag)
		if e.Vitality()-reserved <= 0 {
			// Already dies to volleys reserved this tick.
			continue
		}
		ttk, ok := c.TimeToKill(u, e, reserved)
		if !ok {
			continue
		}
		left := e.Vitality() - reserved - hit
		s := &scored{e: e, kill: left <= 0, left: left, ttk: ttk}
		if best == nil || better(s, best) {
			best = s
		}
	}
	if best == nil {
		return nil
	}
	return best.e
}

// TimeToKill returns the seconds u needs to destroy e, given damage already
// reserved against it, including the time to close to weapon range.
// Per-volley damage is floored at 1 and closing speed at the configured
// minimum.
func (c *Controller) TimeToKill(u, e *unit.Snapshot, reserved float64) (float64, bool) {
	ub, ok := u.Body()
	if !ok {
		return 0, false
	}
	eb, ok := e.Body()
	if !ok {
		return 0, false
	}
	w, ok := c.calc.Weapon(u, e)
	if !ok {
		return 0, false
	}
	t := c.calc.Tuning()
	dps := math.Max(1, c.calc.Volley(w, u.Alliance, e)) / w.Speed
	health := math.Max(0, e.Vitality()-reserved)

	gap := math.Max(0, ub.Pos.Dist(eb.Pos)-ub.Radius-eb.Radius-w.Range)
	closing := c.calc.Speed(u)
	if rec, ok := c.state.Tracker.Record(e.Tag); ok {
		if dt := rec.Current.Loop - rec.Previous.Loop; rec.HasPrevious && dt > 0 {
			// Positive when e moves away from u.
			receding := (ub.Pos.Dist(rec.Current.Pos) - ub.Pos.Dist(rec.Previous.Pos)) / dt * t.LoopsPerSecond
			closing -= receding
		}
	}
	closing = math.Max(closing, t.MinClosingSpeed)
	return health/dps + gap/closing, true
}

// reserve records the damage of u's next volley against e.
func (c *Controller) reserve(u, e *unit.Snapshot) {
	w, ok := c.calc.Weapon(u, e)
	if !ok {
		return
	}
	if hit := c.calc.Volley(w, u.Alliance, e); hit > 0 {
		c.state.Ledger.Reserve(c.state.Loop, e.Tag, hit)
	}
}
