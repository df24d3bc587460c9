package micro

import (
	"math"

	"github.com/cory-johannsen/vanguard/internal/game/geom"
	"github.com/cory-johannsen/vanguard/internal/game/unit"
)

// workerDangerLoops is the time-to-be-killed, in game loops, below which a
// worker stops fighting.
const workerDangerLoops = 24

// worker fights target unless doing so would get it killed, in which case it
// flees to a mineral field the target cannot reach first.
func (c *Controller) worker(u, target *unit.Snapshot, frame *unit.Frame) Decision {
	if !c.calc.CanDamage(u, target) || c.workerInDanger(u, target) {
		return c.workerRetreat(u, target, frame)
	}
	if c.inRange(u, target) {
		return decide(StateAttackInRange, unit.Attack(u.Tag, target.Tag))
	}
	return decide(StateAdvance, unit.Attack(u.Tag, target.Tag))
}

// workerInDanger reports whether target can hit u next step and u is either
// still reloading or about to die.
func (c *Controller) workerInDanger(u, target *unit.Snapshot) bool {
	pos, _ := u.Position()
	if !c.calc.Threatens(target, u, pos) {
		return false
	}
	if cd, ok := u.Cooldown(); ok && cd > c.calc.Tuning().CooldownThreshold {
		return true
	}
	return c.loopsToBeKilled(u, target) < workerDangerLoops
}

// loopsToBeKilled returns how many game loops target needs to destroy u.
func (c *Controller) loopsToBeKilled(u, target *unit.Snapshot) float64 {
	dps := c.calc.Against(target, u)
	if dps <= 0 {
		return math.Inf(1)
	}
	return u.Vitality() / dps * c.calc.Tuning().LoopsPerSecond
}

// workerRetreat gathers from the nearest mineral field u reaches before
// target does, or moves straight away from target when none qualifies.
func (c *Controller) workerRetreat(u, target *unit.Snapshot, frame *unit.Frame) Decision {
	pos, _ := u.Position()
	tp, _ := target.Position()

	if m := c.safeMineral(u, pos, tp, frame.Minerals); m != nil {
		return decide(StateRetreat, unit.Gather(u.Tag, m.Tag))
	}
	dest, ok := c.planner.RetreatGroup(u, []geom.Point{tp})
	if !ok {
		return Decision{State: StateRetreat}
	}
	return decide(StateRetreat, unit.Move(u.Tag, dest))
}

func (c *Controller) safeMineral(u *unit.Snapshot, pos, threat geom.Point, minerals []*unit.Snapshot) *unit.Snapshot {
	var (
		best  *unit.Snapshot
		bestD = math.Inf(1)
	)
	for _, m := range minerals {
		mp, ok := m.Position()
		if !ok || m.Tag == "" {
			continue
		}
		mine, theirs := c.travel(u, pos, mp), c.pf.PathDistance(threat, mp)
		if mine < theirs && mine < bestD {
			best, bestD = m, mine
		}
	}
	return best
}

// travel returns the distance u covers going from a to b.
func (c *Controller) travel(u *unit.Snapshot, a, b geom.Point) float64 {
	if u.Flying {
		return a.Dist(b)
	}
	return c.pf.PathDistance(a, b)
}
