// Package micro decides the per-tick order of a single fighting unit.
package micro

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/vanguard/internal/game/combat"
	"github.com/cory-johannsen/vanguard/internal/game/geom"
	"github.com/cory-johannsen/vanguard/internal/game/retreat"
	"github.com/cory-johannsen/vanguard/internal/game/unit"
	"github.com/cory-johannsen/vanguard/internal/game/world"
)

// State labels the branch a decision took. It is recomputed every tick.
type State int

const (
	StateNone State = iota
	StateAdvance
	StateAttackInRange
	StateKite
	StateSurround
	StateFallback
	StateRetreat
)

// String returns the state label used in logs.
func (s State) String() string {
	switch s {
	case StateAdvance:
		return "advance"
	case StateAttackInRange:
		return "attack_in_range"
	case StateKite:
		return "kite"
	case StateSurround:
		return "surround"
	case StateFallback:
		return "fallback"
	case StateRetreat:
		return "retreat"
	default:
		return "none"
	}
}

// Decision is the outcome of Controller.Decide. Command is nil when the unit
// receives no order this tick.
type Decision struct {
	State   State
	Command *unit.Command
}

func decide(s State, cmd unit.Command) Decision {
	return Decision{State: s, Command: &cmd}
}

// Controller runs the micro state machine for individual units.
type Controller struct {
	eval    *combat.Evaluator
	calc    *combat.Calculator
	planner *retreat.Planner
	m       world.Map
	pf      world.Pathfinder
	state   *combat.State
	logger  *zap.Logger
}

// NewController constructs a Controller.
//
// Precondition: every argument must be non-nil.
func NewController(eval *combat.Evaluator, planner *retreat.Planner, m world.Map, pf world.Pathfinder, state *combat.State, logger *zap.Logger) *Controller {
	if eval == nil {
		panic("micro.NewController: eval must not be nil")
	}
	if planner == nil {
		panic("micro.NewController: planner must not be nil")
	}
	if m == nil {
		panic("micro.NewController: m must not be nil")
	}
	if pf == nil {
		panic("micro.NewController: pf must not be nil")
	}
	if state == nil {
		panic("micro.NewController: state must not be nil")
	}
	if logger == nil {
		panic("micro.NewController: logger must not be nil")
	}
	return &Controller{
		eval:    eval,
		calc:    eval.Calculator(),
		planner: planner,
		m:       m,
		pf:      pf,
		state:   state,
		logger:  logger,
	}
}

// Decide returns the order for u fighting target.
//
// Postcondition: Command is nil when u or target lacks tag, position or
// radius, or when u has no known type. Other units are unaffected.
func (c *Controller) Decide(u, target *unit.Snapshot, frame *unit.Frame) Decision {
	if _, ok := u.Body(); !ok {
		return Decision{}
	}
	if _, ok := target.Body(); !ok {
		return Decision{}
	}
	t, ok := c.calc.TypeOf(u)
	if !ok {
		return Decision{}
	}
	if frame == nil {
		frame = &unit.Frame{}
	}

	var d Decision
	rng, canHit := c.calc.Range(u, target)
	switch {
	case t.Worker:
		d = c.worker(u, target, frame)
	case !canHit:
		d = c.retreat(u, frame)
	case rng <= c.calc.Tuning().MeleeRange:
		d = c.melee(u, target, frame)
	default:
		d = c.ranged(u, target, frame)
	}
	if d.Command != nil {
		c.logger.Debug("micro decision",
			zap.String("unit", u.Tag),
			zap.String("state", d.State.String()),
			zap.Stringer("command", d.Command),
		)
	}
	return d
}

// retreat moves u away from every enemy able to hurt it.
func (c *Controller) retreat(u *unit.Snapshot, frame *unit.Frame) Decision {
	dest, ok := c.planner.Retreat(u, c.planner.Threats(u, frame.Enemies), frame)
	if !ok {
		return Decision{State: StateRetreat}
	}
	return decide(StateRetreat, unit.Move(u.Tag, dest))
}

// projected returns where s is expected after the lookahead.
func (c *Controller) projected(s *unit.Snapshot) geom.Point {
	pos, _ := s.Position()
	return c.state.Tracker.Project(s.Tag, pos, c.calc.Tuning().LookaheadLoops)
}

// standable reports whether u may be ordered to p.
func (c *Controller) standable(u *unit.Snapshot, p geom.Point) bool {
	if !c.m.Bounds().Contains(p) {
		return false
	}
	return u.Flying || c.m.IsPathable(p)
}

// occupied reports whether any unit other than u covers p with its radius.
func occupied(u *unit.Snapshot, p geom.Point, units []*unit.Snapshot) bool {
	for _, o := range units {
		if o == u || o.Tag == u.Tag {
			continue
		}
		b, ok := o.Body()
		if ok && b.Pos.Dist(p) < b.Radius {
			return true
		}
	}
	return false
}
