// Package orchestrator is the per-tick entry point of the combat engine. It
// owns the per-game combat state, groups enemies into engagements and
// dispatches every own unit to the micro controller or the retreat planner.
package orchestrator

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/vanguard/internal/game/cluster"
	"github.com/cory-johannsen/vanguard/internal/game/combat"
	"github.com/cory-johannsen/vanguard/internal/game/geom"
	"github.com/cory-johannsen/vanguard/internal/game/micro"
	"github.com/cory-johannsen/vanguard/internal/game/retreat"
	"github.com/cory-johannsen/vanguard/internal/game/unit"
	"github.com/cory-johannsen/vanguard/internal/game/world"
	"github.com/cory-johannsen/vanguard/internal/observability"
)

// Orchestrator drives one game.
//
// Not safe for concurrent use: the driver calls it once per tick from a
// single goroutine.
type Orchestrator struct {
	gameID  string
	eval    *combat.Evaluator
	calc    *combat.Calculator
	state   *combat.State
	planner *retreat.Planner
	micro   *micro.Controller
	clock   *observability.TickClock
	logger  *zap.Logger
	frame   *unit.Frame
}

// New constructs an Orchestrator for a new game.
//
// Precondition: eval, m, pf and logger must be non-nil.
// Postcondition: Every log entry of the orchestrator and its components
// carries the generated game id.
func New(eval *combat.Evaluator, m world.Map, pf world.Pathfinder, logger *zap.Logger) *Orchestrator {
	if eval == nil {
		panic("orchestrator.New: eval must not be nil")
	}
	if m == nil {
		panic("orchestrator.New: m must not be nil")
	}
	if pf == nil {
		panic("orchestrator.New: pf must not be nil")
	}
	if logger == nil {
		panic("orchestrator.New: logger must not be nil")
	}
	id := uuid.NewString()
	logger = observability.ForGame(logger, id)
	state := combat.NewState()
	planner := retreat.NewPlanner(eval, m, pf, state, logger)
	calc := eval.Calculator()

	o := &Orchestrator{
		gameID:  id,
		eval:    eval,
		calc:    calc,
		state:   state,
		planner: planner,
		micro:   micro.NewController(eval, planner, m, pf, state, logger),
		clock:   observability.NewTickClock(calc.Tuning().TickBudget, logger),
		logger:  logger,
	}
	logger.Info("game started")
	return o
}

// GameID returns the session id attached to every log entry of this game.
func (o *Orchestrator) GameID() string { return o.gameID }

// State returns the per-game combat state.
func (o *Orchestrator) State() *combat.State { return o.state }

// Clock returns the tick budget monitor.
func (o *Orchestrator) Clock() *observability.TickClock { return o.clock }

// BeginTick moves the combat state to frame's loop: per-tick stores are
// cleared, enemy samples recorded, dead and stale tracks evicted.
//
// Precondition: called once per tick before any Decide call for that tick.
func (o *Orchestrator) BeginTick(frame *unit.Frame) {
	if frame == nil {
		return
	}
	o.frame = frame
	o.state.BeginTick(frame.Loop)

	now := float64(frame.Loop)
	for _, e := range frame.Enemies {
		if pos, ok := e.Position(); ok && e.Tag != "" {
			o.state.Tracker.Update(e.Tag, pos, now)
		}
	}
	for _, tag := range frame.Dead {
		o.state.Tracker.Evict(tag)
	}
	if n := o.state.Tracker.Expire(now, o.calc.Tuning().TrackerExpiryLoops); n > 0 {
		o.logger.Debug("expired threat tracks", zap.Int("loop", frame.Loop), zap.Int("count", n))
	}
}

// Step runs one full tick: BeginTick, clustering of visible enemies, and one
// group decision per cluster with the own combatants nearest to it. Own
// units not close to any cluster receive no command.
func (o *Orchestrator) Step(frame *unit.Frame) []unit.Command {
	if frame == nil {
		return nil
	}
	stop := o.clock.Start(frame.Loop)
	defer stop()

	o.BeginTick(frame)
	t := o.calc.Tuning()

	groups := cluster.DBSCAN(frame.Enemies, (*unit.Snapshot).Position, t.ClusterEpsilon, t.ClusterMinPoints)
	if len(groups) == 0 {
		return nil
	}
	assigned := make([][]*unit.Snapshot, len(groups))
	for _, u := range o.eval.Combatants(frame.Self) {
		pos, ok := u.Position()
		if !ok {
			continue
		}
		if i := cluster.Nearest(groups, pos, t.NeighborhoodRadius+t.ClusterEpsilon); i >= 0 {
			assigned[i] = append(assigned[i], u)
		}
	}

	var cmds []unit.Command
	for i, g := range groups {
		if len(assigned[i]) == 0 {
			continue
		}
		cmds = append(cmds, o.DecideForGroup(assigned[i], g.Members, anchor(g))...)
	}
	o.logger.Debug("tick",
		zap.Int("loop", frame.Loop),
		zap.Int("clusters", len(groups)),
		zap.Int("commands", len(cmds)),
	)
	return cmds
}

// anchor returns the position of the member nearest the group centroid.
func anchor(g cluster.Group[*unit.Snapshot]) geom.Point {
	reps := cluster.Representatives([]cluster.Group[*unit.Snapshot]{g}, (*unit.Snapshot).Position)
	if len(reps) == 0 {
		return g.Centroid
	}
	p, _ := reps[0].Position()
	return p
}

// DecideForGroup returns the orders of self fighting enemies around anchor.
// When self is evaluated stronger every unit fights: units with a target in
// reach are micro-managed, the rest attack-move to anchor. Otherwise every
// unit retreats.
//
// Postcondition: structures and units lacking geometry or a known type receive
// no command; the result holds at most one command per unit.
func (o *Orchestrator) DecideForGroup(self, enemies []*unit.Snapshot, anchor geom.Point) []unit.Command {
	if len(self) == 0 {
		return nil
	}
	frame := o.view(self, enemies)
	a := o.eval.Assess(self, enemies)
	o.logger.Debug("group assessment",
		zap.Int("self", len(self)),
		zap.Int("enemies", len(enemies)),
		zap.Float64("dps_ratio", a.DPSRatio),
		zap.Float64("health_ratio", a.HealthRatio),
		zap.Bool("engage", a.Engage),
	)

	var cmds []unit.Command
	for _, u := range self {
		if !o.mobile(u) {
			continue
		}
		var cmd *unit.Command
		if a.Engage {
			cmd = o.fight(u, enemies, anchor, frame)
		} else {
			cmd = o.retreat(u, enemies, frame)
		}
		if cmd != nil {
			cmds = append(cmds, *cmd)
		}
	}
	return cmds
}

// DecideForUnit returns the order for u given the enemies it can see,
// evaluating the engagement on u's neighborhood.
//
// Postcondition: Returns nil when u lacks geometry, is a structure, or sees
// no enemy.
func (o *Orchestrator) DecideForUnit(u *unit.Snapshot, visibleEnemies []*unit.Snapshot) *unit.Command {
	pos, ok := u.Position()
	if !ok || len(visibleEnemies) == 0 {
		return nil
	}
	if !o.mobile(u) {
		return nil
	}
	r := o.calc.Tuning().NeighborhoodRadius
	var allies []*unit.Snapshot
	if o.frame != nil {
		allies = unit.WithinRadius(o.frame.Self, pos, r)
	}
	if !containsTag(allies, u.Tag) {
		allies = append(allies, u)
	}
	frame := o.view(allies, visibleEnemies)
	if o.eval.ShouldEngage(allies, unit.WithinRadius(visibleEnemies, pos, r)) {
		return o.fight(u, visibleEnemies, pos, frame)
	}
	return o.retreat(u, visibleEnemies, frame)
}

// mobile reports whether u has full geometry and a known type that can move.
func (o *Orchestrator) mobile(u *unit.Snapshot) bool {
	if _, ok := u.Body(); !ok {
		return false
	}
	t, ok := o.calc.TypeOf(u)
	return ok && !t.Structure
}

// view returns the frame of the current tick restricted to enemies. Own
// units come from the tick frame when one was begun, else from self.
func (o *Orchestrator) view(self, enemies []*unit.Snapshot) *unit.Frame {
	f := &unit.Frame{Loop: o.state.Loop, Self: self, Enemies: enemies}
	if o.frame != nil {
		f.Self = o.frame.Self
		f.Minerals = o.frame.Minerals
	}
	return f
}

func (o *Orchestrator) fight(u *unit.Snapshot, enemies []*unit.Snapshot, fallback geom.Point, frame *unit.Frame) *unit.Command {
	target := o.target(u, enemies)
	if target == nil {
		if t, ok := o.calc.TypeOf(u); ok && t.Armed() {
			cmd := unit.AttackMove(u.Tag, fallback)
			return &cmd
		}
		return nil
	}
	return o.micro.Decide(u, target, frame).Command
}

// target returns the nearest enemy with full geometry. Enemies u can damage
// are preferred; an enemy it cannot hit is returned only when nothing else
// is visible, so the micro controller can pull u away from it.
func (o *Orchestrator) target(u *unit.Snapshot, enemies []*unit.Snapshot) *unit.Snapshot {
	pos, _ := u.Position()
	var hittable, other []*unit.Snapshot
	for _, e := range enemies {
		if _, ok := e.Body(); !ok {
			continue
		}
		if o.calc.CanDamage(u, e) {
			hittable = append(hittable, e)
		} else if o.eval.IsCombatant(e) && o.calc.CanDamage(e, u) {
			other = append(other, e)
		}
	}
	if t := unit.Nearest(hittable, pos); t != nil {
		return t
	}
	return unit.Nearest(other, pos)
}

func (o *Orchestrator) retreat(u *unit.Snapshot, enemies []*unit.Snapshot, frame *unit.Frame) *unit.Command {
	dest, ok := o.planner.Retreat(u, o.planner.Threats(u, enemies), frame)
	if !ok {
		dest, ok = o.planner.RetreatGroup(u, unit.Positions(enemies))
	}
	if !ok {
		return nil
	}
	cmd := unit.Move(u.Tag, dest)
	return &cmd
}

// EndGame clears every per-game store.
func (o *Orchestrator) EndGame() {
	o.logger.Info("game ended",
		zap.Int("loop", o.state.Loop),
		zap.Int("tick_overruns", o.clock.Overruns()),
		zap.Duration("worst_tick", o.clock.Worst().Round(time.Microsecond)),
	)
	o.state.Reset()
	o.clock.Reset()
	o.frame = nil
}

func containsTag(units []*unit.Snapshot, tag string) bool {
	for _, s := range units {
		if s.Tag == tag {
			return true
		}
	}
	return false
}
