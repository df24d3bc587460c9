// Package sim replays a scenario against the combat engine: each tick it
// builds the observation frame, asks the orchestrator for commands, then
// moves units and resolves attacks.
package sim

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/cory-johannsen/vanguard/internal/game/combat"
	"github.com/cory-johannsen/vanguard/internal/game/geom"
	"github.com/cory-johannsen/vanguard/internal/game/unit"
	"github.com/cory-johannsen/vanguard/internal/game/world"
)

// defaultResourceRadius is used for resource fields of unknown type.
const defaultResourceRadius = 1.0

// Engine is the decision side driven by the simulator.
type Engine interface {
	Step(frame *unit.Frame) []unit.Command
	EndGame()
}

// Summary describes a finished run.
type Summary struct {
	Ticks      int
	Commands   int
	SelfAlive  int
	EnemyAlive int
	Killed     []string
}

// body is the mutable state of one simulated unit.
type body struct {
	su       world.ScenarioUnit
	pos      geom.Point
	radius   float64
	health   float64
	shield   float64
	cooldown float64
	order    *unit.Command
}

func (b *body) alive() bool { return b.health > 0 || b.su.Alliance == unit.AllianceNeutral }

// Simulator owns the world state of one scenario run.
//
// Not safe for concurrent use.
type Simulator struct {
	sc     *world.Scenario
	calc   *combat.Calculator
	engine Engine
	logger *zap.Logger

	bodies []*body
	byTag  map[string]*body
	dead   []string
	killed []string
}

// New constructs a Simulator positioned at the scenario's initial state.
//
// Precondition: sc, calc, engine and logger must be non-nil.
// Postcondition: Returns an error when a non-neutral unit has an unknown type.
func New(sc *world.Scenario, calc *combat.Calculator, engine Engine, logger *zap.Logger) (*Simulator, error) {
	if sc == nil {
		panic("sim.New: sc must not be nil")
	}
	if calc == nil {
		panic("sim.New: calc must not be nil")
	}
	if engine == nil {
		panic("sim.New: engine must not be nil")
	}
	if logger == nil {
		panic("sim.New: logger must not be nil")
	}
	s := &Simulator{sc: sc, calc: calc, engine: engine, logger: logger, byTag: make(map[string]*body)}
	add := func(su world.ScenarioUnit) error {
		r := su.Radius
		t, ok := calc.TypeOf(&unit.Snapshot{UnitType: su.Type})
		switch {
		case ok && r <= 0:
			r = t.Radius
		case !ok && su.Alliance != unit.AllianceNeutral:
			return fmt.Errorf("unit %q: unknown type %q", su.Tag, su.Type)
		case r <= 0:
			r = defaultResourceRadius
		}
		b := &body{su: su, pos: su.Pos, radius: r, health: su.Health, shield: su.Shield, cooldown: su.Cooldown}
		s.bodies = append(s.bodies, b)
		s.byTag[su.Tag] = b
		return nil
	}
	for _, su := range sc.Units {
		if err := add(su); err != nil {
			return nil, err
		}
	}
	for _, su := range sc.Minerals {
		if err := add(su); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Frame returns the observation at loop.
func (s *Simulator) Frame(loop int) *unit.Frame {
	f := &unit.Frame{Loop: loop, Dead: s.dead}
	for _, b := range s.bodies {
		snap := s.snapshot(b)
		switch b.su.Alliance {
		case unit.AllianceSelf:
			f.Self = append(f.Self, snap)
		case unit.AllianceEnemy:
			f.Enemies = append(f.Enemies, snap)
		case unit.AllianceNeutral:
			f.Minerals = append(f.Minerals, snap)
		}
	}
	return f
}

func (s *Simulator) snapshot(b *body) *unit.Snapshot {
	su := b.su
	su.Health, su.Shield, su.Cooldown = b.health, b.shield, b.cooldown
	snap := su.Snapshot(b.pos, b.radius)
	if su.Alliance == unit.AllianceNeutral {
		snap.Health, snap.Shield, snap.WeaponCooldown = nil, nil, nil
	}
	if t, ok := s.calc.TypeOf(snap); ok {
		snap.Flying = t.Flying
	}
	if b.order != nil {
		o := unit.Order{Ability: unit.AbilityMove, TargetPos: b.order.TargetPos, TargetTag: b.order.TargetTag}
		switch b.order.Kind {
		case unit.CommandAttack:
			o.Ability = unit.AbilityAttack
		case unit.CommandGather:
			o.Ability = unit.AbilityHarvestGather
		case unit.CommandStop:
			o.Ability = unit.AbilityStop
		}
		snap.Orders = []unit.Order{o}
	}
	return snap
}

// Run plays every tick of the scenario, or until ctx is cancelled, then ends
// the game on the engine.
func (s *Simulator) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	defer s.engine.EndGame()
	for tick := 0; tick < s.sc.Ticks; tick++ {
		if err := ctx.Err(); err != nil {
			return s.summarize(sum), err
		}
		loop := tick * s.sc.LoopsPerTick
		cmds := s.engine.Step(s.Frame(loop))
		for _, c := range cmds {
			s.logger.Debug("command", zap.Int("loop", loop), zap.Stringer("command", c))
		}
		sum.Ticks++
		sum.Commands += len(cmds)
		s.Advance(cmds, float64(s.sc.LoopsPerTick))
	}
	return s.summarize(sum), nil
}

func (s *Simulator) summarize(sum Summary) Summary {
	for _, b := range s.bodies {
		switch b.su.Alliance {
		case unit.AllianceSelf:
			sum.SelfAlive++
		case unit.AllianceEnemy:
			sum.EnemyAlive++
		}
	}
	sum.Killed = append([]string(nil), s.killed...)
	return sum
}

// Advance applies cmds to own units and moves the world forward by loops
// game loops. Enemies follow their scripted velocity and fire at the nearest
// own unit in range.
func (s *Simulator) Advance(cmds []unit.Command, loops float64) {
	for i := range cmds {
		if b, ok := s.byTag[cmds[i].UnitTag]; ok && b.su.Alliance == unit.AllianceSelf {
			c := cmds[i]
			b.order = &c
		}
	}
	s.dead = nil
	bounds := s.sc.Layout.Bounds()
	for _, b := range s.bodies {
		if !b.alive() || b.su.Alliance == unit.AllianceNeutral {
			continue
		}
		switch b.su.Alliance {
		case unit.AllianceSelf:
			s.act(b, loops)
		case unit.AllianceEnemy:
			b.pos = b.pos.Add(b.su.Velocity.Scale(loops))
			if t := s.nearestInRange(b, unit.AllianceSelf); t != nil {
				s.fire(b, t)
			}
		}
		b.pos = bounds.Clamp(b.pos)
		b.cooldown = math.Max(0, b.cooldown-loops)
	}
	s.removeDead()
}

func (s *Simulator) act(b *body, loops float64) {
	if b.order == nil {
		return
	}
	step := s.calc.Speed(s.snapshot(b)) * loops / s.calc.Tuning().LoopsPerSecond
	switch b.order.Kind {
	case unit.CommandMove:
		b.pos = moveTowards(b.pos, *b.order.TargetPos, step)
	case unit.CommandGather:
		if m, ok := s.byTag[b.order.TargetTag]; ok {
			b.pos = moveTowards(b.pos, m.pos, math.Min(step, math.Max(0, b.pos.Dist(m.pos)-b.radius-m.radius)))
		}
	case unit.CommandAttack:
		if b.order.TargetTag != "" {
			t, ok := s.byTag[b.order.TargetTag]
			if !ok || !t.alive() {
				return
			}
			if !s.inRange(b, t) {
				b.pos = moveTowards(b.pos, t.pos, step)
				return
			}
			s.fire(b, t)
			return
		}
		if t := s.nearestInRange(b, unit.AllianceEnemy); t != nil {
			s.fire(b, t)
			return
		}
		b.pos = moveTowards(b.pos, *b.order.TargetPos, step)
	}
}

func (s *Simulator) inRange(a, t *body) bool {
	rng, ok := s.calc.Range(s.snapshot(a), s.snapshot(t))
	return ok && a.pos.Dist(t.pos) <= rng+a.radius+t.radius
}

func (s *Simulator) nearestInRange(a *body, side unit.Alliance) *body {
	var (
		best  *body
		bestD = math.Inf(1)
	)
	for _, t := range s.bodies {
		if t.su.Alliance != side || !t.alive() || !s.inRange(a, t) {
			continue
		}
		if d := a.pos.Dist(t.pos); d < bestD {
			best, bestD = t, d
		}
	}
	return best
}

// fire resolves one volley of a against t when a's weapon is ready.
func (s *Simulator) fire(a, t *body) {
	if a.cooldown > 0 {
		return
	}
	as, ts := s.snapshot(a), s.snapshot(t)
	w, ok := s.calc.Weapon(as, ts)
	if !ok {
		return
	}
	dmg := s.calc.Volley(w, a.su.Alliance, ts)
	absorbed := math.Min(t.shield, dmg)
	t.shield -= absorbed
	t.health -= dmg - absorbed
	a.cooldown = w.Speed * s.calc.Tuning().LoopsPerSecond
	s.logger.Debug("hit",
		zap.String("attacker", a.su.Tag),
		zap.String("target", t.su.Tag),
		zap.Float64("damage", dmg),
		zap.Float64("health", t.health),
	)
}

func (s *Simulator) removeDead() {
	kept := s.bodies[:0]
	for _, b := range s.bodies {
		if b.alive() {
			kept = append(kept, b)
			continue
		}
		delete(s.byTag, b.su.Tag)
		s.dead = append(s.dead, b.su.Tag)
		s.killed = append(s.killed, b.su.Tag)
		s.logger.Info("unit destroyed", zap.String("unit", b.su.Tag), zap.String("alliance", b.su.Alliance.String()))
	}
	s.bodies = kept
	sort.Strings(s.dead)
}

func moveTowards(from, to geom.Point, step float64) geom.Point {
	if from.Dist(to) <= step {
		return to
	}
	return from.Towards(to, step)
}
