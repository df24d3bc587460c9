package combat

import (
	"math"

	"github.com/cory-johannsen/vanguard/internal/game/geom"
	"github.com/cory-johannsen/vanguard/internal/game/unit"
)

// Assessment is the outcome of comparing two groups.
type Assessment struct {
	SelfDPS     float64
	EnemyDPS    float64
	SelfHealth  float64
	EnemyHealth float64
	DPSRatio    float64
	HealthRatio float64
	Engage      bool
}

// Score returns the weaker of the two ratios.
func (a Assessment) Score() float64 {
	return math.Min(a.DPSRatio, a.HealthRatio)
}

// Ratio returns self/enemy with the unopposed conventions: +Inf when enemy is
// zero and self is positive, 1 when both are zero.
func Ratio(self, enemy float64) float64 {
	if enemy == 0 {
		if self > 0 {
			return math.Inf(1)
		}
		return 1
	}
	return self / enemy
}

// Policy turns an assessment into an engage verdict.
type Policy interface {
	Engage(a Assessment) bool
}

// RatioPolicy engages when both ratios reach their minimums. Ties engage.
type RatioPolicy struct {
	MinDPSRatio    float64
	MinHealthRatio float64
}

// Engage implements Policy.
func (p RatioPolicy) Engage(a Assessment) bool {
	return a.DPSRatio >= p.MinDPSRatio && a.HealthRatio >= p.MinHealthRatio
}

// Evaluator decides whether a self group should fight an enemy group.
type Evaluator struct {
	calc   *Calculator
	policy Policy
}

// NewEvaluator constructs an Evaluator. A nil policy uses the RatioPolicy
// configured by the calculator's tuning.
//
// Precondition: calc must not be nil.
func NewEvaluator(calc *Calculator, policy Policy) *Evaluator {
	if calc == nil {
		panic("combat.NewEvaluator: calc must not be nil")
	}
	if policy == nil {
		t := calc.Tuning()
		policy = RatioPolicy{MinDPSRatio: t.EngageDPSRatio, MinHealthRatio: t.EngageHealthRatio}
	}
	return &Evaluator{calc: calc, policy: policy}
}

// Calculator returns the damage calculator backing e.
func (e *Evaluator) Calculator() *Calculator { return e.calc }

// IsCombatant reports whether s counts toward a fight: an armed, completed
// unit of known type. Workers count only while executing an attack order.
func (e *Evaluator) IsCombatant(s *unit.Snapshot) bool {
	if s == nil || !s.Completed() {
		return false
	}
	t, ok := e.calc.TypeOf(s)
	if !ok || !t.Armed() {
		return false
	}
	if t.Worker {
		return s.IsAttacking()
	}
	return true
}

// Combatants filters units down to combatants.
func (e *Evaluator) Combatants(units []*unit.Snapshot) []*unit.Snapshot {
	out := make([]*unit.Snapshot, 0, len(units))
	for _, u := range units {
		if e.IsCombatant(u) {
			out = append(out, u)
		}
	}
	return out
}

// Assess compares self against enemy.
//
// Postcondition: Engage is true when enemy is empty or holds no combatant,
// false when self holds no combatant, else the policy verdict.
func (e *Evaluator) Assess(self, enemy []*unit.Snapshot) Assessment {
	selfC := e.Combatants(self)
	enemyC := e.Combatants(enemy)

	a := Assessment{
		SelfDPS:     e.calc.GroupDPS(selfC, enemyC),
		EnemyDPS:    e.calc.GroupDPS(enemyC, selfC),
		SelfHealth:  totalVitality(selfC),
		EnemyHealth: totalVitality(enemyC),
	}
	a.DPSRatio = Ratio(a.SelfDPS, a.EnemyDPS)
	a.HealthRatio = Ratio(a.SelfHealth, a.EnemyHealth)

	switch {
	case len(enemy) == 0:
		a.Engage = true
	case len(selfC) == 0:
		a.Engage = false
	case len(enemyC) == 0:
		a.Engage = true
	default:
		a.Engage = e.policy.Engage(a)
	}
	return a
}

// ShouldEngage reports whether self should fight enemy.
func (e *Evaluator) ShouldEngage(self, enemy []*unit.Snapshot) bool {
	return e.Assess(self, enemy).Engage
}

// StrongerAt assesses own units against enemies within the neighborhood
// radius of pos.
func (e *Evaluator) StrongerAt(pos geom.Point, frame *unit.Frame) (Assessment, bool) {
	if frame == nil {
		return Assessment{}, false
	}
	r := e.calc.Tuning().NeighborhoodRadius
	a := e.Assess(unit.WithinRadius(frame.Self, pos, r), unit.WithinRadius(frame.Enemies, pos, r))
	return a, a.Engage
}

func totalVitality(units []*unit.Snapshot) float64 {
	var sum float64
	for _, u := range units {
		sum += u.Vitality()
	}
	return sum
}
