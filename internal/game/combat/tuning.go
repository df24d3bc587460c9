package combat

import "time"

// Tuning holds the game-balance constants of the combat engine.
//
// These are tuning values rather than invariants; every consumer reads them
// from a Tuning so they can be validated against live play.
type Tuning struct {
	// EngageDPSRatio and EngageHealthRatio are the minimum self/enemy ratios
	// for an engage verdict. Ties engage.
	EngageDPSRatio    float64
	EngageHealthRatio float64
	// NeighborhoodRadius bounds local threat and ally queries.
	NeighborhoodRadius float64
	// CooldownThreshold is the weapon cooldown, in loops, above which a
	// ranged unit kites instead of attacking.
	CooldownThreshold float64
	// LookaheadLoops is how far threat projection extrapolates.
	LookaheadLoops float64
	// StepLoops is the number of game loops between decisions.
	StepLoops float64
	// LoopsPerSecond converts game seconds to loops.
	LoopsPerSecond float64

	SafeStartRadius  float64
	SafeMaxRadius    float64
	SafeRadiusStep   float64
	SafeAngleStepDeg float64

	// GarrisonDistance is the maximum path distance to a garrison structure.
	GarrisonDistance float64
	// AwayDistance is the length of the direct away-vector retreat.
	AwayDistance float64
	// RallyOffset moves a computed rally from the own base toward the enemy.
	RallyOffset float64

	MaxKitePointsPerThreat int
	MaxSurroundPoints      int
	MaxExpansions          int

	ClusterEpsilon   float64
	ClusterMinPoints int

	// TrackerExpiryLoops evicts threat history not refreshed for this long.
	TrackerExpiryLoops float64
	// TickBudget is the wall-clock budget of one decision tick.
	TickBudget time.Duration
	// MeleeRange is the largest weapon range still treated as melee.
	MeleeRange float64
	// MinClosingSpeed floors closing speed in time-to-kill math, in distance per second.
	MinClosingSpeed float64
}

// DefaultTuning returns the stock tuning values.
func DefaultTuning() Tuning {
	return Tuning{
		EngageDPSRatio:         1.0,
		EngageHealthRatio:      1.0,
		NeighborhoodRadius:     16,
		CooldownThreshold:      8,
		LookaheadLoops:         8,
		StepLoops:              8,
		LoopsPerSecond:         22.4,
		SafeStartRadius:        0.5,
		SafeMaxRadius:          16,
		SafeRadiusStep:         0.5,
		SafeAngleStepDeg:       2.5,
		GarrisonDistance:       16,
		AwayDistance:           4,
		RallyOffset:            8,
		MaxKitePointsPerThreat: 32,
		MaxSurroundPoints:      16,
		MaxExpansions:          32,
		ClusterEpsilon:         8,
		ClusterMinPoints:       2,
		TrackerExpiryLoops:     224,
		TickBudget:             40 * time.Millisecond,
		MeleeRange:             1.5,
		MinClosingSpeed:        0.5,
	}
}

// TravelPerStep returns the distance a unit of the given speed (distance per
// game second) covers between two decisions.
func (t Tuning) TravelPerStep(speed float64) float64 {
	if t.LoopsPerSecond <= 0 {
		return 0
	}
	return speed * t.StepLoops / t.LoopsPerSecond
}
