package retreat

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/cory-johannsen/vanguard/internal/game/combat"
	"github.com/cory-johannsen/vanguard/internal/game/geom"
	"github.com/cory-johannsen/vanguard/internal/game/unit"
	"github.com/cory-johannsen/vanguard/internal/game/world"
)

const (
	// maxPathSamples caps how many waypoints a path safety check inspects.
	maxPathSamples = 64
	// expansionAreaRadius is how close a path must pass to an expansion
	// centroid to count as crossing it.
	expansionAreaRadius = 6
)

// Strategy names, in evaluation order.
const (
	StrategyRally     = "rally"
	StrategyGarrison  = "garrison"
	StrategyExpansion = "expansion"
	StrategySafe      = "safe_position"
	StrategyAway      = "away"
)

// Candidate is an expansion considered as a retreat destination.
type Candidate struct {
	Point geom.Point
	// FromUnit is the path distance from the retreating unit.
	FromUnit float64
	// FromThreat is the path distance from the projected primary threat,
	// less its engagement range.
	FromThreat float64
	Safe       bool
	// ExpansionsOnPath counts other expansions the route crosses.
	ExpansionsOnPath int
}

// Planner chooses where a threatened unit should go.
type Planner struct {
	eval       *combat.Evaluator
	calc       *combat.Calculator
	m          world.Map
	pf         world.Pathfinder
	state      *combat.State
	search     *SafeSearch
	logger     *zap.Logger
	strategies []Strategy
}

// NewPlanner constructs a Planner.
//
// Precondition: eval, m, pf, state and logger must not be nil.
func NewPlanner(eval *combat.Evaluator, m world.Map, pf world.Pathfinder, state *combat.State, logger *zap.Logger) *Planner {
	if eval == nil {
		panic("retreat.NewPlanner: eval must not be nil")
	}
	if m == nil {
		panic("retreat.NewPlanner: m must not be nil")
	}
	if pf == nil {
		panic("retreat.NewPlanner: pf must not be nil")
	}
	if state == nil {
		panic("retreat.NewPlanner: state must not be nil")
	}
	if logger == nil {
		panic("retreat.NewPlanner: logger must not be nil")
	}
	p := &Planner{
		eval:   eval,
		calc:   eval.Calculator(),
		m:      m,
		pf:     pf,
		state:  state,
		search: NewSafeSearch(eval.Calculator(), m),
		logger: logger,
	}
	p.strategies = []Strategy{
		{Name: StrategyRally, Propose: p.toRally},
		{Name: StrategyGarrison, Propose: p.toGarrison},
		{Name: StrategyExpansion, Propose: p.toExpansion},
		{Name: StrategySafe, Propose: p.toSafePosition},
		{Name: StrategyAway, Propose: p.awayFromThreats},
	}
	return p
}

// Search returns the safe-position search used by p.
func (p *Planner) Search() *SafeSearch { return p.search }

// Threats returns the enemies within the neighborhood radius of u that can
// damage it.
func (p *Planner) Threats(u *unit.Snapshot, enemies []*unit.Snapshot) []*unit.Snapshot {
	pos, ok := u.Position()
	if !ok {
		return nil
	}
	r := p.calc.Tuning().NeighborhoodRadius
	var out []*unit.Snapshot
	for _, e := range enemies {
		ep, ok := e.Position()
		if ok && ep.Dist(pos) <= r && p.calc.CanDamage(e, u) {
			out = append(out, e)
		}
	}
	return out
}

// Retreat returns where u should go to escape threats.
//
// Postcondition: ok is false only when u has no geometry or no threat has a
// known position. Otherwise a point is always returned.
func (p *Planner) Retreat(u *unit.Snapshot, threats []*unit.Snapshot, frame *unit.Frame) (geom.Point, bool) {
	r, ok := p.request(u, threats, frame)
	if !ok {
		return geom.Point{}, false
	}
	dest, name, ok := FirstSuccess(r, p.strategies)
	if ok {
		p.logger.Debug("retreat",
			zap.String("unit", r.Body.Tag),
			zap.String("strategy", name),
			zap.Float64("x", dest.X),
			zap.Float64("y", dest.Y),
		)
	}
	return dest, ok
}

// RetreatGroup returns a point moving u directly away from the mean of
// threatPoints.
//
// Postcondition: ok is false when u has no geometry or threatPoints is empty.
func (p *Planner) RetreatGroup(u *unit.Snapshot, threatPoints []geom.Point) (geom.Point, bool) {
	body, ok := u.Body()
	if !ok {
		return geom.Point{}, false
	}
	center, ok := geom.Centroid(threatPoints)
	if !ok {
		return geom.Point{}, false
	}
	return p.awayFrom(u.Flying, body.Pos, center), true
}

func (p *Planner) request(u *unit.Snapshot, threats []*unit.Snapshot, frame *unit.Frame) (*Request, bool) {
	body, ok := u.Body()
	if !ok {
		return nil, false
	}
	var (
		located  []*unit.Snapshot
		primary  *unit.Snapshot
		bestRng  = -1.0
		bestDist = math.Inf(1)
	)
	for _, t := range threats {
		tp, ok := t.Position()
		if !ok {
			continue
		}
		located = append(located, t)
		rng, ok := p.calc.Range(t, u)
		if !ok {
			rng = -0.5
		}
		d := tp.Dist(body.Pos)
		if rng > bestRng || (rng == bestRng && d < bestDist) {
			primary, bestRng, bestDist = t, rng, d
		}
	}
	if primary == nil {
		return nil, false
	}
	return &Request{
		Unit:       u,
		Body:       body,
		Threats:    located,
		Primary:    primary,
		PrimaryPos: p.projected(primary),
		Frame:      frame,
	}, true
}

func (p *Planner) projected(s *unit.Snapshot) geom.Point {
	pos, _ := s.Position()
	return p.state.Tracker.Project(s.Tag, pos, p.calc.Tuning().LookaheadLoops)
}

// distance is the travel distance for s: straight for flyers, by path otherwise.
func (p *Planner) distance(s *unit.Snapshot, a, b geom.Point) float64 {
	if s.Flying {
		return a.Dist(b)
	}
	return p.pf.PathDistance(a, b)
}

// threatDistance is the travel distance from the primary threat's projected
// position to dest. A ground projection is snapped to the nearest pathable
// cell first; when dest is still unreachable from there the threat's current
// position is measured instead.
func (p *Planner) threatDistance(r *Request, dest geom.Point) float64 {
	if r.Primary.Flying {
		return r.PrimaryPos.Dist(dest)
	}
	d := p.pf.PathDistance(p.pf.ClosestPathable(r.PrimaryPos), dest)
	if !math.IsInf(d, 1) {
		return d
	}
	if cur, ok := r.Primary.Position(); ok {
		d = p.pf.PathDistance(p.pf.ClosestPathable(cur), dest)
	}
	return d
}

// route returns at most maxPathSamples waypoints from a to b for s.
func (p *Planner) route(s *unit.Snapshot, a, b geom.Point) []geom.Point {
	var pts []geom.Point
	if s.Flying {
		n := int(math.Min(math.Ceil(a.Dist(b)), maxPathSamples))
		for i := 0; i <= n; i++ {
			if n == 0 {
				pts = append(pts, b)
				break
			}
			pts = append(pts, a.Add(b.Sub(a).Scale(float64(i)/float64(n))))
		}
		return pts
	}
	pts = p.pf.Path(a, b)
	if len(pts) <= maxPathSamples {
		return pts
	}
	out := make([]geom.Point, 0, maxPathSamples)
	for i := 0; i < maxPathSamples; i++ {
		out = append(out, pts[i*(len(pts)-1)/(maxPathSamples-1)])
	}
	return out
}

// pathSafe reports whether no waypoint both lies within reach of a projected
// threat and heads toward that threat.
//
// Postcondition: Returns false for an empty path.
func (p *Planner) pathSafe(r *Request, path []geom.Point) bool {
	if len(path) == 0 {
		return false
	}
	for _, t := range r.Threats {
		rng, ok := p.calc.Range(t, r.Unit)
		if !ok || t.Radius == nil {
			continue
		}
		// No travel allowance: only waypoints the threat already covers count.
		reach := rng + r.Body.Radius + *t.Radius
		tp := p.projected(t)
		toThreat := tp.Sub(r.Body.Pos)
		for _, q := range path {
			if q.Dist(tp) <= reach && toThreat.Dot(q.Sub(r.Body.Pos)) > 0 {
				return false
			}
		}
	}
	return true
}

// garrisons returns completed own garrison structures plus the map's fixed
// defensive positions.
func (p *Planner) garrisons(frame *unit.Frame) []geom.Point {
	pts := append([]geom.Point(nil), p.m.DefensivePositions()...)
	if frame == nil {
		return pts
	}
	for _, s := range frame.Self {
		t, ok := p.calc.TypeOf(s)
		if !ok || !t.Garrison || !s.Completed() {
			continue
		}
		if pos, ok := s.Position(); ok {
			pts = append(pts, pos)
		}
	}
	return pts
}

// nearestGarrison returns the garrison closest to u by travel distance.
func (p *Planner) nearestGarrison(r *Request) (geom.Point, float64, bool) {
	var (
		best  geom.Point
		bestD = math.Inf(1)
	)
	for _, g := range p.garrisons(r.Frame) {
		if d := p.distance(r.Unit, r.Body.Pos, g); d < bestD {
			best, bestD = g, d
		}
	}
	return best, bestD, !math.IsInf(bestD, 1)
}

func (p *Planner) toRally(r *Request) (geom.Point, bool) {
	if r.Frame == nil {
		return geom.Point{}, false
	}
	t := p.calc.Tuning()
	rally, ok := p.state.Rally.Get(func() (geom.Point, bool) {
		return combat.ComputeRally(p.m, p.pf, t.RallyOffset)
	})
	if !ok {
		return geom.Point{}, false
	}
	there, ok := p.eval.StrongerAt(rally, r.Frame)
	if !ok {
		return geom.Point{}, false
	}
	if here, _ := p.eval.StrongerAt(r.Body.Pos, r.Frame); there.Score() < here.Score() {
		return geom.Point{}, false
	}
	dRally := p.distance(r.Unit, r.Body.Pos, rally)
	if math.IsInf(dRally, 1) {
		return geom.Point{}, false
	}
	garrison, dGarrison, hasGarrison := p.nearestGarrison(r)
	closeEnough := dRally <= t.TravelPerStep(p.calc.Speed(r.Unit))
	if hasGarrison && dGarrison < dRally && !closeEnough {
		return geom.Point{}, false
	}
	if p.threatDistance(r, rally) <= dRally {
		return geom.Point{}, false
	}
	if !p.pathSafe(r, p.route(r.Unit, r.Body.Pos, rally)) {
		return geom.Point{}, false
	}
	if hasGarrison && dGarrison < dRally {
		return garrison, true
	}
	return rally, true
}

func (p *Planner) toGarrison(r *Request) (geom.Point, bool) {
	g, d, ok := p.nearestGarrison(r)
	if !ok || d >= p.calc.Tuning().GarrisonDistance {
		return geom.Point{}, false
	}
	return g, true
}

func (p *Planner) toExpansion(r *Request) (geom.Point, bool) {
	cands := p.Candidates(r)
	if len(cands) == 0 {
		return geom.Point{}, false
	}
	return cands[0].Point, true
}

// Candidates returns the qualifying expansion candidates for r, best first.
func (p *Planner) Candidates(r *Request) []Candidate {
	exps := p.m.Expansions()
	if limit := p.calc.Tuning().MaxExpansions; limit > 0 && len(exps) > limit {
		exps = exps[:limit]
	}
	threatRange, _ := p.calc.Range(r.Primary, r.Unit)
	if r.Primary.Radius != nil {
		threatRange += r.Body.Radius + *r.Primary.Radius
	}
	anyDamage := false
	for _, t := range r.Threats {
		if p.calc.CanDamage(t, r.Unit) {
			anyDamage = true
			break
		}
	}

	var out []Candidate
	for _, e := range exps {
		c := Candidate{Point: e, FromUnit: p.distance(r.Unit, r.Body.Pos, e)}
		if math.IsInf(c.FromUnit, 1) {
			continue
		}
		c.FromThreat = p.threatDistance(r, e) - threatRange
		if !(c.FromUnit < c.FromThreat) {
			continue
		}
		path := p.route(r.Unit, r.Body.Pos, e)
		if c.Safe = p.pathSafe(r, path); !c.Safe {
			continue
		}
		c.ExpansionsOnPath = p.expansionsOnPath(r.Body.Pos, e, path, exps)
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if anyDamage && out[i].ExpansionsOnPath != out[j].ExpansionsOnPath {
			return out[i].ExpansionsOnPath < out[j].ExpansionsOnPath
		}
		return out[i].FromUnit < out[j].FromUnit
	})
	return out
}

// expansionsOnPath counts the expansions, other than dest and those near
// from, that path passes through.
func (p *Planner) expansionsOnPath(from, dest geom.Point, path, exps []geom.Point) int {
	near := p.calc.Tuning().NeighborhoodRadius
	n := 0
	for _, e := range exps {
		if e.Dist(dest) < 1 || e.Dist(from) <= near {
			continue
		}
		for _, q := range path {
			if q.Dist(e) <= expansionAreaRadius {
				n++
				break
			}
		}
	}
	return n
}

func (p *Planner) toSafePosition(r *Request) (geom.Point, bool) {
	pts := p.search.Find(r.Unit, r.PrimaryPos, r.Threats, SearchOptionsFrom(p.calc.Tuning()))
	if len(pts) == 0 {
		return geom.Point{}, false
	}
	return pts[0], true
}

func (p *Planner) awayFromThreats(r *Request) (geom.Point, bool) {
	center, _ := geom.Centroid(unit.Positions(r.Threats))
	return p.awayFrom(r.Unit.Flying, r.Body.Pos, center), true
}

// awayFrom steps from pos directly away from threat, clamped to the map. A
// ground unit landing on an unpathable cell searches further along the same
// bearing; when nothing is pathable the clamped point is returned as is.
func (p *Planner) awayFrom(flying bool, pos, threat geom.Point) geom.Point {
	t := p.calc.Tuning()
	dir := pos.Sub(threat).Norm()
	if dir == (geom.Point{}) {
		dir = geom.Pt(1, 0)
	}
	bounds := p.m.Bounds()
	dest := bounds.Clamp(pos.Add(dir.Scale(t.AwayDistance)))
	if flying || p.m.IsPathable(dest) {
		return dest
	}
	step := t.SafeRadiusStep
	if step <= 0 {
		return dest
	}
	for d := t.AwayDistance + step; d <= t.AwayDistance+t.SafeMaxRadius; d += step {
		if q := bounds.Clamp(pos.Add(dir.Scale(d))); p.m.IsPathable(q) {
			return q
		}
	}
	return dest
}
