package retreat

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/vanguard/internal/game/combat"
	"github.com/cory-johannsen/vanguard/internal/game/geom"
	"github.com/cory-johannsen/vanguard/internal/game/unit"
	"github.com/cory-johannsen/vanguard/internal/game/world"
	"github.com/cory-johannsen/vanguard/internal/testutil"
)

type fixture struct {
	planner *Planner
	state   *combat.State
	logs    *observer.ObservedLogs
}

func newFixture(t testing.TB, layout *world.Layout) fixture {
	t.Helper()
	calc := combat.NewCalculator(testutil.Registry(), combat.DefaultTuning())
	eval := combat.NewEvaluator(calc, nil)
	state := combat.NewState()
	core, logs := observer.New(zap.DebugLevel)
	return fixture{
		planner: NewPlanner(eval, layout, layout, state, zap.New(core)),
		state:   state,
		logs:    logs,
	}
}

func openLayout(expansions, defensive []geom.Point, rally *geom.Point) *world.Layout {
	return world.NewLayout(world.OpenGrid(64, 64), expansions, defensive, rally, nil)
}

func lastStrategy(t *testing.T, logs *observer.ObservedLogs) string {
	t.Helper()
	entries := logs.FilterMessage("retreat").All()
	require.NotEmpty(t, entries)
	return entries[len(entries)-1].ContextMap()["strategy"].(string)
}

func TestFind_PointsAreOutsideEveryThreatsReach(t *testing.T) {
	f := newFixture(t, openLayout(nil, nil, nil))
	calc := f.planner.calc
	search := f.planner.Search()
	opts := SearchOptionsFrom(calc.Tuning())
	types := []string{testutil.Ranger, testutil.Brute}

	rapid.Check(t, func(rt *rapid.T) {
		ux := rapid.Float64Range(8, 56).Draw(rt, "ux")
		uy := rapid.Float64Range(8, 56).Draw(rt, "uy")
		u := testutil.RangerAt("u", unit.AllianceSelf, ux, uy)
		n := rapid.IntRange(1, 3).Draw(rt, "threats")
		var threats []*unit.Snapshot
		for i := 0; i < n; i++ {
			typ := rapid.SampledFrom(types).Draw(rt, "type")
			tx := ux + rapid.Float64Range(-8, 8).Draw(rt, "dx")
			ty := uy + rapid.Float64Range(-8, 8).Draw(rt, "dy")
			threats = append(threats, testutil.Snap("t", unit.AllianceEnemy, typ, tx, ty, 100))
		}
		primary, _ := threats[0].Position()
		for _, p := range search.Find(u, primary, threats, opts) {
			if !f.planner.m.Bounds().Contains(p) || !f.planner.m.IsPathable(p) {
				rt.Fatalf("point %v off the pathable map", p)
			}
			for _, th := range threats {
				if calc.Threatens(th, u, p) {
					rt.Fatalf("point %v within reach of threat at %v", p, *th.Pos)
				}
			}
		}
	})
}

func TestFind_FirstRingAwayFromThreat(t *testing.T) {
	f := newFixture(t, openLayout(nil, nil, nil))
	u := testutil.RangerAt("u", unit.AllianceSelf, 32, 32)
	threat := testutil.BruteAt("b", unit.AllianceEnemy, 34, 32)

	pts := f.planner.Search().Find(u, geom.Pt(34, 32), []*unit.Snapshot{threat}, SearchOptionsFrom(combat.DefaultTuning()))
	require.NotEmpty(t, pts)
	r := pts[0].Dist(geom.Pt(32, 32))
	for _, p := range pts {
		assert.InDelta(t, r, p.Dist(geom.Pt(32, 32)), 1e-9, "all points come from one ring")
		assert.LessOrEqual(t, p.X, 32.0+1e-9, "points face away from the threat")
	}
}

func TestFind_OrdersByDestination(t *testing.T) {
	f := newFixture(t, openLayout(nil, nil, nil))
	u := testutil.RangerAt("u", unit.AllianceSelf, 32, 32)
	u.Orders = []unit.Order{{Ability: unit.AbilityMove, TargetPos: unit.P(32, 10)}}
	threat := testutil.BruteAt("b", unit.AllianceEnemy, 34, 32)

	pts := f.planner.Search().Find(u, geom.Pt(34, 32), []*unit.Snapshot{threat}, SearchOptionsFrom(combat.DefaultTuning()))
	require.True(t, len(pts) > 1)
	assert.Less(t, pts[0].Y, 32.0)
	for i := 1; i < len(pts); i++ {
		assert.LessOrEqual(t, pts[i-1].Dist(geom.Pt(32, 10)), pts[i].Dist(geom.Pt(32, 10))+1e-9)
	}
}

func TestFind_MissingGeometryOrOptions(t *testing.T) {
	f := newFixture(t, openLayout(nil, nil, nil))
	threat := []*unit.Snapshot{testutil.BruteAt("b", unit.AllianceEnemy, 34, 32)}
	u := testutil.RangerAt("u", unit.AllianceSelf, 32, 32)
	u.Radius = nil
	assert.Nil(t, f.planner.Search().Find(u, geom.Pt(34, 32), threat, SearchOptionsFrom(combat.DefaultTuning())))

	u = testutil.RangerAt("u", unit.AllianceSelf, 32, 32)
	assert.Nil(t, f.planner.Search().Find(u, geom.Pt(34, 32), threat, SearchOptions{}))
}

func TestRetreat_AlwaysTerminatesWithAPoint(t *testing.T) {
	grid, err := world.NewGrid(walledRows())
	require.NoError(t, err)
	layout := world.NewLayout(grid,
		[]geom.Point{geom.Pt(4.5, 4.5), geom.Pt(28.5, 28.5), geom.Pt(4.5, 28.5)}, nil, nil,
		map[unit.Alliance][]geom.Point{
			unit.AllianceSelf:  {geom.Pt(4.5, 4.5)},
			unit.AllianceEnemy: {geom.Pt(28.5, 28.5)},
		})
	f := newFixture(t, layout)
	types := []string{testutil.Ranger, testutil.Brute, testutil.Wasp, testutil.Drone}

	rapid.Check(t, func(rt *rapid.T) {
		f.state.Reset()
		typ := rapid.SampledFrom(types).Draw(rt, "unit")
		u := testutil.Snap("u", unit.AllianceSelf, typ,
			rapid.Float64Range(0, 31.9).Draw(rt, "ux"),
			rapid.Float64Range(0, 31.9).Draw(rt, "uy"), 50)
		u.Radius = unit.F(rapid.Float64Range(0.1, 2).Draw(rt, "radius"))
		n := rapid.IntRange(1, 4).Draw(rt, "threats")
		var threats []*unit.Snapshot
		for i := 0; i < n; i++ {
			th := testutil.Snap("t", unit.AllianceEnemy, rapid.SampledFrom(types).Draw(rt, "threat"),
				rapid.Float64Range(-4, 36).Draw(rt, "tx"),
				rapid.Float64Range(-4, 36).Draw(rt, "ty"), 50)
			th.Radius = unit.F(rapid.Float64Range(0.1, 2).Draw(rt, "tradius"))
			threats = append(threats, th)
		}
		frame := &unit.Frame{Self: []*unit.Snapshot{u}, Enemies: threats}

		p, ok := f.planner.Retreat(u, threats, frame)
		if !ok {
			rt.Fatalf("no retreat point for a located unit with located threats")
		}
		if !p.IsFinite() {
			rt.Fatalf("non-finite retreat point %v", p)
		}
	})
}

// walledRows returns a 32x32 map with a wall across the middle, open at x >= 28.
func walledRows() []string {
	rows := make([]string, 32)
	for y := range rows {
		row := make([]byte, 32)
		for x := range row {
			row[x] = '.'
			if y == 16 && x < 28 {
				row[x] = '#'
			}
		}
		rows[y] = string(row)
	}
	return rows
}

func TestRetreat_NoDestinationWithoutGeometryOrThreats(t *testing.T) {
	f := newFixture(t, openLayout(nil, nil, nil))
	u := testutil.RangerAt("u", unit.AllianceSelf, 32, 32)
	_, ok := f.planner.Retreat(u, nil, nil)
	assert.False(t, ok)

	blind := testutil.BruteAt("b", unit.AllianceEnemy, 34, 32)
	blind.Pos = nil
	_, ok = f.planner.Retreat(u, []*unit.Snapshot{blind}, nil)
	assert.False(t, ok)

	u.Pos = nil
	_, ok = f.planner.Retreat(u, []*unit.Snapshot{testutil.BruteAt("b", unit.AllianceEnemy, 34, 32)}, nil)
	assert.False(t, ok)
}

func TestRetreat_PrefersRallyWhenStrongerThere(t *testing.T) {
	rally := geom.Pt(10.5, 32.5)
	f := newFixture(t, openLayout(nil, nil, &rally))
	u := testutil.RangerAt("u", unit.AllianceSelf, 30.5, 32.5)
	threat := testutil.RangerAt("e", unit.AllianceEnemy, 40.5, 32.5)
	frame := &unit.Frame{
		Self: []*unit.Snapshot{
			u,
			testutil.RangerAt("a1", unit.AllianceSelf, 10.5, 31.5),
			testutil.RangerAt("a2", unit.AllianceSelf, 10.5, 33.5),
		},
		Enemies: []*unit.Snapshot{threat},
	}

	p, ok := f.planner.Retreat(u, []*unit.Snapshot{threat}, frame)
	require.True(t, ok)
	assert.Equal(t, rally, p)
	assert.Equal(t, StrategyRally, lastStrategy(t, f.logs))
}

func TestRetreat_RallyRejectedWhenThreatCloser(t *testing.T) {
	rally := geom.Pt(10.5, 32.5)
	allies := func(u *unit.Snapshot) []*unit.Snapshot {
		return []*unit.Snapshot{
			u,
			testutil.RangerAt("a1", unit.AllianceSelf, 10.5, 31.5),
			testutil.RangerAt("a2", unit.AllianceSelf, 10.5, 33.5),
		}
	}

	t.Run("stationary threat nearer the rally", func(t *testing.T) {
		f := newFixture(t, openLayout(nil, nil, &rally))
		u := testutil.RangerAt("u", unit.AllianceSelf, 30.5, 32.5)
		threat := testutil.RangerAt("e", unit.AllianceEnemy, 10.5, 14.5)
		frame := &unit.Frame{Self: allies(u), Enemies: []*unit.Snapshot{threat}}

		p, ok := f.planner.Retreat(u, []*unit.Snapshot{threat}, frame)
		require.True(t, ok)
		assert.NotEqual(t, rally, p)
		assert.NotEqual(t, StrategyRally, lastStrategy(t, f.logs))
	})

	t.Run("threat projected toward the rally", func(t *testing.T) {
		f := newFixture(t, openLayout(nil, nil, &rally))
		u := testutil.RangerAt("u", unit.AllianceSelf, 30.5, 32.5)
		threat := testutil.RangerAt("e", unit.AllianceEnemy, 20.5, 14.5)
		frame := &unit.Frame{Self: allies(u), Enemies: []*unit.Snapshot{threat}}

		p, ok := f.planner.Retreat(u, []*unit.Snapshot{threat}, frame)
		require.True(t, ok)
		require.Equal(t, rally, p, "standing still the threat is farther from the rally")

		f.state.Tracker.Update("e", geom.Pt(30.5, 14.5), 0)
		f.state.Tracker.Update("e", geom.Pt(20.5, 14.5), 8)
		p, ok = f.planner.Retreat(u, []*unit.Snapshot{threat}, frame)
		require.True(t, ok)
		assert.NotEqual(t, rally, p)
		assert.NotEqual(t, StrategyRally, lastStrategy(t, f.logs))
	})
}

func TestCandidates_ProjectionOffTheGridStillGates(t *testing.T) {
	exp := geom.Pt(2.5, 10.5)
	f := newFixture(t, openLayout([]geom.Point{exp}, nil, nil))
	u := testutil.RangerAt("u", unit.AllianceSelf, 8, 32)
	threat := testutil.BruteAt("b", unit.AllianceEnemy, 2, 32)

	r, ok := f.planner.request(u, []*unit.Snapshot{threat}, nil)
	require.True(t, ok)
	require.Empty(t, f.planner.Candidates(r))

	f.state.Tracker.Update("b", geom.Pt(6, 32), 0)
	f.state.Tracker.Update("b", geom.Pt(2, 32), 8)
	r, ok = f.planner.request(u, []*unit.Snapshot{threat}, nil)
	require.True(t, ok)
	require.False(t, f.planner.m.Bounds().Contains(r.PrimaryPos), "projection leaves the map")

	assert.Empty(t, f.planner.Candidates(r))
	assert.False(t, math.IsInf(f.planner.threatDistance(r, exp), 1))
}

func TestRetreat_CloserGarrisonBeatsRally(t *testing.T) {
	rally := geom.Pt(10.5, 32.5)
	f := newFixture(t, openLayout(nil, nil, &rally))
	u := testutil.RangerAt("u", unit.AllianceSelf, 30.5, 32.5)
	threat := testutil.RangerAt("e", unit.AllianceEnemy, 40.5, 32.5)
	bunker := testutil.Snap("bk", unit.AllianceSelf, testutil.Bunker, 24.5, 32.5, 400)
	frame := &unit.Frame{Self: []*unit.Snapshot{u, bunker}, Enemies: []*unit.Snapshot{threat}}

	p, ok := f.planner.Retreat(u, []*unit.Snapshot{threat}, frame)
	require.True(t, ok)
	assert.Equal(t, geom.Pt(24.5, 32.5), p)
	assert.Equal(t, StrategyGarrison, lastStrategy(t, f.logs))
}

func TestRetreat_IncompleteOrDistantGarrisonIgnored(t *testing.T) {
	f := newFixture(t, openLayout(nil, nil, nil))
	u := testutil.RangerAt("u", unit.AllianceSelf, 30.5, 32.5)
	threat := testutil.RangerAt("e", unit.AllianceEnemy, 40.5, 32.5)
	building := testutil.Snap("bk", unit.AllianceSelf, testutil.Bunker, 26.5, 32.5, 400)
	building.BuildProgress = unit.F(0.5)
	far := testutil.Snap("bk2", unit.AllianceSelf, testutil.Bunker, 2.5, 32.5, 400)
	frame := &unit.Frame{Self: []*unit.Snapshot{u, building, far}, Enemies: []*unit.Snapshot{threat}}

	_, ok := f.planner.Retreat(u, []*unit.Snapshot{threat}, frame)
	require.True(t, ok)
	assert.NotEqual(t, StrategyGarrison, lastStrategy(t, f.logs))
}

func TestRetreat_SafeExpansion(t *testing.T) {
	west, east := geom.Pt(5.5, 32.5), geom.Pt(60.5, 32.5)
	f := newFixture(t, openLayout([]geom.Point{east, west}, nil, nil))
	u := testutil.RangerAt("u", unit.AllianceSelf, 30.5, 32.5)
	threat := testutil.RangerAt("e", unit.AllianceEnemy, 40.5, 32.5)

	p, ok := f.planner.Retreat(u, []*unit.Snapshot{threat}, &unit.Frame{Self: []*unit.Snapshot{u}})
	require.True(t, ok)
	assert.Equal(t, west, p)
	assert.Equal(t, StrategyExpansion, lastStrategy(t, f.logs))
}

func TestCandidates_RankByExpansionsOnPath(t *testing.T) {
	near := geom.Pt(4.5, 40.5)
	blocked := geom.Pt(4.5, 10.5)
	between := geom.Pt(4.5, 24.5)
	f := newFixture(t, openLayout([]geom.Point{blocked, near, between}, nil, nil))
	u := testutil.RangerAt("u", unit.AllianceSelf, 30.5, 30.5)
	threat := testutil.RangerAt("e", unit.AllianceEnemy, 50.5, 30.5)
	r, ok := f.planner.request(u, []*unit.Snapshot{threat}, nil)
	require.True(t, ok)

	cands := f.planner.Candidates(r)
	require.NotEmpty(t, cands)
	for i := 1; i < len(cands); i++ {
		a, b := cands[i-1], cands[i]
		assert.True(t, a.ExpansionsOnPath < b.ExpansionsOnPath ||
			(a.ExpansionsOnPath == b.ExpansionsOnPath && a.FromUnit <= b.FromUnit))
	}
	for _, c := range cands {
		assert.True(t, c.Safe)
		assert.Less(t, c.FromUnit, c.FromThreat)
	}
}

func TestExpansionsOnPath(t *testing.T) {
	f := newFixture(t, openLayout(nil, nil, nil))
	from, dest := geom.Pt(2, 32), geom.Pt(60, 32)
	var path []geom.Point
	for x := 2.0; x <= 60; x++ {
		path = append(path, geom.Pt(x, 32))
	}
	exps := []geom.Point{
		geom.Pt(30, 32), // crossed
		geom.Pt(30, 10), // off the path
		geom.Pt(10, 32), // next to the unit
		dest,
	}
	assert.Equal(t, 1, f.planner.expansionsOnPath(from, dest, path, exps))
}

func TestRetreat_SafePositionWithoutStructuredCandidates(t *testing.T) {
	f := newFixture(t, openLayout(nil, nil, nil))
	u := testutil.RangerAt("u", unit.AllianceSelf, 32, 32)
	threat := testutil.BruteAt("b", unit.AllianceEnemy, 34, 32)

	p, ok := f.planner.Retreat(u, []*unit.Snapshot{threat}, &unit.Frame{Self: []*unit.Snapshot{u}})
	require.True(t, ok)
	assert.Equal(t, StrategySafe, lastStrategy(t, f.logs))
	assert.False(t, f.planner.calc.Threatens(threat, u, p))
}

func TestRetreat_AwayWhenBoxedIn(t *testing.T) {
	grid, err := world.NewGrid([]string{
		"#####",
		"#...#",
		"#...#",
		"#...#",
		"#####",
	})
	require.NoError(t, err)
	f := newFixture(t, world.NewLayout(grid, nil, nil, nil, nil))
	u := testutil.RangerAt("u", unit.AllianceSelf, 2.5, 2.5)
	threat := testutil.RangerAt("e", unit.AllianceEnemy, 3.5, 2.5)

	p, ok := f.planner.Retreat(u, []*unit.Snapshot{threat}, nil)
	require.True(t, ok)
	assert.Equal(t, StrategyAway, lastStrategy(t, f.logs))
	assert.True(t, grid.Bounds().Contains(p))
	assert.Less(t, p.X, 2.5)
}

func TestRetreatGroup_AwayFromMeanThreat(t *testing.T) {
	f := newFixture(t, openLayout(nil, nil, nil))
	u := testutil.RangerAt("u", unit.AllianceSelf, 10, 10)
	p, ok := f.planner.RetreatGroup(u, []geom.Point{geom.Pt(12, 10), geom.Pt(10, 12)})
	require.True(t, ok)
	d := combat.DefaultTuning().AwayDistance / 1.4142135623730951
	assert.InDelta(t, 10-d, p.X, 1e-9)
	assert.InDelta(t, 10-d, p.Y, 1e-9)

	corner := testutil.RangerAt("c", unit.AllianceSelf, 1, 1)
	p, ok = f.planner.RetreatGroup(corner, []geom.Point{geom.Pt(5, 5)})
	require.True(t, ok)
	assert.True(t, f.planner.m.Bounds().Contains(p))

	_, ok = f.planner.RetreatGroup(u, nil)
	assert.False(t, ok)
}

func TestAwayFrom_SearchesPastWalls(t *testing.T) {
	rows := make([]string, 16)
	for y := range rows {
		rows[y] = "................"
	}
	rows[8] = "......######...."
	grid, err := world.NewGrid(rows)
	require.NoError(t, err)
	f := newFixture(t, world.NewLayout(grid, nil, nil, nil, nil))

	// Four cells south lands on the wall; the search continues past it.
	p := f.planner.awayFrom(false, geom.Pt(8.5, 4.5), geom.Pt(8.5, 0.5))
	assert.True(t, grid.IsPathable(p))
	assert.GreaterOrEqual(t, p.Y, 9.0)

	assert.Equal(t, geom.Pt(8.5, 8.5), f.planner.awayFrom(true, geom.Pt(8.5, 4.5), geom.Pt(8.5, 0.5)))
}

func TestThreats_FiltersByReachAndCapability(t *testing.T) {
	f := newFixture(t, openLayout(nil, nil, nil))
	wasp := testutil.Snap("w", unit.AllianceSelf, testutil.Wasp, 32, 32, 120)
	enemies := []*unit.Snapshot{
		testutil.BruteAt("brute", unit.AllianceEnemy, 33, 32),
		testutil.RangerAt("near", unit.AllianceEnemy, 36, 32),
		testutil.RangerAt("far", unit.AllianceEnemy, 60, 32),
	}
	got := f.planner.Threats(wasp, enemies)
	require.Len(t, got, 1)
	assert.Equal(t, "near", got[0].Tag)
}

func TestFirstSuccess_Order(t *testing.T) {
	calls := []string{}
	mk := func(name string, ok bool) Strategy {
		return Strategy{Name: name, Propose: func(*Request) (geom.Point, bool) {
			calls = append(calls, name)
			return geom.Pt(1, 1), ok
		}}
	}
	_, name, ok := FirstSuccess(&Request{}, []Strategy{mk("a", false), mk("b", true), mk("c", true)})
	assert.True(t, ok)
	assert.Equal(t, "b", name)
	assert.Equal(t, []string{"a", "b"}, calls)

	_, _, ok = FirstSuccess(&Request{}, nil)
	assert.False(t, ok)
}

func TestNewPlanner_PanicsOnNil(t *testing.T) {
	l := openLayout(nil, nil, nil)
	eval := combat.NewEvaluator(combat.NewCalculator(testutil.Registry(), combat.DefaultTuning()), nil)
	assert.Panics(t, func() { NewPlanner(nil, l, l, combat.NewState(), zap.NewNop()) })
	assert.Panics(t, func() { NewPlanner(eval, l, l, nil, zap.NewNop()) })
	assert.Panics(t, func() { NewPlanner(eval, l, l, combat.NewState(), nil) })
}
