package micro_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/vanguard/internal/game/combat"
	"github.com/cory-johannsen/vanguard/internal/game/geom"
	"github.com/cory-johannsen/vanguard/internal/game/micro"
	"github.com/cory-johannsen/vanguard/internal/game/retreat"
	"github.com/cory-johannsen/vanguard/internal/game/unit"
	"github.com/cory-johannsen/vanguard/internal/game/world"
	"github.com/cory-johannsen/vanguard/internal/testutil"
)

type fixture struct {
	ctrl  *micro.Controller
	state *combat.State
	logs  *observer.ObservedLogs
}

func newFixture(t testing.TB) fixture {
	t.Helper()
	layout := world.NewLayout(world.OpenGrid(64, 64), nil, nil, nil, nil)
	calc := combat.NewCalculator(testutil.Registry(), combat.DefaultTuning())
	eval := combat.NewEvaluator(calc, nil)
	state := combat.NewState()
	state.BeginTick(1)
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	planner := retreat.NewPlanner(eval, layout, layout, state, logger)
	return fixture{
		ctrl:  micro.NewController(eval, planner, layout, layout, state, logger),
		state: state,
		logs:  logs,
	}
}

func frame(self, enemies []*unit.Snapshot) *unit.Frame {
	return &unit.Frame{Loop: 1, Self: self, Enemies: enemies}
}

func TestDecide_RangedOnCooldownKitesInsteadOfAttacking(t *testing.T) {
	f := newFixture(t)
	u := testutil.WithCooldown(testutil.RangerAt("u", unit.AllianceSelf, 32, 32), 10)
	target := testutil.BruteAt("b", unit.AllianceEnemy, 36, 32)

	d := f.ctrl.Decide(u, target, frame([]*unit.Snapshot{u}, []*unit.Snapshot{target}))
	require.NotNil(t, d.Command)
	assert.Equal(t, micro.StateKite, d.State)
	assert.Equal(t, unit.CommandMove, d.Command.Kind)
	require.NotNil(t, d.Command.TargetPos)
	assert.InDelta(t, 6.0, d.Command.TargetPos.Dist(geom.Pt(36, 32)), 1e-9)
	assert.InDelta(t, 30.0, d.Command.TargetPos.X, 1e-9)
	assert.InDelta(t, 32.0, d.Command.TargetPos.Y, 1e-9)
	assert.Equal(t, 1, f.logs.FilterMessage("micro decision").Len())
}

func TestDecide_RangedReadyAttacksAndReservesDamage(t *testing.T) {
	f := newFixture(t)
	u := testutil.RangerAt("u", unit.AllianceSelf, 32, 32)
	target := testutil.BruteAt("b", unit.AllianceEnemy, 36, 32)

	d := f.ctrl.Decide(u, target, frame([]*unit.Snapshot{u}, []*unit.Snapshot{target}))
	require.NotNil(t, d.Command)
	assert.Equal(t, micro.StateAttackInRange, d.State)
	assert.Equal(t, unit.Attack("u", "b"), *d.Command)
	assert.Equal(t, 10.0, f.state.Ledger.Reserved(1, "b"))
}

func TestDecide_RangedCooldownTargetOutOfRangeAttacks(t *testing.T) {
	f := newFixture(t)
	u := testutil.WithCooldown(testutil.RangerAt("u", unit.AllianceSelf, 32, 32), 10)
	target := testutil.BruteAt("b", unit.AllianceEnemy, 45, 32)

	d := f.ctrl.Decide(u, target, frame([]*unit.Snapshot{u}, []*unit.Snapshot{target}))
	require.NotNil(t, d.Command)
	assert.Equal(t, micro.StateAdvance, d.State)
	assert.Equal(t, unit.CommandAttack, d.Command.Kind)
}

func TestDecide_FocusFireSpreadsOverkill(t *testing.T) {
	f := newFixture(t)
	u1 := testutil.RangerAt("u1", unit.AllianceSelf, 32, 32)
	u2 := testutil.RangerAt("u2", unit.AllianceSelf, 32, 33)
	healthy := testutil.BruteAt("b1", unit.AllianceEnemy, 36, 32)
	weak := testutil.Snap("b2", unit.AllianceEnemy, testutil.Brute, 36, 34, 10)
	fr := frame([]*unit.Snapshot{u1, u2}, []*unit.Snapshot{healthy, weak})

	d1 := f.ctrl.Decide(u1, healthy, fr)
	require.NotNil(t, d1.Command)
	assert.Equal(t, "b2", d1.Command.TargetTag, "killing blow first")

	d2 := f.ctrl.Decide(u2, healthy, fr)
	require.NotNil(t, d2.Command)
	assert.Equal(t, "b1", d2.Command.TargetTag, "b2 is already covered by u1")
}

func TestDecide_ImmediateThreatBeatsWeakerTarget(t *testing.T) {
	f := newFixture(t)
	u := testutil.RangerAt("u", unit.AllianceSelf, 32, 32)
	shooter := testutil.RangerAt("e", unit.AllianceEnemy, 36, 32)
	brute := testutil.BruteAt("b", unit.AllianceEnemy, 33, 36)

	d := f.ctrl.Decide(u, brute, frame([]*unit.Snapshot{u}, []*unit.Snapshot{shooter, brute}))
	require.NotNil(t, d.Command)
	assert.Equal(t, "e", d.Command.TargetTag)
	assert.True(t, f.ctrl.ActivelyAttacking(shooter, u))
	assert.False(t, f.ctrl.ActivelyAttacking(brute, u))
}

func TestDecide_MissingGeometryYieldsNoCommand(t *testing.T) {
	f := newFixture(t)
	target := testutil.BruteAt("b", unit.AllianceEnemy, 36, 32)

	noPos := testutil.RangerAt("u", unit.AllianceSelf, 32, 32)
	noPos.Pos = nil
	assert.Nil(t, f.ctrl.Decide(noPos, target, nil).Command)

	u := testutil.RangerAt("u", unit.AllianceSelf, 32, 32)
	noRadius := testutil.BruteAt("b", unit.AllianceEnemy, 36, 32)
	noRadius.Radius = nil
	assert.Nil(t, f.ctrl.Decide(u, noRadius, nil).Command)

	unknown := testutil.RangerAt("u", unit.AllianceSelf, 32, 32)
	unknown.UnitType = "mystery"
	assert.Nil(t, f.ctrl.Decide(unknown, target, nil).Command)
	assert.Equal(t, 0, f.logs.FilterMessage("micro decision").Len())
}

func TestDecide_UnhittableTargetRetreats(t *testing.T) {
	f := newFixture(t)
	u := testutil.BruteAt("u", unit.AllianceSelf, 32, 32)
	wasp := testutil.Snap("w", unit.AllianceEnemy, testutil.Wasp, 34, 32, 120)
	shooter := testutil.RangerAt("e", unit.AllianceEnemy, 40, 32)

	d := f.ctrl.Decide(u, wasp, frame([]*unit.Snapshot{u}, []*unit.Snapshot{wasp, shooter}))
	assert.Equal(t, micro.StateRetreat, d.State)
	require.NotNil(t, d.Command)
	assert.Equal(t, unit.CommandMove, d.Command.Kind)
	assert.Greater(t, d.Command.TargetPos.Dist(geom.Pt(40, 32)), 8.0)
}

func TestDecide_MeleeInRangeAttacks(t *testing.T) {
	f := newFixture(t)
	u := testutil.BruteAt("u", unit.AllianceSelf, 35, 32)
	target := testutil.BruteAt("b", unit.AllianceEnemy, 36, 32)

	d := f.ctrl.Decide(u, target, frame([]*unit.Snapshot{u}, []*unit.Snapshot{target}))
	require.NotNil(t, d.Command)
	assert.Equal(t, micro.StateAttackInRange, d.State)
	assert.Equal(t, unit.Attack("u", "b"), *d.Command)
}

func TestDecide_MeleeSurroundClaimsDistinctPoints(t *testing.T) {
	f := newFixture(t)
	u1 := testutil.BruteAt("u1", unit.AllianceSelf, 30, 32)
	u2 := testutil.BruteAt("u2", unit.AllianceSelf, 30, 33)
	target := testutil.BruteAt("b", unit.AllianceEnemy, 36, 32)
	fr := frame([]*unit.Snapshot{u1, u2}, []*unit.Snapshot{target})

	d1 := f.ctrl.Decide(u1, target, fr)
	d2 := f.ctrl.Decide(u2, target, fr)
	require.NotNil(t, d1.Command)
	require.NotNil(t, d2.Command)
	assert.Equal(t, micro.StateSurround, d1.State)
	assert.Equal(t, micro.StateSurround, d2.State)

	p1, p2 := *d1.Command.TargetPos, *d2.Command.TargetPos
	assert.InDelta(t, 1.1, p1.Dist(geom.Pt(36, 32)), 1e-9)
	assert.InDelta(t, 1.1, p2.Dist(geom.Pt(36, 32)), 1e-9)
	assert.InDelta(t, 37.1, p1.X, 1e-9, "first attacker takes the far side")
	assert.GreaterOrEqual(t, p1.Dist(p2), 1.0)
}

func TestDecide_OutmatchedMeleeFallsBackBehindRangedAlly(t *testing.T) {
	f := newFixture(t)
	u := testutil.BruteAt("u", unit.AllianceSelf, 30, 32)
	ally := testutil.RangerAt("r", unit.AllianceSelf, 26, 32)
	enemies := []*unit.Snapshot{
		testutil.BruteAt("b1", unit.AllianceEnemy, 36, 32),
		testutil.BruteAt("b2", unit.AllianceEnemy, 36, 33),
		testutil.BruteAt("b3", unit.AllianceEnemy, 36, 31),
	}

	d := f.ctrl.Decide(u, enemies[0], frame([]*unit.Snapshot{u, ally}, enemies))
	require.NotNil(t, d.Command)
	assert.Equal(t, micro.StateFallback, d.State)
	assert.Equal(t, unit.CommandMove, d.Command.Kind)
	assert.InDelta(t, 25.0, d.Command.TargetPos.X, 1e-9)
	assert.InDelta(t, 32.0, d.Command.TargetPos.Y, 1e-9)
}

func TestDecide_MeleeNextToTargetKeepsFightingBesideRangedAlly(t *testing.T) {
	f := newFixture(t)
	u := testutil.BruteAt("u", unit.AllianceSelf, 35, 32)
	ally := testutil.RangerAt("r", unit.AllianceSelf, 32, 32)
	enemies := []*unit.Snapshot{
		testutil.BruteAt("b1", unit.AllianceEnemy, 36, 32),
		testutil.BruteAt("b2", unit.AllianceEnemy, 36, 33),
		testutil.BruteAt("b3", unit.AllianceEnemy, 36, 31),
	}

	d := f.ctrl.Decide(u, enemies[0], frame([]*unit.Snapshot{u, ally}, enemies))
	require.NotNil(t, d.Command)
	assert.Equal(t, micro.StateAttackInRange, d.State)
	assert.Equal(t, unit.Attack("u", "b1"), *d.Command)
}

func TestDecide_MeleeEngageCountsMeleeAlliesAroundTheUnit(t *testing.T) {
	f := newFixture(t)
	u := testutil.BruteAt("u", unit.AllianceSelf, 20, 32)
	backup := testutil.BruteAt("m2", unit.AllianceSelf, 8, 32)
	ally := testutil.RangerAt("r", unit.AllianceSelf, 17, 32)
	enemies := []*unit.Snapshot{
		testutil.BruteAt("b1", unit.AllianceEnemy, 36, 32),
		testutil.BruteAt("b2", unit.AllianceEnemy, 37, 32),
	}

	d := f.ctrl.Decide(u, enemies[0], frame([]*unit.Snapshot{u, backup, ally}, enemies))
	require.NotNil(t, d.Command)
	assert.NotEqual(t, micro.StateFallback, d.State, "two brutes match two brutes")
}

func TestDecide_Worker(t *testing.T) {
	cases := []struct {
		name     string
		cooldown float64
		health   float64
		want     unit.Command
	}{
		{name: "ready and healthy fights", cooldown: 0, health: 40, want: unit.Attack("d", "b")},
		{name: "reloading flees to safe mineral", cooldown: 10, health: 40, want: unit.Gather("d", "m1")},
		{name: "about to die flees to safe mineral", cooldown: 0, health: 10, want: unit.Gather("d", "m1")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			d := testutil.Snap("d", unit.AllianceSelf, testutil.Drone, 20.5, 32.5, tc.health)
			d.WeaponCooldown = unit.F(tc.cooldown)
			brute := testutil.BruteAt("b", unit.AllianceEnemy, 21.5, 32.5)
			fr := frame([]*unit.Snapshot{d}, []*unit.Snapshot{brute})
			fr.Minerals = []*unit.Snapshot{
				testutil.MineralAt("m1", 10.5, 32.5),
				testutil.MineralAt("m2", 28.5, 32.5),
			}

			got := f.ctrl.Decide(d, brute, fr)
			require.NotNil(t, got.Command)
			assert.Equal(t, tc.want, *got.Command)
		})
	}
}

func TestDecide_WorkerWithoutSafeMineralMovesAway(t *testing.T) {
	f := newFixture(t)
	d := testutil.WithCooldown(testutil.DroneAt("d", unit.AllianceSelf, 20.5, 32.5, ""), 10)
	brute := testutil.BruteAt("b", unit.AllianceEnemy, 21.5, 32.5)
	fr := frame([]*unit.Snapshot{d}, []*unit.Snapshot{brute})
	fr.Minerals = []*unit.Snapshot{testutil.MineralAt("m2", 28.5, 32.5)}

	got := f.ctrl.Decide(d, brute, fr)
	require.NotNil(t, got.Command)
	assert.Equal(t, micro.StateRetreat, got.State)
	assert.Equal(t, unit.CommandMove, got.Command.Kind)
	assert.Less(t, got.Command.TargetPos.X, 20.5)
}

func TestTimeToKill_IncludesTravelAndRecedingTargets(t *testing.T) {
	f := newFixture(t)
	u := testutil.RangerAt("u", unit.AllianceSelf, 32, 32)
	b := testutil.BruteAt("b", unit.AllianceEnemy, 42, 32)

	ttk, ok := f.ctrl.TimeToKill(u, b, 0)
	require.True(t, ok)
	assert.InDelta(t, 8+4/3.15, ttk, 1e-9)

	ttk, ok = f.ctrl.TimeToKill(u, b, 40)
	require.True(t, ok)
	assert.InDelta(t, 4+4/3.15, ttk, 1e-9)

	f.state.Tracker.Update("b", geom.Pt(41, 32), 0)
	f.state.Tracker.Update("b", geom.Pt(42, 32), 8)
	ttk, ok = f.ctrl.TimeToKill(u, b, 0)
	require.True(t, ok)
	assert.InDelta(t, 8+4/0.5, ttk, 1e-9, "closing speed is floored")
}

func TestKitePosition_KeepsOptimalDistanceFromEveryThreat(t *testing.T) {
	f := newFixture(t)
	rapid.Check(t, func(rt *rapid.T) {
		u := testutil.WithCooldown(testutil.RangerAt("u", unit.AllianceSelf, 32, 32), 10)
		n := rapid.IntRange(1, 4).Draw(rt, "threats")
		var enemies []*unit.Snapshot
		for i := 0; i < n; i++ {
			x := 32 + rapid.Float64Range(-5, 5).Draw(rt, "dx")
			y := 32 + rapid.Float64Range(-5, 5).Draw(rt, "dy")
			enemies = append(enemies, testutil.BruteAt(string(rune('a'+i)), unit.AllianceEnemy, x, y))
		}
		p, ok := f.ctrl.KitePosition(u, enemies[0], frame([]*unit.Snapshot{u}, enemies))
		if !ok {
			return
		}
		if !(geom.Rect{Max: geom.Pt(64, 64)}).Contains(p) {
			rt.Fatalf("kite point %v off the map", p)
		}
		for _, e := range enemies {
			if d := e.Pos.Dist(p); d < 6-1e-6 {
				rt.Fatalf("kite point %v only %.3f from %s", p, d, e.Tag)
			}
		}
	})
}

func TestShouldMicro(t *testing.T) {
	f := newFixture(t)
	target := testutil.BruteAt("b", unit.AllianceEnemy, 36, 32)

	assert.False(t, f.ctrl.ShouldMicro(testutil.RangerAt("u", unit.AllianceSelf, 32, 32), target))
	assert.True(t, f.ctrl.ShouldMicro(testutil.WithCooldown(testutil.RangerAt("u", unit.AllianceSelf, 32, 32), 9), target))
	assert.False(t, f.ctrl.ShouldMicro(testutil.WithCooldown(testutil.RangerAt("u", unit.AllianceSelf, 32, 32), 8), target))
	assert.False(t, f.ctrl.ShouldMicro(testutil.WithCooldown(testutil.RangerAt("u", unit.AllianceSelf, 20, 32), 9), target))

	// The projected position decides, not the current one.
	f.state.Tracker.Update("b", geom.Pt(40, 32), 0)
	f.state.Tracker.Update("b", geom.Pt(36, 32), 8)
	assert.True(t, f.ctrl.ShouldMicro(testutil.WithCooldown(testutil.RangerAt("u", unit.AllianceSelf, 27, 32), 9), target))
}

func TestSurroundPoint_NoneWhenEveryPointIsClaimed(t *testing.T) {
	f := newFixture(t)
	u := testutil.BruteAt("u", unit.AllianceSelf, 30, 32)
	target := testutil.BruteAt("b", unit.AllianceEnemy, 36, 32)
	f.state.Claims.Claim(1, "other", geom.Pt(36, 32), 2)

	_, ok := f.ctrl.SurroundPoint(u, target, frame([]*unit.Snapshot{u}, []*unit.Snapshot{target}))
	assert.False(t, ok)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "kite", micro.StateKite.String())
	assert.Equal(t, "attack_in_range", micro.StateAttackInRange.String())
	assert.Equal(t, "none", micro.State(99).String())
}

func TestNewController_PanicsOnNil(t *testing.T) {
	layout := world.NewLayout(world.OpenGrid(8, 8), nil, nil, nil, nil)
	calc := combat.NewCalculator(testutil.Registry(), combat.DefaultTuning())
	eval := combat.NewEvaluator(calc, nil)
	state := combat.NewState()
	planner := retreat.NewPlanner(eval, layout, layout, state, zap.NewNop())

	assert.Panics(t, func() { micro.NewController(nil, planner, layout, layout, state, zap.NewNop()) })
	assert.Panics(t, func() { micro.NewController(eval, nil, layout, layout, state, zap.NewNop()) })
	assert.Panics(t, func() { micro.NewController(eval, planner, layout, layout, nil, zap.NewNop()) })
	assert.Panics(t, func() { micro.NewController(eval, planner, layout, layout, state, nil) })
}
