// Package main runs a scenario through the combat engine and reports the
// outcome. It wires configuration, game data, the engagement policy, the
// orchestrator and the simulator under a single lifecycle.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/vanguard/internal/config"
	"github.com/cory-johannsen/vanguard/internal/game/combat"
	"github.com/cory-johannsen/vanguard/internal/game/gamedata"
	"github.com/cory-johannsen/vanguard/internal/game/orchestrator"
	"github.com/cory-johannsen/vanguard/internal/game/world"
	"github.com/cory-johannsen/vanguard/internal/lifecycle"
	"github.com/cory-johannsen/vanguard/internal/observability"
	"github.com/cory-johannsen/vanguard/internal/scripting"
	"github.com/cory-johannsen/vanguard/internal/sim"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	scenarioPath := flag.String("scenario", "content/scenarios/skirmish.yaml", "path to scenario YAML file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	types, err := gamedata.LoadUnitTypes(cfg.Data.UnitDir)
	if err != nil {
		logger.Fatal("loading unit types", zap.Error(err))
	}
	reg, err := gamedata.NewRegistryFrom(types)
	if err != nil {
		logger.Fatal("building unit registry", zap.Error(err))
	}
	logger.Info("game data loaded", zap.Int("unit_types", reg.Len()))

	sc, err := world.LoadScenarioFromFile(*scenarioPath)
	if err != nil {
		logger.Fatal("loading scenario", zap.Error(err))
	}
	for a, u := range sc.Upgrades {
		reg.SetUpgrades(a, u)
	}

	calc := combat.NewCalculator(reg, cfg.Combat.Tuning())
	var policy combat.Policy
	if cfg.Scripting.PolicyFile != "" {
		mgr := scripting.NewManager(logger)
		defer mgr.Close()
		if err := mgr.LoadFile(combat.EngageScope, cfg.Scripting.PolicyFile, cfg.Scripting.InstructionLimit); err != nil {
			logger.Fatal("loading engagement policy", zap.Error(err))
		}
		policy = combat.NewScriptedPolicy(mgr, combat.RatioPolicy{
			MinDPSRatio:    cfg.Combat.EngageDPSRatio,
			MinHealthRatio: cfg.Combat.EngageHealthRatio,
		}, logger)
		logger.Info("engagement policy scripted", zap.String("file", cfg.Scripting.PolicyFile))
	}

	orch := orchestrator.New(combat.NewEvaluator(calc, policy), sc.Layout, sc.Layout, logger)
	simulator, err := sim.New(sc, calc, orch, logger)
	if err != nil {
		logger.Fatal("building simulation", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lc := lifecycle.New(logger)
	lc.Add("simulation", &lifecycle.FuncService{
		StartFn: func() error {
			sum, err := simulator.Run(ctx)
			logger.Info("simulation finished",
				zap.String("scenario", sc.Name),
				zap.String("game_id", orch.GameID()),
				zap.Int("ticks", sum.Ticks),
				zap.Int("commands", sum.Commands),
				zap.Int("self_alive", sum.SelfAlive),
				zap.Int("enemy_alive", sum.EnemyAlive),
				zap.Strings("killed", sum.Killed),
			)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
		StopFn: cancel,
	})

	logger.Info("simulation initialized",
		zap.String("scenario", sc.Name),
		zap.Int("units", len(sc.Units)),
		zap.Duration("startup", time.Since(start)),
	)

	if err := lc.Run(ctx); err != nil {
		logger.Fatal("simulation error", zap.Error(err))
	}
}
