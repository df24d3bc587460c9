// Package config provides Viper-based configuration loading for the combat engine.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cory-johannsen/vanguard/internal/game/combat"
)

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// CombatConfig holds the combat engine tuning constants.
type CombatConfig struct {
	EngageDPSRatio         float64       `mapstructure:"engage_dps_ratio"`
	EngageHealthRatio      float64       `mapstructure:"engage_health_ratio"`
	NeighborhoodRadius     float64       `mapstructure:"neighborhood_radius"`
	CooldownThreshold      float64       `mapstructure:"cooldown_threshold"`
	LookaheadLoops         float64       `mapstructure:"lookahead_loops"`
	StepLoops              float64       `mapstructure:"step_loops"`
	LoopsPerSecond         float64       `mapstructure:"loops_per_second"`
	SafeStartRadius        float64       `mapstructure:"safe_start_radius"`
	SafeMaxRadius          float64       `mapstructure:"safe_max_radius"`
	SafeRadiusStep         float64       `mapstructure:"safe_radius_step"`
	SafeAngleStepDeg       float64       `mapstructure:"safe_angle_step_deg"`
	GarrisonDistance       float64       `mapstructure:"garrison_distance"`
	AwayDistance           float64       `mapstructure:"away_distance"`
	RallyOffset            float64       `mapstructure:"rally_offset"`
	MaxKitePointsPerThreat int           `mapstructure:"max_kite_points_per_threat"`
	MaxSurroundPoints      int           `mapstructure:"max_surround_points"`
	MaxExpansions          int           `mapstructure:"max_expansions"`
	ClusterEpsilon         float64       `mapstructure:"cluster_epsilon"`
	ClusterMinPoints       int           `mapstructure:"cluster_min_points"`
	TrackerExpiryLoops     float64       `mapstructure:"tracker_expiry_loops"`
	TickBudget             time.Duration `mapstructure:"tick_budget"`
	MeleeRange             float64       `mapstructure:"melee_range"`
	MinClosingSpeed        float64       `mapstructure:"min_closing_speed"`
}

// Tuning converts the configuration into engine tuning values.
func (c CombatConfig) Tuning() combat.Tuning {
	return combat.Tuning{
		EngageDPSRatio:         c.EngageDPSRatio,
		EngageHealthRatio:      c.EngageHealthRatio,
		NeighborhoodRadius:     c.NeighborhoodRadius,
		CooldownThreshold:      c.CooldownThreshold,
		LookaheadLoops:         c.LookaheadLoops,
		StepLoops:              c.StepLoops,
		LoopsPerSecond:         c.LoopsPerSecond,
		SafeStartRadius:        c.SafeStartRadius,
		SafeMaxRadius:          c.SafeMaxRadius,
		SafeRadiusStep:         c.SafeRadiusStep,
		SafeAngleStepDeg:       c.SafeAngleStepDeg,
		GarrisonDistance:       c.GarrisonDistance,
		AwayDistance:           c.AwayDistance,
		RallyOffset:            c.RallyOffset,
		MaxKitePointsPerThreat: c.MaxKitePointsPerThreat,
		MaxSurroundPoints:      c.MaxSurroundPoints,
		MaxExpansions:          c.MaxExpansions,
		ClusterEpsilon:         c.ClusterEpsilon,
		ClusterMinPoints:       c.ClusterMinPoints,
		TrackerExpiryLoops:     c.TrackerExpiryLoops,
		TickBudget:             c.TickBudget,
		MeleeRange:             c.MeleeRange,
		MinClosingSpeed:        c.MinClosingSpeed,
	}
}

// DataConfig locates static game data.
type DataConfig struct {
	// UnitDir is the directory of unit type YAML files.
	UnitDir string `mapstructure:"unit_dir"`
}

// ScriptingConfig configures the optional Lua engagement policy.
type ScriptingConfig struct {
	// PolicyFile is a Lua file defining should_engage; empty disables scripting.
	PolicyFile string `mapstructure:"policy_file"`
	// InstructionLimit caps opcodes per hook call; 0 uses the sandbox default.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Combat    CombatConfig    `mapstructure:"combat"`
	Data      DataConfig      `mapstructure:"data"`
	Scripting ScriptingConfig `mapstructure:"scripting"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateCombat(c.Combat); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Data.UnitDir == "" {
		errs = append(errs, "data.unit_dir must not be empty")
	}
	if c.Scripting.InstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("scripting.instruction_limit must be >= 0, got %d", c.Scripting.InstructionLimit))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateCombat(c CombatConfig) error {
	var errs []string
	positive := map[string]float64{
		"combat.engage_dps_ratio":    c.EngageDPSRatio,
		"combat.engage_health_ratio": c.EngageHealthRatio,
		"combat.neighborhood_radius": c.NeighborhoodRadius,
		"combat.step_loops":          c.StepLoops,
		"combat.loops_per_second":    c.LoopsPerSecond,
		"combat.safe_start_radius":   c.SafeStartRadius,
		"combat.safe_radius_step":    c.SafeRadiusStep,
		"combat.safe_angle_step_deg": c.SafeAngleStepDeg,
		"combat.away_distance":       c.AwayDistance,
		"combat.cluster_epsilon":     c.ClusterEpsilon,
		"combat.min_closing_speed":   c.MinClosingSpeed,
	}
	for _, name := range sortedKeys(positive) {
		if positive[name] <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be > 0, got %v", name, positive[name]))
		}
	}
	nonNegative := map[string]float64{
		"combat.cooldown_threshold":   c.CooldownThreshold,
		"combat.lookahead_loops":      c.LookaheadLoops,
		"combat.garrison_distance":    c.GarrisonDistance,
		"combat.rally_offset":         c.RallyOffset,
		"combat.tracker_expiry_loops": c.TrackerExpiryLoops,
		"combat.melee_range":          c.MeleeRange,
	}
	for _, name := range sortedKeys(nonNegative) {
		if nonNegative[name] < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0, got %v", name, nonNegative[name]))
		}
	}
	if c.SafeMaxRadius < c.SafeStartRadius {
		errs = append(errs, "combat.safe_max_radius must not be less than combat.safe_start_radius")
	}
	if c.SafeAngleStepDeg > 180 {
		errs = append(errs, fmt.Sprintf("combat.safe_angle_step_deg must be <= 180, got %v", c.SafeAngleStepDeg))
	}
	if c.MaxKitePointsPerThreat < 1 {
		errs = append(errs, fmt.Sprintf("combat.max_kite_points_per_threat must be >= 1, got %d", c.MaxKitePointsPerThreat))
	}
	if c.MaxSurroundPoints < 1 {
		errs = append(errs, fmt.Sprintf("combat.max_surround_points must be >= 1, got %d", c.MaxSurroundPoints))
	}
	if c.MaxExpansions < 1 {
		errs = append(errs, fmt.Sprintf("combat.max_expansions must be >= 1, got %d", c.MaxExpansions))
	}
	if c.ClusterMinPoints < 0 {
		errs = append(errs, fmt.Sprintf("combat.cluster_min_points must be >= 0, got %d", c.ClusterMinPoints))
	}
	if c.TickBudget <= 0 {
		errs = append(errs, "combat.tick_budget must be positive")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with VANGUARD_ prefix
	v.SetEnvPrefix("VANGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a viper instance carrying only default values.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	t := combat.DefaultTuning()
	v.SetDefault("combat.engage_dps_ratio", t.EngageDPSRatio)
	v.SetDefault("combat.engage_health_ratio", t.EngageHealthRatio)
	v.SetDefault("combat.neighborhood_radius", t.NeighborhoodRadius)
	v.SetDefault("combat.cooldown_threshold", t.CooldownThreshold)
	v.SetDefault("combat.lookahead_loops", t.LookaheadLoops)
	v.SetDefault("combat.step_loops", t.StepLoops)
	v.SetDefault("combat.loops_per_second", t.LoopsPerSecond)
	v.SetDefault("combat.safe_start_radius", t.SafeStartRadius)
	v.SetDefault("combat.safe_max_radius", t.SafeMaxRadius)
	v.SetDefault("combat.safe_radius_step", t.SafeRadiusStep)
	v.SetDefault("combat.safe_angle_step_deg", t.SafeAngleStepDeg)
	v.SetDefault("combat.garrison_distance", t.GarrisonDistance)
	v.SetDefault("combat.away_distance", t.AwayDistance)
	v.SetDefault("combat.rally_offset", t.RallyOffset)
	v.SetDefault("combat.max_kite_points_per_threat", t.MaxKitePointsPerThreat)
	v.SetDefault("combat.max_surround_points", t.MaxSurroundPoints)
	v.SetDefault("combat.max_expansions", t.MaxExpansions)
	v.SetDefault("combat.cluster_epsilon", t.ClusterEpsilon)
	v.SetDefault("combat.cluster_min_points", t.ClusterMinPoints)
	v.SetDefault("combat.tracker_expiry_loops", t.TrackerExpiryLoops)
	v.SetDefault("combat.tick_budget", t.TickBudget.String())
	v.SetDefault("combat.melee_range", t.MeleeRange)
	v.SetDefault("combat.min_closing_speed", t.MinClosingSpeed)

	v.SetDefault("data.unit_dir", "content/units")

	v.SetDefault("scripting.policy_file", "")
	v.SetDefault("scripting.instruction_limit", 0)
}
