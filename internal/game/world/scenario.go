package world

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/vanguard/internal/game/gamedata"
	"github.com/cory-johannsen/vanguard/internal/game/geom"
	"github.com/cory-johannsen/vanguard/internal/game/unit"
)

// yamlScenarioFile is the top-level YAML structure for scenario files.
type yamlScenarioFile struct {
	Scenario yamlScenario `yaml:"scenario"`
}

type yamlScenario struct {
	Name         string                       `yaml:"name"`
	Ticks        int                          `yaml:"ticks"`
	LoopsPerTick int                          `yaml:"loops_per_tick"`
	Map          yamlMap                      `yaml:"map"`
	Upgrades     map[string]gamedata.Upgrades `yaml:"upgrades"`
	Units        []yamlUnit                   `yaml:"units"`
	Minerals     []yamlUnit                   `yaml:"minerals"`
}

type yamlMap struct {
	Rows       []string               `yaml:"rows"`
	Expansions [][]float64            `yaml:"expansions"`
	Defensive  [][]float64            `yaml:"defensive"`
	Rally      []float64              `yaml:"rally"`
	Bases      map[string][][]float64 `yaml:"bases"`
}

type yamlUnit struct {
	Tag           string    `yaml:"tag"`
	Alliance      string    `yaml:"alliance"`
	Type          string    `yaml:"type"`
	Pos           []float64 `yaml:"pos"`
	Radius        float64   `yaml:"radius"`
	Health        float64   `yaml:"health"`
	Shield        float64   `yaml:"shield"`
	Cooldown      float64   `yaml:"cooldown"`
	Velocity      []float64 `yaml:"velocity"`
	Order         string    `yaml:"order"`
	BuildProgress *float64  `yaml:"build_progress"`
}

// Scenario is a replayable battlefield: a map plus initial unit placements.
type Scenario struct {
	Name         string
	Ticks        int
	LoopsPerTick int
	Layout       *Layout
	Upgrades     map[unit.Alliance]gamedata.Upgrades
	Units        []ScenarioUnit
	Minerals     []ScenarioUnit
}

// ScenarioUnit is the initial state of one unit in a Scenario.
type ScenarioUnit struct {
	Tag           string
	Alliance      unit.Alliance
	Type          string
	Pos           geom.Point
	Radius        float64 // 0 means take the unit type radius
	Health        float64
	Shield        float64
	Cooldown      float64
	Velocity      geom.Point // distance per game loop
	Order         unit.Ability
	BuildProgress *float64
}

// Snapshot builds the tick view of su at pos with the given radius.
func (su ScenarioUnit) Snapshot(pos geom.Point, radius float64) *unit.Snapshot {
	s := &unit.Snapshot{
		Tag:            su.Tag,
		Alliance:       su.Alliance,
		UnitType:       su.Type,
		Pos:            &pos,
		Radius:         &radius,
		Health:         unit.F(su.Health),
		Shield:         unit.F(su.Shield),
		WeaponCooldown: unit.F(su.Cooldown),
		BuildProgress:  su.BuildProgress,
	}
	if su.Order != "" {
		s.Orders = []unit.Order{{Ability: su.Order}}
	}
	return s
}

// LoadScenarioFromFile reads and validates a scenario YAML file.
//
// Precondition: path must point to a scenario YAML file.
// Postcondition: Returns a validated Scenario or a non-nil error.
func LoadScenarioFromFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file %s: %w", path, err)
	}
	return LoadScenarioFromBytes(data)
}

// LoadScenarioFromBytes parses and validates a scenario from YAML bytes.
//
// Precondition: data must be valid YAML conforming to the scenario schema.
// Postcondition: Returns a validated Scenario or a non-nil error.
func LoadScenarioFromBytes(data []byte) (*Scenario, error) {
	var file yamlScenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing scenario YAML: %w", err)
	}
	sc, err := convertYAMLScenario(file.Scenario)
	if err != nil {
		return nil, fmt.Errorf("validating scenario: %w", err)
	}
	return sc, nil
}

func convertYAMLScenario(ys yamlScenario) (*Scenario, error) {
	var errs []string
	fail := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	grid, err := NewGrid(ys.Map.Rows)
	if err != nil {
		return nil, err
	}

	expansions := convertPoints(ys.Map.Expansions, "map.expansions", fail)
	defensive := convertPoints(ys.Map.Defensive, "map.defensive", fail)
	var rally *geom.Point
	if ys.Map.Rally != nil {
		if p, ok := toPoint(ys.Map.Rally); ok {
			rally = &p
		} else {
			fail("map.rally must have 2 coordinates")
		}
	}
	bases := make(map[unit.Alliance][]geom.Point, len(ys.Map.Bases))
	for label, pts := range ys.Map.Bases {
		a, ok := unit.ParseAlliance(label)
		if !ok {
			fail("map.bases: unknown alliance %q", label)
			continue
		}
		bases[a] = convertPoints(pts, "map.bases."+label, fail)
	}

	upgrades := make(map[unit.Alliance]gamedata.Upgrades, len(ys.Upgrades))
	for label, u := range ys.Upgrades {
		a, ok := unit.ParseAlliance(label)
		if !ok {
			fail("upgrades: unknown alliance %q", label)
			continue
		}
		upgrades[a] = u
	}

	sc := &Scenario{
		Name:         ys.Name,
		Ticks:        ys.Ticks,
		LoopsPerTick: ys.LoopsPerTick,
		Layout:       NewLayout(grid, expansions, defensive, rally, bases),
		Upgrades:     upgrades,
	}
	if sc.Ticks <= 0 {
		sc.Ticks = 1
	}
	if sc.LoopsPerTick <= 0 {
		sc.LoopsPerTick = 1
	}

	seen := make(map[string]bool)
	convert := func(yu yamlUnit, section string, defaultAlliance unit.Alliance) (ScenarioUnit, bool) {
		if yu.Tag == "" {
			fail("%s: tag must not be empty", section)
			return ScenarioUnit{}, false
		}
		if seen[yu.Tag] {
			fail("%s: duplicate tag %q", section, yu.Tag)
			return ScenarioUnit{}, false
		}
		seen[yu.Tag] = true
		pos, ok := toPoint(yu.Pos)
		if !ok {
			fail("%s %q: pos must have 2 coordinates", section, yu.Tag)
			return ScenarioUnit{}, false
		}
		alliance := defaultAlliance
		if yu.Alliance != "" {
			if alliance, ok = unit.ParseAlliance(yu.Alliance); !ok {
				fail("%s %q: unknown alliance %q", section, yu.Tag, yu.Alliance)
				return ScenarioUnit{}, false
			}
		}
		var vel geom.Point
		if yu.Velocity != nil {
			if vel, ok = toPoint(yu.Velocity); !ok {
				fail("%s %q: velocity must have 2 coordinates", section, yu.Tag)
			}
		}
		return ScenarioUnit{
			Tag:           yu.Tag,
			Alliance:      alliance,
			Type:          yu.Type,
			Pos:           pos,
			Radius:        yu.Radius,
			Health:        yu.Health,
			Shield:        yu.Shield,
			Cooldown:      yu.Cooldown,
			Velocity:      vel,
			Order:         unit.Ability(yu.Order),
			BuildProgress: yu.BuildProgress,
		}, true
	}

	for _, yu := range ys.Units {
		if su, ok := convert(yu, "units", 0); ok {
			if su.Alliance == 0 {
				fail("units %q: alliance must be set", su.Tag)
				continue
			}
			if su.Type == "" {
				fail("units %q: type must not be empty", su.Tag)
				continue
			}
			sc.Units = append(sc.Units, su)
		}
	}
	for _, ym := range ys.Minerals {
		if su, ok := convert(ym, "minerals", unit.AllianceNeutral); ok {
			sc.Minerals = append(sc.Minerals, su)
		}
	}

	if len(errs) > 0 {
		return nil, errors.New(strings.Join(errs, "; "))
	}
	return sc, nil
}

func toPoint(v []float64) (geom.Point, bool) {
	if len(v) != 2 {
		return geom.Point{}, false
	}
	return geom.Pt(v[0], v[1]), true
}

func convertPoints(vs [][]float64, field string, fail func(string, ...interface{})) []geom.Point {
	out := make([]geom.Point, 0, len(vs))
	for i, v := range vs {
		p, ok := toPoint(v)
		if !ok {
			fail("%s[%d] must have 2 coordinates", field, i)
			continue
		}
		out = append(out, p)
	}
	return out
}
