package gamedata

import (
	"fmt"

	"github.com/cory-johannsen/vanguard/internal/game/unit"
)

// Registry indexes unit types by ID and tracks upgrade levels per alliance.
//
// Invariant: each unit type ID is registered at most once.
type Registry struct {
	types    map[string]*UnitType
	upgrades map[unit.Alliance]Upgrades
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		types:    make(map[string]*UnitType),
		upgrades: make(map[unit.Alliance]Upgrades),
	}
}

// NewRegistryFrom registers every type in types.
//
// Postcondition: Returns an error on the first duplicate ID.
func NewRegistryFrom(types []*UnitType) (*Registry, error) {
	r := NewRegistry()
	for _, t := range types {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds t to the registry.
//
// Precondition: t must not be nil.
// Postcondition: UnitType(t.ID) returns t; returns error if t.ID is already registered.
func (r *Registry) Register(t *UnitType) error {
	if _, exists := r.types[t.ID]; exists {
		return fmt.Errorf("gamedata: Registry.Register: unit type %q already registered", t.ID)
	}
	r.types[t.ID] = t
	return nil
}

// UnitType returns the unit type for id.
func (r *Registry) UnitType(id string) (*UnitType, bool) {
	t, ok := r.types[id]
	return t, ok
}

// SetUpgrades records the upgrade levels of alliance a.
func (r *Registry) SetUpgrades(a unit.Alliance, u Upgrades) {
	r.upgrades[a] = u
}

// Upgrades returns the upgrade levels of alliance a; zero when unknown.
func (r *Registry) Upgrades(a unit.Alliance) Upgrades {
	return r.upgrades[a]
}

// Len returns the number of registered unit types.
func (r *Registry) Len() int { return len(r.types) }
