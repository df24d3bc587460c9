package combat

import "github.com/cory-johannsen/vanguard/internal/game/tracking"

// State is the mutable combat context of one game, passed explicitly to every
// decision component.
type State struct {
	Tracker *tracking.Tracker
	Ledger  *DamageLedger
	Rally   *RallyPoint
	Claims  *Claims
	// Loop is the game loop of the tick being decided.
	Loop int
}

// NewState returns an empty State.
func NewState() *State {
	return &State{
		Tracker: tracking.NewTracker(),
		Ledger:  NewDamageLedger(),
		Rally:   &RallyPoint{},
		Claims:  &Claims{},
	}
}

// BeginTick moves the per-tick stores to loop.
//
// Postcondition: Ledger and Claims hold no entry from an earlier loop.
func (s *State) BeginTick(loop int) {
	s.Loop = loop
	s.Ledger.Advance(loop)
	s.Claims.Advance(loop)
}

// Reset clears every store for a new game.
func (s *State) Reset() {
	s.Loop = 0
	s.Tracker.Reset()
	s.Ledger.Reset()
	s.Rally.Reset()
	s.Claims.Reset()
}
