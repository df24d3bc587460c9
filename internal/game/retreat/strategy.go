package retreat

import (
	"github.com/cory-johannsen/vanguard/internal/game/geom"
	"github.com/cory-johannsen/vanguard/internal/game/unit"
)

// Request is the input shared by every retreat strategy for one unit.
type Request struct {
	Unit *unit.Snapshot
	Body unit.Body
	// Threats are the enemies being fled, all with known positions.
	Threats []*unit.Snapshot
	// Primary is the threat with the longest usable range against Unit.
	Primary *unit.Snapshot
	// PrimaryPos is the projected position of Primary.
	PrimaryPos geom.Point
	Frame      *unit.Frame
}

// Strategy proposes a retreat destination, or reports that it has none.
type Strategy struct {
	Name    string
	Propose func(r *Request) (geom.Point, bool)
}

// FirstSuccess runs strategies in order and returns the first proposal.
//
// Postcondition: Returns the proposal and the proposing strategy's name;
// ok is false when none proposed.
func FirstSuccess(r *Request, strategies []Strategy) (geom.Point, string, bool) {
	for _, s := range strategies {
		if p, ok := s.Propose(r); ok {
			return p, s.Name, true
		}
	}
	return geom.Point{}, "", false
}
