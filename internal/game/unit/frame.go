package unit

// Frame is the observation for one simulation tick.
//
// Invariant: a Frame is built once at the start of a tick and never mutated
// while commands for that tick are computed.
type Frame struct {
	// Loop is the game loop the observation was taken at.
	Loop int
	// Self holds own units, structures included.
	Self []*Snapshot
	// Enemies holds visible enemy units.
	Enemies []*Snapshot
	// Minerals holds visible mineral fields.
	Minerals []*Snapshot
	// Dead lists tags the observation reported as destroyed this tick.
	Dead []string
}

// ByTag returns the own or enemy unit with the given tag.
func (f *Frame) ByTag(tag string) *Snapshot {
	if f == nil {
		return nil
	}
	for _, group := range [][]*Snapshot{f.Self, f.Enemies, f.Minerals} {
		for _, u := range group {
			if u.Tag == tag {
				return u
			}
		}
	}
	return nil
}

// All returns own and enemy units.
func (f *Frame) All() []*Snapshot {
	if f == nil {
		return nil
	}
	out := make([]*Snapshot, 0, len(f.Self)+len(f.Enemies))
	out = append(out, f.Self...)
	return append(out, f.Enemies...)
}
