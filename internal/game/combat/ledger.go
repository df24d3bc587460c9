package combat

// DamageLedger records damage already committed against enemy tags during the
// current tick, so later attackers in the same tick avoid overkill.
//
// Invariant: reservations belong to exactly one loop; any access for a
// different loop starts from an empty ledger.
type DamageLedger struct {
	loop     int
	reserved map[string]float64
}

// NewDamageLedger returns an empty ledger.
func NewDamageLedger() *DamageLedger {
	return &DamageLedger{reserved: make(map[string]float64)}
}

// Advance moves the ledger to loop, dropping reservations from any other loop.
func (l *DamageLedger) Advance(loop int) {
	if loop != l.loop {
		l.loop = loop
		l.reserved = make(map[string]float64)
	}
}

// Reserve adds dmg against tag for loop.
func (l *DamageLedger) Reserve(loop int, tag string, dmg float64) {
	l.Advance(loop)
	l.reserved[tag] += dmg
}

// Reserved returns the damage committed against tag during loop.
//
// Postcondition: Returns 0 for any loop other than the ledger's current one.
func (l *DamageLedger) Reserved(loop int, tag string) float64 {
	if loop != l.loop {
		return 0
	}
	return l.reserved[tag]
}

// Reset empties the ledger.
func (l *DamageLedger) Reset() {
	l.loop = 0
	l.reserved = make(map[string]float64)
}
