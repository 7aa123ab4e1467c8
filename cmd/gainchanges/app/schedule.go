package app

// Schedule cycles two independent lists of gain reductions and LNA states.
// The lists need not have the same length.
type Schedule struct {
	Gains     []int
	LNAStates []int
}

// At returns the gain reduction and LNA state of change n. Change 0 is the
// initial configuration.
func (s Schedule) At(n uint32) (gainReduction int, lnaState uint8) {
	gainReduction = s.Gains[n%uint32(len(s.Gains))]
	lnaState = uint8(s.LNAStates[n%uint32(len(s.LNAStates))])
	return gainReduction, lnaState
}
