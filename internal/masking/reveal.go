package masking

// RevealState is the list-wide "truth eye". The zero value is hidden.
type RevealState struct {
	GlobalRevealed bool
}

func (s RevealState) Toggle() RevealState {
	return RevealState{GlobalRevealed: !s.GlobalRevealed}
}

func (s RevealState) Reset() RevealState {
	return RevealState{}
}

// Figure is one aggregate amount with its masked and real value.
type Figure struct {
	Masked int64
	Real   int64
}

// FigureReveal is the reveal flag of a single summary figure. It is
// independent from the list RevealState.
type FigureReveal struct {
	revealed bool
}

func (f *FigureReveal) Toggle() {
	f.revealed = !f.revealed
}

func (f *FigureReveal) Revealed() bool {
	return f.revealed
}

func (f *FigureReveal) Reset() {
	f.revealed = false
}

func (f *FigureReveal) Shown(fig Figure) int64 {
	if f.revealed {
		return fig.Real
	}
	return fig.Masked
}
