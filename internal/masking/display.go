// Package masking derives the amounts shown for expenses.
//
// An expense rated core.PerfectRating is shown as 0 until the user reveals
// it. The real amount always travels with the display value so a reveal
// returns exactly what the API sent.
package masking

import (
	"fmt"

	"wallet/internal/core"
)

// Marker tells a masked zero apart from a real zero.
type Marker int

const (
	MarkerPlain Marker = iota
	MarkerMasked
	MarkerZero
)

func (m Marker) String() string {
	switch m {
	case MarkerMasked:
		return "masked"
	case MarkerZero:
		return "zero"
	default:
		return "plain"
	}
}

// DisplayAmount is never persisted.
type DisplayAmount struct {
	Value    int64
	Real     int64
	Maskable bool
	Marker   Marker
}

// ComputeDisplay is pure. Ratings outside 1..5 and negative amounts are
// reported as *core.InvalidRecordError.
func ComputeDisplay(amount int64, r core.Rating) (DisplayAmount, error) {
	if !r.Valid() {
		return DisplayAmount{}, &core.InvalidRecordError{Field: "satisfactionRating", Value: fmt.Sprint(int(r))}
	}
	if amount < 0 {
		return DisplayAmount{}, &core.InvalidRecordError{Field: "amount", Value: fmt.Sprint(amount)}
	}

	if r.IsPerfect() {
		return DisplayAmount{Value: 0, Real: amount, Maskable: true, Marker: MarkerMasked}, nil
	}
	d := DisplayAmount{Value: amount, Real: amount, Marker: MarkerPlain}
	if amount == 0 {
		d.Marker = MarkerZero
	}
	return d, nil
}

// ForExpense is ComputeDisplay with the record id filled into any error.
func ForExpense(e core.Expense) (DisplayAmount, error) {
	if err := e.Validate(); err != nil {
		return DisplayAmount{}, err
	}
	return ComputeDisplay(e.Amount, e.Rating)
}

// Shown returns the value to render under the given reveal state.
// Items that are not maskable ignore the reveal.
func (d DisplayAmount) Shown(revealed bool) int64 {
	if revealed && d.Maskable {
		return d.Real
	}
	return d.Value
}

// Hidden reports whether the shown value currently differs from the real one.
func (d DisplayAmount) Hidden(revealed bool) bool {
	return d.Maskable && !revealed
}

// MarkerFor is the marker of the value Shown renders. A revealed item is
// marked like any other real amount.
func (d DisplayAmount) MarkerFor(revealed bool) Marker {
	switch {
	case d.Hidden(revealed):
		return MarkerMasked
	case d.Shown(revealed) == 0:
		return MarkerZero
	default:
		return MarkerPlain
	}
}
