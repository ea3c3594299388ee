package masking

import (
	"fmt"

	"wallet/internal/core"
)

// Row is one rendered expense.
type Row struct {
	Expense  core.Expense
	Display  DisplayAmount
	Shown    int64
	Marker   Marker
	Hidden   bool
	Revealed bool
}

// Totals sums the rows of a view.
type Totals struct {
	Real   int64
	Masked int64
	Count  int
	Masks  int
}

// ListView owns the rows of one rendered expense list and its reveal state.
// Like Selector it expects its owner to serialize access.
type ListView struct {
	expenses []core.Expense
	displays []DisplayAmount
	reveal   RevealState
	loaded   bool
}

func NewListView() *ListView {
	return &ListView{}
}

// Load replaces the rows and hides every masked amount again. When any
// record is malformed the previous rows stay, still hidden, and the
// record's error is returned.
func (v *ListView) Load(expenses []core.Expense) error {
	v.Conceal()

	displays := make([]DisplayAmount, len(expenses))
	for i, e := range expenses {
		d, err := ForExpense(e)
		if err != nil {
			return fmt.Errorf("load list: %w", err)
		}
		displays[i] = d
	}

	v.expenses = append([]core.Expense(nil), expenses...)
	v.displays = displays
	v.loaded = true
	return nil
}

// Conceal hides every masked amount without touching the rows. A reload
// that never reached Load still calls it.
func (v *ListView) Conceal() {
	v.reveal = v.reveal.Reset()
}

// Loaded reports whether Load succeeded at least once.
func (v *ListView) Loaded() bool {
	return v.loaded
}

// ToggleGlobalReveal flips the reveal and returns the new state.
func (v *ListView) ToggleGlobalReveal() bool {
	v.reveal = v.reveal.Toggle()
	return v.reveal.GlobalRevealed
}

func (v *ListView) Revealed() bool {
	return v.reveal.GlobalRevealed
}

func (v *ListView) Len() int {
	return len(v.expenses)
}

func (v *ListView) Rows() []Row {
	revealed := v.reveal.GlobalRevealed
	rows := make([]Row, len(v.expenses))
	for i, e := range v.expenses {
		d := v.displays[i]
		rows[i] = Row{
			Expense:  e,
			Display:  d,
			Shown:    d.Shown(revealed),
			Marker:   d.MarkerFor(revealed),
			Hidden:   d.Hidden(revealed),
			Revealed: revealed && d.Maskable,
		}
	}
	return rows
}

func (v *ListView) Totals() Totals {
	var t Totals
	for _, d := range v.displays {
		t.Count++
		t.Real += d.Real
		t.Masked += d.Value
		if d.Maskable {
			t.Masks++
		}
	}
	return t
}
