package session

import (
	"sync"
	"sync/atomic"
	"time"

	"wallet/internal/core"
	"wallet/internal/masking"
	"wallet/internal/rating"
)

// FormSession owns the rating control of the form currently open in one
// browser. Opening another form replaces it.
type FormSession struct {
	mu        sync.Mutex
	selector  *rating.Selector
	expenseID int64
	initial   core.Rating
}

// Open starts a fresh selector. An edit form passes the stored rating.
func (f *FormSession) Open(expenseID int64, r core.Rating) rating.View {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.expenseID = expenseID
	f.initial = r
	if r == core.Unrated {
		f.selector = rating.NewSelector()
	} else {
		f.selector = rating.NewSelectorAt(r)
	}
	return f.selector.View()
}

// Interact applies one gesture. A gesture on a form that was never opened
// starts an unset selector so a stale page keeps working.
func (f *FormSession) Interact(fn func(*rating.Selector) error) (rating.View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.selector == nil {
		f.selector = rating.NewSelector()
	}
	err := fn(f.selector)
	return f.selector.View(), err
}

// Reset puts the selector back where Open left it: unset for a new form,
// the stored rating for an edit.
func (f *FormSession) Reset() rating.View {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case f.initial != core.Unrated:
		f.selector = rating.NewSelectorAt(f.initial)
	case f.selector == nil:
		f.selector = rating.NewSelector()
	default:
		f.selector.Reset()
	}
	return f.selector.View()
}

// Committed returns the rating to submit and the expense the form edits.
func (f *FormSession) Committed() (core.Rating, int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.selector == nil {
		return core.Unrated, f.expenseID
	}
	return f.selector.Rating(), f.expenseID
}

// View returns the current rendering state without changing anything.
func (f *FormSession) View() rating.View {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.selector == nil {
		return rating.NewSelector().View()
	}
	return f.selector.View()
}

// Close discards the selector after a successful submit.
func (f *FormSession) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.selector = nil
	f.expenseID = 0
	f.initial = core.Unrated
}

// ListState is a consistent copy of the list part of a dashboard.
type ListState struct {
	Rows     []masking.Row
	Totals   masking.Totals
	Revealed bool
	Loaded   bool
	Stale    bool
	TakenAt  time.Time
	Version  uint64
}

// FigureState is a consistent copy of the statistics part of a dashboard.
type FigureState struct {
	Stats    core.Statistics
	Revealed bool
	Shown    int64
	Loaded   bool
	Stale    bool
}

// DashboardView owns the list and figure reveal state of one browser's
// dashboard.
type DashboardView struct {
	mu        sync.Mutex
	list      *masking.ListView
	figure    masking.FigureReveal
	stats     core.Statistics
	hasStats  bool
	listStale bool
	statStale bool
	takenAt   time.Time

	version atomic.Uint64
}

func newDashboardView() *DashboardView {
	return &DashboardView{list: masking.NewListView()}
}

// LoadList replaces the rows and hides every masked amount. On a malformed
// record the previous rows stay hidden and the error is returned.
func (d *DashboardView) LoadList(records []core.Expense, stale bool, takenAt time.Time) (ListState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.list.Load(records); err != nil {
		return d.listState(), err
	}
	d.listStale = stale
	d.takenAt = takenAt
	return d.listState(), nil
}

// ConcealList hides the masked amounts of the rows already loaded. A reload
// whose fetch failed ends here.
func (d *DashboardView) ConcealList() ListState {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.list.Conceal()
	return d.listState()
}

// ToggleList flips the list reveal without refetching.
func (d *DashboardView) ToggleList() ListState {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.list.ToggleGlobalReveal()
	return d.listState()
}

func (d *DashboardView) List() ListState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listState()
}

func (d *DashboardView) listState() ListState {
	return ListState{
		Rows:     d.list.Rows(),
		Totals:   d.list.Totals(),
		Revealed: d.list.Revealed(),
		Loaded:   d.list.Loaded(),
		Stale:    d.listStale,
		TakenAt:  d.takenAt,
		Version:  d.version.Load(),
	}
}

// SetStatistics stores the latest aggregate.
func (d *DashboardView) SetStatistics(st core.Statistics, stale bool) FigureState {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stats = st
	d.hasStats = true
	d.statStale = stale
	return d.figureState()
}

func (d *DashboardView) ToggleFigure() FigureState {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.figure.Toggle()
	return d.figureState()
}

func (d *DashboardView) Figure() FigureState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.figureState()
}

// ResetFigure hides the summary figure again; a freshly rendered page does this.
func (d *DashboardView) ResetFigure() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.figure.Reset()
}

func (d *DashboardView) figureState() FigureState {
	return FigureState{
		Stats:    d.stats,
		Revealed: d.figure.Revealed(),
		Shown:    d.figure.Shown(masking.Figure{Masked: d.stats.DisplayAmount, Real: d.stats.TotalAmount}),
		Loaded:   d.hasStats,
		Stale:    d.statStale,
	}
}

// Invalidate marks the data as changed elsewhere. Pollers compare Version.
func (d *DashboardView) Invalidate() uint64 {
	return d.version.Add(1)
}

func (d *DashboardView) Version() uint64 {
	return d.version.Load()
}
