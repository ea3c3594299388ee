// Package rating implements the star rating control of the expense form.
//
// A Selector translates pointer and keyboard gestures over five ordered
// slots into a committed satisfaction rating. While the pointer is engaged
// (button held) every slot it crosses commits immediately; while it is not,
// hovering only shows a temporary preview.
package rating

import (
	"wallet/internal/core"
)

// Slots is the number of stars rendered by the control.
const Slots = int(core.MaxRating)

// labels is indexed by the committed value; index 0 is the prompt.
var labels = [Slots + 1]string{
	"별을 드래그하거나 클릭하세요",
	"⭐ 별로예요 (1점)",
	"⭐⭐ 그저 그래요 (2점)",
	"⭐⭐⭐ 괜찮아요 (3점)",
	"⭐⭐⭐⭐ 좋아요! (4점)",
	"⭐⭐⭐⭐⭐ 최고예요! 0원 처리됩니다! (5점)",
}

// Label returns the message for a committed value, the prompt for 0.
func Label(r core.Rating) string {
	if r < core.Unrated || r > core.MaxRating {
		return labels[0]
	}
	return labels[r]
}

// Selector holds the state of one rating control. It is not safe for
// concurrent use; callers serialize access per form session.
type Selector struct {
	committed core.Rating
	preview   core.Rating
	engaged   bool
}

// View is what the rendering layer needs to draw the control.
type View struct {
	Slots     [Slots]bool
	Value     int
	Committed int
	Temporary bool
	Label     string
	Perfect   bool
}

// NewSelector returns an unset selector.
func NewSelector() *Selector {
	return &Selector{}
}

// NewSelectorAt returns a selector already committed to r, as used by the
// edit form. Values outside 1..5 start unset.
func NewSelectorAt(r core.Rating) *Selector {
	s := &Selector{}
	if r.Valid() {
		s.committed = r
	}
	return s
}

// Engage starts a press at slot and commits slot+1.
func (s *Selector) Engage(slot int) error {
	r, err := ratingAt(slot)
	if err != nil {
		return err
	}
	s.engaged = true
	s.commit(r)
	return nil
}

// Hover commits slot+1 while engaged and previews it otherwise.
func (s *Selector) Hover(slot int) error {
	r, err := ratingAt(slot)
	if err != nil {
		return err
	}
	if s.engaged {
		s.commit(r)
		return nil
	}
	s.preview = r
	return nil
}

// Disengage ends a press wherever it was released. The committed value is kept.
func (s *Selector) Disengage() {
	s.engaged = false
}

// LeaveArea drops the preview when the pointer exits the control.
// A drag in progress keeps its state.
func (s *Selector) LeaveArea() {
	if !s.engaged {
		s.preview = core.Unrated
	}
}

// Click commits slot+1 in a single gesture.
func (s *Selector) Click(slot int) error {
	r, err := ratingAt(slot)
	if err != nil {
		return err
	}
	s.commit(r)
	return nil
}

func (s *Selector) Current() int {
	return int(s.committed)
}

func (s *Selector) Rating() core.Rating {
	return s.committed
}

// Preview returns the temporary value and whether one is shown.
func (s *Selector) Preview() (int, bool) {
	return int(s.preview), s.preview != core.Unrated
}

func (s *Selector) Engaged() bool {
	return s.engaged
}

// Validate reports core.ErrUnsetRating until a value has been committed.
func (s *Selector) Validate() error {
	if s.committed == core.Unrated {
		return core.ErrUnsetRating
	}
	return nil
}

// Reset returns the selector to the unset state.
func (s *Selector) Reset() {
	*s = Selector{}
}

// View renders the current state. The preview wins over the committed value
// for the slots, but the label and perfect flag follow the committed value.
func (s *Selector) View() View {
	shown := s.committed
	temporary := false
	if s.preview != core.Unrated {
		shown = s.preview
		temporary = true
	}

	v := View{
		Value:     int(shown),
		Committed: int(s.committed),
		Temporary: temporary,
		Label:     Label(s.committed),
		Perfect:   s.committed.IsPerfect(),
	}
	for i := range v.Slots {
		v.Slots[i] = i < int(shown)
	}
	return v
}

// commit also clears the preview so the committed value shows through.
func (s *Selector) commit(r core.Rating) {
	s.committed = r
	s.preview = core.Unrated
}

func ratingAt(slot int) (core.Rating, error) {
	if slot < 0 || slot >= Slots {
		return core.Unrated, &core.InvalidInteractionError{Slot: slot}
	}
	return core.Rating(slot + 1), nil
}
