package rating

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet/internal/core"
)

func TestEngageCommitsImmediately(t *testing.T) {
	s := NewSelector()
	require.NoError(t, s.Engage(2))

	assert.Equal(t, 3, s.Current())
	assert.True(t, s.Engaged())
	assert.Equal(t, [Slots]bool{true, true, true, false, false}, s.View().Slots)
}

func TestHoverWhileDisengagedOnlyPreviews(t *testing.T) {
	s := NewSelector()
	require.NoError(t, s.Engage(2))
	s.Disengage()

	require.NoError(t, s.Hover(4))

	assert.Equal(t, 3, s.Current())
	p, ok := s.Preview()
	assert.True(t, ok)
	assert.Equal(t, 5, p)

	v := s.View()
	assert.Equal(t, 5, v.Value)
	assert.True(t, v.Temporary)
	assert.Equal(t, Label(3), v.Label, "label follows the committed value")
	assert.False(t, v.Perfect)

	s.LeaveArea()
	v = s.View()
	assert.Equal(t, 3, v.Value)
	assert.False(t, v.Temporary)
	assert.Equal(t, [Slots]bool{true, true, true, false, false}, v.Slots)
}

func TestDragAdjustsCommitted(t *testing.T) {
	s := NewSelector()
	require.NoError(t, s.Engage(0))
	require.NoError(t, s.Hover(1))
	require.NoError(t, s.Hover(4))
	assert.Equal(t, 5, s.Current())

	// leaving mid-drag keeps the drag alive
	s.LeaveArea()
	assert.True(t, s.Engaged())
	require.NoError(t, s.Hover(3))
	assert.Equal(t, 4, s.Current())

	s.Disengage()
	assert.False(t, s.Engaged())
	assert.Equal(t, 4, s.Current())
}

func TestClickDoesNotEngage(t *testing.T) {
	s := NewSelector()
	require.NoError(t, s.Click(4))
	assert.Equal(t, 5, s.Current())
	assert.False(t, s.Engaged())
	assert.True(t, s.View().Perfect)
	assert.Equal(t, Label(core.PerfectRating), s.View().Label)

	require.NoError(t, s.Hover(0))
	assert.Equal(t, 5, s.Current())
}

func TestOutOfRangeSlotIsRejected(t *testing.T) {
	s := NewSelectorAt(2)
	for _, slot := range []int{-1, 5, 42} {
		for name, op := range map[string]func(int) error{
			"engage": s.Engage,
			"hover":  s.Hover,
			"click":  s.Click,
		} {
			err := op(slot)
			var iie *core.InvalidInteractionError
			require.True(t, errors.As(err, &iie), "%s(%d)", name, slot)
			assert.Equal(t, slot, iie.Slot)
			assert.ErrorIs(t, err, core.ErrInvalidInteraction)
		}
	}
	assert.Equal(t, 2, s.Current())
	assert.False(t, s.Engaged())
	_, ok := s.Preview()
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	s := NewSelector()
	assert.ErrorIs(t, s.Validate(), core.ErrUnsetRating)

	require.NoError(t, s.Hover(3))
	assert.ErrorIs(t, s.Validate(), core.ErrUnsetRating, "a preview is not a commit")

	require.NoError(t, s.Click(0))
	assert.NoError(t, s.Validate())

	s.Reset()
	assert.Equal(t, 0, s.Current())
	assert.ErrorIs(t, s.Validate(), core.ErrUnsetRating)
}

func TestNewSelectorAt(t *testing.T) {
	assert.Equal(t, 4, NewSelectorAt(4).Current())
	assert.Equal(t, 0, NewSelectorAt(9).Current())
	assert.Equal(t, Label(0), NewSelector().View().Label)
}

func TestLabels(t *testing.T) {
	seen := map[string]bool{}
	for r := core.Unrated; r <= core.MaxRating; r++ {
		l := Label(r)
		assert.NotEmpty(t, l)
		assert.False(t, seen[l], "duplicate label %q", l)
		seen[l] = true
	}
	assert.Equal(t, Label(0), Label(-3))
}
