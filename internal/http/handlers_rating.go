package http

import (
	"errors"
	"net/http"

	"wallet/internal/core"
	"wallet/internal/log"
	"wallet/internal/rating"
)

// gestureReset follows a reset of the whole form.
const gestureReset = "reset"

// gesture applies one pointer or keyboard event to a selector. slot is
// ignored by the gestures that do not target a star.
type gesture func(sel *rating.Selector, slot int) error

var gestures = map[string]gesture{
	"engage": (*rating.Selector).Engage,
	"hover":  (*rating.Selector).Hover,
	"click":  (*rating.Selector).Click,
	"release": func(sel *rating.Selector, _ int) error {
		sel.Disengage()
		return nil
	},
	"leave": func(sel *rating.Selector, _ int) error {
		sel.LeaveArea()
		return nil
	},
}

// handleRating runs a forwarded DOM gesture through the session's selector
// and returns the redrawn widget. A gesture on a slot that does not exist
// leaves the state alone and answers with the unchanged widget.
func (s *Server) handleRating(w http.ResponseWriter, r *http.Request) {
	action := r.PathValue("action")
	apply, ok := gestures[action]
	if !ok && action != gestureReset {
		NotFoundError("알 수 없는 동작입니다").Write(w)
		return
	}
	slot := parseSlot(r)

	st, ctx, ok := s.state(w, r)
	if !ok {
		return
	}
	var (
		view rating.View
		err  error
	)
	if action == gestureReset {
		view = st.Form.Reset()
	} else {
		view, err = st.Form.Interact(func(sel *rating.Selector) error {
			return apply(sel, slot)
		})
	}
	s.metrics.ObserveGesture(action, err)

	logger := reqLog(ctx, log.ComponentRating)
	if err != nil {
		if !errors.Is(err, core.ErrInvalidInteraction) {
			logger.ErrorContext(ctx, "Rating gesture failed",
				log.FieldAction, action,
				log.FieldSlot, slot,
				log.FieldError, err.Error())
			InternalServerError("별점을 처리하지 못했습니다").Write(w)
			return
		}
		logger.DebugContext(ctx, "Ignoring rating gesture",
			log.FieldAction, action,
			log.FieldSlot, slot,
			log.FieldErrorType, log.ErrorTypeInteraction)
	} else {
		logger.DebugContext(ctx, "Rating gesture applied",
			log.FieldAction, action,
			log.FieldSlot, slot,
			log.FieldRating, view.Committed)
	}

	s.render(ctx, NewHTMXResponse(), "rating", view).Write(w)
}
