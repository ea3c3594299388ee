package http

import (
	"net/http"

	"wallet/internal/log"
)

type dashboardPage struct {
	List  listView
	Stats statsView
}

type eventsView struct {
	Version      uint64
	PollInterval string
}

// handleDashboard renders the full page. Both reveal toggles start hidden.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	st, ctx, ok := s.state(w, r)
	if !ok {
		return
	}
	st.Dashboard.ResetFigure()
	list, stats := s.loadDashboard(ctx, st)

	s.render(ctx, NewHTMXResponse(), "index.html", dashboardPage{List: list, Stats: stats}).Write(w)
}

// handleList reloads the list partial from the API and resets the reveal.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	st, ctx, ok := s.state(w, r)
	if !ok {
		return
	}
	s.render(ctx, NewHTMXResponse(), "expense_list", s.loadList(ctx, st)).Write(w)
}

// handleListReveal flips the truth eye and re-renders the cached rows.
func (s *Server) handleListReveal(w http.ResponseWriter, r *http.Request) {
	st, ctx, ok := s.state(w, r)
	if !ok {
		return
	}
	state := st.Dashboard.ToggleList()
	s.metrics.RevealToggles.WithLabelValues("list").Inc()
	reqLog(ctx, log.ComponentMasking).DebugContext(ctx, "List reveal toggled",
		log.FieldOperation, log.OpReveal,
		log.FieldRevealed, state.Revealed,
		log.FieldCount, state.Totals.Masks)

	s.render(ctx, NewHTMXResponse(), "expense_list", s.listView(state)).Write(w)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	st, ctx, ok := s.state(w, r)
	if !ok {
		return
	}
	s.render(ctx, NewHTMXResponse(), "statistics", s.loadStatistics(ctx, st)).Write(w)
}

// handleStatisticsReveal flips the reveal of the display total only.
func (s *Server) handleStatisticsReveal(w http.ResponseWriter, r *http.Request) {
	st, ctx, ok := s.state(w, r)
	if !ok {
		return
	}
	fig := st.Dashboard.ToggleFigure()
	s.metrics.RevealToggles.WithLabelValues("figure").Inc()
	reqLog(ctx, log.ComponentMasking).DebugContext(ctx, "Figure reveal toggled",
		log.FieldOperation, log.OpReveal,
		log.FieldRevealed, fig.Revealed)

	s.render(ctx, NewHTMXResponse(), "statistics", statsView{FigureState: fig}).Write(w)
}

// handleEvents answers the change poller. An unchanged version gets 204 so
// htmx leaves the page alone; a newer one swaps the poller and fires
// expenses:changed so the partials reload.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	st, ctx, ok := s.state(w, r)
	if !ok {
		return
	}
	current := st.Dashboard.Version()
	seen, ok := parseVersion(r)
	if ok && seen == current {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	b := NewHTMXResponse()
	if ok {
		b.TriggerExpensesChanged("remote", 0)
	}
	s.render(ctx, b, "events", eventsView{Version: current, PollInterval: pollInterval}).Write(w)
}
