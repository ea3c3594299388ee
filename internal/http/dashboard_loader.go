package http

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"wallet/internal/core"
	"wallet/internal/log"
	"wallet/internal/session"
	"wallet/internal/storage"
)

const snapshotWriteTimeout = 5 * time.Second

type listResult struct {
	records []core.Expense
	stale   bool
	takenAt time.Time
}

type statsResult struct {
	stats   core.Statistics
	stale   bool
	takenAt time.Time
}

// listView is the data of the expense list partial.
type listView struct {
	session.ListState
	Error        string
	Integrity    bool
	PollInterval string
}

// statsView is the data of the statistics partial.
type statsView struct {
	session.FigureState
	Error   string
	TakenAt time.Time
}

// fetchList asks the API for the list, collapsing concurrent requests of
// one session. When the API is unreachable the last snapshot is served and
// marked stale.
func (s *Server) fetchList(ctx context.Context, owner string) (listResult, error) {
	v, err, shared := s.flight.Do("list:"+owner, func() (any, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return s.api.List(cctx)
	})
	if err == nil {
		records := v.([]core.Expense)
		now := s.now()
		if !shared {
			s.saveSnapshot(ctx, owner, func(ctx context.Context) error {
				return s.snapshots.SaveList(ctx, owner, records, now)
			})
		}
		return listResult{records: records, takenAt: now}, nil
	}
	if !errors.Is(err, core.ErrUnavailable) || s.snapshots == nil {
		return listResult{}, err
	}

	records, takenAt, serr := s.snapshots.LoadList(ctx, owner)
	if serr != nil {
		s.logSnapshotMiss(ctx, "list", serr)
		return listResult{}, err
	}
	s.metrics.SnapshotServed.Inc()
	reqLog(ctx, log.ComponentStorage).WarnContext(ctx, "Expense API unavailable, serving list snapshot",
		log.FieldOperation, log.OpSnapshot,
		log.FieldCount, len(records),
		"taken_at", takenAt.Format(time.RFC3339),
		log.FieldError, err.Error())
	return listResult{records: records, stale: true, takenAt: takenAt}, nil
}

func (s *Server) fetchStatistics(ctx context.Context, owner string) (statsResult, error) {
	v, err, shared := s.flight.Do("stats:"+owner, func() (any, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return s.api.Statistics(cctx)
	})
	if err == nil {
		st := v.(core.Statistics)
		now := s.now()
		if !shared {
			s.saveSnapshot(ctx, owner, func(ctx context.Context) error {
				return s.snapshots.SaveStatistics(ctx, owner, st, now)
			})
		}
		return statsResult{stats: st, takenAt: now}, nil
	}
	if !errors.Is(err, core.ErrUnavailable) || s.snapshots == nil {
		return statsResult{}, err
	}

	st, takenAt, serr := s.snapshots.LoadStatistics(ctx, owner)
	if serr != nil {
		s.logSnapshotMiss(ctx, "statistics", serr)
		return statsResult{}, err
	}
	s.metrics.SnapshotServed.Inc()
	reqLog(ctx, log.ComponentStorage).WarnContext(ctx, "Expense API unavailable, serving statistics snapshot",
		log.FieldOperation, log.OpSnapshot,
		"taken_at", takenAt.Format(time.RFC3339),
		log.FieldError, err.Error())
	return statsResult{stats: st, stale: true, takenAt: takenAt}, nil
}

// saveSnapshot writes in the background; the response does not wait.
func (s *Server) saveSnapshot(ctx context.Context, owner string, write func(context.Context) error) {
	if s.snapshots == nil {
		return
	}
	logger := reqLog(ctx, log.ComponentStorage)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotWriteTimeout)
		defer cancel()
		if err := write(wctx); err != nil {
			logger.WarnContext(wctx, "Failed to save dashboard snapshot",
				log.FieldOperation, log.OpSnapshot,
				log.FieldSessionID, owner,
				log.FieldErrorType, log.ErrorTypeDatabase,
				log.FieldError, err.Error())
		}
	}()
}

func (s *Server) logSnapshotMiss(ctx context.Context, what string, err error) {
	if errors.Is(err, storage.ErrNoSnapshot) {
		return
	}
	reqLog(ctx, log.ComponentStorage).ErrorContext(ctx, "Failed to read dashboard snapshot",
		log.FieldOperation, log.OpSnapshot,
		"snapshot", what,
		log.FieldErrorType, log.ErrorTypeDatabase,
		log.FieldError, err.Error())
}

// loadList refetches the list into the session's dashboard, which hides
// every masked amount again.
func (s *Server) loadList(ctx context.Context, st *session.State) listView {
	res, err := s.fetchList(ctx, st.ID)
	if err == nil {
		var state session.ListState
		state, err = st.Dashboard.LoadList(res.records, res.stale, res.takenAt)
		if err == nil {
			return s.listView(state)
		}
	}
	return s.listFailure(ctx, st, err)
}

func (s *Server) listView(state session.ListState) listView {
	return listView{ListState: state, PollInterval: pollInterval}
}

// listFailure keeps the rows already on screen, masked again, and adds the
// error banner.
func (s *Server) listFailure(ctx context.Context, st *session.State, err error) listView {
	v := s.listView(st.Dashboard.ConcealList())
	msg, integrity := s.describeLoadError(ctx, log.OpList, err)
	v.Error = msg
	v.Integrity = integrity
	return v
}

func (s *Server) loadStatistics(ctx context.Context, st *session.State) statsView {
	res, err := s.fetchStatistics(ctx, st.ID)
	if err != nil {
		msg, _ := s.describeLoadError(ctx, log.OpStats, err)
		return statsView{FigureState: st.Dashboard.Figure(), Error: msg}
	}
	return statsView{FigureState: st.Dashboard.SetStatistics(res.stats, res.stale), TakenAt: res.takenAt}
}

// describeLoadError logs a failed load and returns the banner text.
// Contract breaches are reported apart from plain outages.
func (s *Server) describeLoadError(ctx context.Context, op string, err error) (string, bool) {
	logger := reqLog(ctx, log.ComponentAPI)
	if errors.Is(err, core.ErrInvalidRecord) {
		s.metrics.InvalidRecords.Inc()
		args := []any{
			log.FieldOperation, op,
			log.FieldErrorType, log.ErrorTypeDataIntegrity,
			log.FieldError, err.Error(),
		}
		var ire *core.InvalidRecordError
		if errors.As(err, &ire) {
			args = append(args, log.FieldExpenseID, ire.ID, "field", ire.Field, "value", ire.Value)
			logger.ErrorContext(ctx, "Expense record violates the API contract", args...)
			return fmt.Sprintf("데이터 무결성 오류: 지출 #%d의 %s 값(%s)이 올바르지 않습니다", ire.ID, ire.Field, ire.Value), true
		}
		logger.ErrorContext(ctx, "Expense record violates the API contract", args...)
		return "데이터 무결성 오류: 서버 응답을 해석할 수 없습니다", true
	}
	if errors.Is(err, core.ErrUnavailable) {
		logger.WarnContext(ctx, "Expense API unavailable",
			log.FieldOperation, op,
			log.FieldErrorType, log.ErrorTypeNetwork,
			log.FieldError, err.Error())
		return "데이터를 불러올 수 없습니다", false
	}
	log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Failed to load dashboard data",
		err, log.ComponentAPI, op, log.ErrorTypeInternal, nil)
	return "데이터를 불러올 수 없습니다", false
}

// loadDashboard fetches list and statistics in parallel. Each half fails
// on its own and is rendered with its own banner.
func (s *Server) loadDashboard(ctx context.Context, st *session.State) (listView, statsView) {
	var (
		list  listView
		stats statsView
		g     errgroup.Group
	)
	g.Go(func() error {
		list = s.loadList(ctx, st)
		return nil
	})
	g.Go(func() error {
		stats = s.loadStatistics(ctx, st)
		return nil
	})
	_ = g.Wait()
	return list, stats
}
