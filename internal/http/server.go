// Package http serves the wallet dashboard and expense form as htmx pages
// and partials. The rating control and the amount reveal toggles keep their
// state per browser in session.State; the page only forwards gestures.
package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"wallet/internal/amqp"
	"wallet/internal/apiclient"
	"wallet/internal/core"
	"wallet/internal/log"
	"wallet/internal/metrics"
	"wallet/internal/middleware/ratelimit"
	"wallet/internal/middleware/security"
	"wallet/internal/middleware/trace"
	"wallet/internal/session"
	appweb "wallet/web"
)

const (
	fetchTimeout = 7 * time.Second
	readyTimeout = 5 * time.Second
	pollInterval = "5s"
	staticMaxAge = 3600
	defaultRPM   = 120
)

// ExpenseAPI is the remote expense API. Implemented by apiclient.Client.
type ExpenseAPI interface {
	List(ctx context.Context) ([]core.Expense, error)
	Get(ctx context.Context, id int64) (core.Expense, error)
	Create(ctx context.Context, in core.ExpenseInput) (core.Expense, error)
	Update(ctx context.Context, id int64, in core.ExpenseInput) (core.Expense, error)
	Delete(ctx context.Context, id int64) error
	Statistics(ctx context.Context) (core.Statistics, error)
}

// Snapshots keeps the last good dashboard data per browser session.
// Implemented by storage.SQLiteRepository.
type Snapshots interface {
	SaveList(ctx context.Context, owner string, records []core.Expense, takenAt time.Time) error
	LoadList(ctx context.Context, owner string) ([]core.Expense, time.Time, error)
	SaveStatistics(ctx context.Context, owner string, st core.Statistics, takenAt time.Time) error
	LoadStatistics(ctx context.Context, owner string) (core.Statistics, time.Time, error)
	DropOwner(ctx context.Context, owner string) error
	Ping(ctx context.Context) error
}

// Publisher announces completed mutations. Implemented by amqp.Client.
type Publisher interface {
	Publish(ctx context.Context, msg *amqp.ExpenseChangedMessage) error
}

type breakerReporter interface {
	BreakerState() gobreaker.State
}

// Deps wires the server. Snapshots and Publisher are optional.
type Deps struct {
	API       ExpenseAPI
	Sessions  *session.Store
	Snapshots Snapshots
	Publisher Publisher
	Metrics   *metrics.Metrics
	Registry  *prometheus.Registry
	Logger    *log.Logger

	RateLimitPerMinute int
	TrustedProxies     []string
}

type Server struct {
	http.Server

	templates *template.Template
	api       ExpenseAPI
	sessions  *session.Store
	snapshots Snapshots
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *log.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	flight   singleflight.Group
	now      func() time.Time

	// background snapshot writes, waited for on shutdown
	pending sync.WaitGroup

	started      time.Time
	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and builds the routes.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.API == nil {
		return nil, errors.New("expense api is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if deps.Logger == nil {
		deps.Logger = log.Discard()
	}
	if deps.Registry == nil {
		deps.Registry = metrics.NewRegistry()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(deps.Registry)
	}
	if deps.RateLimitPerMinute <= 0 {
		deps.RateLimitPerMinute = defaultRPM
	}

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	detector := security.NewDetector()
	for _, cidr := range deps.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}

	s := &Server{
		templates: t,
		api:       deps.API,
		sessions:  deps.Sessions,
		snapshots: deps.Snapshots,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		logger:    deps.Logger.WithComponent(log.ComponentHTTP),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		detector:  detector,
		now:       time.Now,
		started:   time.Now(),
	}

	mux := http.NewServeMux()

	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	mux.Handle("GET /static/", security.StaticCache(staticMaxAge)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", metrics.Handler(deps.Registry))

	mux.HandleFunc("GET /{$}", s.handleDashboard)
	mux.HandleFunc("GET /ui/expenses", s.handleList)
	mux.HandleFunc("POST /ui/expenses/reveal", s.handleListReveal)
	mux.HandleFunc("GET /ui/statistics", s.handleStatistics)
	mux.HandleFunc("POST /ui/statistics/reveal", s.handleStatisticsReveal)
	mux.HandleFunc("GET /ui/events", s.handleEvents)

	mux.HandleFunc("GET /expenses/new", s.handleNewForm)
	mux.HandleFunc("GET /expenses/{id}/edit", s.handleEditForm)
	mux.HandleFunc("POST /ui/rating/{action}", s.handleRating)
	mux.HandleFunc("POST /expenses", s.handleCreate)
	mux.HandleFunc("POST /expenses/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /expenses/{id}", s.handleDelete)

	var h http.Handler = mux
	h = s.screen(h)
	h = s.limiter.Middleware(s.detector.ClientIP, s.onRateLimited)(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = trace.NewMiddleware(s.logger, s.detector.ClientIP, s.metrics).Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// screen logs requests that look like probes. They are still served; the
// rate limiter is what blocks abusive clients.
func (s *Server) screen(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reason, ok := s.detector.Suspicious(r); ok {
			reqLog(r.Context(), log.ComponentSecurity).WarnContext(r.Context(), "Suspicious request",
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, s.detector.ClientIP(r),
				"reason", reason)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	reqLog(r.Context(), log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "요청이 너무 많습니다. 잠시 후 다시 시도해주세요").Write(w)
}

// Shutdown stops accepting requests, then waits for snapshot writes.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)

		done := make(chan struct{})
		go func() {
			s.pending.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			if shutdownErr == nil {
				shutdownErr = ctx.Err()
			}
		}
	})
	return shutdownErr
}

// state loads the browser session and binds its API cookie jar to ctx.
func (s *Server) state(w http.ResponseWriter, r *http.Request) (*session.State, context.Context, bool) {
	st, err := s.sessions.Load(w, r)
	if err != nil {
		reqLog(r.Context(), log.ComponentSession).ErrorContext(r.Context(), "Failed to load view session",
			log.FieldError, err.Error())
		InternalServerError("세션을 불러오지 못했습니다").Write(w)
		return nil, nil, false
	}
	ctx := apiclient.WithJar(r.Context(), st.Jar)
	ctx = log.IntoContext(ctx, log.FromContext(ctx).With(log.FieldSessionID, st.ID))
	return st, ctx, true
}

// render executes a template into a builder so a failed render never
// leaves a half-written response.
func (s *Server) render(ctx context.Context, b *HTMXResponseBuilder, name string, data any) *HTMXResponseBuilder {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		reqLog(ctx, log.ComponentTemplate).ErrorContext(ctx, "Template execution failed",
			log.FieldOperation, log.OpRender,
			"template", name,
			log.FieldError, err.Error())
		return InternalServerError("화면을 그리지 못했습니다")
	}
	return b.BodyHTML(buf.String())
}

// reqLog returns the request-scoped logger for component.
func reqLog(ctx context.Context, component string) *log.Logger {
	return log.FromContext(ctx).WithComponent(component)
}
