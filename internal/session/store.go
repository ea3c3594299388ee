// Package session keeps the interaction state of each browser.
//
// The browser only holds a signed cookie with an opaque id. The rating
// selector of the open form and the reveal state of the dashboard live in
// memory, in an LRU cache that forgets idle sessions after a TTL.
package session

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"

	"wallet/internal/cache"
	"wallet/internal/log"
)

const (
	cookieName = "wallet_session"
	idKey      = "sid"
)

// State is everything held for one browser.
type State struct {
	ID        string
	Jar       http.CookieJar
	Form      *FormSession
	Dashboard *DashboardView
}

func newState(id string) *State {
	jar, _ := cookiejar.New(nil)
	return &State{
		ID:        id,
		Jar:       jar,
		Form:      &FormSession{},
		Dashboard: newDashboardView(),
	}
}

// Gauge is updated with the number of live sessions.
type Gauge interface {
	Set(float64)
}

type Config struct {
	Secret   []byte
	TTL      time.Duration
	MaxViews int
	Secure   bool
}

type Store struct {
	cookies *sessions.CookieStore
	states  *cache.LRUCache[*State]
	logger  *log.Logger
	gauge   Gauge
}

type Option func(*Store)

func WithGauge(g Gauge) Option {
	return func(s *Store) { s.gauge = g }
}

// WithCache swaps the state cache, mainly to inject a fake clock.
func WithCache(c *cache.LRUCache[*State]) Option {
	return func(s *Store) { s.states = c }
}

// NewStore creates the cookie codec and the state cache. Without a secret
// a random key is used, so sessions do not survive a restart.
func NewStore(cfg Config, logger *log.Logger, opts ...Option) *Store {
	secret := cfg.Secret
	if len(secret) == 0 {
		secret = securecookie.GenerateRandomKey(32)
		logger.Warn("SESSION_SECRET not set, using an ephemeral key")
	}

	cookies := sessions.NewCookieStore(secret)
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.TTL / time.Second),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}

	s := &Store{
		cookies: cookies,
		logger:  logger.WithComponent(log.ComponentSession),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.states == nil {
		s.states = cache.NewLRUCache[*State](cfg.MaxViews, cfg.TTL)
	}
	return s
}

// Cache exposes the state cache for the cleanup manager.
func (s *Store) Cache() *cache.LRUCache[*State] {
	return s.states
}

// Load returns the state of the requesting browser, creating it when the
// cookie is missing, tampered or its state was evicted. The cookie is
// refreshed on every call.
func (s *Store) Load(w http.ResponseWriter, r *http.Request) (*State, error) {
	sess, err := s.cookies.Get(r, cookieName)
	if err != nil {
		// Undecodable cookie: Get still returns a fresh session.
		s.logger.DebugContext(r.Context(), "Discarding unreadable session cookie", log.FieldError, err.Error())
	}

	id, _ := sess.Values[idKey].(string)
	if id != "" {
		if st, ok := s.states.Get(id); ok {
			s.states.Touch(id)
			if err := sess.Save(r, w); err != nil {
				return nil, fmt.Errorf("refresh session cookie: %w", err)
			}
			return st, nil
		}
	}

	if id == "" {
		id = uuid.NewString()
	}
	st := newState(id)
	s.states.Set(id, st)
	sess.Values[idKey] = id
	if err := sess.Save(r, w); err != nil {
		return nil, fmt.Errorf("save session cookie: %w", err)
	}
	s.report()
	s.logger.DebugContext(r.Context(), "View session created", log.FieldSessionID, id)
	return st, nil
}

// Lookup returns the state by id without touching cookies. Used by the
// change-event consumer.
func (s *Store) Lookup(id string) (*State, bool) {
	return s.states.Get(id)
}

// CleanExpired drops idle sessions and refreshes the gauge.
func (s *Store) CleanExpired() int {
	n := s.states.CleanExpired()
	s.report()
	return n
}

func (s *Store) Len() int {
	return s.states.Size()
}

func (s *Store) report() {
	if s.gauge != nil {
		s.gauge.Set(float64(s.states.Size()))
	}
}
