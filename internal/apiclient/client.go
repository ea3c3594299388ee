// Package apiclient talks to the remote expense API.
//
// Every call goes through a circuit breaker. Transport failures, open
// circuits and 5xx answers surface as core.ErrUnavailable, 404 as
// core.ErrNotFound, and records that break the API contract as
// *core.InvalidRecordError. An empty list is not an error.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"wallet/internal/core"
	"wallet/internal/log"
)

const expensesPath = "/api/expenses"

// Observer receives one call per API request. Implemented by the metrics package.
type Observer interface {
	ObserveAPICall(op, outcome string, d time.Duration)
	SetBreakerState(state string)
}

type Client struct {
	baseURL  string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	logger   *log.Logger
	observer Observer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l.WithComponent(log.ComponentAPI) }
}

// New builds a client for baseURL. The breaker opens after 5 consecutive
// failures and probes again after 30 seconds.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  log.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "wallet-api",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("Circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				log.FieldBreakerState, to.String())
			if c.observer != nil {
				c.observer.SetBreakerState(to.String())
			}
		},
	})
	return c
}

// BreakerState reports the circuit state, for readiness checks.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

func (c *Client) List(ctx context.Context) ([]core.Expense, error) {
	var raw []expenseJSON
	if err := c.do(ctx, log.OpList, http.MethodGet, expensesPath, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]core.Expense, 0, len(raw))
	for _, r := range raw {
		e, err := r.toCore()
		if err != nil {
			return nil, fmt.Errorf("list expenses: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, id int64) (core.Expense, error) {
	var raw expenseJSON
	if err := c.do(ctx, log.OpRead, http.MethodGet, expensePath(id), nil, &raw); err != nil {
		return core.Expense{}, err
	}
	return raw.toCore()
}

func (c *Client) Create(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	var raw expenseJSON
	if err := c.do(ctx, log.OpCreate, http.MethodPost, expensesPath, newExpenseRequest(in), &raw); err != nil {
		return core.Expense{}, err
	}
	return raw.toCore()
}

func (c *Client) Update(ctx context.Context, id int64, in core.ExpenseInput) (core.Expense, error) {
	var raw expenseJSON
	if err := c.do(ctx, log.OpUpdate, http.MethodPut, expensePath(id), newExpenseRequest(in), &raw); err != nil {
		return core.Expense{}, err
	}
	return raw.toCore()
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, log.OpDelete, http.MethodDelete, expensePath(id), nil, nil)
}

func (c *Client) Statistics(ctx context.Context) (core.Statistics, error) {
	var raw statisticsJSON
	if err := c.do(ctx, log.OpStats, http.MethodGet, expensesPath+"/statistics", nil, &raw); err != nil {
		return core.Statistics{}, err
	}
	return raw.toCore(), nil
}

func expensePath(id int64) string {
	return expensesPath + "/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	start := time.Now()
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.roundTrip(ctx, method, path, in, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: %v", core.ErrUnavailable, err)
	}

	if c.observer != nil {
		c.observer.ObserveAPICall(op, outcome(err), time.Since(start))
	}
	if err != nil {
		c.logger.DebugContext(ctx, "API call failed",
			log.FieldOperation, op,
			log.FieldPath, path,
			log.FieldError, err.Error())
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in, out any) error {
	u := c.baseURL + path

	var body io.Reader
	if in != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	jar := jarFrom(ctx)
	target, _ := url.Parse(u)
	if jar != nil && target != nil {
		for _, ck := range jar.Cookies(target) {
			req.AddCookie(ck)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", core.ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if jar != nil && target != nil {
		if cookies := resp.Cookies(); len(cookies) > 0 {
			jar.SetCookies(target, cookies)
		}
	}

	if resp.StatusCode/100 != 2 {
		return decodeError(resp, path)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %v", core.ErrInvalidRecord, method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response, path string) error {
	apiErr := &APIError{Status: resp.StatusCode, Path: path}
	var payload errorJSON
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if len(data) > 0 && json.Unmarshal(data, &payload) == nil {
		apiErr.Message = payload.Message
		if payload.Path != "" {
			apiErr.Path = payload.Path
		}
		apiErr.Timestamp = payload.Timestamp.Time
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// countsAsSuccess keeps client errors from tripping the breaker.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	return !errors.Is(err, core.ErrUnavailable)
}

func outcome(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, core.ErrNotFound):
		return "not_found"
	case errors.Is(err, core.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, core.ErrInvalidRecord):
		return "invalid_record"
	case errors.As(err, &apiErr):
		return "rejected"
	default:
		return "error"
	}
}
