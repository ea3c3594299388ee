package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"wallet/internal/core"
)

// APIError is a non-2xx answer carrying the API's error body.
type APIError struct {
	Status    int
	Message   string
	Path      string
	Timestamp time.Time
}

func (e *APIError) Error() string {
	return fmt.Sprintf("expense api %d on %s: %s", e.Status, e.Path, e.Message)
}

// Unwrap maps 404 to core.ErrNotFound and 5xx to core.ErrUnavailable.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusNotFound:
		return core.ErrNotFound
	case e.Status >= 500:
		return core.ErrUnavailable
	default:
		return nil
	}
}

type jarKey struct{}

// WithJar attaches the cookie jar of one browser session to ctx. The API
// keys its data by its own session cookie, which the jar keeps.
func WithJar(ctx context.Context, jar http.CookieJar) context.Context {
	return context.WithValue(ctx, jarKey{}, jar)
}

func jarFrom(ctx context.Context) http.CookieJar {
	jar, _ := ctx.Value(jarKey{}).(http.CookieJar)
	return jar
}
