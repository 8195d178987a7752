package scraper

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced across package boundaries.
var (
	// ErrCircuitOpen is returned by a CircuitBreaker that is rejecting calls.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrUnknownSource is returned when a run names an unregistered source.
	ErrUnknownSource = errors.New("unknown source")
)

// HTTPError carries a non-2xx status code through the retry predicate.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d fetching %s", e.StatusCode, e.URL)
}

// IsAuthError reports whether err is an HTTP 401 or 403 response. These are
// never retried: a source that is actively rejecting us must not be hammered.
func IsAuthError(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 401 || httpErr.StatusCode == 403
	}
	return false
}
