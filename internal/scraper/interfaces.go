package scraper

import (
	"context"
	"net/http"
	"time"
)

// PropertyStore persists normalized property rows. Implementations must be
// idempotent under retry: re-applying the same batch must not create
// duplicate rows keyed by (source, external_id).
type PropertyStore interface {
	// UpsertProperties writes a batch transactionally and returns the number
	// of rows actually saved. A single bad row is skipped, not fatal; a
	// transaction-level failure returns an error.
	UpsertProperties(ctx context.Context, batch []NormalizedProperty) (int, error)

	// ListBySource returns rows for one source with price_amount above
	// minPrice, newest first. Passing 0 excludes zero-price rows.
	ListBySource(ctx context.Context, source string, minPrice float64) ([]NormalizedProperty, error)

	Close()
}

// PropertyStoreFactory opens a store owned exclusively by one engine run.
type PropertyStoreFactory func(ctx context.Context) (PropertyStore, error)

// StatusStore persists per-source run status keyed by name.
type StatusStore interface {
	UpsertStatus(ctx context.Context, status RunStatus) error
	Close()
}

// Fetcher fetches a URL and returns the body plus metadata. Non-2xx
// responses are returned as an *HTTPError so callers can classify them.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// FetchRequest captures everything needed to fetch one page.
type FetchRequest struct {
	Source  string
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Publisher pushes run-completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore archives raw fetched payloads and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
