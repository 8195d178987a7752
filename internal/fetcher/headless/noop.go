package headless

import (
	"context"
	"errors"

	"github.com/casaplaza/listing-scraper/internal/scraper"
)

// Noop implements scraper.Fetcher but always returns an error, so a source
// that needs JS rendering fails visibly when headless fetching is disabled.
type Noop struct{}

// NewNoop creates a new Noop fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// Fetch returns an error since this is a stub implementation.
func (Noop) Fetch(_ context.Context, _ scraper.FetchRequest) (scraper.FetchResponse, error) {
	return scraper.FetchResponse{}, errors.New("headless fetcher not configured")
}
