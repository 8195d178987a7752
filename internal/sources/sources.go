// Package sources defines the per-source scrape configurations: one parser
// and pagination policy per external listings provider, registered into the
// scraper registry instead of subclassed.
package sources

import (
	"fmt"

	"github.com/casaplaza/listing-scraper/internal/scraper"
)

// Options carries the externally supplied per-source settings.
type Options struct {
	BaseURL           string
	APIKey            string
	RequestsPerMinute int
	MaxPagesPerTarget int
}

func (o Options) withDefaults(fallbackBaseURL string) Options {
	if o.BaseURL == "" {
		o.BaseURL = fallbackBaseURL
	}
	if o.RequestsPerMinute <= 0 {
		o.RequestsPerMinute = 20
	}
	if o.MaxPagesPerTarget <= 0 {
		o.MaxPagesPerTarget = 10
	}
	return o
}

// Builder creates one source definition from its options.
type Builder func(opts Options) (scraper.Source, error)

// builders maps source name to its builder, the dispatch table for all
// known sources.
var builders = map[string]Builder{
	NameEasyBroker:  NewEasyBroker,
	NameInmuebles24: NewInmuebles24,
	NameVivanuncios: NewVivanuncios,
}

// Build constructs the named source. Unknown names are a configuration
// error.
func Build(name string, opts Options) (scraper.Source, error) {
	builder, ok := builders[name]
	if !ok {
		return scraper.Source{}, fmt.Errorf("%w: %s", scraper.ErrUnknownSource, name)
	}
	return builder(opts)
}

// Names returns every known source name.
func Names() []string {
	return []string{NameEasyBroker, NameInmuebles24, NameVivanuncios}
}

// BuildRegistry builds each named source and registers it. Registration
// re-validates every definition, so a misconfigured source fails here
// instead of mid-run.
func BuildRegistry(opts map[string]Options) (*scraper.Registry, error) {
	reg := scraper.NewRegistry()
	for name, o := range opts {
		src, err := Build(name, o)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(src); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
