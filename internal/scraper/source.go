package scraper

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
)

// Target is one location or category a source enumerates during a run.
type Target struct {
	Name string
	Path string
}

// ParsePage holds the outcome of parsing one fetched page. Item-level shape
// errors are contained here so the rest of the page still counts.
type ParsePage struct {
	Properties []NormalizedProperty
	ItemErrors []string
}

// ParseFunc turns one raw payload into normalized records.
type ParseFunc func(body []byte, target Target) (ParsePage, error)

// PageURLFunc builds the URL for one page of one target. Pages are numbered
// from 1.
type PageURLFunc func(baseURL string, target Target, page int) string

// Source is the per-source scrape definition: fetch configuration plus the
// parser and pagination policy. One fetch/parse policy per source, held as
// data instead of a subclass.
type Source struct {
	Name              string
	BaseURL           string
	RequestsPerMinute int
	MaxPagesPerTarget int
	Targets           []Target
	Headers           http.Header
	Headless          bool
	BuildPageURL      PageURLFunc
	Parse             ParseFunc
}

// Validate enforces the fields every source must supply.
func (s Source) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("source name is required")
	}
	if s.BaseURL == "" {
		return fmt.Errorf("source %s: base url is required", s.Name)
	}
	if len(s.Targets) == 0 {
		return fmt.Errorf("source %s: at least one target is required", s.Name)
	}
	if s.MaxPagesPerTarget <= 0 {
		return fmt.Errorf("source %s: max pages per target must be > 0", s.Name)
	}
	if s.BuildPageURL == nil || s.Parse == nil {
		return fmt.Errorf("source %s: page url builder and parser are required", s.Name)
	}
	return nil
}

// Registry holds the available sources keyed by name.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register validates and adds a source. Duplicate names are a
// configuration error.
func (r *Registry) Register(s Source) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sources[s.Name]; exists {
		return fmt.Errorf("source %s already registered", s.Name)
	}
	r.sources[s.Name] = s
	return nil
}

// Get returns the named source.
func (r *Registry) Get(name string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[name]
	return s, ok
}

// Names returns the registered source names, sorted for stable run order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
