package scraper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/casaplaza/listing-scraper/internal/hash/sha256"
)

// Consecutive auth-rejected targets tolerated before the rest of the run is
// abandoned.
const maxConsecutiveAuthFailures = 3

// EngineConfig tunes the resilience primitives owned by one engine.
type EngineConfig struct {
	Retry            RetryOptions
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// Engine drives one source: it rate-limits, circuit-breaks and retries
// every fetch, parses pages into normalized records, archives raw payloads
// and bulk-upserts results. The engine owns its limiter and breaker
// exclusively; nothing is shared across sources.
type Engine struct {
	source  Source
	fetcher Fetcher
	stores  PropertyStoreFactory
	archive BlobStore
	limiter *RateLimiter
	breaker *CircuitBreaker
	clock   Clock
	retry   RetryOptions
	logger  *zap.Logger
}

// NewEngine constructs an Engine for one source.
func NewEngine(
	source Source,
	fetcher Fetcher,
	stores PropertyStoreFactory,
	archive BlobStore,
	clock Clock,
	cfg EngineConfig,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryOptions()
	}
	return &Engine{
		source:  source,
		fetcher: fetcher,
		stores:  stores,
		archive: archive,
		limiter: NewRateLimiter(source.RequestsPerMinute),
		breaker: NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown, clock),
		clock:   clock,
		retry:   retry,
		logger:  logger.With(zap.String("source", source.Name)),
	}
}

// Source returns the source definition this engine drives.
func (e *Engine) Source() Source {
	return e.source
}

// Scrape runs the whole source to completion and never propagates an error:
// any failure, including catastrophic setup failure, is captured in the
// Result. The store opened for the run is always released.
func (e *Engine) Scrape(ctx context.Context, runID string) Result {
	res := Result{
		Source:    e.source.Name,
		Success:   true,
		StartTime: e.clock.Now(),
	}

	store, err := e.stores(ctx)
	if err != nil {
		res.Success = false
		res.Errors = append(res.Errors, fmt.Sprintf("open store: %v", err))
		res.EndTime = e.clock.Now()
		e.observeRun(res)
		return res
	}
	defer store.Close()

	if err := e.run(ctx, store, runID, &res); err != nil {
		res.Success = false
		res.Errors = append(res.Errors, err.Error())
		e.logger.Error("scrape run failed", zap.String("run_id", runID), zap.Error(err))
	}

	res.EndTime = e.clock.Now()
	e.observeRun(res)
	return res
}

// run enumerates the source's targets in order. Per-target failures are
// contained; only persistence-transaction failures and a run of
// auth-rejected targets abort the remaining work.
func (e *Engine) run(ctx context.Context, store PropertyStore, runID string, res *Result) error {
	authFailures := 0
	for _, target := range e.source.Targets {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run canceled before target %s: %w", target.Name, err)
		}
		err := e.scrapeTarget(ctx, store, runID, target, res)
		if err == nil {
			authFailures = 0
			continue
		}
		if IsAuthError(err) {
			authFailures++
			res.Errors = append(res.Errors, fmt.Sprintf("target %s: %v", target.Name, err))
			e.logger.Warn("target abandoned after auth rejection",
				zap.String("target", target.Name),
				zap.Int("consecutive", authFailures),
			)
			if authFailures >= maxConsecutiveAuthFailures {
				return fmt.Errorf("aborting run after %d consecutive auth-rejected targets", authFailures)
			}
			continue
		}
		return fmt.Errorf("target %s: %w", target.Name, err)
	}
	return nil
}

// scrapeTarget paginates one target in increasing page order, stopping
// early once a page yields zero records. Page-level fetch and parse errors
// are recorded and the loop moves on; it returns an error only for auth
// rejections and batch-persistence failures.
func (e *Engine) scrapeTarget(ctx context.Context, store PropertyStore, runID string, target Target, res *Result) error {
	for page := 1; page <= e.source.MaxPagesPerTarget; page++ {
		url := e.source.BuildPageURL(e.source.BaseURL, target, page)

		resp, err := e.fetchWithRetry(ctx, url)
		if err != nil {
			pagesTotal.WithLabelValues(e.source.Name, "error").Inc()
			if IsAuthError(err) {
				return err
			}
			res.Errors = append(res.Errors, fmt.Sprintf("page %d (%s): %v", page, url, err))
			e.logger.Warn("page fetch failed",
				zap.String("target", target.Name),
				zap.Int("page", page),
				zap.Error(err),
			)
			continue
		}
		pagesTotal.WithLabelValues(e.source.Name, "ok").Inc()
		fetchDurationSeconds.WithLabelValues(e.source.Name).Observe(resp.Duration.Seconds())
		e.archivePage(ctx, runID, resp)

		parsed, err := e.source.Parse(resp.Body, target)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("page %d (%s): parse: %v", page, url, err))
			e.logger.Warn("page parse failed",
				zap.String("target", target.Name),
				zap.Int("page", page),
				zap.Error(err),
			)
			continue
		}
		res.Errors = append(res.Errors, parsed.ItemErrors...)

		if len(parsed.Properties) == 0 {
			e.logger.Debug("target exhausted",
				zap.String("target", target.Name),
				zap.Int("page", page),
			)
			return nil
		}

		saved, err := store.UpsertProperties(ctx, e.stamp(parsed.Properties))
		if err != nil {
			return fmt.Errorf("save batch of %d: %w", len(parsed.Properties), err)
		}
		if skipped := len(parsed.Properties) - saved; skipped > 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("page %d (%s): %d rows skipped", page, url, skipped))
		}
		res.TotalScraped += saved
		propertiesSavedTotal.WithLabelValues(e.source.Name).Add(float64(saved))

		e.logger.Info("page scraped",
			zap.String("target", target.Name),
			zap.Int("page", page),
			zap.Int("saved", saved),
		)
	}
	return nil
}

// fetchWithRetry composes rate limiter, circuit breaker and retry policy
// around one GET. The limiter gates every attempt, so retries are spaced
// like first requests.
func (e *Engine) fetchWithRetry(ctx context.Context, url string) (FetchResponse, error) {
	opts := e.retry
	opts.OnRetry = func(_ int, _ time.Duration, _ error) {
		retriesTotal.WithLabelValues(e.source.Name).Inc()
	}

	return WithRetry(ctx, e.logger, func() (FetchResponse, error) {
		if err := e.limiter.Wait(ctx); err != nil {
			return FetchResponse{}, err
		}
		var resp FetchResponse
		err := e.breaker.Execute(func() error {
			r, err := e.fetcher.Fetch(ctx, FetchRequest{
				Source:  e.source.Name,
				URL:     url,
				Headers: e.source.Headers,
			})
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
		e.observeBreaker()
		if err != nil {
			return FetchResponse{}, err
		}
		return resp, nil
	}, opts)
}

// archivePage stores the raw payload for provenance. Best effort: archive
// failures are logged and the run continues.
func (e *Engine) archivePage(ctx context.Context, runID string, resp FetchResponse) {
	if e.archive == nil {
		return
	}
	digest, err := sha256.Hash(resp.Body)
	if err != nil {
		e.logger.Warn("hash payload failed", zap.String("url", resp.URL), zap.Error(err))
		return
	}
	path := fmt.Sprintf("%s/%s/%s.html", e.source.Name, runID, digest)
	if _, err := e.archive.PutObject(ctx, path, "text/html; charset=utf-8", resp.Body); err != nil {
		e.logger.Warn("archive payload failed", zap.String("url", resp.URL), zap.Error(err))
	}
}

// stamp fills provenance defaults the parsers leave open.
func (e *Engine) stamp(batch []NormalizedProperty) []NormalizedProperty {
	now := e.clock.Now()
	for i := range batch {
		if batch[i].Source == "" {
			batch[i].Source = e.source.Name
		}
		if batch[i].Price.Currency == "" {
			batch[i].Price.Currency = DefaultCurrency
		}
		if batch[i].ListingDate.IsZero() {
			batch[i].ListingDate = now
		}
		batch[i].LastUpdated = now
	}
	return batch
}

func (e *Engine) observeBreaker() {
	if e.breaker.State() == BreakerOpen {
		breakerOpen.WithLabelValues(e.source.Name).Set(1)
	} else {
		breakerOpen.WithLabelValues(e.source.Name).Set(0)
	}
}

func (e *Engine) observeRun(res Result) {
	status := "ok"
	if !res.Success {
		status = "failed"
	}
	runDurationSeconds.WithLabelValues(e.source.Name, status).Observe(res.EndTime.Sub(res.StartTime).Seconds())
}
