package postgres

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/casaplaza/listing-scraper/internal/scraper"
)

// StatusStore implements scraper.StatusStore using Postgres.
type StatusStore struct {
	pool   pgxPool
	logger *zap.Logger
}

// NewStatusStore connects a pool using the provided config.
func NewStatusStore(ctx context.Context, cfg PoolConfig, logger *zap.Logger) (*StatusStore, error) {
	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewStatusStoreWithPool(pool, logger)
}

// NewStatusStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewStatusStoreWithPool(pool pgxPool, logger *zap.Logger) (*StatusStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusStore{pool: pool, logger: logger}, nil
}

// Close releases the underlying pool resources.
func (s *StatusStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Expected schema:
//
// CREATE TABLE scraper_status (
//
//	name TEXT PRIMARY KEY,
//	last_run TIMESTAMPTZ,
//	status TEXT NOT NULL,
//	total_scraped BIGINT NOT NULL DEFAULT 0,
//	errors TEXT[] NOT NULL DEFAULT '{}'
//
// );
const upsertStatusSQL = `
INSERT INTO scraper_status (name, last_run, status, total_scraped, errors)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (name) DO UPDATE SET
	last_run = EXCLUDED.last_run,
	status = EXCLUDED.status,
	total_scraped = EXCLUDED.total_scraped,
	errors = EXCLUDED.errors`

// UpsertStatus inserts or updates one source's run status, keyed by name.
func (s *StatusStore) UpsertStatus(ctx context.Context, status scraper.RunStatus) error {
	if status.Name == "" {
		return fmt.Errorf("status name is required")
	}
	errs := status.Errors
	if errs == nil {
		errs = []string{}
	}
	_, err := s.pool.Exec(ctx, upsertStatusSQL,
		status.Name,
		status.LastRun,
		string(status.State),
		status.TotalScraped,
		errs,
	)
	if err != nil {
		return fmt.Errorf("upsert scraper status: %w", err)
	}
	return nil
}
