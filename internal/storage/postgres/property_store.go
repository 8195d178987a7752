// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/casaplaza/listing-scraper/internal/scraper"
)

// PoolConfig controls the Postgres connection pool.
type PoolConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// PropertyStore implements scraper.PropertyStore using Postgres.
type PropertyStore struct {
	pool   pgxPool
	logger *zap.Logger
}

// NewPropertyStore connects a pool using the provided config.
func NewPropertyStore(ctx context.Context, cfg PoolConfig, logger *zap.Logger) (*PropertyStore, error) {
	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewPropertyStoreWithPool(pool, logger)
}

// NewPropertyStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewPropertyStoreWithPool(pool pgxPool, logger *zap.Logger) (*PropertyStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PropertyStore{pool: pool, logger: logger}, nil
}

// Close releases the underlying pool resources.
func (s *PropertyStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Expected schema:
//
// CREATE TABLE properties (
//
//	source TEXT NOT NULL,
//	external_id TEXT NOT NULL,
//	country TEXT NOT NULL DEFAULT '',
//	state_province TEXT NOT NULL DEFAULT '',
//	city TEXT NOT NULL DEFAULT '',
//	neighborhood TEXT NOT NULL DEFAULT '',
//	postal_code TEXT NOT NULL DEFAULT '',
//	address TEXT NOT NULL DEFAULT '',
//	latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
//	longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
//	transaction_type TEXT NOT NULL,
//	price_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
//	price_currency TEXT NOT NULL DEFAULT 'MXN',
//	property_type TEXT NOT NULL,
//	bedrooms INT NOT NULL DEFAULT 0,
//	bathrooms DOUBLE PRECISION NOT NULL DEFAULT 0,
//	area_sqm DOUBLE PRECISION NOT NULL DEFAULT 0,
//	lot_size_sqm DOUBLE PRECISION,
//	amenities TEXT[] NOT NULL DEFAULT '{}',
//	images TEXT[] NOT NULL DEFAULT '{}',
//	description TEXT NOT NULL DEFAULT '',
//	contact_info TEXT NOT NULL DEFAULT '',
//	listing_date TIMESTAMPTZ NOT NULL,
//	last_updated TIMESTAMPTZ NOT NULL,
//	PRIMARY KEY (source, external_id)
//
// );
const upsertPropertySQL = `
INSERT INTO properties (
	source, external_id,
	country, state_province, city, neighborhood, postal_code, address,
	latitude, longitude,
	transaction_type, price_amount, price_currency,
	property_type, bedrooms, bathrooms, area_sqm, lot_size_sqm,
	amenities, images, description, contact_info,
	listing_date, last_updated
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24
)
ON CONFLICT (source, external_id) DO UPDATE SET
	price_amount = EXCLUDED.price_amount,
	price_currency = EXCLUDED.price_currency,
	transaction_type = EXCLUDED.transaction_type,
	images = EXCLUDED.images,
	amenities = EXCLUDED.amenities,
	description = EXCLUDED.description,
	contact_info = EXCLUDED.contact_info,
	last_updated = EXCLUDED.last_updated`

// UpsertProperties writes the batch inside one transaction. Each row runs
// under a savepoint: a bad row is rolled back, logged and skipped without
// poisoning the rest of the batch. A commit failure is fatal for the whole
// batch and propagates.
func (s *PropertyStore) UpsertProperties(ctx context.Context, batch []scraper.NormalizedProperty) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	saved := 0
	for i := range batch {
		p := &batch[i]
		sp, err := tx.Begin(ctx)
		if err != nil {
			return saved, fmt.Errorf("begin savepoint: %w", err)
		}
		if _, err := sp.Exec(ctx, upsertPropertySQL, upsertArgs(p)...); err != nil {
			_ = sp.Rollback(ctx)
			s.logger.Warn("property row skipped",
				zap.String("source", p.Source),
				zap.String("external_id", p.ExternalID),
				zap.Error(err),
			)
			continue
		}
		if err := sp.Commit(ctx); err != nil {
			return saved, fmt.Errorf("release savepoint: %w", err)
		}
		saved++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}
	return saved, nil
}

func upsertArgs(p *scraper.NormalizedProperty) []any {
	return []any{
		p.Source, p.ExternalID,
		p.Country, p.StateProvince, p.City, p.Neighborhood, p.PostalCode, p.Address,
		p.Coordinates.Lat, p.Coordinates.Lng,
		string(p.TransactionType), p.Price.Amount, p.Price.Currency,
		string(p.PropertyType), p.Bedrooms, p.Bathrooms, p.AreaSqm, p.LotSizeSqm,
		p.Amenities, p.Images, p.Description, p.ContactInfo,
		p.ListingDate, p.LastUpdated,
	}
}

const listBySourceSQL = `
SELECT
	source, external_id,
	country, state_province, city, neighborhood, postal_code, address,
	latitude, longitude,
	transaction_type, price_amount, price_currency,
	property_type, bedrooms, bathrooms, area_sqm, lot_size_sqm,
	amenities, images, description, contact_info,
	listing_date, last_updated
FROM properties
WHERE source = $1 AND price_amount > $2
ORDER BY last_updated DESC`

// ListBySource returns rows for one source priced above minPrice, newest
// first. Zero-price rows are kept at ingest; readers exclude them here.
func (s *PropertyStore) ListBySource(ctx context.Context, source string, minPrice float64) ([]scraper.NormalizedProperty, error) {
	rows, err := s.pool.Query(ctx, listBySourceSQL, source, minPrice)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	defer rows.Close()

	var out []scraper.NormalizedProperty
	for rows.Next() {
		var p scraper.NormalizedProperty
		var txType, propType string
		if err := rows.Scan(
			&p.Source, &p.ExternalID,
			&p.Country, &p.StateProvince, &p.City, &p.Neighborhood, &p.PostalCode, &p.Address,
			&p.Coordinates.Lat, &p.Coordinates.Lng,
			&txType, &p.Price.Amount, &p.Price.Currency,
			&propType, &p.Bedrooms, &p.Bathrooms, &p.AreaSqm, &p.LotSizeSqm,
			&p.Amenities, &p.Images, &p.Description, &p.ContactInfo,
			&p.ListingDate, &p.LastUpdated,
		); err != nil {
			return nil, fmt.Errorf("scan property row: %w", err)
		}
		p.TransactionType = scraper.TransactionType(txType)
		p.PropertyType = scraper.PropertyType(propType)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate property rows: %w", err)
	}
	return out, nil
}

func newPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}
