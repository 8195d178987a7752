package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/casaplaza/listing-scraper/internal/scraper"
)

func testProperty(externalID string) scraper.NormalizedProperty {
	return scraper.NormalizedProperty{
		Source:          "easybroker",
		ExternalID:      externalID,
		Country:         "MX",
		City:            "CDMX",
		Address:         "Av. Reforma 100",
		TransactionType: scraper.TransactionSale,
		Price:           scraper.Price{Amount: 2_500_000, Currency: "MXN"},
		PropertyType:    scraper.PropertyApartment,
		Bedrooms:        2,
		Bathrooms:       1.5,
		AreaSqm:         80,
		Amenities:       []string{"pool"},
		Images:          []string{"https://img.test/1.jpg"},
		ListingDate:     time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		LastUpdated:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

// fakePool records the transaction choreography UpsertProperties drives:
// one outer transaction, one savepoint per row. pgxmock cannot express the
// nested tx.Begin that savepoints use, so the batch tests assert the
// protocol through this fake instead.
type fakePool struct {
	beginErr  error
	commitErr error
	rowErr    map[string]error // external_id -> forced exec failure

	events []string
	saved  []string
}

var _ pgxPool = (*fakePool)(nil)

func (p *fakePool) Begin(context.Context) (pgx.Tx, error) {
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	p.events = append(p.events, "begin")
	return &fakeTx{pool: p}, nil
}

func (p *fakePool) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("unexpected pool exec")
}

func (p *fakePool) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected pool query")
}

func (p *fakePool) Close() {}

type fakeTx struct {
	pgx.Tx
	pool      *fakePool
	savepoint bool
}

func (t *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	t.pool.events = append(t.pool.events, "savepoint")
	return &fakeTx{pool: t.pool, savepoint: true}, nil
}

func (t *fakeTx) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	id, _ := args[1].(string)
	if err := t.pool.rowErr[id]; err != nil {
		return pgconn.CommandTag{}, err
	}
	t.pool.events = append(t.pool.events, "exec "+id)
	t.pool.saved = append(t.pool.saved, id)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (t *fakeTx) Commit(context.Context) error {
	if t.savepoint {
		t.pool.events = append(t.pool.events, "release")
		return nil
	}
	if t.pool.commitErr != nil {
		return t.pool.commitErr
	}
	t.pool.events = append(t.pool.events, "commit")
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.savepoint {
		t.pool.events = append(t.pool.events, "rollback savepoint")
	} else {
		t.pool.events = append(t.pool.events, "rollback")
	}
	return nil
}

func TestPropertyStoreUpsertProperties(t *testing.T) {
	t.Run("saves every row under its own savepoint", func(t *testing.T) {
		pool := &fakePool{}
		store, err := NewPropertyStoreWithPool(pool, zap.NewNop())
		require.NoError(t, err)

		saved, err := store.UpsertProperties(context.Background(), []scraper.NormalizedProperty{
			testProperty("p-1"), testProperty("p-2"),
		})
		require.NoError(t, err)
		require.Equal(t, 2, saved)
		require.Equal(t, []string{"p-1", "p-2"}, pool.saved)
		// The trailing rollback is the deferred outer-tx guard firing
		// after a successful commit.
		require.Equal(t, []string{
			"begin",
			"savepoint", "exec p-1", "release",
			"savepoint", "exec p-2", "release",
			"commit",
			"rollback",
		}, pool.events)
	})

	t.Run("a bad row is rolled back and skipped", func(t *testing.T) {
		pool := &fakePool{rowErr: map[string]error{
			"p-2": errors.New("value too long for type character varying"),
		}}
		store, err := NewPropertyStoreWithPool(pool, zap.NewNop())
		require.NoError(t, err)

		saved, err := store.UpsertProperties(context.Background(), []scraper.NormalizedProperty{
			testProperty("p-1"), testProperty("p-2"), testProperty("p-3"),
		})
		require.NoError(t, err)
		require.Equal(t, 2, saved)
		require.Equal(t, []string{"p-1", "p-3"}, pool.saved)
		require.Equal(t, []string{
			"begin",
			"savepoint", "exec p-1", "release",
			"savepoint", "rollback savepoint",
			"savepoint", "exec p-3", "release",
			"commit",
			"rollback",
		}, pool.events)
	})

	t.Run("a commit failure loses the batch and propagates", func(t *testing.T) {
		pool := &fakePool{commitErr: errors.New("connection reset")}
		store, err := NewPropertyStoreWithPool(pool, zap.NewNop())
		require.NoError(t, err)

		saved, err := store.UpsertProperties(context.Background(), []scraper.NormalizedProperty{
			testProperty("p-1"),
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "commit batch")
		require.Zero(t, saved)
		require.Equal(t, "rollback", pool.events[len(pool.events)-1])
	})

	t.Run("a begin failure propagates", func(t *testing.T) {
		pool := &fakePool{beginErr: errors.New("too many clients")}
		store, err := NewPropertyStoreWithPool(pool, zap.NewNop())
		require.NoError(t, err)

		_, err = store.UpsertProperties(context.Background(), []scraper.NormalizedProperty{
			testProperty("p-1"),
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "begin transaction")
		require.Empty(t, pool.events)
	})

	t.Run("an empty batch is a no-op", func(t *testing.T) {
		pool := &fakePool{}
		store, err := NewPropertyStoreWithPool(pool, zap.NewNop())
		require.NoError(t, err)

		saved, err := store.UpsertProperties(context.Background(), nil)
		require.NoError(t, err)
		require.Zero(t, saved)
		require.Empty(t, pool.events)
	})
}

var listColumns = []string{
	"source", "external_id",
	"country", "state_province", "city", "neighborhood", "postal_code", "address",
	"latitude", "longitude",
	"transaction_type", "price_amount", "price_currency",
	"property_type", "bedrooms", "bathrooms", "area_sqm", "lot_size_sqm",
	"amenities", "images", "description", "contact_info",
	"listing_date", "last_updated",
}

func TestPropertyStoreListBySource(t *testing.T) {
	t.Run("scans rows above the price floor", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		listed := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
		updated := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		rows := pgxmock.NewRows(listColumns).AddRow(
			"easybroker", "p-1",
			"MX", "CDMX", "CDMX", "Roma Norte", "06700", "Av. Reforma 100",
			19.42, -99.16,
			"sale", 2_500_000.0, "MXN",
			"apartment", 2, 1.5, 80.0, (*float64)(nil),
			[]string{"pool"}, []string{"https://img.test/1.jpg"}, "Bright apartment", "ventas@example.com",
			listed, updated,
		)
		mock.ExpectQuery("FROM properties").
			WithArgs("easybroker", 0.0).
			WillReturnRows(rows)

		store, err := NewPropertyStoreWithPool(mock, zap.NewNop())
		require.NoError(t, err)

		got, err := store.ListBySource(context.Background(), "easybroker", 0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Equal(t, "p-1", got[0].ExternalID)
		require.Equal(t, scraper.TransactionSale, got[0].TransactionType)
		require.Equal(t, scraper.PropertyApartment, got[0].PropertyType)
		require.Equal(t, 2_500_000.0, got[0].Price.Amount)
		require.Nil(t, got[0].LotSizeSqm)
		require.Equal(t, updated, got[0].LastUpdated)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("a query failure propagates", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("FROM properties").
			WillReturnError(errors.New("relation does not exist"))

		store, err := NewPropertyStoreWithPool(mock, zap.NewNop())
		require.NoError(t, err)

		_, err = store.ListBySource(context.Background(), "easybroker", 100)
		require.Error(t, err)
		require.Contains(t, err.Error(), "list properties")
	})
}

func TestNewPropertyStoreWithPoolRequiresPool(t *testing.T) {
	_, err := NewPropertyStoreWithPool(nil, zap.NewNop())
	require.Error(t, err)
}
