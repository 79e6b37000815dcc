package registrations

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"eventreg/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	pgOnce      sync.Once
	pgPool      *pgxpool.Pool
	pgContainer *postgres.PostgresContainer
	pgErr       error
)

func TestMain(m *testing.M) {
	code := m.Run()

	if pgPool != nil {
		pgPool.Close()
	}
	if pgContainer != nil {
		_ = pgContainer.Terminate(context.Background())
	}
	os.Exit(code)
}

// newPostgresStore returns a migrated, empty store. TEST_DB_ADDR points the
// tests at an existing database; otherwise a postgres container is started
// once for the package.
func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()

	if testing.Short() {
		t.Skip("postgres tests are skipped in short mode")
	}
	addr, external := os.LookupEnv("TEST_DB_ADDR")
	if !external {
		testcontainers.SkipIfProviderIsNotHealthy(t)
	}

	pgOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if !external {
			pgContainer, pgErr = postgres.Run(ctx, "postgres:16-alpine",
				postgres.WithDatabase("eventreg"),
				postgres.WithUsername("postgres"),
				postgres.WithPassword("postgres"),
				postgres.BasicWaitStrategies(),
			)
			if pgErr != nil {
				return
			}
			addr, pgErr = pgContainer.ConnectionString(ctx, "sslmode=disable")
			if pgErr != nil {
				return
			}
		}
		pgPool, pgErr = db.New(addr, 8, "")
	})
	require.NoError(t, pgErr)

	ctx := context.Background()
	store := NewPostgresStore(pgPool)
	require.NoError(t, store.Migrate(ctx))
	_, err := pgPool.Exec(ctx, `TRUNCATE registration_orders, registrations`)
	require.NoError(t, err)
	return store
}

func TestPostgresStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := newPostgresStore(t)

	require.NoError(t, s.Migrate(ctx), "migrate is repeatable")

	reg := newRegistration("r1")
	reg.PaymentConfirmed = true
	reg.TransactionID = "tx"
	require.NoError(t, s.Create(ctx, reg))
	assert.False(t, reg.PaymentConfirmed)
	assert.Empty(t, reg.TransactionID)

	assert.ErrorIs(t, s.Create(ctx, newRegistration("r1")), ErrConflict)

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)
	assert.False(t, got.PaymentConfirmed)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := s.IsConfirmed(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresStoreUpdate(t *testing.T) {
	ctx := context.Background()
	s := newPostgresStore(t)
	require.NoError(t, s.Create(ctx, newRegistration("r1")))

	t.Run("mutator error aborts write", func(t *testing.T) {
		boom := errors.New("boom")
		err := s.Update(ctx, "r1", func(r *Registration) error {
			r.FullName = "changed"
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, _ := s.Get(ctx, "r1")
		assert.Equal(t, "A", got.FullName)
	})

	t.Run("rejects transaction id without payment", func(t *testing.T) {
		err := s.Update(ctx, "r1", func(r *Registration) error {
			r.TransactionID = "tx"
			return nil
		})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("confirm once", func(t *testing.T) {
		require.NoError(t, s.Update(ctx, "r1", func(r *Registration) error {
			return Confirm(r, "tx_1")
		}))
		ok, err := s.IsConfirmed(ctx, "r1")
		require.NoError(t, err)
		assert.True(t, ok)

		err = s.Update(ctx, "r1", func(r *Registration) error {
			return Confirm(r, "tx_2")
		})
		assert.ErrorIs(t, err, ErrAlreadyConfirmed)

		got, _ := s.Get(ctx, "r1")
		assert.Equal(t, "tx_1", got.TransactionID)
	})

	t.Run("rejects reverting payment", func(t *testing.T) {
		err := s.Update(ctx, "r1", func(r *Registration) error {
			r.PaymentConfirmed = false
			r.TransactionID = ""
			return nil
		})
		assert.ErrorIs(t, err, ErrInvalidTransition)

		ok, _ := s.IsConfirmed(ctx, "r1")
		assert.True(t, ok)
	})

	t.Run("unknown id", func(t *testing.T) {
		err := s.Update(ctx, "missing", func(r *Registration) error { return nil })
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPostgresStoreConcurrentConfirm(t *testing.T) {
	ctx := context.Background()
	s := newPostgresStore(t)
	require.NoError(t, s.Create(ctx, newRegistration("r1")))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.Update(ctx, "r1", func(r *Registration) error {
				return Confirm(r, fmt.Sprintf("tx_%d", i))
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrAlreadyConfirmed)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
}

func TestPostgresStoreOrders(t *testing.T) {
	ctx := context.Background()
	s := newPostgresStore(t)
	require.NoError(t, s.Create(ctx, newRegistration("r1")))
	require.NoError(t, s.Create(ctx, newRegistration("r2")))

	link := func(id, order, gateway string) error {
		return s.Update(ctx, id, func(r *Registration) error {
			r.OrderID = order
			r.Gateway = gateway
			return nil
		})
	}
	require.NoError(t, link("r1", "ORDER_1", "cashfree"))
	require.NoError(t, link("r1", "order_2", "razorpay"))

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "order_2", got.OrderID)

	id, err := s.FindByOrderID(ctx, "ORDER_1")
	require.NoError(t, err)
	assert.Equal(t, "r1", id)

	first, err := s.FindOrder(ctx, "ORDER_1")
	require.NoError(t, err)
	assert.Equal(t, "cashfree", first.Gateway)
	assert.False(t, first.CreatedAt.IsZero())

	_, err = s.FindByOrderID(ctx, "ORDER_none")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, link("r2", "ORDER_1", "cashfree"), ErrConflict)
	r2, err := s.Get(ctx, "r2")
	require.NoError(t, err)
	assert.Empty(t, r2.OrderID, "conflicting link rolls back")
}

func TestPostgresStoreList(t *testing.T) {
	ctx := context.Background()
	s := newPostgresStore(t)

	empty, total, err := s.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Zero(t, total)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		reg := newRegistration(fmt.Sprintf("r%d", i))
		reg.Timestamp = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.Create(ctx, reg))
	}

	page, total, err := s.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "r4", page[0].ReferenceID, "newest first")
	assert.Equal(t, "r3", page[1].ReferenceID)

	page, _, err = s.List(ctx, 2, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "r0", page[0].ReferenceID)
}
