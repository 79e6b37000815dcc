package registrations

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS registrations (
	reference_id      TEXT PRIMARY KEY,
	full_name         TEXT NOT NULL,
	email             TEXT NOT NULL,
	phone             TEXT NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	payment_confirmed BOOLEAN NOT NULL DEFAULT false,
	transaction_id    TEXT,
	order_id          TEXT,
	gateway           TEXT
);
CREATE INDEX IF NOT EXISTS registrations_order_id_idx ON registrations (order_id);

CREATE TABLE IF NOT EXISTS registration_orders (
	order_id     TEXT PRIMARY KEY,
	reference_id TEXT NOT NULL REFERENCES registrations (reference_id),
	gateway      TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
INSERT INTO registration_orders (order_id, reference_id, gateway)
SELECT order_id, reference_id, gateway FROM registrations WHERE order_id IS NOT NULL
ON CONFLICT (order_id) DO NOTHING;
`

const selectColumns = `
	reference_id, full_name, email, phone, created_at, payment_confirmed,
	COALESCE(transaction_id, ''), COALESCE(order_id, ''), COALESCE(gateway, '')
`

// PostgresStore is a Postgres backed Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the registrations and order link tables when they do not
// exist yet.
func (r *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate registrations: %w", err)
	}
	return nil
}

func (r *PostgresStore) Create(ctx context.Context, reg *Registration) error {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO registrations (reference_id, full_name, email, phone, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (reference_id) DO NOTHING
	`, reg.ReferenceID, reg.FullName, reg.Email, reg.Phone, reg.Timestamp)
	if err != nil {
		return fmt.Errorf("create registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	reg.PaymentConfirmed = false
	reg.TransactionID = ""
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row rowScanner) (*Registration, error) {
	var reg Registration
	if err := row.Scan(
		&reg.ReferenceID, &reg.FullName, &reg.Email, &reg.Phone, &reg.Timestamp,
		&reg.PaymentConfirmed, &reg.TransactionID, &reg.OrderID, &reg.Gateway,
	); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *PostgresStore) Get(ctx context.Context, referenceID string) (*Registration, error) {
	reg, err := scanRegistration(r.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM registrations WHERE reference_id=$1`, referenceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

func (r *PostgresStore) Update(ctx context.Context, referenceID string, fn func(reg *Registration) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx) // safe even if already committed
	}()

	before, err := scanRegistration(tx.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM registrations WHERE reference_id=$1 FOR UPDATE`, referenceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lock registration: %w", err)
	}

	after := *before
	if err := fn(&after); err != nil {
		return err
	}
	if err := checkTransition(before, &after); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE registrations
		   SET full_name=$2, email=$3, phone=$4, payment_confirmed=$5,
		       transaction_id=NULLIF($6, ''), order_id=NULLIF($7, ''), gateway=NULLIF($8, '')
		 WHERE reference_id=$1
	`, referenceID, after.FullName, after.Email, after.Phone, after.PaymentConfirmed,
		after.TransactionID, after.OrderID, after.Gateway)
	if err != nil {
		return fmt.Errorf("update registration: %w", err)
	}

	if after.OrderID != "" && after.OrderID != before.OrderID {
		var owner string
		err := tx.QueryRow(ctx, `
			INSERT INTO registration_orders (order_id, reference_id, gateway)
			VALUES ($1, $2, NULLIF($3, ''))
			ON CONFLICT (order_id) DO UPDATE SET order_id = EXCLUDED.order_id
			RETURNING reference_id
		`, after.OrderID, referenceID, after.Gateway).Scan(&owner)
		if err != nil {
			return fmt.Errorf("link order: %w", err)
		}
		if owner != referenceID {
			return ErrConflict
		}
	}

	return tx.Commit(ctx)
}

func (r *PostgresStore) FindByOrderID(ctx context.Context, orderID string) (string, error) {
	link, err := r.FindOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	return link.ReferenceID, nil
}

func (r *PostgresStore) FindOrder(ctx context.Context, orderID string) (*OrderLink, error) {
	var link OrderLink
	err := r.pool.QueryRow(ctx, `
		SELECT order_id, reference_id, COALESCE(gateway, ''), created_at
		FROM registration_orders WHERE order_id=$1
	`, orderID).Scan(&link.OrderID, &link.ReferenceID, &link.Gateway, &link.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find registration by order: %w", err)
	}
	return &link, nil
}

func (r *PostgresStore) IsConfirmed(ctx context.Context, referenceID string) (bool, error) {
	var confirmed bool
	err := r.pool.QueryRow(ctx,
		`SELECT payment_confirmed FROM registrations WHERE reference_id=$1`, referenceID).Scan(&confirmed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check registration confirmed: %w", err)
	}
	return confirmed, nil
}

func (r *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Registration, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+selectColumns+`, COUNT(*) OVER() AS total_count
		FROM registrations
		ORDER BY created_at DESC, reference_id ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	out := []*Registration{}
	var total int
	for rows.Next() {
		var reg Registration
		if err := rows.Scan(
			&reg.ReferenceID, &reg.FullName, &reg.Email, &reg.Phone, &reg.Timestamp,
			&reg.PaymentConfirmed, &reg.TransactionID, &reg.OrderID, &reg.Gateway, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, &reg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
