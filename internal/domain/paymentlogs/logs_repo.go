package paymentlogs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS payment_logs (
	id           BIGSERIAL PRIMARY KEY,
	reference_id TEXT NOT NULL DEFAULT '',
	order_id     TEXT NOT NULL DEFAULT '',
	gateway      TEXT NOT NULL,
	log_type     TEXT NOT NULL,
	payload      JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS payment_logs_reference_idx ON payment_logs (reference_id);`

type LogsRepository struct{ pool *pgxpool.Pool }

func NewLogsRepository(pool *pgxpool.Pool) *LogsRepository {
	return &LogsRepository{pool: pool}
}

func (r *LogsRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate payment_logs: %w", err)
	}
	return nil
}

func (r *LogsRepository) InsertPaymentLog(ctx context.Context, log *PaymentLog) error {
	var payload any
	if len(log.Payload) > 0 {
		payload = []byte(log.Payload)
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO payment_logs (reference_id, order_id, gateway, log_type, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, log.ReferenceID, log.OrderID, log.Gateway, log.LogType, payload).Scan(&log.ID, &log.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment_log: %w", err)
	}
	return nil
}

func (r *LogsRepository) ListPaymentLogs(ctx context.Context, referenceID string, limit int) ([]PaymentLog, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, reference_id, order_id, gateway, log_type, payload, created_at
		FROM payment_logs
		WHERE $1 = '' OR reference_id = $1
		ORDER BY id
		LIMIT $2
	`, referenceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list payment_logs: %w", err)
	}

	logs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (PaymentLog, error) {
		var l PaymentLog
		var payload []byte
		if err := row.Scan(&l.ID, &l.ReferenceID, &l.OrderID, &l.Gateway, &l.LogType, &payload, &l.CreatedAt); err != nil {
			return l, err
		}
		l.Payload = payload
		return l, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list payment_logs: %w", err)
	}
	return logs, nil
}
