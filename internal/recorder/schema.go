package recorder

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Schema creates the recorder tables.
const Schema = `
CREATE TABLE IF NOT EXISTS trade_updates (
	update_key        UUID PRIMARY KEY,
	event             TEXT NOT NULL,
	execution_id      TEXT NOT NULL DEFAULT '',
	order_id          UUID NOT NULL,
	client_order_id   TEXT NOT NULL DEFAULT '',
	symbol            TEXT NOT NULL,
	side              TEXT NOT NULL,
	order_type        TEXT NOT NULL,
	order_status      TEXT NOT NULL,
	price             BIGINT NOT NULL,
	qty               BIGINT NOT NULL,
	position_qty      BIGINT NOT NULL,
	filled_qty        BIGINT NOT NULL,
	filled_avg_price  BIGINT NOT NULL,
	event_ts          BIGINT NOT NULL,
	received_at       BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS trade_updates_order_idx ON trade_updates (order_id, event_ts);

CREATE TABLE IF NOT EXISTS account_updates (
	update_key         UUID PRIMARY KEY,
	account_id         UUID NOT NULL,
	status             TEXT NOT NULL,
	currency           TEXT NOT NULL,
	cash               BIGINT NOT NULL,
	cash_withdrawable  BIGINT NOT NULL,
	updated_at         BIGINT NOT NULL,
	received_at        BIGINT NOT NULL
);
`

// Execer is the subset of *pgxpool.Pool used to apply the schema.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// EnsureSchema creates the recorder tables if they do not exist.
func EnsureSchema(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure recorder schema: %w", err)
	}
	return nil
}
