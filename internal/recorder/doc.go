// Package recorder persists received trade and account updates to PostgreSQL.
//
// Updates are buffered in memory and written in batches with pgx.Batch.
// Every row carries a deterministic idempotency key, so replaying the same
// update is absorbed by ON CONFLICT DO NOTHING. The recorder stores what the
// stream delivered; it does not backfill updates missed while disconnected.
package recorder
