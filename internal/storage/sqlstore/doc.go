// Package sqlstore keeps accounts in PostgreSQL or SQLite through
// database/sql.
//
// Every operation runs in one transaction. Increments are a single
// INSERT ... ON CONFLICT DO UPDATE on the (account, counter, day) row, so
// the database's row locking serializes increments of one counter.
// Serialization failures, deadlocks and busy databases are retried with
// backoff; anything still failing surfaces as domain.ErrStoreUnavailable.
//
// The schema is managed by goose from the embedded migrations package.
package sqlstore
