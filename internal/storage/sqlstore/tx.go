package sqlstore

import (
	"context"
	"database/sql"

	"github.com/yndnr/tally-go/internal/core/domain"
)

// inTx runs fn in a transaction, retrying it from the start when the
// database reports a transient conflict.
func (s *Store) inTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	err := s.retry.Do(ctx, s.dialect.retryable, func(ctx context.Context) error {
		return withTx(ctx, s.db, nil, fn)
	})
	if err == nil || domain.IsDomainError(err, "") {
		return err
	}
	s.logger.Warn("sql operation failed", "error", err)
	return domain.ErrStoreUnavailable.WithCause(err)
}

// withTx begins a transaction, runs fn and commits on success or rolls back
// on error or panic. Panics are rethrown.
func withTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(ctx, tx)
}
