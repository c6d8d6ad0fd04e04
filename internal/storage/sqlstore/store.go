package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yndnr/tally-go/internal/core/domain"
	"github.com/yndnr/tally-go/internal/storage/txretry"
)

// Options configures Open.
type Options struct {
	Dialect      *Dialect
	DSN          string
	MaxOpenConns int

	Retry  txretry.Policy
	Clock  func() time.Time
	Logger *slog.Logger
}

// Store implements service.AccountStore on a SQL database.
type Store struct {
	db      *sql.DB
	dialect *Dialect
	retry   txretry.Policy
	now     func() time.Time
	logger  *slog.Logger
}

// Open connects, applies migrations and returns the store.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Dialect == nil {
		return nil, fmt.Errorf("sqlstore: dialect is required")
	}
	if opts.DSN == "" {
		return nil, fmt.Errorf("sqlstore: dsn is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	db, err := sql.Open(opts.Dialect.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	if opts.Dialect == SQLite {
		// One writer at a time; the pool must not hand out a second
		// connection that would hit SQLITE_BUSY.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: connect: %w", err)
	}
	if err := Migrate(ctx, db, opts.Dialect, opts.Logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	opts.Logger.Info("sql store opened", "dialect", opts.Dialect.Name)
	return New(db, opts.Dialect, opts), nil
}

// New wraps an already migrated database. Options other than Retry, Clock
// and Logger are ignored.
func New(db *sql.DB, d *Dialect, opts Options) *Store {
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = txretry.DefaultPolicy()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{
		db:      db,
		dialect: d,
		retry:   opts.Retry,
		now:     opts.Clock,
		logger:  opts.Logger.With("component", "sqlstore"),
	}
}

// CreateAccount registers an empty account under token.
func (s *Store) CreateAccount(ctx context.Context, token string) (*domain.Account, error) {
	if token == "" {
		return nil, domain.ErrInvalidArgument.WithDetails("token is empty")
	}
	createdAt := s.now().UTC()

	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			s.q(`INSERT INTO accounts (token, created_at) VALUES (?, ?)`),
			token, createdAt.UnixNano())
		if s.dialect.duplicate(err) {
			return domain.ErrDuplicateToken
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &domain.Account{Token: token, CreatedAt: createdAt, Counters: []domain.Counter{}}, nil
}

// GetAccount returns the account with all its counters.
func (s *Store) GetAccount(ctx context.Context, token string) (*domain.Account, error) {
	var acct *domain.Account
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var created int64
		err := tx.QueryRowContext(ctx,
			s.q(`SELECT created_at FROM accounts WHERE token = ?`), token).Scan(&created)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrAccountNotFound
		}
		if err != nil {
			return err
		}

		counters, err := s.listCounters(ctx, tx, token)
		if err != nil {
			return err
		}
		acct = &domain.Account{Token: token, CreatedAt: fromNanos(created), Counters: counters}
		return nil
	})
	return acct, err
}

// CreateCounter adds a counter derived from name.
func (s *Store) CreateCounter(ctx context.Context, token, name string) (*domain.Counter, error) {
	c, err := domain.NewCounter(name, s.now().UTC())
	if err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		// Bumping the sequence locks the account row and proves it exists.
		var seq int64
		err := tx.QueryRowContext(ctx,
			s.q(`UPDATE accounts SET counter_seq = counter_seq + 1 WHERE token = ? RETURNING counter_seq`),
			token).Scan(&seq)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrAccountNotFound
		}
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			s.q(`INSERT INTO counters (account_token, id, name, seq, created_at) VALUES (?, ?, ?, ?, ?)`),
			token, c.ID, c.Name, seq, c.CreatedAt.UnixNano())
		if s.dialect.duplicate(err) {
			return domain.ErrDuplicateCounter.WithDetails(c.ID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCounters returns the account's counters in creation order.
func (s *Store) ListCounters(ctx context.Context, token string) ([]domain.Counter, error) {
	var out []domain.Counter
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.requireAccount(ctx, tx, token); err != nil {
			return err
		}
		var err error
		out, err = s.listCounters(ctx, tx, token)
		return err
	})
	return out, err
}

// Increment bumps the counter's entry for date by one.
func (s *Store) Increment(ctx context.Context, token, counterID string, date domain.Date) (*domain.Counter, error) {
	var out *domain.Counter
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		c := domain.Counter{ID: counterID}
		var created int64
		err := tx.QueryRowContext(ctx,
			s.q(`SELECT name, created_at FROM counters WHERE account_token = ? AND id = ?`),
			token, counterID).Scan(&c.Name, &created)
		if errors.Is(err, sql.ErrNoRows) {
			if err := s.requireAccount(ctx, tx, token); err != nil {
				return err
			}
			return domain.ErrCounterNotFound
		}
		if err != nil {
			return err
		}
		c.CreatedAt = fromNanos(created)

		_, err = tx.ExecContext(ctx, s.q(`
			INSERT INTO entries (account_token, counter_id, day, count) VALUES (?, ?, ?, 1)
			ON CONFLICT (account_token, counter_id, day) DO UPDATE SET count = entries.count + 1`),
			token, counterID, date.String())
		if err != nil {
			return err
		}

		c.Entries, err = s.entries(ctx, tx, token, counterID)
		if err != nil {
			return err
		}
		out = &c
		return nil
	})
	return out, err
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return domain.ErrStoreUnavailable.WithCause(err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) q(query string) string {
	return s.dialect.rebind(query)
}

func (s *Store) requireAccount(ctx context.Context, tx *sql.Tx, token string) error {
	var one int
	err := tx.QueryRowContext(ctx, s.q(`SELECT 1 FROM accounts WHERE token = ?`), token).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrAccountNotFound
	}
	return err
}

func (s *Store) listCounters(ctx context.Context, tx *sql.Tx, token string) ([]domain.Counter, error) {
	rows, err := tx.QueryContext(ctx,
		s.q(`SELECT id, name, created_at FROM counters WHERE account_token = ? ORDER BY seq`), token)
	if err != nil {
		return nil, err
	}
	out := []domain.Counter{}
	index := make(map[string]int)
	for rows.Next() {
		var (
			c       domain.Counter
			created int64
		)
		if err := rows.Scan(&c.ID, &c.Name, &created); err != nil {
			rows.Close()
			return nil, err
		}
		c.CreatedAt = fromNanos(created)
		c.Entries = []domain.Entry{}
		index[c.ID] = len(out)
		out = append(out, c)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = tx.QueryContext(ctx,
		s.q(`SELECT counter_id, day, count FROM entries WHERE account_token = ? ORDER BY counter_id, day`), token)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id string
		e, err := scanEntry(rows, &id)
		if err != nil {
			rows.Close()
			return nil, err
		}
		if i, ok := index[id]; ok {
			out[i].Entries = append(out[i].Entries, e)
		}
	}
	return out, closeRows(rows)
}

func (s *Store) entries(ctx context.Context, tx *sql.Tx, token, counterID string) ([]domain.Entry, error) {
	rows, err := tx.QueryContext(ctx,
		s.q(`SELECT counter_id, day, count FROM entries WHERE account_token = ? AND counter_id = ? ORDER BY day`),
		token, counterID)
	if err != nil {
		return nil, err
	}
	out := []domain.Entry{}
	for rows.Next() {
		var id string
		e, err := scanEntry(rows, &id)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, e)
	}
	return out, closeRows(rows)
}

func scanEntry(rows *sql.Rows, counterID *string) (domain.Entry, error) {
	var (
		e   domain.Entry
		day string
	)
	if err := rows.Scan(counterID, &day, &e.Count); err != nil {
		return e, err
	}
	d, err := domain.ParseDate(day)
	if err != nil {
		return e, fmt.Errorf("entry %s: %w", *counterID, err)
	}
	e.Date = d
	return e, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
