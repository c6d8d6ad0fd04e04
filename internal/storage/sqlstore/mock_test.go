package sqlstore

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/yndnr/tally-go/internal/core/domain"
	"github.com/yndnr/tally-go/internal/storage/txretry"
	"github.com/yndnr/tally-go/internal/telemetry/logger"
)

var (
	insertAccount = regexp.QuoteMeta(`INSERT INTO accounts (token, created_at) VALUES ($1, $2)`)
	selectAccount = regexp.QuoteMeta(`SELECT created_at FROM accounts WHERE token = $1`)
	bumpSeq       = regexp.QuoteMeta(`UPDATE accounts SET counter_seq = counter_seq + 1 WHERE token = $1 RETURNING counter_seq`)
	insertCounter = regexp.QuoteMeta(`INSERT INTO counters`)
	selectCounter = regexp.QuoteMeta(`SELECT name, created_at FROM counters WHERE account_token = $1 AND id = $2`)
	requireAcct   = regexp.QuoteMeta(`SELECT 1 FROM accounts WHERE token = $1`)
	upsertEntry   = regexp.QuoteMeta(`INSERT INTO entries`)
	selectEntries = regexp.QuoteMeta(`SELECT counter_id, day, count FROM entries WHERE account_token = $1 AND counter_id = $2`)
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock, *int) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	retries := 0
	s := New(db, Postgres, Options{
		Retry: txretry.Policy{
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			MaxDelay:    2 * time.Millisecond,
			OnRetry:     func(int, error) { retries++ },
		},
		Clock:  func() time.Time { return time.Unix(1700000000, 0) },
		Logger: logger.Slog(logger.NewNop()),
	})
	return s, mock, &retries
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateAccount_RetriesSerializationFailure(t *testing.T) {
	s, mock, retries := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(insertAccount).WithArgs("tok", sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgSerializationFailure})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec(insertAccount).WithArgs("tok", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	acct, err := s.CreateAccount(context.Background(), "tok")
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if acct.Token != "tok" || acct.Counters == nil {
		t.Errorf("account = %+v", acct)
	}
	if *retries != 1 {
		t.Errorf("retries = %d, want 1", *retries)
	}
	expectationsMet(t, mock)
}

func TestCreateAccount_ConflictBudgetExhausted(t *testing.T) {
	s, mock, retries := newMockStore(t)

	for i := 0; i < 3; i++ {
		mock.ExpectBegin()
		mock.ExpectExec(insertAccount).
			WillReturnError(&pgconn.PgError{Code: pgDeadlockDetected})
		mock.ExpectRollback()
	}

	_, err := s.CreateAccount(context.Background(), "tok")
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("error = %v, want StoreUnavailable", err)
	}
	if *retries != 2 {
		t.Errorf("retries = %d, want 2", *retries)
	}
	expectationsMet(t, mock)
}

func TestCreateAccount_Duplicate(t *testing.T) {
	s, mock, retries := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(insertAccount).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})
	mock.ExpectRollback()

	_, err := s.CreateAccount(context.Background(), "tok")
	if !errors.Is(err, domain.ErrDuplicateToken) {
		t.Errorf("error = %v, want DuplicateToken", err)
	}
	if *retries != 0 {
		t.Errorf("duplicate was retried %d times", *retries)
	}
	expectationsMet(t, mock)
}

func TestGetAccount_NotFound(t *testing.T) {
	s, mock, _ := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(selectAccount).WithArgs("nope").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	if _, err := s.GetAccount(context.Background(), "nope"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("error = %v, want AccountNotFound", err)
	}
	expectationsMet(t, mock)
}

func TestGetAccount_DriverError(t *testing.T) {
	s, mock, retries := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(selectAccount).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := s.GetAccount(context.Background(), "tok")
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("error = %v, want StoreUnavailable", err)
	}
	if *retries != 0 {
		t.Errorf("non-transient error retried %d times", *retries)
	}
	expectationsMet(t, mock)
}

func TestCreateCounter_Paths(t *testing.T) {
	tests := []struct {
		name   string
		expect func(sqlmock.Sqlmock)
		want   error
	}{
		{
			name: "created",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectQuery(bumpSeq).WithArgs("tok").
					WillReturnRows(sqlmock.NewRows([]string{"counter_seq"}).AddRow(int64(1)))
				m.ExpectExec(insertCounter).
					WithArgs("tok", "daily-visits", "Daily Visits", int64(1), sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 1))
				m.ExpectCommit()
			},
		},
		{
			name: "unknown account",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectQuery(bumpSeq).WillReturnError(sql.ErrNoRows)
				m.ExpectRollback()
			},
			want: domain.ErrAccountNotFound,
		},
		{
			name: "duplicate",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectQuery(bumpSeq).
					WillReturnRows(sqlmock.NewRows([]string{"counter_seq"}).AddRow(int64(2)))
				m.ExpectExec(insertCounter).
					WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})
				m.ExpectRollback()
			},
			want: domain.ErrDuplicateCounter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock, _ := newMockStore(t)
			tt.expect(mock)

			c, err := s.CreateCounter(context.Background(), "tok", "Daily Visits")
			if tt.want == nil {
				if err != nil {
					t.Fatalf("CreateCounter() error = %v", err)
				}
				if c.ID != "daily-visits" {
					t.Errorf("ID = %q", c.ID)
				}
			} else if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			expectationsMet(t, mock)
		})
	}
}

func TestCreateCounter_InvalidNameSkipsDatabase(t *testing.T) {
	s, mock, _ := newMockStore(t)

	if _, err := s.CreateCounter(context.Background(), "tok", " !! "); !errors.Is(err, domain.ErrInvalidName) {
		t.Errorf("error = %v, want InvalidName", err)
	}
	expectationsMet(t, mock)
}

func TestIncrement_Paths(t *testing.T) {
	day := domain.MustParseDate("2024-05-01")
	created := time.Unix(1700000000, 0).UnixNano()

	t.Run("bumps", func(t *testing.T) {
		s, mock, _ := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(selectCounter).WithArgs("tok", "hits").
			WillReturnRows(sqlmock.NewRows([]string{"name", "created_at"}).AddRow("Hits", created))
		mock.ExpectExec(upsertEntry).WithArgs("tok", "hits", "2024-05-01").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(selectEntries).WithArgs("tok", "hits").
			WillReturnRows(sqlmock.NewRows([]string{"counter_id", "day", "count"}).
				AddRow("hits", "2024-04-30", int64(2)).
				AddRow("hits", "2024-05-01", int64(7)))
		mock.ExpectCommit()

		c, err := s.Increment(context.Background(), "tok", "hits", day)
		if err != nil {
			t.Fatalf("Increment() error = %v", err)
		}
		if e, ok := c.EntryFor(day); !ok || e.Count != 7 {
			t.Errorf("entry = %+v, %v", e, ok)
		}
		if c.Total() != 9 || c.Name != "Hits" {
			t.Errorf("counter = %+v", c)
		}
		expectationsMet(t, mock)
	})

	t.Run("unknown counter", func(t *testing.T) {
		s, mock, _ := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(selectCounter).WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(requireAcct).WithArgs("tok").
			WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
		mock.ExpectRollback()

		if _, err := s.Increment(context.Background(), "tok", "nope", day); !errors.Is(err, domain.ErrCounterNotFound) {
			t.Errorf("error = %v, want CounterNotFound", err)
		}
		expectationsMet(t, mock)
	})

	t.Run("unknown account", func(t *testing.T) {
		s, mock, _ := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(selectCounter).WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(requireAcct).WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		if _, err := s.Increment(context.Background(), "nope", "hits", day); !errors.Is(err, domain.ErrAccountNotFound) {
			t.Errorf("error = %v, want AccountNotFound", err)
		}
		expectationsMet(t, mock)
	})

	t.Run("corrupt day", func(t *testing.T) {
		s, mock, _ := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(selectCounter).
			WillReturnRows(sqlmock.NewRows([]string{"name", "created_at"}).AddRow("Hits", created))
		mock.ExpectExec(upsertEntry).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(selectEntries).
			WillReturnRows(sqlmock.NewRows([]string{"counter_id", "day", "count"}).AddRow("hits", "yesterday", int64(1)))
		mock.ExpectRollback()

		if _, err := s.Increment(context.Background(), "tok", "hits", day); !errors.Is(err, domain.ErrStoreUnavailable) {
			t.Errorf("error = %v, want StoreUnavailable", err)
		}
		expectationsMet(t, mock)
	})
}

func TestCommitFailureIsRetriedWhenTransient(t *testing.T) {
	s, mock, retries := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(insertAccount).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(&pgconn.PgError{Code: pgSerializationFailure})
	mock.ExpectBegin()
	mock.ExpectExec(insertAccount).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if _, err := s.CreateAccount(context.Background(), "tok"); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if *retries != 1 {
		t.Errorf("retries = %d, want 1", *retries)
	}
	expectationsMet(t, mock)
}

func TestPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	s := New(db, Postgres, Options{Logger: logger.Slog(logger.NewNop())})

	mock.ExpectPing()
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	mock.ExpectPing().WillReturnError(errors.New("down"))
	if err := s.Ping(context.Background()); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("Ping() error = %v, want StoreUnavailable", err)
	}
}

func TestDialect_Rebind(t *testing.T) {
	q := `SELECT a FROM t WHERE x = ? AND y = ?`
	if got, want := Postgres.rebind(q), `SELECT a FROM t WHERE x = $1 AND y = $2`; got != want {
		t.Errorf("Postgres.rebind() = %q, want %q", got, want)
	}
	if got := SQLite.rebind(q); got != q {
		t.Errorf("SQLite.rebind() = %q", got)
	}
}

func TestDialect_Classify(t *testing.T) {
	tests := []struct {
		name      string
		d         *Dialect
		err       error
		retryable bool
		duplicate bool
	}{
		{"pg serialization", Postgres, &pgconn.PgError{Code: "40001"}, true, false},
		{"pg deadlock", Postgres, &pgconn.PgError{Code: "40P01"}, true, false},
		{"pg unique", Postgres, &pgconn.PgError{Code: "23505"}, false, true},
		{"pg other", Postgres, &pgconn.PgError{Code: "42P01"}, false, false},
		{"pg plain", Postgres, errors.New("boom"), false, false},
		{"sqlite busy", SQLite, sqlite3.Error{Code: sqlite3.ErrBusy}, true, false},
		{"sqlite locked", SQLite, sqlite3.Error{Code: sqlite3.ErrLocked}, true, false},
		{"sqlite pk", SQLite, sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}, false, true},
		{"sqlite fk", SQLite, sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}, false, false},
		{"nil", SQLite, nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.retryable(tt.err); got != tt.retryable {
				t.Errorf("retryable = %v, want %v", got, tt.retryable)
			}
			if got := tt.d.duplicate(tt.err); got != tt.duplicate {
				t.Errorf("duplicate = %v, want %v", got, tt.duplicate)
			}
		})
	}
}

func TestGooseLogger(t *testing.T) {
	var buf bytes.Buffer
	l := gooseLogger{logger: slog.New(slog.NewTextHandler(&buf, nil))}

	l.Printf("OK   %s (%s)\n", "00001_init.sql", "1ms")
	l.Fatalf("failed to migrate: %v", "boom")

	out := buf.String()
	if !strings.Contains(out, `msg="OK   00001_init.sql (1ms)"`) || !strings.Contains(out, "component=migrate") {
		t.Errorf("Printf output = %q", out)
	}
	if !strings.Contains(out, "level=ERROR") {
		t.Errorf("Fatalf output = %q", out)
	}
}
