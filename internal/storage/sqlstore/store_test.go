package sqlstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/yndnr/tally-go/internal/core/service"
	"github.com/yndnr/tally-go/internal/storage/storetest"
	"github.com/yndnr/tally-go/internal/telemetry/logger"
)

func sqliteOptions(path string) Options {
	return Options{
		Dialect: SQLite,
		DSN:     "file:" + path + "?_busy_timeout=5000&_foreign_keys=on",
		Logger:  logger.Slog(logger.NewNop()),
	}
}

func openSQLite(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(context.Background(), sqliteOptions(path))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLite_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) service.AccountStore {
		return openSQLite(t, filepath.Join(t.TempDir(), "tally.db"))
	})
}

func TestSQLite_Durable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tally.db")
	storetest.RunDurable(t,
		func(t *testing.T) service.AccountStore { return openSQLite(t, path) },
		func(t *testing.T, s service.AccountStore) service.AccountStore {
			if err := s.(*Store).Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}
			return openSQLite(t, path)
		})
}

func TestSQLite_MigrateTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tally.db")
	s := openSQLite(t, path)
	if err := Migrate(context.Background(), s.DB(), SQLite, logger.Slog(logger.NewNop())); err != nil {
		t.Errorf("second Migrate() error = %v", err)
	}
}

func TestOpen_Validation(t *testing.T) {
	ctx := context.Background()
	if _, err := Open(ctx, Options{DSN: "x"}); err == nil {
		t.Error("Open() without dialect succeeded")
	}
	if _, err := Open(ctx, Options{Dialect: SQLite}); err == nil {
		t.Error("Open() without dsn succeeded")
	}
}

// TestPostgres_Conformance runs against a real server when
// TALLY_TEST_POSTGRES_DSN is set. Tables are emptied before each case.
func TestPostgres_Conformance(t *testing.T) {
	dsn := os.Getenv("TALLY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TALLY_TEST_POSTGRES_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) service.AccountStore {
		ctx := context.Background()
		s, err := Open(ctx, Options{Dialect: Postgres, DSN: dsn, Logger: logger.Slog(logger.NewNop())})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		if _, err := s.DB().ExecContext(ctx, `TRUNCATE entries, counters, accounts`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return s
	})
}
