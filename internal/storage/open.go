package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/yndnr/tally-go/internal/core/service"
	"github.com/yndnr/tally-go/internal/storage/badgerstore"
	"github.com/yndnr/tally-go/internal/storage/memory"
	"github.com/yndnr/tally-go/internal/storage/sqlstore"
	"github.com/yndnr/tally-go/internal/storage/txretry"
	"github.com/yndnr/tally-go/internal/storage/wal"
	"github.com/yndnr/tally-go/internal/telemetry/metric"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendWAL      = "wal"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Backends lists every accepted backend name.
var Backends = []string{BackendMemory, BackendWAL, BackendBadger, BackendPostgres, BackendSQLite}

// Backend is an opened account store.
type Backend interface {
	service.AccountStore

	// Ping reports whether the store can serve requests.
	Ping(ctx context.Context) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend string
	DataDir string

	// wal
	WALSyncMode         string
	WALSyncInterval     time.Duration
	SnapshotInterval    time.Duration
	SnapshotRetention   int
	EncryptionKey       []byte
	EncryptionAlgorithm string
	Uploader            Uploader

	// badger
	Badger badgerstore.Options

	// postgres, sqlite
	DSN          string
	MaxOpenConns int

	Retry   txretry.Policy
	Clock   func() time.Time
	Logger  *slog.Logger
	Metrics *metric.Registry
}

// Open constructs the backend named by opts.Backend. The wal backend is
// recovered before Open returns.
func Open(ctx context.Context, opts Options) (Backend, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	retry := opts.Retry
	if retry.MaxAttempts == 0 {
		retry = txretry.DefaultPolicy()
	}
	if opts.Metrics != nil {
		backend := opts.Backend
		retry.OnRetry = func(int, error) { opts.Metrics.ObserveRetry(backend) }
	}

	switch opts.Backend {
	case BackendMemory:
		return memory.New(memory.WithClock(opts.Clock)), nil

	case BackendWAL, "":
		cfg := DefaultEngineConfig(opts.DataDir)
		if opts.WALSyncMode != "" {
			cfg.WAL.SyncMode = wal.SyncMode(opts.WALSyncMode)
		}
		if opts.WALSyncInterval > 0 {
			cfg.WAL.SyncInterval = opts.WALSyncInterval
		}
		if opts.SnapshotInterval > 0 {
			cfg.SnapshotInterval = opts.SnapshotInterval
		}
		if opts.SnapshotRetention > 0 {
			cfg.Snapshot.RetentionCount = opts.SnapshotRetention
		}
		cfg.EncryptionKey = opts.EncryptionKey
		cfg.EncryptionAlgorithm = opts.EncryptionAlgorithm
		cfg.Uploader = opts.Uploader
		cfg.Clock = opts.Clock
		cfg.Logger = opts.Logger

		eng, err := NewEngine(cfg)
		if err != nil {
			return nil, err
		}
		if err := eng.Recover(ctx); err != nil {
			_ = eng.Close()
			return nil, err
		}
		return eng, nil

	case BackendBadger:
		bopts := opts.Badger
		if bopts.Dir == "" {
			bopts.Dir = filepath.Join(opts.DataDir, "badger")
		}
		bopts.Retry = retry
		bopts.Clock = opts.Clock
		bopts.Logger = opts.Logger
		if opts.Metrics != nil {
			bopts.Registerer = opts.Metrics.Registerer()
		}
		return badgerstore.Open(bopts)

	case BackendPostgres, BackendSQLite:
		dialect := sqlstore.Postgres
		if opts.Backend == BackendSQLite {
			dialect = sqlstore.SQLite
		}
		dsn := opts.DSN
		if dsn == "" && dialect == sqlstore.SQLite {
			dsn = "file:" + filepath.Join(opts.DataDir, "tally.db") + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
		}
		return sqlstore.Open(ctx, sqlstore.Options{
			Dialect:      dialect,
			DSN:          dsn,
			MaxOpenConns: opts.MaxOpenConns,
			Retry:        retry,
			Clock:        opts.Clock,
			Logger:       opts.Logger,
		})

	default:
		return nil, fmt.Errorf("storage: unknown backend %q", opts.Backend)
	}
}
