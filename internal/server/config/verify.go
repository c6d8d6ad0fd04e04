package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"slices"

	"github.com/yndnr/tally-go/internal/telemetry/logger"
	"github.com/yndnr/tally-go/pkg/crypto/adaptive"
)

var backends = []string{"memory", "wal", "badger", "postgres", "sqlite"}

// Verify validates the configuration and reports every problem found.
// It creates the data directory for backends that keep files.
func Verify(cfg *ServerConfig) error {
	return errors.Join(
		verifyServer(&cfg.Server),
		verifyStorage(&cfg.Storage),
		verifyCounter(&cfg.Counter),
		verifyLog(&cfg.Log),
	)
}

func verifyServer(cfg *ServerSection) error {
	var errs []error
	if _, _, err := net.SplitHostPort(cfg.HTTP.Address); err != nil {
		errs = append(errs, fmt.Errorf("server.http.address: %w", err))
	}
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		errs = append(errs, errors.New("server.http: tls_cert_file and tls_key_file must be set together"))
	}
	for _, f := range []string{cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			errs = append(errs, fmt.Errorf("server.http: %w", err))
		}
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	return errors.Join(errs...)
}

func verifyStorage(cfg *StorageSection) error {
	var errs []error
	if !slices.Contains(backends, cfg.Backend) {
		errs = append(errs, fmt.Errorf("storage.backend %q: want one of %v", cfg.Backend, backends))
	}

	switch cfg.Backend {
	case "wal", "badger", "sqlite":
		if cfg.DataDir == "" && !(cfg.Backend == "sqlite" && cfg.SQL.DSN != "") {
			errs = append(errs, errors.New("storage.data_dir is required"))
		} else if cfg.DataDir != "" {
			if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
				errs = append(errs, fmt.Errorf("storage.data_dir: %w", err))
			}
		}
	case "postgres":
		if cfg.SQL.DSN == "" {
			errs = append(errs, errors.New("storage.sql.dsn is required for postgres"))
		}
	}

	if cfg.Backend == "wal" {
		if cfg.WAL.SyncMode != "sync" && cfg.WAL.SyncMode != "batch" {
			errs = append(errs, fmt.Errorf("storage.wal.sync_mode %q: want sync or batch", cfg.WAL.SyncMode))
		}
		if cfg.Snapshot.RetentionCount < 1 {
			errs = append(errs, errors.New("storage.snapshot.retention_count must be at least 1"))
		}
		if cfg.Snapshot.Interval < 0 {
			errs = append(errs, errors.New("storage.snapshot.interval must not be negative"))
		}
	}

	key, err := cfg.Encryption.KeyBytes()
	switch {
	case err != nil:
		errs = append(errs, err)
	case key != nil && len(key) < adaptive.MinMasterKeyLength:
		errs = append(errs, fmt.Errorf("storage.encryption.key: %d bytes, want at least %d",
			len(key), adaptive.MinMasterKeyLength))
	}
	if _, err := adaptive.ParseCipherType(cfg.Encryption.Algorithm); err != nil {
		errs = append(errs, fmt.Errorf("storage.encryption.algorithm: %w", err))
	}

	if cfg.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("storage.retry.max_attempts must be at least 1"))
	}
	if cfg.Retry.BaseDelay <= 0 || cfg.Retry.MaxDelay < cfg.Retry.BaseDelay {
		errs = append(errs, errors.New("storage.retry: want 0 < base_delay <= max_delay"))
	}

	if cfg.Backup.Enabled {
		if cfg.Backend != "wal" {
			errs = append(errs, errors.New("storage.backup requires the wal backend"))
		}
		if cfg.Backup.Bucket == "" {
			errs = append(errs, errors.New("storage.backup.bucket is required"))
		}
	}
	return errors.Join(errs...)
}

func verifyCounter(cfg *CounterSection) error {
	_, err := cfg.Location()
	return err
}

func verifyLog(cfg *LogSection) error {
	var errs []error
	if !logger.ValidLevel(cfg.Level) {
		errs = append(errs, fmt.Errorf("log.level %q is not a level", cfg.Level))
	}
	if cfg.Format != "json" && cfg.Format != "text" {
		errs = append(errs, fmt.Errorf("log.format %q: want json or text", cfg.Format))
	}
	return errors.Join(errs...)
}
