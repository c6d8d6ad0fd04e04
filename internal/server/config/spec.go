package config

import (
	"encoding/hex"
	"fmt"
	"time"
)

// ServerConfig is the root configuration for tally-server.
type ServerConfig struct {
	Server  ServerSection  `koanf:"server" yaml:"server"`
	Storage StorageSection `koanf:"storage" yaml:"storage"`
	Counter CounterSection `koanf:"counter" yaml:"counter"`
	Log     LogSection     `koanf:"log" yaml:"log"`
}

// ServerSection configures the listeners.
type ServerSection struct {
	HTTP            HTTPConfig    `koanf:"http" yaml:"http"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// HTTPConfig configures the HTTP API.
type HTTPConfig struct {
	Address      string        `koanf:"address" yaml:"address"`
	ReadTimeout  time.Duration `koanf:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" yaml:"idle_timeout"`
	TLSCertFile  string        `koanf:"tls_cert_file" yaml:"tls_cert_file"`
	TLSKeyFile   string        `koanf:"tls_key_file" yaml:"tls_key_file"`
}

// StorageSection selects and tunes the account store.
type StorageSection struct {
	// Backend is one of memory, wal, badger, postgres, sqlite.
	Backend string `koanf:"backend" yaml:"backend"`
	DataDir string `koanf:"data_dir" yaml:"data_dir"`

	WAL        WALConfig        `koanf:"wal" yaml:"wal"`
	Snapshot   SnapshotConfig   `koanf:"snapshot" yaml:"snapshot"`
	Encryption EncryptionConfig `koanf:"encryption" yaml:"encryption"`
	Badger     BadgerConfig     `koanf:"badger" yaml:"badger"`
	SQL        SQLConfig        `koanf:"sql" yaml:"sql"`
	Retry      RetryConfig      `koanf:"retry" yaml:"retry"`
	Backup     BackupConfig     `koanf:"backup" yaml:"backup"`
}

// WALConfig configures the write-ahead log of the wal backend.
type WALConfig struct {
	// SyncMode is sync (fsync per write) or batch.
	SyncMode     string        `koanf:"sync_mode" yaml:"sync_mode"`
	SyncInterval time.Duration `koanf:"sync_interval" yaml:"sync_interval"`
}

// SnapshotConfig configures periodic snapshots of the wal backend.
type SnapshotConfig struct {
	Interval       time.Duration `koanf:"interval" yaml:"interval"`
	RetentionCount int           `koanf:"retention_count" yaml:"retention_count"`
}

// EncryptionConfig enables at-rest encryption of the log and snapshots.
type EncryptionConfig struct {
	// Key is hex encoded, at least 16 bytes once decoded.
	Key       string `koanf:"key" yaml:"key"`
	Algorithm string `koanf:"algorithm" yaml:"algorithm"`
}

// KeyBytes decodes Key. An empty key yields nil.
func (e EncryptionConfig) KeyBytes() ([]byte, error) {
	if e.Key == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(e.Key)
	if err != nil {
		return nil, fmt.Errorf("storage.encryption.key: %w", err)
	}
	return b, nil
}

// BadgerConfig tunes the badger backend.
type BadgerConfig struct {
	GCInterval  time.Duration `koanf:"gc_interval" yaml:"gc_interval"`
	GCThreshold float64       `koanf:"gc_threshold" yaml:"gc_threshold"`
	CacheSize   int64         `koanf:"cache_size" yaml:"cache_size"`
	SyncWrites  bool          `koanf:"sync_writes" yaml:"sync_writes"`
}

// SQLConfig configures the postgres and sqlite backends.
type SQLConfig struct {
	DSN          string `koanf:"dsn" yaml:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns" yaml:"max_open_conns"`
}

// RetryConfig bounds retries of conflicting transactions.
type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts" yaml:"max_attempts"`
	BaseDelay   time.Duration `koanf:"base_delay" yaml:"base_delay"`
	MaxDelay    time.Duration `koanf:"max_delay" yaml:"max_delay"`
}

// BackupConfig uploads every snapshot to an S3-compatible bucket.
type BackupConfig struct {
	Enabled      bool   `koanf:"enabled" yaml:"enabled"`
	Endpoint     string `koanf:"endpoint" yaml:"endpoint"`
	Region       string `koanf:"region" yaml:"region"`
	Bucket       string `koanf:"bucket" yaml:"bucket"`
	Prefix       string `koanf:"prefix" yaml:"prefix"`
	AccessKey    string `koanf:"access_key" yaml:"access_key"`
	SecretKey    string `koanf:"secret_key" yaml:"secret_key"`
	UsePathStyle bool   `koanf:"use_path_style" yaml:"use_path_style"`
}

// CounterSection configures counter semantics.
type CounterSection struct {
	// Timezone decides which calendar day "today" is. IANA name.
	Timezone string `koanf:"timezone" yaml:"timezone"`
}

// Location loads Timezone.
func (c CounterSection) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("counter.timezone: %w", err)
	}
	return loc, nil
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
	// Output is stdout, stderr or a file path.
	Output    string `koanf:"output" yaml:"output"`
	AddSource bool   `koanf:"add_source" yaml:"add_source"`
}
