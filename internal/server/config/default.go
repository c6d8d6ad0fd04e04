package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddress     = "127.0.0.1:5080"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultBackend          = "wal"
	DefaultDataDir          = "/var/lib/tally-server/data"
	DefaultWALSyncMode      = "batch"
	DefaultWALSyncInterval  = 100 * time.Millisecond
	DefaultSnapshotInterval = 30 * time.Second
	DefaultSnapshotKeep     = 3

	DefaultBadgerGCInterval  = 10 * time.Minute
	DefaultBadgerGCThreshold = 0.5

	DefaultRetryAttempts  = 8
	DefaultRetryBaseDelay = 5 * time.Millisecond
	DefaultRetryMaxDelay  = 250 * time.Millisecond

	DefaultTimezone = "UTC"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
	DefaultLogOutput = "stderr"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Address:      DefaultHTTPAddress,
				ReadTimeout:  DefaultReadTimeout,
				WriteTimeout: DefaultWriteTimeout,
				IdleTimeout:  DefaultIdleTimeout,
			},
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Storage: StorageSection{
			Backend: DefaultBackend,
			DataDir: DefaultDataDir,
			WAL: WALConfig{
				SyncMode:     DefaultWALSyncMode,
				SyncInterval: DefaultWALSyncInterval,
			},
			Snapshot: SnapshotConfig{
				Interval:       DefaultSnapshotInterval,
				RetentionCount: DefaultSnapshotKeep,
			},
			Badger: BadgerConfig{
				GCInterval:  DefaultBadgerGCInterval,
				GCThreshold: DefaultBadgerGCThreshold,
				SyncWrites:  true,
			},
			Retry: RetryConfig{
				MaxAttempts: DefaultRetryAttempts,
				BaseDelay:   DefaultRetryBaseDelay,
				MaxDelay:    DefaultRetryMaxDelay,
			},
		},
		Counter: CounterSection{
			Timezone: DefaultTimezone,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
			Output: DefaultLogOutput,
		},
	}
}
