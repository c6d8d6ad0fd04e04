package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/yndnr/tally-go/internal/core/service"
	"github.com/yndnr/tally-go/internal/infra/buildinfo"
	"github.com/yndnr/tally-go/internal/infra/certreload"
	"github.com/yndnr/tally-go/internal/infra/confloader"
	"github.com/yndnr/tally-go/internal/infra/objstore"
	"github.com/yndnr/tally-go/internal/infra/shutdown"
	"github.com/yndnr/tally-go/internal/server/config"
	"github.com/yndnr/tally-go/internal/server/httpserver"
	"github.com/yndnr/tally-go/internal/storage"
	"github.com/yndnr/tally-go/internal/storage/badgerstore"
	"github.com/yndnr/tally-go/internal/storage/txretry"
	"github.com/yndnr/tally-go/internal/telemetry/logger"
	"github.com/yndnr/tally-go/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("tally-server " + buildinfo.Get().String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, logOut, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slogLogger := logger.Slog(log)

	info := buildinfo.Get()
	log.Info("starting tally-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile,
		"backend", cfg.Storage.Backend)

	shutdownHandler := shutdown.NewHandler(cfg.Server.ShutdownTimeout).WithLogger(slogLogger)
	if logOut != nil {
		// Registered first so it runs last.
		shutdownHandler.OnShutdown("log file", func(context.Context) error {
			return logOut.Close()
		})
	}

	// abort runs the hooks registered so far.
	abort := func(err error) error {
		_ = shutdownHandler.Shutdown()
		return err
	}

	loc, err := cfg.Counter.Location()
	if err != nil {
		return abort(err)
	}

	ctx := context.Background()
	reg := metric.NewRegistry()

	opts, err := storageOptions(ctx, cfg, slogLogger, reg)
	if err != nil {
		return abort(err)
	}
	backend, err := storage.Open(ctx, opts)
	if err != nil {
		return abort(fmt.Errorf("open storage: %w", err))
	}
	shutdownHandler.OnShutdown("storage", func(context.Context) error {
		return backend.Close()
	})
	if counter, ok := backend.(metric.AccountCounter); ok {
		reg.Registerer().MustRegister(metric.NewCollector(counter))
	}

	svc := service.NewAccountService(backend,
		service.WithLocation(loc),
		service.WithRecorder(reg))

	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Service:     svc,
		Backend:     backend,
		Metrics:     reg,
		Logger:      slogLogger,
		EnableAudit: true,
	})
	httpCfg := httpserver.Config{
		Address:      cfg.Server.HTTP.Address,
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
	}
	if cfg.Server.HTTP.TLSCertFile != "" {
		certs, err := certreload.New(cfg.Server.HTTP.TLSCertFile, cfg.Server.HTTP.TLSKeyFile,
			certreload.WithLogger(slogLogger))
		if err != nil {
			return abort(err)
		}
		watchCtx, stopWatch := context.WithCancel(ctx)
		go func() {
			if err := certs.Watch(watchCtx); err != nil {
				log.Warn("certificate watcher stopped", "error", err)
			}
		}()
		shutdownHandler.OnShutdown("certificate watcher", func(context.Context) error {
			stopWatch()
			return nil
		})
		httpCfg.TLSConfig = certs.TLSConfig()
	}
	httpServer := httpserver.New(httpCfg, router)
	shutdownHandler.OnShutdown("http server", httpServer.Shutdown)

	if *configFile != "" {
		if stop, err := watchLogLevel(*configFile, slogLogger); err != nil {
			log.Warn("config watcher disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown("config watcher", func(context.Context) error {
				return stop()
			})
		}
	}

	sigCtx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	waitCtx, serveFailed := context.WithCancelCause(sigCtx)
	defer serveFailed(nil)

	go func() {
		log.Info("HTTP server listening",
			"addr", cfg.Server.HTTP.Address,
			"tls", httpServer.TLSEnabled())
		if err := httpServer.ListenAndServe(); err != nil {
			log.Error("HTTP server error", "error", err)
			serveFailed(err)
		}
	}()

	log.Info("server started, press Ctrl+C to stop")
	shutdownErr := shutdownHandler.WaitContext(waitCtx)
	if cause := context.Cause(waitCtx); !errors.Is(cause, context.Canceled) {
		return errors.Join(fmt.Errorf("http server: %w", cause), shutdownErr)
	}
	if shutdownErr != nil {
		log.Error("shutdown error", "error", shutdownErr)
		return shutdownErr
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig layers defaults, the optional file and TALLY_ environment
// variables, then verifies the result.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	var opts []confloader.Option
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger builds the process logger. The returned closer is non-nil when
// output goes to a file.
func initLogger(cfg *config.ServerConfig) (logger.Logger, io.Closer, error) {
	var (
		out    io.Writer
		closer io.Closer
	)
	switch cfg.Log.Output {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Log.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Output:    out,
		AddSource: cfg.Log.AddSource,
	})
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, nil, err
	}

	logger.SetDefault(log)
	slog.SetDefault(logger.Slog(log))
	return log, closer, nil
}

// storageOptions translates the storage section into storage.Options.
func storageOptions(ctx context.Context, cfg *config.ServerConfig, log *slog.Logger, reg *metric.Registry) (storage.Options, error) {
	sc := cfg.Storage

	key, err := sc.Encryption.KeyBytes()
	if err != nil {
		return storage.Options{}, err
	}

	retry := txretry.DefaultPolicy()
	if sc.Retry.MaxAttempts > 0 {
		retry.MaxAttempts = sc.Retry.MaxAttempts
	}
	if sc.Retry.BaseDelay > 0 {
		retry.BaseDelay = sc.Retry.BaseDelay
	}
	if sc.Retry.MaxDelay > 0 {
		retry.MaxDelay = sc.Retry.MaxDelay
	}

	badgerOpts := badgerstore.DefaultOptions("")
	if sc.Badger.GCInterval > 0 {
		badgerOpts.GCInterval = sc.Badger.GCInterval
	}
	if sc.Badger.GCThreshold > 0 {
		badgerOpts.GCThreshold = sc.Badger.GCThreshold
	}
	if sc.Badger.CacheSize > 0 {
		badgerOpts.CacheSize = sc.Badger.CacheSize
	}
	badgerOpts.SyncWrites = sc.Badger.SyncWrites

	opts := storage.Options{
		Backend:             sc.Backend,
		DataDir:             sc.DataDir,
		WALSyncMode:         sc.WAL.SyncMode,
		WALSyncInterval:     sc.WAL.SyncInterval,
		SnapshotInterval:    sc.Snapshot.Interval,
		SnapshotRetention:   sc.Snapshot.RetentionCount,
		EncryptionKey:       key,
		EncryptionAlgorithm: sc.Encryption.Algorithm,
		Badger:              badgerOpts,
		DSN:                 sc.SQL.DSN,
		MaxOpenConns:        sc.SQL.MaxOpenConns,
		Retry:               retry,
		Logger:              log,
		Metrics:             reg,
	}

	if sc.Backup.Enabled {
		up, err := objstore.New(ctx, objstore.Config{
			Endpoint:     sc.Backup.Endpoint,
			Region:       sc.Backup.Region,
			Bucket:       sc.Backup.Bucket,
			Prefix:       sc.Backup.Prefix,
			AccessKey:    sc.Backup.AccessKey,
			SecretKey:    sc.Backup.SecretKey,
			UsePathStyle: sc.Backup.UsePathStyle,
		}, log)
		if err != nil {
			return storage.Options{}, fmt.Errorf("snapshot backup: %w", err)
		}
		opts.Uploader = up
	}
	return opts, nil
}

// watchLogLevel applies log.level from the config file whenever it changes.
func watchLogLevel(path string, log *slog.Logger) (stop func() error, err error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Stop()
		return nil, err
	}
	w.OnChange(func(changed string) {
		applyLogLevel(changed, log)
	})
	w.StartAsync()
	return w.Stop, nil
}

func applyLogLevel(path string, log *slog.Logger) {
	l := confloader.NewLoader()
	if err := l.LoadFile(path); err != nil {
		log.Warn("config reload failed", "path", path, "error", err)
		return
	}
	level := l.GetString("log.level")
	if level == "" || level == logger.GetLevel() {
		return
	}
	logger.SetLevel(level)
	log.Info("log level changed", "level", logger.GetLevel())
}
