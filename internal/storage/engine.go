package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/tally-go/internal/core/domain"
	"github.com/yndnr/tally-go/internal/storage/memory"
	"github.com/yndnr/tally-go/internal/storage/snapshot"
	"github.com/yndnr/tally-go/internal/storage/wal"
	"github.com/yndnr/tally-go/pkg/crypto/adaptive"
)

// Default configuration values.
const (
	DefaultSnapshotInterval = 30 * time.Second
	WALDirName              = "wal"
	SnapshotDirName         = "snapshots"
)

// Uploader copies a finished snapshot file somewhere off the host.
// objstore.Uploader implements it.
type Uploader interface {
	Upload(ctx context.Context, path, name string) error
}

// EngineConfig configures the durable engine.
type EngineConfig struct {
	// DataDir holds the wal/ and snapshots/ subdirectories.
	DataDir string

	WAL      wal.Config
	Snapshot snapshot.Config

	// SnapshotInterval between automatic snapshots. Zero disables them.
	SnapshotInterval time.Duration

	// EncryptionKey, when set, encrypts WAL records and snapshot bodies
	// with keys derived from it.
	EncryptionKey       []byte
	EncryptionAlgorithm string

	// Uploader receives each snapshot after it is written. Optional.
	Uploader Uploader

	Clock  func() time.Time
	Logger *slog.Logger
}

// DefaultEngineConfig returns the default configuration rooted at dataDir.
func DefaultEngineConfig(dataDir string) EngineConfig {
	return EngineConfig{
		DataDir:          dataDir,
		WAL:              wal.DefaultConfig(filepath.Join(dataDir, WALDirName)),
		Snapshot:         snapshot.DefaultConfig(filepath.Join(dataDir, SnapshotDirName)),
		SnapshotInterval: DefaultSnapshotInterval,
	}
}

// Engine is the durable account store: the memory store for reads, a
// write-ahead log for every mutation and periodic snapshots.
//
// A mutation is validated against memory, appended to the log and only
// then applied to memory, all under mu held shared. Snapshots take mu
// exclusively, so the offset they record matches the state they dump.
//
// Account creation claims its token in creating for the length of the
// append; counter creation holds only its own account's lock.
type Engine struct {
	cfg       EngineConfig
	store     *memory.Store
	wal       *wal.Writer
	snapshots *snapshot.Manager
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.RWMutex
	creating sync.Map

	mutations     atomic.Uint64
	snapshottedAt atomic.Uint64
	lastSnapshot  atomic.Pointer[snapshot.Info]

	snapMu    sync.Mutex
	recovered atomic.Bool
	closed    atomic.Bool
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewEngine opens the log and snapshot directories. Call Recover before
// serving requests.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("storage: data_dir is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.WAL.Dir == "" {
		cfg.WAL.Dir = filepath.Join(cfg.DataDir, WALDirName)
	}
	if cfg.Snapshot.Dir == "" {
		cfg.Snapshot.Dir = filepath.Join(cfg.DataDir, SnapshotDirName)
	}

	walCipher, err := adaptive.ForPurpose(cfg.EncryptionKey, adaptive.PurposeWAL, cfg.EncryptionAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("storage: wal cipher: %w", err)
	}
	snapCipher, err := adaptive.ForPurpose(cfg.EncryptionKey, adaptive.PurposeSnapshot, cfg.EncryptionAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("storage: snapshot cipher: %w", err)
	}
	cfg.WAL.Cipher = walCipher
	cfg.Snapshot.Cipher = snapCipher

	snapMgr, err := snapshot.NewManager(cfg.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("storage: create snapshot manager: %w", err)
	}
	walWriter, err := wal.NewWriter(cfg.WAL)
	if err != nil {
		return nil, fmt.Errorf("storage: create wal writer: %w", err)
	}

	return &Engine{
		cfg:       cfg,
		store:     memory.New(memory.WithClock(cfg.Clock)),
		wal:       walWriter,
		snapshots: snapMgr,
		logger:    cfg.Logger.With("component", "storage"),
		now:       cfg.Clock,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}, nil
}

// Recover loads the newest snapshot, replays the log written after it and
// starts the snapshot loop.
func (e *Engine) Recover(ctx context.Context) error {
	if e.recovered.Load() {
		return nil
	}
	start := time.Now()

	// 1. Newest valid snapshot
	accounts, info, err := e.snapshots.Load()
	switch {
	case errors.Is(err, snapshot.ErrNoSnapshots):
		e.logger.Info("no snapshot found, starting empty")
	case err != nil:
		return fmt.Errorf("storage: load snapshot: %w", err)
	}

	var fromOffset uint64
	if info != nil {
		for _, a := range accounts {
			if err := e.store.InsertAccount(*a); err != nil {
				return fmt.Errorf("storage: restore account %s: %w", logToken(a.Token), err)
			}
		}
		fromOffset = info.WALOffset
		e.lastSnapshot.Store(info)
		e.logger.Info("snapshot loaded",
			"id", info.ID,
			"accounts", info.AccountCount,
			"wal_offset", info.WALOffset)
	}

	// 2. Log records after the snapshot
	applied, err := e.replay(ctx, fromOffset)
	if err != nil {
		return fmt.Errorf("storage: replay wal: %w", err)
	}

	e.recovered.Store(true)
	e.logger.Info("recovery completed",
		"accounts", e.store.Count(),
		"wal_entries_applied", applied,
		"elapsed", time.Since(start))

	// 3. Periodic snapshots
	if e.cfg.SnapshotInterval > 0 {
		go e.snapshotLoop()
	} else {
		close(e.doneCh)
	}
	return nil
}

func (e *Engine) replay(ctx context.Context, fromOffset uint64) (int, error) {
	r, err := wal.NewReader(e.cfg.WAL.Dir, e.cfg.WAL.Cipher)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	r.Seek(fromOffset)

	applied := 0
	for {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		entry, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return applied, err
		}
		if err := e.apply(entry); err != nil {
			e.logger.Warn("skipping wal entry",
				"op", entry.Op.String(),
				"token", entry.Token,
				"error", err)
			continue
		}
		applied++
	}

	if n := r.Skipped(); n > 0 {
		e.logger.Warn("wal segments ended on a damaged frame", "segments", n)
	}
	return applied, nil
}

// apply replays one record. Records that would duplicate state already
// present are ignored.
func (e *Engine) apply(entry *wal.Entry) error {
	switch entry.Op {
	case wal.OpCreateAccount:
		err := e.store.InsertAccount(domain.Account{Token: entry.Token, CreatedAt: entry.CreatedAt})
		if errors.Is(err, domain.ErrDuplicateToken) {
			return nil
		}
		return err
	case wal.OpCreateCounter:
		if entry.Counter == nil {
			return wal.ErrCorruptedEntry
		}
		err := e.store.InsertCounter(entry.Token, *entry.Counter)
		if errors.Is(err, domain.ErrDuplicateCounter) {
			return nil
		}
		return err
	case wal.OpIncrement:
		_, err := e.store.Increment(context.Background(), entry.Token, entry.CounterID, entry.Date)
		return err
	default:
		return wal.ErrInvalidEntryType
	}
}

// ============================================================================
// AccountStore
// ============================================================================

// CreateAccount registers an empty account under token.
func (e *Engine) CreateAccount(ctx context.Context, token string) (*domain.Account, error) {
	if token == "" {
		return nil, domain.ErrInvalidArgument.WithDetails("token is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, busy := e.creating.LoadOrStore(token, struct{}{}); busy {
		return nil, domain.ErrDuplicateToken
	}
	defer e.creating.Delete(token)

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.store.HasAccount(token) {
		return nil, domain.ErrDuplicateToken
	}

	acct := domain.Account{Token: token, CreatedAt: e.now().UTC()}
	if err := e.append(wal.NewCreateAccountEntry(token, acct.CreatedAt)); err != nil {
		return nil, err
	}
	if err := e.store.InsertAccount(acct); err != nil {
		return nil, err
	}
	return acct.Clone(), nil
}

// GetAccount returns the account with all counters.
func (e *Engine) GetAccount(ctx context.Context, token string) (*domain.Account, error) {
	return e.store.GetAccount(ctx, token)
}

// CreateCounter adds a counter derived from name.
func (e *Engine) CreateCounter(ctx context.Context, token, name string) (*domain.Counter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.store.HasAccount(token) {
		return nil, domain.ErrAccountNotFound
	}
	c, err := domain.NewCounter(name, e.now().UTC())
	if err != nil {
		return nil, err
	}

	err = e.store.InsertCounterWith(token, c, func() error {
		return e.append(wal.NewCreateCounterEntry(token, &c))
	})
	if err != nil {
		return nil, err
	}
	out := c.Clone()
	return &out, nil
}

// ListCounters returns the account's counters in creation order.
func (e *Engine) ListCounters(ctx context.Context, token string) ([]domain.Counter, error) {
	return e.store.ListCounters(ctx, token)
}

// Increment logs and applies one increment.
func (e *Engine) Increment(ctx context.Context, token, counterID string, date domain.Date) (*domain.Counter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if err := e.store.CheckCounter(token, counterID); err != nil {
		return nil, err
	}
	if err := e.append(wal.NewIncrementEntry(token, counterID, date)); err != nil {
		return nil, err
	}
	return e.store.Increment(ctx, token, counterID, date)
}

func (e *Engine) append(entry *wal.Entry) error {
	if e.closed.Load() {
		return domain.ErrStoreUnavailable.WithDetails("storage is closed")
	}
	if err := e.wal.Append(entry); err != nil {
		return domain.ErrStoreUnavailable.WithCause(fmt.Errorf("write wal: %w", err))
	}
	e.mutations.Add(1)
	return nil
}

// ============================================================================
// Snapshots
// ============================================================================

// TriggerSnapshot writes a snapshot of the current state, prunes old
// snapshots, compacts the log and hands the file to the uploader.
func (e *Engine) TriggerSnapshot(ctx context.Context) (*snapshot.Info, error) {
	e.snapMu.Lock()
	defer e.snapMu.Unlock()

	// 1. Consistent cut: no mutation is between log and memory
	e.mu.Lock()
	if err := e.wal.Flush(); err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("storage: flush wal: %w", err)
	}
	offset := e.wal.CurrentOffset()
	accounts := e.store.All()
	mutations := e.mutations.Load()
	e.mu.Unlock()

	// 2. Write it
	info, err := e.snapshots.Create(accounts, offset)
	if err != nil {
		return nil, fmt.Errorf("storage: create snapshot: %w", err)
	}
	e.snapshottedAt.Store(mutations)
	e.lastSnapshot.Store(info)
	e.logger.Info("snapshot created",
		"id", info.ID,
		"accounts", info.AccountCount,
		"counters", info.CounterCount,
		"wal_offset", info.WALOffset,
		"size_bytes", info.Size)

	// 3. Retention
	if n, err := e.snapshots.Prune(); err != nil {
		e.logger.Warn("snapshot prune failed", "error", err)
	} else if n > 0 {
		e.logger.Debug("snapshots pruned", "removed", n)
	}
	if n, err := wal.NewCompactor(e.cfg.WAL.Dir).Compact(info.WALOffset); err != nil {
		e.logger.Warn("wal compaction failed", "error", err)
	} else if n > 0 {
		e.logger.Debug("wal segments compacted", "removed", n)
	}

	// 4. Offsite copy
	if e.cfg.Uploader != nil {
		if err := e.cfg.Uploader.Upload(ctx, info.Path, info.ID+".snap"); err != nil {
			e.logger.Warn("snapshot upload failed", "id", info.ID, "error", err)
		}
	}
	return info, nil
}

// LastSnapshot returns the newest snapshot written or loaded, if any.
func (e *Engine) LastSnapshot() *snapshot.Info {
	return e.lastSnapshot.Load()
}

func (e *Engine) dirty() bool {
	return e.mutations.Load() != e.snapshottedAt.Load()
}

func (e *Engine) snapshotLoop() {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.cfg.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !e.dirty() {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if _, err := e.TriggerSnapshot(ctx); err != nil {
				e.logger.Error("periodic snapshot failed", "error", err)
			}
			cancel()
		case <-e.stopCh:
			return
		}
	}
}

// ============================================================================
// Lifecycle
// ============================================================================

// Count returns the number of accounts.
func (e *Engine) Count() int {
	return e.store.Count()
}

// Ready reports whether recovery has completed.
func (e *Engine) Ready() bool {
	return e.recovered.Load() && !e.closed.Load()
}

// Ping fails until recovery has completed and after Close.
func (e *Engine) Ping(context.Context) error {
	if !e.Ready() {
		return domain.ErrStoreUnavailable.WithDetails("storage is not ready")
	}
	return nil
}

// Close stops the snapshot loop, writes a final snapshot when state
// changed, and closes the log.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(e.stopCh)
	if e.recovered.Load() {
		<-e.doneCh
	}

	var errs []error
	if e.recovered.Load() && e.dirty() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		if _, err := e.TriggerSnapshot(ctx); err != nil {
			errs = append(errs, err)
		}
		cancel()
	}
	if err := e.wal.Close(); err != nil {
		errs = append(errs, fmt.Errorf("storage: close wal: %w", err))
	}
	e.logger.Info("storage engine closed")
	return errors.Join(errs...)
}

// logToken renders a token for error messages without revealing it.
func logToken(token string) string {
	if len(token) <= 8 {
		return "…"
	}
	return token[:8] + "…"
}
