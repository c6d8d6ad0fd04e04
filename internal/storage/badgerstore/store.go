package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/tally-go/internal/core/domain"
	"github.com/yndnr/tally-go/internal/storage/txretry"
)

// Options configures the store.
type Options struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir      string
	InMemory bool

	// GCInterval between value log GC runs. Zero disables the loop.
	GCInterval  time.Duration
	GCThreshold float64

	CacheSize        int64
	ValueLogFileSize int64
	SyncWrites       bool

	Retry  txretry.Policy
	Clock  func() time.Time
	Logger *slog.Logger

	// Registerer receives the badger size and GC metrics. Optional.
	Registerer prometheus.Registerer
}

// DefaultOptions returns the default options for dir.
func DefaultOptions(dir string) Options {
	return Options{
		Dir:              dir,
		GCInterval:       10 * time.Minute,
		GCThreshold:      0.5,
		CacheSize:        64 << 20,
		ValueLogFileSize: 256 << 20,
		SyncWrites:       true,
		Retry:            txretry.DefaultPolicy(),
	}
}

// Store implements service.AccountStore on Badger.
type Store struct {
	db     *badger.DB
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	accounts   atomic.Int64
	lastGCTime atomic.Int64
	gcRuns     prometheus.Counter
	collectors []prometheus.Collector

	closed atomic.Bool
	stopCh chan struct{}
	doneCh chan struct{}
}

type accountRecord struct {
	CreatedAt  time.Time `json:"created_at"`
	CounterSeq uint64    `json:"counter_seq"`
}

type counterRecord struct {
	Seq uint64 `json:"seq"`
	domain.Counter
}

func accountKey(token string) []byte {
	return []byte("acct/" + token)
}

func counterPrefix(token string) []byte {
	return []byte("ctr/" + strconv.Itoa(len(token)) + ":" + token + "/")
}

func counterKey(token, id string) []byte {
	return append(counterPrefix(token), id...)
}

// Open opens (or creates) the database.
func Open(opts Options) (*Store, error) {
	def := DefaultOptions(opts.Dir)
	if opts.Dir == "" && !opts.InMemory {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if opts.GCThreshold <= 0 || opts.GCThreshold >= 1 {
		opts.GCThreshold = def.GCThreshold
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = def.CacheSize
	}
	if opts.ValueLogFileSize <= 0 {
		opts.ValueLogFileSize = def.ValueLogFileSize
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = def.Retry
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With("component", "badger")

	bopts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.Logger = &badgerLogger{logger: logger}
	bopts.BlockCacheSize = opts.CacheSize
	bopts.ValueLogFileSize = opts.ValueLogFileSize
	bopts.SyncWrites = opts.SyncWrites
	bopts.DetectConflicts = true

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	s := &Store{
		db:     db,
		opts:   opts,
		logger: logger,
		now:    opts.Clock,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	n, err := s.countAccounts()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("badger: count accounts: %w", err)
	}
	s.accounts.Store(int64(n))

	if opts.Registerer != nil {
		if err := s.registerMetrics(opts.Registerer); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	if opts.GCInterval > 0 && !opts.InMemory {
		go s.gcLoop(opts.GCInterval)
	} else {
		close(s.doneCh)
	}

	logger.Info("badger store opened",
		"dir", opts.Dir,
		"in_memory", opts.InMemory,
		"accounts", n,
		"gc_interval", opts.GCInterval)
	return s, nil
}

func (s *Store) countAccounts() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte("acct/")})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// ============================================================================
// AccountStore
// ============================================================================

// CreateAccount registers an empty account under token.
func (s *Store) CreateAccount(ctx context.Context, token string) (*domain.Account, error) {
	if token == "" {
		return nil, domain.ErrInvalidArgument.WithDetails("token is empty")
	}
	rec := accountRecord{CreatedAt: s.now().UTC()}
	val, err := json.Marshal(rec)
	if err != nil {
		return nil, domain.ErrInternal.WithCause(err)
	}

	err = s.update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(accountKey(token)); err == nil {
			return domain.ErrDuplicateToken
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(accountKey(token), val)
	})
	if err != nil {
		return nil, err
	}
	s.accounts.Add(1)
	return &domain.Account{Token: token, CreatedAt: rec.CreatedAt, Counters: []domain.Counter{}}, nil
}

// GetAccount returns the account and all its counters.
func (s *Store) GetAccount(ctx context.Context, token string) (*domain.Account, error) {
	var acct *domain.Account
	err := s.view(ctx, func(txn *badger.Txn) error {
		rec, err := getAccount(txn, token)
		if err != nil {
			return err
		}
		counters, err := listCounters(txn, token)
		if err != nil {
			return err
		}
		acct = &domain.Account{Token: token, CreatedAt: rec.CreatedAt, Counters: counters}
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

	err = s.update(ctx, func(txn *badger.Txn) error {
		rec, err := getAccount(txn, token)
		if err != nil {
			return err
		}
		key := counterKey(token, c.ID)
		if _, err := txn.Get(key); err == nil {
			return domain.ErrDuplicateCounter.WithDetails(c.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		rec.CounterSeq++
		if err := setJSON(txn, accountKey(token), rec); err != nil {
			return err
		}
		return setJSON(txn, key, counterRecord{Seq: rec.CounterSeq, Counter: c})
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCounters returns the account's counters in creation order.
func (s *Store) ListCounters(ctx context.Context, token string) ([]domain.Counter, error) {
	var out []domain.Counter
	err := s.view(ctx, func(txn *badger.Txn) error {
		if _, err := getAccount(txn, token); err != nil {
			return err
		}
		var err error
		out, err = listCounters(txn, token)
		return err
	})
	return out, err
}

// Increment bumps the counter's entry for date by one.
func (s *Store) Increment(ctx context.Context, token, counterID string, date domain.Date) (*domain.Counter, error) {
	var out domain.Counter
	err := s.update(ctx, func(txn *badger.Txn) error {
		key := counterKey(token, counterID)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			if _, err := getAccount(txn, token); err != nil {
				return err
			}
			return domain.ErrCounterNotFound
		}
		if err != nil {
			return err
		}

		var rec counterRecord
		if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &rec) }); err != nil {
			return err
		}
		rec.Record(date)
		if err := setJSON(txn, key, rec); err != nil {
			return err
		}
		out = rec.Counter.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Count returns the number of accounts.
func (s *Store) Count() int {
	return int(s.accounts.Load())
}

// Ping fails once the store is closed.
func (s *Store) Ping(context.Context) error {
	if s.closed.Load() || s.db.IsClosed() {
		return domain.ErrStoreUnavailable.WithDetails("badger is closed")
	}
	return nil
}

// Close stops the GC loop and closes the database.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stopCh)
	<-s.doneCh

	if s.opts.Registerer != nil {
		for _, c := range s.collectors {
			s.opts.Registerer.Unregister(c)
		}
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("badger: close db: %w", err)
	}
	s.logger.Info("badger store closed")
	return nil
}

// ============================================================================
// Transactions
// ============================================================================

// update runs fn in a read-write transaction. No lock is taken: writers
// that touched the same keys fail the commit with ErrConflict and are
// retried under the store's policy.
func (s *Store) update(ctx context.Context, fn func(*badger.Txn) error) error {
	if s.closed.Load() {
		return domain.ErrStoreUnavailable.WithDetails("badger is closed")
	}
	err := s.opts.Retry.Do(ctx, isConflict, func(context.Context) error {
		return s.db.Update(fn)
	})
	return storeError(err)
}

func (s *Store) view(ctx context.Context, fn func(*badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return domain.ErrStoreUnavailable.WithCause(err)
	}
	if s.closed.Load() {
		return domain.ErrStoreUnavailable.WithDetails("badger is closed")
	}
	return storeError(s.db.View(fn))
}

func isConflict(err error) bool {
	return errors.Is(err, badger.ErrConflict)
}

func storeError(err error) error {
	if err == nil || domain.IsDomainError(err, "") {
		return err
	}
	return domain.ErrStoreUnavailable.WithCause(err)
}

func getAccount(txn *badger.Txn, token string) (accountRecord, error) {
	var rec accountRecord
	item, err := txn.Get(accountKey(token))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return rec, domain.ErrAccountNotFound
	}
	if err != nil {
		return rec, err
	}
	err = item.Value(func(v []byte) error { return json.Unmarshal(v, &rec) })
	return rec, err
}

func listCounters(txn *badger.Txn, token string) ([]domain.Counter, error) {
	it := txn.NewIterator(badger.IteratorOptions{
		PrefetchValues: true,
		PrefetchSize:   100,
		Prefix:         counterPrefix(token),
	})
	defer it.Close()

	var recs []counterRecord
	for it.Rewind(); it.Valid(); it.Next() {
		var rec counterRecord
		if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &rec) }); err != nil {
			return nil, fmt.Errorf("decode counter %q: %w", it.Item().Key(), err)
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Seq < recs[j].Seq })

	out := make([]domain.Counter, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Counter.Clone())
	}
	return out, nil
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, b)
}
