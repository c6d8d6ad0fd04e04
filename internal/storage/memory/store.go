package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yndnr/tally-go/internal/core/domain"
	"github.com/yndnr/tally-go/pkg/cmap"
)

// Store is a concurrent in-memory account store.
type Store struct {
	accounts *cmap.Map[*account]
	now      func() time.Time
}

type account struct {
	token     string
	createdAt time.Time

	mu       sync.RWMutex
	counters map[string]*counter
	order    []*counter
}

type counter struct {
	mu    sync.Mutex
	value domain.Counter
}

// Option configures the Store.
type Option func(*Store)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithShards sets the number of shards of the token map.
func WithShards(n int) Option {
	return func(s *Store) {
		s.accounts = cmap.NewWithShards[*account](n)
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		accounts: cmap.New[*account](),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAccount registers a new empty account under token.
func (s *Store) CreateAccount(_ context.Context, token string) (*domain.Account, error) {
	if token == "" {
		return nil, domain.ErrInvalidArgument.WithDetails("token is empty")
	}
	acct := domain.Account{Token: token, CreatedAt: s.now().UTC()}
	if err := s.InsertAccount(acct); err != nil {
		return nil, err
	}
	return acct.Clone(), nil
}

// InsertAccount stores a fully formed account, counters included.
// Recovery uses it to load snapshots and replay the log.
func (s *Store) InsertAccount(acct domain.Account) error {
	a := &account{
		token:     acct.Token,
		createdAt: acct.CreatedAt,
		counters:  make(map[string]*counter, len(acct.Counters)),
	}
	for _, c := range acct.Counters {
		if _, dup := a.counters[c.ID]; dup {
			return domain.ErrDuplicateCounter.WithDetails(c.ID)
		}
		cc := &counter{value: c.Clone()}
		a.counters[c.ID] = cc
		a.order = append(a.order, cc)
	}

	if !s.accounts.SetIfAbsent(acct.Token, a) {
		return domain.ErrDuplicateToken
	}
	return nil
}

// GetAccount returns a snapshot of the account and all its counters.
func (s *Store) GetAccount(_ context.Context, token string) (*domain.Account, error) {
	a, ok := s.accounts.Get(token)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return a.snapshot(), nil
}

// CreateCounter adds an empty counter to the account.
func (s *Store) CreateCounter(_ context.Context, token, name string) (*domain.Counter, error) {
	a, ok := s.accounts.Get(token)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	c, err := domain.NewCounter(name, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := a.insert(c); err != nil {
		return nil, err
	}
	out := c.Clone()
	return &out, nil
}

// InsertCounter adds a fully formed counter to an existing account.
func (s *Store) InsertCounter(token string, c domain.Counter) error {
	a, ok := s.accounts.Get(token)
	if !ok {
		return domain.ErrAccountNotFound
	}
	return a.insert(c.Clone())
}

// InsertCounterWith adds c to the account once commit succeeds. commit runs
// under that account's write lock after c is known not to clash, so it
// only ever holds up writers of the same account.
func (s *Store) InsertCounterWith(token string, c domain.Counter, commit func() error) error {
	a, ok := s.accounts.Get(token)
	if !ok {
		return domain.ErrAccountNotFound
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, dup := a.counters[c.ID]; dup {
		return domain.ErrDuplicateCounter.WithDetails(c.ID)
	}
	if err := commit(); err != nil {
		return err
	}
	a.add(c.Clone())
	return nil
}

// ListCounters returns the account's counters in creation order.
func (s *Store) ListCounters(_ context.Context, token string) ([]domain.Counter, error) {
	a, ok := s.accounts.Get(token)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return a.snapshot().Counters, nil
}

// Increment adds one to the counter's entry for date.
func (s *Store) Increment(_ context.Context, token, counterID string, date domain.Date) (*domain.Counter, error) {
	c, err := s.lookup(token, counterID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.value.Record(date)
	out := c.value.Clone()
	c.mu.Unlock()

	return &out, nil
}

// CheckCounter reports whether the counter exists without copying it.
func (s *Store) CheckCounter(token, counterID string) error {
	_, err := s.lookup(token, counterID)
	return err
}

func (s *Store) lookup(token, counterID string) (*counter, error) {
	a, ok := s.accounts.Get(token)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	a.mu.RLock()
	c, ok := a.counters[counterID]
	a.mu.RUnlock()
	if !ok {
		return nil, domain.ErrCounterNotFound
	}
	return c, nil
}

// HasAccount reports whether token is registered.
func (s *Store) HasAccount(token string) bool {
	return s.accounts.Has(token)
}

// Count returns the number of accounts.
func (s *Store) Count() int {
	return s.accounts.Len()
}

// All returns a snapshot of every account ordered by token.
func (s *Store) All() []*domain.Account {
	var accts []*account
	s.accounts.Range(func(_ string, a *account) bool {
		accts = append(accts, a)
		return true
	})

	out := make([]*domain.Account, 0, len(accts))
	for _, a := range accts {
		out = append(out, a.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out
}

// Reset drops every account.
func (s *Store) Reset() {
	s.accounts.Clear()
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Close is a no-op; the store holds no external resources.
func (s *Store) Close() error {
	return nil
}

func (a *account) insert(c domain.Counter) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, dup := a.counters[c.ID]; dup {
		return domain.ErrDuplicateCounter.WithDetails(c.ID)
	}
	a.add(c)
	return nil
}

// add requires a.mu held.
func (a *account) add(c domain.Counter) {
	cc := &counter{value: c}
	a.counters[c.ID] = cc
	a.order = append(a.order, cc)
}

func (a *account) snapshot() *domain.Account {
	a.mu.RLock()
	order := make([]*counter, len(a.order))
	copy(order, a.order)
	a.mu.RUnlock()

	out := &domain.Account{
		Token:     a.token,
		CreatedAt: a.createdAt,
		Counters:  make([]domain.Counter, 0, len(order)),
	}
	for _, c := range order {
		c.mu.Lock()
		out.Counters = append(out.Counters, c.value.Clone())
		c.mu.Unlock()
	}
	return out
}
