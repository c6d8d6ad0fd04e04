package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/yndnr/tally-go/internal/core/domain"
	"github.com/yndnr/tally-go/internal/telemetry/logger"
	"github.com/yndnr/tally-go/pkg/token"
)

// Operation names used for metrics and logs.
const (
	OpCreateAccount = "create_account"
	OpGetAccount    = "get_account"
	OpCreateCounter = "create_counter"
	OpListCounters  = "list_counters"
	OpGetCounter    = "get_counter"
	OpIncrement     = "increment"
)

// AccountService orchestrates account and counter operations.
type AccountService struct {
	store    AccountStore
	tokens   TokenSource
	location *time.Location
	now      func() time.Time
	recorder Recorder
}

// Option configures an AccountService.
type Option func(*AccountService)

// WithTokenSource replaces the crypto/rand token generator.
func WithTokenSource(ts TokenSource) Option {
	return func(s *AccountService) {
		if ts != nil {
			s.tokens = ts
		}
	}
}

// WithLocation sets the zone that decides which calendar day "today" is.
func WithLocation(loc *time.Location) Option {
	return func(s *AccountService) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *AccountService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *AccountService) {
		s.recorder = r
	}
}

// NewAccountService creates a service backed by store.
func NewAccountService(store AccountStore, opts ...Option) *AccountService {
	s := &AccountService{
		store:    store,
		tokens:   token.Generator{},
		location: time.UTC,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ============================================================================
// Account Operations
// ============================================================================

// CreateAccount mints a fresh token and registers an empty account for it.
func (s *AccountService) CreateAccount(ctx context.Context) (acct *domain.Account, err error) {
	defer s.observe(ctx, OpCreateAccount, time.Now(), &err)

	// 1. Mint the capability token
	tok, err := s.tokens.NewToken()
	if err != nil {
		return nil, domain.ErrRandomSourceUnavailable.WithCause(err)
	}

	// 2. Register it
	acct, err = s.store.CreateAccount(ctx, tok)
	if err != nil {
		return nil, storeError(err)
	}

	logger.L(ctx).Info("account created", "token", tok)
	return acct, nil
}

// GetAccount returns the account for token with all counters.
func (s *AccountService) GetAccount(ctx context.Context, tok string) (acct *domain.Account, err error) {
	defer s.observe(ctx, OpGetAccount, time.Now(), &err)

	if tok == "" {
		return nil, domain.ErrAccountNotFound
	}
	acct, err = s.store.GetAccount(ctx, tok)
	if err != nil {
		return nil, storeError(err)
	}
	return acct, nil
}

// ============================================================================
// Counter Operations
// ============================================================================

// CreateCounterRequest contains parameters for counter creation.
type CreateCounterRequest struct {
	Token string // Required
	Name  string // Required, display name; the id is derived from it
}

// CreateCounter adds a named counter to an account.
func (s *AccountService) CreateCounter(ctx context.Context, req *CreateCounterRequest) (c *domain.Counter, err error) {
	defer s.observe(ctx, OpCreateCounter, time.Now(), &err)

	if req == nil || req.Token == "" {
		return nil, domain.ErrAccountNotFound
	}

	// 1. Reject names that normalize to nothing before touching the store
	if _, _, err := domain.CounterID(req.Name); err != nil {
		return nil, err
	}

	// 2. Store re-derives and re-validates under its own lock
	c, err = s.store.CreateCounter(ctx, req.Token, req.Name)
	if err != nil {
		return nil, storeError(err)
	}

	logger.L(ctx).Info("counter created", "token", req.Token, "counter_id", c.ID)
	return c, nil
}

// ListCounters returns every counter of the account in creation order.
func (s *AccountService) ListCounters(ctx context.Context, tok string) (cs []domain.Counter, err error) {
	defer s.observe(ctx, OpListCounters, time.Now(), &err)

	if tok == "" {
		return nil, domain.ErrAccountNotFound
	}
	cs, err = s.store.ListCounters(ctx, tok)
	if err != nil {
		return nil, storeError(err)
	}
	return cs, nil
}

// GetCounter returns a single counter of the account.
func (s *AccountService) GetCounter(ctx context.Context, tok, counterID string) (c *domain.Counter, err error) {
	defer s.observe(ctx, OpGetCounter, time.Now(), &err)

	if tok == "" {
		return nil, domain.ErrAccountNotFound
	}
	cs, err := s.store.ListCounters(ctx, tok)
	if err != nil {
		return nil, storeError(err)
	}
	for i := range cs {
		if cs[i].ID == counterID {
			return &cs[i], nil
		}
	}
	return nil, domain.ErrCounterNotFound
}

// IncrementRequest contains parameters for an increment.
type IncrementRequest struct {
	Token     string       // Required
	CounterID string       // Required
	Date      *domain.Date // Optional, defaults to today in the service zone
}

// Increment bumps the counter's entry for the requested date by one.
func (s *AccountService) Increment(ctx context.Context, req *IncrementRequest) (c *domain.Counter, err error) {
	defer s.observe(ctx, OpIncrement, time.Now(), &err)

	if req == nil || req.Token == "" {
		return nil, domain.ErrAccountNotFound
	}
	if req.CounterID == "" {
		return nil, domain.ErrCounterNotFound
	}

	date := domain.Today(s.now(), s.location)
	if req.Date != nil {
		if req.Date.IsZero() {
			return nil, domain.ErrInvalidArgument.WithDetails("date is zero")
		}
		date = *req.Date
	}

	c, err = s.store.Increment(ctx, req.Token, req.CounterID, date)
	if err != nil {
		return nil, storeError(err)
	}

	logger.L(ctx).Debug("counter incremented",
		"token", req.Token, "counter_id", c.ID, "date", date.String())
	return c, nil
}

// Today returns the current calendar day in the service zone.
func (s *AccountService) Today() domain.Date {
	return domain.Today(s.now(), s.location)
}

// storeError passes domain errors through and wraps anything else as a
// store failure so no raw backend error reaches the boundary.
func storeError(err error) error {
	if domain.IsDomainError(err, "") {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrStoreUnavailable.WithDetails("request cancelled").WithCause(err)
	}
	return domain.ErrStoreUnavailable.WithCause(err)
}

func (s *AccountService) observe(ctx context.Context, op string, start time.Time, errp *error) {
	result := "ok"
	if err := *errp; err != nil {
		result = domain.GetErrorCode(err)
		if result == "" {
			result = domain.ErrInternal.Code
		}
		if strings.HasPrefix(result, "TL-SYS") {
			logger.L(ctx).Warn("operation failed", "op", op, "error", err)
		}
	}
	if s.recorder != nil {
		s.recorder.ObserveOperation(op, result, time.Since(start))
	}
}
