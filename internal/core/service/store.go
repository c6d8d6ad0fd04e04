package service

import (
	"context"
	"time"

	"github.com/yndnr/tally-go/internal/core/domain"
)

// AccountStore is the storage contract shared by every backend.
//
// Implementations return deep copies, never live references, and report
// failures as domain errors:
//
//   - ErrDuplicateToken, ErrAccountNotFound
//   - ErrDuplicateCounter, ErrCounterNotFound, ErrInvalidName
//   - ErrStoreUnavailable once transient conflicts outlast the retry budget
type AccountStore interface {
	// CreateAccount registers an empty account under token.
	CreateAccount(ctx context.Context, token string) (*domain.Account, error)

	// GetAccount returns the account with all counters and entries.
	GetAccount(ctx context.Context, token string) (*domain.Account, error)

	// CreateCounter derives the counter id from name and adds an empty
	// counter to the account.
	CreateCounter(ctx context.Context, token, name string) (*domain.Counter, error)

	// ListCounters returns the account's counters in creation order.
	ListCounters(ctx context.Context, token string) ([]domain.Counter, error)

	// Increment adds exactly one to the counter's entry for date, creating
	// the entry if needed, and returns the updated counter.
	Increment(ctx context.Context, token, counterID string, date domain.Date) (*domain.Counter, error)
}

// TokenSource mints account tokens. token.Generator implements it.
type TokenSource interface {
	NewToken() (string, error)
}

// Recorder receives per-operation outcomes. *metric.Registry implements it.
type Recorder interface {
	ObserveOperation(op, result string, elapsed time.Duration)
}
