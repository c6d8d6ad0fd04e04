package wal

import (
	"errors"
	"time"

	"github.com/yndnr/tally-go/internal/core/domain"
)

// Errors for WAL operations.
var (
	ErrCorruptedEntry   = errors.New("wal: corrupted entry")
	ErrChecksumMismatch = errors.New("wal: checksum mismatch")
	ErrInvalidEntryType = errors.New("wal: invalid entry type")
	ErrDecrypt          = errors.New("wal: cannot decrypt entry")
	ErrClosed           = errors.New("wal: writer is closed")
)

// OpType identifies a logged mutation.
type OpType uint8

const (
	OpUnspecified OpType = iota
	OpCreateAccount
	OpCreateCounter
	OpIncrement
)

// FlagEncrypted marks a frame whose body is sealed.
const FlagEncrypted byte = 0x80

func (o OpType) String() string {
	switch o {
	case OpCreateAccount:
		return "CREATE_ACCOUNT"
	case OpCreateCounter:
		return "CREATE_COUNTER"
	case OpIncrement:
		return "INCREMENT"
	default:
		return "UNSPECIFIED"
	}
}

func (o OpType) valid() bool {
	return o >= OpCreateAccount && o <= OpIncrement
}

// Entry is one durable mutation.
type Entry struct {
	Op        OpType
	Timestamp int64 // Unix milliseconds at append
	Token     string

	// OpCreateAccount
	CreatedAt time.Time

	// OpCreateCounter
	Counter *domain.Counter

	// OpIncrement
	CounterID string
	Date      domain.Date
}

// NewCreateAccountEntry logs the creation of an empty account.
func NewCreateAccountEntry(token string, createdAt time.Time) *Entry {
	return &Entry{
		Op:        OpCreateAccount,
		Timestamp: time.Now().UnixMilli(),
		Token:     token,
		CreatedAt: createdAt,
	}
}

// NewCreateCounterEntry logs the creation of counter c under token.
func NewCreateCounterEntry(token string, c *domain.Counter) *Entry {
	return &Entry{
		Op:        OpCreateCounter,
		Timestamp: time.Now().UnixMilli(),
		Token:     token,
		Counter:   c,
	}
}

// NewIncrementEntry logs one increment of counterID on date.
func NewIncrementEntry(token, counterID string, date domain.Date) *Entry {
	return &Entry{
		Op:        OpIncrement,
		Timestamp: time.Now().UnixMilli(),
		Token:     token,
		CounterID: counterID,
		Date:      date,
	}
}
