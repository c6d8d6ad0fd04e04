package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business error with a structured error code.
//
// Codes follow TL-<AREA>-<STATUS><SEQ>. The status digits drive the HTTP
// mapping at the boundary.
type DomainError struct {
	Code    string // Error code (e.g., "TL-CNTR-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches on the error code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// An empty code matches any DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return code == "" || de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsNotFound reports whether err is an account or counter lookup miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrCounterNotFound)
}

// ============================================================================
// Account Errors (ACCT)
// ============================================================================

var (
	// ErrAccountNotFound indicates no account exists for the token.
	ErrAccountNotFound = NewDomainError("TL-ACCT-4040", "account not found")

	// ErrDuplicateToken indicates the token is already bound to an account.
	ErrDuplicateToken = NewDomainError("TL-ACCT-4090", "token already in use")
)

// ============================================================================
// Counter Errors (CNTR)
// ============================================================================

var (
	// ErrCounterNotFound indicates the account has no counter with the id.
	ErrCounterNotFound = NewDomainError("TL-CNTR-4040", "counter not found")

	// ErrDuplicateCounter indicates the derived counter id already exists.
	ErrDuplicateCounter = NewDomainError("TL-CNTR-4090", "counter already exists")

	// ErrInvalidName indicates the name normalizes to an empty id.
	ErrInvalidName = NewDomainError("TL-CNTR-4001", "invalid counter name")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates a malformed request argument.
	ErrInvalidArgument = NewDomainError("TL-ARG-4001", "invalid argument")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternal indicates an unexpected failure.
	ErrInternal = NewDomainError("TL-SYS-5000", "internal error")

	// ErrRandomSourceUnavailable indicates the secure random source failed.
	// It is never recovered by degrading to a weaker source.
	ErrRandomSourceUnavailable = NewDomainError("TL-SYS-5001", "random source unavailable")

	// ErrStoreUnavailable indicates a transient backend failure that
	// outlasted the retry budget. Callers may retry.
	ErrStoreUnavailable = NewDomainError("TL-SYS-5030", "store unavailable")
)
