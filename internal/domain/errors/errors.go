// Package errors defines the domain error taxonomy. Callers branch on the
// category, not on message text.
package errors

import (
	"errors"
	"fmt"
)

// Category classifies a domain error for transport mapping.
type Category string

const (
	// CategoryValidation marks malformed input rejected before any write.
	CategoryValidation Category = "VALIDATION"
	// CategoryRejection marks a business-rule rejection recorded as a
	// terminal REJECTED outcome.
	CategoryRejection Category = "REJECTION"
	// CategoryConflict marks a request that raced a still-running attempt.
	CategoryConflict Category = "CONFLICT"
	// CategoryNotFound marks a missing resource on read paths.
	CategoryNotFound Category = "NOT_FOUND"
	// CategoryUnauthorized marks failed authentication.
	CategoryUnauthorized Category = "UNAUTHORIZED"
	// CategorySystem marks infrastructure faults. Nothing about the
	// request was wrong; the attempt is replayable.
	CategorySystem Category = "SYSTEM"
)

// Reason codes surfaced to clients.
const (
	ReasonInvalidAmount         = "INVALID_AMOUNT"
	ReasonSameAccount           = "SAME_ACCOUNT"
	ReasonMissingIdempotencyKey = "MISSING_IDEMPOTENCY_KEY"

	ReasonFromAccountNotFound  = "FROM_ACCOUNT_NOT_FOUND"
	ReasonFromAccountNotActive = "FROM_ACCOUNT_NOT_ACTIVE"
	ReasonToAccountNotFound    = "TO_ACCOUNT_NOT_FOUND"
	ReasonToAccountNotActive   = "TO_ACCOUNT_NOT_ACTIVE"
	ReasonInsufficientFunds    = "INSUFFICIENT_FUNDS"

	ReasonInFlight              = "IN_FLIGHT"
	ReasonPreviousAttemptFailed = "PREVIOUS_ATTEMPT_FAILED"

	ReasonCreditFailedRollback = "CREDIT_FAILED_ROLLBACK"
	ReasonStalePendingReaped   = "STALE_PENDING_REAPED"
)

// DomainError is the error type returned by the service layer.
type DomainError struct {
	Category Category
	Code     string
	Reason   string // machine-readable step or rule, e.g. INSUFFICIENT_FUNDS
	Message  string
	Err      error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewValidation builds an input-fault error. No state is written for these.
func NewValidation(code, message string) *DomainError {
	return &DomainError{Category: CategoryValidation, Code: code, Reason: code, Message: message}
}

// NewRejection builds a business-rule rejection.
func NewRejection(code, message string) *DomainError {
	return &DomainError{Category: CategoryRejection, Code: code, Reason: code, Message: message}
}

// NewConflict builds a concurrent-attempt conflict.
func NewConflict(code, message string) *DomainError {
	return &DomainError{Category: CategoryConflict, Code: code, Reason: code, Message: message}
}

// NewNotFound builds a missing-resource error.
func NewNotFound(message string) *DomainError {
	return &DomainError{Category: CategoryNotFound, Code: "NOT_FOUND", Message: message}
}

// NewUnauthorized builds an authentication failure.
func NewUnauthorized(message string) *DomainError {
	return &DomainError{Category: CategoryUnauthorized, Code: "UNAUTHORIZED", Message: message}
}

// NewSystem builds an infrastructure fault. The reason code is embedded in
// the message so operators see the failing step without a stack trace.
func NewSystem(reason string, err error) *DomainError {
	return &DomainError{
		Category: CategorySystem,
		Code:     "TRANSFER_SYSTEM_FAILURE",
		Reason:   reason,
		Message:  fmt.Sprintf("TRANSFER_SYSTEM_FAILURE: %s", reason),
		Err:      err,
	}
}

// AsDomainError unwraps err into a *DomainError if it is one.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// IsCategory reports whether err is a DomainError of the given category.
func IsCategory(err error, c Category) bool {
	if de, ok := AsDomainError(err); ok {
		return de.Category == c
	}
	return false
}

// Sentinels for repository lookups.
var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrUsernameTaken     = errors.New("username already taken")
	ErrInvalidCredential = errors.New("invalid credentials")
	ErrAccountNotActive  = errors.New("account is not active")
)
