package entities

import (
	"time"

	"github.com/google/uuid"
)

// AccountStatus is the lifecycle state of an account. Only ACTIVE accounts
// may send or receive funds.
type AccountStatus string

const (
	AccountStatusActive     AccountStatus = "ACTIVE"
	AccountStatusFrozen     AccountStatus = "FROZEN"
	AccountStatusTerminated AccountStatus = "TERMINATED"
)

// Account holds a balance in minor units. current_balance is a cached view
// of the ledger; the two must reconcile at all times.
type Account struct {
	AccountID      uuid.UUID     `json:"account_id" db:"account_id"`
	UserID         uuid.UUID     `json:"user_id" db:"user_id"`
	Status         AccountStatus `json:"status" db:"status"`
	CurrentBalance int64         `json:"current_balance" db:"current_balance"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	FrozenAt       *time.Time    `json:"frozen_at,omitempty" db:"frozen_at"`
	TerminatedAt   *time.Time    `json:"terminated_at,omitempty" db:"terminated_at"`
}

// IsActive reports whether the account can participate in transfers.
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}
