package entities

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TransactionStatus is the lifecycle state of a money movement. PENDING is
// transient; the other three are terminal and immutable.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusSucceeded TransactionStatus = "SUCCEEDED"
	TransactionStatusRejected  TransactionStatus = "REJECTED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// IsTerminal reports whether the status is final.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusSucceeded || s == TransactionStatusRejected || s == TransactionStatusFailed
}

// TransactionType distinguishes the shape of a money movement.
type TransactionType string

const (
	TransactionTypeTransfer   TransactionType = "TRANSFER"
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
)

// Transaction is the record of one attempted money movement. Amounts are
// minor units; both endpoints are set only for transfers.
type Transaction struct {
	TransactionID   uuid.UUID         `json:"transaction_id" db:"transaction_id"`
	Type            TransactionType   `json:"type" db:"type"`
	Status          TransactionStatus `json:"status" db:"status"`
	InitiatorUserID uuid.UUID         `json:"initiator_user_id" db:"initiator_user_id"`
	FromAccountID   *uuid.UUID        `json:"from_account_id,omitempty" db:"from_account_id"`
	ToAccountID     *uuid.UUID        `json:"to_account_id,omitempty" db:"to_account_id"`
	Amount          int64             `json:"amount" db:"amount"`
	IdempotencyKey  *uuid.UUID        `json:"idempotency_key,omitempty" db:"idempotency_key"`
	ResponsePayload json.RawMessage   `json:"response_payload,omitempty" db:"response_payload"`
	FailureReason   *string           `json:"failure_reason,omitempty" db:"failure_reason"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
}

// PayloadVersion is the schema version stamped into every stored payload.
const PayloadVersion = 1

// TransferPayload is the canonical client-visible result of a transfer
// attempt. It is stored alongside the transaction row and returned verbatim
// on idempotent replay; field order is fixed so repeated marshals of the
// same payload are byte-identical.
type TransferPayload struct {
	Success       bool   `json:"success"`
	Version       int    `json:"version"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        int64  `json:"amount"`
	Reason        string `json:"reason,omitempty"`
	CompletedAt   string `json:"completed_at,omitempty"` // RFC 3339 UTC
}

// Marshal serializes the payload canonically.
func (p TransferPayload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// CanonicalizePayload re-marshals a stored payload through TransferPayload.
// JSONB storage does not preserve byte order, so replays rebuild the exact
// bytes from the canonical struct.
func CanonicalizePayload(raw json.RawMessage) ([]byte, error) {
	var p TransferPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return p.Marshal()
}
