package entities

import (
	"time"

	"github.com/google/uuid"
)

// LedgerEntry is one immutable double-entry row. The sign of Amount encodes
// direction: negative debits, positive credits. The rows of a transaction
// always sum to zero.
type LedgerEntry struct {
	LedgerEntryID uuid.UUID `json:"ledger_entry_id" db:"ledger_entry_id"`
	Amount        int64     `json:"amount" db:"amount"`
	AccountID     uuid.UUID `json:"account_id" db:"account_id"`
	TransactionID uuid.UUID `json:"transaction_id" db:"transaction_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
