package transfer

import (
	"github.com/google/uuid"

	"github.com/ledgerline/ledger-service/internal/domain/entities"
)

// Request is one transfer attempt as received from the API layer. Amount is
// minor units.
type Request struct {
	InitiatorUserID uuid.UUID
	FromAccountID   uuid.UUID
	ToAccountID     uuid.UUID
	Amount          int64
	IdempotencyKey  uuid.UUID
}

// Result is the outcome of a transfer attempt. Payload holds the canonical
// response bytes; a replayed request carries the exact bytes of the original
// outcome.
type Result struct {
	TransactionID uuid.UUID
	Status        entities.TransactionStatus
	Reason        string
	Payload       []byte
	Replayed      bool
}

// Succeeded reports whether funds moved.
func (r *Result) Succeeded() bool {
	return r.Status == entities.TransactionStatusSucceeded
}
