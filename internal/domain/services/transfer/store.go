package transfer

import (
	"context"

	"github.com/google/uuid"

	"github.com/ledgerline/ledger-service/internal/domain/entities"
)

// Store is the persistence surface of the transfer executor. ExecTx scopes
// a group of StoreTx operations to one database transaction; everything
// else runs in its own implicit transaction.
type Store interface {
	// ExecTx runs fn inside a single database transaction. The transaction
	// commits when fn returns nil and rolls back otherwise.
	ExecTx(ctx context.Context, fn func(StoreTx) error) error

	// FindByIdempotencyKey returns the transfer previously admitted under
	// (initiator, key), or errors.ErrNotFound.
	FindByIdempotencyKey(ctx context.Context, initiatorUserID, key uuid.UUID) (*entities.Transaction, error)

	// InsertFailed records a compensating FAILED transaction together with
	// its audit row, in a transaction independent of the rolled-back attempt.
	InsertFailed(ctx context.Context, txn *entities.Transaction, audit *entities.AuditLog) error
}

// StoreTx is the set of operations available inside one transfer
// transaction. Losing the admission race poisons the transaction, so the
// post-race re-lookup goes through Store, not StoreTx.
type StoreTx interface {
	// InsertPending admits the attempt. Returns errors.ErrDuplicateKey when
	// another attempt already holds (initiator, key).
	InsertPending(ctx context.Context, txn *entities.Transaction) error

	// GetAccount returns the account or errors.ErrNotFound.
	GetAccount(ctx context.Context, accountID uuid.UUID) (*entities.Account, error)

	// DebitAccount decrements the balance iff the account is ACTIVE and
	// holds at least amount. Reports whether a row was updated.
	DebitAccount(ctx context.Context, accountID uuid.UUID, amount int64) (bool, error)

	// CreditAccount increments the balance iff the account is ACTIVE.
	// Reports whether a row was updated.
	CreditAccount(ctx context.Context, accountID uuid.UUID, amount int64) (bool, error)

	// InsertLedgerEntries appends the double-entry rows for a transaction.
	InsertLedgerEntries(ctx context.Context, entries []*entities.LedgerEntry) error

	// SetOutcome writes the terminal status, failure reason and canonical
	// response payload on the transaction row.
	SetOutcome(ctx context.Context, transactionID uuid.UUID, status entities.TransactionStatus, failureReason *string, payload []byte) error

	// InsertAudit appends one audit row.
	InsertAudit(ctx context.Context, log *entities.AuditLog) error
}
