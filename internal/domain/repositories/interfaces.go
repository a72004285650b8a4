// Package repositories defines the persistence interfaces consumed by the
// domain services.
package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/ledgerline/ledger-service/internal/domain/entities"
)

// UserRepository persists users.
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, userID uuid.UUID) (*entities.User, error)
	GetByUsername(ctx context.Context, username string) (*entities.User, error)
}

// AccountRepository persists accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *entities.Account) error
	GetByID(ctx context.Context, accountID uuid.UUID) (*entities.Account, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.Account, error)
	UpdateStatus(ctx context.Context, accountID uuid.UUID, status entities.AccountStatus) error

	// Deposit credits an external top-up atomically: balance update,
	// DEPOSIT transaction row and ledger entry land in one transaction.
	Deposit(ctx context.Context, accountID, initiatorUserID uuid.UUID, amount int64) (*entities.Transaction, int64, error)
}

// TransactionRepository reads transaction history. Writes on the transfer
// path go through the transfer store so they share one database transaction.
type TransactionRepository interface {
	GetByID(ctx context.Context, transactionID uuid.UUID) (*entities.Transaction, error)
	ListByInitiator(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.Transaction, error)
}

// LedgerRepository reads the append-only ledger.
type LedgerRepository interface {
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*entities.LedgerEntry, error)
	ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]*entities.LedgerEntry, error)
	SumByAccount(ctx context.Context, accountID uuid.UUID) (int64, error)
}
