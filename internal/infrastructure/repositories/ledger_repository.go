package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ledgerline/ledger-service/internal/domain/entities"
)

type LedgerRepository struct {
	db *sqlx.DB
}

func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*entities.LedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var entries []*entities.LedgerEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT ledger_entry_id, amount, account_id, transaction_id, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, nil
}

func (r *LedgerRepository) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]*entities.LedgerEntry, error) {
	var entries []*entities.LedgerEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT ledger_entry_id, amount, account_id, transaction_id, created_at
		FROM ledger_entries
		WHERE transaction_id = $1
		ORDER BY amount
	`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries for transaction: %w", err)
	}
	return entries, nil
}

// SumByAccount folds the account's full ledger history. Used by the
// reconciliation check against the cached balance.
func (r *LedgerRepository) SumByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var sum int64
	err := r.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE account_id = $1
	`, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to sum ledger entries: %w", err)
	}
	return sum, nil
}
