package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ledgerline/ledger-service/internal/domain/entities"
	domainerrors "github.com/ledgerline/ledger-service/internal/domain/errors"
)

type TransactionRepository struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) GetByID(ctx context.Context, transactionID uuid.UUID) (*entities.Transaction, error) {
	var txn entities.Transaction
	err := r.db.GetContext(ctx, &txn,
		`SELECT `+transactionColumns+` FROM transactions WHERE transaction_id = $1`, transactionID)
	if err == sql.ErrNoRows {
		return nil, domainerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &txn, nil
}

func (r *TransactionRepository) ListByInitiator(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var txns []*entities.Transaction
	err := r.db.SelectContext(ctx, &txns, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE initiator_user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}
