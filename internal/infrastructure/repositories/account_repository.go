package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ledgerline/ledger-service/internal/domain/entities"
	domainerrors "github.com/ledgerline/ledger-service/internal/domain/errors"
	"github.com/ledgerline/ledger-service/internal/infrastructure/database"
)

const accountColumns = `account_id, user_id, status, current_balance, created_at, frozen_at, terminated_at`

type AccountRepository struct {
	db *sqlx.DB
}

func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, account *entities.Account) error {
	query := `
		INSERT INTO accounts (account_id, user_id, status, current_balance, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		account.AccountID, account.UserID, account.Status, account.CurrentBalance, account.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, accountID uuid.UUID) (*entities.Account, error) {
	var account entities.Account
	err := r.db.GetContext(ctx, &account,
		`SELECT `+accountColumns+` FROM accounts WHERE account_id = $1`, accountID)
	if err == sql.ErrNoRows {
		return nil, domainerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

func (r *AccountRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.Account, error) {
	var accounts []*entities.Account
	err := r.db.SelectContext(ctx, &accounts,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// UpdateStatus transitions the lifecycle state and stamps the matching
// timestamp column. TERMINATED is final: no predicate ever moves a
// terminated account back.
func (r *AccountRepository) UpdateStatus(ctx context.Context, accountID uuid.UUID, status entities.AccountStatus) error {
	var query string
	switch status {
	case entities.AccountStatusFrozen:
		query = `UPDATE accounts SET status = $2, frozen_at = now() WHERE account_id = $1 AND status = 'ACTIVE'`
	case entities.AccountStatusActive:
		query = `UPDATE accounts SET status = $2, frozen_at = NULL WHERE account_id = $1 AND status = 'FROZEN'`
	case entities.AccountStatusTerminated:
		query = `UPDATE accounts SET status = $2, terminated_at = now() WHERE account_id = $1 AND status <> 'TERMINATED'`
	default:
		return fmt.Errorf("unsupported account status %q", status)
	}

	res, err := r.db.ExecContext(ctx, query, accountID, status)
	if err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read status row count: %w", err)
	}
	if rows == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// Deposit credits an external top-up onto an ACTIVE account. The balance
// update, the DEPOSIT transaction row and the ledger entry commit together
// so the ledger always reconciles with the cached balance.
func (r *AccountRepository) Deposit(ctx context.Context, accountID, initiatorUserID uuid.UUID, amount int64) (*entities.Transaction, int64, error) {
	var txn *entities.Transaction
	var balance int64

	err := database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &balance, `
			UPDATE accounts SET current_balance = current_balance + $2
			WHERE account_id = $1 AND status = 'ACTIVE'
			RETURNING current_balance
		`, accountID, amount)
		if err == sql.ErrNoRows {
			var status string
			lookupErr := tx.GetContext(ctx, &status,
				`SELECT status FROM accounts WHERE account_id = $1`, accountID)
			return depositZeroRowCause(lookupErr)
		}
		if err != nil {
			return fmt.Errorf("failed to credit deposit: %w", err)
		}

		now := time.Now().UTC()
		toID := accountID
		txn = &entities.Transaction{
			TransactionID:   uuid.New(),
			Type:            entities.TransactionTypeDeposit,
			Status:          entities.TransactionStatusSucceeded,
			InitiatorUserID: initiatorUserID,
			ToAccountID:     &toID,
			Amount:          amount,
			CreatedAt:       now,
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (transaction_id, type, status, initiator_user_id, to_account_id, amount, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, txn.TransactionID, txn.Type, txn.Status, txn.InitiatorUserID, txn.ToAccountID, txn.Amount, txn.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert deposit transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_entries (ledger_entry_id, amount, account_id, transaction_id, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.New(), amount, accountID, txn.TransactionID, now); err != nil {
			return fmt.Errorf("failed to insert deposit ledger entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return txn, balance, nil
}

// depositZeroRowCause classifies a zero-row deposit update by the follow-up
// status lookup: the account is missing, the lookup itself failed, or the
// account exists but is not ACTIVE.
func depositZeroRowCause(lookupErr error) error {
	switch {
	case lookupErr == sql.ErrNoRows:
		return domainerrors.ErrNotFound
	case lookupErr != nil:
		return fmt.Errorf("failed to look up account status: %w", lookupErr)
	default:
		return domainerrors.ErrAccountNotActive
	}
}
