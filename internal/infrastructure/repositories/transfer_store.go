package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ledgerline/ledger-service/internal/domain/entities"
	domainerrors "github.com/ledgerline/ledger-service/internal/domain/errors"
	"github.com/ledgerline/ledger-service/internal/domain/services/transfer"
	"github.com/ledgerline/ledger-service/internal/infrastructure/database"
	"github.com/ledgerline/ledger-service/pkg/tracing"
)

const pqUniqueViolation = "23505"

const transactionColumns = `transaction_id, type, status, initiator_user_id, from_account_id,
	to_account_id, amount, idempotency_key, response_payload, failure_reason, created_at`

// TransferStore is the PostgreSQL implementation of the transfer executor's
// persistence surface.
type TransferStore struct {
	db *sqlx.DB
}

func NewTransferStore(db *sqlx.DB) *TransferStore {
	return &TransferStore{db: db}
}

// ExecTx scopes fn to one READ COMMITTED transaction.
func (s *TransferStore) ExecTx(ctx context.Context, fn func(transfer.StoreTx) error) error {
	return database.WithTransaction(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(&transferStoreTx{tx: tx})
	})
}

func (s *TransferStore) FindByIdempotencyKey(ctx context.Context, initiatorUserID, key uuid.UUID) (*entities.Transaction, error) {
	return findByIdempotencyKey(ctx, s.db, initiatorUserID, key)
}

// InsertFailed records the compensating FAILED transaction and its audit row
// in one transaction, independent of the rolled-back attempt.
func (s *TransferStore) InsertFailed(ctx context.Context, txn *entities.Transaction, audit *entities.AuditLog) error {
	return database.WithTransaction(ctx, s.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO transactions (transaction_id, type, status, initiator_user_id,
				from_account_id, to_account_id, amount, idempotency_key, failure_reason, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		if _, err := tx.ExecContext(ctx, query,
			txn.TransactionID, txn.Type, entities.TransactionStatusFailed, txn.InitiatorUserID,
			txn.FromAccountID, txn.ToAccountID, txn.Amount, txn.IdempotencyKey,
			txn.FailureReason, txn.CreatedAt,
		); err != nil {
			// Another process may have landed a row under the same key in
			// the meantime; their outcome wins.
			var pqErr *pq.Error
			if stderrors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
				return domainerrors.ErrDuplicateKey
			}
			return fmt.Errorf("failed to insert FAILED transaction: %w", err)
		}
		return insertAudit(ctx, tx, audit)
	})
}

// ReapStalePending marks PENDING transfers older than the cutoff as FAILED
// and appends a SYSTEM audit row for each, all in one transaction.
func (s *TransferStore) ReapStalePending(ctx context.Context, olderThan time.Time) ([]uuid.UUID, error) {
	reason := domainerrors.ReasonStalePendingReaped
	var ids []uuid.UUID

	err := database.WithTransaction(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &ids, `
			UPDATE transactions
			SET status = 'FAILED', failure_reason = $2
			WHERE status = 'PENDING' AND type = 'TRANSFER' AND created_at < $1
			RETURNING transaction_id
		`, olderThan, reason); err != nil {
			return fmt.Errorf("failed to reap stale PENDING transactions: %w", err)
		}

		now := time.Now().UTC()
		for _, id := range ids {
			targetID := id.String()
			if err := insertAudit(ctx, tx, &entities.AuditLog{
				AuditLogID: uuid.New(),
				ActorType:  entities.ActorTypeSystem,
				ActorID:    entities.SystemActorID,
				Action:     "TRANSFER",
				TargetType: entities.AuditTargetTransaction,
				TargetID:   &targetID,
				Outcome:    entities.AuditOutcomeFailed,
				Reason:     &reason,
				CreatedAt:  now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// transferStoreTx exposes the in-transaction operations.
type transferStoreTx struct {
	tx *sqlx.Tx
}

func (t *transferStoreTx) InsertPending(ctx context.Context, txn *entities.Transaction) error {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{Operation: "INSERT", Table: "transactions"})

	query := `
		INSERT INTO transactions (transaction_id, type, status, initiator_user_id,
			from_account_id, to_account_id, amount, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := t.tx.ExecContext(ctx, query,
		txn.TransactionID, txn.Type, entities.TransactionStatusPending, txn.InitiatorUserID,
		txn.FromAccountID, txn.ToAccountID, txn.Amount, txn.IdempotencyKey, txn.CreatedAt,
	)
	tracing.EndDBSpan(span, err, -1)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return domainerrors.ErrDuplicateKey
		}
		return fmt.Errorf("failed to insert pending transaction: %w", err)
	}
	return nil
}

func (t *transferStoreTx) GetAccount(ctx context.Context, accountID uuid.UUID) (*entities.Account, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{Operation: "SELECT", Table: "accounts"})

	var account entities.Account
	err := t.tx.GetContext(ctx, &account, `
		SELECT account_id, user_id, status, current_balance, created_at, frozen_at, terminated_at
		FROM accounts WHERE account_id = $1
	`, accountID)
	tracing.EndDBSpan(span, err, -1)
	if err == sql.ErrNoRows {
		return nil, domainerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// DebitAccount applies the debit only when the predicate still holds. Zero
// rows updated means the balance or status changed since the eligibility
// read.
func (t *transferStoreTx) DebitAccount(ctx context.Context, accountID uuid.UUID, amount int64) (bool, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{Operation: "UPDATE", Table: "accounts"})

	res, err := t.tx.ExecContext(ctx, `
		UPDATE accounts
		SET current_balance = current_balance - $2
		WHERE account_id = $1 AND status = 'ACTIVE' AND current_balance >= $2
	`, accountID, amount)
	if err != nil {
		tracing.EndDBSpan(span, err, -1)
		return false, fmt.Errorf("failed to debit account: %w", err)
	}
	rows, err := res.RowsAffected()
	tracing.EndDBSpan(span, err, rows)
	if err != nil {
		return false, fmt.Errorf("failed to read debit row count: %w", err)
	}
	return rows == 1, nil
}

func (t *transferStoreTx) CreditAccount(ctx context.Context, accountID uuid.UUID, amount int64) (bool, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{Operation: "UPDATE", Table: "accounts"})

	res, err := t.tx.ExecContext(ctx, `
		UPDATE accounts
		SET current_balance = current_balance + $2
		WHERE account_id = $1 AND status = 'ACTIVE'
	`, accountID, amount)
	if err != nil {
		tracing.EndDBSpan(span, err, -1)
		return false, fmt.Errorf("failed to credit account: %w", err)
	}
	rows, err := res.RowsAffected()
	tracing.EndDBSpan(span, err, rows)
	if err != nil {
		return false, fmt.Errorf("failed to read credit row count: %w", err)
	}
	return rows == 1, nil
}

func (t *transferStoreTx) InsertLedgerEntries(ctx context.Context, entries []*entities.LedgerEntry) error {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{Operation: "INSERT", Table: "ledger_entries"})

	query := `
		INSERT INTO ledger_entries (ledger_entry_id, amount, account_id, transaction_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, e := range entries {
		if _, err := t.tx.ExecContext(ctx, query,
			e.LedgerEntryID, e.Amount, e.AccountID, e.TransactionID, e.CreatedAt,
		); err != nil {
			tracing.EndDBSpan(span, err, -1)
			return fmt.Errorf("failed to insert ledger entry: %w", err)
		}
	}
	tracing.EndDBSpan(span, nil, int64(len(entries)))
	return nil
}

// SetOutcome moves a PENDING transaction to its terminal status. Terminal
// rows are immutable, so the predicate refuses any second write.
func (t *transferStoreTx) SetOutcome(ctx context.Context, transactionID uuid.UUID, status entities.TransactionStatus, failureReason *string, payload []byte) error {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{Operation: "UPDATE", Table: "transactions"})

	res, err := t.tx.ExecContext(ctx, `
		UPDATE transactions
		SET status = $2, failure_reason = $3, response_payload = $4
		WHERE transaction_id = $1 AND status = 'PENDING'
	`, transactionID, status, failureReason, payload)
	if err != nil {
		tracing.EndDBSpan(span, err, -1)
		return fmt.Errorf("failed to set transaction outcome: %w", err)
	}
	rows, err := res.RowsAffected()
	tracing.EndDBSpan(span, err, rows)
	if err != nil {
		return fmt.Errorf("failed to read outcome row count: %w", err)
	}
	if rows != 1 {
		return fmt.Errorf("transaction %s is not PENDING, refusing outcome write", transactionID)
	}
	return nil
}

func (t *transferStoreTx) InsertAudit(ctx context.Context, log *entities.AuditLog) error {
	return insertAudit(ctx, t.tx, log)
}

func insertAudit(ctx context.Context, tx *sqlx.Tx, log *entities.AuditLog) error {
	query := `
		INSERT INTO audit_logs (audit_log_id, actor_type, actor_id, action, target_type, target_id, outcome, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := tx.ExecContext(ctx, query,
		log.AuditLogID, log.ActorType, log.ActorID, log.Action,
		log.TargetType, log.TargetID, log.Outcome, log.Reason, log.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

func findByIdempotencyKey(ctx context.Context, q sqlx.QueryerContext, initiatorUserID, key uuid.UUID) (*entities.Transaction, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{Operation: "SELECT", Table: "transactions"})

	var txn entities.Transaction
	err := sqlx.GetContext(ctx, q, &txn, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE initiator_user_id = $1 AND idempotency_key = $2 AND type = 'TRANSFER'
	`, initiatorUserID, key)
	tracing.EndDBSpan(span, err, -1)
	if err == sql.ErrNoRows {
		return nil, domainerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	return &txn, nil
}
