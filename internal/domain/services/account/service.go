// Package account manages account lifecycle, deposits and balance
// reconciliation.
package account

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgerline/ledger-service/internal/domain/entities"
	"github.com/ledgerline/ledger-service/internal/domain/errors"
	"github.com/ledgerline/ledger-service/internal/domain/repositories"
	"github.com/ledgerline/ledger-service/internal/domain/services/audit"
)

const (
	actionAccountCreate    = "ACCOUNT_CREATE"
	actionAccountFreeze    = "ACCOUNT_FREEZE"
	actionAccountUnfreeze  = "ACCOUNT_UNFREEZE"
	actionAccountTerminate = "ACCOUNT_TERMINATE"
	actionDeposit          = "DEPOSIT"
)

type Service struct {
	accounts repositories.AccountRepository
	ledger   repositories.LedgerRepository
	audit    *audit.Service
	logger   *zap.Logger
}

func NewService(accounts repositories.AccountRepository, ledger repositories.LedgerRepository, auditSvc *audit.Service, logger *zap.Logger) *Service {
	return &Service{accounts: accounts, ledger: ledger, audit: auditSvc, logger: logger}
}

// Create opens a new ACTIVE account with a zero balance.
func (s *Service) Create(ctx context.Context, userID uuid.UUID) (*entities.Account, error) {
	account := &entities.Account{
		AccountID: uuid.New(),
		UserID:    userID,
		Status:    entities.AccountStatusActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, errors.NewSystem("ACCOUNT_CREATE", err)
	}

	s.audit.Record(ctx, entities.ActorTypeUser, userID.String(), actionAccountCreate,
		entities.AuditTargetAccount, account.AccountID.String(), entities.AuditOutcomeSucceeded, "")
	return account, nil
}

// Get returns an account owned by requester. Accounts of other users are
// indistinguishable from missing ones.
func (s *Service) Get(ctx context.Context, accountID, requesterID uuid.UUID) (*entities.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewNotFound("account not found")
		}
		return nil, errors.NewSystem("ACCOUNT_LOOKUP", err)
	}
	if account.UserID != requesterID {
		return nil, errors.NewNotFound("account not found")
	}
	return account, nil
}

// List returns all accounts owned by userID.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*entities.Account, error) {
	accounts, err := s.accounts.ListByUserID(ctx, userID)
	if err != nil {
		return nil, errors.NewSystem("ACCOUNT_LIST", err)
	}
	return accounts, nil
}

// Freeze suspends an ACTIVE account.
func (s *Service) Freeze(ctx context.Context, accountID, requesterID uuid.UUID) (*entities.Account, error) {
	return s.transition(ctx, accountID, requesterID, entities.AccountStatusFrozen, actionAccountFreeze)
}

// Unfreeze reactivates a FROZEN account.
func (s *Service) Unfreeze(ctx context.Context, accountID, requesterID uuid.UUID) (*entities.Account, error) {
	return s.transition(ctx, accountID, requesterID, entities.AccountStatusActive, actionAccountUnfreeze)
}

// Terminate closes an account for good. Only empty accounts may be closed:
// a terminated balance would strand funds the ledger still accounts for.
func (s *Service) Terminate(ctx context.Context, accountID, requesterID uuid.UUID) (*entities.Account, error) {
	current, err := s.Get(ctx, accountID, requesterID)
	if err != nil {
		return nil, err
	}
	if current.CurrentBalance != 0 {
		return nil, errors.NewRejection("ACCOUNT_BALANCE_NOT_ZERO",
			"account must have a zero balance before termination")
	}
	return s.transition(ctx, accountID, requesterID, entities.AccountStatusTerminated, actionAccountTerminate)
}

func (s *Service) transition(ctx context.Context, accountID, requesterID uuid.UUID, status entities.AccountStatus, action string) (*entities.Account, error) {
	if _, err := s.Get(ctx, accountID, requesterID); err != nil {
		return nil, err
	}

	if err := s.accounts.UpdateStatus(ctx, accountID, status); err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			// The row exists but its current status does not admit this
			// transition.
			s.audit.Record(ctx, entities.ActorTypeUser, requesterID.String(), action,
				entities.AuditTargetAccount, accountID.String(), entities.AuditOutcomeRejected, "INVALID_STATUS_TRANSITION")
			return nil, errors.NewRejection("INVALID_STATUS_TRANSITION",
				"account status does not allow this transition")
		}
		return nil, errors.NewSystem("ACCOUNT_STATUS_WRITE", err)
	}

	s.audit.Record(ctx, entities.ActorTypeUser, requesterID.String(), action,
		entities.AuditTargetAccount, accountID.String(), entities.AuditOutcomeSucceeded, "")

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, errors.NewSystem("ACCOUNT_LOOKUP", err)
	}
	return account, nil
}

// Deposit credits external funds onto an owned ACTIVE account.
func (s *Service) Deposit(ctx context.Context, accountID, requesterID uuid.UUID, amount int64) (*entities.Transaction, int64, error) {
	if amount <= 0 {
		return nil, 0, errors.NewValidation(errors.ReasonInvalidAmount,
			"amount must be a positive integer of minor units")
	}
	if _, err := s.Get(ctx, accountID, requesterID); err != nil {
		return nil, 0, err
	}

	txn, balance, err := s.accounts.Deposit(ctx, accountID, requesterID, amount)
	if err != nil {
		switch {
		case stderrors.Is(err, errors.ErrNotFound):
			return nil, 0, errors.NewNotFound("account not found")
		case stderrors.Is(err, errors.ErrAccountNotActive):
			s.audit.Record(ctx, entities.ActorTypeUser, requesterID.String(), actionDeposit,
				entities.AuditTargetAccount, accountID.String(), entities.AuditOutcomeRejected, errors.ReasonToAccountNotActive)
			return nil, 0, errors.NewRejection(errors.ReasonToAccountNotActive,
				"deposits require an ACTIVE account")
		default:
			return nil, 0, errors.NewSystem("DEPOSIT_WRITE", err)
		}
	}

	s.audit.Record(ctx, entities.ActorTypeUser, requesterID.String(), actionDeposit,
		entities.AuditTargetTransaction, txn.TransactionID.String(), entities.AuditOutcomeSucceeded, "")
	return txn, balance, nil
}

// ReconciliationReport compares the cached balance with the folded ledger.
type ReconciliationReport struct {
	AccountID      uuid.UUID `json:"account_id"`
	CurrentBalance int64     `json:"current_balance"`
	LedgerSum      int64     `json:"ledger_sum"`
	Consistent     bool      `json:"consistent"`
}

// Reconcile recomputes the account's balance from its ledger history. A
// mismatch means an invariant was broken and is logged loudly.
func (s *Service) Reconcile(ctx context.Context, accountID, requesterID uuid.UUID) (*ReconciliationReport, error) {
	account, err := s.Get(ctx, accountID, requesterID)
	if err != nil {
		return nil, err
	}

	sum, err := s.ledger.SumByAccount(ctx, accountID)
	if err != nil {
		return nil, errors.NewSystem("LEDGER_SUM", err)
	}

	report := &ReconciliationReport{
		AccountID:      accountID,
		CurrentBalance: account.CurrentBalance,
		LedgerSum:      sum,
		Consistent:     account.CurrentBalance == sum,
	}
	if !report.Consistent {
		s.logger.Error("ledger does not reconcile with cached balance",
			zap.String("account_id", accountID.String()),
			zap.Int64("current_balance", account.CurrentBalance),
			zap.Int64("ledger_sum", sum))
	}
	return report, nil
}
