// Package transfer implements atomic account-to-account transfers with
// idempotent replay, double-entry ledger rows and audit records.
package transfer

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgerline/ledger-service/internal/domain/entities"
	"github.com/ledgerline/ledger-service/internal/domain/errors"
	"github.com/ledgerline/ledger-service/pkg/metrics"
)

const actionTransfer = "TRANSFER"

// maxAttempts bounds re-entry after losing the idempotency admission race.
// One retry suffices: the winner's row resolves the second lookup.
const maxAttempts = 2

// Service is the transfer executor.
type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a transfer executor.
func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

// Execute runs one transfer attempt end to end. Rejections and replays
// come back as a Result; validation faults and system failures come back
// as *errors.DomainError.
func (s *Service) Execute(ctx context.Context, req Request) (*Result, error) {
	start := s.now()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		prior, err := s.store.FindByIdempotencyKey(ctx, req.InitiatorUserID, req.IdempotencyKey)
		if err != nil && !stderrors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewSystem("IDEMPOTENCY_LOOKUP", err)
		}
		if prior != nil {
			return s.replay(prior)
		}

		res, err := s.executeOnce(ctx, req)
		if stderrors.Is(err, errors.ErrDuplicateKey) {
			// Lost the admission race. The unique constraint poisoned the
			// transaction, so it was rolled back; re-enter with a fresh one.
			s.logger.Info("transfer admission race lost, retrying lookup",
				zap.String("initiator_user_id", req.InitiatorUserID.String()),
				zap.String("idempotency_key", req.IdempotencyKey.String()))
			continue
		}
		if err != nil {
			metrics.RecordTransfer(string(entities.TransactionStatusFailed), systemReason(err), req.Amount, s.now().Sub(start).Seconds())
			return nil, err
		}

		metrics.RecordTransfer(string(res.Status), res.Reason, req.Amount, s.now().Sub(start).Seconds())
		return res, nil
	}

	return nil, errors.NewSystem("IDEMPOTENCY_CONFLICT",
		stderrors.New("admission retry exhausted without a visible winner"))
}

func validateRequest(req Request) error {
	if req.Amount <= 0 {
		return errors.NewValidation(errors.ReasonInvalidAmount, "amount must be a positive integer of minor units")
	}
	if req.FromAccountID == req.ToAccountID {
		return errors.NewValidation(errors.ReasonSameAccount, "from and to accounts must differ")
	}
	if req.IdempotencyKey == uuid.Nil {
		return errors.NewValidation(errors.ReasonMissingIdempotencyKey, "Idempotency-Key header is required")
	}
	return nil
}

// executeOnce runs the full execution pipeline inside one database
// transaction. A business rejection commits (the REJECTED row and its audit
// are the desired outcome); a system fault rolls everything back and then
// records a compensating FAILED row independently.
func (s *Service) executeOnce(ctx context.Context, req Request) (*Result, error) {
	txn := s.newTransaction(req)
	var res *Result

	err := s.store.ExecTx(ctx, func(st StoreTx) error {
		if err := st.InsertPending(ctx, txn); err != nil {
			if stderrors.Is(err, errors.ErrDuplicateKey) {
				return err
			}
			return errors.NewSystem("PENDING_INSERT", err)
		}
		if err := st.InsertAudit(ctx, s.userAudit(txn, entities.AuditOutcomeAttempted, "")); err != nil {
			return errors.NewSystem("AUDIT_WRITE", err)
		}

		reject := func(code string) error {
			r, err := s.writeRejection(ctx, st, txn, code)
			if err != nil {
				return err
			}
			res = r
			return nil
		}

		// Eligibility, checked in fixed order so concurrent requests
		// observe one deterministic first failure.
		from, err := st.GetAccount(ctx, req.FromAccountID)
		if err != nil && !stderrors.Is(err, errors.ErrNotFound) {
			return errors.NewSystem("ACCOUNT_LOOKUP", err)
		}
		if from == nil {
			return reject(errors.ReasonFromAccountNotFound)
		}
		if !from.IsActive() {
			return reject(errors.ReasonFromAccountNotActive)
		}
		to, err := st.GetAccount(ctx, req.ToAccountID)
		if err != nil && !stderrors.Is(err, errors.ErrNotFound) {
			return errors.NewSystem("ACCOUNT_LOOKUP", err)
		}
		if to == nil {
			return reject(errors.ReasonToAccountNotFound)
		}
		if !to.IsActive() {
			return reject(errors.ReasonToAccountNotActive)
		}

		// The debit predicate re-checks status and balance atomically;
		// zero rows updated after the checks above means the balance fell
		// short between read and write.
		debited, err := st.DebitAccount(ctx, req.FromAccountID, req.Amount)
		if err != nil {
			return errors.NewSystem("DEBIT_WRITE", err)
		}
		if !debited {
			return reject(errors.ReasonInsufficientFunds)
		}

		credited, err := st.CreditAccount(ctx, req.ToAccountID, req.Amount)
		if err != nil {
			return errors.NewSystem("CREDIT_WRITE", err)
		}
		if !credited {
			// The receiving account changed state mid-transfer. The debit
			// must not survive, so this is a fault, not a rejection.
			return errors.NewSystem(errors.ReasonCreditFailedRollback,
				stderrors.New("credit applied to zero rows after eligibility passed"))
		}

		entries := []*entities.LedgerEntry{
			{LedgerEntryID: uuid.New(), TransactionID: txn.TransactionID, AccountID: req.FromAccountID, Amount: -req.Amount, CreatedAt: txn.CreatedAt},
			{LedgerEntryID: uuid.New(), TransactionID: txn.TransactionID, AccountID: req.ToAccountID, Amount: req.Amount, CreatedAt: txn.CreatedAt},
		}
		if err := st.InsertLedgerEntries(ctx, entries); err != nil {
			return errors.NewSystem("LEDGER_WRITE", err)
		}

		payload, err := entities.TransferPayload{
			Success:       true,
			Version:       entities.PayloadVersion,
			TransactionID: txn.TransactionID.String(),
			Status:        string(entities.TransactionStatusSucceeded),
			FromAccountID: req.FromAccountID.String(),
			ToAccountID:   req.ToAccountID.String(),
			Amount:        req.Amount,
			CompletedAt:   s.now().UTC().Format(time.RFC3339),
		}.Marshal()
		if err != nil {
			return errors.NewSystem("PAYLOAD_ENCODE", err)
		}
		if err := st.SetOutcome(ctx, txn.TransactionID, entities.TransactionStatusSucceeded, nil, payload); err != nil {
			return errors.NewSystem("OUTCOME_WRITE", err)
		}
		if err := st.InsertAudit(ctx, s.userAudit(txn, entities.AuditOutcomeSucceeded, "")); err != nil {
			return errors.NewSystem("AUDIT_WRITE", err)
		}

		res = &Result{
			TransactionID: txn.TransactionID,
			Status:        entities.TransactionStatusSucceeded,
			Payload:       payload,
		}
		return nil
	})
	if err != nil {
		if stderrors.Is(err, errors.ErrDuplicateKey) {
			return nil, err
		}
		s.compensate(ctx, txn, err)
		return nil, err
	}

	s.logger.Info("transfer completed",
		zap.String("transaction_id", txn.TransactionID.String()),
		zap.String("status", string(res.Status)),
		zap.String("reason", res.Reason),
		zap.Int64("amount", req.Amount))
	return res, nil
}

func (s *Service) newTransaction(req Request) *entities.Transaction {
	from, to, key := req.FromAccountID, req.ToAccountID, req.IdempotencyKey
	return &entities.Transaction{
		TransactionID:   uuid.New(),
		Type:            entities.TransactionTypeTransfer,
		Status:          entities.TransactionStatusPending,
		InitiatorUserID: req.InitiatorUserID,
		FromAccountID:   &from,
		ToAccountID:     &to,
		Amount:          req.Amount,
		IdempotencyKey:  &key,
		CreatedAt:       s.now().UTC(),
	}
}

// writeRejection records the terminal REJECTED outcome inside the open
// transaction. The commit is intentional: a rejection is a result, not a
// fault.
func (s *Service) writeRejection(ctx context.Context, st StoreTx, txn *entities.Transaction, code string) (*Result, error) {
	payload, err := entities.TransferPayload{
		Success:       false,
		Version:       entities.PayloadVersion,
		TransactionID: txn.TransactionID.String(),
		Status:        string(entities.TransactionStatusRejected),
		FromAccountID: txn.FromAccountID.String(),
		ToAccountID:   txn.ToAccountID.String(),
		Amount:        txn.Amount,
		Reason:        code,
	}.Marshal()
	if err != nil {
		return nil, errors.NewSystem("PAYLOAD_ENCODE", err)
	}
	if err := st.SetOutcome(ctx, txn.TransactionID, entities.TransactionStatusRejected, &code, payload); err != nil {
		return nil, errors.NewSystem("OUTCOME_WRITE", err)
	}
	if err := st.InsertAudit(ctx, s.userAudit(txn, entities.AuditOutcomeRejected, code)); err != nil {
		return nil, errors.NewSystem("AUDIT_WRITE", err)
	}
	return &Result{
		TransactionID: txn.TransactionID,
		Status:        entities.TransactionStatusRejected,
		Reason:        code,
		Payload:       payload,
	}, nil
}

// compensate records the rolled-back attempt as a FAILED transaction with a
// SYSTEM audit row. It runs in its own transaction and must not inherit the
// caller's cancellation: the fault may be the cancellation itself.
func (s *Service) compensate(ctx context.Context, txn *entities.Transaction, cause error) {
	reason := systemFailureMessage(cause)

	failed := *txn
	failed.Status = entities.TransactionStatusFailed
	failed.FailureReason = &reason

	targetID := txn.TransactionID.String()
	audit := &entities.AuditLog{
		AuditLogID: uuid.New(),
		ActorType:  entities.ActorTypeSystem,
		ActorID:    entities.SystemActorID,
		Action:     actionTransfer,
		TargetType: entities.AuditTargetTransaction,
		TargetID:   &targetID,
		Outcome:    entities.AuditOutcomeFailed,
		Reason:     &reason,
		CreatedAt:  s.now().UTC(),
	}

	if err := s.store.InsertFailed(context.WithoutCancel(ctx), &failed, audit); err != nil {
		if stderrors.Is(err, errors.ErrDuplicateKey) {
			// A concurrent attempt already recorded an outcome under this
			// key; their row wins and nothing was lost.
			s.logger.Info("compensating record skipped, outcome already recorded",
				zap.String("transaction_id", txn.TransactionID.String()),
				zap.String("reason", reason))
			return
		}
		s.logger.Error("compensating FAILED write did not land",
			zap.String("transaction_id", txn.TransactionID.String()),
			zap.String("reason", reason),
			zap.Error(err))
		return
	}
	s.logger.Warn("transfer failed, compensating record written",
		zap.String("transaction_id", txn.TransactionID.String()),
		zap.String("reason", reason))
}

// replay resolves a request whose key already admitted an attempt. Terminal
// outcomes return their stored payload; transient and failed ones map to
// dedicated conditions.
func (s *Service) replay(prior *entities.Transaction) (*Result, error) {
	metrics.IdempotentReplaysTotal.WithLabelValues(string(prior.Status)).Inc()

	switch prior.Status {
	case entities.TransactionStatusSucceeded, entities.TransactionStatusRejected:
		payload, err := entities.CanonicalizePayload(prior.ResponsePayload)
		if err != nil {
			return nil, errors.NewSystem("PAYLOAD_DECODE", err)
		}
		reason := ""
		if prior.FailureReason != nil {
			reason = *prior.FailureReason
		}
		return &Result{
			TransactionID: prior.TransactionID,
			Status:        prior.Status,
			Reason:        reason,
			Payload:       payload,
			Replayed:      true,
		}, nil
	case entities.TransactionStatusPending:
		return nil, errors.NewConflict(errors.ReasonInFlight,
			"a transfer with this idempotency key is still being processed")
	case entities.TransactionStatusFailed:
		return nil, errors.NewRejection(errors.ReasonPreviousAttemptFailed,
			"the previous attempt with this idempotency key failed; retry with a new key")
	default:
		return nil, errors.NewSystem("UNKNOWN_STATUS",
			stderrors.New("transaction in unrecognized status "+string(prior.Status)))
	}
}

func (s *Service) userAudit(txn *entities.Transaction, outcome entities.AuditOutcome, reason string) *entities.AuditLog {
	targetID := txn.TransactionID.String()
	log := &entities.AuditLog{
		AuditLogID: uuid.New(),
		ActorType:  entities.ActorTypeUser,
		ActorID:    txn.InitiatorUserID.String(),
		Action:     actionTransfer,
		TargetType: entities.AuditTargetTransaction,
		TargetID:   &targetID,
		Outcome:    outcome,
		CreatedAt:  s.now().UTC(),
	}
	if reason != "" {
		log.Reason = &reason
	}
	return log
}

func systemFailureMessage(err error) string {
	if de, ok := errors.AsDomainError(err); ok {
		return de.Message
	}
	return "TRANSFER_SYSTEM_FAILURE: INTERNAL"
}

func systemReason(err error) string {
	if de, ok := errors.AsDomainError(err); ok {
		return de.Reason
	}
	return "INTERNAL"
}
