package transfer

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ledgerline/ledger-service/internal/domain/entities"
	"github.com/ledgerline/ledger-service/internal/domain/errors"
)

// fakeStore is an in-memory Store with snapshot-based rollback so commit and
// rollback semantics match the real database.
type fakeStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*entities.Account
	txns     map[uuid.UUID]*entities.Transaction
	byKey    map[string]uuid.UUID
	ledger   []*entities.LedgerEntry
	audits   []*entities.AuditLog

	failCredit      bool
	ledgerErr       error
	insertFailedErr error
	forceDuplicate  int
	onDuplicate     func(s *fakeStore) // runs after the duplicate rolls back, like a concurrent commit
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: make(map[uuid.UUID]*entities.Account),
		txns:     make(map[uuid.UUID]*entities.Transaction),
		byKey:    make(map[string]uuid.UUID),
	}
}

func keyOf(initiator, key uuid.UUID) string { return initiator.String() + "|" + key.String() }

type snapshot struct {
	accounts map[uuid.UUID]entities.Account
	txns     map[uuid.UUID]entities.Transaction
	byKey    map[string]uuid.UUID
	ledger   int
	audits   int
}

func (s *fakeStore) snap() snapshot {
	sn := snapshot{
		accounts: make(map[uuid.UUID]entities.Account, len(s.accounts)),
		txns:     make(map[uuid.UUID]entities.Transaction, len(s.txns)),
		byKey:    make(map[string]uuid.UUID, len(s.byKey)),
		ledger:   len(s.ledger),
		audits:   len(s.audits),
	}
	for id, a := range s.accounts {
		sn.accounts[id] = *a
	}
	for id, t := range s.txns {
		sn.txns[id] = *t
	}
	for k, v := range s.byKey {
		sn.byKey[k] = v
	}
	return sn
}

func (s *fakeStore) restore(sn snapshot) {
	s.accounts = make(map[uuid.UUID]*entities.Account, len(sn.accounts))
	for id, a := range sn.accounts {
		a := a
		s.accounts[id] = &a
	}
	s.txns = make(map[uuid.UUID]*entities.Transaction, len(sn.txns))
	for id, t := range sn.txns {
		t := t
		s.txns[id] = &t
	}
	s.byKey = make(map[string]uuid.UUID, len(sn.byKey))
	for k, v := range sn.byKey {
		s.byKey[k] = v
	}
	s.ledger = s.ledger[:sn.ledger]
	s.audits = s.audits[:sn.audits]
}

func (s *fakeStore) ExecTx(ctx context.Context, fn func(StoreTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sn := s.snap()
	if err := fn((*fakeTx)(s)); err != nil {
		s.restore(sn)
		if err == errors.ErrDuplicateKey && s.onDuplicate != nil {
			hook := s.onDuplicate
			s.onDuplicate = nil
			hook(s)
		}
		return err
	}
	return nil
}

func (s *fakeStore) FindByIdempotencyKey(ctx context.Context, initiator, key uuid.UUID) (*entities.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findLocked(initiator, key)
}

func (s *fakeStore) findLocked(initiator, key uuid.UUID) (*entities.Transaction, error) {
	id, ok := s.byKey[keyOf(initiator, key)]
	if !ok {
		return nil, errors.ErrNotFound
	}
	t := *s.txns[id]
	return &t, nil
}

func (s *fakeStore) InsertFailed(ctx context.Context, txn *entities.Transaction, audit *entities.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertFailedErr != nil {
		return s.insertFailedErr
	}
	t := *txn
	s.txns[t.TransactionID] = &t
	if t.IdempotencyKey != nil {
		s.byKey[keyOf(t.InitiatorUserID, *t.IdempotencyKey)] = t.TransactionID
	}
	s.audits = append(s.audits, audit)
	return nil
}

// fakeTx reuses the store's state; ExecTx holds the lock for the whole
// transaction.
type fakeTx fakeStore

func (t *fakeTx) InsertPending(ctx context.Context, txn *entities.Transaction) error {
	if t.forceDuplicate > 0 {
		t.forceDuplicate--
		return errors.ErrDuplicateKey
	}
	k := keyOf(txn.InitiatorUserID, *txn.IdempotencyKey)
	if _, exists := t.byKey[k]; exists {
		return errors.ErrDuplicateKey
	}
	cp := *txn
	t.txns[cp.TransactionID] = &cp
	t.byKey[k] = cp.TransactionID
	return nil
}

func (t *fakeTx) GetAccount(ctx context.Context, accountID uuid.UUID) (*entities.Account, error) {
	a, ok := t.accounts[accountID]
	if !ok {
		return nil, errors.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (t *fakeTx) DebitAccount(ctx context.Context, accountID uuid.UUID, amount int64) (bool, error) {
	a, ok := t.accounts[accountID]
	if !ok || !a.IsActive() || a.CurrentBalance < amount {
		return false, nil
	}
	a.CurrentBalance -= amount
	return true, nil
}

func (t *fakeTx) CreditAccount(ctx context.Context, accountID uuid.UUID, amount int64) (bool, error) {
	if t.failCredit {
		return false, nil
	}
	a, ok := t.accounts[accountID]
	if !ok || !a.IsActive() {
		return false, nil
	}
	a.CurrentBalance += amount
	return true, nil
}

func (t *fakeTx) InsertLedgerEntries(ctx context.Context, entries []*entities.LedgerEntry) error {
	if t.ledgerErr != nil {
		return t.ledgerErr
	}
	t.ledger = append(t.ledger, entries...)
	return nil
}

func (t *fakeTx) SetOutcome(ctx context.Context, id uuid.UUID, status entities.TransactionStatus, reason *string, payload []byte) error {
	txn, ok := t.txns[id]
	if !ok {
		return errors.ErrNotFound
	}
	txn.Status = status
	txn.FailureReason = reason
	txn.ResponsePayload = payload
	return nil
}

func (t *fakeTx) InsertAudit(ctx context.Context, log *entities.AuditLog) error {
	t.audits = append(t.audits, log)
	return nil
}

// ---- helpers ----

func seedAccount(s *fakeStore, status entities.AccountStatus, balance int64) uuid.UUID {
	id := uuid.New()
	s.accounts[id] = &entities.Account{
		AccountID:      id,
		UserID:         uuid.New(),
		Status:         status,
		CurrentBalance: balance,
	}
	return id
}

func newRequest(from, to uuid.UUID, amount int64) Request {
	return Request{
		InitiatorUserID: uuid.New(),
		FromAccountID:   from,
		ToAccountID:     to,
		Amount:          amount,
		IdempotencyKey:  uuid.New(),
	}
}

func auditOutcomes(s *fakeStore) []entities.AuditOutcome {
	out := make([]entities.AuditOutcome, 0, len(s.audits))
	for _, a := range s.audits {
		out = append(out, a.Outcome)
	}
	return out
}

// ---- tests ----

func TestExecuteSuccess(t *testing.T) {
	store := newFakeStore()
	from := seedAccount(store, entities.AccountStatusActive, 10_000)
	to := seedAccount(store, entities.AccountStatusActive, 500)
	svc := NewService(store, zap.NewNop())

	res, err := svc.Execute(context.Background(), newRequest(from, to, 2_500))
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	assert.False(t, res.Replayed)
	assert.NotEmpty(t, res.Payload)

	assert.Equal(t, int64(7_500), store.accounts[from].CurrentBalance)
	assert.Equal(t, int64(3_000), store.accounts[to].CurrentBalance)

	require.Len(t, store.ledger, 2)
	var sum int64
	for _, e := range store.ledger {
		sum += e.Amount
		assert.Equal(t, res.TransactionID, e.TransactionID)
	}
	assert.Zero(t, sum, "double-entry rows must sum to zero")

	txn := store.txns[res.TransactionID]
	require.NotNil(t, txn)
	assert.Equal(t, entities.TransactionStatusSucceeded, txn.Status)
	assert.JSONEq(t, string(res.Payload), string(txn.ResponsePayload))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(res.Payload, &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, string(entities.TransactionStatusSucceeded), body["status"])
	assert.Equal(t, float64(2_500), body["amount"])

	assert.Equal(t, []entities.AuditOutcome{
		entities.AuditOutcomeAttempted,
		entities.AuditOutcomeSucceeded,
	}, auditOutcomes(store))
}

func TestExecuteInsufficientFundsCommitsRejection(t *testing.T) {
	store := newFakeStore()
	from := seedAccount(store, entities.AccountStatusActive, 100)
	to := seedAccount(store, entities.AccountStatusActive, 0)
	svc := NewService(store, zap.NewNop())

	res, err := svc.Execute(context.Background(), newRequest(from, to, 2_500))
	require.NoError(t, err)
	assert.Equal(t, entities.TransactionStatusRejected, res.Status)
	assert.Equal(t, errors.ReasonInsufficientFunds, res.Reason)

	// Balances untouched, no ledger rows, but the REJECTED row and its
	// audit trail are committed.
	assert.Equal(t, int64(100), store.accounts[from].CurrentBalance)
	assert.Equal(t, int64(0), store.accounts[to].CurrentBalance)
	assert.Empty(t, store.ledger)

	txn := store.txns[res.TransactionID]
	require.NotNil(t, txn)
	assert.Equal(t, entities.TransactionStatusRejected, txn.Status)
	require.NotNil(t, txn.FailureReason)
	assert.Equal(t, errors.ReasonInsufficientFunds, *txn.FailureReason)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(res.Payload, &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, errors.ReasonInsufficientFunds, body["reason"])

	assert.Equal(t, []entities.AuditOutcome{
		entities.AuditOutcomeAttempted,
		entities.AuditOutcomeRejected,
	}, auditOutcomes(store))
}

func TestExecuteEligibilityRejections(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(store *fakeStore) (from, to uuid.UUID)
		reason string
	}{
		{
			name: "from account missing",
			setup: func(store *fakeStore) (uuid.UUID, uuid.UUID) {
				return uuid.New(), seedAccount(store, entities.AccountStatusActive, 0)
			},
			reason: errors.ReasonFromAccountNotFound,
		},
		{
			name: "from account frozen",
			setup: func(store *fakeStore) (uuid.UUID, uuid.UUID) {
				return seedAccount(store, entities.AccountStatusFrozen, 5_000),
					seedAccount(store, entities.AccountStatusActive, 0)
			},
			reason: errors.ReasonFromAccountNotActive,
		},
		{
			name: "to account missing",
			setup: func(store *fakeStore) (uuid.UUID, uuid.UUID) {
				return seedAccount(store, entities.AccountStatusActive, 5_000), uuid.New()
			},
			reason: errors.ReasonToAccountNotFound,
		},
		{
			name: "to account terminated",
			setup: func(store *fakeStore) (uuid.UUID, uuid.UUID) {
				return seedAccount(store, entities.AccountStatusActive, 5_000),
					seedAccount(store, entities.AccountStatusTerminated, 0)
			},
			reason: errors.ReasonToAccountNotActive,
		},
		{
			name: "from checked before to",
			setup: func(store *fakeStore) (uuid.UUID, uuid.UUID) {
				// Both sides are bad; the sender's problem wins.
				return seedAccount(store, entities.AccountStatusFrozen, 5_000), uuid.New()
			},
			reason: errors.ReasonFromAccountNotActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			from, to := tt.setup(store)
			svc := NewService(store, zap.NewNop())

			res, err := svc.Execute(context.Background(), newRequest(from, to, 1_000))
			require.NoError(t, err)
			assert.Equal(t, entities.TransactionStatusRejected, res.Status)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Empty(t, store.ledger)
		})
	}
}

func TestExecuteValidationWritesNothing(t *testing.T) {
	store := newFakeStore()
	from := seedAccount(store, entities.AccountStatusActive, 5_000)
	to := seedAccount(store, entities.AccountStatusActive, 0)
	svc := NewService(store, zap.NewNop())

	tests := []struct {
		name   string
		mutate func(r *Request)
		reason string
	}{
		{"zero amount", func(r *Request) { r.Amount = 0 }, errors.ReasonInvalidAmount},
		{"negative amount", func(r *Request) { r.Amount = -5 }, errors.ReasonInvalidAmount},
		{"same account", func(r *Request) { r.ToAccountID = r.FromAccountID }, errors.ReasonSameAccount},
		{"missing idempotency key", func(r *Request) { r.IdempotencyKey = uuid.Nil }, errors.ReasonMissingIdempotencyKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest(from, to, 1_000)
			tt.mutate(&req)

			_, err := svc.Execute(context.Background(), req)
			de, ok := errors.AsDomainError(err)
			require.True(t, ok)
			assert.Equal(t, errors.CategoryValidation, de.Category)
			assert.Equal(t, tt.reason, de.Code)
		})
	}

	// Input faults never reach the database.
	assert.Empty(t, store.txns)
	assert.Empty(t, store.audits)
}

func TestExecuteCreditFailureRollsBackAndCompensates(t *testing.T) {
	store := newFakeStore()
	from := seedAccount(store, entities.AccountStatusActive, 10_000)
	to := seedAccount(store, entities.AccountStatusActive, 0)
	store.failCredit = true
	svc := NewService(store, zap.NewNop())

	req := newRequest(from, to, 2_500)
	_, err := svc.Execute(context.Background(), req)
	de, ok := errors.AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CategorySystem, de.Category)
	assert.Equal(t, errors.ReasonCreditFailedRollback, de.Reason)

	// The debit must not survive the rollback.
	assert.Equal(t, int64(10_000), store.accounts[from].CurrentBalance)
	assert.Equal(t, int64(0), store.accounts[to].CurrentBalance)
	assert.Empty(t, store.ledger)

	// One compensating FAILED row, recorded by the service actor.
	require.Len(t, store.txns, 1)
	for _, txn := range store.txns {
		assert.Equal(t, entities.TransactionStatusFailed, txn.Status)
		require.NotNil(t, txn.FailureReason)
		assert.Equal(t, "TRANSFER_SYSTEM_FAILURE: CREDIT_FAILED_ROLLBACK", *txn.FailureReason)
	}
	require.Len(t, store.audits, 1)
	assert.Equal(t, entities.ActorTypeSystem, store.audits[0].ActorType)
	assert.Equal(t, entities.SystemActorID, store.audits[0].ActorID)
	assert.Equal(t, entities.AuditOutcomeFailed, store.audits[0].Outcome)
}

func TestExecuteLedgerWriteFailureCompensates(t *testing.T) {
	store := newFakeStore()
	from := seedAccount(store, entities.AccountStatusActive, 10_000)
	to := seedAccount(store, entities.AccountStatusActive, 0)
	store.ledgerErr = assert.AnError
	svc := NewService(store, zap.NewNop())

	_, err := svc.Execute(context.Background(), newRequest(from, to, 2_500))
	de, ok := errors.AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CategorySystem, de.Category)
	assert.Equal(t, "LEDGER_WRITE", de.Reason)

	assert.Equal(t, int64(10_000), store.accounts[from].CurrentBalance)
	require.Len(t, store.txns, 1)
	for _, txn := range store.txns {
		assert.Equal(t, entities.TransactionStatusFailed, txn.Status)
	}
}

func TestExecuteReplaySuccessReturnsSameBytes(t *testing.T) {
	store := newFakeStore()
	from := seedAccount(store, entities.AccountStatusActive, 10_000)
	to := seedAccount(store, entities.AccountStatusActive, 0)
	svc := NewService(store, zap.NewNop())

	req := newRequest(from, to, 2_500)
	first, err := svc.Execute(context.Background(), req)
	require.NoError(t, err)

	second, err := svc.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.Equal(t, first.Payload, second.Payload, "replay must be byte-identical")

	// Funds moved exactly once.
	assert.Equal(t, int64(7_500), store.accounts[from].CurrentBalance)
	assert.Equal(t, int64(2_500), store.accounts[to].CurrentBalance)
	assert.Len(t, store.ledger, 2)
}

func TestExecuteReplayRejectionReturnsSameBytes(t *testing.T) {
	store := newFakeStore()
	from := seedAccount(store, entities.AccountStatusActive, 100)
	to := seedAccount(store, entities.AccountStatusActive, 0)
	svc := NewService(store, zap.NewNop())

	req := newRequest(from, to, 2_500)
	first, err := svc.Execute(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, entities.TransactionStatusRejected, first.Status)

	second, err := svc.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Payload, second.Payload)
	assert.Equal(t, errors.ReasonInsufficientFunds, second.Reason)
}

func TestExecuteReplayPendingIsInFlight(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, zap.NewNop())

	req := newRequest(uuid.New(), uuid.New(), 1_000)
	pending := svc.newTransaction(req)
	store.txns[pending.TransactionID] = pending
	store.byKey[keyOf(req.InitiatorUserID, req.IdempotencyKey)] = pending.TransactionID

	_, err := svc.Execute(context.Background(), req)
	de, ok := errors.AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CategoryConflict, de.Category)
	assert.Equal(t, errors.ReasonInFlight, de.Code)
}

func TestExecuteReplayFailedIsPreviousAttemptFailed(t *testing.T) {
	store := newFakeStore()
	from := seedAccount(store, entities.AccountStatusActive, 10_000)
	to := seedAccount(store, entities.AccountStatusActive, 0)
	store.failCredit = true
	svc := NewService(store, zap.NewNop())

	req := newRequest(from, to, 2_500)
	_, err := svc.Execute(context.Background(), req)
	require.Error(t, err)

	store.failCredit = false
	_, err = svc.Execute(context.Background(), req)
	de, ok := errors.AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CategoryRejection, de.Category)
	assert.Equal(t, errors.ReasonPreviousAttemptFailed, de.Code)

	// The failed key stays burned; no funds ever move under it.
	assert.Equal(t, int64(10_000), store.accounts[from].CurrentBalance)
}

func TestCompensateLostRaceIsNotAnError(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	store := newFakeStore()
	from := seedAccount(store, entities.AccountStatusActive, 10_000)
	to := seedAccount(store, entities.AccountStatusActive, 0)
	store.failCredit = true
	store.insertFailedErr = errors.ErrDuplicateKey
	svc := NewService(store, zap.New(core))

	_, err := svc.Execute(context.Background(), newRequest(from, to, 2_500))
	require.Error(t, err)

	// A duplicate during compensation means another attempt already owns
	// the outcome; that is expected, not an operational failure.
	assert.Zero(t, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	assert.Equal(t, 1,
		logs.FilterMessage("compensating record skipped, outcome already recorded").Len())
}

func TestExecuteAdmissionRaceResolvesToWinner(t *testing.T) {
	store := newFakeStore()
	from := seedAccount(store, entities.AccountStatusActive, 10_000)
	to := seedAccount(store, entities.AccountStatusActive, 0)
	svc := NewService(store, zap.NewNop())

	req := newRequest(from, to, 2_500)

	// First insert loses the race; the winner's SUCCEEDED row appears
	// before the retry looks again.
	var winnerID uuid.UUID
	store.forceDuplicate = 1
	store.onDuplicate = func(s *fakeStore) {
		winner := svc.newTransaction(req)
		winner.Status = entities.TransactionStatusSucceeded
		payload, _ := entities.TransferPayload{
			Success:       true,
			Version:       entities.PayloadVersion,
			TransactionID: winner.TransactionID.String(),
			Status:        string(entities.TransactionStatusSucceeded),
			FromAccountID: from.String(),
			ToAccountID:   to.String(),
			Amount:        req.Amount,
		}.Marshal()
		winner.ResponsePayload = payload
		s.txns[winner.TransactionID] = winner
		s.byKey[keyOf(req.InitiatorUserID, req.IdempotencyKey)] = winner.TransactionID
		winnerID = winner.TransactionID
	}

	res, err := svc.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, winnerID, res.TransactionID)
	assert.Equal(t, entities.TransactionStatusSucceeded, res.Status)
}
