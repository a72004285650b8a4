package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ledgerline/ledger-service/internal/domain/entities"
	"github.com/ledgerline/ledger-service/internal/domain/errors"
	"github.com/ledgerline/ledger-service/internal/domain/repositories"
	"github.com/ledgerline/ledger-service/internal/domain/services/audit"
	"github.com/ledgerline/ledger-service/internal/infrastructure/config"
)

type mockUserRepo struct {
	byUsername map[string]*entities.User
	byID       map[uuid.UUID]*entities.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		byUsername: make(map[string]*entities.User),
		byID:       make(map[uuid.UUID]*entities.User),
	}
}

func (m *mockUserRepo) Create(ctx context.Context, user *entities.User) error {
	if _, exists := m.byUsername[user.Username]; exists {
		return errors.ErrUsernameTaken
	}
	m.byUsername[user.Username] = user
	m.byID[user.UserID] = user
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, userID uuid.UUID) (*entities.User, error) {
	u, ok := m.byID[userID]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	u, ok := m.byUsername[username]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return u, nil
}

type mockAuditRepo struct {
	logs []*entities.AuditLog
}

func (m *mockAuditRepo) Create(ctx context.Context, log *entities.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func (m *mockAuditRepo) List(ctx context.Context, filter repositories.AuditLogFilter) ([]*entities.AuditLog, error) {
	return m.logs, nil
}

func (m *mockAuditRepo) Count(ctx context.Context, filter repositories.AuditLogFilter) (int64, error) {
	return int64(len(m.logs)), nil
}

func newTestService() (*Service, *mockUserRepo, *mockAuditRepo) {
	users := newMockUserRepo()
	auditRepo := &mockAuditRepo{}
	svc := NewService(
		users,
		nil, // blacklist is only touched by logout and refresh
		audit.NewService(auditRepo, zap.NewNop()),
		config.JWTConfig{Secret: "test-secret", Issuer: "test", AccessTTL: 900, RefreshTTL: 3600},
		config.SecurityConfig{BcryptCost: bcrypt.MinCost, PasswordMinLength: 8},
		zap.NewNop(),
	)
	return svc, users, auditRepo
}

func TestRegisterHashesPassword(t *testing.T) {
	svc, users, _ := newTestService()

	user, err := svc.Register(context.Background(), "alice", "correct-horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct-horse", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword(
		[]byte(users.byUsername["alice"].PasswordHash), []byte("correct-horse")))
}

func TestRegisterRejectsWeakInput(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Register(context.Background(), "al", "correct-horse")
	de, ok := errors.AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, "INVALID_USERNAME", de.Code)

	_, err = svc.Register(context.Background(), "alice", "short")
	de, ok = errors.AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, "INVALID_PASSWORD", de.Code)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Register(context.Background(), "alice", "correct-horse")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "alice", "other-password")
	de, ok := errors.AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, "USERNAME_TAKEN", de.Code)
	assert.Equal(t, errors.CategoryConflict, de.Category)
}

func TestLoginIssuesTokens(t *testing.T) {
	svc, _, auditRepo := newTestService()

	registered, err := svc.Register(context.Background(), "alice", "correct-horse")
	require.NoError(t, err)

	pair, user, err := svc.Login(context.Background(), "alice", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, registered.UserID, user.UserID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	var outcomes []entities.AuditOutcome
	for _, l := range auditRepo.logs {
		if l.Action == "LOGIN" {
			outcomes = append(outcomes, l.Outcome)
		}
	}
	assert.Equal(t, []entities.AuditOutcome{entities.AuditOutcomeSucceeded}, outcomes)
}

func TestLoginBadCredentials(t *testing.T) {
	svc, _, auditRepo := newTestService()

	_, err := svc.Register(context.Background(), "alice", "correct-horse")
	require.NoError(t, err)

	// Unknown user and wrong password look identical to the caller.
	_, _, err = svc.Login(context.Background(), "mallory", "whatever-pass")
	de, ok := errors.AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CategoryUnauthorized, de.Category)

	_, _, err = svc.Login(context.Background(), "alice", "wrong-password")
	de2, ok := errors.AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, de.Message, de2.Message)

	var failed int
	for _, l := range auditRepo.logs {
		if l.Action == "LOGIN" && l.Outcome == entities.AuditOutcomeFailed {
			failed++
		}
	}
	assert.Equal(t, 2, failed)
}
