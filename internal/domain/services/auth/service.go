// Package auth implements registration, login and token lifecycle.
package auth

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ledgerline/ledger-service/internal/domain/entities"
	"github.com/ledgerline/ledger-service/internal/domain/errors"
	"github.com/ledgerline/ledger-service/internal/domain/repositories"
	"github.com/ledgerline/ledger-service/internal/domain/services/audit"
	"github.com/ledgerline/ledger-service/internal/infrastructure/config"
	pkgauth "github.com/ledgerline/ledger-service/pkg/auth"
)

const (
	actionRegister = "USER_REGISTER"
	actionLogin    = "LOGIN"
	actionLogout   = "LOGOUT"
	actionRefresh  = "TOKEN_REFRESH"

	minUsernameLength = 3
)

type Service struct {
	users     repositories.UserRepository
	blacklist *pkgauth.TokenBlacklist
	audit     *audit.Service
	jwt       config.JWTConfig
	security  config.SecurityConfig
	logger    *zap.Logger
}

func NewService(users repositories.UserRepository, blacklist *pkgauth.TokenBlacklist, auditSvc *audit.Service, jwtCfg config.JWTConfig, securityCfg config.SecurityConfig, logger *zap.Logger) *Service {
	return &Service{
		users:     users,
		blacklist: blacklist,
		audit:     auditSvc,
		jwt:       jwtCfg,
		security:  securityCfg,
		logger:    logger,
	}
}

// Register creates a user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, username, password string) (*entities.User, error) {
	if len(username) < minUsernameLength {
		return nil, errors.NewValidation("INVALID_USERNAME", "username must be at least 3 characters")
	}
	if len(password) < s.security.PasswordMinLength {
		return nil, errors.NewValidation("INVALID_PASSWORD", "password is too short")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.security.BcryptCost)
	if err != nil {
		return nil, errors.NewSystem("PASSWORD_HASH", err)
	}

	user := &entities.User{
		UserID:       uuid.New(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if stderrors.Is(err, errors.ErrUsernameTaken) {
			return nil, errors.NewConflict("USERNAME_TAKEN", "username is already registered")
		}
		return nil, errors.NewSystem("USER_CREATE", err)
	}

	s.audit.Record(ctx, entities.ActorTypeUser, user.UserID.String(), actionRegister,
		entities.AuditTargetUser, user.UserID.String(), entities.AuditOutcomeSucceeded, "")
	return user, nil
}

// Login verifies credentials and issues a token pair. Failed attempts are
// audited with the username as target so lockout tooling can count them.
func (s *Service) Login(ctx context.Context, username, password string) (*pkgauth.TokenPair, *entities.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			s.audit.Record(ctx, entities.ActorTypeUser, username, actionLogin,
				entities.AuditTargetSession, "", entities.AuditOutcomeFailed, "UNKNOWN_USER")
			return nil, nil, errors.NewUnauthorized("invalid username or password")
		}
		return nil, nil, errors.NewSystem("USER_LOOKUP", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.audit.Record(ctx, entities.ActorTypeUser, user.UserID.String(), actionLogin,
			entities.AuditTargetSession, "", entities.AuditOutcomeFailed, "BAD_PASSWORD")
		return nil, nil, errors.NewUnauthorized("invalid username or password")
	}

	pair, err := pkgauth.GenerateTokenPair(user.UserID, user.Username, s.jwt.Secret, s.jwt.Issuer, s.jwt.AccessTTL, s.jwt.RefreshTTL)
	if err != nil {
		return nil, nil, errors.NewSystem("TOKEN_SIGN", err)
	}

	s.audit.Record(ctx, entities.ActorTypeUser, user.UserID.String(), actionLogin,
		entities.AuditTargetSession, "", entities.AuditOutcomeSucceeded, "")
	return pair, user, nil
}

// Logout revokes the presented access token until it would have expired.
func (s *Service) Logout(ctx context.Context, claims *pkgauth.Claims) error {
	if claims.ExpiresAt == nil {
		return errors.NewUnauthorized("token has no expiry")
	}
	if err := s.blacklist.Blacklist(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return errors.NewSystem("TOKEN_REVOKE", err)
	}

	s.audit.Record(ctx, entities.ActorTypeUser, claims.UserID.String(), actionLogout,
		entities.AuditTargetSession, claims.ID, entities.AuditOutcomeSucceeded, "")
	return nil
}

// Refresh rotates a refresh token: the old token is revoked and a fresh
// pair issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*pkgauth.TokenPair, error) {
	claims, err := pkgauth.ValidateToken(refreshToken, s.jwt.Secret)
	if err != nil {
		return nil, errors.NewUnauthorized("invalid refresh token")
	}

	revoked, err := s.blacklist.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, errors.NewSystem("TOKEN_CHECK", err)
	}
	if revoked {
		return nil, errors.NewUnauthorized("refresh token has been revoked")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, errors.NewUnauthorized("invalid refresh token subject")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewUnauthorized("user no longer exists")
		}
		return nil, errors.NewSystem("USER_LOOKUP", err)
	}

	if claims.ExpiresAt != nil {
		if err := s.blacklist.Blacklist(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			return nil, errors.NewSystem("TOKEN_REVOKE", err)
		}
	}

	pair, err := pkgauth.GenerateTokenPair(user.UserID, user.Username, s.jwt.Secret, s.jwt.Issuer, s.jwt.AccessTTL, s.jwt.RefreshTTL)
	if err != nil {
		return nil, errors.NewSystem("TOKEN_SIGN", err)
	}

	s.audit.Record(ctx, entities.ActorTypeUser, user.UserID.String(), actionRefresh,
		entities.AuditTargetSession, claims.ID, entities.AuditOutcomeSucceeded, "")
	return pair, nil
}
