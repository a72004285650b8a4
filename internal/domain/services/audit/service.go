// Package audit provides the query surface over the append-only audit log
// and a recorder for actions taken outside the transfer executor.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgerline/ledger-service/internal/domain/entities"
	"github.com/ledgerline/ledger-service/internal/domain/repositories"
)

type Service struct {
	repo   repositories.AuditRepository
	logger *zap.Logger
}

func NewService(repo repositories.AuditRepository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Record appends one audit row. Failures are logged and swallowed: an audit
// write outside the transfer transaction must never fail the action it
// describes.
func (s *Service) Record(ctx context.Context, actorType entities.ActorType, actorID, action string, targetType entities.AuditTargetType, targetID string, outcome entities.AuditOutcome, reason string) {
	log := &entities.AuditLog{
		AuditLogID: uuid.New(),
		ActorType:  actorType,
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		Outcome:    outcome,
		CreatedAt:  time.Now().UTC(),
	}
	if targetID != "" {
		log.TargetID = &targetID
	}
	if reason != "" {
		log.Reason = &reason
	}

	if err := s.repo.Create(ctx, log); err != nil {
		s.logger.Error("audit write failed",
			zap.String("action", action),
			zap.String("actor_id", actorID),
			zap.Error(err))
	}
}

// Query returns a filtered page of audit rows with the total match count.
func (s *Service) Query(ctx context.Context, filter repositories.AuditLogFilter) ([]*entities.AuditLog, int64, error) {
	logs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
