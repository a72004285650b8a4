package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/ledgerline/ledger-service/internal/domain/entities"
	"github.com/ledgerline/ledger-service/internal/domain/repositories"
)

type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, log *entities.AuditLog) error {
	query := `
		INSERT INTO audit_logs (audit_log_id, actor_type, actor_id, action, target_type, target_id, outcome, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		log.AuditLogID, log.ActorType, log.ActorID, log.Action,
		log.TargetType, log.TargetID, log.Outcome, log.Reason, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func (r *AuditRepository) List(ctx context.Context, filter repositories.AuditLogFilter) ([]*entities.AuditLog, error) {
	where, args := buildAuditFilter(filter)

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := fmt.Sprintf(`
		SELECT audit_log_id, actor_type, actor_id, action, target_type, target_id, outcome, reason, created_at
		FROM audit_logs %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, limit, filter.Offset)

	var logs []*entities.AuditLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, nil
}

func (r *AuditRepository) Count(ctx context.Context, filter repositories.AuditLogFilter) (int64, error) {
	where, args := buildAuditFilter(filter)

	var count int64
	query := "SELECT COUNT(*) FROM audit_logs " + where
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count audit logs: %w", err)
	}
	return count, nil
}

func buildAuditFilter(filter repositories.AuditLogFilter) (string, []interface{}) {
	var sb strings.Builder
	var args []interface{}

	sb.WriteString("WHERE 1=1")
	add := func(clause string, value interface{}) {
		args = append(args, value)
		sb.WriteString(fmt.Sprintf(" AND %s = $%d", clause, len(args)))
	}

	if filter.ActorType != nil {
		add("actor_type", *filter.ActorType)
	}
	if filter.ActorID != nil {
		add("actor_id", *filter.ActorID)
	}
	if filter.Action != nil {
		add("action", *filter.Action)
	}
	if filter.TargetType != nil {
		add("target_type", *filter.TargetType)
	}
	if filter.TargetID != nil {
		add("target_id", *filter.TargetID)
	}
	if filter.Outcome != nil {
		add("outcome", *filter.Outcome)
	}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		sb.WriteString(fmt.Sprintf(" AND created_at >= $%d", len(args)))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		sb.WriteString(fmt.Sprintf(" AND created_at <= $%d", len(args)))
	}

	return sb.String(), args
}
