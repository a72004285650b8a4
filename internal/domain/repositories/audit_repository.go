package repositories

import (
	"context"
	"time"

	"github.com/ledgerline/ledger-service/internal/domain/entities"
)

// AuditLogFilter narrows audit queries. Zero-value fields are ignored.
type AuditLogFilter struct {
	ActorType  *entities.ActorType
	ActorID    *string
	Action     *string
	TargetType *entities.AuditTargetType
	TargetID   *string
	Outcome    *entities.AuditOutcome
	StartDate  *time.Time
	EndDate    *time.Time
	Limit      int
	Offset     int
}

// AuditRepository appends and reads audit rows. There is no update or
// delete: the log is append-only.
type AuditRepository interface {
	Create(ctx context.Context, log *entities.AuditLog) error
	List(ctx context.Context, filter AuditLogFilter) ([]*entities.AuditLog, error)
	Count(ctx context.Context, filter AuditLogFilter) (int64, error)
}
