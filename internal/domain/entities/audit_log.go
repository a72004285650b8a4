package entities

import (
	"time"

	"github.com/google/uuid"
)

// ActorType identifies who performed an audited action.
type ActorType string

const (
	ActorTypeUser    ActorType = "USER"
	ActorTypeService ActorType = "SERVICE"
	ActorTypeSystem  ActorType = "SYSTEM"
)

// SystemActorID is the actor_id recorded for service-initiated writes, such
// as the compensating FAILED record after a rollback.
const SystemActorID = "TRANSFER_SERVICE"

// AuditTargetType identifies what an audited action acted on.
type AuditTargetType string

const (
	AuditTargetAccount     AuditTargetType = "ACCOUNT"
	AuditTargetTransaction AuditTargetType = "TRANSACTION"
	AuditTargetSession     AuditTargetType = "SESSION"
	AuditTargetUser        AuditTargetType = "USER"
)

// AuditOutcome is the result recorded for an audited action.
type AuditOutcome string

const (
	AuditOutcomeAttempted AuditOutcome = "ATTEMPTED"
	AuditOutcomeSucceeded AuditOutcome = "SUCCEEDED"
	AuditOutcomeRejected  AuditOutcome = "REJECTED"
	AuditOutcomeFailed    AuditOutcome = "FAILED"
)

// AuditLog is one append-only audit row. Rows are never updated or deleted.
type AuditLog struct {
	AuditLogID uuid.UUID       `json:"audit_log_id" db:"audit_log_id"`
	ActorType  ActorType       `json:"actor_type" db:"actor_type"`
	ActorID    string          `json:"actor_id" db:"actor_id"`
	Action     string          `json:"action" db:"action"`
	TargetType AuditTargetType `json:"target_type" db:"target_type"`
	TargetID   *string         `json:"target_id,omitempty" db:"target_id"`
	Outcome    AuditOutcome    `json:"outcome" db:"outcome"`
	Reason     *string         `json:"reason,omitempty" db:"reason"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
