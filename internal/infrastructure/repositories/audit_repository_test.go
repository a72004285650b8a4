package repositories

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ledgerline/ledger-service/internal/domain/entities"
	"github.com/ledgerline/ledger-service/internal/domain/repositories"
)

func TestBuildAuditFilterEmpty(t *testing.T) {
	where, args := buildAuditFilter(repositories.AuditLogFilter{})
	assert.Equal(t, "WHERE 1=1", where)
	assert.Empty(t, args)
}

func TestBuildAuditFilterNumbersPlaceholdersSequentially(t *testing.T) {
	actorType := entities.ActorTypeUser
	actorID := "some-user"
	outcome := entities.AuditOutcomeFailed
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	where, args := buildAuditFilter(repositories.AuditLogFilter{
		ActorType: &actorType,
		ActorID:   &actorID,
		Outcome:   &outcome,
		StartDate: &start,
		EndDate:   &end,
	})

	assert.Equal(t,
		"WHERE 1=1 AND actor_type = $1 AND actor_id = $2 AND outcome = $3 AND created_at >= $4 AND created_at <= $5",
		where)
	assert.Equal(t, []interface{}{actorType, actorID, outcome, start, end}, args)
}

func TestBuildAuditFilterTargetFields(t *testing.T) {
	targetType := entities.AuditTargetTransaction
	targetID := "txn-1"
	action := "TRANSFER"

	where, args := buildAuditFilter(repositories.AuditLogFilter{
		Action:     &action,
		TargetType: &targetType,
		TargetID:   &targetID,
	})

	assert.Equal(t,
		"WHERE 1=1 AND action = $1 AND target_type = $2 AND target_id = $3",
		where)
	assert.Len(t, args, 3)
}
