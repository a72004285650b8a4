package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ledgerline/ledger-service/internal/api/middleware"
	"github.com/ledgerline/ledger-service/internal/domain/entities"
	"github.com/ledgerline/ledger-service/internal/domain/errors"
	"github.com/ledgerline/ledger-service/internal/domain/repositories"
	"github.com/ledgerline/ledger-service/internal/domain/services/audit"
)

type AuditHandlers struct {
	audit *audit.Service
}

func NewAuditHandlers(auditSvc *audit.Service) *AuditHandlers {
	return &AuditHandlers{audit: auditSvc}
}

// List returns the caller's own audit trail, filtered by query parameters.
func (h *AuditHandlers) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, errors.NewUnauthorized("not authenticated"))
		return
	}

	// Scope to the caller's own actions.
	actorType := entities.ActorTypeUser
	actorID := userID.String()
	filter := repositories.AuditLogFilter{
		ActorType: &actorType,
		ActorID:   &actorID,
	}

	if v := c.Query("action"); v != "" {
		filter.Action = &v
	}
	if v := c.Query("target_type"); v != "" {
		tt := entities.AuditTargetType(v)
		filter.TargetType = &tt
	}
	if v := c.Query("target_id"); v != "" {
		filter.TargetID = &v
	}
	if v := c.Query("outcome"); v != "" {
		o := entities.AuditOutcome(v)
		filter.Outcome = &o
	}
	if v := c.Query("start"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.StartDate = &t
		}
	}
	if v := c.Query("end"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.EndDate = &t
		}
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	logs, total, err := h.audit.Query(c.Request.Context(), filter)
	if err != nil {
		RespondError(c, errors.NewSystem("AUDIT_QUERY", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"audit_logs": logs,
		"total":      total,
	})
}
