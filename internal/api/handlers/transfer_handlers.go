package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ledgerline/ledger-service/internal/api/middleware"
	"github.com/ledgerline/ledger-service/internal/domain/entities"
	"github.com/ledgerline/ledger-service/internal/domain/errors"
	"github.com/ledgerline/ledger-service/internal/domain/services/transfer"
)

const idempotencyKeyHeader = "Idempotency-Key"

type TransferHandlers struct {
	transfers *transfer.Service
}

func NewTransferHandlers(transfers *transfer.Service) *TransferHandlers {
	return &TransferHandlers{transfers: transfers}
}

type createTransferRequest struct {
	FromAccountID uuid.UUID `json:"from_account_id" binding:"required"`
	ToAccountID   uuid.UUID `json:"to_account_id" binding:"required"`
	Amount        int64     `json:"amount" binding:"required"`
}

// Create executes a transfer. The response body is the canonical payload
// bytes so a replayed request is byte-identical to the original response.
func (h *TransferHandlers) Create(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, errors.NewUnauthorized("not authenticated"))
		return
	}

	var req createTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, errors.NewValidation("INVALID_BODY", "request body is malformed"))
		return
	}

	rawKey := c.GetHeader(idempotencyKeyHeader)
	if rawKey == "" {
		RespondError(c, errors.NewValidation(errors.ReasonMissingIdempotencyKey,
			"Idempotency-Key header is required"))
		return
	}
	key, err := uuid.Parse(rawKey)
	if err != nil {
		RespondError(c, errors.NewValidation("INVALID_IDEMPOTENCY_KEY",
			"Idempotency-Key must be a UUID"))
		return
	}

	result, err := h.transfers.Execute(c.Request.Context(), transfer.Request{
		InitiatorUserID: userID,
		FromAccountID:   req.FromAccountID,
		ToAccountID:     req.ToAccountID,
		Amount:          req.Amount,
		IdempotencyKey:  key,
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	c.Data(statusForResult(result), "application/json", result.Payload)
}

func statusForResult(result *transfer.Result) int {
	switch {
	case result.Status == entities.TransactionStatusRejected:
		return http.StatusUnprocessableEntity
	case result.Replayed:
		return http.StatusOK
	default:
		return http.StatusCreated
	}
}
