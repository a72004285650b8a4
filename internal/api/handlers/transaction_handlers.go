package handlers

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ledgerline/ledger-service/internal/api/middleware"
	"github.com/ledgerline/ledger-service/internal/domain/errors"
	"github.com/ledgerline/ledger-service/internal/domain/repositories"
)

type TransactionHandlers struct {
	transactions repositories.TransactionRepository
	ledger       repositories.LedgerRepository
}

func NewTransactionHandlers(transactions repositories.TransactionRepository, ledger repositories.LedgerRepository) *TransactionHandlers {
	return &TransactionHandlers{transactions: transactions, ledger: ledger}
}

// Get returns one transaction with its ledger rows. Only the initiator may
// read it; anyone else sees a 404.
func (h *TransactionHandlers) Get(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, errors.NewUnauthorized("not authenticated"))
		return
	}
	transactionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, errors.NewValidation("INVALID_TRANSACTION_ID", "transaction id must be a UUID"))
		return
	}

	txn, err := h.transactions.GetByID(c.Request.Context(), transactionID)
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			RespondError(c, errors.NewNotFound("transaction not found"))
			return
		}
		RespondError(c, errors.NewSystem("TRANSACTION_LOOKUP", err))
		return
	}
	if txn.InitiatorUserID != userID {
		RespondError(c, errors.NewNotFound("transaction not found"))
		return
	}

	entries, err := h.ledger.ListByTransaction(c.Request.Context(), transactionID)
	if err != nil {
		RespondError(c, errors.NewSystem("LEDGER_LIST", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transaction":    txn,
		"ledger_entries": entries,
	})
}

// List returns the authenticated user's transaction history, newest first.
func (h *TransactionHandlers) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, errors.NewUnauthorized("not authenticated"))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	txns, err := h.transactions.ListByInitiator(c.Request.Context(), userID, limit, offset)
	if err != nil {
		RespondError(c, errors.NewSystem("TRANSACTION_LIST", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns})
}
