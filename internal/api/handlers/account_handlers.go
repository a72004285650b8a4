package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ledgerline/ledger-service/internal/api/middleware"
	"github.com/ledgerline/ledger-service/internal/domain/entities"
	"github.com/ledgerline/ledger-service/internal/domain/errors"
	"github.com/ledgerline/ledger-service/internal/domain/repositories"
	"github.com/ledgerline/ledger-service/internal/domain/services/account"
)

type AccountHandlers struct {
	accounts *account.Service
	ledger   repositories.LedgerRepository
}

func NewAccountHandlers(accounts *account.Service, ledger repositories.LedgerRepository) *AccountHandlers {
	return &AccountHandlers{accounts: accounts, ledger: ledger}
}

func (h *AccountHandlers) Create(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, errors.NewUnauthorized("not authenticated"))
		return
	}

	acct, err := h.accounts.Create(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, acct)
}

func (h *AccountHandlers) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, errors.NewUnauthorized("not authenticated"))
		return
	}

	accounts, err := h.accounts.List(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

func (h *AccountHandlers) Get(c *gin.Context) {
	userID, accountID, ok := h.pathAccount(c)
	if !ok {
		return
	}

	acct, err := h.accounts.Get(c.Request.Context(), accountID, userID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, acct)
}

func (h *AccountHandlers) Freeze(c *gin.Context) {
	h.lifecycle(c, h.accounts.Freeze)
}

func (h *AccountHandlers) Unfreeze(c *gin.Context) {
	h.lifecycle(c, h.accounts.Unfreeze)
}

func (h *AccountHandlers) Terminate(c *gin.Context) {
	h.lifecycle(c, h.accounts.Terminate)
}

type depositRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

func (h *AccountHandlers) Deposit(c *gin.Context) {
	userID, accountID, ok := h.pathAccount(c)
	if !ok {
		return
	}

	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, errors.NewValidation("INVALID_BODY", "amount is required"))
		return
	}

	txn, balance, err := h.accounts.Deposit(c.Request.Context(), accountID, userID, req.Amount)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"transaction_id":  txn.TransactionID,
		"account_id":      accountID,
		"amount":          txn.Amount,
		"current_balance": balance,
	})
}

func (h *AccountHandlers) Ledger(c *gin.Context) {
	userID, accountID, ok := h.pathAccount(c)
	if !ok {
		return
	}

	// Ownership check before touching the ledger.
	if _, err := h.accounts.Get(c.Request.Context(), accountID, userID); err != nil {
		RespondError(c, err)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, err := h.ledger.ListByAccount(c.Request.Context(), accountID, limit, offset)
	if err != nil {
		RespondError(c, errors.NewSystem("LEDGER_LIST", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *AccountHandlers) Reconcile(c *gin.Context) {
	userID, accountID, ok := h.pathAccount(c)
	if !ok {
		return
	}

	report, err := h.accounts.Reconcile(c.Request.Context(), accountID, userID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *AccountHandlers) lifecycle(c *gin.Context, op func(ctx context.Context, accountID, requesterID uuid.UUID) (*entities.Account, error)) {
	userID, accountID, ok := h.pathAccount(c)
	if !ok {
		return
	}

	acct, err := op(c.Request.Context(), accountID, userID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, acct)
}

func (h *AccountHandlers) pathAccount(c *gin.Context) (userID, accountID uuid.UUID, ok bool) {
	userID, authed := middleware.UserID(c)
	if !authed {
		RespondError(c, errors.NewUnauthorized("not authenticated"))
		return uuid.Nil, uuid.Nil, false
	}
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, errors.NewValidation("INVALID_ACCOUNT_ID", "account id must be a UUID"))
		return uuid.Nil, uuid.Nil, false
	}
	return userID, accountID, true
}
