package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ledgerline/ledger-service/internal/api/middleware"
	"github.com/ledgerline/ledger-service/internal/domain/errors"
	"github.com/ledgerline/ledger-service/internal/domain/services/auth"
	pkgauth "github.com/ledgerline/ledger-service/pkg/auth"
)

type AuthHandlers struct {
	auth *auth.Service
}

func NewAuthHandlers(authSvc *auth.Service) *AuthHandlers {
	return &AuthHandlers{auth: authSvc}
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandlers) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, errors.NewValidation("INVALID_BODY", "username and password are required"))
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user_id":  user.UserID,
		"username": user.Username,
	})
}

func (h *AuthHandlers) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, errors.NewValidation("INVALID_BODY", "username and password are required"))
		return
	}

	pair, user, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":       user.UserID,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_at":    pair.ExpiresAt,
	})
}

func (h *AuthHandlers) Logout(c *gin.Context) {
	v, ok := c.Get(middleware.ContextClaims)
	if !ok {
		RespondError(c, errors.NewUnauthorized("not authenticated"))
		return
	}
	claims := v.(*pkgauth.Claims)

	if err := h.auth.Logout(c.Request.Context(), claims); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, errors.NewValidation("INVALID_BODY", "refresh_token is required"))
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_at":    pair.ExpiresAt,
	})
}
