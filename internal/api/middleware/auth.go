package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	pkgauth "github.com/ledgerline/ledger-service/pkg/auth"
)

const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
	ContextClaims   = "claims"
)

// Authentication validates the bearer token and rejects revoked tokens.
func Authentication(secret string, blacklist *pkgauth.TokenBlacklist) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			unauthorized(c, "missing bearer token")
			return
		}

		claims, err := pkgauth.ValidateToken(strings.TrimPrefix(header, "Bearer "), secret)
		if err != nil {
			unauthorized(c, "invalid or expired token")
			return
		}

		revoked, err := blacklist.IsBlacklisted(c.Request.Context(), claims.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":      "token validation unavailable",
				"request_id": c.GetString("request_id"),
			})
			c.Abort()
			return
		}
		if revoked {
			unauthorized(c, "token has been revoked")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// UserID returns the authenticated user's ID from the gin context.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error":      message,
		"request_id": c.GetString("request_id"),
	})
	c.Abort()
}
