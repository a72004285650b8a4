// Package handlers implements the HTTP endpoints.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ledgerline/ledger-service/internal/domain/errors"
)

// RespondError maps a domain error onto the wire. System faults hide their
// cause; everything else surfaces its code.
func RespondError(c *gin.Context, err error) {
	de, ok := errors.AsDomainError(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "INTERNAL",
				"message": "internal server error",
			},
			"request_id": c.GetString("request_id"),
		})
		return
	}

	c.JSON(statusFor(de.Category), gin.H{
		"error": gin.H{
			"code":    de.Code,
			"message": de.Message,
		},
		"request_id": c.GetString("request_id"),
	})
}

func statusFor(category errors.Category) int {
	switch category {
	case errors.CategoryValidation:
		return http.StatusBadRequest
	case errors.CategoryRejection:
		return http.StatusUnprocessableEntity
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
