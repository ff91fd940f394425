package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/nucleo-eljunko/comodato-api/internal/middleware"
	"github.com/nucleo-eljunko/comodato-api/internal/models"
)

// currentClaims returns the JWT claims the auth middleware stored, or
// nil for anonymous requests.
func currentClaims(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}
