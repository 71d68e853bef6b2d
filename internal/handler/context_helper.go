package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/escolaris/academia-api/internal/middleware"
	"github.com/escolaris/academia-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
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

func scopeFromContext(c *gin.Context) (models.Scope, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		return models.Scope{}, false
	}
	scope := claims.Scope()
	return scope, scope.Valid()
}
