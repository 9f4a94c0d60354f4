package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-dept-api/internal/middleware"
	"github.com/noah-isme/uni-dept-api/internal/models"
)

func identityFromContext(c *gin.Context) *models.IdentityClaims {
	value, exists := c.Get(middleware.ContextIdentityKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.IdentityClaims)
	if !ok {
		return nil
	}
	return claims
}
