package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/uni-dept-api/internal/models"
)

// ContextIdentityKey is the gin context key storing identity claims.
const ContextIdentityKey = "currentIdentity"

// Identity attaches token claims to the request context when a bearer
// token is present. Requests without a token pass through untouched,
// so handlers can record who decided a request without gating access.
func Identity(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.Next()
			return
		}

		claims := &models.IdentityClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.Next()
			return
		}

		c.Set(ContextIdentityKey, claims)
		c.Next()
	}
}

// IdentityFrom extracts claims previously attached by Identity.
func IdentityFrom(c *gin.Context) (*models.IdentityClaims, bool) {
	value, exists := c.Get(ContextIdentityKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*models.IdentityClaims)
	return claims, ok
}
