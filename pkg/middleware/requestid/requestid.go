package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header is the wire name of the request identifier.
const Header = "X-Request-ID"

const contextKey = "request_id"

// Middleware propagates the caller-supplied request ID or mints a new
// one, exposing it on both the gin context and the response.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(contextKey, id)
		c.Writer.Header().Set(Header, id)
		c.Next()
	}
}

// Value returns the request ID stored in the gin context.
func Value(c *gin.Context) string {
	if v, ok := c.Get(contextKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
