package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const APIKeyHeader = "X-API-Key"

// APIKey rejects requests without the configured key. An empty key disables the check.
func APIKey(required string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if required == "" {
			c.Next()
			return
		}
		key := c.GetHeader(APIKeyHeader)
		if key == "" {
			key = c.Query("api_key")
		}
		if key != required {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Invalid API key",
				},
			})
			return
		}
		c.Next()
	}
}
