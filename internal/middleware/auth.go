package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/imyashkale/authbroker/internal/logger"
)

// AdminAuth guards the registry and client administration surface with the
// static bearer token from configuration. The comparison is constant time.
func AdminAuth(adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			logger.WithField("path", c.Request.URL.Path).Warn("Admin authentication failed: missing or invalid authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Missing or invalid authorization header",
			})
			return
		}

		presented := authHeader[len(prefix):]
		if subtle.ConstantTimeCompare([]byte(presented), []byte(adminToken)) != 1 {
			logger.WithField("path", c.Request.URL.Path).Warn("Admin authentication failed: token mismatch")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Invalid admin token",
			})
			return
		}

		c.Next()
	}
}
