package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireAdmin gates admin-scoped routes. Must run after RequireAuth.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)

		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing identity context",
				},
			})
			return
		}
		if !u.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "forbidden",
					"message": "Not enough permissions",
				},
			})
			return
		}
		c.Next()
	}
}
