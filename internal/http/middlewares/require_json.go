package middlewares

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireJSON rejects bodied requests whose Content-Type is not JSON.
// Requests without a body (GET, DELETE, ...) pass through untouched.
func RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			mt, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
			if err != nil || mt != "application/json" {
				c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
					"error": gin.H{
						"code":      "unsupported_media_type",
						"message":   "Content-Type must be application/json",
						"requestId": c.GetString(CtxRequestID),
					},
				})
				return
			}
		}
		c.Next()
	}
}
