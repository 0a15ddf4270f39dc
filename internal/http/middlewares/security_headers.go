package middlewares

import "github.com/gin-gonic/gin"

var baselineHeaders = map[string]string{
	"X-Content-Type-Options":  "nosniff",
	"X-Frame-Options":         "DENY",
	"Referrer-Policy":         "no-referrer",
	"Content-Security-Policy": "default-src 'none'",
	"Cache-Control":           "no-store",
}

// SecurityHeaders sets a conservative header baseline on every
// response. The API serves JSON only, so nothing here needs relaxing.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		for k, v := range baselineHeaders {
			c.Header(k, v)
		}
		c.Next()
	}
}
