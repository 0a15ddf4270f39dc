package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/taskforge/taskforge/internal/auth"
	"github.com/taskforge/taskforge/internal/domain/user"
)

// Keep this small interface so tests can fake it easily.
type IdentityResolver interface {
	ByToken(ctx context.Context, raw string) (user.User, error)
}

type AuthMiddleware struct {
	authn IdentityResolver
}

func NewAuthMiddleware(authn IdentityResolver) *AuthMiddleware {
	return &AuthMiddleware{authn: authn}
}

// RequireAuth runs the full identity pipeline: bearer token → verified
// claims → live user lookup → active gate. The resolved user lands on the
// gin context for handlers downstream.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			abortUnauthorized(c)
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			abortUnauthorized(c)
			return
		}

		u, err := m.authn.ByToken(c.Request.Context(), raw)
		if err != nil {
			abortUnauthorized(c)
			return
		}

		if err := auth.RequireActive(u); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "inactive_account",
					"message": "Inactive user",
				},
			})
			return
		}

		c.Set(CtxUser, u)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":    "unauthorized",
			"message": "Could not validate credentials",
		},
	})
}

// CurrentUser pulls the resolved identity off the context so handlers
// don't need to know the magic key.
func CurrentUser(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(CtxUser)
	if !ok {
		return user.User{}, false
	}
	u, ok := v.(user.User)
	return u, ok
}
