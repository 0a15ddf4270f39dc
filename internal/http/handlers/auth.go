package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taskforge/taskforge/internal/auth"
	"github.com/taskforge/taskforge/internal/config"
	"github.com/taskforge/taskforge/internal/domain/user"
	"github.com/taskforge/taskforge/internal/http/middlewares"
	"github.com/taskforge/taskforge/internal/observability"
	"github.com/taskforge/taskforge/internal/repo/postgres"
	"github.com/taskforge/taskforge/internal/security"
)

type UserWriter interface {
	Create(ctx context.Context, email, passwordHash, fullName string, role user.Role) (user.User, error)
}

type Authenticator interface {
	ByPassword(ctx context.Context, email, password string) (user.User, error)
	ByRefreshToken(ctx context.Context, raw string) (user.User, error)
}

type AuthHandler struct {
	userWriter UserWriter
	authn      Authenticator
	jwt        *auth.Manager
	prom       *observability.Prom
}

func NewAuthHandler(userWriter UserWriter, authn Authenticator, jwtManager *auth.Manager, prom *observability.Prom) *AuthHandler {
	return &AuthHandler{
		userWriter: userWriter,
		authn:      authn,
		jwt:        jwtManager,
		prom:       prom,
	}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	FullName string `json:"full_name" binding:"omitempty,max=255"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	User         user.User `json:"user"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)

	defer cancel()

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	// every registration starts as a regular user

	u, err := h.userWriter.Create(cctx, req.Email, hash, req.FullName, user.RoleUser)

	if err != nil {
		if err == postgres.ErrEmailTaken {
			RespondBadRequest(ctx, "email_taken", "Email already registered")
			return
		}

		slog.Default().ErrorContext(ctx.Request.Context(), "user_create_failed", "err", err)
		RespondInternal(ctx, "Could not create user")
		return
	}

	ctx.JSON(http.StatusCreated, u)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}
	// short timeout for DB lookup plus the deliberately slow bcrypt check
	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	u, err := h.authn.ByPassword(cctx, req.Email, req.Password)

	if err != nil {
		h.countFailure("credentials")
		RespondUnAuthorized(ctx, "unauthorized", "Invalid email or password")
		return
	}

	// correct credentials on a disabled account is its own failure mode
	if err := auth.RequireActive(u); err != nil {
		h.countFailure("inactive")
		RespondBadRequest(ctx, "inactive_account", "User account is inactive")
		return
	}

	h.respondWithTokens(ctx, u)
}

// Refresh exchanges a refresh-kind token for a fresh pair. Stateless: the
// user is re-fetched and re-gated, nothing is stored server-side.
func (h *AuthHandler) Refresh(ctx *gin.Context) {
	var req RefreshRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	u, err := h.authn.ByRefreshToken(cctx, req.RefreshToken)

	if err != nil {
		h.countFailure("token")
		RespondUnAuthorized(ctx, "unauthorized", "Could not validate credentials")
		return
	}

	if err := auth.RequireActive(u); err != nil {
		h.countFailure("inactive")
		RespondBadRequest(ctx, "inactive_account", "User account is inactive")
		return
	}

	h.respondWithTokens(ctx, u)
}

// Me returns the identity the auth middleware resolved for this request.
func (h *AuthHandler) Me(ctx *gin.Context) {
	u, ok := middlewares.CurrentUser(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Could not validate credentials")
		return
	}

	ctx.JSON(http.StatusOK, u)
}

func (h *AuthHandler) respondWithTokens(ctx *gin.Context, u user.User) {
	accessToken, err := h.jwt.GenerateAccessToken(u)

	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	refreshToken, err := h.jwt.GenerateRefreshToken(u)

	if err != nil {
		RespondInternal(ctx, "Could not generate refresh token")
		return
	}

	ctx.JSON(http.StatusOK, TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		User:         u,
	})
}

func (h *AuthHandler) countFailure(stage string) {
	if h.prom != nil {
		h.prom.AuthFailuresTotal.WithLabelValues(stage).Inc()
	}
}
