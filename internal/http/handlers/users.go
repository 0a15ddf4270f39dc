package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taskforge/taskforge/internal/config"
	"github.com/taskforge/taskforge/internal/domain/user"
)

type UserLister interface {
	List(ctx context.Context, offset, limit int) ([]user.User, error)
	Count(ctx context.Context) (int, error)
}

// UsersHandler serves admin-only user management endpoints. Routes using it
// sit behind RequireAdmin.
type UsersHandler struct {
	repo UserLister
}

func NewUsersHandler(repo UserLister) *UsersHandler {
	return &UsersHandler{repo: repo}
}

type UserListResponse struct {
	Users []user.User `json:"users"`
	Total int         `json:"total"`
}

func (h *UsersHandler) ListUsers(ctx *gin.Context) {
	skip, limit, ok := parsePageParams(ctx)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	users, err := h.repo.List(cctx, skip, limit)

	if err != nil {
		RespondInternal(ctx, "Could not list users")
		return
	}

	total, err := h.repo.Count(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not list users")
		return
	}

	ctx.JSON(http.StatusOK, UserListResponse{Users: users, Total: total})
}
