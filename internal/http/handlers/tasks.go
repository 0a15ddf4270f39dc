package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taskforge/taskforge/internal/cache"
	"github.com/taskforge/taskforge/internal/config"
	"github.com/taskforge/taskforge/internal/domain/task"
	"github.com/taskforge/taskforge/internal/http/middlewares"
)

type TaskStore interface {
	Create(ctx context.Context, ownerID int64, req task.CreateTaskRequest) (task.Task, error)
	GetByID(ctx context.Context, id int64) (task.Task, error)
	List(ctx context.Context, filter task.ListFilter) ([]task.Task, error)
	Count(ctx context.Context, filter task.ListFilter) (int, error)
	Update(ctx context.Context, id int64, req task.UpdateTaskRequest) (task.Task, error)
	Delete(ctx context.Context, id int64) error
}

type TasksHandler struct {
	repo  TaskStore
	cache *cache.TaskListCache
}

func NewTasksHandler(repo TaskStore, listCache *cache.TaskListCache) *TasksHandler {
	return &TasksHandler{
		repo:  repo,
		cache: listCache,
	}
}

type TaskListResponse struct {
	Tasks []task.Task `json:"tasks"`
	Total int         `json:"total"`
}

func (h *TasksHandler) CreateTask(ctx *gin.Context) {
	u, ok := middlewares.CurrentUser(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Could not validate credentials")
		return
	}

	var req task.CreateTaskRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	t, err := h.repo.Create(cctx, u.ID, req)

	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "task_create_failed", "err", err)
		RespondInternal(ctx, "Could not create task")
		return
	}

	h.invalidateListCache(cctx)

	ctx.JSON(http.StatusCreated, t)
}

// ListTasks scopes results by role: admins page over every task, everyone
// else over their own. Count always uses the same filter as the page so the
// metadata cannot disagree with the rows.
func (h *TasksHandler) ListTasks(ctx *gin.Context) {
	u, ok := middlewares.CurrentUser(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Could not validate credentials")
		return
	}

	skip, limit, ok := parsePageParams(ctx)

	if !ok {
		return
	}

	filter := task.ListFilter{Offset: skip, Limit: limit}
	scope := "all"

	if !u.IsAdmin() {
		owner := u.ID
		filter.OwnerID = &owner
		scope = "owner:" + strconv.FormatInt(owner, 10)
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	cacheKey := h.listCacheKey(cctx, scope, skip, limit)

	if cacheKey != "" {
		if payload, hit := h.cache.GetPage(cctx, cacheKey); hit {
			ctx.Data(http.StatusOK, "application/json; charset=utf-8", payload)
			return
		}
	}

	tasks, err := h.repo.List(cctx, filter)

	if err != nil {
		RespondInternal(ctx, "Could not list tasks")
		return
	}

	total, err := h.repo.Count(cctx, filter)

	if err != nil {
		RespondInternal(ctx, "Could not list tasks")
		return
	}

	resp := TaskListResponse{Tasks: tasks, Total: total}

	if cacheKey != "" {
		if payload, err := json.Marshal(resp); err == nil {
			h.cache.SetPage(cctx, cacheKey, payload)
		}
	}

	ctx.JSON(http.StatusOK, resp)
}

func (h *TasksHandler) GetTask(ctx *gin.Context) {
	h.withOwnedTask(ctx, func(cctx context.Context, t task.Task) {
		ctx.JSON(http.StatusOK, t)
	})
}

func (h *TasksHandler) UpdateTask(ctx *gin.Context) {
	var req task.UpdateTaskRequest

	if !BindJSON(ctx, &req) {
		return
	}

	h.withOwnedTask(ctx, func(cctx context.Context, t task.Task) {
		updated, err := h.repo.Update(cctx, t.ID, req)

		if err != nil {
			if errors.Is(err, task.ErrNotFound) {
				// deleted between the ownership check and the write
				RespondNotFound(ctx, "Task not found")
				return
			}
			RespondInternal(ctx, "Could not update task")
			return
		}

		h.invalidateListCache(cctx)

		ctx.JSON(http.StatusOK, updated)
	})
}

func (h *TasksHandler) DeleteTask(ctx *gin.Context) {
	h.withOwnedTask(ctx, func(cctx context.Context, t task.Task) {
		err := h.repo.Delete(cctx, t.ID)

		if err != nil {
			if errors.Is(err, task.ErrNotFound) {
				RespondNotFound(ctx, "Task not found")
				return
			}
			RespondInternal(ctx, "Could not delete task")
			return
		}

		h.invalidateListCache(cctx)

		ctx.Status(http.StatusNoContent)
	})
}

// withOwnedTask runs the shared access-control pipeline for single-task
// operations: resolve identity → fetch → 404 if absent → ownership/admin
// check → 403 if denied → hand the task to fn.
func (h *TasksHandler) withOwnedTask(ctx *gin.Context, fn func(cctx context.Context, t task.Task)) {
	u, ok := middlewares.CurrentUser(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Could not validate credentials")
		return
	}

	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)

	if err != nil {
		RespondUnprocessable(ctx, "Invalid task id", gin.H{
			"fields": []FieldError{{Field: "id", Rule: "type", Message: "must be an integer"}},
		})
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	t, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			RespondNotFound(ctx, "Task not found")
			return
		}
		RespondInternal(ctx, "Could not fetch task")
		return
	}

	if !u.CanAccess(t.OwnerID) {
		RespondForbidden(ctx, "Not enough permissions")
		return
	}

	fn(cctx, t)
}

func (h *TasksHandler) listCacheKey(ctx context.Context, scope string, skip, limit int) string {
	if h.cache == nil {
		return ""
	}

	key, err := h.cache.PageKey(ctx, scope, skip, limit)

	if err != nil {
		// cache unavailable; serve from the store
		return ""
	}

	return key
}

func (h *TasksHandler) invalidateListCache(ctx context.Context) {
	if h.cache != nil {
		h.cache.Invalidate(ctx)
	}
}

func parsePageParams(ctx *gin.Context) (skip, limit int, ok bool) {
	skip, ok = queryInt(ctx, "skip", 0, 0, 1<<31-1)
	if !ok {
		return 0, 0, false
	}

	limit, ok = queryInt(ctx, "limit", 100, 1, 1000)
	if !ok {
		return 0, 0, false
	}

	return skip, limit, true
}

func queryInt(ctx *gin.Context, name string, fallback, min, max int) (int, bool) {
	raw := ctx.Query(name)

	if raw == "" {
		return fallback, true
	}

	v, err := strconv.Atoi(raw)

	if err != nil || v < min || v > max {
		RespondUnprocessable(ctx, "Invalid query parameter", gin.H{
			"fields": []FieldError{{Field: name, Rule: "range", Message: "must be an integer within range"}},
		})
		return 0, false
	}

	return v, true
}
