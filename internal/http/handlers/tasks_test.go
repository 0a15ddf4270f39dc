package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/taskforge/taskforge/internal/domain/task"
	"github.com/taskforge/taskforge/internal/domain/user"
	"github.com/taskforge/taskforge/internal/http/handlers"
	"github.com/taskforge/taskforge/internal/http/middlewares"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

// Fake repository implementation of the handlers.TaskStore interface

type fakeTasksRepo struct {
	createFn func(ctx context.Context, ownerID int64, req task.CreateTaskRequest) (task.Task, error)
	getFn    func(ctx context.Context, id int64) (task.Task, error)
	listFn   func(ctx context.Context, filter task.ListFilter) ([]task.Task, error)
	countFn  func(ctx context.Context, filter task.ListFilter) (int, error)
	updateFn func(ctx context.Context, id int64, req task.UpdateTaskRequest) (task.Task, error)
	deleteFn func(ctx context.Context, id int64) error
}

func (f *fakeTasksRepo) Create(ctx context.Context, ownerID int64, req task.CreateTaskRequest) (task.Task, error) {
	if f.createFn != nil {
		return f.createFn(ctx, ownerID, req)
	}
	return task.Task{}, nil
}

func (f *fakeTasksRepo) GetByID(ctx context.Context, id int64) (task.Task, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return task.Task{}, task.ErrNotFound
}

func (f *fakeTasksRepo) List(ctx context.Context, filter task.ListFilter) ([]task.Task, error) {
	if f.listFn != nil {
		return f.listFn(ctx, filter)
	}
	return []task.Task{}, nil
}

func (f *fakeTasksRepo) Count(ctx context.Context, filter task.ListFilter) (int, error) {
	if f.countFn != nil {
		return f.countFn(ctx, filter)
	}
	return 0, nil
}

func (f *fakeTasksRepo) Update(ctx context.Context, id int64, req task.UpdateTaskRequest) (task.Task, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, req)
	}
	return task.Task{}, nil
}

func (f *fakeTasksRepo) Delete(ctx context.Context, id int64) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

// helper that mounts the task routes with a fixed pre-resolved identity

func setupTasksRouter(repo handlers.TaskStore, current user.User) *gin.Engine {
	r := gin.New()

	r.Use(func(c *gin.Context) {
		c.Set(middlewares.CtxUser, current)
		c.Next()
	})

	h := handlers.NewTasksHandler(repo, nil)

	r.POST("/tasks", h.CreateTask)
	r.GET("/tasks", h.ListTasks)
	r.GET("/tasks/:id", h.GetTask)
	r.PUT("/tasks/:id", h.UpdateTask)
	r.DELETE("/tasks/:id", h.DeleteTask)

	return r
}

func owner() user.User {
	return user.User{ID: 1, Email: "owner@x.com", Role: user.RoleUser, IsActive: true}
}

func stranger() user.User {
	return user.User{ID: 2, Email: "other@x.com", Role: user.RoleUser, IsActive: true}
}

func admin() user.User {
	return user.User{ID: 3, Email: "admin@x.com", Role: user.RoleAdmin, IsActive: true}
}

func storedTask() task.Task {
	return task.Task{ID: 10, Title: "T1", OwnerID: 1}
}

func repoWithTask() *fakeTasksRepo {
	return &fakeTasksRepo{
		getFn: func(ctx context.Context, id int64) (task.Task, error) {
			if id == 10 {
				return storedTask(), nil
			}
			return task.Task{}, task.ErrNotFound
		},
		updateFn: func(ctx context.Context, id int64, req task.UpdateTaskRequest) (task.Task, error) {
			t := storedTask()
			if req.Title != nil {
				t.Title = *req.Title
			}
			return t, nil
		},
	}
}

func TestCreateTaskSetsOwner(t *testing.T) {
	var gotOwner int64

	repo := &fakeTasksRepo{
		createFn: func(ctx context.Context, ownerID int64, req task.CreateTaskRequest) (task.Task, error) {
			gotOwner = ownerID
			return task.Task{ID: 10, Title: req.Title, Description: req.Description, OwnerID: ownerID}, nil
		},
	}

	r := setupTasksRouter(repo, owner())

	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewBufferString(`{"title":"T1"}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d want %d body=%s", w.Code, http.StatusCreated, w.Body.String())
	}

	if gotOwner != 1 {
		t.Fatalf("owner: got %d want 1", gotOwner)
	}

	var created task.Task
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if created.OwnerID != 1 {
		t.Fatalf("response owner_id: got %d want 1", created.OwnerID)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing title", body: `{}`},
		{name: "empty title", body: `{"title":""}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := setupTasksRouter(&fakeTasksRepo{}, owner())

			req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status: got %d want %d body=%s", w.Code, http.StatusUnprocessableEntity, w.Body.String())
			}
		})
	}
}

// The owner-or-admin rule applies identically to read, update and delete.
func TestTaskOwnershipMatrix(t *testing.T) {
	ops := []struct {
		method string
		path   string
		body   string
		okCode int
	}{
		{method: http.MethodGet, path: "/tasks/10", okCode: http.StatusOK},
		{method: http.MethodPut, path: "/tasks/10", body: `{"title":"T2"}`, okCode: http.StatusOK},
		{method: http.MethodDelete, path: "/tasks/10", okCode: http.StatusNoContent},
	}

	callers := []struct {
		name string
		u    user.User
		want func(okCode int) int
	}{
		{name: "owner", u: owner(), want: func(ok int) int { return ok }},
		{name: "non-owner", u: stranger(), want: func(int) int { return http.StatusForbidden }},
		{name: "admin", u: admin(), want: func(ok int) int { return ok }},
	}

	for _, op := range ops {
		for _, caller := range callers {
			t.Run(op.method+" as "+caller.name, func(t *testing.T) {
				r := setupTasksRouter(repoWithTask(), caller.u)

				var req *http.Request
				if op.body != "" {
					req = httptest.NewRequest(op.method, op.path, bytes.NewBufferString(op.body))
					req.Header.Set("Content-Type", "application/json")
				} else {
					req = httptest.NewRequest(op.method, op.path, nil)
				}

				w := httptest.NewRecorder()
				r.ServeHTTP(w, req)

				want := caller.want(op.okCode)
				if w.Code != want {
					t.Fatalf("status: got %d want %d body=%s", w.Code, want, w.Body.String())
				}
			})
		}
	}
}

// A task that never existed is 404 even for a non-owner; existence wins
// over ownership in the error ordering.
func TestTaskNotFoundVsForbidden(t *testing.T) {
	r := setupTasksRouter(repoWithTask(), stranger())

	req := httptest.NewRequest(http.MethodGet, "/tasks/404", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("missing task: got %d want %d", w.Code, http.StatusNotFound)
	}

	req = httptest.NewRequest(http.MethodGet, "/tasks/10", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("existing foreign task: got %d want %d", w.Code, http.StatusForbidden)
	}
}

func TestTaskInvalidIDIsUnprocessable(t *testing.T) {
	r := setupTasksRouter(repoWithTask(), owner())

	req := httptest.NewRequest(http.MethodGet, "/tasks/abc", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d want %d body=%s", w.Code, http.StatusUnprocessableEntity, w.Body.String())
	}
}

func TestListTasksScopesByRole(t *testing.T) {
	owned := []task.Task{{ID: 10, Title: "mine", OwnerID: 1}}
	all := append([]task.Task{}, owned...)
	all = append(all, task.Task{ID: 11, Title: "theirs", OwnerID: 2})

	repo := &fakeTasksRepo{
		listFn: func(ctx context.Context, filter task.ListFilter) ([]task.Task, error) {
			if filter.OwnerID != nil {
				out := []task.Task{}
				for _, t := range all {
					if t.OwnerID == *filter.OwnerID {
						out = append(out, t)
					}
				}
				return out, nil
			}
			return all, nil
		},
		countFn: func(ctx context.Context, filter task.ListFilter) (int, error) {
			if filter.OwnerID != nil {
				n := 0
				for _, t := range all {
					if t.OwnerID == *filter.OwnerID {
						n++
					}
				}
				return n, nil
			}
			return len(all), nil
		},
	}

	tests := []struct {
		name      string
		caller    user.User
		wantTotal int
		wantLen   int
	}{
		{name: "regular user sees only owned", caller: owner(), wantTotal: 1, wantLen: 1},
		{name: "admin sees everything", caller: admin(), wantTotal: 2, wantLen: 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := setupTasksRouter(repo, tc.caller)

			req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status: got %d want %d body=%s", w.Code, http.StatusOK, w.Body.String())
			}

			var resp handlers.TaskListResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}

			if resp.Total != tc.wantTotal {
				t.Fatalf("total: got %d want %d", resp.Total, tc.wantTotal)
			}
			if len(resp.Tasks) != tc.wantLen {
				t.Fatalf("tasks: got %d want %d", len(resp.Tasks), tc.wantLen)
			}
		})
	}
}

func TestListTasksRejectsBadPagination(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{name: "negative skip", query: "?skip=-1"},
		{name: "zero limit", query: "?limit=0"},
		{name: "limit too large", query: "?limit=1001"},
		{name: "non-numeric skip", query: "?skip=abc"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := setupTasksRouter(&fakeTasksRepo{}, owner())

			req := httptest.NewRequest(http.MethodGet, "/tasks"+tc.query, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status: got %d want %d body=%s", w.Code, http.StatusUnprocessableEntity, w.Body.String())
			}
		})
	}
}
