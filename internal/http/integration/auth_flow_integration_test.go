package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskforge/taskforge/internal/config"
	"github.com/taskforge/taskforge/internal/db"
	apphttp "github.com/taskforge/taskforge/internal/http"
)

func testConfig() config.Config {
	return config.Config{
		Env:                 "test",
		Port:                0,
		JWTSecret:           "test-secret-key",
		JWTAccessTTLMinutes: 60,
		JWTRefreshTTLDays:   7,
	}
}

func setupTestRouter(t *testing.T) (*gin.Engine, *pgxpool.Pool) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := os.Getenv("TEST_DB_DSN")

	if dsn == "" {
		t.Skip("TEST_DB_DSN not set; skipping DB-backed integration test")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)

	if err != nil {
		t.Fatalf("failed to create pgx pool: %v", err)
	}

	if err := db.Migrate(ctx, pool); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}

	_, err = pool.Exec(ctx, `TRUNCATE tasks, users RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

	router := apphttp.NewRouter(logger, pool, testConfig(), nil)

	return router, pool
}

func doRequest(router http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request

	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

// The full lifecycle: register, login, me, create a task, delete it, and
// observe the hole it leaves behind.
func TestAuthTaskRoundTrip(t *testing.T) {
	router, pool := setupTestRouter(t)
	defer pool.Close()

	// register
	w := doRequest(router, http.MethodPost, "/api/v1/auth/register", `{"email":"a@x.com","password":"pw12345678"}`, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register: got %d body=%s", w.Code, w.Body.String())
	}

	var registered struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &registered); err != nil {
		t.Fatalf("register response: %v", err)
	}

	// duplicate registration conflicts
	w = doRequest(router, http.MethodPost, "/api/v1/auth/register", `{"email":"a@x.com","password":"pw12345678"}`, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate register: got %d body=%s", w.Code, w.Body.String())
	}

	// login
	w = doRequest(router, http.MethodPost, "/api/v1/auth/login", `{"email":"a@x.com","password":"pw12345678"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login: got %d body=%s", w.Code, w.Body.String())
	}

	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &tokens); err != nil {
		t.Fatalf("login response: %v", err)
	}
	if tokens.TokenType != "bearer" || tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("unexpected token payload: %s", w.Body.String())
	}

	// me
	w = doRequest(router, http.MethodGet, "/api/v1/auth/me", "", tokens.AccessToken)
	if w.Code != http.StatusOK {
		t.Fatalf("me: got %d body=%s", w.Code, w.Body.String())
	}

	var me struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &me); err != nil {
		t.Fatalf("me response: %v", err)
	}
	if me.Email != "a@x.com" {
		t.Fatalf("me email: got %q", me.Email)
	}

	// create a task
	w = doRequest(router, http.MethodPost, "/api/v1/tasks", `{"title":"T1"}`, tokens.AccessToken)
	if w.Code != http.StatusCreated {
		t.Fatalf("create task: got %d body=%s", w.Code, w.Body.String())
	}

	var created struct {
		ID      int64 `json:"id"`
		OwnerID int64 `json:"owner_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("create response: %v", err)
	}
	if created.OwnerID != registered.ID {
		t.Fatalf("owner_id: got %d want %d", created.OwnerID, registered.ID)
	}

	taskPath := fmt.Sprintf("/api/v1/tasks/%d", created.ID)

	// delete it
	w = doRequest(router, http.MethodDelete, taskPath, "", tokens.AccessToken)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete task: got %d body=%s", w.Code, w.Body.String())
	}

	// and it is gone
	w = doRequest(router, http.MethodGet, taskPath, "", tokens.AccessToken)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get deleted task: got %d body=%s", w.Code, w.Body.String())
	}
}

func TestOwnershipAcrossUsers(t *testing.T) {
	router, pool := setupTestRouter(t)
	defer pool.Close()

	register := func(email string) string {
		body := fmt.Sprintf(`{"email":%q,"password":"pw12345678"}`, email)
		w := doRequest(router, http.MethodPost, "/api/v1/auth/register", body, "")
		if w.Code != http.StatusCreated {
			t.Fatalf("register %s: got %d body=%s", email, w.Code, w.Body.String())
		}

		w = doRequest(router, http.MethodPost, "/api/v1/auth/login", body, "")
		if w.Code != http.StatusOK {
			t.Fatalf("login %s: got %d body=%s", email, w.Code, w.Body.String())
		}

		var tokens struct {
			AccessToken string `json:"access_token"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &tokens); err != nil {
			t.Fatalf("login response: %v", err)
		}
		return tokens.AccessToken
	}

	tokenA := register("a@x.com")
	tokenB := register("b@x.com")

	w := doRequest(router, http.MethodPost, "/api/v1/tasks", `{"title":"A's task"}`, tokenA)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: got %d body=%s", w.Code, w.Body.String())
	}

	var created struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("create response: %v", err)
	}

	taskPath := fmt.Sprintf("/api/v1/tasks/%d", created.ID)

	// B can neither read, update nor delete A's task
	for _, probe := range []struct {
		method string
		body   string
	}{
		{method: http.MethodGet},
		{method: http.MethodPut, body: `{"title":"stolen"}`},
		{method: http.MethodDelete},
	} {
		w = doRequest(router, probe.method, taskPath, probe.body, tokenB)
		if w.Code != http.StatusForbidden {
			t.Fatalf("%s as B: got %d want 403 body=%s", probe.method, w.Code, w.Body.String())
		}
	}

	// B's listing stays scoped to B
	w = doRequest(router, http.MethodGet, "/api/v1/tasks", "", tokenB)
	if w.Code != http.StatusOK {
		t.Fatalf("list as B: got %d body=%s", w.Code, w.Body.String())
	}

	var listing struct {
		Tasks []json.RawMessage `json:"tasks"`
		Total int               `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listing); err != nil {
		t.Fatalf("list response: %v", err)
	}
	if len(listing.Tasks) != 0 || listing.Total != 0 {
		t.Fatalf("B should see no tasks, got %s", w.Body.String())
	}
}
