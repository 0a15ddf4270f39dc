package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/taskforge/taskforge/internal/auth"
	"github.com/taskforge/taskforge/internal/cache"
	"github.com/taskforge/taskforge/internal/config"
	"github.com/taskforge/taskforge/internal/http/handlers"
	"github.com/taskforge/taskforge/internal/http/middlewares"
	"github.com/taskforge/taskforge/internal/observability"
	"github.com/taskforge/taskforge/internal/repo/postgres"
)

const maxBodyBytes = 1 << 20 // 1 MiB

func NewRouter(log *slog.Logger, pool *pgxpool.Pool, cfg config.Config, listCache *cache.TaskListCache) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// per-router registry keeps repeated construction (tests) safe
	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSOrigins))
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(middlewares.RequireJSON())
	r.Use(otelgin.Middleware("taskforge"))
	r.Use(prom.GinHandleMiddleware())

	// health
	ping := func() error {
		if pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return pool.Ping(ctx)
	}

	h := handlers.NewHealthHandler(ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// wire up the auth core and repositories

	usersRepo := postgres.NewUsersRepo(pool)
	tasksRepo := postgres.NewTasksRepo(pool, prom)

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL())
	authn := auth.NewAuthenticator(usersRepo, jwtManager)
	authMW := middlewares.NewAuthMiddleware(authn)

	authHandler := handlers.NewAuthHandler(usersRepo, authn, jwtManager, prom)
	tasksHandler := handlers.NewTasksHandler(tasksRepo, listCache)
	usersHandler := handlers.NewUsersHandler(usersRepo)

	v1 := r.Group("/api/v1")

	authRoutes := v1.Group("/auth")
	authRoutes.POST("/register", authHandler.Register)
	authRoutes.POST("/login", authHandler.Login)
	authRoutes.POST("/refresh", authHandler.Refresh)
	authRoutes.GET("/me", authMW.RequireAuth(), authHandler.Me)

	taskRoutes := v1.Group("/tasks", authMW.RequireAuth())
	taskRoutes.POST("", tasksHandler.CreateTask)
	taskRoutes.GET("", tasksHandler.ListTasks)
	taskRoutes.GET("/:id", tasksHandler.GetTask)
	taskRoutes.PUT("/:id", tasksHandler.UpdateTask)
	taskRoutes.DELETE("/:id", tasksHandler.DeleteTask)

	userRoutes := v1.Group("/users", authMW.RequireAuth(), authMW.RequireAdmin())
	userRoutes.GET("", usersHandler.ListUsers)

	return r
}
