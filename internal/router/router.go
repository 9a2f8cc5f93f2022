package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/config"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/handler"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/middleware"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/model"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/response"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Attempt   *handler.AttemptHandler
	Proctor   *handler.ProctorHandler
	Extension *handler.ExtensionHandler
	Violation *handler.ViolationHandler
	Monitor   *handler.MonitorHandler
	System    *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// startLimiter guards attempt creation and may be nil.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	startLimiter *middleware.RateLimiter,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// Empty AllowedOrigins allows all so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	// Webcam evidence is only visible to proctors.
	uploadsGroup := router.Group("/uploads")
	uploadsGroup.Use(
		middleware.RequireAdminJWT(authService),
		middleware.RequirePermission(model.PermissionSnapshotsRead),
		middleware.SnapshotCache(365*24*time.Hour),
	)
	{
		uploadsGroup.Static("/", cfg.UploadDir)
	}

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ─── 1. Student Group (JWT) ────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(authService))
	{
		start := []gin.HandlerFunc{handlers.Attempt.StartAttempt}
		if startLimiter != nil {
			start = append([]gin.HandlerFunc{startLimiter.Middleware()}, start...)
		}
		studentAPI.POST("/exams/:exam_id/attempts", start...)
		studentAPI.GET("/attempts/:attempt_id/state", handlers.Attempt.GetAttemptState)
	}

	// ─── 2. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/attempts/:attempt_id/proctor", handlers.Proctor.ProctorStream)
	}

	// ─── 3. Admin Group (JWT + RBAC) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		adminAPI.POST("/attempts/:attempt_id/extensions",
			middleware.RequirePermission(model.PermissionProctoringExtend),
			handlers.Extension.GrantExtension,
		)
		adminAPI.GET("/attempts/:attempt_id/extensions",
			middleware.RequireAnyPermission(model.PermissionProctoringRead, model.PermissionProctoringExtend),
			handlers.Extension.ListExtensions,
		)
		adminAPI.GET("/attempts/:attempt_id/violations",
			middleware.RequirePermission(model.PermissionProctoringRead),
			handlers.Violation.ListViolations,
		)
		adminAPI.GET("/exams/:exam_id/violations/counts",
			middleware.RequirePermission(model.PermissionProctoringRead),
			handlers.Violation.CountViolations,
		)
		adminAPI.GET("/exams/:exam_id/monitor",
			middleware.RequirePermission(model.PermissionProctoringRead),
			handlers.Monitor.MonitorExamSSE,
		)
		adminAPI.GET("/system/metrics",
			middleware.RequirePermission(model.PermissionProctoringRead),
			handlers.System.SystemMetricsSSE,
		)
	}

	return router
}
