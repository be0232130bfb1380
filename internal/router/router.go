package router

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/libris-backend/internal/auth"
	"github.com/stemsi/libris-backend/internal/config"
	"github.com/stemsi/libris-backend/internal/guard"
	"github.com/stemsi/libris-backend/internal/handler"
	"github.com/stemsi/libris-backend/internal/middleware"
	"github.com/stemsi/libris-backend/internal/model"
	"github.com/stemsi/libris-backend/internal/response"
	"github.com/stemsi/libris-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth         *handler.AuthHandler
	AccountAdmin *handler.AccountAdminHandler
	Book         *handler.BookHandler
	Student      *handler.StudentHandler
	Attendance   *handler.AttendanceHandler
	Dashboard    *handler.DashboardHandler
	Navigation   *handler.NavigationHandler
	Page         *handler.PageHandler
	WS           *handler.WSHandler
	System       *handler.SystemHandler
}

// GuardFactory binds the auth module and navigation guard to one caller's
// token, answering facts in-process from the identity service.
func GuardFactory(identity *service.IdentityService, policy model.RolePolicy, callTimeout time.Duration, log zerolog.Logger) middleware.GuardFactory {
	return func(token string) *guard.Guard {
		return guard.New(auth.New(identity.Scoped(token), policy, log), callTimeout, log)
	}
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// Background helpers such as the rate limiter sweep stop when ctx is done.
func SetupRouter(
	ctx context.Context,
	identity *service.IdentityService,
	newGuard middleware.GuardFactory,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", response.HeaderRequestID}
	corsConfig.ExposeHeaders = []string{response.HeaderRequestID, "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())

	// Spreadsheets are already zip-compressed.
	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		Skipper: func(c *gin.Context) bool { return strings.HasSuffix(c.Request.URL.Path, ".xlsx") },
	}))

	assets := router.Group("/assets")
	assets.Use(middleware.CacheControl(86400))
	{
		assets.Static("/", filepath.Join(cfg.WebDir, "assets"))
	}

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 0. Pages (navigation guard) ───────────────────────────────────
	navGuard := middleware.NavigationGuard(newGuard, guard.DefaultRoutes)
	for _, route := range guard.DefaultRoutes {
		router.GET(route.Path, navGuard, handlers.Page.Serve)
	}

	loadSession := middleware.LoadSession(identity, false)
	requireAdminTier := middleware.RequireAdminTier(identity)
	requireSuperAdmin := middleware.RequireSuperAdmin(identity)

	// ─── 1. Identity (rate limited, never cached) ──────────────────────
	limiter := middleware.NewRateLimiter(ctx, cfg.AuthRatePerMinute, time.Minute)
	authAPI := router.Group("/api/v1/auth")
	authAPI.Use(middleware.NoStore(), loadSession)
	{
		authAPI.POST("/signup", limiter.Middleware(), handlers.Auth.SignUp)
		authAPI.POST("/signin", limiter.Middleware(), handlers.Auth.SignIn)
		authAPI.POST("/signout", handlers.Auth.SignOut)
		authAPI.GET("/session", handlers.Auth.Session)
		authAPI.GET("/account", handlers.Auth.Account)
		authAPI.POST("/password-reset", limiter.Middleware(), handlers.Auth.RequestPasswordReset)
		authAPI.POST("/password-reset/confirm", limiter.Middleware(), handlers.Auth.ConfirmPasswordReset)
	}

	// ─── 2. Remote procedures (public) ─────────────────────────────────
	rpc := router.Group("/api/v1/rpc")
	{
		rpc.GET("/has-admin-tier", handlers.Auth.HasAdminTier)
		rpc.GET("/count-accounts", handlers.Auth.CountAccounts)
		rpc.GET("/count-admin-tier", handlers.Auth.CountAdminTier)
	}

	router.GET("/api/v1/navigation/resolve", loadSession, handlers.Navigation.Resolve)

	// ─── 3. Catalog ────────────────────────────────────────────────────
	books := router.Group("/api/v1/books")
	books.Use(loadSession)
	{
		books.GET("", handlers.Book.List)
		books.POST("", requireAdminTier, handlers.Book.Create)
		books.DELETE("/:id", requireAdminTier, handlers.Book.Delete)
		books.POST("/:id/toggle", requireAdminTier, handlers.Book.ToggleAvailability)
	}

	// ─── 4. Students (admin tier) ──────────────────────────────────────
	students := router.Group("/api/v1/students")
	students.Use(loadSession, requireAdminTier)
	{
		students.GET("", handlers.Student.List)
		students.GET("/lrn/:lrn", handlers.Student.GetByLRN)
		students.POST("", handlers.Student.Create)
		students.PUT("/:id", handlers.Student.Update)
		students.DELETE("/:id", handlers.Student.Delete)
	}

	// ─── 5. Attendance (admin tier) ────────────────────────────────────
	attendance := router.Group("/api/v1/attendance")
	attendance.Use(loadSession, requireAdminTier)
	{
		attendance.GET("/recent", handlers.Attendance.Recent)
		attendance.GET("/summary", handlers.Attendance.Summary)
		attendance.GET("/open/:student_id", handlers.Attendance.Open)
		attendance.POST("/check-in", handlers.Attendance.CheckIn)
		attendance.POST("/check-out", handlers.Attendance.CheckOut)
		attendance.POST("/renew", handlers.Attendance.Renew)
		attendance.POST("/scan", handlers.Attendance.Scan)
		attendance.GET("/export.xlsx", handlers.Attendance.Export)
	}

	// ─── 6. WebSocket (token may ride in the query string) ─────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.LoadSession(identity, true), requireAdminTier)
	{
		ws.GET("/attendance/stream", handlers.WS.AttendanceStream)
	}

	// ─── 7. Administration ─────────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(loadSession)
	{
		adminAPI.GET("/dashboard", requireAdminTier, handlers.Dashboard.GetDashboard)
		adminAPI.GET("/system/status", requireAdminTier, handlers.System.Status)

		accounts := adminAPI.Group("/accounts")
		accounts.Use(requireSuperAdmin)
		{
			accounts.GET("", handlers.AccountAdmin.ListAdminTier)
			accounts.PATCH("/:id/role", handlers.AccountAdmin.UpdateRole)
			accounts.PATCH("/:id/email", handlers.AccountAdmin.UpdateEmail)
			accounts.DELETE("/:id", handlers.AccountAdmin.Delete)
			accounts.POST("/password-reset", handlers.AccountAdmin.RequestPasswordReset)
		}
	}

	return router
}
