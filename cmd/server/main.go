package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/libris-backend/internal/config"
	"github.com/stemsi/libris-backend/internal/database"
	"github.com/stemsi/libris-backend/internal/guard"
	"github.com/stemsi/libris-backend/internal/handler"
	"github.com/stemsi/libris-backend/internal/logger"
	"github.com/stemsi/libris-backend/internal/model"
	"github.com/stemsi/libris-backend/internal/repository"
	"github.com/stemsi/libris-backend/internal/router"
	"github.com/stemsi/libris-backend/internal/service"
	"github.com/stemsi/libris-backend/internal/validator"
	"github.com/stemsi/libris-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("role_scheme", cfg.RoleScheme).
		Msg("Starting Libris Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	accountRepo := repository.NewAccountRepository(pool)
	bookRepo := repository.NewBookRepository(pool)
	studentRepo := repository.NewStudentRepository(pool)
	attendanceRepo := repository.NewAttendanceRepository(pool)
	dashboardRepo := repository.NewDashboardRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	policy := model.RolePolicyFor(cfg.RoleScheme, cfg.AdminSlots)
	identity := service.NewIdentityService(
		accountRepo,
		service.NewSessionStore(rdb, cfg.JWTSecret, cfg.JWTExpiry),
		service.NewResetStore(rdb, cfg.ResetTokenTTL),
		service.IdentityOptions{
			Policy:              policy,
			BcryptCost:          cfg.BcryptCost,
			AutoSessionOnSignUp: cfg.AutoSessionOnSignUp,
			PublicBaseURL:       cfg.PublicBaseURL,
		},
		log,
	)
	feed := service.NewActivityFeed(rdb, log)
	bookService := service.NewBookService(bookRepo)
	studentService := service.NewStudentService(studentRepo)
	attendanceService := service.NewAttendanceService(attendanceRepo, studentRepo, feed, log)
	dashboardService := service.NewDashboardService(dashboardRepo, attendanceService)

	newGuard := router.GuardFactory(identity, policy, cfg.GuardCallTimeout, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:         handler.NewAuthHandler(identity, cfg.PublicBaseURL),
		AccountAdmin: handler.NewAccountAdminHandler(identity),
		Book:         handler.NewBookHandler(bookService),
		Student:      handler.NewStudentHandler(studentService),
		Attendance:   handler.NewAttendanceHandler(attendanceService),
		Dashboard:    handler.NewDashboardHandler(dashboardService),
		Navigation:   handler.NewNavigationHandler(newGuard, guard.DefaultRoutes),
		Page:         handler.NewPageHandler(cfg.WebDir),
		WS:           handler.NewWSHandler(feed, attendanceService, log, cfg.AllowedOrigins),
		System:       handler.NewSystemHandler(pool, rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	resetWorker := worker.NewResetNotificationWorker(rdb, worker.NewLogNotifier(log), log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		resetWorker.Start(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, identity, newGuard, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the rate limiter sweep and background workers.
	cancel()
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
