package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/config"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/database"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/handler"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/logger"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/middleware"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/repository"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/router"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/service"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/validator"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting EduManage proctoring server")

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
	examRepo := repository.NewExamRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	studentRepo := repository.NewStudentRepository(pool)
	gradeRepo := repository.NewGradeScaleRepository(pool)
	extensionRepo := repository.NewExtensionRepository(pool)
	violationRepo := repository.NewViolationRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	autosaver := service.NewAnswerAutosaver(rdb)
	storage := service.NewSnapshotStorage(cfg)
	attemptService := service.NewAttemptService(examRepo, attemptRepo, questionRepo, studentRepo, extensionRepo, autosaver, log)
	proctorService := service.NewProctorService(cfg, rdb, attemptService, attemptRepo, questionRepo, gradeRepo, extensionRepo, storage, autosaver, log)
	extensionService := service.NewExtensionService(attemptRepo, extensionRepo, log)
	violationService := service.NewViolationService(attemptRepo, violationRepo)
	monitorService := service.NewMonitorService(attemptRepo, violationRepo)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Attempt:   handler.NewAttemptHandler(attemptService),
		Proctor:   handler.NewProctorHandler(proctorService, log, cfg.AllowedOrigins),
		Extension: handler.NewExtensionHandler(extensionService),
		Violation: handler.NewViolationHandler(violationService),
		Monitor:   handler.NewMonitorHandler(rdb, attemptService, monitorService, log),
		System:    handler.NewSystemHandler(rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	violationWorker := worker.NewViolationWorker(violationRepo, rdb, log)
	autosaveWorker := worker.NewAutosaveWorker(attemptRepo, rdb, log)

	workers.Add(2)
	go func() {
		defer workers.Done()
		violationWorker.Start(workerCtx)
	}()
	go func() {
		defer workers.Done()
		autosaveWorker.Start(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	startLimiter := middleware.NewRateLimiter(rdb, "attempt_start", 10, time.Minute, log)
	r := router.SetupRouter(authService, handlers, startLimiter, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// Hijacked WebSocket connections outlive Shutdown; cancelling the
		// base context ends their sessions.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. End live sessions and SSE streams, then stop accepting requests.
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	drained := make(chan struct{})
	go func() {
		workers.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("Workers did not drain in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
