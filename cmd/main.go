package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/B4OS-Dev/classroom-sync/classroom"
	"github.com/B4OS-Dev/classroom-sync/config"
	"github.com/B4OS-Dev/classroom-sync/db"
	"github.com/B4OS-Dev/classroom-sync/handlers"
	"github.com/B4OS-Dev/classroom-sync/live"
	"github.com/B4OS-Dev/classroom-sync/repositories"
	api "github.com/B4OS-Dev/classroom-sync/routes"
	"github.com/B4OS-Dev/classroom-sync/services"
	"github.com/B4OS-Dev/classroom-sync/storage"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"
)

func main() {
	serve := flag.Bool("serve", false, "run the HTTP API instead of a one-shot sync")
	flag.Parse()

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}))
	logger.Info("configuration loaded", slog.String("classroom", cfg.ClassroomName))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	// Инициализация репозиториев
	studentRepo := repositories.NewPostgresStudentRepository(dbConn)
	assignmentRepo := repositories.NewPostgresAssignmentRepository(dbConn)
	gradeRepo := repositories.NewPostgresGradeRepository(dbConn)
	attemptRepo := repositories.NewPostgresAttemptRepository(dbConn)
	leaderboardRepo := repositories.NewPostgresLeaderboardRepository(dbConn)

	// Внешний коллаборатор: GitHub CLI
	ghClient := classroom.NewClient(classroom.NewCLIRunner(cfg.CommandTimeout), logger)

	// Опциональный архиватор выгрузок (Cloudflare R2)
	var archiver storage.FileUploader
	if cfg.ExportArchive.Enabled() {
		archiver, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.ExportArchive.AccountID,
			AccessKeyID:     cfg.ExportArchive.AccessKeyID,
			SecretAccessKey: cfg.ExportArchive.SecretAccessKey,
			BucketName:      cfg.ExportArchive.BucketName,
			PublicBaseURL:   cfg.ExportArchive.PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize export archiver", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("export archiver initialized", slog.String("bucket", cfg.ExportArchive.BucketName))
	}

	// Инициализация сервисов
	writer := services.NewSyncWriter(studentRepo, assignmentRepo, gradeRepo, attemptRepo, leaderboardRepo, cfg.MaxRetries, logger)
	reconciler := services.NewReconcilerService(ghClient, cfg.SearchUsername, logger)
	leaderboardService := services.NewLeaderboardService(studentRepo, gradeRepo, assignmentRepo, writer, logger)

	if !*serve {
		runOnce(cfg, ghClient, reconciler, writer, leaderboardService, archiver, logger)
		return
	}

	if cfg.JWTSecretKey == "" {
		logger.Error("JWT_SECRET_KEY must be set in serve mode")
		os.Exit(1)
	}

	// Инициализация WebSocket Hub
	hub := live.NewHub(logger)
	go hub.Run()

	syncService := services.NewSyncService(
		ghClient, reconciler, writer, leaderboardService, archiver, hub,
		cfg.ClassroomName, cfg.AssignmentID, logger,
	)

	// Инициализация обработчиков HTTP
	leaderboardHandler := handlers.NewLeaderboardHandler(leaderboardRepo, logger)
	syncHandler := handlers.NewSyncHandler(syncService, logger)
	webSocketHandler := handlers.NewWebSocketHandler(hub, logger)
	healthHandler := handlers.NewHealthHandler(dbConn, logger)

	router := chi.NewRouter()
	api.SetupRoutes(router, leaderboardHandler, syncHandler, webSocketHandler, healthHandler, cfg.JWTSecretKey)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute, // sync trigger runs a full batch
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logger.Info("shutting down server")
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server stopped gracefully")
}

func runOnce(
	cfg *config.Config,
	ghClient classroom.Client,
	reconciler services.ReconcilerService,
	writer services.SyncWriter,
	leaderboardService services.LeaderboardService,
	archiver storage.FileUploader,
	logger *slog.Logger,
) {
	syncService := services.NewSyncService(
		ghClient, reconciler, writer, leaderboardService, archiver, nil,
		cfg.ClassroomName, cfg.AssignmentID, logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := syncService.RunSync(ctx)
	if err != nil {
		logger.Error("sync failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("sync run finished",
		slog.String("run_id", summary.RunID),
		slog.Int("students", summary.Students),
		slog.Int("assignments", summary.Assignments),
		slog.Int("grade_records", summary.GradeRecords),
		slog.Int("attempt_records", summary.AttemptRecords),
	)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
