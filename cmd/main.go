package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lmittmann/tint"
	"github.com/rs/cors"

	"go_5_habit_keep/internal/config"
	"go_5_habit_keep/internal/handlers"
	"go_5_habit_keep/internal/middleware"
	"go_5_habit_keep/internal/model"
	"go_5_habit_keep/internal/repository"
	"go_5_habit_keep/internal/service"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

func main() {
	// 設定ファイル読み込み中の一時ロガー
	tempLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(tempLogger)

	if err := config.LoadConfig("./configs"); err != nil {
		slog.Error("Error loading configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// === 設定に基づいて slog ロガーを初期化 ===
	logLevel := new(slog.LevelVar)
	switch strings.ToLower(config.Cfg.Log.Level) {
	case "debug":
		logLevel.Set(slog.LevelDebug)
	case "info":
		logLevel.Set(slog.LevelInfo)
	case "warn", "warning":
		logLevel.Set(slog.LevelWarn)
	case "error":
		logLevel.Set(slog.LevelError)
	default:
		logLevel.Set(slog.LevelInfo)
		slog.Warn("Unknown log level specified in config, defaulting to INFO", slog.String("level", config.Cfg.Log.Level))
	}

	// 開発時は tint、本番はJSON
	var handler slog.Handler
	appEnv := os.Getenv("APP_ENV")
	if strings.ToLower(appEnv) == "dev" {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.RFC3339,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	slog.Info("Application starting...")

	db, err := repository.NewDB(config.Cfg.Database.URL, logger)
	if err != nil {
		slog.Error("Error initializing database", slog.Any("error", err))
		os.Exit(1)
	}
	sqlDB, err := db.DB()
	if err != nil {
		slog.Error("Error getting underlying sql.DB from GORM", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			slog.Error("Error closing database connection", slog.Any("error", err))
		} else {
			slog.Info("Database connection closed.")
		}
	}()

	// Dependency Injection
	userRepo := repository.NewGormUserRepository()
	tokenRepo := repository.NewGormTokenRepository()
	settingsRepo := repository.NewGormSettingsRepository()
	itemRepo := repository.NewGormItemRepository()
	progressRepo := repository.NewGormProgressRepository()
	roleRepo := repository.NewGormRoleRepository()
	questionRepo := repository.NewGormQuestionRepository()

	mailer := service.NewMailer(&config.Cfg)
	authService := service.NewAuthService(db, userRepo, tokenRepo, roleRepo, mailer, &config.Cfg)
	settingsService := service.NewSettingsService(db, settingsRepo, &config.Cfg)
	itemService := service.NewItemService(db, itemRepo, userRepo, &config.Cfg)
	progressService := service.NewProgressService(db, progressRepo, settingsRepo, itemRepo)
	roleService := service.NewRoleService(db, userRepo, roleRepo)
	questionService := service.NewQuestionService(db, questionRepo)
	sessionManager := service.NewSessionManager(settingsService, progressService, itemService, &config.Cfg, logger)
	defer sessionManager.CloseAll()

	authHandler := handlers.NewAuthHandler(authService, sessionManager)
	settingsHandler := handlers.NewSettingsHandler(settingsService, sessionManager)
	itemHandler := handlers.NewItemHandler(itemService)
	progressHandler := handlers.NewProgressHandler(progressService)
	sessionHandler := handlers.NewSessionHandler(sessionManager)
	roleHandler := handlers.NewRoleHandler(roleService, questionService)

	// Setup Router
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.LoggingMiddleware(logger))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   config.Cfg.CORS.AllowedOrigins,
		AllowedMethods:   config.Cfg.CORS.AllowedMethods,
		AllowedHeaders:   config.Cfg.CORS.AllowedHeaders,
		ExposedHeaders:   config.Cfg.CORS.ExposedHeaders,
		AllowCredentials: config.Cfg.CORS.AllowCredentials,
		MaxAge:           config.Cfg.CORS.MaxAge,
	})
	r.Use(corsHandler.Handler)

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// API Routes
	r.Route("/api/v1", func(r chi.Router) {
		// --- Public routes ---
		r.Post("/auth/register", authHandler.Register)
		r.Get("/auth/verify-email", authHandler.VerifyAccount)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/forgot-password", authHandler.RequestPasswordReset)
		r.Post("/auth/reset-password", authHandler.ResetPassword)

		// --- Protected routes ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuthMiddleware(&config.Cfg))

			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/me", authHandler.GetMe)
			r.Get("/me/role", roleHandler.GetMyRole)

			r.Get("/settings", settingsHandler.GetSettings)
			r.Patch("/settings", settingsHandler.UpdateSettings)

			r.Route("/items", func(r chi.Router) {
				r.Get("/", itemHandler.ListItems)
				r.Post("/", itemHandler.CreateItem)
				r.Get("/{item_id}", itemHandler.GetItem)
				r.Patch("/{item_id}", itemHandler.UpdateItem)
				r.Delete("/{item_id}", itemHandler.DeleteItem)
				r.Post("/{item_id}/invite", itemHandler.InviteToItem)

				r.Get("/{item_id}/progress", progressHandler.GetProgress)
				r.Put("/{item_id}/progress", progressHandler.SaveProgress)
			})

			// セッション常駐状態 (論理日・アクティブアイテム・タイマー)
			r.Route("/session", func(r chi.Router) {
				r.Get("/day", sessionHandler.GetDay)
				r.Post("/day/refresh", sessionHandler.RefreshDay)
				r.Get("/progress", sessionHandler.GetProgress)
				r.Post("/active-item", sessionHandler.SwitchItem)

				r.Route("/timer", func(r chi.Router) {
					r.Get("/", sessionHandler.GetTimer)
					r.Post("/start", sessionHandler.StartTimer)
					r.Post("/resume", sessionHandler.ResumeTimer)
					r.Post("/pause", sessionHandler.PauseTimer)
					r.Post("/seek", sessionHandler.SeekTimer)
					r.Post("/back", sessionHandler.BackTimer)
					r.Post("/done", sessionHandler.DoneTimer)
				})
			})

			r.Post("/questions", roleHandler.SubmitQuestion)

			// trainer 以上
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(roleService, model.RoleTrainer))
				r.Get("/questions", roleHandler.ListQuestions)
			})

			// admin のみ
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(roleService, model.RoleAdmin))
				r.Post("/roles", roleHandler.AssignRole)
			})
		})
	})

	// Health Check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := sqlDB.PingContext(r.Context()); err != nil {
			slog.ErrorContext(r.Context(), "Health check failed: could not ping DB", slog.Any("error", err))
			http.Error(w, "Health check failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Start Server
	server := &http.Server{
		Addr:         config.Cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Server listening", slog.String("port", config.Cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Could not listen on port", slog.String("port", config.Cfg.Server.Port), slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", slog.Any("error", err))
	}

	// 保存キューを吐き切ってから終了する
	sessionManager.CloseAll()
	slog.Info("Server exiting")
}
