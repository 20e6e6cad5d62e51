// cmd/main.go
package main

import (
	"context"
	"errors"
	"log"
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

	"go_vocab_sync/internal/config"
	"go_vocab_sync/internal/handlers"
	"go_vocab_sync/internal/localstore"
	"go_vocab_sync/internal/middleware"
	"go_vocab_sync/internal/repository"
	"go_vocab_sync/internal/service"

	cryptosvc "go_vocab_sync/internal/crypto"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"gorm.io/gorm"
)

func main() {
	// 設定ファイル読み込み用の一時的なロガー設定
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

	var handler slog.Handler
	appEnv := os.Getenv("APP_ENV")
	if strings.ToLower(appEnv) == "dev" {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.RFC3339,
		})
		tempLogger.Info("Using TINT log handler", slog.String("APP_ENV", appEnv))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		})
		tempLogger.Info("Using JSON log handler", slog.String("APP_ENV", appEnv))
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	slog.Info("Application starting...", slog.String("app", config.AppName), slog.String("version", config.AppVersion))

	// 2. リモートレプリカ (GORM/Postgres)。未設定なら nil のまま起動し、
	//    同期は NotConfigured を返す
	var db *gorm.DB
	if config.Cfg.Database.URL != "" {
		var err error
		db, err = repository.NewDB(config.Cfg.Database.URL, logger)
		if err != nil {
			slog.Error("Error initializing remote replica", slog.Any("error", err))
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
	} else {
		slog.Warn("Remote replica not configured; sync requests will fail with NotConfigured")
	}

	// ローカルレプリカ (SQLite)
	local, err := localstore.Open(config.Cfg.Local.Path, logger)
	if err != nil {
		slog.Error("Error opening local replica", slog.Any("error", err))
		os.Exit(1)
	}

	// 3. Dependency Injection
	cardRepo := repository.NewGormCardRepository(nil)
	reviewRepo := repository.NewGormReviewRepository(nil)
	syncLogRepo := repository.NewGormSyncLogRepository(nil)
	cipher := cryptosvc.NewService(config.Cfg.Crypto.SaltPrefix)

	syncService := service.NewSyncService(
		db, local, cardRepo, reviewRepo, syncLogRepo,
		cipher, service.ContextIdentity{}, &config.Cfg,
	)

	syncHandler := handlers.NewSyncHandler(syncService)

	// 4. Setup Router
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.LoggingMiddleware(logger))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	})
	r.Use(corsHandler.Handler)

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// API Routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuthMiddleware(&config.Cfg))

			r.Route("/sync", func(r chi.Router) {
				r.Post("/", syncHandler.TriggerSync)
				r.Get("/status", syncHandler.GetStatus)
				r.Post("/connectivity", syncHandler.SetConnectivity)
			})
			r.Post("/changes", syncHandler.RecordChange)
		})
	})

	// Health Check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(r.Context())
			}
			if err != nil {
				slog.ErrorContext(r.Context(), "Health check failed", slog.Any("error", err))
				http.Error(w, "Health check failed", http.StatusInternalServerError)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// 5. Start Server
	server := &http.Server{
		Addr:         config.Cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second, // 同期パスはネットワーク往復が多いため長め
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

	log.Println("Server exiting")
}
