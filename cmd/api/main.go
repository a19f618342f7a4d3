// @title Readly API
// @version 1.0
// @description Scores how semantically close free-text answers are to accepted answers.
// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html
// @host localhost:8090
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
// @description Type 'Bearer YOUR_JWT_TOKEN' to authorize.
package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "readly/cmd/api/docs"
	"readly/internal/adapter"
	"readly/internal/adapter/embedding"
	"readly/internal/cache"
	"readly/internal/config"
	"readly/internal/database"
	"readly/internal/eventlog"
	"readly/internal/handler"
	"readly/internal/logger"
	"readly/internal/middleware"
	"readly/internal/service"
	"readly/internal/util"
	"readly/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Initialize(cfg.Logger); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	appLogger := logger.Get()

	store, db, err := newEventStore(cfg)
	if err != nil {
		appLogger.Fatal("Failed to set up event store", zap.Error(err))
	}
	if db != nil {
		defer db.Close()
	}

	minLevel, err := logger.ParseLevel(cfg.Events.MinLevel)
	if err != nil {
		appLogger.Fatal("Invalid events.min_level", zap.String("level", cfg.Events.MinLevel), zap.Error(err))
	}
	if err := logger.Initialize(cfg.Logger, eventlog.NewCore(store, minLevel)); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	appLogger = logger.Get()
	appLogger.Info("Logger initialized",
		zap.String("level", cfg.Logger.Level),
		zap.String("events_store", cfg.Events.Store),
		zap.String("events_min_level", minLevel.String()))

	ctx := context.Background()
	embedder, err := embedding.NewFromConfig(ctx, cfg.Embedding)
	if err != nil {
		appLogger.Fatal("Failed to create embedding service",
			zap.String("source", cfg.Embedding.Source), zap.Error(err))
	}
	appLogger.Info("Embedding service initialized", zap.String("model", embedder.Model()))

	if cfg.Redis.Address != "" {
		redisClient, err := cache.NewRedisClient(cfg.Redis)
		if err != nil {
			// The cache is an optimisation; carry on without it.
			appLogger.Warn("Redis unavailable, embedding cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			ttl := cfg.ParseTTLStringOrDefault(cfg.CacheTTLs.Embedding, 168*time.Hour)
			embedder = embedding.NewCachedEmbeddingService(embedder, adapter.NewRedisCacheAdapter(redisClient), ttl, cfg.Comparison.EmbedTimeout)
			appLogger.Info("Embedding cache enabled", zap.String("address", cfg.Redis.Address), zap.Duration("ttl", ttl))
		}
	}
	if closer, ok := embedder.(io.Closer); ok {
		defer closer.Close()
	}

	comparisonService := service.NewComparisonService(embedder, cfg.Comparison)
	validationMiddleware := middleware.NewValidationMiddleware(validation.NewValidator(cfg.Comparison))
	compareHandler := handler.NewCompareHandler(comparisonService)
	dashboardHandler := handler.NewDashboardHandler(store, cfg.Events.BufferSize)

	var dashboardAuth service.DashboardAuthService
	if cfg.Dashboard.JWTSecret != "" {
		dashboardAuth, err = service.NewDashboardAuthService(cfg.Dashboard)
		if err != nil {
			appLogger.Fatal("Failed to create dashboard auth service", zap.Error(err))
		}
	} else {
		appLogger.Warn("dashboard.jwt_secret is empty, dashboard is not protected")
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		BodyLimit:    cfg.Server.BodyLimit,
		ErrorHandler: middleware.ErrorHandler(cfg.Server.ExposeErrorDetails, cfg.Server.LogRequestBodyLimit),
	})

	app.Use(requestid.New(requestid.Config{Generator: util.NewULID}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
		MaxAge:       300,
	}))
	app.Use(middleware.RequestLogger())

	app.Get("/swagger/*", swagger.HandlerDefault)

	app.Get("/heartbeat", handler.Heartbeat)
	app.Post("/compare", validationMiddleware.ValidateCompareRequest(), compareHandler.Compare)
	app.Post("/compare/batch", validationMiddleware.ValidateBatchCompareRequest(), compareHandler.CompareBatch)

	dashboard := app.Group("/dashboard", middleware.DashboardProtected(dashboardAuth))
	dashboard.Get("/", dashboardHandler.Page)
	dashboard.Get("/events", dashboardHandler.Events)

	go func() {
		appLogger.Info("Starting server", zap.Int("port", cfg.Server.Port), zap.String("env", cfg.Logger.Env))
		if err := app.Listen(":" + strconv.Itoa(cfg.Server.Port)); err != nil {
			appLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
		return
	}
	appLogger.Info("Server exited gracefully")
}

// newEventStore returns the dashboard event store and, for the sql store,
// the connection backing it.
func newEventStore(cfg *config.Config) (eventlog.Store, *sqlx.DB, error) {
	if cfg.Events.Store != "sql" {
		return eventlog.NewRingBuffer(cfg.Events.BufferSize), nil, nil
	}
	db, err := database.NewSQLXDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	logger.Get().Info("Event store connected",
		zap.String("driver", cfg.DB.Driver), zap.String("dialect", database.Dialect(cfg.DB.Driver)))
	return eventlog.NewSQLStore(db), db, nil
}
