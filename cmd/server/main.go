// @title           MangaShelf Backend API
// @version         1.0.0
// @description     Backend API for selling manga volumes: orders, payments and page archive ingestion.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"mangashelf-backend/docs"
	"mangashelf-backend/internal/config"
	"mangashelf-backend/internal/database"
	"mangashelf-backend/internal/events"
	"mangashelf-backend/internal/handlers"
	"mangashelf-backend/internal/logger"
	"mangashelf-backend/internal/repository"
	"mangashelf-backend/internal/repository/memory"
	"mangashelf-backend/internal/repository/postgres"
	"mangashelf-backend/internal/sequence"
	"mangashelf-backend/internal/services"
	"mangashelf-backend/internal/storage"
)

const stagingMaxAge = time.Hour

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Fatal("Server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zapLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Update Swagger docs with dynamic base URL
	if cfg.BaseURL != "" {
		if baseURL, err := url.Parse(cfg.BaseURL); err == nil {
			docs.SwaggerInfo.Host = baseURL.Host
			if baseURL.Scheme == "https" {
				docs.SwaggerInfo.Schemes = []string{"https", "http"}
			} else {
				docs.SwaggerInfo.Schemes = []string{"http", "https"}
			}
		}
	}

	// Persistence
	var (
		db    *sql.DB
		store repository.Store
	)
	if cfg.DatabaseURL != "" {
		if err := database.NewMigrator(cfg.DatabaseURL, zapLogger).Run(); err != nil {
			return err
		}
		conn, err := database.Connect(ctx, cfg.DatabaseURL, zapLogger)
		if err != nil {
			return err
		}
		defer conn.Close()
		db = conn
		store = postgres.NewStore(conn)
	} else {
		zapLogger.Warn("DATABASE_URL not set; using the in-memory store. Data is lost on restart.")
		store = memory.NewStore()
	}

	sequencer, closeSequencer, err := newSequencer(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeSequencer()

	// Page images
	objects, err := storage.New(ctx, cfg)
	if err != nil {
		return err
	}
	staging, err := storage.NewStaging(cfg.UploadDir)
	if err != nil {
		return err
	}
	if n, err := staging.Sweep(time.Now().Add(-stagingMaxAge)); err != nil {
		zapLogger.Warn("Failed to sweep staging directory", zap.Error(err))
	} else if n > 0 {
		zapLogger.Info("Removed abandoned staging batches", zap.Int("count", n))
	}

	// Events
	publisher := events.NewNoopPublisher()
	if brokers := cfg.GetKafkaBrokers(); len(brokers) > 0 {
		publisher = events.NewKafkaPublisher(brokers, cfg.KafkaTopic, zapLogger)
		zapLogger.Info("Publishing events to Kafka", zap.Strings("brokers", brokers), zap.String("topic", cfg.KafkaTopic))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			zapLogger.Warn("Failed to close event publisher", zap.Error(err))
		}
	}()

	orderService := services.NewOrderService(store, sequencer, publisher, zapLogger)
	paymentService := services.NewPaymentService(store, sequencer, publisher, zapLogger)
	pageService := services.NewPageService(store, objects, staging, services.ArchiveLimits{
		MaxEntries:      cfg.MaxArchiveEntries,
		MaxArchiveBytes: cfg.MaxArchiveBytes,
		MaxEntryBytes:   cfg.MaxEntryBytes,
	}, publisher, zapLogger)

	var pinger handlers.Pinger
	if db != nil {
		pinger = store
	}

	routerCfg := handlers.RouterConfig{
		Orders:         handlers.NewOrdersHandler(orderService),
		Payments:       handlers.NewPaymentsHandler(paymentService),
		Pages:          handlers.NewPagesHandler(pageService, cfg.MaxUploadBytes, zapLogger),
		Health:         handlers.NewHealthHandler(pinger, zapLogger),
		Logger:         zapLogger,
		JWTSecret:      cfg.JWTSecret,
		StagingDirName: storage.StagingDirName,
	}
	if cfg.StorageBackend == config.StorageLocal {
		routerCfg.UploadDir = cfg.UploadDir
	}
	if cfg.JWTSecret == "" {
		zapLogger.Warn("JWT_SECRET not set; /api/v1 is served without authentication")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		zapLogger.Info("Server starting", zap.String("port", cfg.Port), zap.String("environment", cfg.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	zapLogger.Info("Shutting down server", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newSequencer returns the configured number sequencer and a function that
// releases its resources.
func newSequencer(ctx context.Context, cfg *config.Config, db *sql.DB) (sequence.Sequencer, func(), error) {
	switch cfg.SequenceBackend {
	case config.SequenceRedis:
		seq := sequence.NewRedisSequencer(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := seq.Ping(ctx); err != nil {
			seq.Close()
			return nil, nil, err
		}
		return seq, func() { seq.Close() }, nil
	case config.SequencePostgres:
		if db == nil {
			return nil, nil, errors.New("postgres sequences need DATABASE_URL")
		}
		return sequence.NewPostgresSequencer(db), func() {}, nil
	default:
		return sequence.NewMemorySequencer(), func() {}, nil
	}
}
