package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	exchangeapp "github.com/autoparts/backend/internal/application/exchange"
	financeapp "github.com/autoparts/backend/internal/application/finance"
	"github.com/autoparts/backend/internal/domain/exchange"
	"github.com/autoparts/backend/internal/infrastructure/cache"
	"github.com/autoparts/backend/internal/infrastructure/config"
	"github.com/autoparts/backend/internal/infrastructure/logger"
	"github.com/autoparts/backend/internal/infrastructure/persistence"
	"github.com/autoparts/backend/internal/infrastructure/queue"
	"github.com/autoparts/backend/internal/infrastructure/scheduler"
	"github.com/autoparts/backend/internal/infrastructure/storage"
	"github.com/autoparts/backend/internal/interfaces/http/handler"
	"github.com/autoparts/backend/internal/interfaces/http/middleware"
	"github.com/autoparts/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting exchange backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Database
	gormLogger := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLogger)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Session token store: Redis when enabled, in-memory otherwise
	var tokens cache.TokenStore
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		cancel()
		defer redisClient.Close()
		tokens = cache.NewRedisTokenStore(redisClient, "")
		log.Info("Redis connected successfully")
	} else {
		memTokens := cache.NewInMemoryTokenStore()
		defer memTokens.Close()
		tokens = memTokens
	}

	// Object storage
	store, err := storage.NewS3ObjectStore(&cfg.Storage)
	if err != nil {
		log.Fatal("Failed to initialize object storage", zap.Error(err))
	}
	ensureCtx, cancelEnsure := context.WithTimeout(context.Background(), 30*time.Second)
	if err := store.EnsureBucket(ensureCtx); err != nil {
		cancelEnsure()
		log.Fatal("Failed to ensure storage bucket", zap.Error(err))
	}
	cancelEnsure()
	log.Info("Object storage ready", zap.String("bucket", store.GetBucket()))

	// Message broker
	conn, err := queue.Dial(&cfg.AMQP)
	if err != nil {
		log.Fatal("Failed to connect to message broker", zap.Error(err))
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Error("Error closing broker connection", zap.Error(err))
		}
	}()
	if err := conn.DeclareTopology(); err != nil {
		log.Fatal("Failed to declare queue topology", zap.Error(err))
	}
	log.Info("Queue topology declared", zap.String("exchange", cfg.AMQP.Exchange))

	publisher := queue.NewPublisher(conn, log)

	// Repositories
	productRepo := persistence.NewGormProductRepository(db.DB)
	priceRepo := persistence.NewGormPriceRepository(db.DB)
	stockRepo := persistence.NewGormStockRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	ledger := persistence.NewGormProcessedMessageRepository(db.DB)
	creditRepo := persistence.NewGormCreditAdjustmentRepository(db.DB)

	// Application services
	registry := exchangeapp.NewSessionRegistry()
	coordinator := exchangeapp.NewUploadCoordinator(store, publisher, registry, log)
	catalogImport := exchangeapp.NewCatalogImportService(store, productRepo, cfg.Exchange.BatchSize, log)
	offersImport := exchangeapp.NewOffersImportService(store, priceRepo, stockRepo, cfg.Exchange.BatchSize, log)
	push := exchangeapp.NewIntegrationPushService(publisher)
	credits := financeapp.NewCreditService(creditRepo, ledger, log)
	ordersApply := exchangeapp.NewOrdersApplyService(store, orderRepo, ledger, push, credits, log)
	ordersExport := exchangeapp.NewOrdersExportService(store, orderRepo, publisher, log)

	// Consumers
	consumerCtx, stopConsumers := context.WithCancel(context.Background())
	defer stopConsumers()

	consumer := queue.NewConsumer(conn, &cfg.AMQP, log)
	subscriptions := map[exchange.JobType]queue.JobHandler{
		exchange.JobCatalogImport: catalogImport.Handle,
		exchange.JobOffersImport:  offersImport.Handle,
		exchange.JobOrdersApply:   ordersApply.Handle,
		exchange.JobOrdersExport:  ordersExport.Handle,
	}
	for jobType, jobHandler := range subscriptions {
		if err := consumer.Subscribe(consumerCtx, jobType, jobHandler); err != nil {
			log.Fatal("Failed to subscribe consumer",
				zap.String("job_type", jobType.String()),
				zap.Error(err),
			)
		}
	}
	log.Info("Consumers started", zap.Int("queues", len(subscriptions)))

	// Export scheduler
	exportScheduler, err := scheduler.NewExportScheduler(scheduler.ExportSchedulerConfig{
		Enabled:  cfg.Scheduler.Enabled,
		Interval: cfg.Scheduler.ExportInterval,
	}, ordersExport, log)
	if err != nil {
		log.Fatal("Failed to create export scheduler", zap.Error(err))
	}
	if cfg.Scheduler.Enabled {
		if err := exportScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start export scheduler", zap.Error(err))
		}
	}

	// HTTP server
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))

	exchangeHandler := handler.NewExchangeHandler(coordinator, ordersExport, tokens, cfg.Exchange, log)
	healthHandler := handler.NewHealthHandler(db)

	r := router.NewRouter(engine)
	r.Register(healthHandler)
	r.Setup()

	protected := engine.Group("/")
	protected.Use(middleware.BasicAuth(cfg.Exchange.BasicAuthUser, cfg.Exchange.BasicAuthPass))
	protected.Use(middleware.BodyLimit(cfg.Exchange.FileLimit))
	exchangeHandler.RegisterRoutes(protected)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if cfg.Scheduler.Enabled {
		if err := exportScheduler.Stop(ctx); err != nil {
			log.Error("Export scheduler shutdown failed", zap.Error(err))
		}
	}

	stopConsumers()
	consumer.Stop()

	// Open upload sessions would otherwise orphan billable multipart parts
	coordinator.Shutdown(ctx)

	log.Info("Server exited gracefully")
}
