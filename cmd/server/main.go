package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	reconapp "github.com/arflow/backend/internal/application/reconciliation"
	riskapp "github.com/arflow/backend/internal/application/risk"
	"github.com/arflow/backend/internal/domain/matching"
	"github.com/arflow/backend/internal/infrastructure/cache"
	"github.com/arflow/backend/internal/infrastructure/config"
	"github.com/arflow/backend/internal/infrastructure/event"
	"github.com/arflow/backend/internal/infrastructure/logger"
	"github.com/arflow/backend/internal/infrastructure/oracle"
	"github.com/arflow/backend/internal/infrastructure/persistence"
	"github.com/arflow/backend/internal/infrastructure/telemetry"
	"github.com/arflow/backend/internal/interfaces/http/handler"
	"github.com/arflow/backend/internal/interfaces/http/middleware"
	"github.com/arflow/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxRequestBodyBytes bounds incoming request bodies; reconciliation
// requests are small JSON documents.
const maxRequestBodyBytes = 1 << 20 // 1MB

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

	log.Info("Starting ArFlow backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize telemetry
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Redis-backed run lock keeps reconciliation runs from overlapping
	runLock, err := cache.NewRedisRunLock(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := runLock.Close(); err != nil {
			log.Error("Error closing Redis client", zap.Error(err))
		}
	}()
	log.Info("Redis connected successfully")

	// Initialize repositories
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	allocationRepo := persistence.NewGormAllocationRepository(db.DB)
	aggregateRepo := persistence.NewGormAccountAggregateRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Transactional outbox: domain events commit atomically with the ledger
	// changes that raised them, then a background processor dispatches them
	serializer := event.NewEventSerializer()
	event.RegisterLedgerEvents(serializer)
	outboxPublisher := event.NewOutboxPublisher(serializer)
	invoiceRepo.SetOutboxEventSaver(outboxPublisher)
	paymentRepo.SetOutboxEventSaver(outboxPublisher)
	txScope.SetOutboxEventSaver(outboxPublisher)

	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(event.NewAuditLogHandler(log))

	outboxProcessor := event.NewOutboxProcessor(
		event.NewGormOutboxRepository(db.DB),
		eventBus,
		serializer,
		event.DefaultOutboxProcessorConfig(),
		log,
	)
	if err := outboxProcessor.Start(context.Background()); err != nil {
		log.Fatal("Failed to start outbox processor", zap.Error(err))
	}

	// The AI oracle is optional; without it the matching engine stops
	// after the exact and heuristic tiers
	var matchOracle matching.MatchOracle
	if cfg.Oracle.Enabled {
		matchOracle = oracle.NewClient(oracle.Config{
			Endpoint:   cfg.Oracle.Endpoint,
			APIKey:     cfg.Oracle.APIKey,
			Model:      cfg.Oracle.Model,
			Timeout:    cfg.Oracle.Timeout,
			MaxRetries: cfg.Oracle.MaxRetries,
		}, log)
		log.Info("Match oracle enabled", zap.String("model", cfg.Oracle.Model))
	} else {
		log.Info("Match oracle disabled; running exact and heuristic tiers only")
	}

	// Initialize application services
	engine := matching.NewDefaultEngine(matchOracle, log)
	matchingService := reconapp.NewMatchingService(txScope, engine, log)
	allocationService := reconapp.NewAllocationService(txScope, log)
	compensationService := reconapp.NewCompensationService(txScope, log)
	importService := reconapp.NewPaymentImportService(txScope, log)
	coordinator := reconapp.NewBatchCoordinator(matchingService, allocationService, paymentRepo, runLock, log).
		WithRunLockTTL(cfg.Matching.RunLockTTL)
	scoringService := riskapp.NewScoringService(invoiceRepo, aggregateRepo, log)

	// Initialize HTTP handlers
	reconciliationHandler := handler.NewReconciliationHandler(coordinator, allocationService, compensationService, importService, allocationRepo)
	riskHandler := handler.NewRiskHandler(scoringService, aggregateRepo)
	systemHandler := handler.NewSystemHandler(db.DB)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	ginEngine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := ginEngine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	// 7. Tenant - Resolve the tenant from X-Tenant-ID
	// 8. Tracing - OpenTelemetry spans with tenant/request attributes
	ginEngine.Use(middleware.RequestID())
	ginEngine.Use(logger.Recovery(log))
	ginEngine.Use(logger.GinMiddleware(log))
	ginEngine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	ginEngine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	ginEngine.Use(middleware.BodyLimit(maxRequestBodyBytes))

	// Tenant resolution
	tenantConfig := middleware.DefaultTenantConfig()
	tenantConfig.Logger = log
	ginEngine.Use(middleware.TenantMiddlewareWithConfig(tenantConfig))

	// Tracing (spans are enriched with request/tenant attributes and
	// marked as errored for 4xx/5xx responses)
	ginEngine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
	}))
	ginEngine.Use(middleware.TracingAttributeInjector())
	ginEngine.Use(middleware.SpanErrorMarker())

	// Health check endpoint (outside API versioning)
	ginEngine.GET("/health", systemHandler.Health)

	// Mount API routes under /api/v1
	router.NewRouter(ginEngine, router.WithAPIVersion("v1")).
		Register(reconciliationHandler).
		Register(riskHandler).
		Register(router.RegistrarFunc(func(api *gin.RouterGroup) {
			system := api.Group("/system")
			system.GET("/info", systemHandler.GetSystemInfo)
			system.GET("/ping", systemHandler.Ping)
		})).
		Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        ginEngine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
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

	if err := outboxProcessor.Stop(ctx); err != nil {
		log.Error("Error stopping outbox processor", zap.Error(err))
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
