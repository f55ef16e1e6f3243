package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/medflow/hospital-erp/internal/inventory/consumers"
	"github.com/medflow/hospital-erp/internal/inventory/events"
	"github.com/medflow/hospital-erp/internal/inventory/handler"
	"github.com/medflow/hospital-erp/internal/inventory/migrations"
	"github.com/medflow/hospital-erp/internal/inventory/notify"
	"github.com/medflow/hospital-erp/internal/inventory/repository"
	"github.com/medflow/hospital-erp/internal/inventory/service"
	"github.com/medflow/hospital-erp/pkg/auth"
	"github.com/medflow/hospital-erp/pkg/config"
	"github.com/medflow/hospital-erp/pkg/database"
	"github.com/medflow/hospital-erp/pkg/httputil"
	"github.com/medflow/hospital-erp/pkg/lock"
	"github.com/medflow/hospital-erp/pkg/logger"
	"github.com/medflow/hospital-erp/pkg/messaging"
	"github.com/medflow/hospital-erp/pkg/wecom"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("inventory-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("inventory-service", cfg.Server.Environment)
	log.Info().Msg("starting Inventory Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := migrations.Apply(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("failed to apply migrations")
		}
		log.Info().Msg("database schema up to date")
	}

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	publisher, err := events.NewInventoryEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	var robot wecom.Sender
	if cfg.WeCom.Enabled {
		robot = wecom.NewClient(cfg.WeCom)
		log.Info().Msg("wecom notifications enabled")
	}
	notifier := notify.New(publisher, robot, log)

	// Scan lease: Redis when configured, otherwise in-process only
	var locker lock.Locker = lock.NewLocal()
	if cfg.Redis.URL != "" {
		redisLocker, err := lock.NewRedisLockerFromURL(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer redisLocker.Close()
		locker = redisLocker
	}

	// Initialize repositories
	itemRepo := repository.NewItemRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	requisitionRepo := repository.NewRequisitionRepository(db)
	procurementRepo := repository.NewProcurementRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)

	// Initialize services
	policy := service.RestockPolicyFromConfig(cfg.Restock)
	ledgerService := service.NewLedgerService(db, itemRepo, batchRepo, transactionRepo, notifier, log)
	transferService := service.NewTransferService(db, ledgerService, itemRepo, transactionRepo, notifier, log)
	restockService := service.NewRestockService(itemRepo, procurementRepo, policy, notifier, log)
	requisitionService := service.NewRequisitionService(
		db, requisitionRepo, itemRepo, transactionRepo, procurementRepo,
		ledgerService, restockService, notifier, log,
	)
	procurementService := service.NewProcurementService(
		db, procurementRepo, requisitionRepo, transactionRepo, ledgerService, policy, notifier, log,
	)
	transactionService := service.NewTransactionService(transactionRepo, log)

	scheduler := service.NewRestockScheduler(
		restockService, locker, cfg.Restock.Schedule, cfg.Redis.LockTTL, cfg.Restock.Timeout, log,
	)
	if cfg.Restock.Enabled {
		if err := scheduler.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start restock scheduler")
		}
	}

	// Start approval decision consumer
	approvalConsumer, err := consumers.NewApprovalEventConsumer(rmq, procurementService, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create approval event consumer")
	}
	if err := approvalConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start approval event consumer")
	}

	handlers := &handler.Handlers{
		Items:        handler.NewItemHandler(ledgerService, log),
		Requisitions: handler.NewRequisitionHandler(requisitionService, log),
		Transfers:    handler.NewTransferHandler(transferService, log),
		Restock:      handler.NewRestockHandler(scheduler, log),
		Procurement:  handler.NewProcurementHandler(procurementService, log),
		Transactions: handler.NewTransactionHandler(transactionService, log),
	}

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httputil.IdentityMiddleware(auth.NewVerifier(&cfg.JWT)))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "inventory-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes
	r.Route("/api/v1/inventory", handlers.Mount)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Stop the scheduler and the consumer, then flush pending notifications.
	// Both notify from their own goroutines, so they must be idle before Wait.
	if cfg.Restock.Enabled {
		scheduler.Stop()
	}
	cancel()
	if err := approvalConsumer.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("approval consumer did not stop in time")
	}

	if err := notifier.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("pending notifications dropped")
	}

	log.Info().Msg("server stopped")
}
