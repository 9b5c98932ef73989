package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tailor-service/config"
	"tailor-service/internal/api"
	"tailor-service/internal/broker"
	"tailor-service/internal/redisclient"
	"tailor-service/internal/service"
	"tailor-service/internal/store"
	"tailor-service/internal/store/memstore"
	"tailor-service/internal/util"
	"tailor-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// backend is a repository that can be health-checked and closed
type backend interface {
	service.Repository
	api.Pinger
	Close() error
}

// coordinator provides locks and idempotency keys
type coordinator interface {
	service.Locker
	service.IdempotencyStore
	api.Pinger
	Close() error
}

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting tailor service", zap.String("env", cfg.Server.Env))

	tp, err := util.InitTracer("tailor-service", cfg.Observ.JaegerEndpoint, cfg.Observ.SampleRatio)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := openBackend(cfg)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	coord, err := openCoordinator(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer coord.Close()

	alertService := service.NewAlertService(db, db)

	// With Kafka the worker consumes from the topic; without it events are
	// delivered in-process to the same handlers.
	var (
		publisher   service.EventPublisher
		alertWorker *worker.AlertWorker
	)
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))

		publisher = broker.NewEventPublisher(producer)
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.ConsumerGroup)
		alertWorker = worker.NewAlertWorker(consumer, alertService)
	} else {
		alertWorker = worker.NewAlertWorker(nil, alertService)
		publisher = broker.NewLocalPublisher(alertWorker.Handler())
		logger.Info("Kafka disabled, delivering events in-process")
	}

	orderService := service.NewOrderService(db, coord, coord, publisher, service.OrderOptions{
		IdempotencyTTL:    cfg.Business.IdempotencyTTL,
		CompletionLockTTL: cfg.Business.CompletionLockTTL,
	})

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	go func() {
		if err := alertWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
			logger.Error("Alert worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Customers: service.NewCustomerService(db),
		Inventory: service.NewInventoryService(db, publisher),
		Orders:    orderService,
		Stats:     service.NewStatsService(db),
		Alerts:    alertService,
	}, map[string]api.Pinger{
		"database": db,
		"redis":    coord,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := alertWorker.Stop(); err != nil {
		logger.Error("Error stopping alert worker", zap.Error(err))
	}

	logger.Info("Server exited")
}

func openBackend(cfg *config.Config) (backend, error) {
	logger := util.GetLogger()
	if cfg.Database.InMemory() {
		logger.Warn("Using in-memory store, data is lost on exit")
		return memstore.New(), nil
	}

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	logger.Info("Database connected")

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := db.Migrate(ctx, "up"); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("Database migrations applied")
	}
	return db, nil
}

func openCoordinator(cfg *config.Config) (coordinator, error) {
	logger := util.GetLogger()
	if !cfg.Redis.Enabled {
		logger.Warn("Redis disabled, locks and idempotency keys are process-local")
		return redisclient.NewLocal(), nil
	}

	client, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}
	logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))
	return client, nil
}
