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

	"procurement-service/config"
	"procurement-service/internal/api"
	"procurement-service/internal/broker"
	"procurement-service/internal/redisclient"
	"procurement-service/internal/service"
	"procurement-service/internal/store"
	"procurement-service/internal/util"
	"procurement-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "procurement-service"

func main() {

	cfg := config.Load()

	if err := util.InitLogger(serviceName, cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting procurement service")

	tp, err := util.InitTracer(util.TracingConfig{
		ServiceName:    serviceName,
		Environment:    cfg.Server.Env,
		JaegerEndpoint: cfg.Observ.JaegerEndpoint,
		SampleRatio:    cfg.Observ.TraceSampleRatio,
	})
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

	if cfg.Database.AutoMigrate {
		if err := store.Migrate(cfg.Database.URL, 0); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		logger.Info("Database schema up to date")
	}

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicOrder))

	eventPublisher := broker.NewEventPublisher(producer)

	stockService := service.NewStockService()
	orderService := service.NewOrderService(db, redisClient, eventPublisher, stockService, cfg.Business.IdempotencyTTL)
	paymentService := service.NewPaymentService(db, redisClient, eventPublisher)
	ledgerService := service.NewLedgerService(db, redisClient, cfg.Business.LedgerCacheTTL)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	catalogConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicCatalog, cfg.Kafka.ConsumerGroup)
	catalogWorker := worker.NewCatalogWorker(catalogConsumer, db, redisClient)
	go func() {
		if err := catalogWorker.Start(workerCtx); err != nil {
			logger.Error("Catalog worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(orderService, paymentService, ledgerService, db, cfg.Business.RequestTimeout)
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
	if err := catalogWorker.Stop(); err != nil {
		logger.Warn("Failed to close catalog consumer", zap.Error(err))
	}

	logger.Info("Server exited")
}
