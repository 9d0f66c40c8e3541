package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/openretail/pos/internal/adapter/events"
	"github.com/openretail/pos/internal/adapter/handler"
	"github.com/openretail/pos/internal/adapter/storage"
	"github.com/openretail/pos/internal/config"
	"github.com/openretail/pos/internal/core/service"
	"github.com/openretail/pos/internal/port"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()
	logger = logger.With(
		zap.String("service", config.ServiceName),
		zap.String("version", config.ServiceVersion),
	)

	cfg := config.Load()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("failed to connect mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	logger.Info("connected to mysql")

	// Optional Redis: checkout idempotency plus a pub/sub event transport
	var (
		idempotency port.IdempotencyStore
		publishers  []port.EventPublisher
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		defer rdb.Close()
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))

		idempotency = storage.NewRedisAdapter(rdb)
		publishers = append(publishers, events.NewRedisPublisher(rdb, cfg.EventTopic))
	}

	// Optional Kafka event transport
	if cfg.KafkaBroker != "" {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBroker, cfg.EventTopic)
		defer kafkaPublisher.Close()
		publishers = append(publishers, kafkaPublisher)
		logger.Info("kafka publisher enabled", zap.String("broker", cfg.KafkaBroker))
	}

	store := storage.NewMySQLAdapter(db)
	fanout := events.NewFanout(logger, publishers...)

	saleService := service.NewSaleService(store, fanout, logger)
	productService := service.NewProductService(store, fanout, logger)

	httpHandler := handler.NewHTTPHandler(saleService, productService, idempotency, logger)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpHandler.Routes(),
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("HTTP server stopped")

	db.Close()
	logger.Info("connections closed")
}
