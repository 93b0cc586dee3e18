package main

import (
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/khqrpos/pos-gateway/internal/adapter/secondary/database"
	"github.com/khqrpos/pos-gateway/internal/adapter/secondary/messaging"
	"github.com/khqrpos/pos-gateway/internal/config"
	"github.com/khqrpos/pos-gateway/internal/constant/model/db"
	"github.com/khqrpos/pos-gateway/internal/core/service"
	"github.com/khqrpos/pos-gateway/internal/port/output"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Initialize secondary adapter: database
	dbConn, err := db.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer dbConn.Close()

	// Initialize secondary adapter: repository (implements output port)
	saleRepo := database.NewGormSaleRepository(dbConn.DB)

	// Expiry sweeper: moves overdue PENDING sales to EXPIRED
	sweeper := service.NewExpirySweeper(saleRepo, cfg.SweepInterval, logger)
	stop := make(chan struct{})
	go sweeper.Run(stop)

	// Initialize secondary adapter: messaging (concrete type for worker)
	msgClient, err := messaging.NewRabbitMQClientConcrete(cfg.AMQPURL, logger)
	if err != nil {
		logger.Fatal("failed to connect to RabbitMQ", zap.Error(err))
	}
	defer msgClient.Close()

	// Consume settled events for the receipt/audit trail
	err = msgClient.ConsumeSettledEvents(func(event output.SettledEvent) error {
		logger.Info("sale settled",
			zap.String("sale_id", event.SaleID.String()),
			zap.String("fingerprint", event.Fingerprint),
			zap.String("amount", event.Amount.String()),
			zap.String("currency", string(event.Currency)),
			zap.Time("settled_at", event.SettledAt),
		)
		return nil
	})
	if err != nil {
		logger.Fatal("failed to start consuming settled events", zap.Error(err))
	}

	logger.Info("sale worker started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	close(stop)
	logger.Info("shutting down worker")
}
