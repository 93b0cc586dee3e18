package main

import (
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	poshttp "github.com/khqrpos/pos-gateway/internal/adapter/primary/http"
	"github.com/khqrpos/pos-gateway/internal/adapter/secondary/bakong"
	"github.com/khqrpos/pos-gateway/internal/adapter/secondary/database"
	"github.com/khqrpos/pos-gateway/internal/adapter/secondary/messaging"
	"github.com/khqrpos/pos-gateway/internal/adapter/secondary/qr"
	"github.com/khqrpos/pos-gateway/internal/config"
	"github.com/khqrpos/pos-gateway/internal/constant/model/db"
	"github.com/khqrpos/pos-gateway/internal/core/khqr"
	"github.com/khqrpos/pos-gateway/internal/core/service"
	"github.com/khqrpos/pos-gateway/internal/port/output"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Errorf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	// Initialize secondary adapter: sale repository
	var saleRepo output.SaleRepository
	switch cfg.Store {
	case "memory":
		logger.Warn("using in-memory sale store; records will not survive restart")
		saleRepo = database.NewMemorySaleRepository()
	default:
		dbConn, err := db.NewDB(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer dbConn.Close()
		saleRepo = database.NewGormSaleRepository(dbConn.DB)
	}

	// Initialize secondary adapter: settled-event messaging. In memory/demo
	// mode a missing broker is tolerated; events are simply not published.
	var saleMsg output.SaleMessaging
	msgClient, err := messaging.NewRabbitMQClient(cfg.AMQPURL, logger)
	if err != nil {
		if cfg.Store != "memory" {
			logger.Fatal("failed to connect to RabbitMQ", zap.Error(err))
		}
		logger.Warn("RabbitMQ unavailable, settled events will not be published", zap.Error(err))
	} else {
		saleMsg = msgClient
		defer msgClient.Close()
	}

	// Initialize secondary adapters: settlement oracle and QR renderer
	oracle := bakong.NewClient(cfg.BakongAPIBase, cfg.BakongToken, cfg.OracleTimeout, logger)
	renderer := qr.NewPNGRenderer()

	// Initialize core service (implements input port)
	saleService := service.NewSaleService(
		saleRepo,
		oracle,
		saleMsg,
		renderer,
		khqr.NewBuilder(cfg.Merchant),
		cfg.SaleTTL,
		logger,
	)

	// Initialize primary adapter: HTTP handler (uses input port)
	saleHandler := poshttp.NewSaleHandler(saleService, cfg.EnableTestConfirm)

	// Initialize Echo
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Routes
	saleHandler.Register(e.Group("/api/v1"))

	// Health check; reports whether real settlement checks are possible
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]interface{}{
			"status":                "ok",
			"payment_check_enabled": oracle.Enabled(),
		})
	})

	// Prometheus metrics
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	logger.Info("starting API server", zap.String("addr", addr))
	if err := e.Start(addr); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
