package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"sale-service/internal/audit"
	"sale-service/internal/handler"
	"sale-service/internal/inventory"
	"sale-service/internal/invoice"
	"sale-service/internal/memstore"
	"sale-service/internal/middleware"
	"sale-service/internal/sale"
	"sale-service/pkg/config"
	"sale-service/pkg/database"
	"sale-service/pkg/eventbus"
	"sale-service/pkg/jwtutil"
	"sale-service/pkg/logger"
	"sale-service/pkg/redisdb"
	"sale-service/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	if err := logger.InitLogger(cfg); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting sale service", cfg.LogFields()...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := prometheus.NewMetrics(cfg.Metrics.Prefix, promclient.DefaultRegisterer)
	log.Info("Prometheus metrics initialized", zap.String("metrics_prefix", cfg.Metrics.Prefix))

	deps := sale.Dependencies{Metrics: metrics}
	var ping handler.Pinger

	switch cfg.Database.Driver {
	case "postgres":
		if err := database.InitDB(cfg, log); err != nil {
			log.Fatal("Failed to initialize database", zap.Error(err))
		}
		db := database.GetDB()
		if sqlDB, err := db.DB(); err == nil {
			ping = sqlDB.PingContext
			defer sqlDB.Close()
		}
		deps.Catalog = inventory.NewCatalog(db, metrics)
		deps.Ledger = inventory.NewLedger(db, metrics)
		deps.Sales = sale.NewGormRepository(db, metrics)
		log.Info("Database connection established")
	case "memory":
		store := memstore.New()
		deps.Catalog, deps.Ledger, deps.Sales = store, store, store
		log.Warn("Using in-memory storage, data is lost on restart")
	}

	switch cfg.Invoice.Sequencer {
	case "postgres":
		deps.Sequencer = invoice.NewPostgresSequencer(database.GetDB(), metrics, nil)
	case "redis":
		client, err := redisdb.Connect(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer client.Close()
		deps.Sequencer = invoice.NewRedisSequencer(client, nil)
	case "memory":
		deps.Sequencer = invoice.NewMemorySequencer(nil)
	}
	log.Info("Invoice sequencer ready", zap.String("sequencer", cfg.Invoice.Sequencer))

	var sink audit.Sink = audit.NewLogSink(log)
	if cfg.RabbitMQ.URL != "" {
		publisher, err := eventbus.Dial(eventbus.Options{
			URL:             cfg.RabbitMQ.URL,
			Exchange:        cfg.RabbitMQ.Exchange,
			ConnectAttempts: cfg.RabbitMQ.ConnectAttempts,
			RetryDelay:      cfg.RabbitMQ.RetryDelay,
		}, log)
		if err != nil {
			log.Warn("Audit queue unavailable, falling back to log sink", zap.Error(err))
		} else {
			defer publisher.Close()
			sink = audit.NewQueueSink(publisher)
			log.Info("Audit events published to RabbitMQ", zap.String("exchange", cfg.RabbitMQ.Exchange))
		}
	}
	dispatcher := audit.NewDispatcher(sink, audit.Options{
		BufferSize:      cfg.Audit.BufferSize,
		Workers:         cfg.Audit.Workers,
		DeliveryTimeout: cfg.Audit.DeliveryTimeout,
	}, log, metrics)
	deps.Audit = dispatcher

	coordinator := sale.NewCoordinator(deps, sale.Options{
		CommitAttempts:  cfg.Sale.CommitAttempts,
		RetryBackoff:    cfg.Sale.RetryBackoff,
		RollbackTimeout: cfg.Sale.RollbackTimeout,
	})

	jwtUtil := jwtutil.NewJWTUtil(&cfg.JWT)

	e := echo.New()
	e.HideBanner = true

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(middleware.MetricsMiddleware(metrics))
	e.Use(logger.Middleware(log))

	// Public routes
	e.GET("/health", handler.NewHealthHandler(cfg.ServiceName, ping).HealthCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API routes - all require authentication
	api := e.Group("/api", middleware.AuthMiddleware(jwtUtil, metrics))
	handler.RegisterRoutes(api, handler.NewSaleHandler(coordinator), handler.NewStockHandler(coordinator))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed", zap.Error(err))
		}
		if err := dispatcher.Close(shutdownCtx); err != nil {
			log.Error("Audit dispatcher did not drain", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatal("Server error", zap.Error(err))
	}
	log.Info("Sale service stopped")
}
