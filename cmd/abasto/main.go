package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/abasto-pos/abasto-pos/internal/app"
	"github.com/abasto-pos/abasto-pos/internal/inventory"
	"github.com/abasto-pos/abasto-pos/internal/masterdata"
	"github.com/abasto-pos/abasto-pos/internal/observability"
	"github.com/abasto-pos/abasto-pos/internal/platform/cache"
	"github.com/abasto-pos/abasto-pos/internal/platform/db"
	"github.com/abasto-pos/abasto-pos/internal/returns"
	"github.com/abasto-pos/abasto-pos/internal/sales"
	"github.com/abasto-pos/abasto-pos/internal/shared"
	"github.com/abasto-pos/abasto-pos/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, tax rates served uncached", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	metrics := observability.NewMetrics()

	masterdataRepo := masterdata.NewRepository(dbpool)
	taxCache := masterdata.NewTaxRateCache(redisClient, masterdataRepo, cfg.StoreCacheTTL)
	masterdataService := masterdata.NewService(masterdataRepo, taxCache, auditLogger)
	masterdataHandler := masterdata.NewHandler(logger, masterdataService)

	inventoryRepo := inventory.NewRepository(dbpool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, metrics)

	salesRepo := sales.NewRepository(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	salesService := sales.NewService(salesRepo, masterdataService, auditLogger, metrics, idempotencyStore)
	salesHandler := sales.NewHandler(logger, salesService)

	returnsRepo := returns.NewRepository(dbpool)
	returnsService := returns.NewService(returnsRepo, auditLogger, metrics)
	returnsHandler := returns.NewHandler(logger, returnsService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		MasterDataHandler: masterdataHandler,
		InventoryHandler:  inventoryHandler,
		SalesHandler:      salesHandler,
		ReturnsHandler:    returnsHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
