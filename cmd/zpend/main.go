package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"zpend/internal/amqp"
	"zpend/internal/backend"
	"zpend/internal/cache"
	"zpend/internal/cli"
	"zpend/internal/config"
	apphttp "zpend/internal/http"
	"zpend/internal/insights"
	applog "zpend/internal/log"
	"zpend/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadConfig((*config.Config).Validate)
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	store, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	reports := cache.NewLRUCache[insights.Report](cfg.CacheSize, cfg.CacheTTL)
	cacheManager := cache.NewManager(logger)
	cacheManager.Register(reports)
	cacheManager.StartCleanup(cfg.CacheTTL)

	// The publisher stays a nil interface without AMQP so events are skipped.
	var publisher services.EventPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		publisher = amqpClient
		logger.Info("AMQP publishing enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	svc := services.NewInsightService(store.Store, publisher, services.Options{
		Engine: insights.Options{
			FallbackTip:        cfg.FallbackTip,
			ClassifyEssentials: cfg.ClassifyEssentials,
			Currency:           cfg.CurrencySymbol,
		},
		Cache:  reports,
		Logger: logger,
	})

	opts := apphttp.Options{
		Addr:               ":" + cfg.Port,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		BlockSuspicious:    cfg.BlockSuspicious,
		CacheStats:         reports.Stats,
	}
	if p, ok := store.Store.(apphttp.Pinger); ok {
		opts.Ready = p
	}
	srv := apphttp.NewServer(svc, opts)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("AMQP close error", applog.FieldError, err)
			}
		}
		if err := store.Close(); err != nil {
			logger.Error("Backend close error", applog.FieldOperation, applog.OpShutdown, applog.FieldError, err)
		}
	})

	logger.Info("Starting zpend server", applog.FieldOperation, applog.OpStartup, "port", cfg.Port, applog.FieldBackend, cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
