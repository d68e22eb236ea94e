package main

import (
	"context"
	"errors"
	"os"
	"time"

	"zpend/internal/amqp"
	"zpend/internal/backend"
	"zpend/internal/cli"
	"zpend/internal/config"
	"zpend/internal/insights"
	applog "zpend/internal/log"
	"zpend/internal/services"
	"zpend/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadConfig((*config.Config).ValidateWorker)
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)

	logger.Info("Starting insights-worker", applog.FieldOperation, applog.OpStartup)

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

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}

	// The worker only writes snapshots, so it publishes nothing and keeps no
	// report cache.
	svc := services.NewInsightService(store.Store, nil, services.Options{
		Engine: insights.Options{
			FallbackTip:        cfg.FallbackTip,
			ClassifyEssentials: cfg.ClassifyEssentials,
			Currency:           cfg.CurrencySymbol,
		},
		Logger: logger,
	})
	insightsWorker := worker.NewInsightsWorker(svc, cfg.ClassifyEssentials, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Error("AMQP close error", applog.FieldError, err)
		}
		if err := store.Close(); err != nil {
			logger.Error("Backend close error", applog.FieldOperation, applog.OpShutdown, applog.FieldError, err)
		}
	})

	go func() {
		if err := amqpClient.Consume(ctx, insightsWorker); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", applog.FieldError, err)
		}
	}()

	ticker := time.NewTicker(cfg.SnapshotInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				refreshed, failed := insightsWorker.RefreshKnown(ctx)
				logger.Info("Periodic snapshot refresh",
					applog.FieldOperation, applog.OpSnapshot,
					"refreshed", refreshed,
					"failed", failed)
			}
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
