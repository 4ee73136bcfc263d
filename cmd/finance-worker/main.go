package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/chbarnhouse/ha-finance-assistant/internal/amqp"
	"github.com/chbarnhouse/ha-finance-assistant/internal/backend"
	"github.com/chbarnhouse/ha-finance-assistant/internal/cli"
	"github.com/chbarnhouse/ha-finance-assistant/internal/log"
	"github.com/chbarnhouse/ha-finance-assistant/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadConfig()
	logger = logger.WithComponent(log.ComponentWorker)
	logger.Info("Starting finance-worker", log.FieldOperation, log.OpStartup)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid time zone", "time_zone", cfg.TimeZone, log.FieldError, err)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	writer, err := backend.NewFactory(logger).CreateWriter(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize sheet writer", log.FieldError, err)
		os.Exit(1)
	}

	historyWorker := worker.NewHistoryWorker(repo, writer, loc, cfg.HistoryRetention, logger)

	scheduler := worker.NewScheduler(loc, logger)
	if err := scheduler.AddHistoryJobs(historyWorker, cfg.ExportSchedule, cfg.PruneSchedule); err != nil {
		logger.Error("Invalid job schedule", log.FieldError, err)
		os.Exit(1)
	}
	if err := scheduler.Start(); err != nil {
		logger.Error("Failed to start scheduler", log.FieldError, err)
		os.Exit(1)
	}

	consumeDone := make(chan struct{})
	if cfg.AMQPEnabled() {
		amqpClient, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		go func() {
			defer close(consumeDone)
			if err := amqpClient.ConsumeSnapshots(ctx, historyWorker.HandleSnapshot); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
				stop()
			}
		}()
	} else {
		logger.Info("AMQP disabled, the bridge writes snapshots to SQLite directly")
		close(consumeDone)
	}

	<-ctx.Done()
	logger.Info("Shutting down worker", log.FieldOperation, log.OpShutdown)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Error("Scheduler shutdown failed", log.FieldError, err)
	}
	select {
	case <-consumeDone:
		logger.Info("Worker shutdown complete")
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached")
	}
}
