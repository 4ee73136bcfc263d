package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/chbarnhouse/ha-finance-assistant/internal/addon"
	"github.com/chbarnhouse/ha-finance-assistant/internal/backend"
	"github.com/chbarnhouse/ha-finance-assistant/internal/cli"
	"github.com/chbarnhouse/ha-finance-assistant/internal/config"
	"github.com/chbarnhouse/ha-finance-assistant/internal/log"
	"github.com/chbarnhouse/ha-finance-assistant/internal/sensor"
	"github.com/chbarnhouse/ha-finance-assistant/internal/storage"
	"github.com/chbarnhouse/ha-finance-assistant/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	// Command output goes to stdout, so logs default to warnings on stderr.
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.LogLevel = "warn"
	}
	logger := log.New(log.Config{
		Component: log.ComponentCLI,
		Handler: slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: log.ParseLevel(cfg.LogLevel),
		}),
	})
	log.SetDefault(logger)

	ctx, stop := cli.SignalContext()
	defer stop()

	root := cli.NewRootCommand(deps(cfg, logger))
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func deps(cfg *config.Config, logger *log.Logger) cli.Deps {
	openRepo := func() (*storage.SQLiteRepository, error) {
		return storage.NewSQLiteRepository(cfg.SQLiteDBPath, logger)
	}
	historyWorker := func(ctx context.Context) (*worker.HistoryWorker, func() error, error) {
		loc, err := cfg.Location()
		if err != nil {
			return nil, nil, err
		}
		repo, err := openRepo()
		if err != nil {
			return nil, nil, err
		}
		backendCfg, err := backend.FromAppConfig(cfg)
		if err != nil {
			repo.Close()
			return nil, nil, err
		}
		writer, err := backend.NewFactory(logger).CreateWriter(ctx, backendCfg)
		if err != nil {
			repo.Close()
			return nil, nil, err
		}
		return worker.NewHistoryWorker(repo, writer, loc, cfg.HistoryRetention, logger), repo.Close, nil
	}

	return cli.Deps{
		Addon: func(ctx context.Context) (cli.AddonAPI, error) {
			underSupervisor := addon.DetectSupervisor(ctx, nil, cfg.SupervisorURL, cfg.SupervisorToken, logger)
			opts := addon.Options{
				DirectURL: cfg.DirectAddonURL(underSupervisor),
				Timeout:   cfg.RequestTimeout,
				Logger:    logger,
			}
			if underSupervisor {
				opts.SupervisorURL = cfg.SupervisorAddonURL()
				opts.SupervisorToken = cfg.SupervisorToken
			}
			return addon.NewClient(opts), nil
		},
		History: func(context.Context) (cli.HistoryAPI, func() error, error) {
			repo, err := openRepo()
			if err != nil {
				return nil, nil, err
			}
			return repo, repo.Close, nil
		},
		Sensors: func() *sensor.Builder {
			loc, _ := cfg.Location()
			return sensor.NewBuilder(sensor.Options{
				Location: loc,
				Currency: cfg.CurrencyUnit,
				Logger:   logger,
			})
		},
		Export: func(ctx context.Context) error {
			w, closeFn, err := historyWorker(ctx)
			if err != nil {
				return err
			}
			defer closeFn()
			return w.ExportDaily(ctx)
		},
		Prune: func(ctx context.Context) error {
			w, closeFn, err := historyWorker(ctx)
			if err != nil {
				return err
			}
			defer closeFn()
			return w.Prune(ctx)
		},
		Schema: func() (uint, bool, error) {
			return storage.SchemaVersion(cfg.SQLiteDBPath)
		},
	}
}
