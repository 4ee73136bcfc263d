package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/chbarnhouse/ha-finance-assistant/internal/addon"
	"github.com/chbarnhouse/ha-finance-assistant/internal/backend"
	"github.com/chbarnhouse/ha-finance-assistant/internal/cache"
	"github.com/chbarnhouse/ha-finance-assistant/internal/cli"
	"github.com/chbarnhouse/ha-finance-assistant/internal/config"
	"github.com/chbarnhouse/ha-finance-assistant/internal/hass"
	apphttp "github.com/chbarnhouse/ha-finance-assistant/internal/http"
	"github.com/chbarnhouse/ha-finance-assistant/internal/log"
	"github.com/chbarnhouse/ha-finance-assistant/internal/sensor"
	"github.com/chbarnhouse/ha-finance-assistant/internal/services"
)

const (
	integrationTitle = "Finance Assistant"
	shutdownTimeout  = 30 * time.Second
	cacheSweep       = 10 * time.Minute
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadConfig()
	logger.Info("Starting finance-assistant", log.FieldOperation, log.OpStartup)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid time zone", "time_zone", cfg.TimeZone, log.FieldError, err)
		os.Exit(1)
	}
	rules, err := config.LoadEntityRules(cfg.EntityRulesFile)
	if err != nil {
		logger.Error("Failed to load entity rules", "path", cfg.EntityRulesFile, log.FieldError, err)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	underSupervisor := addon.DetectSupervisor(ctx, nil, cfg.SupervisorURL, cfg.SupervisorToken, logger)
	logger.Info("Runtime detected", "supervisor", underSupervisor)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	sink, err := backend.NewFactory(logger).CreateSink(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize snapshot sink", log.FieldError, err, "sink", backendCfg.Type.String())
		os.Exit(1)
	}

	if _, err := sink.Repository.RegisterIntegration(ctx, sensor.Domain, uuid.NewString(), integrationTitle); err != nil {
		logger.Error("Failed to register integration", log.FieldError, err)
		os.Exit(1)
	}
	instanceID, err := sink.Repository.InstanceID(ctx, sensor.Domain)
	if err != nil {
		logger.Error("Failed to read instance ID", log.FieldError, err)
		os.Exit(1)
	}

	addonOpts := addon.Options{
		DirectURL: cfg.DirectAddonURL(underSupervisor),
		Timeout:   cfg.RequestTimeout,
		Logger:    logger,
	}
	if underSupervisor {
		addonOpts.SupervisorURL = cfg.SupervisorAddonURL()
		addonOpts.SupervisorToken = cfg.SupervisorToken
	}
	addonClient := addon.NewClient(addonOpts)

	haURL, haToken := cfg.HomeAssistant(underSupervisor)
	hassClient := hass.NewClient(hass.Options{
		BaseURL:  haURL,
		Token:    haToken,
		Timeout:  cfg.RequestTimeout,
		PriceTTL: cfg.PriceCacheTTL,
		Logger:   logger,
	})

	builder := sensor.NewBuilder(sensor.Options{
		InstanceID: instanceID,
		Location:   loc,
		Currency:   cfg.CurrencyUnit,
		Prices:     hassClient,
		Logger:     logger,
	})
	coordinator := services.NewCoordinator(addonClient, services.CoordinatorConfig{ScanInterval: cfg.ScanInterval}, logger)
	publisher := services.NewPublisher(builder, hassClient, sink.Sink, rules, services.PublisherConfig{
		Concurrency:     cfg.PublishConcurrency,
		RatePerSecond:   cfg.PublishRate,
		StateRefreshTTL: cfg.StateRefreshTTL,
	}, logger)
	coordinator.Subscribe(publisher.Listener(ctx))

	cacheManager := cache.NewManager(logger)
	cacheManager.Register(publisher.PublishedCache())
	cacheManager.StartCleanup(cacheSweep)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:      net.JoinHostPort("", cfg.Port),
		Sensors:   publisher,
		Refresher: coordinator,
		History:   sink.Repository,
		Logger:    logger,
	})
	go func() {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", log.FieldError, err)
			stop()
		}
	}()

	setupErr := setup(ctx, addonClient, coordinator, cfg.SetupRetryInterval, logger)
	if setupErr != nil {
		logger.Error("Setup failed", log.FieldOperation, log.OpSetup, log.FieldError, setupErr)
	} else if err := coordinator.Start(ctx); err != nil {
		logger.Error("Failed to start coordinator", log.FieldError, err)
	} else {
		<-ctx.Done()
	}

	logger.Info("Shutting down", log.FieldOperation, log.OpShutdown)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", log.FieldError, err)
	}
	if err := coordinator.Stop(shutdownCtx); err != nil {
		logger.Error("Coordinator shutdown failed", log.FieldError, err)
	}
	cacheManager.Stop()
	if err := hassClient.Close(); err != nil {
		logger.Error("Price cache shutdown failed", log.FieldError, err)
	}
	if err := sink.Cleanup(); err != nil {
		logger.Error("Snapshot sink cleanup failed", log.FieldError, err)
	}
	logger.Info("Shutdown complete")

	if setupErr != nil && !errors.Is(setupErr, context.Canceled) {
		cancel()
		os.Exit(1)
	}
}

// setup verifies the add-on and performs the first refresh, retrying until
// both succeed, ctx ends or the add-on rejects the credentials.
func setup(ctx context.Context, client *addon.Client, coordinator *services.Coordinator, retry time.Duration, logger *log.Logger) error {
	for attempt := 1; ; attempt++ {
		err := client.VerifyConnection(ctx)
		if err == nil {
			err = coordinator.FirstRefresh(ctx)
		}
		if err == nil {
			logger.InfoContext(ctx, "Setup complete", log.FieldOperation, log.OpSetup, "attempt", attempt)
			return nil
		}
		if errors.Is(err, addon.ErrAuthentication) {
			return err
		}
		logger.WarnContext(ctx, "Add-on not ready, retrying",
			log.FieldOperation, log.OpSetup,
			"attempt", attempt,
			"retry_in", retry,
			log.FieldError, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry):
		}
	}
}
