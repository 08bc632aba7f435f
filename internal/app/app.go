package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/chrissnell/pfmforecast/internal/managers"
	"github.com/chrissnell/pfmforecast/internal/observability"
	"github.com/chrissnell/pfmforecast/pkg/config"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
	clock          clockwork.Clock
	debug          bool
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger, debug bool) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
		clock:          clockwork.NewRealClock(),
		debug:          debug,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	loc, err := cfg.Station.Location()
	if err != nil {
		return err
	}

	storageManager, err := managers.NewStorageManager(ctx, &wg, cfg.Storage, a.clock, a.logger.Named("storage"))
	if err != nil {
		return err
	}

	cm, err := managers.NewControllerManager(ctx, &wg, cfg.Controllers, managers.Dependencies{
		Repository: storageManager.Repository,
		Health:     storageManager.Health,
		Metrics:    observability.NewMetrics(),
		Location:   loc,
		Clock:      a.clock,
		Debug:      a.debug,
	}, a.logger)
	if err != nil {
		cancel()
		wg.Wait()
		return err
	}
	if err := cm.StartControllers(); err != nil {
		cancel()
		wg.Wait()
		return err
	}

	a.logger.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// Wait for shutdown signal
	select {
	case <-sigs:
		a.logger.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		a.logger.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	a.logger.Info("waiting for all workers to terminate...")
	wg.Wait()
	a.logger.Info("shutdown complete")

	return nil
}
