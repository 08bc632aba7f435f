package managers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/chrissnell/pfmforecast/internal/storage"
	"github.com/chrissnell/pfmforecast/internal/storage/sqlite"
	"github.com/chrissnell/pfmforecast/internal/storage/timescaledb"
	"github.com/chrissnell/pfmforecast/pkg/config"
)

// healthInterval is how often the storage backend is pinged.
const healthInterval = 30 * time.Second

// repository is a forecast repository that can also report its health.
type repository interface {
	storage.ForecastRepository
	storage.Pinger
}

// StorageManager holds the active storage backend
type StorageManager struct {
	Repository storage.ForecastRepository
	Backend    string
	Health     *storage.HealthManager
	logger     *zap.SugaredLogger
}

// NewStorageManager opens the configured backend and starts watching its
// health. The backend is closed when ctx is cancelled.
func NewStorageManager(ctx context.Context, wg *sync.WaitGroup, c config.StorageData, clock clockwork.Clock, logger *zap.SugaredLogger) (*StorageManager, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	backend, repo, err := openBackend(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	s := &StorageManager{
		Repository: repo,
		Backend:    backend,
		Health:     storage.NewHealthManager(),
		logger:     logger,
	}
	s.Health.Monitor(ctx, wg, backend, repo, healthInterval, clock, logger)

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		if err := repo.Close(); err != nil {
			logger.Errorf("error closing %s storage: %v", backend, err)
		}
	}()

	logger.Infof("Using %s storage backend", backend)
	return s, nil
}

func openBackend(ctx context.Context, c config.StorageData, logger *zap.SugaredLogger) (string, repository, error) {
	if c.SQLite != nil && c.TimescaleDB != nil {
		return "", nil, fmt.Errorf("only one storage backend may be configured")
	}

	switch {
	case c.SQLite != nil && c.SQLite.Path != "":
		repo, err := sqlite.Open(c.SQLite.Path, logger)
		if err != nil {
			return "", nil, fmt.Errorf("could not open SQLite storage: %w", err)
		}
		return "sqlite", repo, nil
	case c.TimescaleDB != nil && c.TimescaleDB.ConnectionString != "":
		repo, err := timescaledb.New(ctx, c.TimescaleDB.ConnectionString, logger)
		if err != nil {
			return "", nil, fmt.Errorf("could not add TimescaleDB storage backend: %w", err)
		}
		return "timescaledb", repo, nil
	}
	return "", nil, storage.ErrUnknownBackend
}
