package managers

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chrissnell/pfmforecast/internal/pfm"
	"github.com/chrissnell/pfmforecast/internal/storage"
	"github.com/chrissnell/pfmforecast/pkg/config"
)

func TestStorageManagerSQLite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	clock := clockwork.NewFakeClock()

	sm, err := NewStorageManager(ctx, &wg, config.StorageData{
		SQLite: &config.SQLiteData{Path: filepath.Join(t.TempDir(), "f.db")},
	}, clock, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Equal(t, "sqlite", sm.Backend)

	require.Eventually(t, func() bool {
		h, ok := sm.Health.GetHealth("sqlite")
		return ok && h.Status == "healthy"
	}, time.Second, 10*time.Millisecond)

	cancel()
	wg.Wait()
	_, err = sm.Repository.Locations(context.Background(), "NWS")
	assert.ErrorIs(t, err, storage.ErrClosed)
}

func TestStorageManagerMisconfigured(t *testing.T) {
	var wg sync.WaitGroup
	log := zap.NewNop().Sugar()

	_, err := NewStorageManager(context.Background(), &wg, config.StorageData{}, nil, log)
	assert.True(t, errors.Is(err, storage.ErrUnknownBackend))

	_, err = NewStorageManager(context.Background(), &wg, config.StorageData{
		SQLite:      &config.SQLiteData{Path: "a.db"},
		TimescaleDB: &config.TimescaleDBData{ConnectionString: "postgres://x"},
	}, nil, log)
	assert.Error(t, err)
}

func TestControllerManager(t *testing.T) {
	var wg sync.WaitGroup
	log := zap.NewNop().Sugar()
	deps := Dependencies{Repository: nopRepo{}, Health: storage.NewHealthManager()}

	cm, err := NewControllerManager(context.Background(), &wg, []config.ControllerData{
		{Type: "nwspfm", NWSPFM: &config.NWSPFMData{Office: "BOX", Locations: []string{"CTZ002"}, Method: "NWSBOX"}},
		{Type: "rest"},
	}, deps, log)
	require.NoError(t, err)
	m := cm.(*controllerManager)
	assert.Len(t, m.controllers, 2)
	assert.Equal(t, []string{"CTZ002"}, m.locations)
	assert.Equal(t, "NWSBOX", m.method)

	_, err = NewControllerManager(context.Background(), &wg, []config.ControllerData{{Type: "aprs"}}, deps, log)
	assert.ErrorContains(t, err, "unknown controller type")

	_, err = NewControllerManager(context.Background(), &wg, []config.ControllerData{{Type: "nwspfm"}}, deps, log)
	assert.Error(t, err)
}

type nopRepo struct{}

func (nopRepo) Append(context.Context, []pfm.ForecastRecord) (int64, error) { return 0, nil }
func (nopRepo) Query(context.Context, storage.Query) ([]pfm.ForecastRecord, error) {
	return nil, nil
}
func (nopRepo) Locations(context.Context, string) ([]string, error)      { return nil, nil }
func (nopRepo) Prune(context.Context, string, time.Time) (int64, error) { return 0, nil }
func (nopRepo) Vacuum(context.Context) error                             { return nil }
func (nopRepo) Close() error                                             { return nil }
