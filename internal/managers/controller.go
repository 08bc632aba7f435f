package managers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/chrissnell/pfmforecast/internal/controllers/nwspfm"
	"github.com/chrissnell/pfmforecast/internal/controllers/restserver"
	"github.com/chrissnell/pfmforecast/internal/forecast"
	"github.com/chrissnell/pfmforecast/internal/observability"
	"github.com/chrissnell/pfmforecast/internal/pfm"
	"github.com/chrissnell/pfmforecast/internal/storage"
	"github.com/chrissnell/pfmforecast/pkg/config"
)

// ControllerManager interface for the controller manager
type ControllerManager interface {
	StartControllers() error
}

// Controller is an interface that provides standard methods for various controller backends
type Controller interface {
	StartController() error
}

// Dependencies are the shared collaborators handed to every controller.
type Dependencies struct {
	Repository storage.ForecastRepository
	Health     *storage.HealthManager
	Metrics    *observability.Metrics
	// Location is the station zone. Nil leaves zone choice to each bulletin.
	Location *time.Location
	Clock    clockwork.Clock
	Debug    bool
}

type controllerManager struct {
	ctx         context.Context
	wg          *sync.WaitGroup
	deps        Dependencies
	logger      *zap.SugaredLogger
	controllers []Controller
	locations   []string
	method      string
}

// NewControllerManager creates a new controller manager
func NewControllerManager(ctx context.Context, wg *sync.WaitGroup, configs []config.ControllerData, deps Dependencies, logger *zap.SugaredLogger) (ControllerManager, error) {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewMetrics()
	}
	cm := &controllerManager{
		ctx:         ctx,
		wg:          wg,
		deps:        deps,
		logger:      logger,
		controllers: make([]Controller, 0, len(configs)),
	}

	// The REST server lists every fetched location, so fetchers come first.
	for _, cc := range configs {
		if cc.Type == "nwspfm" && cc.NWSPFM != nil {
			cm.locations = append(cm.locations, cc.NWSPFM.Locations...)
			if cm.method == "" {
				cm.method = cc.NWSPFM.MethodTag()
			}
		}
	}
	if cm.method == "" {
		cm.method = pfm.DefaultMethod
	}

	for _, cc := range configs {
		controller, err := cm.createController(cc)
		if err != nil {
			return nil, fmt.Errorf("error creating controller: %v", err)
		}
		cm.controllers = append(cm.controllers, controller)
	}

	return cm, nil
}

func (c *controllerManager) StartControllers() error {
	c.logger.Info("Starting controller manager...")

	for _, controller := range c.controllers {
		err := controller.StartController()
		if err != nil {
			return fmt.Errorf("error starting controller: %v", err)
		}
	}

	c.logger.Infof("Started %d controllers successfully", len(c.controllers))
	return nil
}

// createController creates a controller based on the controller configuration
func (cm *controllerManager) createController(cc config.ControllerData) (Controller, error) {
	switch cc.Type {
	case "nwspfm":
		if cc.NWSPFM == nil {
			return nil, fmt.Errorf("nwspfm controller has no nwspfm section")
		}
		return nwspfm.NewController(cm.ctx, cm.wg, *cc.NWSPFM, nwspfm.Options{
			Repository: cm.deps.Repository,
			Metrics:    cm.deps.Metrics,
			Location:   cm.deps.Location,
			Clock:      cm.deps.Clock,
			Logger:     cm.logger.Named("nwspfm"),
		})
	case "restserver", "rest":
		var rc config.RESTServerData
		if cc.RESTServer != nil {
			rc = *cc.RESTServer
		}
		loc := cm.deps.Location
		if loc == nil {
			loc = time.UTC
		}
		return restserver.NewController(cm.ctx, cm.wg, rc, restserver.Options{
			Service:   forecast.NewService(cm.deps.Repository, loc, cm.method),
			Locations: cm.locations,
			Health:    cm.deps.Health,
			Metrics:   cm.deps.Metrics,
			Clock:     cm.deps.Clock,
			Logger:    cm.logger.Named("rest"),
			Debug:     cm.deps.Debug,
		})
	default:
		return nil, fmt.Errorf("unknown controller type: %s", cc.Type)
	}
}
