// Package restserver serves stored forecasts over HTTP.
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/chrissnell/pfmforecast/internal/forecast"
	"github.com/chrissnell/pfmforecast/internal/observability"
	"github.com/chrissnell/pfmforecast/internal/storage"
	"github.com/chrissnell/pfmforecast/pkg/config"
	"github.com/chrissnell/pfmforecast/pkg/responseformat"
)

// Options carries the collaborators a Controller needs besides its config.
type Options struct {
	Service *forecast.Service
	// Locations are the configured location codes, listed even before
	// anything has been stored for them.
	Locations []string
	Health    *storage.HealthManager
	Metrics   *observability.Metrics
	Clock     clockwork.Clock
	Logger    *zap.SugaredLogger
	// Debug exposes the recent request log at /debug/requests.
	Debug bool
}

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.RESTServerData
	Server     http.Server
	logger     *zap.SugaredLogger
	handlers   *Handlers
	metrics    *observability.Metrics
	debug      bool
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, rc config.RESTServerData, opts Options) (*Controller, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("REST server needs a forecast service")
	}
	if (rc.Cert == "") != (rc.Key == "") {
		return nil, fmt.Errorf("REST server needs both cert and key for TLS")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetrics()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: rc,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		debug:      opts.Debug,
	}
	ctrl.handlers = &Handlers{
		service:    opts.Service,
		locations:  opts.Locations,
		health:     opts.Health,
		clock:      opts.Clock,
		formatter:  responseformat.NewFormatter(),
		maxPeriods: rc.PeriodCap(),
		logger:     opts.Logger,
	}

	ctrl.Server.Addr = rc.Addr()
	ctrl.Server.Handler = ctrl.setupRouter()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// Handler returns the server's router.
func (c *Controller) Handler() http.Handler {
	return c.Server.Handler
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	c.logger.Infof("Starting REST server on %s", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if c.restConfig.Cert != "" && c.restConfig.Key != "" {
			if err := c.Server.ListenAndServeTLS(c.restConfig.Cert, c.restConfig.Key); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("Shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(requestIDMiddleware, c.loggingMiddleware)

	api := router.Methods(http.MethodGet).Subrouter()
	api.HandleFunc("/forecast/locations", c.handlers.GetLocations)
	api.HandleFunc("/forecast/{location}/periods", c.handlers.GetPeriods)
	api.HandleFunc("/forecast/{location}/summary", c.handlers.GetSummary)
	api.HandleFunc("/forecast/{location}/days", c.handlers.GetDays)
	api.HandleFunc("/health", c.handlers.GetHealth)
	api.Handle("/metrics", c.metrics.Handler())

	if c.debug {
		api.HandleFunc("/debug/requests", c.handlers.GetRequestLog)
	}

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		c.handlers.formatter.WriteError(w, req, http.StatusNotFound, "no such endpoint")
	})

	return router
}
