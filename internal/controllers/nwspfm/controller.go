// Package nwspfm periodically downloads a forecast office's Point Forecast
// Matrix bulletin and stores the records for the configured locations.
package nwspfm

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/chrissnell/pfmforecast/internal/controllers"
	"github.com/chrissnell/pfmforecast/internal/observability"
	"github.com/chrissnell/pfmforecast/internal/pfm"
	"github.com/chrissnell/pfmforecast/internal/storage"
	"github.com/chrissnell/pfmforecast/pkg/config"
)

// maxBulletinBytes caps how much of a response is read.
const maxBulletinBytes = 4 << 20

// Controller fetches one office's bulletin on an interval.
type Controller struct {
	ctx       context.Context
	wg        *sync.WaitGroup
	office    string
	locations []string
	url       string
	userAgent string
	method    string
	interval  time.Duration
	maxAge    time.Duration
	client    *http.Client
	parser    *pfm.Parser
	repo      storage.ForecastRepository
	metrics   *observability.Metrics
	clock     clockwork.Clock
	logger    *zap.SugaredLogger
}

// Options carries the collaborators a Controller needs besides its config.
type Options struct {
	Repository storage.ForecastRepository
	Metrics    *observability.Metrics
	// Location is the zone bulletin hour labels are read in. Nil uses the
	// zone printed in the bulletin.
	Location *time.Location
	Clock    clockwork.Clock
	Client   *http.Client
	Logger   *zap.SugaredLogger
}

// NewController validates cfg and builds a Controller.
func NewController(ctx context.Context, wg *sync.WaitGroup, cfg config.NWSPFMData, opts Options) (*Controller, error) {
	if err := controllers.ValidateRequiredFields(map[string]string{"nwspfm.office": cfg.Office}); err != nil {
		return nil, err
	}
	if len(cfg.Locations) == 0 {
		return nil, fmt.Errorf("nwspfm controller for %s has no locations", cfg.Office)
	}
	if opts.Repository == nil {
		return nil, fmt.Errorf("nwspfm controller for %s has no storage", cfg.Office)
	}
	interval, err := cfg.FetchInterval()
	if err != nil {
		return nil, err
	}
	maxAge, err := cfg.Retention()
	if err != nil {
		return nil, err
	}

	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Client == nil {
		opts.Client = controllers.NewHTTPClient(30 * time.Second)
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetrics()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}

	office := strings.ToUpper(cfg.Office)
	return &Controller{
		ctx:       ctx,
		wg:        wg,
		office:    office,
		locations: cfg.Locations,
		url:       cfg.ProductURL(),
		userAgent: cfg.Agent(),
		method:    cfg.MethodTag(),
		interval:  interval,
		maxAge:    maxAge,
		client:    opts.Client,
		parser: pfm.NewParser(pfm.Options{
			Method:   cfg.MethodTag(),
			Office:   office,
			Location: opts.Location,
			Clock:    opts.Clock,
		}),
		repo:    opts.Repository,
		metrics: opts.Metrics,
		clock:   opts.Clock,
		logger:  opts.Logger.With("office", office),
	}, nil
}

// StartController starts the refresh loop. The first refresh runs at once.
func (c *Controller) StartController() error {
	c.logger.Infof("Starting NWS PFM controller for %d location(s)", len(c.locations))
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		controllers.RunPeriodicTask(c.ctx, c.clock, controllers.PeriodicTask{
			Name:       "nwspfm-" + c.office,
			Interval:   c.interval,
			RunAtStart: true,
			Task:       c.Refresh,
		}, c.logger)
	}()
	return nil
}

// Refresh downloads the bulletin, stores every configured location's
// records, and prunes records older than the retention window.
func (c *Controller) Refresh(ctx context.Context) error {
	text, err := c.Fetch(ctx)
	if err != nil {
		c.metrics.BulletinsFetched.WithLabelValues(c.office, "error").Inc()
		return err
	}
	c.metrics.BulletinsFetched.WithLabelValues(c.office, "success").Inc()

	var errs []error
	for _, code := range c.locations {
		if err := c.ingest(ctx, text, code); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", code, err))
		}
	}

	cutoff := c.clock.Now().Add(-c.maxAge)
	pruned, err := c.repo.Prune(ctx, c.method, cutoff)
	if err != nil {
		errs = append(errs, fmt.Errorf("pruning records before %s: %w", cutoff.Format(time.RFC3339), err))
	} else if pruned > 0 {
		c.metrics.RecordsPruned.Add(float64(pruned))
		c.logger.Infof("Pruned %d record(s) older than %s", pruned, cutoff.Format(time.RFC3339))
		if err := c.repo.Vacuum(ctx); err != nil {
			c.logger.Warnf("Vacuum after prune failed: %v", err)
		}
	}

	if len(errs) == 0 {
		c.metrics.LastRefresh.WithLabelValues(c.office).Set(float64(c.clock.Now().Unix()))
	}
	return errors.Join(errs...)
}

func (c *Controller) ingest(ctx context.Context, text, code string) error {
	res, err := c.parser.ParseText(text, code)
	if err != nil {
		return err
	}
	for _, d := range res.Diagnostics {
		if d.Block != "" && d.Block != code {
			continue
		}
		c.metrics.ParseDiagnostics.WithLabelValues(c.office, code).Inc()
		c.logger.Warnw("bulletin diagnostic",
			"location", code,
			"line", d.Line,
			"segment", d.Segment,
			"label", d.Label,
			"reason", d.Reason)
	}
	if !res.Found {
		c.metrics.LocationsMissing.WithLabelValues(c.office, code).Inc()
		c.logger.Warnw("location not present in bulletin", "location", code)
		return nil
	}

	n, err := c.repo.Append(ctx, res.Records)
	if err != nil {
		return fmt.Errorf("storing %d record(s): %w", len(res.Records), err)
	}
	c.metrics.RecordsStored.WithLabelValues(c.office, code).Add(float64(n))
	c.logger.Debugw("stored forecast",
		"location", code,
		"issued", res.Issued.Format(time.RFC3339),
		"records", len(res.Records),
		"written", n)
	return nil
}

// Fetch downloads the bulletin text.
func (c *Controller) Fetch(ctx context.Context) (string, error) {
	start := c.clock.Now()
	defer func() {
		c.metrics.FetchDuration.WithLabelValues(c.office).Observe(c.clock.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", fmt.Errorf("error creating PFM request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/plain, text/html")

	c.logger.Debugf("Requesting bulletin from %s", c.url)
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error requesting PFM bulletin: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("PFM bulletin request returned %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBulletinBytes))
	if err != nil {
		return "", fmt.Errorf("error reading PFM bulletin: %w", err)
	}

	text := ExtractBulletin(string(body))
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("PFM bulletin from %s is empty", c.url)
	}
	return text, nil
}

// ExtractBulletin returns the product text from a response body. HTML
// product pages carry it inside the first <pre> element; plain-text bodies
// are returned unchanged.
func ExtractBulletin(body string) string {
	lower := strings.ToLower(body)
	open := strings.Index(lower, "<pre")
	if open < 0 {
		return body
	}
	start := strings.IndexByte(lower[open:], '>')
	if start < 0 {
		return body
	}
	start += open + 1
	end := strings.Index(lower[start:], "</pre>")
	if end < 0 {
		end = len(body) - start
	}
	return html.UnescapeString(body[start : start+end])
}
