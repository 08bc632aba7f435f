package restserver

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/chrissnell/pfmforecast/internal/forecast"
	"github.com/chrissnell/pfmforecast/internal/log"
	"github.com/chrissnell/pfmforecast/internal/pfm"
	"github.com/chrissnell/pfmforecast/internal/storage"
	"github.com/chrissnell/pfmforecast/pkg/responseformat"
)

const (
	defaultDays = 7
	maxDays     = 14
)

// locationRe matches NWS zone and county codes such as CTZ002 or MAC017.
var locationRe = regexp.MustCompile(`^[A-Z]{2}[CZ]\d{3}$`)

// Handlers serves the forecast endpoints.
type Handlers struct {
	service    *forecast.Service
	locations  []string
	health     *storage.HealthManager
	clock      clockwork.Clock
	formatter  *responseformat.Formatter
	maxPeriods int
	logger     *zap.SugaredLogger
}

// GetLocations lists configured locations plus any with stored records.
func (h *Handlers) GetLocations(w http.ResponseWriter, req *http.Request) {
	stored, err := h.serviceFor(req).Locations(req.Context())
	if err != nil {
		h.serverError(w, req, err)
		return
	}

	seen := make(map[string]bool)
	out := []string{}
	for _, l := range append(append([]string{}, h.locations...), stored...) {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Strings(out)
	h.formatter.WriteResponse(w, req, http.StatusOK, out)
}

// GetPeriods returns up to max records at or after start.
func (h *Handlers) GetPeriods(w http.ResponseWriter, req *http.Request) {
	location, ok := h.location(w, req)
	if !ok {
		return
	}
	start, err := h.timeParam(req, "start")
	if err != nil {
		h.badRequest(w, req, err)
		return
	}
	max, err := intParam(req, "max", h.maxPeriods)
	if err != nil {
		h.badRequest(w, req, err)
		return
	}
	if max < 1 {
		h.badRequest(w, req, errors.New("max must be positive"))
		return
	}
	max = min(max, h.maxPeriods)

	records, err := h.serviceFor(req).Periods(req.Context(), location, start, max)
	if err != nil {
		h.serverError(w, req, err)
		return
	}
	if records == nil {
		records = []pfm.ForecastRecord{}
	}
	h.formatter.WriteResponse(w, req, http.StatusOK, records)
}

// GetSummary returns the day summary for the day holding ts.
func (h *Handlers) GetSummary(w http.ResponseWriter, req *http.Request) {
	location, ok := h.location(w, req)
	if !ok {
		return
	}
	ts, err := h.timeParam(req, "ts")
	if err != nil {
		h.badRequest(w, req, err)
		return
	}

	day, err := h.serviceFor(req).Summary(req.Context(), location, ts, nil)
	if err != nil {
		h.serverError(w, req, err)
		return
	}
	if day == nil {
		h.formatter.WriteError(w, req, http.StatusNotFound, "no forecast for "+location+" on that day")
		return
	}
	h.formatter.WriteResponse(w, req, http.StatusOK, day)
}

// GetDays returns summaries for consecutive days from start.
func (h *Handlers) GetDays(w http.ResponseWriter, req *http.Request) {
	location, ok := h.location(w, req)
	if !ok {
		return
	}
	start, err := h.timeParam(req, "start")
	if err != nil {
		h.badRequest(w, req, err)
		return
	}
	n, err := intParam(req, "days", defaultDays)
	if err != nil {
		h.badRequest(w, req, err)
		return
	}
	if n < 1 || n > maxDays {
		h.badRequest(w, req, fmt.Errorf("days must be between 1 and %d", maxDays))
		return
	}

	days, err := h.serviceFor(req).Days(req.Context(), location, start, n)
	if err != nil {
		h.serverError(w, req, err)
		return
	}
	if days == nil {
		days = []forecast.DaySummary{}
	}
	h.formatter.WriteResponse(w, req, http.StatusOK, days)
}

// GetHealth reports storage health. It answers 503 when any backend is
// unhealthy.
func (h *Handlers) GetHealth(w http.ResponseWriter, req *http.Request) {
	status := http.StatusOK
	body := map[string]any{"status": "healthy"}
	if h.health != nil {
		body["storage"] = h.health.All()
		if !h.health.Healthy() {
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
		}
	}
	h.formatter.WriteResponse(w, req, status, body)
}

// GetRequestLog returns the most recent requests, newest last.
func (h *Handlers) GetRequestLog(w http.ResponseWriter, req *http.Request) {
	h.formatter.WriteResponse(w, req, http.StatusOK, log.GetHTTPLogBuffer().Entries())
}

func (h *Handlers) serviceFor(req *http.Request) *forecast.Service {
	return h.service.WithMethod(req.URL.Query().Get("method"))
}

func (h *Handlers) location(w http.ResponseWriter, req *http.Request) (string, bool) {
	location := strings.ToUpper(mux.Vars(req)["location"])
	if !locationRe.MatchString(location) {
		h.badRequest(w, req, fmt.Errorf("invalid location code %q", mux.Vars(req)["location"]))
		return "", false
	}
	return location, true
}

// timeParam reads a unix-seconds query parameter, defaulting to now.
func (h *Handlers) timeParam(req *http.Request, name string) (time.Time, error) {
	v := req.URL.Query().Get(name)
	if v == "" {
		return h.clock.Now(), nil
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be a unix timestamp", name)
	}
	return time.Unix(secs, 0), nil
}

func intParam(req *http.Request, name string, def int) (int, error) {
	v := req.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return n, nil
}

func (h *Handlers) badRequest(w http.ResponseWriter, req *http.Request, err error) {
	h.formatter.WriteError(w, req, http.StatusBadRequest, err.Error())
}

func (h *Handlers) serverError(w http.ResponseWriter, req *http.Request, err error) {
	h.logger.Errorw("request failed", "request_id", requestID(req), "path", req.URL.Path, "error", err)
	h.formatter.WriteError(w, req, http.StatusInternalServerError, "internal error")
}
