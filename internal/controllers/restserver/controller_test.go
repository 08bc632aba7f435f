package restserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/chrissnell/pfmforecast/internal/forecast"
	"github.com/chrissnell/pfmforecast/internal/pfm"
	"github.com/chrissnell/pfmforecast/internal/pfm/testdata"
	"github.com/chrissnell/pfmforecast/internal/storage"
	"github.com/chrissnell/pfmforecast/pkg/config"
)

var edt = time.FixedZone("EDT", -4*3600)

type fakeSource struct {
	records []pfm.ForecastRecord
	err     error
}

func (f *fakeSource) Query(_ context.Context, q storage.Query) ([]pfm.ForecastRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []pfm.ForecastRecord
	for _, r := range f.records {
		switch {
		case r.Method != q.Method || r.Location != q.Location:
		case !q.From.IsZero() && r.Time().Before(q.From):
		case !q.To.IsZero() && !r.Time().Before(q.To):
		default:
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventTS < out[j].EventTS })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f *fakeSource) Locations(_ context.Context, method string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	seen := map[string]bool{}
	var out []string
	for _, r := range f.records {
		if r.Method == method && !seen[r.Location] {
			seen[r.Location] = true
			out = append(out, r.Location)
		}
	}
	return out, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping() error { return p.err }

func newTestServer(t *testing.T, src *fakeSource, health *storage.HealthManager) http.Handler {
	t.Helper()
	if src.records == nil {
		p := pfm.NewParser(pfm.Options{Clock: clockwork.NewFakeClockAt(time.Date(2013, 5, 11, 14, 5, 0, 0, time.UTC))})
		res, err := p.ParseText(testdata.Spring(t), "CTZ002")
		require.NoError(t, err)
		src.records = res.Records
	}
	ctrl, err := NewController(context.Background(), &sync.WaitGroup{}, config.RESTServerData{MaxPeriods: 10}, Options{
		Service:   forecast.NewService(src, edt, ""),
		Locations: []string{"MAZ005", "CTZ002"},
		Health:    health,
		Clock:     clockwork.NewFakeClockAt(time.Date(2013, 5, 11, 14, 0, 0, 0, edt)),
		Debug:     true,
	})
	require.NoError(t, err)
	return ctrl.Handler()
}

func get(t *testing.T, h http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestGetPeriods(t *testing.T) {
	h := newTestServer(t, &fakeSource{}, nil)
	start := time.Date(2013, 5, 11, 14, 0, 0, 0, edt)

	rec := get(t, h, fmt.Sprintf("/forecast/ctz002/periods?start=%d&max=2", start.Unix()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	got := decode[[]map[string]any](t, rec)
	require.Len(t, got, 2)
	assert.Equal(t, float64(start.Unix()), got[0]["event_ts"])
	assert.Equal(t, float64(68), got[0]["temp"])
	assert.Equal(t, "CTZ002", got[0]["location"])
	assert.Contains(t, got[0], "windChill")

	// Defaults to now and caps at the configured maximum.
	rec = get(t, h, "/forecast/CTZ002/periods?max=500")
	require.Equal(t, http.StatusOK, rec.Code)
	got = decode[[]map[string]any](t, rec)
	assert.Len(t, got, 10)
	assert.Equal(t, float64(start.Unix()), got[0]["event_ts"])

	rec = get(t, h, "/forecast/CTZ002/periods?method=OTHER")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestGetPeriodsMsgPack(t *testing.T) {
	h := newTestServer(t, &fakeSource{}, nil)
	rec := get(t, h, "/forecast/CTZ002/periods?max=1&format=msgpack")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-msgpack", rec.Header().Get("Content-Type"))

	var got []map[string]any
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "CTZ002", got[0]["location"])
}

func TestBadRequests(t *testing.T) {
	h := newTestServer(t, &fakeSource{}, nil)
	for _, url := range []string{
		"/forecast/bogus/periods",
		"/forecast/CTZ002/periods?max=0",
		"/forecast/CTZ002/periods?max=many",
		"/forecast/CTZ002/periods?start=yesterday",
		"/forecast/CTZ002/summary?ts=noon",
		"/forecast/CTZ002/days?days=0",
		"/forecast/CTZ002/days?days=15",
	} {
		t.Run(url, func(t *testing.T) {
			rec := get(t, h, url)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decode[map[string]string](t, rec), "error")
		})
	}
}

func TestGetSummary(t *testing.T) {
	h := newTestServer(t, &fakeSource{}, nil)

	rec := get(t, h, "/forecast/CTZ002/summary")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	day := decode[map[string]any](t, rec)
	assert.Equal(t, "2013-05-11", day["date"])
	assert.Equal(t, float64(71), day["tempMax"])
	assert.Equal(t, float64(62), day["tempMin"])

	rec = get(t, h, fmt.Sprintf("/forecast/CTZ002/summary?ts=%d", time.Date(2014, 1, 1, 12, 0, 0, 0, edt).Unix()))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetDays(t *testing.T) {
	h := newTestServer(t, &fakeSource{}, nil)

	rec := get(t, h, "/forecast/CTZ002/days?days=3")
	require.Equal(t, http.StatusOK, rec.Code)
	days := decode[[]map[string]any](t, rec)
	require.Len(t, days, 3)
	assert.Equal(t, "2013-05-11", days[0]["date"])
	assert.Equal(t, "2013-05-13", days[2]["date"])

	rec = get(t, h, "/forecast/MAZ005/days")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestGetLocations(t *testing.T) {
	h := newTestServer(t, &fakeSource{}, nil)
	rec := get(t, h, "/forecast/locations")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"CTZ002", "MAZ005"}, decode[[]string](t, rec))
}

func TestStorageErrors(t *testing.T) {
	src := &fakeSource{records: []pfm.ForecastRecord{}, err: errors.New("connection refused")}
	h := newTestServer(t, src, nil)

	for _, url := range []string{"/forecast/locations", "/forecast/CTZ002/periods", "/forecast/CTZ002/days"} {
		rec := get(t, h, url)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, url)
		assert.NotContains(t, rec.Body.String(), "connection refused")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	hm := storage.NewHealthManager()
	hm.UpdateHealth("sqlite", storage.Check(fakePinger{}, time.Unix(0, 0)))
	h := newTestServer(t, &fakeSource{}, hm)

	rec := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]any](t, rec)["status"])

	hm.UpdateHealth("sqlite", storage.Check(fakePinger{err: errors.New("locked")}, time.Unix(0, 0)))
	rec = get(t, h, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	get(t, h, "/forecast/CTZ002/periods?max=1")
	rec = get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `pfmforecast_http_requests_total{route="/forecast/{location}/periods",status="200"} 1`)

	rec = get(t, h, "/debug/requests")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/forecast/CTZ002/periods?max=1")
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := newTestServer(t, &fakeSource{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/forecast/locations", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	rec = get(t, h, "/nowhere")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewControllerValidation(t *testing.T) {
	_, err := NewController(context.Background(), &sync.WaitGroup{}, config.RESTServerData{}, Options{})
	assert.Error(t, err)

	svc := forecast.NewService(&fakeSource{}, edt, "")
	_, err = NewController(context.Background(), &sync.WaitGroup{}, config.RESTServerData{Cert: "cert.pem"}, Options{Service: svc})
	assert.Error(t, err)
}
