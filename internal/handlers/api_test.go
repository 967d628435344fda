package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/art-injener/satprop/internal/tracker"
)

const (
	issTLE = "ISS (ZARYA)\n" +
		"1 25544U 98067A   24001.50000000  .00016717  00000-0  10270-3 0  9997\n" +
		"2 25544  51.6400 247.4627 0006703 130.5360 325.0288 15.49815571423401"
	geoTLE = "GALAXY 15\n" +
		"1 28884U 05041A   24001.50000000 -.00000270  00000-0  00000+0 0  9991\n" +
		"2 28884   0.0500  85.0000 0002000 270.0000  10.0000  1.00272000000004"
)

var testEpoch = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func newTestAPI(t *testing.T, opts ...APIOption) http.Handler {
	t.Helper()

	cfg := tracker.DefaultCatalogConfig()
	cfg.CacheDir = t.TempDir()

	catalog, err := tracker.NewCatalog(cfg, tracker.WithLogger(testLogger()))
	require.NoError(t, err)

	tles, err := tracker.ParseTLEBatch(issTLE + "\n" + geoTLE)
	require.NoError(t, err)
	catalog.Add(tles[0], "stations")
	catalog.Add(tles[1], "geo")

	fleet := tracker.NewFleet(catalog, tracker.WithFleetLogger(testLogger()))

	base := []APIOption{
		WithLogger(testLogger()),
		WithClock(func() time.Time { return testEpoch }),
		WithObserver(tracker.NewObserver(55.7558, 37.6173, 0.156)),
		WithRateLimit(0, 0),
	}

	return NewAPIHandler(catalog, fleet, append(base, opts...)...).Routes()
}

func get(t *testing.T, h http.Handler, url string, out any) int {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))

	if out != nil && rec.Code == http.StatusOK {
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
	}

	return rec.Code
}

func TestListSatellites(t *testing.T) {
	h := newTestAPI(t)

	tests := []struct {
		query string
		want  []int
	}{
		{query: "", want: []int{25544, 28884}},
		{query: "?group=geo", want: []int{28884}},
		{query: "?name=zarya", want: []int{25544}},
		{query: "?group=missing", want: []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var got []SatelliteInfo
			require.Equal(t, http.StatusOK, get(t, h, "/api/satellites"+tt.query, &got))

			ids := make([]int, 0, len(got))
			for _, s := range got {
				ids = append(ids, s.NoradID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestGetSatellite(t *testing.T) {
	h := newTestAPI(t)

	var got SatelliteInfo
	require.Equal(t, http.StatusOK, get(t, h, "/api/satellites/28884", &got))

	assert.Equal(t, "GALAXY 15", got.Name)
	assert.True(t, got.DeepSpace)
	assert.False(t, got.Stale)
	assert.InDelta(t, 1436.1, got.PeriodMin, 0.5)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/satellites/1", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/satellites/abc", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/satellites/-5", nil))
}

func TestGetState(t *testing.T) {
	h := newTestAPI(t)

	var got StateResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/satellites/25544/state?t=2024-01-01T13:00:00Z", &got))

	assert.Equal(t, "sgp4", got.Model)
	assert.InDelta(t, 60.0, got.Tsince, 1e-3)
	assert.InDelta(t, 405, got.AltKm, 50)

	r := math.Sqrt(got.Position[0]*got.Position[0] + got.Position[1]*got.Position[1] + got.Position[2]*got.Position[2])
	assert.InDelta(t, 6785, r, 60)

	require.NotNil(t, got.Look)
	assert.GreaterOrEqual(t, got.Look.Elevation, -90.0)
	assert.LessOrEqual(t, got.Look.Elevation, 90.0)
	assert.InDelta(t, 51.64, got.Mean.Inclination, 0.1)
	assert.InDelta(t, 15.5, got.Mean.MeanMotion, 0.05)
}

func TestGetState_DefaultTimeAndErrors(t *testing.T) {
	h := newTestAPI(t)

	var got StateResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/satellites/28884/state", &got))
	assert.Equal(t, "sdp4", got.Model)
	assert.True(t, got.Time.Equal(testEpoch))
	assert.InDelta(t, 35780, got.AltKm, 40)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/satellites/25544/state?t=yesterday", nil))
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/satellites/99999/state", nil))
}

func TestGetPasses(t *testing.T) {
	h := newTestAPI(t)

	var passes []tracker.Pass
	require.Equal(t, http.StatusOK, get(t, h, "/api/satellites/25544/passes?hours=24&t=2024-01-01T12:00:00Z", &passes))
	require.NotEmpty(t, passes)

	for _, p := range passes {
		assert.Equal(t, 25544, p.NoradID)
		assert.True(t, p.AOS.Before(p.LOS))
	}

	var high []tracker.Pass
	require.Equal(t, http.StatusOK, get(t, h, "/api/satellites/25544/passes?hours=24&min_el=30&t=2024-01-01T12:00:00Z", &high))
	assert.LessOrEqual(t, len(high), len(passes))

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/satellites/25544/passes?hours=0", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/satellites/25544/passes?hours=1000", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/satellites/25544/passes?min_el=95", nil))
}

func TestGetPasses_NoObserver(t *testing.T) {
	h := newTestAPI(t, WithObserver(nil))

	assert.Equal(t, http.StatusConflict, get(t, h, "/api/satellites/25544/passes", nil))
}

func TestGetTrack(t *testing.T) {
	h := newTestAPI(t)

	var track tracker.GroundTrack
	require.Equal(t, http.StatusOK, get(t, h, "/api/satellites/25544/track", &track))

	assert.Equal(t, 25544, track.NoradID)
	assert.NotEmpty(t, track.Past)
	assert.NotEmpty(t, track.Future)
}

func TestGetSnapshot(t *testing.T) {
	h := newTestAPI(t)

	var all []tracker.SatelliteState
	require.Equal(t, http.StatusOK, get(t, h, "/api/snapshot", &all))
	require.Len(t, all, 2)
	assert.Empty(t, all[0].Error)
	assert.Equal(t, "sdp4", all[1].Model)

	var geo []tracker.SatelliteState
	require.Equal(t, http.StatusOK, get(t, h, "/api/snapshot?group=geo", &geo))
	require.Len(t, geo, 1)
	assert.Equal(t, 28884, geo[0].NoradID)

	var none []tracker.SatelliteState
	require.Equal(t, http.StatusOK, get(t, h, "/api/snapshot?group=missing", &none))
	assert.Empty(t, none)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestAPI(t)

	var health map[string]any
	require.Equal(t, http.StatusOK, get(t, h, "/healthz", &health))
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 2, health["satellites"])

	get(t, h, "/api/satellites/25544/state", nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `satprop_propagations_total{model="sgp4",result="ok"}`))
	assert.True(t, strings.Contains(rec.Body.String(), "satprop_http_requests_total"))
}

func TestRateLimit(t *testing.T) {
	h := newTestAPI(t, WithRateLimit(1, 2))

	codes := make([]int, 0, 4)
	for range 4 {
		codes = append(codes, get(t, h, "/healthz", nil))
	}

	assert.Equal(t, []int{200, 200, 429, 429}, codes)

	// Другой адрес получает свой лимит.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "198.51.100.7:4242"
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestAPI(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/satellites", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
