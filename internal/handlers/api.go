// Package handlers реализует HTTP API сервиса: каталог спутников,
// состояния, прохождения и трассы.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/art-injener/satprop/internal/metrics"
	"github.com/art-injener/satprop/internal/norad"
	"github.com/art-injener/satprop/internal/tracker"
)

const (
	slogKeyError = "error"

	defaultPassHours = 24.0
	maxPassHours     = 240.0
)

var (
	errRateLimited      = errors.New("rate limit exceeded")
	errBadID            = errors.New("invalid NORAD ID")
	errBadTime          = errors.New("invalid time, want RFC 3339")
	errBadHours         = errors.New("invalid hours")
	errObserverNotSet   = errors.New("observer not configured")
	errBadMinElevation  = errors.New("invalid min_el")
	errUnknownSatellite = errors.New("unknown satellite")
)

// APIHandler обслуживает HTTP API поверх каталога.
type APIHandler struct {
	catalog  *tracker.Catalog
	fleet    *tracker.Fleet
	observer *tracker.Observer
	limiter  *ipRateLimiter
	logger   *slog.Logger
	now      func() time.Time
}

type APIOption func(*APIHandler)

// WithObserver задаёт пункт наблюдения для топоцентрических координат и прохождений.
func WithObserver(obs *tracker.Observer) APIOption {
	return func(h *APIHandler) {
		h.observer = obs
	}
}

// WithRateLimit задаёт частоту запросов с одного адреса; 0 снимает ограничение.
func WithRateLimit(perSecond float64, burst int) APIOption {
	return func(h *APIHandler) {
		if perSecond <= 0 {
			h.limiter = nil
			return
		}
		h.limiter = newIPRateLimiter(rate.Limit(perSecond), burst)
	}
}

func WithLogger(logger *slog.Logger) APIOption {
	return func(h *APIHandler) {
		h.logger = logger
	}
}

func WithClock(now func() time.Time) APIOption {
	return func(h *APIHandler) {
		h.now = now
	}
}

func NewAPIHandler(c *tracker.Catalog, f *tracker.Fleet, opts ...APIOption) *APIHandler {
	h := &APIHandler{
		catalog: c,
		fleet:   f,
		limiter: newIPRateLimiter(20, 40),
		logger:  slog.Default(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Routes возвращает обработчик всех маршрутов с учётом метрик и лимита запросов.
func (h *APIHandler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.health)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/satellites", h.listSatellites)
	mux.HandleFunc("GET /api/satellites/{id}", h.getSatellite)
	mux.HandleFunc("GET /api/satellites/{id}/state", h.getState)
	mux.HandleFunc("GET /api/satellites/{id}/passes", h.getPasses)
	mux.HandleFunc("GET /api/satellites/{id}/track", h.getTrack)
	mux.HandleFunc("GET /api/snapshot", h.getSnapshot)

	var handler http.Handler = mux
	if h.limiter != nil {
		handler = h.limiter.middleware(handler)
	}

	return metrics.Middleware(handler)
}

// SatelliteInfo — сведения о спутнике из каталога.
type SatelliteInfo struct {
	NoradID     int       `json:"norad_id"`
	Name        string    `json:"name"`
	Epoch       time.Time `json:"epoch"`
	PeriodMin   float64   `json:"period_min"`
	PerigeeKm   float64   `json:"perigee_km"`
	ApogeeKm    float64   `json:"apogee_km"`
	Inclination float64   `json:"inclination_deg"`
	DeepSpace   bool      `json:"deep_space"`
	Stale       bool      `json:"stale"`
}

// StateResponse — состояние спутника на момент времени.
type StateResponse struct {
	NoradID  int        `json:"norad_id"`
	Model    string     `json:"model"`
	Time     time.Time  `json:"time"`
	Tsince   float64    `json:"tsince_min"`
	Position [3]float64 `json:"position_km"`
	Velocity [3]float64 `json:"velocity_km_s"`
	Lat      float64    `json:"lat"`
	Lon      float64    `json:"lon"`
	AltKm    float64    `json:"alt_km"`
	Sunlit   bool       `json:"sunlit"`
	Look     *LookInfo  `json:"look,omitempty"`
	Mean     MeanInfo   `json:"mean"`
}

// LookInfo — топоцентрические координаты, градусы и км.
type LookInfo struct {
	Azimuth   float64 `json:"azimuth"`
	Elevation float64 `json:"elevation"`
	RangeKm   float64 `json:"range_km"`
	RangeRate float64 `json:"range_rate_km_s"`
	RA        float64 `json:"ra"`
	Dec       float64 `json:"dec"`
}

// MeanInfo — средние элементы на момент расчёта.
type MeanInfo struct {
	MeanMotion   float64 `json:"mean_motion_rev_day"`
	Eccentricity float64 `json:"eccentricity"`
	Inclination  float64 `json:"inclination_deg"`
	RAAN         float64 `json:"raan_deg"`
	ArgPerigee   float64 `json:"arg_perigee_deg"`
	MeanAnomaly  float64 `json:"mean_anomaly_deg"`
}

func (h *APIHandler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"satellites": h.catalog.Count(),
	})
}

func (h *APIHandler) listSatellites(w http.ResponseWriter, r *http.Request) {
	var tles []*tracker.TLE
	switch q := r.URL.Query(); {
	case q.Get("group") != "":
		tles = h.catalog.ByGroup(q.Get("group"))
	case q.Get("name") != "":
		tles = h.catalog.ByName(q.Get("name"))
	default:
		tles = h.catalog.All()
	}

	now := h.now()
	out := make([]SatelliteInfo, 0, len(tles))
	for _, tle := range tles {
		out = append(out, info(tle, now))
	}

	metrics.SetCatalogSize(h.catalog.Count(), h.catalog.StaleCount())
	writeJSON(w, http.StatusOK, out)
}

func (h *APIHandler) getSatellite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tle, ok := h.catalog.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: %d", errUnknownSatellite, id))
		return
	}

	writeJSON(w, http.StatusOK, info(tle, h.now()))
}

func (h *APIHandler) getState(w http.ResponseWriter, r *http.Request) {
	prop, ok := h.propagator(w, r)
	if !ok {
		return
	}

	t, err := h.queryTime(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	begin := time.Now()
	st, err := prop.State(t)
	metrics.ObservePropagation(prop.Model().String(), time.Since(begin), err)
	if err != nil {
		h.logger.WarnContext(r.Context(), "propagation failed",
			"norad_id", prop.TLE().NoradID, "model", prop.Model().String(), slogKeyError, err)
		writeError(w, http.StatusUnprocessableEntity, err)

		return
	}

	pos := &tracker.ECIPosition{
		X: st.Position[0], Y: st.Position[1], Z: st.Position[2],
		Vx: st.Velocity[0], Vy: st.Velocity[1], Vz: st.Velocity[2],
		Time: t, Tsince: st.Tsince, Mean: st.Mean,
	}
	lla := tracker.ECEFToLLA(tracker.ECIToECEF(pos))

	resp := StateResponse{
		NoradID:  prop.TLE().NoradID,
		Model:    prop.Model().String(),
		Time:     t,
		Tsince:   st.Tsince,
		Position: st.Position,
		Velocity: st.Velocity,
		Lat:      lla.LatDeg(),
		Lon:      lla.LonDeg(),
		AltKm:    lla.Alt,
		Sunlit:   tracker.Sunlit(pos),
		Mean:     meanInfo(st.Mean),
	}
	if h.observer != nil {
		o := h.observer.Look(pos)
		resp.Look = &LookInfo{
			Azimuth:   o.AzDeg(),
			Elevation: o.ElDeg(),
			RangeKm:   o.Range,
			RangeRate: o.RangeRate,
			RA:        o.RADeg(),
			Dec:       o.DecDeg(),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) getPasses(w http.ResponseWriter, r *http.Request) {
	if h.observer == nil {
		writeError(w, http.StatusConflict, errObserverNotSet)
		return
	}

	prop, ok := h.propagator(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	hours := defaultPassHours
	if s := q.Get("hours"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 || v > maxPassHours {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %q (0 < hours <= %.0f)", errBadHours, s, maxPassHours))
			return
		}
		hours = v
	}

	var opts tracker.PassOptions
	if s := q.Get("min_el"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < -5 || v >= 90 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %q", errBadMinElevation, s))
			return
		}
		opts.MinElevation = v
	}

	start, err := h.queryTime(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	stop := start.Add(time.Duration(hours * float64(time.Hour)))

	passes, err := tracker.FindPasses(r.Context(), prop, h.observer, start, stop, opts)
	if err != nil && len(passes) == 0 {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if err != nil {
		h.logger.WarnContext(r.Context(), "pass search stopped early",
			"norad_id", prop.TLE().NoradID, slogKeyError, err)
	}
	if passes == nil {
		passes = []tracker.Pass{}
	}

	writeJSON(w, http.StatusOK, passes)
}

func (h *APIHandler) getTrack(w http.ResponseWriter, r *http.Request) {
	prop, ok := h.propagator(w, r)
	if !ok {
		return
	}

	t, err := h.queryTime(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	track, err := tracker.GenerateDefaultGroundTrack(prop, t)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	writeJSON(w, http.StatusOK, track)
}

func (h *APIHandler) getSnapshot(w http.ResponseWriter, r *http.Request) {
	t, err := h.queryTime(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var ids []int
	if g := r.URL.Query().Get("group"); g != "" {
		for _, tle := range h.catalog.ByGroup(g) {
			ids = append(ids, tle.NoradID)
		}
		if len(ids) == 0 {
			writeJSON(w, http.StatusOK, []tracker.SatelliteState{})
			return
		}
	}

	states, err := h.fleet.Snapshot(r.Context(), t, h.observer, ids...)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	writeJSON(w, http.StatusOK, states)
}

// propagator находит Propagator по {id}; при ошибке ответ уже записан.
func (h *APIHandler) propagator(w http.ResponseWriter, r *http.Request) (*tracker.Propagator, bool) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, false
	}

	prop, err := h.catalog.Propagator(id)
	switch {
	case errors.Is(err, tracker.ErrSatelliteNotFound):
		writeError(w, http.StatusNotFound, err)
		return nil, false
	case err != nil:
		writeError(w, http.StatusUnprocessableEntity, err)
		return nil, false
	}

	return prop, true
}

func (h *APIHandler) queryTime(r *http.Request) (time.Time, error) {
	s := r.URL.Query().Get("t")
	if s == "" {
		return h.now().UTC(), nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", errBadTime, s)
	}

	return t.UTC(), nil
}

func pathID(r *http.Request) (int, error) {
	s := r.PathValue("id")

	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", errBadID, s)
	}

	return id, nil
}

func info(tle *tracker.TLE, now time.Time) SatelliteInfo {
	deep, _ := norad.IsDeepSpace(tle.Elements(), norad.GravityWGS72)

	return SatelliteInfo{
		NoradID:     tle.NoradID,
		Name:        tle.Name,
		Epoch:       tle.Epoch,
		PeriodMin:   tle.OrbitalPeriod(),
		PerigeeKm:   tle.Perigee(),
		ApogeeKm:    tle.Apogee(),
		Inclination: tle.Inclination,
		DeepSpace:   deep,
		Stale:       tle.IsStale(now, tracker.DefaultMaxTLEAgeDays),
	}
}

func meanInfo(m norad.MeanElements) MeanInfo {
	return MeanInfo{
		MeanMotion:   m.MeanMotion * 1440 / (2 * math.Pi),
		Eccentricity: m.Eccentricity,
		Inclination:  m.Inclination * tracker.Rad2Deg,
		RAAN:         norad.Fmod2p(m.Node) * tracker.Rad2Deg,
		ArgPerigee:   norad.Fmod2p(m.ArgPerigee) * tracker.Rad2Deg,
		MeanAnomaly:  norad.Fmod2p(m.MeanAnomaly) * tracker.Rad2Deg,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slogKeyError, err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{slogKeyError: err.Error()})
}
