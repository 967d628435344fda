// Package metrics экспортирует метрики Prometheus: HTTP-запросы,
// пропагации по моделям и состояние каталога.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satprop_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "satprop_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	propagationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satprop_propagations_total",
			Help: "Total number of propagation calls by model and result.",
		},
		[]string{"model", "result"},
	)

	propagationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "satprop_propagation_duration_seconds",
			Help:    "Propagation call duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		},
		[]string{"model"},
	)

	catalogSatellites = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "satprop_catalog_satellites",
		Help: "Number of satellites in the catalog.",
	})

	catalogStale = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "satprop_catalog_stale_satellites",
		Help: "Number of satellites with stale elements.",
	})
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		propagationsTotal,
		propagationSeconds,
		catalogSatellites,
		catalogStale,
	)
}

// Handler возвращает HTTP-обработчик метрик.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePropagation учитывает один вызов пропагации.
func ObservePropagation(model string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}

	propagationsTotal.WithLabelValues(model, result).Inc()
	propagationSeconds.WithLabelValues(model).Observe(elapsed.Seconds())
}

// SetCatalogSize обновляет размер каталога.
func SetCatalogSize(total, stale int) {
	catalogSatellites.Set(float64(total))
	catalogStale.Set(float64(stale))
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware учитывает число и длительность запросов. Метка path берётся
// из шаблона маршрута, чтобы идентификаторы не раздували кардинальность.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}

		httpRequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(rw.statusCode)).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())
	})
}
