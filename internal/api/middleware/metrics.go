// metrics.go — Prometheus HTTP метрики Order Module.
// Регистрирует метрики: om_http_requests_total, om_http_request_duration_seconds.
// Бизнес-метрики (om_requests_total, om_transitions_total и др.) регистрируются
// в соответствующих пакетах и обновляются из сервисного слоя.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "om_http_requests_total",
			Help: "Общее количество HTTP-запросов к Order Module",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "om_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Order Module в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Бизнес-метрики (экспортируются для обновления из сервисного слоя)
var (
	// RequestsCreatedTotal — количество созданных заявок на печать.
	RequestsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "om_requests_created_total",
			Help: "Количество созданных заявок на печать",
		},
	)

	// TransitionsTotal — переходы жизненного цикла по типу и результату.
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "om_transitions_total",
			Help: "Количество переходов жизненного цикла заявок",
		},
		[]string{"transition", "result"},
	)

	// DocumentBytesTotal — суммарный объём загруженных документов.
	DocumentBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "om_document_bytes_total",
			Help: "Суммарный объём загруженных документов в байтах",
		},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (заменяем UUID на {id} для предотвращения кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath заменяет идентификаторы в пути на {id} для предотвращения
// взрывного роста кардинальности метрик.
// /api/v1/requests/a1b2c3d4-.../accept → /api/v1/requests/{id}/accept
func normalizePath(path string) string {
	switch {
	case path == "/health/live", path == "/health/ready", path == "/metrics":
		return path
	case path == "/api/v1/requests", path == "/api/v1/shops", path == "/api/v1/shops/profile":
		return path
	case strings.HasPrefix(path, "/api/v1/requests/"):
		rest := path[len("/api/v1/requests/"):]
		if idx := strings.IndexByte(rest, '/'); idx >= 0 {
			return "/api/v1/requests/{id}" + rest[idx:]
		}
		return "/api/v1/requests/{id}"
	case strings.HasPrefix(path, "/api/v1/shops/"):
		return "/api/v1/shops/{id}"
	}
	return path
}
