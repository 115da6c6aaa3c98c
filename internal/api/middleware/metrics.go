// metrics.go — Prometheus HTTP метрики сервиса.
// Регистрирует метрики: wr_http_requests_total, wr_http_request_duration_seconds.
// Нормализация путей предотвращает взрывной рост кардинальности.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wr_http_requests_total",
			Help: "Общее количество HTTP-запросов к сервису гарантийной регистрации",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wr_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			normalizedPath := normalizePath(r.URL.Path)

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			status := strconv.Itoa(rec.status)
			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(time.Since(start).Seconds())
		})
	}
}

// staffRecordsPrefix — префикс служебного endpoint с номером управления в пути.
const staffRecordsPrefix = "/api/v1/staff/records/"

// normalizePath заменяет номер управления в пути на {managementId},
// неизвестные пути сводит к "other".
// /api/v1/staff/records/URC0000001 → /api/v1/staff/records/{managementId}
func normalizePath(path string) string {
	switch path {
	case "/health/live", "/health/ready", "/metrics", "/api/openapi.yaml",
		"/api/check-management-id", "/api/register", "/api/status":
		return path
	}

	if strings.HasPrefix(path, staffRecordsPrefix) && len(path) > len(staffRecordsPrefix) {
		return staffRecordsPrefix + "{managementId}"
	}

	return "other"
}
