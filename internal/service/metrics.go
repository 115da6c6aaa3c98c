// metrics.go — Prometheus-метрики сервисного слоя.
package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// lookupTotal — поиски записей по результату классификации.
	lookupTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wr_lookup_total",
		Help: "Количество поисков гарантийных записей по классификации.",
	}, []string{"backend", "classification"})

	// registrationsTotal — попытки регистрации по результату.
	registrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wr_registrations_total",
		Help: "Количество попыток регистрации по результату.",
	}, []string{"result"})

	// statusQueriesTotal — запросы статуса по результату.
	statusQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wr_status_queries_total",
		Help: "Количество запросов статуса гарантии по результату.",
	}, []string{"result"})

	// storeRequestDuration — длительность обращений к хранилищу.
	storeRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wr_store_request_duration_seconds",
		Help:    "Длительность запросов к хранилищу гарантийных записей.",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "op"})
)
