// metrics.go — Prometheus-метрики сервисного слоя Generation Workbench.
package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// analysesTotal — запросы структурного анализа по результату
	// (success, failure, stale).
	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gw_analyses_total",
		Help: "Общее количество запросов анализа основного документа.",
	}, []string{"status"})

	// submissionsTotal — запросы генерации по результату
	// (success, remote_error, network_error, rejected).
	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gw_submissions_total",
		Help: "Общее количество запросов генерации.",
	}, []string{"status"})

	submissionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gw_submission_duration_seconds",
		Help:    "Длительность запроса генерации.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	// downloadsTotal — скачивания по типу (single, bundle, sample)
	// и результату (success, failure).
	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gw_downloads_total",
		Help: "Общее количество скачиваний артефактов.",
	}, []string{"kind", "status"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gw_active_sessions",
		Help: "Количество активных прогонов workflow.",
	})

	membersCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gw_members_cache_hits_total",
		Help: "Общее количество попаданий в кэш участников групп.",
	})
	membersCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gw_members_cache_misses_total",
		Help: "Общее количество промахов кэша участников групп.",
	})
)
