// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// Generation Workbench мониторит одну зависимость: сервис анализа и
// генерации (HTTP checker, critical). Его доступность определяет
// readiness (/health/ready).
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/prometheus/client_golang/prometheus"
)

// GenerationServiceDep — имя зависимости сервиса генерации в метриках.
const GenerationServiceDep = "generation-service"

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// DephealthParams — параметры мониторинга.
type DephealthParams struct {
	// ServiceID — имя вершины графа текущего приложения
	ServiceID string
	// Group — имя группы в метриках (GW_DEPHEALTH_GROUP)
	Group string
	// ServiceURL — базовый URL сервиса генерации
	ServiceURL string
	// HealthPath — путь health endpoint сервиса генерации
	HealthPath string
	// CheckInterval — интервал проверки (GW_DEPHEALTH_CHECK_INTERVAL)
	CheckInterval time.Duration
	// IsEntry — добавить лейбл isentry=yes (DEPHEALTH_ISENTRY)
	IsEntry bool
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
func NewDephealthService(p DephealthParams, logger *slog.Logger) (*DephealthService, error) {
	return newDephealthService(p, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(p DephealthParams, logger *slog.Logger, registerer prometheus.Registerer) (*DephealthService, error) {
	return newDephealthService(p, logger, dephealth.WithRegisterer(registerer))
}

func newDephealthService(p DephealthParams, logger *slog.Logger, extraOpts ...dephealth.Option) (*DephealthService, error) {
	depOpts := []dephealth.DependencyOption{
		dephealth.FromURL(p.ServiceURL),
		dephealth.WithHTTPHealthPath(p.HealthPath),
		dephealth.CheckInterval(p.CheckInterval),
		dephealth.Critical(true),
	}
	if p.IsEntry {
		depOpts = append(depOpts, dephealth.WithLabel("isentry", "yes"))
	}
	if parsed, err := url.Parse(p.ServiceURL); err == nil && parsed.Scheme == "https" {
		depOpts = append(depOpts, dephealth.WithHTTPTLSSkipVerify(false))
	}

	opts := make([]dephealth.Option, 0, 2+len(extraOpts))
	opts = append(opts,
		dephealth.WithLogger(logger),
		dephealth.HTTP(GenerationServiceDep, depOpts...),
	)
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(p.ServiceID, p.Group, opts...)
	if err != nil {
		return nil, fmt.Errorf("инициализация dephealth: %w", err)
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен (сервис генерации)")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}

// CheckReady реализует handlers.ReadinessChecker.
func (ds *DephealthService) CheckReady() (status, message string) {
	return readiness(ds.Health())
}

// readiness сводит состояние зависимостей в статус readiness:
// пока нет ни одного результата — degraded, любая недоступная — fail.
func readiness(health map[string]bool) (status, message string) {
	if len(health) == 0 {
		return "degraded", "проверка зависимостей ещё не выполнена"
	}

	var failed []string
	for name, ok := range health {
		if !ok {
			failed = append(failed, name)
		}
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		return "fail", "недоступны: " + strings.Join(failed, ", ")
	}
	return "ok", "зависимости доступны"
}
