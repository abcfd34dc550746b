// main.go — точка входа Generation Workbench.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/bigkaa/goartstore/generation-workbench/internal/api/handlers"
	"github.com/bigkaa/goartstore/generation-workbench/internal/api/middleware"
	"github.com/bigkaa/goartstore/generation-workbench/internal/config"
	"github.com/bigkaa/goartstore/generation-workbench/internal/genclient"
	"github.com/bigkaa/goartstore/generation-workbench/internal/i18n"
	"github.com/bigkaa/goartstore/generation-workbench/internal/progress"
	"github.com/bigkaa/goartstore/generation-workbench/internal/server"
	"github.com/bigkaa/goartstore/generation-workbench/internal/service"
	"github.com/bigkaa/goartstore/generation-workbench/internal/storage/savedir"
	"github.com/bigkaa/goartstore/generation-workbench/internal/tokenclient"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// 2. Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Generation Workbench запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("service_url", cfg.ServiceURL),
	)

	// 3. Каталоги сообщений
	bundle, err := i18n.Load(logger)
	if err != nil {
		logger.Error("Ошибка загрузки каталогов сообщений", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. HTTP-клиент сервиса генерации и источник токена
	httpClient, err := genclient.NewHTTPClient(cfg.ServiceCACertPath, cfg.ServiceTimeout, logger)
	if err != nil {
		logger.Error("Ошибка создания HTTP-клиента", slog.String("error", err.Error()))
		os.Exit(1)
	}
	tokens := tokenclient.New(tokenclient.Config{
		StaticToken:  cfg.ServiceToken,
		TokenURL:     cfg.TokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	}, httpClient, logger)
	genClient := genclient.New(cfg.ServiceURL, httpClient, tokens.Token, logger)
	logger.Info("Клиент сервиса генерации создан",
		slog.String("base_url", genClient.BaseURL()),
		slog.Bool("auth", tokens.Enabled()),
	)

	// 5. Директория загрузок
	downloadDir, err := savedir.New(cfg.DownloadDir)
	if err != nil {
		logger.Error("Ошибка инициализации директории загрузок",
			slog.String("path", cfg.DownloadDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	downloader := service.NewDownloader(genClient, downloadDir, logger)

	// 6. Реестр прогонов workflow
	registry := service.NewRegistry(cfg.SessionMax, cfg.SessionTTL, service.ControllerDeps{
		Backend:    genClient,
		Members:    service.NewMemberCache(cfg.MembersCacheSize, cfg.MembersCacheTTL),
		Downloader: downloader,
		Translator: bundle,
		Lang:       cfg.Lang,
		Progress: progress.Config{
			Interval:      cfg.ProgressTick,
			Cap:           cfg.ProgressCap,
			MaxStep:       cfg.ProgressMaxStep,
			DisplayWindow: cfg.ProgressDisplayWindow,
		},
		Logger: logger,
	}, logger)

	// 7. topologymetrics — мониторинг сервиса генерации
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthParams{
		ServiceID:     "generation-workbench",
		Group:         cfg.DephealthGroup,
		ServiceURL:    cfg.ServiceURL,
		HealthPath:    cfg.ServiceHealthPath,
		CheckInterval: cfg.DephealthCheckInterval,
		IsEntry:       cfg.DephealthIsEntry,
	}, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 8. Обработчики API
	var readiness handlers.ReadinessChecker
	if dephealthSvc != nil {
		readiness = dephealthSvc
	}
	healthHandler := handlers.NewHealthHandler(readiness)
	apiHandler := handlers.NewAPIHandler(healthHandler, registry, downloader, bundle, handlers.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		SSEInterval:    cfg.SSEInterval,
	}, logger)

	// 9. HTTP-сервер
	srv := server.New(cfg, logger, apiHandler.Routes,
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
		i18n.Middleware(cfg.Lang),
	)

	// 10. Запуск сервера (блокирующий вызов с graceful shutdown)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 11. Остановка фоновых задач
	logger.Info("Останавливаем фоновые задачи...")
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	registry.Close()

	logger.Info("Generation Workbench остановлен")
}
