// Пакет config — загрузка и валидация конфигурации Generation Workbench
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/generation-workbench/internal/i18n"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Generation Workbench.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (по умолчанию 8040)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration

	// --- Сервис генерации ---

	// Базовый URL сервиса анализа и генерации (обязательный)
	ServiceURL string
	// Таймаут одного запроса к сервису (генерация может идти минутами)
	ServiceTimeout time.Duration
	// Путь к CA-сертификату сервиса (опционально)
	ServiceCACertPath string
	// Путь health endpoint сервиса для dephealth
	ServiceHealthPath string

	// --- Токен сервиса ---

	// Статический Bearer-токен (приоритетнее client credentials)
	ServiceToken string
	// Token endpoint для client credentials grant
	TokenURL     string
	ClientID     string
	ClientSecret string

	// --- Workflow ---

	// Директория сохранения скачанных артефактов
	DownloadDir string
	// Язык уведомлений по умолчанию (en, ru)
	Lang string
	// Параметры индикатора прогресса
	ProgressTick          time.Duration
	ProgressCap           int
	ProgressMaxStep       int
	ProgressDisplayWindow time.Duration
	// Время жизни неактивного прогона
	SessionTTL time.Duration
	// Максимальное число одновременных прогонов
	SessionMax int
	// Кэш участников групп
	MembersCacheTTL  time.Duration
	MembersCacheSize int
	// Период отправки state-событий SSE без изменений
	SSEInterval time.Duration
	// Максимальный размер multipart-запроса загрузки файлов
	MaxUploadBytes int64

	// --- Dephealth ---

	// Имя группы в метриках topologymetrics (GW_DEPHEALTH_GROUP)
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration
	// Лейбл isentry=yes для зависимостей
	DephealthIsEntry bool
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// GW_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("GW_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("GW_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("GW_PORT: значение %d вне диапазона 1-65535", cfg.Port)
	}

	// GW_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("GW_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("GW_LOG_LEVEL: %w", err)
	}

	// GW_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("GW_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("GW_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("GW_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("GW_HTTP_READ_TIMEOUT: %w", err)
	}
	// Запись 0 — без таймаута: SSE-поток держит соединение открытым.
	cfg.HTTPWriteTimeout, err = getEnvDuration("GW_HTTP_WRITE_TIMEOUT", 0)
	if err != nil {
		return nil, fmt.Errorf("GW_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("GW_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("GW_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("GW_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("GW_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- Сервис генерации ---

	// GW_SERVICE_URL — обязательный
	cfg.ServiceURL, err = getEnvRequired("GW_SERVICE_URL")
	if err != nil {
		return nil, err
	}
	cfg.ServiceURL = strings.TrimRight(cfg.ServiceURL, "/")
	if err := validateURL(cfg.ServiceURL); err != nil {
		return nil, fmt.Errorf("GW_SERVICE_URL: %w", err)
	}

	cfg.ServiceTimeout, err = getEnvDurationPositive("GW_SERVICE_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("GW_SERVICE_TIMEOUT: %w", err)
	}
	cfg.ServiceCACertPath = os.Getenv("GW_SERVICE_CA_CERT_PATH")
	cfg.ServiceHealthPath = getEnvDefault("GW_SERVICE_HEALTH_PATH", "/health")

	// --- Токен сервиса ---

	cfg.ServiceToken = os.Getenv("GW_SERVICE_TOKEN")
	cfg.TokenURL = os.Getenv("GW_TOKEN_URL")
	cfg.ClientID = os.Getenv("GW_CLIENT_ID")
	cfg.ClientSecret = os.Getenv("GW_CLIENT_SECRET")
	if cfg.TokenURL != "" {
		if err := validateURL(cfg.TokenURL); err != nil {
			return nil, fmt.Errorf("GW_TOKEN_URL: %w", err)
		}
		if cfg.ClientID == "" || cfg.ClientSecret == "" {
			return nil, fmt.Errorf("GW_TOKEN_URL задан, но GW_CLIENT_ID или GW_CLIENT_SECRET пусты")
		}
	}

	// --- Workflow ---

	cfg.DownloadDir = getEnvDefault("GW_DOWNLOAD_DIR", "./downloads")

	lang := getEnvDefault("GW_LANG", i18n.DefaultLang)
	cfg.Lang = i18n.Normalize(lang)
	if cfg.Lang == "" {
		return nil, fmt.Errorf("GW_LANG: неподдерживаемый язык %q, допустимые: en, ru", lang)
	}

	cfg.ProgressTick, err = getEnvDurationPositive("GW_PROGRESS_TICK", 500*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("GW_PROGRESS_TICK: %w", err)
	}
	cfg.ProgressCap, err = getEnvInt("GW_PROGRESS_CAP", 90)
	if err != nil {
		return nil, fmt.Errorf("GW_PROGRESS_CAP: %w", err)
	}
	if cfg.ProgressCap < 1 || cfg.ProgressCap > 100 {
		return nil, fmt.Errorf("GW_PROGRESS_CAP: значение %d вне диапазона 1-100", cfg.ProgressCap)
	}
	cfg.ProgressMaxStep, err = getEnvInt("GW_PROGRESS_MAX_STEP", 10)
	if err != nil {
		return nil, fmt.Errorf("GW_PROGRESS_MAX_STEP: %w", err)
	}
	if cfg.ProgressMaxStep < 1 {
		return nil, fmt.Errorf("GW_PROGRESS_MAX_STEP: значение должно быть > 0")
	}
	cfg.ProgressDisplayWindow, err = getEnvDuration("GW_PROGRESS_DISPLAY_WINDOW", 1500*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("GW_PROGRESS_DISPLAY_WINDOW: %w", err)
	}

	cfg.SessionTTL, err = getEnvDurationPositive("GW_SESSION_TTL", 2*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("GW_SESSION_TTL: %w", err)
	}
	cfg.SessionMax, err = getEnvInt("GW_SESSION_MAX", 64)
	if err != nil {
		return nil, fmt.Errorf("GW_SESSION_MAX: %w", err)
	}
	if cfg.SessionMax < 1 {
		return nil, fmt.Errorf("GW_SESSION_MAX: значение должно быть > 0")
	}

	cfg.MembersCacheTTL, err = getEnvDurationPositive("GW_MEMBERS_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("GW_MEMBERS_CACHE_TTL: %w", err)
	}
	cfg.MembersCacheSize, err = getEnvInt("GW_MEMBERS_CACHE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("GW_MEMBERS_CACHE_SIZE: %w", err)
	}
	if cfg.MembersCacheSize < 1 {
		return nil, fmt.Errorf("GW_MEMBERS_CACHE_SIZE: значение должно быть > 0")
	}

	cfg.SSEInterval, err = getEnvDurationPositive("GW_SSE_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("GW_SSE_INTERVAL: %w", err)
	}

	// GW_MAX_UPLOAD_BYTES — по умолчанию 64 MiB
	cfg.MaxUploadBytes, err = getEnvInt64("GW_MAX_UPLOAD_BYTES", 64<<20)
	if err != nil {
		return nil, fmt.Errorf("GW_MAX_UPLOAD_BYTES: %w", err)
	}
	if cfg.MaxUploadBytes < 1 {
		return nil, fmt.Errorf("GW_MAX_UPLOAD_BYTES: значение должно быть > 0")
	}

	// --- Dephealth ---

	cfg.DephealthGroup = getEnvDefault("GW_DEPHEALTH_GROUP", "generation-workbench")
	cfg.DephealthCheckInterval, err = getEnvDurationPositive("GW_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("GW_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthIsEntry, err = getEnvBool("GW_DEPHEALTH_ISENTRY", false)
	if err != nil {
		return nil, fmt.Errorf("GW_DEPHEALTH_ISENTRY: %w", err)
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	if d < 0 {
		return 0, fmt.Errorf("значение не может быть отрицательным")
	}
	return d, nil
}

// getEnvDurationPositive — как getEnvDuration, но значение должно быть > 0.
func getEnvDurationPositive(key string, defaultVal time.Duration) (time.Duration, error) {
	d, err := getEnvDuration(key, defaultVal)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// validateURL проверяет, что значение — абсолютный http(s) URL.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("некорректный URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL %q должен начинаться с http:// или https://", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q не содержит хоста", raw)
	}
	return nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
