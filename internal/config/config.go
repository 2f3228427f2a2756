// Пакет config — загрузка и валидация конфигурации Order Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Order Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8050-8059)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера (по умолчанию 30s)
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера (по умолчанию 60s)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера (по умолчанию 120s)
	HTTPIdleTimeout time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown (по умолчанию 5s)
	ShutdownTimeout time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// --- JWT / Identity Provider ---

	// URL JWKS endpoint IdP (обязательный)
	JWTJWKSURL string
	// Ожидаемый issuer JWT (пустой — не проверяется)
	JWTIssuer string
	// Путь к CA-сертификату для TLS-соединения с IdP (опционально)
	IDPCACertPath string
	// Допустимое отклонение времени при проверке JWT (по умолчанию 30s)
	JWTLeeway time.Duration
	// Таймаут HTTP-клиента JWKS (по умолчанию 10s)
	JWKSClientTimeout time.Duration
	// Интервал обновления JWKS-ключей (по умолчанию 15m)
	JWKSRefreshInterval time.Duration
	// Группы IdP, маппящиеся в роль customer
	RoleCustomerGroups []string
	// Группы IdP, маппящиеся в роль shopkeeper
	RoleShopkeeperGroups []string

	// --- Хранилище документов ---

	// Директория хранения загруженных документов
	DataDir string
	// Максимальный размер загружаемого документа в байтах (по умолчанию 50 MB)
	MaxFileSize int64
	// Допустимые Content-Type загружаемых документов
	AllowedContentTypes []string
	// Таймаут дисковых операций store/retrieve (по умолчанию 30s)
	StorageOpTimeout time.Duration

	// --- Кэш заявок ---

	// Максимальное количество записей LRU-кэша (по умолчанию 1000)
	CacheSize int
	// TTL записи кэша (по умолчанию 5m)
	CacheTTL time.Duration

	// --- topologymetrics ---

	// Группа сервиса в topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей (по умолчанию 30s)
	DephealthCheckInterval time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	cfg.Port, err = getEnvInt("OM_PORT", 8050)
	if err != nil {
		return nil, fmt.Errorf("OM_PORT: %w", err)
	}

	logLevel := getEnvDefault("OM_LOG_LEVEL", "info")
	cfg.LogLevel, err = parseLogLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("OM_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("OM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("OM_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("OM_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OM_HTTP_READ_TIMEOUT: %w", err)
	}

	cfg.HTTPWriteTimeout, err = getEnvDuration("OM_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OM_HTTP_WRITE_TIMEOUT: %w", err)
	}

	cfg.HTTPIdleTimeout, err = getEnvDuration("OM_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OM_HTTP_IDLE_TIMEOUT: %w", err)
	}

	cfg.ShutdownTimeout, err = getEnvDuration("OM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OM_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	cfg.DBHost, err = getEnvRequired("OM_DB_HOST")
	if err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("OM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("OM_DB_PORT: %w", err)
	}
	cfg.DBName, err = getEnvRequired("OM_DB_NAME")
	if err != nil {
		return nil, err
	}
	cfg.DBUser, err = getEnvRequired("OM_DB_USER")
	if err != nil {
		return nil, err
	}
	cfg.DBPassword, err = getEnvRequired("OM_DB_PASSWORD")
	if err != nil {
		return nil, err
	}
	cfg.DBSSLMode = getEnvDefault("OM_DB_SSL_MODE", "disable")

	// --- JWT / Identity Provider ---

	cfg.JWTJWKSURL, err = getEnvRequired("OM_JWT_JWKS_URL")
	if err != nil {
		return nil, err
	}
	cfg.JWTIssuer = getEnvDefault("OM_JWT_ISSUER", "")
	cfg.IDPCACertPath = getEnvDefault("OM_IDP_CA_CERT_PATH", "")

	cfg.JWTLeeway, err = getEnvDuration("OM_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OM_JWT_LEEWAY: %w", err)
	}
	cfg.JWKSClientTimeout, err = getEnvDuration("OM_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OM_JWKS_CLIENT_TIMEOUT: %w", err)
	}
	cfg.JWKSRefreshInterval, err = getEnvDuration("OM_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("OM_JWKS_REFRESH_INTERVAL: %w", err)
	}

	cfg.RoleCustomerGroups = getEnvList("OM_ROLE_CUSTOMER_GROUPS", []string{"/print-seva-customers"})
	cfg.RoleShopkeeperGroups = getEnvList("OM_ROLE_SHOPKEEPER_GROUPS", []string{"/print-seva-shopkeepers"})

	// --- Хранилище документов ---

	cfg.DataDir = getEnvDefault("OM_DATA_DIR", "/var/lib/order-module/uploads")

	cfg.MaxFileSize, err = getEnvInt64("OM_MAX_FILE_SIZE", 50<<20)
	if err != nil {
		return nil, fmt.Errorf("OM_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("OM_MAX_FILE_SIZE: значение должно быть > 0")
	}

	cfg.AllowedContentTypes = getEnvList("OM_ALLOWED_CONTENT_TYPES",
		[]string{"application/pdf", "image/png", "image/jpeg"})

	cfg.StorageOpTimeout, err = getEnvDuration("OM_STORAGE_OP_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OM_STORAGE_OP_TIMEOUT: %w", err)
	}
	if cfg.StorageOpTimeout <= 0 {
		return nil, fmt.Errorf("OM_STORAGE_OP_TIMEOUT: значение должно быть > 0")
	}

	// --- Кэш заявок ---

	cfg.CacheSize, err = getEnvInt("OM_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("OM_CACHE_SIZE: %w", err)
	}
	cfg.CacheTTL, err = getEnvDuration("OM_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("OM_CACHE_TTL: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("OM_DEPHEALTH_GROUP", "print-seva")
	cfg.DephealthCheckInterval, err = getEnvDuration("OM_DEPHEALTH_CHECK_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает DSN подключения к PostgreSQL для pgxpool.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL
// (формат postgres://, используется topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
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
	return d, nil
}

// getEnvList возвращает список значений из переменной окружения (через запятую)
// или список по умолчанию.
func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parts := strings.Split(val, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
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
