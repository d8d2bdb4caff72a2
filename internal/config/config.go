// Пакет config — загрузка и валидация конфигурации filedesk
// из переменных окружения (и необязательного .env файла).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Бэкенды хранилища метаданных.
const (
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
)

// Config содержит все параметры конфигурации filedesk.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (по умолчанию 8040)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// Таймауты HTTP-сервера
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// Таймаут graceful shutdown
	ShutdownTimeout time.Duration

	// --- Хранилище ---

	// Корень хранилища файлов. Все пути файлов находятся внутри него.
	DataDir string
	// Максимальный размер загружаемого файла в байтах
	MaxFileSize int64

	// --- Метаданные ---

	// Бэкенд метаданных: postgres или badger
	MetadataBackend string

	// PostgreSQL (только для backend=postgres)
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// Директория BadgerDB (только для backend=badger)
	BadgerDir string

	// LRU-кэш записей файлов
	RecordCacheSize int
	RecordCacheTTL  time.Duration

	// --- JWT ---

	// URL JWKS endpoint провайдера идентификации
	JWKSURL string
	// Путь к CA-сертификату для JWKS endpoint (опционально)
	JWKSCACert string
	// Пропускать проверку TLS при загрузке JWKS
	TLSSkipVerify bool
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Интервал обновления JWKS
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение часов при проверке JWT
	JWTLeeway time.Duration
	// Scope администратора (удаление пользователей, сверка)
	AdminScope string

	// --- topologymetrics ---

	DephealthCheckInterval time.Duration
	DephealthGroup         string
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
// Перед чтением окружения подгружается .env (путь в FD_ENV_FILE),
// уже заданные переменные окружения им не перекрываются.
func Load() (*Config, error) {
	if err := loadEnvFile(getEnvDefault("FD_ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{}
	var err error

	// --- Сервер ---

	// FD_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("FD_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("FD_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("FD_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// FD_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("FD_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("FD_LOG_LEVEL: %w", err)
	}

	// FD_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("FD_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FD_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.HTTPReadTimeout, err = getEnvDuration("FD_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FD_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("FD_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FD_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("FD_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FD_HTTP_IDLE_TIMEOUT: %w", err)
	}
	cfg.ShutdownTimeout, err = getEnvDuration("FD_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FD_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- Хранилище ---

	// FD_DATA_DIR — обязательный, корень хранилища
	dataDir, err := getEnvRequired("FD_DATA_DIR")
	if err != nil {
		return nil, err
	}
	cfg.DataDir, err = filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("FD_DATA_DIR: некорректный путь %q: %w", dataDir, err)
	}
	if cfg.DataDir == string(filepath.Separator) {
		return nil, fmt.Errorf("FD_DATA_DIR: корень файловой системы не может быть хранилищем")
	}

	// FD_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 1 GB)
	cfg.MaxFileSize, err = getEnvInt64("FD_MAX_FILE_SIZE", 1073741824)
	if err != nil {
		return nil, fmt.Errorf("FD_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("FD_MAX_FILE_SIZE: значение должно быть положительным")
	}

	// --- Метаданные ---

	cfg.MetadataBackend = getEnvDefault("FD_METADATA_BACKEND", BackendPostgres)
	switch cfg.MetadataBackend {
	case BackendPostgres:
		if err := loadPostgres(cfg); err != nil {
			return nil, err
		}
	case BackendBadger:
		// FD_BADGER_DIR — обязательный для badger
		cfg.BadgerDir, err = getEnvRequired("FD_BADGER_DIR")
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("FD_METADATA_BACKEND: недопустимое значение %q, допустимые: postgres, badger", cfg.MetadataBackend)
	}

	cfg.RecordCacheSize, err = getEnvInt("FD_RECORD_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("FD_RECORD_CACHE_SIZE: %w", err)
	}
	if cfg.RecordCacheSize < 1 {
		return nil, fmt.Errorf("FD_RECORD_CACHE_SIZE: значение должно быть положительным")
	}
	cfg.RecordCacheTTL, err = getEnvDuration("FD_RECORD_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FD_RECORD_CACHE_TTL: %w", err)
	}

	// --- JWT ---

	// FD_JWKS_URL — обязательный
	cfg.JWKSURL, err = getEnvRequired("FD_JWKS_URL")
	if err != nil {
		return nil, err
	}
	cfg.JWKSCACert = getEnvDefault("FD_JWKS_CA_CERT", "")
	cfg.TLSSkipVerify, err = getEnvBool("FD_TLS_SKIP_VERIFY", false)
	if err != nil {
		return nil, fmt.Errorf("FD_TLS_SKIP_VERIFY: %w", err)
	}
	cfg.JWKSClientTimeout, err = getEnvDuration("FD_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FD_JWKS_CLIENT_TIMEOUT: %w", err)
	}
	cfg.JWKSRefreshInterval, err = getEnvDuration("FD_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FD_JWKS_REFRESH_INTERVAL: %w", err)
	}
	cfg.JWTLeeway, err = getEnvDuration("FD_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FD_JWT_LEEWAY: %w", err)
	}
	cfg.AdminScope = getEnvDefault("FD_ADMIN_SCOPE", "files:admin")

	// --- topologymetrics ---

	cfg.DephealthCheckInterval, err = getEnvDuration("FD_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FD_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthGroup = getEnvDefault("FD_DEPHEALTH_GROUP", "filedesk")

	return cfg, nil
}

// loadPostgres читает параметры подключения к PostgreSQL.
func loadPostgres(cfg *Config) error {
	var err error

	cfg.DBHost, err = getEnvRequired("FD_DB_HOST")
	if err != nil {
		return err
	}
	cfg.DBPort, err = getEnvInt("FD_DB_PORT", 5432)
	if err != nil {
		return fmt.Errorf("FD_DB_PORT: %w", err)
	}
	cfg.DBName, err = getEnvRequired("FD_DB_NAME")
	if err != nil {
		return err
	}
	cfg.DBUser, err = getEnvRequired("FD_DB_USER")
	if err != nil {
		return err
	}
	cfg.DBPassword, err = getEnvRequired("FD_DB_PASSWORD")
	if err != nil {
		return err
	}

	cfg.DBSSLMode = getEnvDefault("FD_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return fmt.Errorf("FD_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}
	return nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для метрик topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
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

// loadEnvFile подгружает переменные из .env файла, если он существует.
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("ошибка чтения %s: %w", path, err)
	}
	return nil
}

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

// getEnvBool возвращает bool значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное логическое значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
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
