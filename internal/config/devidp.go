// devidp.go — конфигурация локального провайдера идентификации (cmd/devidp).
package config

import (
	"fmt"
	"log/slog"
)

// DevIDPConfig — настройки devidp. FD_ADMIN_SCOPE, FD_LOG_* и .env
// общие с filedesk, чтобы выданные токены подходили к сервису.
type DevIDPConfig struct {
	// Port — порт HTTP (DEVIDP_PORT, по умолчанию 8090)
	Port int
	// AdminScope — scope администратора в выдаваемых токенах
	AdminScope string
	// KeySize — размер RSA-ключа в битах (DEVIDP_KEY_SIZE, минимум 2048)
	KeySize int

	LogLevel  slog.Level
	LogFormat string
}

// LoadDevIDP загружает настройки devidp из окружения и .env (FD_ENV_FILE).
func LoadDevIDP() (*DevIDPConfig, error) {
	if err := loadEnvFile(getEnvDefault("FD_ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := &DevIDPConfig{}
	var err error

	cfg.Port, err = getEnvInt("DEVIDP_PORT", 8090)
	if err != nil {
		return nil, fmt.Errorf("DEVIDP_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("DEVIDP_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.KeySize, err = getEnvInt("DEVIDP_KEY_SIZE", 2048)
	if err != nil {
		return nil, fmt.Errorf("DEVIDP_KEY_SIZE: %w", err)
	}
	if cfg.KeySize < 2048 {
		return nil, fmt.Errorf("DEVIDP_KEY_SIZE: минимум 2048 бит, задано %d", cfg.KeySize)
	}

	cfg.AdminScope = getEnvDefault("FD_ADMIN_SCOPE", "files:admin")

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("FD_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("FD_LOG_LEVEL: %w", err)
	}
	cfg.LogFormat = getEnvDefault("FD_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FD_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	return cfg, nil
}

// Logger создаёт логгер devidp с теми же настройками формата, что у filedesk.
func (c *DevIDPConfig) Logger() *slog.Logger {
	return SetupLogger(&Config{LogLevel: c.LogLevel, LogFormat: c.LogFormat})
}
