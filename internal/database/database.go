// Пакет database — PostgreSQL-бэкенд метаданных filedesk: пул pgxpool,
// схема users/files из встроенных миграций и проверка готовности.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/filedesk/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	// connectAttempts — сколько раз ждать PostgreSQL при старте
	// (в docker compose база поднимается параллельно с сервисом).
	connectAttempts = 5
	connectBackoff  = 2 * time.Second

	readyTimeout = 3 * time.Second
)

// Connect открывает пул и дожидается ответа PostgreSQL на ping.
// Повторяет попытку connectAttempts раз с линейно растущей паузой.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("некорректные параметры подключения к PostgreSQL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пула подключений: %w", err)
	}

	for attempt := 1; ; attempt++ {
		err = pool.Ping(ctx)
		if err == nil {
			break
		}
		if attempt == connectAttempts {
			pool.Close()
			return nil, fmt.Errorf("PostgreSQL %s:%d недоступен после %d попыток: %w",
				cfg.DBHost, cfg.DBPort, attempt, err)
		}

		wait := time.Duration(attempt) * connectBackoff
		logger.Warn("PostgreSQL пока недоступен, повтор",
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		}
	}

	logger.Info("Подключение к PostgreSQL установлено",
		slog.String("host", cfg.DBHost),
		slog.Int("port", cfg.DBPort),
		slog.String("database", cfg.DBName),
		slog.Int("max_conns", int(poolCfg.MaxConns)),
	)
	return pool, nil
}

// Migrate приводит схему users/files к последней версии.
// Отмена ctx останавливает миграции между шагами. База в состоянии
// dirty (прерванная миграция) — ошибка: её нужно чинить вручную.
func Migrate(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ошибка чтения встроенных миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(cfg))
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %w", err)
	}
	defer m.Close()
	m.Log = &migrateLogger{logger: logger.With(slog.String("component", "migrate"))}

	stop := context.AfterFunc(ctx, func() {
		select {
		case m.GracefulStop <- true:
		default:
		}
	})
	defer stop()

	if _, dirty, err := m.Version(); err == nil && dirty {
		return errors.New("схема БД в состоянии dirty: предыдущая миграция прервана")
	}

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("Схема БД актуальна")
	case err != nil:
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	version, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("ошибка чтения версии схемы: %w", err)
	}
	logger.Info("Миграции применены", slog.Uint64("version", uint64(version)))
	return nil
}

// migrateURL — адрес для драйвера pgx5 golang-migrate; логин и пароль экранируются.
func migrateURL(cfg *config.Config) string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:     fmt.Sprintf("%s:%d", cfg.DBHost, cfg.DBPort),
		Path:     "/" + cfg.DBName,
		RawQuery: url.Values{"sslmode": {cfg.DBSSLMode}}.Encode(),
	}
	return u.String()
}

// migrateLogger направляет вывод golang-migrate в slog.
type migrateLogger struct {
	logger *slog.Logger
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// ReadinessChecker — готовность PostgreSQL для /health/ready.
type ReadinessChecker struct {
	pool *pgxpool.Pool
}

// NewReadinessChecker создаёт проверку готовности PostgreSQL.
func NewReadinessChecker(pool *pgxpool.Pool) *ReadinessChecker {
	return &ReadinessChecker{pool: pool}
}

// CheckReady пингует PostgreSQL. В сообщении — загрузка пула.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	defer cancel()

	if err := c.pool.Ping(ctx); err != nil {
		return "fail", fmt.Sprintf("PostgreSQL недоступен: %v", err)
	}
	st := c.pool.Stat()
	return "ok", fmt.Sprintf("соединений %d из %d, занято %d",
		st.TotalConns(), st.MaxConns(), st.AcquiredConns())
}
