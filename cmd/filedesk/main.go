// Точка входа filedesk — сервис хранения файлов пользователей.
// Загружает конфигурацию, открывает хранилище метаданных (PostgreSQL
// или BadgerDB), создаёт сервисный слой и API handlers, запускает
// topologymetrics и HTTP-сервер с JWT middleware, проверкой запросов
// по OpenAPI и graceful shutdown.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/afero"

	"github.com/bigkaa/filedesk/internal/api/handlers"
	"github.com/bigkaa/filedesk/internal/api/middleware"
	"github.com/bigkaa/filedesk/internal/api/openapi"
	"github.com/bigkaa/filedesk/internal/config"
	"github.com/bigkaa/filedesk/internal/database"
	"github.com/bigkaa/filedesk/internal/repository"
	"github.com/bigkaa/filedesk/internal/repository/badgerstore"
	"github.com/bigkaa/filedesk/internal/server"
	"github.com/bigkaa/filedesk/internal/service"
	"github.com/bigkaa/filedesk/internal/storage/filestore"
	"github.com/bigkaa/filedesk/internal/storage/pathresolver"
)

// metadataStore — открытое хранилище метаданных выбранного бэкенда.
type metadataStore struct {
	records   repository.FileRecordRepository
	users     repository.UserRepository
	readiness handlers.ReadinessChecker
	// sqlDB — адаптер пула для topologymetrics (только postgres)
	sqlDB *sql.DB
	close func()
}

func main() {
	// 1. Загрузка конфигурации из переменных окружения и .env
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("filedesk запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("metadata_backend", cfg.MetadataBackend),
		slog.String("data_dir", cfg.DataDir),
	)

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("filedesk остановлен с ошибкой", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("filedesk остановлен")
}

// run собирает сервис и блокируется до завершения HTTP-сервера.
// Открытые ресурсы закрываются при любом исходе, в том числе
// при ошибке запуска.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// 3. Хранилище метаданных
	meta, err := openMetadata(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("ошибка открытия хранилища метаданных: %w", err)
	}
	defer meta.close()

	// 4. Файловое хранилище
	resolver, err := pathresolver.New(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("некорректный корень хранилища: %w", err)
	}
	store, err := filestore.New(afero.NewOsFs(), resolver.Root())
	if err != nil {
		return fmt.Errorf("ошибка инициализации хранилища файлов: %w", err)
	}

	// 5. JWT middleware и проверка запросов по OpenAPI
	jwtAuth, err := middleware.NewJWTAuth(middleware.JWTAuthConfig{
		JWKSURL:         cfg.JWKSURL,
		CACertPath:      cfg.JWKSCACert,
		TLSSkipVerify:   cfg.TLSSkipVerify,
		ClientTimeout:   cfg.JWKSClientTimeout,
		RefreshInterval: cfg.JWKSRefreshInterval,
		JWTLeeway:       cfg.JWTLeeway,
	}, logger)
	if err != nil {
		return fmt.Errorf("ошибка настройки JWT аутентификации: %w", err)
	}
	logger.Info("JWT аутентификация настроена", slog.String("jwks_url", cfg.JWKSURL))

	doc, err := openapi.Load(ctx)
	if err != nil {
		return err
	}
	validate, err := middleware.RequestValidator(doc, logger)
	if err != nil {
		return err
	}

	// 6. Сервисы
	cache := service.NewRecordCache(cfg.RecordCacheSize, cfg.RecordCacheTTL)
	filesSvc := service.NewFileService(
		resolver, service.NewNameGuard(meta.records), store,
		meta.records, meta.users, cache, logger,
	)
	usersSvc := service.NewUserService(store, meta.records, meta.users, cache, logger)
	reconcileSvc := service.NewReconcileService(store, meta.records, logger)

	// 7. topologymetrics — мониторинг зависимостей
	var deps handlers.DependencyReporter
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthConfig{
		ServiceID:     "filedesk",
		Group:         cfg.DephealthGroup,
		DB:            meta.sqlDB,
		DBURL:         cfg.DatabaseURL(),
		JWKSURL:       cfg.JWKSURL,
		TLSSkipVerify: cfg.TLSSkipVerify,
		CheckInterval: cfg.DephealthCheckInterval,
	}, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
		}
		defer dephealthSvc.Stop()
		deps = dephealthSvc
	}

	// 8. Handlers
	h := server.Handlers{
		Files:       handlers.NewFilesHandler(filesSvc, cfg.MaxFileSize, logger),
		Users:       handlers.NewUsersHandler(usersSvc, logger),
		Maintenance: handlers.NewMaintenanceHandler(reconcileSvc),
		Health:      handlers.NewHealthHandler(meta.readiness, store, deps),
	}

	// 9. HTTP-сервер (блокирующий вызов с graceful shutdown)
	srv := server.New(cfg, logger, h, server.Middlewares{
		Auth:     jwtAuth.Middleware(),
		Validate: validate,
	})
	return srv.Run()
}

// openMetadata открывает хранилище метаданных согласно FD_METADATA_BACKEND.
func openMetadata(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*metadataStore, error) {
	if cfg.MetadataBackend == config.BackendBadger {
		db, err := badgerstore.Open(cfg.BadgerDir, logger)
		if err != nil {
			return nil, err
		}
		return &metadataStore{
			records:   db.Files(),
			users:     db.Users(),
			readiness: db,
			close: func() {
				if err := db.Close(); err != nil {
					logger.Error("Ошибка закрытия BadgerDB", slog.String("error", err.Error()))
				}
			},
		}, nil
	}

	logger.Info("Применение миграций БД...")
	if err := database.Migrate(ctx, cfg, logger); err != nil {
		return nil, err
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Адаптер pgxpool → *sql.DB: topologymetrics проверяет PostgreSQL
	// через тот же пул соединений.
	sqlDB := stdlib.OpenDBFromPool(pool)

	return &metadataStore{
		records:   repository.NewFileRecordRepository(pool),
		users:     repository.NewUserRepository(pool, repository.NewTxRunner(pool)),
		readiness: database.NewReadinessChecker(pool),
		sqlDB:     sqlDB,
		close: func() {
			_ = sqlDB.Close()
			pool.Close()
		},
	}, nil
}
