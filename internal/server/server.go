// Пакет server — HTTP-сервер filedesk с graceful shutdown.
// Без TLS: TLS termination выполняется на ingress/API Gateway.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/filedesk/internal/api/handlers"
	"github.com/bigkaa/filedesk/internal/api/middleware"
	"github.com/bigkaa/filedesk/internal/config"
)

// Handlers — обработчики всех endpoints.
type Handlers struct {
	Files       *handlers.FilesHandler
	Users       *handlers.UsersHandler
	Maintenance *handlers.MaintenanceHandler
	Health      *handlers.HealthHandler
}

// Middlewares — middleware маршрутов /api/v1.
type Middlewares struct {
	// Auth — JWT-аутентификация
	Auth func(http.Handler) http.Handler
	// Validate — проверка запросов по OpenAPI-описанию, nil — без проверки
	Validate func(http.Handler) http.Handler
}

// Server — HTTP-сервер filedesk.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с маршрутами и middleware.
// mw применяется к /api/v1; health и metrics публичны.
func New(cfg *config.Config, logger *slog.Logger, h Handlers, mw Middlewares) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(cfg, logger, h, mw),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "server")),
		cfg:        cfg,
	}
}

// NewRouter собирает chi-роутер. Порядок middleware: recover → metrics →
// логирование; на /api/v1 JWT, затем проверка по OpenAPI; admin scope —
// на административных маршрутах.
func NewRouter(cfg *config.Config, logger *slog.Logger, h Handlers, mw Middlewares) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.RequestLogger(logger))

	r.Get("/health/live", h.Health.HealthLive)
	r.Get("/health/ready", h.Health.HealthReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.Auth)
		if mw.Validate != nil {
			r.Use(mw.Validate)
		}

		r.Route("/files", func(r chi.Router) {
			r.Get("/", h.Files.ListFiles)
			r.Delete("/", h.Files.DeleteAllFiles)
			r.Post("/upload", h.Files.UploadFile)
			r.Get("/download", h.Files.DownloadFile)
			r.Delete("/{file_id}", h.Files.DeleteFile)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireScope(cfg.AdminScope))
			r.Delete("/users/{user_id}", h.Users.DeleteUser)
			r.Post("/maintenance/reconcile", h.Maintenance.Reconcile)
		})
	})

	return r
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен", slog.String("addr", s.httpServer.Addr))

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
