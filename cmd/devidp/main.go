// devidp — локальный провайдер идентификации для разработки filedesk.
// Отдаёт JWKS (FD_JWKS_URL=http://localhost:8090/jwks) и выдаёт токены:
//
//	curl -s -X POST localhost:8090/token -d '{"admin":true}'
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/bigkaa/filedesk/internal/config"
	"github.com/bigkaa/filedesk/internal/devidp"
)

func main() {
	cfg, err := config.LoadDevIDP()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации devidp", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := cfg.Logger()

	issuer, err := devidp.NewIssuer(cfg.KeySize, cfg.AdminScope, logger)
	if err != nil {
		logger.Error("Ошибка инициализации devidp", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           issuer.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("devidp запущен (HTTP, только для разработки)",
		slog.String("addr", srv.Addr),
		slog.String("admin_scope", cfg.AdminScope),
	)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
