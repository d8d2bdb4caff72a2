// maintenance.go — обработчик POST /api/v1/maintenance/reconcile.
// Делегирует сверку в ReconcileService.
package handlers

import (
	"context"
	"net/http"

	apierrors "github.com/bigkaa/filedesk/internal/api/errors"
	"github.com/bigkaa/filedesk/internal/service"
)

// ReconcileRunner — запуск сверки. Позволяет тестировать handler
// без полного ReconcileService.
type ReconcileRunner interface {
	// RunOnce выполняет одну сверку. skipped = true, если сверка уже идёт.
	RunOnce(ctx context.Context) (report *service.ReconcileReport, skipped bool, err error)
}

// MaintenanceHandler — обработчик endpoints обслуживания.
type MaintenanceHandler struct {
	reconciler ReconcileRunner
}

// NewMaintenanceHandler создаёт обработчик maintenance endpoints.
func NewMaintenanceHandler(reconciler ReconcileRunner) *MaintenanceHandler {
	return &MaintenanceHandler{reconciler: reconciler}
}

// Reconcile запускает синхронную сверку и возвращает отчёт.
// Если сверка уже выполняется — 409 RECONCILE_IN_PROGRESS.
func (h *MaintenanceHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, skipped, err := h.reconciler.RunOnce(r.Context())
	if skipped {
		apierrors.ReconcileInProgress(w, "Сверка уже выполняется")
		return
	}
	if err != nil {
		apierrors.FromServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}
