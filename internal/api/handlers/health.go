// health.go — обработчики health endpoints.
// /health/live — проверка живости (процесс жив)
// /health/ready — проверка готовности (хранилище метаданных и корень файлов доступны)
package handlers

import (
	"net/http"
	"time"

	"github.com/bigkaa/filedesk/internal/config"
)

// Статусы health check.
const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusFail     = "fail"
)

// ReadinessChecker — проверка готовности одной зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady() (status, message string)
}

// DependencyReporter — состояние внешних зависимостей (dephealth).
type DependencyReporter interface {
	Health() map[string]bool
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	metadata ReadinessChecker
	storage  ReadinessChecker
	deps     DependencyReporter
}

// NewHealthHandler создаёт обработчик health endpoints.
// metadata — PostgreSQL или BadgerDB, storage — корень файлов.
// deps может быть nil.
func NewHealthHandler(metadata, storage ReadinessChecker, deps DependencyReporter) *HealthHandler {
	return &HealthHandler{metadata: metadata, storage: storage, deps: deps}
}

type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

type healthReadyResponse struct {
	Status       string                       `json:"status"`
	Timestamp    string                       `json:"timestamp"`
	Version      string                       `json:"version"`
	Service      string                       `json:"service"`
	Checks       map[string]healthCheckResult `json:"checks"`
	Dependencies map[string]bool              `json:"dependencies,omitempty"`
}

// HealthLive — проверка живости. Возвращает 200, если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthLiveResponse{
		Status:    statusOK,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "filedesk",
	})
}

// HealthReady — проверка готовности. Возвращает 200 (ok/degraded) или 503 (fail).
// Состояние внешних зависимостей выводится справочно и на статус не влияет.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := healthReadyResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "filedesk",
		Checks: map[string]healthCheckResult{
			"metadata": check(h.metadata),
			"storage":  check(h.storage),
		},
	}
	if h.deps != nil {
		resp.Dependencies = h.deps.Health()
	}

	statuses := make([]string, 0, len(resp.Checks))
	for _, c := range resp.Checks {
		statuses = append(statuses, c.Status)
	}
	resp.Status = overallStatus(statuses...)

	code := http.StatusOK
	if resp.Status == statusFail {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func check(c ReadinessChecker) healthCheckResult {
	if c == nil {
		return healthCheckResult{Status: statusFail, Message: "не инициализирован"}
	}
	status, msg := c.CheckReady()
	return healthCheckResult{Status: status, Message: msg}
}

// overallStatus: хотя бы один fail — fail, хотя бы один degraded — degraded.
func overallStatus(statuses ...string) string {
	result := statusOK
	for _, s := range statuses {
		switch s {
		case statusFail:
			return statusFail
		case statusDegraded:
			result = statusDegraded
		}
	}
	return result
}
