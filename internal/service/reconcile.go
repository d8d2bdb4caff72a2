// reconcile.go — сверка записей о файлах с содержимым корня хранилища.
//
// Обнаруживает проблемы:
//   - missing_file: запись есть, файла на диске нет
//   - size_mismatch: размер файла не совпадает с записью
//   - orphaned_file: файл под корнем хранилища без записи
//
// Только отчёт: ни записи, ни файлы не изменяются.
// Запускается по запросу администратора; параллельные запуски отклоняются.
package service

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/filedesk/internal/repository"
	"github.com/bigkaa/filedesk/internal/storage/filestore"
)

// Prometheus метрики сверки
var (
	reconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fd_reconcile_runs_total",
		Help: "Общее количество запусков сверки",
	})

	reconcileIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fd_reconcile_issues_total",
		Help: "Общее количество проблем, обнаруженных сверкой",
	}, []string{"type"})

	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fd_reconcile_duration_seconds",
		Help:    "Длительность сверки в секундах",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	})
)

// Типы проблем сверки.
const (
	IssueMissingFile  = "missing_file"
	IssueSizeMismatch = "size_mismatch"
	IssueOrphanedFile = "orphaned_file"
)

// ReconcileIssue — одна обнаруженная проблема.
type ReconcileIssue struct {
	Type        string `json:"type"`
	FileID      string `json:"file_id,omitempty"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

// ReconcileSummary — сводка по типам проблем.
type ReconcileSummary struct {
	Ok             int `json:"ok"`
	MissingFiles   int `json:"missing_files"`
	SizeMismatches int `json:"size_mismatches"`
	OrphanedFiles  int `json:"orphaned_files"`
}

// ReconcileReport — результат сверки.
type ReconcileReport struct {
	StartedAt    time.Time        `json:"started_at"`
	CompletedAt  time.Time        `json:"completed_at"`
	FilesChecked int              `json:"files_checked"`
	Issues       []ReconcileIssue `json:"issues"`
	Summary      ReconcileSummary `json:"summary"`
}

// ReconcileService — сервис сверки хранилища.
type ReconcileService struct {
	store   *filestore.FileStore
	records repository.FileRecordRepository
	logger  *slog.Logger

	mu        sync.Mutex // защита от параллельного запуска
	inProcess bool       // сверка в процессе выполнения
}

// NewReconcileService создаёт сервис сверки.
func NewReconcileService(
	store *filestore.FileStore,
	records repository.FileRecordRepository,
	logger *slog.Logger,
) *ReconcileService {
	return &ReconcileService{
		store:   store,
		records: records,
		logger:  logger.With(slog.String("component", "reconcile")),
	}
}

// IsInProgress возвращает true, если сверка выполняется.
func (rs *ReconcileService) IsInProgress() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.inProcess
}

// RunOnce выполняет одну сверку.
// Если сверка уже выполняется, возвращает nil, true, nil.
func (rs *ReconcileService) RunOnce(ctx context.Context) (*ReconcileReport, bool, error) {
	rs.mu.Lock()
	if rs.inProcess {
		rs.mu.Unlock()
		rs.logger.Warn("Сверка уже выполняется, пропуск")
		return nil, true, nil
	}
	rs.inProcess = true
	rs.mu.Unlock()

	defer func() {
		rs.mu.Lock()
		rs.inProcess = false
		rs.mu.Unlock()
	}()

	startedAt := time.Now().UTC()
	rs.logger.Info("Сверка начата")

	report, err := rs.reconcile(ctx)
	if err != nil {
		rs.logger.Error("Ошибка сверки", slog.String("error", err.Error()))
		return nil, false, newError(CodeInternal, "ошибка сверки", err)
	}

	report.StartedAt = startedAt
	report.CompletedAt = time.Now().UTC()
	duration := report.CompletedAt.Sub(startedAt)

	reconcileRunsTotal.Inc()
	reconcileDurationSeconds.Observe(duration.Seconds())
	for _, issue := range report.Issues {
		reconcileIssuesTotal.WithLabelValues(issue.Type).Inc()
	}

	rs.logger.Info("Сверка завершена",
		slog.Int("files_checked", report.FilesChecked),
		slog.Int("issues", len(report.Issues)),
		slog.Int("ok", report.Summary.Ok),
		slog.Duration("duration", duration),
	)

	return report, false, nil
}

// reconcile сравнивает записи с файлами на диске.
func (rs *ReconcileService) reconcile(ctx context.Context) (*ReconcileReport, error) {
	records, err := rs.records.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{
		FilesChecked: len(records),
		Issues:       []ReconcileIssue{},
	}
	known := make(map[string]bool, len(records))

	// 1. Записи без файла и расхождение размера
	for _, rec := range records {
		known[rec.Path] = true

		info, statErr := rs.store.Stat(rec.Path)
		switch {
		case errors.Is(statErr, fs.ErrNotExist):
			report.Issues = append(report.Issues, ReconcileIssue{
				Type:        IssueMissingFile,
				FileID:      rec.ID,
				Path:        rec.Path,
				Description: "Запись есть, файла на диске нет",
			})
			report.Summary.MissingFiles++
		case statErr != nil:
			rs.logger.Warn("Ошибка получения информации о файле",
				slog.String("path", rec.Path),
				slog.String("error", statErr.Error()),
			)
		case info.Size() != rec.Size:
			report.Issues = append(report.Issues, ReconcileIssue{
				Type:        IssueSizeMismatch,
				FileID:      rec.ID,
				Path:        rec.Path,
				Description: "Размер файла на диске не совпадает с записью",
			})
			report.Summary.SizeMismatches++
		default:
			report.Summary.Ok++
		}
	}

	// 2. Файлы без записи
	err = rs.store.Walk(func(path string, _ os.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !known[path] {
			report.Issues = append(report.Issues, ReconcileIssue{
				Type:        IssueOrphanedFile,
				Path:        path,
				Description: "Файл на диске без записи",
			})
			report.Summary.OrphanedFiles++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return report, nil
}
