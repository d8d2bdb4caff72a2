// metrics.go — Prometheus-метрики файловых операций.
package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// operationsTotal — количество операций по типу и результату.
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fd_operations_total",
		Help: "Общее количество файловых операций",
	}, []string{"operation", "result"})

	// storedBytesTotal — объём принятых на хранение данных.
	storedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fd_stored_bytes_total",
		Help: "Общий объём загруженных данных в байтах",
	})
)

// observe учитывает результат операции. Результат — "ok" или код ошибки.
func observe(operation string, err error) {
	result := "ok"
	if err != nil {
		result = string(CodeInternal)
		var se *Error
		if errors.As(err, &se) {
			result = string(se.Code)
		}
	}
	operationsTotal.WithLabelValues(operation, result).Inc()
}
