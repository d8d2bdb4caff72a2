// Пакет handlers — HTTP-обработчики filedesk.
// Обработчики разбирают запрос, вызывают сервисный слой и переводят
// его ошибки в JSON-ответы через apierrors.FromServiceError.
package handlers

import (
	"encoding/json"
	"net/http"

	apierrors "github.com/bigkaa/filedesk/internal/api/errors"
	"github.com/bigkaa/filedesk/internal/api/middleware"
)

// statusResponse — ответ операций удаления.
type statusResponse struct {
	Status string `json:"status"`
}

// writeJSON записывает JSON-ответ.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// requireSubject возвращает sub из JWT. Без sub отвечает 401
// и возвращает пустую строку.
func requireSubject(w http.ResponseWriter, r *http.Request) string {
	subject := middleware.SubjectFromContext(r.Context())
	if subject == "" {
		apierrors.Unauthorized(w, "Запрос не аутентифицирован")
	}
	return subject
}
