// users.go — административное удаление пользователя вместе с файлами.
package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/filedesk/internal/api/errors"
	"github.com/bigkaa/filedesk/internal/api/middleware"
	"github.com/bigkaa/filedesk/internal/service"
)

// UsersHandler — обработчики /api/v1/users. Доступ ограничен
// middleware.RequireScope на уровне маршрутов.
type UsersHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewUsersHandler создаёт обработчик административных операций.
func NewUsersHandler(users *service.UserService, logger *slog.Logger) *UsersHandler {
	return &UsersHandler{
		users:  users,
		logger: logger.With(slog.String("component", "users_handler")),
	}
}

// DeleteUser обрабатывает DELETE /api/v1/users/{user_id}.
func (h *UsersHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := bindPathUUID(r, "user_id")
	if err != nil {
		apierrors.NotFound(w, fmt.Sprintf("Пользователь %q не найден", chi.URLParam(r, "user_id")))
		return
	}
	userID := id.String()

	res, err := h.users.DeleteUserCascade(r.Context(), userID)
	if err != nil {
		apierrors.FromServiceError(w, err)
		return
	}

	h.logger.Info("Пользователь удалён администратором",
		slog.String("user_id", userID),
		slog.String("admin", middleware.SubjectFromContext(r.Context())),
		slog.Int("files", len(res.Files)),
	)
	writeJSON(w, http.StatusOK, statusResponse{Status: res.Status()})
}
