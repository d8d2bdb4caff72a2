// users.go — UserService: административное удаление пользователя
// вместе со всеми его файлами.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/bigkaa/filedesk/internal/domain/model"
	"github.com/bigkaa/filedesk/internal/repository"
	"github.com/bigkaa/filedesk/internal/storage/filestore"
)

// UserService — операции администратора над пользователями.
type UserService struct {
	store   *filestore.FileStore
	records repository.FileRecordRepository
	users   repository.UserRepository
	cache   *RecordCache
	logger  *slog.Logger
}

// NewUserService создаёт UserService.
func NewUserService(
	store *filestore.FileStore,
	records repository.FileRecordRepository,
	users repository.UserRepository,
	cache *RecordCache,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		store:   store,
		records: records,
		users:   users,
		cache:   cache,
		logger:  logger.With(slog.String("component", "users")),
	}
}

// CascadeResult — итог удаления пользователя.
type CascadeResult struct {
	UserID string
	// Files — записи, удалённые вместе с пользователем
	Files []*model.FileRecord
	// Failed — файлы, оставшиеся на диске
	Failed []DeleteFailure
}

// Status — текст ответа об удалении.
func (r *CascadeResult) Status() string {
	return fmt.Sprintf("User %s and all their files were deleted!", r.UserID)
}

// DeleteUserCascade удаляет пользователя, его записи (каскадно
// в хранилище метаданных) и затем файлы на диске. Файлы, которые не
// удалось удалить с диска, возвращаются в результате вместе с INCONSISTENT.
func (s *UserService) DeleteUserCascade(ctx context.Context, userID string) (res *CascadeResult, err error) {
	defer func() { observe("delete_user", err) }()

	if _, parseErr := uuid.Parse(userID); parseErr != nil {
		return nil, newError(CodeNotFound, fmt.Sprintf("пользователь %q не найден", userID), nil)
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(CodeNotFound, fmt.Sprintf("пользователь %q не найден", userID), nil)
		}
		return nil, newError(CodeInternal, "ошибка получения пользователя", err)
	}

	files, err := s.records.ListByOwner(ctx, userID)
	if err != nil {
		return nil, newError(CodeInternal, "ошибка получения списка файлов", err)
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(CodeNotFound, fmt.Sprintf("пользователь %q не найден", userID), nil)
		}
		return nil, newError(CodeInternal, "ошибка удаления пользователя", err)
	}

	res = &CascadeResult{UserID: userID, Files: files}
	for _, rec := range files {
		s.cache.Delete(rec.ID)
		if err := s.store.Delete(rec.Path); err != nil {
			res.Failed = append(res.Failed, DeleteFailure{Record: rec, Err: err})
		}
	}

	s.logger.Info("Пользователь удалён",
		slog.String("user_id", userID),
		slog.Int("files", len(files)),
		slog.Int("failed", len(res.Failed)),
	)

	if len(res.Failed) > 0 {
		return res, newError(CodeInconsistent, failureMessage(res.Failed), nil)
	}
	return res, nil
}
