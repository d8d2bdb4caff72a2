// Пакет repository — слой доступа к метаданным файлов и пользователей.
// Интерфейсы репозиториев и реализация для PostgreSQL (чистый SQL через pgx).
// Встраиваемая реализация на BadgerDB — в пакете badgerstore.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/filedesk/internal/domain/model"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — запись уже существует")
)

// FileRecordRepository — хранилище записей о файлах.
type FileRecordRepository interface {
	// Create сохраняет новую запись. Занятое имя или путь — ErrConflict.
	Create(ctx context.Context, f *model.FileRecord) error
	// GetByID возвращает запись по UUID.
	GetByID(ctx context.Context, id string) (*model.FileRecord, error)
	// GetByName возвращает запись по имени файла (имя уникально глобально).
	GetByName(ctx context.Context, name string) (*model.FileRecord, error)
	// GetByPath возвращает запись по каноническому пути на диске.
	GetByPath(ctx context.Context, path string) (*model.FileRecord, error)
	// ListByOwner возвращает записи владельца в порядке загрузки.
	ListByOwner(ctx context.Context, ownerID string) ([]*model.FileRecord, error)
	// ListAll возвращает все записи (для сверки с диском).
	ListAll(ctx context.Context) ([]*model.FileRecord, error)
	// Delete удаляет запись. Отсутствующая запись — ErrNotFound.
	Delete(ctx context.Context, id string) error
}

// UserRepository — хранилище пользователей.
type UserRepository interface {
	// EnsureExists создаёт пользователя, если его ещё нет.
	EnsureExists(ctx context.Context, id string) error
	// GetByID возвращает пользователя по UUID.
	GetByID(ctx context.Context, id string) (*model.User, error)
	// Delete удаляет пользователя вместе со всеми его записями о файлах.
	Delete(ctx context.Context, id string) error
}

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRunner позволяет выполнять операции в транзакции.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner создаёт TxRunner для управления транзакциями.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunInTx выполняет fn внутри транзакции.
// Ошибка fn откатывает транзакцию, успех — коммитит.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
