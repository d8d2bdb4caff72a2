package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/filedesk/internal/domain/model"
)

// userRepo — реализация UserRepository для PostgreSQL.
type userRepo struct {
	db DBTX
	tx *TxRunner
}

// NewUserRepository создаёт репозиторий пользователей.
// tx используется для каскадного удаления.
func NewUserRepository(db DBTX, tx *TxRunner) UserRepository {
	return &userRepo{db: db, tx: tx}
}

func (r *userRepo) EnsureExists(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id)
	if err != nil {
		return fmt.Errorf("ошибка регистрации пользователя: %w", err)
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	u := &model.User{}
	err := r.db.QueryRow(ctx,
		`SELECT id, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}

// Delete удаляет записи файлов и пользователя в одной транзакции.
// Внешний ключ files.owner_id объявлен с ON DELETE CASCADE,
// явное удаление файлов фиксирует порядок внутри транзакции.
func (r *userRepo) Delete(ctx context.Context, id string) error {
	return r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM files WHERE owner_id = $1`, id); err != nil {
			return fmt.Errorf("ошибка удаления файлов пользователя: %w", err)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("ошибка удаления пользователя: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}
