package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/bigkaa/filedesk/internal/domain/model"
	"github.com/bigkaa/filedesk/internal/repository"
)

// Users — repository.UserRepository поверх BadgerDB.
type Users struct {
	db *badger.DB
}

var _ repository.UserRepository = (*Users)(nil)

func (r *Users) EnsureExists(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		ok, err := exists(txn, keyUser(id))
		if err != nil || ok {
			return err
		}

		data, err := json.Marshal(&model.User{ID: id, CreatedAt: time.Now().UTC()})
		if err != nil {
			return err
		}
		return txn.Set(keyUser(id), data)
	})
	// Параллельная регистрация того же пользователя — уже не ошибка
	if errors.Is(err, badger.ErrConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("ошибка регистрации пользователя: %w", err)
	}
	return nil
}

func (r *Users) GetByID(ctx context.Context, id string) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u := &model.User{}
	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, keyUser(id), u)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}

// Delete удаляет пользователя и все его записи о файлах в одной транзакции.
func (r *Users) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		ok, err := exists(txn, keyUser(id))
		if err != nil {
			return err
		}
		if !ok {
			return repository.ErrNotFound
		}

		fileIDs, err := scanSuffixes(txn, keyOwnerPrefix(id))
		if err != nil {
			return err
		}
		for _, fileID := range fileIDs {
			f, err := loadFile(txn, fileID)
			if errors.Is(err, badger.ErrKeyNotFound) {
				// Висячий индекс: удаляем только его
				if err := txn.Delete(keyOwner(id, fileID)); err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}
			if err := deleteFileKeys(txn, f); err != nil {
				return err
			}
		}

		return txn.Delete(keyUser(id))
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return fmt.Errorf("ошибка удаления пользователя: %w", err)
	}
	return nil
}
