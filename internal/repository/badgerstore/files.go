package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/bigkaa/filedesk/internal/domain/model"
	"github.com/bigkaa/filedesk/internal/repository"
)

// FileRecords — repository.FileRecordRepository поверх BadgerDB.
type FileRecords struct {
	db *badger.DB
}

var _ repository.FileRecordRepository = (*FileRecords)(nil)

func (r *FileRecords) Create(ctx context.Context, f *model.FileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("ошибка сериализации записи файла: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		ok, err := exists(txn, keyUser(f.OwnerID))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("владелец %s не зарегистрирован", f.OwnerID)
		}

		for _, key := range [][]byte{keyFile(f.ID), keyName(f.Name), keyPath(f.Path)} {
			taken, err := exists(txn, key)
			if err != nil {
				return err
			}
			if taken {
				return fmt.Errorf("%w: файл %q уже существует", repository.ErrConflict, f.Name)
			}
		}

		if err := txn.Set(keyFile(f.ID), data); err != nil {
			return err
		}
		if err := txn.Set(keyName(f.Name), []byte(f.ID)); err != nil {
			return err
		}
		if err := txn.Set(keyPath(f.Path), []byte(f.ID)); err != nil {
			return err
		}
		return txn.Set(keyOwner(f.OwnerID, f.ID), nil)
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return err
		}
		if errors.Is(err, badger.ErrConflict) {
			return fmt.Errorf("%w: файл %q создаётся параллельно", repository.ErrConflict, f.Name)
		}
		return fmt.Errorf("ошибка создания записи файла: %w", err)
	}
	return nil
}

func (r *FileRecords) GetByID(ctx context.Context, id string) (*model.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var f *model.FileRecord
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		f, err = loadFile(txn, id)
		return err
	})
	if err != nil {
		return nil, mapGetError(err)
	}
	return f, nil
}

func (r *FileRecords) GetByName(ctx context.Context, name string) (*model.FileRecord, error) {
	return r.getByIndex(ctx, keyName(name))
}

func (r *FileRecords) GetByPath(ctx context.Context, path string) (*model.FileRecord, error) {
	return r.getByIndex(ctx, keyPath(path))
}

func (r *FileRecords) ListByOwner(ctx context.Context, ownerID string) ([]*model.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files := make([]*model.FileRecord, 0)
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := keyOwnerPrefix(ownerID)
		ids, err := scanSuffixes(txn, prefix)
		if err != nil {
			return err
		}
		for _, id := range ids {
			f, err := loadFile(txn, id)
			if err != nil {
				return fmt.Errorf("индекс владельца ссылается на %s: %w", id, err)
			}
			files = append(files, f)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}

	sortRecords(files)
	return files, nil
}

func (r *FileRecords) ListAll(ctx context.Context) ([]*model.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files := make([]*model.FileRecord, 0)
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixFile)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			f := &model.FileRecord{}
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, f)
			}); err != nil {
				return err
			}
			files = append(files, f)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}

	sortRecords(files)
	return files, nil
}

func (r *FileRecords) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		f, err := loadFile(txn, id)
		if err != nil {
			return err
		}
		return deleteFileKeys(txn, f)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("ошибка удаления записи файла: %w", err)
	}
	return nil
}

// getByIndex разыменовывает индексный ключ (n: или p:) в запись.
func (r *FileRecords) getByIndex(ctx context.Context, key []byte) (*model.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var f *model.FileRecord
	err := r.db.View(func(txn *badger.Txn) error {
		id, err := getString(txn, key)
		if err != nil {
			return err
		}
		f, err = loadFile(txn, id)
		return err
	})
	if err != nil {
		return nil, mapGetError(err)
	}
	return f, nil
}

// loadFile читает запись f:<id>.
func loadFile(txn *badger.Txn, id string) (*model.FileRecord, error) {
	f := &model.FileRecord{}
	if err := getJSON(txn, keyFile(id), f); err != nil {
		return nil, err
	}
	return f, nil
}

// deleteFileKeys удаляет запись и все её индексы.
func deleteFileKeys(txn *badger.Txn, f *model.FileRecord) error {
	keys := [][]byte{
		keyFile(f.ID),
		keyName(f.Name),
		keyPath(f.Path),
		keyOwner(f.OwnerID, f.ID),
	}
	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// scanSuffixes возвращает части ключей после prefix.
func scanSuffixes(txn *badger.Txn, prefix []byte) ([]string, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false

	it := txn.NewIterator(opts)
	defer it.Close()

	var out []string
	for it.Rewind(); it.Valid(); it.Next() {
		key := it.Item().KeyCopy(nil)
		out = append(out, string(key[len(prefix):]))
	}
	return out, nil
}

// sortRecords упорядочивает записи по времени загрузки, затем по ID.
func sortRecords(files []*model.FileRecord) {
	sort.Slice(files, func(i, j int) bool {
		if !files[i].CreatedAt.Equal(files[j].CreatedAt) {
			return files[i].CreatedAt.Before(files[j].CreatedAt)
		}
		return files[i].ID < files[j].ID
	})
}

func mapGetError(err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return repository.ErrNotFound
	}
	return fmt.Errorf("ошибка получения записи файла: %w", err)
}
