// Пакет badgerstore — встраиваемое хранилище метаданных на BadgerDB.
// Реализует repository.FileRecordRepository и repository.UserRepository
// для однонодовых установок без PostgreSQL (FD_METADATA_BACKEND=badger).
//
// Схема ключей:
//
//	f:<fileID>           → JSON model.FileRecord
//	n:<name>             → fileID (уникальность имени)
//	p:<path>             → fileID (уникальность пути)
//	o:<ownerID>:<fileID> → пусто (индекс по владельцу)
//	u:<userID>           → JSON model.User
//
// Все изменения записи и её индексов выполняются в одной транзакции.
// Конкурентные транзакции, затронувшие один ключ имени, отклоняются
// BadgerDB при коммите (badger.ErrConflict) и отображаются
// в repository.ErrConflict.
package badgerstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

const (
	prefixFile  = "f:"
	prefixName  = "n:"
	prefixPath  = "p:"
	prefixOwner = "o:"
	prefixUser  = "u:"
)

func keyFile(id string) []byte { return []byte(prefixFile + id) }
func keyName(name string) []byte { return []byte(prefixName + name) }
func keyPath(path string) []byte { return []byte(prefixPath + path) }
func keyUser(id string) []byte { return []byte(prefixUser + id) }
func keyOwnerPrefix(owner string) []byte { return []byte(prefixOwner + owner + ":") }

func keyOwner(owner, fileID string) []byte {
	return []byte(prefixOwner + owner + ":" + fileID)
}

// Store — открытая база BadgerDB.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open открывает (или создаёт) базу в директории dir.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir).
		WithCompression(options.None).
		WithLogger(&slogAdapter{logger: logger.With(slog.String("component", "badger"))}).
		WithLoggingLevel(badger.WARNING)

	return open(opts, logger)
}

// OpenInMemory открывает базу в памяти (тесты, эксперименты).
func OpenInMemory(logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)

	return open(opts, logger)
}

func open(opts badger.Options, logger *slog.Logger) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия BadgerDB %s: %w", opts.Dir, err)
	}

	logger.Info("Хранилище метаданных BadgerDB открыто",
		slog.String("dir", opts.Dir),
		slog.Bool("in_memory", opts.InMemory),
	)

	return &Store{db: db, logger: logger}, nil
}

// Close закрывает базу.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия BadgerDB: %w", err)
	}
	return nil
}

// Files возвращает репозиторий записей о файлах.
func (s *Store) Files() *FileRecords {
	return &FileRecords{db: s.db}
}

// Users возвращает репозиторий пользователей.
func (s *Store) Users() *Users {
	return &Users{db: s.db}
}

// CheckReady — проверка готовности для health endpoint.
func (s *Store) CheckReady() (status string, message string) {
	if s.db.IsClosed() {
		return "fail", "BadgerDB закрыта"
	}
	return "ok", "хранилище открыто"
}

// getJSON читает значение ключа и декодирует JSON в dst.
func getJSON(txn *badger.Txn, key []byte, dst any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dst)
	})
}

// getString читает значение ключа как строку.
func getString(txn *badger.Txn, key []byte) (string, error) {
	item, err := txn.Get(key)
	if err != nil {
		return "", err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(val), nil
}

// exists проверяет наличие ключа.
func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// slogAdapter направляет журнал BadgerDB в slog.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Errorf(format string, args ...any) {
	a.logger.Error(fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Warningf(format string, args ...any) {
	a.logger.Warn(fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Infof(format string, args ...any) {
	a.logger.Info(fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Debugf(format string, args ...any) {
	a.logger.Debug(fmt.Sprintf(format, args...))
}
