// Пакет filestore — операции с физическими файлами внутри корня хранилища.
// Запись в два шага (временный файл, затем атомарный rename), чтение,
// удаление с очисткой опустевших директорий вверх до корня.
// Работает поверх afero.Fs: в сервисе — OsFs, в тестах — MemMapFs.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// ErrOutsideRoot — путь не лежит внутри корня хранилища.
var ErrOutsideRoot = errors.New("путь вне корня хранилища")

// FileStore — управление физическими файлами на диске.
type FileStore struct {
	fs afero.Fs
	// dataDir — корень хранилища (FD_DATA_DIR), канонический абсолютный путь
	dataDir string
}

// New создаёт FileStore. Создаёт корневую директорию, если её нет.
func New(afs afero.Fs, dataDir string) (*FileStore, error) {
	if !filepath.IsAbs(dataDir) {
		return nil, fmt.Errorf("корень хранилища должен быть абсолютным путём: %s", dataDir)
	}
	dataDir = filepath.Clean(dataDir)

	if err := afs.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}

	return &FileStore{fs: afs, dataDir: dataDir}, nil
}

// DataDir возвращает корень хранилища.
func (s *FileStore) DataDir() string {
	return s.dataDir
}

// Staged — содержимое, записанное во временный файл рядом с целевым путём.
// Целевой файл появляется только после Commit.
type Staged struct {
	// FullPath — итоговый путь файла после Commit
	FullPath string
	// Size — число записанных байт
	Size     int64
	tmpPath  string
}

// Write записывает данные из r по пути path: Stage, затем Commit.
// Возвращает число записанных байт и итоговый путь файла.
func (s *FileStore) Write(path, originalName string, r io.Reader) (int64, string, error) {
	st, err := s.Stage(path, originalName, r)
	if err != nil {
		return 0, "", err
	}
	if err := s.Commit(st); err != nil {
		_ = s.Discard(st)
		return 0, "", err
	}
	return st.Size, st.FullPath, nil
}

// Stage записывает данные из r во временный файл для пути path.
// Если path — существующая директория, итоговый файл получит в ней имя
// originalName. Недостающие директории создаются.
//
// Паттерн: temp файл → запись → fsync. При ошибке temp файл удаляется.
// По пути path ничего не меняется до Commit.
func (s *FileStore) Stage(path, originalName string, r io.Reader) (*Staged, error) {
	fullPath := filepath.Clean(path)
	if !s.contains(fullPath) {
		return nil, fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}

	if isDir, _ := afero.DirExists(s.fs, fullPath); isDir {
		fullPath = filepath.Join(fullPath, originalName)
		if !s.contains(fullPath) {
			return nil, fmt.Errorf("%w: %s", ErrOutsideRoot, fullPath)
		}
	}

	dir := filepath.Dir(fullPath)
	tmpPath := filepath.Join(dir, "."+filepath.Base(fullPath)+"."+uuid.New().String()[:8]+".tmp")

	f, err := s.createTemp(tmpPath)
	if err != nil {
		return nil, err
	}

	written, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		s.discardTemp(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		s.discardTemp(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		s.discardTemp(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	return &Staged{FullPath: fullPath, Size: written, tmpPath: tmpPath}, nil
}

// Commit атомарно переименовывает временный файл в итоговый путь.
func (s *FileStore) Commit(st *Staged) error {
	if err := s.fs.Rename(st.tmpPath, st.FullPath); err != nil {
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}
	return nil
}

// Discard удаляет временный файл и опустевшие директории над ним.
// Файл по итоговому пути не трогается.
func (s *FileStore) Discard(st *Staged) error {
	if err := s.fs.Remove(st.tmpPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ошибка удаления временного файла %s: %w", st.tmpPath, err)
	}
	return s.prune(filepath.Dir(st.tmpPath))
}

// createTemp создаёт временный файл вместе с директориями.
// Директорию может удалить параллельная очистка между MkdirAll и
// созданием файла, поэтому попытка повторяется один раз.
func (s *FileStore) createTemp(tmpPath string) (afero.File, error) {
	dir := filepath.Dir(tmpPath)
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if err = s.fs.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("ошибка создания директории %s: %w", dir, err)
		}
		var f afero.File
		f, err = s.fs.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			break
		}
	}
	return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
}

func (s *FileStore) discardTemp(tmpPath string) {
	_ = s.fs.Remove(tmpPath)
}

// Open открывает файл для чтения. Вызывающий код обязан закрыть файл.
func (s *FileStore) Open(path string) (afero.File, error) {
	fullPath := filepath.Clean(path)
	if !s.contains(fullPath) {
		return nil, fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}

	f, err := s.fs.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("файл не найден: %s: %w", path, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", path, err)
	}
	return f, nil
}

// Exists проверяет, что по пути лежит обычный файл.
func (s *FileStore) Exists(path string) bool {
	info, err := s.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Stat возвращает информацию о файле внутри корня.
func (s *FileStore) Stat(path string) (os.FileInfo, error) {
	fullPath := filepath.Clean(path)
	if !s.contains(fullPath) {
		return nil, fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return s.fs.Stat(fullPath)
}

// Delete удаляет файл и затем поднимается вверх по дереву, удаляя
// опустевшие директории. Подъём останавливается на первой непустой
// директории или на корне хранилища; сам корень никогда не удаляется.
// Отсутствующий файл не является ошибкой.
func (s *FileStore) Delete(path string) error {
	fullPath := filepath.Clean(path)
	if !s.contains(fullPath) {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}

	if err := s.fs.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ошибка удаления файла %s: %w", path, err)
	}

	return s.prune(filepath.Dir(fullPath))
}

// Walk обходит все обычные файлы под корнем хранилища.
// Временные файлы незавершённых записей пропускаются.
func (s *FileStore) Walk(fn func(path string, info os.FileInfo) error) error {
	return afero.Walk(s.fs, s.dataDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() || isTempName(info.Name()) {
			return nil
		}
		return fn(path, info)
	})
}

// CheckReady проверяет, что корень хранилища существует и доступен для записи.
// Возвращает статус ("ok", "fail") и сообщение.
func (s *FileStore) CheckReady() (status string, message string) {
	if ok, err := afero.DirExists(s.fs, s.dataDir); err != nil || !ok {
		return "fail", fmt.Sprintf("директория данных %s недоступна", s.dataDir)
	}

	marker := filepath.Join(s.dataDir, ".ready."+uuid.New().String()[:8]+".tmp")
	if err := afero.WriteFile(s.fs, marker, nil, 0o640); err != nil {
		return "fail", fmt.Sprintf("директория данных недоступна для записи: %v", err)
	}
	_ = s.fs.Remove(marker)
	return "ok", "директория данных доступна"
}

// prune удаляет пустые директории начиная с dir и вверх.
func (s *FileStore) prune(dir string) error {
	for s.contains(dir) {
		if ok, _ := afero.DirExists(s.fs, dir); !ok {
			dir = filepath.Dir(dir)
			continue
		}
		empty, err := afero.IsEmpty(s.fs, dir)
		if err != nil {
			return fmt.Errorf("ошибка чтения директории %s: %w", dir, err)
		}
		if !empty {
			return nil
		}
		if err := s.fs.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("ошибка удаления директории %s: %w", dir, err)
		}
		dir = filepath.Dir(dir)
	}
	return nil
}

// contains — path лежит строго внутри корня хранилища.
func (s *FileStore) contains(path string) bool {
	return strings.HasPrefix(path, s.dataDir+string(filepath.Separator))
}

// isTempName — имя временного файла незавершённой записи.
func isTempName(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".tmp")
}
