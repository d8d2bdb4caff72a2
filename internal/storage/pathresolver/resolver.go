// Пакет pathresolver — преобразование логического пути пользователя
// и имени файла в канонический абсолютный путь внутри корня хранилища.
//
// Логический путь одним полем задаёт либо директорию для файла,
// либо полный путь к файлу. Неоднозначность снимается так:
//   - путь оканчивается на "/" — это директория, к ней добавляется имя файла;
//   - последний сегмент содержит "." — путь уже называет файл, переданное
//     имя отбрасывается, целью становится родительская директория;
//   - последний сегмент совпадает с именем файла — путь не меняется;
//   - иначе имя файла добавляется к пути.
//
// Эвристика по точке хрупкая (директория "v1.2" будет принята за файл),
// но сохраняется для совместимости с существующими клиентами.
package pathresolver

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrInvalidPath — путь пуст, выходит за корень хранилища или некорректен.
var ErrInvalidPath = errors.New("некорректный путь")

// Resolver — чистая логика разрешения путей относительно корня хранилища.
// Не имеет состояния кроме корня и безопасен для конкурентного использования.
type Resolver struct {
	root string
}

// Target — итоговое место записи файла.
type Target struct {
	// Path — абсолютный путь файла
	Path string
	// Dir — директория файла
	Dir string
	// Name — имя файла на диске (последний сегмент Path)
	Name string
}

// New создаёт Resolver для корня хранилища root.
// root должен быть абсолютным путём и не может быть корнем файловой системы.
func New(root string) (*Resolver, error) {
	if !filepath.IsAbs(root) {
		return nil, fmt.Errorf("корень хранилища должен быть абсолютным путём: %q", root)
	}
	root = filepath.Clean(root)
	if root == string(filepath.Separator) {
		return nil, fmt.Errorf("корень файловой системы не может быть корнем хранилища")
	}
	return &Resolver{root: root}, nil
}

// Root возвращает канонический корень хранилища.
func (r *Resolver) Root() string {
	return r.root
}

// Contains проверяет, что path лежит строго внутри корня хранилища.
func (r *Resolver) Contains(path string) bool {
	path = filepath.Clean(path)
	return strings.HasPrefix(path, r.root+string(filepath.Separator))
}

// within — path внутри корня или равен ему.
func (r *Resolver) within(path string) bool {
	return path == r.root || r.Contains(path)
}

// Resolve разрешает логический путь и имя файла в канонический путь.
// В ветке "последний сегмент с точкой" возвращается директория,
// а не путь файла.
func (r *Resolver) Resolve(logicalPath, filename string) (string, error) {
	resolved, _, err := r.resolve(logicalPath, filename)
	return resolved, err
}

// Target разрешает путь так же, как Resolve, и возвращает итоговый путь
// файла. Если разрешение дало директорию, к ней добавляется filename,
// поэтому имя файла на диске всегда равно filename.
func (r *Resolver) Target(logicalPath, filename string) (Target, error) {
	resolved, isDir, err := r.resolve(logicalPath, filename)
	if err != nil {
		return Target{}, err
	}

	path := resolved
	if isDir {
		path = filepath.Join(resolved, filename)
	}
	if !r.Contains(path) {
		return Target{}, fmt.Errorf("%w: %q выходит за пределы хранилища", ErrInvalidPath, logicalPath)
	}

	return Target{
		Path: path,
		Dir:  filepath.Dir(path),
		Name: filepath.Base(path),
	}, nil
}

// resolve — общая часть Resolve и Target. isDir = true, если результат —
// директория (ветка с точкой в последнем сегменте).
func (r *Resolver) resolve(logicalPath, filename string) (string, bool, error) {
	if err := validateFilename(filename); err != nil {
		return "", false, err
	}

	rel := strings.TrimLeft(logicalPath, "/")

	// Пустой относительный путь — корень хранилища как директория
	if rel == "" {
		return filepath.Join(r.root, filename), false, nil
	}

	candidate := filepath.Join(r.root, rel)
	if !r.within(candidate) {
		return "", false, fmt.Errorf("%w: %q выходит за пределы хранилища", ErrInvalidPath, logicalPath)
	}

	var resolved string
	isDir := false

	switch last := filepath.Base(candidate); {
	case strings.HasSuffix(rel, "/") || candidate == r.root:
		resolved = filepath.Join(candidate, filename)
	case strings.Contains(last, "."):
		// Путь уже называет какой-то файл: имя отбрасывается
		resolved = filepath.Dir(candidate)
		isDir = true
	case last == filename:
		resolved = candidate
	default:
		resolved = filepath.Join(candidate, filename)
	}

	if resolved == "" || !r.within(resolved) {
		return "", false, fmt.Errorf("%w: %q выходит за пределы хранилища", ErrInvalidPath, logicalPath)
	}
	return resolved, isDir, nil
}

// Validate проверяет путь для скачивания (без имени файла).
// Путь должен быть непустым, не оканчиваться на "/" и содержать точку
// в последнем сегменте. Если корень хранилища не указан, он добавляется.
// Возвращает канонический абсолютный путь.
func (r *Resolver) Validate(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: не указано имя файла", ErrInvalidPath)
	}
	if strings.HasSuffix(path, "/") {
		return "", fmt.Errorf("%w: путь %q указывает на директорию", ErrInvalidPath, path)
	}

	rel := strings.TrimLeft(path, "/")
	rootRel := strings.TrimLeft(r.root, "/")

	var full string
	if rel == rootRel || strings.HasPrefix(rel, rootRel+"/") {
		full = filepath.Clean("/" + rel)
	} else {
		full = filepath.Join(r.root, rel)
	}

	if !r.Contains(full) {
		return "", fmt.Errorf("%w: %q выходит за пределы хранилища", ErrInvalidPath, path)
	}
	if !strings.Contains(filepath.Base(full), ".") {
		return "", fmt.Errorf("%w: в пути %q не указано имя файла", ErrInvalidPath, path)
	}
	return full, nil
}

// validateFilename проверяет, что имя файла — один непустой сегмент пути.
func validateFilename(filename string) error {
	switch {
	case filename == "", filename == ".", filename == "..":
		return fmt.Errorf("%w: некорректное имя файла %q", ErrInvalidPath, filename)
	case strings.ContainsAny(filename, `/\`):
		return fmt.Errorf("%w: имя файла %q содержит разделитель пути", ErrInvalidPath, filename)
	case strings.ContainsRune(filename, 0):
		return fmt.Errorf("%w: имя файла содержит нулевой байт", ErrInvalidPath)
	}
	return nil
}
