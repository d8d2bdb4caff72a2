package filestore

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

// newOsStore создаёт FileStore на реальной ФС во временной директории.
func newOsStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "files")
	s, err := New(afero.NewOsFs(), root)
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}
	return s, root
}

// TestNew_CreatesDirectory проверяет создание корня хранилища.
func TestNew_CreatesDirectory(t *testing.T) {
	s, root := newOsStore(t)

	if s.DataDir() != root {
		t.Errorf("ожидался путь %s, получен %s", root, s.DataDir())
	}
	info, err := os.Stat(root)
	if err != nil {
		t.Fatalf("директория не создана: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("путь не является директорией")
	}
}

func TestNew_RelativeRoot(t *testing.T) {
	if _, err := New(afero.NewMemMapFs(), "relative/files"); err == nil {
		t.Fatal("ожидалась ошибка для относительного корня")
	}
}

// TestWrite_CreatesParents проверяет создание промежуточных директорий.
func TestWrite_CreatesParents(t *testing.T) {
	s, root := newOsStore(t)

	content := []byte("Hello, World! Тестовые данные.")
	target := filepath.Join(root, "a", "b", "note.txt")

	n, full, err := s.Write(target, "note.txt", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}
	if n != int64(len(content)) {
		t.Errorf("записано %d байт, ожидалось %d", n, len(content))
	}
	if full != target {
		t.Errorf("путь %q, ожидался %q", full, target)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("содержимое не совпадает")
	}
}

// TestWrite_IntoExistingDirectory: если путь — существующая директория,
// файл создаётся в ней под исходным именем.
func TestWrite_IntoExistingDirectory(t *testing.T) {
	s, root := newOsStore(t)

	dir := filepath.Join(root, "docs")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatal(err)
	}

	_, full, err := s.Write(dir, "report.pdf", strings.NewReader("pdf"))
	if err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}
	if want := filepath.Join(dir, "report.pdf"); full != want {
		t.Errorf("путь %q, ожидался %q", full, want)
	}
	if !s.Exists(full) {
		t.Error("файл не найден после записи")
	}
}

func TestWrite_Overwrites(t *testing.T) {
	s, root := newOsStore(t)
	target := filepath.Join(root, "x.txt")

	if _, _, err := s.Write(target, "x.txt", strings.NewReader("первая версия")); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Write(target, "x.txt", strings.NewReader("v2")); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(target)
	if string(data) != "v2" {
		t.Errorf("содержимое %q, ожидалось v2", data)
	}
}

// failingReader возвращает ошибку после первых байт.
type failingReader struct{ sent bool }

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, "partial"), nil
	}
	return 0, errors.New("обрыв соединения")
}

// TestWrite_FailureLeavesNothing: при ошибке чтения не остаются ни целевой,
// ни временный файл.
func TestWrite_FailureLeavesNothing(t *testing.T) {
	s, root := newOsStore(t)
	target := filepath.Join(root, "a", "broken.bin")

	if _, _, err := s.Write(target, "broken.bin", &failingReader{}); err == nil {
		t.Fatal("ожидалась ошибка записи")
	}
	if s.Exists(target) {
		t.Error("целевой файл не должен существовать")
	}

	entries, _ := os.ReadDir(filepath.Join(root, "a"))
	if len(entries) != 0 {
		t.Errorf("в директории остались файлы: %v", entries)
	}
}

func TestWrite_OutsideRoot(t *testing.T) {
	s, root := newOsStore(t)

	for _, p := range []string{root, filepath.Join(root, "..", "escape.txt"), "/etc/passwd"} {
		_, _, err := s.Write(p, "x.txt", strings.NewReader("x"))
		if !errors.Is(err, ErrOutsideRoot) {
			t.Errorf("Write(%q): ожидалась ErrOutsideRoot, получено %v", p, err)
		}
	}
}

// TestDelete_PrunesToRoot: удаление единственного файла удаляет все
// опустевшие директории, но не корень.
func TestDelete_PrunesToRoot(t *testing.T) {
	s, root := newOsStore(t)
	target := filepath.Join(root, "a", "b", "c", "note.txt")

	if _, _, err := s.Write(target, "note.txt", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(target); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "a")); !os.IsNotExist(err) {
		t.Error("директория a должна быть удалена")
	}
	if _, err := os.Stat(root); err != nil {
		t.Errorf("корень хранилища удалён: %v", err)
	}
}

// TestDelete_StopsAtNonEmpty: подъём останавливается на первой
// непустой директории.
func TestDelete_StopsAtNonEmpty(t *testing.T) {
	s, root := newOsStore(t)
	target := filepath.Join(root, "a", "b", "note.txt")
	sibling := filepath.Join(root, "a", "keep.txt")

	for _, p := range []string{target, sibling} {
		if _, _, err := s.Write(p, filepath.Base(p), strings.NewReader("x")); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.Delete(target); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "a", "b")); !os.IsNotExist(err) {
		t.Error("директория a/b должна быть удалена")
	}
	if !s.Exists(sibling) {
		t.Error("соседний файл должен остаться")
	}
}

func TestDelete_Idempotent(t *testing.T) {
	s, root := newOsStore(t)
	target := filepath.Join(root, "a", "gone.txt")

	if err := s.Delete(target); err != nil {
		t.Fatalf("удаление отсутствующего файла вернуло ошибку: %v", err)
	}
	if _, err := os.Stat(root); err != nil {
		t.Errorf("корень хранилища удалён: %v", err)
	}
}

func TestDelete_OutsideRoot(t *testing.T) {
	s, root := newOsStore(t)

	outside := filepath.Join(filepath.Dir(root), "other.txt")
	if err := os.WriteFile(outside, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(outside); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("ожидалась ErrOutsideRoot, получено %v", err)
	}
	if err := s.Delete(root); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("удаление корня: ожидалась ErrOutsideRoot, получено %v", err)
	}
	if _, err := os.Stat(outside); err != nil {
		t.Error("файл вне корня не должен удаляться")
	}
}

// TestMemFs_RoundTrip проверяет работу поверх MemMapFs.
func TestMemFs_RoundTrip(t *testing.T) {
	s, err := New(afero.NewMemMapFs(), "/srv/files")
	if err != nil {
		t.Fatal(err)
	}

	target := "/srv/files/u/doc.txt"
	if _, _, err := s.Write(target, "doc.txt", strings.NewReader("данные")); err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}

	f, err := s.Open(target)
	if err != nil {
		t.Fatalf("ошибка открытия: %v", err)
	}
	data, _ := io.ReadAll(f)
	f.Close()
	if string(data) != "данные" {
		t.Errorf("содержимое %q", data)
	}

	var walked []string
	if err := s.Walk(func(path string, _ os.FileInfo) error {
		walked = append(walked, path)
		return nil
	}); err != nil {
		t.Fatalf("ошибка обхода: %v", err)
	}
	if len(walked) != 1 || walked[0] != target {
		t.Errorf("обход вернул %v", walked)
	}

	if err := s.Delete(target); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}
	if _, err := s.Open(target); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ожидалась ErrNotExist, получено %v", err)
	}
}

func TestCheckReady(t *testing.T) {
	s, root := newOsStore(t)

	if status, msg := s.CheckReady(); status != "ok" {
		t.Fatalf("статус %q (%s), ожидался ok", status, msg)
	}
	entries, _ := os.ReadDir(root)
	if len(entries) != 0 {
		t.Errorf("проверка оставила файлы: %v", entries)
	}

	if err := os.RemoveAll(root); err != nil {
		t.Fatal(err)
	}
	if status, _ := s.CheckReady(); status != "fail" {
		t.Errorf("статус %q для удалённого корня, ожидался fail", status)
	}
}

// TestStage_InvisibleUntilCommit: до Commit по итоговому пути ничего нет,
// существующий файл не меняется.
func TestStage_InvisibleUntilCommit(t *testing.T) {
	s, root := newOsStore(t)
	target := filepath.Join(root, "d", "x.txt")

	if _, _, err := s.Write(target, "x.txt", strings.NewReader("первый")); err != nil {
		t.Fatal(err)
	}

	st, err := s.Stage(target, "x.txt", strings.NewReader("второй"))
	if err != nil {
		t.Fatalf("ошибка Stage: %v", err)
	}
	if st.FullPath != target || st.Size != int64(len("второй")) {
		t.Errorf("Staged = %+v", st)
	}

	data, _ := os.ReadFile(target)
	if string(data) != "первый" {
		t.Errorf("до Commit содержимое %q, ожидалось исходное", data)
	}

	if err := s.Commit(st); err != nil {
		t.Fatalf("ошибка Commit: %v", err)
	}
	data, _ = os.ReadFile(target)
	if string(data) != "второй" {
		t.Errorf("после Commit содержимое %q", data)
	}
	entries, _ := os.ReadDir(filepath.Join(root, "d"))
	if len(entries) != 1 {
		t.Errorf("в директории остались временные файлы: %v", entries)
	}
}

// TestDiscard_KeepsCommittedFile: отмена записи удаляет только временный
// файл, файл по итоговому пути остаётся.
func TestDiscard_KeepsCommittedFile(t *testing.T) {
	s, root := newOsStore(t)
	target := filepath.Join(root, "d", "x.txt")

	if _, _, err := s.Write(target, "x.txt", strings.NewReader("чужие данные")); err != nil {
		t.Fatal(err)
	}

	st, err := s.Stage(target, "x.txt", strings.NewReader("отменённые"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Discard(st); err != nil {
		t.Fatalf("ошибка Discard: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil || string(data) != "чужие данные" {
		t.Errorf("файл изменён отменой записи: %q, %v", data, err)
	}
	entries, _ := os.ReadDir(filepath.Join(root, "d"))
	if len(entries) != 1 {
		t.Errorf("временный файл не удалён: %v", entries)
	}
}

func TestDiscard_PrunesCreatedDirs(t *testing.T) {
	s, root := newOsStore(t)

	st, err := s.Stage(filepath.Join(root, "a", "b", "x.txt"), "x.txt", strings.NewReader("x"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Discard(st); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "a")); !os.IsNotExist(err) {
		t.Error("созданные директории должны быть удалены")
	}
}
