package pathresolver

import (
	"errors"
	"path/filepath"
	"testing"
)

func newResolver(t *testing.T) (*Resolver, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "files")
	r, err := New(root)
	if err != nil {
		t.Fatalf("ошибка создания Resolver: %v", err)
	}
	return r, root
}

func TestNew_RejectsBadRoot(t *testing.T) {
	for _, root := range []string{"relative/files", "/", ""} {
		if _, err := New(root); err == nil {
			t.Errorf("New(%q): ожидалась ошибка", root)
		}
	}
}

func TestResolve(t *testing.T) {
	r, root := newResolver(t)

	tests := []struct {
		name     string
		path     string
		filename string
		want     string
	}{
		{"корень", "/", "note.txt", filepath.Join(root, "note.txt")},
		{"пустой путь", "", "note.txt", filepath.Join(root, "note.txt")},
		{"директория со слэшем", "/a/b/", "note.txt", filepath.Join(root, "a/b/note.txt")},
		{"директория без слэша", "/a/b", "note.txt", filepath.Join(root, "a/b/note.txt")},
		{"последний сегмент — другой файл", "/a/b/other.txt", "note.txt", filepath.Join(root, "a/b")},
		{"последний сегмент — то же имя с точкой", "/a/b/note.txt", "note.txt", filepath.Join(root, "a/b")},
		{"последний сегмент совпадает с именем без точки", "/a/b/README", "README", filepath.Join(root, "a/b/README")},
		{"директория с точкой и слэшем", "/a/v1.2/", "note.txt", filepath.Join(root, "a/v1.2/note.txt")},
		{"множественные слэши в начале", "///a", "note.txt", filepath.Join(root, "a/note.txt")},
		{"точки внутри корня", "/a/../b/", "note.txt", filepath.Join(root, "b/note.txt")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.path, tt.filename)
			if err != nil {
				t.Fatalf("Resolve(%q, %q) ошибка: %v", tt.path, tt.filename, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q, %q) = %q, хотели %q", tt.path, tt.filename, got, tt.want)
			}
		})
	}
}

// TestTarget_Idempotent: повторное разрешение итогового пути файла
// с тем же именем даёт тот же путь.
func TestTarget_Idempotent(t *testing.T) {
	r, _ := newResolver(t)

	for _, p := range []string{"/a/b/", "/a/b", "/", "/docs/report.pdf", "/a/b/note.txt"} {
		first, err := r.Target(p, "note.txt")
		if err != nil {
			t.Fatalf("Target(%q) ошибка: %v", p, err)
		}
		rel, err := filepath.Rel(r.Root(), first.Path)
		if err != nil {
			t.Fatalf("Rel ошибка: %v", err)
		}
		second, err := r.Target("/"+rel, "note.txt")
		if err != nil {
			t.Fatalf("повторный Target(%q) ошибка: %v", rel, err)
		}
		if first.Path != second.Path {
			t.Errorf("путь %q: первый %q, повторный %q", p, first.Path, second.Path)
		}
	}
}

func TestResolve_Invalid(t *testing.T) {
	r, _ := newResolver(t)

	tests := []struct {
		name     string
		path     string
		filename string
	}{
		{"выход за корень", "/../../etc/", "passwd.txt"},
		{"выход за корень через файл", "/../secret.txt", "note.txt"},
		{"пустое имя", "/a/", ""},
		{"имя с разделителем", "/a/", "b/c.txt"},
		{"имя-точка", "/a/", ".."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(tt.path, tt.filename)
			if !errors.Is(err, ErrInvalidPath) {
				t.Errorf("Resolve(%q, %q): ожидалась ErrInvalidPath, получено %v", tt.path, tt.filename, err)
			}
		})
	}
}

func TestTarget(t *testing.T) {
	r, root := newResolver(t)

	tests := []struct {
		path string
		want string
	}{
		{"/", filepath.Join(root, "note.txt")},
		{"/a/b/", filepath.Join(root, "a/b/note.txt")},
		{"/a/b/other.txt", filepath.Join(root, "a/b/note.txt")},
		{"/x.txt", filepath.Join(root, "note.txt")},
	}

	for _, tt := range tests {
		got, err := r.Target(tt.path, "note.txt")
		if err != nil {
			t.Fatalf("Target(%q) ошибка: %v", tt.path, err)
		}
		if got.Path != tt.want {
			t.Errorf("Target(%q).Path = %q, хотели %q", tt.path, got.Path, tt.want)
		}
		if got.Name != "note.txt" {
			t.Errorf("Target(%q).Name = %q, хотели note.txt", tt.path, got.Name)
		}
		if got.Dir != filepath.Dir(tt.want) {
			t.Errorf("Target(%q).Dir = %q", tt.path, got.Dir)
		}
		if !r.Contains(got.Path) {
			t.Errorf("Target(%q) вне корня: %q", tt.path, got.Path)
		}
	}
}

func TestValidate(t *testing.T) {
	r, root := newResolver(t)

	valid := []struct {
		in   string
		want string
	}{
		{"a/b/note.txt", filepath.Join(root, "a/b/note.txt")},
		{"/a/note.txt", filepath.Join(root, "a/note.txt")},
		{root + "/a/note.txt", filepath.Join(root, "a/note.txt")},
	}
	for _, tt := range valid {
		got, err := r.Validate(tt.in)
		if err != nil {
			t.Errorf("Validate(%q) ошибка: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Validate(%q) = %q, хотели %q", tt.in, got, tt.want)
		}
	}

	invalid := []string{
		"",
		"   ",
		"/a/b/",
		"/a/b",
		"/../../etc/passwd.conf",
		root,
	}
	for _, in := range invalid {
		if _, err := r.Validate(in); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Validate(%q): ожидалась ErrInvalidPath, получено %v", in, err)
		}
	}
}

func TestContains(t *testing.T) {
	r, root := newResolver(t)

	if r.Contains(root) {
		t.Error("корень не должен считаться лежащим внутри себя")
	}
	if !r.Contains(filepath.Join(root, "a.txt")) {
		t.Error("файл в корне должен лежать внутри")
	}
	if r.Contains(root + "-other/a.txt") {
		t.Error("соседняя директория с общим префиксом не должна считаться внутренней")
	}
}
