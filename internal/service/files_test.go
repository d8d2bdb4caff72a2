package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/bigkaa/filedesk/internal/domain/model"
	"github.com/bigkaa/filedesk/internal/repository"
	"github.com/bigkaa/filedesk/internal/repository/badgerstore"
	"github.com/bigkaa/filedesk/internal/storage/filestore"
	"github.com/bigkaa/filedesk/internal/storage/pathresolver"
)

// testEnv — FileService поверх реальной ФС во временной директории
// и BadgerDB в памяти.
type testEnv struct {
	root     string
	resolver *pathresolver.Resolver
	store    *filestore.FileStore
	records  repository.FileRecordRepository
	users    repository.UserRepository
	cache    *RecordCache
	files    *FileService
	admin    *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithRecords(t, nil)
}

// newTestEnvWithRecords позволяет обернуть репозиторий записей
// (например, для внедрения ошибок).
func newTestEnvWithRecords(t *testing.T, wrap func(repository.FileRecordRepository) repository.FileRecordRepository) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	root := filepath.Join(t.TempDir(), "files")

	resolver, err := pathresolver.New(root)
	if err != nil {
		t.Fatalf("ошибка создания Resolver: %v", err)
	}
	store, err := filestore.New(afero.NewOsFs(), root)
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}
	db, err := badgerstore.OpenInMemory(logger)
	if err != nil {
		t.Fatalf("ошибка открытия BadgerDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	var records repository.FileRecordRepository = db.Files()
	if wrap != nil {
		records = wrap(records)
	}
	users := db.Users()
	cache := NewRecordCache(100, time.Minute)

	return &testEnv{
		root:     root,
		resolver: resolver,
		store:    store,
		records:  records,
		users:    users,
		cache:    cache,
		files:    NewFileService(resolver, NewNameGuard(records), store, records, users, cache, logger),
		admin:    NewUserService(store, records, users, cache, logger),
	}
}

func (e *testEnv) upload(t *testing.T, owner, path, name, content string) *model.FileRecord {
	t.Helper()
	rec, err := e.files.Upload(context.Background(), UploadParams{
		OwnerID:  owner,
		Path:     path,
		Filename: name,
		Reader:   strings.NewReader(content),
	})
	if err != nil {
		t.Fatalf("Upload(%q, %q) ошибка: %v", path, name, err)
	}
	return rec
}

func readAll(t *testing.T, d *Download) string {
	t.Helper()
	defer d.File.Close()
	data, err := io.ReadAll(d.File)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	return string(data)
}

func assertCode(t *testing.T, err error, code Code) {
	t.Helper()
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("ожидалась ошибка %s, получено %v", code, err)
	}
	if se.Code != code {
		t.Fatalf("код ошибки %s, ожидался %s (%v)", se.Code, code, err)
	}
}

// TestFileLifecycle — загрузка, список, скачивание по пути и ID, удаление.
func TestFileLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := uuid.New().String()

	rec := env.upload(t, owner, "/docs/", "report.txt", "квартальный отчёт")

	wantPath := filepath.Join(env.root, "docs", "report.txt")
	if rec.Path != wantPath || rec.Name != "report.txt" {
		t.Errorf("запись %+v, ожидался путь %s", rec, wantPath)
	}
	if rec.Size != int64(len("квартальный отчёт")) {
		t.Errorf("Size = %d", rec.Size)
	}
	if !rec.IsDownloadable {
		t.Error("IsDownloadable по умолчанию должен быть true")
	}

	list, err := env.files.List(ctx, owner)
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(list) != 1 || list[0].ID != rec.ID {
		t.Fatalf("List() = %+v", list)
	}

	byPath, err := env.files.Download(ctx, owner, PathSelector{Path: "docs/report.txt"})
	if err != nil {
		t.Fatalf("Download(path) ошибка: %v", err)
	}
	if got := readAll(t, byPath); got != "квартальный отчёт" {
		t.Errorf("содержимое по пути %q", got)
	}
	if !strings.HasPrefix(byPath.ContentType, "text/plain") {
		t.Errorf("ContentType = %q, ожидался text/plain", byPath.ContentType)
	}
	if byPath.Filename != "report.txt" || byPath.Size != rec.Size {
		t.Errorf("Download = %+v", byPath)
	}

	byID, err := env.files.Download(ctx, owner, IDSelector{ID: rec.ID})
	if err != nil {
		t.Fatalf("Download(id) ошибка: %v", err)
	}
	if got := readAll(t, byID); got != "квартальный отчёт" {
		t.Errorf("содержимое по ID %q", got)
	}

	if _, err := env.files.DeleteOne(ctx, owner, rec.ID); err != nil {
		t.Fatalf("DeleteOne() ошибка: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.root, "docs")); !os.IsNotExist(err) {
		t.Error("опустевшая директория docs должна быть удалена")
	}
	if _, err := os.Stat(env.root); err != nil {
		t.Errorf("корень хранилища удалён: %v", err)
	}

	// Кэш не должен отдавать удалённую запись
	_, err = env.files.Download(ctx, owner, IDSelector{ID: rec.ID})
	assertCode(t, err, CodeNotFound)

	list, err = env.files.List(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("после удаления ожидался пустой список, получено %v", list)
	}
}

// TestUpload_PathBranches — путь-директория, путь-файл и корень.
func TestUpload_PathBranches(t *testing.T) {
	env := newTestEnv(t)
	owner := uuid.New().String()

	tests := []struct {
		path string
		name string
		want string
	}{
		{"", "a.txt", "a.txt"},
		{"/x/y/", "b.txt", "x/y/b.txt"},
		{"/x/y", "c.txt", "x/y/c.txt"},
		{"/x/other.bin", "d.txt", "x/d.txt"},
	}

	for _, tt := range tests {
		rec := env.upload(t, owner, tt.path, tt.name, "data")
		want := filepath.Join(env.root, tt.want)
		if rec.Path != want {
			t.Errorf("Upload(%q, %q).Path = %q, ожидалось %q", tt.path, tt.name, rec.Path, want)
		}
		if rec.Name != tt.name {
			t.Errorf("Upload(%q, %q).Name = %q", tt.path, tt.name, rec.Name)
		}
		if !env.store.Exists(want) {
			t.Errorf("файл %s не найден на диске", want)
		}
	}
}

// TestUpload_NameUniqueAcrossOwners: имя занято глобально
// и освобождается после удаления.
func TestUpload_NameUniqueAcrossOwners(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice, bob := uuid.New().String(), uuid.New().String()

	first := env.upload(t, alice, "/alice/", "shared.txt", "от alice")

	_, err := env.files.Upload(ctx, UploadParams{
		OwnerID: bob, Path: "/bob/", Filename: "shared.txt", Reader: strings.NewReader("от bob"),
	})
	assertCode(t, err, CodeNameConflict)
	if env.store.Exists(filepath.Join(env.root, "bob", "shared.txt")) {
		t.Error("при конфликте файл не должен записываться")
	}

	if _, err := env.files.DeleteOne(ctx, alice, first.ID); err != nil {
		t.Fatal(err)
	}
	env.upload(t, bob, "/bob/", "shared.txt", "от bob")
}

// TestUpload_ConcurrentSameName: из параллельных загрузок одного имени
// успешна ровно одна.
func TestUpload_ConcurrentSameName(t *testing.T) {
	env := newTestEnv(t)
	const n = 8

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.files.Upload(context.Background(), UploadParams{
				OwnerID:  uuid.New().String(),
				Path:     "/dir" + string(rune('a'+i)) + "/",
				Filename: "race.txt",
				Reader:   strings.NewReader("x"),
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrNameConflict):
		default:
			t.Errorf("неожиданная ошибка: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("успешных загрузок %d, ожидалась 1", ok)
	}

	all, err := env.records.ListAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("записей %d, ожидалась 1", len(all))
	}
}

// gatedReader отдаёт данные только после сигнала resume,
// предварительно сообщив о начале чтения через started.
type gatedReader struct {
	data    string
	started chan struct{}
	resume  chan struct{}
	done    bool
}

func (r *gatedReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, io.EOF
	}
	r.done = true
	close(r.started)
	<-r.resume
	return copy(p, r.data), nil
}

// TestUpload_ConflictAcrossInstances: два экземпляра сервиса с общим
// хранилищем и своими NameGuard. Проигравший гонку не трогает файл
// победителя.
func TestUpload_ConflictAcrossInstances(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice, bob := uuid.New().String(), uuid.New().String()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	second := NewFileService(env.resolver, NewNameGuard(env.records), env.store,
		env.records, env.users, NewRecordCache(100, time.Minute), logger)

	slow := &gatedReader{data: "ALICE", started: make(chan struct{}), resume: make(chan struct{})}
	aliceErr := make(chan error, 1)
	go func() {
		_, err := env.files.Upload(ctx, UploadParams{OwnerID: alice, Path: "/d/", Filename: "x.txt", Reader: slow})
		aliceErr <- err
	}()
	<-slow.started

	rec, err := second.Upload(ctx, UploadParams{
		OwnerID: bob, Path: "/d/", Filename: "x.txt", Reader: strings.NewReader("BOB"),
	})
	if err != nil {
		t.Fatalf("загрузка bob: %v", err)
	}

	close(slow.resume)
	assertCode(t, <-aliceErr, CodeNameConflict)

	d, err := second.Download(ctx, bob, IDSelector{ID: rec.ID})
	if err != nil {
		t.Fatalf("файл bob недоступен после конфликта: %v", err)
	}
	if got := readAll(t, d); got != "BOB" {
		t.Errorf("содержимое %q, ожидалось BOB", got)
	}

	entries, _ := os.ReadDir(filepath.Join(env.root, "d"))
	if len(entries) != 1 {
		t.Errorf("в директории лишние файлы: %v", entries)
	}
}

func TestUpload_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := uuid.New().String()

	_, err := env.files.Upload(ctx, UploadParams{
		OwnerID: owner, Path: "/../../etc/", Filename: "passwd.txt", Reader: strings.NewReader("x"),
	})
	assertCode(t, err, CodeInvalidPath)

	_, err = env.files.Upload(ctx, UploadParams{
		OwnerID: owner, Filename: strings.Repeat("я", model.MaxNameLength+1), Reader: strings.NewReader("x"),
	})
	assertCode(t, err, CodeValidation)

	_, err = env.files.Upload(ctx, UploadParams{OwnerID: owner, Reader: strings.NewReader("x")})
	assertCode(t, err, CodeValidation)
}

// failingCreate — репозиторий, у которого Create всегда падает.
type failingCreate struct {
	repository.FileRecordRepository
}

func (f failingCreate) Create(context.Context, *model.FileRecord) error {
	return errors.New("хранилище метаданных недоступно")
}

// TestUpload_CompensatesOnCreateFailure: если запись не создана,
// записанный файл удаляется.
func TestUpload_CompensatesOnCreateFailure(t *testing.T) {
	env := newTestEnvWithRecords(t, func(r repository.FileRecordRepository) repository.FileRecordRepository {
		return failingCreate{r}
	})

	_, err := env.files.Upload(context.Background(), UploadParams{
		OwnerID: uuid.New().String(), Path: "/a/b/", Filename: "lost.txt", Reader: strings.NewReader("x"),
	})
	assertCode(t, err, CodeInternal)

	if env.store.Exists(filepath.Join(env.root, "a", "b", "lost.txt")) {
		t.Error("файл должен быть удалён после ошибки создания записи")
	}
	if _, err := os.Stat(filepath.Join(env.root, "a")); !os.IsNotExist(err) {
		t.Error("созданные директории должны быть очищены")
	}
}

func TestDownload_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice, bob := uuid.New().String(), uuid.New().String()
	rec := env.upload(t, alice, "/", "secret.txt", "тайна")

	t.Run("нет селектора", func(t *testing.T) {
		_, err := env.files.Download(ctx, alice, nil)
		assertCode(t, err, CodeMissingSelector)
	})

	t.Run("чужой файл по ID", func(t *testing.T) {
		_, err := env.files.Download(ctx, bob, IDSelector{ID: rec.ID})
		assertCode(t, err, CodeForbidden)
	})

	t.Run("чужой файл по пути", func(t *testing.T) {
		_, err := env.files.Download(ctx, bob, PathSelector{Path: "/secret.txt"})
		assertCode(t, err, CodeForbidden)
	})

	t.Run("некорректный путь", func(t *testing.T) {
		_, err := env.files.Download(ctx, alice, PathSelector{Path: "/docs/"})
		assertCode(t, err, CodeInvalidPath)
	})

	t.Run("неизвестный путь", func(t *testing.T) {
		_, err := env.files.Download(ctx, alice, PathSelector{Path: "/nope.txt"})
		assertCode(t, err, CodeNotFound)
	})

	t.Run("некорректный UUID", func(t *testing.T) {
		_, err := env.files.Download(ctx, alice, IDSelector{ID: "not-a-uuid"})
		assertCode(t, err, CodeNotFound)
	})
}

// TestDownload_NotDownloadable: запрет скачивания действует и на владельца.
func TestDownload_NotDownloadable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := uuid.New().String()

	path := filepath.Join(env.root, "locked.txt")
	if _, _, err := env.store.Write(path, "locked.txt", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}
	if err := env.users.EnsureExists(ctx, owner); err != nil {
		t.Fatal(err)
	}
	rec := &model.FileRecord{
		ID: uuid.New().String(), Name: "locked.txt", Path: path, Size: 1,
		CreatedAt: time.Now().UTC(), IsDownloadable: false, OwnerID: owner,
	}
	if err := env.records.Create(ctx, rec); err != nil {
		t.Fatal(err)
	}

	_, err := env.files.Download(ctx, owner, IDSelector{ID: rec.ID})
	assertCode(t, err, CodeForbidden)
}

// TestDownload_MissingOnDisk: запись есть, файла нет — NOT_FOUND.
func TestDownload_MissingOnDisk(t *testing.T) {
	env := newTestEnv(t)
	owner := uuid.New().String()
	rec := env.upload(t, owner, "/", "vanished.txt", "x")

	if err := os.Remove(rec.Path); err != nil {
		t.Fatal(err)
	}

	_, err := env.files.Download(context.Background(), owner, IDSelector{ID: rec.ID})
	assertCode(t, err, CodeNotFound)
}

// pausedDelete — репозиторий, у которого Delete ждёт сигнала resume.
type pausedDelete struct {
	repository.FileRecordRepository
	entered chan struct{}
	resume  chan struct{}
	once    sync.Once
}

func (p *pausedDelete) Delete(ctx context.Context, id string) error {
	p.once.Do(func() {
		close(p.entered)
		<-p.resume
	})
	return p.FileRecordRepository.Delete(ctx, id)
}

// TestDownload_DeletedIDAfterPathReuse: скачивание по ID удалённой записи
// не отдаёт файл другого владельца, занявший тот же путь, даже если
// запись осталась в кэше.
func TestDownload_DeletedIDAfterPathReuse(t *testing.T) {
	paused := &pausedDelete{entered: make(chan struct{}), resume: make(chan struct{})}
	env := newTestEnvWithRecords(t, func(r repository.FileRecordRepository) repository.FileRecordRepository {
		paused.FileRecordRepository = r
		return paused
	})
	ctx := context.Background()
	alice, bob := uuid.New().String(), uuid.New().String()

	rec := env.upload(t, alice, "/shared/", "doc.txt", "ALICE")

	deleted := make(chan error, 1)
	go func() {
		_, err := env.files.DeleteOne(ctx, alice, rec.ID)
		deleted <- err
	}()
	<-paused.entered

	// Скачивание во время удаления
	if d, err := env.files.Download(ctx, alice, IDSelector{ID: rec.ID}); err == nil {
		d.File.Close()
	}

	close(paused.resume)
	if err := <-deleted; err != nil {
		t.Fatalf("DeleteOne() ошибка: %v", err)
	}

	reused := env.upload(t, bob, "/shared/", "doc.txt", "BOB-SECRET")
	if reused.Path != rec.Path {
		t.Fatalf("ожидался тот же путь: %q и %q", reused.Path, rec.Path)
	}

	_, err := env.files.Download(ctx, alice, IDSelector{ID: rec.ID})
	assertCode(t, err, CodeNotFound)

	// Устаревшая запись в кэше тоже не даёт доступа
	env.cache.Set(rec)
	_, err = env.files.Download(ctx, alice, IDSelector{ID: rec.ID})
	assertCode(t, err, CodeNotFound)
	if _, ok := env.cache.Get(rec.ID); ok {
		t.Error("устаревшая запись должна быть убрана из кэша")
	}
}

func TestDeleteOne_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice, bob := uuid.New().String(), uuid.New().String()
	rec := env.upload(t, alice, "/", "mine.txt", "x")

	_, err := env.files.DeleteOne(ctx, bob, rec.ID)
	assertCode(t, err, CodeForbidden)
	if !env.store.Exists(rec.Path) {
		t.Error("файл не должен удаляться при отказе в доступе")
	}

	_, err = env.files.DeleteOne(ctx, alice, uuid.New().String())
	assertCode(t, err, CodeNotFound)
}

// TestDeleteAll_Statuses: пустая коллекция и полное удаление дают разные статусы.
func TestDeleteAll_Statuses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, other := uuid.New().String(), uuid.New().String()

	res, err := env.files.DeleteAll(ctx, owner)
	if err != nil {
		t.Fatalf("DeleteAll() ошибка: %v", err)
	}
	if res.Status != StatusNothingToDelete {
		t.Errorf("Status = %q, ожидался %q", res.Status, StatusNothingToDelete)
	}

	env.upload(t, owner, "/a/", "one.txt", "1")
	env.upload(t, owner, "/a/b/", "two.txt", "22")
	kept := env.upload(t, other, "/a/", "three.txt", "333")

	res, err = env.files.DeleteAll(ctx, owner)
	if err != nil {
		t.Fatalf("DeleteAll() ошибка: %v", err)
	}
	if res.Status != StatusAllDeleted {
		t.Errorf("Status = %q, ожидался %q", res.Status, StatusAllDeleted)
	}
	if len(res.Deleted) != 2 || res.FreedBytes != 3 {
		t.Errorf("Deleted = %d, FreedBytes = %d", len(res.Deleted), res.FreedBytes)
	}
	if _, err := os.Stat(filepath.Join(env.root, "a", "b")); !os.IsNotExist(err) {
		t.Error("директория a/b должна быть удалена")
	}
	if !env.store.Exists(kept.Path) {
		t.Error("файл другого пользователя должен остаться")
	}

	res, err = env.files.DeleteAll(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusNothingToDelete {
		t.Errorf("повторный DeleteAll: Status = %q", res.Status)
	}
}

// TestDeleteAll_PartialFailure: ошибка по одному файлу не прерывает обход.
func TestDeleteAll_PartialFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := uuid.New().String()

	good := env.upload(t, owner, "/", "good.txt", "x")

	// Запись с путём вне корня: удалить файл не получится
	bad := &model.FileRecord{
		ID: uuid.New().String(), Name: "bad.txt", Path: "/elsewhere/bad.txt", Size: 1,
		CreatedAt: time.Now().UTC(), IsDownloadable: true, OwnerID: owner,
	}
	if err := env.records.Create(ctx, bad); err != nil {
		t.Fatal(err)
	}

	res, err := env.files.DeleteAll(ctx, owner)
	assertCode(t, err, CodeInconsistent)
	if res == nil {
		t.Fatal("при частичной ошибке результат должен возвращаться")
	}
	if len(res.Deleted) != 1 || res.Deleted[0].ID != good.ID {
		t.Errorf("Deleted = %+v", res.Deleted)
	}
	if len(res.Failed) != 1 || res.Failed[0].Record.ID != bad.ID {
		t.Errorf("Failed = %+v", res.Failed)
	}
	if env.store.Exists(good.Path) {
		t.Error("корректный файл должен быть удалён")
	}
}

func TestDeleteUserCascade(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, other := uuid.New().String(), uuid.New().String()

	_, err := env.admin.DeleteUserCascade(ctx, owner)
	assertCode(t, err, CodeNotFound)

	a := env.upload(t, owner, "/u/", "a.txt", "a")
	b := env.upload(t, owner, "/u/deep/", "b.txt", "b")
	kept := env.upload(t, other, "/u/", "c.txt", "c")

	// Прогреваем кэш
	if d, err := env.files.Download(ctx, owner, IDSelector{ID: a.ID}); err == nil {
		d.File.Close()
	}

	res, err := env.admin.DeleteUserCascade(ctx, owner)
	if err != nil {
		t.Fatalf("DeleteUserCascade() ошибка: %v", err)
	}
	if len(res.Files) != 2 {
		t.Errorf("удалено записей %d, ожидалось 2", len(res.Files))
	}
	if !strings.Contains(res.Status(), owner) {
		t.Errorf("Status() = %q", res.Status())
	}

	for _, rec := range []*model.FileRecord{a, b} {
		if env.store.Exists(rec.Path) {
			t.Errorf("файл %s должен быть удалён", rec.Path)
		}
		if _, err := env.records.GetByID(ctx, rec.ID); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("запись %s должна быть удалена", rec.ID)
		}
	}
	if !env.store.Exists(kept.Path) {
		t.Error("файл другого пользователя должен остаться")
	}

	_, err = env.files.Download(ctx, owner, IDSelector{ID: a.ID})
	assertCode(t, err, CodeNotFound)

	_, err = env.admin.DeleteUserCascade(ctx, owner)
	assertCode(t, err, CodeNotFound)
}

func TestReconcile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := uuid.New().String()

	ok := env.upload(t, owner, "/", "ok.txt", "fine")
	missing := env.upload(t, owner, "/", "missing.txt", "x")
	resized := env.upload(t, owner, "/", "resized.txt", "x")

	if err := os.Remove(missing.Path); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(resized.Path, bytes.Repeat([]byte("y"), 10), 0o600); err != nil {
		t.Fatal(err)
	}
	orphan := filepath.Join(env.root, "stray", "orphan.bin")
	if _, _, err := env.store.Write(orphan, "orphan.bin", strings.NewReader("?")); err != nil {
		t.Fatal(err)
	}

	rs := NewReconcileService(env.store, env.records, slog.New(slog.NewTextHandler(io.Discard, nil)))
	report, skipped, err := rs.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce() ошибка: %v", err)
	}
	if skipped {
		t.Fatal("сверка не должна быть пропущена")
	}

	if report.FilesChecked != 3 {
		t.Errorf("FilesChecked = %d, ожидалось 3", report.FilesChecked)
	}
	want := ReconcileSummary{Ok: 1, MissingFiles: 1, SizeMismatches: 1, OrphanedFiles: 1}
	if report.Summary != want {
		t.Errorf("Summary = %+v, ожидалось %+v", report.Summary, want)
	}

	byType := make(map[string]ReconcileIssue)
	for _, issue := range report.Issues {
		byType[issue.Type] = issue
	}
	if byType[IssueMissingFile].FileID != missing.ID {
		t.Errorf("missing_file указывает на %q", byType[IssueMissingFile].FileID)
	}
	if byType[IssueSizeMismatch].FileID != resized.ID {
		t.Errorf("size_mismatch указывает на %q", byType[IssueSizeMismatch].FileID)
	}
	if byType[IssueOrphanedFile].Path != orphan {
		t.Errorf("orphaned_file указывает на %q", byType[IssueOrphanedFile].Path)
	}

	// Сверка ничего не меняет
	if !env.store.Exists(orphan) || !env.store.Exists(ok.Path) {
		t.Error("сверка не должна удалять файлы")
	}
	if rs.IsInProgress() {
		t.Error("флаг выполнения должен быть сброшен")
	}
}
