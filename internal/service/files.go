// files.go — FileService: загрузка, список, скачивание и удаление файлов.
//
// Жизненный цикл файла: Absent → Stored → Absent. Запись о файле
// создаётся после записи байт во временный файл и до его перемещения
// на итоговый путь; при удалении сначала удаляется запись, затем файл
// с очисткой опустевших директорий.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/bigkaa/filedesk/internal/domain/model"
	"github.com/bigkaa/filedesk/internal/repository"
	"github.com/bigkaa/filedesk/internal/storage/filestore"
	"github.com/bigkaa/filedesk/internal/storage/pathresolver"
)

// Статусы массового удаления.
const (
	StatusNothingToDelete = "You do not have any files to delete!"
	StatusAllDeleted      = "All files were deleted!"
)

// FileService — операции пользователя над своими файлами.
type FileService struct {
	resolver *pathresolver.Resolver
	guard    *NameGuard
	store    *filestore.FileStore
	records  repository.FileRecordRepository
	users    repository.UserRepository
	cache    *RecordCache
	logger   *slog.Logger
}

// NewFileService создаёт FileService.
func NewFileService(
	resolver *pathresolver.Resolver,
	guard *NameGuard,
	store *filestore.FileStore,
	records repository.FileRecordRepository,
	users repository.UserRepository,
	cache *RecordCache,
	logger *slog.Logger,
) *FileService {
	return &FileService{
		resolver: resolver,
		guard:    guard,
		store:    store,
		records:  records,
		users:    users,
		cache:    cache,
		logger:   logger.With(slog.String("component", "files")),
	}
}

// UploadParams — параметры загрузки.
type UploadParams struct {
	// OwnerID — UUID аутентифицированного пользователя
	OwnerID string
	// Path — логический путь (директория или путь файла), по умолчанию "/"
	Path string
	// Filename — исходное имя загружаемого файла
	Filename string
	// Reader — содержимое файла
	Reader io.Reader
}

// Upload сохраняет файл и создаёт запись о нём.
//
// Шаги: разрешение пути → резервирование имени → регистрация владельца →
// запись во временный файл → создание записи → перемещение файла на место.
// Если создание записи не удалось, удаляется только временный файл;
// если не удалось перемещение, удаляется и запись.
func (s *FileService) Upload(ctx context.Context, p UploadParams) (rec *model.FileRecord, err error) {
	defer func() { observe("upload", err) }()

	if p.Filename == "" {
		return nil, newError(CodeValidation, "не указано имя файла", nil)
	}
	if utf8.RuneCountInString(p.Filename) > model.MaxNameLength {
		return nil, newError(CodeValidation,
			fmt.Sprintf("имя файла длиннее %d символов", model.MaxNameLength), nil)
	}
	if p.Path == "" {
		p.Path = "/"
	}

	target, err := s.resolver.Target(p.Path, p.Filename)
	if err != nil {
		return nil, newError(CodeInvalidPath, fmt.Sprintf("некорректный путь %q", p.Path), err)
	}

	release, err := s.guard.Reserve(ctx, target.Name)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.users.EnsureExists(ctx, p.OwnerID); err != nil {
		return nil, newError(CodeInternal, "ошибка регистрации пользователя", err)
	}

	staged, err := s.store.Stage(target.Path, p.Filename, p.Reader)
	if err != nil {
		return nil, newError(CodeInternal, "ошибка записи файла", err)
	}
	written := staged.Size

	rec = &model.FileRecord{
		ID:             uuid.New().String(),
		Name:           filepath.Base(staged.FullPath),
		Path:           staged.FullPath,
		Size:           written,
		CreatedAt:      time.Now().UTC(),
		IsDownloadable: true,
		OwnerID:        p.OwnerID,
	}

	// Имя занимается записью до того, как байты попадут на итоговый путь:
	// проигравший гонку другого процесса удаляет только свой временный файл.
	if err := s.records.Create(ctx, rec); err != nil {
		s.discard(staged)
		if errors.Is(err, repository.ErrConflict) {
			return nil, newError(CodeNameConflict, fmt.Sprintf("файл с именем %q уже существует", rec.Name), err)
		}
		return nil, newError(CodeInternal, "ошибка создания записи файла", err)
	}

	if err := s.store.Commit(staged); err != nil {
		if delErr := s.records.Delete(context.WithoutCancel(ctx), rec.ID); delErr != nil {
			s.logger.Error("Не удалось удалить запись после ошибки перемещения файла",
				slog.String("file_id", rec.ID),
				slog.String("error", delErr.Error()),
			)
		}
		s.discard(staged)
		return nil, newError(CodeInternal, "ошибка записи файла", err)
	}

	storedBytesTotal.Add(float64(written))
	s.logger.Info("Файл загружен",
		slog.String("file_id", rec.ID),
		slog.String("name", rec.Name),
		slog.String("owner_id", rec.OwnerID),
		slog.String("size", humanize.Bytes(uint64(written))),
	)

	return rec, nil
}

// discard удаляет временный файл незавершённой загрузки.
func (s *FileService) discard(st *filestore.Staged) {
	if err := s.store.Discard(st); err != nil {
		s.logger.Error("Не удалось удалить временный файл загрузки",
			slog.String("path", st.FullPath),
			slog.String("error", err.Error()),
		)
	}
}

// List возвращает файлы владельца. Отсутствие файлов — пустой список.
func (s *FileService) List(ctx context.Context, ownerID string) (files []*model.FileRecord, err error) {
	defer func() { observe("list", err) }()

	files, err = s.records.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, newError(CodeInternal, "ошибка получения списка файлов", err)
	}
	if files == nil {
		files = []*model.FileRecord{}
	}
	return files, nil
}

// Selector — способ указать файл для скачивания: PathSelector или IDSelector.
type Selector interface {
	selector()
}

// PathSelector — файл по пути на диске (корень хранилища можно опустить).
type PathSelector struct {
	Path string
}

// IDSelector — файл по UUID записи.
type IDSelector struct {
	ID string
}

func (PathSelector) selector() {}
func (IDSelector) selector() {}

// Download — открытый файл для отдачи клиенту.
// Вызывающий код обязан закрыть File.
type Download struct {
	Record      *model.FileRecord
	File        afero.File
	Filename    string
	ContentType string
	Size        int64
	ModTime     time.Time
}

// Download открывает файл владельца для скачивания.
//
// Политика доступа: скачивать может только владелец, и только если
// у записи IsDownloadable = true. Иначе — FORBIDDEN.
func (s *FileService) Download(ctx context.Context, ownerID string, sel Selector) (d *Download, err error) {
	defer func() { observe("download", err) }()

	var rec *model.FileRecord
	switch v := sel.(type) {
	case PathSelector:
		rec, err = s.recordByPath(ctx, v.Path)
	case IDSelector:
		rec, err = s.recordByID(ctx, v.ID)
	default:
		return nil, newError(CodeMissingSelector, "укажите path или file_id", nil)
	}
	if err != nil {
		return nil, err
	}

	if !rec.OwnedBy(ownerID) {
		return nil, newError(CodeForbidden, "файл принадлежит другому пользователю", nil)
	}
	if !rec.IsDownloadable {
		return nil, newError(CodeForbidden, fmt.Sprintf("скачивание файла %q запрещено", rec.Name), nil)
	}

	f, err := s.store.Open(rec.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("Файл из записи отсутствует на диске",
				slog.String("file_id", rec.ID),
				slog.String("path", rec.Path),
			)
			return nil, newError(CodeNotFound, fmt.Sprintf("файл %q отсутствует на диске", rec.Name), err)
		}
		return nil, newError(CodeInternal, "ошибка открытия файла", err)
	}

	// Запись могла быть удалена, а путь занят новым файлом, пока мы её
	// читали (или она взята из кэша): открытый файл отдаём, только если
	// запись всё ещё есть в хранилище.
	if err := s.confirmRecord(ctx, rec); err != nil {
		f.Close()
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, newError(CodeInternal, "ошибка чтения информации о файле", err)
	}

	contentType := "application/octet-stream"
	if mt, detectErr := mimetype.DetectReader(f); detectErr == nil {
		contentType = mt.String()
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, newError(CodeInternal, "ошибка чтения файла", err)
	}

	return &Download{
		Record:      rec,
		File:        f,
		Filename:    rec.Name,
		ContentType: contentType,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
	}, nil
}

// recordByPath — запись по пути скачивания.
func (s *FileService) recordByPath(ctx context.Context, path string) (*model.FileRecord, error) {
	fullPath, err := s.resolver.Validate(path)
	if err != nil {
		return nil, newError(CodeInvalidPath, fmt.Sprintf("некорректный путь %q", path), err)
	}

	rec, err := s.records.GetByPath(ctx, fullPath)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(CodeNotFound, fmt.Sprintf("файл %q не найден", path), nil)
		}
		return nil, newError(CodeInternal, "ошибка получения записи файла", err)
	}
	return rec, nil
}

// recordByID — запись по ID через кэш.
func (s *FileService) recordByID(ctx context.Context, id string) (*model.FileRecord, error) {
	if rec, ok := s.cache.Get(id); ok {
		return rec, nil
	}

	rec, err := s.lookupID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(rec)
	return rec, nil
}

// confirmRecord проверяет по хранилищу метаданных, что запись rec
// существует и указывает на тот же файл. Иначе запись убирается из кэша
// и возвращается NOT_FOUND.
func (s *FileService) confirmRecord(ctx context.Context, rec *model.FileRecord) error {
	cur, err := s.records.GetByID(ctx, rec.ID)
	switch {
	case err == nil && cur.Path == rec.Path && cur.OwnerID == rec.OwnerID:
		return nil
	case err == nil, errors.Is(err, repository.ErrNotFound):
		s.cache.Delete(rec.ID)
		return newError(CodeNotFound, fmt.Sprintf("файл %q не найден", rec.ID), nil)
	default:
		return newError(CodeInternal, "ошибка получения записи файла", err)
	}
}

// lookupID — запись по ID из хранилища метаданных. Некорректный UUID — NOT_FOUND.
func (s *FileService) lookupID(ctx context.Context, id string) (*model.FileRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, newError(CodeNotFound, fmt.Sprintf("файл %q не найден", id), nil)
	}

	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(CodeNotFound, fmt.Sprintf("файл %q не найден", id), nil)
		}
		return nil, newError(CodeInternal, "ошибка получения записи файла", err)
	}
	return rec, nil
}

// DeleteOne удаляет файл владельца: сначала запись, затем файл на диске.
// Если запись удалена, а файл нет — INCONSISTENT.
func (s *FileService) DeleteOne(ctx context.Context, ownerID, fileID string) (rec *model.FileRecord, err error) {
	defer func() { observe("delete", err) }()

	rec, err = s.lookupID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !rec.OwnedBy(ownerID) {
		return nil, newError(CodeForbidden, "файл принадлежит другому пользователю", nil)
	}

	if err := s.removeRecord(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.store.Delete(rec.Path); err != nil {
		s.logger.Error("Запись удалена, файл на диске остался",
			slog.String("file_id", rec.ID),
			slog.String("path", rec.Path),
			slog.String("error", err.Error()),
		)
		return rec, newError(CodeInconsistent, fmt.Sprintf("запись файла %q удалена, но файл остался на диске", rec.Name), err)
	}

	s.logger.Info("Файл удалён",
		slog.String("file_id", rec.ID),
		slog.String("name", rec.Name),
		slog.String("owner_id", ownerID),
	)
	return rec, nil
}

// DeleteFailure — файл, который не удалось удалить полностью.
type DeleteFailure struct {
	Record *model.FileRecord
	Err    error
}

// DeleteAllResult — итог массового удаления.
type DeleteAllResult struct {
	// Status — StatusNothingToDelete или StatusAllDeleted
	Status string
	// Deleted — полностью удалённые файлы
	Deleted []*model.FileRecord
	// Failed — файлы, удаление которых не завершилось
	Failed []DeleteFailure
	// FreedBytes — суммарный размер удалённых файлов
	FreedBytes int64
}

// DeleteAll удаляет все файлы владельца по одному: запись, затем файл.
// Ошибки по отдельным файлам не прерывают обход. Если хотя бы один файл
// не удалён полностью, возвращается результат вместе с INCONSISTENT.
func (s *FileService) DeleteAll(ctx context.Context, ownerID string) (res *DeleteAllResult, err error) {
	defer func() { observe("delete_all", err) }()

	files, err := s.records.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, newError(CodeInternal, "ошибка получения списка файлов", err)
	}
	if len(files) == 0 {
		return &DeleteAllResult{Status: StatusNothingToDelete}, nil
	}

	res = &DeleteAllResult{Status: StatusAllDeleted}
	for _, rec := range files {
		if err := s.removeRecord(ctx, rec); err != nil {
			if errors.Is(err, ErrNotFound) {
				// Удалена параллельным запросом, файл — его забота
				continue
			}
			res.Failed = append(res.Failed, DeleteFailure{Record: rec, Err: err})
			continue
		}
		if err := s.store.Delete(rec.Path); err != nil {
			res.Failed = append(res.Failed, DeleteFailure{Record: rec, Err: err})
			continue
		}
		res.Deleted = append(res.Deleted, rec)
		res.FreedBytes += rec.Size
	}

	s.logger.Info("Файлы пользователя удалены",
		slog.String("owner_id", ownerID),
		slog.Int("deleted", len(res.Deleted)),
		slog.Int("failed", len(res.Failed)),
		slog.String("freed", humanize.Bytes(uint64(res.FreedBytes))),
	)

	if len(res.Failed) > 0 {
		return res, newError(CodeInconsistent, failureMessage(res.Failed), nil)
	}
	return res, nil
}

// removeRecord удаляет запись, затем её копию в кэше.
func (s *FileService) removeRecord(ctx context.Context, rec *model.FileRecord) error {
	err := s.records.Delete(ctx, rec.ID)
	s.cache.Delete(rec.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return newError(CodeNotFound, fmt.Sprintf("файл %q не найден", rec.ID), nil)
		}
		return newError(CodeInternal, "ошибка удаления записи файла", err)
	}
	return nil
}

// failureMessage перечисляет имена файлов с незавершённым удалением.
func failureMessage(failed []DeleteFailure) string {
	names := make([]string, 0, len(failed))
	for _, f := range failed {
		names = append(names, f.Record.Name)
	}
	return fmt.Sprintf("не удалось полностью удалить %d файл(ов): %s", len(failed), strings.Join(names, ", "))
}
