// files.go — обработчики файловых операций пользователя:
// список, загрузка, скачивание, удаление одного и всех файлов.
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/bigkaa/filedesk/internal/api/errors"
	"github.com/bigkaa/filedesk/internal/domain/model"
	"github.com/bigkaa/filedesk/internal/service"
)

// multipartMemory — часть формы, которая держится в памяти;
// остальное multipart складывает во временные файлы.
const multipartMemory = 32 << 20

// multipartOverhead — запас на заголовки и поля формы сверх лимита файла.
const multipartOverhead = 1 << 20

// uploadForm — поля multipart-формы загрузки.
type uploadForm struct {
	Path     string `validate:"max=4096"`
	Filename string `validate:"required,max=100"`
}

// listResponse — ответ GET /api/v1/files.
type listResponse struct {
	AccountID string              `json:"account_id"`
	Files     []*model.FileRecord `json:"files"`
}

// FilesHandler — обработчики /api/v1/files.
type FilesHandler struct {
	files       *service.FileService
	validate    *validator.Validate
	maxFileSize int64
	logger      *slog.Logger
}

// NewFilesHandler создаёт обработчик файловых операций.
// maxFileSize — лимит размера загружаемого файла в байтах.
func NewFilesHandler(files *service.FileService, maxFileSize int64, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{
		files:       files,
		validate:    validator.New(),
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "files_handler")),
	}
}

// ListFiles обрабатывает GET /api/v1/files.
func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	subject := requireSubject(w, r)
	if subject == "" {
		return
	}

	files, err := h.files.List(r.Context(), subject)
	if err != nil {
		apierrors.FromServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{AccountID: subject, Files: files})
}

// UploadFile обрабатывает POST /api/v1/files/upload.
// Multipart form: file (обязательно), path (опционально, по умолчанию "/").
func (h *FilesHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	subject := requireSubject(w, r)
	if subject == "" {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.FileTooLarge(w, fmt.Sprintf("Размер файла превышает лимит %d байт", h.maxFileSize))
			return
		}
		apierrors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	if header.Size > h.maxFileSize {
		apierrors.FileTooLarge(w, fmt.Sprintf("Размер файла превышает лимит %d байт", h.maxFileSize))
		return
	}

	form := uploadForm{Path: r.FormValue("path"), Filename: header.Filename}
	if err := h.validate.Struct(form); err != nil {
		apierrors.ValidationError(w, formatValidationError(err))
		return
	}

	rec, err := h.files.Upload(r.Context(), service.UploadParams{
		OwnerID:  subject,
		Path:     form.Path,
		Filename: form.Filename,
		Reader:   file,
	})
	if err != nil {
		apierrors.FromServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// DownloadFile обрабатывает GET /api/v1/files/download?path=…|file_id=….
// Если заданы оба параметра, используется path.
// Range и If-Modified-Since обрабатывает http.ServeContent.
func (h *FilesHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	subject := requireSubject(w, r)
	if subject == "" {
		return
	}

	sel, err := selectorFromQuery(r)
	if err != nil {
		apierrors.NotFound(w, fmt.Sprintf("Файл %q не найден", r.URL.Query().Get("file_id")))
		return
	}

	d, err := h.files.Download(r.Context(), subject, sel)
	if err != nil {
		apierrors.FromServiceError(w, err)
		return
	}
	defer d.File.Close()

	w.Header().Set("Content-Type", d.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.Filename}))
	http.ServeContent(w, r, d.Filename, d.ModTime, d.File)
}

// DeleteFile обрабатывает DELETE /api/v1/files/{file_id}.
func (h *FilesHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	subject := requireSubject(w, r)
	if subject == "" {
		return
	}

	fileID, err := bindPathUUID(r, "file_id")
	if err != nil {
		apierrors.NotFound(w, fmt.Sprintf("Файл %q не найден", chi.URLParam(r, "file_id")))
		return
	}

	rec, err := h.files.DeleteOne(r.Context(), subject, fileID.String())
	if err != nil {
		apierrors.FromServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: fmt.Sprintf("File %s was deleted!", rec.Name)})
}

// DeleteAllFiles обрабатывает DELETE /api/v1/files.
func (h *FilesHandler) DeleteAllFiles(w http.ResponseWriter, r *http.Request) {
	subject := requireSubject(w, r)
	if subject == "" {
		return
	}

	res, err := h.files.DeleteAll(r.Context(), subject)
	if err != nil {
		apierrors.FromServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: res.Status})
}

// formatValidationError превращает ошибку validator в сообщение для клиента.
func formatValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Sprintf("Поле %s не прошло проверку '%s'", e.Field(), e.Tag())
	}
	return err.Error()
}
