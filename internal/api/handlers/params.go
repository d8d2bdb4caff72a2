// params.go — разбор параметров запроса (query и path) через oapi-codegen runtime.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/bigkaa/filedesk/internal/service"
)

// downloadParams — query-параметры GET /api/v1/files/download.
type downloadParams struct {
	Path   *string
	FileID *openapi_types.UUID
}

// bindPathUUID разбирает UUID из параметра маршрута name.
func bindPathUUID(r *http.Request, name string) (openapi_types.UUID, error) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	return id, err
}

// selectorFromQuery выбирает способ поиска файла по параметрам запроса.
// path имеет приоритет над file_id; без параметров возвращает nil,
// и сервис ответит MISSING_SELECTOR. Ошибка — file_id не является UUID.
func selectorFromQuery(r *http.Request) (service.Selector, error) {
	var params downloadParams
	q := r.URL.Query()

	if err := runtime.BindQueryParameter("form", true, false, "path", q, &params.Path); err != nil {
		return nil, err
	}
	if params.Path != nil && *params.Path != "" {
		return service.PathSelector{Path: *params.Path}, nil
	}

	// Пустой file_id равносилен его отсутствию
	if q.Get("file_id") == "" {
		return nil, nil
	}
	if err := runtime.BindQueryParameter("form", true, false, "file_id", q, &params.FileID); err != nil {
		return nil, err
	}
	return service.IDSelector{ID: params.FileID.String()}, nil
}
