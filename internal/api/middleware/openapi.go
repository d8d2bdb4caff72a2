// openapi.go — проверка запросов по OpenAPI-описанию API.
package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	apierrors "github.com/bigkaa/filedesk/internal/api/errors"
)

// RequestValidator возвращает middleware, проверяющий параметры запросов
// к описанным в doc маршрутам. Тело запроса не проверяется: загрузка
// читается потоком. Аутентификацию выполняет JWTAuth, здесь она пропускается.
// Запросы к неописанным маршрутам передаются дальше без проверки.
func RequestValidator(doc *openapi3.T, logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("ошибка построения маршрутов OpenAPI: %w", err)
	}
	log := logger.With(slog.String("component", "openapi"))

	opts := &openapi3filter.Options{
		ExcludeRequestBody: true,
		AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := router.FindRoute(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options:    opts,
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				msg := err.Error()
				var reqErr *openapi3filter.RequestError
				if errors.As(err, &reqErr) && reqErr.Parameter != nil {
					msg = fmt.Sprintf("Параметр %s: %s", reqErr.Parameter.Name, reqErr.Reason)
					if reqErr.Reason == "" && reqErr.Err != nil {
						msg = fmt.Sprintf("Параметр %s: %s", reqErr.Parameter.Name, reqErr.Err.Error())
					}
				}
				log.Debug("Запрос не прошёл проверку OpenAPI",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				apierrors.ValidationError(w, msg)
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}
