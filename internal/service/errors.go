// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "fmt"

// Code — стабильный код ошибки, по которому HTTP-слой выбирает статус.
type Code string

// Коды ошибок сервисного слоя.
const (
	CodeInvalidPath     Code = "INVALID_PATH"
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeNameConflict    Code = "NAME_CONFLICT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeForbidden       Code = "FORBIDDEN"
	CodeMissingSelector Code = "MISSING_SELECTOR"
	CodeInconsistent    Code = "INCONSISTENT"
	CodeInternal        Code = "INTERNAL_ERROR"
)

// Error — ошибка операции с кодом и сообщением для клиента.
// Err — исходная причина (может быть nil).
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по коду: errors.Is(err, service.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Эталонные ошибки для errors.Is.
var (
	ErrInvalidPath     = &Error{Code: CodeInvalidPath, Message: "некорректный путь"}
	ErrValidation      = &Error{Code: CodeValidation, Message: "ошибка валидации"}
	ErrNameConflict    = &Error{Code: CodeNameConflict, Message: "имя файла уже занято"}
	ErrNotFound        = &Error{Code: CodeNotFound, Message: "ресурс не найден"}
	ErrForbidden       = &Error{Code: CodeForbidden, Message: "доступ запрещён"}
	ErrMissingSelector = &Error{Code: CodeMissingSelector, Message: "не указан путь или идентификатор файла"}
	ErrInconsistent    = &Error{Code: CodeInconsistent, Message: "метаданные и диск рассогласованы"}
	ErrInternal        = &Error{Code: CodeInternal, Message: "внутренняя ошибка"}
)

// newError создаёт ошибку с кодом.
func newError(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}
