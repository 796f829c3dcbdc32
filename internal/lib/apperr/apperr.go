// Package apperr описывает классы ошибок бизнес-логики и их перевод в HTTP-статусы.
//
// Класс ошибки проверяется через errors.Is, текст для пользователя берётся из Error().
package apperr

import (
	"errors"
	"net/http"
)

// Классы ошибок.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrIntegrity    = errors.New("integrity fault")
	ErrUnexpected   = errors.New("unexpected error")
)

// Error ошибка с сообщением для пользователя.
type Error struct {
	Kind    error
	Message string
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap отдаёт класс ошибки и исходную причину.
func (e *Error) Unwrap() []error {
	if e.cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.cause}
}

// Unauthorized создаёт ошибку доступа.
func Unauthorized(msg string) error {
	return &Error{Kind: ErrUnauthorized, Message: msg}
}

// NotFound создаёт ошибку отсутствующей сущности.
func NotFound(msg string) error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

// Validation создаёт ошибку валидации входных данных.
func Validation(msg string) error {
	return &Error{Kind: ErrValidation, Message: msg}
}

// Integrity создаёт ошибку нарушенной связи между записями.
func Integrity(msg string) error {
	return &Error{Kind: ErrIntegrity, Message: msg}
}

// Wrap заменяет сообщение ошибки на msg. Класс типизированной ошибки
// сохраняется, любая другая ошибка становится ErrUnexpected.
func Wrap(msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindOf(err), Message: msg, cause: err}
}

// WrapDetail как Wrap, но дописывает текст причины: "msg: cause".
func WrapDetail(msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindOf(err), Message: msg + ": " + err.Error(), cause: err}
}

// KindOf возвращает класс ошибки.
func KindOf(err error) error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ErrUnexpected
}

// HTTPStatus переводит класс ошибки в HTTP-статус.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrIntegrity):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message возвращает текст для ответа клиенту. Детали непредвиденных
// ошибок наружу не отдаются.
func Message(err error, fallback string) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return fallback
}
