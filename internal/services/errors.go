package services

import (
	"errors"
	"fmt"
)

// Ошибки сервисов.
var (
	// ErrInvalidArgs — аргументы метода сервиса не подходят.
	ErrInvalidArgs = errors.New("invalid service arguments")

	// ErrCacheMiss — ключ не найден в кеше.
	ErrCacheMiss = errors.New("cache miss")

	// ErrNoPublisher — сервис publish создан без брокера.
	ErrNoPublisher = errors.New("no publisher configured")
)

// HTTPError — ответ с кодом >= 400.
//
// Response содержит распарсенный ответ (status_code, headers, body),
// чтобы onFail-ветка могла его разобрать.
type HTTPError struct {
	StatusCode int
	Status     string
	Response   map[string]any
}

// Error реализует интерфейс error.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// IsHTTPError проверяет, является ли ошибка (или её причина) HTTPError.
func IsHTTPError(err error) bool {
	var he *HTTPError
	return errors.As(err, &he)
}
