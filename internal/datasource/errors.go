package datasource

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceNotFound — источник с указанным ID не объявлен.
	ErrSourceNotFound = errors.New("data source not found")

	// ErrUnknownType — неизвестный тип источника.
	ErrUnknownType = errors.New("unknown data source type")

	// ErrNotFetchable — источник не поддерживает загрузку.
	ErrNotFetchable = errors.New("data source is not fetchable")

	// ErrInvalidPath — путь не может быть применён к данным источника.
	ErrInvalidPath = errors.New("invalid value path")

	// ErrInvalidRefresh — некорректное cron выражение обновления.
	ErrInvalidRefresh = errors.New("invalid refresh expression")

	// ErrFetchFailed — запрос http источника завершился ошибкой.
	ErrFetchFailed = errors.New("data source fetch failed")
)

// HTTPError — ответ http источника с кодом ошибки.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

// Error реализует интерфейс error.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// Unwrap позволяет проверять ошибку через errors.Is(err, ErrFetchFailed).
func (e *HTTPError) Unwrap() error {
	return ErrFetchFailed
}
