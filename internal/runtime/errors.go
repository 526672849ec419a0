package runtime

import "errors"

var (
	// ErrNoDataSources — в DSL приложения нет источников данных.
	ErrNoDataSources = errors.New("app has no data sources")

	// ErrSessionClosed — сессия уже закрыта.
	ErrSessionClosed = errors.New("session closed")
)
