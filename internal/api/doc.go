// Package api содержит HTTP API сервиса pagebind-runtime.
//
// Структура:
//   - handler.go            — Handler с DI (хранилище приложений, сессии, logger)
//   - routes.go             — регистрация маршрутов
//   - middleware.go         — middleware (request id, logging, recovery)
//   - response.go           — унифицированные JSON-ответы и обработка ошибок
//   - dto.go                — Data Transfer Objects (request/response)
//   - app_handler.go        — обработчики для /apps
//   - datasource_handler.go — дерево и источники данных живой сессии
//
// API управляет DSL приложений и изменяет данные источников открытых сессий.
package api
