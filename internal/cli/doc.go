// Package cli реализует инструмент командной строки pagebind.
//
// # Обзор
//
// Команды делятся на локальные и удалённые. Локальные работают с файлом
// DSL напрямую через движок: проверка, просмотр зависимостей и пересчёт
// дерева при изменении источников. Удалённые обращаются к API
// pagebind-runtime по HTTP.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для API pagebind-runtime. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8090")
//	apps, err := client.ListApps()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: pagebind render app.json --json | jq .
//
// ## Commands
//
//   - validate FILE — проверка DSL
//   - deps FILE — таблица зависимостей узлов от источников
//   - render FILE [--platform] [--set id=JSON]... [--active] [--fetch]
//   - app: list, create, show, update, delete, tree, sources, set, fetch
//
// Каждая команда создаётся фабричной функцией (NewRenderCmd и т.д.),
// принимающей outputFn (и clientFn для удалённых) — замыкания для
// ленивого создания Client и Output после парсинга PersistentFlags.
package cli
