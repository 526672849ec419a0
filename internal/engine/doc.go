// Package engine содержит компиляторы DSL страницы.
//
// Включает:
//   - template.go   — рендеринг Go templates ({{ .DS.user.name }})
//   - bindings.go   — вычисление привязанных свойств узла
//   - conditions.go — условия отображения (displayConds)
//   - cel.go        — CEL выражения видимости (node.condition)
//   - parser.go     — парсинг и валидация DSL из JSON/YAML
//   - schema.go     — JSON Schema DSL
//
// Engine ничего не знает об источниках данных: значения приходят
// готовым Context, который собирает datasource.Manager.
package engine
