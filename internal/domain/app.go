package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// App — DSL приложения: дерево страниц плюс источники данных
// и таблицы зависимостей.
type App struct {
	// ID — идентификатор приложения в DSL.
	ID string `json:"id" yaml:"id"`

	// Type — тип корня, обычно "app".
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	// Name — имя приложения.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Items — корневая коллекция узлов (страницы).
	Items []*Node `json:"items" yaml:"items"`

	// DataSources — конфигурации источников данных.
	// nil — источники не объявлены, менеджер не создаётся.
	DataSources []DataSourceConfig `json:"dataSources,omitempty" yaml:"dataSources,omitempty"`

	// DataSourceDeps — узлы, свойства которых привязаны к источникам.
	DataSourceDeps DepTable `json:"dataSourceDeps,omitempty" yaml:"dataSourceDeps,omitempty"`

	// DataSourceCondDeps — узлы, видимость которых зависит от источников.
	DataSourceCondDeps DepTable `json:"dataSourceCondDeps,omitempty" yaml:"dataSourceCondDeps,omitempty"`
}

// Типы источников данных.
const (
	DataSourceTypeBase = "base"
	DataSourceTypeHTTP = "http"
)

// DataSourceConfig — конфигурация источника данных.
type DataSourceConfig struct {
	// ID — уникальный идентификатор источника (используется в шаблонах и deps).
	ID string `json:"id" yaml:"id"`

	// Type — "base" (локальное состояние) или "http".
	Type string `json:"type" yaml:"type"`

	// Title — отображаемое имя.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Fields — описание полей и значения по умолчанию.
	Fields []Field `json:"fields,omitempty" yaml:"fields,omitempty"`

	// Options — параметры HTTP запроса (только для type="http").
	Options *HTTPRequest `json:"options,omitempty" yaml:"options,omitempty"`

	// AutoFetch — выполнить запрос при инициализации менеджера.
	AutoFetch bool `json:"autoFetch,omitempty" yaml:"autoFetch,omitempty"`

	// Refresh — cron выражение периодического обновления (только для http).
	Refresh string `json:"refresh,omitempty" yaml:"refresh,omitempty"`

	// DataPath — путь к данным в ответе, например "data.user".
	DataPath string `json:"dataPath,omitempty" yaml:"dataPath,omitempty"`
}

// Типы полей источника.
const (
	FieldTypeString  = "string"
	FieldTypeNumber  = "number"
	FieldTypeBoolean = "boolean"
	FieldTypeObject  = "object"
	FieldTypeArray   = "array"
	FieldTypeAny     = "any"
)

// Field — поле источника данных.
type Field struct {
	Name         string  `json:"name" yaml:"name"`
	Type         string  `json:"type,omitempty" yaml:"type,omitempty"`
	Title        string  `json:"title,omitempty" yaml:"title,omitempty"`
	DefaultValue any     `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	Fields       []Field `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// HTTPRequest — описание запроса HTTP источника.
type HTTPRequest struct {
	URL     string            `json:"url" yaml:"url"`
	Method  string            `json:"method,omitempty" yaml:"method,omitempty"`
	Params  map[string]any    `json:"params,omitempty" yaml:"params,omitempty"`
	Data    any               `json:"data,omitempty" yaml:"data,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// DataSource возвращает конфигурацию источника по ID.
func (a *App) DataSource(id string) (DataSourceConfig, bool) {
	for _, ds := range a.DataSources {
		if ds.ID == id {
			return ds, true
		}
	}
	return DataSourceConfig{}, false
}

// Платформы исполнения.
const (
	// PlatformEditor — режим редактора: условия не вычисляются при
	// инициализации, все узлы остаются видимыми для авторинга.
	PlatformEditor = "editor"

	// PlatformPreview — предпросмотр в редакторе.
	PlatformPreview = "preview"

	// PlatformRuntime — боевой рендеринг.
	PlatformRuntime = "runtime"
)

// IsEditor проверяет, является ли платформа режимом редактора.
func IsEditor(platform string) bool {
	return platform == PlatformEditor
}

// AppRecord — приложение, сохранённое в БД.
type AppRecord struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// Name — уникальное имя приложения.
	Name string `json:"name"`

	// DSL — исходный DSL в JSON (колонка JSONB).
	DSL json.RawMessage `json:"dsl"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления DSL.
	UpdatedAt time.Time `json:"updated_at"`
}
