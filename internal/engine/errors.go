package engine

import "errors"

// Ошибки валидации DSL.
var (
	// ErrEmptyApp — DSL не передан.
	ErrEmptyApp = errors.New("app dsl is empty")

	// ErrEmptyNodeID — узел не имеет ID.
	ErrEmptyNodeID = errors.New("node has empty ID")

	// ErrDuplicateNodeID — несколько узлов с одинаковым ID.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrEmptyDataSourceID — источник данных не имеет ID.
	ErrEmptyDataSourceID = errors.New("data source has empty ID")

	// ErrDuplicateDataSourceID — несколько источников с одинаковым ID.
	ErrDuplicateDataSourceID = errors.New("duplicate data source ID")

	// ErrUnknownDataSourceType — неизвестный тип источника.
	ErrUnknownDataSourceType = errors.New("unknown data source type")

	// ErrMissingURL — http источник без url.
	ErrMissingURL = errors.New("http data source has no url")

	// ErrUnknownDataSource — ссылка на необъявленный источник.
	ErrUnknownDataSource = errors.New("unknown data source")

	// ErrInvalidCondField — у условия нет пути к полю.
	ErrInvalidCondField = errors.New("condition field must be [sourceId, key, ...]")

	// ErrUnknownOperator — неизвестный оператор условия.
	ErrUnknownOperator = errors.New("unknown condition operator")

	// ErrSchemaViolation — DSL не соответствует JSON Schema.
	ErrSchemaViolation = errors.New("dsl schema violation")
)

// Ошибки компиляции узлов.
var (
	// ErrNilNode — передан nil узел.
	ErrNilNode = errors.New("node is nil")

	// ErrTemplateRender — ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render failed")

	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")

	// ErrConditionCompile — CEL выражение не компилируется.
	ErrConditionCompile = errors.New("condition compile failed")

	// ErrConditionEval — ошибка вычисления CEL выражения.
	ErrConditionEval = errors.New("condition evaluation failed")

	// ErrConditionNotBool — выражение вернуло не bool.
	ErrConditionNotBool = errors.New("condition result is not bool")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	NodeID   string // ID узла, где произошла ошибка
	SourceID string // ID источника данных, если ошибка относится к нему
	Field    string // поле, вызвавшее ошибку
	Message  string // описание ошибки
	Err      error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	switch {
	case e.NodeID != "":
		return "node " + e.NodeID + ": " + e.Message
	case e.SourceID != "":
		return "data source " + e.SourceID + ": " + e.Message
	default:
		return e.Message
	}
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт ошибку валидации узла.
func NewValidationError(nodeID, field, message string, err error) *ValidationError {
	return &ValidationError{
		NodeID:  nodeID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// NewSourceValidationError создаёт ошибку валидации источника данных.
func NewSourceValidationError(sourceID, field, message string, err error) *ValidationError {
	return &ValidationError{
		SourceID: sourceID,
		Field:    field,
		Message:  message,
		Err:      err,
	}
}
