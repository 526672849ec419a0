package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Pagebind/internal/domain"
	"github.com/shaiso/Pagebind/internal/tree"
)

// Допустимые типы источников данных.
var validDataSourceTypes = map[string]bool{
	domain.DataSourceTypeBase: true,
	domain.DataSourceTypeHTTP: true,
}

// ParseApp разбирает DSL из JSON, проверяет схему и валидирует.
func ParseApp(data []byte) (*domain.App, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode dsl: %w", err)
	}
	if err := ValidateSchema(doc); err != nil {
		return nil, err
	}

	var app domain.App
	if err := json.Unmarshal(data, &app); err != nil {
		return nil, fmt.Errorf("decode dsl: %w", err)
	}

	if err := Validate(&app); err != nil {
		return nil, err
	}
	return &app, nil
}

// ParseAppYAML разбирает DSL из YAML.
func ParseAppYAML(data []byte) (*domain.App, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode dsl: %w", err)
	}
	if err := ValidateSchema(doc); err != nil {
		return nil, err
	}

	var app domain.App
	if err := yaml.Unmarshal(data, &app); err != nil {
		return nil, fmt.Errorf("decode dsl: %w", err)
	}

	if err := Validate(&app); err != nil {
		return nil, err
	}
	return &app, nil
}

// ParseAppFile читает DSL из файла. Формат определяется расширением:
// .yaml/.yml — YAML, остальные — JSON.
func ParseAppFile(path string) (*domain.App, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dsl: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseAppYAML(data)
	default:
		return ParseApp(data)
	}
}

// Validate выполняет смысловую валидацию DSL.
//
// Проверяет:
// - Уникальность и непустоту ID узлов
// - Условия отображения (путь к полю, оператор, CEL выражение)
// - Уникальность ID и типы источников данных
// - Ссылки таблиц зависимостей на объявленные источники
//
// Узлы, упомянутые в таблицах зависимостей, но отсутствующие в дереве,
// ошибкой не считаются.
func Validate(app *domain.App) error {
	if app == nil {
		return ErrEmptyApp
	}

	sources, err := validateDataSources(app.DataSources)
	if err != nil {
		return err
	}

	var nodeErr error
	nodeIDs := make(map[string]bool)
	tree.Walk(app.Items, func(node, _ *domain.Node) bool {
		if nodeErr != nil {
			return false
		}
		nodeErr = validateNode(node, nodeIDs, sources)
		return nodeErr == nil
	})
	if nodeErr != nil {
		return nodeErr
	}

	if sources == nil {
		return nil
	}

	if err := validateDeps("dataSourceDeps", app.DataSourceDeps, sources); err != nil {
		return err
	}
	return validateDeps("dataSourceCondDeps", app.DataSourceCondDeps, sources)
}

// validateDataSources возвращает множество объявленных источников.
// nil — источники в DSL не объявлены.
func validateDataSources(configs []domain.DataSourceConfig) (map[string]bool, error) {
	if configs == nil {
		return nil, nil
	}

	ids := make(map[string]bool, len(configs))
	for i := range configs {
		ds := &configs[i]

		if ds.ID == "" {
			return nil, NewSourceValidationError("", "id",
				fmt.Sprintf("data source %d has empty ID", i), ErrEmptyDataSourceID)
		}
		if ids[ds.ID] {
			return nil, NewSourceValidationError(ds.ID, "id",
				fmt.Sprintf("duplicate data source ID: %s", ds.ID), ErrDuplicateDataSourceID)
		}
		ids[ds.ID] = true

		if !validDataSourceTypes[ds.Type] {
			return nil, NewSourceValidationError(ds.ID, "type",
				fmt.Sprintf("unknown data source type: %q", ds.Type), ErrUnknownDataSourceType)
		}
		if ds.Type == domain.DataSourceTypeHTTP && (ds.Options == nil || ds.Options.URL == "") {
			return nil, NewSourceValidationError(ds.ID, "options.url",
				"http data source requires url", ErrMissingURL)
		}
	}

	return ids, nil
}

func validateNode(node *domain.Node, nodeIDs, sources map[string]bool) error {
	if node.ID == "" {
		return NewValidationError("", "id", "node has empty ID", ErrEmptyNodeID)
	}
	if nodeIDs[node.ID] {
		return NewValidationError(node.ID, "id",
			fmt.Sprintf("duplicate node ID: %s", node.ID), ErrDuplicateNodeID)
	}
	nodeIDs[node.ID] = true

	for gi, group := range node.DisplayConds {
		for ci, cond := range group.Cond {
			field := fmt.Sprintf("displayConds[%d].cond[%d]", gi, ci)

			if len(cond.Field) < 2 {
				return NewValidationError(node.ID, field,
					"condition field must contain source id and key", ErrInvalidCondField)
			}
			if !IsValidOp(cond.Op) {
				return NewValidationError(node.ID, field,
					fmt.Sprintf("unknown operator: %q", cond.Op), ErrUnknownOperator)
			}
			if sources != nil && !sources[cond.Field[0]] {
				return NewValidationError(node.ID, field,
					fmt.Sprintf("unknown data source: %s", cond.Field[0]), ErrUnknownDataSource)
			}
		}
	}

	if node.Condition != "" {
		ev, err := sharedCEL()
		if err != nil {
			return err
		}
		if err := ev.Check(node.Condition); err != nil {
			return NewValidationError(node.ID, "condition", err.Error(), err)
		}
	}

	return nil
}

func validateDeps(field string, table domain.DepTable, sources map[string]bool) error {
	for _, sd := range table {
		if !sources[sd.SourceID] {
			return NewSourceValidationError(sd.SourceID, field,
				fmt.Sprintf("%s references unknown data source", field), ErrUnknownDataSource)
		}
	}
	return nil
}

var (
	celOnce sync.Once
	celEval *CELEvaluator
	celErr  error
)

// sharedCEL — окружение CEL для валидации выражений.
func sharedCEL() (*CELEvaluator, error) {
	celOnce.Do(func() {
		celEval, celErr = NewCELEvaluator()
	})
	return celEval, celErr
}
