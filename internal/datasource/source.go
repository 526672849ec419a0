package datasource

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/shaiso/Pagebind/internal/domain"
)

// DataSource — источник данных приложения.
type DataSource interface {
	// ID возвращает идентификатор источника.
	ID() string

	// Type возвращает тип источника ("base", "http").
	Type() string

	// Config возвращает конфигурацию из DSL.
	Config() domain.DataSourceConfig

	// Data возвращает текущие данные. Возвращённое значение нельзя изменять.
	Data() any

	// SetData заменяет данные целиком.
	SetData(data any)

	// SetValue записывает значение по пути внутри данных.
	SetValue(path []string, value any) error
}

// BaseSource — источник с локальным состоянием.
//
// Начальные данные строятся из описания полей. SetData и SetValue
// не изменяют ранее отданные значения: данные заменяются копией.
type BaseSource struct {
	cfg domain.DataSourceConfig

	mu   sync.RWMutex
	data any
}

// NewBaseSource создаёт источник со значениями по умолчанию.
func NewBaseSource(cfg domain.DataSourceConfig) *BaseSource {
	return &BaseSource{
		cfg:  cfg,
		data: DefaultData(cfg.Fields),
	}
}

// ID возвращает идентификатор источника.
func (s *BaseSource) ID() string { return s.cfg.ID }

// Type возвращает тип источника.
func (s *BaseSource) Type() string { return s.cfg.Type }

// Config возвращает конфигурацию источника.
func (s *BaseSource) Config() domain.DataSourceConfig { return s.cfg }

// Data возвращает текущие данные.
func (s *BaseSource) Data() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// SetData заменяет данные копией data.
func (s *BaseSource) SetData(data any) {
	cp := domain.CloneValue(data)

	s.mu.Lock()
	s.data = cp
	s.mu.Unlock()
}

// SetValue записывает value по пути.
// Пустой путь эквивалентен SetData.
func (s *BaseSource) SetValue(path []string, value any) error {
	if len(path) == 0 {
		s.SetData(value)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := setPath(domain.CloneValue(s.data), path, domain.CloneValue(value))
	if err != nil {
		return err
	}
	s.data = updated
	return nil
}

// setPath записывает value в root по пути и возвращает новый root.
// Недостающие промежуточные объекты создаются.
func setPath(root any, path []string, value any) (any, error) {
	if len(path) == 0 {
		return value, nil
	}

	key := path[0]
	switch node := root.(type) {
	case nil:
		child, err := setPath(nil, path[1:], value)
		if err != nil {
			return nil, err
		}
		return map[string]any{key: child}, nil

	case map[string]any:
		child, err := setPath(node[key], path[1:], value)
		if err != nil {
			return nil, err
		}
		node[key] = child
		return node, nil

	case []any:
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(node) {
			return nil, fmt.Errorf("%w: index %q out of range", ErrInvalidPath, key)
		}
		child, err := setPath(node[idx], path[1:], value)
		if err != nil {
			return nil, err
		}
		node[idx] = child
		return node, nil

	default:
		return nil, fmt.Errorf("%w: cannot set %q on %T", ErrInvalidPath, key, root)
	}
}

// DefaultData строит начальные данные источника из описания полей.
//
// Значение по умолчанию поля берётся из defaultValue, иначе по типу:
// string → "", number → 0, boolean → false, array → [],
// object → объект из вложенных полей, any и неуказанный тип → nil.
func DefaultData(fields []domain.Field) map[string]any {
	data := make(map[string]any, len(fields))
	for _, f := range fields {
		data[f.Name] = defaultValue(f)
	}
	return data
}

func defaultValue(f domain.Field) any {
	if f.DefaultValue != nil {
		return domain.CloneValue(f.DefaultValue)
	}

	switch f.Type {
	case domain.FieldTypeString:
		return ""
	case domain.FieldTypeNumber:
		return float64(0)
	case domain.FieldTypeBoolean:
		return false
	case domain.FieldTypeArray:
		return []any{}
	case domain.FieldTypeObject:
		return DefaultData(f.Fields)
	default:
		return nil
	}
}
