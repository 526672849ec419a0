package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"text/template"
)

// Context — контекст для рендеринга шаблонов.
//
// Используется в Go templates для доступа к значениям источников данных:
//   - {{ .DS.user.name }}
//   - {{ index .DS.cart.items 0 }}
//   - {{ .Platform }}
type Context struct {
	// DS — текущие значения источников (sourceID → данные).
	DS map[string]any `json:"ds"`

	// Platform — платформа исполнения ("editor", "preview", ...).
	Platform string `json:"platform,omitempty"`
}

// NewContext создаёт контекст со значениями источников.
func NewContext(values map[string]any) *Context {
	if values == nil {
		values = make(map[string]any)
	}
	return &Context{DS: values}
}

// Source возвращает данные источника.
func (c *Context) Source(sourceID string) (any, bool) {
	v, ok := c.DS[sourceID]
	return v, ok
}

// Lookup возвращает значение по пути [sourceID, key, ...].
// Числовые сегменты пути индексируют массивы.
func (c *Context) Lookup(path []string) (any, bool) {
	if len(path) == 0 {
		return nil, false
	}
	cur, ok := c.DS[path[0]]
	if !ok {
		return nil, false
	}
	return LookupPath(cur, path[1:])
}

// LookupPath проходит по вложенным map/slice значениям.
func LookupPath(value any, path []string) (any, bool) {
	cur := value
	for _, key := range path {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[key]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := parseIndex(key)
			if err != nil || idx >= len(v) {
				return nil, false
			}
			cur = v[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

func parseIndex(s string) (int, error) {
	idx, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if idx < 0 {
		return 0, fmt.Errorf("negative index %d", idx)
	}
	return idx, nil
}

// templateFuncs — дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	// json — сериализует значение в JSON строку
	"json": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return string(b)
	},

	// default — возвращает значение по умолчанию, если первый аргумент пустой
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	// coalesce — возвращает первое непустое значение
	"coalesce": func(values ...any) any {
		for _, v := range values {
			if v != nil {
				if s, ok := v.(string); ok && s == "" {
					continue
				}
				return v
			}
		}
		return nil
	},

	// toJSON — алиас для json
	"toJSON": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	},

	// fromJSON — парсит JSON строку
	"fromJSON": func(s string) any {
		var result any
		if err := json.Unmarshal([]byte(s), &result); err != nil {
			return nil
		}
		return result
	},

	// join — объединяет слайс строк
	"join": func(sep string, items []string) string {
		return strings.Join(items, sep)
	},

	// split — разбивает строку на слайс
	"split": func(sep, s string) []string {
		return strings.Split(s, sep)
	},

	// contains — проверяет, содержит ли строка подстроку
	"contains": strings.Contains,

	// hasPrefix — проверяет префикс строки
	"hasPrefix": strings.HasPrefix,

	// hasSuffix — проверяет суффикс строки
	"hasSuffix": strings.HasSuffix,

	// lower — приводит к нижнему регистру
	"lower": strings.ToLower,

	// upper — приводит к верхнему регистру
	"upper": strings.ToUpper,

	// trim — удаляет пробелы по краям
	"trim": strings.TrimSpace,

	// replace — заменяет подстроку
	"replace": strings.ReplaceAll,
}

// Render рендерит строковый шаблон с контекстом.
//
// Шаблон может содержать Go template выражения:
//
//	{{ .DS.user.name }}
//	{{ .DS.cart.total | printf "%.2f" }}
//	{{ if .DS.flags.promo }}...{{ end }}
func Render(tmpl string, ctx *Context) (string, error) {
	// Проверяем, содержит ли строка шаблонные выражения
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := parseTemplate(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	// Отсутствующее поле источника выводится пустой строкой.
	out := buf.String()
	if !strings.Contains(tmpl, noValue) {
		out = strings.ReplaceAll(out, noValue, "")
	}
	return out, nil
}

// noValue — то, что text/template печатает для отсутствующего ключа map[string]any.
const noValue = "<no value>"

// parsed — кэш разобранных шаблонов. Одни и те же привязки
// перерисовываются при каждом изменении источника.
var parsed = struct {
	sync.RWMutex
	m map[string]*template.Template
}{m: make(map[string]*template.Template)}

func parseTemplate(tmpl string) (*template.Template, error) {
	parsed.RLock()
	t, ok := parsed.m[tmpl]
	parsed.RUnlock()
	if ok {
		return t, nil
	}

	t, err := template.New("").Funcs(templateFuncs).Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	parsed.Lock()
	parsed.m[tmpl] = t
	parsed.Unlock()

	return t, nil
}

// RenderValue рендерит произвольное значение.
// Рекурсивно обрабатывает map и slice.
func RenderValue(value any, ctx *Context) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch v := value.(type) {
	case string:
		return Render(v, ctx)

	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			rendered, err := RenderValue(val, ctx)
			if err != nil {
				return nil, err
			}
			result[key] = rendered
		}
		return result, nil

	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			rendered, err := RenderValue(val, ctx)
			if err != nil {
				return nil, err
			}
			result[i] = rendered
		}
		return result, nil

	case map[string]string:
		result := make(map[string]string, len(v))
		for key, val := range v {
			rendered, err := Render(val, ctx)
			if err != nil {
				return nil, err
			}
			result[key] = rendered
		}
		return result, nil

	case []string:
		result := make([]string, len(v))
		for i, val := range v {
			rendered, err := Render(val, ctx)
			if err != nil {
				return nil, err
			}
			result[i] = rendered
		}
		return result, nil

	default:
		// Для остальных типов (int, float, bool) возвращаем как есть
		return value, nil
	}
}

// RenderProps рендерит набор свойств.
// Это обёртка над RenderValue для map[string]any.
func RenderProps(props map[string]any, ctx *Context) (map[string]any, error) {
	if props == nil {
		return make(map[string]any), nil
	}

	rendered, err := RenderValue(props, ctx)
	if err != nil {
		return nil, err
	}

	result, ok := rendered.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected map, got %T", ErrTemplateRender, rendered)
	}

	return result, nil
}

// HasTemplate проверяет, содержит ли значение шаблонные выражения.
// Рекурсивно обходит map и slice.
func HasTemplate(value any) bool {
	switch v := value.(type) {
	case string:
		return strings.Contains(v, "{{")
	case map[string]any:
		for _, val := range v {
			if HasTemplate(val) {
				return true
			}
		}
	case []any:
		for _, val := range v {
			if HasTemplate(val) {
				return true
			}
		}
	case map[string]string:
		for _, val := range v {
			if strings.Contains(val, "{{") {
				return true
			}
		}
	case []string:
		for _, val := range v {
			if strings.Contains(val, "{{") {
				return true
			}
		}
	}
	return false
}
