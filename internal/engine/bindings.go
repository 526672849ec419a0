package engine

import (
	"fmt"
	"sort"

	"github.com/shaiso/Pagebind/internal/domain"
)

// BindingCompiler вычисляет привязанные свойства узлов.
//
// При первой компиляции свойства с шаблонами запоминаются в node.Bound,
// дальше они всегда рендерятся из исходного шаблона, а результат пишется
// в node.Props. Узел изменяется на месте, identity сохраняется.
type BindingCompiler struct{}

// NewBindingCompiler создаёт BindingCompiler.
func NewBindingCompiler() *BindingCompiler {
	return &BindingCompiler{}
}

// Compile рендерит привязанные свойства узла с контекстом.
//
// Если хотя бы одно свойство не удалось отрендерить, узел не изменяется
// и возвращается ошибка: на узле остаются последние корректные значения.
func (c *BindingCompiler) Compile(node *domain.Node, ctx *Context) (*domain.Node, error) {
	if node == nil {
		return nil, ErrNilNode
	}

	Track(node)
	if len(node.Bound) == 0 {
		return node, nil
	}

	resolved := make(map[string]any, len(node.Bound))
	for _, key := range BoundKeys(node) {
		value, err := RenderValue(node.Bound[key], ctx)
		if err != nil {
			return nil, fmt.Errorf("prop %s: %w", key, err)
		}
		resolved[key] = value
	}

	if node.Props == nil {
		node.Props = make(map[string]any, len(resolved))
	}
	for key, value := range resolved {
		node.Props[key] = value
	}

	return node, nil
}

// Track переносит шаблоны из Props в Bound для ещё не отслеживаемых свойств.
func Track(node *domain.Node) {
	for key, value := range node.Props {
		if _, tracked := node.Bound[key]; tracked {
			continue
		}
		if !HasTemplate(value) {
			continue
		}
		if node.Bound == nil {
			node.Bound = make(map[string]any)
		}
		node.Bound[key] = domain.CloneValue(value)
	}
}

// BoundKeys возвращает отсортированные ключи привязанных свойств.
func BoundKeys(node *domain.Node) []string {
	keys := make([]string, 0, len(node.Bound))
	for key := range node.Bound {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
