package binding

import (
	"context"

	"github.com/shaiso/Pagebind/internal/domain"
	"github.com/shaiso/Pagebind/internal/telemetry"
	"github.com/shaiso/Pagebind/internal/tree"
)

// initialize выполняет начальный пересчёт. Вызывается один раз из New.
//
// Условия вычисляются вне редактора: результат записывается в каноничный
// узел и узел заменяется в дереве. Привязки значений компилируются всегда.
// Ошибка узла не прерывает пересчёт остальных.
func (b *Binder) initialize(ctx context.Context) {
	_, span := telemetry.StartSpan(ctx, "binding.initialize")
	defer span.End()

	b.treeMu.Lock()
	defer b.treeMu.Unlock()

	items := b.app.Items

	if !domain.IsEditor(b.platform) {
		for _, node := range tree.GetNodes(b.index.ConditionNodeIDs(), items) {
			visible, err := b.conditions.EvaluateCondition(node)
			if err != nil {
				b.initErrors = append(b.initErrors, b.nodeFailed("", PhaseCondition, node, err))
				continue
			}
			node.SetCondResult(visible)
			tree.ReplaceChild(node, items)
			telemetry.NodesRecomputed.WithLabelValues(telemetry.KindCondition).Inc()
		}
	}

	for _, node := range tree.GetNodes(b.index.ValueNodeIDs(), items) {
		compiled, err := b.values.CompileBindings(node)
		if err != nil {
			b.initErrors = append(b.initErrors, b.nodeFailed("", PhaseValue, node, err))
			continue
		}
		b.splice(node, compiled)
		telemetry.NodesRecomputed.WithLabelValues(telemetry.KindValue).Inc()
	}

	b.logger.Debug("bindings initialized",
		"platform", b.platform,
		"condition_nodes", len(b.index.ConditionNodeIDs()),
		"value_nodes", len(b.index.ValueNodeIDs()),
		"errors", len(b.initErrors),
	)
}

// splice заменяет узел результатом компиляции.
// Вызывается под treeMu.
func (b *Binder) splice(original, compiled *domain.Node) *domain.Node {
	if compiled == nil {
		return original
	}
	if !tree.ReplaceChild(compiled, b.app.Items) {
		b.logger.Debug("compiled node not found in tree", "node_id", compiled.ID, "original_id", original.ID)
	}
	return compiled
}
