package binding

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/shaiso/Pagebind/internal/datasource"
	"github.com/shaiso/Pagebind/internal/domain"
	"github.com/shaiso/Pagebind/internal/telemetry"
	"github.com/shaiso/Pagebind/internal/tree"
)

// ChangeResult — результат обработки изменения одного источника.
type ChangeResult struct {
	SourceID string

	// Condition — событие условий; nil, если у источника нет условных зависимостей.
	Condition *datasource.UpdateEvent

	// Value — событие значений; nil, если у источника нет привязок.
	Value *datasource.UpdateEvent

	// Errors — ошибки отдельных узлов (*NodeError).
	Errors []error
}

// Events возвращает отправленные события в порядке отправки.
func (r ChangeResult) Events() []datasource.UpdateEvent {
	events := make([]datasource.UpdateEvent, 0, 2)
	if r.Condition != nil {
		events = append(events, *r.Condition)
	}
	if r.Value != nil {
		events = append(events, *r.Value)
	}
	return events
}

// HandleChange пересчитывает узлы, зависящие от источника, и отправляет
// события "update-data": сначала событие условий, затем событие значений.
// Источник без зависимостей ничего не отправляет.
func (b *Binder) HandleChange(ctx context.Context, sourceID string) ChangeResult {
	b.changeMu.Lock()
	defer b.changeMu.Unlock()

	ctx, span := telemetry.StartSpan(ctx, "binding.HandleChange", attribute.String("source_id", sourceID))
	defer span.End()

	start := time.Now()
	result := ChangeResult{SourceID: sourceID}

	condEvent, condErrs := b.EvaluateConditionsReadOnly(ctx, sourceID)
	result.Errors = append(result.Errors, condErrs...)
	if condEvent != nil {
		result.Condition = condEvent
		b.emit(ctx, *condEvent)
	}

	valueEvent, valueErrs := b.ApplyValueBindingsInPlace(ctx, sourceID)
	result.Errors = append(result.Errors, valueErrs...)
	if valueEvent != nil {
		result.Value = valueEvent
		b.emit(ctx, *valueEvent)
	}

	telemetry.ChangeDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int("events", len(result.Events())),
		attribute.Int("errors", len(result.Errors)),
	)

	return result
}

func (b *Binder) emit(ctx context.Context, ev datasource.UpdateEvent) {
	telemetry.UpdateEvents.WithLabelValues(string(ev.Kind)).Inc()
	b.logger.Debug("update-data",
		"source_id", ev.SourceID,
		"kind", ev.Kind,
		"nodes", len(ev.Nodes),
	)
	b.emitter.EmitUpdate(ctx, ev)
}

// EvaluateConditionsReadOnly вычисляет условия узлов, зависящих от источника.
//
// Каждый узел копируется, результат записывается в копию. Каноничное
// дерево не изменяется. Узел, условие которого не вычислилось, в событие
// не попадает. nil — у источника нет условных зависимостей.
func (b *Binder) EvaluateConditionsReadOnly(ctx context.Context, sourceID string) (*datasource.UpdateEvent, []error) {
	ids := b.index.ConditionNodes(sourceID)
	if len(ids) == 0 {
		return nil, nil
	}

	b.treeMu.RLock()
	defer b.treeMu.RUnlock()

	var errs []error
	copies := make([]*domain.Node, 0, len(ids))
	for _, node := range tree.GetNodes(ids, b.app.Items) {
		visible, err := b.conditions.EvaluateCondition(node)
		if err != nil {
			errs = append(errs, b.nodeFailed(sourceID, PhaseCondition, node, err))
			continue
		}

		cp := node.Clone()
		cp.SetCondResult(visible)
		copies = append(copies, cp)
	}
	telemetry.NodesRecomputed.WithLabelValues(telemetry.KindCondition).Add(float64(len(copies)))

	return &datasource.UpdateEvent{
		SourceID: sourceID,
		Kind:     datasource.UpdateKindCondition,
		Nodes:    copies,
	}, errs
}

// ApplyValueBindingsInPlace пересчитывает привязки узлов, зависящих
// от источника, и заменяет узлы в дереве.
//
// Узел, привязки которого не скомпилировались, сохраняет прежние значения
// и в событие не попадает. nil — у источника нет привязок.
func (b *Binder) ApplyValueBindingsInPlace(ctx context.Context, sourceID string) (*datasource.UpdateEvent, []error) {
	ids := b.index.ValueNodes(sourceID)
	if len(ids) == 0 {
		return nil, nil
	}

	b.treeMu.Lock()
	defer b.treeMu.Unlock()

	var errs []error
	nodes := make([]*domain.Node, 0, len(ids))
	for _, node := range tree.GetNodes(ids, b.app.Items) {
		compiled, err := b.values.CompileBindings(node)
		if err != nil {
			errs = append(errs, b.nodeFailed(sourceID, PhaseValue, node, err))
			continue
		}
		nodes = append(nodes, b.splice(node, compiled))
	}
	telemetry.NodesRecomputed.WithLabelValues(telemetry.KindValue).Add(float64(len(nodes)))

	return &datasource.UpdateEvent{
		SourceID: sourceID,
		Kind:     datasource.UpdateKindValue,
		Nodes:    nodes,
	}, errs
}
