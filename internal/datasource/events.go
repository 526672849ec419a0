package datasource

import (
	"context"
	"sync"

	"github.com/shaiso/Pagebind/internal/domain"
)

// Имена событий менеджера.
const (
	// EventChange — данные источника изменились.
	EventChange = "change"

	// EventUpdateData — узлы пересчитаны после изменения источника.
	EventUpdateData = "update-data"
)

// UpdateKind — вид пересчёта, породивший UpdateEvent.
type UpdateKind string

const (
	// UpdateKindCondition — пересчитаны условия видимости. Nodes — копии узлов.
	UpdateKindCondition UpdateKind = "condition"

	// UpdateKindValue — пересчитаны привязанные свойства. Nodes — узлы дерева.
	UpdateKindValue UpdateKind = "value"
)

// ChangeEvent — событие изменения данных источника.
type ChangeEvent struct {
	SourceID string `json:"source_id"`
}

// UpdateEvent — событие "update-data".
type UpdateEvent struct {
	SourceID string         `json:"source_id"`
	Kind     UpdateKind     `json:"kind"`
	Nodes    []*domain.Node `json:"nodes"`
}

// NodeIDs возвращает идентификаторы узлов события.
func (e UpdateEvent) NodeIDs() []string {
	ids := make([]string, len(e.Nodes))
	for i, n := range e.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// observers — список подписчиков, вызываемых в порядке регистрации.
type observers[T any] struct {
	mu   sync.Mutex
	seq  int
	subs []subscription[T]
}

type subscription[T any] struct {
	id int
	fn func(context.Context, T)
}

// add регистрирует подписчика и возвращает функцию отписки.
func (o *observers[T]) add(fn func(context.Context, T)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.seq++
	id := o.seq
	o.subs = append(o.subs, subscription[T]{id: id, fn: fn})

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		for i, s := range o.subs {
			if s.id == id {
				o.subs = append(o.subs[:i:i], o.subs[i+1:]...)
				return
			}
		}
	}
}

// notify вызывает подписчиков синхронно.
func (o *observers[T]) notify(ctx context.Context, ev T) {
	o.mu.Lock()
	subs := make([]subscription[T], len(o.subs))
	copy(subs, o.subs)
	o.mu.Unlock()

	for _, s := range subs {
		s.fn(ctx, ev)
	}
}

func (o *observers[T]) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs)
}
