package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/shaiso/Pagebind/internal/binding"
	"github.com/shaiso/Pagebind/internal/datasource"
	"github.com/shaiso/Pagebind/internal/domain"
	"github.com/shaiso/Pagebind/internal/telemetry"
	"github.com/shaiso/Pagebind/internal/tree"
)

// publishTimeout ограничивает публикацию одного события.
const publishTimeout = 5 * time.Second

// Session — живое приложение.
//
// Изменения источников через Session сериализуются; каждый вызов
// возвращает события "update-data", отправленные во время вызова.
type Session struct {
	appID     uuid.UUID
	app       *domain.App
	binder    *binding.Binder
	refresher *datasource.Refresher
	publisher Publisher
	logger    *slog.Logger

	mu     sync.Mutex
	closed bool

	collectMu sync.Mutex
	collect   *[]datasource.UpdateEvent

	unsubscribe func()
}

// SourceState — состояние источника данных сессии.
type SourceState struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Data        any        `json:"data"`
	NextRefresh *time.Time `json:"next_refresh,omitempty"`
}

// AppID возвращает ID приложения.
func (s *Session) AppID() uuid.UUID {
	return s.appID
}

// HasDataSources сообщает, создан ли менеджер источников.
func (s *Session) HasDataSources() bool {
	return s.binder != nil
}

// InitErrors возвращает ошибки начального пересчёта узлов.
func (s *Session) InitErrors() []error {
	if s.binder == nil {
		return nil
	}
	return s.binder.InitErrors()
}

// Apply заменяет данные источника.
func (s *Session) Apply(ctx context.Context, sourceID string, data any) ([]datasource.UpdateEvent, error) {
	return s.run(ctx, "runtime.Session.Apply", sourceID, func(ctx context.Context, m *datasource.Manager) error {
		return m.SetData(ctx, sourceID, data)
	})
}

// ApplyValue записывает значение по пути внутри данных источника.
func (s *Session) ApplyValue(ctx context.Context, sourceID string, path []string, value any) ([]datasource.UpdateEvent, error) {
	return s.run(ctx, "runtime.Session.ApplyValue", sourceID, func(ctx context.Context, m *datasource.Manager) error {
		return m.SetValue(ctx, sourceID, path, value)
	})
}

// Fetch перезагружает HTTP источник.
func (s *Session) Fetch(ctx context.Context, sourceID string) ([]datasource.UpdateEvent, error) {
	return s.run(ctx, "runtime.Session.Fetch", sourceID, func(ctx context.Context, m *datasource.Manager) error {
		return m.Fetch(ctx, sourceID)
	})
}

func (s *Session) run(ctx context.Context, name, sourceID string, fn func(ctx context.Context, m *datasource.Manager) error) (events []datasource.UpdateEvent, err error) {
	ctx, span := telemetry.StartSpan(ctx, name,
		attribute.String("app_id", s.appID.String()),
		attribute.String("source_id", sourceID),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	if s.binder == nil {
		return nil, ErrNoDataSources
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}

	collected := make([]datasource.UpdateEvent, 0, 2)
	s.setCollector(&collected)
	err = fn(ctx, s.binder.Manager())
	s.setCollector(nil)

	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("events", len(collected)))
	return collected, nil
}

func (s *Session) setCollector(c *[]datasource.UpdateEvent) {
	s.collectMu.Lock()
	s.collect = c
	s.collectMu.Unlock()
}

// onUpdate получает события менеджера: складывает их в текущий вызов
// и публикует наружу.
//
// Узлы события значений — каноничные узлы дерева; наружу уходит их копия,
// снятая, пока изменения источников ещё сериализованы менеджером.
func (s *Session) onUpdate(ctx context.Context, ev datasource.UpdateEvent) {
	ev = snapshot(ev)

	s.collectMu.Lock()
	if s.collect != nil {
		*s.collect = append(*s.collect, ev)
	}
	s.collectMu.Unlock()

	if s.publisher == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.PublishNodesUpdated(pubCtx, s.appID, ev); err != nil {
		s.logger.Warn("publish nodes updated failed",
			"source_id", ev.SourceID,
			"kind", ev.Kind,
			"error", err,
		)
	}
}

// snapshot копирует узлы события значений. Узлы события условий уже копии.
func snapshot(ev datasource.UpdateEvent) datasource.UpdateEvent {
	if ev.Kind != datasource.UpdateKindValue {
		return ev
	}
	nodes := make([]*domain.Node, len(ev.Nodes))
	for i, n := range ev.Nodes {
		nodes[i] = n.Clone()
	}
	ev.Nodes = nodes
	return ev
}

// Tree возвращает копию дерева приложения.
// active=true оставляет только видимые узлы.
func (s *Session) Tree(active bool) []*domain.Node {
	var items []*domain.Node
	s.view(func(app *domain.App) {
		if active {
			items = tree.ActiveTree(app.Items)
			return
		}
		items = make([]*domain.Node, len(app.Items))
		for i, n := range app.Items {
			items[i] = n.Clone()
		}
	})
	return items
}

// Node возвращает копию узла.
func (s *Session) Node(id string) (*domain.Node, bool) {
	var node *domain.Node
	s.view(func(app *domain.App) {
		node = tree.Find(app.Items, id).Clone()
	})
	return node, node != nil
}

func (s *Session) view(fn func(app *domain.App)) {
	if s.binder == nil {
		fn(s.app)
		return
	}
	s.binder.View(fn)
}

// Sources возвращает состояние источников в порядке объявления.
func (s *Session) Sources() []SourceState {
	if s.binder == nil {
		return []SourceState{}
	}

	sources := s.binder.Manager().Sources()
	states := make([]SourceState, 0, len(sources))
	for _, src := range sources {
		state := SourceState{
			ID:   src.ID(),
			Type: src.Type(),
			Data: domain.CloneValue(src.Data()),
		}
		if s.refresher != nil {
			if next := s.refresher.Next(src.ID()); !next.IsZero() {
				state.NextRefresh = &next
			}
		}
		states = append(states, state)
	}
	return states
}

// Close останавливает обновления и отписывает сессию от менеджера.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	if s.refresher != nil {
		s.refresher.Stop(ctx)
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.binder != nil {
		s.binder.Close()
	}
}
