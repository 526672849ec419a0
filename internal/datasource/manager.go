package datasource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shaiso/Pagebind/internal/domain"
	"github.com/shaiso/Pagebind/internal/engine"
	"github.com/shaiso/Pagebind/internal/telemetry"
)

// Fetcher — источник, который умеет загружать свои данные.
type Fetcher interface {
	DataSource
	Fetch(ctx context.Context) (any, error)
}

// Manager — менеджер источников данных одного приложения.
//
// Изменения данных (SetData, SetValue, Fetch) обрабатываются строго по одному:
// данные записываются, затем синхронно вызываются подписчики OnChange.
// Следующее изменение ждёт, пока подписчики предыдущего не завершатся.
// Подписчики не должны изменять данные менеджера из обработчика.
type Manager struct {
	sources []DataSource
	byID    map[string]DataSource

	platform   string
	conditions *engine.ConditionCompiler
	bindings   *engine.BindingCompiler
	logger     *slog.Logger

	dispatchMu sync.Mutex

	change observers[ChangeEvent]
	update observers[UpdateEvent]
}

// ManagerConfig — конфигурация Manager.
type ManagerConfig struct {
	Configs     []domain.DataSourceConfig
	Platform    string
	HTTPOptions HTTPOptions
	Logger      *slog.Logger
}

// NewManager создаёт источники в порядке объявления.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	conditions, err := engine.NewConditionCompiler()
	if err != nil {
		return nil, err
	}

	m := &Manager{
		byID:       make(map[string]DataSource, len(cfg.Configs)),
		platform:   cfg.Platform,
		conditions: conditions,
		bindings:   engine.NewBindingCompiler(),
		logger:     telemetry.OrDiscard(cfg.Logger),
	}

	for _, dsCfg := range cfg.Configs {
		src, err := newSource(dsCfg, cfg.HTTPOptions)
		if err != nil {
			return nil, err
		}
		if _, dup := m.byID[dsCfg.ID]; dup {
			return nil, fmt.Errorf("duplicate data source %q", dsCfg.ID)
		}
		m.sources = append(m.sources, src)
		m.byID[dsCfg.ID] = src
	}

	return m, nil
}

func newSource(cfg domain.DataSourceConfig, opts HTTPOptions) (DataSource, error) {
	if cfg.Refresh != "" {
		if err := ValidateCronExpr(cfg.Refresh); err != nil {
			return nil, fmt.Errorf("data source %s: %w", cfg.ID, err)
		}
	}

	switch cfg.Type {
	case domain.DataSourceTypeBase, "":
		return NewBaseSource(cfg), nil
	case domain.DataSourceTypeHTTP:
		return NewHTTPSource(cfg, opts), nil
	default:
		return nil, fmt.Errorf("%w: %q (data source %s)", ErrUnknownType, cfg.Type, cfg.ID)
	}
}

// Platform возвращает платформу исполнения.
func (m *Manager) Platform() string {
	return m.platform
}

// Sources возвращает источники в порядке объявления.
func (m *Manager) Sources() []DataSource {
	out := make([]DataSource, len(m.sources))
	copy(out, m.sources)
	return out
}

// Get возвращает источник по ID.
func (m *Manager) Get(id string) (DataSource, bool) {
	src, ok := m.byID[id]
	return src, ok
}

// Data возвращает текущие данные всех источников (sourceID → данные).
func (m *Manager) Data() map[string]any {
	data := make(map[string]any, len(m.sources))
	for _, src := range m.sources {
		data[src.ID()] = src.Data()
	}
	return data
}

// SetData заменяет данные источника и оповещает подписчиков.
func (m *Manager) SetData(ctx context.Context, id string, data any) error {
	src, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, id)
	}

	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	src.SetData(data)
	m.dispatchChange(ctx, id)
	return nil
}

// SetValue записывает значение по пути и оповещает подписчиков.
func (m *Manager) SetValue(ctx context.Context, id string, path []string, value any) error {
	src, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, id)
	}

	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	if err := src.SetValue(path, value); err != nil {
		return fmt.Errorf("data source %s: %w", id, err)
	}
	m.dispatchChange(ctx, id)
	return nil
}

// Fetch загружает данные http источника и применяет их как SetData.
func (m *Manager) Fetch(ctx context.Context, id string) error {
	src, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, id)
	}
	fetcher, ok := src.(Fetcher)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFetchable, id)
	}

	data, err := fetcher.Fetch(ctx)
	if err != nil {
		telemetry.DataSourceFetches.WithLabelValues("error").Inc()
		return err
	}
	telemetry.DataSourceFetches.WithLabelValues("ok").Inc()

	return m.SetData(ctx, id, data)
}

// Init загружает http источники с autoFetch.
// Ошибка одного источника не мешает загрузке остальных.
func (m *Manager) Init(ctx context.Context) error {
	var errs []error
	for _, src := range m.sources {
		if _, ok := src.(Fetcher); !ok || !src.Config().AutoFetch {
			continue
		}
		if err := m.Fetch(ctx, src.ID()); err != nil {
			m.logger.Warn("auto fetch failed", "source_id", src.ID(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// dispatchChange вызывается под dispatchMu.
func (m *Manager) dispatchChange(ctx context.Context, id string) {
	m.logger.Debug("data source changed", "source_id", id, "subscribers", m.change.len())
	m.change.notify(ctx, ChangeEvent{SourceID: id})
}

// OnChange подписывает fn на изменения источников.
// Возвращает функцию отписки.
func (m *Manager) OnChange(fn func(context.Context, ChangeEvent)) func() {
	return m.change.add(fn)
}

// OnUpdate подписывает fn на события "update-data".
// Возвращает функцию отписки.
func (m *Manager) OnUpdate(fn func(context.Context, UpdateEvent)) func() {
	return m.update.add(fn)
}

// EmitUpdate отправляет событие "update-data" подписчикам.
func (m *Manager) EmitUpdate(ctx context.Context, ev UpdateEvent) {
	m.update.notify(ctx, ev)
}

// context строит контекст компиляции из текущих данных.
func (m *Manager) context() *engine.Context {
	ctx := engine.NewContext(m.Data())
	ctx.Platform = m.platform
	return ctx
}

// EvaluateCondition вычисляет видимость узла по текущим данным.
// Узел не изменяется.
func (m *Manager) EvaluateCondition(node *domain.Node) (bool, error) {
	return m.conditions.Evaluate(node, m.context())
}

// CompileBindings пересчитывает привязанные свойства узла по текущим данным.
// Узел изменяется на месте и возвращается.
func (m *Manager) CompileBindings(node *domain.Node) (*domain.Node, error) {
	return m.bindings.Compile(node, m.context())
}
