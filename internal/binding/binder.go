package binding

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shaiso/Pagebind/internal/datasource"
	"github.com/shaiso/Pagebind/internal/domain"
	"github.com/shaiso/Pagebind/internal/telemetry"
)

// ConditionEvaluator вычисляет условие видимости узла.
// Не должен изменять узел.
type ConditionEvaluator interface {
	EvaluateCondition(node *domain.Node) (bool, error)
}

// ValueCompiler пересчитывает привязанные свойства узла.
// Может изменить узел на месте или вернуть новый узел с тем же ID.
type ValueCompiler interface {
	CompileBindings(node *domain.Node) (*domain.Node, error)
}

// Emitter доставляет события "update-data".
type Emitter interface {
	EmitUpdate(ctx context.Context, ev datasource.UpdateEvent)
}

// ConditionFunc адаптирует функцию к ConditionEvaluator.
type ConditionFunc func(node *domain.Node) (bool, error)

// EvaluateCondition вызывает f(node).
func (f ConditionFunc) EvaluateCondition(node *domain.Node) (bool, error) {
	return f(node)
}

// CompileFunc адаптирует функцию к ValueCompiler.
type CompileFunc func(node *domain.Node) (*domain.Node, error)

// CompileBindings вызывает f(node).
func (f CompileFunc) CompileBindings(node *domain.Node) (*domain.Node, error) {
	return f(node)
}

// EmitterFunc адаптирует функцию к Emitter.
type EmitterFunc func(ctx context.Context, ev datasource.UpdateEvent)

// EmitUpdate вызывает f(ctx, ev).
func (f EmitterFunc) EmitUpdate(ctx context.Context, ev datasource.UpdateEvent) {
	f(ctx, ev)
}

// Config — зависимости Binder.
type Config struct {
	App        *domain.App
	Platform   string
	Conditions ConditionEvaluator
	Values     ValueCompiler
	Emitter    Emitter
	Logger     *slog.Logger
}

// Binder — связка дерева приложения с источниками данных.
//
// Изменения обрабатываются по одному: пока идёт HandleChange,
// следующий вызов ждёт. Чтение дерева во время пересчёта выполняется
// через View.
type Binder struct {
	app        *domain.App
	platform   string
	index      *Index
	conditions ConditionEvaluator
	values     ValueCompiler
	emitter    Emitter
	logger     *slog.Logger

	changeMu sync.Mutex
	treeMu   sync.RWMutex

	initErrors []error

	manager     *datasource.Manager
	unsubscribe func()
}

// New создаёт Binder и выполняет начальный пересчёт узлов.
func New(ctx context.Context, cfg Config) (*Binder, error) {
	switch {
	case cfg.App == nil:
		return nil, fmt.Errorf("%w: app", ErrMissingDependency)
	case cfg.Conditions == nil:
		return nil, fmt.Errorf("%w: condition evaluator", ErrMissingDependency)
	case cfg.Values == nil:
		return nil, fmt.Errorf("%w: value compiler", ErrMissingDependency)
	case cfg.Emitter == nil:
		return nil, fmt.Errorf("%w: emitter", ErrMissingDependency)
	}

	b := &Binder{
		app:        cfg.App,
		platform:   cfg.Platform,
		index:      NewIndex(cfg.App.DataSourceDeps, cfg.App.DataSourceCondDeps),
		conditions: cfg.Conditions,
		values:     cfg.Values,
		emitter:    cfg.Emitter,
		logger:     telemetry.OrDiscard(cfg.Logger),
	}
	if cfg.App.ID != "" {
		b.logger = telemetry.WithAppID(b.logger, cfg.App.ID)
	}

	b.initialize(ctx)
	return b, nil
}

// Option изменяет конфигурацию, собранную CreateManager.
type Option func(*Config)

// WithLogger задаёт логгер.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// WithConditionEvaluator заменяет вычисление условий менеджера.
func WithConditionEvaluator(ev ConditionEvaluator) Option {
	return func(c *Config) { c.Conditions = ev }
}

// WithValueCompiler заменяет компиляцию привязок менеджера.
func WithValueCompiler(vc ValueCompiler) Option {
	return func(c *Config) { c.Values = vc }
}

// CreateManager создаёт менеджер источников и связанный с ним Binder.
//
// Если в DSL нет dataSources, возвращает nil без ошибки.
// Binder подписывается на изменения источников менеджера;
// события "update-data" доставляются подписчикам Manager().OnUpdate.
func CreateManager(ctx context.Context, app *domain.App, platform string, httpOpts datasource.HTTPOptions, opts ...Option) (*Binder, error) {
	if app == nil || app.DataSources == nil {
		return nil, nil
	}

	cfg := Config{App: app, Platform: platform}
	for _, opt := range opts {
		opt(&cfg)
	}

	manager, err := datasource.NewManager(datasource.ManagerConfig{
		Configs:     app.DataSources,
		Platform:    platform,
		HTTPOptions: httpOpts,
		Logger:      cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create data source manager: %w", err)
	}

	if cfg.Conditions == nil {
		cfg.Conditions = manager
	}
	if cfg.Values == nil {
		cfg.Values = manager
	}
	cfg.Emitter = manager

	b, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	b.manager = manager
	b.unsubscribe = manager.OnChange(func(ctx context.Context, ev datasource.ChangeEvent) {
		b.HandleChange(ctx, ev.SourceID)
	})

	return b, nil
}

// Manager возвращает менеджер источников (nil, если Binder создан через New).
func (b *Binder) Manager() *datasource.Manager {
	return b.manager
}

// Index возвращает индекс зависимостей.
func (b *Binder) Index() *Index {
	return b.index
}

// Platform возвращает платформу исполнения.
func (b *Binder) Platform() string {
	return b.platform
}

// InitErrors возвращает ошибки начального пересчёта.
func (b *Binder) InitErrors() []error {
	return b.initErrors
}

// View вызывает fn с деревом приложения. Пересчёт на время fn блокируется.
// fn не должен изменять дерево и сохранять ссылки на узлы.
func (b *Binder) View(fn func(app *domain.App)) {
	b.treeMu.RLock()
	defer b.treeMu.RUnlock()
	fn(b.app)
}

// Close отписывает Binder от изменений менеджера.
func (b *Binder) Close() {
	if b.unsubscribe != nil {
		b.unsubscribe()
		b.unsubscribe = nil
	}
}

// nodeFailed логирует и учитывает ошибку пересчёта узла.
func (b *Binder) nodeFailed(sourceID, phase string, node *domain.Node, err error) error {
	telemetry.CompileErrors.WithLabelValues(phase).Inc()

	logger := telemetry.WithNodeID(b.logger, node.ID)
	if sourceID != "" {
		logger = telemetry.WithSourceID(logger, sourceID)
	}
	logger.Warn("node compile failed", "phase", phase, "error", err)

	return &NodeError{NodeID: node.ID, SourceID: sourceID, Phase: phase, Err: err}
}
