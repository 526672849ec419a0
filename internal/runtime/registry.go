package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/shaiso/Pagebind/internal/binding"
	"github.com/shaiso/Pagebind/internal/datasource"
	"github.com/shaiso/Pagebind/internal/domain"
	"github.com/shaiso/Pagebind/internal/mq"
	"github.com/shaiso/Pagebind/internal/repo"
	"github.com/shaiso/Pagebind/internal/telemetry"
)

// AppLoader загружает DSL приложения.
// Каждый вызов должен возвращать новое дерево.
type AppLoader interface {
	LoadApp(ctx context.Context, id uuid.UUID) (*domain.App, error)
}

// Publisher отправляет события "update-data" наружу.
type Publisher interface {
	PublishNodesUpdated(ctx context.Context, appID uuid.UUID, ev datasource.UpdateEvent) error
}

// MQPublisher адаптирует mq.Publisher к Publisher.
type MQPublisher struct {
	Publisher *mq.Publisher
}

// PublishNodesUpdated публикует событие в exchange pagebind.nodes.
func (p MQPublisher) PublishNodesUpdated(ctx context.Context, appID uuid.UUID, ev datasource.UpdateEvent) error {
	return p.Publisher.PublishNodesUpdated(ctx, mq.NodesUpdatedPayload{
		AppID:    appID,
		SourceID: ev.SourceID,
		Kind:     string(ev.Kind),
		Nodes:    ev.Nodes,
	})
}

// RegistryConfig — конфигурация Registry.
type RegistryConfig struct {
	Loader      AppLoader
	Publisher   Publisher
	Platform    string
	HTTPOptions datasource.HTTPOptions
	Logger      *slog.Logger
}

// Registry — живые сессии по ID приложения.
type Registry struct {
	loader    AppLoader
	publisher Publisher
	platform  string
	httpOpts  datasource.HTTPOptions
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session

	opening singleflight.Group
}

// NewRegistry создаёт новый Registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	platform := cfg.Platform
	if platform == "" {
		platform = domain.PlatformRuntime
	}
	return &Registry{
		loader:    cfg.Loader,
		publisher: cfg.Publisher,
		platform:  platform,
		httpOpts:  cfg.HTTPOptions,
		logger:    telemetry.OrDiscard(cfg.Logger),
		sessions:  make(map[uuid.UUID]*Session),
	}
}

// Platform возвращает платформу, с которой открываются сессии.
func (r *Registry) Platform() string {
	return r.platform
}

// Get возвращает открытую сессию.
func (r *Registry) Get(appID uuid.UUID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[appID]
	return s, ok
}

// Open возвращает сессию приложения, открывая её при необходимости.
//
// Загрузка DSL и начальные запросы источников выполняются вне блокировки
// реестра; одновременные Open одного приложения открывают его один раз.
func (r *Registry) Open(ctx context.Context, appID uuid.UUID) (*Session, error) {
	if s, ok := r.Get(appID); ok {
		return s, nil
	}

	v, err, _ := r.opening.Do(appID.String(), func() (any, error) {
		if s, ok := r.Get(appID); ok {
			return s, nil
		}
		s, err := r.open(ctx, appID)
		if err != nil {
			return nil, err
		}
		return r.store(ctx, s, false), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// Reload открывает сессию заново с текущим DSL и закрывает прежнюю.
// Если приложение не открывается, прежняя сессия всё равно удаляется.
func (r *Registry) Reload(ctx context.Context, appID uuid.UUID) (*Session, error) {
	s, err := r.open(ctx, appID)
	if err != nil {
		r.Evict(ctx, appID)
		return nil, err
	}
	return r.store(ctx, s, true), nil
}

// store регистрирует открытую сессию и возвращает ту, что осталась в реестре.
// replace=false оставляет уже зарегистрированную сессию и закрывает s.
func (r *Registry) store(ctx context.Context, s *Session, replace bool) *Session {
	r.mu.Lock()
	old, ok := r.sessions[s.appID]
	if ok && !replace {
		r.mu.Unlock()
		s.Close(ctx)
		return old
	}
	r.sessions[s.appID] = s
	r.mu.Unlock()

	if ok {
		old.Close(ctx)
	}
	return s
}

// Evict закрывает и удаляет сессию.
func (r *Registry) Evict(ctx context.Context, appID uuid.UUID) {
	r.mu.Lock()
	s, ok := r.sessions[appID]
	delete(r.sessions, appID)
	r.mu.Unlock()

	if ok {
		s.Close(ctx)
	}
}

// Close закрывает все сессии.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[uuid.UUID]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close(ctx)
	}
}

// Len возвращает количество открытых сессий.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) open(ctx context.Context, appID uuid.UUID) (*Session, error) {
	app, err := r.loader.LoadApp(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("load app %s: %w", appID, err)
	}

	logger := telemetry.WithAppID(r.logger, appID.String())
	s := &Session{
		appID:     appID,
		app:       app,
		publisher: r.publisher,
		logger:    logger,
	}

	b, err := binding.CreateManager(ctx, app, r.platform, r.httpOpts, binding.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open app %s: %w", appID, err)
	}
	if b == nil {
		logger.Info("session opened without data sources")
		return s, nil
	}

	s.binder = b
	s.unsubscribe = b.Manager().OnUpdate(s.onUpdate)

	if err := b.Manager().Init(ctx); err != nil {
		logger.Warn("data source init failed", "error", err)
	}

	refresher, err := datasource.NewRefresher(b.Manager(), logger)
	if err != nil {
		s.Close(ctx)
		return nil, fmt.Errorf("open app %s: %w", appID, err)
	}
	s.refresher = refresher
	refresher.Start()

	logger.Info("session opened",
		"platform", r.platform,
		"sources", len(b.Manager().Sources()),
		"refresh_jobs", refresher.Len(),
		"init_errors", len(b.InitErrors()),
	)
	return s, nil
}

// ApplyDataSourceChange применяет изменение из очереди datasources.changed.
// Подключается к Consumer через mq.HandleDataSourceChanged.
//
// Неповторяемые ошибки (неизвестное приложение или источник, неверный
// путь) помечаются mq.Permanent.
func (r *Registry) ApplyDataSourceChange(ctx context.Context, payload mq.DataSourceChangedPayload) error {
	s, err := r.Open(ctx, payload.AppID)
	if err != nil {
		return classify(err)
	}

	var events []datasource.UpdateEvent
	if len(payload.Path) == 0 {
		events, err = s.Apply(ctx, payload.SourceID, payload.Data)
	} else {
		events, err = s.ApplyValue(ctx, payload.SourceID, payload.Path, payload.Value)
	}
	if err != nil {
		return classify(err)
	}

	r.logger.Debug("data source change applied",
		"app_id", payload.AppID,
		"source_id", payload.SourceID,
		"events", len(events),
	)
	return nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, repo.ErrNotFound),
		errors.Is(err, repo.ErrInvalidDSL),
		errors.Is(err, ErrNoDataSources),
		errors.Is(err, datasource.ErrSourceNotFound),
		errors.Is(err, datasource.ErrInvalidPath),
		errors.Is(err, datasource.ErrNotFetchable),
		errors.Is(err, datasource.ErrUnknownType),
		errors.Is(err, datasource.ErrInvalidRefresh):
		return mq.Permanent(err)
	default:
		return err
	}
}
