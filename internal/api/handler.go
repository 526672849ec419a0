package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/Pagebind/internal/domain"
	"github.com/shaiso/Pagebind/internal/runtime"
	"github.com/shaiso/Pagebind/internal/telemetry"
)

// AppStore — хранилище DSL приложений (реализуется repo.AppRepo).
type AppStore interface {
	Create(ctx context.Context, rec *domain.AppRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.AppRecord, error)
	List(ctx context.Context) ([]domain.AppRecord, error)
	UpdateDSL(ctx context.Context, id uuid.UUID, dsl json.RawMessage) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	apps     AppStore
	sessions *runtime.Registry
	logger   *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Apps     AppStore
	Sessions *runtime.Registry
	Logger   *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		apps:     cfg.Apps,
		sessions: cfg.Sessions,
		logger:   cfg.Logger,
	}
}

// log возвращает логгер запроса (с request_id, если его добавил Logging).
func (h *Handler) log(r *http.Request) *slog.Logger {
	if h.logger != nil && r.Context().Value(telemetry.CtxLogger) == nil {
		return h.logger
	}
	return telemetry.FromContext(r.Context())
}
