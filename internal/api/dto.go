package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Pagebind/internal/datasource"
	"github.com/shaiso/Pagebind/internal/domain"
	"github.com/shaiso/Pagebind/internal/runtime"
)

// App DTOs

// CreateAppRequest — запрос на создание приложения.
type CreateAppRequest struct {
	Name string          `json:"name"`
	DSL  json.RawMessage `json:"dsl"`
}

// UpdateAppRequest — запрос на замену DSL приложения.
type UpdateAppRequest struct {
	DSL json.RawMessage `json:"dsl"`
}

// AppResponse — ответ с приложением.
type AppResponse struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	DSL       json.RawMessage `json:"dsl,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AppFromDomain конвертирует domain.AppRecord в AppResponse.
func AppFromDomain(rec domain.AppRecord) AppResponse {
	return AppResponse{
		ID:        rec.ID,
		Name:      rec.Name,
		DSL:       rec.DSL,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

// Session DTOs

// TreeResponse — дерево узлов живой сессии.
type TreeResponse struct {
	AppID    uuid.UUID      `json:"app_id"`
	Platform string         `json:"platform"`
	Active   bool           `json:"active"`
	Items    []*domain.Node `json:"items"`
}

// DataSourceResponse — состояние источника данных.
type DataSourceResponse struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Data        any        `json:"data"`
	NextRefresh *time.Time `json:"next_refresh,omitempty"`
}

// DataSourceFromState конвертирует runtime.SourceState в DataSourceResponse.
func DataSourceFromState(s runtime.SourceState) DataSourceResponse {
	return DataSourceResponse{
		ID:          s.ID,
		Type:        s.Type,
		Data:        s.Data,
		NextRefresh: s.NextRefresh,
	}
}

// UpdateDataSourceRequest — изменение данных источника.
//
// Пустой Path заменяет данные целиком на Data,
// иначе Value записывается по пути Path.
type UpdateDataSourceRequest struct {
	Data  any      `json:"data,omitempty"`
	Path  []string `json:"path,omitempty"`
	Value any      `json:"value,omitempty"`
}

// UpdateEventResponse — событие "update-data".
type UpdateEventResponse struct {
	SourceID string         `json:"source_id"`
	Kind     string         `json:"kind"`
	Nodes    []*domain.Node `json:"nodes"`
}

// ChangeResponse — события, отправленные в ответ на изменение.
type ChangeResponse struct {
	SourceID string                `json:"source_id"`
	Events   []UpdateEventResponse `json:"events"`
}

// ChangeFromEvents конвертирует события в ChangeResponse.
func ChangeFromEvents(sourceID string, events []datasource.UpdateEvent) ChangeResponse {
	resp := ChangeResponse{
		SourceID: sourceID,
		Events:   make([]UpdateEventResponse, len(events)),
	}
	for i, ev := range events {
		nodes := ev.Nodes
		if nodes == nil {
			nodes = []*domain.Node{}
		}
		resp.Events[i] = UpdateEventResponse{
			SourceID: ev.SourceID,
			Kind:     string(ev.Kind),
			Nodes:    nodes,
		}
	}
	return resp
}
