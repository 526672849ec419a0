package api

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// GetTree возвращает дерево узлов живой сессии.
// Сессия открывается при первом обращении.
// GET /api/v1/apps/{id}/tree[?active=true]
func (h *Handler) GetTree(w http.ResponseWriter, r *http.Request) {
	id, ok := appID(w, r)
	if !ok {
		return
	}

	active := false
	if v := r.URL.Query().Get("active"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			BadRequest(w, "invalid active parameter")
			return
		}
		active = parsed
	}

	session, err := h.sessions.Open(r.Context(), id)
	if HandleError(w, h.log(r), err, "app not found") {
		return
	}

	Success(w, TreeResponse{
		AppID:    id,
		Platform: h.sessions.Platform(),
		Active:   active,
		Items:    session.Tree(active),
	})
}

// ListDataSources возвращает текущие данные источников сессии.
// GET /api/v1/apps/{id}/datasources
func (h *Handler) ListDataSources(w http.ResponseWriter, r *http.Request) {
	id, ok := appID(w, r)
	if !ok {
		return
	}

	session, err := h.sessions.Open(r.Context(), id)
	if HandleError(w, h.log(r), err, "app not found") {
		return
	}

	states := session.Sources()
	result := make([]DataSourceResponse, len(states))
	for i, s := range states {
		result[i] = DataSourceFromState(s)
	}

	List(w, result, len(result))
}

// UpdateDataSource изменяет данные источника и возвращает события "update-data".
// PUT /api/v1/apps/{id}/datasources/{sourceId}
func (h *Handler) UpdateDataSource(w http.ResponseWriter, r *http.Request) {
	id, ok := appID(w, r)
	if !ok {
		return
	}
	sourceID := r.PathValue("sourceId")

	var req UpdateDataSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	session, err := h.sessions.Open(r.Context(), id)
	if HandleError(w, h.log(r), err, "app not found") {
		return
	}

	if len(req.Path) == 0 {
		events, err := session.Apply(r.Context(), sourceID, req.Data)
		if HandleError(w, h.log(r), err, "app not found") {
			return
		}
		Success(w, ChangeFromEvents(sourceID, events))
		return
	}

	events, err := session.ApplyValue(r.Context(), sourceID, req.Path, req.Value)
	if HandleError(w, h.log(r), err, "app not found") {
		return
	}
	Success(w, ChangeFromEvents(sourceID, events))
}

// FetchDataSource перезагружает HTTP источник.
// POST /api/v1/apps/{id}/datasources/{sourceId}/fetch
func (h *Handler) FetchDataSource(w http.ResponseWriter, r *http.Request) {
	id, ok := appID(w, r)
	if !ok {
		return
	}
	sourceID := r.PathValue("sourceId")

	session, err := h.sessions.Open(r.Context(), id)
	if HandleError(w, h.log(r), err, "app not found") {
		return
	}

	events, err := session.Fetch(r.Context(), sourceID)
	if HandleError(w, h.log(r), err, "app not found") {
		return
	}
	Success(w, ChangeFromEvents(sourceID, events))
}
