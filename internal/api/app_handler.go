package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/Pagebind/internal/domain"
	"github.com/shaiso/Pagebind/internal/engine"
)

// ListApps возвращает список приложений без DSL.
// GET /api/v1/apps
func (h *Handler) ListApps(w http.ResponseWriter, r *http.Request) {
	apps, err := h.apps.List(r.Context())
	if HandleError(w, h.log(r), err, "") {
		return
	}

	result := make([]AppResponse, len(apps))
	for i, a := range apps {
		result[i] = AppFromDomain(a)
	}

	List(w, result, len(result))
}

// CreateApp создаёт приложение из DSL.
// POST /api/v1/apps
func (h *Handler) CreateApp(w http.ResponseWriter, r *http.Request) {
	var req CreateAppRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}
	if len(req.DSL) == 0 {
		BadRequest(w, "dsl is required")
		return
	}
	if _, err := engine.ParseApp(req.DSL); err != nil {
		BadRequest(w, err.Error())
		return
	}

	rec := &domain.AppRecord{
		ID:   uuid.New(),
		Name: req.Name,
		DSL:  req.DSL,
	}

	if err := h.apps.Create(r.Context(), rec); err != nil {
		HandleError(w, h.log(r), err, "")
		return
	}

	Created(w, AppFromDomain(*rec))
}

// GetApp возвращает приложение по ID.
// GET /api/v1/apps/{id}
func (h *Handler) GetApp(w http.ResponseWriter, r *http.Request) {
	id, ok := appID(w, r)
	if !ok {
		return
	}

	rec, err := h.apps.GetByID(r.Context(), id)
	if HandleError(w, h.log(r), err, "app not found") {
		return
	}

	Success(w, AppFromDomain(*rec))
}

// UpdateApp заменяет DSL приложения.
// Открытая сессия приложения перезапускается с новым DSL.
// PUT /api/v1/apps/{id}
func (h *Handler) UpdateApp(w http.ResponseWriter, r *http.Request) {
	id, ok := appID(w, r)
	if !ok {
		return
	}

	var req UpdateAppRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if len(req.DSL) == 0 {
		BadRequest(w, "dsl is required")
		return
	}
	if _, err := engine.ParseApp(req.DSL); err != nil {
		BadRequest(w, err.Error())
		return
	}

	if err := h.apps.UpdateDSL(r.Context(), id, req.DSL); err != nil {
		HandleError(w, h.log(r), err, "app not found")
		return
	}

	if _, open := h.sessions.Get(id); open {
		if _, err := h.sessions.Reload(r.Context(), id); err != nil {
			HandleError(w, h.log(r), err, "app not found")
			return
		}
	}

	rec, err := h.apps.GetByID(r.Context(), id)
	if HandleError(w, h.log(r), err, "app not found") {
		return
	}

	Success(w, AppFromDomain(*rec))
}

// DeleteApp удаляет приложение и закрывает его сессию.
// DELETE /api/v1/apps/{id}
func (h *Handler) DeleteApp(w http.ResponseWriter, r *http.Request) {
	id, ok := appID(w, r)
	if !ok {
		return
	}

	if err := h.apps.Delete(r.Context(), id); err != nil {
		HandleError(w, h.log(r), err, "app not found")
		return
	}
	h.sessions.Evict(r.Context(), id)

	NoContent(w)
}

// appID читает {id} из пути; при ошибке отвечает 400.
func appID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid app id")
		return uuid.Nil, false
	}
	return id, true
}
