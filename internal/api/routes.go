package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		RequestID(),
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Apps
	mux.Handle("GET /api/v1/apps", chain(http.HandlerFunc(h.ListApps)))
	mux.Handle("POST /api/v1/apps", chain(http.HandlerFunc(h.CreateApp)))
	mux.Handle("GET /api/v1/apps/{id}", chain(http.HandlerFunc(h.GetApp)))
	mux.Handle("PUT /api/v1/apps/{id}", chain(http.HandlerFunc(h.UpdateApp)))
	mux.Handle("DELETE /api/v1/apps/{id}", chain(http.HandlerFunc(h.DeleteApp)))

	// Live session
	mux.Handle("GET /api/v1/apps/{id}/tree", chain(http.HandlerFunc(h.GetTree)))
	mux.Handle("GET /api/v1/apps/{id}/datasources", chain(http.HandlerFunc(h.ListDataSources)))
	mux.Handle("PUT /api/v1/apps/{id}/datasources/{sourceId}", chain(http.HandlerFunc(h.UpdateDataSource)))
	mux.Handle("POST /api/v1/apps/{id}/datasources/{sourceId}/fetch", chain(http.HandlerFunc(h.FetchDataSource)))
}
