package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes adds every API and probe route to r.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet, http.MethodHead)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	api.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)
	api.HandleFunc("/stats", h.GetStats).Methods(http.MethodGet)

	api.HandleFunc("/sync", h.Synchronize).Methods(http.MethodPost)
	api.HandleFunc("/files/{path:.+}", h.GetFile).Methods(http.MethodGet)
	api.HandleFunc("/folders", h.GetFolders).Methods(http.MethodGet)

	api.HandleFunc("/thumbnail/{path:.+}", h.GetThumbnail).Methods(http.MethodGet)
	api.HandleFunc("/thumbnails/status", h.GetThumbnailStatus).Methods(http.MethodGet)
	api.HandleFunc("/thumbnails/visible", h.SetVisible).Methods(http.MethodPost)
	api.HandleFunc("/thumbnails/clean", h.CleanThumbnails).Methods(http.MethodPost)

	api.HandleFunc("/trash", h.Trash).Methods(http.MethodPost)
	api.HandleFunc("/trash/restore", h.Restore).Methods(http.MethodPost)
	api.HandleFunc("/trash/empty", h.EmptyTrash).Methods(http.MethodPost)
	api.HandleFunc("/delete", h.PermanentDelete).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, "not found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
	})
}
