package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"media-catalog/internal/database"
	"media-catalog/internal/indexer"
	"media-catalog/internal/logging"
)

// Synchronize runs a synchronization pass and returns its result. The pass
// is not tied to the request, so a dropped client does not abort it.
func (h *Handlers) Synchronize(w http.ResponseWriter, r *http.Request) {
	result, err := h.indexer.Synchronize(context.WithoutCancel(r.Context()))
	if errors.Is(err, indexer.ErrSyncInProgress) {
		writeJSONError(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		logging.Error("Synchronization request failed: %v", err)
		writeJSONError(w, "synchronization failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetStats returns the cached catalog counters.
func (h *Handlers) GetStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, h.stats.Get())
}

// GetFile returns the live catalog record for a path.
func (h *Handlers) GetFile(w http.ResponseWriter, r *http.Request) {
	p := mux.Vars(r)["path"]
	if !validPath(p) {
		writeJSONError(w, "invalid path", http.StatusBadRequest)
		return
	}

	rec, err := h.db.GetRecordByPath(r.Context(), p)
	if errors.Is(err, database.ErrNotFound) {
		writeJSONError(w, "file not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("GetFile %s: %v", p, err)
		writeJSONError(w, "failed to load record", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GetFolders returns the live media count of every folder.
func (h *Handlers) GetFolders(w http.ResponseWriter, r *http.Request) {
	aggs, err := h.db.GetFolderAggregates(r.Context())
	if err != nil {
		logging.Error("GetFolders: %v", err)
		writeJSONError(w, "failed to load folders", http.StatusInternalServerError)
		return
	}
	if aggs == nil {
		aggs = []database.FolderAggregate{}
	}
	writeJSON(w, http.StatusOK, aggs)
}
