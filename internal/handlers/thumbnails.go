package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"media-catalog/internal/database"
	"media-catalog/internal/logging"
	"media-catalog/internal/media"
	"media-catalog/internal/thumbnails"
)

// GetThumbnail serves the JPEG thumbnail for a cataloged file, generating
// it first when the cached copy is missing or stale. ?force=1 regenerates
// unconditionally and retries permanently failed files.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	p := mux.Vars(r)["path"]
	if !validPath(p) {
		writeJSONError(w, "invalid path", http.StatusBadRequest)
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	data, err := h.thumbnails.GetThumbnail(r.Context(), p, force)
	if err != nil {
		code, msg := thumbnailErrorStatus(err)
		if code >= http.StatusInternalServerError {
			logging.Error("Thumbnail %s: %v", p, err)
		} else {
			logging.Debug("Thumbnail %s: %v", p, err)
		}
		writeJSONError(w, msg, code)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=60")
	if _, err := w.Write(data); err != nil {
		logging.Debug("Thumbnail write %s: %v", p, err)
	}
}

func thumbnailErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, database.ErrNotFound), errors.Is(err, media.ErrSourceMissing):
		return http.StatusNotFound, "file not found"
	case errors.Is(err, thumbnails.ErrFailedPermanent), media.IsPermanent(err):
		return http.StatusUnprocessableEntity, "thumbnail cannot be generated for this file"
	case errors.Is(err, media.ErrTimeout):
		return http.StatusServiceUnavailable, "thumbnail generation timed out"
	default:
		return http.StatusInternalServerError, "thumbnail generation failed"
	}
}

// SetVisible raises the priority of thumbnails the client is displaying.
func (h *Handlers) SetVisible(w http.ResponseWriter, r *http.Request) {
	paths, err := decodePaths(w, r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	n, err := h.thumbnails.SetVisible(r.Context(), paths)
	if err != nil {
		logging.Error("SetVisible: %v", err)
		writeJSONError(w, "failed to prioritize thumbnails", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"prioritized": n})
}

// CleanThumbnails reconciles the thumbnail cache with the catalog.
func (h *Handlers) CleanThumbnails(w http.ResponseWriter, r *http.Request) {
	result, err := h.thumbnails.CleanThumbnails(r.Context())
	if err != nil {
		logging.Error("CleanThumbnails: %v", err)
		writeJSONError(w, "thumbnail cleanup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetThumbnailStatus returns live record counts per thumbnail status.
func (h *Handlers) GetThumbnailStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := h.db.ThumbnailStatusCounts(r.Context())
	if err != nil {
		logging.Error("GetThumbnailStatus: %v", err)
		writeJSONError(w, "failed to count thumbnails", http.StatusInternalServerError)
		return
	}
	out := map[string]int64{}
	for _, s := range []database.ThumbnailStatus{
		database.ThumbnailPending,
		database.ThumbnailPrioritized,
		database.ThumbnailGenerated,
		database.ThumbnailFailedPermanent,
	} {
		out[s.String()] = counts[s]
	}
	writeJSON(w, http.StatusOK, out)
}
