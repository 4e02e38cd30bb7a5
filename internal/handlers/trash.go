package handlers

import (
	"context"
	"net/http"

	"media-catalog/internal/trash"
)

type batchResponse struct {
	Results []trash.ItemResult `json:"results"`
}

// Trash moves files into the trash.
func (h *Handlers) Trash(w http.ResponseWriter, r *http.Request) {
	h.batch(w, r, h.trash.Trash)
}

// Restore moves trashed files back to their original location.
func (h *Handlers) Restore(w http.ResponseWriter, r *http.Request) {
	h.batch(w, r, h.trash.Restore)
}

// PermanentDelete removes live files and their records.
func (h *Handlers) PermanentDelete(w http.ResponseWriter, r *http.Request) {
	h.batch(w, r, h.trash.PermanentDelete)
}

// batch decodes a path list and reports per-item outcomes. Item failures do
// not change the response status.
func (h *Handlers) batch(w http.ResponseWriter, r *http.Request, op func(context.Context, []string) []trash.ItemResult) {
	paths, err := decodePaths(w, r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	results := op(context.WithoutCancel(r.Context()), paths)
	writeJSON(w, http.StatusOK, batchResponse{Results: results})
}

// EmptyTrash permanently deletes everything in the trash.
func (h *Handlers) EmptyTrash(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.trash.EmptyTrash(context.WithoutCancel(r.Context())))
}
