package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"media-catalog/internal/logging"
)

// pathsRequest is the body of every batch endpoint.
type pathsRequest struct {
	Paths []string `json:"paths"`
}

// writeJSON encodes v as JSON with the given status code. Encoding or write
// errors are logged since the response is already committed.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// decodePaths reads a {"paths": [...]} body. Every path must be a canonical
// media-relative path.
func decodePaths(w http.ResponseWriter, r *http.Request) ([]string, error) {
	var req pathsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	if len(req.Paths) == 0 {
		return nil, errors.New("paths must not be empty")
	}
	for _, p := range req.Paths {
		if !validPath(p) {
			return nil, fmt.Errorf("invalid path %q", p)
		}
	}
	return req.Paths, nil
}

// validPath reports whether p is a slash-separated path relative to the
// media root with no . or .. elements.
func validPath(p string) bool {
	return p != "." && fs.ValidPath(p)
}
