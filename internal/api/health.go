package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Status is the body served by GET /health.
type Status struct {
	Status          string `json:"status"`
	Version         string `json:"version"`
	BlobBackend     string `json:"blob_backend"`
	MetadataBackend string `json:"metadata_backend"`
	AllowedUsers    int    `json:"allowed_users"`
}

// NewRouter returns the local status surface of a running relay.
func NewRouter(st Status) http.Handler {
	st.Status = "ok"

	r := chi.NewRouter()
	r.Get("/health", handleHealth(st))
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpError(w, http.StatusNotFound, "not_found", "no route for %s %s", r.Method, r.URL.Path)
	})
	return r
}

func handleHealth(st Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, st)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
