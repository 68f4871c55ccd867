// Package server exposes the HTTP surfaces of the platform: the search API
// served by every search replica and the ingestion API served by the
// registry service.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/packdex/search-platform/pkg/errors"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
