package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cursorconnect/cursorconnect/internal/provider"
	"github.com/cursorconnect/cursorconnect/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}

// writeProviderError maps a provider failure onto an HTTP status. Provider
// detail only rides along outside production.
func (s *Server) writeProviderError(w http.ResponseWriter, err error) {
	message := "Error generating AI response"
	status := http.StatusInternalServerError

	if pe, ok := provider.AsError(err); ok {
		switch pe.Kind {
		case provider.KindUnavailable:
			status = http.StatusServiceUnavailable
			message = "No response from AI service. Please try again later."
		case provider.KindRejected:
			status = pe.Status
			message = "AI service rejected the request"
		}
		if s.cfg.Server.Environment != "production" {
			message = message + ": " + pe.Message
		}
	}

	s.log.Error("provider request failed", "err", err, "status", status)
	writeError(w, status, message)
}

// writeStoreError maps history lookup failures onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Query not found")
	case errors.Is(err, store.ErrNotOwner):
		writeError(w, http.StatusForbidden, "Not authorized to access this query")
	default:
		writeError(w, http.StatusInternalServerError, "Server error")
	}
}
