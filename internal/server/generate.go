package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// handleGenerate serves the non-streaming generation path: one blocking
// provider call, a history insert, and a JSON response.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())

	var in queryInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := in.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	completion, err := s.provider.Complete(r.Context(), completionRequest(in.Query))
	if err != nil {
		s.writeProviderError(w, err)
		return
	}

	metadata, err := json.Marshal(completion.Metadata)
	if err != nil {
		metadata = json.RawMessage(`{}`)
	}

	data := map[string]any{
		"query":     in.Query,
		"response":  completion.Text,
		"metadata":  completion.Metadata,
		"createdAt": time.Now().UTC(),
	}

	// A failed insert is logged, not surfaced: the response was already
	// generated, the interaction just won't show up in history.
	saved, err := s.store.InsertInteraction(r.Context(), user.ID, in.Query, completion.Text, metadata)
	if err != nil {
		s.log.Error("persisting interaction", "err", err, "user", user.ID)
	} else {
		data["id"] = saved.ID
		data["createdAt"] = saved.CreatedAt
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
	})
}

// handleRecent returns the user's latest interactions.
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())

	items, err := s.store.RecentInteractions(r.Context(), user.ID, 5)
	if err != nil {
		s.log.Error("listing recent interactions", "err", err, "user", user.ID)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(items),
		"data":    items,
	})
}
