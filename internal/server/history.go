package server

import (
	"net/http"
	"strconv"

	"github.com/cursorconnect/cursorconnect/internal/store"
)

func queryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// handleHistoryList returns one page of the user's history, newest first.
func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 10)
	if limit > store.MaxPageSize {
		limit = store.MaxPageSize
	}

	items, total, err := s.store.ListInteractions(r.Context(), user.ID, page, limit)
	if err != nil {
		s.log.Error("listing history", "err", err, "user", user.ID)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	pages := (total + limit - 1) / limit
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(items),
		"total":   total,
		"pagination": map[string]any{
			"page":        page,
			"limit":       limit,
			"pages":       pages,
			"hasNextPage": page < pages,
			"hasPrevPage": page > 1 && total > 0,
		},
		"data": items,
	})
}

// handleHistoryGet returns a single interaction owned by the user.
func (s *Server) handleHistoryGet(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())

	item, err := s.store.InteractionForUser(r.Context(), r.PathValue("id"), user.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    item,
	})
}

// handleHistoryDelete removes a single interaction. A repeat delete of the
// same id reports not-found rather than a server error.
func (s *Server) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())

	if err := s.store.DeleteInteraction(r.Context(), r.PathValue("id"), user.ID); err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]any{},
	})
}

// handleHistoryDeleteAll clears the user's entire history.
func (s *Server) handleHistoryDeleteAll(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())

	deleted, err := s.store.DeleteAllInteractions(r.Context(), user.ID)
	if err != nil {
		s.log.Error("deleting history", "err", err, "user", user.ID)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]any{"deleted": deleted},
	})
}
