package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cursorconnect/cursorconnect/internal/provider"
)

// doneFrame is the terminal sentinel sent downstream.
const doneFrame = "data: [DONE]\n\n"

// handleGenerateStream relays one upstream provider stream to one downstream
// SSE connection. Each text event is forwarded as its own frame in arrival
// order and accumulated; when the upstream stops cleanly the accumulated
// text is persisted in the background. An upstream error produces a generic
// error frame and discards the partial accumulation, so only fully
// terminated streams are recorded. A downstream disconnect cancels the
// upstream request via the request context.
func (s *Server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
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

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, err := s.provider.Stream(ctx, completionRequest(in.Query))
	if err != nil {
		// Headers are still unsent, so the failure maps to a plain
		// HTTP status instead of an in-band frame.
		s.writeProviderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	start := time.Now()
	var accumulated strings.Builder

	for event := range events {
		switch event.Type {
		case provider.EventText:
			accumulated.WriteString(event.Text)
			writeFrame(w, map[string]string{"content": event.Text})
			flusher.Flush()

		case provider.EventErr:
			s.log.Error("upstream stream error", "err", event.Err, "user", user.ID)
			writeFrame(w, map[string]string{"error": "An error occurred"})
			flusher.Flush()
			return

		case provider.EventStop:
			io.WriteString(w, doneFrame)
			flusher.Flush()
			s.persistInteraction(user.ID, in.Query, accumulated.String(), time.Since(start))
			return
		}
	}
	// Channel closed without a terminal event: the client went away and
	// the upstream was cancelled. Nothing is persisted.
}

// writeFrame serializes one SSE data frame.
func writeFrame(w io.Writer, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// persistInteraction records a completed stream in the background. The
// downstream connection has already been told the stream ended, so failures
// here are logged and otherwise dropped.
func (s *Server) persistInteraction(userID, query, response string, elapsed time.Duration) {
	if response == "" || userID == "" {
		return
	}

	metadata, err := json.Marshal(provider.Metadata{
		Model:        s.streamModel(),
		Tokens:       s.estimateTokens(response),
		ProcessingMs: elapsed.Milliseconds(),
	})
	if err != nil {
		metadata = json.RawMessage(`{}`)
	}

	s.persistWG.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		if _, err := s.store.InsertInteraction(ctx, userID, query, response, metadata); err != nil {
			s.log.Error("persisting interaction", "err", err, "user", userID)
		}
	})
}

// estimateTokens approximates usage for streamed responses, which carry no
// usage counters. Gemini counts roughly four characters per token; the
// chat-completion providers average 1.3 tokens per word.
func (s *Server) estimateTokens(response string) int {
	if s.cfg.Provider.Default == "gemini" {
		return (len(response) + 3) / 4
	}
	return int(float64(len(strings.Fields(response))) * 1.3)
}

// streamModel names the model for stream metadata, where the provider does
// not echo it back.
func (s *Server) streamModel() string {
	switch s.cfg.Provider.Default {
	case "gemini":
		return s.cfg.Provider.Gemini.Model
	default:
		return s.cfg.Provider.OpenAI.Model
	}
}
