package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cursorconnect/cursorconnect/internal/provider/sse"
)

// StreamCallback receives the accumulated response text after every frame.
// done is true exactly once, on the terminal frame.
type StreamCallback func(accumulated string, done bool)

// streamFrame is the payload of one relay SSE frame.
type streamFrame struct {
	Content string `json:"content"`
	Error   string `json:"error"`
}

// GenerateStream submits a query on the streaming path and invokes cb with
// the accumulated text as frames arrive. Frames that fail to parse are
// logged and skipped. Cancel ctx to abort the stream; no callbacks are
// invoked after cancellation.
func (c *Client) GenerateStream(ctx context.Context, query string, cb StreamCallback) error {
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/api/generate/stream"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	// The stream outlives any client timeout; its lifetime is bound to ctx.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}

	var accumulated string
	scanner := sse.NewScanner(resp.Body)
	for scanner.Next() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var frame streamFrame
		if err := json.Unmarshal([]byte(scanner.Data()), &frame); err != nil {
			slog.Warn("skipping unparseable stream frame", "data", scanner.Data())
			continue
		}
		if frame.Error != "" {
			cb(accumulated, true)
			return fmt.Errorf("stream error: %s", frame.Error)
		}
		accumulated += frame.Content
		cb(accumulated, false)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	// Sentinel or natural end of body both complete the stream.
	cb(accumulated, true)
	return nil
}
