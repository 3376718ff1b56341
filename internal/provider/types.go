package provider

import "context"

// Provider defines the interface for a completion provider backing the
// generate endpoints. Complete blocks until the provider returns a full
// response; Stream returns a channel of incremental events that the caller
// must drain or cancel via ctx.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error)
}

// CompletionRequest represents a single prompt sent to a provider.
type CompletionRequest struct {
	Prompt      string
	System      string
	MaxTokens   int
	Temperature float64
}

// Completion is a full, non-streaming provider response.
type Completion struct {
	Text     string
	Metadata Metadata
}

// Metadata carries per-completion accounting. Token counts are exact where
// the provider reports usage and rough estimates otherwise.
type Metadata struct {
	Model            string `json:"model"`
	Tokens           int    `json:"tokens"`
	PromptTokens     int    `json:"promptTokens,omitempty"`
	CompletionTokens int    `json:"completionTokens,omitempty"`
	ProcessingMs     int64  `json:"processingTime"`
	IsMock           bool   `json:"isMock,omitempty"`
}

// StreamEvent represents a single event in a streaming response.
type StreamEvent struct {
	Type string
	Text string
	Err  error
}

// Stream event types.
const (
	EventText = "text_delta"
	EventStop = "stop"
	EventErr  = "error"
)

// TextEvent builds an incremental text event.
func TextEvent(text string) StreamEvent {
	return StreamEvent{Type: EventText, Text: text}
}

// StopEvent builds the terminal event of a successful stream.
func StopEvent() StreamEvent {
	return StreamEvent{Type: EventStop}
}

// ErrEvent builds the terminal event of a failed stream.
func ErrEvent(err error) StreamEvent {
	return StreamEvent{Type: EventErr, Err: err}
}
