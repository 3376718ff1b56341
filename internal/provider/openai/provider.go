// Package openai implements the Provider interface for OpenAI-compatible
// chat-completion APIs, with native token streaming.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cursorconnect/cursorconnect/internal/provider"
	"github.com/cursorconnect/cursorconnect/internal/provider/sse"
)

func init() {
	provider.Register("openai", func(baseURL, apiKey, model string) provider.Provider {
		return New(baseURL, apiKey, model)
	})
}

// Provider implements provider.Provider for OpenAI-compatible APIs.
type Provider struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// New creates a new OpenAI-compatible provider.
func New(baseURL, apiKey, model string) *Provider {
	return &Provider{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// apiRequest is the request body sent to the chat completions endpoint.
type apiRequest struct {
	Model       string       `json:"model"`
	Messages    []apiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature float64      `json:"temperature,omitempty"`
	Stream      bool         `json:"stream"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// apiResponse is the non-streaming response shape.
type apiResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// apiError is the error envelope returned on non-2xx responses.
type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends a blocking completion request and returns the full response
// with usage-based metadata.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (*provider.Completion, error) {
	start := time.Now()

	resp, err := p.post(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("response contained no choices")
	}

	model := parsed.Model
	if model == "" {
		model = p.model
	}

	return &provider.Completion{
		Text: parsed.Choices[0].Message.Content,
		Metadata: provider.Metadata{
			Model:            model,
			Tokens:           parsed.Usage.TotalTokens,
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			ProcessingMs:     time.Since(start).Milliseconds(),
		},
	}, nil
}

// Stream sends a streaming completion request and returns a channel of
// StreamEvents. The channel is closed when the stream ends or ctx is
// cancelled; cancelling ctx also aborts the upstream request.
func (p *Provider) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamEvent, error) {
	resp, err := p.post(ctx, req, true)
	if err != nil {
		return nil, err
	}

	ch := make(chan provider.StreamEvent)
	go p.processStream(ctx, resp.Body, ch)

	return ch, nil
}

func (p *Provider) post(ctx context.Context, req provider.CompletionRequest, stream bool) (*http.Response, error) {
	body, err := json.Marshal(p.buildRequest(req, stream))
	if err != nil {
		return nil, fmt.Errorf("building request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	client := p.client
	if stream {
		// Stream lifetime is bound to ctx, not a client timeout.
		client = &http.Client{}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, provider.Unavailable(err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		var parsed apiError
		message := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if json.Unmarshal(respBody, &parsed) == nil && parsed.Error.Message != "" {
			message = parsed.Error.Message
		}
		if resp.StatusCode >= 500 {
			return nil, provider.Unavailable(fmt.Errorf("API error %d: %s", resp.StatusCode, message))
		}
		return nil, provider.Rejected(resp.StatusCode, message)
	}

	return resp, nil
}

func (p *Provider) buildRequest(req provider.CompletionRequest, stream bool) apiRequest {
	apiReq := apiRequest{
		Model:       p.model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      stream,
	}
	if req.System != "" {
		apiReq.Messages = append(apiReq.Messages, apiMessage{Role: "system", Content: req.System})
	}
	apiReq.Messages = append(apiReq.Messages, apiMessage{Role: "user", Content: req.Prompt})
	return apiReq
}

// processStream decodes SSE payloads from the response body and forwards
// text deltas. Malformed payloads are skipped so one bad frame cannot abort
// the whole stream.
func (p *Provider) processStream(ctx context.Context, body io.ReadCloser, ch chan<- provider.StreamEvent) {
	defer close(ch)
	defer body.Close()

	scanner := sse.NewScanner(body)
	for scanner.Next() {
		if ctx.Err() != nil {
			return
		}

		text, ok := sse.Delta(scanner.Data())
		if !ok {
			continue
		}

		select {
		case ch <- provider.TextEvent(text):
		case <-ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil {
		select {
		case ch <- provider.ErrEvent(err):
		case <-ctx.Done():
		}
		return
	}
	if !scanner.Sentinel() {
		select {
		case ch <- provider.ErrEvent(fmt.Errorf("stream ended without sentinel")):
		case <-ctx.Done():
		}
		return
	}

	select {
	case ch <- provider.StopEvent():
	case <-ctx.Done():
	}
}
