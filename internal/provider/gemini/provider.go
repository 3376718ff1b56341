// Package gemini implements the Provider interface for the Gemini
// generateContent API. The API has no incremental transport here, so Stream
// fetches the full completion and re-emits it in synthesized chunks to keep
// the streaming contract uniform across providers.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cursorconnect/cursorconnect/internal/provider"
)

func init() {
	provider.Register("gemini", func(baseURL, apiKey, model string) provider.Provider {
		return New(baseURL, apiKey, model)
	})
}

// Provider implements provider.Provider for the Gemini API.
type Provider struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// New creates a new Gemini provider.
func New(baseURL, apiKey, model string) *Provider {
	return &Provider{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// apiRequest is the generateContent request body.
type apiRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

// apiResponse is the generateContent response shape.
type apiResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends a blocking generateContent request. Gemini does not report
// token usage here, so counts are estimated at four characters per token.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (*provider.Completion, error) {
	start := time.Now()

	text, err := p.generate(ctx, req)
	if err != nil {
		return nil, err
	}

	promptTokens := (len(req.Prompt) + 3) / 4
	completionTokens := (len(text) + 3) / 4

	return &provider.Completion{
		Text: text,
		Metadata: provider.Metadata{
			Model:            p.model,
			Tokens:           promptTokens + completionTokens,
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			ProcessingMs:     time.Since(start).Milliseconds(),
		},
	}, nil
}

// Stream fetches the full completion and re-emits it as synthesized chunks.
// A provider failure surfaces as a single error event so callers see the
// same event sequence as a native stream.
func (p *Provider) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamEvent, error) {
	text, err := p.generate(ctx, req)
	if err != nil {
		return nil, err
	}
	return provider.Synthesize(ctx, text), nil
}

func (p *Provider) generate(ctx context.Context, req provider.CompletionRequest) (string, error) {
	prompt := req.Prompt
	if req.System != "" {
		prompt = req.System + "\n\n" + prompt
	}

	body, err := json.Marshal(apiRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("building request body: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, p.model, p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", provider.Unavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		var parsed apiError
		message := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if json.Unmarshal(respBody, &parsed) == nil && parsed.Error.Message != "" {
			message = parsed.Error.Message
		}
		if resp.StatusCode >= 500 {
			return "", provider.Unavailable(fmt.Errorf("API error %d: %s", resp.StatusCode, message))
		}
		return "", provider.Rejected(resp.StatusCode, message)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	var texts []string
	if len(parsed.Candidates) > 0 {
		for _, pt := range parsed.Candidates[0].Content.Parts {
			texts = append(texts, pt.Text)
		}
	}
	return strings.Join(texts, ""), nil
}
