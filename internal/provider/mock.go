package provider

import (
	"context"
	"fmt"
	"time"
)

// Mock is a canned provider used when no API key is configured. It answers
// every prompt with a fixed notice so the full request path stays exercisable
// in development.
type Mock struct {
	model string
}

// NewMock creates a mock provider reporting the given model name.
func NewMock(model string) *Mock {
	return &Mock{model: model}
}

func (m *Mock) response(prompt string) string {
	return fmt.Sprintf("This is a mock response for: %q\n\nA real provider would answer here. Configure an API key to get actual responses.", prompt)
}

// Complete returns a canned completion after a short simulated delay.
func (m *Mock) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	text := m.response(req.Prompt)
	return &Completion{
		Text: text,
		Metadata: Metadata{
			Model:            m.model,
			Tokens:           len(req.Prompt) + len(text),
			PromptTokens:     len(req.Prompt),
			CompletionTokens: len(text),
			ProcessingMs:     100,
			IsMock:           true,
		},
	}, nil
}

// Stream re-emits the canned completion in synthesized chunks.
func (m *Mock) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	return Synthesize(ctx, m.response(req.Prompt)), nil
}
