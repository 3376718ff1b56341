package gemini

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cursorconnect/cursorconnect/internal/provider"
)

const answer = "The answer is 4. Basic arithmetic settles it."

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		w.Write([]byte(`{
			"candidates": [{"content": {"parts": [{"text": "The answer is 4. "}, {"text": "Basic arithmetic settles it."}]}}]
		}`))
	}))
}

func TestCompleteJoinsPartsAndEstimatesTokens(t *testing.T) {
	server := newUpstream(t)
	defer server.Close()

	p := New(server.URL, "test-key", "gemini-2.0-flash")

	var _ provider.Provider = p

	completion, err := p.Complete(context.Background(), provider.CompletionRequest{Prompt: "2+2?"})
	require.NoError(t, err)

	assert.Equal(t, answer, completion.Text)
	assert.Equal(t, "gemini-2.0-flash", completion.Metadata.Model)
	assert.Greater(t, completion.Metadata.Tokens, 0)
	assert.Equal(t,
		completion.Metadata.PromptTokens+completion.Metadata.CompletionTokens,
		completion.Metadata.Tokens)
}

func TestStreamSynthesizesChunks(t *testing.T) {
	server := newUpstream(t)
	defer server.Close()

	p := New(server.URL, "test-key", "gemini-2.0-flash")
	ch, err := p.Stream(context.Background(), provider.CompletionRequest{Prompt: "2+2?"})
	require.NoError(t, err)

	var text string
	var stops int
	for evt := range ch {
		switch evt.Type {
		case provider.EventText:
			text += evt.Text
		case provider.EventStop:
			stops++
		case provider.EventErr:
			t.Fatalf("unexpected error event: %v", evt.Err)
		}
	}

	assert.Equal(t, answer, text)
	assert.Equal(t, 1, stops)
}

func TestRejectedSurfacesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
	}))
	defer server.Close()

	p := New(server.URL, "bad", "gemini-2.0-flash")
	_, err := p.Complete(context.Background(), provider.CompletionRequest{Prompt: "hi"})

	pe, ok := provider.AsError(err)
	require.True(t, ok)
	assert.Equal(t, provider.KindRejected, pe.Kind)
	assert.Equal(t, http.StatusBadRequest, pe.Status)
	assert.Contains(t, pe.Message, "API key not valid")
}

func TestUnreachableIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	p := New(server.URL, "key", "gemini-2.0-flash")
	_, err := p.Stream(context.Background(), provider.CompletionRequest{Prompt: "hi"})

	pe, ok := provider.AsError(err)
	require.True(t, ok)
	assert.Equal(t, provider.KindUnavailable, pe.Kind)
}
