package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cursorconnect/cursorconnect/internal/config"
	"github.com/cursorconnect/cursorconnect/internal/provider"
	"github.com/cursorconnect/cursorconnect/internal/server"
	"github.com/cursorconnect/cursorconnect/internal/store"
)

// scriptProvider serves canned completions and stream events.
type scriptProvider struct {
	text   string
	events []provider.StreamEvent
	// hold keeps the stream open after the scripted events until the
	// request context is cancelled.
	hold bool
}

func (p *scriptProvider) Complete(_ context.Context, _ provider.CompletionRequest) (*provider.Completion, error) {
	return &provider.Completion{
		Text:     p.text,
		Metadata: provider.Metadata{Model: "test-model", Tokens: 7},
	}, nil
}

func (p *scriptProvider) Stream(ctx context.Context, _ provider.CompletionRequest) (<-chan provider.StreamEvent, error) {
	ch := make(chan provider.StreamEvent)
	go func() {
		defer close(ch)
		for _, ev := range p.events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
		if p.hold {
			<-ctx.Done()
		}
	}()
	return ch, nil
}

// newTestClient runs a real server over the given provider and returns a
// client pointed at it.
func newTestClient(t *testing.T, p provider.Provider) *Client {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Auth.JWTSecret = "client-test-secret"
	cfg.Server.GenerateRPM = 0

	st, err := store.NewStore("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(server.New(cfg, st, p, log).Handler())
	t.Cleanup(srv.Close)

	return New(srv.URL)
}

func register(t *testing.T, c *Client) *AuthResult {
	t.Helper()
	result, err := c.Register(context.Background(), "tester", "tester@example.com", "secret123")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	return result
}

func TestRegisterAndMe(t *testing.T) {
	c := newTestClient(t, &scriptProvider{})
	result := register(t, c)
	assert.Equal(t, "tester@example.com", result.User.Email)

	// Register installed the token, so Me works without SetToken.
	me, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, me.ID)
	assert.Equal(t, "tester", me.Username)
}

func TestLoginInvalidCredentials(t *testing.T) {
	c := newTestClient(t, &scriptProvider{})
	register(t, c)

	_, err := c.Login(context.Background(), "tester@example.com", "wrong-password")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error 401")
	assert.Contains(t, err.Error(), "Invalid credentials")
}

func TestMeWithoutToken(t *testing.T) {
	c := newTestClient(t, &scriptProvider{})
	_, err := c.Me(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error 401")
}

func TestSetToken(t *testing.T) {
	c := newTestClient(t, &scriptProvider{})
	result := register(t, c)

	fresh := New(c.baseURL)
	fresh.SetToken(result.Token)

	me, err := fresh.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, me.ID)
}

func TestGenerateAndHistory(t *testing.T) {
	c := newTestClient(t, &scriptProvider{text: "The answer is 4."})
	register(t, c)
	ctx := context.Background()

	result, err := c.Generate(ctx, "2+2?")
	require.NoError(t, err)
	assert.Equal(t, "2+2?", result.Query)
	assert.Equal(t, "The answer is 4.", result.Response)
	assert.NotEmpty(t, result.ID)
	assert.Contains(t, string(result.Metadata), "test-model")

	page, err := c.History(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Items, 1)

	item := page.Items[0]
	assert.Equal(t, result.ID, item.ID)
	assert.Equal(t, "2+2?", item.Query)
	assert.Equal(t, "The answer is 4.", item.Response)
	assert.Contains(t, string(item.Metadata), "test-model")
	assert.False(t, item.CreatedAt.IsZero())

	require.NoError(t, c.DeleteHistoryItem(ctx, result.ID))
	page, err = c.History(ctx, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestDeleteAllHistory(t *testing.T) {
	c := newTestClient(t, &scriptProvider{text: "ok"})
	register(t, c)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.Generate(ctx, fmt.Sprintf("q%d", i))
		require.NoError(t, err)
	}

	require.NoError(t, c.DeleteAllHistory(ctx))
	page, err := c.History(ctx, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestGenerateStream(t *testing.T) {
	c := newTestClient(t, &scriptProvider{events: []provider.StreamEvent{
		provider.TextEvent("The "),
		provider.TextEvent("answer is "),
		provider.TextEvent("4."),
		provider.StopEvent(),
	}})
	register(t, c)

	var snapshots []string
	var doneCount int
	err := c.GenerateStream(context.Background(), "2+2?", func(accumulated string, done bool) {
		snapshots = append(snapshots, accumulated)
		if done {
			doneCount++
		}
	})
	require.NoError(t, err)

	// One callback per frame, each with the running accumulation, plus
	// one terminal callback.
	require.Equal(t, []string{
		"The ",
		"The answer is ",
		"The answer is 4.",
		"The answer is 4.",
	}, snapshots)
	assert.Equal(t, 1, doneCount)
}

func TestGenerateStreamCallbackPerFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"content\":\"\"}\n\n")
		io.WriteString(w, "data: {\"content\":\"hi\"}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := New(srv.URL)
	var snapshots []string
	err := c.GenerateStream(context.Background(), "q", func(accumulated string, done bool) {
		snapshots = append(snapshots, accumulated)
	})
	require.NoError(t, err)

	// Every parsed frame triggers a callback, empty content included, plus
	// the terminal callback after the sentinel.
	assert.Equal(t, []string{"", "hi", "hi"}, snapshots)
}

func TestGenerateStreamError(t *testing.T) {
	c := newTestClient(t, &scriptProvider{events: []provider.StreamEvent{
		provider.TextEvent("partial "),
		provider.ErrEvent(fmt.Errorf("upstream reset")),
	}})
	register(t, c)

	var last string
	var doneCount int
	err := c.GenerateStream(context.Background(), "2+2?", func(accumulated string, done bool) {
		last = accumulated
		if done {
			doneCount++
		}
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream error")
	assert.Equal(t, "partial ", last)
	assert.Equal(t, 1, doneCount)
}

func TestGenerateStreamRejectedBeforeFrames(t *testing.T) {
	c := newTestClient(t, &scriptProvider{})
	register(t, c)

	err := c.GenerateStream(context.Background(), "", func(string, bool) {
		t.Error("no callbacks expected for a rejected request")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error 400")
}

func TestGenerateStreamCancel(t *testing.T) {
	c := newTestClient(t, &scriptProvider{
		events: []provider.StreamEvent{provider.TextEvent("first ")},
		hold:   true,
	})
	register(t, c)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.GenerateStream(ctx, "2+2?", func(accumulated string, done bool) {
			if accumulated == "first " && !done {
				cancel()
			}
		})
	}()

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after cancellation")
	}
}
