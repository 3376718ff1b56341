package provider

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitChunksEmpty(t *testing.T) {
	assert.Nil(t, SplitChunks(""))
}

func TestSplitChunksShortTextSingleChunk(t *testing.T) {
	chunks := SplitChunks("tiny answer")
	assert.Equal(t, []string{"tiny answer"}, chunks)
}

func TestSplitChunksSentences(t *testing.T) {
	text := "The answer is four. That follows from basic arithmetic. Nothing more to add!"
	chunks := SplitChunks(text)

	require.Greater(t, len(chunks), 1)
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestSplitChunksWordsWithoutSentences(t *testing.T) {
	text := strings.Repeat("word ", 30)
	chunks := SplitChunks(text)

	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 40)
	}
	assert.Equal(t, strings.TrimRight(text, " "), strings.TrimRight(strings.Join(chunks, ""), " "))
}

func TestSynthesizeEmitsTextThenStop(t *testing.T) {
	ch := Synthesize(context.Background(), "First sentence here. Second sentence here.")

	var events []StreamEvent
	for evt := range ch {
		events = append(events, evt)
	}

	require.NotEmpty(t, events)
	assert.Equal(t, EventStop, events[len(events)-1].Type)

	var text strings.Builder
	for _, evt := range events[:len(events)-1] {
		require.Equal(t, EventText, evt.Type)
		text.WriteString(evt.Text)
	}
	assert.Equal(t, "First sentence here. Second sentence here.", text.String())
}

func TestSynthesizeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := Synthesize(ctx, strings.Repeat("A long sentence that produces many chunks. ", 10))

	// Take one event, then abandon the stream.
	<-ch
	cancel()

	for range ch {
	}
}
