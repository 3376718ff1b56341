package provider

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// chunkDelay is the pause between synthesized chunks. It exists only to give
// non-streaming transports the same incremental feel as native streams.
const chunkDelay = 40 * time.Millisecond

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+\s*`)

// SplitChunks breaks a complete response into small word- or
// sentence-bounded pieces so a non-streaming provider can still honor the
// streaming contract. Short texts come back as a single chunk.
func SplitChunks(text string) []string {
	if len(text) < 20 {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	if spans := sentenceRe.FindAllStringIndex(text, -1); len(spans) > 0 {
		var chunks []string
		end := 0
		for _, span := range spans {
			chunks = append(chunks, text[span[0]:span[1]])
			end = span[1]
		}
		// Keep any unterminated trailing fragment.
		if end < len(text) {
			chunks = append(chunks, text[end:])
		}
		return chunks
	}

	// No sentence boundaries: group words into ~30 character chunks.
	var chunks []string
	var current strings.Builder
	for _, word := range strings.Fields(text) {
		current.WriteString(word)
		current.WriteString(" ")
		if current.Len() > 30 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// Synthesize re-emits a full completion as a stream of text events followed
// by a stop event, pausing briefly between chunks. The channel is closed when
// the text is exhausted or ctx is cancelled.
func Synthesize(ctx context.Context, text string) <-chan StreamEvent {
	ch := make(chan StreamEvent)
	go func() {
		defer close(ch)
		for i, chunk := range SplitChunks(text) {
			if i > 0 {
				select {
				case <-time.After(chunkDelay):
				case <-ctx.Done():
					return
				}
			}
			select {
			case ch <- TextEvent(chunk):
			case <-ctx.Done():
				return
			}
		}
		select {
		case ch <- StopEvent():
		case <-ctx.Done():
		}
	}()
	return ch
}
