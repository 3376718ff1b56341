// Package sse decodes the newline-delimited "data: {...}" wire format used
// by streaming completion APIs into incremental text fragments.
package sse

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// Done is the end-of-stream sentinel payload.
const Done = "[DONE]"

// Scanner reads "data:" payloads from a provider byte stream one at a time.
// Usage follows the bufio.Scanner pattern:
//
//	s := sse.NewScanner(r)
//	for s.Next() {
//	    payload := s.Data()
//	    // process payload
//	}
//	if err := s.Err(); err != nil { ... }
//
// Blank lines, comments and non-data fields are skipped. Line buffering is
// delegated to bufio.Scanner, so a payload split across reads is never
// delivered partially.
type Scanner struct {
	scanner  *bufio.Scanner
	data     string
	err      error
	done     bool
	sentinel bool
}

// NewScanner creates a streaming parser over the given reader.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{scanner: bufio.NewScanner(r)}
}

// Next advances to the next data payload. Returns false when the stream is
// exhausted, the Done sentinel was seen, or a read error occurred. Call
// Data() for the payload and Err() after Next returns false.
func (s *Scanner) Next() bool {
	if s.done {
		return false
	}

	for s.scanner.Scan() {
		line := s.scanner.Text()

		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == Done {
			s.done = true
			s.sentinel = true
			return false
		}

		s.data = data
		return true
	}

	s.err = s.scanner.Err()
	s.done = true
	return false
}

// Data returns the most recent payload read by Next.
func (s *Scanner) Data() string {
	return s.data
}

// Err returns the first non-EOF error encountered by the scanner.
func (s *Scanner) Err() error {
	return s.err
}

// Sentinel reports whether the scanner stopped because it saw the Done
// sentinel rather than end of input.
func (s *Scanner) Sentinel() bool {
	return s.sentinel
}

// chatChunk mirrors the chat-completions streaming frame shape. The flat
// Content field covers providers that emit {"content": "..."} directly.
type chatChunk struct {
	Content *string       `json:"content"`
	Choices []chunkChoice `json:"choices"`
}

type chunkChoice struct {
	Delta struct {
		Content *string `json:"content"`
	} `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Delta extracts the incremental text from a chunk payload. It understands
// both choices[0].delta.content and a flat content field. Returns false for
// payloads that parse but carry no text, and for malformed payloads, which
// callers must skip rather than abort on.
func Delta(data string) (string, bool) {
	var chunk chatChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return "", false
	}

	if len(chunk.Choices) > 0 {
		if c := chunk.Choices[0].Delta.Content; c != nil && *c != "" {
			return *c, true
		}
		return "", false
	}

	if chunk.Content != nil && *chunk.Content != "" {
		return *chunk.Content, true
	}
	return "", false
}
