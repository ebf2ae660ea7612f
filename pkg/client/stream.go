package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/klubi/grokterm/pkg/chat"
)

const maxEventSize = 1 << 20

// Stream decodes a server-sent-events body into chat chunks.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	logger  *zap.Logger
	done    bool
}

// NewStream wraps an SSE response body. The caller must Close it.
func NewStream(body io.ReadCloser, logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &Stream{body: body, scanner: scanner, logger: logger}
}

// streamEvent maps one `data:` payload of a streamed chat completion.
type streamEvent struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
			ToolCalls        []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Type     string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Recv returns the next chunk, or io.EOF when the stream is exhausted
// (either a `[DONE]` marker or closure of the body).
func (s *Stream) Recv() (chat.Chunk, error) {
	if s.done {
		return chat.Chunk{}, io.EOF
	}
	for s.scanner.Scan() {
		line := s.scanner.Text()

		// SSE format: "data: {...}" or "data:{...}"; everything else
		// (comments, event names, blank separators) is ignored.
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			s.done = true
			return chat.Chunk{}, io.EOF
		}

		var evt streamEvent
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			s.logger.Warn("skipping undecodable SSE event",
				zap.Error(err),
				zap.String("data", truncate(data, 200)),
			)
			continue
		}
		if evt.Error != nil {
			s.done = true
			return chat.Chunk{}, fmt.Errorf("stream error (%v): %s", evt.Error.Code, evt.Error.Message)
		}
		if len(evt.Choices) == 0 {
			continue
		}

		choice := evt.Choices[0]
		chunk := chat.Chunk{
			Content:      choice.Delta.Content,
			Reasoning:    choice.Delta.ReasoningContent,
			FinishReason: choice.FinishReason,
		}
		for _, tc := range choice.Delta.ToolCalls {
			chunk.ToolCalls = append(chunk.ToolCalls, chat.ToolCallDelta{
				Index:     tc.Index,
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		return chunk, nil
	}

	s.done = true
	if err := s.scanner.Err(); err != nil {
		return chat.Chunk{}, fmt.Errorf("read stream: %w", err)
	}
	return chat.Chunk{}, io.EOF
}

// Close releases the underlying response body.
func (s *Stream) Close() error {
	s.done = true
	return s.body.Close()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
