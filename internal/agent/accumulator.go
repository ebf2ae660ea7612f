package agent

import (
	"strings"

	"github.com/klubi/grokterm/pkg/chat"
)

// maxToolCallIndex bounds the list a single delta may grow.
const maxToolCallIndex = 127

// Accumulator merges streamed chunks into one assistant turn.
//
// Tool-call deltas address a growable list by index. An index past the end
// pads the list with empty placeholders; IDs and names are fixed by their
// first non-empty fragment; argument fragments are always concatenated.
type Accumulator struct {
	content   strings.Builder
	reasoning strings.Builder
	calls     []chat.ToolCall
	finish    string
	dropped   int
}

// Add merges one chunk into the turn.
func (a *Accumulator) Add(c chat.Chunk) {
	a.content.WriteString(c.Content)
	a.reasoning.WriteString(c.Reasoning)
	if c.FinishReason != "" {
		a.finish = c.FinishReason
	}
	for _, d := range c.ToolCalls {
		a.addDelta(d)
	}
}

func (a *Accumulator) addDelta(d chat.ToolCallDelta) {
	if d.Index < 0 || d.Index > maxToolCallIndex {
		a.dropped++
		return
	}
	for len(a.calls) <= d.Index {
		a.calls = append(a.calls, chat.ToolCall{Type: chat.ToolTypeFunction})
	}
	call := &a.calls[d.Index]
	if call.ID == "" && d.ID != "" {
		call.ID = d.ID
	}
	if call.Function.Name == "" && d.Name != "" {
		call.Function.Name = d.Name
	}
	call.Function.Arguments += d.Arguments
}

// Content returns the assistant text collected so far.
func (a *Accumulator) Content() string { return a.content.String() }

// Reasoning returns the reasoning text collected so far.
func (a *Accumulator) Reasoning() string { return a.reasoning.String() }

// Dropped reports how many tool-call deltas carried an out-of-range index.
func (a *Accumulator) Dropped() int { return a.dropped }

// FinishReason returns the last finish reason reported by the stream.
func (a *Accumulator) FinishReason() string { return a.finish }

// ToolCalls returns a copy of the assembled tool calls in index order.
func (a *Accumulator) ToolCalls() []chat.ToolCall {
	if len(a.calls) == 0 {
		return nil
	}
	out := make([]chat.ToolCall, len(a.calls))
	copy(out, a.calls)
	return out
}

// Message returns the assembled assistant message.
func (a *Accumulator) Message() chat.Message {
	return chat.Message{
		Role:      chat.RoleAssistant,
		Content:   a.Content(),
		ToolCalls: a.ToolCalls(),
	}
}
