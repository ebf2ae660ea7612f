package agent

import (
	"strings"
	"testing"

	"github.com/klubi/grokterm/pkg/chat"
)

func TestAccumulatorConcatenatesContent(t *testing.T) {
	var acc Accumulator
	for _, frag := range []string{"Hel", "lo, ", "", "world"} {
		acc.Add(chat.Chunk{Content: frag})
	}
	if got := acc.Content(); got != "Hello, world" {
		t.Errorf("expected %q, got %q", "Hello, world", got)
	}
	if calls := acc.ToolCalls(); calls != nil {
		t.Errorf("expected no tool calls, got %+v", calls)
	}
}

func TestAccumulatorArgumentsMatchDirectConcatenation(t *testing.T) {
	fragsA := []string{`{"file`, `path": "/tmp`, `/a.txt"}`}
	fragsB := []string{`{"com`, `mand`, `": "ls -la"`, `}`}

	var acc Accumulator
	acc.Add(chat.Chunk{ToolCalls: []chat.ToolCallDelta{
		{Index: 1, ID: "call_b", Name: "bash"},
		{Index: 0, ID: "call_a", Name: "read_file"},
	}})

	// Interleave indices while keeping per-index emission order.
	for i := 0; i < len(fragsB); i++ {
		var deltas []chat.ToolCallDelta
		deltas = append(deltas, chat.ToolCallDelta{Index: 1, Arguments: fragsB[i]})
		if i < len(fragsA) {
			deltas = append(deltas, chat.ToolCallDelta{Index: 0, Arguments: fragsA[i]})
		}
		acc.Add(chat.Chunk{ToolCalls: deltas})
	}

	calls := acc.ToolCalls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(calls))
	}
	if want := strings.Join(fragsA, ""); calls[0].Function.Arguments != want {
		t.Errorf("index 0: expected %q, got %q", want, calls[0].Function.Arguments)
	}
	if want := strings.Join(fragsB, ""); calls[1].Function.Arguments != want {
		t.Errorf("index 1: expected %q, got %q", want, calls[1].Function.Arguments)
	}
	if calls[0].ID != "call_a" || calls[0].Function.Name != "read_file" {
		t.Errorf("unexpected identity for index 0: %+v", calls[0])
	}
	if calls[1].Type != chat.ToolTypeFunction {
		t.Errorf("expected type function, got %q", calls[1].Type)
	}
}

func TestAccumulatorPadsToIndex(t *testing.T) {
	var acc Accumulator
	acc.Add(chat.Chunk{ToolCalls: []chat.ToolCallDelta{{Index: 0, ID: "first", Name: "bash", Arguments: "{}"}}})

	before := acc.ToolCalls()
	acc.Add(chat.Chunk{ToolCalls: []chat.ToolCallDelta{{Index: 3, ID: "fourth"}}})

	calls := acc.ToolCalls()
	if len(calls) != 4 {
		t.Fatalf("expected length 4 after delta at index 3, got %d", len(calls))
	}
	if calls[0] != before[0] {
		t.Errorf("existing entry altered: before %+v, after %+v", before[0], calls[0])
	}
	for i := 1; i < 3; i++ {
		if calls[i].ID != "" || calls[i].Function.Name != "" || calls[i].Function.Arguments != "" {
			t.Errorf("expected empty placeholder at %d, got %+v", i, calls[i])
		}
	}
	if calls[3].ID != "fourth" {
		t.Errorf("expected id fourth at index 3, got %q", calls[3].ID)
	}

	// A lower index never shrinks the list.
	acc.Add(chat.Chunk{ToolCalls: []chat.ToolCallDelta{{Index: 1, Arguments: "x"}}})
	if n := len(acc.ToolCalls()); n != 4 {
		t.Errorf("expected length to stay 4, got %d", n)
	}
}

func TestAccumulatorIDAndNameAreImmutable(t *testing.T) {
	var acc Accumulator
	acc.Add(chat.Chunk{ToolCalls: []chat.ToolCallDelta{{Index: 0, Arguments: `{"a":`}}})
	acc.Add(chat.Chunk{ToolCalls: []chat.ToolCallDelta{{Index: 0, ID: "call_1", Name: "git"}}})
	acc.Add(chat.Chunk{ToolCalls: []chat.ToolCallDelta{{Index: 0, ID: "call_2", Name: "pip", Arguments: `1}`}}})

	call := acc.ToolCalls()[0]
	if call.ID != "call_1" {
		t.Errorf("expected first non-empty id call_1, got %q", call.ID)
	}
	if call.Function.Name != "git" {
		t.Errorf("expected first non-empty name git, got %q", call.Function.Name)
	}
	if call.Function.Arguments != `{"a":1}` {
		t.Errorf("expected concatenated arguments, got %q", call.Function.Arguments)
	}
}

func TestAccumulatorIgnoresNegativeIndex(t *testing.T) {
	var acc Accumulator
	acc.Add(chat.Chunk{ToolCalls: []chat.ToolCallDelta{{Index: -1, ID: "bogus"}}})
	if n := len(acc.ToolCalls()); n != 0 {
		t.Errorf("expected no tool calls, got %d", n)
	}
}

func TestAccumulatorMessage(t *testing.T) {
	var acc Accumulator
	acc.Add(chat.Chunk{Content: "checking", Reasoning: "think"})
	acc.Add(chat.Chunk{ToolCalls: []chat.ToolCallDelta{{Index: 0, ID: "c", Name: "bash", Arguments: `{}`}}, FinishReason: "tool_calls"})

	msg := acc.Message()
	if msg.Role != chat.RoleAssistant || msg.Content != "checking" || len(msg.ToolCalls) != 1 {
		t.Errorf("unexpected message: %+v", msg)
	}
	if acc.Reasoning() != "think" {
		t.Errorf("expected reasoning think, got %q", acc.Reasoning())
	}
	if acc.FinishReason() != "tool_calls" {
		t.Errorf("expected finish reason tool_calls, got %q", acc.FinishReason())
	}

	// The returned slice is a copy.
	msg.ToolCalls[0].ID = "mutated"
	if acc.ToolCalls()[0].ID != "c" {
		t.Error("mutating the returned message changed accumulator state")
	}
}

func TestAccumulatorIgnoresOutOfRangeIndex(t *testing.T) {
	var acc Accumulator
	acc.Add(chat.Chunk{ToolCalls: []chat.ToolCallDelta{
		{Index: 0, ID: "call_a", Name: "bash", Arguments: "{}"},
		{Index: 1000000000, ID: "huge", Name: "bash"},
		{Index: -1, ID: "negative"},
	}})

	calls := acc.ToolCalls()
	if len(calls) != 1 || calls[0].ID != "call_a" {
		t.Errorf("expected only the in-range call, got %+v", calls)
	}
	if acc.Dropped() != 2 {
		t.Errorf("expected 2 dropped deltas, got %d", acc.Dropped())
	}

	acc.Add(chat.Chunk{ToolCalls: []chat.ToolCallDelta{{Index: maxToolCallIndex, ID: "last"}}})
	if got := len(acc.ToolCalls()); got != maxToolCallIndex+1 {
		t.Errorf("expected padding up to the cap, got %d", got)
	}
}
