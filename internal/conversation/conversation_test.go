package conversation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/klubi/grokterm/internal/store"
	"github.com/klubi/grokterm/pkg/chat"
)

func toolTurn(id string) []chat.Message {
	return []chat.Message{
		{
			Role: chat.RoleAssistant,
			ToolCalls: []chat.ToolCall{{
				ID:       id,
				Type:     chat.ToolTypeFunction,
				Function: chat.FunctionCall{Name: "bash", Arguments: `{"command":"ls"}`},
			}},
		},
		chat.ToolResultMessage(id, "a.txt"),
	}
}

func mustAppend(t *testing.T, l *Log, msgs ...chat.Message) {
	t.Helper()
	for _, m := range msgs {
		if err := l.Append(m); err != nil {
			t.Fatalf("unexpected error on Append: %v", err)
		}
	}
}

func TestAppendRejectsSystemAndAnonymousTool(t *testing.T) {
	l := New("sys")

	if err := l.Append(chat.SystemMessage("again")); !errors.Is(err, ErrSystemMessage) {
		t.Errorf("expected ErrSystemMessage, got %v", err)
	}
	if err := l.Append(chat.Message{Role: chat.RoleTool, Content: "x"}); !errors.Is(err, ErrMissingToolCallID) {
		t.Errorf("expected ErrMissingToolCallID, got %v", err)
	}
	if l.Len() != 0 {
		t.Errorf("expected empty log, got %d messages", l.Len())
	}
}

func TestMessagesStartWithSystem(t *testing.T) {
	l := New("be helpful")
	mustAppend(t, l, chat.UserMessage("hi"))

	msgs := l.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != chat.RoleSystem || msgs[0].Content != "be helpful" {
		t.Errorf("expected system message first, got %+v", msgs[0])
	}
	if msgs[1].Content != "hi" {
		t.Errorf("expected user message second, got %+v", msgs[1])
	}
}

func TestTruncateKeepsMostRecent(t *testing.T) {
	l := New("sys")
	for i := 0; i < 30; i++ {
		mustAppend(t, l, chat.UserMessage(fmt.Sprintf("m%d", i)))
	}

	l.Truncate(20)

	msgs := l.Messages()
	if len(msgs) != 21 {
		t.Fatalf("expected 21 messages, got %d", len(msgs))
	}
	if msgs[0].Role != chat.RoleSystem {
		t.Errorf("expected system message at position 0, got %s", msgs[0].Role)
	}
	if msgs[1].Content != "m10" || msgs[20].Content != "m29" {
		t.Errorf("expected m10..m29, got %s..%s", msgs[1].Content, msgs[20].Content)
	}
}

func TestTruncateUnderBudgetIsNoop(t *testing.T) {
	l := New("sys")
	mustAppend(t, l, chat.UserMessage("a"), chat.UserMessage("b"))
	l.Truncate(20)
	if l.Len() != 2 {
		t.Errorf("expected 2 messages, got %d", l.Len())
	}

	l.Truncate(0)
	if l.Len() != 0 {
		t.Errorf("expected empty log after Truncate(0), got %d", l.Len())
	}
	if len(l.Messages()) != 1 {
		t.Error("expected system message to survive Truncate(0)")
	}
}

func TestTruncateDropsOrphanedToolResults(t *testing.T) {
	l := New("sys")
	mustAppend(t, l, chat.UserMessage("list"))
	mustAppend(t, l, toolTurn("call_1")...)
	mustAppend(t, l, chat.Message{Role: chat.RoleAssistant, Content: "done"})

	// Window of 2 starts at the tool result; its assistant request is gone.
	l.Truncate(2)

	h := l.History()
	if len(h) != 1 {
		t.Fatalf("expected 1 message, got %d: %+v", len(h), h)
	}
	if h[0].Content != "done" {
		t.Errorf("expected final assistant message, got %+v", h[0])
	}
}

func TestPersistRestoreRoundTrip(t *testing.T) {
	s := store.NewMemoryStore()
	l := New("sys")
	mustAppend(t, l, chat.UserMessage("one"))
	mustAppend(t, l, toolTurn("call_a")...)
	mustAppend(t, l, chat.Message{Role: chat.RoleAssistant, Content: "two"})
	for i := 0; i < 5; i++ {
		mustAppend(t, l, chat.UserMessage(fmt.Sprintf("u%d", i)))
	}

	const budget = 6
	l.Truncate(budget)
	want := l.History()

	if err := l.Persist(s, "context"); err != nil {
		t.Fatalf("unexpected error on Persist: %v", err)
	}

	restored := New("other system prompt")
	restored.Restore(s, "context", budget, zap.NewNop())

	got := restored.History()
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Role != want[i].Role || got[i].Content != want[i].Content || got[i].ToolCallID != want[i].ToolCallID {
			t.Errorf("message %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
	if restored.Messages()[0].Content != "other system prompt" {
		t.Error("restore must not replace the system message")
	}
}

func TestRestoreTruncatesToBudget(t *testing.T) {
	s := store.NewMemoryStore()
	var saved []chat.Message
	for i := 0; i < 50; i++ {
		saved = append(saved, chat.UserMessage(fmt.Sprintf("m%d", i)))
	}
	if err := s.Save("context", saved); err != nil {
		t.Fatal(err)
	}

	l := New("sys")
	l.Restore(s, "context", 20, zap.NewNop())
	if l.Len() != 20 {
		t.Fatalf("expected 20 messages, got %d", l.Len())
	}
	if l.History()[0].Content != "m30" {
		t.Errorf("expected oldest kept to be m30, got %s", l.History()[0].Content)
	}
}

func TestRestoreFiltersSystemMessages(t *testing.T) {
	s := store.NewMemoryStore()
	s.SaveRaw("context", []byte(`[
		{"role":"system","content":"stale"},
		{"role":"user","content":"hi"},
		{"role":"tool","content":"orphan"}
	]`))

	l := New("sys")
	l.Restore(s, "context", 20, zap.NewNop())

	h := l.History()
	if len(h) != 1 || h[0].Content != "hi" {
		t.Errorf("expected only the user message, got %+v", h)
	}
}

func TestRestoreCorruptedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "context.json"), []byte("\x00\xffnot json at all"), 0644); err != nil {
		t.Fatal(err)
	}

	l := New("sys")
	mustAppend(t, l, chat.UserMessage("leftover"))
	l.Restore(store.NewFileStore(dir), "context", 20, zap.NewNop())

	if l.Len() != 0 {
		t.Errorf("expected empty log after corrupt restore, got %d", l.Len())
	}

	// The session keeps working afterwards.
	mustAppend(t, l, chat.UserMessage("hello"))
	if l.Len() != 1 {
		t.Errorf("expected 1 message, got %d", l.Len())
	}
}

func TestRestoreInvalidEncoding(t *testing.T) {
	dir := t.TempDir()
	raw := []byte("[{\"role\":\"user\",\"content\":\"caf\xe9 \xff\xfe\"}]")
	if err := os.WriteFile(filepath.Join(dir, "context.json"), raw, 0644); err != nil {
		t.Fatal(err)
	}

	l := New("sys")
	l.Restore(store.NewFileStore(dir), "context", 20, zap.NewNop())

	if l.Len() != 0 {
		t.Errorf("expected empty log after invalid encoding, got %+v", l.History())
	}
}

func TestRestoreMissing(t *testing.T) {
	l := New("sys")
	l.Restore(store.NewFileStore(t.TempDir()), "context", 20, zap.NewNop())
	if l.Len() != 0 {
		t.Errorf("expected empty log, got %d", l.Len())
	}
}

func TestPersistCreatesParentDirectories(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	l := New("sys")
	mustAppend(t, l, chat.UserMessage("hi"))

	if err := l.Persist(store.NewFileStore(dir), "context"); err != nil {
		t.Fatalf("unexpected error on Persist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "context.json")); err != nil {
		t.Errorf("expected context file: %v", err)
	}
}

func TestPersistFailureIsReported(t *testing.T) {
	// A regular file where the data directory should be.
	parent := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(parent, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	l := New("sys")
	if err := l.Persist(store.NewFileStore(filepath.Join(parent, "sub")), "context"); err == nil {
		t.Error("expected error when the data directory cannot be created")
	}
}
