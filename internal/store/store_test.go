package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	bolt "go.etcd.io/bbolt"

	"github.com/klubi/grokterm/pkg/chat"
)

// backends returns a fresh instance of every Store implementation.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	dir := t.TempDir()
	bs, err := NewBoltStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("unexpected error opening bolt store: %v", err)
	}
	t.Cleanup(func() { bs.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   NewFileStore(filepath.Join(dir, "contexts")),
		"bolt":   bs,
	}
}

func sampleConversation() []chat.Message {
	return []chat.Message{
		chat.UserMessage("list files"),
		{
			Role: chat.RoleAssistant,
			ToolCalls: []chat.ToolCall{{
				ID:   "call_1",
				Type: chat.ToolTypeFunction,
				Function: chat.FunctionCall{
					Name:      "list_directory",
					Arguments: `{"dirpath":"."}`,
				},
			}},
		},
		chat.ToolResultMessage("call_1", "Contents of .:\n  [FILE] a.txt (3 bytes)"),
		{Role: chat.RoleAssistant, Content: "There is one file."},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			want := sampleConversation()
			if err := s.Save("context", want); err != nil {
				t.Fatalf("unexpected error on Save: %v", err)
			}

			got, err := s.Load("context")
			if err != nil {
				t.Fatalf("unexpected error on Load: %v", err)
			}
			if len(got) != len(want) {
				t.Fatalf("expected %d messages, got %d", len(want), len(got))
			}
			for i := range want {
				if got[i].Role != want[i].Role || got[i].Content != want[i].Content || got[i].ToolCallID != want[i].ToolCallID {
					t.Errorf("message %d: expected %+v, got %+v", i, want[i], got[i])
				}
			}
			if len(got[1].ToolCalls) != 1 || got[1].ToolCalls[0].Function.Arguments != `{"dirpath":"."}` {
				t.Errorf("tool call not preserved: %+v", got[1].ToolCalls)
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Load("nope"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestSaveOverwrites(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Save("context", sampleConversation()); err != nil {
				t.Fatalf("unexpected error on Save: %v", err)
			}
			if err := s.Save("context", []chat.Message{chat.UserMessage("hi")}); err != nil {
				t.Fatalf("unexpected error on second Save: %v", err)
			}
			got, err := s.Load("context")
			if err != nil {
				t.Fatalf("unexpected error on Load: %v", err)
			}
			if len(got) != 1 || got[0].Content != "hi" {
				t.Errorf("expected single overwritten message, got %+v", got)
			}
		})
	}
}

func TestSaveNilIsEmptyArray(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Save("empty", nil); err != nil {
				t.Fatalf("unexpected error on Save: %v", err)
			}
			got, err := s.Load("empty")
			if err != nil {
				t.Fatalf("unexpected error on Load: %v", err)
			}
			if len(got) != 0 {
				t.Errorf("expected no messages, got %d", len(got))
			}
		})
	}
}

func TestListAndDelete(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Save("beta", []chat.Message{chat.UserMessage("b")}); err != nil {
				t.Fatal(err)
			}
			if err := s.Save("alpha", sampleConversation()); err != nil {
				t.Fatal(err)
			}

			infos, err := s.List()
			if err != nil {
				t.Fatalf("unexpected error on List: %v", err)
			}
			if len(infos) != 2 {
				t.Fatalf("expected 2 sessions, got %d", len(infos))
			}
			if infos[0].Name != "alpha" || infos[1].Name != "beta" {
				t.Errorf("expected sessions sorted by name, got %s, %s", infos[0].Name, infos[1].Name)
			}
			if infos[0].Messages != 4 {
				t.Errorf("expected 4 messages in alpha, got %d", infos[0].Messages)
			}
			if infos[0].UpdatedAt.IsZero() {
				t.Error("expected UpdatedAt to be set")
			}

			if err := s.Delete("alpha"); err != nil {
				t.Fatalf("unexpected error on Delete: %v", err)
			}
			if err := s.Delete("alpha"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound on second Delete, got %v", err)
			}
			if _, err := s.Load("alpha"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound after Delete, got %v", err)
			}

			infos, _ = s.List()
			if len(infos) != 1 {
				t.Errorf("expected 1 session after Delete, got %d", len(infos))
			}
		})
	}
}

func TestInvalidSessionNames(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, bad := range []string{"", ".", "..", "../escape", `a\b`} {
				if err := s.Save(bad, nil); !errors.Is(err, ErrInvalidSession) {
					t.Errorf("Save(%q): expected ErrInvalidSession, got %v", bad, err)
				}
				if _, err := s.Load(bad); !errors.Is(err, ErrInvalidSession) {
					t.Errorf("Load(%q): expected ErrInvalidSession, got %v", bad, err)
				}
			}
		})
	}
}

func TestFileStoreLayout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	s := NewFileStore(dir)

	if err := s.Save("context", []chat.Message{chat.UserMessage("hi")}); err != nil {
		t.Fatalf("unexpected error on Save: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "context.json"))
	if err != nil {
		t.Fatalf("expected context.json to exist: %v", err)
	}
	if raw[0] != '[' {
		t.Errorf("expected a JSON array, got %q", raw)
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected exactly one file, got %d", len(entries))
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "context.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	s := NewFileStore(dir)

	_, err := s.Load("context")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected decode error, got %v", err)
	}

	infos, err := s.List()
	if err != nil {
		t.Fatalf("unexpected error on List: %v", err)
	}
	if len(infos) != 1 || infos[0].Messages != 0 {
		t.Errorf("expected corrupt session listed with 0 messages, got %+v", infos)
	}
}

// invalidUTF8Context is well-formed JSON whose strings are not valid UTF-8.
var invalidUTF8Context = []byte("[{\"role\":\"user\",\"content\":\"caf\xe9 \xff\xfe\"}]")

func TestLoadRejectsInvalidUTF8(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "context.json"), invalidUTF8Context, 0644); err != nil {
		t.Fatal(err)
	}

	b, err := NewBoltStore(filepath.Join(t.TempDir(), "grokterm.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(contextBucket).Put([]byte("context"), invalidUTF8Context)
	}); err != nil {
		t.Fatal(err)
	}

	m := NewMemoryStore()
	m.SaveRaw("context", invalidUTF8Context)

	for name, s := range map[string]Store{"file": NewFileStore(dir), "bolt": b, "memory": m} {
		t.Run(name, func(t *testing.T) {
			msgs, err := s.Load("context")
			if !errors.Is(err, ErrInvalidUTF8) {
				t.Errorf("expected ErrInvalidUTF8, got %v (messages %+v)", err, msgs)
			}
			infos, err := s.List()
			if err != nil {
				t.Fatalf("unexpected error on List: %v", err)
			}
			if len(infos) != 1 || infos[0].Messages != 0 {
				t.Errorf("expected session listed with 0 messages, got %+v", infos)
			}
		})
	}
}

func TestFileStoreListMissingDir(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "absent"))
	infos, err := s.List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("expected no sessions, got %d", len(infos))
	}
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grokterm.db")

	s, err := NewBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save("context", sampleConversation()); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = NewBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	got, err := s.Load("context")
	if err != nil {
		t.Fatalf("unexpected error after reopen: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("expected 4 messages after reopen, got %d", len(got))
	}
}

func TestMemoryStoreCopiesOnSave(t *testing.T) {
	s := NewMemoryStore()
	msgs := []chat.Message{chat.UserMessage("original")}
	if err := s.Save("context", msgs); err != nil {
		t.Fatal(err)
	}
	msgs[0].Content = "mutated"

	got, _ := s.Load("context")
	if got[0].Content != "original" {
		t.Errorf("store shares memory with caller: %q", got[0].Content)
	}
}
