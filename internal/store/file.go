package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klubi/grokterm/pkg/chat"
)

const fileExt = ".json"

// FileStore keeps one pretty-printed JSON file per session in a directory,
// e.g. ~/.grok-terminal/context.json for the default session.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir. The directory is created
// lazily on the first Save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the file backing session.
func (f *FileStore) Path(session string) string {
	return filepath.Join(f.dir, session+fileExt)
}

// ---------- Load / Save ----------

func (f *FileStore) Load(session string) ([]chat.Message, error) {
	if err := ValidateSession(session); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(f.Path(session))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	messages, err := decodeMessages(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", f.Path(session), err)
	}
	return messages, nil
}

// Save writes to a temporary file and renames it over the old one so a
// crash mid-write never leaves a truncated context behind.
func (f *FileStore) Save(session string, messages []chat.Message) error {
	if err := ValidateSession(session); err != nil {
		return err
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	raw, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", f.dir, err)
	}

	tmp, err := os.CreateTemp(f.dir, "."+session+"-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.Path(session))
}

// ---------- List / Delete ----------

func (f *FileStore) List() ([]SessionInfo, error) {
	entries, err := os.ReadDir(f.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var infos []SessionInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != fileExt {
			continue
		}
		session := strings.TrimSuffix(name, fileExt)
		info := SessionInfo{Name: session}
		if fi, err := e.Info(); err == nil {
			info.UpdatedAt = fi.ModTime()
		}
		// Unreadable or corrupt files are still listed, with zero messages.
		if msgs, err := f.Load(session); err == nil {
			info.Messages = len(msgs)
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (f *FileStore) Delete(session string) error {
	if err := ValidateSession(session); err != nil {
		return err
	}
	err := os.Remove(f.Path(session))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

// ---------- Close ----------

func (f *FileStore) Close() error { return nil }
