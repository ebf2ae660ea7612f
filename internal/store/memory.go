package store

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/klubi/grokterm/pkg/chat"
)

type memoryEntry struct {
	raw       []byte // JSON message array
	updatedAt time.Time
}

// MemoryStore is a thread-safe, in-memory Store backed by a simple map.
// Useful for unit tests and short-lived processes.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
}

// NewMemoryStore creates a ready-to-use in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]memoryEntry),
	}
}

// ---------- Load / Save ----------

func (m *MemoryStore) Load(session string) ([]chat.Message, error) {
	if err := ValidateSession(session); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.data[session]
	if !ok {
		return nil, ErrNotFound
	}
	return decodeMessages(entry.raw)
}

// Save stores a JSON copy so later mutation of messages by the caller does
// not leak into the store.
func (m *MemoryStore) Save(session string, messages []chat.Message) error {
	if err := ValidateSession(session); err != nil {
		return err
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	raw, err := json.Marshal(messages)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[session] = memoryEntry{raw: raw, updatedAt: time.Now()}
	return nil
}

// SaveRaw stores arbitrary bytes under session, bypassing encoding.
func (m *MemoryStore) SaveRaw(session string, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[session] = memoryEntry{raw: raw, updatedAt: time.Now()}
}

// ---------- List / Delete ----------

func (m *MemoryStore) List() ([]SessionInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(m.data))
	for name, entry := range m.data {
		info := SessionInfo{Name: name, UpdatedAt: entry.updatedAt}
		if msgs, err := decodeMessages(entry.raw); err == nil {
			info.Messages = len(msgs)
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (m *MemoryStore) Delete(session string) error {
	if err := ValidateSession(session); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[session]; !ok {
		return ErrNotFound
	}
	delete(m.data, session)
	return nil
}

// ---------- Close ----------

func (m *MemoryStore) Close() error { return nil }
