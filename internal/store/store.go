// Package store persists conversation contexts.
//
// A context is addressed by session name and holds the non-system part of
// a conversation log as a JSON array of messages.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/klubi/grokterm/pkg/chat"
)

// Store is the persistence interface for conversation contexts.
type Store interface {
	// Load returns the messages saved under session.
	// Returns ErrNotFound if nothing was saved yet.
	Load(session string) ([]chat.Message, error)

	// Save replaces the messages stored under session.
	Save(session string, messages []chat.Message) error

	// List returns a summary of every stored session, ordered by name.
	List() ([]SessionInfo, error)

	// Delete removes session.
	// Returns ErrNotFound if the session does not exist.
	Delete(session string) error

	// Close releases any resources held by the store (e.g. BoltDB file handle).
	Close() error
}

// SessionInfo summarizes a stored session.
type SessionInfo struct {
	Name      string    `json:"name" yaml:"name"`
	Messages  int       `json:"messages" yaml:"messages"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Common sentinel errors.
var (
	ErrNotFound       = errors.New("session not found")
	ErrInvalidSession = errors.New("invalid session name")
	ErrInvalidUTF8    = errors.New("invalid UTF-8 in saved context")
)

// decodeMessages parses a saved message array. Invalid UTF-8 is rejected
// rather than silently replaced with U+FFFD.
func decodeMessages(raw []byte) ([]chat.Message, error) {
	if !utf8.Valid(raw) {
		return nil, ErrInvalidUTF8
	}
	var messages []chat.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// ValidateSession rejects names that could escape the data directory.
func ValidateSession(session string) error {
	if session == "" || session == "." || session == ".." || strings.ContainsAny(session, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidSession, session)
	}
	return nil
}
