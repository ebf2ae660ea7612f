// Package conversation holds the ordered message log of one chat session
// and its retention policy.
package conversation

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/klubi/grokterm/internal/store"
	"github.com/klubi/grokterm/pkg/chat"
)

var (
	// ErrSystemMessage is returned when a system message is appended; the
	// system message is fixed at construction.
	ErrSystemMessage = errors.New("system message cannot be appended")

	// ErrMissingToolCallID is returned for a tool message that does not
	// reference the call it answers.
	ErrMissingToolCallID = errors.New("tool message without tool_call_id")
)

// Log is a system message followed by the ordered non-system messages of a
// conversation. It is not safe for concurrent use.
type Log struct {
	system   chat.Message
	messages []chat.Message
}

// New returns an empty log headed by the given system instruction.
func New(systemPrompt string) *Log {
	return &Log{system: chat.SystemMessage(systemPrompt)}
}

// Append adds m to the end of the log.
func (l *Log) Append(m chat.Message) error {
	switch {
	case m.Role == chat.RoleSystem:
		return ErrSystemMessage
	case m.Role == chat.RoleTool && m.ToolCallID == "":
		return ErrMissingToolCallID
	}
	l.messages = append(l.messages, m)
	return nil
}

// Messages returns the system message followed by the rest of the log, in
// the order they are sent to the endpoint.
func (l *Log) Messages() []chat.Message {
	out := make([]chat.Message, 0, len(l.messages)+1)
	out = append(out, l.system)
	return append(out, l.messages...)
}

// History returns a copy of the non-system messages.
func (l *Log) History() []chat.Message {
	return append([]chat.Message(nil), l.messages...)
}

// Len returns the number of non-system messages.
func (l *Log) Len() int { return len(l.messages) }

// Truncate keeps only the most recent limit non-system messages. Tool results
// left at the head of the window lost the assistant message that requested
// them and are dropped too. Dropped messages are gone for good.
func (l *Log) Truncate(limit int) {
	l.messages = window(l.messages, limit)
}

func window(msgs []chat.Message, limit int) []chat.Message {
	if limit < 0 {
		limit = 0
	}
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	for len(msgs) > 0 && msgs[0].Role == chat.RoleTool {
		msgs = msgs[1:]
	}
	// Copy so the backing array of the dropped prefix can be collected.
	return append([]chat.Message(nil), msgs...)
}

// Persist writes the non-system messages under session.
func (l *Log) Persist(s store.Store, session string) error {
	if err := s.Save(session, l.messages); err != nil {
		return fmt.Errorf("saving session %s: %w", session, err)
	}
	return nil
}

// Restore replaces the log with the messages stored under session, bounded
// to limit. Any failure leaves the log empty and is only logged: a missing or
// corrupt context never stops a session from starting.
func (l *Log) Restore(s store.Store, session string, limit int, logger *zap.Logger) {
	l.messages = nil

	saved, err := s.Load(session)
	if errors.Is(err, store.ErrNotFound) {
		logger.Debug("no saved context", zap.String("session", session))
		return
	}
	if err != nil {
		logger.Warn("could not load saved context, starting fresh",
			zap.String("session", session),
			zap.Error(err),
		)
		return
	}

	kept := make([]chat.Message, 0, len(saved))
	for _, m := range saved {
		if m.Role == chat.RoleSystem || (m.Role == chat.RoleTool && m.ToolCallID == "") {
			continue
		}
		kept = append(kept, m)
	}
	if len(kept) != len(saved) {
		logger.Warn("dropped invalid messages from saved context",
			zap.String("session", session),
			zap.Int("dropped", len(saved)-len(kept)),
		)
	}

	l.messages = window(kept, limit)
	logger.Debug("restored context",
		zap.String("session", session),
		zap.Int("messages", len(l.messages)),
	)
}
