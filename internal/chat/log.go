package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Log is the ordered, in-memory message sequence. Entries are kept by stable
// id so a streamed response can grow one entry in place without rebuilding
// the sequence. The log is not persisted; logout clears it.
type Log struct {
	mu      sync.Mutex
	entries []*Message
	byID    map[string]*Message
}

func NewLog() *Log {
	return &Log{byID: make(map[string]*Message)}
}

// Append adds a message at the end of the log and returns it with its
// assigned id and timestamp.
func (l *Log) Append(text string, sender Sender, category Category) *Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.append(text, sender, category)
}

func (l *Log) append(text string, sender Sender, category Category) *Message {
	msg := &Message{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    sender,
		Category:  category,
		Timestamp: time.Now(),
	}
	l.entries = append(l.entries, msg)
	l.byID[msg.ID] = msg
	return msg
}

// UpsertByCategory appends a system message, first removing any prior message
// of the same category so repeated announcements replace instead of
// accumulate.
func (l *Log) UpsertByCategory(category Category, text string) *Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.entries[:0]
	for _, msg := range l.entries {
		if msg.Category == category {
			delete(l.byID, msg.ID)
			continue
		}
		kept = append(kept, msg)
	}
	l.entries = kept
	return l.append(text, SenderSystem, category)
}

// RemoveByCategory drops every message of the given category.
func (l *Log) RemoveByCategory(category Category) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.entries[:0]
	for _, msg := range l.entries {
		if msg.Category == category {
			delete(l.byID, msg.ID)
			continue
		}
		kept = append(kept, msg)
	}
	l.entries = kept
}

// AppendToEntry concatenates a text chunk onto the entry with the given id.
func (l *Log) AppendToEntry(id, chunk string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg, ok := l.byID[id]
	if !ok {
		return false
	}
	msg.Text += chunk
	return true
}

// SetEntryText replaces the text of the entry with the given id.
func (l *Log) SetEntryText(id, text string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg, ok := l.byID[id]
	if !ok {
		return false
	}
	msg.Text = text
	return true
}

// Messages returns a snapshot of the log in insertion (= display) order.
func (l *Log) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.entries))
	for i, msg := range l.entries {
		out[i] = *msg
	}
	return out
}

// Clear empties the log.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.byID = make(map[string]*Message)
}
