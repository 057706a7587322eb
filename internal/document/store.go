package document

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"iotsvc.kr/doc-chatbot/internal/store"
)

// MaxHistory caps the document snapshot ring.
const MaxHistory = 10

// Snapshot is a read-only copy of a prior document version.
type Snapshot struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"` // ISO timestamp
	Content   string `json:"content"`
	Length    int    `json:"length"`
}

// Store holds the current document context and its bounded history.
// The current document is replaced wholesale, never patched.
type Store struct {
	kv     *store.KVStore
	logger *zap.Logger
}

func NewStore(kv *store.KVStore, logger *zap.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

// Current returns the live document text, empty when none is set.
func (s *Store) Current() string {
	text, _, err := s.kv.Get(store.KeyDocumentContext)
	if err != nil {
		s.logger.Warn("failed to read document context", zap.Error(err))
		return ""
	}
	return text
}

// Update replaces the live document and appends a history snapshot. The
// returned flag reports whether the document was cleared (blank content)
// rather than updated.
func (s *Store) Update(content string) (cleared bool, err error) {
	if err := s.kv.Set(store.KeyDocumentContext, content); err != nil {
		return false, fmt.Errorf("failed to persist document context: %w", err)
	}
	s.appendHistory(content)
	return isBlank(content), nil
}

// History returns the snapshot list, newest first.
func (s *Store) History() []Snapshot {
	var history []Snapshot
	if _, err := s.kv.GetJSON(store.KeyDocumentContextHistory, &history); err != nil {
		s.logger.Warn("failed to load document history, treating as empty", zap.Error(err))
		return nil
	}
	return history
}

// appendHistory records content as the newest snapshot. Blank content and
// content identical to the newest snapshot are skipped; the oldest entry is
// evicted beyond the cap.
func (s *Store) appendHistory(content string) {
	if isBlank(content) {
		return
	}
	history := s.History()
	if len(history) > 0 && history[0].Content == content {
		return
	}

	snapshot := Snapshot{
		ID:        uuid.NewString(),
		Timestamp: time.Now().Format(time.RFC3339),
		Content:   content,
		Length:    len([]rune(content)),
	}
	history = append([]Snapshot{snapshot}, history...)
	if len(history) > MaxHistory {
		history = history[:MaxHistory]
	}
	if err := s.kv.SetJSON(store.KeyDocumentContextHistory, history); err != nil {
		s.logger.Warn("failed to persist document history", zap.Error(err))
	}
}

// RestoreDraft returns a snapshot's content for the edit buffer. The live
// document is untouched; applying the draft requires an explicit Update.
func (s *Store) RestoreDraft(id string) (*Snapshot, error) {
	for _, snap := range s.History() {
		if snap.ID == id {
			return &snap, nil
		}
	}
	return nil, fmt.Errorf("snapshot %q not found", id)
}

// ExportFilename names a document download after the moment of export.
func ExportFilename(now time.Time) string {
	ts := exportTimestamp(now)
	return fmt.Sprintf("chatbot_document_context_%s.txt", ts)
}

func exportTimestamp(now time.Time) string {
	// ISO-ish: colons swapped for dashes, truncated to seconds.
	return now.UTC().Format("2006-01-02T15-04-05")
}

func isBlank(text string) bool {
	for _, r := range text {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
