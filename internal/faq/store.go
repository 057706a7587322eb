package faq

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"iotsvc.kr/doc-chatbot/internal/store"
)

// Entry maps a comma-separated keyword group to a fixed answer. Entries are
// consulted before any model call; precedence is strictly list order.
type Entry struct {
	ID        string `json:"id"`
	Keyword   string `json:"keyword"` // comma-separated keywords
	Answer    string `json:"answer"`
	CreatedAt string `json:"createdAt"` // ISO timestamp
}

// Store is the ordered FAQ list. Overlapping keywords across entries are
// permitted; the first matching entry wins, a deliberate
// simplicity-over-correctness tradeoff callers must be aware of.
type Store struct {
	kv     *store.KVStore
	logger *zap.Logger
}

func NewStore(kv *store.KVStore, logger *zap.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

func (s *Store) List() []Entry {
	var entries []Entry
	if _, err := s.kv.GetJSON(store.KeyFAQList, &entries); err != nil {
		s.logger.Warn("failed to load FAQ list, treating as empty", zap.Error(err))
		return nil
	}
	return entries
}

func (s *Store) save(entries []Entry) error {
	return s.kv.SetJSON(store.KeyFAQList, entries)
}

// Add appends a new entry at the end of the list.
func (s *Store) Add(keyword, answer string) (*Entry, error) {
	if strings.TrimSpace(keyword) == "" || strings.TrimSpace(answer) == "" {
		return nil, fmt.Errorf("keyword and answer are required")
	}
	entry := Entry{
		ID:        uuid.NewString(),
		Keyword:   keyword,
		Answer:    answer,
		CreatedAt: time.Now().Format(time.RFC3339),
	}
	entries := append(s.List(), entry)
	if err := s.save(entries); err != nil {
		return nil, fmt.Errorf("failed to persist FAQ list: %w", err)
	}
	return &entry, nil
}

// Update rewrites an entry's keyword group and answer in place, keeping its
// list position and creation time.
func (s *Store) Update(id, keyword, answer string) (*Entry, error) {
	if strings.TrimSpace(keyword) == "" || strings.TrimSpace(answer) == "" {
		return nil, fmt.Errorf("keyword and answer are required")
	}
	entries := s.List()
	for i := range entries {
		if entries[i].ID == id {
			entries[i].Keyword = keyword
			entries[i].Answer = answer
			if err := s.save(entries); err != nil {
				return nil, fmt.Errorf("failed to persist FAQ list: %w", err)
			}
			return &entries[i], nil
		}
	}
	return nil, fmt.Errorf("FAQ entry %q not found", id)
}

// Delete removes an entry by id.
func (s *Store) Delete(id string) error {
	entries := s.List()
	kept := entries[:0]
	for _, e := range entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return fmt.Errorf("FAQ entry %q not found", id)
	}
	if err := s.save(kept); err != nil {
		return fmt.Errorf("failed to persist FAQ list: %w", err)
	}
	return nil
}

// Match returns the first entry whose keyword group matches the message.
// Matching is case-insensitive substring containment of any keyword token;
// the keyword field is split on commas and blank tokens are ignored.
func (s *Store) Match(message string) *Entry {
	return MatchIn(s.List(), message)
}

// MatchIn applies the match rule to a given entry list.
func MatchIn(entries []Entry, message string) *Entry {
	lowered := strings.ToLower(message)
	for i := range entries {
		for _, token := range strings.Split(entries[i].Keyword, ",") {
			keyword := strings.ToLower(strings.TrimSpace(token))
			if keyword == "" {
				continue
			}
			if strings.Contains(lowered, keyword) {
				return &entries[i]
			}
		}
	}
	return nil
}
