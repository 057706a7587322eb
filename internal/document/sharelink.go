package document

import (
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"iotsvc.kr/doc-chatbot/internal/store"
)

// FragmentPrefix marks a share-link URL fragment carrying a document.
const FragmentPrefix = "#contextData="

// EncodeFragment renders the current document as a shareable URL fragment.
// An empty string is returned when there is no document to share.
func (s *Store) EncodeFragment() string {
	content := s.Current()
	if content == "" {
		return ""
	}
	return FragmentPrefix + url.PathEscape(content)
}

// DecodeFragment extracts the document carried by a share-link fragment.
// The leading '#' is optional.
func DecodeFragment(fragment string) (string, error) {
	trimmed := strings.TrimPrefix(fragment, "#")
	encoded, found := strings.CutPrefix(trimmed, "contextData=")
	if !found || encoded == "" {
		return "", fmt.Errorf("fragment carries no document data")
	}
	return url.PathUnescape(encoded)
}

// ApplyFragment decodes a share-link fragment and installs it as the live
// document, taking precedence over the persisted value. A malformed fragment
// is logged and skipped so the persisted document stays in effect.
func (s *Store) ApplyFragment(fragment string) (applied bool) {
	decoded, err := DecodeFragment(fragment)
	if err != nil {
		s.logger.Warn("failed to decode share fragment, keeping persisted document", zap.Error(err))
		return false
	}
	if err := s.kv.Set(store.KeyDocumentContext, decoded); err != nil {
		s.logger.Warn("failed to persist shared document", zap.Error(err))
		return false
	}
	return true
}
