package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"iotsvc.kr/doc-chatbot/internal/auth"
	"iotsvc.kr/doc-chatbot/internal/chat"
	"iotsvc.kr/doc-chatbot/internal/document"
	"iotsvc.kr/doc-chatbot/internal/faq"
)

type DocumentResponse struct {
	Content string `json:"content"`
	Length  int    `json:"length"`
}

func (h *APIHandler) GetDocumentHandler(w http.ResponseWriter, r *http.Request) {
	content := h.docs.Current()
	json.NewEncoder(w).Encode(DocumentResponse{Content: content, Length: len([]rune(content))})
}

type UpdateDocumentRequest struct {
	Content string `json:"content"`
}

type UpdateDocumentResponse struct {
	Cleared bool `json:"cleared"`
	Length  int  `json:"length"`
}

// UpdateDocumentHandler replaces the live document. The manager records the
// history snapshot, announces the change and rebuilds the session.
func (h *APIHandler) UpdateDocumentHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	cleared, err := h.manager.SetDocument(r.Context(), req.Content)
	if err != nil {
		// A session rebuild failure is surfaced in the chat log; only a
		// failure to persist the document itself fails the request.
		var initErr *chat.InitializationError
		var confErr *chat.ConfigurationError
		if errors.As(err, &initErr) || errors.As(err, &confErr) {
			h.logger.Warn("session rebuild after document update failed", zap.Error(err))
		} else {
			h.logger.Error("failed to persist document", zap.Error(err))
			http.Error(w, "Failed to update document", http.StatusInternalServerError)
			return
		}
	}
	json.NewEncoder(w).Encode(UpdateDocumentResponse{Cleared: cleared, Length: len([]rune(req.Content))})
}

func (h *APIHandler) GetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	history := h.docs.History()
	if history == nil {
		history = []document.Snapshot{}
	}
	json.NewEncoder(w).Encode(history)
}

// RestoreHistoryHandler returns a snapshot's content for the edit buffer.
// The live document and the active session are untouched; applying the draft
// requires an explicit document update.
func (h *APIHandler) RestoreHistoryHandler(w http.ResponseWriter, r *http.Request) {
	snapshotID := chi.URLParam(r, "snapshotID")
	snap, err := h.docs.RestoreDraft(snapshotID)
	if err != nil {
		http.Error(w, "Snapshot not found", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(DocumentResponse{Content: snap.Content, Length: snap.Length})
}

// ExportDocumentHandler downloads the live document as a UTF-8 text file.
func (h *APIHandler) ExportDocumentHandler(w http.ResponseWriter, r *http.Request) {
	content := h.docs.Current()
	if content == "" {
		http.Error(w, "No document context to export", http.StatusNotFound)
		return
	}

	filename := document.ExportFilename(time.Now())
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write([]byte(content))
}

// ImportDocumentHandler reads an uploaded UTF-8 plain-text file into the
// edit buffer. Nothing is applied until the admin submits a document update.
func (h *APIHandler) ImportDocumentHandler(w http.ResponseWriter, r *http.Request) {
	var reader io.Reader = r.Body
	if file, _, err := r.FormFile("file"); err == nil {
		defer file.Close()
		reader = file
	}

	data, err := io.ReadAll(io.LimitReader(reader, 10<<20))
	if err != nil {
		http.Error(w, "Failed to read uploaded file", http.StatusBadRequest)
		return
	}
	if !utf8.Valid(data) {
		http.Error(w, "txt 형식의 UTF-8 파일만 업로드할 수 있습니다.", http.StatusBadRequest)
		return
	}

	content := string(data)
	json.NewEncoder(w).Encode(DocumentResponse{Content: content, Length: len([]rune(content))})
}

type ShareLinkResponse struct {
	Fragment string `json:"fragment"`
}

func (h *APIHandler) GetShareLinkHandler(w http.ResponseWriter, r *http.Request) {
	fragment := h.docs.EncodeFragment()
	if fragment == "" {
		http.Error(w, "No document context to share", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(ShareLinkResponse{Fragment: fragment})
}

type ApplyShareRequest struct {
	Fragment string `json:"fragment"`
}

type ApplyShareResponse struct {
	Applied bool `json:"applied"`
}

// ApplyShareHandler installs a shared document fragment. It takes precedence
// over the persisted document; a malformed fragment silently falls back.
func (h *APIHandler) ApplyShareHandler(w http.ResponseWriter, r *http.Request) {
	var req ApplyShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	applied := h.docs.ApplyFragment(req.Fragment)
	if applied {
		if err := h.manager.Reinitialize(r.Context()); err != nil {
			h.logger.Warn("session rebuild after shared document failed", zap.Error(err))
		}
	}
	json.NewEncoder(w).Encode(ApplyShareResponse{Applied: applied})
}

type FAQRequest struct {
	Keyword string `json:"keyword"`
	Answer  string `json:"answer"`
}

func (h *APIHandler) ListFAQsHandler(w http.ResponseWriter, r *http.Request) {
	entries := h.faqs.List()
	if entries == nil {
		entries = []faq.Entry{}
	}
	json.NewEncoder(w).Encode(entries)
}

func (h *APIHandler) CreateFAQHandler(w http.ResponseWriter, r *http.Request) {
	var req FAQRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	entry, err := h.faqs.Add(req.Keyword, req.Answer)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.manager.NotifyFAQUpdated()

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(entry)
}

func (h *APIHandler) UpdateFAQHandler(w http.ResponseWriter, r *http.Request) {
	faqID := chi.URLParam(r, "faqID")

	var req FAQRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	entry, err := h.faqs.Update(faqID, req.Keyword, req.Answer)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	h.manager.NotifyFAQUpdated()
	json.NewEncoder(w).Encode(entry)
}

func (h *APIHandler) DeleteFAQHandler(w http.ResponseWriter, r *http.Request) {
	faqID := chi.URLParam(r, "faqID")

	if err := h.faqs.Delete(faqID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	h.manager.NotifyFAQUpdated()
	w.WriteHeader(http.StatusNoContent)
}

type UserView struct {
	Username  string  `json:"username"`
	Team      string  `json:"team"`
	LastLogin *string `json:"lastLogin,omitempty"`
}

type UsersResponse struct {
	Users      []UserView     `json:"users"`
	TeamCounts map[string]int `json:"teamCounts"`
}

// ListUsersHandler backs the admin user-statistics view: registered users
// (passwords withheld) and membership counts per team.
func (h *APIHandler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users := h.auth.Users()
	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, userView(u))
	}
	json.NewEncoder(w).Encode(UsersResponse{Users: views, TeamCounts: h.auth.TeamCounts()})
}

func userView(u auth.User) UserView {
	return UserView{Username: u.Username, Team: u.Team, LastLogin: u.LastLogin}
}
