package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
	"iotsvc.kr/doc-chatbot/internal/chat"
)

type MessagesResponse struct {
	Messages []chat.Message `json:"messages"`
	Ready    bool           `json:"ready"`
}

func (h *APIHandler) GetMessagesHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(MessagesResponse{
		Messages: h.manager.Messages(),
		Ready:    h.manager.Ready(),
	})
}

type SendMessageRequest struct {
	Text string `json:"text"`
}

// SendMessageHandler streams one exchange over SSE. Each frame is a
// chat.StreamEvent JSON object; the connection closes when the exchange
// completes or fails. Submission is rejected up front when the provider
// credential is missing, since the whole chat feature is unusable then.
func (h *APIHandler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	if confErr := h.manager.ConfigError(); confErr != nil {
		http.Error(w, confErr.Reason, http.StatusServiceUnavailable)
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	emit := func(ev chat.StreamEvent) {
		payload, err := json.Marshal(ev)
		if err != nil {
			h.logger.Error("failed to marshal stream event", zap.Error(err))
			return
		}
		w.Write([]byte("data: "))
		w.Write(payload)
		w.Write([]byte("\n\n"))
		flusher.Flush()
	}

	err := h.manager.Send(r.Context(), req.Text, emit)
	if err != nil && !errors.Is(err, chat.ErrSessionNotReady) {
		// The failure was already emitted as a system message frame; nothing
		// more to send on a committed SSE response.
		h.logger.Warn("chat exchange failed", zap.Error(err))
	}
}
