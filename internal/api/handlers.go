package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"iotsvc.kr/doc-chatbot/internal/auth"
	"iotsvc.kr/doc-chatbot/internal/chat"
	"iotsvc.kr/doc-chatbot/internal/document"
	"iotsvc.kr/doc-chatbot/internal/faq"
)

type APIHandler struct {
	auth    *auth.Service
	docs    *document.Store
	faqs    *faq.Store
	manager *chat.Manager
	logger  *zap.Logger
}

func NewAPIHandler(authService *auth.Service, docs *document.Store, faqs *faq.Store, manager *chat.Manager, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		auth:    authService,
		docs:    docs,
		faqs:    faqs,
		manager: manager,
		logger:  logger,
	}
}

// AuthMiddleware resolves the bearer token to the active session.
func (h *APIHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		sess, err := h.auth.Authenticate(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), "session", sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminOnlyMiddleware gates the admin dashboard routes.
func (h *APIHandler) AdminOnlyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		if sess == nil || !sess.IsAdmin {
			http.Error(w, "Administrator access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sessionFrom(r *http.Request) *auth.Session {
	sess, _ := r.Context().Value("session").(*auth.Session)
	return sess
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Team     string `json:"team"`
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.auth.Register(req.Username, req.Password, req.Team)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingFields):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, auth.ErrDuplicateUser):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.logger.Error("failed to register user", zap.String("username", req.Username), zap.Error(err))
			http.Error(w, "Failed to register user", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"username": user.Username, "team": user.Team})
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string        `json:"token"`
	User  *auth.Session `json:"user"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	sess, token, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrMissingFields) {
			http.Error(w, "아이디 또는 비밀번호가 올바르지 않습니다.", http.StatusUnauthorized)
			return
		}
		h.logger.Error("login failed", zap.String("username", req.Username), zap.Error(err))
		http.Error(w, "Failed to log in", http.StatusInternalServerError)
		return
	}

	// A failed session build is reported inside the chat log; login itself
	// still succeeds.
	if err := h.manager.OnLogin(r.Context()); err != nil {
		h.logger.Warn("chat session initialization on login failed", zap.Error(err))
	}

	json.NewEncoder(w).Encode(LoginResponse{Token: token, User: sess})
}

func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	h.auth.Logout()
	h.manager.OnLogout()
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) GetLoginPreferenceHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(h.auth.GetLoginPreference())
}

func (h *APIHandler) SetLoginPreferenceHandler(w http.ResponseWriter, r *http.Request) {
	var pref auth.LoginPreference
	if err := json.NewDecoder(r.Body).Decode(&pref); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.auth.SetLoginPreference(pref); err != nil {
		h.logger.Error("failed to persist login preference", zap.Error(err))
		http.Error(w, "Failed to save preference", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type StyleResponse struct {
	Style chat.Style `json:"style"`
	Label string     `json:"label"`
}

func (h *APIHandler) GetStyleHandler(w http.ResponseWriter, r *http.Request) {
	style := h.manager.Style()
	json.NewEncoder(w).Encode(StyleResponse{Style: style, Label: style.Label()})
}

type SetStyleRequest struct {
	Style chat.Style `json:"style"`
}

func (h *APIHandler) SetStyleHandler(w http.ResponseWriter, r *http.Request) {
	var req SetStyleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if !req.Style.Valid() {
		http.Error(w, "Unknown chatbot style", http.StatusBadRequest)
		return
	}

	if err := h.manager.SetStyle(r.Context(), req.Style); err != nil {
		// The rebuild failure is already surfaced in the chat log; the style
		// change itself took effect.
		h.logger.Warn("session rebuild after style change failed", zap.Error(err))
	}
	json.NewEncoder(w).Encode(StyleResponse{Style: req.Style, Label: req.Style.Label()})
}

func (h *APIHandler) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(h.manager.Settings())
}

func (h *APIHandler) SetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var settings chat.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.manager.SetSettings(r.Context(), settings); err != nil {
		h.logger.Warn("session rebuild after settings change failed", zap.Error(err))
	}
	json.NewEncoder(w).Encode(h.manager.Settings())
}
