package chat

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"
	"iotsvc.kr/doc-chatbot/internal/config"
	"iotsvc.kr/doc-chatbot/internal/document"
	"iotsvc.kr/doc-chatbot/internal/faq"
	"iotsvc.kr/doc-chatbot/internal/llm"
	"iotsvc.kr/doc-chatbot/internal/store"
	"iotsvc.kr/doc-chatbot/internal/utils"
)

const (
	placeholderText     = "..."
	noResponseText      = "챗봇으로부터 응답을 받지 못했습니다."
	sessionNotReadyText = "채팅 세션이 아직 준비되지 않았습니다. 잠시 후 다시 시도해주세요. 문제가 지속되면 관리자에게 문의하세요."
	missingKeyText      = "API_KEY 환경 변수가 설정되지 않았습니다. 챗봇을 사용하려면 배포 환경에서 설정해주세요."
	faqAnswerPrefix     = "FAQ 답변: "
)

// StreamEvent is one frame of a streamed exchange, in the shape the SSE
// transport forwards to the client.
type StreamEvent struct {
	Type      string   `json:"type"` // "message", "chunk" or "done"
	Message   *Message `json:"message,omitempty"`
	MessageID string   `json:"message_id,omitempty"`
	Text      string   `json:"text,omitempty"`
}

// EmitFunc receives stream events as an exchange progresses. It may be nil
// when the caller only needs the final log state.
type EmitFunc func(StreamEvent)

// Manager owns the single live chat session and keeps it consistent with the
// current (document, style, settings) triple. Every mutation goes through one
// of its Set methods, which announce the change and synchronously rebuild the
// session; there is no other path that invalidates it.
type Manager struct {
	provider llm.Provider
	confErr  *ConfigurationError
	docs     *document.Store
	faqs     *faq.Store
	kv       *store.KVStore
	budgets  config.ChatConfig
	logger   *zap.Logger

	// mu guards all mutable state and serializes exchanges: one in-flight
	// send at a time, and a rebuild never overlaps a send.
	mu       sync.Mutex
	log      *Log
	session  llm.Session
	style    Style
	settings Settings
}

// NewManager loads persisted style and settings (persisting defaults on first
// run). A nil provider marks the whole chat feature as unconfigured; every
// initialization then fails with a ConfigurationError.
func NewManager(provider llm.Provider, docs *document.Store, faqs *faq.Store, kv *store.KVStore, budgets config.ChatConfig, logger *zap.Logger) *Manager {
	m := &Manager{
		provider: provider,
		docs:     docs,
		faqs:     faqs,
		kv:       kv,
		budgets:  budgets,
		logger:   logger,
		log:      NewLog(),
		style:    DefaultStyle,
		settings: DefaultSettings(),
	}
	if provider == nil {
		m.confErr = &ConfigurationError{Reason: missingKeyText}
	}

	if raw, ok, err := kv.Get(store.KeyChatbotStyle); err == nil && ok && Style(raw).Valid() {
		m.style = Style(raw)
	} else {
		if err != nil {
			logger.Warn("failed to load persisted style, using default", zap.Error(err))
		}
		if err := kv.Set(store.KeyChatbotStyle, string(m.style)); err != nil {
			logger.Warn("failed to persist default style", zap.Error(err))
		}
	}

	var persisted Settings
	if found, err := kv.GetJSON(store.KeyAdvancedChatSettings, &persisted); err == nil && found {
		m.settings = persisted.Clamp()
	} else {
		if err != nil {
			logger.Warn("failed to load persisted settings, using defaults", zap.Error(err))
		}
		if err := kv.SetJSON(store.KeyAdvancedChatSettings, m.settings); err != nil {
			logger.Warn("failed to persist default settings", zap.Error(err))
		}
	}
	return m
}

// ConfigError reports the fatal missing-credential condition, if any.
func (m *Manager) ConfigError() *ConfigurationError {
	return m.confErr
}

// Style returns the active answer style.
func (m *Manager) Style() Style {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.style
}

// Settings returns the active generation parameters.
func (m *Manager) Settings() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// Messages returns the current chat log.
func (m *Manager) Messages() []Message {
	return m.log.Messages()
}

// Ready reports whether a live session exists.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// OnLogin starts a fresh log and session for the new user.
func (m *Manager) OnLogin(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log.Clear()
	m.session = nil
	return m.initialize(ctx)
}

// OnLogout destroys the session and the in-memory log. Document, history and
// FAQ state persist.
func (m *Manager) OnLogout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log.Clear()
	m.session = nil
}

// Reinitialize rebuilds the session against the current configuration, for
// callers that changed the document outside SetDocument (share links, seeds).
func (m *Manager) Reinitialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialize(ctx)
}

// SetStyle switches the answer style, announces it and rebuilds the session.
func (m *Manager) SetStyle(ctx context.Context, style Style) error {
	if !style.Valid() {
		return fmt.Errorf("unknown chatbot style %q", style)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.style = style
	if err := m.kv.Set(store.KeyChatbotStyle, string(style)); err != nil {
		m.logger.Warn("failed to persist style", zap.Error(err))
	}
	m.log.UpsertByCategory(CategorySystemStyleChange,
		fmt.Sprintf("챗봇 답변 스타일이 \"%s\"으로 변경되었습니다. 새로운 스타일로 채팅 세션을 다시 초기화합니다.", style.Label()))
	return m.initialize(ctx)
}

// SetSettings clamps and persists the generation parameters, announces the
// change and rebuilds the session.
func (m *Manager) SetSettings(ctx context.Context, settings Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = settings.Clamp()
	if err := m.kv.SetJSON(store.KeyAdvancedChatSettings, m.settings); err != nil {
		m.logger.Warn("failed to persist settings", zap.Error(err))
	}
	m.log.UpsertByCategory(CategorySystemSettingsChange,
		"챗봇 고급 설정이 변경되었습니다. 새로운 설정으로 채팅 세션을 다시 초기화합니다.")
	return m.initialize(ctx)
}

// SetDocument replaces the document context wholesale, records a history
// snapshot, announces updated vs cleared, and rebuilds the session.
func (m *Manager) SetDocument(ctx context.Context, content string) (cleared bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cleared, err = m.docs.Update(content)
	if err != nil {
		return false, err
	}

	text := fmt.Sprintf("관리자에 의해 문서가 업데이트되었습니다. (새 문서 길이: %d자). 새로운 내용으로 채팅 세션을 다시 초기화합니다.", len([]rune(content)))
	if cleared {
		text = "관리자에 의해 문서가 삭제되었습니다. 이제 챗봇은 일반 지식으로 답변합니다. 채팅 세션을 다시 초기화합니다."
	}
	m.log.UpsertByCategory(CategorySystemDocUpdate, text)
	return cleared, m.initialize(ctx)
}

// NotifyFAQUpdated announces an FAQ list change. No rebuild is needed; the
// FAQ check runs per message against the stored list.
func (m *Manager) NotifyFAQUpdated() {
	m.log.UpsertByCategory(CategorySystemFAQUpdate,
		"FAQ 목록이 업데이트되었습니다. 다음 메시지부터 적용됩니다.")
}

// initialize rebuilds the provider session from the current configuration.
// Callers must hold m.mu.
func (m *Manager) initialize(ctx context.Context) error {
	if m.confErr != nil {
		m.session = nil
		return m.confErr
	}

	doc := m.docs.Current()
	truncated := utils.TruncateForModel(doc, m.budgets.DocumentTokenBudget, m.budgets.CharsPerToken)

	cfg := llm.SessionConfig{
		SystemInstruction: BuildInstruction(m.style, truncated),
		Temperature:       m.settings.Temperature,
		TopK:              m.settings.TopK,
		TopP:              m.settings.TopP,
		MaxOutputTokens:   m.settings.MaxOutputTokens,
	}

	session, err := m.provider.StartSession(ctx, cfg)
	if err != nil {
		m.session = nil
		m.log.UpsertByCategory(CategorySystemError, fmt.Sprintf("채팅 초기화 오류: %v", err))
		m.logger.Error("chat session initialization failed", zap.Error(err))
		return &InitializationError{Err: err}
	}
	m.session = session

	docInfo := "(현재 제공된 문서 없음)"
	precedence := "일반 지식을 기반으로 답변합니다."
	if strings.TrimSpace(doc) != "" {
		docInfo = fmt.Sprintf("(현재 문서 길이: %d자)", len([]rune(doc)))
		precedence = "제공된 문서 내용을 기반으로 답변하거나, 관련 정보가 없을 시 일반 지식으로 답변합니다."
	}
	m.log.UpsertByCategory(CategorySystemInit,
		fmt.Sprintf("채팅 세션이 시작되었습니다. 현재 스타일: \"%s\". 고급 설정 적용됨. %s %s", m.style.Label(), precedence, docInfo))

	m.logger.Info("chat session initialized",
		zap.String("style", string(m.style)),
		zap.Int("document_chars", len([]rune(doc))))
	return nil
}

// Send routes one outgoing user message: FAQ short-circuit first, then the
// live session with a streamed response. The exchange lock is held until the
// stream finishes or fails; there is no mid-stream cancellation.
func (m *Manager) Send(ctx context.Context, text string, emit EmitFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	truncated := utils.TruncateForModel(text, m.budgets.MessageTokenBudget, m.budgets.CharsPerToken)
	if strings.TrimSpace(truncated) == "" {
		return nil
	}

	// FAQ short-circuit: a keyword hit answers without the model and without
	// requiring a session.
	if entry := m.faqs.Match(truncated); entry != nil {
		userMsg := m.log.Append(truncated, SenderUser, CategoryUserText)
		botMsg := m.log.Append(faqAnswerPrefix+entry.Answer, SenderBot, CategoryBotText)
		m.emit(emit, StreamEvent{Type: "message", Message: userMsg})
		m.emit(emit, StreamEvent{Type: "message", Message: botMsg})
		m.emit(emit, StreamEvent{Type: "done", MessageID: botMsg.ID, Text: botMsg.Text})
		return nil
	}

	if m.session == nil {
		msg := m.log.UpsertByCategory(CategorySystemError, sessionNotReadyText)
		m.emit(emit, StreamEvent{Type: "message", Message: msg})
		return ErrSessionNotReady
	}

	userMsg := m.log.Append(truncated, SenderUser, CategoryUserText)
	m.emit(emit, StreamEvent{Type: "message", Message: userMsg})

	placeholder := m.log.Append(placeholderText, SenderBot, CategoryBotText)
	m.emit(emit, StreamEvent{Type: "message", Message: placeholder})

	stream, err := m.session.SendStream(ctx, truncated)
	if err != nil {
		return m.sendFailure(emit, err)
	}

	var accumulated strings.Builder
	for {
		chunk, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			// The placeholder keeps its last partial text.
			return m.sendFailure(emit, err)
		}
		if chunk == "" {
			continue
		}
		accumulated.WriteString(chunk)
		m.log.SetEntryText(placeholder.ID, accumulated.String())
		m.emit(emit, StreamEvent{Type: "chunk", MessageID: placeholder.ID, Text: chunk})
	}

	final := strings.TrimSpace(accumulated.String())
	if final == "" {
		final = noResponseText
	}
	m.log.SetEntryText(placeholder.ID, final)
	m.emit(emit, StreamEvent{Type: "done", MessageID: placeholder.ID, Text: final})
	return nil
}

func (m *Manager) sendFailure(emit EmitFunc, err error) error {
	msg := m.log.UpsertByCategory(CategorySystemError, fmt.Sprintf("AI와 통신 중 오류 발생: %v", err))
	m.emit(emit, StreamEvent{Type: "message", Message: msg})
	m.logger.Error("message send failed", zap.Error(err))
	return &SendError{Err: err}
}

func (m *Manager) emit(emit EmitFunc, ev StreamEvent) {
	if emit != nil {
		emit(ev)
	}
}
