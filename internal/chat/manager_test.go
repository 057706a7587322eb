package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"iotsvc.kr/doc-chatbot/internal/config"
	"iotsvc.kr/doc-chatbot/internal/document"
	"iotsvc.kr/doc-chatbot/internal/faq"
	"iotsvc.kr/doc-chatbot/internal/llm"
	"iotsvc.kr/doc-chatbot/internal/store"
)

type fakeStream struct {
	chunks []string
	err    error
	i      int
}

func (s *fakeStream) Next() (string, error) {
	if s.i < len(s.chunks) {
		c := s.chunks[s.i]
		s.i++
		return c, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

type fakeSession struct {
	chunks    []string
	streamErr error
	sendErr   error
	sent      []string
}

func (s *fakeSession) SendStream(_ context.Context, text string) (llm.Stream, error) {
	s.sent = append(s.sent, text)
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	return &fakeStream{chunks: s.chunks, err: s.streamErr}, nil
}

type fakeProvider struct {
	session    *fakeSession
	startErr   error
	startCalls int
	lastCfg    llm.SessionConfig
}

func (p *fakeProvider) StartSession(_ context.Context, cfg llm.SessionConfig) (llm.Session, error) {
	p.startCalls++
	p.lastCfg = cfg
	if p.startErr != nil {
		return nil, p.startErr
	}
	return p.session, nil
}

func (p *fakeProvider) Close() error { return nil }

type managerFixture struct {
	manager  *Manager
	provider *fakeProvider
	session  *fakeSession
	docs     *document.Store
	faqs     *faq.Store
	kv       *store.KVStore
}

func newFixture(t *testing.T, budgets config.ChatConfig) *managerFixture {
	t.Helper()
	kv, err := store.NewKVStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	nop := zap.NewNop()
	session := &fakeSession{chunks: []string{"기본 응답"}}
	provider := &fakeProvider{session: session}
	docs := document.NewStore(kv, nop)
	faqs := faq.NewStore(kv, nop)
	m := NewManager(provider, docs, faqs, kv, budgets, nop)
	return &managerFixture{manager: m, provider: provider, session: session, docs: docs, faqs: faqs, kv: kv}
}

func defaultBudgets() config.ChatConfig {
	return config.ChatConfig{DocumentTokenBudget: 32000, MessageTokenBudget: 2000, CharsPerToken: 2}
}

func byCategory(msgs []Message, c Category) []Message {
	var out []Message
	for _, m := range msgs {
		if m.Category == c {
			out = append(out, m)
		}
	}
	return out
}

func TestOnLoginInitializesSession(t *testing.T) {
	f := newFixture(t, defaultBudgets())

	require.NoError(t, f.manager.OnLogin(context.Background()))
	assert.True(t, f.manager.Ready())
	assert.Equal(t, 1, f.provider.startCalls)

	inits := byCategory(f.manager.Messages(), CategorySystemInit)
	require.Len(t, inits, 1)
	assert.Contains(t, inits[0].Text, "채팅 세션이 시작되었습니다")
	assert.Contains(t, inits[0].Text, DefaultStyle.Label())
	assert.Contains(t, inits[0].Text, "현재 제공된 문서 없음")
}

func TestInitAnnouncementReportsDocumentLength(t *testing.T) {
	f := newFixture(t, defaultBudgets())
	_, err := f.docs.Update("한글문서입니다")
	require.NoError(t, err)

	require.NoError(t, f.manager.OnLogin(context.Background()))

	inits := byCategory(f.manager.Messages(), CategorySystemInit)
	require.Len(t, inits, 1)
	assert.Contains(t, inits[0].Text, "현재 문서 길이: 7자")
	assert.Contains(t, inits[0].Text, "제공된 문서 내용을 기반으로")
}

func TestFAQShortCircuitSkipsModel(t *testing.T) {
	f := newFixture(t, defaultBudgets())
	require.NoError(t, f.manager.OnLogin(context.Background()))
	_, err := f.faqs.Add("휴가", "인사팀에 문의하세요.")
	require.NoError(t, err)

	var events []StreamEvent
	err = f.manager.Send(context.Background(), "휴가 신청은 어떻게 하나요?", func(ev StreamEvent) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	// The answer comes from the FAQ list; the model is never consulted.
	assert.Empty(t, f.session.sent)

	bots := byCategory(f.manager.Messages(), CategoryBotText)
	require.Len(t, bots, 1)
	assert.Equal(t, "FAQ 답변: 인사팀에 문의하세요.", bots[0].Text)

	require.Len(t, events, 3)
	assert.Equal(t, "message", events[0].Type)
	assert.Equal(t, "message", events[1].Type)
	assert.Equal(t, "done", events[2].Type)
}

func TestFAQWorksWithoutSession(t *testing.T) {
	f := newFixture(t, defaultBudgets())
	_, err := f.faqs.Add("vpn", "포털에서 신청하세요.")
	require.NoError(t, err)

	// No OnLogin: no session exists, yet the FAQ still answers.
	err = f.manager.Send(context.Background(), "VPN 접속이 안돼요", nil)
	require.NoError(t, err)

	bots := byCategory(f.manager.Messages(), CategoryBotText)
	require.Len(t, bots, 1)
	assert.Equal(t, "FAQ 답변: 포털에서 신청하세요.", bots[0].Text)
}

func TestSendStreamsAndTrims(t *testing.T) {
	f := newFixture(t, defaultBudgets())
	require.NoError(t, f.manager.OnLogin(context.Background()))
	f.session.chunks = []string{"안녕", "하세요", " \n"}

	var chunks []string
	var done string
	err := f.manager.Send(context.Background(), "인사해줘", func(ev StreamEvent) {
		switch ev.Type {
		case "chunk":
			chunks = append(chunks, ev.Text)
		case "done":
			done = ev.Text
		}
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"안녕", "하세요", " \n"}, chunks)
	assert.Equal(t, "안녕하세요", done)

	bots := byCategory(f.manager.Messages(), CategoryBotText)
	require.Len(t, bots, 1)
	assert.Equal(t, "안녕하세요", bots[0].Text)
	assert.Equal(t, []string{"인사해줘"}, f.session.sent)
}

func TestSendEmptyStreamFallsBack(t *testing.T) {
	f := newFixture(t, defaultBudgets())
	require.NoError(t, f.manager.OnLogin(context.Background()))
	f.session.chunks = nil

	require.NoError(t, f.manager.Send(context.Background(), "질문", nil))

	bots := byCategory(f.manager.Messages(), CategoryBotText)
	require.Len(t, bots, 1)
	assert.Equal(t, "챗봇으로부터 응답을 받지 못했습니다.", bots[0].Text)
}

func TestSendBlankMessageIsNoOp(t *testing.T) {
	f := newFixture(t, defaultBudgets())
	require.NoError(t, f.manager.OnLogin(context.Background()))

	called := false
	require.NoError(t, f.manager.Send(context.Background(), "   \n\t", func(StreamEvent) { called = true }))
	assert.False(t, called)
	assert.Empty(t, byCategory(f.manager.Messages(), CategoryUserText))
}

func TestSendTruncatesLongMessage(t *testing.T) {
	budgets := defaultBudgets()
	budgets.MessageTokenBudget = 3 // 6 chars at 2 chars per token
	f := newFixture(t, budgets)
	require.NoError(t, f.manager.OnLogin(context.Background()))

	require.NoError(t, f.manager.Send(context.Background(), "abcdefghij", nil))

	require.Len(t, f.session.sent, 1)
	assert.Equal(t, "abcdef", f.session.sent[0])
}

func TestSendWithoutSessionReportsNotReady(t *testing.T) {
	f := newFixture(t, defaultBudgets())

	err := f.manager.Send(context.Background(), "질문입니다", nil)
	assert.ErrorIs(t, err, ErrSessionNotReady)

	errs := byCategory(f.manager.Messages(), CategorySystemError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Text, "채팅 세션이 아직 준비되지 않았습니다")

	// A second attempt does not stack a duplicate banner.
	_ = f.manager.Send(context.Background(), "또 질문", nil)
	assert.Len(t, byCategory(f.manager.Messages(), CategorySystemError), 1)
}

func TestSendFailureKeepsPartialText(t *testing.T) {
	f := newFixture(t, defaultBudgets())
	require.NoError(t, f.manager.OnLogin(context.Background()))
	f.session.chunks = []string{"부분 "}
	f.session.streamErr = errors.New("connection reset")

	err := f.manager.Send(context.Background(), "질문", nil)
	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)

	bots := byCategory(f.manager.Messages(), CategoryBotText)
	require.Len(t, bots, 1)
	assert.Equal(t, "부분 ", bots[0].Text)

	errs := byCategory(f.manager.Messages(), CategorySystemError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Text, "AI와 통신 중 오류 발생")
	assert.Contains(t, errs[0].Text, "connection reset")
}

func TestSendRequestFailure(t *testing.T) {
	f := newFixture(t, defaultBudgets())
	require.NoError(t, f.manager.OnLogin(context.Background()))
	f.session.sendErr = errors.New("quota exceeded")

	err := f.manager.Send(context.Background(), "질문", nil)
	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)

	// The placeholder stays at "..." since no chunk ever arrived.
	bots := byCategory(f.manager.Messages(), CategoryBotText)
	require.Len(t, bots, 1)
	assert.Equal(t, "...", bots[0].Text)
}

func TestSetStyleRebuildsWithNewInstruction(t *testing.T) {
	f := newFixture(t, defaultBudgets())
	require.NoError(t, f.manager.OnLogin(context.Background()))
	before := f.provider.lastCfg.SystemInstruction

	require.NoError(t, f.manager.SetStyle(context.Background(), StyleStructuredOutline))

	assert.Equal(t, 2, f.provider.startCalls)
	assert.NotEqual(t, before, f.provider.lastCfg.SystemInstruction)
	assert.Equal(t, BuildInstruction(StyleStructuredOutline, ""), f.provider.lastCfg.SystemInstruction)

	changes := byCategory(f.manager.Messages(), CategorySystemStyleChange)
	require.Len(t, changes, 1)
	assert.Contains(t, changes[0].Text, "구조화된 개요 답변")

	// The style survives a manager restart.
	restarted := NewManager(f.provider, f.docs, f.faqs, f.kv, defaultBudgets(), zap.NewNop())
	assert.Equal(t, StyleStructuredOutline, restarted.Style())
}

func TestSetStyleRejectsUnknown(t *testing.T) {
	f := newFixture(t, defaultBudgets())
	require.NoError(t, f.manager.OnLogin(context.Background()))

	assert.Error(t, f.manager.SetStyle(context.Background(), Style("bogus")))
	assert.Equal(t, DefaultStyle, f.manager.Style())
	assert.Equal(t, 1, f.provider.startCalls)
}

func TestSetSettingsClampsAndRebuilds(t *testing.T) {
	f := newFixture(t, defaultBudgets())
	require.NoError(t, f.manager.OnLogin(context.Background()))

	require.NoError(t, f.manager.SetSettings(context.Background(), Settings{
		Temperature: 2.0, TopK: 500, TopP: 0.5, MaxOutputTokens: 256,
	}))

	assert.Equal(t, Settings{Temperature: 1, TopK: 100, TopP: 0.5, MaxOutputTokens: 256}, f.manager.Settings())
	assert.Equal(t, float32(1), f.provider.lastCfg.Temperature)
	assert.Equal(t, int32(100), f.provider.lastCfg.TopK)
	assert.Equal(t, int32(256), f.provider.lastCfg.MaxOutputTokens)

	changes := byCategory(f.manager.Messages(), CategorySystemSettingsChange)
	require.Len(t, changes, 1)
}

func TestSetDocumentRebuildsAndAnnounces(t *testing.T) {
	f := newFixture(t, defaultBudgets())
	require.NoError(t, f.manager.OnLogin(context.Background()))

	cleared, err := f.manager.SetDocument(context.Background(), "새 문서 내용")
	require.NoError(t, err)
	assert.False(t, cleared)
	assert.Contains(t, f.provider.lastCfg.SystemInstruction, "새 문서 내용")

	updates := byCategory(f.manager.Messages(), CategorySystemDocUpdate)
	require.Len(t, updates, 1)
	assert.Contains(t, updates[0].Text, "문서가 업데이트되었습니다")
	assert.Contains(t, updates[0].Text, "7자")

	cleared, err = f.manager.SetDocument(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, cleared)

	updates = byCategory(f.manager.Messages(), CategorySystemDocUpdate)
	require.Len(t, updates, 1)
	assert.Contains(t, updates[0].Text, "문서가 삭제되었습니다")
}

func TestDocumentTruncatedForInstruction(t *testing.T) {
	budgets := defaultBudgets()
	budgets.DocumentTokenBudget = 5 // 10 chars at 2 chars per token
	f := newFixture(t, budgets)

	long := strings.Repeat("가", 40)
	_, err := f.manager.SetDocument(context.Background(), long)
	require.NoError(t, err)

	assert.Contains(t, f.provider.lastCfg.SystemInstruction, strings.Repeat("가", 10))
	assert.NotContains(t, f.provider.lastCfg.SystemInstruction, strings.Repeat("가", 11))

	// The announcement reports the full length, not the truncated one.
	updates := byCategory(f.manager.Messages(), CategorySystemDocUpdate)
	require.Len(t, updates, 1)
	assert.Contains(t, updates[0].Text, "40자")
}

func TestInitializationFailureAnnouncesAndBlocksSend(t *testing.T) {
	f := newFixture(t, defaultBudgets())
	f.provider.startErr = errors.New("model unavailable")

	err := f.manager.OnLogin(context.Background())
	var initErr *InitializationError
	require.ErrorAs(t, err, &initErr)
	assert.False(t, f.manager.Ready())

	errs := byCategory(f.manager.Messages(), CategorySystemError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Text, "채팅 초기화 오류")

	assert.ErrorIs(t, f.manager.Send(context.Background(), "질문", nil), ErrSessionNotReady)

	// Once the provider recovers, Reinitialize brings the session back.
	f.provider.startErr = nil
	require.NoError(t, f.manager.Reinitialize(context.Background()))
	assert.True(t, f.manager.Ready())
}

func TestNilProviderIsConfigurationError(t *testing.T) {
	kv, err := store.NewKVStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	nop := zap.NewNop()

	m := NewManager(nil, document.NewStore(kv, nop), faq.NewStore(kv, nop), kv, defaultBudgets(), nop)
	require.NotNil(t, m.ConfigError())
	assert.Contains(t, m.ConfigError().Reason, "API_KEY")

	var confErr *ConfigurationError
	assert.ErrorAs(t, m.OnLogin(context.Background()), &confErr)
	assert.False(t, m.Ready())
}

func TestOnLogoutClearsLogAndSession(t *testing.T) {
	f := newFixture(t, defaultBudgets())
	require.NoError(t, f.manager.OnLogin(context.Background()))
	require.NoError(t, f.manager.Send(context.Background(), "질문", nil))

	f.manager.OnLogout()
	assert.False(t, f.manager.Ready())
	assert.Empty(t, f.manager.Messages())

	// The next login starts a clean transcript.
	require.NoError(t, f.manager.OnLogin(context.Background()))
	msgs := f.manager.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, CategorySystemInit, msgs[0].Category)
}

func TestNotifyFAQUpdated(t *testing.T) {
	f := newFixture(t, defaultBudgets())
	require.NoError(t, f.manager.OnLogin(context.Background()))

	f.manager.NotifyFAQUpdated()
	f.manager.NotifyFAQUpdated()

	notes := byCategory(f.manager.Messages(), CategorySystemFAQUpdate)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Text, "FAQ 목록이 업데이트되었습니다")
}

func TestPersistedSettingsLoadedOnStartup(t *testing.T) {
	kv, err := store.NewKVStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	nop := zap.NewNop()

	custom := Settings{Temperature: 0.2, TopK: 10, TopP: 0.5, MaxOutputTokens: 512}
	require.NoError(t, kv.SetJSON(store.KeyAdvancedChatSettings, custom))
	require.NoError(t, kv.Set(store.KeyChatbotStyle, string(StyleUserFriendlySimple)))

	provider := &fakeProvider{session: &fakeSession{}}
	m := NewManager(provider, document.NewStore(kv, nop), faq.NewStore(kv, nop), kv, defaultBudgets(), nop)
	assert.Equal(t, custom, m.Settings())
	assert.Equal(t, StyleUserFriendlySimple, m.Style())
}
