package agent

import (
	"context"
	"errors"
	"sync"
	"testing"

	"botpilot/internal/domain"
)

type recordedUpdate struct {
	messageID string
	text      string
}

type fakeMessenger struct {
	mu        sync.Mutex
	replies   []string
	updates   []recordedUpdate
	replyErr  error
	updateErr error
}

func (m *fakeMessenger) SendText(ctx context.Context, chatID, text, replyTo string) (string, error) {
	return m.SendReply(ctx, chatID, replyTo, text)
}

func (m *fakeMessenger) SendReply(ctx context.Context, chatID, messageID, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replyErr != nil {
		return "", m.replyErr
	}
	m.replies = append(m.replies, text)
	return "om_placeholder", nil
}

func (m *fakeMessenger) UpdateMessage(ctx context.Context, messageID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updates = append(m.updates, recordedUpdate{messageID, text})
	return nil
}

func (m *fakeMessenger) SendCard(ctx context.Context, chatID string, card map[string]any) (string, error) {
	return "om_card", nil
}

type fakeIdentity struct {
	openID string
	err    error
}

func (f *fakeIdentity) BotOpenID(ctx context.Context) (string, error) {
	return f.openID, f.err
}

func newTestRouter(p domain.Provider, m *fakeMessenger, id BotIdentity) *Router {
	o := newTestOrchestrator(p, nil)
	return NewRouter(o, NewCommandSet(), m, id, RouterConfig{
		BotName:         "测试助手",
		ThinkingMessage: "🤔 思考中...",
	}, testLogger())
}

func directEvent(text string) *domain.InboundEvent {
	return &domain.InboundEvent{
		EventID:     "e1",
		MessageID:   "om_in",
		ChatID:      "oc_1",
		ChatKind:    domain.ChatDirect,
		SenderID:    "ou_u",
		MessageKind: "text",
		Text:        text,
	}
}

func groupEvent(text string, mentions ...domain.Mention) *domain.InboundEvent {
	evt := directEvent(text)
	evt.ChatKind = domain.ChatGroup
	evt.Mentions = mentions
	return evt
}

func TestRouter_DirectMessage(t *testing.T) {
	p := &scriptedProvider{steps: []func() (*domain.ChatResponse, error){answer("答案")}}
	m := &fakeMessenger{}
	r := newTestRouter(p, m, &fakeIdentity{openID: "ou_bot"})

	if err := r.Handle(context.Background(), directEvent("你好")); err != nil {
		t.Fatal(err)
	}

	if len(m.replies) != 1 || m.replies[0] != "🤔 思考中..." {
		t.Errorf("expected thinking placeholder, got %v", m.replies)
	}
	if len(m.updates) != 1 || m.updates[0].text != "答案" {
		t.Errorf("placeholder should update to the answer, got %v", m.updates)
	}
	if m.updates[0].messageID != "om_placeholder" {
		t.Errorf("wrong message updated: %s", m.updates[0].messageID)
	}
}

func TestRouter_NonTextSkipped(t *testing.T) {
	p := &scriptedProvider{}
	m := &fakeMessenger{}
	r := newTestRouter(p, m, &fakeIdentity{openID: "ou_bot"})

	evt := directEvent("")
	evt.MessageKind = "image"
	if err := r.Handle(context.Background(), evt); err != nil {
		t.Fatal(err)
	}
	if len(m.replies) != 0 || len(p.reqs) != 0 {
		t.Error("non-text messages must be ignored")
	}
}

func TestRouter_GroupWithoutMentionSilent(t *testing.T) {
	p := &scriptedProvider{}
	m := &fakeMessenger{}
	r := newTestRouter(p, m, &fakeIdentity{openID: "ou_bot"})

	if err := r.Handle(context.Background(), groupEvent("随便聊聊")); err != nil {
		t.Fatal(err)
	}
	if len(m.replies) != 0 {
		t.Error("unmentioned group messages get no reply at all")
	}
}

func TestRouter_GroupMentionOtherUserSilent(t *testing.T) {
	p := &scriptedProvider{}
	m := &fakeMessenger{}
	r := newTestRouter(p, m, &fakeIdentity{openID: "ou_bot"})

	evt := groupEvent("@_user_1 你怎么看",
		domain.Mention{Key: "@_user_1", OpenID: "ou_someone"})
	if err := r.Handle(context.Background(), evt); err != nil {
		t.Fatal(err)
	}
	if len(m.replies) != 0 {
		t.Error("mentions of other users must not trigger the bot")
	}
}

func TestRouter_GroupBotMentionProcessed(t *testing.T) {
	p := &scriptedProvider{steps: []func() (*domain.ChatResponse, error){answer("数据如下")}}
	m := &fakeMessenger{}
	r := newTestRouter(p, m, &fakeIdentity{openID: "ou_bot"})

	evt := groupEvent("@_user_1 最近数据怎么样",
		domain.Mention{Key: "@_user_1", OpenID: "ou_bot", Name: "测试助手"})
	if err := r.Handle(context.Background(), evt); err != nil {
		t.Fatal(err)
	}

	if len(p.reqs) != 1 {
		t.Fatal("mentioned group message should reach the llm")
	}
	userMsg := p.reqs[0].Messages[len(p.reqs[0].Messages)-1]
	if userMsg.Content != "最近数据怎么样" {
		t.Errorf("mention markup should be stripped, got %q", userMsg.Content)
	}
}

func TestRouter_MentionHeuristicWhenIdentityUnavailable(t *testing.T) {
	p := &scriptedProvider{steps: []func() (*domain.ChatResponse, error){answer("ok")}}
	m := &fakeMessenger{}
	r := newTestRouter(p, m, &fakeIdentity{err: errors.New("api down")})

	// A non-user-pattern key is assumed to be the bot.
	evt := groupEvent("@bot hi", domain.Mention{Key: "@_bot", OpenID: ""})
	if err := r.Handle(context.Background(), evt); err != nil {
		t.Fatal(err)
	}
	if len(p.reqs) != 1 {
		t.Error("heuristic should accept non-user mention keys")
	}

	// Ordinary user keys stay rejected under the heuristic.
	m2 := &fakeMessenger{}
	p2 := &scriptedProvider{}
	r2 := newTestRouter(p2, m2, &fakeIdentity{err: errors.New("api down")})
	evt2 := groupEvent("@_user_2 hi", domain.Mention{Key: "@_user_2", OpenID: ""})
	if err := r2.Handle(context.Background(), evt2); err != nil {
		t.Fatal(err)
	}
	if len(p2.reqs) != 0 {
		t.Error("user-pattern keys must not pass the heuristic")
	}
}

func TestRouter_EmptyAfterStripDropped(t *testing.T) {
	p := &scriptedProvider{}
	m := &fakeMessenger{}
	r := newTestRouter(p, m, &fakeIdentity{openID: "ou_bot"})

	evt := groupEvent("@_user_1 ", domain.Mention{Key: "@_user_1", OpenID: "ou_bot"})
	if err := r.Handle(context.Background(), evt); err != nil {
		t.Fatal(err)
	}
	if len(m.replies) != 0 {
		t.Error("empty text after stripping gets no reply")
	}
}

func TestRouter_HelpCommandSkipsLLM(t *testing.T) {
	p := &scriptedProvider{}
	m := &fakeMessenger{}
	r := newTestRouter(p, m, &fakeIdentity{openID: "ou_bot"})

	if err := r.Handle(context.Background(), directEvent("/help")); err != nil {
		t.Fatal(err)
	}
	if len(p.reqs) != 0 {
		t.Error("/help must not call the llm")
	}
	if len(m.replies) != 1 {
		t.Fatalf("expected direct help reply, got %d", len(m.replies))
	}
}

func TestRouter_NewCommandClears(t *testing.T) {
	p := &scriptedProvider{steps: []func() (*domain.ChatResponse, error){answer("第一轮")}}
	m := &fakeMessenger{}
	r := newTestRouter(p, m, &fakeIdentity{openID: "ou_bot"})

	ctx := context.Background()
	if err := r.Handle(ctx, directEvent("记住这个")); err != nil {
		t.Fatal(err)
	}
	if err := r.Handle(ctx, directEvent("/new")); err != nil {
		t.Fatal(err)
	}
	if len(p.reqs) != 1 {
		t.Error("/new must not call the llm")
	}
	if got := r.orchestrator.store.Window(ConversationKey("ou_u", "oc_1")); len(got) != 0 {
		t.Errorf("history should be cleared, got %d messages", len(got))
	}
}

func TestRouter_CannedCommandRewrites(t *testing.T) {
	p := &scriptedProvider{steps: []func() (*domain.ChatResponse, error){answer("排行如下")}}
	m := &fakeMessenger{}
	r := newTestRouter(p, m, &fakeIdentity{openID: "ou_bot"})

	if err := r.Handle(context.Background(), directEvent("/工具排行")); err != nil {
		t.Fatal(err)
	}
	if len(p.reqs) != 1 {
		t.Fatal("canned commands go through the orchestrator")
	}
	userMsg := p.reqs[0].Messages[len(p.reqs[0].Messages)-1]
	if userMsg.Content != "请查询最近7天的工具排行榜" {
		t.Errorf("command should rewrite to the canned query, got %q", userMsg.Content)
	}
}

func TestRouter_ConverseErrorFriendlyReply(t *testing.T) {
	p := &scriptedProvider{steps: []func() (*domain.ChatResponse, error){
		func() (*domain.ChatResponse, error) { return nil, errors.New("network down") },
	}}
	m := &fakeMessenger{}
	r := newTestRouter(p, m, &fakeIdentity{openID: "ou_bot"})

	if err := r.Handle(context.Background(), directEvent("hi")); err != nil {
		t.Fatal(err)
	}
	if len(m.updates) != 1 || m.updates[0].text != processingErrorReply {
		t.Errorf("expected friendly error text, got %v", m.updates)
	}
}

func TestRouter_UpdateFailureFallsBackToReply(t *testing.T) {
	p := &scriptedProvider{steps: []func() (*domain.ChatResponse, error){answer("答案")}}
	m := &fakeMessenger{updateErr: errors.New("message expired")}
	r := newTestRouter(p, m, &fakeIdentity{openID: "ou_bot"})

	if err := r.Handle(context.Background(), directEvent("hi")); err != nil {
		t.Fatal(err)
	}
	// Placeholder plus the fallback reply.
	if len(m.replies) != 2 || m.replies[1] != "答案" {
		t.Errorf("expected fallback reply with the answer, got %v", m.replies)
	}
}
