package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"

	"botpilot/internal/domain"
	"botpilot/internal/tools"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// scriptedProvider replays a fixed sequence of responses and records the
// requests it saw.
type scriptedProvider struct {
	steps []func() (*domain.ChatResponse, error)
	reqs  []domain.ChatRequest
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	p.reqs = append(p.reqs, req)
	if len(p.steps) == 0 {
		return nil, errors.New("script exhausted")
	}
	step := p.steps[0]
	p.steps = p.steps[1:]
	return step()
}

func answer(text string) func() (*domain.ChatResponse, error) {
	return func() (*domain.ChatResponse, error) {
		return &domain.ChatResponse{Content: text, FinishReason: "stop"}, nil
	}
}

func toolCall(name string, args map[string]any) func() (*domain.ChatResponse, error) {
	return func() (*domain.ChatResponse, error) {
		return &domain.ChatResponse{
			FinishReason: "tool_calls",
			ToolCalls:    []domain.ToolCall{{ID: "call_1", Name: name, Arguments: args}},
		}, nil
	}
}

func emptyResponse() (*domain.ChatResponse, error) {
	return nil, domain.ErrEmptyResponse
}

// echoTool records whether it ran and returns a fixed payload.
type echoTool struct {
	ran  bool
	args map[string]any
}

func (t *echoTool) Name() string               { return "get_overview" }
func (t *echoTool) Description() string        { return "overview" }
func (t *echoTool) Parameters() map[string]any { return tools.ToolParameters(nil, nil) }

func (t *echoTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	t.ran = true
	t.args = args
	return map[string]any{"total_tools": 42}, nil
}

func newTestOrchestrator(p domain.Provider, tool domain.Tool) *Orchestrator {
	reg := tools.NewRegistry(testLogger())
	if tool != nil {
		reg.Register(tool)
	}
	exec := tools.NewExecutor(reg, nil, testLogger())
	store := NewConversationStore(10)
	return NewOrchestrator(p, reg, exec, store, nil, OrchestratorConfig{
		BotName:   "测试助手",
		Model:     "gpt-4o",
		MaxTokens: 1000,
	}, testLogger())
}

func TestConverse_PlainAnswer(t *testing.T) {
	p := &scriptedProvider{steps: []func() (*domain.ChatResponse, error){answer("你好！")}}
	o := newTestOrchestrator(p, nil)

	reply, err := o.Converse(context.Background(), "u1", "c1", "hi")
	if err != nil {
		t.Fatal(err)
	}
	if reply != "你好！" {
		t.Errorf("unexpected reply %s", reply)
	}
	if len(p.reqs) != 1 {
		t.Fatalf("expected 1 llm round, got %d", len(p.reqs))
	}
	if p.reqs[0].Messages[0].Role != domain.RoleSystem {
		t.Error("first message must be the system prompt")
	}
}

func TestConverse_TwoPhaseToolCall(t *testing.T) {
	tool := &echoTool{}
	p := &scriptedProvider{steps: []func() (*domain.ChatResponse, error){
		toolCall("get_overview", map[string]any{}),
		answer("平台共有 42 个工具。"),
	}}
	o := newTestOrchestrator(p, tool)

	reply, err := o.Converse(context.Background(), "u1", "c1", "概览")
	if err != nil {
		t.Fatal(err)
	}
	if reply != "平台共有 42 个工具。" {
		t.Errorf("unexpected reply %s", reply)
	}
	if !tool.ran {
		t.Fatal("tool did not execute")
	}

	if len(p.reqs) != 2 {
		t.Fatalf("expected 2 llm rounds, got %d", len(p.reqs))
	}
	if len(p.reqs[0].Tools) == 0 {
		t.Error("phase 1 must offer tools")
	}
	if len(p.reqs[1].Tools) != 0 {
		t.Error("phase 2 must not offer tools")
	}

	// Phase 2 must carry the tool result linked to the call id.
	last := p.reqs[1].Messages[len(p.reqs[1].Messages)-1]
	if last.Role != domain.RoleTool || last.ToolCallID != "call_1" {
		t.Errorf("tool result missing from phase 2: %+v", last)
	}
	if !strings.Contains(last.Content, "42") {
		t.Errorf("tool result content lost: %s", last.Content)
	}
}

func TestConverse_EmptyThenRecovered(t *testing.T) {
	p := &scriptedProvider{steps: []func() (*domain.ChatResponse, error){
		emptyResponse,
		answer("恢复了"),
	}}
	o := newTestOrchestrator(p, nil)

	reply, err := o.Converse(context.Background(), "u1", "c1", "hi")
	if err != nil {
		t.Fatal(err)
	}
	if reply != "恢复了" {
		t.Errorf("unexpected reply %s", reply)
	}
	if len(p.reqs) != 2 {
		t.Fatalf("expected retry round, got %d requests", len(p.reqs))
	}
	if len(p.reqs[1].Tools) != 0 {
		t.Error("the retry round must not offer tools")
	}
}

func TestConverse_EmptyTwiceFallsBack(t *testing.T) {
	p := &scriptedProvider{steps: []func() (*domain.ChatResponse, error){
		emptyResponse,
		emptyResponse,
	}}
	o := newTestOrchestrator(p, nil)

	reply, err := o.Converse(context.Background(), "u1", "c1", "hi")
	if err != nil {
		t.Fatal(err)
	}
	if reply != unavailableReply {
		t.Errorf("expected static fallback, got %s", reply)
	}
}

func TestConverse_ProviderError(t *testing.T) {
	p := &scriptedProvider{steps: []func() (*domain.ChatResponse, error){
		func() (*domain.ChatResponse, error) { return nil, errors.New(" network down") },
	}}
	o := newTestOrchestrator(p, nil)

	if _, err := o.Converse(context.Background(), "u1", "c1", "hi"); err == nil {
		t.Error("provider errors must propagate")
	}
}

func TestConverse_HistoryCarriesOver(t *testing.T) {
	p := &scriptedProvider{steps: []func() (*domain.ChatResponse, error){
		answer("第一轮"),
		answer("第二轮"),
	}}
	o := newTestOrchestrator(p, nil)

	ctx := context.Background()
	if _, err := o.Converse(ctx, "u1", "c1", "先问这个"); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Converse(ctx, "u1", "c1", "再问那个"); err != nil {
		t.Fatal(err)
	}

	second := p.reqs[1].Messages
	var sawFirstQuestion, sawFirstAnswer bool
	for _, m := range second {
		if m.Content == "先问这个" {
			sawFirstQuestion = true
		}
		if m.Content == "第一轮" {
			sawFirstAnswer = true
		}
	}
	if !sawFirstQuestion || !sawFirstAnswer {
		t.Error("second round should include the first exchange")
	}
}

func TestConverse_PromptCarriesFullWindow(t *testing.T) {
	steps := make([]func() (*domain.ChatResponse, error), 0, 11)
	for i := 0; i < 11; i++ {
		steps = append(steps, answer(fmt.Sprintf("回答%d", i)))
	}
	p := &scriptedProvider{steps: steps}
	o := newTestOrchestrator(p, nil) // maxContext 10

	ctx := context.Background()
	for i := 0; i < 11; i++ {
		if _, err := o.Converse(ctx, "u1", "c1", fmt.Sprintf("问题%d", i)); err != nil {
			t.Fatal(err)
		}
	}

	// After 11 full exchanges the stored history is capped at 20 entries,
	// and the last request carries all of them plus the system prompt.
	last := p.reqs[len(p.reqs)-1].Messages
	if len(last) != 21 {
		t.Fatalf("expected 21 prompt messages, got %d", len(last))
	}
	if last[0].Role != domain.RoleSystem {
		t.Error("system prompt must lead the window")
	}
	if last[1].Content != "回答0" {
		t.Errorf("oldest surviving turn should be 回答0, got %q", last[1].Content)
	}
	if last[20].Content != "问题10" {
		t.Errorf("newest turn should close the window, got %q", last[20].Content)
	}
}

func TestReset_ClearsHistory(t *testing.T) {
	p := &scriptedProvider{steps: []func() (*domain.ChatResponse, error){
		answer("a"),
		answer("b"),
	}}
	o := newTestOrchestrator(p, nil)

	ctx := context.Background()
	if _, err := o.Converse(ctx, "u1", "c1", "记住这个"); err != nil {
		t.Fatal(err)
	}
	o.Reset("u1", "c1")
	if _, err := o.Converse(ctx, "u1", "c1", "新话题"); err != nil {
		t.Fatal(err)
	}

	// After reset the second request sees only system + the new user turn.
	if got := len(p.reqs[1].Messages); got != 2 {
		t.Errorf("expected fresh context of 2 messages, got %d", got)
	}
}
