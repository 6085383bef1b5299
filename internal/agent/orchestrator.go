package agent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"botpilot/internal/domain"
	"botpilot/internal/metrics"
	"botpilot/internal/tools"
)

// unavailableReply is sent when the LLM keeps returning empty responses.
const unavailableReply = "抱歉，AI 服务暂时无法响应，请稍后再试。"

// OrchestratorConfig carries the knobs the orchestrator needs from config.
type OrchestratorConfig struct {
	BotName     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Orchestrator drives the two-phase tool-calling conversation: a first LLM
// round with tools offered, sequential tool execution, then a closing round
// without tools to produce the final answer.
type Orchestrator struct {
	provider   domain.Provider
	registry   *tools.Registry
	executor   *tools.Executor
	store      *ConversationStore
	transcript domain.TranscriptStore
	cfg        OrchestratorConfig
	logger     *slog.Logger
}

func NewOrchestrator(
	provider domain.Provider,
	registry *tools.Registry,
	executor *tools.Executor,
	store *ConversationStore,
	transcript domain.TranscriptStore,
	cfg OrchestratorConfig,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		provider:   provider,
		registry:   registry,
		executor:   executor,
		store:      store,
		transcript: transcript,
		cfg:        cfg,
		logger:     logger,
	}
}

// Reset clears the stored history for a conversation.
func (o *Orchestrator) Reset(userID, chatID string) {
	o.store.Clear(ConversationKey(userID, chatID))
}

// Converse processes one user message and returns the reply text. Processing
// for the same conversation key is serialized.
func (o *Orchestrator) Converse(ctx context.Context, userID, chatID, text string) (string, error) {
	key := ConversationKey(userID, chatID)
	unlock := o.store.Lock(key)
	defer unlock()

	o.store.Append(key, domain.Message{Role: domain.RoleUser, Content: text})
	o.recordTurn(ctx, key, domain.RoleUser, text)

	messages := []domain.Message{{Role: domain.RoleSystem, Content: systemPrompt(o.cfg.BotName)}}
	messages = append(messages, o.store.Window(key)...)

	resp, err := o.chat(ctx, messages, o.registry.Definitions())
	if errors.Is(err, domain.ErrEmptyResponse) {
		// A rare upstream hiccup; one bare retry without tools before giving up.
		o.logger.Warn("empty llm response, retrying without tools", "key", key)
		resp, err = o.chat(ctx, messages, nil)
		if errors.Is(err, domain.ErrEmptyResponse) {
			return unavailableReply, nil
		}
	}
	if err != nil {
		return "", err
	}

	if resp.HasToolCalls() {
		// Tool traffic stays in the working slice only. The stored history
		// keeps user and final assistant turns, so a trimmed window never
		// starts with an orphaned tool result.
		messages = append(messages, domain.Message{
			Role:      domain.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			result := o.executor.Execute(ctx, call.Name, call.Arguments)
			messages = append(messages, domain.Message{
				Role:       domain.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})
		}

		resp, err = o.chat(ctx, messages, nil)
		if errors.Is(err, domain.ErrEmptyResponse) {
			return unavailableReply, nil
		}
		if err != nil {
			return "", err
		}
	}

	reply := resp.Content
	o.store.Append(key, domain.Message{Role: domain.RoleAssistant, Content: reply})
	o.recordTurn(ctx, key, domain.RoleAssistant, reply)
	return reply, nil
}

func (o *Orchestrator) chat(ctx context.Context, messages []domain.Message, defs []domain.ToolDefinition) (*domain.ChatResponse, error) {
	metrics.LLMRequestsTotal.Inc()
	start := time.Now()
	resp, err := o.provider.Chat(ctx, domain.ChatRequest{
		Messages:    messages,
		Tools:       defs,
		Model:       o.cfg.Model,
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
	})
	if err != nil {
		return nil, err
	}
	o.logger.Debug("llm round complete",
		"provider", o.provider.Name(),
		"tool_calls", len(resp.ToolCalls),
		"finish_reason", resp.FinishReason,
		"elapsed", time.Since(start))
	return resp, nil
}

// recordTurn writes to the transcript store when enabled. Transcript failures
// never affect the conversation.
func (o *Orchestrator) recordTurn(ctx context.Context, key, role, content string) {
	if o.transcript == nil {
		return
	}
	err := o.transcript.AddTurn(ctx, domain.Turn{
		ConversationKey: key,
		Role:            role,
		Content:         content,
		CreatedAt:       time.Now(),
	})
	if err != nil {
		o.logger.Warn("transcript write failed", "error", err)
	}
}
