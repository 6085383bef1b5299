package agent

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"botpilot/internal/domain"
	"botpilot/internal/metrics"
)

const processingErrorReply = "抱歉，处理消息时遇到了问题，请稍后再试。"

// mentionMarkup matches the "@name" tokens the platform leaves in message
// text for each mention, including trailing whitespace.
var mentionMarkup = regexp.MustCompile(`@\S+\s*`)

// userMentionKey is the placeholder key pattern for ordinary user mentions.
// A mention whose key does not look like this is assumed to target the bot.
var userMentionKey = regexp.MustCompile(`^@_user_\d+$`)

// BotIdentity resolves the bot's own platform identity for mention checks.
type BotIdentity interface {
	BotOpenID(ctx context.Context) (string, error)
}

// RouterConfig carries router settings from config.
type RouterConfig struct {
	BotName         string
	ThinkingMessage string
}

// Router decides whether an inbound event gets a response and produces it:
// command shortcuts answer directly, everything else goes through the
// orchestrator with a thinking placeholder updated in place.
type Router struct {
	orchestrator *Orchestrator
	commands     *CommandSet
	messenger    domain.Messenger
	identity     BotIdentity
	cfg          RouterConfig
	logger       *slog.Logger
}

func NewRouter(
	orchestrator *Orchestrator,
	commands *CommandSet,
	messenger domain.Messenger,
	identity BotIdentity,
	cfg RouterConfig,
	logger *slog.Logger,
) *Router {
	return &Router{
		orchestrator: orchestrator,
		commands:     commands,
		messenger:    messenger,
		identity:     identity,
		cfg:          cfg,
		logger:       logger,
	}
}

// Handle implements the gateway event handler.
func (r *Router) Handle(ctx context.Context, evt *domain.InboundEvent) error {
	if evt.MessageKind != "text" {
		r.logger.Debug("skipping non-text message", "kind", evt.MessageKind, "chat_id", evt.ChatID)
		return nil
	}

	// Group messages only get a response when the bot itself is mentioned.
	// No acknowledgment otherwise: staying silent in a group beats noise.
	if evt.ChatKind == domain.ChatGroup && !r.mentioned(ctx, evt) {
		r.logger.Debug("bot not mentioned in group message", "chat_id", evt.ChatID)
		return nil
	}

	text := strings.TrimSpace(mentionMarkup.ReplaceAllString(evt.Text, ""))
	if text == "" {
		return nil
	}
	metrics.MessagesHandled.Inc()

	if cmd, ok := r.commands.Resolve(text); ok {
		switch cmd.Action {
		case ActionHelp:
			_, err := r.messenger.SendReply(ctx, evt.ChatID, evt.MessageID, r.commands.HelpText(r.cfg.BotName))
			return err
		case ActionClear:
			r.orchestrator.Reset(evt.SenderID, evt.ChatID)
			_, err := r.messenger.SendReply(ctx, evt.ChatID, evt.MessageID, "✨ 已开启新的对话，之前的上下文已清空。")
			return err
		case ActionPrompt:
			text = cmd.Prompt
		}
	}

	// Post the thinking placeholder first, then edit it into the answer.
	// If the placeholder fails to send, the answer goes out as a plain reply.
	placeholderID, err := r.messenger.SendReply(ctx, evt.ChatID, evt.MessageID, r.cfg.ThinkingMessage)
	if err != nil {
		r.logger.Warn("failed to send thinking message", "error", err)
		placeholderID = ""
	}

	reply, err := r.orchestrator.Converse(ctx, evt.SenderID, evt.ChatID, text)
	if err != nil {
		r.logger.Error("conversation failed", "chat_id", evt.ChatID, "error", err)
		reply = processingErrorReply
	}

	return r.deliver(ctx, evt, placeholderID, reply)
}

func (r *Router) deliver(ctx context.Context, evt *domain.InboundEvent, placeholderID, reply string) error {
	if placeholderID != "" {
		err := r.messenger.UpdateMessage(ctx, placeholderID, reply)
		if err == nil {
			return nil
		}
		r.logger.Warn("failed to update placeholder, sending reply instead", "error", err)
	}
	_, err := r.messenger.SendReply(ctx, evt.ChatID, evt.MessageID, reply)
	return err
}

// mentioned reports whether the bot appears in the event's mention list.
// The resolved open_id is authoritative; the key-pattern heuristic only
// applies when the bot identity cannot be fetched.
func (r *Router) mentioned(ctx context.Context, evt *domain.InboundEvent) bool {
	if len(evt.Mentions) == 0 {
		return false
	}

	botID, err := r.identity.BotOpenID(ctx)
	if err == nil && botID != "" {
		for _, m := range evt.Mentions {
			if m.OpenID == botID {
				return true
			}
		}
		return false
	}

	r.logger.Warn("bot identity unresolved, using mention key heuristic", "error", err)
	for _, m := range evt.Mentions {
		if !userMentionKey.MatchString(m.Key) {
			return true
		}
	}
	return false
}
