// Package lark implements the messaging-platform surface: webhook event
// envelopes, payload decryption and signature checks, and the outbound API
// client.
package lark

import (
	"encoding/json"

	"botpilot/internal/domain"
)

// EventMessageReceive is the v2 event type for inbound messages.
const EventMessageReceive = "im.message.receive_v1"

// Envelope is the raw webhook body after optional decryption. The platform
// ships two shapes: v2 keyed by header.event_type, and the legacy v1 shape
// keyed by a top-level type field. Both normalize into domain.InboundEvent.
type Envelope struct {
	Challenge string          `json:"challenge,omitempty"`
	Encrypt   string          `json:"encrypt,omitempty"`
	Header    *EventHeader    `json:"header,omitempty"`
	Type      string          `json:"type,omitempty"`
	Token     string          `json:"token,omitempty"` // v1 and challenge payloads carry it top-level
	Event     json.RawMessage `json:"event,omitempty"`
}

// VerificationToken returns the app token carried by the envelope, wherever
// the shape puts it.
func (e *Envelope) VerificationToken() string {
	if e.Header != nil && e.Header.Token != "" {
		return e.Header.Token
	}
	return e.Token
}

type EventHeader struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Token     string `json:"token"`
}

type eventV2 struct {
	Sender struct {
		SenderID struct {
			OpenID string `json:"open_id"`
			UserID string `json:"user_id"`
		} `json:"sender_id"`
	} `json:"sender"`
	Message struct {
		MessageID   string    `json:"message_id"`
		ChatID      string    `json:"chat_id"`
		ChatType    string    `json:"chat_type"` // p2p | group
		MessageType string    `json:"message_type"`
		Content     string    `json:"content"` // JSON string, e.g. {"text":"..."}
		Mentions    []mention `json:"mentions"`
	} `json:"message"`
}

type mention struct {
	Key string `json:"key"`
	ID  struct {
		OpenID string `json:"open_id"`
		UserID string `json:"user_id"`
	} `json:"id"`
	Name string `json:"name"`
}

type eventV1 struct {
	MsgID      string `json:"msg_id"`
	MessageID  string `json:"message_id"`
	OpenChatID string `json:"open_chat_id"`
	ChatType   string `json:"chat_type"` // private | group
	MsgType    string `json:"msg_type"`
	Text       string `json:"text"`
	OpenID     string `json:"open_id"`
	UserID     string `json:"user_id"`
}

// ParseEventV2 normalizes a v2 message payload.
func ParseEventV2(eventID string, raw json.RawMessage) (*domain.InboundEvent, error) {
	var ev eventV2
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}

	evt := &domain.InboundEvent{
		EventID:     ev.Message.MessageID, // message id is the dedup identity
		MessageID:   ev.Message.MessageID,
		ChatID:      ev.Message.ChatID,
		ChatKind:    domain.ChatKind(ev.Message.ChatType),
		SenderID:    ev.Sender.SenderID.OpenID,
		MessageKind: ev.Message.MessageType,
		Text:        extractText(ev.Message.Content),
	}
	if evt.EventID == "" {
		evt.EventID = eventID
	}
	for _, m := range ev.Message.Mentions {
		evt.Mentions = append(evt.Mentions, domain.Mention{
			Key:    m.Key,
			OpenID: m.ID.OpenID,
			Name:   m.Name,
		})
	}
	return evt, nil
}

// ParseEventV1 normalizes a legacy payload into the same event shape.
func ParseEventV1(raw json.RawMessage) (*domain.InboundEvent, error) {
	var ev eventV1
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}

	msgID := ev.MsgID
	if msgID == "" {
		msgID = ev.MessageID
	}
	kind := domain.ChatDirect
	if ev.ChatType == "group" {
		kind = domain.ChatGroup
	}
	msgType := ev.MsgType
	if msgType == "" {
		msgType = "text"
	}
	return &domain.InboundEvent{
		EventID:     msgID,
		MessageID:   msgID,
		ChatID:      ev.OpenChatID,
		ChatKind:    kind,
		SenderID:    ev.OpenID,
		MessageKind: msgType,
		Text:        ev.Text,
	}, nil
}

// extractText pulls the text field out of a message content payload. Text
// messages carry {"text":"..."}; anything else yields empty.
func extractText(content string) string {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &body); err != nil {
		return ""
	}
	return body.Text
}
