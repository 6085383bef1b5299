package lark

import (
	"encoding/json"
	"testing"

	"botpilot/internal/domain"
)

func TestParseEventV2_GroupMessage(t *testing.T) {
	raw := json.RawMessage(`{
		"sender": {"sender_id": {"open_id": "ou_sender"}},
		"message": {
			"message_id": "om_123",
			"chat_id": "oc_456",
			"chat_type": "group",
			"message_type": "text",
			"content": "{\"text\":\"@_user_1 最近数据怎么样\"}",
			"mentions": [
				{"key": "@_user_1", "id": {"open_id": "ou_bot"}, "name": "小助手"}
			]
		}
	}`)

	evt, err := ParseEventV2("evt_1", raw)
	if err != nil {
		t.Fatal(err)
	}
	if evt.EventID != "om_123" {
		t.Errorf("message id should be the dedup identity, got %s", evt.EventID)
	}
	if evt.ChatKind != domain.ChatGroup {
		t.Errorf("expected group chat, got %s", evt.ChatKind)
	}
	if evt.Text != "@_user_1 最近数据怎么样" {
		t.Errorf("unexpected text: %s", evt.Text)
	}
	if len(evt.Mentions) != 1 || evt.Mentions[0].OpenID != "ou_bot" {
		t.Errorf("mention not parsed: %+v", evt.Mentions)
	}
}

func TestParseEventV2_FallbackEventID(t *testing.T) {
	raw := json.RawMessage(`{"message": {"chat_id": "oc_1", "chat_type": "p2p", "message_type": "text", "content": "{\"text\":\"hi\"}"}}`)
	evt, err := ParseEventV2("evt_fallback", raw)
	if err != nil {
		t.Fatal(err)
	}
	if evt.EventID != "evt_fallback" {
		t.Errorf("expected header event id fallback, got %s", evt.EventID)
	}
}

func TestParseEventV2_NonTextContent(t *testing.T) {
	raw := json.RawMessage(`{"message": {"message_id": "om_2", "chat_type": "p2p", "message_type": "image", "content": "{\"image_key\":\"img_v2\"}"}}`)
	evt, err := ParseEventV2("evt_2", raw)
	if err != nil {
		t.Fatal(err)
	}
	if evt.MessageKind != "image" {
		t.Errorf("expected image kind, got %s", evt.MessageKind)
	}
	if evt.Text != "" {
		t.Errorf("non-text content should yield empty text, got %q", evt.Text)
	}
}

func TestParseEventV1_Group(t *testing.T) {
	raw := json.RawMessage(`{"msg_id": "m1", "open_chat_id": "oc_1", "chat_type": "group", "msg_type": "text", "text": "hello", "open_id": "ou_u"}`)
	evt, err := ParseEventV1(raw)
	if err != nil {
		t.Fatal(err)
	}
	if evt.ChatKind != domain.ChatGroup {
		t.Errorf("expected group, got %s", evt.ChatKind)
	}
	if evt.EventID != "m1" || evt.Text != "hello" {
		t.Errorf("unexpected event: %+v", evt)
	}
}

func TestParseEventV1_DefaultsToTextDirect(t *testing.T) {
	raw := json.RawMessage(`{"message_id": "m2", "text": "hi"}`)
	evt, err := ParseEventV1(raw)
	if err != nil {
		t.Fatal(err)
	}
	if evt.ChatKind != domain.ChatDirect {
		t.Errorf("expected direct chat, got %s", evt.ChatKind)
	}
	if evt.MessageKind != "text" {
		t.Errorf("missing msg_type should default to text, got %s", evt.MessageKind)
	}
	if evt.EventID != "m2" {
		t.Errorf("message_id fallback failed, got %s", evt.EventID)
	}
}
