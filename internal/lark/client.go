package lark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const defaultBaseURL = "https://open.feishu.cn/open-apis"

// tokenSafetyMargin expires cached tokens early so a request never races
// server-side expiry.
const tokenSafetyMargin = 5 * time.Minute

// Client is the outbound platform API client. It caches the tenant access
// token and the bot's own open_id.
type Client struct {
	appID     string
	appSecret string
	baseURL   string
	http      *http.Client
	logger    *slog.Logger

	mu             sync.Mutex
	token          string
	tokenExpiresAt time.Time
	botOpenID      string
}

type ClientConfig struct {
	AppID     string
	AppSecret string
	BaseURL   string // optional override for tests
	Logger    *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		baseURL:   base,
		http:      &http.Client{Timeout: 30 * time.Second},
		logger:    cfg.Logger,
	}
}

// apiResult is the common response envelope of the platform API.
type apiResult struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (c *Client) tenantAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiresAt) {
		return c.token, nil
	}

	body, _ := json.Marshal(map[string]string{
		"app_id":     c.appID,
		"app_secret": c.appSecret,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/auth/v3/tenant_access_token/internal", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Code              int    `json:"code"`
		Msg               string `json:"msg"`
		TenantAccessToken string `json:"tenant_access_token"`
		Expire            int    `json:"expire"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if result.Code != 0 {
		return "", fmt.Errorf("token request failed (code %d): %s", result.Code, result.Msg)
	}

	expire := time.Duration(result.Expire) * time.Second
	if expire == 0 {
		expire = 2 * time.Hour
	}
	c.token = result.TenantAccessToken
	c.tokenExpiresAt = time.Now().Add(expire - tokenSafetyMargin)

	c.logger.Debug("tenant access token refreshed", "expires_in", expire)
	return c.token, nil
}

func (c *Client) request(ctx context.Context, method, path string, payload any, params url.Values) (*apiResult, error) {
	token, err := c.tenantAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("platform request: %w", err)
	}
	defer resp.Body.Close()

	var result apiResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if result.Code != 0 {
		return nil, fmt.Errorf("platform API %s %s failed (code %d): %s", method, path, result.Code, result.Msg)
	}
	return &result, nil
}

func messageIDFrom(result *apiResult) string {
	var data struct {
		MessageID string `json:"message_id"`
	}
	_ = json.Unmarshal(result.Data, &data)
	return data.MessageID
}

// SendText sends a text message to a chat and returns the new message id.
// When replyTo names an existing message the text goes out as a reply to it.
func (c *Client) SendText(ctx context.Context, chatID, text, replyTo string) (string, error) {
	if replyTo != "" {
		return c.SendReply(ctx, chatID, replyTo, text)
	}

	content, _ := json.Marshal(map[string]string{"text": text})
	body := map[string]any{
		"receive_id": chatID,
		"msg_type":   "text",
		"content":    string(content),
	}

	result, err := c.request(ctx, http.MethodPost, "/im/v1/messages", body,
		url.Values{"receive_id_type": {"chat_id"}})
	if err != nil {
		return "", fmt.Errorf("send text: %w", err)
	}
	return messageIDFrom(result), nil
}

// SendReply replies to an existing message.
func (c *Client) SendReply(ctx context.Context, chatID, messageID, text string) (string, error) {
	content, _ := json.Marshal(map[string]string{"text": text})
	body := map[string]any{
		"content":  string(content),
		"msg_type": "text",
	}

	result, err := c.request(ctx, http.MethodPost, "/im/v1/messages/"+messageID+"/reply", body, nil)
	if err != nil {
		return "", fmt.Errorf("send reply: %w", err)
	}
	return messageIDFrom(result), nil
}

// UpdateMessage replaces the text of an already sent message.
func (c *Client) UpdateMessage(ctx context.Context, messageID, text string) error {
	content, _ := json.Marshal(map[string]string{"text": text})
	body := map[string]any{"content": string(content)}

	if _, err := c.request(ctx, http.MethodPatch, "/im/v1/messages/"+messageID, body, nil); err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return nil
}

// SendCard sends an interactive card to a chat.
func (c *Client) SendCard(ctx context.Context, chatID string, card map[string]any) (string, error) {
	content, err := json.Marshal(card)
	if err != nil {
		return "", fmt.Errorf("marshal card: %w", err)
	}
	body := map[string]any{
		"receive_id": chatID,
		"msg_type":   "interactive",
		"content":    string(content),
	}

	result, err := c.request(ctx, http.MethodPost, "/im/v1/messages", body,
		url.Values{"receive_id_type": {"chat_id"}})
	if err != nil {
		return "", fmt.Errorf("send card: %w", err)
	}
	return messageIDFrom(result), nil
}

// BotOpenID returns the bot's own open_id, fetched once and cached. Used by
// the mention resolver to decide whether a group message addresses the bot.
func (c *Client) BotOpenID(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.botOpenID
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	result, err := c.request(ctx, http.MethodGet, "/bot/v3/info", nil, nil)
	if err != nil {
		return "", fmt.Errorf("bot info: %w", err)
	}

	// The bot info endpoint nests the identity under "bot" at the top level,
	// not under "data", on older API versions; accept both.
	var data struct {
		Bot struct {
			OpenID string `json:"open_id"`
		} `json:"bot"`
		OpenID string `json:"open_id"`
	}
	_ = json.Unmarshal(result.Data, &data)
	openID := data.Bot.OpenID
	if openID == "" {
		openID = data.OpenID
	}
	if openID == "" {
		return "", fmt.Errorf("bot info: open_id missing from response")
	}

	c.mu.Lock()
	c.botOpenID = openID
	c.mu.Unlock()
	return openID, nil
}
