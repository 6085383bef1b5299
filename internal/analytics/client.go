package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client implements Service over the backend's stats HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger,
	}
}

// Reset disposes the pooled connections. Coarse on purpose: after a
// connection-level fault the whole pool is suspect, and at this system's
// scale rebuilding it is cheaper than per-connection recovery.
func (c *Client) Reset() {
	c.http.CloseIdleConnections()
	c.logger.Debug("analytics connection pool reset")
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (map[string]any, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analytics %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("analytics %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return result, nil
}

func intParams(pairs ...any) url.Values {
	v := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		key := pairs[i].(string)
		switch val := pairs[i+1].(type) {
		case int:
			v.Set(key, strconv.Itoa(val))
		case string:
			if val != "" {
				v.Set(key, val)
			}
		}
	}
	return v
}

func (c *Client) Overview(ctx context.Context) (map[string]any, error) {
	return c.get(ctx, "/api/v1/stats/overview", nil)
}

func (c *Client) ToolRanking(ctx context.Context, days, limit int) (map[string]any, error) {
	return c.get(ctx, "/api/v1/stats/tool-ranking", intParams("days", days, "limit", limit))
}

func (c *Client) UserRanking(ctx context.Context, days, limit int) (map[string]any, error) {
	return c.get(ctx, "/api/v1/stats/user-ranking", intParams("days", days, "limit", limit))
}

func (c *Client) Trend(ctx context.Context, days int) (map[string]any, error) {
	return c.get(ctx, "/api/v1/stats/trend", intParams("days", days))
}

func (c *Client) ToolDetail(ctx context.Context, toolName string) (map[string]any, error) {
	return c.get(ctx, "/api/v1/stats/tool-detail", intParams("tool_name", toolName))
}

func (c *Client) FeedbackSummary(ctx context.Context, days, limit int) (map[string]any, error) {
	return c.get(ctx, "/api/v1/stats/feedback-summary", intParams("days", days, "limit", limit))
}

func (c *Client) SearchTools(ctx context.Context, keyword, category string) (map[string]any, error) {
	return c.get(ctx, "/api/v1/stats/search-tools", intParams("keyword", keyword, "category", category))
}

func (c *Client) CategoryStats(ctx context.Context, days int) (map[string]any, error) {
	return c.get(ctx, "/api/v1/stats/category-stats", intParams("days", days))
}

func (c *Client) RetentionStats(ctx context.Context, period string) (map[string]any, error) {
	return c.get(ctx, "/api/v1/stats/retention", intParams("period", period))
}

func (c *Client) HourlyDistribution(ctx context.Context, days int) (map[string]any, error) {
	return c.get(ctx, "/api/v1/stats/hourly-distribution", intParams("days", days))
}

func (c *Client) ProviderStats(ctx context.Context, days, limit int) (map[string]any, error) {
	return c.get(ctx, "/api/v1/stats/provider-stats", intParams("days", days, "limit", limit))
}

func (c *Client) ToolInteractions(ctx context.Context, limit int) (map[string]any, error) {
	return c.get(ctx, "/api/v1/stats/tool-interactions", intParams("limit", limit))
}

func (c *Client) HotTools(ctx context.Context, days, limit int) (map[string]any, error) {
	return c.get(ctx, "/api/v1/stats/hot-tools", intParams("days", days, "limit", limit))
}

func (c *Client) WantList(ctx context.Context, days, limit int) (map[string]any, error) {
	return c.get(ctx, "/api/v1/stats/want-list", intParams("days", days, "limit", limit))
}

func (c *Client) SearchKeywords(ctx context.Context, days, limit int) (map[string]any, error) {
	return c.get(ctx, "/api/v1/stats/search-keywords", intParams("days", days, "limit", limit))
}

func (c *Client) RecommendByScenario(ctx context.Context, scenario string, limit int) (map[string]any, error) {
	return c.get(ctx, "/api/v1/stats/recommend", intParams("scenario", scenario, "limit", limit))
}

var _ Service = (*Client)(nil)
var _ Resetter = (*Client)(nil)
