// Package analytics is the client side of the Analytics Query Service: a
// fixed catalog of read operations over the navigation platform's usage data.
// The query logic itself lives in the backend; this package only speaks its
// HTTP API.
package analytics

import "context"

// Service is the operation catalog consumed by the tool layer. Every method
// returns a JSON-serializable aggregate.
type Service interface {
	Overview(ctx context.Context) (map[string]any, error)
	ToolRanking(ctx context.Context, days, limit int) (map[string]any, error)
	UserRanking(ctx context.Context, days, limit int) (map[string]any, error)
	Trend(ctx context.Context, days int) (map[string]any, error)
	ToolDetail(ctx context.Context, toolName string) (map[string]any, error)
	FeedbackSummary(ctx context.Context, days, limit int) (map[string]any, error)
	SearchTools(ctx context.Context, keyword, category string) (map[string]any, error)
	CategoryStats(ctx context.Context, days int) (map[string]any, error)
	RetentionStats(ctx context.Context, period string) (map[string]any, error)
	HourlyDistribution(ctx context.Context, days int) (map[string]any, error)
	ProviderStats(ctx context.Context, days, limit int) (map[string]any, error)
	ToolInteractions(ctx context.Context, limit int) (map[string]any, error)
	HotTools(ctx context.Context, days, limit int) (map[string]any, error)
	WantList(ctx context.Context, days, limit int) (map[string]any, error)
	SearchKeywords(ctx context.Context, days, limit int) (map[string]any, error)
	RecommendByScenario(ctx context.Context, scenario string, limit int) (map[string]any, error)
}

// Resetter is implemented by services backed by a connection pool that can
// be disposed wholesale after a transient fault.
type Resetter interface {
	Reset()
}
