package tools

import (
	"context"

	"botpilot/internal/analytics"
)

// statTool is a catalog entry backed by a single analytics service call.
type statTool struct {
	name        string
	description string
	parameters  map[string]any
	run         func(ctx context.Context, args map[string]any) (any, error)
}

func (t *statTool) Name() string               { return t.name }
func (t *statTool) Description() string        { return t.description }
func (t *statTool) Parameters() map[string]any { return t.parameters }

func (t *statTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	return t.run(ctx, args)
}

var daysParam = Param{Type: "integer", Description: "统计天数"}
var limitParam = Param{Type: "integer", Description: "返回条数上限"}

// RegisterCatalog registers the full analytics tool catalog against svc.
func RegisterCatalog(reg *Registry, svc analytics.Service) {
	catalog := []*statTool{
		{
			name:        "get_overview",
			description: "获取平台整体数据概览，包括工具总数、用户总数、今日调用量等核心指标",
			parameters:  ToolParameters(map[string]Param{}, nil),
			run: func(ctx context.Context, _ map[string]any) (any, error) {
				return svc.Overview(ctx)
			},
		},
		{
			name:        "get_tool_ranking",
			description: "获取工具使用排行榜，按调用量排序",
			parameters:  ToolParameters(map[string]Param{"days": daysParam, "limit": limitParam}, nil),
			run: func(ctx context.Context, args map[string]any) (any, error) {
				return svc.ToolRanking(ctx, ArgsInt(args, "days", 7), ArgsInt(args, "limit", 10))
			},
		},
		{
			name:        "get_user_ranking",
			description: "获取用户活跃度排行榜，按使用次数排序",
			parameters:  ToolParameters(map[string]Param{"days": daysParam, "limit": limitParam}, nil),
			run: func(ctx context.Context, args map[string]any) (any, error) {
				return svc.UserRanking(ctx, ArgsInt(args, "days", 7), ArgsInt(args, "limit", 10))
			},
		},
		{
			name:        "get_trend",
			description: "获取平台使用趋势，按天统计调用量和活跃用户数",
			parameters:  ToolParameters(map[string]Param{"days": daysParam}, nil),
			run: func(ctx context.Context, args map[string]any) (any, error) {
				return svc.Trend(ctx, ArgsInt(args, "days", 30))
			},
		},
		{
			name:        "get_tool_detail",
			description: "获取指定工具的详细信息和使用统计",
			parameters: ToolParameters(map[string]Param{
				"tool_name": {Type: "string", Description: "工具名称"},
			}, []string{"tool_name"}),
			run: func(ctx context.Context, args map[string]any) (any, error) {
				return svc.ToolDetail(ctx, ArgsString(args, "tool_name", ""))
			},
		},
		{
			name:        "get_feedback_summary",
			description: "获取用户反馈汇总，包括评分分布和最新反馈内容",
			parameters:  ToolParameters(map[string]Param{"days": daysParam, "limit": limitParam}, nil),
			run: func(ctx context.Context, args map[string]any) (any, error) {
				return svc.FeedbackSummary(ctx, ArgsInt(args, "days", 30), ArgsInt(args, "limit", 20))
			},
		},
		{
			name:        "search_tools",
			description: "按关键词搜索工具，支持按分类过滤",
			parameters: ToolParameters(map[string]Param{
				"keyword":  {Type: "string", Description: "搜索关键词"},
				"category": {Type: "string", Description: "工具分类，可选"},
			}, []string{"keyword"}),
			run: func(ctx context.Context, args map[string]any) (any, error) {
				return svc.SearchTools(ctx, ArgsString(args, "keyword", ""), ArgsString(args, "category", ""))
			},
		},
		{
			name:        "get_category_stats",
			description: "获取各工具分类的使用统计",
			parameters:  ToolParameters(map[string]Param{"days": daysParam}, nil),
			run: func(ctx context.Context, args map[string]any) (any, error) {
				return svc.CategoryStats(ctx, ArgsInt(args, "days", 7))
			},
		},
		{
			name:        "get_retention_stats",
			description: "获取用户留存率统计，支持按日、周、月维度",
			parameters: ToolParameters(map[string]Param{
				"period": {Type: "string", Description: "统计周期", Enum: []string{"day", "week", "month"}},
			}, nil),
			run: func(ctx context.Context, args map[string]any) (any, error) {
				return svc.RetentionStats(ctx, ArgsString(args, "period", "day"))
			},
		},
		{
			name:        "get_hourly_distribution",
			description: "获取调用量的小时分布，用于分析使用高峰时段",
			parameters:  ToolParameters(map[string]Param{"days": daysParam}, nil),
			run: func(ctx context.Context, args map[string]any) (any, error) {
				return svc.HourlyDistribution(ctx, ArgsInt(args, "days", 7))
			},
		},
		{
			name:        "get_provider_stats",
			description: "获取各工具提供方的使用统计排行",
			parameters:  ToolParameters(map[string]Param{"days": daysParam, "limit": limitParam}, nil),
			run: func(ctx context.Context, args map[string]any) (any, error) {
				return svc.ProviderStats(ctx, ArgsInt(args, "days", 7), ArgsInt(args, "limit", 10))
			},
		},
		{
			name:        "get_tool_interactions",
			description: "获取工具的点赞、收藏等互动数据排行",
			parameters:  ToolParameters(map[string]Param{"limit": limitParam}, nil),
			run: func(ctx context.Context, args map[string]any) (any, error) {
				return svc.ToolInteractions(ctx, ArgsInt(args, "limit", 10))
			},
		},
		{
			name:        "get_hot_tools",
			description: "获取近期热门工具，综合调用量和增长趋势",
			parameters:  ToolParameters(map[string]Param{"days": daysParam, "limit": limitParam}, nil),
			run: func(ctx context.Context, args map[string]any) (any, error) {
				return svc.HotTools(ctx, ArgsInt(args, "days", 7), ArgsInt(args, "limit", 10))
			},
		},
		{
			name:        "get_want_list",
			description: "获取用户许愿清单，即用户希望新增的工具需求",
			parameters:  ToolParameters(map[string]Param{"days": daysParam, "limit": limitParam}, nil),
			run: func(ctx context.Context, args map[string]any) (any, error) {
				return svc.WantList(ctx, ArgsInt(args, "days", 30), ArgsInt(args, "limit", 20))
			},
		},
		{
			name:        "get_search_keywords",
			description: "获取站内搜索热词排行",
			parameters:  ToolParameters(map[string]Param{"days": daysParam, "limit": limitParam}, nil),
			run: func(ctx context.Context, args map[string]any) (any, error) {
				return svc.SearchKeywords(ctx, ArgsInt(args, "days", 7), ArgsInt(args, "limit", 20))
			},
		},
		{
			name:        "recommend_by_scenario",
			description: "根据使用场景推荐合适的工具",
			parameters: ToolParameters(map[string]Param{
				"scenario": {Type: "string", Description: "使用场景描述"},
				"limit":    limitParam,
			}, []string{"scenario"}),
			run: func(ctx context.Context, args map[string]any) (any, error) {
				return svc.RecommendByScenario(ctx, ArgsString(args, "scenario", ""), ArgsInt(args, "limit", 5))
			},
		},
	}

	for _, t := range catalog {
		reg.Register(t)
	}
}
