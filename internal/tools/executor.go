package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"botpilot/internal/analytics"
	"botpilot/internal/metrics"
)

const (
	maxToolRetries = 2
	toolRetryDelay = 500 * time.Millisecond

	// resultLogLimit caps tool results in log output.
	resultLogLimit = 200
)

// transientMarkers identify connection-level failures worth retrying after a
// connection reset.
var transientMarkers = []string{
	"connection closed",
	"connection reset",
	"connection refused",
	"broken pipe",
	"server closed the connection",
}

// Executor runs tool calls and absorbs failures into structured results, so
// the LLM always receives something it can explain to the user.
type Executor struct {
	registry *Registry
	resetter analytics.Resetter
	logger   *slog.Logger
}

func NewExecutor(registry *Registry, resetter analytics.Resetter, logger *slog.Logger) *Executor {
	return &Executor{
		registry: registry,
		resetter: resetter,
		logger:   logger,
	}
}

// Execute runs the named tool and returns its result serialized as JSON.
// Errors never propagate: they come back as {"error": "..."} payloads.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) string {
	t := e.registry.Get(name)
	if t == nil {
		e.logger.Warn("unknown tool requested", "name", name)
		return errPayload(fmt.Sprintf("Unknown tool: %s", name))
	}

	var lastErr error
	for attempt := 0; attempt <= maxToolRetries; attempt++ {
		if attempt > 0 {
			metrics.ToolRetries.Inc()
			e.logger.Warn("retrying tool after transient error",
				"name", name, "attempt", attempt, "error", lastErr)
			if e.resetter != nil {
				e.resetter.Reset()
			}
			select {
			case <-time.After(toolRetryDelay):
			case <-ctx.Done():
				return errPayload(ctx.Err().Error())
			}
		}

		result, err := t.Execute(ctx, args)
		if err == nil {
			metrics.ToolExecutions.Inc()
			out, merr := json.Marshal(result)
			if merr != nil {
				return errPayload(fmt.Sprintf("unserializable result: %v", merr))
			}
			e.logger.Info("tool executed", "name", name, "result", truncate(string(out), resultLogLimit))
			return string(out)
		}

		if !isTransient(err) {
			e.logger.Error("tool failed", "name", name, "error", err)
			return errPayload(err.Error())
		}
		lastErr = err
	}

	e.logger.Error("tool failed after retries", "name", name, "error", lastErr)
	return errPayload(fmt.Sprintf("database connection failed: %v", lastErr))
}

func isTransient(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func errPayload(msg string) string {
	out, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return `{"error":"internal error"}`
	}
	return string(out)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
