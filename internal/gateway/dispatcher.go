package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"botpilot/internal/domain"
	"botpilot/internal/metrics"
)

// EventHandler processes a normalized inbound event. Implemented by the
// agent's message router.
type EventHandler interface {
	Handle(ctx context.Context, evt *domain.InboundEvent) error
}

// Dispatcher deduplicates events and hands them to the handler as supervised
// background tasks, so the webhook response never waits on LLM or tool
// latency.
type Dispatcher struct {
	dedup     *DedupCache
	handler   EventHandler
	messenger domain.Messenger
	logger    *slog.Logger
	wg        sync.WaitGroup
}

func NewDispatcher(dedup *DedupCache, handler EventHandler, messenger domain.Messenger, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		dedup:     dedup,
		handler:   handler,
		messenger: messenger,
		logger:    logger,
	}
}

// Dispatch returns immediately. Events without an id are treated as unique
// and always dispatched; redelivered ids are logged and dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, evt *domain.InboundEvent) {
	if evt.EventID != "" && d.dedup.CheckAndMark(evt.EventID) {
		d.logger.Debug("duplicate event, skipping", "event_id", evt.EventID)
		metrics.EventsDuplicate.Inc()
		return
	}

	taskID := uuid.NewString()

	// The HTTP request context dies when the handler acks; the background
	// task must outlive it.
	taskCtx := context.WithoutCancel(ctx)

	d.wg.Add(1)
	metrics.TasksInFlight.Inc()
	go func() {
		defer d.wg.Done()
		defer metrics.TasksInFlight.Dec()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("event task panicked", "task_id", taskID, "panic", r)
				d.sendErrorReply(taskCtx, evt, fmt.Sprintf("%v", r))
			}
		}()

		d.logger.Info("processing event",
			"task_id", taskID,
			"event_id", evt.EventID,
			"chat_kind", evt.ChatKind,
		)

		if err := d.handler.Handle(taskCtx, evt); err != nil {
			d.logger.Error("event task failed", "task_id", taskID, "event_id", evt.EventID, "error", err)
			d.sendErrorReply(taskCtx, evt, err.Error())
		}
	}()
}

// sendErrorReply is best-effort: a failure to report a failure is only logged.
func (d *Dispatcher) sendErrorReply(ctx context.Context, evt *domain.InboundEvent, reason string) {
	if d.messenger == nil || evt.ChatID == "" {
		return
	}
	// Error text is often Chinese; cut on a rune boundary.
	if r := []rune(reason); len(r) > 100 {
		reason = string(r[:100])
	}
	text := "⚠️ 处理失败: " + reason
	if _, err := d.messenger.SendText(ctx, evt.ChatID, text, evt.MessageID); err != nil {
		d.logger.Warn("error reply failed", "chat_id", evt.ChatID, "error", err)
	}
}

// Wait blocks until all in-flight tasks finish. Used on shutdown and in tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
