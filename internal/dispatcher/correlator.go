package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/LeventeLantos/messenger-transport/internal/host"
	"github.com/LeventeLantos/messenger-transport/internal/model"
	"github.com/LeventeLantos/messenger-transport/internal/queue"
)

const unknownFailure = "unknown_failure"

// defaultFailureKinds maps platform error codes to failure kinds.
func defaultFailureKinds() map[int]string {
	return map[int]string{
		100: "no_matching_user_found",
		10:  "application_does_not_have_permissions",
		2:   "internal_server_error",
	}
}

// Correlator pairs a pending batch with its ordered sub-results.
// Position is the only correlation key: result i belongs to pending
// item i.
type Correlator struct {
	host  host.TransportHost
	queue queue.RequestQueue
	kinds map[int]string

	onSent   func(ctx context.Context, messageID, platformMessageID string)
	onFailed func(ctx context.Context, messageID, reason string)
}

func NewCorrelator(h host.TransportHost, q queue.RequestQueue) *Correlator {
	return &Correlator{
		host:  h,
		queue: q,
		kinds: defaultFailureKinds(),
	}
}

// WithHooks registers delivery-outcome callbacks (the journal hangs off
// these).
func (c *Correlator) WithHooks(
	onSent func(ctx context.Context, messageID, platformMessageID string),
	onFailed func(ctx context.Context, messageID, reason string),
) *Correlator {
	c.onSent = onSent
	c.onFailed = onFailed
	return c
}

// RegisterFailureKind extends the error-code lookup table.
func (c *Correlator) RegisterFailureKind(code int, kind string) {
	c.kinds[code] = kind
}

// Correlate walks pending[i] against results[i]. Null results requeue
// at the tail (transient, no user-visible failure yet); successes ack;
// failures nack once with the mapped kind. Items beyond the end of the
// result list come back as unresolved for the caller to decide.
func (c *Correlator) Correlate(ctx context.Context, pending []model.OutboundRequest, results []*model.BatchResultItem) []model.OutboundRequest {
	var unresolved []model.OutboundRequest

	for i, req := range pending {
		if i >= len(results) {
			unresolved = append(unresolved, req)
			continue
		}

		item := results[i]
		if item == nil {
			if _, err := c.queue.Push(ctx, req); err != nil {
				slog.Error("correlate: requeue failed", "message_id", req.MessageID, "error", err)
			}
			continue
		}

		if item.Code == http.StatusOK {
			c.succeed(ctx, req, item)
			continue
		}
		c.fail(ctx, req, item)
	}
	return unresolved
}

// FailAll nacks every request with the same reason, used when the
// whole batch call failed.
func (c *Correlator) FailAll(ctx context.Context, reqs []model.OutboundRequest, reason string) {
	for _, req := range reqs {
		c.emitFailure(ctx, req, model.ComponentDispatch, model.TypeBatchFail, reason)
	}
}

func (c *Correlator) succeed(ctx context.Context, req model.OutboundRequest, item *model.BatchResultItem) {
	body, err := item.DecodeBody()
	if err != nil {
		slog.Warn("correlate: undecodable success body", "message_id", req.MessageID, "error", err)
	}

	platformID, _ := body["message_id"].(string)
	if platformID == "" {
		// Sender-action acks carry no message id; nothing to report.
		return
	}

	if err := c.host.PublishAck(ctx, req.MessageID, platformID); err != nil {
		slog.Error("correlate: publish ack failed", "message_id", req.MessageID, "error", err)
	}
	c.reportStatus(ctx, model.StatusEvent{
		Component: model.ComponentOutbound,
		Status:    model.StatusOK,
		Type:      model.TypeRequestSuccess,
		Message:   "Request successful",
	})
	if c.onSent != nil {
		c.onSent(ctx, req.MessageID, platformID)
	}
}

func (c *Correlator) fail(ctx context.Context, req model.OutboundRequest, item *model.BatchResultItem) {
	kind := unknownFailure
	message := fmt.Sprintf("batch item failed (%d)", item.Code)

	if body, err := item.DecodeBody(); err == nil {
		if errBlock, ok := body["error"].(map[string]any); ok {
			if code, ok := errBlock["code"].(float64); ok {
				if mapped, ok := c.kinds[int(code)]; ok {
					kind = mapped
				}
			}
			if msg, ok := errBlock["message"].(string); ok && msg != "" {
				message = msg
			}
		}
	}

	c.emitFailure(ctx, req, model.ComponentOutbound, kind, message)
}

func (c *Correlator) emitFailure(ctx context.Context, req model.OutboundRequest, component, kind, message string) {
	if err := c.host.PublishNack(ctx, req.MessageID, "", message); err != nil {
		slog.Error("correlate: publish nack failed", "message_id", req.MessageID, "error", err)
	}
	c.reportStatus(ctx, model.StatusEvent{
		Component: component,
		Status:    model.StatusDown,
		Type:      kind,
		Message:   message,
	})
	if c.onFailed != nil {
		c.onFailed(ctx, req.MessageID, message)
	}
}

func (c *Correlator) reportStatus(ctx context.Context, status model.StatusEvent) {
	if err := c.host.ReportStatus(ctx, status); err != nil {
		slog.Error("correlate: report status failed", "component", status.Component, "error", err)
	}
}
