package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/LeventeLantos/messenger-transport/internal/builder"
	"github.com/LeventeLantos/messenger-transport/internal/host"
	"github.com/LeventeLantos/messenger-transport/internal/model"
	"github.com/LeventeLantos/messenger-transport/internal/normalizer"
	"github.com/LeventeLantos/messenger-transport/internal/queue"
)

// Transport glues the pure pieces to their collaborators: inbound
// payloads are normalized and published, outbound messages are rendered
// and durably queued for the dispatcher.
type Transport struct {
	host  host.TransportHost
	queue queue.RequestQueue

	onQueued func(ctx context.Context, messageID, recipient string) error
}

func NewTransport(h host.TransportHost, q queue.RequestQueue) *Transport {
	return &Transport{host: h, queue: q}
}

// WithQueuedHook registers a callback fired after an outbound request
// lands in the queue (the delivery journal hangs off this).
func (t *Transport) WithQueuedHook(fn func(ctx context.Context, messageID, recipient string) error) *Transport {
	t.onQueued = fn
	return t
}

// HandleInbound normalizes a webhook payload and publishes every
// recognized event. Per-entry problems come back as strings; only an
// undecodable payload is an error.
func (t *Transport) HandleInbound(ctx context.Context, payload []byte) (int, []string, error) {
	events, entryErrs, err := normalizer.Parse(payload)
	if err != nil {
		t.reportStatus(ctx, model.StatusEvent{
			Component: model.ComponentInbound,
			Status:    model.StatusDown,
			Type:      model.TypeRequestFail,
			Message:   err.Error(),
		})
		return 0, nil, err
	}

	for _, msg := range entryErrs {
		slog.Warn("inbound entry skipped", "reason", msg)
	}

	published := 0
	for _, ev := range events {
		if err := t.host.PublishInbound(ctx, ev); err != nil {
			slog.Error("publish inbound failed", "from", ev.FromAddr, "error", err)
			continue
		}
		published++
	}

	t.reportStatus(ctx, model.StatusEvent{
		Component: model.ComponentInbound,
		Status:    model.StatusOK,
		Type:      model.TypeRequestSuccess,
		Message:   "Request successful",
	})
	return published, entryErrs, nil
}

// Send renders an outbound message and pushes the wrapped sub-request
// onto the durable queue. Returns the new queue length.
func (t *Transport) Send(ctx context.Context, msg model.OutboundMessage) (int64, error) {
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}

	payload, err := builder.ConstructReply(msg)
	if err != nil {
		return 0, fmt.Errorf("construct reply for %s: %w", msg.MessageID, err)
	}

	req, err := builder.WrapRequest(msg.MessageID, payload)
	if err != nil {
		return 0, err
	}

	n, err := t.queue.Push(ctx, req)
	if err != nil {
		return 0, err
	}

	if t.onQueued != nil {
		if err := t.onQueued(ctx, msg.MessageID, msg.To); err != nil {
			slog.Error("queued hook failed", "message_id", msg.MessageID, "error", err)
		}
	}
	return n, nil
}

func (t *Transport) reportStatus(ctx context.Context, status model.StatusEvent) {
	if err := t.host.ReportStatus(ctx, status); err != nil {
		slog.Error("report status failed", "component", status.Component, "error", err)
	}
}
