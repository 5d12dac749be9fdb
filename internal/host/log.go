package host

import (
	"context"
	"log/slog"

	"github.com/LeventeLantos/messenger-transport/internal/model"
)

// LogHost is the fallback host used when no broker is configured: every
// event lands in the structured log and nowhere else.
type LogHost struct{}

func (LogHost) PublishInbound(_ context.Context, event model.InboundEvent) error {
	slog.Info("inbound event",
		"from", event.FromAddr,
		"to", event.ToAddr,
		"content", event.Content,
	)
	return nil
}

func (LogHost) PublishAck(_ context.Context, userMessageID, platformMessageID string) error {
	slog.Info("ack", "user_message_id", userMessageID, "platform_message_id", platformMessageID)
	return nil
}

func (LogHost) PublishNack(_ context.Context, userMessageID, platformMessageID, reason string) error {
	slog.Warn("nack",
		"user_message_id", userMessageID,
		"platform_message_id", platformMessageID,
		"reason", reason,
	)
	return nil
}

func (LogHost) ReportStatus(_ context.Context, status model.StatusEvent) error {
	slog.Info("status",
		"component", status.Component,
		"status", status.Status,
		"type", status.Type,
		"message", status.Message,
	)
	return nil
}
