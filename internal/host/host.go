package host

import (
	"context"

	"github.com/LeventeLantos/messenger-transport/internal/model"
)

// TransportHost is the narrow surface the engine needs from the
// messaging runtime it runs under: publish normalized inbound events,
// acknowledge or reject outbound messages, and report component status.
type TransportHost interface {
	PublishInbound(ctx context.Context, event model.InboundEvent) error
	PublishAck(ctx context.Context, userMessageID, platformMessageID string) error
	PublishNack(ctx context.Context, userMessageID, platformMessageID, reason string) error
	ReportStatus(ctx context.Context, status model.StatusEvent) error
}
