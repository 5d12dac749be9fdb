package repo

import (
	"context"

	"github.com/LeventeLantos/messenger-transport/internal/model"
)

// DeliveryJournal records the lifecycle of outbound messages.
type DeliveryJournal interface {
	Record(ctx context.Context, messageID, recipient string) error
	MarkSent(ctx context.Context, messageID, platformMessageID string) error
	MarkFailed(ctx context.Context, messageID, reason string) error
	ListSent(ctx context.Context, limit, offset int) ([]model.DeliveryRecord, error)
}
