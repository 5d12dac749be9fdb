package queue

import (
	"context"

	"github.com/LeventeLantos/messenger-transport/internal/model"
)

// RequestQueue is an ordered, durable FIFO of pending batch
// sub-requests. Push appends at the tail; PushFront reinserts deferred
// items at the head preserving their relative order.
type RequestQueue interface {
	Push(ctx context.Context, req model.OutboundRequest) (int64, error)
	PopBatch(ctx context.Context, n int) ([]model.OutboundRequest, error)
	PushFront(ctx context.Context, reqs ...model.OutboundRequest) error
	Length(ctx context.Context) (int64, error)
}
