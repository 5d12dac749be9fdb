package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/LeventeLantos/messenger-transport/internal/client"
	"github.com/LeventeLantos/messenger-transport/internal/model"
)

// fakeQueue is a slice-backed RequestQueue with the same ordering
// semantics as the Redis one.
type fakeQueue struct {
	mu    sync.Mutex
	items []model.OutboundRequest

	pushErr error
	popErr  error
}

func (q *fakeQueue) Push(_ context.Context, req model.OutboundRequest) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pushErr != nil {
		return 0, q.pushErr
	}
	q.items = append(q.items, req)
	return int64(len(q.items)), nil
}

func (q *fakeQueue) PopBatch(_ context.Context, n int) ([]model.OutboundRequest, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.popErr != nil {
		return nil, q.popErr
	}
	if len(q.items) == 0 {
		return nil, nil
	}
	if n > len(q.items) {
		n = len(q.items)
	}
	out := make([]model.OutboundRequest, n)
	copy(out, q.items[:n])
	q.items = append([]model.OutboundRequest(nil), q.items[n:]...)
	return out, nil
}

func (q *fakeQueue) PushFront(_ context.Context, reqs ...model.OutboundRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(append([]model.OutboundRequest(nil), reqs...), q.items...)
	return nil
}

func (q *fakeQueue) Length(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}

func (q *fakeQueue) snapshot() []model.OutboundRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]model.OutboundRequest(nil), q.items...)
}

type ackRecord struct {
	userMessageID     string
	platformMessageID string
}

type nackRecord struct {
	userMessageID string
	reason        string
}

type fakeHost struct {
	mu       sync.Mutex
	events   []model.InboundEvent
	acks     []ackRecord
	nacks    []nackRecord
	statuses []model.StatusEvent
}

func (h *fakeHost) PublishInbound(_ context.Context, event model.InboundEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return nil
}

func (h *fakeHost) PublishAck(_ context.Context, userMessageID, platformMessageID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.acks = append(h.acks, ackRecord{userMessageID, platformMessageID})
	return nil
}

func (h *fakeHost) PublishNack(_ context.Context, userMessageID, _ string, reason string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nacks = append(h.nacks, nackRecord{userMessageID, reason})
	return nil
}

func (h *fakeHost) ReportStatus(_ context.Context, status model.StatusEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses = append(h.statuses, status)
	return nil
}

func (h *fakeHost) ackList() []ackRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ackRecord(nil), h.acks...)
}

func (h *fakeHost) nackList() []nackRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]nackRecord(nil), h.nacks...)
}

func (h *fakeHost) statusList() []model.StatusEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.StatusEvent(nil), h.statuses...)
}

type fakeCaller struct {
	mu    sync.Mutex
	calls [][]model.OutboundRequest

	resp      *client.BatchResponse
	err       error
	panicWith any
}

func (c *fakeCaller) Call(_ context.Context, reqs []model.OutboundRequest) (*client.BatchResponse, error) {
	c.mu.Lock()
	c.calls = append(c.calls, append([]model.OutboundRequest(nil), reqs...))
	c.mu.Unlock()
	if c.panicWith != nil {
		panic(c.panicWith)
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.resp, nil
}

func (c *fakeCaller) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *fakeCaller) call(i int) []model.OutboundRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[i]
}

// waitForAtLeast polls until fn() reaches want or the deadline passes.
func waitForAtLeast(fn func() int, want int, deadline time.Duration) bool {
	stop := time.Now().Add(deadline)
	for time.Now().Before(stop) {
		if fn() >= want {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return fn() >= want
}
