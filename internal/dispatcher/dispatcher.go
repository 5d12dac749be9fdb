package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LeventeLantos/messenger-transport/internal/client"
	"github.com/LeventeLantos/messenger-transport/internal/model"
	"github.com/LeventeLantos/messenger-transport/internal/queue"
)

// BatchCaller issues one multiplexed HTTP call for a pending batch.
type BatchCaller interface {
	Call(ctx context.Context, reqs []model.OutboundRequest) (*client.BatchResponse, error)
}

// Config carries the drain policy. DedupRecipients keeps at most one
// in-flight request per recipient per batch; it is policy, not a
// platform-verified law, hence the switch.
type Config struct {
	Interval        time.Duration
	BatchSize       int
	DedupRecipients bool
}

// Dispatcher periodically drains the durable queue into bounded
// batches, fires one batch call, and correlates results by position.
// Only one cycle may run at a time: overlapping cycles would corrupt
// the pairing between a pending list and its response.
type Dispatcher struct {
	cfg        Config
	queue      queue.RequestQueue
	caller     BatchCaller
	correlator *Correlator

	running atomic.Bool

	mu      sync.Mutex
	cycleMu sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(cfg Config, q queue.RequestQueue, caller BatchCaller, corr *Correlator) (*Dispatcher, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if cfg.BatchSize <= 0 {
		return nil, errors.New("batch size must be > 0")
	}
	if q == nil || caller == nil || corr == nil {
		return nil, errors.New("queue, caller and correlator must not be nil")
	}
	return &Dispatcher{
		cfg:        cfg,
		queue:      q,
		caller:     caller,
		correlator: corr,
		done:       make(chan struct{}),
	}, nil
}

// Start launches the drain loop. Returns false when already running,
// so a fault-triggered restart can never double-schedule.
func (d *Dispatcher) Start() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})
	d.running.Store(true)

	go func() {
		defer close(d.done)

		ticker := time.NewTicker(d.cfg.Interval)
		defer ticker.Stop()

		slog.Info("dispatcher started",
			"interval", d.cfg.Interval.String(),
			"batch_size", d.cfg.BatchSize,
		)

		d.safeCycle(ctx)

		for {
			select {
			case <-ctx.Done():
				slog.Info("dispatcher stopping")
				return
			case <-ticker.C:
				d.safeCycle(ctx)
			}
		}
	}()

	return true
}

// Stop halts the timer, letting an in-flight cycle finish first.
func (d *Dispatcher) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running.Load() {
		return false
	}

	d.cancel()
	<-d.done
	d.running.Store(false)

	slog.Info("dispatcher stopped")
	return true
}

func (d *Dispatcher) IsRunning() bool {
	return d.running.Load()
}

// safeCycle recovers any cycle fault so the loop keeps running for the
// life of the process.
func (d *Dispatcher) safeCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("dispatch cycle panic recovered", "panic", r)
			slog.Info("dispatch loop restarting")
		}
	}()

	start := time.Now()
	d.RunCycle(ctx)
	slog.Debug("dispatch cycle completed", "duration_ms", time.Since(start).Milliseconds())
}

// RunCycle performs one drain pass: pop up to the configured batch
// size, defer duplicate recipients back to the queue head, fire the
// batch call, and correlate. The pending list lives only for the
// duration of the cycle.
func (d *Dispatcher) RunCycle(ctx context.Context) {
	d.cycleMu.Lock()
	defer d.cycleMu.Unlock()

	qlen, err := d.queue.Length(ctx)
	if err != nil {
		slog.Error("dispatch: queue length failed", "error", err)
		return
	}

	size := d.cfg.BatchSize
	if qlen < int64(size) {
		size = int(qlen)
	}
	if size == 0 {
		return
	}

	popped, err := d.queue.PopBatch(ctx, size)
	if err != nil {
		slog.Error("dispatch: queue pop failed", "error", err)
		return
	}
	if len(popped) == 0 {
		return
	}

	pending := popped
	if d.cfg.DedupRecipients {
		var deferred []model.OutboundRequest
		pending, deferred = splitByRecipient(popped)
		if len(deferred) > 0 {
			slog.Info("dispatch: deferring duplicate recipients", "count", len(deferred))
			if err := d.queue.PushFront(ctx, deferred...); err != nil {
				slog.Error("dispatch: requeue of deferred items failed", "error", err)
			}
		}
	}
	if len(pending) == 0 {
		return
	}

	resp, err := d.caller.Call(ctx, pending)
	if err != nil {
		d.correlator.FailAll(ctx, pending, fmt.Sprintf("batch request failed (%v)", err))
		return
	}

	unresolved := d.correlator.Correlate(ctx, pending, resp.Items)
	if len(unresolved) == 0 {
		return
	}

	if resp.Status == http.StatusOK {
		// Truncated result array on an otherwise successful call:
		// treat the tail like null results and retry.
		for _, req := range unresolved {
			if _, err := d.queue.Push(ctx, req); err != nil {
				slog.Error("dispatch: requeue failed", "message_id", req.MessageID, "error", err)
			}
		}
		return
	}

	d.correlator.FailAll(ctx, unresolved, fmt.Sprintf("batch request failed (%d)", resp.Status))
}

// splitByRecipient keeps the first request per recipient in batch
// order and defers the rest, preserving their relative order.
func splitByRecipient(reqs []model.OutboundRequest) (pending, deferred []model.OutboundRequest) {
	seen := map[string]bool{}
	for _, req := range reqs {
		id := recipientID(req.Body)
		if id != "" && seen[id] {
			deferred = append(deferred, req)
			continue
		}
		if id != "" {
			seen[id] = true
		}
		pending = append(pending, req)
	}
	return pending, deferred
}

// recipientID digs the recipient out of the platform-encoded body.
func recipientID(body string) string {
	vals, err := url.ParseQuery(body)
	if err != nil {
		return ""
	}
	raw := vals.Get("recipient")
	if raw == "" {
		return ""
	}
	var r struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return ""
	}
	return r.ID
}
