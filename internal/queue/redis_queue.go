package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/messenger-transport/internal/model"
)

// RedisQueue keeps the pending requests in a Redis list, surviving
// process restarts. List ops are atomic, so producers may push while a
// dispatch cycle pops.
type RedisQueue struct {
	rdb *redis.Client
	key string
}

func NewRedisQueue(rdb *redis.Client, key string) *RedisQueue {
	return &RedisQueue{rdb: rdb, key: key}
}

func (q *RedisQueue) Push(ctx context.Context, req model.OutboundRequest) (int64, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return 0, err
	}
	n, err := q.rdb.RPush(ctx, q.key, b).Result()
	if err != nil {
		return 0, fmt.Errorf("queue push: %w", err)
	}
	return n, nil
}

func (q *RedisQueue) PopBatch(ctx context.Context, n int) ([]model.OutboundRequest, error) {
	if n <= 0 {
		return nil, errors.New("batch size must be > 0")
	}

	raw, err := q.rdb.LPopCount(ctx, q.key, n).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("queue pop: %w", err)
	}

	reqs := make([]model.OutboundRequest, 0, len(raw))
	for _, item := range raw {
		var req model.OutboundRequest
		if err := json.Unmarshal([]byte(item), &req); err != nil {
			return nil, fmt.Errorf("queue pop: bad entry %q: %w", item, err)
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// PushFront reinserts deferred requests at the head. Items are pushed
// in reverse so reqs[0] ends up closest to the head, keeping the
// original relative order once back in the queue.
func (q *RedisQueue) PushFront(ctx context.Context, reqs ...model.OutboundRequest) error {
	for i := len(reqs) - 1; i >= 0; i-- {
		b, err := json.Marshal(reqs[i])
		if err != nil {
			return err
		}
		if err := q.rdb.LPush(ctx, q.key, b).Err(); err != nil {
			return fmt.Errorf("queue push front: %w", err)
		}
	}
	return nil
}

func (q *RedisQueue) Length(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return n, nil
}
