package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"estate-analytics/internal/domain"
	"estate-analytics/internal/observability"
)

const keyPrefix = "queue:"

// RedisQueue stores each named queue as a Redis list of JSON envelopes.
type RedisQueue struct {
	client    redis.UniversalClient
	opTimeout time.Duration
	metrics   *observability.Metrics
}

// NewRedisQueue creates a RedisQueue. A zero opTimeout defaults to 5s.
// BLPOP is bounded by its own wait plus opTimeout.
func NewRedisQueue(client redis.UniversalClient, opTimeout time.Duration, metrics *observability.Metrics) *RedisQueue {
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	return &RedisQueue{client: client, opTimeout: opTimeout, metrics: metrics}
}

// Enqueue appends job with RPUSH.
func (q *RedisQueue) Enqueue(ctx context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, q.opTimeout)
	defer cancel()

	if err := q.client.RPush(ctx, keyPrefix+job.Queue, data).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", job.Queue, err)
	}
	q.metrics.RecordEnqueued(job.Queue)
	return nil
}

// Dequeue pops with BLPOP across queues.
func (q *RedisQueue) Dequeue(ctx context.Context, queues []string, timeout time.Duration) (*domain.Job, error) {
	keys := make([]string, len(queues))
	for i, name := range queues {
		keys[i] = keyPrefix + name
	}

	ctx, cancel := context.WithTimeout(ctx, timeout+q.opTimeout)
	defer cancel()

	res, err := q.client.BLPop(ctx, timeout, keys...).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("blpop: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("blpop: unexpected reply of %d elements", len(res))
	}

	var job domain.Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, &MalformedError{Queue: strings.TrimPrefix(res[0], keyPrefix), Raw: []byte(res[1]), Err: err}
	}
	return &job, nil
}

// Len returns LLEN of the queue list.
func (q *RedisQueue) Len(ctx context.Context, queue string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, q.opTimeout)
	defer cancel()

	n, err := q.client.LLen(ctx, keyPrefix+queue).Result()
	if err != nil {
		return 0, fmt.Errorf("llen %s: %w", queue, err)
	}
	return n, nil
}

var _ Queue = (*RedisQueue)(nil)
