package queue

import (
	"context"
	"sync"
	"time"

	"estate-analytics/internal/domain"
)

// MemoryQueue is an in-process Queue used by tests and single-binary runs.
type MemoryQueue struct {
	mu      sync.Mutex
	pending map[string][]*domain.Job
	// changed is closed and replaced on every Enqueue to wake waiters.
	changed chan struct{}
}

// NewMemoryQueue creates an empty MemoryQueue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		pending: make(map[string][]*domain.Job),
		changed: make(chan struct{}),
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	c := *job
	q.pending[job.Queue] = append(q.pending[job.Queue], &c)
	close(q.changed)
	q.changed = make(chan struct{})
	return nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context, queues []string, timeout time.Duration) (*domain.Job, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		job, changed := q.pop(queues)
		if job != nil {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, ErrEmpty
		case <-changed:
		}
	}
}

func (q *MemoryQueue) pop(queues []string) (*domain.Job, <-chan struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, name := range queues {
		if jobs := q.pending[name]; len(jobs) > 0 {
			q.pending[name] = jobs[1:]
			return jobs[0], nil
		}
	}
	return nil, q.changed
}

func (q *MemoryQueue) Len(_ context.Context, queue string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.pending[queue])), nil
}

var _ Queue = (*MemoryQueue)(nil)
