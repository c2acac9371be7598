// Package queue carries job envelopes between producers (the scheduler and
// the enqueue CLI) and the task dispatcher.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"estate-analytics/internal/domain"
)

// ErrEmpty is returned by Dequeue when no job arrived before the timeout.
var ErrEmpty = errors.New("queue: no job available")

// ErrMalformed matches a *MalformedError.
var ErrMalformed = errors.New("queue: malformed envelope")

// MalformedError is returned by Dequeue when a popped envelope cannot be
// decoded. The envelope has already left the queue.
type MalformedError struct {
	Queue string
	Raw   []byte
	Err   error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("decode job from %s: %v", e.Queue, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

func (e *MalformedError) Is(target error) bool { return target == ErrMalformed }

// Queue is a set of named FIFO job queues.
type Queue interface {
	// Enqueue validates job and appends it to job.Queue.
	Enqueue(ctx context.Context, job *domain.Job) error

	// Dequeue pops the first job found across queues, checked in order,
	// waiting up to timeout. Returns ErrEmpty on timeout.
	Dequeue(ctx context.Context, queues []string, timeout time.Duration) (*domain.Job, error)

	// Len returns the number of pending jobs in a queue.
	Len(ctx context.Context, queue string) (int64, error)
}
